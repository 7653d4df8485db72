package storage

import (
	"encoding/csv"
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"time"
)

const (
	metadataFile = "metadata.json"
	statesFile   = "states.csv"
)

// Store is a directory of recorded episodes, one subdirectory each.
type Store struct {
	baseDir string
}

func New(baseDir string) *Store {
	return &Store{baseDir: baseDir}
}

func (s *Store) Init() error {
	return os.MkdirAll(s.baseDir, 0755)
}

func (s *Store) Dir() string { return s.baseDir }

type EpisodeMetadata struct {
	ID           string             `json:"id"`
	Episode      int                `json:"episode"`
	Airframe     string             `json:"airframe"`
	Timestamp    time.Time          `json:"timestamp"`
	Seed         int64              `json:"seed"`
	Dt           float64            `json:"dt"`
	Integrator   string             `json:"integrator"`
	NumActuators int                `json:"num_actuators"`
	Sensors      string             `json:"sensors"`
	Ticks        int                `json:"ticks"`
	Timeouts     int                `json:"sensor_timeouts"`
	SimTime      float64            `json:"sim_time"`
	Metrics      map[string]float64 `json:"metrics"`
}

func (s *Store) writeMetadata(meta *EpisodeMetadata) error {
	f, err := os.Create(filepath.Join(s.baseDir, meta.ID, metadataFile))
	if err != nil {
		return err
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	return enc.Encode(meta)
}

// List returns the metadata of every complete episode, oldest first.
func (s *Store) List() ([]EpisodeMetadata, error) {
	entries, err := os.ReadDir(s.baseDir)
	if err != nil {
		if os.IsNotExist(err) {
			return []EpisodeMetadata{}, nil
		}
		return nil, err
	}

	episodes := make([]EpisodeMetadata, 0)
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		meta, err := s.Load(entry.Name())
		if err != nil {
			continue
		}
		episodes = append(episodes, *meta)
	}
	sort.Slice(episodes, func(i, j int) bool {
		if episodes[i].Timestamp.Equal(episodes[j].Timestamp) {
			return episodes[i].Episode < episodes[j].Episode
		}
		return episodes[i].Timestamp.Before(episodes[j].Timestamp)
	})
	return episodes, nil
}

func (s *Store) Load(id string) (*EpisodeMetadata, error) {
	data, err := os.ReadFile(filepath.Join(s.baseDir, id, metadataFile))
	if err != nil {
		return nil, err
	}

	var meta EpisodeMetadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, err
	}
	return &meta, nil
}

// Trace is the per-tick content of states.csv.
type Trace struct {
	Columns []string
	Times   []float64
	Rows    [][]float64
}

// Column returns the values of the named column, or nil.
func (t *Trace) Column(name string) []float64 {
	for i, c := range t.Columns {
		if c != name {
			continue
		}
		out := make([]float64, len(t.Rows))
		for j, row := range t.Rows {
			if i < len(row) {
				out[j] = row[i]
			}
		}
		return out
	}
	return nil
}

// LoadStates reads the tick rows of an episode. The time column is split
// out into Times; unparsable cells read as zero.
func (s *Store) LoadStates(id string) (*Trace, error) {
	file, err := os.Open(filepath.Join(s.baseDir, id, statesFile))
	if err != nil {
		return nil, err
	}
	defer file.Close()

	r := csv.NewReader(file)
	r.FieldsPerRecord = -1

	records, err := r.ReadAll()
	if err != nil {
		return nil, err
	}

	trace := &Trace{Times: []float64{}, Rows: [][]float64{}}
	if len(records) == 0 {
		return trace, nil
	}
	if len(records[0]) > 1 {
		trace.Columns = records[0][1:]
	}

	for _, record := range records[1:] {
		if len(record) == 0 {
			continue
		}
		t, err := strconv.ParseFloat(record[0], 64)
		if err != nil {
			continue
		}
		trace.Times = append(trace.Times, t)

		row := make([]float64, len(record)-1)
		for j, cell := range record[1:] {
			row[j], _ = strconv.ParseFloat(cell, 64)
		}
		trace.Rows = append(trace.Rows, row)
	}
	return trace, nil
}
