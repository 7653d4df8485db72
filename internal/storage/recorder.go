package storage

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/san-kum/simbridge/internal/bridge"
	"github.com/san-kum/simbridge/internal/metrics"
	"github.com/san-kum/simbridge/internal/wire"
)

// EpisodeInfo is copied into the metadata of every recorded episode.
type EpisodeInfo struct {
	Airframe     string
	Seed         int64
	Dt           float64
	Integrator   string
	NumActuators int
	Sensors      string
}

// Recorder writes one episode directory per RESET: the States that follow
// it as rows of states.csv, and metadata.json with the episode metrics
// once the next episode starts or the recorder is closed.
type Recorder struct {
	store      *Store
	info       EpisodeInfo
	newMetrics func() []metrics.EpisodeMetric
	log        zerolog.Logger

	mu       sync.Mutex
	episodes int
	current  *episode
	err      error
}

var _ bridge.TickObserver = (*Recorder)(nil)

type episode struct {
	meta    EpisodeMetadata
	file    *os.File
	csv     *csv.Writer
	metrics []metrics.EpisodeMetric
}

// NewRecorder returns a Recorder writing into store. newMetrics builds a
// fresh metric set for each episode and may be nil.
func NewRecorder(store *Store, info EpisodeInfo, newMetrics func() []metrics.EpisodeMetric, log zerolog.Logger) *Recorder {
	if newMetrics == nil {
		newMetrics = func() []metrics.EpisodeMetric { return nil }
	}
	return &Recorder{
		store:      store,
		info:       info,
		newMetrics: newMetrics,
		log:        log.With().Str("component", "recorder").Logger(),
	}
}

// OnReset finishes the episode in progress and starts a new one.
func (r *Recorder) OnReset(state wire.State) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.finishLocked()
	r.startLocked()
}

// OnTick records one State. Ticks before the first reset open an episode
// of their own.
func (r *Recorder) OnTick(action wire.Action, state wire.State) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.current == nil {
		r.startLocked()
		if r.current == nil {
			return
		}
	}
	ep := r.current
	ep.meta.Ticks++
	ep.meta.SimTime = state.SimTime
	if state.Status == wire.StatusSensorTimeout {
		ep.meta.Timeouts++
	}
	for _, m := range ep.metrics {
		m.Observe(action, state)
	}
	if err := ep.csv.Write(stateRow(action, state, r.info.NumActuators)); err != nil {
		r.failLocked(fmt.Errorf("storage: write %s: %w", ep.meta.ID, err))
	}
}

// Close finishes the episode in progress and returns the first error the
// recorder ran into.
func (r *Recorder) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.finishLocked()
	return r.err
}

// Err returns the first error the recorder ran into.
func (r *Recorder) Err() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.err
}

// Episodes returns the number of episodes started.
func (r *Recorder) Episodes() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.episodes
}

func (r *Recorder) startLocked() {
	if r.err != nil {
		return
	}
	id := uuid.NewString()
	dir := filepath.Join(r.store.Dir(), id)
	if err := os.MkdirAll(dir, 0755); err != nil {
		r.failLocked(fmt.Errorf("storage: create episode: %w", err))
		return
	}
	f, err := os.Create(filepath.Join(dir, statesFile))
	if err != nil {
		r.failLocked(fmt.Errorf("storage: create episode: %w", err))
		return
	}

	r.episodes++
	ep := &episode{
		meta: EpisodeMetadata{
			ID:           id,
			Episode:      r.episodes,
			Airframe:     r.info.Airframe,
			Timestamp:    time.Now(),
			Seed:         r.info.Seed,
			Dt:           r.info.Dt,
			Integrator:   r.info.Integrator,
			NumActuators: r.info.NumActuators,
			Sensors:      r.info.Sensors,
		},
		file:    f,
		csv:     csv.NewWriter(f),
		metrics: r.newMetrics(),
	}
	if err := ep.csv.Write(stateHeader(r.info.NumActuators)); err != nil {
		r.failLocked(fmt.Errorf("storage: write %s: %w", id, err))
	}
	r.current = ep
	r.log.Debug().Str("episode_id", id).Int("episode", r.episodes).Msg("recording episode")
}

func (r *Recorder) finishLocked() {
	ep := r.current
	if ep == nil {
		return
	}
	r.current = nil

	ep.csv.Flush()
	if err := ep.csv.Error(); err != nil {
		r.failLocked(fmt.Errorf("storage: flush %s: %w", ep.meta.ID, err))
	}
	if err := ep.file.Close(); err != nil {
		r.failLocked(fmt.Errorf("storage: close %s: %w", ep.meta.ID, err))
	}

	ep.meta.Metrics = make(map[string]float64, len(ep.metrics))
	for _, m := range ep.metrics {
		ep.meta.Metrics[m.Name()] = m.Value()
	}
	if err := r.store.writeMetadata(&ep.meta); err != nil {
		r.failLocked(fmt.Errorf("storage: metadata %s: %w", ep.meta.ID, err))
		return
	}
	r.log.Info().
		Str("episode_id", ep.meta.ID).
		Int("ticks", ep.meta.Ticks).
		Int("sensor_timeouts", ep.meta.Timeouts).
		Msg("episode recorded")
}

func (r *Recorder) failLocked(err error) {
	r.log.Error().Err(err).Msg("recording failed")
	if r.err == nil {
		r.err = err
	}
}

func stateHeader(numActuators int) []string {
	h := []string{"time", "status", "p", "q", "r", "qw", "qx", "qy", "qz", "ax", "ay", "az"}
	for _, prefix := range []string{"u", "esc_speed", "esc_temp", "esc_current", "esc_voltage"} {
		for i := 0; i < numActuators; i++ {
			h = append(h, prefix+strconv.Itoa(i))
		}
	}
	return h
}

func stateRow(action wire.Action, s wire.State, numActuators int) []string {
	row := make([]string, 0, 12+5*numActuators)
	row = append(row, formatFloat(s.SimTime), strconv.Itoa(int(s.Status)))
	for _, v := range s.ImuAngularVelocityRPY {
		row = append(row, formatFloat(v))
	}
	for _, v := range s.ImuOrientationQuat {
		row = append(row, formatFloat(v))
	}
	for _, v := range s.ImuLinearAccelerationXYZ {
		row = append(row, formatFloat(v))
	}
	for _, col := range [][]float64{action.Motor, s.EscMotorAngularVelocity, s.EscTemperature, s.EscCurrent, s.EscVoltage} {
		for i := 0; i < numActuators; i++ {
			v := 0.0
			if i < len(col) {
				v = col[i]
			}
			row = append(row, formatFloat(v))
		}
	}
	return row
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}
