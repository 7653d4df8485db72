package storage

import (
	"encoding/json"
	"io"
)

type ExportData struct {
	EpisodeMetadata
	Steps   int         `json:"steps"`
	Columns []string    `json:"columns"`
	Times   []float64   `json:"times"`
	States  [][]float64 `json:"states"`
}

// ExportJSON writes an episode's metadata and trace as one JSON document.
func (s *Store) ExportJSON(w io.Writer, id string) error {
	meta, err := s.Load(id)
	if err != nil {
		return err
	}
	trace, err := s.LoadStates(id)
	if err != nil {
		return err
	}

	data := ExportData{
		EpisodeMetadata: *meta,
		Steps:           len(trace.Times),
		Columns:         trace.Columns,
		Times:           trace.Times,
		States:          trace.Rows,
	}

	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(data)
}
