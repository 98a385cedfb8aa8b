package model

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Snapshot is the read-only host state a tick decides on.
type Snapshot struct {
	FreeSlots  int          `json:"free_slots" yaml:"free_slots"`
	InProgress []InProgress `json:"in_progress" yaml:"in_progress"`
	Available  []Candidate  `json:"available" yaml:"available"`
	Balances   Balances     `json:"balances" yaml:"balances"`
	// TakenAt is set by the host when the state was sampled.
	TakenAt time.Time `json:"taken_at,omitempty" yaml:"taken_at,omitempty"`
}

// LoadSnapshot reads a snapshot from a JSON or YAML file.
func LoadSnapshot(path string) (Snapshot, error) {
	f, err := os.Open(path)
	if err != nil {
		return Snapshot{}, err
	}
	defer func() { _ = f.Close() }()
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")
	return DecodeSnapshot(f, ext)
}

// DecodeSnapshot reads from r to decode a Snapshot in the given format.
func DecodeSnapshot(r io.Reader, format string) (Snapshot, error) {
	var snap Snapshot
	switch strings.ToLower(format) {
	case "yaml", "yml":
		if err := yaml.NewDecoder(r).Decode(&snap); err != nil {
			return snap, err
		}
	case "json":
		if err := json.NewDecoder(r).Decode(&snap); err != nil {
			return snap, err
		}
	default:
		return snap, fmt.Errorf("unsupported snapshot format: %s", format)
	}
	return snap, nil
}
