// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package calibration

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/relabs-tech/vive_track/internal/geom"
)

// SchemaVersion is the current calibration file version.
const SchemaVersion = 1

// ErrSchemaVersion is returned by Load for files written by a newer tool.
var ErrSchemaVersion = errors.New("calibration: unsupported schema version")

// Record is the on-disk calibration.
type Record struct {
	SchemaVersion int        `json:"schema_version"`
	CalibrationAt time.Time  `json:"calibration_at"`
	Source        string     `json:"source,omitempty"` // e.g. "controller#0"
	Samples       int        `json:"samples,omitempty"`
	Enabled       bool       `json:"enabled"`
	Reference     geom.Frame `json:"reference"`
}

// Snapshot captures the current state as a record.
func (s *State) Snapshot(source string, samples int) Record {
	return Record{
		SchemaVersion: SchemaVersion,
		CalibrationAt: time.Now().UTC(),
		Source:        source,
		Samples:       samples,
		Enabled:       s.enabled,
		Reference:     s.reference,
	}
}

// Restore applies a loaded record to the state.
func (s *State) Restore(rec Record) error {
	return s.Set(rec.Reference, rec.Enabled)
}

// Save writes rec as indented JSON.
func Save(path string, rec Record) error {
	if rec.SchemaVersion == 0 {
		rec.SchemaVersion = SchemaVersion
	}
	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal calibration: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write calibration %s: %w", path, err)
	}
	return nil
}

// Load reads a calibration file written by Save.
func Load(path string) (Record, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Record{}, fmt.Errorf("read calibration %s: %w", path, err)
	}
	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return Record{}, fmt.Errorf("parse calibration %s: %w", path, err)
	}
	if rec.SchemaVersion > SchemaVersion {
		return Record{}, fmt.Errorf("%w: %d", ErrSchemaVersion, rec.SchemaVersion)
	}
	return rec, nil
}
