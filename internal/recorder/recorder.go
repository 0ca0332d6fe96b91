// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package recorder stores tracked frames in SQLite. Every process run gets
// its own run id; a frame is only appended when it differs from the last
// one recorded for the same role.
package recorder

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/relabs-tech/vive_track/internal/geom"
)

//go:embed migrations/*.sql
var migrations embed.FS

// Sample is one recorded frame.
type Sample struct {
	ID           int64
	Run          string
	Role         string // e.g. "controller#0"
	Tick         uint64
	RecordedAt   time.Time
	Frame        geom.Frame
	TriggerValue float64
	TouchPadX    float64
	TouchPadY    float64
}

// same reports whether two samples carry the same data, ignoring ids,
// ticks and timestamps.
func (s Sample) same(o Sample) bool {
	return s.Frame == o.Frame &&
		s.TriggerValue == o.TriggerValue &&
		s.TouchPadX == o.TouchPadX &&
		s.TouchPadY == o.TouchPadY
}

// Recorder appends samples for one run.
type Recorder struct {
	db   *sql.DB
	run  string
	now  func() time.Time
	last map[string]Sample
}

// Open opens (or creates) the database at path, migrates it to the latest
// schema and starts a new run.
func Open(path string) (*Recorder, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open recorder db %s: %w", path, err)
	}
	db.SetMaxOpenConns(1)

	r := &Recorder{
		db:   db,
		run:  uuid.NewString(),
		now:  time.Now,
		last: map[string]Sample{},
	}
	if err := r.MigrateUp(); err != nil {
		db.Close()
		return nil, err
	}
	return r, nil
}

func (r *Recorder) newMigrate() (*migrate.Migrate, error) {
	src, err := iofs.New(migrations, "migrations")
	if err != nil {
		return nil, fmt.Errorf("failed to open embedded migrations: %w", err)
	}
	driver, err := sqlite.WithInstance(r.db, &sqlite.Config{})
	if err != nil {
		return nil, fmt.Errorf("failed to create sqlite driver: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", src, "sqlite", driver)
	if err != nil {
		return nil, fmt.Errorf("failed to create migrate instance: %w", err)
	}
	return m, nil
}

// MigrateUp runs all pending migrations.
func (r *Recorder) MigrateUp() error {
	m, err := r.newMigrate()
	if err != nil {
		return err
	}
	// Not closed: closing m would close the shared *sql.DB.
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migration up failed: %w", err)
	}
	return nil
}

// Version returns the schema version (0 before any migration).
func (r *Recorder) Version() (uint, bool, error) {
	m, err := r.newMigrate()
	if err != nil {
		return 0, false, err
	}
	version, dirty, err := m.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		return 0, false, nil
	}
	return version, dirty, err
}

// Run returns the id of the current run.
func (r *Recorder) Run() string {
	return r.run
}

// Record appends s to the current run unless it matches the last sample of
// the same role. It reports whether a row was written.
func (r *Recorder) Record(s Sample) (bool, error) {
	if prev, ok := r.last[s.Role]; ok && prev.same(s) {
		return false, nil
	}
	s.Run = r.run
	if s.RecordedAt.IsZero() {
		s.RecordedAt = r.now()
	}

	f := s.Frame
	res, err := r.db.Exec(`
		INSERT INTO frames (
			run_id, role, tick, recorded_at,
			origin_x, origin_y, origin_z,
			x_axis_x, x_axis_y, x_axis_z,
			y_axis_x, y_axis_y, y_axis_z,
			trigger_value, touchpad_x, touchpad_y
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		s.Run, s.Role, int64(s.Tick), s.RecordedAt.UnixNano(),
		f.Origin[0], f.Origin[1], f.Origin[2],
		f.XAxis[0], f.XAxis[1], f.XAxis[2],
		f.YAxis[0], f.YAxis[1], f.YAxis[2],
		s.TriggerValue, s.TouchPadX, s.TouchPadY,
	)
	if err != nil {
		return false, fmt.Errorf("insert frame %s: %w", s.Role, err)
	}
	if s.ID, err = res.LastInsertId(); err != nil {
		return false, fmt.Errorf("insert frame %s: %w", s.Role, err)
	}
	r.last[s.Role] = s
	return true, nil
}

// Flush drops every sample of the current run.
func (r *Recorder) Flush() error {
	if _, err := r.db.Exec(`DELETE FROM frames WHERE run_id = ?`, r.run); err != nil {
		return fmt.Errorf("flush run %s: %w", r.run, err)
	}
	clear(r.last)
	return nil
}

// Frames lists the current run's samples for role ("" for every role) in
// recording order.
func (r *Recorder) Frames(role string) ([]Sample, error) {
	return r.RunFrames(r.run, role)
}

// RunFrames lists the samples of any run.
func (r *Recorder) RunFrames(run, role string) ([]Sample, error) {
	rows, err := r.db.Query(`
		SELECT frame_id, run_id, role, tick, recorded_at,
			origin_x, origin_y, origin_z,
			x_axis_x, x_axis_y, x_axis_z,
			y_axis_x, y_axis_y, y_axis_z,
			trigger_value, touchpad_x, touchpad_y
		FROM frames
		WHERE run_id = ? AND (? = '' OR role = ?)
		ORDER BY frame_id`, run, role, role)
	if err != nil {
		return nil, fmt.Errorf("query frames: %w", err)
	}
	defer rows.Close()

	var out []Sample
	for rows.Next() {
		var (
			s    Sample
			tick int64
			at   int64
		)
		f := &s.Frame
		if err := rows.Scan(&s.ID, &s.Run, &s.Role, &tick, &at,
			&f.Origin[0], &f.Origin[1], &f.Origin[2],
			&f.XAxis[0], &f.XAxis[1], &f.XAxis[2],
			&f.YAxis[0], &f.YAxis[1], &f.YAxis[2],
			&s.TriggerValue, &s.TouchPadX, &s.TouchPadY,
		); err != nil {
			return nil, fmt.Errorf("scan frame: %w", err)
		}
		s.Tick = uint64(tick)
		s.RecordedAt = time.Unix(0, at)
		out = append(out, s)
	}
	return out, rows.Err()
}

// Runs lists every run id in the database, oldest first.
func (r *Recorder) Runs() ([]string, error) {
	rows, err := r.db.Query(`SELECT run_id FROM frames GROUP BY run_id ORDER BY MIN(frame_id)`)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var runs []string
	for rows.Next() {
		var run string
		if err := rows.Scan(&run); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

func (r *Recorder) Close() error {
	return r.db.Close()
}
