// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/relabs-tech/vive_track/internal/calibration"
	"github.com/relabs-tech/vive_track/internal/config"
	"github.com/relabs-tech/vive_track/internal/device"
	"github.com/relabs-tech/vive_track/internal/geom"
	"github.com/relabs-tech/vive_track/internal/log"
	"github.com/relabs-tech/vive_track/internal/tracking"
)

// ErrTooFewSamples is returned when the device was visible in fewer than
// half of the capture ticks.
var ErrTooFewSamples = errors.New("calibration capture: too few samples")

// CaptureStats describes a finished capture.
type CaptureStats struct {
	Samples      int        `json:"samples"`
	Missed       int        `json:"missed"`
	OriginStdDev [3]float64 `json:"origin_stddev"` // metres
}

// CaptureReference updates the session ticks times, waiting on wait before
// each update, and averages the uncalibrated frame of key. The device
// should be held still.
func CaptureReference(session *tracking.Session, key tracking.SlotKey, ticks int, wait func()) (geom.Frame, CaptureStats, error) {
	var origins, xs, ys [][3]float64
	var stats CaptureStats

	cfg := tracking.DefaultQueryConfig()
	cfg.Ordinal = key.Ordinal
	cfg.PreviewMesh = false

	for range ticks {
		if wait != nil {
			wait()
		}
		if err := session.Update(); err != nil {
			return geom.Frame{}, stats, err
		}
		r, err := session.Query(key.Class, cfg)
		if errors.Is(err, device.ErrDeviceNotFound) {
			stats.Missed++
			continue
		}
		if err != nil {
			return geom.Frame{}, stats, err
		}
		f := r.DeviceFrame
		origins = append(origins, f.Origin)
		xs = append(xs, f.XAxis)
		ys = append(ys, f.YAxis)
	}

	stats.Samples = len(origins)
	if stats.Samples == 0 || stats.Samples*2 < ticks {
		return geom.Frame{}, stats, fmt.Errorf("%w: %s seen in %d of %d ticks", ErrTooFewSamples, key, stats.Samples, ticks)
	}
	for axis := range 3 {
		stats.OriginStdDev[axis] = stddev(origins, axis)
	}

	ref, err := geom.NewFrame(meanVec(origins), meanVec(xs), meanVec(ys))
	if err != nil {
		return geom.Frame{}, stats, fmt.Errorf("calibration capture: %w", err)
	}
	return ref, stats, nil
}

func meanVec(data [][3]float64) mgl64.Vec3 {
	return mgl64.Vec3{mean(data, 0), mean(data, 1), mean(data, 2)}
}

// Helper functions for statistics
func mean(data [][3]float64, axis int) float64 {
	sum := 0.0
	for _, v := range data {
		sum += v[axis]
	}
	return sum / float64(len(data))
}

func stddev(data [][3]float64, axis int) float64 {
	if len(data) == 0 {
		return 0
	}
	m := mean(data, axis)
	variance := 0.0
	for _, v := range data {
		diff := v[axis] - m
		variance += diff * diff
	}
	variance /= float64(len(data))
	return math.Sqrt(variance)
}

// RunCalibration captures the reference from one role, applies it and
// writes CALIBRATION_FILE.
func RunCalibration(role string, ticks int) error {
	cfg := config.Get()
	logger := log.With("component", "calibration")

	key, err := tracking.ParseSlotKey(role)
	if err != nil {
		return err
	}

	session, err := NewSessionFromConfig(cfg, logger)
	if err != nil {
		return err
	}
	defer session.Close()

	if err := session.Connect(); err != nil {
		return err
	}

	ticker := time.NewTicker(cfg.Tick())
	defer ticker.Stop()

	logger.Info("hold the device still", "role", key.String(), "ticks", ticks)
	ref, stats, err := CaptureReference(session, key, ticks, func() { <-ticker.C })
	if err != nil {
		return err
	}
	if err := session.Calibrate(ref, true); err != nil {
		return err
	}
	if err := calibration.Save(cfg.CalibrationFile, session.Calibration().Snapshot(key.String(), stats.Samples)); err != nil {
		return err
	}

	logger.Info("calibration saved",
		"file", cfg.CalibrationFile,
		"samples", stats.Samples,
		"missed", stats.Missed,
		"origin", ref.Origin,
		"origin_stddev", stats.OriginStdDev)
	return nil
}
