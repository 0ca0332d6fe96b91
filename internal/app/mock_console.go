// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"fmt"
	"time"

	"github.com/relabs-tech/vive_track/internal/config"
	"github.com/relabs-tech/vive_track/internal/log"
	"github.com/relabs-tech/vive_track/internal/runtime"
	"github.com/relabs-tech/vive_track/internal/tracking"
)

// RunMockConsole runs the pipeline in-process on the simulated runtime and
// prints it, no broker needed. ticks <= 0 runs until killed.
func RunMockConsole(ticks int) error {
	cfg := config.Get()

	session, err := tracking.NewSession(runtime.NewSimulated(cfg.SimTrackers),
		tracking.WithLogger(log.L()),
		tracking.WithCalibrationComposition(cfg.ComposeCalibration))
	if err != nil {
		return err
	}
	defer session.Close()

	tracker := NewTracker(session, TrackerOptions{
		TrackerSlots: cfg.SimTrackers,
		PreviewMesh:  false,
	}, nil, log.L())

	ticker := time.NewTicker(time.Duration(cfg.ConsoleLogInterval) * time.Millisecond)
	defer ticker.Stop()

	for n := 0; ticks <= 0 || n < ticks; n++ {
		<-ticker.C
		fmt.Print(FormatTick(tracker.Step()))
	}
	return nil
}
