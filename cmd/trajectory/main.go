// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package main

import (
	"log"

	"github.com/spf13/pflag"

	"github.com/relabs-tech/vive_track/internal/config"
	"github.com/relabs-tech/vive_track/internal/recorder"
)

// trajectory plots a recorded run (top view) from RECORDER_DB.
func main() {
	configPath := pflag.StringP("config", "c", "vivetrack_config.txt", "Path to configuration file")
	db := pflag.String("db", "", "Recorder database (default: RECORDER_DB)")
	run := pflag.String("run", "", "Run id (default: the latest run)")
	role := pflag.String("role", "", "Only plot this role, e.g. controller#0")
	out := pflag.StringP("out", "o", "vivetrack_trajectory.png", "Output image (.png, .svg, .pdf)")
	pflag.Parse()

	if err := config.InitGlobal(*configPath); err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	if *db == "" {
		*db = config.Get().RecorderDB
	}
	if *db == "" {
		log.Fatalf("no recorder database: set RECORDER_DB or --db")
	}

	rec, err := recorder.Open(*db)
	if err != nil {
		log.Fatalf("fatal: %v", err)
	}
	defer rec.Close()

	if *run == "" {
		runs, err := rec.Runs()
		if err != nil {
			log.Fatalf("fatal: %v", err)
		}
		if len(runs) == 0 {
			log.Fatalf("no runs recorded in %s", *db)
		}
		*run = runs[len(runs)-1]
	}

	samples, err := rec.RunFrames(*run, *role)
	if err != nil {
		log.Fatalf("fatal: %v", err)
	}
	if err := recorder.PlotTrajectory(samples, "run "+*run, *out); err != nil {
		log.Fatalf("fatal: %v", err)
	}
	log.Printf("plotted %d samples of run %s to %s", len(samples), *run, *out)
}
