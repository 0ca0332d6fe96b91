// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package main

import (
	"iter"
	"log"
	"os"
	"time"

	"github.com/spf13/pflag"

	"github.com/relabs-tech/vive_track/internal/app"
	"github.com/relabs-tech/vive_track/internal/config"
	applog "github.com/relabs-tech/vive_track/internal/log"
	"github.com/relabs-tech/vive_track/internal/preview"
	"github.com/relabs-tech/vive_track/internal/snapshot"
)

// snapshot runs the tracker for a few ticks without MQTT and renders the
// preview meshes of every role to a PNG.
func main() {
	configPath := pflag.StringP("config", "c", "vivetrack_config.txt", "Path to configuration file")
	out := pflag.StringP("out", "o", "vivetrack_snapshot.png", "Output PNG file")
	ticks := pflag.IntP("ticks", "n", 30, "Ticks to run before rendering")
	opts := snapshot.DefaultOptions()
	pflag.IntVar(&opts.Width, "width", opts.Width, "Image width in pixels")
	pflag.IntVar(&opts.Height, "height", opts.Height, "Image height in pixels")
	pflag.Float64Var(&opts.Scale, "scale", opts.Scale, "Pixels per metre")
	pflag.Parse()

	if err := config.InitGlobal(*configPath); err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	cfg := config.Get()
	applog.Init(cfg.LogLevel)

	session, err := app.NewSessionFromConfig(cfg, applog.L())
	if err != nil {
		log.Fatalf("fatal: %v", err)
	}
	defer session.Close()

	tracker := app.NewTracker(session, app.TrackerOptions{
		TrackerSlots: cfg.TrackerSlots,
		PreviewMesh:  true,
	}, nil, applog.L())
	for range *ticks {
		tracker.Step()
		time.Sleep(cfg.Tick())
	}

	var streams []iter.Seq[preview.Vertex]
	for _, slot := range session.Slots() {
		streams = append(streams, slot.Projector().Vertices())
	}
	if len(streams) == 0 {
		log.Fatalf("no device was tracked in %d ticks", *ticks)
	}

	f, err := os.Create(*out)
	if err != nil {
		log.Fatalf("fatal: %v", err)
	}
	defer f.Close()
	if err := snapshot.WritePNG(f, opts, streams...); err != nil {
		log.Fatalf("fatal: %v", err)
	}
	log.Printf("wrote %s (%d roles)", *out, len(streams))
}
