// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package main

import (
	"log"

	"github.com/spf13/pflag"

	"github.com/relabs-tech/vive_track/internal/app"
	"github.com/relabs-tech/vive_track/internal/config"
	applog "github.com/relabs-tech/vive_track/internal/log"
)

func main() {
	configPath := pflag.StringP("config", "c", "vivetrack_config.txt", "Path to configuration file")
	pflag.Parse()

	log.Println("starting vive_track tracker (MQTT publisher)")

	// Load configuration
	if err := config.InitGlobal(*configPath); err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	applog.Init(config.Get().LogLevel)

	if err := app.RunTracker(); err != nil {
		log.Fatalf("fatal: %v", err)
	}
}
