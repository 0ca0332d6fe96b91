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
	ticks := pflag.IntP("ticks", "n", 0, "Number of ticks to print (0: until interrupted)")
	pflag.Parse()

	log.Println("starting vive_track (mock console, simulated runtime)")

	if err := config.InitGlobal(*configPath); err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	applog.Init(config.Get().LogLevel)

	if err := app.RunMockConsole(*ticks); err != nil {
		log.Fatalf("fatal: %v", err)
	}
}
