// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// ./cmd/calibration/main.go
//
// Guided calibration of the tracking space. The chosen device (a controller
// by default) is held still at the spot that should become the origin; its
// frame is averaged over a number of ticks and becomes the calibration
// reference. Every frame the tracker publishes is then expressed relative
// to it.
//
// Output:
//
//	Writes CALIBRATION_FILE (JSON) with the reference frame, source role,
//	sample count and calibration time. The tracker loads it on start-up.
//
// Run:
//
//	go run ./cmd/calibration --role controller#0 --ticks 180
package main

import (
	"bufio"
	"fmt"
	"log"
	"os"

	"github.com/spf13/pflag"

	"github.com/relabs-tech/vive_track/internal/app"
	"github.com/relabs-tech/vive_track/internal/config"
	applog "github.com/relabs-tech/vive_track/internal/log"
)

func main() {
	in := bufio.NewReader(os.Stdin)

	configPath := pflag.StringP("config", "c", "vivetrack_config.txt", "Path to configuration file")
	role := pflag.StringP("role", "r", "controller#0", "Role whose frame becomes the origin")
	ticks := pflag.IntP("ticks", "n", 180, "Ticks to average")
	pflag.Parse()

	if err := config.InitGlobal(*configPath); err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	applog.Init(config.Get().LogLevel)

	fmt.Printf("Calibration will store its result in %s\n", config.Get().CalibrationFile)
	fmt.Printf("Place %s where the tracking origin should be and keep it still.\n", *role)
	waitEnter(in, "Press ENTER to start capture...")

	if err := app.RunCalibration(*role, *ticks); err != nil {
		log.Fatalf("calibration failed: %v", err)
	}
	fmt.Println("Done.")
}

func waitEnter(in *bufio.Reader, prompt string) {
	fmt.Print(prompt)
	_, _ = in.ReadString('\n')
}
