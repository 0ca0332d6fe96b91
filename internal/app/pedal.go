// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/host/v3"
)

// edgeReader is the part of gpio.PinIn the pedal watcher needs.
type edgeReader interface {
	WaitForEdge(timeout time.Duration) bool
	Read() gpio.Level
}

// OpenPedal configures a GPIO pin as a pulled-up input that reports both
// edges. The pedal shorts the pin to ground while pressed.
func OpenPedal(name string) (gpio.PinIn, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("failed to initialize periph: %w", err)
	}
	pin := gpioreg.ByName(name)
	if pin == nil {
		return nil, fmt.Errorf("freeze pedal: no GPIO pin %q", name)
	}
	if err := pin.In(gpio.PullUp, gpio.BothEdges); err != nil {
		return nil, fmt.Errorf("freeze pedal: configure %s: %w", name, err)
	}
	return pin, nil
}

// WatchPedal freezes every role while the pedal is held and unfreezes on
// release. It returns when ctx is done.
func WatchPedal(ctx context.Context, pin edgeReader, out chan<- Command, logger *slog.Logger) {
	pressed := pin.Read() == gpio.Low
	if pressed {
		send(ctx, out, Command{Action: ActionFreeze})
	}
	for ctx.Err() == nil {
		if !pin.WaitForEdge(100 * time.Millisecond) {
			continue
		}
		now := pin.Read() == gpio.Low
		if now == pressed {
			// bounce
			continue
		}
		pressed = now
		action := ActionUnfreeze
		if pressed {
			action = ActionFreeze
		}
		logger.Debug("freeze pedal", "pressed", pressed)
		send(ctx, out, Command{Action: action})
	}
}

func send(ctx context.Context, out chan<- Command, cmd Command) {
	select {
	case out <- cmd:
	case <-ctx.Done():
	}
}
