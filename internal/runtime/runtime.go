// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package runtime is the boundary to the VR runtime that reports device
// poses and controller state once per tick.
//
// Implementations:
//   - Simulated: synthetic smooth motion, no hardware needed
//   - Scripted: replays a fixed list of ticks (tests, replays)
//   - Serial: a tracking bridge streaming NMEA-style sentences over a serial port
package runtime

import (
	"errors"
	"fmt"

	"github.com/relabs-tech/vive_track/internal/device"
)

// Runtime is anything that can provide device tables over time.
type Runtime interface {
	// Connect opens the runtime. It may be called again after a failure.
	Connect() error
	// UpdateTick returns the device table of the next tick.
	UpdateTick() (device.Table, error)
	// QueryControllerState returns the latest button/axis state of the
	// device with native id.
	QueryControllerState(id int) (device.ControllerState, error)
	Close() error
}

var (
	// ErrRuntimeNotDetected is returned when the VR runtime is not running.
	ErrRuntimeNotDetected = errors.New("vr runtime not detected")
	// ErrConnectionFailed is matched by every *ConnectionError.
	ErrConnectionFailed = errors.New("vr runtime connection failed")
	// ErrNotConnected is returned by tick calls made before Connect.
	ErrNotConnected = errors.New("vr runtime not connected")
)

// ConnectionError reports a failed runtime connection with the runtime's
// own diagnostic text.
type ConnectionError struct {
	Diagnostic string
	Err        error
}

func (e *ConnectionError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%v: %s: %v", ErrConnectionFailed, e.Diagnostic, e.Err)
	}
	return fmt.Sprintf("%v: %s", ErrConnectionFailed, e.Diagnostic)
}

func (e *ConnectionError) Is(target error) bool {
	return target == ErrConnectionFailed
}

func (e *ConnectionError) Unwrap() error {
	return e.Err
}
