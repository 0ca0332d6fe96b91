// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/relabs-tech/vive_track/internal/device"
	"github.com/relabs-tech/vive_track/internal/geom"
	"github.com/relabs-tech/vive_track/internal/tracking"
)

// FrameMessage is one role in a published tick.
type FrameMessage struct {
	Role      string        `json:"role"` // e.g. "controller#0"
	Class     device.Class  `json:"class"`
	Ordinal   int           `json:"ordinal"`
	Available bool          `json:"available"`
	Tracked   bool          `json:"tracked"` // false: frozen or dropped out
	DeviceID  int           `json:"device_id"`
	Tick      uint64        `json:"tick"`
	Frame     geom.Frame    `json:"frame"`
	Input     *device.Input `json:"input,omitempty"`
}

// TickMessage is what the tracker publishes on TOPIC_FRAMES every tick.
type TickMessage struct {
	Session    string         `json:"session"`
	Tick       uint64         `json:"tick"`
	Time       time.Time      `json:"time"`
	Connected  bool           `json:"connected"`
	Frozen     bool           `json:"frozen"`
	Calibrated bool           `json:"calibrated"`
	Frames     []FrameMessage `json:"frames"`
}

// Find returns the frame of a role.
func (m TickMessage) Find(role string) (FrameMessage, bool) {
	for _, f := range m.Frames {
		if f.Role == role {
			return f, true
		}
	}
	return FrameMessage{}, false
}

func frameMessage(r tracking.Result) FrameMessage {
	msg := FrameMessage{
		Role:      r.Key.String(),
		Class:     r.Key.Class,
		Ordinal:   r.Key.Ordinal,
		Available: r.Available,
		Tracked:   r.Tracked,
		DeviceID:  r.DeviceID,
		Tick:      r.Tick,
		Frame:     r.Frame,
	}
	if r.Available && r.Key.Class == device.ClassController {
		in := r.Input
		msg.Input = &in
	}
	return msg
}

// Command actions accepted on TOPIC_COMMANDS and the web socket.
const (
	ActionCalibrate        = "calibrate"
	ActionResetCalibration = "reset_calibration"
	ActionFreeze           = "freeze"
	ActionUnfreeze         = "unfreeze"
	ActionPreview          = "preview"
	ActionFlush            = "flush"
)

// Command asks the tracker loop to change state. Role is a slot key such
// as "controller#0"; an empty role means every role for freeze and
// unfreeze and controller#0 for calibrate.
type Command struct {
	Action  string `json:"action"`
	Role    string `json:"role,omitempty"`
	Enabled *bool  `json:"enabled,omitempty"` // preview only
}

// ParseCommand decodes and validates a command payload.
func ParseCommand(payload []byte) (Command, error) {
	var cmd Command
	if err := json.Unmarshal(payload, &cmd); err != nil {
		return Command{}, fmt.Errorf("decode command: %w", err)
	}
	if err := cmd.Validate(); err != nil {
		return Command{}, err
	}
	return cmd, nil
}

// Validate checks the action and its arguments.
func (c Command) Validate() error {
	switch c.Action {
	case ActionCalibrate, ActionFreeze, ActionUnfreeze:
		if c.Role == "" {
			return nil
		}
		if _, err := tracking.ParseSlotKey(c.Role); err != nil {
			return fmt.Errorf("command %s: %w", c.Action, err)
		}
	case ActionPreview:
		if c.Enabled == nil {
			return fmt.Errorf("command preview: enabled is required")
		}
	case ActionResetCalibration, ActionFlush:
	default:
		return fmt.Errorf("unknown command action %q", c.Action)
	}
	return nil
}
