// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package tracking

import (
	"github.com/relabs-tech/vive_track/internal/device"
)

// ExtractInput turns a raw controller state into trigger and touchpad
// values. Axis values outside their documented range are clamped.
func ExtractInput(st device.ControllerState) device.Input {
	trigger := clamp(st.Axes[device.AxisTrigger].X, 0, 1)
	pad := st.Axes[device.AxisTouchpad]

	return device.Input{
		TriggerPressed:  st.Touched(device.ButtonTrigger) || trigger > 0,
		TriggerClicked:  st.Pressed(device.ButtonTrigger),
		TriggerValue:    trigger,
		TouchPadTouched: st.Touched(device.ButtonTouchpad),
		TouchPadClicked: st.Pressed(device.ButtonTouchpad),
		TouchPadX:       clamp(pad.X, -1, 1),
		TouchPadY:       clamp(pad.Y, -1, 1),
	}
}

func clamp(v, lo, hi float64) float64 {
	return min(max(v, lo), hi)
}
