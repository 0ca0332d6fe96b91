// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package tracking

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/relabs-tech/vive_track/internal/device"
)

func TestExtractInput(t *testing.T) {
	tests := []struct {
		name  string
		state device.ControllerState
		want  device.Input
	}{
		{
			name: "released",
			want: device.Input{},
		},
		{
			name: "half pulled",
			state: device.ControllerState{
				Axes: [5]device.Axis{device.AxisTrigger: {X: 0.5}},
			},
			want: device.Input{TriggerPressed: true, TriggerValue: 0.5},
		},
		{
			name: "trigger touched at rest",
			state: device.ControllerState{
				ButtonTouched: 1 << device.ButtonTrigger,
			},
			want: device.Input{TriggerPressed: true},
		},
		{
			name: "trigger clicked",
			state: device.ControllerState{
				ButtonPressed: 1 << device.ButtonTrigger,
				ButtonTouched: 1 << device.ButtonTrigger,
				Axes:          [5]device.Axis{device.AxisTrigger: {X: 1}},
			},
			want: device.Input{TriggerPressed: true, TriggerClicked: true, TriggerValue: 1},
		},
		{
			name: "touchpad clicked top left",
			state: device.ControllerState{
				ButtonPressed: 1 << device.ButtonTouchpad,
				ButtonTouched: 1 << device.ButtonTouchpad,
				Axes:          [5]device.Axis{device.AxisTouchpad: {X: -0.75, Y: 0.5}},
			},
			want: device.Input{TouchPadTouched: true, TouchPadClicked: true, TouchPadX: -0.75, TouchPadY: 0.5},
		},
		{
			name: "out of range values are clamped",
			state: device.ControllerState{
				Axes: [5]device.Axis{
					device.AxisTouchpad: {X: 1.5, Y: -3},
					device.AxisTrigger:  {X: 1.2},
				},
			},
			want: device.Input{TriggerPressed: true, TriggerValue: 1, TouchPadX: 1, TouchPadY: -1},
		},
		{
			name: "negative trigger reads as released",
			state: device.ControllerState{
				Axes: [5]device.Axis{device.AxisTrigger: {X: -0.1}},
			},
			want: device.Input{},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ExtractInput(tt.state))
		})
	}
}
