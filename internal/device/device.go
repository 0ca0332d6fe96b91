// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package device

// Raw is one entry of the device table reported by the VR runtime for a
// single tick.
type Raw struct {
	ID          int         `json:"id"`           // native ordinal id
	NativeClass uint32      `json:"native_class"` // ETrackedDeviceClass code
	Connected   bool        `json:"connected"`
	PoseValid   bool        `json:"pose_valid"`
	Pose        [16]float64 `json:"pose"`      // native pose, see Transpose
	Transpose   bool        `json:"transpose"` // true: Pose is the transpose of the canonical layout
}

// Table is the full per-tick device table.
type Table []Raw

// Axis is one analog axis pair of a controller.
type Axis struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Controller button ids used in the pressed/touched bitmasks.
const (
	ButtonTouchpad = 32
	ButtonTrigger  = 33
)

// Controller axis slots.
const (
	AxisTouchpad = 0
	AxisTrigger  = 1
)

// ControllerState is the raw controller state as reported by the runtime.
type ControllerState struct {
	PacketNum     uint32  `json:"packet_num"`
	ButtonPressed uint64  `json:"button_pressed"`
	ButtonTouched uint64  `json:"button_touched"`
	Axes          [5]Axis `json:"axes"`
}

// Pressed reports whether button id is fully pressed.
func (s ControllerState) Pressed(id uint) bool {
	return s.ButtonPressed&(1<<id) != 0
}

// Touched reports whether button id is touched.
func (s ControllerState) Touched(id uint) bool {
	return s.ButtonTouched&(1<<id) != 0
}

// Input is the extracted trigger/touchpad state of a controller.
type Input struct {
	TriggerPressed  bool    `json:"trigger_pressed"`
	TriggerClicked  bool    `json:"trigger_clicked"`
	TriggerValue    float64 `json:"trigger_value"`     // 0 (released) .. 1 (fully pressed)
	TouchPadTouched bool    `json:"touchpad_touched"`
	TouchPadClicked bool    `json:"touchpad_clicked"`
	TouchPadX       float64 `json:"touchpad_x"` // -1 (left) .. 1 (right)
	TouchPadY       float64 `json:"touchpad_y"` // -1 (bottom) .. 1 (top)
}

// TrackedDevice is the per-tick handle for one device. Handles are
// replaced wholesale on every registry rebuild; within a tick they are
// stable. Only the pose converter writes CorrectedPose.
type TrackedDevice struct {
	ID          int
	Class       Class
	NativeClass uint32
	PoseValid   bool
	RawPose     [16]float64
	Transpose   bool

	// CorrectedPose is in canonical layout once Corrected reports true.
	CorrectedPose [16]float64
	corrected     bool

	// Input is refreshed on tracked controller queries only.
	Input Input
}

func newTrackedDevice(r Raw) *TrackedDevice {
	return &TrackedDevice{
		ID:          r.ID,
		Class:       Classify(r.NativeClass),
		NativeClass: r.NativeClass,
		PoseValid:   r.PoseValid,
		RawPose:     r.Pose,
		Transpose:   r.Transpose,
	}
}

// Corrected reports whether the corrective pass already ran on this handle.
func (d *TrackedDevice) Corrected() bool {
	return d.corrected
}

// SetCorrectedPose stores the result of the corrective pass and marks the
// handle as corrected.
func (d *TrackedDevice) SetCorrectedPose(m [16]float64) {
	d.CorrectedPose = m
	d.corrected = true
}
