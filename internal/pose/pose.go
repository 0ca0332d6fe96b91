// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package pose converts raw device poses reported by the VR runtime into
// application frames.
//
// The runtime works in a Y-up world and hands out 16-value matrices that may
// be stored transposed. The application works in a Z-up world (X right,
// Y forward, Z up). Trackers additionally mount their sensor with a different
// local basis than every other device, so their pose is rotated once before
// the axis change.
//
// The canonical layout of a flat matrix is:
//
//	[ 0  1  2  3]   X axis, 0
//	[ 4  5  6  7]   Y axis, 0
//	[ 8  9 10 11]   Z axis, 0
//	[12 13 14 15]   origin, 1
//
// which is the memory layout of mgl64.Mat4.
package pose

import (
	"github.com/go-gl/mathgl/mgl64"

	"github.com/relabs-tech/vive_track/internal/device"
	"github.com/relabs-tech/vive_track/internal/geom"
)

var (
	// vrToApp maps runtime axes onto application axes: (x, y, z) -> (x, -z, y).
	// It is a +90° rotation about X written out exactly.
	vrToApp = mgl64.Mat4{
		1, 0, 0, 0,
		0, 0, 1, 0,
		0, -1, 0, 0,
		0, 0, 0, 1,
	}
	appToVR = vrToApp.Transpose()

	// trackerBasis re-orients the tracker's local axes so that its Y axis
	// points out of the mounting face like a controller (-90° about X).
	trackerBasis = mgl64.Mat4{
		1, 0, 0, 0,
		0, 0, -1, 0,
		0, 1, 0, 0,
		0, 0, 0, 1,
	}
)

// Unpack returns m in canonical layout. With transpose set, m is read as
// the transpose of the canonical layout (row-major, column-vector matrix).
func Unpack(m [16]float64, transpose bool) [16]float64 {
	if !transpose {
		return m
	}
	return mgl64.Mat4(m).Transpose()
}

// FrameFromNative builds a frame from the translation and the first two
// basis vectors of m. The axes are taken as reported; orthonormality of a
// runtime pose is assumed.
func FrameFromNative(m [16]float64, transpose bool) geom.Frame {
	return geom.FrameFromMatrix(mgl64.Mat4(Unpack(m, transpose)))
}

// ToApp applies the runtime-to-application axis change to a canonical
// matrix. Identity maps to identity.
func ToApp(m [16]float64) [16]float64 {
	return vrToApp.Mul4(mgl64.Mat4(m)).Mul4(appToVR)
}

// Correct runs the corrective pass on d: tracker basis rotation for
// trackers, then the axis change for every class. The pass runs at most
// once per handle; later calls within the same tick are no-ops. The raw
// pose is never modified.
func Correct(d *device.TrackedDevice) {
	if d.Corrected() {
		return
	}
	m := mgl64.Mat4(Unpack(d.RawPose, d.Transpose))
	if d.Class == device.ClassTracker {
		m = m.Mul4(trackerBasis)
	}
	d.SetCorrectedPose(ToApp(m))
}

// DeviceFrame returns the corrected, uncalibrated frame of d.
func DeviceFrame(d *device.TrackedDevice) geom.Frame {
	Correct(d)
	return FrameFromNative(d.CorrectedPose, false)
}
