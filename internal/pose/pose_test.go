// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package pose

import (
	"math"
	"testing"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"

	"github.com/relabs-tech/vive_track/internal/device"
	"github.com/relabs-tech/vive_track/internal/geom"
)

var approx = cmpopts.EquateApprox(0, 1e-9)

func handle(class device.Class, m [16]float64, transpose bool) *device.TrackedDevice {
	return &device.TrackedDevice{Class: class, NativeClass: class.Native(), RawPose: m, Transpose: transpose, PoseValid: true}
}

func TestUnpack(t *testing.T) {
	canonical := [16]float64(mgl64.Translate3D(1, 2, 3))

	// runtime-style row-major 3x4 padded to 4x4
	native := [16]float64{
		1, 0, 0, 1,
		0, 1, 0, 2,
		0, 0, 1, 3,
		0, 0, 0, 1,
	}

	assert.Equal(t, canonical, Unpack(canonical, false))
	assert.Equal(t, canonical, Unpack(native, true))
	assert.Equal(t, Unpack(native, true), Unpack(Unpack(native, true), false))
}

func TestFrameFromNative(t *testing.T) {
	m := mgl64.Translate3D(4, 5, 6).Mul4(mgl64.HomogRotate3DZ(math.Pi / 2))

	f := FrameFromNative(m, false)
	want := geom.Frame{
		Origin: mgl64.Vec3{4, 5, 6},
		XAxis:  mgl64.Vec3{0, 1, 0},
		YAxis:  mgl64.Vec3{-1, 0, 0},
	}
	if diff := cmp.Diff(want, f, approx); diff != "" {
		t.Errorf("frame mismatch (-want +got):\n%s", diff)
	}

	ft := FrameFromNative(m.Transpose(), true)
	if diff := cmp.Diff(f, ft, approx); diff != "" {
		t.Errorf("transposed frame mismatch (-want +got):\n%s", diff)
	}
}

func TestToApp(t *testing.T) {
	assert.Equal(t, [16]float64(mgl64.Ident4()), ToApp(mgl64.Ident4()))

	// runtime Y-up position 1.7m above the floor
	m := ToApp(mgl64.Translate3D(1, 1.7, 2))
	o := FrameFromNative(m, false).Origin
	assert.True(t, o.ApproxEqualThreshold(mgl64.Vec3{1, -2, 1.7}, 1e-12), "got %v", o)

	// yaw about the runtime up axis is yaw about the application up axis
	yaw := FrameFromNative(ToApp(mgl64.HomogRotate3DY(0.3)), false)
	want := geom.FrameFromMatrix(mgl64.HomogRotate3DZ(0.3))
	if diff := cmp.Diff(want, yaw, approx); diff != "" {
		t.Errorf("yaw mismatch (-want +got):\n%s", diff)
	}
}

func TestCorrect_Identity(t *testing.T) {
	for _, c := range []device.Class{device.ClassHMD, device.ClassController, device.ClassLighthouse} {
		d := handle(c, mgl64.Ident4(), true)
		f := DeviceFrame(d)
		assert.True(t, f.ApproxEqual(geom.IdentityFrame(), 1e-12), "%s: %+v", c, f)
	}
}

func TestCorrect_TrackerBasis(t *testing.T) {
	d := handle(device.ClassTracker, mgl64.Ident4(), false)
	f := DeviceFrame(d)

	want := geom.Frame{
		XAxis: mgl64.Vec3{1, 0, 0},
		YAxis: mgl64.Vec3{0, 0, -1},
	}
	if diff := cmp.Diff(want, f, approx); diff != "" {
		t.Errorf("tracker frame mismatch (-want +got):\n%s", diff)
	}
}

func TestCorrect_RunsOnce(t *testing.T) {
	raw := mgl64.Translate3D(0.2, 1.1, -0.4).Mul4(mgl64.HomogRotate3DY(0.9))
	d := handle(device.ClassTracker, raw.Transpose(), true)

	first := DeviceFrame(d)
	assert.True(t, d.Corrected())
	corrected := d.CorrectedPose

	Correct(d)
	Correct(d)
	second := DeviceFrame(d)

	assert.Equal(t, corrected, d.CorrectedPose)
	assert.Equal(t, first, second)
	assert.Equal(t, [16]float64(raw.Transpose()), d.RawPose, "raw pose must stay untouched")
}

func TestCorrect_FrameIsRigid(t *testing.T) {
	raw := mgl64.Translate3D(-1, 2, 0.5).Mul4(mgl64.HomogRotate3DX(0.3)).Mul4(mgl64.HomogRotate3DY(-1.2))
	for _, c := range device.Classes {
		d := handle(c, raw, false)
		assert.NoError(t, geom.ValidateRigid(DeviceFrame(d).Matrix()), c.String())
	}
}
