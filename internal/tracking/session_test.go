// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package tracking

import (
	"errors"
	"image/color"
	"slices"
	"testing"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	ps "github.com/mitchellh/go-ps"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relabs-tech/vive_track/internal/device"
	"github.com/relabs-tech/vive_track/internal/geom"
	"github.com/relabs-tech/vive_track/internal/preview"
	"github.com/relabs-tech/vive_track/internal/runtime"
)

var approx = cmpopts.EquateApprox(0, 1e-9)

func entry(id int, native uint32, m mgl64.Mat4) device.Raw {
	return device.Raw{ID: id, NativeClass: native, Connected: true, PoseValid: true, Pose: m}
}

func tick(entries ...device.Raw) runtime.Tick {
	return runtime.Tick{Table: entries}
}

func triggerAt(v float64) map[int]device.ControllerState {
	st := device.ControllerState{}
	st.Axes[device.AxisTrigger].X = v
	return map[int]device.ControllerState{1: st}
}

// newSession returns a connected session over a scripted runtime.
func newSession(t *testing.T, opts []Option, ticks ...runtime.Tick) (*Session, *runtime.Scripted) {
	t.Helper()
	rt := runtime.NewScripted(ticks...)
	s, err := NewSession(rt, opts...)
	require.NoError(t, err)
	require.NoError(t, s.Connect())
	return s, rt
}

func untracked() QueryConfig {
	cfg := DefaultQueryConfig()
	cfg.Tracked = false
	return cfg
}

func TestDefaultQueryConfig(t *testing.T) {
	assert.Equal(t, QueryConfig{Ordinal: 0, Tracked: true, PreviewMesh: true}, DefaultQueryConfig())
}

func TestIdentityPoseGivesWorldOrigin(t *testing.T) {
	s, _ := newSession(t, nil, tick(entry(0, device.NativeHMD, mgl64.Ident4())))
	require.NoError(t, s.Update())

	res, err := s.HMD(true)
	require.NoError(t, err)
	require.True(t, res.Available)
	assert.Equal(t, geom.IdentityFrame(), res.Frame)
}

// Scenario A
func TestZeroHMDs(t *testing.T) {
	s, _ := newSession(t, nil, tick(entry(0, device.NativeController, mgl64.Ident4())))
	require.NoError(t, s.Update())

	_, err := s.HMD(true)
	assert.ErrorIs(t, err, device.ErrDeviceNotFound)

	_, ok := s.Slot(device.ClassHMD, 0)
	assert.False(t, ok)

	res, err := s.HMD(false)
	require.NoError(t, err)
	assert.False(t, res.Available, "frame must stay undefined, not identity")
	assert.Equal(t, geom.Frame{}, res.Frame)
}

// Scenarios B and C
func TestControllerTrackedThenFrozen(t *testing.T) {
	s, rt := newSession(t, nil,
		runtime.Tick{Table: device.Table{entry(1, device.NativeController, mgl64.Translate3D(1, 0, 0))}, Controllers: triggerAt(0.4)},
		runtime.Tick{Table: device.Table{entry(1, device.NativeController, mgl64.Translate3D(2, 0, 0))}, Controllers: triggerAt(0.9)},
	)

	require.NoError(t, s.Update())
	res, err := s.Controller(0, true)
	require.NoError(t, err)
	assert.True(t, res.Tracked)
	if diff := cmp.Diff(mgl64.Vec3{1, 0, 0}, res.Frame.Origin, approx); diff != "" {
		t.Errorf("origin mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, 0.4, res.Input.TriggerValue)
	assert.True(t, res.Input.TriggerPressed)

	require.NoError(t, s.Update())
	queries := rt.ControllerQueries
	frozen, err := s.Controller(0, false)
	require.NoError(t, err)
	assert.False(t, frozen.Tracked)
	assert.Equal(t, res.Frame, frozen.Frame)
	assert.Equal(t, 0.4, frozen.Input.TriggerValue, "input is frozen with the frame")
	assert.Equal(t, queries, rt.ControllerQueries, "untracked query must not reach the runtime")
}

// Scenario D
func TestTrackerOrdinalPastEnd(t *testing.T) {
	s, _ := newSession(t, nil, tick(entry(4, device.NativeGenericTracker, mgl64.Ident4())))
	require.NoError(t, s.Update())

	_, err := s.Tracker(0, true)
	require.NoError(t, err)

	_, err = s.Tracker(1, true)
	require.ErrorIs(t, err, device.ErrDeviceNotFound)
	var nf *device.NotFoundError
	require.ErrorAs(t, err, &nf)
	assert.Equal(t, 1, nf.Available)

	_, ok := s.Slot(device.ClassTracker, 1)
	assert.False(t, ok)
	res, err := s.Tracker(1, false)
	require.NoError(t, err)
	assert.False(t, res.Available)
}

func TestFreezeIsBitIdentical(t *testing.T) {
	s, _ := newSession(t, nil,
		tick(entry(0, device.NativeHMD, mgl64.Translate3D(0.3, 1.7, -0.2).Mul4(mgl64.HomogRotate3DY(0.4)))),
		tick(entry(0, device.NativeHMD, mgl64.Translate3D(5, 5, 5))),
		tick(), // device gone
	)
	require.NoError(t, s.Update())
	tracked, err := s.HMD(true)
	require.NoError(t, err)

	require.NoError(t, s.Update())
	a, err := s.HMD(false)
	require.NoError(t, err)

	require.NoError(t, s.Update())
	b, err := s.HMD(false)
	require.NoError(t, err)

	assert.Equal(t, tracked.Frame, a.Frame)
	assert.Equal(t, a.Frame, b.Frame)
	assert.Equal(t, a.Tick, b.Tick)
}

func TestNotFoundKeepsSlot(t *testing.T) {
	s, _ := newSession(t, nil,
		tick(entry(1, device.NativeController, mgl64.Translate3D(1, 0, 0))),
		tick(),
	)
	require.NoError(t, s.Update())
	before, err := s.Controller(0, true)
	require.NoError(t, err)

	require.NoError(t, s.Update())
	_, err = s.Controller(0, true)
	require.ErrorIs(t, err, device.ErrDeviceNotFound)

	slot, ok := s.Slot(device.ClassController, 0)
	require.True(t, ok)
	assert.Equal(t, before.Frame, slot.Frame())
	assert.Equal(t, before.Tick, slot.Tick())
}

func TestTrackerCorrectionOncePerTick(t *testing.T) {
	raw := mgl64.Translate3D(0.5, 1, 0.5).Mul4(mgl64.HomogRotate3DY(0.7))
	s, _ := newSession(t, nil, tick(entry(2, device.NativeGenericTracker, raw)))
	require.NoError(t, s.Update())

	first, err := s.Tracker(0, true)
	require.NoError(t, err)
	second, err := s.Tracker(0, true)
	require.NoError(t, err)

	assert.Equal(t, first.Frame, second.Frame)

	d, err := s.Registry().ByClassAndOrdinal(device.ClassTracker, 0)
	require.NoError(t, err)
	assert.Equal(t, [16]float64(raw), d.RawPose, "raw table must not change")
}

func TestTransposedTableMatchesCanonical(t *testing.T) {
	m := mgl64.Translate3D(-0.4, 1.2, 0.8).Mul4(mgl64.HomogRotate3DX(0.2))
	transposed := entry(7, device.NativeController, m.Transpose())
	transposed.Transpose = true

	s, _ := newSession(t, nil,
		tick(entry(7, device.NativeController, m)),
		tick(transposed),
	)
	require.NoError(t, s.Update())
	a, err := s.Controller(0, true)
	require.NoError(t, err)
	require.NoError(t, s.Update())
	b, err := s.Controller(0, true)
	require.NoError(t, err)

	assert.Equal(t, a.Frame, b.Frame)
}

func TestCalibrationComposition(t *testing.T) {
	ref := mgl64.Translate3D(1, 0, 0)
	ctrl := entry(1, device.NativeController, mgl64.Translate3D(1, 0, 0))

	t.Run("composed", func(t *testing.T) {
		s, _ := newSession(t, nil, tick(ctrl))
		require.NoError(t, s.Calibrate(geom.FrameFromMatrix(ref), true))
		require.NoError(t, s.Update())

		res, err := s.Controller(0, true)
		require.NoError(t, err)
		assert.True(t, res.Frame.ApproxEqual(geom.IdentityFrame(), 1e-12), "got %+v", res.Frame)
		assert.True(t, res.DeviceFrame.Origin.ApproxEqualThreshold(mgl64.Vec3{1, 0, 0}, 1e-12))
	})

	t.Run("stored only", func(t *testing.T) {
		s, _ := newSession(t, []Option{WithCalibrationComposition(false)}, tick(ctrl))
		require.NoError(t, s.Calibrate(geom.FrameFromMatrix(ref), true))
		require.NoError(t, s.Update())

		res, err := s.Controller(0, true)
		require.NoError(t, err)
		assert.Equal(t, res.DeviceFrame, res.Frame)
		assert.True(t, s.Calibration().Enabled())
	})

	t.Run("reset", func(t *testing.T) {
		s, _ := newSession(t, nil, tick(ctrl))
		require.NoError(t, s.Calibrate(geom.FrameFromMatrix(ref), true))
		require.NoError(t, s.Calibrate(geom.Frame{}, false))
		require.NoError(t, s.Update())

		res, err := s.Controller(0, true)
		require.NoError(t, err)
		assert.Equal(t, res.DeviceFrame, res.Frame)
	})
}

func TestHMDIsSingleton(t *testing.T) {
	s, _ := newSession(t, nil, tick(
		entry(0, device.NativeHMD, mgl64.Ident4()),
		entry(1, device.NativeHMD, mgl64.Ident4()),
	))
	require.NoError(t, s.Update())

	cfg := DefaultQueryConfig()
	cfg.Ordinal = 1
	_, err := s.Query(device.ClassHMD, cfg)
	assert.ErrorIs(t, err, device.ErrDeviceNotFound)
}

func TestRuntimeErrors(t *testing.T) {
	t.Run("not connected", func(t *testing.T) {
		s, err := NewSession(runtime.NewScripted())
		require.NoError(t, err)
		assert.ErrorIs(t, s.Update(), runtime.ErrRuntimeNotDetected)
		_, err = s.HMD(true)
		assert.ErrorIs(t, err, runtime.ErrRuntimeNotDetected)

		res, err := s.HMD(false)
		require.NoError(t, err)
		assert.False(t, res.Available)
	})

	t.Run("detector", func(t *testing.T) {
		rt := runtime.NewScripted()
		det := runtime.NewProcessDetector()
		det.List = func() ([]ps.Process, error) { return nil, nil }
		s, err := NewSession(rt, WithDetector(det))
		require.NoError(t, err)
		assert.ErrorIs(t, s.Connect(), runtime.ErrRuntimeNotDetected)
		assert.Equal(t, 0, rt.Connects, "runtime must not be opened when not detected")
	})

	t.Run("connection failed", func(t *testing.T) {
		rt := runtime.NewScripted()
		rt.ConnectErr = errors.New("VRInitError_Init_HmdNotFound")
		s, err := NewSession(rt)
		require.NoError(t, err)

		err = s.Connect()
		require.ErrorIs(t, err, runtime.ErrConnectionFailed)
		var ce *runtime.ConnectionError
		require.ErrorAs(t, err, &ce)
		assert.False(t, s.Connected())

		rt.ConnectErr = nil
		require.NoError(t, s.Connect())
		assert.True(t, s.Connected())
	})

	t.Run("update failure keeps slots", func(t *testing.T) {
		s, _ := newSession(t, nil,
			tick(entry(0, device.NativeHMD, mgl64.Translate3D(0, 1, 0))),
			runtime.Tick{Err: errors.New("lost")},
		)
		require.NoError(t, s.Update())
		before, err := s.HMD(true)
		require.NoError(t, err)

		assert.Error(t, s.Update())
		after, err := s.HMD(false)
		require.NoError(t, err)
		assert.Equal(t, before.Frame, after.Frame)
		assert.Equal(t, uint64(1), s.Tick())
	})
}

func TestInvalidSession(t *testing.T) {
	_, err := NewSession(nil)
	assert.ErrorIs(t, err, ErrInvalidSession)

	var s *Session
	_, err = s.HMD(true)
	assert.ErrorIs(t, err, ErrInvalidSession)
	assert.ErrorIs(t, s.Update(), ErrInvalidSession)
	assert.ErrorIs(t, s.Connect(), ErrInvalidSession)

	zero := &Session{}
	_, err = zero.Query(device.ClassController, DefaultQueryConfig())
	assert.ErrorIs(t, err, ErrInvalidSession)
}

func TestPreviewSettingsFollowQueries(t *testing.T) {
	s, _ := newSession(t, nil,
		tick(entry(0, device.NativeHMD, mgl64.Ident4())),
		tick(entry(0, device.NativeHMD, mgl64.Translate3D(1, 1, 1))),
	)
	require.NoError(t, s.Update())

	cfg := DefaultQueryConfig()
	cfg.PreviewMesh = false
	res, err := s.Query(device.ClassHMD, cfg)
	require.NoError(t, err)
	assert.Equal(t, 0, res.Projector.Passes())
	assert.Empty(t, slices.Collect(res.Projector.Vertices()))

	// turning preview back on while frozen draws the frozen frame
	red := color.RGBA{R: 255, A: 255}
	cfg = untracked()
	cfg.PreviewColor = &red
	require.NoError(t, s.Update())
	res, err = s.Query(device.ClassHMD, cfg)
	require.NoError(t, err)

	verts := slices.Collect(res.Projector.Vertices())
	require.NotEmpty(t, verts)
	assert.Equal(t, red, verts[0].Color)
	assert.Equal(t, 1, res.Projector.Passes())

	// no override goes back to the class tint
	res, err = s.HMD(false)
	require.NoError(t, err)
	assert.Equal(t, color.RGBA{R: 133, G: 191, B: 242, A: 255}, res.Projector.Color())
}

func TestSlotsOrdered(t *testing.T) {
	s, _ := newSession(t, nil, tick(
		entry(0, device.NativeHMD, mgl64.Ident4()),
		entry(1, device.NativeController, mgl64.Ident4()),
		entry(2, device.NativeController, mgl64.Ident4()),
		entry(3, device.NativeTrackingReference, mgl64.Ident4()),
	))
	require.NoError(t, s.Update())

	_, err := s.Lighthouse(0, true)
	require.NoError(t, err)
	_, err = s.Controller(1, true)
	require.NoError(t, err)
	_, err = s.Controller(0, true)
	require.NoError(t, err)
	_, err = s.HMD(true)
	require.NoError(t, err)

	var keys []SlotKey
	for _, slot := range s.Slots() {
		keys = append(keys, slot.Key())
	}
	assert.Equal(t, []SlotKey{
		{device.ClassHMD, 0},
		{device.ClassController, 0},
		{device.ClassController, 1},
		{device.ClassLighthouse, 0},
	}, keys)
}

func TestInvalidPoseKeepsSlot(t *testing.T) {
	lost := entry(1, device.NativeController, mgl64.Mat4{})
	lost.PoseValid = false
	s, _ := newSession(t, nil,
		tick(entry(1, device.NativeController, mgl64.Translate3D(1, 0, 0))),
		tick(lost),
	)
	require.NoError(t, s.Update())
	before, err := s.Controller(0, true)
	require.NoError(t, err)

	require.NoError(t, s.Update())
	_, err = s.Controller(0, true)
	require.ErrorIs(t, err, device.ErrPoseInvalid)

	after, err := s.Controller(0, false)
	require.NoError(t, err)
	assert.Equal(t, before.Frame, after.Frame)
	assert.Equal(t, before.Tick, after.Tick)
}

func TestLostLinkDisconnects(t *testing.T) {
	s, rt := newSession(t, nil,
		tick(entry(0, device.NativeHMD, mgl64.Ident4())),
		runtime.Tick{Err: &runtime.ConnectionError{Diagnostic: "read /dev/ttyUSB0", Err: errors.New("EOF")}},
		tick(entry(0, device.NativeHMD, mgl64.Ident4())),
	)
	require.NoError(t, s.Update())

	require.ErrorIs(t, s.Update(), runtime.ErrConnectionFailed)
	assert.False(t, s.Connected())

	require.NoError(t, s.Connect())
	require.NoError(t, s.Update())
	assert.Equal(t, 2, rt.Connects)
}

func TestInvalidMeshFallsBackToBuiltin(t *testing.T) {
	broken := preview.Mesh{Vertices: []float32{0, 0, 0, 1, 0, 0}, Normals: []float32{0, 0, 1}, Faces: []uint32{0, 1, 3}}
	s, _ := newSession(t, []Option{WithMeshes(func(device.Class) preview.Mesh { return broken })},
		tick(entry(1, device.NativeController, mgl64.Translate3D(1, 0, 0))),
	)
	require.NoError(t, s.Update())

	res, err := s.Controller(0, true)
	require.NoError(t, err)
	assert.NotEmpty(t, slices.Collect(res.Projector.Vertices()))
}
