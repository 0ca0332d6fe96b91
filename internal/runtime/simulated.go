// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package runtime

import (
	"math"
	"time"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/relabs-tech/vive_track/internal/device"
)

// Simulated is a runtime that generates smooth changing poses for one HMD,
// two lighthouses, two controllers and a configurable number of trackers.
// Poses are reported the way the real runtime does: Y up, transposed.
type Simulated struct {
	trackers  int
	now       func() time.Time
	start     time.Time
	connected bool
	elapsed   float64
}

// NewSimulated creates a simulated runtime with n trackers.
func NewSimulated(trackers int) *Simulated {
	return &Simulated{trackers: trackers, now: time.Now}
}

// WithClock replaces the time source (tests).
func (s *Simulated) WithClock(now func() time.Time) *Simulated {
	s.now = now
	return s
}

func (s *Simulated) Connect() error {
	s.start = s.now()
	s.connected = true
	return nil
}

func (s *Simulated) Close() error {
	s.connected = false
	return nil
}

// Native ids handed out by the simulation.
const (
	simHMD        = 0
	simLighthouse = 1 // 1, 2
	simController = 3 // 3, 4
	simTracker    = 5 // 5..
)

func (s *Simulated) UpdateTick() (device.Table, error) {
	if !s.connected {
		return nil, ErrNotConnected
	}
	t := s.now().Sub(s.start).Seconds()
	s.elapsed = t

	table := make(device.Table, 0, simTracker+s.trackers)

	// head bobbing and looking around
	table = append(table, simEntry(simHMD, device.NativeHMD, mgl64.Vec3{
		0.1 * math.Sin(t*0.5), 1.7 + 0.03*math.Sin(t*2), 0.1 * math.Cos(t*0.5),
	}, 0.6*math.Sin(t*0.3), 0.15*math.Cos(t*0.7), 0))

	// lighthouses in opposite corners, tilted down, never move
	table = append(table,
		simEntry(simLighthouse, device.NativeTrackingReference, mgl64.Vec3{2, 2.2, 2}, math.Pi/4, -0.5, 0),
		simEntry(simLighthouse+1, device.NativeTrackingReference, mgl64.Vec3{-2, 2.2, -2}, -3*math.Pi/4, -0.5, 0),
	)

	// controllers circling in front of the body
	for i := 0; i < 2; i++ {
		side := float64(2*i - 1)
		phase := t + float64(i)*math.Pi
		table = append(table, simEntry(simController+i, device.NativeController, mgl64.Vec3{
			0.3*side + 0.1*math.Cos(phase), 1.1 + 0.1*math.Sin(phase), -0.4,
		}, 20*math.Pi/180*math.Sin(t), 15*math.Pi/180*math.Cos(t*0.7), 0))
	}

	// trackers on a slow ring around the origin
	for i := 0; i < s.trackers; i++ {
		a := t*0.2 + 2*math.Pi*float64(i)/float64(s.trackers)
		table = append(table, simEntry(simTracker+i, device.NativeGenericTracker, mgl64.Vec3{
			math.Cos(a), 1.0, math.Sin(a),
		}, -a, 0, 0))
	}
	return table, nil
}

// QueryControllerState reports a trigger that pulls and releases and a
// thumb circling the touchpad. Non-controller ids return a zero state.
func (s *Simulated) QueryControllerState(id int) (device.ControllerState, error) {
	if !s.connected {
		return device.ControllerState{}, ErrNotConnected
	}
	if id < simController || id > simController+1 {
		return device.ControllerState{}, nil
	}
	t := s.elapsed + float64(id-simController)

	var st device.ControllerState
	st.PacketNum = uint32(t * 90)

	trigger := math.Max(0, math.Sin(t*1.3))
	st.Axes[device.AxisTrigger] = device.Axis{X: trigger}
	if trigger > 0 {
		st.ButtonTouched |= 1 << device.ButtonTrigger
	}
	if trigger > 0.95 {
		st.ButtonPressed |= 1 << device.ButtonTrigger
	}

	if math.Sin(t*0.5) > 0 {
		st.Axes[device.AxisTouchpad] = device.Axis{X: math.Cos(t), Y: math.Sin(t)}
		st.ButtonTouched |= 1 << device.ButtonTouchpad
		if math.Sin(t*0.5) > 0.9 {
			st.ButtonPressed |= 1 << device.ButtonTouchpad
		}
	}
	return st, nil
}

// simEntry builds a runtime table entry from a Y-up position and
// yaw (about Y), pitch (about X) and roll (about Z) in radians.
func simEntry(id int, native uint32, pos mgl64.Vec3, yaw, pitch, roll float64) device.Raw {
	m := mgl64.Translate3D(pos[0], pos[1], pos[2]).
		Mul4(mgl64.HomogRotate3DY(yaw)).
		Mul4(mgl64.HomogRotate3DX(pitch)).
		Mul4(mgl64.HomogRotate3DZ(roll))
	return device.Raw{
		ID:          id,
		NativeClass: native,
		Connected:   true,
		PoseValid:   true,
		Pose:        m.Transpose(),
		Transpose:   true,
	}
}
