// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package calibration holds the session-wide calibration transform. A
// calibration is a reference frame (usually a controller held at a known
// spot); once set, every frame handed to callers is expressed relative to it.
package calibration

import (
	"fmt"
	"math"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/relabs-tech/vive_track/internal/geom"
)

// State is the calibration transform of one session. The zero value is
// not ready for use; call NewState.
type State struct {
	enabled   bool
	reference geom.Frame
	inverse   geom.Frame
}

// NewState returns an identity calibration.
func NewState() *State {
	return &State{reference: geom.IdentityFrame(), inverse: geom.IdentityFrame()}
}

// Set rebuilds the calibration from reference when enabled is true, or
// resets it to identity when false. The reference must be a rigid frame
// (unit, orthogonal axes within geom.RigidTolerance). On error the previous
// calibration is kept.
func (s *State) Set(reference geom.Frame, enabled bool) error {
	if !enabled {
		s.Reset()
		return nil
	}
	if !finite(reference) {
		return fmt.Errorf("calibration: %w: non-finite reference", geom.ErrNotRigid)
	}
	f, err := geom.NewFrame(reference.Origin, reference.XAxis, reference.YAxis)
	if err != nil {
		return fmt.Errorf("calibration: %w", err)
	}
	// the reference itself must already be rigid, NewFrame only removes
	// rounding drift
	if err := geom.ValidateRigid(reference.Matrix()); err != nil {
		return fmt.Errorf("calibration: %w", err)
	}
	s.enabled = true
	s.reference = f
	s.inverse = f.Inverse()
	return nil
}

// Reset goes back to identity.
func (s *State) Reset() {
	s.enabled = false
	s.reference = geom.IdentityFrame()
	s.inverse = geom.IdentityFrame()
}

// Enabled reports whether a non-identity calibration is active.
func (s *State) Enabled() bool { return s.enabled }

// Frame returns the calibration reference frame (identity when disabled).
func (s *State) Frame() geom.Frame { return s.reference }

// Apply expresses f relative to the calibration reference
// (calibration⁻¹ ∘ f). With no calibration f is returned as is.
func (s *State) Apply(f geom.Frame) geom.Frame {
	if !s.enabled {
		return f
	}
	return s.inverse.Compose(f)
}

func finite(f geom.Frame) bool {
	for _, v := range [...]mgl64.Vec3{f.Origin, f.XAxis, f.YAxis} {
		for _, c := range v {
			if math.IsNaN(c) || math.IsInf(c, 0) {
				return false
			}
		}
	}
	return true
}
