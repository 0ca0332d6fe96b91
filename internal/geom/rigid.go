// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package geom

import (
	"errors"
	"fmt"
	"math"

	"github.com/go-gl/mathgl/mgl64"
	"gonum.org/v1/gonum/mat"
)

// RigidTolerance bounds the deviation accepted from a proper rotation
// (orthonormality and det ≈ 1).
const RigidTolerance = 0.01

// ErrNotRigid is returned for transforms that are not rotation + translation.
var ErrNotRigid = errors.New("geom: transform is not rigid")

// ValidateRigid checks that m (column-vector convention) is a proper rigid
// transform: RᵀR ≈ I, det(R) ≈ 1 and a bottom row of [0 0 0 1].
func ValidateRigid(m mgl64.Mat4) error {
	r := mat.NewDense(3, 3, []float64{
		m.At(0, 0), m.At(0, 1), m.At(0, 2),
		m.At(1, 0), m.At(1, 1), m.At(1, 2),
		m.At(2, 0), m.At(2, 1), m.At(2, 2),
	})

	if det := mat.Det(r); math.Abs(det-1) > RigidTolerance {
		return fmt.Errorf("%w: det(R)=%.4f", ErrNotRigid, det)
	}

	var rtr mat.Dense
	rtr.Mul(r.T(), r)
	if !mat.EqualApprox(&rtr, mat.NewDiagDense(3, []float64{1, 1, 1}), RigidTolerance) {
		return fmt.Errorf("%w: rotation is not orthonormal", ErrNotRigid)
	}

	if m.At(3, 0) != 0 || m.At(3, 1) != 0 || m.At(3, 2) != 0 || math.Abs(m.At(3, 3)-1) > 1e-6 {
		return fmt.Errorf("%w: bottom row must be [0 0 0 1]", ErrNotRigid)
	}
	return nil
}
