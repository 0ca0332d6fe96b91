// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package geom is the small geometry kernel used by the tracking pipeline:
// coordinate frames, planes and rigid transforms in application axes
// (X right, Y forward, Z up).
package geom

import (
	"errors"
	"fmt"

	"github.com/go-gl/mathgl/mgl64"
)

// axisEpsilon is the shortest axis (or cross product) accepted when
// building a frame.
const axisEpsilon = 1e-9

// ErrDegenerateAxes is returned when two axes cannot span a frame.
var ErrDegenerateAxes = errors.New("geom: degenerate frame axes")

// Frame is an origin plus an orthonormal X/Y basis. The Z axis is
// always X × Y and is never stored.
type Frame struct {
	Origin mgl64.Vec3 `json:"origin"`
	XAxis  mgl64.Vec3 `json:"x_axis"`
	YAxis  mgl64.Vec3 `json:"y_axis"`
}

// IdentityFrame is the world origin with the standard basis.
func IdentityFrame() Frame {
	return Frame{
		Origin: mgl64.Vec3{0, 0, 0},
		XAxis:  mgl64.Vec3{1, 0, 0},
		YAxis:  mgl64.Vec3{0, 1, 0},
	}
}

// NewFrame builds a frame from an origin and two axes. X is normalised and
// Y is made orthogonal to X (Gram-Schmidt) before normalising.
func NewFrame(origin, xAxis, yAxis mgl64.Vec3) (Frame, error) {
	if xAxis.Len() < axisEpsilon || yAxis.Len() < axisEpsilon {
		return Frame{}, fmt.Errorf("%w: zero-length axis", ErrDegenerateAxes)
	}
	x := xAxis.Normalize()
	y := yAxis.Sub(x.Mul(yAxis.Dot(x)))
	if y.Len() < axisEpsilon {
		return Frame{}, fmt.Errorf("%w: axes are parallel", ErrDegenerateAxes)
	}
	return Frame{Origin: origin, XAxis: x, YAxis: y.Normalize()}, nil
}

// FrameFromMatrix reads a rigid transform (column-vector convention) as a
// frame: the first two columns are the axes, the fourth is the origin.
func FrameFromMatrix(m mgl64.Mat4) Frame {
	return Frame{
		Origin: m.Col(3).Vec3(),
		XAxis:  m.Col(0).Vec3(),
		YAxis:  m.Col(1).Vec3(),
	}
}

// ZAxis returns X × Y.
func (f Frame) ZAxis() mgl64.Vec3 {
	return f.XAxis.Cross(f.YAxis)
}

// Matrix returns the local-to-world transform of the frame.
func (f Frame) Matrix() mgl64.Mat4 {
	return mgl64.Mat4FromCols(
		f.XAxis.Vec4(0),
		f.YAxis.Vec4(0),
		f.ZAxis().Vec4(0),
		f.Origin.Vec4(1),
	)
}

// Inverse returns the world-to-local transform as a frame. The rotation
// is transposed instead of running a general 4x4 inverse.
func (f Frame) Inverse() Frame {
	z := f.ZAxis()
	// columns of Rᵀ are the rows of R
	x := mgl64.Vec3{f.XAxis[0], f.YAxis[0], z[0]}
	y := mgl64.Vec3{f.XAxis[1], f.YAxis[1], z[1]}
	o := mgl64.Vec3{
		-f.XAxis.Dot(f.Origin),
		-f.YAxis.Dot(f.Origin),
		-z.Dot(f.Origin),
	}
	return Frame{Origin: o, XAxis: x, YAxis: y}
}

// Compose returns f ∘ g: g expressed in f's parent space.
func (f Frame) Compose(g Frame) Frame {
	return FrameFromMatrix(f.Matrix().Mul4(g.Matrix()))
}

// TransformPoint maps a local point into the frame's parent space.
func (f Frame) TransformPoint(p mgl64.Vec3) mgl64.Vec3 {
	return mgl64.TransformCoordinate(p, f.Matrix())
}

// TransformNormal rotates a local direction; translation is ignored.
func (f Frame) TransformNormal(n mgl64.Vec3) mgl64.Vec3 {
	return mgl64.TransformNormal(n, f.Matrix())
}

// ApproxEqual compares origins and axes component-wise within eps.
func (f Frame) ApproxEqual(g Frame, eps float64) bool {
	return f.Origin.ApproxEqualThreshold(g.Origin, eps) &&
		f.XAxis.ApproxEqualThreshold(g.XAxis, eps) &&
		f.YAxis.ApproxEqualThreshold(g.YAxis, eps)
}

// Plane is a frame seen as an oriented plane: the XY plane of the frame
// with the Z axis as its normal.
type Plane struct {
	Origin mgl64.Vec3
	XAxis  mgl64.Vec3
	YAxis  mgl64.Vec3
	Normal mgl64.Vec3
}

// Plane converts the frame to a plane.
func (f Frame) Plane() Plane {
	return Plane{
		Origin: f.Origin,
		XAxis:  f.XAxis,
		YAxis:  f.YAxis,
		Normal: f.ZAxis(),
	}
}

// Frame converts the plane back into a frame.
func (p Plane) Frame() (Frame, error) {
	return NewFrame(p.Origin, p.XAxis, p.YAxis)
}
