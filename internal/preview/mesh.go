// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package preview

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/relabs-tech/vive_track/internal/device"
)

// ErrInvalidMesh is returned for meshes whose buffers do not line up.
var ErrInvalidMesh = errors.New("preview: invalid mesh")

// Mesh is static device-local geometry: xyz positions, one xyz normal per
// position and a triangle index buffer.
type Mesh struct {
	Vertices []float32 `json:"vertices"`
	Normals  []float32 `json:"normals"`
	Faces    []uint32  `json:"faces"`
}

// VertexCount is the number of positions in the mesh.
func (m Mesh) VertexCount() int {
	return len(m.Vertices) / 3
}

// Validate checks buffer sizes and index bounds.
func (m Mesh) Validate() error {
	if len(m.Vertices)%3 != 0 {
		return fmt.Errorf("%w: %d vertex floats is not a multiple of 3", ErrInvalidMesh, len(m.Vertices))
	}
	if len(m.Normals) != len(m.Vertices) {
		return fmt.Errorf("%w: %d normal floats for %d vertex floats", ErrInvalidMesh, len(m.Normals), len(m.Vertices))
	}
	if len(m.Faces)%3 != 0 {
		return fmt.Errorf("%w: %d indices is not a whole number of triangles", ErrInvalidMesh, len(m.Faces))
	}
	n := uint32(m.VertexCount())
	for i, idx := range m.Faces {
		if idx >= n {
			return fmt.Errorf("%w: index %d at %d out of range (%d vertices)", ErrInvalidMesh, idx, i, n)
		}
	}
	return nil
}

// LoadMesh decodes and validates a JSON mesh.
func LoadMesh(r io.Reader) (Mesh, error) {
	var m Mesh
	if err := json.NewDecoder(r).Decode(&m); err != nil {
		return Mesh{}, fmt.Errorf("decode mesh: %w", err)
	}
	if err := m.Validate(); err != nil {
		return Mesh{}, err
	}
	return m, nil
}

// BuiltinMesh returns a simple box roughly the size of a device of class c,
// in the device's local axes (metres).
func BuiltinMesh(c device.Class) Mesh {
	switch c {
	case device.ClassHMD:
		return Box(0.09, 0.06, 0.05)
	case device.ClassController:
		return Box(0.03, 0.08, 0.025)
	case device.ClassLighthouse:
		return Box(0.04, 0.04, 0.04)
	case device.ClassTracker:
		return Box(0.045, 0.045, 0.02)
	default:
		return Box(0.02, 0.02, 0.02)
	}
}

// boxFaces lists each face's outward normal and two in-plane directions with
// u × v == normal, so triangles wind counter-clockwise seen from outside.
var boxFaces = [6]struct{ n, u, v [3]float32 }{
	{[3]float32{1, 0, 0}, [3]float32{0, 1, 0}, [3]float32{0, 0, 1}},
	{[3]float32{-1, 0, 0}, [3]float32{0, 0, 1}, [3]float32{0, 1, 0}},
	{[3]float32{0, 1, 0}, [3]float32{0, 0, 1}, [3]float32{1, 0, 0}},
	{[3]float32{0, -1, 0}, [3]float32{1, 0, 0}, [3]float32{0, 0, 1}},
	{[3]float32{0, 0, 1}, [3]float32{1, 0, 0}, [3]float32{0, 1, 0}},
	{[3]float32{0, 0, -1}, [3]float32{0, 1, 0}, [3]float32{1, 0, 0}},
}

// Box builds an axis-aligned box centred on the origin with the given half
// extents. Each face has its own four vertices so normals stay flat.
func Box(hx, hy, hz float32) Mesh {
	half := [3]float32{hx, hy, hz}
	m := Mesh{
		Vertices: make([]float32, 0, 6*4*3),
		Normals:  make([]float32, 0, 6*4*3),
		Faces:    make([]uint32, 0, 6*6),
	}
	corners := [4][2]float32{{-1, -1}, {1, -1}, {1, 1}, {-1, 1}}
	for _, f := range boxFaces {
		base := uint32(m.VertexCount())
		for _, c := range corners {
			for k := 0; k < 3; k++ {
				m.Vertices = append(m.Vertices, (f.n[k]+c[0]*f.u[k]+c[1]*f.v[k])*half[k])
				m.Normals = append(m.Normals, f.n[k])
			}
		}
		m.Faces = append(m.Faces, base, base+1, base+2, base, base+2, base+3)
	}
	return m
}
