// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package preview

import (
	"image/color"
	"math"
	"slices"
	"strings"
	"testing"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relabs-tech/vive_track/internal/device"
	"github.com/relabs-tech/vive_track/internal/geom"
)

// triangle in the local XY plane facing +Z
var triangle = Mesh{
	Vertices: []float32{0, 0, 0, 1, 0, 0, 0, 1, 0},
	Normals:  []float32{0, 0, 1, 0, 0, 1, 0, 0, 1},
	Faces:    []uint32{0, 1, 2},
}

func TestBuiltinMeshesAreValid(t *testing.T) {
	for _, c := range append([]device.Class{device.ClassUnknown}, device.Classes...) {
		m := BuiltinMesh(c)
		require.NoError(t, m.Validate(), c.String())
		assert.Equal(t, 24, m.VertexCount())
		assert.Len(t, m.Faces, 36)
	}
}

func TestBox_NormalsPointOutward(t *testing.T) {
	m := Box(1, 2, 3)
	for i := 0; i < m.VertexCount(); i++ {
		v := mgl64.Vec3{float64(m.Vertices[3*i]), float64(m.Vertices[3*i+1]), float64(m.Vertices[3*i+2])}
		n := mgl64.Vec3{float64(m.Normals[3*i]), float64(m.Normals[3*i+1]), float64(m.Normals[3*i+2])}
		assert.Greater(t, v.Dot(n), 0.0, "vertex %d", i)
	}
}

func TestMesh_Validate(t *testing.T) {
	tests := []struct {
		name string
		mesh Mesh
	}{
		{"ragged vertices", Mesh{Vertices: []float32{0, 0}, Normals: []float32{0, 0}}},
		{"missing normals", Mesh{Vertices: []float32{0, 0, 0}}},
		{"partial triangle", Mesh{Vertices: []float32{0, 0, 0}, Normals: []float32{0, 0, 1}, Faces: []uint32{0, 0}}},
		{"index out of range", Mesh{Vertices: []float32{0, 0, 0}, Normals: []float32{0, 0, 1}, Faces: []uint32{0, 0, 1}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorIs(t, tt.mesh.Validate(), ErrInvalidMesh)
		})
	}
}

func TestLoadMesh(t *testing.T) {
	m, err := LoadMesh(strings.NewReader(`{"vertices":[0,0,0,1,0,0,0,1,0],"normals":[0,0,1,0,0,1,0,0,1],"faces":[0,1,2]}`))
	require.NoError(t, err)
	assert.Equal(t, triangle, m)

	_, err = LoadMesh(strings.NewReader(`{"vertices":[0,0,0],"normals":[0,0,1],"faces":[3,0,0]}`))
	assert.ErrorIs(t, err, ErrInvalidMesh)

	_, err = LoadMesh(strings.NewReader(`not json`))
	assert.Error(t, err)
}

func TestProjector_TransformsPositionsAndRotatesNormals(t *testing.T) {
	p := NewProjector(triangle, DefaultColor(device.ClassController))
	// quarter turn about X, then move up one metre
	f := geom.FrameFromMatrix(mgl64.Translate3D(0, 0, 1).Mul4(mgl64.HomogRotate3DX(math.Pi / 2)))
	p.Transform(f)

	got := slices.Collect(p.Vertices())
	require.Len(t, got, 3)

	assert.True(t, got[0].Position.ApproxEqualThreshold(mgl64.Vec3{0, 0, 1}, 1e-12))
	assert.True(t, got[2].Position.ApproxEqualThreshold(mgl64.Vec3{0, 0, 2}, 1e-12), "got %v", got[2].Position)
	for _, v := range got {
		assert.True(t, v.Normal.ApproxEqualThreshold(mgl64.Vec3{0, -1, 0}, 1e-12), "normal %v", v.Normal)
		assert.Equal(t, color.RGBA{R: 142, G: 242, B: 109, A: 255}, v.Color)
		assert.Equal(t, mgl64.Vec2{}, v.UV)
	}
}

func TestProjector_DisabledDoesNoWork(t *testing.T) {
	p := NewProjector(triangle, DefaultColor(device.ClassHMD))
	assert.Empty(t, slices.Collect(p.Vertices()), "nothing before the first frame")

	p.SetEnabled(false)
	p.Transform(geom.FrameFromMatrix(mgl64.Translate3D(5, 0, 0)))
	assert.Equal(t, 0, p.Passes())
	assert.Empty(t, slices.Collect(p.Vertices()))

	p.SetEnabled(true)
	got := slices.Collect(p.Vertices())
	require.Len(t, got, 3)
	assert.Equal(t, 1, p.Passes())
	assert.True(t, got[0].Position.ApproxEqualThreshold(mgl64.Vec3{5, 0, 0}, 1e-12))
}

func TestProjector_RestartableAndRecoloured(t *testing.T) {
	p := NewProjector(BuiltinMesh(device.ClassTracker), DefaultColor(device.ClassTracker))
	p.Transform(geom.IdentityFrame())

	first := slices.Collect(p.Vertices())
	second := slices.Collect(p.Vertices())
	assert.Len(t, first, 36)
	assert.Equal(t, first, second)
	assert.Equal(t, 1, p.Passes(), "reading again must not transform again")

	red := color.RGBA{R: 255, A: 255}
	p.SetColor(red)
	for v := range p.Vertices() {
		assert.Equal(t, red, v.Color)
	}

	n := 0
	for range p.Vertices() {
		n++
		if n == 4 {
			break
		}
	}
	assert.Equal(t, 4, n)
}

func TestDefaultColor(t *testing.T) {
	assert.Equal(t, color.RGBA{R: 133, G: 191, B: 242, A: 255}, DefaultColor(device.ClassHMD))
	assert.Equal(t, color.RGBA{R: 242, G: 181, B: 232, A: 255}, DefaultColor(device.ClassLighthouse))
	assert.Equal(t, color.RGBA{R: 244, G: 149, B: 66, A: 255}, DefaultColor(device.ClassTracker))
	assert.Equal(t, color.RGBA{R: 255, G: 255, B: 255, A: 255}, DefaultColor(device.ClassUnknown))
}
