// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package preview places a device mesh at a tracked frame and hands the
// result to a renderer as a stream of vertices.
package preview

import (
	"image/color"
	"iter"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/relabs-tech/vive_track/internal/device"
	"github.com/relabs-tech/vive_track/internal/geom"
)

// Vertex is one emitted render vertex.
type Vertex struct {
	Position mgl64.Vec3
	Color    color.RGBA
	Normal   mgl64.Vec3
	UV       mgl64.Vec2
}

var defaultColors = map[device.Class]color.RGBA{
	device.ClassHMD:        {R: 133, G: 191, B: 242, A: 255},
	device.ClassController: {R: 142, G: 242, B: 109, A: 255},
	device.ClassLighthouse: {R: 242, G: 181, B: 232, A: 255},
	device.ClassTracker:    {R: 244, G: 149, B: 66, A: 255},
}

// DefaultColor is the preview tint of class c (white for unknown devices).
func DefaultColor(c device.Class) color.RGBA {
	if col, ok := defaultColors[c]; ok {
		return col
	}
	return color.RGBA{R: 255, G: 255, B: 255, A: 255}
}

// Projector owns the world-space copy of one device mesh. Transform work
// only happens while preview is enabled; a frame received while disabled
// is remembered and transformed when preview is turned back on and the
// vertices are next read.
type Projector struct {
	mesh    Mesh
	enabled bool
	color   color.RGBA

	frame    geom.Frame
	hasFrame bool
	dirty    bool

	positions []mgl64.Vec3
	normals   []mgl64.Vec3
	passes    int
}

// NewProjector returns an enabled projector for mesh with the given tint.
func NewProjector(mesh Mesh, tint color.RGBA) *Projector {
	return &Projector{
		mesh:      mesh,
		enabled:   true,
		color:     tint,
		positions: make([]mgl64.Vec3, mesh.VertexCount()),
		normals:   make([]mgl64.Vec3, mesh.VertexCount()),
	}
}

func (p *Projector) Enabled() bool           { return p.enabled }
func (p *Projector) SetEnabled(enabled bool) { p.enabled = enabled }
func (p *Projector) Color() color.RGBA       { return p.color }
func (p *Projector) SetColor(c color.RGBA)   { p.color = c }

// Passes returns how many times the mesh was actually transformed.
func (p *Projector) Passes() int { return p.passes }

// Transform places the mesh at f.
func (p *Projector) Transform(f geom.Frame) {
	p.frame = f
	p.hasFrame = true
	p.dirty = true
	if p.enabled {
		p.apply()
	}
}

func (p *Projector) apply() {
	m := p.frame.Matrix()
	for i := range p.positions {
		v := mgl64.Vec3{float64(p.mesh.Vertices[3*i]), float64(p.mesh.Vertices[3*i+1]), float64(p.mesh.Vertices[3*i+2])}
		n := mgl64.Vec3{float64(p.mesh.Normals[3*i]), float64(p.mesh.Normals[3*i+1]), float64(p.mesh.Normals[3*i+2])}
		p.positions[i] = mgl64.TransformCoordinate(v, m)
		p.normals[i] = mgl64.TransformNormal(n, m)
	}
	p.dirty = false
	p.passes++
}

// Vertices yields one vertex per index of the mesh, in index order, using
// the tint current at iteration time. The sequence is empty while preview
// is disabled or before the first Transform, and can be iterated again for
// every render pass.
func (p *Projector) Vertices() iter.Seq[Vertex] {
	return func(yield func(Vertex) bool) {
		if !p.enabled || !p.hasFrame {
			return
		}
		if p.dirty {
			p.apply()
		}
		for _, idx := range p.mesh.Faces {
			v := Vertex{
				Position: p.positions[idx],
				Color:    p.color,
				Normal:   p.normals[idx],
			}
			if !yield(v) {
				return
			}
		}
	}
}
