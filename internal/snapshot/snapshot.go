// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package snapshot is a small software render sink: it draws preview vertex
// streams as a shaded top view (looking down the Z axis) into an image.
package snapshot

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"io"
	"iter"
	"sort"

	"github.com/go-gl/mathgl/mgl64"
	"golang.org/x/image/vector"

	"github.com/relabs-tech/vive_track/internal/preview"
)

// Options controls the view.
type Options struct {
	Width, Height int
	Scale         float64    // pixels per metre
	Center        mgl64.Vec2 // world X/Y at the image centre
	Background    color.RGBA
}

// DefaultOptions is a 512x512 view of a 4x4 m area around the origin.
func DefaultOptions() Options {
	return Options{
		Width:      512,
		Height:     512,
		Scale:      128,
		Background: color.RGBA{R: 24, G: 24, B: 28, A: 255},
	}
}

type triangle struct {
	pts   [3]mgl64.Vec3
	color color.RGBA
	depth float64
}

// Render draws every triangle of the given vertex streams. Triangles that
// face away from the viewer are skipped; the rest are painted from the
// lowest to the highest and shaded by how much they face up.
func Render(opts Options, streams ...iter.Seq[preview.Vertex]) *image.RGBA {
	dst := image.NewRGBA(image.Rect(0, 0, opts.Width, opts.Height))
	draw.Draw(dst, dst.Bounds(), image.NewUniform(opts.Background), image.Point{}, draw.Src)

	var tris []triangle
	for _, stream := range streams {
		var buf [3]preview.Vertex
		n := 0
		for v := range stream {
			buf[n] = v
			n++
			if n < 3 {
				continue
			}
			n = 0
			if t, ok := shade(buf); ok {
				tris = append(tris, t)
			}
		}
	}
	sort.SliceStable(tris, func(i, j int) bool { return tris[i].depth < tris[j].depth })

	z := vector.NewRasterizer(opts.Width, opts.Height)
	for _, t := range tris {
		z.Reset(opts.Width, opts.Height)
		for i, p := range t.pts {
			x, y := opts.project(p)
			if i == 0 {
				z.MoveTo(x, y)
			} else {
				z.LineTo(x, y)
			}
		}
		z.ClosePath()
		z.Draw(dst, dst.Bounds(), image.NewUniform(t.color), image.Point{})
	}
	return dst
}

func shade(v [3]preview.Vertex) (triangle, bool) {
	n := v[0].Normal.Add(v[1].Normal).Add(v[2].Normal)
	if n.Len() == 0 || n.Normalize()[2] <= 0 {
		return triangle{}, false
	}
	light := 0.35 + 0.65*n.Normalize()[2]
	c := v[0].Color
	return triangle{
		pts:   [3]mgl64.Vec3{v[0].Position, v[1].Position, v[2].Position},
		color: color.RGBA{R: uint8(float64(c.R) * light), G: uint8(float64(c.G) * light), B: uint8(float64(c.B) * light), A: c.A},
		depth: (v[0].Position[2] + v[1].Position[2] + v[2].Position[2]) / 3,
	}, true
}

func (o Options) project(p mgl64.Vec3) (float32, float32) {
	x := float64(o.Width)/2 + (p[0]-o.Center[0])*o.Scale
	y := float64(o.Height)/2 - (p[1]-o.Center[1])*o.Scale
	return float32(x), float32(y)
}

// WritePNG renders and encodes a PNG to w.
func WritePNG(w io.Writer, opts Options, streams ...iter.Seq[preview.Vertex]) error {
	if err := png.Encode(w, Render(opts, streams...)); err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}
	return nil
}
