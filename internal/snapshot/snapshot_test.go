// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package snapshot

import (
	"bytes"
	"image/png"
	"testing"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relabs-tech/vive_track/internal/device"
	"github.com/relabs-tech/vive_track/internal/geom"
	"github.com/relabs-tech/vive_track/internal/preview"
)

func TestRender_DrawsDeviceAtItsPosition(t *testing.T) {
	opts := DefaultOptions()
	p := preview.NewProjector(preview.Box(0.1, 0.1, 0.1), preview.DefaultColor(device.ClassTracker))
	// one metre along +X: 128 px right of the centre
	p.Transform(geom.FrameFromMatrix(mgl64.Translate3D(1, 0, 0)))

	img := Render(opts, p.Vertices())

	c := img.RGBAAt(256+128, 256)
	assert.NotEqual(t, opts.Background, c, "device pixel should be painted")
	assert.Greater(t, c.R, c.B, "tracker tint is orange")

	assert.Equal(t, opts.Background, img.RGBAAt(256, 256), "origin stays empty")
}

func TestRender_DisabledPreviewDrawsNothing(t *testing.T) {
	opts := DefaultOptions()
	p := preview.NewProjector(preview.Box(0.1, 0.1, 0.1), preview.DefaultColor(device.ClassHMD))
	p.Transform(geom.IdentityFrame())
	p.SetEnabled(false)

	img := Render(opts, p.Vertices())
	assert.Equal(t, opts.Background, img.RGBAAt(256, 256))
}

func TestWritePNG(t *testing.T) {
	opts := DefaultOptions()
	opts.Width, opts.Height = 64, 32

	var buf bytes.Buffer
	require.NoError(t, WritePNG(&buf, opts))

	img, err := png.Decode(&buf)
	require.NoError(t, err)
	assert.Equal(t, 64, img.Bounds().Dx())
	assert.Equal(t, 32, img.Bounds().Dy())
}
