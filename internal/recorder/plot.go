// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package recorder

import (
	"errors"
	"fmt"
	"image/color"
	"sort"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
)

// ErrNoSamples is returned when there is nothing to plot.
var ErrNoSamples = errors.New("recorder: no samples to plot")

var roleColors = []color.RGBA{
	{R: 31, G: 119, B: 180, A: 255},
	{R: 255, G: 127, B: 14, A: 255},
	{R: 44, G: 160, B: 44, A: 255},
	{R: 214, G: 39, B: 40, A: 255},
	{R: 148, G: 103, B: 189, A: 255},
}

// PlotTrajectory draws a top view (X/Y, metres) of the recorded origins,
// one line per role, and saves it to file. The format follows the file
// extension (png, svg, pdf).
func PlotTrajectory(samples []Sample, title, file string) error {
	if len(samples) == 0 {
		return ErrNoSamples
	}

	byRole := map[string]plotter.XYs{}
	for _, s := range samples {
		byRole[s.Role] = append(byRole[s.Role], plotter.XY{X: s.Frame.Origin[0], Y: s.Frame.Origin[1]})
	}
	roles := make([]string, 0, len(byRole))
	for role := range byRole {
		roles = append(roles, role)
	}
	sort.Strings(roles)

	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = "X (m)"
	p.Y.Label.Text = "Y (m)"
	p.Add(plotter.NewGrid())

	for i, role := range roles {
		line, err := plotter.NewLine(byRole[role])
		if err != nil {
			return fmt.Errorf("plot %s: %w", role, err)
		}
		line.Width = vg.Points(1)
		line.Color = roleColors[i%len(roleColors)]
		p.Add(line)
		p.Legend.Add(role, line)
	}

	if err := p.Save(8*vg.Inch, 8*vg.Inch, file); err != nil {
		return fmt.Errorf("save plot %s: %w", file, err)
	}
	return nil
}
