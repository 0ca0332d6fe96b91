// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package tracking

import (
	"cmp"
	"fmt"
	"strconv"
	"strings"

	"github.com/relabs-tech/vive_track/internal/device"
	"github.com/relabs-tech/vive_track/internal/geom"
	"github.com/relabs-tech/vive_track/internal/preview"
)

// SlotKey identifies a logical role: a class and an ordinal within it.
type SlotKey struct {
	Class   device.Class
	Ordinal int
}

func (k SlotKey) String() string {
	return fmt.Sprintf("%s#%d", k.Class, k.Ordinal)
}

// ParseSlotKey is the inverse of SlotKey.String. A bare class name means
// ordinal 0.
func ParseSlotKey(s string) (SlotKey, error) {
	name, num, found := strings.Cut(s, "#")
	class, err := device.ParseClass(name)
	if err != nil {
		return SlotKey{}, err
	}
	key := SlotKey{Class: class}
	if found {
		if key.Ordinal, err = strconv.Atoi(num); err != nil || key.Ordinal < 0 {
			return SlotKey{}, fmt.Errorf("invalid slot ordinal %q", num)
		}
	}
	return key, nil
}

func compareKeys(a, b SlotKey) int {
	if c := cmp.Compare(a.Class, b.Class); c != 0 {
		return c
	}
	return cmp.Compare(a.Ordinal, b.Ordinal)
}

// Slot is the cache of one role. A slot exists only after its first
// tracked query succeeded, so its frames are always defined.
type Slot struct {
	key      SlotKey
	deviceID int
	tick     uint64

	frame       geom.Frame // handed to callers
	deviceFrame geom.Frame // before calibration
	pose        [16]float64
	input       device.Input

	projector *preview.Projector
}

func (s *Slot) Key() SlotKey                  { return s.key }
func (s *Slot) DeviceID() int                 { return s.deviceID }
func (s *Slot) Tick() uint64                  { return s.tick }
func (s *Slot) Frame() geom.Frame             { return s.frame }
func (s *Slot) DeviceFrame() geom.Frame       { return s.deviceFrame }
func (s *Slot) Pose() [16]float64             { return s.pose }
func (s *Slot) Input() device.Input           { return s.input }
func (s *Slot) Projector() *preview.Projector { return s.projector }

// applyPreview updates the visibility gate and tint of the slot's projector.
func (s *Slot) applyPreview(cfg QueryConfig) {
	s.projector.SetEnabled(cfg.PreviewMesh)
	if cfg.PreviewColor != nil {
		s.projector.SetColor(*cfg.PreviewColor)
	} else {
		s.projector.SetColor(preview.DefaultColor(s.key.Class))
	}
}

func (s *Slot) result(tracked bool) Result {
	return Result{
		Key:         s.key,
		Available:   true,
		Tracked:     tracked,
		DeviceID:    s.deviceID,
		Tick:        s.tick,
		Frame:       s.frame,
		DeviceFrame: s.deviceFrame,
		Input:       s.input,
		Projector:   s.projector,
	}
}

// Result is what a query hands back. When Available is false no tracked
// query of the role has succeeded yet and every other field is zero.
type Result struct {
	Key       SlotKey
	Available bool
	// Tracked is true when this query refreshed the frame, false when the
	// frozen frame was returned.
	Tracked     bool
	DeviceID    int
	Tick        uint64 // session tick of the last refresh
	Frame       geom.Frame
	DeviceFrame geom.Frame
	Input       device.Input // controllers only
	Projector   *preview.Projector
}
