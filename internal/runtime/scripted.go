// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package runtime

import (
	"errors"

	"github.com/relabs-tech/vive_track/internal/device"
)

// ErrScriptDone is returned by Scripted.UpdateTick once every tick was played.
var ErrScriptDone = errors.New("scripted runtime: no more ticks")

// Tick is one scripted runtime tick.
type Tick struct {
	Table       device.Table
	Controllers map[int]device.ControllerState
	Err         error // returned by UpdateTick instead of Table
}

// Scripted replays a fixed list of ticks. It also counts calls so callers
// can check which runtime operations a query triggered.
type Scripted struct {
	ConnectErr error

	ticks     []Tick
	next      int
	current   Tick
	connected bool

	Connects          int
	Updates           int
	ControllerQueries int
}

// NewScripted returns a runtime that plays ticks in order.
func NewScripted(ticks ...Tick) *Scripted {
	return &Scripted{ticks: ticks}
}

// Push appends more ticks to the script.
func (s *Scripted) Push(ticks ...Tick) {
	s.ticks = append(s.ticks, ticks...)
}

func (s *Scripted) Connect() error {
	s.Connects++
	if s.ConnectErr != nil {
		return s.ConnectErr
	}
	s.connected = true
	return nil
}

func (s *Scripted) Close() error {
	s.connected = false
	return nil
}

func (s *Scripted) UpdateTick() (device.Table, error) {
	s.Updates++
	if !s.connected {
		return nil, ErrNotConnected
	}
	if s.next >= len(s.ticks) {
		return nil, ErrScriptDone
	}
	s.current = s.ticks[s.next]
	s.next++
	if s.current.Err != nil {
		return nil, s.current.Err
	}
	return s.current.Table, nil
}

// QueryControllerState returns the scripted state for id in the current
// tick, or a zero state when none was scripted.
func (s *Scripted) QueryControllerState(id int) (device.ControllerState, error) {
	s.ControllerQueries++
	if !s.connected {
		return device.ControllerState{}, ErrNotConnected
	}
	return s.current.Controllers[id], nil
}
