// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package device

// ClassIndex maps a class to device positions in the registry, in native
// enumeration order. A class with no devices has no key.
type ClassIndex map[Class][]int

// Registry holds the classified device table for the current tick.
type Registry struct {
	devices []*TrackedDevice
	index   ClassIndex
	tick    uint64
}

// NewRegistry returns an empty registry (no tick seen yet).
func NewRegistry() *Registry {
	return &Registry{index: ClassIndex{}}
}

// Rebuild replaces every handle with the contents of table and rebuilds the
// class index. Disconnected entries are dropped.
func (r *Registry) Rebuild(table Table) {
	devices := make([]*TrackedDevice, 0, len(table))
	index := ClassIndex{}
	for _, raw := range table {
		if !raw.Connected {
			continue
		}
		d := newTrackedDevice(raw)
		index[d.Class] = append(index[d.Class], len(devices))
		devices = append(devices, d)
	}
	r.devices = devices
	r.index = index
	r.tick++
}

// ByClassAndOrdinal returns the ordinal-th device of class c for this tick.
func (r *Registry) ByClassAndOrdinal(c Class, ordinal int) (*TrackedDevice, error) {
	list := r.index[c]
	if ordinal < 0 || len(list) < ordinal+1 {
		return nil, &NotFoundError{Class: c, Ordinal: ordinal, Available: len(list)}
	}
	return r.devices[list[ordinal]], nil
}

// Count returns the number of devices of class c this tick.
func (r *Registry) Count(c Class) int {
	return len(r.index[c])
}

// Index returns a copy of the class index.
func (r *Registry) Index() ClassIndex {
	out := make(ClassIndex, len(r.index))
	for c, list := range r.index {
		out[c] = append([]int(nil), list...)
	}
	return out
}

// Devices returns the handles of this tick in enumeration order.
func (r *Registry) Devices() []*TrackedDevice {
	return r.devices
}

// Tick returns the number of rebuilds so far.
func (r *Registry) Tick() uint64 {
	return r.tick
}
