// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package runtime

import (
	"fmt"
	"strings"

	ps "github.com/mitchellh/go-ps"
)

// DefaultProcesses are the processes that must be running for the VR
// runtime to be considered up.
var DefaultProcesses = []string{"vrserver", "vrmonitor"}

// ProcessDetector checks the process table for the VR runtime.
type ProcessDetector struct {
	Required []string
	// List defaults to ps.Processes.
	List func() ([]ps.Process, error)
}

// NewProcessDetector returns a detector for the given process names
// (DefaultProcesses when none are given).
func NewProcessDetector(names ...string) *ProcessDetector {
	if len(names) == 0 {
		names = DefaultProcesses
	}
	return &ProcessDetector{Required: names, List: ps.Processes}
}

// Detect returns ErrRuntimeNotDetected unless every required process is
// running. Names are matched case-insensitively, with or without ".exe".
func (d *ProcessDetector) Detect() error {
	list := d.List
	if list == nil {
		list = ps.Processes
	}
	procs, err := list()
	if err != nil {
		return fmt.Errorf("list processes: %w", err)
	}

	running := make(map[string]bool, len(procs))
	for _, p := range procs {
		name := strings.ToLower(p.Executable())
		running[strings.TrimSuffix(name, ".exe")] = true
	}

	var missing []string
	for _, name := range d.Required {
		if !running[strings.ToLower(name)] {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: missing process(es) %s", ErrRuntimeNotDetected, strings.Join(missing, ", "))
	}
	return nil
}
