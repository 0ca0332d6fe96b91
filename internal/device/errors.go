// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package device

import (
	"errors"
	"fmt"
)

// ErrDeviceNotFound is returned when a class/ordinal pair is not present in
// the current tick.
var ErrDeviceNotFound = errors.New("device not found")

// ErrPoseInvalid is returned when the runtime reports a device whose pose
// is not valid this tick (occluded, out of range).
var ErrPoseInvalid = errors.New("device pose not valid")

// NotFoundError carries the lookup that failed.
type NotFoundError struct {
	Class     Class
	Ordinal   int
	Available int // devices of Class detected this tick
}

func (e *NotFoundError) Error() string {
	if e.Available == 0 {
		return fmt.Sprintf("no %s detected", e.Class)
	}
	return fmt.Sprintf("cannot find %s #%d (%d detected), wrong index?", e.Class, e.Ordinal, e.Available)
}

func (e *NotFoundError) Is(target error) bool {
	return target == ErrDeviceNotFound
}
