// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package device

import (
	"fmt"
	"strings"
)

// Class is the functional role of a tracked device.
type Class int

const (
	ClassUnknown Class = iota
	ClassHMD
	ClassController
	ClassLighthouse
	ClassTracker
)

// Native class codes reported by the VR runtime (ETrackedDeviceClass).
const (
	NativeInvalid           uint32 = 0
	NativeHMD               uint32 = 1
	NativeController        uint32 = 2
	NativeGenericTracker    uint32 = 3
	NativeTrackingReference uint32 = 4
)

// Classes lists the known classes in reporting order.
var Classes = []Class{ClassHMD, ClassController, ClassLighthouse, ClassTracker}

// Classify maps a native class code to a Class.
func Classify(native uint32) Class {
	switch native {
	case NativeHMD:
		return ClassHMD
	case NativeController:
		return ClassController
	case NativeGenericTracker:
		return ClassTracker
	case NativeTrackingReference:
		return ClassLighthouse
	default:
		return ClassUnknown
	}
}

// Native returns the runtime class code for c.
func (c Class) Native() uint32 {
	switch c {
	case ClassHMD:
		return NativeHMD
	case ClassController:
		return NativeController
	case ClassTracker:
		return NativeGenericTracker
	case ClassLighthouse:
		return NativeTrackingReference
	default:
		return NativeInvalid
	}
}

func (c Class) String() string {
	switch c {
	case ClassHMD:
		return "hmd"
	case ClassController:
		return "controller"
	case ClassLighthouse:
		return "lighthouse"
	case ClassTracker:
		return "tracker"
	default:
		return "unknown"
	}
}

// ParseClass is the inverse of Class.String. It also accepts the display
// names used in older configs ("HMD", "GenericTracker").
func ParseClass(s string) (Class, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "hmd":
		return ClassHMD, nil
	case "controller":
		return ClassController, nil
	case "lighthouse", "basestation":
		return ClassLighthouse, nil
	case "tracker", "generictracker":
		return ClassTracker, nil
	case "unknown":
		return ClassUnknown, nil
	}
	return ClassUnknown, fmt.Errorf("unknown device class %q", s)
}

// MarshalText lets classes appear as strings in JSON payloads.
func (c Class) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

// UnmarshalText parses a class name.
func (c *Class) UnmarshalText(b []byte) error {
	parsed, err := ParseClass(string(b))
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}
