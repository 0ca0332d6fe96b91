// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package tracking is the per-tick pose pipeline: it pulls the device table
// from the VR runtime, converts poses, composes the calibration and caches
// one frame per role so that untracked queries return the last frame.
//
// A Session is not safe for concurrent use. The host calls Update once per
// tick and then issues its queries, all from the same goroutine.
package tracking

import (
	"errors"
	"fmt"
	"image/color"
	"log/slog"
	"slices"

	"github.com/google/uuid"

	"github.com/relabs-tech/vive_track/internal/calibration"
	"github.com/relabs-tech/vive_track/internal/device"
	"github.com/relabs-tech/vive_track/internal/geom"
	vlog "github.com/relabs-tech/vive_track/internal/log"
	"github.com/relabs-tech/vive_track/internal/pose"
	"github.com/relabs-tech/vive_track/internal/preview"
	"github.com/relabs-tech/vive_track/internal/runtime"
)

// ErrInvalidSession is returned for a nil session or one not created by
// NewSession.
var ErrInvalidSession = errors.New("tracking: invalid session")

// Detector reports whether the VR runtime is up.
type Detector interface {
	Detect() error
}

// QueryConfig holds every query option. Use DefaultQueryConfig and change
// what differs.
type QueryConfig struct {
	Ordinal      int
	Tracked      bool
	PreviewMesh  bool
	PreviewColor *color.RGBA // nil: default tint of the class
}

// DefaultQueryConfig is ordinal 0, tracked, preview on, default tint.
func DefaultQueryConfig() QueryConfig {
	return QueryConfig{Ordinal: 0, Tracked: true, PreviewMesh: true}
}

// Session owns the registry, the calibration and the slot caches of one
// tracking context.
type Session struct {
	id      uuid.UUID
	rt      runtime.Runtime
	logger  *slog.Logger
	detect  Detector
	meshes  func(device.Class) preview.Mesh
	compose bool

	connected   bool
	registry    *device.Registry
	calibration *calibration.State
	slots       map[SlotKey]*Slot
}

// Option configures a Session.
type Option func(*Session)

// WithLogger sets the session logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Session) { s.logger = l }
}

// WithDetector makes Connect check for the runtime processes first.
func WithDetector(d Detector) Option {
	return func(s *Session) { s.detect = d }
}

// WithCalibrationComposition selects whether frames handed to callers are
// expressed relative to the calibration (default true). When false callers
// get device frames and the calibration is only stored.
func WithCalibrationComposition(enabled bool) Option {
	return func(s *Session) { s.compose = enabled }
}

// WithMeshes sets the preview mesh used for each class (default
// preview.BuiltinMesh). A mesh that fails Validate is replaced by the
// built-in one when the slot is created.
func WithMeshes(fn func(device.Class) preview.Mesh) Option {
	return func(s *Session) { s.meshes = fn }
}

// NewSession creates a session on top of rt.
func NewSession(rt runtime.Runtime, opts ...Option) (*Session, error) {
	if rt == nil {
		return nil, fmt.Errorf("%w: nil runtime", ErrInvalidSession)
	}
	s := &Session{
		id:          uuid.New(),
		rt:          rt,
		logger:      vlog.Discard(),
		meshes:      preview.BuiltinMesh,
		compose:     true,
		registry:    device.NewRegistry(),
		calibration: calibration.NewState(),
		slots:       map[SlotKey]*Slot{},
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With("session", s.id.String())
	return s, nil
}

func (s *Session) valid() error {
	if s == nil || s.id == uuid.Nil || s.registry == nil {
		return ErrInvalidSession
	}
	return nil
}

// ID returns the session handle id.
func (s *Session) ID() uuid.UUID {
	if s == nil {
		return uuid.Nil
	}
	return s.id
}

// Connect detects and opens the runtime. It can be called again after a
// failure; the session keeps all cached slots either way.
func (s *Session) Connect() error {
	if err := s.valid(); err != nil {
		return err
	}
	if s.detect != nil {
		if err := s.detect.Detect(); err != nil {
			s.connected = false
			return err
		}
	}
	if err := s.rt.Connect(); err != nil {
		s.connected = false
		if errors.Is(err, runtime.ErrConnectionFailed) {
			return err
		}
		return &runtime.ConnectionError{Diagnostic: "connect", Err: err}
	}
	s.connected = true
	s.logger.Info("vr runtime connected")
	return nil
}

// Connected reports whether the last Connect succeeded.
func (s *Session) Connected() bool {
	return s != nil && s.connected
}

// Update pulls the next device table and rebuilds the registry. On error
// the previous tick's registry is kept. A lost runtime link marks the
// session disconnected.
func (s *Session) Update() error {
	if err := s.valid(); err != nil {
		return err
	}
	if !s.connected {
		return fmt.Errorf("update: %w", runtime.ErrRuntimeNotDetected)
	}
	table, err := s.rt.UpdateTick()
	if err != nil {
		if errors.Is(err, runtime.ErrConnectionFailed) || errors.Is(err, runtime.ErrNotConnected) {
			// the link is gone, the next Connect reopens it
			s.connected = false
		}
		return fmt.Errorf("update tick: %w", err)
	}
	s.registry.Rebuild(table)
	return nil
}

// Tick returns the number of completed updates.
func (s *Session) Tick() uint64 {
	if s.valid() != nil {
		return 0
	}
	return s.registry.Tick()
}

// Registry exposes the current tick's devices (read only by convention).
func (s *Session) Registry() *device.Registry {
	if s.valid() != nil {
		return nil
	}
	return s.registry
}

// Calibrate sets (enabled) or resets (disabled) the session calibration.
func (s *Session) Calibrate(reference geom.Frame, enabled bool) error {
	if err := s.valid(); err != nil {
		return err
	}
	if err := s.calibration.Set(reference, enabled); err != nil {
		return err
	}
	s.logger.Info("calibration updated", "enabled", enabled, "origin", reference.Origin)
	return nil
}

// Calibration returns the session calibration state.
func (s *Session) Calibration() *calibration.State {
	if s.valid() != nil {
		return nil
	}
	return s.calibration
}

// ComposesCalibration reports whether returned frames include the
// calibration.
func (s *Session) ComposesCalibration() bool {
	return s != nil && s.compose
}

// Query returns the frame of the cfg.Ordinal-th device of class.
//
// Tracked queries look the device up in this tick's registry (a device
// whose pose is not valid fails with device.ErrPoseInvalid), convert its
// pose, compose the calibration and overwrite the slot. Untracked queries
// return the slot as it is, without touching the registry or runtime;
// before the first tracked success they return a Result with Available
// false and no error. On error no slot is created or modified.
func (s *Session) Query(class device.Class, cfg QueryConfig) (Result, error) {
	if err := s.valid(); err != nil {
		return Result{}, err
	}
	key := SlotKey{Class: class, Ordinal: cfg.Ordinal}

	if !cfg.Tracked {
		slot, ok := s.slots[key]
		if !ok {
			return Result{Key: key}, nil
		}
		slot.applyPreview(cfg)
		return slot.result(false), nil
	}

	if !s.connected {
		return Result{}, fmt.Errorf("query %s: %w", key, runtime.ErrRuntimeNotDetected)
	}

	d, err := s.lookup(key)
	if err != nil {
		return Result{}, fmt.Errorf("query %s: %w", key, err)
	}
	if !d.PoseValid {
		return Result{}, fmt.Errorf("query %s: device %d: %w", key, d.ID, device.ErrPoseInvalid)
	}

	deviceFrame := pose.DeviceFrame(d)

	if class == device.ClassController {
		st, err := s.rt.QueryControllerState(d.ID)
		if err != nil {
			return Result{}, fmt.Errorf("query %s: controller state: %w", key, err)
		}
		d.Input = ExtractInput(st)
	}

	frame := deviceFrame
	if s.compose {
		frame = s.calibration.Apply(deviceFrame)
	}

	slot := s.slots[key]
	if slot == nil {
		slot = &Slot{
			key:       key,
			projector: preview.NewProjector(s.mesh(class), preview.DefaultColor(class)),
		}
		s.slots[key] = slot
		s.logger.Debug("slot created", "slot", key.String(), "device", d.ID)
	}
	slot.deviceID = d.ID
	slot.tick = s.registry.Tick()
	slot.frame = frame
	slot.deviceFrame = deviceFrame
	slot.pose = d.CorrectedPose
	slot.input = d.Input

	slot.applyPreview(cfg)
	slot.projector.Transform(frame)

	return slot.result(true), nil
}

// mesh returns the preview mesh of class, or the built-in one when the
// configured mesh does not validate.
func (s *Session) mesh(class device.Class) preview.Mesh {
	m := s.meshes(class)
	if err := m.Validate(); err != nil {
		s.logger.Warn("invalid preview mesh, using built-in", "class", class.String(), "err", err)
		return preview.BuiltinMesh(class)
	}
	return m
}

// lookup resolves a role to this tick's device. The HMD role is a
// singleton: only ordinal 0 exists.
func (s *Session) lookup(key SlotKey) (*device.TrackedDevice, error) {
	if key.Class == device.ClassHMD && key.Ordinal != 0 {
		return nil, &device.NotFoundError{Class: key.Class, Ordinal: key.Ordinal, Available: s.registry.Count(key.Class)}
	}
	return s.registry.ByClassAndOrdinal(key.Class, key.Ordinal)
}

// HMD queries the headset.
func (s *Session) HMD(tracked bool) (Result, error) {
	cfg := DefaultQueryConfig()
	cfg.Tracked = tracked
	return s.Query(device.ClassHMD, cfg)
}

// Controller queries the ordinal-th controller.
func (s *Session) Controller(ordinal int, tracked bool) (Result, error) {
	cfg := DefaultQueryConfig()
	cfg.Ordinal, cfg.Tracked = ordinal, tracked
	return s.Query(device.ClassController, cfg)
}

// Lighthouse queries the ordinal-th base station.
func (s *Session) Lighthouse(ordinal int, tracked bool) (Result, error) {
	cfg := DefaultQueryConfig()
	cfg.Ordinal, cfg.Tracked = ordinal, tracked
	return s.Query(device.ClassLighthouse, cfg)
}

// Tracker queries the ordinal-th generic tracker.
func (s *Session) Tracker(ordinal int, tracked bool) (Result, error) {
	cfg := DefaultQueryConfig()
	cfg.Ordinal, cfg.Tracked = ordinal, tracked
	return s.Query(device.ClassTracker, cfg)
}

// Slot returns the cache of a role, if one was created.
func (s *Session) Slot(class device.Class, ordinal int) (*Slot, bool) {
	if s.valid() != nil {
		return nil, false
	}
	slot, ok := s.slots[SlotKey{Class: class, Ordinal: ordinal}]
	return slot, ok
}

// Slots returns every slot ordered by class then ordinal.
func (s *Session) Slots() []*Slot {
	if s.valid() != nil {
		return nil
	}
	out := make([]*Slot, 0, len(s.slots))
	for _, slot := range s.slots {
		out = append(out, slot)
	}
	slices.SortFunc(out, func(a, b *Slot) int { return compareKeys(a.key, b.key) })
	return out
}

// Close closes the runtime. Slots stay readable.
func (s *Session) Close() error {
	if err := s.valid(); err != nil {
		return err
	}
	s.connected = false
	return s.rt.Close()
}
