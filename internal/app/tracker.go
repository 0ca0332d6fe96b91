// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/relabs-tech/vive_track/internal/calibration"
	"github.com/relabs-tech/vive_track/internal/config"
	"github.com/relabs-tech/vive_track/internal/device"
	"github.com/relabs-tech/vive_track/internal/geom"
	"github.com/relabs-tech/vive_track/internal/log"
	"github.com/relabs-tech/vive_track/internal/recorder"
	"github.com/relabs-tech/vive_track/internal/runtime"
	"github.com/relabs-tech/vive_track/internal/tracking"
)

// TrackerOptions are the per-tick settings of the tracker loop.
type TrackerOptions struct {
	TrackerSlots    int
	PreviewMesh     bool
	CalibrationFile string // empty: calibration changes are not saved
}

// Tracker runs one session tick by tick. It is not safe for concurrent
// use: commands must be handed to the goroutine that calls Step.
type Tracker struct {
	session *tracking.Session
	opts    TrackerOptions
	rec     *recorder.Recorder // nil: recording off
	logger  *slog.Logger
	now     func() time.Time

	frozen      bool
	frozenRoles map[tracking.SlotKey]bool
	preview     bool

	lastConnectErr string
}

// NewTracker wraps a session. rec may be nil.
func NewTracker(session *tracking.Session, opts TrackerOptions, rec *recorder.Recorder, logger *slog.Logger) *Tracker {
	if logger == nil {
		logger = log.Discard()
	}
	return &Tracker{
		session:     session,
		opts:        opts,
		rec:         rec,
		logger:      logger,
		now:         time.Now,
		frozenRoles: make(map[tracking.SlotKey]bool),
		preview:     opts.PreviewMesh,
	}
}

// Session returns the wrapped session.
func (t *Tracker) Session() *tracking.Session { return t.session }

// Roles lists the roles queried every tick: the headset, two controllers,
// two base stations and TrackerSlots trackers.
func (t *Tracker) Roles() []tracking.SlotKey {
	keys := []tracking.SlotKey{
		{Class: device.ClassHMD},
		{Class: device.ClassController, Ordinal: 0},
		{Class: device.ClassController, Ordinal: 1},
		{Class: device.ClassLighthouse, Ordinal: 0},
		{Class: device.ClassLighthouse, Ordinal: 1},
	}
	for i := range t.opts.TrackerSlots {
		keys = append(keys, tracking.SlotKey{Class: device.ClassTracker, Ordinal: i})
	}
	return keys
}

// Frozen reports whether a role currently returns its cached frame.
func (t *Tracker) Frozen(key tracking.SlotKey) bool {
	return t.frozen || t.frozenRoles[key]
}

// Step runs one tick: (re)connect if needed, pull the device table and
// query every role. Roles that are frozen, missing this tick or unreachable
// report their cached frame with Tracked false.
func (t *Tracker) Step() TickMessage {
	live := t.ensureConnected() && t.update()

	msg := TickMessage{
		Session:   t.session.ID().String(),
		Time:      t.now(),
		Connected: t.session.Connected(),
		Frozen:    t.frozen,
	}

	for _, key := range t.Roles() {
		cfg := tracking.DefaultQueryConfig()
		cfg.Ordinal = key.Ordinal
		cfg.PreviewMesh = t.preview
		cfg.Tracked = live && !t.Frozen(key)

		r, err := t.session.Query(key.Class, cfg)
		if err != nil {
			if !errors.Is(err, device.ErrDeviceNotFound) && !errors.Is(err, device.ErrPoseInvalid) {
				t.logger.Warn("query failed", "role", key.String(), "err", err)
			}
			cfg.Tracked = false
			if r, err = t.session.Query(key.Class, cfg); err != nil {
				continue
			}
		}
		msg.Frames = append(msg.Frames, frameMessage(r))
		if r.Tracked {
			t.record(r)
		}
	}

	msg.Tick = t.session.Tick()
	msg.Calibrated = t.session.Calibration().Enabled()
	return msg
}

func (t *Tracker) ensureConnected() bool {
	if t.session.Connected() {
		return true
	}
	if err := t.session.Connect(); err != nil {
		// log each distinct failure once, the loop retries every tick
		if err.Error() != t.lastConnectErr {
			t.logger.Warn("vr runtime unavailable", "err", err)
			t.lastConnectErr = err.Error()
		}
		return false
	}
	t.lastConnectErr = ""
	return true
}

func (t *Tracker) update() bool {
	if err := t.session.Update(); err != nil {
		t.logger.Warn("tick update failed", "err", err)
		return false
	}
	return true
}

func (t *Tracker) record(r tracking.Result) {
	if t.rec == nil {
		return
	}
	_, err := t.rec.Record(recorder.Sample{
		Role:         r.Key.String(),
		Tick:         r.Tick,
		RecordedAt:   t.now(),
		Frame:        r.Frame,
		TriggerValue: r.Input.TriggerValue,
		TouchPadX:    r.Input.TouchPadX,
		TouchPadY:    r.Input.TouchPadY,
	})
	if err != nil {
		t.logger.Error("record frame", "role", r.Key.String(), "err", err)
	}
}

// Handle applies a command. It must run on the Step goroutine.
func (t *Tracker) Handle(cmd Command) error {
	if err := cmd.Validate(); err != nil {
		return err
	}

	var key tracking.SlotKey
	if cmd.Role != "" {
		key, _ = tracking.ParseSlotKey(cmd.Role)
	}

	switch cmd.Action {
	case ActionCalibrate:
		if cmd.Role == "" {
			key = tracking.SlotKey{Class: device.ClassController}
		}
		slot, ok := t.session.Slot(key.Class, key.Ordinal)
		if !ok {
			return fmt.Errorf("calibrate from %s: no frame yet: %w", key, device.ErrDeviceNotFound)
		}
		if err := t.session.Calibrate(slot.DeviceFrame(), true); err != nil {
			return fmt.Errorf("calibrate from %s: %w", key, err)
		}
		return t.saveCalibration(key.String())

	case ActionResetCalibration:
		if err := t.session.Calibrate(geom.IdentityFrame(), false); err != nil {
			return err
		}
		return t.saveCalibration("")

	case ActionFreeze:
		if cmd.Role == "" {
			t.frozen = true
		} else {
			t.frozenRoles[key] = true
		}
		t.logger.Info("freeze", "role", cmd.Role)

	case ActionUnfreeze:
		if cmd.Role == "" {
			t.frozen = false
			clear(t.frozenRoles)
		} else {
			delete(t.frozenRoles, key)
		}
		t.logger.Info("unfreeze", "role", cmd.Role)

	case ActionPreview:
		t.preview = *cmd.Enabled

	case ActionFlush:
		if t.rec == nil {
			return errors.New("flush: recorder is disabled")
		}
		return t.rec.Flush()
	}
	return nil
}

func (t *Tracker) saveCalibration(source string) error {
	if t.opts.CalibrationFile == "" {
		return nil
	}
	rec := t.session.Calibration().Snapshot(source, 1)
	if err := calibration.Save(t.opts.CalibrationFile, rec); err != nil {
		return err
	}
	t.logger.Info("calibration saved", "file", t.opts.CalibrationFile, "source", source)
	return nil
}

// LoadCalibration restores a saved calibration into the session. A missing
// file leaves the session uncalibrated.
func LoadCalibration(session *tracking.Session, path string) error {
	if path == "" {
		return nil
	}
	rec, err := calibration.Load(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return err
	}
	return session.Calibration().Restore(rec)
}

// NewRuntime builds the runtime selected by RUNTIME.
func NewRuntime(cfg *config.Config, logger *slog.Logger) (runtime.Runtime, error) {
	switch cfg.Runtime {
	case "simulated":
		return runtime.NewSimulated(cfg.SimTrackers), nil
	case "serial":
		return runtime.NewSerial(cfg.SerialPort, uint(cfg.SerialBaudRate)).WithLogger(logger), nil
	}
	return nil, fmt.Errorf("unknown runtime %q", cfg.Runtime)
}

// NewSessionFromConfig builds the runtime and the session, and restores the
// saved calibration.
func NewSessionFromConfig(cfg *config.Config, logger *slog.Logger) (*tracking.Session, error) {
	rt, err := NewRuntime(cfg, logger)
	if err != nil {
		return nil, err
	}
	opts := []tracking.Option{
		tracking.WithLogger(logger),
		tracking.WithCalibrationComposition(cfg.ComposeCalibration),
	}
	if len(cfg.RuntimeProcesses) > 0 {
		opts = append(opts, tracking.WithDetector(runtime.NewProcessDetector(cfg.RuntimeProcesses...)))
	}
	session, err := tracking.NewSession(rt, opts...)
	if err != nil {
		return nil, err
	}
	if err := LoadCalibration(session, cfg.CalibrationFile); err != nil {
		return nil, fmt.Errorf("load calibration: %w", err)
	}
	return session, nil
}

// RunTracker drives the session from the tick loop, publishes a
// TickMessage per tick and applies commands from MQTT and the freeze pedal.
func RunTracker() error {
	cfg := config.Get()
	logger := log.With("component", "tracker")
	logger.Info("starting vive_track tracker", "runtime", cfg.Runtime, "tick", cfg.Tick())

	session, err := NewSessionFromConfig(cfg, logger)
	if err != nil {
		return err
	}
	defer session.Close()

	var rec *recorder.Recorder
	if cfg.RecorderDB != "" {
		if rec, err = recorder.Open(cfg.RecorderDB); err != nil {
			return err
		}
		defer rec.Close()
		logger.Info("recording frames", "db", cfg.RecorderDB, "run", rec.Run())
	}

	tracker := NewTracker(session, TrackerOptions{
		TrackerSlots:    cfg.TrackerSlots,
		PreviewMesh:     cfg.PreviewMesh,
		CalibrationFile: cfg.CalibrationFile,
	}, rec, logger)

	// --- connect to MQTT ---
	opts := mqtt.NewClientOptions().
		AddBroker(cfg.MQTTBroker).
		SetClientID(cfg.MQTTClientIDTracker)

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return fmt.Errorf("MQTT connect: %w", token.Error())
	}
	defer client.Disconnect(250)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	commands := make(chan Command, 16)
	token := client.Subscribe(cfg.TopicCommands, 0, func(_ mqtt.Client, msg mqtt.Message) {
		cmd, err := ParseCommand(msg.Payload())
		if err != nil {
			logger.Warn("bad command", "err", err)
			return
		}
		select {
		case commands <- cmd:
		default:
			logger.Warn("command dropped, queue full", "action", cmd.Action)
		}
	})
	if token.Wait() && token.Error() != nil {
		return fmt.Errorf("MQTT subscribe %s: %w", cfg.TopicCommands, token.Error())
	}

	if cfg.FreezePedalPin != "" {
		pin, err := OpenPedal(cfg.FreezePedalPin)
		if err != nil {
			return err
		}
		go WatchPedal(ctx, pin, commands, logger)
		logger.Info("freeze pedal armed", "pin", cfg.FreezePedalPin)
	}

	logger.Info("connected to MQTT, starting tick loop", "topic", cfg.TopicFrames)

	ticker := time.NewTicker(cfg.Tick())
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Info("tracker shutting down", "ticks", session.Tick())
			return nil

		case cmd := <-commands:
			if err := tracker.Handle(cmd); err != nil {
				logger.Warn("command failed", "action", cmd.Action, "err", err)
			}

		case <-ticker.C:
			msg := tracker.Step()
			payload, err := json.Marshal(msg)
			if err != nil {
				logger.Error("json marshal error (frames)", "err", err)
				continue
			}
			if token := client.Publish(cfg.TopicFrames, 0, true, payload); token.Wait() && token.Error() != nil {
				logger.Warn("MQTT publish error (frames)", "err", token.Error())
			}
		}
	}
}
