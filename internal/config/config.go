// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package config

import (
	"bytes"
	"fmt"
	"os"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration values.
type Config struct {
	// MQTT
	MQTTBroker          string
	MQTTClientIDTracker string
	MQTTClientIDConsole string
	MQTTClientIDWeb     string
	MQTTClientIDDisplay string

	// Topics
	TopicFrames   string // tracker publishes one JSON frame set per tick
	TopicCommands string // calibrate / freeze / record commands to the tracker

	// VR runtime
	Runtime          string   // "simulated" or "serial"
	RuntimeProcesses []string // processes that must run before connecting; empty skips detection
	SerialPort       string
	SerialBaudRate   int
	SimTrackers      int // trackers generated by the simulated runtime

	// Tracking
	TickInterval       int // milliseconds
	TrackerSlots       int // tracker ordinals queried per tick
	PreviewMesh        bool
	ComposeCalibration bool
	CalibrationFile    string
	RecorderDB         string // empty disables recording

	// Console
	ConsoleLogInterval int // milliseconds

	// Web Server
	WebServerPort int

	// Display
	DisplayI2CBus         string
	DisplayI2CAddr        uint16
	DisplayUpdateInterval int // milliseconds

	// Freeze pedal (GPIO input, active low); empty disables it
	FreezePedalPin string

	LogLevel string
}

// Tick returns TickInterval as a duration.
func (c *Config) Tick() time.Duration {
	return time.Duration(c.TickInterval) * time.Millisecond
}

// EnvPrefix prefixes environment overrides, e.g. VIVETRACK_MQTT_BROKER.
const EnvPrefix = "VIVETRACK"

var defaults = map[string]any{
	"MQTT_BROKER":             "tcp://localhost:1883",
	"MQTT_CLIENT_ID_TRACKER":  "vivetrack-tracker",
	"MQTT_CLIENT_ID_CONSOLE":  "vivetrack-console",
	"MQTT_CLIENT_ID_WEB":      "vivetrack-web",
	"MQTT_CLIENT_ID_DISPLAY":  "vivetrack-display",
	"TOPIC_FRAMES":            "vivetrack/frames",
	"TOPIC_COMMANDS":          "vivetrack/commands",
	"RUNTIME":                 "simulated",
	"RUNTIME_PROCESSES":       "",
	"SERIAL_PORT":             "/dev/ttyUSB0",
	"SERIAL_BAUD_RATE":        115200,
	"SIM_TRACKERS":            2,
	"TICK_INTERVAL":           11,
	"TRACKER_SLOTS":           4,
	"PREVIEW_MESH":            true,
	"COMPOSE_CALIBRATION":     true,
	"CALIBRATION_FILE":        "vivetrack_calibration.json",
	"RECORDER_DB":             "",
	"CONSOLE_LOG_INTERVAL":    500,
	"WEB_SERVER_PORT":         8080,
	"DISPLAY_I2C_BUS":         "",
	"DISPLAY_I2C_ADDR":        "0x3C",
	"DISPLAY_UPDATE_INTERVAL": 250,
	"FREEZE_PEDAL_PIN":        "",
	"LOG_LEVEL":               "info",
}

// Package-level unexported variables for singleton pattern:
//   - globalConfig: only reachable through InitGlobal and Get.
//   - configOnce: ensures InitGlobal() only runs once, even if called multiple times.
//   - configMu: write lock for initialization, read lock for Get().
var (
	globalConfig *Config
	configOnce   sync.Once
	configMu     sync.RWMutex
)

// Load reads a KEY=VALUE configuration file and returns a Config struct.
// Lines starting with # are comments. Unknown keys are rejected. Every key
// can be overridden from the environment with the VIVETRACK_ prefix.
func Load(configPath string) (*Config, error) {
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	return Parse(data)
}

// Parse is Load on in-memory file contents.
func Parse(data []byte) (*Config, error) {
	// the file alone, to catch typos before defaults hide them
	raw := viper.New()
	raw.SetConfigType("env")
	if err := raw.ReadConfig(bytes.NewReader(data)); err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}
	for _, key := range raw.AllKeys() {
		if _, ok := defaults[strings.ToUpper(key)]; !ok {
			return nil, fmt.Errorf("unknown config key: %q", strings.ToUpper(key))
		}
	}

	v := viper.New()
	v.SetConfigType("env")
	v.SetEnvPrefix(EnvPrefix)
	v.AutomaticEnv()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}
	if err := v.ReadConfig(bytes.NewReader(data)); err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	addr, err := parseAddr(v.GetString("DISPLAY_I2C_ADDR"))
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		MQTTBroker:            v.GetString("MQTT_BROKER"),
		MQTTClientIDTracker:   v.GetString("MQTT_CLIENT_ID_TRACKER"),
		MQTTClientIDConsole:   v.GetString("MQTT_CLIENT_ID_CONSOLE"),
		MQTTClientIDWeb:       v.GetString("MQTT_CLIENT_ID_WEB"),
		MQTTClientIDDisplay:   v.GetString("MQTT_CLIENT_ID_DISPLAY"),
		TopicFrames:           v.GetString("TOPIC_FRAMES"),
		TopicCommands:         v.GetString("TOPIC_COMMANDS"),
		Runtime:               strings.ToLower(v.GetString("RUNTIME")),
		RuntimeProcesses:      splitList(v.GetString("RUNTIME_PROCESSES")),
		SerialPort:            v.GetString("SERIAL_PORT"),
		SerialBaudRate:        v.GetInt("SERIAL_BAUD_RATE"),
		SimTrackers:           v.GetInt("SIM_TRACKERS"),
		TickInterval:          v.GetInt("TICK_INTERVAL"),
		TrackerSlots:          v.GetInt("TRACKER_SLOTS"),
		PreviewMesh:           v.GetBool("PREVIEW_MESH"),
		ComposeCalibration:    v.GetBool("COMPOSE_CALIBRATION"),
		CalibrationFile:       v.GetString("CALIBRATION_FILE"),
		RecorderDB:            v.GetString("RECORDER_DB"),
		ConsoleLogInterval:    v.GetInt("CONSOLE_LOG_INTERVAL"),
		WebServerPort:         v.GetInt("WEB_SERVER_PORT"),
		DisplayI2CBus:         v.GetString("DISPLAY_I2C_BUS"),
		DisplayI2CAddr:        addr,
		DisplayUpdateInterval: v.GetInt("DISPLAY_UPDATE_INTERVAL"),
		FreezePedalPin:        v.GetString("FREEZE_PEDAL_PIN"),
		LogLevel:              v.GetString("LOG_LEVEL"),
	}

	// Validate required fields
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// parseAddr accepts decimal or 0x-prefixed hex.
func parseAddr(s string) (uint16, error) {
	addr, err := strconv.ParseUint(strings.TrimSpace(s), 0, 16)
	if err != nil {
		return 0, fmt.Errorf("invalid DISPLAY_I2C_ADDR %q: %w", s, err)
	}
	return uint16(addr), nil
}

func splitList(s string) []string {
	var out []string
	for _, item := range strings.Split(s, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

// validate checks that all required fields are set.
func (c *Config) validate() error {
	if c.MQTTBroker == "" {
		return fmt.Errorf("MQTT_BROKER is required")
	}
	if c.TopicFrames == "" || c.TopicCommands == "" {
		return fmt.Errorf("TOPIC_FRAMES and TOPIC_COMMANDS are required")
	}
	if !slices.Contains([]string{"simulated", "serial"}, c.Runtime) {
		return fmt.Errorf("RUNTIME must be simulated or serial, got %q", c.Runtime)
	}
	if c.Runtime == "serial" && (c.SerialPort == "" || c.SerialBaudRate <= 0) {
		return fmt.Errorf("SERIAL_PORT and SERIAL_BAUD_RATE are required for the serial runtime")
	}
	if c.TickInterval <= 0 {
		return fmt.Errorf("TICK_INTERVAL must be positive, got %d", c.TickInterval)
	}
	if c.TrackerSlots < 0 || c.SimTrackers < 0 {
		return fmt.Errorf("TRACKER_SLOTS and SIM_TRACKERS must not be negative")
	}
	if c.ConsoleLogInterval <= 0 || c.DisplayUpdateInterval <= 0 {
		return fmt.Errorf("CONSOLE_LOG_INTERVAL and DISPLAY_UPDATE_INTERVAL must be positive")
	}
	return nil
}

// InitGlobal initializes the global configuration from file.
// Uses sync.Once to ensure this only runs once, even if called multiple times.
func InitGlobal(configPath string) error {
	var err error
	configOnce.Do(func() {
		configMu.Lock()
		defer configMu.Unlock()
		globalConfig, err = Load(configPath)
	})
	return err
}

// Get returns the global configuration instance.
// InitGlobal must be called first, or this will return nil.
func Get() *Config {
	configMu.RLock()
	defer configMu.RUnlock()
	return globalConfig
}
