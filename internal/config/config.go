// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package config

import (
	"fmt"
	"os"
	"sync"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all application configuration values.
type Config struct {
	Simulate  bool            `yaml:"simulate"`
	Sensor    SensorConfig    `yaml:"sensor"`
	Display   DisplayConfig   `yaml:"display"`
	Motion    MotionConfig    `yaml:"motion"`
	Heartbeat HeartbeatConfig `yaml:"heartbeat"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
}

// SensorConfig describes the inertial sensor on bus A.
type SensorConfig struct {
	I2CBus  string `yaml:"i2c_bus"` // "" selects the first registered bus
	Address uint16 `yaml:"address"`

	// Calibration
	CalibrationSamples int           `yaml:"calibration_samples"`
	SettleDelay        time.Duration `yaml:"settle_delay"`

	// Pacing: fixed delay after each read, not a strict period.
	ReadDelay time.Duration `yaml:"read_delay"`
}

// DisplayConfig describes the LED matrix driver on bus B.
type DisplayConfig struct {
	SPIPort   string `yaml:"spi_port"`
	CSPin     string `yaml:"cs_pin"` // empty when the port drives chip-select itself
	SpeedHz   int64  `yaml:"speed_hz"`
	Intensity byte   `yaml:"intensity"` // 0x00-0x0F
}

// MotionConfig holds the cursor state machine parameters.
type MotionConfig struct {
	Mode           string        `yaml:"mode"` // "angle" or "vector"
	Debounce       time.Duration `yaml:"debounce"`
	AngleThreshold float64       `yaml:"angle_threshold"` // degrees, after division
	AngleDivisor   float64       `yaml:"angle_divisor"`
	VectorDeadZone float64       `yaml:"vector_dead_zone"` // g
	StartX         int           `yaml:"start_x"`
	StartY         int           `yaml:"start_y"`
}

// HeartbeatConfig drives the status LED.
type HeartbeatConfig struct {
	Pin    string        `yaml:"pin"` // empty disables the heartbeat
	Period time.Duration `yaml:"period"`
}

// TelemetryConfig controls diagnostics fan-out.
type TelemetryConfig struct {
	MQTTBroker     string        `yaml:"mqtt_broker"` // empty disables MQTT
	MQTTClientID   string        `yaml:"mqtt_client_id"`
	TopicAttitude  string        `yaml:"topic_attitude"`
	TopicFrame     string        `yaml:"topic_frame"`
	HTTPAddr       string        `yaml:"http_addr"` // empty disables the web server
	ReportInterval time.Duration `yaml:"report_interval"`
}

// Package-level unexported variables for singleton pattern:
//   - globalConfig: only reachable through Get().
//   - configOnce: ensures InitGlobal() only runs once, even if called multiple times.
//   - configMu: write lock for initialization, read lock for Get().
var (
	globalConfig *Config
	configOnce   sync.Once
	configMu     sync.RWMutex
)

// Default returns a configuration matching the reference board wiring.
func Default() *Config {
	return &Config{
		Sensor: SensorConfig{
			Address:            0x68,
			CalibrationSamples: 200,
			SettleDelay:        2 * time.Second,
			ReadDelay:          10 * time.Millisecond,
		},
		Display: DisplayConfig{
			SpeedHz: 2_000_000,
		},
		Motion: MotionConfig{
			Mode:           "angle",
			Debounce:       50 * time.Millisecond,
			AngleThreshold: 5,
			AngleDivisor:   4,
			VectorDeadZone: 0.2,
			StartX:         3,
			StartY:         3,
		},
		Heartbeat: HeartbeatConfig{
			Period: 500 * time.Millisecond,
		},
		Telemetry: TelemetryConfig{
			MQTTClientID:   "tilt-matrix",
			TopicAttitude:  "tiltmatrix/attitude",
			TopicFrame:     "tiltmatrix/frame",
			ReportInterval: 500 * time.Millisecond,
		},
	}
}

// Load reads the configuration file and returns a Config struct.
// Keys missing from the file keep their Default() values.
func Load(configPath string) (*Config, error) {
	b, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	return Parse(b)
}

// Parse decodes a YAML document on top of Default().
func Parse(b []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(b, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// validate checks ranges that would otherwise break the pipeline at runtime.
func (c *Config) validate() error {
	if c.Sensor.Address == 0 || c.Sensor.Address > 0x7F {
		return fmt.Errorf("sensor.address must be a 7-bit I2C address, got 0x%X", c.Sensor.Address)
	}
	if c.Sensor.CalibrationSamples <= 0 {
		return fmt.Errorf("sensor.calibration_samples must be positive, got %d", c.Sensor.CalibrationSamples)
	}
	if c.Sensor.ReadDelay < 0 || c.Sensor.SettleDelay < 0 {
		return fmt.Errorf("sensor delays must not be negative")
	}
	if c.Display.Intensity > 0x0F {
		return fmt.Errorf("display.intensity must be 0-15, got %d", c.Display.Intensity)
	}
	if c.Display.SpeedHz <= 0 {
		return fmt.Errorf("display.speed_hz must be positive, got %d", c.Display.SpeedHz)
	}
	switch c.Motion.Mode {
	case "angle", "vector":
	default:
		return fmt.Errorf("motion.mode must be \"angle\" or \"vector\", got %q", c.Motion.Mode)
	}
	if c.Motion.AngleDivisor == 0 {
		return fmt.Errorf("motion.angle_divisor must not be zero")
	}
	if c.Motion.Debounce < 0 {
		return fmt.Errorf("motion.debounce must not be negative")
	}
	if c.Motion.StartX < 0 || c.Motion.StartX > 7 || c.Motion.StartY < 0 || c.Motion.StartY > 7 {
		return fmt.Errorf("motion start position (%d,%d) is outside the 8x8 grid", c.Motion.StartX, c.Motion.StartY)
	}
	if c.Heartbeat.Pin != "" && c.Heartbeat.Period <= 0 {
		return fmt.Errorf("heartbeat.period must be positive")
	}
	if c.Telemetry.ReportInterval <= 0 {
		return fmt.Errorf("telemetry.report_interval must be positive")
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
