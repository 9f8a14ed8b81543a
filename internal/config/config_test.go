package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseAppliesDefaults(t *testing.T) {
	cfg, err := Parse([]byte("simulate: true\n"))
	require.NoError(t, err)

	assert.True(t, cfg.Simulate)
	assert.Equal(t, uint16(0x68), cfg.Sensor.Address)
	assert.Equal(t, 200, cfg.Sensor.CalibrationSamples)
	assert.Equal(t, 10*time.Millisecond, cfg.Sensor.ReadDelay)
	assert.Equal(t, 50*time.Millisecond, cfg.Motion.Debounce)
	assert.Equal(t, 5.0, cfg.Motion.AngleThreshold)
	assert.Equal(t, 4.0, cfg.Motion.AngleDivisor)
	assert.Equal(t, 0.2, cfg.Motion.VectorDeadZone)
	assert.Equal(t, "angle", cfg.Motion.Mode)
}

func TestParseOverrides(t *testing.T) {
	doc := `
sensor:
  i2c_bus: "1"
  read_delay: 20ms
display:
  spi_port: /dev/spidev0.0
  cs_pin: GPIO17
  intensity: 3
motion:
  mode: vector
  debounce: 100ms
  start_x: 0
  start_y: 7
telemetry:
  mqtt_broker: tcp://localhost:1883
`
	cfg, err := Parse([]byte(doc))
	require.NoError(t, err)

	assert.Equal(t, "1", cfg.Sensor.I2CBus)
	assert.Equal(t, 20*time.Millisecond, cfg.Sensor.ReadDelay)
	assert.Equal(t, "GPIO17", cfg.Display.CSPin)
	assert.Equal(t, byte(3), cfg.Display.Intensity)
	assert.Equal(t, "vector", cfg.Motion.Mode)
	assert.Equal(t, 100*time.Millisecond, cfg.Motion.Debounce)
	assert.Equal(t, 0, cfg.Motion.StartX)
	assert.Equal(t, 7, cfg.Motion.StartY)
	assert.Equal(t, "tcp://localhost:1883", cfg.Telemetry.MQTTBroker)
	assert.Equal(t, "tiltmatrix/frame", cfg.Telemetry.TopicFrame)
}

func TestParseRejectsInvalid(t *testing.T) {
	cases := map[string]string{
		"mode":      "motion:\n  mode: spin\n",
		"divisor":   "motion:\n  angle_divisor: 0\n",
		"start":     "motion:\n  start_x: 8\n",
		"address":   "sensor:\n  address: 0x80\n",
		"samples":   "sensor:\n  calibration_samples: 0\n",
		"intensity": "display:\n  intensity: 16\n",
		"yaml":      "motion: [",
	}
	for name, doc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Parse([]byte(doc))
			require.Error(t, err)
		})
	}
}

func TestLoadAndGlobal(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tiltmatrix.yaml")
	require.NoError(t, os.WriteFile(path, []byte("simulate: true\n"), 0o644))

	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)

	require.NoError(t, InitGlobal(path))
	require.NotNil(t, Get())
	assert.True(t, Get().Simulate)
}

func TestShippedConfigMatchesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join("..", "..", "tiltmatrix.yaml"))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}
