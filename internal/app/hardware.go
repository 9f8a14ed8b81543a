// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/golang/glog"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/host/v3"

	"github.com/relabs-tech/tilt_matrix/internal/config"
	"github.com/relabs-tech/tilt_matrix/internal/sim"
	"github.com/relabs-tech/tilt_matrix/internal/transport"
)

// ErrHardwareTaken is returned when the peripherals are acquired twice.
var ErrHardwareTaken = errors.New("app: hardware already acquired")

var hardwareTaken atomic.Bool

// Hardware is the set of peripherals the pipeline runs on.
type Hardware struct {
	Sensor  transport.I2C
	Display transport.SPI
	LED     gpio.PinOut // nil disables the heartbeat

	// Set when running on the simulated buses.
	SimIMU    *sim.IMU
	SimMatrix *sim.Matrix

	closers []func() error
}

// TakeHardware opens the sensor bus, the display bus and the heartbeat pin
// described by cfg, or their simulated stand-ins when cfg.Simulate is set.
// It succeeds at most once per process.
func TakeHardware(cfg *config.Config) (*Hardware, error) {
	if !hardwareTaken.CompareAndSwap(false, true) {
		return nil, ErrHardwareTaken
	}
	if cfg.Simulate {
		return Simulated(cfg), nil
	}

	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("app: periph host init: %w", err)
	}

	hw := &Hardware{}
	i2cBus, err := transport.OpenI2C(cfg.Sensor.I2CBus)
	if err != nil {
		return nil, err
	}
	hw.Sensor = i2cBus
	hw.closers = append(hw.closers, i2cBus.Close)

	spiDev, err := transport.OpenSPI(cfg.Display.SPIPort, cfg.Display.SpeedHz, cfg.Display.CSPin)
	if err != nil {
		hw.Close()
		return nil, err
	}
	hw.Display = spiDev
	hw.closers = append(hw.closers, spiDev.Close)

	if cfg.Heartbeat.Pin != "" {
		pin := gpioreg.ByName(cfg.Heartbeat.Pin)
		if pin == nil {
			hw.Close()
			return nil, fmt.Errorf("app: heartbeat pin %q not found", cfg.Heartbeat.Pin)
		}
		hw.LED = pin
	}

	glog.Infof("app: hardware ready (i2c %q, spi %q)", cfg.Sensor.I2CBus, cfg.Display.SPIPort)
	return hw, nil
}

// Simulated returns in-memory peripherals: a level sensor at the configured
// address and an emulated matrix.
func Simulated(cfg *config.Config) *Hardware {
	imu := sim.NewIMU(cfg.Sensor.Address)
	matrix := sim.NewMatrix()
	glog.Info("app: using simulated sensor and display")
	return &Hardware{Sensor: imu, Display: matrix, SimIMU: imu, SimMatrix: matrix}
}

// Close releases the opened buses.
func (hw *Hardware) Close() {
	for i := len(hw.closers) - 1; i >= 0; i-- {
		if err := hw.closers[i](); err != nil {
			glog.Warningf("app: close: %v", err)
		}
	}
	hw.closers = nil
}
