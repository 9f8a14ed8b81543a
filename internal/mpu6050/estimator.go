// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package mpu6050 reads an MPU-6050 over I2C and turns its raw registers
// into tilt samples.
package mpu6050

import (
	"context"
	"fmt"
	"time"

	"github.com/golang/glog"

	"github.com/relabs-tech/tilt_matrix/internal/sched"
	"github.com/relabs-tech/tilt_matrix/internal/transport"
)

// CalibrationError reports a bus failure during the startup averaging.
// Calibration cannot continue without the device.
type CalibrationError struct {
	Phase  string // "accelerometer" or "gyroscope"
	Sample int
	Err    error
}

func (e *CalibrationError) Error() string {
	return fmt.Sprintf("mpu6050: %s calibration sample %d: %v", e.Phase, e.Sample, e.Err)
}

func (e *CalibrationError) Unwrap() error { return e.Err }

// Options configures an Estimator.
type Options struct {
	Address            uint16
	CalibrationSamples int
	SettleDelay        time.Duration
	ReadDelay          time.Duration
	ReportInterval     time.Duration
	Clock              sched.Clock

	// OnAttitude, when set, receives diagnostics every ReportInterval.
	OnAttitude func(Attitude)
}

// DefaultOptions returns the stock timing: 200 calibration samples, 2s settle,
// 10ms between reads.
func DefaultOptions() Options {
	return Options{
		Address:            DefaultAddress,
		CalibrationSamples: 200,
		SettleDelay:        2 * time.Second,
		ReadDelay:          10 * time.Millisecond,
		ReportInterval:     500 * time.Millisecond,
		Clock:              sched.SystemClock,
	}
}

// Estimator owns the sensor and its calibration. It is driven by a single
// task: Init once, then Run.
type Estimator struct {
	bus  transport.I2C
	opts Options

	offsets Offsets

	temperature float64
	gyro        Vec3
	gyroAngle   Vec3
	roll, pitch float64
	lastRead    time.Time

	last       Sample
	published  bool
	lastReport time.Time
}

// New creates an Estimator on bus. Zero option fields take their defaults.
func New(bus transport.I2C, opts Options) *Estimator {
	def := DefaultOptions()
	if opts.Address == 0 {
		opts.Address = def.Address
	}
	if opts.CalibrationSamples <= 0 {
		opts.CalibrationSamples = def.CalibrationSamples
	}
	if opts.ReportInterval <= 0 {
		opts.ReportInterval = def.ReportInterval
	}
	if opts.Clock == nil {
		opts.Clock = def.Clock
	}
	return &Estimator{bus: bus, opts: opts}
}

// Offsets returns the calibration computed by Init.
func (e *Estimator) Offsets() Offsets { return e.offsets }

// Init wakes the device and calibrates it. The device must be stationary
// and level: acceleration is expected to be (0,0,1g) and rotation zero.
func (e *Estimator) Init(ctx context.Context) error {
	if err := e.bus.Write(e.opts.Address, []byte{regPwrMgmt1, 0x00}); err != nil {
		return fmt.Errorf("mpu6050: reset: %w", err)
	}

	e.offsets = Offsets{}
	n := e.opts.CalibrationSamples

	var sum Vec3
	for i := 0; i < n; i++ {
		acc, err := e.readAccel()
		if err != nil {
			return &CalibrationError{Phase: "accelerometer", Sample: i, Err: err}
		}
		sum = sum.Add(acc)
	}
	mean := sum.Scale(1 / float64(n))
	accelBias := Vec3{X: 0 - mean.X, Y: 0 - mean.Y, Z: 1 - mean.Z}

	sum = Vec3{}
	for i := 0; i < n; i++ {
		gyro, err := e.readGyro()
		if err != nil {
			return &CalibrationError{Phase: "gyroscope", Sample: i, Err: err}
		}
		sum = sum.Add(gyro)
	}
	gyroBias := sum.Scale(-1 / float64(n))

	e.offsets = Offsets{Accel: accelBias, Gyro: gyroBias}
	glog.Infof("mpu6050: accelerometer error: x=%g, y=%g, z=%g", accelBias.X, accelBias.Y, accelBias.Z)
	glog.Infof("mpu6050: gyroscope error: x=%g, y=%g, z=%g", gyroBias.X, gyroBias.Y, gyroBias.Z)

	if e.opts.SettleDelay > 0 {
		if err := e.opts.Clock.Sleep(ctx, e.opts.SettleDelay); err != nil {
			return err
		}
	}
	e.lastRead = e.opts.Clock.Now()
	glog.Info("mpu6050: init done")
	return nil
}

// readAccel returns the calibrated acceleration in g.
func (e *Estimator) readAccel() (Vec3, error) {
	var buf [6]byte
	if err := e.bus.WriteRead(e.opts.Address, []byte{regAccelXoutH}, buf[:]); err != nil {
		return Vec3{}, err
	}
	return DecodeAccel(buf[:]).Add(e.offsets.Accel), nil
}

// readGyro returns the calibrated rotation rate in °/s.
func (e *Estimator) readGyro() (Vec3, error) {
	var buf [6]byte
	if err := e.bus.WriteRead(e.opts.Address, []byte{regGyroXoutH}, buf[:]); err != nil {
		return Vec3{}, err
	}
	return DecodeGyro(buf[:]).Add(e.offsets.Gyro), nil
}

func (e *Estimator) readTemperature() (float64, error) {
	var buf [2]byte
	if err := e.bus.WriteRead(e.opts.Address, []byte{regTempOutH}, buf[:]); err != nil {
		return 0, err
	}
	return DecodeTemperature(buf[:]), nil
}

// Step performs one read and fusion cycle. changed is true when the
// sample differs from the last one Step reported as changed, or when it
// is the first sample.
func (e *Estimator) Step() (s Sample, changed bool, err error) {
	if e.temperature, err = e.readTemperature(); err != nil {
		return Sample{}, false, fmt.Errorf("mpu6050: temperature: %w", err)
	}

	acc, err := e.readAccel()
	if err != nil {
		return Sample{}, false, fmt.Errorf("mpu6050: accelerometer: %w", err)
	}
	s = Fuse(acc)

	now := e.opts.Clock.Now()
	dt := now.Sub(e.lastRead).Seconds()
	e.lastRead = now

	if e.gyro, err = e.readGyro(); err != nil {
		return Sample{}, false, fmt.Errorf("mpu6050: gyroscope: %w", err)
	}
	e.gyroAngle = e.gyroAngle.Add(e.gyro.Scale(dt))
	e.roll = gyroWeight*e.gyroAngle.X + (1-gyroWeight)*s.AccAngle.X
	e.pitch = gyroWeight*e.gyroAngle.Y + (1-gyroWeight)*s.AccAngle.Y

	if e.published && s == e.last {
		return s, false, nil
	}
	e.last = s
	e.published = true
	return s, true, nil
}

// Attitude returns the diagnostics of the latest cycle.
func (e *Estimator) Attitude() Attitude {
	return Attitude{
		Time:         e.lastRead,
		TemperatureC: e.temperature,
		Gyro:         e.gyro,
		GyroAngle:    e.gyroAngle,
		Roll:         e.roll,
		Pitch:        e.pitch,
		Yaw:          e.gyroAngle.Z,
		Sample:       e.last,
	}
}

// Run reads the sensor forever, sending a sample to out only when it
// changed. A transport failure ends Run with that error.
func (e *Estimator) Run(ctx context.Context, out *sched.Queue[Sample]) error {
	glog.Info("mpu6050: started")
	e.lastReport = e.opts.Clock.Now()

	for {
		s, changed, err := e.Step()
		if err != nil {
			return err
		}
		if changed {
			out.Send(s)
		}

		if now := e.opts.Clock.Now(); now.Sub(e.lastReport) >= e.opts.ReportInterval {
			e.lastReport = now
			a := e.Attitude()
			if glog.V(2) {
				glog.Infof("mpu6050: temp=%.2f acc %s gyro=(%.2f, %.2f, %.2f) roll/pitch/yaw=(%.1f, %.1f, %.1f)",
					a.TemperatureC, s, a.Gyro.X, a.Gyro.Y, a.Gyro.Z, a.Roll, a.Pitch, a.Yaw)
			}
			if e.opts.OnAttitude != nil {
				e.opts.OnAttitude(a)
			}
		}

		if err := e.opts.Clock.Sleep(ctx, e.opts.ReadDelay); err != nil {
			return err
		}
	}
}
