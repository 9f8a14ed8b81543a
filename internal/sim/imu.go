// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package sim provides in-memory stand-ins for the sensor and the LED
// matrix so the pipeline runs without hardware.
package sim

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/relabs-tech/tilt_matrix/internal/sched"
)

const (
	regAccel    = 0x3B
	regTemp     = 0x41
	regGyro     = 0x43
	regPwrMgmt1 = 0x6B
	regWhoAmI   = 0x75

	lsbPerG = 16384.0
)

// ErrUnknownAddress is returned for transactions to another device.
var ErrUnknownAddress = errors.New("sim: no device at address")

// IMU emulates an MPU-6050 register file on an I2C bus.
// It starts level and stationary.
type IMU struct {
	mu      sync.Mutex
	addr    uint16
	accel   [3]int16
	gyro    [3]int16
	temp    int16
	resets  int
	reads   map[byte]int
	failErr error
	failIn  int
}

// NewIMU creates a level, stationary sensor at addr.
func NewIMU(addr uint16) *IMU {
	return &IMU{
		addr:  addr,
		accel: [3]int16{0, 0, lsbPerG},
		temp:  -521, // ≈ 35 °C
		reads: map[byte]int{},
	}
}

// SetRaw sets the raw accelerometer and gyroscope registers.
func (s *IMU) SetRaw(accel, gyro [3]int16) {
	s.mu.Lock()
	s.accel, s.gyro = accel, gyro
	s.mu.Unlock()
}

// SetTilt sets the acceleration so that the tilt angle derived from the
// y component is xDeg and the one derived from the x component is yDeg.
func (s *IMU) SetTilt(xDeg, yDeg float64) {
	ax := math.Sin(yDeg * math.Pi / 180)
	ay := math.Sin(xDeg * math.Pi / 180)
	az := math.Sqrt(math.Max(0, 1-ax*ax-ay*ay))
	s.mu.Lock()
	s.accel = [3]int16{toRaw(ax), toRaw(ay), toRaw(az)}
	s.mu.Unlock()
}

func toRaw(g float64) int16 {
	v := math.Round(g * lsbPerG)
	return int16(math.Max(math.MinInt16, math.Min(math.MaxInt16, v)))
}

// FailAfter makes the n-th following transaction, and every one after it,
// fail with err.
func (s *IMU) FailAfter(n int, err error) {
	s.mu.Lock()
	s.failIn, s.failErr = n, err
	s.mu.Unlock()
}

// Reads reports how many bursts were read from reg.
func (s *IMU) Reads(reg byte) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reads[reg]
}

// Resets reports how many wake-up writes were received.
func (s *IMU) Resets() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.resets
}

func (s *IMU) fail() error {
	if s.failErr == nil {
		return nil
	}
	if s.failIn > 0 {
		s.failIn--
		return nil
	}
	return s.failErr
}

func (s *IMU) Write(addr uint16, w []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail(); err != nil {
		return err
	}
	if addr != s.addr {
		return ErrUnknownAddress
	}
	if len(w) == 2 && w[0] == regPwrMgmt1 {
		s.resets++
	}
	return nil
}

func (s *IMU) Read(addr uint16, r []byte) error {
	return fmt.Errorf("sim: register read without address write")
}

func (s *IMU) WriteRead(addr uint16, w, r []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail(); err != nil {
		return err
	}
	if addr != s.addr {
		return ErrUnknownAddress
	}
	if len(w) != 1 {
		return fmt.Errorf("sim: expected a register address, got %d bytes", len(w))
	}
	reg := w[0]
	s.reads[reg]++

	var regs []byte
	switch reg {
	case regAccel:
		regs = putVec(s.accel)
	case regGyro:
		regs = putVec(s.gyro)
	case regTemp:
		regs = []byte{byte(uint16(s.temp) >> 8), byte(s.temp)}
	case regWhoAmI:
		regs = []byte{byte(s.addr)}
	default:
		regs = make([]byte, len(r))
	}
	if len(r) > len(regs) {
		return fmt.Errorf("sim: read of %d bytes at 0x%02X exceeds block", len(r), reg)
	}
	copy(r, regs)
	return nil
}

func putVec(v [3]int16) []byte {
	out := make([]byte, 6)
	for i, c := range v {
		out[2*i] = byte(uint16(c) >> 8)
		out[2*i+1] = byte(c)
	}
	return out
}

// Animate sways the sensor so the cursor wanders around the matrix.
func (s *IMU) Animate(ctx context.Context, clock sched.Clock, step time.Duration) error {
	start := clock.Now()
	for {
		elapsed := clock.Now().Sub(start).Seconds()
		s.SetTilt(40*math.Sin(elapsed*0.5), 30*math.Cos(elapsed*0.35))
		if err := clock.Sleep(ctx, step); err != nil {
			return err
		}
	}
}
