// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package max7219 drives an 8x8 LED matrix through a MAX7219 and keeps the
// logical pixel state the panel is repainted from.
package max7219

import (
	"context"
	"fmt"

	"github.com/golang/glog"

	"github.com/relabs-tech/tilt_matrix/internal/sched"
	"github.com/relabs-tech/tilt_matrix/internal/transport"
)

// Size is the edge length of the matrix.
const Size = 8

const (
	regDigit0      = 0x01 // rows are digits 1..8
	regDecodeMode  = 0x09
	regIntensity   = 0x0A
	regScanLimit   = 0x0B
	regShutdown    = 0x0C
	regDisplayTest = 0x0F

	scanAllDigits = 0x07
)

// Options configures a Display.
type Options struct {
	Intensity byte // 0x00 (minimum) - 0x0F

	// OnFrame, when set, receives a copy of every frame after it is written.
	OnFrame func(rows [Size]byte)
}

// Display owns the matrix state. Only the display task touches it.
type Display struct {
	bus   transport.SPI
	opts  Options
	state State
}

// New creates a Display with an all-off, dirty state.
func New(bus transport.SPI, opts Options) *Display {
	return &Display{bus: bus, opts: opts, state: NewState()}
}

// State exposes the current logical state.
func (d *Display) State() *State { return &d.state }

func (d *Display) write(reg, val byte) error {
	if err := d.bus.Write([]byte{reg, val}); err != nil {
		return fmt.Errorf("max7219: write reg 0x%02X: %w", reg, err)
	}
	return nil
}

// Init brings the driver up. The order matters to the hardware: shut down,
// leave test mode, set intensity, raw decode, scan all 8 digits, blank
// every row, then resume normal operation.
func (d *Display) Init() error {
	seq := [][2]byte{
		{regShutdown, 0x00},
		{regDisplayTest, 0x00},
		{regIntensity, d.opts.Intensity & 0x0F},
		{regDecodeMode, 0x00},
		{regScanLimit, scanAllDigits},
	}
	for row := byte(0); row < Size; row++ {
		seq = append(seq, [2]byte{regDigit0 + row, 0x00})
	}
	seq = append(seq, [2]byte{regShutdown, 0x01})

	for _, m := range seq {
		if err := d.write(m[0], m[1]); err != nil {
			return err
		}
	}
	glog.Info("max7219: init done")
	return nil
}

// Render repaints all rows when the state is dirty. Rows are always sent
// in full, top to bottom.
func (d *Display) Render() error {
	if !d.state.dirty {
		return nil
	}
	for row := 0; row < Size; row++ {
		if err := d.write(regDigit0+byte(row), d.state.rows[row]); err != nil {
			return err
		}
	}
	d.state.dirty = false
	if d.opts.OnFrame != nil {
		d.opts.OnFrame(d.state.rows)
	}
	return nil
}

// Run alternates between repainting and waiting for commands. Each
// received command is applied alone, so its effect is painted before the
// next command is read. A bus failure ends Run.
func (d *Display) Run(ctx context.Context, in *sched.Queue[Command]) error {
	glog.Infof("max7219: started (reading %s)", in.Name())
	for {
		if d.state.dirty {
			if err := d.Render(); err != nil {
				return err
			}
			continue
		}
		cmd, err := in.Recv(ctx)
		if err != nil {
			return err
		}
		d.state.Apply(cmd)
	}
}
