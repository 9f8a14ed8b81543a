// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package transport exposes the two serial bus capabilities the pipeline
// depends on and adapts periph.io buses to them.
package transport

import "fmt"

// I2C is the addressed bus capability used by the inertial sensor.
// Each call is one transaction and may block for its duration.
type I2C interface {
	Write(addr uint16, w []byte) error
	Read(addr uint16, r []byte) error
	// WriteRead issues an addressed write immediately followed by a read
	// (repeated start). Used for every register burst.
	WriteRead(addr uint16, w, r []byte) error
}

// SPI is the write-only capability used by the display driver.
// Chip-select is handled by the implementation.
type SPI interface {
	Write(w []byte) error
}

// TransportError reports a failed bus transaction.
type TransportError struct {
	Op   string // "write", "read", "write_read"
	Bus  string
	Addr uint16
	Err  error
}

func (e *TransportError) Error() string {
	if e.Addr != 0 {
		return fmt.Sprintf("%s %s 0x%02X: %v", e.Bus, e.Op, e.Addr, e.Err)
	}
	return fmt.Sprintf("%s %s: %v", e.Bus, e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }
