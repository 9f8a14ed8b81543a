// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package transport

import (
	"fmt"
	"io"

	"periph.io/x/conn/v3"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/conn/v3/spi"
	"periph.io/x/conn/v3/spi/spireg"
	"periph.io/x/host/v3"
)

// I2CBus adapts a periph.io I2C bus to the I2C capability.
type I2CBus struct {
	bus    i2c.Bus
	closer io.Closer
}

// NewI2C wraps an already opened bus.
func NewI2C(bus i2c.Bus) *I2CBus {
	return &I2CBus{bus: bus}
}

// OpenI2C initializes the periph host and opens the named I2C bus.
// An empty name selects the first registered bus.
func OpenI2C(name string) (*I2CBus, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("periph host init: %w", err)
	}
	bus, err := i2creg.Open(name)
	if err != nil {
		return nil, fmt.Errorf("i2c bus %q: %w", name, err)
	}
	return &I2CBus{bus: bus, closer: bus}, nil
}

func (b *I2CBus) Write(addr uint16, w []byte) error {
	return b.tx("write", addr, w, nil)
}

func (b *I2CBus) Read(addr uint16, r []byte) error {
	return b.tx("read", addr, nil, r)
}

func (b *I2CBus) WriteRead(addr uint16, w, r []byte) error {
	return b.tx("write_read", addr, w, r)
}

func (b *I2CBus) tx(op string, addr uint16, w, r []byte) error {
	if err := b.bus.Tx(addr, w, r); err != nil {
		return &TransportError{Op: op, Bus: b.bus.String(), Addr: addr, Err: err}
	}
	return nil
}

// Close releases the bus if it was opened by OpenI2C.
func (b *I2CBus) Close() error {
	if b.closer == nil {
		return nil
	}
	return b.closer.Close()
}

// SPIDevice adapts a periph.io SPI connection to the SPI capability.
// When cs is set, it is pulled low around every write so each message is
// latched on its own rising edge.
type SPIDevice struct {
	conn   conn.Conn
	cs     gpio.PinOut
	closer io.Closer
}

// NewSPI wraps an already connected SPI conn. cs may be nil.
func NewSPI(c conn.Conn, cs gpio.PinOut) *SPIDevice {
	return &SPIDevice{conn: c, cs: cs}
}

// OpenSPI initializes the periph host, opens the SPI port in mode 0 with
// 8-bit words and resolves the optional chip-select pin.
func OpenSPI(port string, speedHz int64, csPin string) (*SPIDevice, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("periph host init: %w", err)
	}
	p, err := spireg.Open(port)
	if err != nil {
		return nil, fmt.Errorf("spi port %q: %w", port, err)
	}
	c, err := p.Connect(physic.Frequency(speedHz)*physic.Hertz, spi.Mode0, 8)
	if err != nil {
		p.Close()
		return nil, fmt.Errorf("spi port %q connect: %w", port, err)
	}

	d := &SPIDevice{conn: c, closer: p}
	if csPin != "" {
		cs := gpioreg.ByName(csPin)
		if cs == nil {
			p.Close()
			return nil, fmt.Errorf("CS pin %q not found", csPin)
		}
		if err := cs.Out(gpio.High); err != nil {
			p.Close()
			return nil, fmt.Errorf("CS pin %q: %w", csPin, err)
		}
		d.cs = cs
	}
	return d, nil
}

func (d *SPIDevice) Write(w []byte) error {
	if d.cs != nil {
		if err := d.cs.Out(gpio.Low); err != nil {
			return &TransportError{Op: "select", Bus: d.conn.String(), Err: err}
		}
	}
	err := d.conn.Tx(w, nil)
	if d.cs != nil {
		if csErr := d.cs.Out(gpio.High); err == nil && csErr != nil {
			err = csErr
		}
	}
	if err != nil {
		return &TransportError{Op: "write", Bus: d.conn.String(), Err: err}
	}
	return nil
}

// Close releases the port if it was opened by OpenSPI.
func (d *SPIDevice) Close() error {
	if d.closer == nil {
		return nil
	}
	return d.closer.Close()
}
