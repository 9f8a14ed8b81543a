package sim

import (
	"fmt"
	"math/bits"
	"strings"
	"sync"

	"github.com/golang/glog"
)

// Matrix emulates a MAX7219 driving an 8x8 LED matrix on a SPI bus.
// Every accepted write is kept so tests can replay what the panel showed.
type Matrix struct {
	mu      sync.Mutex
	regs    [16]byte
	writes  [][2]byte
	shown   [][8]byte
	failErr error
}

// NewMatrix creates a powered-down panel.
func NewMatrix() *Matrix {
	return &Matrix{}
}

// Fail makes every following write return err.
func (m *Matrix) Fail(err error) {
	m.mu.Lock()
	m.failErr = err
	m.mu.Unlock()
}

func (m *Matrix) Write(w []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failErr != nil {
		return m.failErr
	}
	if len(w) != 2 {
		return fmt.Errorf("sim: max7219 expects 2-byte messages, got %d", len(w))
	}
	reg, val := w[0]&0x0F, w[1]
	m.writes = append(m.writes, [2]byte{reg, val})

	before := m.visible()
	m.regs[reg] = val
	after := m.visible()
	if after != before {
		m.shown = append(m.shown, after)
		if glog.V(3) {
			glog.Infof("sim: matrix\n%s", render(after))
		}
	}
	return nil
}

// visible returns the rows lit right now. A shut-down panel is dark.
func (m *Matrix) visible() [8]byte {
	var rows [8]byte
	if m.regs[0x0C]&0x01 == 0 {
		return rows
	}
	copy(rows[:], m.regs[1:9])
	return rows
}

// Writes returns every (register, value) message received.
func (m *Matrix) Writes() [][2]byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([][2]byte(nil), m.writes...)
}

// Shown returns each distinct image the panel displayed, in order.
func (m *Matrix) Shown() [][8]byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([][8]byte(nil), m.shown...)
}

// Visible returns the current image.
func (m *Matrix) Visible() [8]byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.visible()
}

// LitCount returns the number of lit cells in rows.
func LitCount(rows [8]byte) int {
	n := 0
	for _, r := range rows {
		n += bits.OnesCount8(r)
	}
	return n
}

func render(rows [8]byte) string {
	var b strings.Builder
	for _, r := range rows {
		for x := 0; x < 8; x++ {
			if r&(1<<x) != 0 {
				b.WriteString("#")
			} else {
				b.WriteString(".")
			}
		}
		b.WriteString("\n")
	}
	return b.String()
}
