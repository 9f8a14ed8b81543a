// Package telemetry collects the pipeline diagnostics (estimator attitude
// and rendered frames) and republishes them over MQTT, HTTP and websocket.
package telemetry

import (
	"strings"
	"time"

	"github.com/relabs-tech/tilt_matrix/internal/max7219"
	"github.com/relabs-tech/tilt_matrix/internal/mpu6050"
)

// Frame is one repaint of the matrix: bit x of Rows[y] is cell (x, y).
type Frame struct {
	Time time.Time          `json:"time"`
	Rows [max7219.Size]byte `json:"rows"`
}

// Grid renders the frame as text, one string per row, '#' for lit cells.
func (f Frame) Grid() []string {
	out := make([]string, len(f.Rows))
	var b strings.Builder
	for y, row := range f.Rows {
		b.Reset()
		for x := 0; x < max7219.Size; x++ {
			if row&(1<<uint(x)) != 0 {
				b.WriteByte('#')
			} else {
				b.WriteByte('.')
			}
		}
		out[y] = b.String()
	}
	return out
}

// Report is one item on the diagnostics queue. Exactly one field is set.
type Report struct {
	Attitude *mpu6050.Attitude `json:"attitude,omitempty"`
	Frame    *Frame            `json:"frame,omitempty"`
}

// AttitudeReport wraps a copy of a.
func AttitudeReport(a mpu6050.Attitude) Report {
	return Report{Attitude: &a}
}

// FrameReport wraps the rows shown at t.
func FrameReport(t time.Time, rows [max7219.Size]byte) Report {
	return Report{Frame: &Frame{Time: t, Rows: rows}}
}

// Topics names the MQTT topic of each report kind.
type Topics struct {
	Attitude string
	Frame    string
}
