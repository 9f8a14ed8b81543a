// Package motion turns tilt samples into cursor moves on the 8x8 grid and
// emits the display diffs for them.
package motion

import (
	"context"
	"fmt"
	"time"

	"github.com/golang/glog"

	"github.com/relabs-tech/tilt_matrix/internal/max7219"
	"github.com/relabs-tech/tilt_matrix/internal/mpu6050"
	"github.com/relabs-tech/tilt_matrix/internal/sched"
)

// GridSize bounds both cursor coordinates: 0 <= x,y < GridSize.
const GridSize = max7219.Size

// Position is the cursor cell.
type Position struct {
	X, Y int
}

func (p Position) String() string { return fmt.Sprintf("(%d, %d)", p.X, p.Y) }

// Mode selects which sample fields drive the cursor.
type Mode int

const (
	// ModeAngle uses the accelerometer tilt angles.
	ModeAngle Mode = iota
	// ModeVector uses the raw acceleration components.
	ModeVector
)

// ParseMode maps a config value to a Mode.
func ParseMode(s string) (Mode, error) {
	switch s {
	case "", "angle":
		return ModeAngle, nil
	case "vector":
		return ModeVector, nil
	}
	return ModeAngle, fmt.Errorf("motion: unknown mode %q", s)
}

// Options configures a Controller.
type Options struct {
	Mode           Mode
	Debounce       time.Duration
	AngleThreshold float64 // degrees, compared after dividing by AngleDivisor
	AngleDivisor   float64
	VectorDeadZone float64 // g
	Start          Position
	Clock          sched.Clock
}

// DefaultOptions returns the stock tuning: 50ms debounce, 5° threshold after
// dividing by 4, 0.2g dead zone, start at (3, 3).
func DefaultOptions() Options {
	return Options{
		Mode:           ModeAngle,
		Debounce:       50 * time.Millisecond,
		AngleThreshold: 5,
		AngleDivisor:   4,
		VectorDeadZone: 0.2,
		Start:          Position{3, 3},
		Clock:          sched.SystemClock,
	}
}

// Controller owns the cursor. Only the motion task touches it.
type Controller struct {
	opts     Options
	pos      Position
	prev     Position
	lastEval time.Time
}

// New creates a Controller at opts.Start.
func New(opts Options) *Controller {
	if opts.AngleDivisor == 0 {
		opts.AngleDivisor = 1
	}
	if opts.Clock == nil {
		opts.Clock = sched.SystemClock
	}
	return &Controller{opts: opts, pos: clamp(opts.Start)}
}

// Position returns the current cursor.
func (c *Controller) Position() Position { return c.pos }

// Start returns the commands that paint the initial cursor on a cleared
// display and arms the debounce timer at now.
func (c *Controller) Start(now time.Time) []max7219.Command {
	c.lastEval = now
	cmds := []max7219.Command{
		max7219.Clear(),
		max7219.Cell(c.prev.X, c.prev.Y, false),
		max7219.Cell(c.pos.X, c.pos.Y, true),
	}
	c.prev = c.pos
	return cmds
}

// Step evaluates one sample received at now. Samples arriving within the
// debounce interval of the previous evaluation are dropped. When the
// cursor moves, the old cell is switched off before the new one is lit.
func (c *Controller) Step(s mpu6050.Sample, now time.Time) []max7219.Command {
	if now.Sub(c.lastEval) < c.opts.Debounce {
		return nil
	}
	c.lastEval = now

	switch c.opts.Mode {
	case ModeVector:
		c.pos.X = step(c.pos.X, s.AccVec.Y, c.opts.VectorDeadZone)
		c.pos.Y = step(c.pos.Y, -s.AccVec.X, c.opts.VectorDeadZone)
	default:
		c.pos.X = step(c.pos.X, s.AccAngle.X/c.opts.AngleDivisor, c.opts.AngleThreshold)
		c.pos.Y = step(c.pos.Y, -s.AccAngle.Y/c.opts.AngleDivisor, c.opts.AngleThreshold)
	}

	if c.pos == c.prev {
		return nil
	}
	cmds := []max7219.Command{
		max7219.Cell(c.prev.X, c.prev.Y, false),
		max7219.Cell(c.pos.X, c.pos.Y, true),
	}
	c.prev = c.pos
	return cmds
}

// step moves v one cell toward the sign of input when input is outside
// [-threshold, threshold], staying on the grid.
func step(v int, input, threshold float64) int {
	switch {
	case input > threshold && v < GridSize-1:
		return v + 1
	case input < -threshold && v > 0:
		return v - 1
	}
	return v
}

func clamp(p Position) Position {
	p.X = min(max(p.X, 0), GridSize-1)
	p.Y = min(max(p.Y, 0), GridSize-1)
	return p
}

// Run clears the display, then consumes samples forever. Each sample is
// handled, and its commands sent, before the next one is read.
func (c *Controller) Run(ctx context.Context, in *sched.Queue[mpu6050.Sample], out *sched.Queue[max7219.Command]) error {
	glog.Infof("motion: started (%s -> %s)", in.Name(), out.Name())
	for _, cmd := range c.Start(c.opts.Clock.Now()) {
		out.Send(cmd)
	}

	for {
		s, err := in.Recv(ctx)
		if err != nil {
			return err
		}
		for _, cmd := range c.Step(s, c.opts.Clock.Now()) {
			out.Send(cmd)
		}
		if glog.V(3) {
			glog.Infof("motion: %s  %s", c.pos, s)
		}
	}
}
