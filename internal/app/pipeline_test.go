package app

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpiotest"

	"github.com/relabs-tech/tilt_matrix/internal/config"
	"github.com/relabs-tech/tilt_matrix/internal/max7219"
	"github.com/relabs-tech/tilt_matrix/internal/motion"
	"github.com/relabs-tech/tilt_matrix/internal/sched"
	"github.com/relabs-tech/tilt_matrix/internal/sim"
)

var t0 = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

// TestTiltMovesOneCellPerDebounceWindow drives the three stages by hand on
// simulated time: calibrate on a level fixture, then hold a tilt whose
// scaled x angle is well past the threshold.
func TestTiltMovesOneCellPerDebounceWindow(t *testing.T) {
	cfg := config.Default()
	hw := Simulated(cfg)
	clock := sched.NewManualClock(t0)
	p, err := NewPipeline(cfg, hw, clock, nil)
	require.NoError(t, err)

	require.NoError(t, p.Display.Init())
	require.NoError(t, p.Estimator.Init(context.Background()))
	assert.Equal(t, 200, hw.SimIMU.Reads(0x3B))
	assert.Equal(t, 200, hw.SimIMU.Reads(0x43))

	apply := func(cmds []max7219.Command) {
		for _, c := range cmds {
			p.Display.State().Apply(c)
			require.NoError(t, p.Display.Render())
		}
	}
	apply(p.Controller.Start(clock.Now()))
	require.Equal(t, motion.Position{X: 3, Y: 3}, p.Controller.Position())

	type move struct {
		at  time.Duration
		pos motion.Position
	}
	var moves []move
	start := clock.Now()
	k := 0
	run := func(until time.Duration) {
		for ; clock.Now().Sub(start) <= until; k++ {
			// Two nearby tilts so every reading differs from the previous one.
			if k%2 == 0 {
				hw.SimIMU.SetTilt(40, 0)
			} else {
				hw.SimIMU.SetTilt(41, 0)
			}
			s, changed, err := p.Estimator.Step()
			require.NoError(t, err)
			require.True(t, changed)
			require.Greater(t, s.AccAngle.X/cfg.Motion.AngleDivisor, cfg.Motion.AngleThreshold)

			cmds := p.Controller.Step(s, clock.Now())
			if len(cmds) > 0 {
				moves = append(moves, move{clock.Now().Sub(start), p.Controller.Position()})
			}
			apply(cmds)
			clock.Advance(cfg.Sensor.ReadDelay)
		}
	}

	run(40 * time.Millisecond)
	assert.Empty(t, moves, "moved before the debounce interval elapsed")

	run(90 * time.Millisecond)
	require.Len(t, moves, 1)
	assert.Equal(t, motion.Position{X: 4, Y: 3}, moves[0].pos)
	assert.Equal(t, 50*time.Millisecond, moves[0].at)

	run(400 * time.Millisecond)
	require.Len(t, moves, 4)
	for i := 1; i < len(moves); i++ {
		assert.GreaterOrEqual(t, moves[i].at-moves[i-1].at, cfg.Motion.Debounce)
		assert.Equal(t, moves[i-1].pos.X+1, moves[i].pos.X)
	}
	assert.Equal(t, motion.Position{X: 7, Y: 3}, p.Controller.Position())

	for _, img := range hw.SimMatrix.Shown() {
		assert.LessOrEqual(t, sim.LitCount(img), 1)
	}
	final := hw.SimMatrix.Visible()
	assert.Equal(t, byte(1<<7), final[3])
	assert.Equal(t, 1, sim.LitCount(final))
}

func TestPipelineRunsUnderScheduler(t *testing.T) {
	cfg := config.Default()
	cfg.Sensor.SettleDelay = 0
	cfg.Sensor.ReadDelay = time.Millisecond
	cfg.Heartbeat.Period = 5 * time.Millisecond
	cfg.Telemetry.ReportInterval = 10 * time.Millisecond

	hw := Simulated(cfg)
	led := &gpiotest.Pin{N: "LED"}
	hw.LED = led

	p, err := NewPipeline(cfg, hw, sched.SystemClock, nil)
	require.NoError(t, err)
	tasks := p.Tasks()
	require.Len(t, tasks, 5)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	s := sched.New(len(tasks)).Go(ctx, tasks...)

	go func() {
		for k := 0; ctx.Err() == nil; k++ {
			hw.SimIMU.SetTilt(40+float64(k%2), 0)
			time.Sleep(2 * time.Millisecond)
		}
	}()

	require.Eventually(t, func() bool {
		f, ok := p.Hub.Frame()
		return ok && f.Rows[3] == 1<<7
	}, 10*time.Second, 10*time.Millisecond)

	assert.Eventually(t, func() bool {
		_, ok := p.Hub.Attitude()
		return ok
	}, 5*time.Second, 10*time.Millisecond)

	cancel()
	assert.NoError(t, s.Wait())

	for _, img := range hw.SimMatrix.Shown() {
		assert.LessOrEqual(t, sim.LitCount(img), 1)
	}
}

func TestNewPipelineRejectsUnknownMode(t *testing.T) {
	cfg := config.Default()
	cfg.Motion.Mode = "spiral"
	_, err := NewPipeline(cfg, Simulated(cfg), nil, nil)
	assert.Error(t, err)
}

func TestTasksWithoutLED(t *testing.T) {
	cfg := config.Default()
	p, err := NewPipeline(cfg, Simulated(cfg), nil, nil)
	require.NoError(t, err)

	var names []string
	for _, task := range p.Tasks() {
		names = append(names, task.Name())
	}
	assert.Equal(t, []string{"estimator", "motion", "display", "telemetry"}, names)
}

// sleepRecorder samples the pin at every sleep and cancels after n sleeps.
type sleepRecorder struct {
	sched.Clock
	pin    *gpiotest.Pin
	n      int
	cancel context.CancelFunc
	levels []gpio.Level
	slept  []time.Duration
}

func (c *sleepRecorder) Sleep(ctx context.Context, d time.Duration) error {
	c.levels = append(c.levels, c.pin.Read())
	c.slept = append(c.slept, d)
	if len(c.levels) == c.n {
		c.cancel()
	}
	return ctx.Err()
}

func TestHeartbeatBlinks(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	pin := &gpiotest.Pin{N: "LED"}
	clock := &sleepRecorder{Clock: sched.SystemClock, pin: pin, n: 4, cancel: cancel}

	err := Heartbeat(ctx, pin, 500*time.Millisecond, clock)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, []gpio.Level{gpio.High, gpio.Low, gpio.High, gpio.Low}, clock.levels)
	for _, d := range clock.slept {
		assert.Equal(t, 500*time.Millisecond, d)
	}
}

func TestTakeHardwareOnce(t *testing.T) {
	cfg := config.Default()
	cfg.Simulate = true

	hw, err := TakeHardware(cfg)
	require.NoError(t, err)
	require.NotNil(t, hw.SimIMU)
	hw.Close()

	_, err = TakeHardware(cfg)
	assert.ErrorIs(t, err, ErrHardwareTaken)
}

func TestFormatTelemetry(t *testing.T) {
	line, err := FormatAttitude([]byte(`{"temp_c":24.25,"roll":1.5,"sample":{"acc_vec":{"x":0,"y":0.5,"z":0.9},"acc_angle":{"x":29.1,"y":0,"z":29.1}}}`))
	require.NoError(t, err)
	assert.Contains(t, line, "[TILT]")
	assert.Contains(t, line, "ang = ( 29.1 , 0.0 , 29.1 )")
	assert.Contains(t, line, "ROLL=  1.50")

	out, err := FormatFrame([]byte(`{"time":"2026-03-01T12:00:00Z","rows":[0,0,0,8,0,0,0,0]}`))
	require.NoError(t, err)
	assert.Contains(t, out, "\n  ...#....\n")

	_, err = FormatFrame([]byte("not json"))
	assert.Error(t, err)
}
