// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"context"
	"fmt"
	"time"

	"github.com/golang/glog"
	"periph.io/x/conn/v3/gpio"

	"github.com/relabs-tech/tilt_matrix/internal/config"
	"github.com/relabs-tech/tilt_matrix/internal/max7219"
	"github.com/relabs-tech/tilt_matrix/internal/motion"
	"github.com/relabs-tech/tilt_matrix/internal/mpu6050"
	"github.com/relabs-tech/tilt_matrix/internal/sched"
	"github.com/relabs-tech/tilt_matrix/internal/telemetry"
)

// Pipeline is the estimator, motion controller and display controller
// wired through their queues, plus the diagnostics hub.
//
//	estimator --Samples--> controller --Commands--> display
//	estimator, display --Reports--> hub
type Pipeline struct {
	Estimator  *mpu6050.Estimator
	Controller *motion.Controller
	Display    *max7219.Display
	Hub        *telemetry.Hub

	Samples  *sched.Queue[mpu6050.Sample]
	Commands *sched.Queue[max7219.Command]
	Reports  *sched.Queue[telemetry.Report]

	led             gpio.PinOut
	heartbeatPeriod time.Duration
	clock           sched.Clock
}

// NewPipeline builds the stages from cfg on hw. pub may be nil.
func NewPipeline(cfg *config.Config, hw *Hardware, clock sched.Clock, pub telemetry.Publisher) (*Pipeline, error) {
	mode, err := motion.ParseMode(cfg.Motion.Mode)
	if err != nil {
		return nil, err
	}
	if clock == nil {
		clock = sched.SystemClock
	}

	p := &Pipeline{
		Samples:         sched.NewQueue[mpu6050.Sample]("samples"),
		Commands:        sched.NewQueue[max7219.Command]("commands"),
		Reports:         sched.NewQueue[telemetry.Report]("diagnostics"),
		led:             hw.LED,
		heartbeatPeriod: cfg.Heartbeat.Period,
		clock:           clock,
	}

	p.Estimator = mpu6050.New(hw.Sensor, mpu6050.Options{
		Address:            cfg.Sensor.Address,
		CalibrationSamples: cfg.Sensor.CalibrationSamples,
		SettleDelay:        cfg.Sensor.SettleDelay,
		ReadDelay:          cfg.Sensor.ReadDelay,
		ReportInterval:     cfg.Telemetry.ReportInterval,
		Clock:              clock,
		OnAttitude: func(a mpu6050.Attitude) {
			p.Reports.Send(telemetry.AttitudeReport(a))
		},
	})

	p.Controller = motion.New(motion.Options{
		Mode:           mode,
		Debounce:       cfg.Motion.Debounce,
		AngleThreshold: cfg.Motion.AngleThreshold,
		AngleDivisor:   cfg.Motion.AngleDivisor,
		VectorDeadZone: cfg.Motion.VectorDeadZone,
		Start:          motion.Position{X: cfg.Motion.StartX, Y: cfg.Motion.StartY},
		Clock:          clock,
	})

	p.Display = max7219.New(hw.Display, max7219.Options{
		Intensity: cfg.Display.Intensity,
		OnFrame: func(rows [max7219.Size]byte) {
			p.Reports.Send(telemetry.FrameReport(clock.Now(), rows))
		},
	})

	p.Hub = telemetry.NewHub(pub, telemetry.Topics{
		Attitude: cfg.Telemetry.TopicAttitude,
		Frame:    cfg.Telemetry.TopicFrame,
	})
	return p, nil
}

// Tasks returns the long running tasks. Each stage brings up its own
// device before entering its loop.
func (p *Pipeline) Tasks() []sched.Task {
	tasks := []sched.Task{
		sched.NamedFunc("estimator", func(ctx context.Context) error {
			if err := p.Estimator.Init(ctx); err != nil {
				return err
			}
			return p.Estimator.Run(ctx, p.Samples)
		}),
		sched.NamedFunc("motion", func(ctx context.Context) error {
			return p.Controller.Run(ctx, p.Samples, p.Commands)
		}),
		sched.NamedFunc("display", func(ctx context.Context) error {
			if err := p.Display.Init(); err != nil {
				return fmt.Errorf("max7219: init: %w", err)
			}
			return p.Display.Run(ctx, p.Commands)
		}),
		sched.NamedFunc("telemetry", func(ctx context.Context) error {
			return p.Hub.Run(ctx, p.Reports)
		}),
	}
	if p.led != nil && p.heartbeatPeriod > 0 {
		tasks = append(tasks, sched.NamedFunc("heartbeat", func(ctx context.Context) error {
			return Heartbeat(ctx, p.led, p.heartbeatPeriod, p.clock)
		}))
	}
	return tasks
}

// Heartbeat blinks pin: high for period, low for period. Pin errors are
// ignored so a bad LED never stops anything else.
func Heartbeat(ctx context.Context, pin gpio.PinOut, period time.Duration, clock sched.Clock) error {
	glog.Info("heartbeat: started")
	for {
		_ = pin.Out(gpio.High)
		if err := clock.Sleep(ctx, period); err != nil {
			return err
		}
		_ = pin.Out(gpio.Low)
		if err := clock.Sleep(ctx, period); err != nil {
			return err
		}
	}
}
