// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"context"
	"errors"
	"runtime"
	"time"

	"github.com/golang/glog"

	"github.com/relabs-tech/tilt_matrix/internal/config"
	"github.com/relabs-tech/tilt_matrix/internal/mpu6050"
	"github.com/relabs-tech/tilt_matrix/internal/sched"
	"github.com/relabs-tech/tilt_matrix/internal/telemetry"
)

// simulatedSwayStep is how often the simulated sensor changes its tilt.
const simulatedSwayStep = 20 * time.Millisecond

// RunMatrix runs the tilt-to-matrix pipeline with the global configuration
// until ctx is done.
func RunMatrix(ctx context.Context) error {
	glog.Info("starting tilt matrix")
	cfg := config.Get()

	// Stages interleave on one OS thread; they only meet at queue operations.
	runtime.GOMAXPROCS(1)

	hw, err := TakeHardware(cfg)
	if err != nil {
		return err
	}
	defer hw.Close()

	var pub telemetry.Publisher
	if cfg.Telemetry.MQTTBroker != "" {
		mq, err := telemetry.DialMQTT(cfg.Telemetry.MQTTBroker, cfg.Telemetry.MQTTClientID)
		if err != nil {
			glog.Warningf("app: telemetry disabled: %v", err)
		} else {
			defer mq.Close()
			pub = mq
		}
	}

	p, err := NewPipeline(cfg, hw, sched.SystemClock, pub)
	if err != nil {
		return err
	}

	tasks := p.Tasks()
	if cfg.Telemetry.HTTPAddr != "" {
		tasks = append(tasks, sched.NamedFunc("web", func(ctx context.Context) error {
			return telemetry.Serve(ctx, cfg.Telemetry.HTTPAddr, p.Hub.Handler())
		}))
	}
	if hw.SimIMU != nil {
		tasks = append(tasks, sched.NamedFunc("sim-sway", func(ctx context.Context) error {
			return hw.SimIMU.Animate(ctx, sched.SystemClock, simulatedSwayStep)
		}))
	}

	s := sched.New(len(tasks)).Go(ctx, tasks...)
	go superviseFailures(ctx, s.Failures())

	err = s.Wait()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// superviseFailures reports stages that stopped. Downstream stages of a
// failed one keep waiting on their queues.
func superviseFailures(ctx context.Context, failures <-chan sched.Failure) {
	for {
		select {
		case <-ctx.Done():
			return
		case f := <-failures:
			glog.Errorf("app: stage %s is down, downstream stages are stalled: %v", f.Task, f.Err)
		}
	}
}

// RunCalibration brings up the sensor, runs the startup calibration and
// returns the offsets.
func RunCalibration(ctx context.Context) (mpu6050.Offsets, error) {
	cfg := config.Get()
	hw, err := TakeHardware(cfg)
	if err != nil {
		return mpu6050.Offsets{}, err
	}
	defer hw.Close()

	p, err := NewPipeline(cfg, hw, sched.SystemClock, nil)
	if err != nil {
		return mpu6050.Offsets{}, err
	}
	if err := p.Estimator.Init(ctx); err != nil {
		return mpu6050.Offsets{}, err
	}
	return p.Estimator.Offsets(), nil
}

// RunRegisterDump reads every known sensor register block.
func RunRegisterDump() ([]mpu6050.RegisterValue, error) {
	cfg := config.Get()
	hw, err := TakeHardware(cfg)
	if err != nil {
		return nil, err
	}
	defer hw.Close()
	return mpu6050.DumpRegisters(hw.Sensor, cfg.Sensor.Address)
}
