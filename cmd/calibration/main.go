// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// ./cmd/calibration/main.go
//
// Runs the MPU-6050 startup calibration on its own and prints the offsets.
// Keep the board level and still while it runs.
//
// Run:
//
//	go run ./cmd/calibration -config tiltmatrix.yaml
package main

import (
	"context"
	"encoding/json"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/golang/glog"

	"github.com/relabs-tech/tilt_matrix/internal/app"
	"github.com/relabs-tech/tilt_matrix/internal/config"
	"github.com/relabs-tech/tilt_matrix/internal/mpu6050"
)

// result is the JSON written to stdout.
type result struct {
	Version   int             `json:"version"`
	Timestamp time.Time       `json:"timestamp"`
	Samples   int             `json:"samples"`
	Offsets   mpu6050.Offsets `json:"offsets"`
}

func main() {
	configPath := flag.String("config", "./tiltmatrix.yaml", "path to configuration file")
	simulate := flag.Bool("simulate", false, "calibrate the simulated sensor")
	flag.Set("logtostderr", "true")
	flag.Parse()
	defer glog.Flush()

	if err := config.InitGlobal(*configPath); err != nil {
		glog.Exitf("failed to load config: %v", err)
	}
	if *simulate {
		config.Get().Simulate = true
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	glog.Infof("calibrating: averaging %d samples per sensor", config.Get().Sensor.CalibrationSamples)
	offsets, err := app.RunCalibration(ctx)
	if err != nil {
		glog.Exitf("calibration failed: %v", err)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(result{
		Version:   1,
		Timestamp: time.Now(),
		Samples:   config.Get().Sensor.CalibrationSamples,
		Offsets:   offsets,
	}); err != nil {
		glog.Exitf("write result: %v", err)
	}
}
