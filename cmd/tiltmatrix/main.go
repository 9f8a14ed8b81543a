// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/golang/glog"

	"github.com/relabs-tech/tilt_matrix/internal/app"
	"github.com/relabs-tech/tilt_matrix/internal/config"
)

func main() {
	configPath := flag.String("config", "./tiltmatrix.yaml", "path to configuration file")
	simulate := flag.Bool("simulate", false, "run on the simulated sensor and display")
	flag.Set("logtostderr", "true")
	flag.Parse()
	defer glog.Flush()

	glog.Info("starting tilt matrix (MPU-6050 → MAX7219)")

	if err := config.InitGlobal(*configPath); err != nil {
		glog.Exitf("failed to load config: %v", err)
	}
	if *simulate {
		config.Get().Simulate = true
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := app.RunMatrix(ctx); err != nil {
		glog.Exitf("fatal: %v", err)
	}
	glog.Info("tilt matrix stopped")
}
