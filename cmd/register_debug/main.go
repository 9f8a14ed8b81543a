// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"github.com/golang/glog"

	"github.com/relabs-tech/tilt_matrix/internal/app"
	"github.com/relabs-tech/tilt_matrix/internal/config"
)

func main() {
	configPath := flag.String("config", "./tiltmatrix.yaml", "path to configuration file")
	simulate := flag.Bool("simulate", false, "read the simulated sensor")
	asJSON := flag.Bool("json", false, "print JSON instead of a table")
	flag.Set("logtostderr", "true")
	flag.Parse()
	defer glog.Flush()

	glog.Info("starting MPU-6050 register dump")
	if err := config.InitGlobal(*configPath); err != nil {
		glog.Exitf("failed to load config: %v", err)
	}
	if *simulate {
		config.Get().Simulate = true
	}

	regs, err := app.RunRegisterDump()
	if err != nil {
		glog.Exitf("fatal: %v", err)
	}

	if *asJSON {
		if err := json.NewEncoder(os.Stdout).Encode(regs); err != nil {
			glog.Exitf("fatal: %v", err)
		}
		return
	}
	for _, r := range regs {
		fmt.Printf("0x%02X  %-12s % X\t%s\n", r.Address, r.Name, r.Value, r.Description)
	}
}
