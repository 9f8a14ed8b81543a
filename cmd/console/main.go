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
	flag.Set("logtostderr", "true")
	flag.Parse()
	defer glog.Flush()

	glog.Info("starting tilt matrix console (MQTT subscriber)")

	if err := config.InitGlobal(*configPath); err != nil {
		glog.Exitf("failed to load config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := app.RunConsole(ctx, os.Stdout); err != nil {
		glog.Exitf("fatal: %v", err)
	}
}
