package main

import (
	"context"
	"flag"
	"os"

	"github.com/Temutjin2k/driver-engine/config"
	"github.com/Temutjin2k/driver-engine/internal/app"
	"github.com/Temutjin2k/driver-engine/pkg/logger"
)

var helpFlag = flag.Bool("help", false, "Show help message")

func main() {
	flag.Parse()
	if *helpFlag {
		config.PrintHelp()
		return
	}

	ctx := context.Background()
	log := logger.InitLogger("engine", logger.LevelDebug)

	cfg, err := config.NewConfig()
	if err != nil {
		log.Error(ctx, "failed to configure application", err)
		config.PrintHelp()
		os.Exit(1)
	}

	log = logger.InitLogger(string(cfg.Mode), cfg.LogLevel)

	// Printing configuration
	config.PrintConfig(ctx, cfg, log)

	// Creating application
	application, err := app.NewApplication(ctx, *cfg, log)
	if err != nil {
		log.Error(ctx, "failed to init application", err)
		os.Exit(1)
	}

	// Running the application
	if err = application.Run(ctx); err != nil {
		log.Error(ctx, "failed to run application", err)
		os.Exit(1)
	}
}
