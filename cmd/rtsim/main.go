// Command rtsim runs the soft real-time control pipeline simulation:
// three periodic sensors, a filtering/anomaly-detecting processor, a
// dispatcher, and three PID-controlled actuator workers, all instrumented
// by a pluggable telemetry sink and a lifecycle event tracer.
//
// Follows a familiar startup sequence:
// .env, logger init, flags/env/file config merge, component wiring,
// signal-driven graceful shutdown.
package main

import (
	"flag"
	"log"
	"os"

	"github.com/joho/godotenv"

	"rtsim/pkg/banner"
	"rtsim/pkg/config"
	"rtsim/pkg/logger"
	"rtsim/pkg/orchestrator"
	"rtsim/pkg/shutdown"
)

func main() {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Printf("warning: failed to load .env: %v", err)
	}

	logger.Init()

	flagCfg, flagSet, err := config.ParseFlags(os.Args[1:])
	if err != nil {
		if err == flag.ErrHelp {
			os.Exit(0)
		}
		log.Fatalf("failed to parse flags: %v", err)
	}

	configPath := os.Getenv("RTSIM_CONFIG_FILE")
	fileCfg, fileExists, err := config.ParseFile(configPath)
	if err != nil {
		log.Fatalf("failed to parse config file: %v", err)
	}

	envCfg, envSet := config.ParseEnv()

	eff := config.LoadEffective(flagCfg, flagSet, fileCfg, fileExists, envCfg, envSet)
	if err := eff.Validate(); err != nil {
		log.Fatalf("invalid configuration: %v", err)
	}

	if eff.OutputDir != "" {
		if err := os.MkdirAll(eff.OutputDir, 0o755); err != nil {
			log.Fatalf("failed to create output directory: %v", err)
		}
	}

	banner.Print(eff)

	logger.Info("starting rtsim",
		"sensor_period", eff.SensorPeriod.Duration(),
		"sync_strategy", eff.SyncStrategy,
		"duration", eff.Duration.Duration(),
		"cpu_load_threads", eff.CPULoadThreads,
	)

	ctx, cancel := shutdown.SetupSignalHandler()
	defer cancel()

	o := orchestrator.New(eff)
	o.Run(ctx)

	logger.Info("rtsim run complete")
}
