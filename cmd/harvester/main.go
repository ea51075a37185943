package main

import (
	"context"
	"encoding/json"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"ListingHarvester/internal/app"
	"ListingHarvester/internal/storage"
	"ListingHarvester/pkg/config"
	"ListingHarvester/utils"
)

func main() {
	configPath := flag.String("config", "harvester.yml", "Path to the configuration file")
	task := flag.String("task", "once", "Task to run: once, daemon, or list")
	site := flag.String("site", "", "Only harvest the named site")
	flag.Parse()

	cfg, err := config.LoadFile(*configPath)
	if err != nil {
		utils.SetupLogger("info").Fatal().Err(err).Str("path", *configPath).Msg("Failed to load config")
	}
	logger := utils.SetupLogger(cfg.Logging.Level)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if *task == "list" {
		application := app.New(cfg, nil, logger)
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		_ = enc.Encode(application.ModuleInfos(*site))
		return
	}

	sink, err := storage.Open(ctx, cfg.Storage.Driver, cfg.Storage.DSN)
	if err != nil {
		logger.Fatal().Err(err).Str("driver", cfg.Storage.Driver).Msg("Failed to open storage")
	}
	defer sink.Close()

	application := app.New(cfg, sink, logger)
	logger.Info().Str("task", *task).Str("site", *site).Msg("Running task")

	switch *task {
	case "once":
		results, err := application.RunOnce(ctx, *site)
		if err != nil {
			logger.Fatal().Err(err).Msg("Harvest failed")
		}
		for _, r := range results {
			if !r.Success {
				os.Exit(1)
			}
		}

	case "daemon":
		if err := application.RunDaemon(ctx, *site); err != nil {
			logger.Fatal().Err(err).Msg("Daemon failed")
		}

	default:
		logger.Fatal().Str("task", *task).Msg("Unknown task")
	}
}
