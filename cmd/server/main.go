package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"ListingHarvester/internal/app"
	"ListingHarvester/internal/server"
	"ListingHarvester/internal/storage"
	"ListingHarvester/pkg/config"
	"ListingHarvester/utils"
)

func main() {
	configPath := flag.String("config", "harvester.yml", "Path to the configuration file")
	flag.Parse()

	cfg, err := config.LoadFile(*configPath)
	if err != nil {
		utils.SetupLogger("info").Fatal().Err(err).Str("path", *configPath).Msg("Failed to load config")
	}
	logger := utils.SetupLogger(cfg.Logging.Level)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sink, err := storage.Open(ctx, cfg.Storage.Driver, cfg.Storage.DSN)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to open storage")
	}
	defer sink.Close()

	application := app.New(cfg, sink, logger)
	if err := server.Start(ctx, cfg.Server.Addr, sink, application, logger); err != nil {
		logger.Error().Err(err).Msg("Server failed")
	}
}
