package main

import (
	"context"
	"flag"

	"ListingHarvester/internal/supervisor"
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

	if len(cfg.Supervisor.Jobs) == 0 {
		logger.Fatal().Msg("No supervisor jobs configured")
	}

	specs := make([]supervisor.JobSpec, 0, len(cfg.Supervisor.Jobs))
	for _, j := range cfg.Supervisor.Jobs {
		specs = append(specs, supervisor.JobSpecFromOptions(j))
	}

	signals, stop := supervisor.NotifySignals()
	defer stop()

	sup := supervisor.New(logger, specs...)
	if err := sup.Run(context.Background(), signals); err != nil {
		logger.Error().Err(err).Msg("Supervisor stopped")
	}
}
