package utils

import (
	"strconv"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/ternarybob/arbor"
)

// GetOptimalWorkerCount determines the number of modules run concurrently
// based on config and system resources.
func GetOptimalWorkerCount(configValue string, logger arbor.ILogger) int {
	// 1. Check for manual override
	if manualWorkers, err := strconv.Atoi(configValue); err == nil && manualWorkers > 0 {
		logger.Info().Int("workers", manualWorkers).Msg("Using manually configured number of workers")
		return manualWorkers
	}

	// 2. If set to "auto" or invalid, calculate automatically
	if configValue != "auto" && configValue != "" {
		logger.Warn().Str("workers", configValue).Msg("Invalid workers value, defaulting to auto mode")
	}

	// Logical cores: each worker mostly waits on a browser.
	cpuCores, err := cpu.Counts(true)
	if err != nil {
		logger.Warn().Err(err).Int("workers", 2).Msg("Could not detect CPU cores, falling back to default")
		return 2
	}

	// Every worker owns a browser process, so use half of the cores.
	optimalCount := cpuCores / 2

	if optimalCount < 1 {
		optimalCount = 1
	}
	if optimalCount > 16 {
		optimalCount = 16
	}

	logger.Info().Int("cores", cpuCores).Int("workers", optimalCount).Msg("Automatically setting number of workers")
	return optimalCount
}
