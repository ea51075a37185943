package utils

import (
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/arbor/models"
)

// SetupLogger builds the console logger shared by every command.
func SetupLogger(level string) arbor.ILogger {
	if level == "" {
		level = "info"
	}
	return arbor.NewLogger().WithConsoleWriter(models.WriterConfiguration{
		Type:             models.LogWriterTypeConsole,
		TimeFormat:       "15:04:05",
		DisableTimestamp: false,
	}).WithLevelFromString(level)
}
