// Package logging builds the arbor logger from configuration.
package logging

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/smhanov/contextual/internal/config"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/arbor/models"
)

const timeFormat = "15:04:05"

func consoleWriter() models.WriterConfiguration {
	return models.WriterConfiguration{
		Type:             models.LogWriterTypeConsole,
		TimeFormat:       timeFormat,
		TextOutput:       true,
		DisableTimestamp: false,
	}
}

// Setup returns a logger writing to the outputs named in cfg.Logging.
// A file output whose directory cannot be created is skipped with a warning;
// when no output is usable the logger falls back to the console.
func Setup(cfg *config.Config) arbor.ILogger {
	logger := arbor.NewLogger()

	hasFileOutput := false
	hasConsoleOutput := false
	for _, output := range cfg.Logging.Output {
		switch output {
		case "file":
			hasFileOutput = true
		case "stdout", "console":
			hasConsoleOutput = true
		}
	}

	fileConfigured := false
	if hasFileOutput && cfg.Logging.File != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.Logging.File), 0755); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: Failed to create logs directory: %v\n", err)
		} else {
			logger = logger.WithFileWriter(models.WriterConfiguration{
				Type:             models.LogWriterTypeFile,
				FileName:         cfg.Logging.File,
				TimeFormat:       timeFormat,
				MaxSize:          100 * 1024 * 1024, // 100 MB
				MaxBackups:       3,
				TextOutput:       true,
				DisableTimestamp: false,
			})
			fileConfigured = true
		}
	}

	if hasConsoleOutput || !fileConfigured {
		logger = logger.WithConsoleWriter(consoleWriter())
	}

	return logger.WithLevelFromString(cfg.Logging.Level)
}

// Quiet returns a console logger that only reports warnings and errors.
// The MCP server uses it so tool traffic on stdio stays readable.
func Quiet() arbor.ILogger {
	return arbor.NewLogger().WithConsoleWriter(consoleWriter()).WithLevelFromString("warn")
}
