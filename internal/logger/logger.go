package logger

import (
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Global logger instance
var (
	Log zerolog.Logger
)

// Initialize sets up the global logger with configuration
func Initialize(level string, pretty bool) {
	// Parse log level
	logLevel, err := zerolog.ParseLevel(level)
	if err != nil {
		logLevel = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(logLevel)

	// Configure output format
	if pretty {
		// Pretty console output for development
		log.Logger = log.Output(zerolog.ConsoleWriter{
			Out:        os.Stdout,
			TimeFormat: time.RFC3339,
		})
	} else {
		// JSON output for production
		zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	}

	// Set global logger
	Log = log.With().
		Str("service", "recordkeeper-api").
		Logger()

	Log.Info().
		Str("level", logLevel.String()).
		Bool("pretty", pretty).
		Msg("Logger initialized")
}

// GetLogger returns the global logger instance
func GetLogger() *zerolog.Logger {
	return &Log
}

// Security creates a logger for auth/entitlement events
func Security() *zerolog.Logger {
	l := Log.With().Str("component", "security").Logger()
	return &l
}

// Database creates a logger for database events
func Database() *zerolog.Logger {
	l := Log.With().Str("component", "database").Logger()
	return &l
}

// HTTP creates a logger for HTTP request events
func HTTP() *zerolog.Logger {
	l := Log.With().Str("component", "http").Logger()
	return &l
}

// Ingest creates a logger for the ingestion pipeline
func Ingest() *zerolog.Logger {
	l := Log.With().Str("component", "ingest").Logger()
	return &l
}

// Query creates a logger for the filter-query engine
func Query() *zerolog.Logger {
	l := Log.With().Str("component", "query").Logger()
	return &l
}

// Stream creates a logger for the CSV streaming pipeline
func Stream() *zerolog.Logger {
	l := Log.With().Str("component", "stream").Logger()
	return &l
}

// Prune creates a logger for the upload-session prune job
func Prune() *zerolog.Logger {
	l := Log.With().Str("component", "prune").Logger()
	return &l
}
