// Package logging provides structured logging functionality.
package logging

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
	"gopkg.in/natefinch/lumberjack.v2"
)

// LogConfig holds logging configuration.
type LogConfig struct {
	Level      string `mapstructure:"level" default:"info" validate:"oneof=debug info warn error"`
	Console    bool   `mapstructure:"console" default:"true"`
	JSON       bool   `mapstructure:"json"`
	File       bool   `mapstructure:"file"`
	FilePath   string `mapstructure:"file_path"`
	MaxSize    int    `mapstructure:"max_size" default:"100"` // megabytes
	MaxBackups int    `mapstructure:"max_backups" default:"7"`
	MaxAge     int    `mapstructure:"max_age" default:"30"` // days
}

// DefaultLogConfig returns the default logging configuration.
func DefaultLogConfig() LogConfig {
	home, _ := os.UserHomeDir()
	return LogConfig{
		Level:      "info",
		Console:    true,
		File:       false,
		FilePath:   filepath.Join(home, ".config", "crypto-analyst", "logs", "analyst.log"),
		MaxSize:    100,
		MaxBackups: 7,
		MaxAge:     30,
	}
}

// NewLogger creates a new logger with default configuration.
func NewLogger() zerolog.Logger {
	return NewLoggerWithConfig(DefaultLogConfig())
}

// NewLoggerWithConfig creates a new logger with the specified configuration.
func NewLoggerWithConfig(cfg LogConfig) zerolog.Logger {
	var writers []io.Writer

	if cfg.Console {
		if cfg.JSON {
			writers = append(writers, os.Stderr)
		} else {
			writers = append(writers, consoleWriter(os.Stderr))
		}
	}

	if cfg.File && cfg.FilePath != "" {
		logDir := filepath.Dir(cfg.FilePath)
		if err := os.MkdirAll(logDir, 0755); err == nil {
			writers = append(writers, &lumberjack.Logger{
				Filename:   cfg.FilePath,
				MaxSize:    cfg.MaxSize,
				MaxBackups: cfg.MaxBackups,
				MaxAge:     cfg.MaxAge,
				Compress:   true,
			})
		}
	}

	var writer io.Writer
	switch len(writers) {
	case 0:
		writer = io.Discard
	case 1:
		writer = writers[0]
	default:
		writer = zerolog.MultiLevelWriter(writers...)
	}

	return zerolog.New(writer).
		Level(parseLevel(cfg.Level)).
		With().
		Timestamp().
		Logger()
}

func consoleWriter(out io.Writer) zerolog.ConsoleWriter {
	return zerolog.ConsoleWriter{
		Out:        out,
		TimeFormat: time.RFC3339,
		FormatLevel: func(i interface{}) string {
			if ll, ok := i.(string); ok {
				switch ll {
				case "debug":
					return "\033[36mDBG\033[0m"
				case "info":
					return "\033[32mINF\033[0m"
				case "warn":
					return "\033[33mWRN\033[0m"
				case "error":
					return "\033[31mERR\033[0m"
				default:
					return ll
				}
			}
			return "???"
		},
	}
}

func parseLevel(level string) zerolog.Level {
	switch level {
	case "debug":
		return zerolog.DebugLevel
	case "info":
		return zerolog.InfoLevel
	case "warn":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

// ContextKey is the type for context keys.
type ContextKey string

const (
	// LoggerKey is the context key for the logger.
	LoggerKey ContextKey = "logger"
)

// WithLogger adds a logger to the context.
func WithLogger(ctx context.Context, logger zerolog.Logger) context.Context {
	return context.WithValue(ctx, LoggerKey, logger)
}

// FromContext retrieves the logger from context.
func FromContext(ctx context.Context) zerolog.Logger {
	if logger, ok := ctx.Value(LoggerKey).(zerolog.Logger); ok {
		return logger
	}
	return zerolog.Nop()
}

// WithSymbol adds a symbol to the logger context.
func WithSymbol(logger zerolog.Logger, symbol string) zerolog.Logger {
	return logger.With().Str("symbol", symbol).Logger()
}

// WithProvider adds provider and model to the logger context.
func WithProvider(logger zerolog.Logger, provider, model string) zerolog.Logger {
	return logger.With().Str("provider", provider).Str("model", model).Logger()
}

// WithComponent adds a component name to the logger context.
func WithComponent(logger zerolog.Logger, component string) zerolog.Logger {
	return logger.With().Str("component", component).Logger()
}

// LogAttempt logs one AI completion attempt.
func LogAttempt(logger zerolog.Logger, provider, model string, attempt int, latency time.Duration, outcome string, tokens int, err error) {
	event := logger.Info()
	if err != nil {
		event = logger.Warn().Err(err)
	}
	event.
		Str("event", "ai_attempt").
		Str("provider", provider).
		Str("model", model).
		Int("attempt", attempt).
		Dur("latency", latency).
		Str("outcome", outcome).
		Int("tokens", tokens).
		Msg("AI attempt")
}

// LogAnalysis logs a completed analysis.
func LogAnalysis(logger zerolog.Logger, symbol, date, provider string, confidence float64, duration time.Duration) {
	logger.Info().
		Str("event", "analysis").
		Str("symbol", symbol).
		Str("date", date).
		Str("provider", provider).
		Float64("confidence", confidence).
		Dur("duration", duration).
		Msg("Analysis completed")
}

// LogAPICall logs an API call.
func LogAPICall(logger zerolog.Logger, method, endpoint string, duration time.Duration, err error) {
	event := logger.Debug().
		Str("event", "api_call").
		Str("method", method).
		Str("endpoint", endpoint).
		Dur("duration", duration)

	if err != nil {
		event.Err(err).Msg("API call failed")
	} else {
		event.Msg("API call completed")
	}
}
