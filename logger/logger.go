package logger

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Logger wraps a zerolog logger with component-scoped constructors
type Logger struct {
	logger zerolog.Logger
}

// Fields represents log fields
type Fields map[string]interface{}

var (
	// Default is the process-wide logger, set by Init
	Default *Logger
)

// Init configures Default from LOG_LEVEL, LOG_FORMAT and STEAMDEAL_ENVIRONMENT.
func Init() {
	production := os.Getenv("STEAMDEAL_ENVIRONMENT") == "production"
	level := parseLevel(os.Getenv("LOG_LEVEL"), production)
	format := os.Getenv("LOG_FORMAT")
	if format == "" && production {
		format = "json"
	}

	zerolog.TimeFieldFormat = time.RFC3339
	zerolog.SetGlobalLevel(level)

	Default = newLogger(os.Stdout, format)

	Default.Info().
		Str("level", level.String()).
		Str("format", formatName(format)).
		Msg("Logger initialized")
}

// newLogger writes JSON lines when format is "json", coloured console output otherwise
func newLogger(w io.Writer, format string) *Logger {
	out := w
	if formatName(format) == "console" {
		out = zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339}
	}
	return &Logger{logger: zerolog.New(out).With().Timestamp().Logger()}
}

func formatName(format string) string {
	if strings.EqualFold(format, "json") {
		return "json"
	}
	return "console"
}

// parseLevel falls back to debug in development and info in production
func parseLevel(raw string, production bool) zerolog.Level {
	if raw == "" {
		if production {
			return zerolog.InfoLevel
		}
		return zerolog.DebugLevel
	}

	level, err := zerolog.ParseLevel(strings.ToLower(raw))
	if err != nil {
		return zerolog.InfoLevel
	}
	return level
}

// WithFields creates a new logger with fields
func (l *Logger) WithFields(fields Fields) *Logger {
	ctx := l.logger.With()
	for k, v := range fields {
		ctx = ctx.Interface(k, v)
	}
	return &Logger{logger: ctx.Logger()}
}

// WithField creates a new logger with a single field
func (l *Logger) WithField(key string, value interface{}) *Logger {
	return &Logger{logger: l.logger.With().Interface(key, value).Logger()}
}

func (l *Logger) Debug() *zerolog.Event { return l.logger.Debug() }
func (l *Logger) Info() *zerolog.Event  { return l.logger.Info() }
func (l *Logger) Warn() *zerolog.Event  { return l.logger.Warn() }
func (l *Logger) Error() *zerolog.Event { return l.logger.Error() }
func (l *Logger) Fatal() *zerolog.Event { return l.logger.Fatal() }

// Errorf, Warnf and Debugf let the logger stand in for resty's client logger.

func (l *Logger) Errorf(format string, v ...interface{}) {
	l.logger.Error().Msgf(format, v...)
}

func (l *Logger) Warnf(format string, v ...interface{}) {
	l.logger.Warn().Msgf(format, v...)
}

func (l *Logger) Debugf(format string, v ...interface{}) {
	l.logger.Debug().Msgf(format, v...)
}

// Info logs a formatted message on Default
func Info(format string, v ...interface{}) {
	ensureDefault()
	Default.Info().Msgf(format, v...)
}

// Warn logs a formatted warning on Default
func Warn(format string, v ...interface{}) {
	ensureDefault()
	Default.Warn().Msgf(format, v...)
}

func ensureDefault() {
	if Default == nil {
		Init()
	}
}

// ForComponent creates a logger tagged with a component name
func ForComponent(component string) *Logger {
	ensureDefault()
	return Default.WithField("component", component)
}

// ForSteam creates a logger for a Steam endpoint family
func ForSteam(endpoint string) *Logger {
	return ForComponent("steam").WithField("endpoint", endpoint)
}

// ForPipeline creates a logger for one pipeline run
func ForPipeline(runID string) *Logger {
	return ForComponent("pipeline").WithField("run_id", runID)
}

func ForWorker() *Logger    { return ForComponent("worker") }
func ForPublisher() *Logger { return ForComponent("publisher") }
func ForCache() *Logger     { return ForComponent("cache") }
func ForStorage() *Logger   { return ForComponent("storage") }
