// Package logging provides structured logging using zerolog.
package logging

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Logger is the process-wide logger. Commands reconfigure it once at
// startup via Init; everything else logs through the package helpers.
var Logger zerolog.Logger

// Level represents log levels.
type Level = zerolog.Level

// Log levels exposed for convenience.
const (
	TraceLevel = zerolog.TraceLevel
	DebugLevel = zerolog.DebugLevel
	InfoLevel  = zerolog.InfoLevel
	WarnLevel  = zerolog.WarnLevel
	ErrorLevel = zerolog.ErrorLevel
	FatalLevel = zerolog.FatalLevel
)

// Config holds logger configuration.
type Config struct {
	// Level is the minimum level that gets written.
	Level Level
	// Output is the destination. Defaults to os.Stderr.
	Output io.Writer
	// Pretty switches to human-readable console output.
	Pretty bool
	// TimeFormat overrides the timestamp format. Defaults to RFC3339.
	TimeFormat string
}

// DefaultConfig returns the configuration used before Init is called.
func DefaultConfig() Config {
	return Config{
		Level:      InfoLevel,
		Output:     os.Stderr,
		TimeFormat: time.RFC3339,
	}
}

// Init replaces the global logger with one built from cfg.
func Init(cfg Config) {
	if cfg.Output == nil {
		cfg.Output = os.Stderr
	}
	if cfg.TimeFormat == "" {
		cfg.TimeFormat = time.RFC3339
	}

	zerolog.TimeFieldFormat = cfg.TimeFormat

	out := cfg.Output
	if cfg.Pretty {
		out = zerolog.ConsoleWriter{Out: cfg.Output, TimeFormat: cfg.TimeFormat}
	}

	Logger = zerolog.New(out).Level(cfg.Level).With().Timestamp().Logger()
}

// ParseLevel maps a level name to a Level, case-insensitively.
// Unrecognized names fall back to InfoLevel.
func ParseLevel(s string) Level {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "TRACE":
		return TraceLevel
	case "DEBUG":
		return DebugLevel
	case "INFO":
		return InfoLevel
	case "WARN", "WARNING":
		return WarnLevel
	case "ERROR":
		return ErrorLevel
	case "FATAL":
		return FatalLevel
	default:
		return InfoLevel
	}
}

// Component returns a child logger tagged with a component name.
// Long-lived loops (registry, liveness, watcher) hold one of these so
// their lines are attributable without repeating the field.
func Component(name string) zerolog.Logger {
	return Logger.With().Str("component", name).Logger()
}

// Trace starts a trace level message. Used for per-frame wire logging.
func Trace() *zerolog.Event {
	return Logger.Trace()
}

// Debug starts a debug level message.
func Debug() *zerolog.Event {
	return Logger.Debug()
}

// Info starts an info level message.
func Info() *zerolog.Event {
	return Logger.Info()
}

// Warn starts a warn level message.
func Warn() *zerolog.Event {
	return Logger.Warn()
}

// Error starts an error level message.
func Error() *zerolog.Event {
	return Logger.Error()
}

// Fatal starts a fatal level message. Msg or Send on the returned
// event exits the process.
func Fatal() *zerolog.Event {
	return Logger.Fatal()
}

// With creates a child logger context.
func With() zerolog.Context {
	return Logger.With()
}

func init() {
	Init(DefaultConfig())
}
