// Package telemetry wraps zerolog into the per-component sub-logger shape
// this engine's goroutine-per-subsystem design wants: one constructor-
// injected Logger per symbol engine, with ".With()" sub-loggers handed to
// each component (book, preprocessor, detector, anomaly, signal) with
// structured fields instead of ad-hoc formatted log prefixes.
package telemetry

import (
	"io"
	"os"

	"github.com/rs/zerolog"
)

// Logger is a thin handle over a zerolog.Logger, carried down through
// constructors — never a package-level global.
type Logger struct {
	zl zerolog.Logger
}

// New builds a root Logger writing JSON to w (e.g. a buffer in tests) at
// the given minimum level.
func New(w io.Writer, level zerolog.Level) *Logger {
	zl := zerolog.New(w).Level(level).With().Timestamp().Logger()
	return &Logger{zl: zl}
}

// NewConsole builds a root Logger writing human-readable output to
// stderr, for local/dev runs.
func NewConsole(level zerolog.Level) *Logger {
	cw := zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: "15:04:05.000"}
	zl := zerolog.New(cw).Level(level).With().Timestamp().Logger()
	return &Logger{zl: zl}
}

// With returns a child Logger with additional fields bound — e.g.
// telemetry root logger).With("symbol", "BTCUSDT").With("component",
// "orderbook") for the book goroutine.
func (l *Logger) With(key, value string) *Logger {
	return &Logger{zl: l.zl.With().Str(key, value).Logger()}
}

// WithInt is With for an integer-valued field (detector_id counters,
// sequence numbers).
func (l *Logger) WithInt(key string, value int64) *Logger {
	return &Logger{zl: l.zl.With().Int64(key, value).Logger()}
}

func (l *Logger) Debug() *zerolog.Event { return l.zl.Debug() }
func (l *Logger) Info() *zerolog.Event  { return l.zl.Info() }
func (l *Logger) Warn() *zerolog.Event  { return l.zl.Warn() }
func (l *Logger) Error() *zerolog.Event { return l.zl.Error() }

// Raw exposes the underlying zerolog.Logger for call sites that need the
// full event-builder API (e.g. attaching an error plus several fields).
func (l *Logger) Raw() zerolog.Logger { return l.zl }
