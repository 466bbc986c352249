package psoarchive

import (
	"context"
	"log/slog"
	"sync/atomic"

	"github.com/gogpu/psoarchive/bytecode"
	"github.com/gogpu/psoarchive/remap"
)

// nopHandler is a slog.Handler that silently discards all log records.
// The Enabled method returns false so the caller skips message formatting
// entirely.
type nopHandler struct{}

func (nopHandler) Enabled(context.Context, slog.Level) bool  { return false }
func (nopHandler) Handle(context.Context, slog.Record) error { return nil }
func (nopHandler) WithAttrs([]slog.Attr) slog.Handler        { return nopHandler{} }
func (nopHandler) WithGroup(string) slog.Handler             { return nopHandler{} }

// newNopLogger creates a logger that silently discards all output.
func newNopLogger() *slog.Logger { return slog.New(nopHandler{}) }

// loggerPtr stores the active logger. Accessed atomically so that
// SetLogger can be called concurrently with logging from any goroutine.
var loggerPtr atomic.Pointer[slog.Logger]

func init() {
	loggerPtr.Store(newNopLogger())
}

// SetLogger configures the logger for psoarchive and its sub-packages.
// By default, psoarchive produces no log output.
//
// SetLogger is safe for concurrent use. Pass nil to disable logging.
//
// Log levels used by psoarchive:
//   - [slog.LevelDebug]: layout decisions, per-resource remaps, store hits
//   - [slog.LevelInfo]: archived pipelines
//   - [slog.LevelWarn]: rejected pipelines, failed stages, store write errors
//
// Example:
//
//	psoarchive.SetLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
//	    Level: slog.LevelDebug,
//	})))
func SetLogger(l *slog.Logger) {
	if l == nil {
		l = newNopLogger()
	}
	loggerPtr.Store(l)

	remap.SetLogger(l)
	bytecode.SetLogger(l)
}

// Logger returns the current logger used by psoarchive.
//
// Logger is safe for concurrent use.
func Logger() *slog.Logger {
	return loggerPtr.Load()
}

// slogger returns the current package logger.
func slogger() *slog.Logger {
	return loggerPtr.Load()
}
