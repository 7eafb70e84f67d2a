package zwave

import (
	"log/slog"

	"github.com/cpchain-network/gozwave/internal/logging"
)

// Logger is the structured-logging sink the driver core writes to. It is
// satisfied directly by *slog.Logger; callers who already have one wire
// it in with WithLogger without an adapter.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
	With(args ...any) *slog.Logger
}

// NewNopLogger returns a Logger that discards everything, the Config
// default when the caller supplies no WithLogger option.
func NewNopLogger() Logger { return logging.Nop() }

// NewLogger builds a Logger from cfg, for callers that want the usual
// level/format/output knobs instead of constructing slog handlers by
// hand.
func NewLogger(cfg logging.Config) Logger { return logging.New(cfg) }
