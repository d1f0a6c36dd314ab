// Package logx holds small pslog helpers shared across packages.
package logx

import (
	"context"
	"io"

	"pkt.systems/pslog"
)

// Ctx returns the logger bound to ctx.
func Ctx(ctx context.Context) pslog.Logger {
	return pslog.Ctx(ctx)
}

// WithSession annotates the logger with a playground session id.
func WithSession(log pslog.Logger, sessionID string) pslog.Logger {
	if sessionID != "" {
		log = log.With("session", sessionID)
	}
	return log
}

// WithLanguage annotates the logger with a language id.
func WithLanguage(log pslog.Logger, lang string) pslog.Logger {
	if lang != "" {
		log = log.With("language", lang)
	}
	return log
}

// Discard returns a logger that writes nowhere. Tests and optional
// collaborators use it when no logger was supplied.
func Discard() pslog.Logger {
	return pslog.NewWithOptions(io.Discard, pslog.Options{
		Mode:     pslog.ModeStructured,
		NoColor:  true,
		MinLevel: pslog.ErrorLevel,
	})
}

// OrDiscard returns log, or Discard when log is nil.
func OrDiscard(log pslog.Logger) pslog.Logger {
	if log == nil {
		return Discard()
	}
	return log
}
