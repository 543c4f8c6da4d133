package app

import (
	"io"
	"log/slog"
)

// NewLogger returns a slog.Logger writing to w.
// prod writes JSON, everything else writes text.
func NewLogger(w io.Writer, env string, level slog.Leveler) *slog.Logger {
	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if env == "prod" {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}
	return slog.New(handler)
}
