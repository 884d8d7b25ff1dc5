// Package logging builds the slog loggers used across quorum.
package logging

import (
	"io"
	"log/slog"
	"os"
)

type settings struct {
	out  io.Writer
	json bool
}

// Option adjusts the logger built by New.
type Option func(*settings)

// WithWriter sends records to w instead of stderr.
func WithWriter(w io.Writer) Option {
	return func(s *settings) {
		if w != nil {
			s.out = w
		}
	}
}

// WithJSON switches to the JSON handler, for log shippers.
func WithJSON() Option {
	return func(s *settings) {
		s.json = true
	}
}

// New creates the application logger.
// Records go to stderr so stdout stays free for reports and MCP JSON-RPC.
// The "error" attribute is renamed to "err".
func New(level slog.Level, opts ...Option) *slog.Logger {
	s := settings{out: os.Stderr}
	for _, opt := range opts {
		opt(&s)
	}

	ho := &slog.HandlerOptions{
		Level: level,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if a.Key == "error" {
				a.Key = "err"
			}
			return a
		},
	}
	if s.json {
		return slog.New(slog.NewJSONHandler(s.out, ho))
	}
	return slog.New(slog.NewTextHandler(s.out, ho))
}

// NewNop returns a logger that discards everything.
func NewNop() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
