// Package logging builds the process logger from command line settings.
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

const (
	FormatPretty = "pretty"
	FormatJSON   = "json"
	FormatText   = "text"
)

type Options struct {
	// Format is one of FormatPretty, FormatJSON or FormatText.
	Format string
	Level  string
	// File, when set, receives the logs instead of stderr. The terminal UI
	// owns the screen, so it always logs to a file.
	File      string
	AddSource bool
}

func ParseLevel(s string) (slog.Level, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(strings.TrimSpace(s))); err != nil {
		return slog.LevelInfo, fmt.Errorf("parse log level %q: %w", s, err)
	}
	return l, nil
}

// NewHandler returns a handler writing to w in the requested format.
func NewHandler(w io.Writer, format string, opts *slog.HandlerOptions) (slog.Handler, error) {
	switch strings.ToLower(format) {
	case "", FormatPretty:
		return NewPrettyJSONHandler(w, opts), nil
	case FormatJSON:
		return slog.NewJSONHandler(w, opts), nil
	case FormatText:
		return slog.NewTextHandler(w, opts), nil
	}
	return nil, fmt.Errorf("unknown log format %q", format)
}

// New builds a logger from opts. The returned close func releases the log
// file, if any.
func New(opts Options) (*slog.Logger, func() error, error) {
	level, err := ParseLevel(defaultString(opts.Level, "info"))
	if err != nil {
		return nil, nil, err
	}

	var w io.Writer = os.Stderr
	closeFn := func() error { return nil }
	if opts.File != "" {
		if err := os.MkdirAll(filepath.Dir(opts.File), 0o755); err != nil {
			return nil, nil, fmt.Errorf("create log dir: %w", err)
		}
		f, err := os.OpenFile(opts.File, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return nil, nil, fmt.Errorf("open log file: %w", err)
		}
		w = f
		closeFn = f.Close
	}

	h, err := NewHandler(w, opts.Format, &slog.HandlerOptions{Level: level, AddSource: opts.AddSource})
	if err != nil {
		_ = closeFn()
		return nil, nil, err
	}
	return slog.New(h), closeFn, nil
}

func defaultString(s, def string) string {
	if strings.TrimSpace(s) == "" {
		return def
	}
	return s
}
