// Package logging builds the application's slog logger and provides error
// logging that expands coded errors into structured attributes.
package logging

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/vango-dev/splitroute/internal/errors"
)

// Options configures New.
type Options struct {
	// Level is debug, info, warn or error. Unknown values mean info.
	Level string

	// JSON selects the JSON handler instead of the text handler.
	JSON bool

	// Path, when set, tees output into this file.
	Path string

	// Output is the primary writer. Defaults to os.Stderr.
	Output io.Writer
}

// New creates a logger from opts. The returned close function releases the
// log file, if one was opened.
func New(opts Options) (*slog.Logger, func() error, error) {
	out := opts.Output
	if out == nil {
		out = os.Stderr
	}

	closer := func() error { return nil }
	if opts.Path != "" {
		if err := os.MkdirAll(filepath.Dir(opts.Path), 0755); err != nil {
			return nil, nil, err
		}
		f, err := os.OpenFile(opts.Path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return nil, nil, err
		}
		out = io.MultiWriter(out, f)
		closer = f.Close
	}

	handlerOpts := &slog.HandlerOptions{Level: ParseLevel(opts.Level)}
	var handler slog.Handler
	if opts.JSON {
		handler = slog.NewJSONHandler(out, handlerOpts)
	} else {
		handler = slog.NewTextHandler(out, handlerOpts)
	}
	return slog.New(handler), closer, nil
}

// ParseLevel maps a level name to a slog.Level.
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// LogError logs err at error level. Coded errors contribute their code,
// category, detail and cause as attributes.
func LogError(logger *slog.Logger, msg string, err error, attrs ...any) {
	if logger == nil {
		logger = slog.Default()
	}
	logger.Log(context.Background(), slog.LevelError, msg, append(attrs, ErrorAttrs(err)...)...)
}

// ErrorAttrs returns the structured attributes describing err.
func ErrorAttrs(err error) []any {
	if err == nil {
		return nil
	}
	var coded *errors.Error
	if !errors.As(err, &coded) {
		return []any{"error", err.Error()}
	}

	attrs := []any{
		"error", coded.Error(),
		"code", coded.Code,
		"category", string(coded.Category),
	}
	if coded.Detail != "" {
		attrs = append(attrs, "detail", coded.Detail)
	}
	if coded.Wrapped != nil {
		attrs = append(attrs, "cause", coded.Wrapped.Error())
	}
	return attrs
}
