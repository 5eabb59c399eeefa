package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
)

// New builds the process logger. Every event goes to both stderr and the
// persistent log file at path. The returned close func releases the file
// handle at process exit.
func New(path string, verbose bool) (*slog.Logger, func() error, error) {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, nil, fmt.Errorf("open log file: %w", err)
	}

	handler := slog.NewTextHandler(io.MultiWriter(os.Stderr, f), &slog.HandlerOptions{
		Level: level,
	})
	return slog.New(handler), f.Close, nil
}

// Discard returns a logger that drops everything. Used by tests and as a
// fallback before the real logger is constructed.
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
