package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

// Format selects the console output encoding for a Logger built from Options.
type Format string

const (
	FormatConsole Format = "console"
	FormatJSON    Format = "json"
)

// Options configures New. Component names a logger for the FieldComponent
// attribute; LogFilePath, when set, additionally opens that file for
// output (used by StageIO to build a stage.log sink, and by the
// orchestrator for the main pipeline log).
type Options struct {
	Component   string
	Level       string
	Format      Format
	Writer      io.Writer
	LogFilePath string
}

// New builds a logger per Options. When LogFilePath is set, it is opened
// (created, append mode) and the record is written to it in addition to
// Options.Writer's destination and format.
func New(opts Options) (*slog.Logger, func() error, error) {
	level := parseLevel(opts.Level)
	writer := opts.Writer
	if writer == nil {
		writer = os.Stderr
	}

	handler := buildHandler(writer, opts.Format, level)
	closer := func() error { return nil }

	if opts.LogFilePath != "" {
		file, err := openWriter(opts.LogFilePath)
		if err != nil {
			return nil, nil, fmt.Errorf("logging: open log file %s: %w", opts.LogFilePath, err)
		}
		fileHandler := NewJSONHandler(file, level)
		handler = &fanoutHandler{primary: handler, mirror: fileHandler, mirrorLevel: slog.LevelDebug}
		closer = file.Close
	}

	logger := slog.New(handler)
	if opts.Component != "" {
		logger = logger.With(slog.String(FieldComponent, opts.Component))
	}
	return logger, closer, nil
}

func buildHandler(w io.Writer, format Format, level slog.Leveler) slog.Handler {
	if format == FormatJSON {
		return NewJSONHandler(w, level)
	}
	return NewConsoleHandler(w, level)
}

func openWriter(path string) (*os.File, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	return os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
}

func parseLevel(raw string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	case "", "info":
		return slog.LevelInfo
	default:
		return slog.LevelInfo
	}
}
