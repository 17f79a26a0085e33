// Package logging sets up the per-run loggers: a console logger fanned out
// to a debug-level run log file, plus the plain-text transformation log.
package logging

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"
)

// Run holds the loggers and files opened for one run.
type Run struct {
	Logger *slog.Logger

	// Transforms receives the chunk transformation log.
	Transforms io.Writer

	LogPath       string
	TransformPath string

	files []*os.File
}

// NewConsole returns a console-only logger in the given format ("text" or "json").
func NewConsole(w io.Writer, level slog.Level, format string) *slog.Logger {
	return slog.New(consoleHandler(w, level, format))
}

func consoleHandler(w io.Writer, level slog.Level, format string) slog.Handler {
	opts := &slog.HandlerOptions{Level: level}
	if format == "json" {
		return slog.NewJSONHandler(w, opts)
	}
	return slog.NewTextHandler(w, opts)
}

// NewRun creates dir and opens llm_cleaning_<ts>.log and
// chunk_transformations_<ts>.log in it. Console output goes to stderr.
func NewRun(dir string, level slog.Level, format string) (*Run, error) {
	return newRun(os.Stderr, dir, level, format, time.Now())
}

func newRun(console io.Writer, dir string, level slog.Level, format string, now time.Time) (*Run, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create log dir: %w", err)
	}
	ts := now.Format("20060102_150405")
	r := &Run{
		LogPath:       filepath.Join(dir, "llm_cleaning_"+ts+".log"),
		TransformPath: filepath.Join(dir, "chunk_transformations_"+ts+".log"),
	}

	logFile, err := os.Create(r.LogPath)
	if err != nil {
		return nil, fmt.Errorf("create run log: %w", err)
	}
	r.files = append(r.files, logFile)

	tf, err := os.Create(r.TransformPath)
	if err != nil {
		r.Close()
		return nil, fmt.Errorf("create transformation log: %w", err)
	}
	r.files = append(r.files, tf)
	r.Transforms = tf

	r.Logger = slog.New(fanout{
		consoleHandler(console, level, format),
		slog.NewTextHandler(logFile, &slog.HandlerOptions{Level: slog.LevelDebug}),
	})
	return r, nil
}

// Close flushes and closes the run's files.
func (r *Run) Close() error {
	var errs []error
	for _, f := range r.files {
		if err := f.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	r.files = nil
	return errors.Join(errs...)
}

// fanout sends each record to every handler that accepts its level.
type fanout []slog.Handler

func (f fanout) Enabled(ctx context.Context, level slog.Level) bool {
	for _, h := range f {
		if h.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

func (f fanout) Handle(ctx context.Context, rec slog.Record) error {
	var errs []error
	for _, h := range f {
		if !h.Enabled(ctx, rec.Level) {
			continue
		}
		if err := h.Handle(ctx, rec.Clone()); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (f fanout) WithAttrs(attrs []slog.Attr) slog.Handler {
	out := make(fanout, len(f))
	for i, h := range f {
		out[i] = h.WithAttrs(attrs)
	}
	return out
}

func (f fanout) WithGroup(name string) slog.Handler {
	out := make(fanout, len(f))
	for i, h := range f {
		out[i] = h.WithGroup(name)
	}
	return out
}
