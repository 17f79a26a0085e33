// Package app wires the pipeline from configuration for the binaries.
package app

import (
	"errors"
	"io"
	"log/slog"
	"strings"

	"github.com/dgallion1/ocrpolish/internal/cache"
	"github.com/dgallion1/ocrpolish/internal/cleaner"
	"github.com/dgallion1/ocrpolish/internal/config"
	"github.com/dgallion1/ocrpolish/internal/llm"
	"github.com/dgallion1/ocrpolish/internal/ocr"
	"github.com/dgallion1/ocrpolish/internal/ocr/mupdf"
	"github.com/dgallion1/ocrpolish/internal/ocr/tesseract"
	"github.com/dgallion1/ocrpolish/internal/parser"
	"github.com/dgallion1/ocrpolish/internal/pipeline"
	"github.com/dgallion1/ocrpolish/internal/render"
)

// App holds the long-lived components shared by the CLI and the server.
type App struct {
	Model   *llm.Client
	Cleaner *cleaner.Cleaner
	Runner  *pipeline.Runner
	Cache   *cache.Store // nil when caching is off

	closers []func() error
}

// New builds the pipeline. transforms receives the chunk transformation
// log and may be nil. When the OCR engine cannot start, image-only PDF pages
// are skipped rather than failing startup.
func New(cfg config.Config, log *slog.Logger, transforms io.Writer) *App {
	a := &App{Model: llm.NewClient(cfg.OllamaURL, cfg.OllamaModel, log)}
	a.closers = append(a.closers, func() error { a.Model.Close(); return nil })

	var tlog *cleaner.TransformLog
	if transforms != nil {
		tlog = cleaner.NewTransformLog(transforms)
	}
	a.Cleaner = cleaner.New(a.Model, log.With("component", "cleaner"), tlog, cleaner.Options{
		PreferredModel:   cfg.OllamaModel,
		MaxChars:         cfg.CleanMaxChars,
		MaxAttempts:      cfg.CleanMaxAttempts,
		Backoff:          cfg.CleanBackoff,
		AttemptTimeout:   cfg.CleanTimeout,
		PreflightTimeout: cfg.CleanPreflightTimeout,
		MinLengthRatio:   cfg.CleanMinRatio,
		Workers:          cfg.CleanWorkers,
	})

	popts := parser.Options{MinTextChars: cfg.PDFMinTextChars, Log: log.With("component", "parser")}
	if cfg.OCREnabled {
		if engine := a.startOCR(cfg, log); engine != nil {
			popts.OCR = engine
		}
	}

	if cfg.UseCache {
		a.Cache = cache.New(cfg.CacheDir, log.With("component", "cache"))
	}

	a.Runner = pipeline.NewRunner(a.Cleaner, render.New(log.With("component", "render")), pipeline.RunnerOptions{
		Parse:        popts,
		Cache:        a.Cache,
		PreserveTags: cfg.CleanPreserveTags,
	}, log)
	return a
}

func (a *App) startOCR(cfg config.Config, log *slog.Logger) *ocr.Engine {
	rec, err := tesseract.New(strings.Split(cfg.OCRLanguage, "+")...)
	if err != nil {
		log.Warn("ocr unavailable, image-only pages will be skipped", "error", err)
		return nil
	}
	a.closers = append(a.closers, rec.Close)
	log.Info("ocr enabled", "language", cfg.OCRLanguage, "dpi", cfg.OCRDPI)
	return ocr.NewEngine(mupdf.New(), rec, cfg.OCRDPI, log.With("component", "ocr"))
}

// Close releases the OCR engine and idle model connections.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
