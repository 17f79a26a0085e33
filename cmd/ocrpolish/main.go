package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/dgallion1/ocrpolish/internal/app"
	"github.com/dgallion1/ocrpolish/internal/cache"
	"github.com/dgallion1/ocrpolish/internal/config"
	"github.com/dgallion1/ocrpolish/internal/logging"
	"github.com/dgallion1/ocrpolish/internal/pipeline"
)

func main() {
	os.Exit(run())
}

func run() int {
	cfg := config.Load()

	var (
		input      = flag.String("input", "test_input/test.pdf", "document to process")
		batch      = flag.String("batch", "", "process every PDF in this directory instead of -input")
		output     = flag.String("output", cfg.OutputDir, "output directory")
		noCache    = flag.Bool("no-cache", false, "ignore and do not write the OCR cache")
		clearCache = flag.Bool("clear-cache", false, "remove all OCR cache entries and exit")
		listCache  = flag.Bool("list-cache", false, "list OCR cache entries and exit")
	)
	flag.Parse()

	if *noCache {
		cfg.UseCache = false
	}
	cfg.OutputDir = *output
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "invalid configuration: %v\n", err)
		return 1
	}

	if *clearCache || *listCache {
		return manageCache(os.Stdout, cache.New(cfg.CacheDir, logging.NewConsole(os.Stderr, cfg.LogLevel, cfg.LogFormat)), *clearCache)
	}

	runLog, err := logging.NewRun(cfg.LogDir, cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		fmt.Fprintf(os.Stderr, "set up logging: %v\n", err)
		return 1
	}
	defer runLog.Close()
	log := runLog.Logger

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a := app.New(cfg, log, runLog.Transforms)
	defer a.Close()

	log.Info("starting ocr cleaning run", "model_url", cfg.OllamaURL, "model", cfg.OllamaModel,
		"output", cfg.OutputDir, "cache", cfg.UseCache, "run_log", runLog.LogPath, "transform_log", runLog.TransformPath)

	if *batch != "" {
		reports, err := a.Runner.ProcessDir(ctx, *batch, cfg.OutputDir)
		for _, rep := range reports {
			rep.Print(os.Stdout)
		}
		switch {
		case errors.Is(err, context.Canceled):
			fmt.Println("Process interrupted by user")
			return 130
		case err != nil:
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			return 1
		}
		failed := 0
		for _, rep := range reports {
			if rep.Err != nil {
				failed++
			}
		}
		fmt.Printf("\nBatch complete: %d processed, %d failed\n", len(reports)-failed, failed)
		if failed > 0 {
			return 1
		}
		return 0
	}

	rep, err := a.Runner.ProcessFile(ctx, *input, cfg.OutputDir)
	switch {
	case errors.Is(err, context.Canceled):
		fmt.Println("Process interrupted by user")
		return 130
	case errors.Is(err, pipeline.ErrInputNotFound):
		fmt.Fprintf(os.Stderr, "File not found: %v\n", err)
		fmt.Fprintf(os.Stderr, "Make sure your input document exists at %s or pass -input\n", *input)
		return 1
	case err != nil:
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	rep.Print(os.Stdout)
	fmt.Printf("\nComplete! All files saved to %s\n", cfg.OutputDir)
	return 0
}

func manageCache(w io.Writer, store *cache.Store, clearAll bool) int {
	if clearAll {
		n, err := store.ClearAll()
		if err != nil {
			fmt.Fprintf(os.Stderr, "clear cache: %v\n", err)
			return 1
		}
		fmt.Fprintf(w, "Removed %d cache entries from %s\n", n, store.Dir)
		return 0
	}

	entries, err := store.List()
	if err != nil {
		fmt.Fprintf(os.Stderr, "list cache: %v\n", err)
		return 1
	}
	if len(entries) == 0 {
		fmt.Fprintf(w, "No cache entries in %s\n", store.Dir)
		return 0
	}
	fmt.Fprintf(w, "%d cache entries in %s:\n", len(entries), store.Dir)
	for _, e := range entries {
		fmt.Fprintf(w, "  %s  %s bytes  %s\n", e.Path, pipeline.Commas(e.Size), e.ModTime.Format("2006-01-02 15:04:05"))
	}
	return 0
}
