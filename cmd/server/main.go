package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dgallion1/ocrpolish/internal/api"
	"github.com/dgallion1/ocrpolish/internal/app"
	"github.com/dgallion1/ocrpolish/internal/config"
	"github.com/dgallion1/ocrpolish/internal/logging"
	"github.com/dgallion1/ocrpolish/internal/pipeline"
)

func main() {
	cfg := config.Load()
	log := logging.NewConsole(os.Stdout, cfg.LogLevel, cfg.LogFormat)

	if err := cfg.Validate(); err != nil {
		log.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	// The server keeps one log file pair for its lifetime.
	runLog, err := logging.NewRun(cfg.LogDir, cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		log.Error("set up log files", "error", err)
		os.Exit(1)
	}
	defer runLog.Close()
	log = runLog.Logger

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a := app.New(cfg, log, runLog.Transforms)
	defer a.Close()

	orch := pipeline.NewOrchestrator(cfg, a.Runner, log)
	orch.Start(ctx)

	srv := api.NewServer(orch, a.Model, log, cfg)

	httpServer := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      srv,
		ReadTimeout:  60 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("starting ocrpolish", "port", cfg.Port, "model", cfg.OllamaModel, "output_dir", cfg.OutputDir)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-sigCh:
		log.Info("shutting down...")
	case err := <-errCh:
		log.Error("server error", "error", err)
		orch.Stop()
		return
	}

	// Stop accepting uploads before the queue closes.
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Warn("http shutdown", "error", err)
	}
	orch.Stop()
	log.Info("server stopped")
}
