package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/dgallion1/ocrpolish/internal/config"
	"github.com/dgallion1/ocrpolish/internal/llm"
	"github.com/dgallion1/ocrpolish/internal/pipeline"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// Server is the HTTP API server for ocrpolish.
type Server struct {
	router       chi.Router
	orchestrator *pipeline.Orchestrator
	model        *llm.Client
	log          *slog.Logger
	cfg          config.Config
}

// NewServer creates and configures the HTTP server.
func NewServer(orch *pipeline.Orchestrator, model *llm.Client, log *slog.Logger, cfg config.Config) *Server {
	s := &Server{
		orchestrator: orch,
		model:        model,
		log:          log,
		cfg:          cfg,
	}
	s.setupRoutes()
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) setupRoutes() {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(RequestLogger(s.log))

	// Public endpoints.
	r.Get("/health", s.handleHealth)

	// Authenticated endpoints when an API key is configured.
	r.Group(func(r chi.Router) {
		if s.cfg.APIKey != "" {
			r.Use(AuthMiddleware(s.cfg.APIKey, s.log))
		}

		r.Post("/api/documents", s.handleUpload)
		r.Post("/api/documents/batch", s.handleBatchUpload)
		r.Get("/api/jobs/{jobID}", s.handleJobStatus)
		r.Delete("/api/jobs/{jobID}", s.handleDeleteJob)
		r.Get("/api/jobs/{jobID}/artifacts/{name}", s.handleArtifact)
		r.Get("/api/stats/llm", s.handleLLMStats)
	})

	s.router = r
}

// handleHealth reports the service as up and whether the model endpoint
// answers. An unreachable model service degrades results but does not stop
// jobs from running.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := map[string]any{
		"status":      "ok",
		"queue_depth": s.orchestrator.QueueDepth(),
	}
	if s.model != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		models, err := s.model.ListModels(ctx)
		if err != nil {
			resp["status"] = "degraded"
			resp["model_service"] = "unreachable"
			resp["model_error"] = err.Error()
		} else {
			resp["model_service"] = "reachable"
			resp["models"] = len(models)
		}
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resp)
}
