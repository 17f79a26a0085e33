package api

import (
	"encoding/json"
	"errors"
	"mime"
	"net/http"
	"path/filepath"

	"github.com/dgallion1/ocrpolish/internal/pipeline"
	"github.com/go-chi/chi/v5"
)

var artifactTypes = map[string]string{
	".txt": "text/plain; charset=utf-8",
	".pdf": "application/pdf",
}

func (s *Server) handleJobStatus(w http.ResponseWriter, r *http.Request) {
	job := s.orchestrator.GetJob(chi.URLParam(r, "jobID"))
	if job == nil {
		jsonError(w, "job not found", http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(job.Snapshot())
}

// handleArtifact streams one output file of a job.
func (s *Server) handleArtifact(w http.ResponseWriter, r *http.Request) {
	job := s.orchestrator.GetJob(chi.URLParam(r, "jobID"))
	if job == nil {
		jsonError(w, "job not found", http.StatusNotFound)
		return
	}
	name := chi.URLParam(r, "name")
	path, ok := job.Artifact(name)
	if !ok {
		jsonError(w, "artifact not found", http.StatusNotFound)
		return
	}

	if ct, ok := artifactTypes[filepath.Ext(name)]; ok {
		w.Header().Set("Content-Type", ct)
	}
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{
		"filename": downloadName(job.Snapshot().Filename, name),
	}))
	http.ServeFile(w, r, path)
}

// handleDeleteJob removes a finished job and its files.
func (s *Server) handleDeleteJob(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "jobID")
	err := s.orchestrator.Remove(jobID)
	switch {
	case errors.Is(err, pipeline.ErrJobNotFound):
		jsonError(w, "job not found", http.StatusNotFound)
		return
	case errors.Is(err, pipeline.ErrJobActive):
		jsonError(w, err.Error(), http.StatusConflict)
		return
	case err != nil:
		jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{"job_id": jobID, "deleted": true})
}

// downloadName prefixes the artifact name with the upload's base name,
// e.g. "scan_cleaned.pdf".
func downloadName(upload, artifact string) string {
	base := sanitizeFilename(upload)
	base = base[:len(base)-len(filepath.Ext(base))]
	return base + "_" + artifact
}
