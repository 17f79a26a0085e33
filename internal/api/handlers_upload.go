package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/dgallion1/ocrpolish/internal/parser"
	"github.com/dgallion1/ocrpolish/internal/pipeline"
	"github.com/google/uuid"
)

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	// Limit total request size.
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes+1024*1024) // extra 1MB for form overhead

	if err := r.ParseMultipartForm(32 << 20); err != nil {
		jsonError(w, "invalid multipart form: "+err.Error(), http.StatusBadRequest)
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("file")
	if err != nil {
		jsonError(w, "file is required: "+err.Error(), http.StatusBadRequest)
		return
	}
	defer file.Close()

	job, status, err := s.enqueue(file, header.Filename, r.FormValue("doc_id"))
	if err != nil {
		jsonError(w, err.Error(), status)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	json.NewEncoder(w).Encode(jobAccepted(job))
}

func (s *Server) handleBatchUpload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes*10+10*1024*1024)

	if err := r.ParseMultipartForm(64 << 20); err != nil {
		jsonError(w, "invalid multipart form: "+err.Error(), http.StatusBadRequest)
		return
	}
	defer r.MultipartForm.RemoveAll()

	files := r.MultipartForm.File["files"]
	if len(files) == 0 {
		jsonError(w, "at least one file is required", http.StatusBadRequest)
		return
	}

	results := make([]map[string]any, 0, len(files))
	for _, fh := range files {
		results = append(results, s.enqueueHeader(fh))
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	json.NewEncoder(w).Encode(map[string]any{"jobs": results})
}

func (s *Server) enqueueHeader(fh *multipart.FileHeader) map[string]any {
	f, err := fh.Open()
	if err != nil {
		return map[string]any{"filename": sanitizeFilename(fh.Filename), "error": "failed to open file"}
	}
	defer f.Close()

	job, _, err := s.enqueue(f, fh.Filename, "")
	if err != nil {
		return map[string]any{"filename": sanitizeFilename(fh.Filename), "error": err.Error()}
	}
	return jobAccepted(job)
}

// enqueue validates and stores one upload, then submits a job for it. On
// failure it returns the HTTP status to report.
func (s *Server) enqueue(r io.Reader, name, docID string) (*pipeline.Job, int, error) {
	filename := sanitizeFilename(name)
	if !parser.IsSupportedExtension(filename) {
		return nil, http.StatusBadRequest, fmt.Errorf("unsupported file type: %s", filepath.Ext(filename))
	}

	data, err := io.ReadAll(io.LimitReader(r, s.cfg.MaxUploadBytes+1))
	if err != nil {
		return nil, http.StatusInternalServerError, errors.New("failed to read file")
	}
	if int64(len(data)) > s.cfg.MaxUploadBytes {
		return nil, http.StatusRequestEntityTooLarge, fmt.Errorf("file exceeds max size (%d bytes)", s.cfg.MaxUploadBytes)
	}

	hash := pipeline.ContentHashHex(data)
	if docID == "" {
		docID = hash[:16]
	}

	jobID := uuid.NewString()
	uploads := filepath.Join(s.cfg.OutputDir, "uploads")
	if err := os.MkdirAll(uploads, 0o755); err != nil {
		s.log.Error("create upload dir", "error", err)
		return nil, http.StatusInternalServerError, errors.New("failed to store upload")
	}
	inputPath := filepath.Join(uploads, jobID+strings.ToLower(filepath.Ext(filename)))
	if err := os.WriteFile(inputPath, data, 0o644); err != nil {
		s.log.Error("store upload", "error", err)
		return nil, http.StatusInternalServerError, errors.New("failed to store upload")
	}

	job := pipeline.NewJob(jobID, docID, filename, inputPath, filepath.Join(s.cfg.OutputDir, "jobs", jobID))
	job.ContentHash = hash

	if err := s.orchestrator.Submit(job); err != nil {
		os.Remove(inputPath)
		return nil, http.StatusServiceUnavailable, err
	}
	s.log.Info("document queued", "job_id", job.ID, "doc_id", docID, "filename", filename, "bytes", len(data))
	return job, http.StatusAccepted, nil
}

func jobAccepted(job *pipeline.Job) map[string]any {
	snap := job.Snapshot()
	return map[string]any{
		"filename": snap.Filename,
		"job_id":   snap.ID,
		"doc_id":   snap.DocID,
		"status":   snap.Status,
		"poll_url": "/api/jobs/" + snap.ID,
	}
}

func jsonError(w http.ResponseWriter, msg string, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

func sanitizeFilename(name string) string {
	// Strip path components, keep only the base name.
	name = filepath.Base(name)
	// Remove any path separators that might have survived.
	name = strings.ReplaceAll(name, "/", "_")
	name = strings.ReplaceAll(name, "\\", "_")
	name = strings.ReplaceAll(name, "..", "_")
	if name == "" || name == "." {
		name = "unnamed"
	}
	return name
}
