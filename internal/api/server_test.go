package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/dgallion1/ocrpolish/internal/cleaner"
	"github.com/dgallion1/ocrpolish/internal/config"
	"github.com/dgallion1/ocrpolish/internal/llm"
	"github.com/dgallion1/ocrpolish/internal/pipeline"
	"github.com/dgallion1/ocrpolish/internal/render"
)

// fakeOllama answers /api/tags with one model and /api/generate by echoing
// the chunk at the end of the prompt with "0CR" corrected.
func fakeOllama(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/tags", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"models":[{"name":"phi3:3.8b"}]}`))
	})
	mux.HandleFunc("POST /api/generate", func(w http.ResponseWriter, r *http.Request) {
		var req llm.GenerateRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		chunk := req.Prompt[strings.LastIndex(req.Prompt, "\n\n")+2:]
		json.NewEncoder(w).Encode(map[string]string{"response": strings.ReplaceAll(chunk, "0CR", "OCR")})
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func newTestServer(t *testing.T, apiKey string) *Server {
	t.Helper()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	cfg := config.Config{
		OutputDir:      t.TempDir(),
		APIKey:         apiKey,
		WorkerCount:    1,
		MaxQueueSize:   10,
		MaxUploadBytes: 1 << 20,
		JobTTL:         time.Hour,
	}

	model := llm.NewClient(fakeOllama(t).URL, "phi3:3.8b", log)
	opts := cleaner.DefaultOptions()
	opts.Backoff = 0
	cl := cleaner.New(model, log, nil, opts)
	runner := pipeline.NewRunner(cl, render.New(log), pipeline.RunnerOptions{PreserveTags: true}, log)

	orch := pipeline.NewOrchestrator(cfg, runner, log)
	orch.Start(context.Background())
	t.Cleanup(orch.Stop)
	return NewServer(orch, model, log, cfg)
}

func upload(t *testing.T, srv http.Handler, filename, content, token string) *httptest.ResponseRecorder {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, err := mw.CreateFormFile("file", filename)
	if err != nil {
		t.Fatal(err)
	}
	fw.Write([]byte(content))
	mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/api/documents", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	return rec
}

func get(srv http.Handler, method, path, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	return rec
}

func TestHealth(t *testing.T) {
	srv := newTestServer(t, "")
	rec := get(srv, http.MethodGet, "/health", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if body["status"] != "ok" || body["model_service"] != "reachable" {
		t.Errorf("health = %v", body)
	}
}

func TestUploadProcessAndDownload(t *testing.T) {
	srv := newTestServer(t, "")

	rec := upload(t, srv, "scan.txt", "The 0CR scan was noisy.", "")
	if rec.Code != http.StatusAccepted {
		t.Fatalf("upload status = %d: %s", rec.Code, rec.Body)
	}
	var accepted map[string]any
	json.Unmarshal(rec.Body.Bytes(), &accepted)
	jobID, _ := accepted["job_id"].(string)
	if jobID == "" || accepted["poll_url"] != "/api/jobs/"+jobID {
		t.Fatalf("unexpected accept body: %v", accepted)
	}

	var snap pipeline.JobSnapshot
	deadline := time.Now().Add(10 * time.Second)
	for time.Now().Before(deadline) {
		rec = get(srv, http.MethodGet, "/api/jobs/"+jobID, "")
		if rec.Code != http.StatusOK {
			t.Fatalf("job status code = %d", rec.Code)
		}
		json.Unmarshal(rec.Body.Bytes(), &snap)
		if snap.Status.Finished() {
			break
		}
		time.Sleep(20 * time.Millisecond)
	}
	if snap.Status != pipeline.StatusCompleted {
		t.Fatalf("job status = %q, errors = %v", snap.Status, snap.Progress.Errors)
	}
	if snap.Progress.Accepted != 1 || len(snap.Artifacts) != 4 {
		t.Errorf("unexpected snapshot: %+v", snap)
	}

	rec = get(srv, http.MethodGet, "/api/jobs/"+jobID+"/artifacts/cleaned.txt", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("artifact status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "The OCR scan was noisy.") {
		t.Errorf("cleaned artifact = %q", rec.Body)
	}
	if !strings.HasPrefix(rec.Header().Get("Content-Type"), "text/plain") {
		t.Errorf("Content-Type = %q", rec.Header().Get("Content-Type"))
	}
	if !strings.Contains(rec.Header().Get("Content-Disposition"), "scan_cleaned.txt") {
		t.Errorf("Content-Disposition = %q", rec.Header().Get("Content-Disposition"))
	}

	rec = get(srv, http.MethodGet, "/api/jobs/"+jobID+"/artifacts/cleaned.pdf", "")
	if rec.Code != http.StatusOK || !strings.HasPrefix(rec.Body.String(), "%PDF-") {
		t.Errorf("pdf artifact status = %d", rec.Code)
	}

	if rec = get(srv, http.MethodGet, "/api/jobs/"+jobID+"/artifacts/other.bin", ""); rec.Code != http.StatusNotFound {
		t.Errorf("unknown artifact status = %d", rec.Code)
	}

	rec = get(srv, http.MethodGet, "/api/stats/llm", "")
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"model":"phi3:3.8b"`) {
		t.Errorf("stats = %d %s", rec.Code, rec.Body)
	}

	if rec = get(srv, http.MethodDelete, "/api/jobs/"+jobID, ""); rec.Code != http.StatusOK {
		t.Errorf("delete status = %d", rec.Code)
	}
	if rec = get(srv, http.MethodGet, "/api/jobs/"+jobID, ""); rec.Code != http.StatusNotFound {
		t.Errorf("deleted job status = %d", rec.Code)
	}
}

func TestUploadRejectsUnsupportedType(t *testing.T) {
	srv := newTestServer(t, "")
	rec := upload(t, srv, "photo.tiff", "II*", "")
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestUnknownJob(t *testing.T) {
	srv := newTestServer(t, "")
	if rec := get(srv, http.MethodGet, "/api/jobs/missing", ""); rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
	if rec := get(srv, http.MethodDelete, "/api/jobs/missing", ""); rec.Code != http.StatusNotFound {
		t.Errorf("delete status = %d, want 404", rec.Code)
	}
}

func TestAuth(t *testing.T) {
	srv := newTestServer(t, "secret")

	if rec := get(srv, http.MethodGet, "/health", ""); rec.Code != http.StatusOK {
		t.Errorf("health should be public, got %d", rec.Code)
	}
	if rec := get(srv, http.MethodGet, "/api/stats/llm", ""); rec.Code != http.StatusUnauthorized {
		t.Errorf("missing token status = %d", rec.Code)
	}
	if rec := get(srv, http.MethodGet, "/api/stats/llm", "wrong"); rec.Code != http.StatusUnauthorized {
		t.Errorf("wrong token status = %d", rec.Code)
	}
	if rec := upload(t, srv, "a.txt", "x", "secret"); rec.Code != http.StatusAccepted {
		t.Errorf("authorized upload status = %d", rec.Code)
	}
}

func TestSanitizeFilename(t *testing.T) {
	tests := map[string]string{
		"scan.pdf":         "scan.pdf",
		"../../etc/passwd": "passwd",
		"dir\\evil..pdf":   "dir_evil_pdf",
		"":                 "unnamed",
	}
	for in, want := range tests {
		if got := sanitizeFilename(in); got != want {
			t.Errorf("sanitizeFilename(%q) = %q, want %q", in, got, want)
		}
	}
}
