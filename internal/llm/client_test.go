package llm

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"unicode/utf8"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestGenerate_SendsRequestAndReturnsResponse(t *testing.T) {
	var got GenerateRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/api/generate" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode body: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"model":"phi3:3.8b","response":"This is broken.","done":true}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "phi3:3.8b", quietLogger())
	out, err := c.Generate(context.Background(), GenerateRequest{
		Prompt: "fix it",
		Stream: true,
		Options: Options{
			TopK:       10,
			NumPredict: 42,
			Stop:       []string{"Output:"},
		},
	})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if out != "This is broken." {
		t.Errorf("response = %q", out)
	}
	if got.Model != "phi3:3.8b" {
		t.Errorf("model = %q, want client default", got.Model)
	}
	if got.Stream {
		t.Error("stream must be forced off")
	}
	if got.Options.NumPredict != 42 || got.Options.TopK != 10 || len(got.Options.Stop) != 1 {
		t.Errorf("options not forwarded: %+v", got.Options)
	}
	if c.Stats.Snapshot().Count != 1 {
		t.Errorf("expected one latency sample, got %d", c.Stats.Snapshot().Count)
	}
}

func TestGenerate_RetryableStatuses(t *testing.T) {
	for _, status := range []int{http.StatusTooManyRequests, http.StatusInternalServerError, http.StatusServiceUnavailable} {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "busy", status)
		}))

		c := NewClient(srv.URL, "m", quietLogger())
		_, err := c.Generate(context.Background(), GenerateRequest{Prompt: "x"})
		srv.Close()

		var retryErr *RetryableError
		if !errors.As(err, &retryErr) {
			t.Fatalf("status %d: expected RetryableError, got %v", status, err)
		}
		if retryErr.StatusCode != status {
			t.Errorf("StatusCode = %d, want %d", retryErr.StatusCode, status)
		}
	}
}

func TestGenerate_ClientErrorIsNotRetryable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"model 'nope' not found"}`, http.StatusNotFound)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "nope", quietLogger())
	_, err := c.Generate(context.Background(), GenerateRequest{Prompt: "x"})
	if err == nil {
		t.Fatal("expected error")
	}
	if IsRetryable(err) {
		t.Errorf("404 should not be retryable: %v", err)
	}
}

func TestGenerate_ErrorField(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"error":"out of memory"}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "m", quietLogger())
	if _, err := c.Generate(context.Background(), GenerateRequest{Prompt: "x"}); err == nil {
		t.Fatal("expected error from error field")
	}
}

func TestGenerate_ContextCanceled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	c := NewClient(srv.URL, "m", quietLogger())
	_, err := c.Generate(ctx, GenerateRequest{Prompt: "x"})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestListModels(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/tags" {
			t.Errorf("path = %s", r.URL.Path)
		}
		_, _ = w.Write([]byte(`{"models":[{"name":"llama3.2:3b"},{"name":""},{"name":"phi3:3.8b"}]}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "phi3:3.8b", quietLogger())
	names, err := c.ListModels(context.Background())
	if err != nil {
		t.Fatalf("ListModels: %v", err)
	}
	if len(names) != 2 || names[0] != "llama3.2:3b" || names[1] != "phi3:3.8b" {
		t.Errorf("names = %v", names)
	}
}

func TestListModels_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	c := NewClient(url, "m", quietLogger())
	_, err := c.ListModels(context.Background())
	if !errors.Is(err, ErrUnavailable) {
		t.Errorf("expected ErrUnavailable, got %v", err)
	}
}

func TestListModels_BadStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "m", quietLogger())
	if _, err := c.ListModels(context.Background()); !errors.Is(err, ErrUnavailable) {
		t.Errorf("expected ErrUnavailable, got %v", err)
	}
}

func TestTruncate_KeepsRunesWhole(t *testing.T) {
	s := strings.Repeat("é", 150) // 300 bytes
	got := truncate(s, 199)
	if !utf8.ValidString(got) {
		t.Fatalf("truncate produced invalid UTF-8: %q", got)
	}
	if got != strings.Repeat("é", 99)+"..." {
		t.Errorf("truncate() = %q", got)
	}
	if truncate("short", 200) != "short" {
		t.Error("short strings should be unchanged")
	}
}
