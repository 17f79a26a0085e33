package pipeline

import (
	"testing"
	"time"

	"github.com/dgallion1/ocrpolish/internal/cleaner"
)

func TestContentHashHex_Consistency(t *testing.T) {
	data := []byte("hello world")
	h1 := ContentHashHex(data)
	h2 := ContentHashHex(data)
	if h1 != h2 {
		t.Errorf("expected identical hashes, got %q and %q", h1, h2)
	}
	// SHA-256 of "hello world" is well-known.
	want := "b94d27b9934d3e08a52e52d7da7dabfac484efe37a5380ee9088f7ace2efcde9"
	if h1 != want {
		t.Errorf("expected hash %q, got %q", want, h1)
	}
}

func TestContentHashHex_EmptyInput(t *testing.T) {
	h := ContentHashHex([]byte{})
	want := "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855"
	if h != want {
		t.Errorf("expected hash %q, got %q", want, h)
	}
}

func TestJob_StateTransitions(t *testing.T) {
	job := NewJob("test-1", "doc-1", "scan.pdf", "/tmp/in.pdf", "/tmp/out")
	if job.Status != StatusQueued {
		t.Fatalf("new job status = %q, want queued", job.Status)
	}

	transitions := []struct {
		status JobStatus
		phase  string
	}{
		{StatusExtracting, "extracting"},
		{StatusCleaning, "cleaning"},
		{StatusRendering, "rendering"},
		{StatusCompleted, "done"},
	}

	for _, tr := range transitions {
		before := job.UpdatedAt
		// Small sleep to ensure time difference is detectable.
		time.Sleep(time.Millisecond)
		job.SetStatus(tr.status, tr.phase)

		if job.Status != tr.status {
			t.Errorf("expected status %q, got %q", tr.status, job.Status)
		}
		if job.Phase != tr.phase {
			t.Errorf("expected phase %q, got %q", tr.phase, job.Phase)
		}
		if !job.UpdatedAt.After(before) {
			t.Errorf("expected UpdatedAt to advance after SetStatus(%q)", tr.status)
		}
	}
}

func TestJob_AddError(t *testing.T) {
	job := &Job{ID: "err-test", UpdatedAt: time.Now()}
	job.AddError("chunk 3 failed")
	job.AddError("chunk 7 failed")

	snap := job.Snapshot()
	if len(snap.Progress.Errors) != 2 {
		t.Fatalf("expected 2 errors, got %d", len(snap.Progress.Errors))
	}
	if snap.Progress.Errors[0] != "chunk 3 failed" {
		t.Errorf("expected first error %q, got %q", "chunk 3 failed", snap.Progress.Errors[0])
	}
}

func TestJob_Record(t *testing.T) {
	job := NewJob("rec", "doc", "a.txt", "", "")
	job.Record(&Report{
		RawChars:     120,
		CleanedChars: 118,
		RawPath:      "/out/a_raw_ocr.txt",
		CleanedPath:  "/out/a_cleaned.txt",
		PDFPath:      "/out/a_cleaned.pdf",
		Cleaning:     &cleaner.Result{Chunks: 3, Accepted: 2, Exhausted: 1},
	})

	snap := job.Snapshot()
	if snap.Progress.RawChars != 120 || snap.Progress.CleanedChars != 118 {
		t.Errorf("char counts not recorded: %+v", snap.Progress)
	}
	if snap.Progress.Chunks != 3 || snap.Progress.Accepted != 2 || snap.Progress.Exhausted != 1 {
		t.Errorf("cleaning counts not recorded: %+v", snap.Progress)
	}

	want := []string{ArtifactPDF, ArtifactCleaned, ArtifactRaw}
	if len(snap.Artifacts) != len(want) {
		t.Fatalf("artifacts = %v, want %v", snap.Artifacts, want)
	}
	for i := range want {
		if snap.Artifacts[i] != want[i] {
			t.Errorf("artifacts[%d] = %q, want %q", i, snap.Artifacts[i], want[i])
		}
	}
	if p, ok := job.Artifact(ArtifactPDF); !ok || p != "/out/a_cleaned.pdf" {
		t.Errorf("Artifact(pdf) = %q, %v", p, ok)
	}
	if _, ok := job.Artifact(ArtifactSummary); ok {
		t.Error("summary was never written and should not be an artifact")
	}
}

func TestJob_SnapshotNeverNil(t *testing.T) {
	job := &Job{ID: "snap-test", UpdatedAt: time.Now()}
	snap := job.Snapshot()
	if snap.Progress.Errors == nil || snap.Artifacts == nil {
		t.Error("expected non-nil slices in snapshot")
	}
}

func TestJobStore_PutGet(t *testing.T) {
	store := NewJobStore(time.Hour)
	job := &Job{ID: "store-1", UpdatedAt: time.Now()}
	store.Put(job)

	got := store.Get("store-1")
	if got == nil {
		t.Fatal("expected to get job back")
	}
	if got.ID != "store-1" {
		t.Errorf("expected ID %q, got %q", "store-1", got.ID)
	}
	if store.Get("nonexistent") != nil {
		t.Error("expected nil for missing job")
	}
}

func TestJobStore_TTLCleanup(t *testing.T) {
	store := NewJobStore(50 * time.Millisecond)

	expired := &Job{ID: "old", UpdatedAt: time.Now()}
	store.Put(expired)

	// Wait for the TTL to pass.
	time.Sleep(100 * time.Millisecond)

	fresh := &Job{ID: "new", UpdatedAt: time.Now()}
	store.Put(fresh)

	gone := store.Cleanup()
	if len(gone) != 1 || gone[0].ID != "old" {
		t.Errorf("Cleanup returned %v, want the old job", gone)
	}
	if store.Get("old") != nil {
		t.Error("expected expired job to be cleaned up")
	}
	if store.Get("new") == nil {
		t.Error("expected fresh job to survive cleanup")
	}
	if store.Len() != 1 {
		t.Errorf("Len = %d, want 1", store.Len())
	}
}
