package pipeline

import (
	"crypto/sha256"
	"fmt"
	"maps"
	"slices"
	"sync"
	"time"
)

// JobStatus represents the state of a processing job.
type JobStatus string

const (
	StatusQueued     JobStatus = "queued"
	StatusExtracting JobStatus = "extracting"
	StatusCleaning   JobStatus = "cleaning"
	StatusRendering  JobStatus = "rendering"
	StatusCompleted  JobStatus = "completed"
	StatusPartial    JobStatus = "partial"
	StatusFailed     JobStatus = "failed"
)

// Artifact names exposed for a finished job.
const (
	ArtifactRaw     = "raw.txt"
	ArtifactCleaned = "cleaned.txt"
	ArtifactPDF     = "cleaned.pdf"
	ArtifactSummary = "summary.pdf"
)

// Job tracks the state of a single uploaded document.
type Job struct {
	mu sync.Mutex

	ID    string `json:"job_id"`
	DocID string `json:"doc_id"`

	Status   JobStatus `json:"status"`
	Phase    string    `json:"phase"`
	Filename string    `json:"filename"`

	Progress Progress `json:"progress"`

	ContentHash string    `json:"content_hash,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`

	// Internal: not serialized.
	inputPath string
	outDir    string
	artifacts map[string]string
	errors    []string
}

// Progress summarizes what the pipeline has done so far.
type Progress struct {
	RawChars      int      `json:"raw_chars"`
	CleanedChars  int      `json:"cleaned_chars"`
	Chunks        int      `json:"chunks"`
	Accepted      int      `json:"accepted"`
	RejectedShort int      `json:"rejected_short"`
	Exhausted     int      `json:"exhausted"`
	CleanSkipped  bool     `json:"clean_skipped"`
	FromCache     bool     `json:"from_cache"`
	Errors        []string `json:"errors"`
}

// NewJob creates a queued job for a document stored at inputPath whose
// outputs go to outDir.
func NewJob(id, docID, filename, inputPath, outDir string) *Job {
	now := time.Now()
	return &Job{
		ID:        id,
		DocID:     docID,
		Status:    StatusQueued,
		Phase:     "queued",
		Filename:  filename,
		CreatedAt: now,
		UpdatedAt: now,
		inputPath: inputPath,
		outDir:    outDir,
	}
}

// JobStore is a thread-safe in-memory job registry with TTL eviction.
type JobStore struct {
	mu   sync.Mutex
	jobs map[string]*Job
	ttl  time.Duration
}

func NewJobStore(ttl time.Duration) *JobStore {
	return &JobStore{
		jobs: make(map[string]*Job),
		ttl:  ttl,
	}
}

func (s *JobStore) Put(job *Job) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs[job.ID] = job
}

func (s *JobStore) Get(id string) *Job {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.jobs[id]
}

// Cleanup removes expired jobs and returns them so their files can be
// removed by the caller.
func (s *JobStore) Cleanup() []*Job {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	var expired []*Job
	for id, job := range s.jobs {
		job.mu.Lock()
		updated := job.UpdatedAt
		job.mu.Unlock()
		if now.Sub(updated) > s.ttl {
			delete(s.jobs, id)
			expired = append(expired, job)
		}
	}
	return expired
}

// Delete removes a job and returns it, or nil if it was not tracked.
func (s *JobStore) Delete(id string) *Job {
	s.mu.Lock()
	defer s.mu.Unlock()
	job := s.jobs[id]
	delete(s.jobs, id)
	return job
}

// Len returns the number of tracked jobs.
func (s *JobStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.jobs)
}

// Finished reports whether the job reached a terminal status.
func (s JobStatus) Finished() bool {
	return s == StatusCompleted || s == StatusPartial || s == StatusFailed
}

// SetStatus updates job status atomically.
func (j *Job) SetStatus(status JobStatus, phase string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.Status = status
	j.Phase = phase
	j.UpdatedAt = time.Now()
}

// AddError records an error.
func (j *Job) AddError(err string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.errors = append(j.errors, err)
	j.Progress.Errors = j.errors
	j.UpdatedAt = time.Now()
}

// Record copies the counters of a pipeline report into the job and registers
// its output files as artifacts.
func (j *Job) Record(rep *Report) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.Progress.RawChars = rep.RawChars
	j.Progress.CleanedChars = rep.CleanedChars
	j.Progress.FromCache = rep.FromCache
	if c := rep.Cleaning; c != nil {
		j.Progress.Chunks = c.Chunks
		j.Progress.Accepted = c.Accepted
		j.Progress.RejectedShort = c.RejectedShort
		j.Progress.Exhausted = c.Exhausted
		j.Progress.CleanSkipped = c.Skipped
	}
	if j.artifacts == nil {
		j.artifacts = make(map[string]string)
	}
	for name, path := range map[string]string{
		ArtifactRaw:     rep.RawPath,
		ArtifactCleaned: rep.CleanedPath,
		ArtifactPDF:     rep.PDFPath,
		ArtifactSummary: rep.SummaryPath,
	} {
		if path != "" {
			j.artifacts[name] = path
		}
	}
	j.UpdatedAt = time.Now()
}

// Artifact returns the path of a named output file.
func (j *Job) Artifact(name string) (string, bool) {
	j.mu.Lock()
	defer j.mu.Unlock()
	p, ok := j.artifacts[name]
	return p, ok
}

// InputPath returns where the uploaded document is stored.
func (j *Job) InputPath() string {
	return j.inputPath
}

// OutputDir returns the directory the job's outputs are written to.
func (j *Job) OutputDir() string {
	return j.outDir
}

// JobSnapshot is a read-only, JSON-safe copy of job state.
type JobSnapshot struct {
	ID          string    `json:"job_id"`
	DocID       string    `json:"doc_id"`
	Status      JobStatus `json:"status"`
	Phase       string    `json:"phase"`
	Filename    string    `json:"filename"`
	ContentHash string    `json:"content_hash,omitempty"`
	Progress    Progress  `json:"progress"`
	Artifacts   []string  `json:"artifacts"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Snapshot returns a JSON-safe copy of the job state.
func (j *Job) Snapshot() JobSnapshot {
	j.mu.Lock()
	defer j.mu.Unlock()
	progress := j.Progress
	progress.Errors = append([]string{}, j.Progress.Errors...)
	names := slices.Sorted(maps.Keys(j.artifacts))
	if names == nil {
		names = []string{}
	}
	return JobSnapshot{
		ID:          j.ID,
		DocID:       j.DocID,
		Status:      j.Status,
		Phase:       j.Phase,
		Filename:    j.Filename,
		ContentHash: j.ContentHash,
		Progress:    progress,
		Artifacts:   names,
		CreatedAt:   j.CreatedAt,
		UpdatedAt:   j.UpdatedAt,
	}
}

// ContentHashHex computes SHA-256 of content and returns hex string.
func ContentHashHex(data []byte) string {
	h := sha256.Sum256(data)
	return fmt.Sprintf("%x", h[:])
}
