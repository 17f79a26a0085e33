package pipeline

import (
	"context"
	"fmt"
	"log/slog"
)

// Worker processes a single document job.
type Worker struct {
	runner *Runner
	log    *slog.Logger
}

func NewWorker(runner *Runner, log *slog.Logger) *Worker {
	return &Worker{runner: runner, log: log}
}

// Process runs the full pipeline for a job and sets its final status.
func (w *Worker) Process(ctx context.Context, job *Job) {
	log := w.log.With("job_id", job.ID, "doc_id", job.DocID, "filename", job.Filename)
	log.Info("job started")

	rep, err := w.runner.Process(ctx, job.InputPath(), job.OutputDir(), func(s JobStatus) {
		job.SetStatus(s, string(s))
	})
	if rep != nil {
		job.Record(rep)
	}
	if err != nil {
		phase := job.Snapshot().Phase
		log.Error("job failed", "phase", phase, "error", err)
		job.AddError(fmt.Sprintf("%s: %s", phase, err))
		job.SetStatus(StatusFailed, phase)
		return
	}

	if c := rep.Cleaning; c != nil && c.Skipped {
		job.AddError("cleaning skipped: " + c.SkipReason)
	}
	if c := rep.Cleaning; c != nil && c.Exhausted > 0 {
		job.AddError(fmt.Sprintf("%d chunks kept their original text after all attempts failed", c.Exhausted))
	}
	if rep.RenderError != "" {
		job.AddError("render: " + rep.RenderError)
	}

	if rep.Degraded() {
		job.SetStatus(StatusPartial, "done")
	} else {
		job.SetStatus(StatusCompleted, "done")
	}
	log.Info("job finished", "status", job.Snapshot().Status, "raw_chars", rep.RawChars, "cleaned_chars", rep.CleanedChars)
}
