package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/dgallion1/ocrpolish/internal/config"
)

var (
	ErrQueueFull   = errors.New("job queue is full")
	ErrJobActive   = errors.New("job is still running")
	ErrJobNotFound = errors.New("job not found")
)

// Orchestrator manages the service-mode processing queue.
type Orchestrator struct {
	jobs   *JobStore
	queue  chan *Job
	runner *Runner
	log    *slog.Logger
	cfg    config.Config

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewOrchestrator creates the pipeline. Call Start to launch workers.
func NewOrchestrator(cfg config.Config, runner *Runner, log *slog.Logger) *Orchestrator {
	return &Orchestrator{
		jobs:   NewJobStore(cfg.JobTTL),
		queue:  make(chan *Job, cfg.MaxQueueSize),
		runner: runner,
		log:    log,
		cfg:    cfg,
	}
}

// Start launches worker goroutines.
func (o *Orchestrator) Start(ctx context.Context) {
	workerCtx, cancel := context.WithCancel(ctx)
	o.cancel = cancel

	for range max(o.cfg.WorkerCount, 1) {
		o.wg.Add(1)
		go func() {
			defer o.wg.Done()
			w := NewWorker(o.runner, o.log)
			for {
				select {
				case <-workerCtx.Done():
					return
				case job, ok := <-o.queue:
					if !ok {
						return
					}
					w.Process(workerCtx, job)
				}
			}
		}()
	}

	// Start job store cleanup.
	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		ticker := time.NewTicker(5 * time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-workerCtx.Done():
				return
			case <-ticker.C:
				o.evict()
			}
		}
	}()
}

// evict drops expired jobs along with their upload and output files.
func (o *Orchestrator) evict() {
	for _, job := range o.jobs.Cleanup() {
		o.removeFiles(job)
		o.log.Debug("job expired", "job_id", job.ID)
	}
}

// Remove deletes a finished job and its files.
func (o *Orchestrator) Remove(id string) error {
	job := o.jobs.Get(id)
	if job == nil {
		return ErrJobNotFound
	}
	if !job.Snapshot().Status.Finished() {
		return ErrJobActive
	}
	o.jobs.Delete(id)
	o.removeFiles(job)
	return nil
}

func (o *Orchestrator) removeFiles(job *Job) {
	if p := job.InputPath(); p != "" {
		if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
			o.log.Warn("remove upload", "job_id", job.ID, "error", err)
		}
	}
	if d := job.OutputDir(); d != "" {
		if err := os.RemoveAll(d); err != nil {
			o.log.Warn("remove job outputs", "job_id", job.ID, "error", err)
		}
	}
}

// Stop gracefully shuts down the pipeline.
func (o *Orchestrator) Stop() {
	if o.cancel != nil {
		o.cancel()
	}
	close(o.queue)
	o.wg.Wait()
}

// Submit queues a new job for processing.
func (o *Orchestrator) Submit(job *Job) error {
	o.jobs.Put(job)
	select {
	case o.queue <- job:
		return nil
	default:
		job.SetStatus(StatusFailed, "queue_full")
		return fmt.Errorf("%w (%d)", ErrQueueFull, o.cfg.MaxQueueSize)
	}
}

// GetJob returns a job by ID.
func (o *Orchestrator) GetJob(id string) *Job {
	return o.jobs.Get(id)
}

// QueueDepth returns current queue depth.
func (o *Orchestrator) QueueDepth() int {
	return len(o.queue)
}

// JobCount returns how many jobs are tracked.
func (o *Orchestrator) JobCount() int {
	return o.jobs.Len()
}
