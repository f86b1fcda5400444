// Package runner executes queued pipeline runs in the background.
package runner

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/kalambet/pwgen/internal/pipeline"
	"github.com/kalambet/pwgen/internal/storage"
)

// JobType is the queue job type for pipeline runs.
const JobType = "generate_run"

// JobStore abstracts the job queue operations.
type JobStore interface {
	ClaimNextJob(types []string) (*storage.Job, error)
	CompleteJob(id, resultID string) error
	FailJob(id string, errMsg string) error
	DeleteRun(ctx context.Context, id string) error
}

// Executor runs the pipeline for one base target.
type Executor interface {
	Execute(ctx context.Context, baseTarget string, limit int, hints string) *pipeline.Run
}

// Payload is the queued request for a run.
type Payload struct {
	URL   string `json:"url"`
	Limit int    `json:"limit"`
	Hints string `json:"hints,omitempty"`
}

// NewJob builds the queue job for a run request.
func NewJob(p Payload) (storage.Job, error) {
	if strings.TrimSpace(p.URL) == "" {
		return storage.Job{}, errors.New("url is required")
	}
	b, err := json.Marshal(p)
	if err != nil {
		return storage.Job{}, fmt.Errorf("marshaling payload: %w", err)
	}
	return storage.Job{
		ID:          uuid.New().String(),
		Type:        JobType,
		PayloadJSON: string(b),
	}, nil
}

// Worker processes generate_run jobs from the SQLite job queue.
type Worker struct {
	store  JobStore
	exec   Executor
	poll   time.Duration
	logger *slog.Logger
}

// NewWorker creates a Worker with the given dependencies.
// If pollInterval is <= 0, it defaults to 500ms.
func NewWorker(store JobStore, exec Executor, pollInterval time.Duration) *Worker {
	if pollInterval <= 0 {
		pollInterval = 500 * time.Millisecond
	}
	return &Worker{
		store:  store,
		exec:   exec,
		poll:   pollInterval,
		logger: slog.Default(),
	}
}

// Run polls for jobs until ctx is cancelled.
func (w *Worker) Run(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}

		done, err := w.RunOnce(ctx)
		if err != nil {
			w.logger.Error("worker iteration failed", "error", err)
		}
		if done {
			continue
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(w.poll):
		}
	}
}

// RunOnce claims and processes a single generate_run job.
// Returns true if a job was processed (regardless of success/failure).
func (w *Worker) RunOnce(ctx context.Context) (bool, error) {
	job, err := w.store.ClaimNextJob([]string{JobType})
	if err != nil {
		return false, fmt.Errorf("claiming job: %w", err)
	}
	if job == nil {
		return false, nil
	}

	runID, err := w.processJob(ctx, job)
	if err != nil {
		w.logger.Warn("job failed", "job_id", job.ID, "error", err)
		if runID != "" && job.Attempts+1 < job.MaxAttempts {
			w.discardRun(ctx, runID)
		}
		if failErr := w.store.FailJob(job.ID, err.Error()); failErr != nil {
			w.logger.Error("failed to mark job as failed", "job_id", job.ID, "error", failErr)
		}
		return true, nil
	}

	if err := w.store.CompleteJob(job.ID, runID); err != nil {
		return true, fmt.Errorf("completing job %s: %w", job.ID, err)
	}
	return true, nil
}

// discardRun drops the recorded run of an attempt that will be retried, so
// only the final attempt leaves a failed run behind.
func (w *Worker) discardRun(ctx context.Context, runID string) {
	err := w.store.DeleteRun(context.WithoutCancel(ctx), runID)
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		w.logger.Warn("failed to discard retried run", "run_id", runID, "error", err)
	}
}

// processJob executes the run. A run that could not discover anything
// because of run-level errors is reported as a failure, along with its id,
// so the queue retries it later.
func (w *Worker) processJob(ctx context.Context, job *storage.Job) (string, error) {
	var payload Payload
	if err := json.Unmarshal([]byte(job.PayloadJSON), &payload); err != nil {
		return "", fmt.Errorf("parsing payload: %w", err)
	}
	if payload.URL == "" {
		return "", errors.New("payload has no url")
	}

	w.logger.Info("starting queued run", "job_id", job.ID, "url", payload.URL, "limit", payload.Limit)
	run := w.exec.Execute(ctx, payload.URL, payload.Limit, payload.Hints)

	if len(run.Jobs) == 0 && len(run.RunErrors) > 0 {
		return run.ID, fmt.Errorf("run %s: %s", run.ID, strings.Join(run.RunErrors, "; "))
	}
	return run.ID, nil
}
