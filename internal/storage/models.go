package storage

import (
	"errors"
	"time"

	"github.com/kalambet/pwgen/internal/pipeline"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("not found")

// RunSummary is the list view of a stored run.
type RunSummary struct {
	ID         string           `json:"id"`
	BaseTarget string           `json:"base_target"`
	Limit      int              `json:"limit"`
	Summary    pipeline.Summary `json:"summary"`
	StartedAt  time.Time        `json:"started_at"`
	FinishedAt time.Time        `json:"finished_at"`
}

type Job struct {
	ID          string    `json:"id"`
	Type        string    `json:"type"`
	PayloadJSON string    `json:"-"`
	Status      string    `json:"status"` // "pending", "running", "completed", "failed"
	Attempts    int       `json:"attempts"`
	MaxAttempts int       `json:"max_attempts"`
	RunAfter    time.Time `json:"run_after"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
	LastError   string    `json:"last_error,omitempty"`
	// ResultID is the run produced by a completed generate_run job.
	ResultID string `json:"result_id,omitempty"`
}
