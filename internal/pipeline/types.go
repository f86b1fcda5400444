package pipeline

import (
	"context"
	"time"

	"github.com/kalambet/pwgen/internal/pagemodel"
)

// VerificationFailed is the error log entry recorded when the verifier
// rejects a primary artifact. The verifier's diagnostic goes to
// Job.Diagnostic instead.
const VerificationFailed = "Verification failed"

// DefaultLimit is the page limit surfaces use when the caller gives none.
const DefaultLimit = 10

// RepairStatus records what the repair stage did with a job.
type RepairStatus string

const (
	RepairNotNeeded    RepairStatus = "not_needed"
	RepairNotAttempted RepairStatus = "not_attempted"
	RepairHealed       RepairStatus = "healed"
	RepairFailed       RepairStatus = "failed"
)

// Job is the per-target unit of work and everything accumulated for it.
type Job struct {
	Target       string          `json:"target"`
	Identifier   string          `json:"identifier,omitempty"`
	Snapshot     string          `json:"-"`
	Model        *pagemodel.Page `json:"model,omitempty"`
	PrimaryRef   string          `json:"primary_ref,omitempty"`
	SecondaryRef string          `json:"secondary_ref,omitempty"`
	Errors       []string        `json:"errors"`
	Diagnostic   string          `json:"diagnostic,omitempty"`
	Repair       RepairStatus    `json:"repair"`
}

// Healthy reports whether the job's error log is empty.
func (j *Job) Healthy() bool {
	return len(j.Errors) == 0
}

// Run is the aggregate state of one pipeline execution. It is owned by
// the stage currently running and handed to the next one.
type Run struct {
	ID         string          `json:"id"`
	BaseTarget string          `json:"base_target"`
	Limit      int             `json:"limit"`
	Hints      string          `json:"hints,omitempty"`
	Discovered []string        `json:"discovered"`
	Jobs       map[string]*Job `json:"jobs"`
	Processed  int             `json:"processed"`
	ErrorCount int             `json:"error_count"`
	RunErrors  []string        `json:"run_errors"`
	Summary    Summary         `json:"summary"`
	StartedAt  time.Time       `json:"started_at"`
	FinishedAt time.Time       `json:"finished_at"`
}

// NewRun builds the initial context for a run. A negative limit is
// treated as "no limit".
func NewRun(baseTarget string, limit int, hints string) *Run {
	if limit < 0 {
		limit = 0
	}
	return &Run{
		BaseTarget: baseTarget,
		Limit:      limit,
		Hints:      hints,
		Discovered: []string{},
		Jobs:       make(map[string]*Job),
		RunErrors:  []string{},
	}
}

// Order returns the jobs in discovery order.
func (r *Run) Order() []*Job {
	jobs := make([]*Job, 0, len(r.Jobs))
	for _, target := range r.Discovered {
		if job, ok := r.Jobs[target]; ok {
			jobs = append(jobs, job)
		}
	}
	return jobs
}

// Summary is the final tally of a run, computed from the job records.
type Summary struct {
	Total      int      `json:"total"`
	Successful int      `json:"successful"`
	Failed     int      `json:"failed"`
	Healed     int      `json:"healed"`
	RunErrors  []string `json:"run_errors,omitempty"`
}

// Crawler finds same-origin locations reachable from a base location.
type Crawler interface {
	Crawl(ctx context.Context, base string) ([]string, error)
}

// Scanner captures the raw content of a location.
type Scanner interface {
	Scan(ctx context.Context, target string) (string, error)
}

// Extractor turns a snapshot into a structured element model.
type Extractor interface {
	Extract(ctx context.Context, target, snapshot, hints string) (*pagemodel.Page, error)
}

// PrimaryGenerator writes the page-object artifact and returns its reference.
type PrimaryGenerator interface {
	Generate(ctx context.Context, identifier string, page *pagemodel.Page) (string, error)
}

// SecondaryGenerator writes the test artifact for a primary artifact.
type SecondaryGenerator interface {
	Generate(ctx context.Context, primaryRef, hints string) (string, error)
}

// Verifier checks a generated artifact. A false verdict is not an error;
// err is reserved for failures to run the check at all.
type Verifier interface {
	Verify(ctx context.Context, ref string) (ok bool, diagnostic string, err error)
}

// Repairer attempts to fix an artifact in place.
type Repairer interface {
	Repair(ctx context.Context, ref, diagnostic string) error
}

// Recorder persists finished runs.
type Recorder interface {
	SaveRun(ctx context.Context, run *Run) error
}
