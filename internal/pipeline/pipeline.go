package pipeline

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// Deps holds the collaborators a Pipeline drives. Recorder is optional.
type Deps struct {
	Crawler   Crawler
	Scanner   Scanner
	Extractor Extractor
	Primary   PrimaryGenerator
	Secondary SecondaryGenerator
	Verifier  Verifier
	Repairer  Repairer
	Recorder  Recorder
}

// Options tunes execution. Zero values are valid.
type Options struct {
	// Concurrency bounds how many jobs are processed at once (default 1).
	Concurrency int
	// JobTimeout is a per-job deadline for processing; 0 disables it.
	JobTimeout time.Duration
	Logger     *slog.Logger
}

// Pipeline runs discovery, processing, verification, repair and
// summarization over a single Run, always in that order.
type Pipeline struct {
	deps        Deps
	concurrency int
	jobTimeout  time.Duration
	logger      *slog.Logger
	now         func() time.Time
}

// New creates a Pipeline wired to deps.
func New(deps Deps, opts Options) *Pipeline {
	if opts.Concurrency <= 0 {
		opts.Concurrency = 1
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Pipeline{
		deps:        deps,
		concurrency: opts.Concurrency,
		jobTimeout:  opts.JobTimeout,
		logger:      opts.Logger,
		now:         time.Now,
	}
}

// Execute runs every stage for baseTarget and returns the final Run.
// It never fails: crawl failures end up in Run.RunErrors and per-target
// failures in each Job's error log.
func (p *Pipeline) Execute(ctx context.Context, baseTarget string, limit int, hints string) *Run {
	run := NewRun(baseTarget, limit, hints)
	run.ID = uuid.NewString()
	run.StartedAt = p.now().UTC()

	p.logger.Info("run started", "run_id", run.ID, "base", baseTarget, "limit", run.Limit)

	run = p.discover(ctx, run)
	run = p.process(ctx, run)
	run = p.verify(ctx, run)
	run = p.repair(ctx, run)
	run = p.summarize(ctx, run)

	run.FinishedAt = p.now().UTC()
	p.logger.Info("run finished",
		"run_id", run.ID,
		"total", run.Summary.Total,
		"successful", run.Summary.Successful,
		"failed", run.Summary.Failed,
		"duration", run.FinishedAt.Sub(run.StartedAt),
	)

	if p.deps.Recorder != nil {
		if err := p.deps.Recorder.SaveRun(context.WithoutCancel(ctx), run); err != nil {
			p.logger.Warn("failed to record run", "run_id", run.ID, "error", err)
		}
	}
	return run
}
