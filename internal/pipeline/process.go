package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"
)

var (
	errEmptyPrimary   = errors.New("primary generator returned no artifact")
	errEmptySecondary = errors.New("secondary generator returned no artifact")
)

// process builds one Job per discovered target. Jobs are independent:
// worker funcs never return an error, so one failing target cannot cancel
// the others. Counters and the jobs map are only touched under mu.
func (p *Pipeline) process(ctx context.Context, run *Run) *Run {
	if len(run.Discovered) == 0 {
		return run
	}

	var (
		mu    sync.Mutex
		done  int
		total = len(run.Discovered)
	)
	g := new(errgroup.Group)
	g.SetLimit(p.concurrency)

	for _, target := range run.Discovered {
		g.Go(func() error {
			job := p.processJob(ctx, target, run.Hints)

			mu.Lock()
			defer mu.Unlock()
			run.Jobs[target] = job
			done++
			if job.Healthy() {
				run.Processed++
				p.logger.Info("page processed", "progress", fmt.Sprintf("%d/%d", done, total), "page", job.Identifier)
			} else {
				run.ErrorCount++
				p.logger.Warn("page failed", "progress", fmt.Sprintf("%d/%d", done, total), "target", target, "error", job.Errors[0])
			}
			return nil
		})
	}
	_ = g.Wait()

	return run
}

// processJob runs the per-target steps and converts the first failure, or
// a panic in a collaborator, into the job's error log.
func (p *Pipeline) processJob(ctx context.Context, target, hints string) (job *Job) {
	job = &Job{Target: target, Errors: []string{}, Repair: RepairNotNeeded}

	if p.jobTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.jobTimeout)
		defer cancel()
	}

	defer func() {
		if r := recover(); r != nil {
			job.Errors = append(job.Errors, fmt.Sprintf("panic: %v", r))
		}
	}()

	if err := p.runSteps(ctx, job, hints); err != nil {
		job.Errors = append(job.Errors, err.Error())
	}
	return job
}

// runSteps stops at the first failing step; everything set before the
// failure stays on the job.
func (p *Pipeline) runSteps(ctx context.Context, job *Job, hints string) error {
	snapshot, err := p.deps.Scanner.Scan(ctx, job.Target)
	if err != nil {
		return err
	}
	job.Snapshot = snapshot

	job.Identifier = Identifier(job.Target)

	model, err := p.deps.Extractor.Extract(ctx, job.Target, job.Snapshot, hints)
	if err != nil {
		return err
	}
	job.Model = model

	primary, err := p.deps.Primary.Generate(ctx, job.Identifier, job.Model)
	if err != nil {
		return err
	}
	if primary == "" {
		return errEmptyPrimary
	}
	job.PrimaryRef = primary

	secondary, err := p.deps.Secondary.Generate(ctx, job.PrimaryRef, hints)
	if err != nil {
		return err
	}
	if secondary == "" {
		return errEmptySecondary
	}
	job.SecondaryRef = secondary
	return nil
}

// Recount recomputes the processing counters from the job records. Only
// a job that got through every processing step has a secondary artifact,
// so the result is unaffected by later verification or repair.
func (r *Run) Recount() (processed, errorCount int) {
	for _, job := range r.Jobs {
		if job.SecondaryRef != "" {
			processed++
		} else {
			errorCount++
		}
	}
	return processed, errorCount
}
