package pipeline

import (
	"context"
	"fmt"
)

// repair only runs when some job has errors. A job with a primary artifact
// gets one repair attempt: success clears its error log, failure leaves it
// as is. Repair failures are logged and recorded on Job.Repair, never
// returned. Jobs without a primary artifact cannot be repaired.
func (p *Pipeline) repair(ctx context.Context, run *Run) *Run {
	if !hasErrors(run) {
		return run
	}

	for _, job := range run.Order() {
		if job.Healthy() {
			continue
		}
		if job.PrimaryRef == "" {
			job.Repair = RepairNotAttempted
			continue
		}
		if err := p.attemptRepair(ctx, job); err != nil {
			job.Repair = RepairFailed
			p.logger.Warn("repair failed", "artifact", job.PrimaryRef, "error", err)
			continue
		}
		job.Errors = job.Errors[:0]
		job.Repair = RepairHealed
		p.logger.Info("repaired", "artifact", job.PrimaryRef)
	}
	return run
}

// attemptRepair converts a repairer panic into an error.
func (p *Pipeline) attemptRepair(ctx context.Context, job *Job) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("repairer panicked: %v", r)
		}
	}()
	return p.deps.Repairer.Repair(ctx, job.PrimaryRef, job.Diagnostic)
}

func hasErrors(run *Run) bool {
	for _, job := range run.Jobs {
		if !job.Healthy() {
			return true
		}
	}
	return false
}
