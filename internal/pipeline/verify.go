package pipeline

import "context"

// verify checks every primary artifact. Jobs that never got one already
// failed upstream and are skipped.
func (p *Pipeline) verify(ctx context.Context, run *Run) *Run {
	if len(run.Jobs) == 0 {
		return run
	}

	for _, job := range run.Order() {
		if job.PrimaryRef == "" {
			continue
		}
		ok, diagnostic, err := p.deps.Verifier.Verify(ctx, job.PrimaryRef)
		switch {
		case err != nil:
			job.Errors = append(job.Errors, err.Error())
			p.logger.Warn("verifier error", "artifact", job.PrimaryRef, "error", err)
		case !ok:
			job.Errors = append(job.Errors, VerificationFailed)
			job.Diagnostic = diagnostic
			p.logger.Warn("verification failed", "artifact", job.PrimaryRef, "diagnostic", diagnostic)
		default:
			p.logger.Debug("verified", "artifact", job.PrimaryRef)
		}
	}
	return run
}
