package pipeline

import "context"

// summarize stores a fresh Summary on the run. The processing counters are
// not used: repair may have healed jobs after they were set.
func (p *Pipeline) summarize(_ context.Context, run *Run) *Run {
	run.Summary = Summarize(run)
	return run
}

// Summarize tallies the run's jobs by their current error logs. Run-level
// errors are reported alongside and never counted as failed jobs.
func Summarize(run *Run) Summary {
	s := Summary{Total: len(run.Jobs)}
	for _, job := range run.Jobs {
		if job.Healthy() {
			s.Successful++
		} else {
			s.Failed++
		}
		if job.Repair == RepairHealed {
			s.Healed++
		}
	}
	if len(run.RunErrors) > 0 {
		s.RunErrors = append([]string(nil), run.RunErrors...)
	}
	return s
}
