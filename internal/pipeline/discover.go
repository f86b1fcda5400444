package pipeline

import (
	"context"
	"fmt"
)

// discover crawls the base target and fills run.Discovered, truncated to
// run.Limit. A crawl failure is recorded as a run error and leaves
// Discovered empty so the remaining stages have nothing to do.
func (p *Pipeline) discover(ctx context.Context, run *Run) *Run {
	links, err := p.deps.Crawler.Crawl(ctx, run.BaseTarget)
	if err != nil {
		run.RunErrors = append(run.RunErrors, fmt.Sprintf("crawl error: %v", err))
		p.logger.Warn("crawl failed", "base", run.BaseTarget, "error", err)
		return run
	}

	seen := make(map[string]bool, len(links))
	discovered := make([]string, 0, len(links))
	for _, link := range links {
		if seen[link] {
			continue
		}
		seen[link] = true
		discovered = append(discovered, link)
		if run.Limit > 0 && len(discovered) == run.Limit {
			break
		}
	}
	run.Discovered = discovered

	p.logger.Info("crawl complete", "found", len(links), "kept", len(discovered))
	return run
}
