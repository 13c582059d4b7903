// Package batch fans integration runs across independent documents.
//
// Inside one run suggestions are strictly ordered, so concurrency exists
// only between documents. The runner guarantees the engine's single-writer
// rule: jobs sharing a source path are executed sequentially by the same
// worker, never in parallel.
package batch

import (
	"context"
	"path/filepath"
	"sync"

	"github.com/m2ix4i/korrektor/internal/logging"
	"github.com/m2ix4i/korrektor/pkg/annotate"
)

// Job is one document to integrate.
type Job struct {
	Input       string
	Output      string
	Suggestions []annotate.Suggestion
}

// Result pairs a job with its outcome.
type Result struct {
	Job    Job
	Report *annotate.Report
	Err    error
}

// Run executes the jobs with at most concurrency documents in flight.
// Results are returned in job order. A canceled context stops workers
// before their next job; jobs already running finish normally (one run is
// a bounded CPU pass with no suspension points).
func Run(ctx context.Context, it *annotate.Integrator, jobs []Job, concurrency int) []Result {
	if concurrency < 1 {
		concurrency = 1
	}

	log := logging.Named("batch")
	results := make([]Result, len(jobs))

	// Group job indices by cleaned source path so no two workers ever
	// touch the same document.
	order := make([]string, 0, len(jobs))
	groups := make(map[string][]int, len(jobs))
	for i, job := range jobs {
		key := job.Input
		if abs, err := filepath.Abs(job.Input); err == nil {
			key = abs
		}
		if _, seen := groups[key]; !seen {
			order = append(order, key)
		}
		groups[key] = append(groups[key], i)
	}

	work := make(chan []int)
	var wg sync.WaitGroup
	for w := 0; w < concurrency; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for indices := range work {
				for _, i := range indices {
					job := jobs[i]
					report, err := it.Integrate(job.Input, job.Output, job.Suggestions)
					results[i] = Result{Job: job, Report: report, Err: err}
				}
			}
		}()
	}

	for _, key := range order {
		// Checked before the select: when cancellation and a free worker
		// are both ready the select would pick randomly.
		if ctx.Err() != nil {
			for _, i := range groups[key] {
				results[i] = Result{Job: jobs[i], Err: ctx.Err()}
			}
			continue
		}
		select {
		case <-ctx.Done():
			for _, i := range groups[key] {
				results[i] = Result{Job: jobs[i], Err: ctx.Err()}
			}
			continue
		case work <- groups[key]:
		}
	}
	close(work)
	wg.Wait()

	done := 0
	for _, r := range results {
		if r.Err == nil && r.Report != nil {
			done++
		}
	}
	log.Info().Int("jobs", len(jobs)).Int("succeeded", done).Msg("batch finished")
	return results
}
