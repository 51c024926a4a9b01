package ai

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// Result is the outcome of one request in GenerateAll.
type Result struct {
	Text string
	Err  error
}

// GenerateAll runs reqs concurrently, at most limit at a time, and returns
// the results in input order. A failed request does not cancel the others.
func GenerateAll(ctx context.Context, gen Generator, reqs []GenerateRequest, limit int) []Result {
	results := make([]Result, len(reqs))
	if len(reqs) == 0 {
		return results
	}

	var g errgroup.Group
	if limit > 0 {
		g.SetLimit(limit)
	}
	for i, req := range reqs {
		g.Go(func() error {
			text, err := gen.Generate(ctx, req)
			results[i] = Result{Text: text, Err: err}
			return nil
		})
	}
	_ = g.Wait()
	return results
}
