package resolve

import (
	"context"
	"errors"

	"golang.org/x/sync/errgroup"

	"playresolver/internal/domain"
)

// BatchItem is one play in a batch together with its own overrides.
type BatchItem struct {
	Play     domain.Play   `json:"play"`
	Override StageOverride `json:"config"`
}

// BatchResult pairs an item's outcome with its position in the request.
type BatchResult struct {
	Index  int
	Result Result
	Err    error
}

// ResolveBatch resolves items concurrently, at most batchConcurrency at a
// time. Each item's failure is reported in its own BatchResult and never
// cancels the others; only the caller's context does.
func (s *Service) ResolveBatch(ctx context.Context, items []BatchItem) []BatchResult {
	results := make([]BatchResult, len(items))
	var g errgroup.Group
	g.SetLimit(s.batchConcurrency)
	for i, item := range items {
		results[i].Index = i
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				results[i].Err = err
				return nil
			}
			results[i].Result, results[i].Err = s.Resolve(ctx, item.Play, item.Override)
			return nil
		})
	}
	_ = g.Wait()
	return results
}

// BatchSummary counts outcomes in a batch.
type BatchSummary struct {
	Matched int `json:"matched"`
	Skipped int `json:"skipped"`
	NoMatch int `json:"noMatch"`
	Failed  int `json:"failed"`
}

func Summarize(results []BatchResult) BatchSummary {
	var summary BatchSummary
	for _, r := range results {
		switch {
		case r.Err == nil:
			summary.Matched++
		case errors.Is(r.Err, domain.ErrSkipped):
			summary.Skipped++
		case domain.IsNoMatch(r.Err):
			summary.NoMatch++
		default:
			summary.Failed++
		}
	}
	return summary
}
