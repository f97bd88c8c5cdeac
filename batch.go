package extractous

import (
	"context"
	"runtime"

	"golang.org/x/sync/errgroup"
)

// BatchResult is the outcome for one input of a batch.
type BatchResult struct {
	Input   Input
	Content string
	Err     error
}

// BatchExtractToString extracts every input with at most concurrency
// extractions in flight; concurrency <= 0 uses GOMAXPROCS. Results are in
// input order. A failed item records its error and does not stop the
// others; the returned error is only ever ctx.Err().
func (e Extractor) BatchExtractToString(ctx context.Context, inputs []Input, concurrency int) ([]BatchResult, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if concurrency <= 0 {
		concurrency = runtime.GOMAXPROCS(0)
	}
	results := make([]BatchResult, len(inputs))
	if err := e.Err(); err != nil {
		for i, in := range inputs {
			results[i] = BatchResult{Input: in, Err: err}
		}
		return results, nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)
	for i, in := range inputs {
		results[i].Input = in
		if gctx.Err() != nil {
			results[i].Err = gctx.Err()
			continue
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				results[i].Err = err
				return nil
			}
			results[i].Content, results[i].Err = e.extractString(in)
			return nil
		})
	}
	_ = g.Wait()
	return results, ctx.Err()
}
