package extractous

import "context"

type asyncResult[T any] struct {
	value T
	err   error
}

// runAsync runs fn in a goroutine and returns when it finishes or ctx is
// done, whichever comes first. An abandoned call keeps running inside the
// engine until it completes on its own.
func runAsync[T any](ctx context.Context, fn func() (T, error)) (T, error) {
	var zero T
	if ctx == nil {
		ctx = context.Background()
	}
	if err := ctx.Err(); err != nil {
		return zero, err
	}

	resultCh := make(chan asyncResult[T], 1)
	go func() {
		value, err := fn()
		resultCh <- asyncResult[T]{value: value, err: err}
	}()

	select {
	case <-ctx.Done():
		return zero, ctx.Err()
	case out := <-resultCh:
		return out.value, out.err
	}
}

// ExtractContext is Extract with best-effort cancellation: the managed call
// cannot be interrupted, but ExtractContext returns ctx.Err() as soon as the
// context is done.
func (e Extractor) ExtractContext(ctx context.Context, in Input) (*Result, error) {
	return runAsync(ctx, func() (*Result, error) {
		return e.Extract(in)
	})
}

// ExtractFileToStringContext is ExtractFileToString with best-effort
// cancellation.
func (e Extractor) ExtractFileToStringContext(ctx context.Context, path string) (string, error) {
	return runAsync(ctx, func() (string, error) {
		return e.ExtractFileToString(path)
	})
}

// ExtractURLToStringContext is ExtractURLToString with best-effort
// cancellation.
func (e Extractor) ExtractURLToStringContext(ctx context.Context, url string) (string, error) {
	return runAsync(ctx, func() (string, error) {
		return e.ExtractURLToString(url)
	})
}

// ExtractBytesToStringContext is ExtractBytesToString with best-effort
// cancellation.
func (e Extractor) ExtractBytesToStringContext(ctx context.Context, data []byte) (string, error) {
	return runAsync(ctx, func() (string, error) {
		return e.ExtractBytesToString(data)
	})
}
