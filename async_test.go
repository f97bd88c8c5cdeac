package extractous

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/FranciscoLopezStriderIntel/extractous/internal/tika/tikatest"
)

// TestRunAsyncReturnsValue verifies results pass through.
func TestRunAsyncReturnsValue(t *testing.T) {
	v, err := runAsync(context.Background(), func() (int, error) { return 42, nil })
	require.NoError(t, err)
	assert.Equal(t, 42, v)

	wantErr := errors.New("boom")
	_, err = runAsync(context.Background(), func() (int, error) { return 0, wantErr })
	assert.ErrorIs(t, err, wantErr)
}

// TestRunAsyncCancelled verifies a done context wins over a slow call.
func TestRunAsyncCancelled(t *testing.T) {
	release := make(chan struct{})
	defer close(release)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := runAsync(ctx, func() (string, error) {
		<-release
		return "late", nil
	})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

// TestRunAsyncAlreadyCancelled verifies fn is not started for a dead context.
func TestRunAsyncAlreadyCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	called := false
	_, err := runAsync(ctx, func() (int, error) {
		called = true
		return 1, nil
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, called)
}

// TestExtractContextVariants verifies the context variants return the same
// text as the blocking calls.
func TestExtractContextVariants(t *testing.T) {
	ex, te := newTestExtractor(t)
	ctx := context.Background()

	text, err := ex.ExtractBytesToStringContext(ctx, tikatest.PDF("Hello"))
	require.NoError(t, err)
	assert.Equal(t, "Hello\n", text)

	res, err := ex.ExtractContext(ctx, BytesInput([]byte("plain")))
	require.NoError(t, err)
	assert.Equal(t, "plain", res.Content)

	_, err = ex.ExtractFileToStringContext(ctx, "")
	var ioErr *IOError
	require.ErrorAs(t, err, &ioErr)

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	_, err = ex.ExtractURLToStringContext(cancelled, "http://example.invalid/doc.pdf")
	assert.ErrorIs(t, err, context.Canceled)
	te.assertClean(t)
}
