package extractous

import (
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/FranciscoLopezStriderIntel/extractous/internal/tika/tikatest"
)

// TestExtractBytesStream verifies a stream yields the full text, ignoring the
// max length, and reports metadata up front.
func TestExtractBytesStream(t *testing.T) {
	ex, te := newTestExtractor(t)
	text := strings.Repeat("streamed words ", 100)

	r, md, err := ex.SetExtractStringMaxLength(10).SetStreamBufferSize(16).ExtractBytes([]byte(text))
	require.NoError(t, err)
	assert.Equal(t, "text/plain; charset=UTF-8", md.Get(MetaContentType))
	assert.Equal(t, CharSetUTF8, r.CharSet())

	got, err := io.ReadAll(r)
	require.NoError(t, err)
	assert.Equal(t, text, string(got))

	require.NoError(t, r.Close())
	te.assertClean(t)
}

// TestExtractFileStream verifies file inputs stream the same text as the
// string API.
func TestExtractFileStream(t *testing.T) {
	ex, te := newTestExtractor(t)
	path := filepath.Join(t.TempDir(), "doc.pdf")
	require.NoError(t, os.WriteFile(path, tikatest.PDF("page one", "page two"), 0o600))

	r, md, err := ex.ExtractFile(path)
	require.NoError(t, err)
	defer r.Close()
	assert.Equal(t, "application/pdf", md.Get(MetaContentType))

	got, err := io.ReadAll(r)
	require.NoError(t, err)
	assert.Equal(t, "page one\npage two\n", string(got))
	require.NoError(t, r.Close())
	te.assertClean(t)
}

// TestStreamUTF16 verifies UTF-16BE output and its UTF-8 view.
func TestStreamUTF16(t *testing.T) {
	ex, _ := newTestExtractor(t)
	text := "grüße, 世界"

	r, _, err := ex.SetEncoding(CharSetUTF16BE).ExtractBytes([]byte(text))
	require.NoError(t, err)
	defer r.Close()
	assert.Equal(t, CharSetUTF16BE, r.CharSet())

	got, err := io.ReadAll(r.UTF8())
	require.NoError(t, err)
	assert.Equal(t, text, string(got))
}

// TestStreamASCII verifies unmappable characters are replaced.
func TestStreamASCII(t *testing.T) {
	ex, _ := newTestExtractor(t)

	r, _, err := ex.SetEncoding(CharSetUSASCII).ExtractBytes([]byte("naïve"))
	require.NoError(t, err)
	defer r.Close()

	assert.Same(t, r, r.UTF8())
	got, err := io.ReadAll(r)
	require.NoError(t, err)
	assert.Equal(t, "na?ve", string(got))
}

// TestStreamCloseTwice verifies Close is idempotent and reads after it fail
// with an I/O error.
func TestStreamCloseTwice(t *testing.T) {
	ex, te := newTestExtractor(t)

	r, _, err := ex.ExtractBytes(tikatest.PDF("Hello"))
	require.NoError(t, err)

	require.NoError(t, r.Close())
	require.NoError(t, r.Close())
	assert.Zero(t, te.vm.Stats().DoubleDeletes)

	_, err = r.Read(make([]byte, 8))
	var ioErr *IOError
	require.ErrorAs(t, err, &ioErr)
	te.assertClean(t)
}

// TestStreamReaderDroppedWithoutClose verifies a reader the caller forgets
// to close does not keep the engine stream open.
func TestStreamReaderDroppedWithoutClose(t *testing.T) {
	ex, te := newTestExtractor(t)

	func() {
		r, _, err := ex.ExtractBytes(tikatest.PDF("left", "open"))
		require.NoError(t, err)
		buf := make([]byte, 4)
		_, err = r.Read(buf)
		require.NoError(t, err)
	}()
	require.Equal(t, 1, te.eng.OpenStreams())

	assert.Eventually(t, func() bool {
		runtime.GC()
		return te.eng.OpenStreams() == 0
	}, 5*time.Second, 10*time.Millisecond)
	te.assertClean(t)
}

// TestStreamReadFailure verifies a failing managed read is an I/O error.
func TestStreamReadFailure(t *testing.T) {
	ex, te := newTestExtractor(t)
	te.eng.FailReads(true)

	r, _, err := ex.ExtractBytes([]byte("text"))
	require.NoError(t, err)

	_, err = io.ReadAll(r)
	var ioErr *IOError
	require.ErrorAs(t, err, &ioErr)
	require.NoError(t, r.Close())
	te.assertClean(t)
}

// TestStreamOpenErrors verifies failures before the stream exists.
func TestStreamOpenErrors(t *testing.T) {
	ex, te := newTestExtractor(t)

	r, md, err := ex.ExtractFile(filepath.Join(t.TempDir(), "missing.docx"))
	var ioErr *IOError
	require.ErrorAs(t, err, &ioErr)
	assert.Nil(t, r)
	assert.Nil(t, md)

	_, _, err = ex.ExtractURL("gopher://example.com/doc")
	require.ErrorAs(t, err, &ioErr)
	te.assertClean(t)
}
