package extractous

import (
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/FranciscoLopezStriderIntel/extractous/internal/jvm"
	"github.com/FranciscoLopezStriderIntel/extractous/internal/jvm/jvmtest"
	"github.com/FranciscoLopezStriderIntel/extractous/internal/tika"
	"github.com/FranciscoLopezStriderIntel/extractous/internal/tika/tikatest"
)

type testEnv struct {
	vm  *jvmtest.VM
	eng *tikatest.Engine
	rt  *jvm.Runtime
}

// newTestExtractor returns an Extractor bound to a fresh fake engine.
func newTestExtractor(t *testing.T) (Extractor, *testEnv) {
	t.Helper()
	vm, eng := tikatest.New()
	log := slog.New(slog.DiscardHandler)
	rt := jvm.New(vm, jvm.Options{Logger: log})
	t.Cleanup(func() { _ = rt.Shutdown() })
	return New().SetLogger(log).withRuntime(rt), &testEnv{vm: vm, eng: eng, rt: rt}
}

func (te *testEnv) assertClean(t *testing.T) {
	t.Helper()
	st := te.vm.Stats()
	assert.Zero(t, st.CallsWhilePending, "call made with an exception pending")
	assert.Zero(t, st.DoubleDeletes, "reference deleted twice")
	assert.Zero(t, st.LiveLocalRefs, "local references outlived their guard")
	assert.Zero(t, te.eng.OpenStreams(), "input stream left open")
}

// TestExtractBytesToStringPDF verifies the text of a one-line PDF.
func TestExtractBytesToStringPDF(t *testing.T) {
	ex, te := newTestExtractor(t)

	text, err := ex.ExtractBytesToString(tikatest.PDF("Hello"))
	require.NoError(t, err)
	assert.Contains(t, text, "Hello")
	te.assertClean(t)
}

// TestExtractReturnsMetadata verifies Extract reports content and metadata.
func TestExtractReturnsMetadata(t *testing.T) {
	ex, te := newTestExtractor(t)

	res, err := ex.Extract(BytesInput(tikatest.PDF("one", "two")))
	require.NoError(t, err)
	assert.Equal(t, "one\ntwo\n", res.Content)
	assert.False(t, res.Truncated)
	assert.Equal(t, "application/pdf", res.Metadata.Get(MetaContentType))
	assert.Equal(t, "1", res.Metadata.Get(MetaPageCount))
	assert.True(t, res.Metadata.Has(MetaParsedBy))
	te.assertClean(t)
}

// TestExtractMaxLengthZero verifies a zero max length never reaches the engine.
func TestExtractMaxLengthZero(t *testing.T) {
	ex, te := newTestExtractor(t)
	ex = ex.SetExtractStringMaxLength(0)

	for _, data := range [][]byte{tikatest.PDF("Hello"), nil, {0xff, 0x00}} {
		text, err := ex.ExtractBytesToString(data)
		require.NoError(t, err)
		assert.Empty(t, text)
	}
	assert.Zero(t, te.eng.Parses())
}

// TestExtractMaxLengthBound verifies the result never exceeds the max length.
func TestExtractMaxLengthBound(t *testing.T) {
	ex, te := newTestExtractor(t)
	text := strings.Repeat("héllo wörld ", 20)

	for _, limit := range []int{1, 7, 50, 239, 240, 1000} {
		res, err := ex.SetExtractStringMaxLength(limit).Extract(BytesInput([]byte(text)))
		require.NoError(t, err, "limit %d", limit)
		assert.LessOrEqual(t, utf8.RuneCountInString(res.Content), limit, "limit %d", limit)
		assert.True(t, strings.HasPrefix(text, res.Content), "limit %d", limit)
		assert.Equal(t, utf8.RuneCountInString(text) > limit, res.Truncated, "limit %d", limit)
	}
	te.assertClean(t)
}

// TestExtractEmptyBytes verifies an empty buffer is a parse error.
func TestExtractEmptyBytes(t *testing.T) {
	ex, te := newTestExtractor(t)

	_, err := ex.ExtractBytesToString([]byte{})
	var parseErr *ParseError
	require.ErrorAs(t, err, &parseErr)
	assert.Equal(t, tika.ExcZeroByteFile, parseErr.ExceptionClass)
	assert.Equal(t, ErrorKindParse, parseErr.Kind())
	te.assertClean(t)
}

// TestExtractInvalidBytes verifies undetectable bytes are a parse error.
func TestExtractInvalidBytes(t *testing.T) {
	ex, te := newTestExtractor(t)

	_, err := ex.ExtractBytesToString([]byte{0x00, 0xfe, 0x13, 0x37, 0xff})
	var parseErr *ParseError
	require.ErrorAs(t, err, &parseErr)
	assert.Equal(t, tika.ExcTika, parseErr.ExceptionClass)
	assert.True(t, strings.HasPrefix(err.Error(), "extractous: "))
	te.assertClean(t)
}

// TestExtractFileToString verifies files are read by path.
func TestExtractFileToString(t *testing.T) {
	ex, te := newTestExtractor(t)
	path := filepath.Join(t.TempDir(), "report.pdf")
	require.NoError(t, os.WriteFile(path, tikatest.PDF("Quarterly", "Report"), 0o600))

	text, err := ex.ExtractFileToString(path)
	require.NoError(t, err)
	assert.Equal(t, "Quarterly\nReport\n", text)

	res, err := ex.Extract(FileInput(path))
	require.NoError(t, err)
	assert.Equal(t, "report.pdf", res.Metadata.Get(MetaResource))
	te.assertClean(t)
}

// TestExtractFileMissing verifies a missing file is an I/O error.
func TestExtractFileMissing(t *testing.T) {
	ex, te := newTestExtractor(t)

	_, err := ex.ExtractFileToString(filepath.Join(t.TempDir(), "missing.pdf"))
	var ioErr *IOError
	require.ErrorAs(t, err, &ioErr)
	assert.ErrorIs(t, err, tika.ErrOpenInput)
	assert.Contains(t, err.Error(), "missing.pdf")
	te.assertClean(t)

	_, err = ex.ExtractFileToString("")
	require.ErrorAs(t, err, &ioErr)
}

// TestExtractURLToString verifies URL inputs are fetched by the engine and
// HTTP failures surface as I/O errors.
func TestExtractURLToString(t *testing.T) {
	ex, te := newTestExtractor(t)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/hello.pdf" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/pdf")
		_, _ = w.Write(tikatest.PDF("Hello from the web"))
	}))
	defer srv.Close()

	text, err := ex.ExtractURLToString(srv.URL + "/hello.pdf")
	require.NoError(t, err)
	assert.Contains(t, text, "Hello from the web")

	_, err = ex.ExtractURLToString(srv.URL + "/gone.pdf")
	var ioErr *IOError
	require.ErrorAs(t, err, &ioErr)

	_, err = ex.ExtractURLToString("not a url")
	require.ErrorAs(t, err, &ioErr)
	te.assertClean(t)
}

// TestExtractXMLOutput verifies XHTML output.
func TestExtractXMLOutput(t *testing.T) {
	ex, _ := newTestExtractor(t)

	text, err := ex.SetXMLOutput(true).ExtractBytesToString(tikatest.PDF("Hello"))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(text, "<html"))
	assert.Contains(t, text, "<p>Hello</p>")
}

// TestExtractConfigErrorSkipsEngine verifies an invalid configuration is
// reported before anything is parsed.
func TestExtractConfigErrorSkipsEngine(t *testing.T) {
	ex, te := newTestExtractor(t)
	ex = ex.SetOcrConfig(NewTesseractOcrConfig().SetDensity(10))

	_, err := ex.ExtractBytesToString(tikatest.PDF("Hello"))
	var cfgErr *ConfigError
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, "TesseractOcrConfig.Density", cfgErr.Field)

	_, _, err = ex.ExtractBytes(tikatest.PDF("Hello"))
	require.ErrorAs(t, err, &cfgErr)
	assert.Zero(t, te.eng.Parses())
}

// TestExtractConfigsReachEngine verifies only explicitly set options become
// setter calls on the engine configs.
func TestExtractConfigsReachEngine(t *testing.T) {
	ex, te := newTestExtractor(t)
	ex = ex.
		SetPdfConfig(NewPdfParserConfig().SetOcrStrategy(PdfOcrNoOCR).SetExtractMarkedContent(true)).
		SetOfficeConfig(NewOfficeParserConfig().SetIncludeSlideNotes(false)).
		SetOcrConfig(NewTesseractOcrConfig().SetLanguage("eng+deu").SetTimeoutSeconds(30))

	_, err := ex.ExtractBytesToString(tikatest.PDF("Hello"))
	require.NoError(t, err)

	assert.Equal(t, map[string]any{
		"setOcrStrategy":          "NO_OCR",
		"setExtractMarkedContent": true,
	}, te.eng.Config(tika.ClassPDFParserConfig))
	assert.Equal(t, map[string]any{"setIncludeSlideNotes": false}, te.eng.Config(tika.ClassOfficeParserConfig))
	assert.Equal(t, map[string]any{
		"setLanguage":       "eng+deu",
		"setTimeoutSeconds": int32(30),
	}, te.eng.Config(tika.ClassTesseractOCRConfig))
	assert.Len(t, te.eng.Setters(), 5)
	te.assertClean(t)
}

// TestExtractDefaultsMakeNoSetterCalls verifies a default Extractor leaves
// every engine default alone.
func TestExtractDefaultsMakeNoSetterCalls(t *testing.T) {
	ex, te := newTestExtractor(t)

	_, err := ex.ExtractBytesToString(tikatest.PDF("Hello"))
	require.NoError(t, err)
	assert.Empty(t, te.eng.Setters())
	assert.Equal(t, []string{tika.ClassParser}, te.eng.ContextClasses())
}

// TestExtractConcurrent verifies concurrent extractions on distinct inputs
// each see their own text.
func TestExtractConcurrent(t *testing.T) {
	ex, te := newTestExtractor(t)
	inputs := map[string][]byte{
		"Hello\n":            tikatest.PDF("Hello"),
		"plain text input":   []byte("plain text input"),
		"second\npdf file\n": tikatest.PDF("second", "pdf file"),
	}

	var wg sync.WaitGroup
	errs := make(chan error, 10*len(inputs))
	for want, data := range inputs {
		for range 10 {
			wg.Add(1)
			go func() {
				defer wg.Done()
				got, err := ex.ExtractBytesToString(data)
				if err != nil {
					errs <- err
					return
				}
				if got != want {
					errs <- errors.New("got " + got + ", want " + want)
				}
			}()
		}
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		assert.NoError(t, err)
	}
	assert.Equal(t, 10*len(inputs), te.eng.Parses())
	te.assertClean(t)
}

// TestExtractAfterShutdown verifies a shut down runtime yields RuntimeError.
func TestExtractAfterShutdown(t *testing.T) {
	ex, te := newTestExtractor(t)

	_, err := ex.ExtractBytesToString(tikatest.PDF("Hello"))
	require.NoError(t, err)
	require.NoError(t, te.rt.Shutdown())

	_, err = ex.ExtractBytesToString(tikatest.PDF("Hello"))
	var rtErr *RuntimeError
	require.ErrorAs(t, err, &rtErr)
	assert.Equal(t, ErrorKindRuntime, rtErr.Kind())
}

// TestInputOptions verifies content type and name hints are carried.
func TestInputOptions(t *testing.T) {
	ex, _ := newTestExtractor(t)

	in := BytesInput([]byte("hinted text")).WithName("notes.txt").WithContentType("text/plain")
	assert.Equal(t, "bytes[11]", in.String())

	res, err := ex.Extract(in)
	require.NoError(t, err)
	assert.Equal(t, "notes.txt", res.Metadata.Get(MetaResource))
}

// TestMetadataHelpers verifies the Metadata accessors.
func TestMetadataHelpers(t *testing.T) {
	md := Metadata{"b": {"1", "2"}, "a": {}, "c": {"x"}}

	assert.Equal(t, "1", md.Get("b"))
	assert.Equal(t, "", md.Get("a"))
	assert.Equal(t, "", md.Get("missing"))
	assert.Equal(t, []string{"1", "2"}, md.Values("b"))
	assert.True(t, md.Has("a"))
	assert.False(t, md.Has("missing"))
	assert.Equal(t, []string{"a", "b", "c"}, md.Keys())

	assert.NotNil(t, fromTikaMetadata(nil))
}

// TestMetadataOrder verifies names come back sorted whatever the map layout
// and values keep the order the engine reported.
func TestMetadataOrder(t *testing.T) {
	md := fromTikaMetadata(tika.Metadata{
		"dc:creator":    {"second", "first"},
		"Content-Type":  {"application/pdf"},
		"xmpTPg:NPages": {"3"},
		"Author":        {"z"},
	})
	for range 10 {
		assert.Equal(t, []string{"Author", "Content-Type", "dc:creator", "xmpTPg:NPages"}, md.Keys())
	}
	assert.Equal(t, []string{"second", "first"}, md.Values("dc:creator"))
	assert.Equal(t, "second", md.Get("dc:creator"))
}
