package extractous

import (
	"bufio"
	"errors"
	"io"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"

	"github.com/FranciscoLopezStriderIntel/extractous/internal/tika"
)

// StreamReader is the buffered output of a streaming extraction, encoded in
// the Extractor's charset. It may be read from any goroutine, though not from
// several at once. Close it when done; the engine keeps the document open
// until then, or until the garbage collector finds the reader unreachable.
type StreamReader struct {
	st      *tika.Stream
	r       *bufio.Reader
	charset CharSet
}

func newStreamReader(st *tika.Stream, cs CharSet, bufSize int) *StreamReader {
	return &StreamReader{st: st, r: bufio.NewReaderSize(st, bufSize), charset: cs}
}

// Read implements io.Reader. It returns io.EOF at the end of the document
// and an *IOError on any failure, including reads after Close.
func (s *StreamReader) Read(p []byte) (int, error) {
	n, err := s.r.Read(p)
	if err != nil && !errors.Is(err, io.EOF) {
		err = classifyBridgeError("read stream", err)
	}
	return n, err
}

// Close releases the stream. Calling it again is a no-op.
func (s *StreamReader) Close() error {
	return classifyBridgeError("close stream", s.st.Close())
}

// CharSet reports the encoding of the bytes returned by Read.
func (s *StreamReader) CharSet() CharSet { return s.charset }

// UTF8 returns a reader over the same stream that always yields UTF-8. For
// UTF-8 and US-ASCII output it is the StreamReader itself.
func (s *StreamReader) UTF8() io.Reader {
	if s.charset != CharSetUTF16BE {
		return s
	}
	return transform.NewReader(s, unicode.UTF16(unicode.BigEndian, unicode.IgnoreBOM).NewDecoder())
}
