package extractous

import (
	"log/slog"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/FranciscoLopezStriderIntel/extractous/internal/jvm"
	"github.com/FranciscoLopezStriderIntel/extractous/internal/tika"
)

// DefaultMaxLength is the default bound, in characters, on extracted text.
const DefaultMaxLength = 100000

// Extractor holds an extraction configuration. It is an immutable value: the
// setters return modified copies, so one Extractor can be shared between
// goroutines and used as a template.
//
// The zero value is usable and equivalent to New().
type Extractor struct {
	maxLength  *int
	encoding   *CharSet
	xml        bool
	pdf        PdfParserConfig
	office     OfficeParserConfig
	ocr        TesseractOcrConfig
	bufferSize int
	logger     *slog.Logger
	rt         *jvm.Runtime
	err        *ConfigError
}

// New returns an Extractor with the default configuration.
func New() Extractor { return Extractor{} }

// SetExtractStringMaxLength bounds the text returned by the ToString
// methods. Zero returns empty text without parsing. Negative values are
// rejected.
func (e Extractor) SetExtractStringMaxLength(n int) Extractor {
	if n < 0 {
		return e.fail("Extractor.ExtractStringMaxLength", "must not be negative")
	}
	e.maxLength = &n
	return e
}

// SetEncoding selects the charset of streamed output.
func (e Extractor) SetEncoding(cs CharSet) Extractor {
	v, ok := ParseCharSet(string(cs))
	if !ok {
		return e.fail("Extractor.Encoding", "unsupported charset "+string(cs))
	}
	e.encoding = &v
	return e
}

// SetPdfConfig sets the options of the PDF parser.
func (e Extractor) SetPdfConfig(c PdfParserConfig) Extractor {
	e.pdf = c
	return e
}

// SetOfficeConfig sets the options of the Microsoft Office parsers.
func (e Extractor) SetOfficeConfig(c OfficeParserConfig) Extractor {
	e.office = c
	return e
}

// SetOcrConfig sets the Tesseract options used when a parser runs OCR.
func (e Extractor) SetOcrConfig(c TesseractOcrConfig) Extractor {
	e.ocr = c
	return e
}

// SetXMLOutput switches the output from plain text to XHTML.
func (e Extractor) SetXMLOutput(xml bool) Extractor {
	e.xml = xml
	return e
}

// SetStreamBufferSize sets how many bytes one stream read pulls from the
// engine.
func (e Extractor) SetStreamBufferSize(n int) Extractor {
	if n <= 0 {
		return e.fail("Extractor.StreamBufferSize", "must be positive")
	}
	e.bufferSize = n
	return e
}

// SetLogger sets the logger for extraction calls. Nil restores slog.Default.
func (e Extractor) SetLogger(l *slog.Logger) Extractor {
	e.logger = l
	return e
}

// ExtractStringMaxLength returns the text bound of the ToString methods.
func (e Extractor) ExtractStringMaxLength() int { return valueOr(e.maxLength, DefaultMaxLength) }

// Encoding returns the charset of streamed output.
func (e Extractor) Encoding() CharSet { return valueOr(e.encoding, CharSetUTF8) }

// XMLOutput reports whether output is XHTML.
func (e Extractor) XMLOutput() bool { return e.xml }

// PdfConfig returns the PDF parser options.
func (e Extractor) PdfConfig() PdfParserConfig { return e.pdf }

// OfficeConfig returns the Office parser options.
func (e Extractor) OfficeConfig() OfficeParserConfig {
	return e.office
}

// OcrConfig returns the Tesseract options.
func (e Extractor) OcrConfig() TesseractOcrConfig { return e.ocr }

// StreamBufferSize returns the size of one stream read in bytes.
func (e Extractor) StreamBufferSize() int {
	if e.bufferSize == 0 {
		return tika.DefaultBufferSize
	}
	return e.bufferSize
}

// Err returns the first configuration error recorded by a setter, on the
// Extractor itself or on one of its parser configs.
func (e Extractor) Err() error {
	if e.err != nil {
		return e.err
	}
	if err := e.pdf.Err(); err != nil {
		return err
	}
	if err := e.office.Err(); err != nil {
		return err
	}
	return e.ocr.Err()
}

func (e Extractor) fail(field, msg string) Extractor {
	if e.err == nil {
		e.err = newConfigError(field, msg)
	}
	return e
}

// withRuntime binds the extractor to rt instead of the process runtime.
func (e Extractor) withRuntime(rt *jvm.Runtime) Extractor {
	e.rt = rt
	return e
}

func (e Extractor) runtime() *jvm.Runtime {
	if e.rt != nil {
		return e.rt
	}
	return jvm.Default()
}

func (e Extractor) settings() tika.Settings {
	return tika.Settings{
		MaxLength:  e.ExtractStringMaxLength(),
		Charset:    string(e.Encoding()),
		XML:        e.xml,
		BufferSize: e.StreamBufferSize(),
		PDF:        e.pdf.settings(),
		Office:     e.office.settings(),
		OCR:        e.ocr.settings(),
	}
}

// call returns a parser and a logger scoped to one extraction.
func (e Extractor) call(op string, in Input) (*tika.Parser, *slog.Logger) {
	log := e.logger
	if log == nil {
		log = slog.Default()
	}
	log = log.With("call_id", uuid.NewString(), "op", op, "input", in.String())
	return tika.NewParser(e.runtime(), log), log
}

// Extract parses in and returns its text and metadata.
func (e Extractor) Extract(in Input) (*Result, error) {
	if err := e.Err(); err != nil {
		return nil, err
	}
	parser, log := e.call("extract", in)
	start := time.Now()
	res, err := parser.ParseToString(in.in, e.settings())
	if err != nil {
		err = classifyBridgeError("extract "+in.String(), err)
		log.Warn("extraction failed", "error", err)
		return nil, err
	}
	log.Debug("extraction finished",
		"chars", utf8.RuneCountInString(res.Content),
		"truncated", res.Truncated,
		"duration", time.Since(start))
	return &Result{
		Content:   res.Content,
		Metadata:  fromTikaMetadata(res.Metadata),
		Truncated: res.Truncated,
	}, nil
}

// ExtractFileToString returns the text of a local file.
func (e Extractor) ExtractFileToString(path string) (string, error) {
	return e.extractString(FileInput(path))
}

// ExtractURLToString returns the text of the document at url.
func (e Extractor) ExtractURLToString(url string) (string, error) {
	return e.extractString(URLInput(url))
}

// ExtractBytesToString returns the text of an in-memory document.
func (e Extractor) ExtractBytesToString(data []byte) (string, error) {
	return e.extractString(BytesInput(data))
}

func (e Extractor) extractString(in Input) (string, error) {
	res, err := e.Extract(in)
	if err != nil {
		return "", err
	}
	return res.Content, nil
}

// ExtractStream starts parsing in and returns its output as a stream in the
// configured encoding. The max length does not apply to streams. The caller
// must Close the reader.
func (e Extractor) ExtractStream(in Input) (*StreamReader, Metadata, error) {
	if err := e.Err(); err != nil {
		return nil, nil, err
	}
	parser, log := e.call("stream", in)
	st, md, err := parser.ParseToStream(in.in, e.settings())
	if err != nil {
		err = classifyBridgeError("extract "+in.String(), err)
		log.Warn("opening stream failed", "error", err)
		return nil, nil, err
	}
	log.Debug("stream opened", "encoding", e.Encoding())
	return newStreamReader(st, e.Encoding(), e.StreamBufferSize()), fromTikaMetadata(md), nil
}

// ExtractFile streams the text of a local file.
func (e Extractor) ExtractFile(path string) (*StreamReader, Metadata, error) {
	return e.ExtractStream(FileInput(path))
}

// ExtractURL streams the text of the document at url.
func (e Extractor) ExtractURL(url string) (*StreamReader, Metadata, error) {
	return e.ExtractStream(URLInput(url))
}

// ExtractBytes streams the text of an in-memory document.
func (e Extractor) ExtractBytes(data []byte) (*StreamReader, Metadata, error) {
	return e.ExtractStream(BytesInput(data))
}

// RuntimeShutdown destroys the process-wide runtime. Extractions started
// afterwards fail with a RuntimeError; the runtime cannot be restarted.
func RuntimeShutdown() error {
	return classifyBridgeError("runtime shutdown", jvm.Default().Shutdown())
}
