// Package tikatest installs a small stand-in for the Tika object model into a
// jvmtest.VM: AutoDetectParser, the content handlers, Metadata, ParseContext,
// the parser config classes and the java.io/java.net streams the bridge
// opens. Detection understands three kinds of input: minimal PDFs (text is
// taken from Tj operators), UTF-8 plain text, and everything else, which is
// rejected the way an unknown format would be.
package tikatest

import (
	"sort"
	"sync"

	"github.com/FranciscoLopezStriderIntel/extractous/internal/jvm/jvmtest"
)

// JNI names of the engine classes installed by Install.
const (
	classParser            = "org/apache/tika/parser/Parser"
	classAutoDetectParser  = "org/apache/tika/parser/AutoDetectParser"
	classParseContext      = "org/apache/tika/parser/ParseContext"
	classParsingReader     = "org/apache/tika/parser/ParsingReader"
	classMetadata          = "org/apache/tika/metadata/Metadata"
	classContentHandler    = "org/xml/sax/ContentHandler"
	classBodyHandler       = "org/apache/tika/sax/BodyContentHandler"
	classWriteOutHandler   = "org/apache/tika/sax/WriteOutContentHandler"
	classToXMLHandler      = "org/apache/tika/sax/ToXMLContentHandler"
	classTikaInputStream   = "org/apache/tika/io/TikaInputStream"
	classPDFConfig         = "org/apache/tika/parser/pdf/PDFParserConfig"
	classOCRStrategy       = "org/apache/tika/parser/pdf/PDFParserConfig$OCR_STRATEGY"
	classOfficeConfig      = "org/apache/tika/parser/microsoft/OfficeParserConfig"
	classTesseractConfig   = "org/apache/tika/parser/ocr/TesseractOCRConfig"
	classReaderInputStream = "org/apache/commons/io/input/ReaderInputStream"
	classInputStream       = "java/io/InputStream"
	classReader            = "java/io/Reader"
	classFileInputStream   = "java/io/FileInputStream"
	classByteArrayStream   = "java/io/ByteArrayInputStream"
	classURL               = "java/net/URL"
	classCharset           = "java/nio/charset/Charset"
	classEnum              = "java/lang/Enum"

	excTika              = "org/apache/tika/exception/TikaException"
	excZeroByteFile      = "org/apache/tika/exception/ZeroByteFileException"
	excSAX               = "org/xml/sax/SAXException"
	excWriteLimitReached = "org/apache/tika/exception/WriteLimitReachedException"
	excIO                = "java/io/IOException"
	excFileNotFound      = "java/io/FileNotFoundException"
	excMalformedURL      = "java/net/MalformedURLException"
	excUnknownHost       = "java/net/UnknownHostException"
	excUnsupportedCS     = "java/nio/charset/UnsupportedCharsetException"
)

// Setter is one recorded call on a parser config object.
type Setter struct {
	// Class is the JNI class name of the config object.
	Class  string
	Method string
	// Value is a bool, an int32, a string, or the OCR_STRATEGY constant name.
	Value any
}

// Engine is the installed fake. It records what the bridge asked of it.
type Engine struct {
	vm *jvmtest.VM

	mu         sync.Mutex
	parses     int
	opened     int
	closed     int
	failReads  bool
	wrapLimit  bool
	setters    []Setter
	lastCtx    []string
	lastConfig map[string]map[string]any
	client     HTTPClient
}

// New returns a fresh VM with the engine installed.
func New() (*jvmtest.VM, *Engine) {
	vm := jvmtest.New()
	return vm, Install(vm)
}

// Install defines the engine classes in vm.
func Install(vm *jvmtest.VM) *Engine {
	e := &Engine{vm: vm, client: defaultClient}
	e.defineExceptions()
	e.defineStreams()
	e.defineMetadata()
	e.defineHandlers()
	e.defineConfigs()
	e.defineParser()
	return e
}

func (e *Engine) defineExceptions() {
	for _, c := range [][2]string{
		{excTika, "java/lang/Exception"},
		{excZeroByteFile, excTika},
		{excSAX, "java/lang/Exception"},
		{excWriteLimitReached, excSAX},
		{excUnknownHost, excIO},
		{excUnsupportedCS, "java/lang/IllegalArgumentException"},
	} {
		e.vm.DefineClass(c[0], c[1])
	}
}

// Parses counts AutoDetectParser.parse calls, including the ones made by
// ParsingReader.
func (e *Engine) Parses() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.parses
}

// OpenStreams is the number of input sources opened and not yet closed.
func (e *Engine) OpenStreams() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.opened - e.closed
}

// FailReads makes every read of an input source throw IOException.
func (e *Engine) FailReads(fail bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.failReads = fail
}

// WrapWriteLimit makes the parser rethrow a write-limit hit as a
// TikaException caused by it, the way some engine parsers do.
func (e *Engine) WrapWriteLimit(wrap bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.wrapLimit = wrap
}

func (e *Engine) wrapsWriteLimit() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.wrapLimit
}

// Setters returns every config setter call in order.
func (e *Engine) Setters() []Setter {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]Setter(nil), e.setters...)
}

// ContextClasses lists the keys registered in the ParseContext of the most
// recent parse, as JNI names in sorted order.
func (e *Engine) ContextClasses() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]string(nil), e.lastCtx...)
}

// Config returns the options set on the config object of class that the most
// recent parse received, or nil when none was registered.
func (e *Engine) Config(class string) map[string]any {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.lastConfig[class]
}

func (e *Engine) recordSetter(class, method string, v any) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.setters = append(e.setters, Setter{Class: class, Method: method, Value: v})
}

func (e *Engine) recordParse(ctx *parseContext) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.parses++
	e.lastCtx = nil
	e.lastConfig = make(map[string]map[string]any)
	if ctx == nil {
		return
	}
	ctx.mu.Lock()
	defer ctx.mu.Unlock()
	for name, obj := range ctx.entries {
		e.lastCtx = append(e.lastCtx, name)
		if cfg, ok := obj.Value.(*config); ok {
			e.lastConfig[name] = cfg.snapshot()
		}
	}
	sort.Strings(e.lastCtx)
}

func (e *Engine) sourceOpened() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.opened++
}

func (e *Engine) sourceClosed() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.closed++
}

func (e *Engine) readsFail() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.failReads
}
