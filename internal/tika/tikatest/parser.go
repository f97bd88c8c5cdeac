package tikatest

import (
	"bytes"
	"errors"
	"io"
	"strings"
	"sync"
	"unicode/utf8"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"

	"github.com/FranciscoLopezStriderIntel/extractous/internal/jvm"
	"github.com/FranciscoLopezStriderIntel/extractous/internal/jvm/jvmtest"
)

// document is what detection and parsing produce.
type document struct {
	contentType string
	text        string
	meta        [][2]string
}

// parse reads data, detects its type and extracts text, filling md.
func parse(data []byte, md *metadata) (*document, error) {
	if len(data) == 0 {
		return nil, jvmtest.Throw(excZeroByteFile, "InputStream must have > 0 bytes")
	}

	var doc *document
	switch {
	case bytes.HasPrefix(data, []byte("%PDF-")):
		d, err := parsePDF(data)
		if err != nil {
			return nil, err
		}
		doc = d
	case utf8.Valid(data) && bytes.IndexByte(data, 0) < 0:
		doc = &document{
			contentType: "text/plain; charset=UTF-8",
			text:        string(data),
			meta:        [][2]string{{"Content-Encoding", "UTF-8"}},
		}
	default:
		return nil, jvmtest.Throw(excTika, "Unsupported or corrupt document (detected application/octet-stream)")
	}

	md.set("Content-Type", doc.contentType)
	for _, kv := range doc.meta {
		md.set(kv[0], kv[1])
	}
	md.set("X-TIKA:Parsed-By", "org.apache.tika.parser.DefaultParser")
	return doc, nil
}

func (e *Engine) defineParser() {
	e.vm.DefineClass(classParser, "")
	e.vm.DefineClass(classAutoDetectParser, classParser).
		Method("<init>", "()V", func(c *jvmtest.Call) (jvm.Value, error) {
			return jvmtest.Void, nil
		}).
		Method("parse", "(Ljava/io/InputStream;Lorg/xml/sax/ContentHandler;Lorg/apache/tika/metadata/Metadata;Lorg/apache/tika/parser/ParseContext;)V",
			func(c *jvmtest.Call) (jvm.Value, error) {
				src, err := sourceOf(c.Arg(0))
				if err != nil {
					return jvm.Value{}, err
				}
				h, ok := objValue[*sink](c.Arg(1))
				if !ok {
					return jvm.Value{}, jvmtest.Throw("java/lang/NullPointerException", "handler")
				}
				md, ok := objValue[*metadata](c.Arg(2))
				if !ok {
					return jvm.Value{}, jvmtest.Throw("java/lang/NullPointerException", "metadata")
				}
				ctx, _ := objValue[*parseContext](c.Arg(3))
				e.recordParse(ctx)

				data, err := src.readAll()
				if err != nil {
					return jvm.Value{}, err
				}
				doc, err := parse(data, md)
				if err != nil {
					return jvm.Value{}, err
				}
				if err := h.write(h.render(doc, md)); err != nil {
					var exc *jvmtest.Exception
					if e.wrapsWriteLimit() && errors.As(err, &exc) {
						return jvm.Value{}, exc.Wrap(excTika, "Unable to extract text")
					}
					return jvm.Value{}, err
				}
				return jvmtest.Void, nil
			})

	e.vm.Class(classReader).
		Method("close", "()V", func(c *jvmtest.Call) (jvm.Value, error) {
			if r, ok := c.This.Value.(*textReader); ok {
				r.close()
			}
			return jvmtest.Void, nil
		})

	// ParsingReader parses eagerly in its constructor. A failure is kept and
	// thrown from the first read, as the background thread of the real class
	// would report it.
	e.vm.DefineClass(classParsingReader, classReader).
		Method("<init>", "(Lorg/apache/tika/parser/Parser;Ljava/io/InputStream;Lorg/apache/tika/metadata/Metadata;Lorg/apache/tika/parser/ParseContext;)V",
			func(c *jvmtest.Call) (jvm.Value, error) {
				src, err := sourceOf(c.Arg(1))
				if err != nil {
					return jvm.Value{}, err
				}
				md, ok := objValue[*metadata](c.Arg(2))
				if !ok {
					return jvm.Value{}, jvmtest.Throw("java/lang/NullPointerException", "metadata")
				}
				ctx, _ := objValue[*parseContext](c.Arg(3))
				e.recordParse(ctx)

				r := &textReader{src: src}
				data, err := src.readAll()
				if err == nil {
					var doc *document
					if doc, err = parse(data, md); err == nil {
						r.text = doc.text
					}
				}
				r.err = err
				c.This.Value = r
				return jvmtest.Void, nil
			})

	e.vm.DefineClass(classCharset, "").
		StaticMethod("forName", "(Ljava/lang/String;)Ljava/nio/charset/Charset;", func(c *jvmtest.Call) (jvm.Value, error) {
			name := c.String(0)
			cs, ok := charsets[strings.ToUpper(name)]
			if !ok {
				return jvm.Value{}, jvmtest.Throw(excUnsupportedCS, "%s", name)
			}
			return c.Ref(&jvmtest.Object{Class: c.Class, Value: cs}), nil
		})

	e.vm.DefineClass(classReaderInputStream, classInputStream).
		Method("<init>", "(Ljava/io/Reader;Ljava/nio/charset/Charset;)V", func(c *jvmtest.Call) (jvm.Value, error) {
			r, ok := objValue[*textReader](c.Arg(0))
			if !ok {
				return jvm.Value{}, jvmtest.Throw("java/lang/NullPointerException", "reader")
			}
			cs, ok := objValue[*charset](c.Arg(1))
			if !ok {
				return jvm.Value{}, jvmtest.Throw("java/lang/NullPointerException", "charset")
			}
			c.This.Value = &source{eng: e, r: r.encoded(cs), c: r}
			return jvmtest.Void, nil
		})
}

// textReader is the payload of a ParsingReader.
type textReader struct {
	src  *source
	text string
	err  error

	once sync.Once
}

// encoded returns the parsed text in cs, or a reader replaying the parse
// failure.
func (r *textReader) encoded(cs *charset) io.Reader {
	if r.err != nil {
		return errReader{err: r.err}
	}
	return bytes.NewReader(cs.encode(r.text))
}

func (r *textReader) close() { r.once.Do(r.src.close) }

func (r *textReader) Close() error {
	r.close()
	return nil
}

// charset is the payload of a Charset object. A nil enc is US-ASCII.
type charset struct {
	name string
	enc  encoding.Encoding
}

var charsets = map[string]*charset{
	"UTF-8":      {"UTF-8", unicode.UTF8},
	"UTF-16BE":   {"UTF-16BE", unicode.UTF16(unicode.BigEndian, unicode.IgnoreBOM)},
	"UTF-16LE":   {"UTF-16LE", unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM)},
	"ISO-8859-1": {"ISO-8859-1", charmap.ISO8859_1},
	"US-ASCII":   {"US-ASCII", nil},
}

// encode writes s in the charset, replacing unmappable characters with '?'
// as a Java encoder does.
func (cs *charset) encode(s string) []byte {
	if cs.enc == unicode.UTF8 {
		return []byte(s)
	}
	var out []byte
	var one [utf8.UTFMax]byte
	for _, r := range s {
		if cs.enc == nil {
			if r < utf8.RuneSelf {
				out = append(out, byte(r))
			} else {
				out = append(out, '?')
			}
			continue
		}
		n := utf8.EncodeRune(one[:], r)
		b, err := cs.enc.NewEncoder().Bytes(one[:n])
		if err != nil {
			b = []byte{'?'}
		}
		out = append(out, b...)
	}
	return out
}

func objValue[T any](o *jvmtest.Object) (T, bool) {
	var zero T
	if o == nil {
		return zero, false
	}
	v, ok := o.Value.(T)
	return v, ok
}
