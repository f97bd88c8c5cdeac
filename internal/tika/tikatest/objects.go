package tikatest

import (
	"fmt"
	"html"
	"maps"
	"strings"
	"sync"
	"unicode/utf16"

	"github.com/FranciscoLopezStriderIntel/extractous/internal/jvm"
	"github.com/FranciscoLopezStriderIntel/extractous/internal/jvm/jvmtest"
)

// metadata is the payload of a fake Metadata object.
type metadata struct {
	mu     sync.Mutex
	names  []string
	values map[string][]string
}

func newMetadata() *metadata {
	return &metadata{values: make(map[string][]string)}
}

func (m *metadata) set(k string, v ...string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.values[k]; !ok {
		m.names = append(m.names, k)
	}
	m.values[k] = v
}

func (m *metadata) snapshot() ([]string, map[string][]string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.names...), maps.Clone(m.values)
}

func (e *Engine) defineMetadata() {
	e.vm.DefineClass(classMetadata, "").
		Method("<init>", "()V", func(c *jvmtest.Call) (jvm.Value, error) {
			c.This.Value = newMetadata()
			return jvmtest.Void, nil
		}).
		Method("set", "(Ljava/lang/String;Ljava/lang/String;)V", func(c *jvmtest.Call) (jvm.Value, error) {
			c.This.Value.(*metadata).set(c.String(0), c.String(1))
			return jvmtest.Void, nil
		}).
		Method("names", "()[Ljava/lang/String;", func(c *jvmtest.Call) (jvm.Value, error) {
			names, _ := c.This.Value.(*metadata).snapshot()
			return c.Ref(c.VM.NewStringArray(names)), nil
		}).
		Method("getValues", "(Ljava/lang/String;)[Ljava/lang/String;", func(c *jvmtest.Call) (jvm.Value, error) {
			_, values := c.This.Value.(*metadata).snapshot()
			return c.Ref(c.VM.NewStringArray(values[c.String(0)])), nil
		})

	e.vm.DefineClass(classParseContext, "").
		Method("<init>", "()V", func(c *jvmtest.Call) (jvm.Value, error) {
			c.This.Value = &parseContext{entries: make(map[string]*jvmtest.Object)}
			return jvmtest.Void, nil
		}).
		Method("set", "(Ljava/lang/Class;Ljava/lang/Object;)V", func(c *jvmtest.Call) (jvm.Value, error) {
			key := c.Arg(0)
			if key == nil {
				return jvm.Value{}, jvmtest.Throw("java/lang/NullPointerException", "key")
			}
			cls, ok := key.Value.(*jvmtest.Class)
			if !ok {
				return jvm.Value{}, jvmtest.Throw("java/lang/NullPointerException", "key")
			}
			ctx := c.This.Value.(*parseContext)
			ctx.mu.Lock()
			defer ctx.mu.Unlock()
			ctx.entries[cls.Name] = c.Arg(1)
			return jvmtest.Void, nil
		})
}

type parseContext struct {
	mu      sync.Mutex
	entries map[string]*jvmtest.Object
}

// sink is the payload of every content handler. It counts UTF-16 units the
// way a Java character sink does.
type sink struct {
	mu    sync.Mutex
	xml   bool
	limit int
	n     int
	b     strings.Builder
}

func (s *sink) write(text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range text {
		w := utf16.RuneLen(r)
		if w < 0 {
			w = 1
		}
		if s.limit >= 0 && s.n+w > s.limit {
			return jvmtest.Throw(excWriteLimitReached,
				"Your document contained more than %d characters, and so your requested limit has been reached. "+
					"To receive the full text of the document, increase your limit. (Text up to the limit is however available).",
				s.limit)
		}
		s.b.WriteRune(r)
		s.n += w
	}
	return nil
}

func (s *sink) String() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.b.String()
}

// render formats a parsed document for the sink: plain body text, or XHTML
// shaped like ToXMLContentHandler output.
func (s *sink) render(doc *document, md *metadata) string {
	if !s.xml {
		return doc.text
	}
	var b strings.Builder
	b.WriteString(`<html xmlns="http://www.w3.org/1999/xhtml">` + "\n<head>\n")
	names, values := md.snapshot()
	for _, name := range names {
		for _, v := range values[name] {
			fmt.Fprintf(&b, "<meta name=\"%s\" content=\"%s\"/>\n", html.EscapeString(name), html.EscapeString(v))
		}
	}
	b.WriteString("<title></title>\n</head>\n<body>")
	for _, line := range strings.Split(doc.text, "\n") {
		if line == "" {
			continue
		}
		fmt.Fprintf(&b, "<p>%s</p>\n", html.EscapeString(line))
	}
	b.WriteString("</body></html>")
	return b.String()
}

func (e *Engine) defineHandlers() {
	toString := func(c *jvmtest.Call) (jvm.Value, error) {
		return c.Str(c.This.Value.(*sink).String()), nil
	}

	e.vm.DefineClass(classContentHandler, "")

	e.vm.DefineClass(classBodyHandler, classContentHandler).
		Method("<init>", "()V", func(c *jvmtest.Call) (jvm.Value, error) {
			c.This.Value = &sink{limit: 100_000}
			return jvmtest.Void, nil
		}).
		Method("<init>", "(I)V", func(c *jvmtest.Call) (jvm.Value, error) {
			c.This.Value = &sink{limit: int(c.Int(0))}
			return jvmtest.Void, nil
		}).
		Method("toString", "()Ljava/lang/String;", toString)

	e.vm.DefineClass(classToXMLHandler, classContentHandler).
		Method("<init>", "()V", func(c *jvmtest.Call) (jvm.Value, error) {
			c.This.Value = &sink{xml: true, limit: -1}
			return jvmtest.Void, nil
		}).
		Method("toString", "()Ljava/lang/String;", toString)

	e.vm.DefineClass(classWriteOutHandler, classContentHandler).
		Method("<init>", "(Lorg/xml/sax/ContentHandler;I)V", func(c *jvmtest.Call) (jvm.Value, error) {
			inner := c.Arg(0)
			if inner == nil {
				return jvm.Value{}, jvmtest.Throw("java/lang/NullPointerException", "handler")
			}
			s, ok := inner.Value.(*sink)
			if !ok {
				return jvm.Value{}, jvmtest.Throw("java/lang/IllegalArgumentException", "not a content handler: %s", inner.Class.Name)
			}
			c.This.Value = &sink{xml: s.xml, limit: int(c.Int(1))}
			return jvmtest.Void, nil
		}).
		Method("toString", "()Ljava/lang/String;", toString)
}

// config is the payload of a parser config object.
type config struct {
	mu  sync.Mutex
	set map[string]any
}

func (c *config) snapshot() map[string]any {
	c.mu.Lock()
	defer c.mu.Unlock()
	return maps.Clone(c.set)
}

func (e *Engine) defineConfigs() {
	e.vm.DefineClass(classEnum, "").
		Method("name", "()Ljava/lang/String;", func(c *jvmtest.Call) (jvm.Value, error) {
			return c.Str(c.This.Value.(string)), nil
		})
	strategy := e.vm.DefineClass(classOCRStrategy, classEnum)
	for _, name := range []string{"NO_OCR", "OCR_ONLY", "OCR_AND_TEXT_EXTRACTION", "AUTO"} {
		strategy.StaticField(name, "L"+classOCRStrategy+";", e.vm.NewObject(classOCRStrategy, name))
	}

	e.defineConfig(classPDFConfig,
		[]string{"setExtractInlineImages", "setExtractUniqueInlineImagesOnly", "setExtractMarkedContent", "setExtractAnnotationText"},
		nil,
	).Method("setOcrStrategy", "(L"+classOCRStrategy+";)V", func(c *jvmtest.Call) (jvm.Value, error) {
		arg := c.Arg(0)
		if arg == nil {
			return jvm.Value{}, jvmtest.Throw("java/lang/NullPointerException", "ocrStrategy")
		}
		name, _ := arg.Value.(string)
		e.store(c, "setOcrStrategy", name)
		return jvmtest.Void, nil
	})

	e.defineConfig(classOfficeConfig,
		[]string{
			"setExtractMacros", "setIncludeDeletedContent", "setIncludeMoveFromContent",
			"setIncludeShapeBasedContent", "setIncludeHeadersAndFooters", "setIncludeMissingRows",
			"setIncludeSlideNotes", "setIncludeSlideMasterContent", "setConcatenatePhoneticRuns",
			"setExtractAllAlternativesFromMSG",
		},
		nil,
	)

	e.defineConfig(classTesseractConfig,
		[]string{"setEnableImagePreprocessing", "setApplyRotation"},
		[]string{"setDensity", "setDepth", "setTimeoutSeconds"},
	).Method("setLanguage", "(Ljava/lang/String;)V", func(c *jvmtest.Call) (jvm.Value, error) {
		lang := c.String(0)
		if lang == "" {
			return jvm.Value{}, jvmtest.Throw("java/lang/IllegalArgumentException", "language must not be empty")
		}
		e.store(c, "setLanguage", lang)
		return jvmtest.Void, nil
	})
}

func (e *Engine) defineConfig(name string, bools, ints []string) *jvmtest.Class {
	cls := e.vm.DefineClass(name, "").
		Method("<init>", "()V", func(c *jvmtest.Call) (jvm.Value, error) {
			c.This.Value = &config{set: make(map[string]any)}
			return jvmtest.Void, nil
		})
	for _, m := range bools {
		cls.Method(m, "(Z)V", func(c *jvmtest.Call) (jvm.Value, error) {
			e.store(c, m, c.Bool(0))
			return jvmtest.Void, nil
		})
	}
	for _, m := range ints {
		cls.Method(m, "(I)V", func(c *jvmtest.Call) (jvm.Value, error) {
			e.store(c, m, c.Int(0))
			return jvmtest.Void, nil
		})
	}
	return cls
}

func (e *Engine) store(c *jvmtest.Call, method string, v any) {
	cfg := c.This.Value.(*config)
	cfg.mu.Lock()
	cfg.set[method] = v
	cfg.mu.Unlock()
	e.recordSetter(c.Class.Name, method, v)
}
