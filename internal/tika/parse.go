package tika

import (
	"errors"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"
	"unicode/utf8"

	"github.com/FranciscoLopezStriderIntel/extractous/internal/jvm"
)

// Result is the outcome of ParseToString.
type Result struct {
	Content  string
	Metadata Metadata
	// Truncated reports that the content sink hit its write limit.
	Truncated bool
}

// Parser drives AutoDetectParser through a Runtime. It is stateless apart
// from counters and safe for concurrent use; every call builds its own
// managed object graph on the calling thread.
type Parser struct {
	rt  *jvm.Runtime
	log *slog.Logger

	invocations atomic.Int64
}

// NewParser returns a Parser over rt.
func NewParser(rt *jvm.Runtime, log *slog.Logger) *Parser {
	if log == nil {
		log = slog.Default()
	}
	return &Parser{rt: rt, log: log.With("component", "tika")}
}

// Invocations counts calls that reached the engine.
func (p *Parser) Invocations() int64 { return p.invocations.Load() }

// Runtime returns the runtime the parser calls into.
func (p *Parser) Runtime() *jvm.Runtime { return p.rt }

// ParseToString parses in and returns its text and metadata.
//
// A MaxLength of zero returns an empty result without touching the engine.
// The content sink enforces the limit; the result is only cut again, on a
// rune boundary, if the engine returned more than MaxLength runes.
func (p *Parser) ParseToString(in Input, s Settings) (Result, error) {
	if err := in.Validate(); err != nil {
		return Result{}, err
	}
	if s.MaxLength == 0 {
		return Result{Metadata: Metadata{}}, nil
	}
	p.invocations.Add(1)
	start := time.Now()

	var res Result
	err := p.rt.Do(func(env *jvm.Env) error {
		g, err := p.prepare(env, in, s)
		if err != nil {
			return err
		}
		defer p.closeInput(env, g.stream)

		handler, err := newContentHandler(env, s)
		if err != nil {
			return err
		}
		parse, err := env.Method(ClassAutoDetectParser, "parse", sigParse)
		if err != nil {
			return err
		}
		err = env.CallVoid(g.parser, parse, jvm.Object(g.stream), jvm.Object(handler), jvm.Object(g.metadata), jvm.Object(g.context))
		if err != nil {
			if !IsWriteLimitReached(err) {
				return err
			}
			res.Truncated = true
		}

		toString, err := env.Method(ClassObject, "toString", sigToString)
		if err != nil {
			return err
		}
		text, err := env.CallObject(handler, toString)
		if err != nil {
			return err
		}
		if res.Content, err = env.GoString(text); err != nil {
			return err
		}
		res.Metadata, err = harvestMetadata(env, g.metadata)
		return err
	})
	if err != nil {
		p.log.Debug("parse failed", "input", in.String(), "error", err)
		return Result{}, err
	}

	if s.MaxLength > 0 {
		var cut bool
		res.Content, cut = truncateRunes(res.Content, s.MaxLength)
		res.Truncated = res.Truncated || cut
	}
	p.log.Debug("parse finished",
		"input", in.String(),
		"chars", utf8.RuneCountInString(res.Content),
		"truncated", res.Truncated,
		"duration", time.Since(start))
	return res, nil
}

// ParseToStream starts a background parse inside the engine and returns its
// output as a byte stream in s.Charset. Metadata is collected when the
// stream is opened; formats that only report metadata while parsing may
// return a partial set.
func (p *Parser) ParseToStream(in Input, s Settings) (*Stream, Metadata, error) {
	if err := in.Validate(); err != nil {
		return nil, nil, err
	}
	p.invocations.Add(1)

	var (
		st *Stream
		md Metadata
	)
	err := p.rt.Do(func(env *jvm.Env) error {
		g, err := p.prepare(env, in, s)
		if err != nil {
			return err
		}

		readerCtor, err := env.Method(ClassParsingReader, "<init>", sigParsingReader)
		if err != nil {
			p.closeInput(env, g.stream)
			return err
		}
		// ParsingReader owns the input stream from here on and closes it when
		// the background parse ends.
		reader, err := env.NewObject(readerCtor, jvm.Object(g.parser), jvm.Object(g.stream), jvm.Object(g.metadata), jvm.Object(g.context))
		if err != nil {
			p.closeInput(env, g.stream)
			return err
		}

		st, md, err = p.openReaderStream(env, reader, g.metadata, s)
		if err != nil {
			p.closeObject(env, ClassReader, reader)
		}
		return err
	})
	if err != nil {
		p.log.Debug("opening parse stream failed", "input", in.String(), "error", err)
		return nil, nil, err
	}
	return st, md, nil
}

// openReaderStream encodes the reader's characters with ReaderInputStream and
// wraps the result.
func (p *Parser) openReaderStream(env *jvm.Env, reader, metadata jvm.Ref, s Settings) (*Stream, Metadata, error) {
	forName, err := env.StaticMethod(ClassCharset, "forName", sigCharsetFor)
	if err != nil {
		return nil, nil, err
	}
	name, err := env.StringArg(s.charset())
	if err != nil {
		return nil, nil, err
	}
	charset, err := env.CallStaticObject(forName, name)
	if err != nil {
		return nil, nil, err
	}
	ctor, err := env.Method(ClassReaderInputStream, "<init>", sigReaderStream)
	if err != nil {
		return nil, nil, err
	}
	ris, err := env.NewObject(ctor, jvm.Object(reader), jvm.Object(charset))
	if err != nil {
		return nil, nil, err
	}
	md, err := harvestMetadata(env, metadata)
	if err != nil {
		return nil, nil, err
	}
	st, err := OpenStream(p.rt, env, ris, s.bufferSize(), p.log)
	if err != nil {
		return nil, nil, err
	}
	return st, md, nil
}

// graph is the per-call managed object graph.
type graph struct {
	parser   jvm.Ref
	context  jvm.Ref
	metadata jvm.Ref
	stream   jvm.Ref
}

func (p *Parser) prepare(env *jvm.Env, in Input, s Settings) (*graph, error) {
	ctor, err := env.Method(ClassAutoDetectParser, "<init>", sigVoid)
	if err != nil {
		return nil, err
	}
	g := &graph{}
	if g.parser, err = env.NewObject(ctor); err != nil {
		return nil, err
	}
	if g.context, err = newParseContext(env, g.parser, s); err != nil {
		return nil, err
	}
	if g.metadata, err = newMetadata(env, in); err != nil {
		return nil, err
	}
	if g.stream, err = openInput(env, in); err != nil {
		return nil, err
	}
	return g, nil
}

func (p *Parser) closeInput(env *jvm.Env, stream jvm.Ref) {
	p.closeObject(env, ClassInputStream, stream)
}

func (p *Parser) closeObject(env *jvm.Env, class string, obj jvm.Ref) {
	closeM, err := env.Method(class, "close", sigVoid)
	if err == nil {
		err = env.CallVoid(obj, closeM)
	}
	if err != nil {
		p.log.Warn("closing managed resource failed", "class", class, "error", err)
	}
}

// openInput produces a TikaInputStream for in. Managed exceptions raised
// while opening become OpenError; resolution and encoding failures pass
// through unchanged.
func openInput(env *jvm.Env, in Input) (jvm.Ref, error) {
	raw, err := rawInput(env, in)
	if err != nil {
		return jvm.Ref{}, asOpenError(in, err)
	}
	get, err := env.StaticMethod(ClassTikaInputStream, "get", sigTikaStreamGet)
	if err != nil {
		return jvm.Ref{}, err
	}
	tis, err := env.CallStaticObject(get, jvm.Object(raw))
	if err != nil {
		if closeM, cerr := env.Method(ClassInputStream, "close", sigVoid); cerr == nil {
			_ = env.CallVoid(raw, closeM)
		}
		return jvm.Ref{}, asOpenError(in, err)
	}
	return tis, nil
}

func rawInput(env *jvm.Env, in Input) (jvm.Ref, error) {
	switch in.Kind {
	case KindFile:
		ctor, err := env.Method(ClassFileInputStream, "<init>", sigString)
		if err != nil {
			return jvm.Ref{}, err
		}
		path, err := env.StringArg(in.Path)
		if err != nil {
			return jvm.Ref{}, err
		}
		return env.NewObject(ctor, path)

	case KindURL:
		ctor, err := env.Method(ClassURL, "<init>", sigString)
		if err != nil {
			return jvm.Ref{}, err
		}
		u, err := env.StringArg(in.URL)
		if err != nil {
			return jvm.Ref{}, err
		}
		urlObj, err := env.NewObject(ctor, u)
		if err != nil {
			return jvm.Ref{}, err
		}
		open, err := env.Method(ClassURL, "openStream", sigOpenStream)
		if err != nil {
			return jvm.Ref{}, err
		}
		return env.CallObject(urlObj, open)

	case KindBytes:
		arr, err := env.NewByteArray(in.Data)
		if err != nil {
			return jvm.Ref{}, err
		}
		ctor, err := env.Method(ClassByteArrayInputStream, "<init>", sigBytes)
		if err != nil {
			return jvm.Ref{}, err
		}
		return env.NewObject(ctor, jvm.Object(arr))

	default:
		return jvm.Ref{}, in.Validate()
	}
}

func asOpenError(in Input, err error) error {
	var invErr *jvm.InvocationError
	if errors.As(err, &invErr) {
		return &OpenError{Input: in.String(), Cause: err}
	}
	return err
}

// newContentHandler builds the content sink: plain text through
// BodyContentHandler or XHTML through WriteOutContentHandler.
func newContentHandler(env *jvm.Env, s Settings) (jvm.Ref, error) {
	limit := jvm.Int(s.writeLimit())
	if !s.XML {
		ctor, err := env.Method(ClassBodyContentHandler, "<init>", sigInt)
		if err != nil {
			return jvm.Ref{}, err
		}
		return env.NewObject(ctor, limit)
	}

	xmlCtor, err := env.Method(ClassToXMLContentHandler, "<init>", sigVoid)
	if err != nil {
		return jvm.Ref{}, err
	}
	xml, err := env.NewObject(xmlCtor)
	if err != nil {
		return jvm.Ref{}, err
	}
	ctor, err := env.Method(ClassWriteOutContentHandler, "<init>", sigWriteOut)
	if err != nil {
		return jvm.Ref{}, err
	}
	return env.NewObject(ctor, jvm.Object(xml), limit)
}

// IsWriteLimitReached reports whether err is the content sink signalling
// that its limit was hit, directly or wrapped by a parser. The text up to the
// limit is still available.
func IsWriteLimitReached(err error) bool {
	var invErr *jvm.InvocationError
	if !errors.As(err, &invErr) {
		return false
	}
	return invErr.HasCause(ExcWriteLimitReached) ||
		strings.Contains(invErr.Message, "limit has been reached")
}

// truncateRunes cuts s to at most n runes.
func truncateRunes(s string, n int) (string, bool) {
	if len(s) <= n {
		return s, false
	}
	i := 0
	for pos := range s {
		if i == n {
			return s[:pos], true
		}
		i++
	}
	return s, false
}
