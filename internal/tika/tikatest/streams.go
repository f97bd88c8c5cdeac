package tikatest

import (
	"bytes"
	"errors"
	"io"
	"net"
	"net/http"
	"net/url"
	"os"
	"sync"

	"github.com/FranciscoLopezStriderIntel/extractous/internal/jvm"
	"github.com/FranciscoLopezStriderIntel/extractous/internal/jvm/jvmtest"
)

// HTTPClient fetches URL inputs.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

var defaultClient HTTPClient = http.DefaultClient

// SetHTTPClient replaces the client used by URL.openStream, e.g. with the
// client of an httptest.Server.
func (e *Engine) SetHTTPClient(c HTTPClient) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.client = c
}

func (e *Engine) httpClient() HTTPClient {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.client
}

// source backs every fake InputStream. Wrappers such as TikaInputStream
// share the source of the stream they wrap, so closing either closes both.
type source struct {
	eng *Engine
	raw bool

	mu     sync.Mutex
	r      io.Reader
	c      io.Closer
	closed bool
}

func (e *Engine) newSource(r io.Reader, c io.Closer) *source {
	e.sourceOpened()
	return &source{eng: e, raw: true, r: r, c: c}
}

func (s *source) read(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return 0, jvmtest.Throw(excIO, "Stream closed")
	}
	if s.raw && s.eng.readsFail() {
		return 0, jvmtest.Throw(excIO, "simulated read failure")
	}
	// InputStream.read blocks until it can return at least one byte.
	for {
		n, err := s.r.Read(p)
		if n > 0 {
			return n, nil
		}
		if errors.Is(err, io.EOF) {
			return -1, nil
		}
		if err != nil {
			var exc *jvmtest.Exception
			if errors.As(err, &exc) {
				return 0, exc
			}
			return 0, jvmtest.Throw(excIO, "%v", err)
		}
	}
}

func (s *source) readAll() ([]byte, error) {
	var out bytes.Buffer
	buf := make([]byte, 4096)
	for {
		n, err := s.read(buf)
		if err != nil {
			return nil, err
		}
		if n < 0 {
			return out.Bytes(), nil
		}
		out.Write(buf[:n])
	}
}

func (s *source) close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	if s.c != nil {
		_ = s.c.Close()
	}
	if s.raw {
		s.eng.sourceClosed()
	}
}

func sourceOf(o *jvmtest.Object) (*source, error) {
	if o == nil {
		return nil, jvmtest.Throw("java/lang/NullPointerException", "stream")
	}
	s, ok := o.Value.(*source)
	if !ok {
		return nil, jvmtest.Throw(excIO, "%s is not readable", o.Class.Name)
	}
	return s, nil
}

func (e *Engine) defineStreams() {
	vm := e.vm

	vm.Class(classInputStream).
		Method("read", "([BII)I", func(c *jvmtest.Call) (jvm.Value, error) {
			src, err := sourceOf(c.This)
			if err != nil {
				return jvm.Value{}, err
			}
			buf := c.Bytes(0)
			off, n := int(c.Int(1)), int(c.Int(2))
			if off < 0 || n < 0 || off+n > len(buf) {
				return jvm.Value{}, jvmtest.Throw("java/lang/IndexOutOfBoundsException", "off=%d len=%d length=%d", off, n, len(buf))
			}
			if n == 0 {
				return jvmtest.Int(0), nil
			}
			got, err := src.read(buf[off : off+n])
			if err != nil {
				return jvm.Value{}, err
			}
			return jvmtest.Int(int32(got)), nil
		}).
		Method("close", "()V", func(c *jvmtest.Call) (jvm.Value, error) {
			if src, ok := c.This.Value.(*source); ok {
				src.close()
			}
			return jvmtest.Void, nil
		})

	vm.DefineClass(classFileInputStream, classInputStream).
		Method("<init>", "(Ljava/lang/String;)V", func(c *jvmtest.Call) (jvm.Value, error) {
			path := c.String(0)
			f, err := os.Open(path)
			if err != nil {
				return jvm.Value{}, jvmtest.Throw(excFileNotFound, "%s (No such file or directory)", path)
			}
			if fi, err := f.Stat(); err == nil && fi.IsDir() {
				f.Close()
				return jvm.Value{}, jvmtest.Throw(excFileNotFound, "%s (Is a directory)", path)
			}
			c.This.Value = e.newSource(f, f)
			return jvmtest.Void, nil
		})

	vm.DefineClass(classByteArrayStream, classInputStream).
		Method("<init>", "([B)V", func(c *jvmtest.Call) (jvm.Value, error) {
			if c.Arg(0) == nil {
				return jvm.Value{}, jvmtest.Throw("java/lang/NullPointerException", "buf")
			}
			data := append([]byte(nil), c.Bytes(0)...)
			c.This.Value = e.newSource(bytes.NewReader(data), nil)
			return jvmtest.Void, nil
		})

	vm.DefineClass(classTikaInputStream, classInputStream).
		StaticMethod("get", "(Ljava/io/InputStream;)Lorg/apache/tika/io/TikaInputStream;", func(c *jvmtest.Call) (jvm.Value, error) {
			src, err := sourceOf(c.Arg(0))
			if err != nil {
				return jvm.Value{}, err
			}
			return c.Ref(&jvmtest.Object{Class: c.Class, Value: src}), nil
		})

	vm.DefineClass(classURL, "").
		Method("<init>", "(Ljava/lang/String;)V", func(c *jvmtest.Call) (jvm.Value, error) {
			raw := c.String(0)
			u, err := url.Parse(raw)
			if err != nil || u.Scheme == "" {
				return jvm.Value{}, jvmtest.Throw(excMalformedURL, "no protocol: %s", raw)
			}
			switch u.Scheme {
			case "http", "https", "file":
			default:
				return jvm.Value{}, jvmtest.Throw(excMalformedURL, "unknown protocol: %s", u.Scheme)
			}
			c.This.Value = u
			return jvmtest.Void, nil
		}).
		Method("openStream", "()Ljava/io/InputStream;", func(c *jvmtest.Call) (jvm.Value, error) {
			u := c.This.Value.(*url.URL)
			src, err := e.openURL(u)
			if err != nil {
				return jvm.Value{}, err
			}
			return c.Ref(e.vm.NewObject(classInputStream, src)), nil
		})
}

func (e *Engine) openURL(u *url.URL) (*source, error) {
	if u.Scheme == "file" {
		f, err := os.Open(u.Path)
		if err != nil {
			return nil, jvmtest.Throw(excFileNotFound, "%s (No such file or directory)", u.Path)
		}
		return e.newSource(f, f), nil
	}

	req, err := http.NewRequest(http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, jvmtest.Throw(excMalformedURL, "%v", err)
	}
	resp, err := e.httpClient().Do(req)
	if err != nil {
		var dnsErr *net.DNSError
		if errors.As(err, &dnsErr) {
			return nil, jvmtest.Throw(excUnknownHost, "%s", u.Hostname())
		}
		return nil, jvmtest.Throw(excIO, "%v", err)
	}
	switch {
	case resp.StatusCode == http.StatusNotFound:
		resp.Body.Close()
		return nil, jvmtest.Throw(excFileNotFound, "%s", u)
	case resp.StatusCode >= 400:
		resp.Body.Close()
		return nil, jvmtest.Throw(excIO, "Server returned HTTP response code: %d for URL: %s", resp.StatusCode, u)
	}
	return e.newSource(resp.Body, resp.Body), nil
}

// errReader replays a deferred failure on the first read.
type errReader struct{ err error }

func (r errReader) Read([]byte) (int, error) { return 0, r.err }
