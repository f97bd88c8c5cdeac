package tika

import (
	"io"
	"log/slog"
	"runtime"
	"sync"

	"github.com/FranciscoLopezStriderIntel/extractous/internal/jvm"
)

// Stream adapts a managed java.io.InputStream into a Go reader. It holds the
// stream and a managed read buffer as global references, so it can be read
// from any goroutine; each read attaches the calling thread for its duration.
//
// Close releases both references exactly once. Reads after Close fail with a
// StreamError of kind StreamClosed. A Stream that becomes unreachable without
// being closed is closed by a cleanup after the next collection.
type Stream struct {
	h       *streamHandles
	cleanup runtime.Cleanup

	mu      sync.Mutex
	bufSize int
	eof     bool
	closed  bool
}

// streamHandles is the part of a Stream its cleanup can see. It must not
// point back at the Stream.
type streamHandles struct {
	rt     *jvm.Runtime
	log    *slog.Logger
	stream *jvm.GlobalRef
	buf    *jvm.GlobalRef
	once   sync.Once
	err    error
}

// release closes the managed stream and deletes both references. Only the
// first call reaches the VM.
func (h *streamHandles) release() error {
	h.once.Do(func() {
		h.err = h.rt.Do(func(env *jvm.Env) error {
			defer h.buf.Release(env)
			defer h.stream.Release(env)
			closeM, err := env.Method(ClassInputStream, "close", sigVoid)
			if err != nil {
				return err
			}
			return env.CallVoid(h.stream, closeM)
		})
	})
	return h.err
}

func releaseAbandoned(h *streamHandles) {
	if err := h.release(); err != nil {
		h.log.Warn("releasing unclosed stream failed", "error", err)
		return
	}
	h.log.Debug("released unclosed stream")
}

// OpenStream wraps obj, which must be a java.io.InputStream live in env.
func OpenStream(rt *jvm.Runtime, env *jvm.Env, obj jvm.Referent, bufSize int, log *slog.Logger) (*Stream, error) {
	if bufSize <= 0 {
		bufSize = DefaultBufferSize
	}
	if log == nil {
		log = slog.Default()
	}
	stream, err := env.Promote(obj)
	if err != nil {
		return nil, err
	}
	arr, err := env.AllocByteArray(bufSize)
	if err != nil {
		stream.Release(env)
		return nil, err
	}
	buf, err := env.Promote(arr)
	env.DeleteLocal(arr)
	if err != nil {
		stream.Release(env)
		return nil, err
	}
	h := &streamHandles{rt: rt, log: log, stream: stream, buf: buf}
	s := &Stream{h: h, bufSize: bufSize}
	s.cleanup = runtime.AddCleanup(s, releaseAbandoned, h)
	return s, nil
}

// ReadChunk fills at most len(p) bytes. It returns 0 and a nil error at end
// of stream.
func (s *Stream) ReadChunk(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return 0, errClosed
	}
	if s.eof || len(p) == 0 {
		return 0, nil
	}
	want := len(p)
	if want > s.bufSize {
		want = s.bufSize
	}

	var n int
	h := s.h
	err := h.rt.Do(func(env *jvm.Env) error {
		read, err := env.Method(ClassInputStream, "read", sigRead)
		if err != nil {
			return err
		}
		got, err := env.CallInt(h.stream, read, jvm.Object(h.buf), jvm.Int(0), jvm.Int(int32(want)))
		if err != nil {
			return err
		}
		// InputStream.read blocks until at least one byte is available, so
		// anything below one is the end.
		if got <= 0 {
			s.eof = true
			return nil
		}
		n = int(got)
		return env.ReadByteArray(h.buf, 0, p[:n])
	})
	// The cleanup must not close the stream under a read in flight.
	runtime.KeepAlive(s)
	if err != nil {
		return 0, &StreamError{Kind: StreamIO, Cause: err}
	}
	return n, nil
}

// Read implements io.Reader.
func (s *Stream) Read(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	n, err := s.ReadChunk(p)
	if err != nil {
		return n, err
	}
	if n == 0 {
		return 0, io.EOF
	}
	return n, nil
}

// Close closes the managed stream and releases the references. Calling it
// again is a no-op.
func (s *Stream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	s.cleanup.Stop()

	if err := s.h.release(); err != nil {
		s.h.log.Warn("closing managed stream failed", "error", err)
		return &StreamError{Kind: StreamIO, Cause: err}
	}
	return nil
}

// Closed reports whether Close ran.
func (s *Stream) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}
