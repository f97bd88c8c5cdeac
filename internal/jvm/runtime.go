package jvm

import (
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"sync"
	"sync/atomic"
)

// State is the lifecycle position of a Runtime.
type State int32

const (
	// StateUninitialized: no VM has been created yet.
	StateUninitialized State = iota
	// StateAttached: the VM is live and threads may attach to it.
	StateAttached
	// StateDetached: the VM was shut down and cannot be used again.
	StateDetached
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateAttached:
		return "attached"
	case StateDetached:
		return "detached"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

var errShutdown = errors.New("runtime has been shut down")

// Runtime owns one VM and hands out per-thread access to it.
//
// The VM is created lazily by the first Attach. A creation failure is
// memoized and returned to every later caller. Shutdown is explicit and
// final: most VMs cannot be created twice in one process.
type Runtime struct {
	backend Backend
	opts    Options
	log     *slog.Logger
	cache   *HandleCache

	mu      sync.Mutex
	state   State
	initErr error

	active atomic.Int32
}

// New returns a Runtime over the given backend. The VM is not created until
// the first Attach.
func New(backend Backend, opts Options) *Runtime {
	opts = opts.withDefaults()
	return &Runtime{
		backend: backend,
		opts:    opts,
		log:     opts.Logger.With("component", "jvm"),
		cache:   newHandleCache(),
	}
}

var (
	defaultMu      sync.Mutex
	defaultRuntime *Runtime
)

// Default returns the process-wide Runtime backed by the native JNI backend
// and configured from the environment (see OptionsFromEnv).
func Default() *Runtime {
	defaultMu.Lock()
	defer defaultMu.Unlock()
	if defaultRuntime == nil {
		defaultRuntime = New(NewNativeBackend(), OptionsFromEnv())
	}
	return defaultRuntime
}

// SetDefault makes rt the process-wide Runtime until restore is called. It
// lets tests drive code that only reaches the VM through Default.
func SetDefault(rt *Runtime) (restore func()) {
	defaultMu.Lock()
	defer defaultMu.Unlock()
	prev := defaultRuntime
	defaultRuntime = rt
	return func() {
		defaultMu.Lock()
		defer defaultMu.Unlock()
		defaultRuntime = prev
	}
}

// State reports the current lifecycle state.
func (r *Runtime) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// Options returns the effective options.
func (r *Runtime) Options() Options { return r.opts }

// Cache exposes the resolved handle cache.
func (r *Runtime) Cache() *HandleCache { return r.cache }

// ensureInit creates the VM on first use and reserves an active guard slot,
// both under r.mu so Shutdown cannot slip in before the attach. The caller
// must give the slot back with r.active.Add(-1) if the attach fails. It must
// run on a locked OS thread because creation attaches the calling thread.
// created reports whether this call created the VM.
func (r *Runtime) ensureInit() (created bool, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	switch r.state {
	case StateAttached:
		r.active.Add(1)
		return false, nil
	case StateDetached:
		return false, &RuntimeInitError{Library: r.opts.Library, Cause: errShutdown}
	}
	if r.initErr != nil {
		return false, r.initErr
	}

	r.log.Info("creating managed runtime", "library", r.opts.Library, "class_path", r.opts.ClassPath)
	if err := r.backend.Create(r.opts); err != nil {
		r.initErr = &RuntimeInitError{Library: r.opts.Library, Cause: err}
		r.log.Error("managed runtime creation failed", "error", err)
		return false, r.initErr
	}
	r.state = StateAttached
	r.active.Add(1)
	return true, nil
}

// Attach binds the calling goroutine's OS thread to the VM, creating the VM
// first if needed. The goroutine stays locked to its thread until the guard is
// released. Nested Attach calls on the same goroutine are cheap and only the
// outermost guard that performed the attach detaches.
func (r *Runtime) Attach() (*Guard, error) {
	runtime.LockOSThread()

	created, err := r.ensureInit()
	if err != nil {
		runtime.UnlockOSThread()
		return nil, err
	}

	t, attached, err := r.backend.Attach()
	if err != nil {
		r.log.Warn("attach failed, retrying", "error", err)
		t, attached, err = r.backend.Attach()
		if err != nil {
			if created {
				_ = r.backend.Detach()
			}
			r.active.Add(-1)
			runtime.UnlockOSThread()
			return nil, &AttachError{Attempts: 2, Cause: err}
		}
	}

	g := &Guard{rt: r, detach: attached || created}
	g.env = newEnv(r, t)
	if err := g.env.PushFrame(r.opts.LocalFrameCapacity); err != nil {
		g.env = nil
		if g.detach {
			_ = r.backend.Detach()
		}
		r.active.Add(-1)
		runtime.UnlockOSThread()
		return nil, err
	}
	if g.detach {
		r.log.Debug("thread attached")
	}
	return g, nil
}

// Do runs fn with an attached Env and releases everything afterwards.
func (r *Runtime) Do(fn func(env *Env) error) error {
	g, err := r.Attach()
	if err != nil {
		return err
	}
	defer g.Release()
	return fn(g.Env())
}

// Shutdown destroys the VM and drops cached handles. It fails while guards
// are outstanding. After Shutdown every Attach returns RuntimeInitError.
func (r *Runtime) Shutdown() error {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	r.mu.Lock()
	defer r.mu.Unlock()

	if n := r.active.Load(); n > 0 {
		return fmt.Errorf("jvm: shutdown with %d active guards", n)
	}

	if r.state != StateAttached {
		r.state = StateDetached
		return nil
	}

	if t, attached, err := r.backend.Attach(); err == nil {
		r.cache.reset(t)
		if attached {
			_ = r.backend.Detach()
		}
	} else {
		r.log.Warn("cannot attach to release cached handles", "error", err)
	}

	r.state = StateDetached
	if err := r.backend.Destroy(); err != nil {
		return fmt.Errorf("jvm: destroy runtime: %w", err)
	}
	r.log.Info("managed runtime shut down")
	return nil
}

// Guard keeps the calling thread attached. Release it on the same goroutine
// that called Attach, normally with defer.
type Guard struct {
	rt       *Runtime
	env      *Env
	detach   bool
	released bool
}

// Env returns the thread context. It is valid until Release.
func (g *Guard) Env() *Env { return g.env }

// Attached reports whether this guard performed the thread attach.
func (g *Guard) Attached() bool { return g.detach }

// Release pops the guard's local frame, detaches the thread if this guard
// attached it and unlocks the OS thread. Calling it twice is a no-op.
func (g *Guard) Release() {
	if g == nil || g.released {
		return
	}
	g.released = true
	g.env.closeAll()
	if g.detach {
		if err := g.rt.backend.Detach(); err != nil {
			g.rt.log.Warn("detach failed", "error", err)
		} else {
			g.rt.log.Debug("thread detached")
		}
	}
	g.rt.active.Add(-1)
	runtime.UnlockOSThread()
}
