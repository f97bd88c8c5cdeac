package jvm_test

import (
	"errors"
	"log/slog"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/FranciscoLopezStriderIntel/extractous/internal/jvm"
	"github.com/FranciscoLopezStriderIntel/extractous/internal/jvm/jvmtest"
)

type countingBackend struct {
	jvm.Backend
	creates atomic.Int32
}

func (b *countingBackend) Create(opts jvm.Options) error {
	b.creates.Add(1)
	return b.Backend.Create(opts)
}

// gatedBackend parks the next Attach until release is closed.
type gatedBackend struct {
	jvm.Backend
	armed   atomic.Bool
	entered chan struct{}
	release chan struct{}
}

func (b *gatedBackend) Attach() (jvm.Thread, bool, error) {
	if b.armed.CompareAndSwap(true, false) {
		close(b.entered)
		<-b.release
	}
	return b.Backend.Attach()
}

func newTestRuntime(t *testing.T, opts jvm.Options) (*jvmtest.VM, *jvm.Runtime) {
	t.Helper()
	vm := jvmtest.New()
	defineGreeter(vm)
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.DiscardHandler)
	}
	return vm, jvm.New(vm, opts)
}

func defineGreeter(vm *jvmtest.VM) {
	vm.DefineClass("test/Greeter", "").
		Method("<init>", "(Ljava/lang/String;)V", func(c *jvmtest.Call) (jvm.Value, error) {
			c.This.Value = c.String(0)
			return jvmtest.Void, nil
		}).
		Method("greet", "(Ljava/lang/String;)Ljava/lang/String;", func(c *jvmtest.Call) (jvm.Value, error) {
			return c.Str(c.This.Value.(string) + ", " + c.String(0)), nil
		}).
		Method("add", "(II)I", func(c *jvmtest.Call) (jvm.Value, error) {
			return jvmtest.Int(c.Int(0) + c.Int(1)), nil
		}).
		Method("fail", "()V", func(c *jvmtest.Call) (jvm.Value, error) {
			return jvm.Value{}, jvmtest.Throw("java/io/IOException", "boom")
		}).
		Method("failWrapped", "()V", func(c *jvmtest.Call) (jvm.Value, error) {
			root := &jvmtest.Exception{Class: "java/io/EOFException", Message: "truncated"}
			return jvm.Value{}, root.Wrap("java/io/IOException", "read failed").Wrap("java/lang/RuntimeException", "parse failed")
		}).
		Method("failSilently", "()V", func(c *jvmtest.Call) (jvm.Value, error) {
			return jvm.Value{}, &jvmtest.Exception{Class: "java/lang/IllegalStateException"}
		}).
		StaticMethod("create", "(Ljava/lang/String;)Ltest/Greeter;", func(c *jvmtest.Call) (jvm.Value, error) {
			return c.Ref(&jvmtest.Object{Class: c.Class, Value: c.String(0)}), nil
		}).
		StaticField("DEFAULT", "Ljava/lang/String;", vm.NewString("hello"))
}

// TestRuntimeLazyInit verifies the VM is created by the first attach only.
func TestRuntimeLazyInit(t *testing.T) {
	vm, rt := newTestRuntime(t, jvm.Options{})
	assert.Equal(t, jvm.StateUninitialized, rt.State())
	assert.Equal(t, 0, vm.Stats().Creates)

	require.NoError(t, rt.Do(func(env *jvm.Env) error { return nil }))
	require.NoError(t, rt.Do(func(env *jvm.Env) error { return nil }))

	assert.Equal(t, jvm.StateAttached, rt.State())
	assert.Equal(t, 1, vm.Stats().Creates)
	assert.Equal(t, 0, vm.AttachedThreads(), "guards must detach the threads they attached")
}

// TestRuntimeInitErrorIsMemoized verifies a failed creation is never retried.
func TestRuntimeInitErrorIsMemoized(t *testing.T) {
	vm := jvmtest.New()
	vm.FailCreate(errors.New("libjvm.so: cannot open shared object file"))
	backend := &countingBackend{Backend: vm}
	rt := jvm.New(backend, jvm.Options{Library: "/nowhere/libjvm.so", Logger: slog.New(slog.DiscardHandler)})

	_, err1 := rt.Attach()
	_, err2 := rt.Attach()

	var initErr *jvm.RuntimeInitError
	require.ErrorAs(t, err1, &initErr)
	assert.Equal(t, "/nowhere/libjvm.so", initErr.Library)
	assert.Contains(t, initErr.Error(), "cannot open shared object")
	assert.Same(t, err1, err2)
	assert.Equal(t, int32(1), backend.creates.Load())
	assert.Equal(t, jvm.StateUninitialized, rt.State())
}

// TestAttachRetriedOnce verifies one failed attach is absorbed by the retry.
func TestAttachRetriedOnce(t *testing.T) {
	vm, rt := newTestRuntime(t, jvm.Options{})
	require.NoError(t, rt.Do(func(*jvm.Env) error { return nil }))

	vm.FailAttach(1)
	require.NoError(t, rt.Do(func(*jvm.Env) error { return nil }))
}

// TestAttachErrorAfterRetry verifies the second failure is surfaced.
func TestAttachErrorAfterRetry(t *testing.T) {
	vm, rt := newTestRuntime(t, jvm.Options{})
	require.NoError(t, rt.Do(func(*jvm.Env) error { return nil }))

	vm.FailAttach(2)
	_, err := rt.Attach()

	var attachErr *jvm.AttachError
	require.ErrorAs(t, err, &attachErr)
	assert.Equal(t, 2, attachErr.Attempts)
	assert.Equal(t, 0, vm.AttachedThreads())

	require.NoError(t, rt.Do(func(*jvm.Env) error { return nil }), "later attaches are unaffected")
}

// TestNestedAttach verifies only the guard that attached detaches.
func TestNestedAttach(t *testing.T) {
	vm, rt := newTestRuntime(t, jvm.Options{})

	outer, err := rt.Attach()
	require.NoError(t, err)
	assert.True(t, outer.Attached())

	inner, err := rt.Attach()
	require.NoError(t, err)
	assert.False(t, inner.Attached())

	inner.Release()
	assert.Equal(t, 1, vm.AttachedThreads())

	outer.Release()
	assert.Equal(t, 0, vm.AttachedThreads())
}

// TestGuardReleaseIsIdempotent verifies Release can be deferred and called.
func TestGuardReleaseIsIdempotent(t *testing.T) {
	vm, rt := newTestRuntime(t, jvm.Options{})

	g, err := rt.Attach()
	require.NoError(t, err)
	env := g.Env()
	g.Release()
	g.Release()

	st := vm.Stats()
	assert.Equal(t, 0, st.FrameUnderflows)
	assert.Equal(t, 1, st.Detaches)

	_, err = env.NewString("late")
	assert.ErrorIs(t, err, jvm.ErrEnvClosed)
}

// TestShutdown verifies teardown releases cached classes and is final.
func TestShutdown(t *testing.T) {
	vm, rt := newTestRuntime(t, jvm.Options{})
	require.NoError(t, rt.Do(func(env *jvm.Env) error {
		_, err := env.Method("test/Greeter", "greet", "(Ljava/lang/String;)Ljava/lang/String;")
		return err
	}))
	assert.Equal(t, 1, vm.Stats().LiveGlobalRefs)

	require.NoError(t, rt.Shutdown())

	assert.True(t, vm.Destroyed())
	assert.Equal(t, jvm.StateDetached, rt.State())
	st := vm.Stats()
	assert.Equal(t, 0, st.LiveGlobalRefs)
	assert.Equal(t, 0, st.DoubleDeletes)
	cs := rt.Cache().Stats()
	assert.Zero(t, cs.Classes)
	assert.Zero(t, cs.Methods)

	_, err := rt.Attach()
	var initErr *jvm.RuntimeInitError
	assert.ErrorAs(t, err, &initErr)
}

// TestShutdownWithActiveGuard verifies teardown refuses to pull the VM away
// from an attached thread.
func TestShutdownWithActiveGuard(t *testing.T) {
	vm, rt := newTestRuntime(t, jvm.Options{})
	g, err := rt.Attach()
	require.NoError(t, err)
	defer g.Release()

	assert.Error(t, rt.Shutdown())
	assert.False(t, vm.Destroyed())
}

// TestShutdownDuringAttach verifies an attach that has passed initialization
// but not yet bound its thread already holds the VM open.
func TestShutdownDuringAttach(t *testing.T) {
	vm := jvmtest.New()
	b := &gatedBackend{Backend: vm, entered: make(chan struct{}), release: make(chan struct{})}
	rt := jvm.New(b, jvm.Options{Logger: slog.New(slog.DiscardHandler)})
	b.armed.Store(true)

	done := make(chan error, 1)
	go func() {
		done <- rt.Do(func(*jvm.Env) error {
			if rt.State() != jvm.StateAttached {
				return errors.New("runtime shut down under an attached thread")
			}
			return nil
		})
	}()

	<-b.entered
	assert.ErrorContains(t, rt.Shutdown(), "active guards")
	assert.False(t, vm.Destroyed())

	close(b.release)
	require.NoError(t, <-done)
	require.NoError(t, rt.Shutdown())
	assert.True(t, vm.Destroyed())
}

// TestShutdownAfterFailedAttach verifies a failed attach gives back its
// slot so teardown is not blocked forever.
func TestShutdownAfterFailedAttach(t *testing.T) {
	vm, rt := newTestRuntime(t, jvm.Options{})
	require.NoError(t, rt.Do(func(*jvm.Env) error { return nil }))

	vm.FailAttach(2)
	_, err := rt.Attach()
	require.Error(t, err)

	require.NoError(t, rt.Shutdown())
	assert.True(t, vm.Destroyed())
}

// TestShutdownBeforeInit verifies an unused runtime can be shut down.
func TestShutdownBeforeInit(t *testing.T) {
	vm, rt := newTestRuntime(t, jvm.Options{})
	require.NoError(t, rt.Shutdown())
	assert.Equal(t, jvm.StateDetached, rt.State())
	assert.Equal(t, 0, vm.Stats().Creates)
}

// TestSetDefault verifies the process runtime can be swapped and restored.
func TestSetDefault(t *testing.T) {
	_, rt := newTestRuntime(t, jvm.Options{})

	restore := jvm.SetDefault(rt)
	assert.Same(t, rt, jvm.Default())
	restore()
	assert.NotSame(t, rt, jvm.Default())
}

// TestOptionsFromEnv verifies the environment mapping.
func TestOptionsFromEnv(t *testing.T) {
	t.Setenv("EXTRACTOUS_JVM_LIB", "")
	t.Setenv("JAVA_HOME", "/opt/jdk")
	t.Setenv("EXTRACTOUS_CLASSPATH", "/opt/tika/tika-app.jar")
	t.Setenv("EXTRACTOUS_JVM_OPTS", "-Xmx512m  -Djava.awt.headless=true")
	t.Setenv("EXTRACTOUS_JVM_LOCAL_FRAME", "128")

	opts := jvm.OptionsFromEnv()
	assert.Contains(t, opts.Library, "/opt/jdk/lib/server/")
	assert.Equal(t, 128, opts.LocalFrameCapacity)
	assert.Equal(t, []string{
		"-Djava.class.path=/opt/tika/tika-app.jar",
		"-Xmx512m",
		"-Djava.awt.headless=true",
	}, opts.VMArgs())

	t.Setenv("EXTRACTOUS_JVM_LIB", "/custom/libtika_native.so")
	t.Setenv("EXTRACTOUS_JVM_LOCAL_FRAME", "lots")
	opts = jvm.OptionsFromEnv()
	assert.Equal(t, "/custom/libtika_native.so", opts.Library)
	assert.Equal(t, jvm.DefaultLocalFrameCapacity, opts.LocalFrameCapacity)
}
