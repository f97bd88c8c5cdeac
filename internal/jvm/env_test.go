package jvm_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/FranciscoLopezStriderIntel/extractous/internal/jvm"
)

const (
	greeterClass = "test/Greeter"
	greetSig     = "(Ljava/lang/String;)Ljava/lang/String;"
)

func newGreeter(t *testing.T, env *jvm.Env, name string) jvm.Ref {
	t.Helper()
	ctor, err := env.Method(greeterClass, "<init>", "(Ljava/lang/String;)V")
	require.NoError(t, err)
	arg, err := env.StringArg(name)
	require.NoError(t, err)
	obj, err := env.NewObject(ctor, arg)
	require.NoError(t, err)
	return obj
}

// TestCallObjectMethod verifies a full resolve, call and convert cycle.
func TestCallObjectMethod(t *testing.T) {
	vm, rt := newTestRuntime(t, jvm.Options{})

	var got string
	require.NoError(t, rt.Do(func(env *jvm.Env) error {
		g := newGreeter(t, env, "hello")
		greet, err := env.Method(greeterClass, "greet", greetSig)
		if err != nil {
			return err
		}
		arg, err := env.StringArg("world")
		if err != nil {
			return err
		}
		res, err := env.CallObject(g, greet, arg)
		if err != nil {
			return err
		}
		got, err = env.GoString(res)
		return err
	}))

	assert.Equal(t, "hello, world", got)
	st := vm.Stats()
	assert.Zero(t, st.InvalidRefs)
	assert.Zero(t, st.CallsWhilePending)
	assert.Zero(t, st.LiveLocalRefs, "locals die with the guard frame")
}

// TestCallPrimitiveAndStatic verifies int returns, static calls and static
// fields.
func TestCallPrimitiveAndStatic(t *testing.T) {
	_, rt := newTestRuntime(t, jvm.Options{})

	require.NoError(t, rt.Do(func(env *jvm.Env) error {
		create, err := env.StaticMethod(greeterClass, "create", "(Ljava/lang/String;)Ltest/Greeter;")
		require.NoError(t, err)
		arg, err := env.StringArg("hey")
		require.NoError(t, err)
		g, err := env.CallStaticObject(create, arg)
		require.NoError(t, err)

		add, err := env.Method(greeterClass, "add", "(II)I")
		require.NoError(t, err)
		sum, err := env.CallInt(g, add, jvm.Int(40), jvm.Int(2))
		require.NoError(t, err)
		assert.Equal(t, int32(42), sum)

		f, err := env.StaticField(greeterClass, "DEFAULT", "Ljava/lang/String;")
		require.NoError(t, err)
		v, err := env.GetStaticField(f)
		require.NoError(t, err)
		s, err := env.GoString(env.Local(v))
		require.NoError(t, err)
		assert.Equal(t, "hello", s)

		cls, err := env.Class(greeterClass)
		require.NoError(t, err)
		ok, err := env.IsInstanceOf(g, cls)
		require.NoError(t, err)
		assert.True(t, ok)
		return nil
	}))
}

// TestInvocationErrorClearsException verifies the exception choke point.
func TestInvocationErrorClearsException(t *testing.T) {
	vm, rt := newTestRuntime(t, jvm.Options{})

	require.NoError(t, rt.Do(func(env *jvm.Env) error {
		g := newGreeter(t, env, "hello")
		fail, err := env.Method(greeterClass, "fail", "()V")
		require.NoError(t, err)

		err = env.CallVoid(g, fail)
		var invErr *jvm.InvocationError
		require.ErrorAs(t, err, &invErr)
		assert.Equal(t, "java.io.IOException", invErr.Class)
		assert.Equal(t, "boom", invErr.Message)
		assert.Equal(t, "test/Greeter.fail", invErr.Member)
		assert.True(t, invErr.IsClass("java.io.IOException"))

		greet, err := env.Method(greeterClass, "greet", greetSig)
		require.NoError(t, err)
		arg, err := env.StringArg("again")
		require.NoError(t, err)
		_, err = env.CallObject(g, greet, arg)
		assert.NoError(t, err, "the env is usable after an exception")

		silent, err := env.Method(greeterClass, "failSilently", "()V")
		require.NoError(t, err)
		err = env.CallVoid(g, silent)
		require.ErrorAs(t, err, &invErr)
		assert.Equal(t, "java.lang.IllegalStateException", invErr.Class)
		assert.Empty(t, invErr.Message)
		return nil
	}))

	assert.Zero(t, vm.Stats().CallsWhilePending)
}

// TestInvocationErrorCauses verifies the cause chain is captured outermost
// first and matched by HasCause.
func TestInvocationErrorCauses(t *testing.T) {
	vm, rt := newTestRuntime(t, jvm.Options{})

	require.NoError(t, rt.Do(func(env *jvm.Env) error {
		g := newGreeter(t, env, "hello")
		fail, err := env.Method(greeterClass, "failWrapped", "()V")
		require.NoError(t, err)

		err = env.CallVoid(g, fail)
		var invErr *jvm.InvocationError
		require.ErrorAs(t, err, &invErr)
		assert.Equal(t, "java.lang.RuntimeException", invErr.Class)
		assert.Equal(t, "parse failed", invErr.Message)
		assert.Equal(t, []string{"java.io.IOException", "java.io.EOFException"}, invErr.Causes)

		assert.True(t, invErr.HasCause("java.io.EOFException"))
		assert.True(t, invErr.HasCause("java.lang.RuntimeException"))
		assert.False(t, invErr.IsClass("java.io.EOFException"))
		assert.False(t, invErr.HasCause("java.lang.IllegalStateException"))
		return nil
	}))

	st := vm.Stats()
	assert.Zero(t, st.CallsWhilePending)
	assert.Zero(t, st.InvalidRefs)
	assert.Zero(t, st.DoubleDeletes)
}

// TestResolutionErrors verifies missing classes and members are reported
// without leaving an exception behind.
func TestResolutionErrors(t *testing.T) {
	vm, rt := newTestRuntime(t, jvm.Options{})

	require.NoError(t, rt.Do(func(env *jvm.Env) error {
		_, err := env.Class("org/apache/tika/NoSuchThing")
		var resErr *jvm.ResolutionError
		require.ErrorAs(t, err, &resErr)
		assert.Equal(t, "org/apache/tika/NoSuchThing", resErr.Class)

		_, err = env.Method(greeterClass, "wave", "()V")
		require.ErrorAs(t, err, &resErr)
		assert.Equal(t, "wave", resErr.Member)
		assert.Contains(t, err.Error(), "test/Greeter.wave()V")

		_, err = env.Method(greeterClass, "greet", "(Ljava/lang/String;")
		require.ErrorAs(t, err, &resErr)

		_, err = env.Field(greeterClass, "missing", "I")
		require.ErrorAs(t, err, &resErr)

		_, err = env.Method(greeterClass, "add", "(II)I")
		assert.NoError(t, err)
		return nil
	}))

	assert.Zero(t, vm.Stats().CallsWhilePending)
}

// TestArgumentChecking verifies calls are validated before crossing over.
func TestArgumentChecking(t *testing.T) {
	_, rt := newTestRuntime(t, jvm.Options{})

	require.NoError(t, rt.Do(func(env *jvm.Env) error {
		g := newGreeter(t, env, "hello")
		add, err := env.Method(greeterClass, "add", "(II)I")
		require.NoError(t, err)

		_, err = env.CallInt(g, add, jvm.Int(1))
		assert.ErrorContains(t, err, "takes 2 arguments")

		_, err = env.CallInt(g, add, jvm.Int(1), jvm.Long(2))
		assert.ErrorContains(t, err, "argument 1 is long")

		_, err = env.CallObject(g, add, jvm.Int(1), jvm.Int(2))
		assert.ErrorContains(t, err, "returns int")

		_, err = env.CallInt(jvm.Ref{}, add, jvm.Int(1), jvm.Int(2))
		assert.ErrorIs(t, err, jvm.ErrNullRef)
		return nil
	}))
}

// TestStaleLocalRef verifies a local reference cannot outlive its frame.
func TestStaleLocalRef(t *testing.T) {
	vm, rt := newTestRuntime(t, jvm.Options{})

	require.NoError(t, rt.Do(func(env *jvm.Env) error {
		var leaked jvm.Ref
		require.NoError(t, env.Frame(func() error {
			var err error
			leaked, err = env.NewString("short lived")
			return err
		}))

		_, err := env.GoString(leaked)
		assert.ErrorIs(t, err, jvm.ErrStaleRef)

		greet, err := env.Method(greeterClass, "greet", greetSig)
		require.NoError(t, err)
		g := newGreeter(t, env, "hello")
		_, err = env.CallObject(g, greet, jvm.Object(leaked))
		assert.ErrorIs(t, err, jvm.ErrStaleRef)
		return nil
	}))

	assert.Zero(t, vm.Stats().InvalidRefs, "stale refs never reach the VM")
}

// TestRefFromAnotherEnv verifies references are bound to the Env that made
// them.
func TestRefFromAnotherEnv(t *testing.T) {
	_, rt := newTestRuntime(t, jvm.Options{})

	outer, err := rt.Attach()
	require.NoError(t, err)
	defer outer.Release()
	s, err := outer.Env().NewString("mine")
	require.NoError(t, err)

	inner, err := rt.Attach()
	require.NoError(t, err)
	_, err = inner.Env().GoString(s)
	assert.ErrorIs(t, err, jvm.ErrStaleRef)
	inner.Release()

	got, err := outer.Env().GoString(s)
	require.NoError(t, err)
	assert.Equal(t, "mine", got)
}

// TestGlobalRefRelease verifies promotion and single release.
func TestGlobalRefRelease(t *testing.T) {
	vm, rt := newTestRuntime(t, jvm.Options{})

	var global *jvm.GlobalRef
	require.NoError(t, rt.Do(func(env *jvm.Env) error {
		s, err := env.NewString("kept")
		if err != nil {
			return err
		}
		global, err = env.Promote(s)
		return err
	}))
	before := vm.Stats().LiveGlobalRefs

	require.NoError(t, rt.Do(func(env *jvm.Env) error {
		s, err := env.GoString(global)
		require.NoError(t, err)
		assert.Equal(t, "kept", s)

		global.Release(env)
		global.Release(env)
		assert.True(t, global.Released())

		_, err = env.GoString(global)
		assert.ErrorIs(t, err, jvm.ErrReleased)
		return nil
	}))

	st := vm.Stats()
	assert.Equal(t, before-1, st.LiveGlobalRefs)
	assert.Zero(t, st.DoubleDeletes)
}

// TestByteArrays verifies byte buffers cross in both directions.
func TestByteArrays(t *testing.T) {
	_, rt := newTestRuntime(t, jvm.Options{})
	data := []byte("%PDF-1.4 binary \x00\x01\x02\xff")

	require.NoError(t, rt.Do(func(env *jvm.Env) error {
		arr, err := env.NewByteArray(data)
		require.NoError(t, err)
		n, err := env.ArrayLength(arr)
		require.NoError(t, err)
		assert.Equal(t, len(data), n)

		out := make([]byte, 4)
		require.NoError(t, env.ReadByteArray(arr, 0, out))
		assert.Equal(t, []byte("%PDF"), out)

		empty, err := env.NewByteArray(nil)
		require.NoError(t, err)
		n, err = env.ArrayLength(empty)
		require.NoError(t, err)
		assert.Zero(t, n)

		err = env.ReadByteArray(arr, len(data)-1, make([]byte, 8))
		var invErr *jvm.InvocationError
		assert.ErrorAs(t, err, &invErr)
		return nil
	}))
}

// TestEncodingLimit verifies oversized strings and arrays are rejected
// before reaching the VM.
func TestEncodingLimit(t *testing.T) {
	_, rt := newTestRuntime(t, jvm.Options{MaxArrayLength: 8})

	require.NoError(t, rt.Do(func(env *jvm.Env) error {
		_, err := env.NewString("12345678")
		require.NoError(t, err)

		_, err = env.NewString("123456789")
		var encErr *jvm.EncodingError
		require.ErrorAs(t, err, &encErr)
		assert.Equal(t, 9, encErr.Length)
		assert.Equal(t, 8, encErr.Limit)

		_, err = env.NewString("😀😀😀😀😀")
		require.ErrorAs(t, err, &encErr)
		assert.Equal(t, 10, encErr.Length)

		_, err = env.NewByteArray(make([]byte, 9))
		assert.ErrorAs(t, err, &encErr)
		return nil
	}))
}

// TestStringRoundTrip verifies strings survive the trip into the VM and back.
func TestStringRoundTrip(t *testing.T) {
	_, rt := newTestRuntime(t, jvm.Options{})
	cases := []string{
		"",
		"Hello",
		"héllo wörld",
		"日本語のテキスト",
		"emoji 😀 and 𝄞",
		"\ufeffleading bom",
		"tabs\tand\nnewlines",
	}

	require.NoError(t, rt.Do(func(env *jvm.Env) error {
		for _, want := range cases {
			ref, err := env.NewString(want)
			require.NoError(t, err)
			got, err := env.GoString(ref)
			require.NoError(t, err)
			assert.Equal(t, want, got)
		}

		got, err := env.GoString(jvm.Ref{})
		require.NoError(t, err)
		assert.Empty(t, got, "managed null reads as empty")
		return nil
	}))
}

// TestStringArray verifies String[] conversion.
func TestStringArray(t *testing.T) {
	vm, rt := newTestRuntime(t, jvm.Options{})
	vm.DefineClass("test/Names", "").
		StaticField("ALL", "[Ljava/lang/String;", vm.NewStringArray([]string{"a", "b", "c"}))

	require.NoError(t, rt.Do(func(env *jvm.Env) error {
		f, err := env.StaticField("test/Names", "ALL", "[Ljava/lang/String;")
		require.NoError(t, err)
		v, err := env.GetStaticField(f)
		require.NoError(t, err)
		names, err := env.StringArray(env.Local(v))
		require.NoError(t, err)
		assert.Equal(t, []string{"a", "b", "c"}, names)
		return nil
	}))
}
