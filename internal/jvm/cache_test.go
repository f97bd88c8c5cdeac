package jvm_test

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/FranciscoLopezStriderIntel/extractous/internal/jvm"
)

// TestConcurrentMethodResolution verifies N racing resolvers trigger exactly
// one VM lookup and all observe the same handle.
func TestConcurrentMethodResolution(t *testing.T) {
	vm, rt := newTestRuntime(t, jvm.Options{})
	const workers = 32

	var (
		wg      sync.WaitGroup
		start   = make(chan struct{})
		results = make([]*jvm.Method, workers)
		errs    = make([]error, workers)
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			errs[i] = rt.Do(func(env *jvm.Env) error {
				m, err := env.Method(greeterClass, "greet", greetSig)
				results[i] = m
				return err
			})
		}(i)
	}
	close(start)
	wg.Wait()

	for i := 0; i < workers; i++ {
		require.NoError(t, errs[i])
		assert.Same(t, results[0], results[i])
	}
	assert.Equal(t, 1, vm.MethodLookups(greeterClass, "greet"))

	st := vm.Stats()
	assert.Equal(t, 1, st.ClassLookups)
	assert.Equal(t, 1, st.LiveGlobalRefs, "one global per cached class")
	assert.Zero(t, st.InvalidRefs)
	assert.Equal(t, 0, vm.AttachedThreads())

	cs := rt.Cache().Stats()
	assert.Equal(t, 1, cs.Classes)
	assert.Equal(t, 1, cs.Methods)
}

// TestCacheHitsAfterPopulation verifies later lookups never reach the VM.
func TestCacheHitsAfterPopulation(t *testing.T) {
	vm, rt := newTestRuntime(t, jvm.Options{})

	for i := 0; i < 5; i++ {
		require.NoError(t, rt.Do(func(env *jvm.Env) error {
			if _, err := env.Method(greeterClass, "add", "(II)I"); err != nil {
				return err
			}
			_, err := env.StaticField(greeterClass, "DEFAULT", "Ljava/lang/String;")
			return err
		}))
	}

	st := vm.Stats()
	assert.Equal(t, 1, st.MethodLookups)
	assert.Equal(t, 1, st.FieldLookups)
	assert.Equal(t, 1, st.ClassLookups)

	cs := rt.Cache().Stats()
	assert.Equal(t, 1, cs.Fields)
	assert.Equal(t, int64(3), cs.Misses)
	assert.Equal(t, int64(9), cs.Hits)
}

// TestFailedResolutionIsNotCached verifies an error does not poison the key.
func TestFailedResolutionIsNotCached(t *testing.T) {
	vm, rt := newTestRuntime(t, jvm.Options{})

	err := rt.Do(func(env *jvm.Env) error {
		_, err := env.Method("test/Late", "ping", "()V")
		return err
	})
	var resErr *jvm.ResolutionError
	require.ErrorAs(t, err, &resErr)

	vm.DefineClass("test/Late", "").Method("ping", "()V", nil)
	require.NoError(t, rt.Do(func(env *jvm.Env) error {
		_, err := env.Method("test/Late", "ping", "()V")
		return err
	}))
}
