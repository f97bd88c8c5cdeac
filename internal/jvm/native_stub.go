//go:build !cgo || !jni

package jvm

import "errors"

var errNoNative = errors.New("built without JNI support (rebuild with CGO_ENABLED=1 -tags jni)")

// NewNativeBackend returns a backend whose Create always fails. Builds with
// the jni tag replace it with the cgo implementation.
func NewNativeBackend() Backend {
	return stubBackend{}
}

type stubBackend struct{}

func (stubBackend) Create(Options) error { return errNoNative }
func (stubBackend) Attach() (Thread, bool, error) { return nil, false, errNoNative }
func (stubBackend) Detach() error { return nil }
func (stubBackend) Destroy() error { return nil }
