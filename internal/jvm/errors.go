package jvm

import (
	"errors"
	"fmt"
	"slices"
)

// ErrStaleRef is returned when a local reference is used after the frame that
// produced it was popped, or from an Env other than its own.
var ErrStaleRef = errors.New("jvm: local reference used outside its frame")

// ErrNullRef is returned when a call needs a receiver but got the managed null.
var ErrNullRef = errors.New("jvm: null reference")

// RuntimeInitError reports that the VM could not be created. It is fatal for
// the process: the Runtime memoizes it and never retries.
type RuntimeInitError struct {
	Library string
	Cause   error
}

func (e *RuntimeInitError) Error() string {
	if e.Library != "" {
		return fmt.Sprintf("jvm: cannot initialize runtime from %s: %v", e.Library, e.Cause)
	}
	return fmt.Sprintf("jvm: cannot initialize runtime: %v", e.Cause)
}

func (e *RuntimeInitError) Unwrap() error { return e.Cause }

// AttachError reports that the calling thread could not be bound to the VM
// after the retry.
type AttachError struct {
	Attempts int
	Cause    error
}

func (e *AttachError) Error() string {
	return fmt.Sprintf("jvm: attach current thread failed after %d attempts: %v", e.Attempts, e.Cause)
}

func (e *AttachError) Unwrap() error { return e.Cause }

// ResolutionError reports a class or member that does not exist in the loaded
// engine. It means the bridge and the bundled engine disagree on the API.
type ResolutionError struct {
	Class     string
	Member    string
	Signature string
	Cause     error
}

func (e *ResolutionError) Error() string {
	target := e.Class
	if e.Member != "" {
		target = e.Class + "." + e.Member + e.Signature
	}
	if e.Cause != nil {
		return fmt.Sprintf("jvm: cannot resolve %s: %v", target, e.Cause)
	}
	return fmt.Sprintf("jvm: cannot resolve %s", target)
}

func (e *ResolutionError) Unwrap() error { return e.Cause }

// EncodingError reports a string or buffer that cannot be represented on the
// managed side.
type EncodingError struct {
	Length int
	Limit  int
	Reason string
}

func (e *EncodingError) Error() string {
	if e.Reason != "" {
		return "jvm: encoding: " + e.Reason
	}
	return fmt.Sprintf("jvm: encoding: length %d exceeds managed limit %d", e.Length, e.Limit)
}

// InvocationError carries a managed exception that was pending after a call.
// The exception has already been cleared when this error exists.
type InvocationError struct {
	// Member names the call site, e.g. "org/apache/tika/parser/AutoDetectParser.parse".
	Member string
	// Class is the binary name of the thrown exception, e.g. "java.io.IOException".
	Class   string
	Message string
	// Causes lists the binary class names of the getCause chain, outermost
	// first.
	Causes []string
}

func (e *InvocationError) Error() string {
	msg := e.Class
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.Member != "" {
		return fmt.Sprintf("jvm: %s threw %s", e.Member, msg)
	}
	return "jvm: managed exception " + msg
}

// IsClass reports whether the managed exception is exactly one of the given
// binary class names.
func (e *InvocationError) IsClass(names ...string) bool {
	for _, n := range names {
		if e.Class == n {
			return true
		}
	}
	return false
}

// HasCause reports whether the exception or any exception in its cause chain
// is one of the given binary class names.
func (e *InvocationError) HasCause(names ...string) bool {
	if e.IsClass(names...) {
		return true
	}
	for _, c := range e.Causes {
		if slices.Contains(names, c) {
			return true
		}
	}
	return false
}
