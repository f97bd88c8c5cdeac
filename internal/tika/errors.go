package tika

import (
	"errors"
	"fmt"
)

// ErrOpenInput matches every OpenError with errors.Is.
var ErrOpenInput = errors.New("tika: cannot open input")

// OpenError reports that the input source could not be turned into a
// managed stream: a missing file, a bad URL, an unreachable host.
type OpenError struct {
	Input string
	Cause error
}

func (e *OpenError) Error() string {
	return fmt.Sprintf("tika: cannot open %s: %v", e.Input, e.Cause)
}

func (e *OpenError) Unwrap() error { return e.Cause }

func (e *OpenError) Is(target error) bool { return target == ErrOpenInput }

// StreamErrorKind distinguishes stream failures.
type StreamErrorKind int

const (
	// StreamIO: the managed read or close threw.
	StreamIO StreamErrorKind = iota + 1
	// StreamClosed: the stream was used after Close.
	StreamClosed
)

func (k StreamErrorKind) String() string {
	switch k {
	case StreamIO:
		return "io"
	case StreamClosed:
		return "closed"
	default:
		return fmt.Sprintf("stream(%d)", int(k))
	}
}

// StreamError is returned by Stream operations.
type StreamError struct {
	Kind  StreamErrorKind
	Cause error
}

func (e *StreamError) Error() string {
	if e.Kind == StreamClosed {
		return "tika: stream is closed"
	}
	return fmt.Sprintf("tika: stream %s error: %v", e.Kind, e.Cause)
}

func (e *StreamError) Unwrap() error { return e.Cause }

var errClosed = &StreamError{Kind: StreamClosed}
