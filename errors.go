package extractous

import (
	"errors"
	"fmt"
	"strings"

	"github.com/FranciscoLopezStriderIntel/extractous/internal/jvm"
	"github.com/FranciscoLopezStriderIntel/extractous/internal/tika"
)

// ErrorKind identifies the category of an extractous error.
type ErrorKind string

const (
	ErrorKindIO      ErrorKind = "io"
	ErrorKindParse   ErrorKind = "parse"
	ErrorKindConfig  ErrorKind = "config"
	ErrorKindRuntime ErrorKind = "runtime"
)

// ExtractError is implemented by all error types returned by this package.
type ExtractError interface {
	error
	Kind() ErrorKind
}

type baseError struct {
	kind    ErrorKind
	message string
	cause   error
}

func (e *baseError) Error() string {
	return e.message
}

func (e *baseError) Kind() ErrorKind {
	return e.kind
}

func (e *baseError) Unwrap() error {
	return e.cause
}

// IOError reports an input that could not be opened or a stream that failed
// while being read.
type IOError struct {
	baseError
}

// ParseError reports that the engine rejected the document.
type ParseError struct {
	baseError
	// ExceptionClass is the binary name of the managed exception, e.g.
	// "org.apache.tika.exception.TikaException". Empty when the failure did
	// not come from the engine.
	ExceptionClass string
}

// ConfigError reports an invalid configuration value.
type ConfigError struct {
	baseError
	// Field names the rejected option, e.g. "TesseractOcrConfig.Density".
	Field string
}

// RuntimeError reports that the managed runtime is unusable: it could not be
// created, a thread could not attach, or the engine on the class path does
// not expose the expected API.
type RuntimeError struct {
	baseError
}

func makeBaseError(kind ErrorKind, message string, cause error) baseError {
	return baseError{
		kind:    kind,
		message: formatErrorMessageWithCause(message, cause),
		cause:   cause,
	}
}

func newIOError(message string, cause error) *IOError {
	return &IOError{baseError: makeBaseError(ErrorKindIO, message, cause)}
}

func newParseError(message, exceptionClass string, cause error) *ParseError {
	return &ParseError{baseError: makeBaseError(ErrorKindParse, message, cause), ExceptionClass: exceptionClass}
}

func newConfigError(field, message string) *ConfigError {
	return &ConfigError{
		baseError: makeBaseError(ErrorKindConfig, fmt.Sprintf("invalid %s: %s", field, message), nil),
		Field:     field,
	}
}

func newRuntimeError(message string, cause error) *RuntimeError {
	return &RuntimeError{baseError: makeBaseError(ErrorKindRuntime, message, cause)}
}

func formatErrorMessageWithCause(message string, cause error) string {
	msg := formatErrorMessage(message)
	if cause != nil {
		return fmt.Sprintf("%s: %v", msg, cause)
	}
	return msg
}

func formatErrorMessage(message string) string {
	trimmed := strings.TrimSpace(message)
	if trimmed == "" {
		trimmed = "unknown error"
	}
	if strings.HasPrefix(strings.ToLower(trimmed), "extractous:") {
		return trimmed
	}
	return "extractous: " + trimmed
}

// classifyBridgeError maps an error from the bridge packages onto the public
// taxonomy. Errors that already carry a kind pass through.
func classifyBridgeError(op string, err error) error {
	if err == nil {
		return nil
	}
	var extractErr ExtractError
	if errors.As(err, &extractErr) {
		return err
	}

	var (
		initErr   *jvm.RuntimeInitError
		attachErr *jvm.AttachError
		resErr    *jvm.ResolutionError
		encErr    *jvm.EncodingError
		invErr    *jvm.InvocationError
		streamErr *tika.StreamError
	)
	switch {
	case errors.As(err, &initErr), errors.As(err, &attachErr), errors.As(err, &resErr):
		return newRuntimeError(op, err)
	case errors.Is(err, tika.ErrOpenInput):
		return newIOError(op, err)
	case errors.As(err, &streamErr):
		return newIOError(op, err)
	case errors.As(err, &invErr):
		return newParseError(op, invErr.Class, err)
	case errors.As(err, &encErr):
		return newParseError(op, "", err)
	default:
		return newRuntimeError(op, err)
	}
}
