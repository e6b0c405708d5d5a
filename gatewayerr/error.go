// Package gatewayerr provides the gateway's single error taxonomy: every
// fallible call in this module returns a plain error, and callers that need
// to branch on category use errors.As to recover a *Error and inspect its
// Kind. No panics for control flow.
package gatewayerr

import (
	"errors"
	"fmt"
)

// Kind classifies a gateway failure into the closed set of categories the
// HTTP boundary and the response state machine branch on.
type Kind string

const (
	InvalidParams        Kind = "invalid_params"
	Unauthorized         Kind = "unauthorized"
	Forbidden            Kind = "forbidden"
	NotFound             Kind = "not_found"
	Conflict             Kind = "conflict"
	NoCredits            Kind = "no_credits"
	ConcurrencyLimit     Kind = "concurrency_limit"
	ModelNotFound        Kind = "model_not_found"
	NoProviderCapacity   Kind = "no_provider_capacity"
	UpstreamTransient    Kind = "upstream_transient"
	UpstreamFatal        Kind = "upstream_fatal"
	ToolError            Kind = "tool_error"
	FatalToolError       Kind = "fatal_tool_error"
	InvalidToolArguments Kind = "invalid_tool_arguments"
	Unsupported          Kind = "unsupported"
	Internal             Kind = "internal"
)

// httpStatus is the default client-visible HTTP status per Kind, per the
// error taxonomy table.
var httpStatus = map[Kind]int{
	InvalidParams:        400,
	Unauthorized:         401,
	Forbidden:            403,
	NotFound:             404,
	Conflict:             409,
	NoCredits:            402,
	ConcurrencyLimit:     429,
	ModelNotFound:        404,
	NoProviderCapacity:   500,
	UpstreamTransient:    502,
	UpstreamFatal:        0, // original upstream status is carried separately
	ToolError:            0, // non-fatal, never surfaced as an HTTP response
	FatalToolError:       0, // surfaces as response.failed, not an HTTP status
	InvalidToolArguments: 0, // non-fatal, injected as the tool call's output
	Unsupported:          501,
	Internal:             500,
}

// retryable is the default Retryable value per Kind.
var retryable = map[Kind]bool{
	NoCredits:         true, // after top-up
	ConcurrencyLimit:  true,
	UpstreamTransient: true,
}

// Error is the concrete error type every fallible gateway call returns.
type Error struct {
	Kind    Kind
	Message string
	// HTTP is the client-visible status code. Zero means "not directly
	// surfaced as an HTTP response" (e.g. ToolError, which is injected as
	// tool output, not returned to the transport layer).
	HTTP int
	// Retryable reports whether retrying the same request may succeed
	// without modification.
	Retryable bool
	// UpstreamStatus carries the verbatim upstream HTTP status for
	// UpstreamFatal/UpstreamTransient errors; zero otherwise.
	UpstreamStatus int
	cause          error
}

// New builds an *Error of the given kind with default HTTP status and
// retryability for that kind.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message, HTTP: httpStatus[kind], Retryable: retryable[kind]}
}

// Wrap builds an *Error of the given kind wrapping cause so the original
// error chain survives errors.Is/errors.As.
func Wrap(kind Kind, cause error, message string) *Error {
	e := New(kind, message)
	e.cause = cause
	return e
}

// Errorf builds an *Error with a formatted message.
func Errorf(kind Kind, format string, args ...any) *Error {
	return New(kind, fmt.Sprintf(format, args...))
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Unwrap exposes the wrapped cause, if any, for errors.Is/errors.As.
func (e *Error) Unwrap() error { return e.cause }

// As recovers the first *Error in err's chain, if any.
func As(err error) (*Error, bool) {
	var ge *Error
	if errors.As(err, &ge) {
		return ge, true
	}
	return nil, false
}

// Is reports whether err's chain contains a *Error of the given Kind.
func Is(err error, kind Kind) bool {
	ge, ok := As(err)
	return ok && ge.Kind == kind
}
