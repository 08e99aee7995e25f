package generation

import (
	"errors"
	"fmt"
)

// Request-level errors. These are fatal to a request and never retried.
var (
	ErrInvalidRequest    = errors.New("invalid generation request")
	ErrAuthDenied        = errors.New("authentication denied")
	ErrEntitlementDenied = errors.New("entitlement inactive")
)

// ErrDuplicateResult marks a result whose fingerprint was seen recently. It is
// recovered inside the pipeline and never returned to callers.
var ErrDuplicateResult = errors.New("duplicate result")

// ErrEmptyResponse is returned by backends when the transport succeeded but the
// envelope carried no usable text.
var ErrEmptyResponse = errors.New("empty response from model")

// AttemptKind classifies a failed invoker call.
type AttemptKind string

const (
	KindTimeout       AttemptKind = "timeout"
	KindTransport     AttemptKind = "http_error"
	KindEmptyResponse AttemptKind = "empty_response"
	KindCanceled      AttemptKind = "canceled"
)

// AttemptError is the typed failure of one invoker call.
type AttemptError struct {
	Kind   AttemptKind
	Status int // set for KindTransport when the backend answered
	Err    error
}

func (e *AttemptError) Error() string {
	switch e.Kind {
	case KindTransport:
		if e.Status > 0 {
			return fmt.Sprintf("model transport error: status %d", e.Status)
		}
		return fmt.Sprintf("model transport error: %v", e.Err)
	case KindTimeout:
		return "model call timed out"
	case KindEmptyResponse:
		return "model returned an empty response"
	case KindCanceled:
		return "model call canceled"
	}
	return fmt.Sprintf("model call failed: %v", e.Err)
}

func (e *AttemptError) Unwrap() error { return e.Err }

// StatusCoder is implemented by backend errors that carry an HTTP status.
type StatusCoder interface {
	StatusCode() int
}

// ExtractKind classifies an extraction failure.
type ExtractKind string

const KindUnparseable ExtractKind = "unparseable"

// ExtractError reports that raw model text could not be turned into a candidate.
type ExtractError struct {
	Kind ExtractKind
	// Raw is the last raw text seen, which may be the repair round's output.
	Raw string
	// Parsed holds a value that parsed as JSON but had the wrong top-level shape.
	Parsed any
	// Repairs counts repair invocations made, successful or not.
	Repairs int
	// Repair is set when the repair re-invocation itself failed.
	Repair error
}

func (e *ExtractError) Error() string {
	if e.Repair != nil {
		return fmt.Sprintf("model output %s (repair failed: %v)", e.Kind, e.Repair)
	}
	return fmt.Sprintf("model output %s", e.Kind)
}

// DiagnosticFailure is the soft failure returned when every ladder attempt failed.
// It carries enough for the caller to render a partial result.
type DiagnosticFailure struct {
	LastRaw  string
	Parsed   any
	Attempts []Attempt
	// Cause is the context error when the ladder stopped early, nil on exhaustion.
	Cause error
}

func (e *DiagnosticFailure) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("generation incomplete after %d attempts: %v", len(e.Attempts), e.Cause)
	}
	return fmt.Sprintf("generation incomplete after %d attempts", len(e.Attempts))
}

func (e *DiagnosticFailure) Unwrap() error { return e.Cause }

// InvalidRequestError wraps ErrInvalidRequest with the offending field.
type InvalidRequestError struct {
	Field  string
	Reason string
}

func (e *InvalidRequestError) Error() string {
	return fmt.Sprintf("%v: %s %s", ErrInvalidRequest, e.Field, e.Reason)
}

func (e *InvalidRequestError) Unwrap() error { return ErrInvalidRequest }
