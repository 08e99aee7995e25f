package llm

import (
	"errors"
	"fmt"
)

// ErrUnknownProvider is returned when a model id routes to no configured backend.
var ErrUnknownProvider = errors.New("no backend configured for model")

// StatusError is an upstream API failure that carried an HTTP status.
type StatusError struct {
	Provider string
	Code     int
	Err      error
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s: status %d: %v", e.Provider, e.Code, e.Err)
}

func (e *StatusError) Unwrap() error { return e.Err }

// StatusCode satisfies generation.StatusCoder.
func (e *StatusError) StatusCode() int { return e.Code }
