package generation

import (
	"context"
	"errors"
	"strings"
	"time"
)

// Backend performs one raw completion against a model. Implementations must
// honor ctx cancellation and must not retry on their own.
type Backend interface {
	Complete(ctx context.Context, model string, p Prompt) (string, error)
}

// BackendFunc adapts a function to Backend.
type BackendFunc func(ctx context.Context, model string, p Prompt) (string, error)

func (f BackendFunc) Complete(ctx context.Context, model string, p Prompt) (string, error) {
	return f(ctx, model, p)
}

// Invoker makes one bounded, time-limited model call.
type Invoker struct {
	Backend Backend
}

// Invoke calls model once. On timeout it returns KindTimeout and the backend's
// context is canceled before Invoke returns.
func (inv Invoker) Invoke(ctx context.Context, model string, p Prompt, timeout time.Duration) (string, error) {
	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	type reply struct {
		text string
		err  error
	}
	done := make(chan reply, 1)
	go func() {
		text, err := inv.Backend.Complete(callCtx, model, p)
		done <- reply{text, err}
	}()

	select {
	case r := <-done:
		if r.err != nil {
			return "", classify(ctx, callCtx, r.err)
		}
		if strings.TrimSpace(r.text) == "" {
			return "", &AttemptError{Kind: KindEmptyResponse, Err: ErrEmptyResponse}
		}
		return r.text, nil
	case <-callCtx.Done():
		return "", classify(ctx, callCtx, callCtx.Err())
	}
}

func classify(parent, call context.Context, err error) error {
	var ae *AttemptError
	if errors.As(err, &ae) {
		return ae
	}
	if parent.Err() != nil {
		return &AttemptError{Kind: KindCanceled, Err: parent.Err()}
	}
	if call.Err() != nil || errors.Is(err, context.DeadlineExceeded) {
		return &AttemptError{Kind: KindTimeout, Err: err}
	}
	if errors.Is(err, ErrEmptyResponse) {
		return &AttemptError{Kind: KindEmptyResponse, Err: err}
	}
	var sc StatusCoder
	if errors.As(err, &sc) {
		return &AttemptError{Kind: KindTransport, Status: sc.StatusCode(), Err: err}
	}
	return &AttemptError{Kind: KindTransport, Err: err}
}
