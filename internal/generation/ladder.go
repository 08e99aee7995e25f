package generation

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"
)

// Outcome values recorded on an Attempt.
const (
	OutcomeSuccess   = "success"
	OutcomeMalformed = "malformed_output"
)

// Attempt is one ladder attempt, kept for diagnostics for the life of a request.
type Attempt struct {
	Model     string        `json:"model"`
	Index     int           `json:"index"`
	Elapsed   time.Duration `json:"-"`
	ElapsedMS int64         `json:"elapsed_ms"`
	Outcome   string        `json:"outcome"`
	Status    int           `json:"status,omitempty"`
	Repairs   int           `json:"repairs,omitempty"`
	Raw       string        `json:"-"`
}

// Observer receives every finished attempt. Implementations must not block.
type Observer interface {
	ObserveAttempt(kind Kind, a Attempt)
}

// LadderConfig configures the fallback ladder.
type LadderConfig struct {
	Models              []string
	MaxAttemptsPerModel int
	BackoffBase         time.Duration
	AttemptTimeout      time.Duration
	// OverallTimeout caps the whole ladder. Zero means the sum of every
	// attempt budget and backoff sleep.
	OverallTimeout time.Duration
	RepairRounds   int
}

// Budget returns the effective outer deadline for c.
func (c LadderConfig) Budget() time.Duration {
	if c.OverallTimeout > 0 {
		return c.OverallTimeout
	}
	n := c.MaxAttemptsPerModel
	perModel := time.Duration(n) * c.AttemptTimeout * time.Duration(1+c.RepairRounds)
	// backoff sleeps are base*1 + ... + base*(n-1)
	perModel += c.BackoffBase * time.Duration(n*(n-1)/2)
	return perModel * time.Duration(len(c.Models))
}

// SleepFunc waits for d or until ctx ends.
type SleepFunc func(ctx context.Context, d time.Duration) error

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// linearBackOff yields base*1, base*2, ... and restarts on Reset.
type linearBackOff struct {
	base time.Duration
	n    int
}

func (b *linearBackOff) NextBackOff() time.Duration {
	b.n++
	return b.base * time.Duration(b.n)
}

func (b *linearBackOff) Reset() { b.n = 0 }

// LadderResult is a successful ladder run.
type LadderResult struct {
	Candidate Candidate
	Model     string
	Attempts  []Attempt
}

// Ladder drives the invoker across models in order with bounded retries.
type Ladder struct {
	Config    LadderConfig
	Invoker   Invoker
	Extractor Extractor
	Sleep     SleepFunc
	Observer  Observer
	Logger    *zap.Logger
}

// Run tries models strictly in configured order. The first attempt yielding a
// candidate wins; exhaustion or the outer deadline yields a *DiagnosticFailure.
func (l *Ladder) Run(ctx context.Context, s Schema, p Prompt) (*LadderResult, error) {
	logger := l.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	sleep := l.Sleep
	if sleep == nil {
		sleep = sleepContext
	}
	if budget := l.Config.Budget(); budget > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, budget)
		defer cancel()
	}

	tracer := otel.Tracer("generation")
	extractor := l.Extractor
	extractor.Invoker = l.Invoker
	extractor.Timeout = l.Config.AttemptTimeout
	extractor.RepairRounds = l.Config.RepairRounds

	fail := &DiagnosticFailure{}

	for _, model := range l.Config.Models {
		bo := l.modelBackOff(ctx)
		for i := 1; ; i++ {
			if err := ctx.Err(); err != nil {
				fail.Cause = err
				return nil, fail
			}

			attemptCtx, span := tracer.Start(ctx, "generation.attempt")
			span.SetAttributes(
				attribute.String("model", model),
				attribute.Int("attempt", i),
				attribute.String("kind", string(s.Kind)),
			)
			start := time.Now()
			att := Attempt{Model: model, Index: i}

			raw, err := l.Invoker.Invoke(attemptCtx, model, p, l.Config.AttemptTimeout)
			var ext *Extraction
			if err == nil {
				att.Raw = raw
				ext, err = extractor.Extract(attemptCtx, raw, p, model)
			}
			att.Elapsed = time.Since(start)
			att.ElapsedMS = att.Elapsed.Milliseconds()

			if err == nil {
				att.Outcome = OutcomeSuccess
				att.Repairs = ext.Repairs
				att.Raw = ext.Raw
				span.End()
				l.record(s, fail, att)
				logger.Debug("model attempt succeeded",
					zap.String("model", model),
					zap.Int("attempt", i),
					zap.String("stage", ext.Stage),
					zap.Int("repairs", ext.Repairs),
				)
				return &LadderResult{Candidate: ext.Candidate, Model: model, Attempts: fail.Attempts}, nil
			}

			l.describeFailure(&att, fail, err)
			span.RecordError(err)
			span.SetStatus(codes.Error, att.Outcome)
			span.End()
			l.record(s, fail, att)
			logger.Warn("model attempt failed",
				zap.String("model", model),
				zap.Int("attempt", i),
				zap.String("outcome", att.Outcome),
				zap.Duration("elapsed", att.Elapsed),
				zap.Error(err),
			)

			if att.Outcome == string(KindCanceled) {
				fail.Cause = ctx.Err()
				if fail.Cause == nil {
					fail.Cause = err
				}
				return nil, fail
			}
			wait := bo.NextBackOff()
			if wait == backoff.Stop {
				if err := ctx.Err(); err != nil {
					fail.Cause = err
					return nil, fail
				}
				break
			}
			if err := sleep(ctx, wait); err != nil {
				fail.Cause = err
				return nil, fail
			}
		}
	}
	return nil, fail
}

// modelBackOff is the retry policy for one model: MaxAttemptsPerModel-1
// linear waits, then Stop. It also stops once ctx ends.
func (l *Ladder) modelBackOff(ctx context.Context) backoff.BackOff {
	retries := 0
	if n := l.Config.MaxAttemptsPerModel; n > 1 {
		retries = n - 1
	}
	return backoff.WithContext(backoff.WithMaxRetries(&linearBackOff{base: l.Config.BackoffBase}, uint64(retries)), ctx)
}

func (l *Ladder) describeFailure(att *Attempt, fail *DiagnosticFailure, err error) {
	var ae *AttemptError
	var ee *ExtractError
	switch {
	case errors.As(err, &ee):
		att.Outcome = OutcomeMalformed
		att.Raw = ee.Raw
		att.Repairs = ee.Repairs
		if ee.Parsed != nil {
			fail.Parsed = ee.Parsed
		}
	case errors.As(err, &ae):
		att.Outcome = string(ae.Kind)
		att.Status = ae.Status
	default:
		att.Outcome = string(KindTransport)
	}
	if att.Raw != "" {
		fail.LastRaw = att.Raw
	}
}

func (l *Ladder) record(s Schema, fail *DiagnosticFailure, a Attempt) {
	fail.Attempts = append(fail.Attempts, a)
	if l.Observer != nil {
		l.Observer.ObserveAttempt(s.Kind, a)
	}
}
