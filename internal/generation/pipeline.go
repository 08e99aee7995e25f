package generation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// DefaultNoveltyRetries bounds regeneration when a result duplicates a recent one.
const DefaultNoveltyRetries = 3

// Outcome is a successful pipeline run.
type Outcome struct {
	Kind           Kind      `json:"kind"`
	Result         Result    `json:"result"`
	Model          string    `json:"model"`
	Fingerprint    string    `json:"fingerprint"`
	Duplicate      bool      `json:"duplicate"`
	NoveltyRetries int       `json:"novelty_retries"`
	Attempts       []Attempt `json:"attempts"`
}

// Pipeline is the generic structured-generation pipeline. One instance serves
// every content kind; the schema descriptor selects the contract.
type Pipeline struct {
	Composer       Composer
	Ladder         *Ladder
	NoveltyRetries int
	// Nonce supplies fresh variants for novelty retries.
	Nonce  func() int64
	Logger *zap.Logger
}

// NewPipeline assembles a pipeline over backend. Repair rounds reuse the
// ladder's invoker. observer may be nil.
func NewPipeline(cfg LadderConfig, backend Backend, noveltyRetries int, observer Observer, logger *zap.Logger) *Pipeline {
	return &Pipeline{
		Ladder: &Ladder{
			Config:   cfg,
			Invoker:  Invoker{Backend: backend},
			Observer: observer,
			Logger:   logger,
		},
		NoveltyRetries: noveltyRetries,
		Logger:         logger,
	}
}

// Deadline bounds one Generate call across every novelty round. An explicit
// OverallTimeout caps the whole request; otherwise each round gets one full
// ladder budget.
func (p *Pipeline) Deadline() time.Duration {
	c := p.Ladder.Config
	if c.OverallTimeout > 0 {
		return c.OverallTimeout
	}
	return c.Budget() * time.Duration(1+p.NoveltyRetries)
}

// Generate runs one request end to end. It returns ErrInvalidRequest for bad
// input and *DiagnosticFailure when no model produced a usable candidate.
//
// recent holds fingerprints the caller has already shown in this session; the
// request's own Avoid list is merged in.
func (p *Pipeline) Generate(ctx context.Context, req Request, recent []string) (*Outcome, error) {
	req = req.Sanitize()
	if err := req.Validate(); err != nil {
		return nil, err
	}
	schema, _ := LookupSchema(req.Kind)

	logger := p.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	nonce := p.Nonce
	if nonce == nil {
		nonce = func() int64 { return time.Now().UnixNano() }
	}

	if d := p.Deadline(); d > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d)
		defer cancel()
	}

	seen := make([]string, 0, len(recent)+len(req.Avoid)+p.NoveltyRetries)
	seen = append(seen, recent...)
	seen = append(seen, req.Avoid...)

	var (
		attempts []Attempt
		// last duplicate result, returned if a later round fails
		fallback *Outcome
	)
	for round := 0; ; round++ {
		if round > 0 {
			req = req.WithVariant(nonce())
		}
		prompt := p.Composer.Compose(schema, req)

		res, err := p.Ladder.Run(ctx, schema, prompt)
		if err != nil {
			var df *DiagnosticFailure
			if errors.As(err, &df) {
				if fallback != nil {
					logger.Info("returning duplicate after novelty retry failed",
						zap.String("kind", string(req.Kind)),
						zap.String("fingerprint", fallback.Fingerprint),
						zap.Int("retries", round),
						zap.Error(err),
					)
					fallback.NoveltyRetries = round
					fallback.Attempts = append(attempts, df.Attempts...)
					return fallback, nil
				}
				df.Attempts = append(attempts, df.Attempts...)
				return nil, df
			}
			return nil, fmt.Errorf("run ladder: %w", err)
		}
		attempts = append(attempts, res.Attempts...)

		result := Normalize(schema, res.Candidate, req)
		fp := Fingerprint(schema, result)
		dup := IsDuplicate(fp, seen)
		if !dup || round >= p.NoveltyRetries {
			if dup {
				logger.Info("returning duplicate after novelty retries exhausted",
					zap.String("kind", string(req.Kind)),
					zap.String("fingerprint", fp),
					zap.Int("retries", round),
				)
			}
			return &Outcome{
				Kind:           req.Kind,
				Result:         result,
				Model:          res.Model,
				Fingerprint:    fp,
				Duplicate:      dup,
				NoveltyRetries: round,
				Attempts:       attempts,
			}, nil
		}

		logger.Debug("regenerating",
			zap.Error(ErrDuplicateResult),
			zap.String("kind", string(req.Kind)),
			zap.String("fingerprint", fp),
			zap.Int("round", round+1),
		)
		seen = append(seen, fp)
		fallback = &Outcome{
			Kind:        req.Kind,
			Result:      result,
			Model:       res.Model,
			Fingerprint: fp,
			Duplicate:   true,
		}
	}
}
