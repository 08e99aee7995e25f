package generation

import (
	"context"
	"sync"
	"time"
)

type reply struct {
	text string
	err  error
}

// scriptedBackend replays replies in order, repeating the last one when the
// script runs out.
type scriptedBackend struct {
	mu      sync.Mutex
	replies []reply
	calls   []call
}

type call struct {
	model  string
	prompt Prompt
}

func script(replies ...reply) *scriptedBackend {
	return &scriptedBackend{replies: replies}
}

func (b *scriptedBackend) Complete(ctx context.Context, model string, p Prompt) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.calls = append(b.calls, call{model: model, prompt: p})
	i := len(b.calls) - 1
	if i >= len(b.replies) {
		i = len(b.replies) - 1
	}
	r := b.replies[i]
	return r.text, r.err
}

func (b *scriptedBackend) callCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.calls)
}

func (b *scriptedBackend) models() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]string, len(b.calls))
	for i, c := range b.calls {
		out[i] = c.model
	}
	return out
}

type statusErr int

func (e statusErr) Error() string   { return "backend status" }
func (e statusErr) StatusCode() int { return int(e) }

// sleepRecorder records backoff sleeps instead of waiting.
type sleepRecorder struct {
	mu     sync.Mutex
	sleeps []time.Duration
}

func (r *sleepRecorder) sleep(ctx context.Context, d time.Duration) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sleeps = append(r.sleeps, d)
	return ctx.Err()
}

func testLadder(b Backend, models ...string) (*Ladder, *sleepRecorder) {
	rec := &sleepRecorder{}
	return &Ladder{
		Config: LadderConfig{
			Models:              models,
			MaxAttemptsPerModel: 2,
			BackoffBase:         100 * time.Millisecond,
			AttemptTimeout:      time.Second,
			RepairRounds:        1,
		},
		Invoker: Invoker{Backend: b},
		Sleep:   rec.sleep,
	}, rec
}

const validStrategy = `{"strategy_name":"Think Pair Share","summary":"s","goals":["g1","g2"],` +
	`"steps":["a","b"],"materials":[],"assessment":"exit ticket","differentiation":[],` +
	`"bloom_level":"apply","duration_minutes":40}`
