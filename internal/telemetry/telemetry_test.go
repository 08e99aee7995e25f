package telemetry

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/mualim/api/internal/generation"
	"github.com/mualim/api/internal/models"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

type memorySink struct {
	mu     sync.Mutex
	events []string
	meta   []map[string]any
	err    error
}

func (s *memorySink) Record(_ context.Context, event string, metadata map[string]any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
	s.meta = append(s.meta, metadata)
	return s.err
}

func TestRecorder_DeliversToEverySink(t *testing.T) {
	defer goleak.VerifyNone(t)

	a := &memorySink{}
	b := &memorySink{err: errors.New("sink down")}
	r := NewRecorder(nil, 8, time.Second, a, b)

	meta := map[string]any{"kind": "strategy"}
	r.Emit(EventGenerationSucceeded, meta)
	r.Emit(EventGenerationDuplicate, nil)
	r.Close()

	assert.Equal(t, []string{EventGenerationSucceeded, EventGenerationDuplicate}, a.events)
	assert.Equal(t, a.events, b.events)
	assert.Contains(t, a.meta[0], "ts")
	assert.NotContains(t, meta, "ts", "caller's map is not modified")
}

func TestRecorder_EmitAfterCloseIsDropped(t *testing.T) {
	defer goleak.VerifyNone(t)

	s := &memorySink{}
	r := NewRecorder(nil, 1, time.Second, s)
	r.Close()
	r.Close()
	r.Emit(EventUserRegistered, nil)
	assert.Empty(t, s.events)
}

func TestMetrics_ObserveAttempt(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)

	m.ObserveAttempt(generation.KindStrategy, generation.Attempt{Model: "a", Outcome: "http_error", Status: 503, Elapsed: time.Second})
	m.ObserveAttempt(generation.KindStrategy, generation.Attempt{Model: "a", Outcome: generation.OutcomeSuccess})
	m.ObserveGeneration(generation.KindStrategy, ResultSuccess, 1)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.attempts.WithLabelValues("a", "strategy", "http_error", "503")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.attempts.WithLabelValues("a", "strategy", "success", "")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.generations.WithLabelValues("strategy", ResultSuccess)))
	assert.Equal(t, 1, testutil.CollectAndCount(m.noveltyRetries))
}

type fakeExec struct {
	sql  []string
	args [][]any
}

func (f *fakeExec) Exec(_ context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	f.sql = append(f.sql, sql)
	f.args = append(f.args, args)
	return pgconn.NewCommandTag("INSERT 0 1"), nil
}

func TestPostgresSink_Record(t *testing.T) {
	db := &fakeExec{}
	require.NoError(t, NewPostgresSink(db).Record(context.Background(), "x", map[string]any{"n": 1}))
	require.Len(t, db.args, 1)
	assert.Equal(t, "x", db.args[0][0])
	assert.JSONEq(t, `{"n":1}`, string(db.args[0][1].([]byte)))
}

func TestGenerationLogs_Insert(t *testing.T) {
	db := &fakeExec{}
	require.NoError(t, NewGenerationLogs(db).Insert(context.Background(), models.GenerationLog{Kind: "strategy", Outcome: "success"}))
	require.Len(t, db.args, 1)
	assert.NotEqual(t, "00000000-0000-0000-0000-000000000000", db.args[0][0].(interface{ String() string }).String())
	assert.Equal(t, json.RawMessage("[]"), json.RawMessage(db.args[0][7].([]byte)))
}

func TestInitTracer_NoEndpoint(t *testing.T) {
	shutdown, err := InitTracer(context.Background(), "mualim-api", "")
	require.NoError(t, err)
	assert.NoError(t, shutdown(context.Background()))
}
