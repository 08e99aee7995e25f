// Package telemetry carries the service's fire-and-forget side channels:
// analytics sinks, Prometheus metrics and tracing.
package telemetry

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Event names emitted by the service.
const (
	EventGenerationSucceeded  = "generation_succeeded"
	EventGenerationIncomplete = "generation_incomplete"
	EventGenerationDuplicate  = "generation_duplicate"
	EventUserRegistered       = "user_registered"
)

// Sink persists or forwards one analytics event.
type Sink interface {
	Record(ctx context.Context, event string, metadata map[string]any) error
}

type record struct {
	event    string
	metadata map[string]any
	at       time.Time
}

// Recorder fans events out to sinks on a background goroutine. Emit never
// blocks the caller; events are dropped when the buffer is full.
type Recorder struct {
	sinks   []Sink
	queue   chan record
	timeout time.Duration
	logger  *zap.Logger

	wg        sync.WaitGroup
	closeOnce sync.Once
	mu        sync.RWMutex
	closed    bool
}

// NewRecorder starts the delivery goroutine. Call Close to drain it.
func NewRecorder(logger *zap.Logger, buffer int, timeout time.Duration, sinks ...Sink) *Recorder {
	if logger == nil {
		logger = zap.NewNop()
	}
	if buffer <= 0 {
		buffer = 256
	}
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	r := &Recorder{
		sinks:   sinks,
		queue:   make(chan record, buffer),
		timeout: timeout,
		logger:  logger,
	}
	r.wg.Add(1)
	go r.run()
	return r
}

// Emit queues an event for every sink.
func (r *Recorder) Emit(event string, metadata map[string]any) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.closed {
		return
	}
	md := make(map[string]any, len(metadata)+1)
	for k, v := range metadata {
		md[k] = v
	}
	select {
	case r.queue <- record{event: event, metadata: md, at: time.Now()}:
	default:
		r.logger.Warn("telemetry buffer full, dropping event", zap.String("event", event))
	}
}

func (r *Recorder) run() {
	defer r.wg.Done()
	for rec := range r.queue {
		rec.metadata["ts"] = rec.at.UTC().Format(time.RFC3339Nano)
		for _, s := range r.sinks {
			ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
			if err := s.Record(ctx, rec.event, rec.metadata); err != nil {
				r.logger.Warn("telemetry sink failed", zap.String("event", rec.event), zap.Error(err))
			}
			cancel()
		}
	}
}

// Close stops accepting events and waits for queued ones to be delivered.
func (r *Recorder) Close() {
	r.closeOnce.Do(func() {
		r.mu.Lock()
		r.closed = true
		close(r.queue)
		r.mu.Unlock()
	})
	r.wg.Wait()
}

// LogSink writes events to the structured log.
type LogSink struct {
	Logger *zap.Logger
}

func (s LogSink) Record(_ context.Context, event string, metadata map[string]any) error {
	s.Logger.Info("telemetry", zap.String("event", event), zap.Any("metadata", metadata))
	return nil
}
