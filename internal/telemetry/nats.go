package telemetry

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/mualim/api/internal/models"
	"github.com/nats-io/nats.go"
	"go.uber.org/zap"
)

// SubjectPrefix prefixes every telemetry subject, e.g. "mualim.telemetry.generation_succeeded".
const SubjectPrefix = "mualim.telemetry"

// StreamName is the JetStream stream retaining telemetry events.
const StreamName = "MUALIM_TELEMETRY"

// ConnectNATS dials url. Callers treat a failure as "telemetry over NATS disabled".
func ConnectNATS(url string, logger *zap.Logger) (*nats.Conn, error) {
	nc, err := nats.Connect(url,
		nats.Name("mualim-api"),
		nats.Timeout(5*time.Second),
		nats.MaxReconnects(3),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Warn("nats disconnected", zap.Error(err))
			}
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect to nats: %w", err)
	}
	return nc, nil
}

// NATSSink publishes events as JSON, through JetStream when a stream is
// available and as core NATS messages otherwise.
type NATSSink struct {
	nc *nats.Conn
	js nats.JetStreamContext
}

// NewNATSSink wraps nc. It tries to provision the telemetry stream; failing
// that it falls back to core publishes.
func NewNATSSink(nc *nats.Conn, logger *zap.Logger) *NATSSink {
	s := &NATSSink{nc: nc}
	js, err := nc.JetStream()
	if err != nil {
		logger.Warn("jetstream unavailable, using core nats", zap.Error(err))
		return s
	}
	_, err = js.AddStream(&nats.StreamConfig{
		Name:     StreamName,
		Subjects: []string{SubjectPrefix + ".>"},
		MaxAge:   30 * 24 * time.Hour,
	})
	if err != nil && !errors.Is(err, nats.ErrStreamNameAlreadyInUse) {
		logger.Warn("could not provision telemetry stream, using core nats", zap.Error(err))
		return s
	}
	s.js = js
	return s
}

func (s *NATSSink) Record(ctx context.Context, event string, metadata map[string]any) error {
	payload, err := json.Marshal(models.TelemetryEvent{Event: event, Metadata: metadata, CreatedAt: time.Now().UTC()})
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}
	subject := SubjectPrefix + "." + event
	if s.js != nil {
		_, err = s.js.Publish(subject, payload, nats.Context(ctx))
		return err
	}
	return s.nc.Publish(subject, payload)
}
