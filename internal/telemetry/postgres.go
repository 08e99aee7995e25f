package telemetry

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/mualim/api/internal/models"
)

type execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// PostgresSink appends events to the telemetry_events table.
type PostgresSink struct {
	db execer
}

func NewPostgresSink(db execer) *PostgresSink {
	return &PostgresSink{db: db}
}

func (s *PostgresSink) Record(ctx context.Context, event string, metadata map[string]any) error {
	raw, err := json.Marshal(metadata)
	if err != nil {
		return fmt.Errorf("encode metadata: %w", err)
	}
	_, err = s.db.Exec(ctx,
		`INSERT INTO telemetry_events (event, metadata) VALUES ($1, $2)`, event, raw)
	return err
}

// GenerationLogs persists per-request diagnostic records.
type GenerationLogs struct {
	db execer
}

func NewGenerationLogs(db execer) *GenerationLogs {
	return &GenerationLogs{db: db}
}

// Insert writes l, assigning an id when it has none.
func (g *GenerationLogs) Insert(ctx context.Context, l models.GenerationLog) error {
	if l.ID == uuid.Nil {
		l.ID = uuid.New()
	}
	if len(l.Attempts) == 0 {
		l.Attempts = json.RawMessage("[]")
	}
	_, err := g.db.Exec(ctx, `
		INSERT INTO generation_logs
			(id, user_id, kind, model, fingerprint, duplicate, novelty_retries, attempts, outcome, duration_ms)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`, l.ID, l.UserID, l.Kind, l.Model, l.Fingerprint, l.Duplicate, l.NoveltyRetries, []byte(l.Attempts), l.Outcome, l.DurationMS)
	if err != nil {
		return fmt.Errorf("insert generation log: %w", err)
	}
	return nil
}
