package entitlement

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/mualim/api/internal/models"
	"go.uber.org/zap"
)

// Status is the entitlement decision for one teacher.
type Status struct {
	Active     bool              `json:"active"`
	Membership models.Membership `json:"membership"`
	Reason     string            `json:"reason,omitempty"`
}

// Store answers whether a teacher holds an active membership.
type Store interface {
	Status(ctx context.Context, userID uuid.UUID, email string) (Status, error)
}

// querier is the subset of pgxpool.Pool the service needs.
type querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// Service reads and writes memberships in Postgres.
type Service struct {
	db     querier
	logger *zap.Logger
	now    func() time.Time
}

func NewService(db querier, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{db: db, logger: logger, now: time.Now}
}

const membershipColumns = `user_id, email, status, plan, expires_at, updated_at`

// Status looks a membership up by user id, then by email for memberships
// provisioned before the account existed.
func (s *Service) Status(ctx context.Context, userID uuid.UUID, email string) (Status, error) {
	m, err := s.scan(s.db.QueryRow(ctx,
		`SELECT `+membershipColumns+` FROM memberships WHERE user_id = $1`, userID))
	if errors.Is(err, pgx.ErrNoRows) && email != "" {
		m, err = s.scan(s.db.QueryRow(ctx,
			`SELECT `+membershipColumns+` FROM memberships WHERE LOWER(email) = LOWER($1)
			 ORDER BY updated_at DESC LIMIT 1`, strings.TrimSpace(email)))
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return Status{Reason: "no membership"}, nil
	}
	if err != nil {
		return Status{}, fmt.Errorf("query membership: %w", err)
	}

	st := Status{Active: m.Active(s.now()), Membership: m}
	if !st.Active {
		st.Reason = "membership " + string(m.Status)
		if m.Status == models.MembershipActive {
			st.Reason = "membership expired"
		}
		s.logger.Info("entitlement denied",
			zap.String("user_id", userID.String()),
			zap.String("status", string(m.Status)),
		)
	}
	return st, nil
}

// Ensure creates an inactive membership for a new account if none exists.
func (s *Service) Ensure(ctx context.Context, userID uuid.UUID, email string) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO memberships (user_id, email, status)
		VALUES ($1, $2, $3)
		ON CONFLICT (user_id) DO NOTHING
	`, userID, email, models.MembershipInactive)
	if err != nil {
		return fmt.Errorf("ensure membership: %w", err)
	}
	return nil
}

// Set upserts a membership, used by operators and the payment webhook.
func (s *Service) Set(ctx context.Context, m models.Membership) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO memberships (user_id, email, status, plan, expires_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, NOW())
		ON CONFLICT (user_id) DO UPDATE
		SET email = EXCLUDED.email, status = EXCLUDED.status, plan = EXCLUDED.plan,
		    expires_at = EXCLUDED.expires_at, updated_at = NOW()
	`, m.UserID, m.Email, m.Status, m.Plan, m.ExpiresAt)
	if err != nil {
		return fmt.Errorf("set membership: %w", err)
	}
	return nil
}

func (s *Service) scan(row pgx.Row) (models.Membership, error) {
	var m models.Membership
	var status string
	err := row.Scan(&m.UserID, &m.Email, &status, &m.Plan, &m.ExpiresAt, &m.UpdatedAt)
	m.Status = models.MembershipStatus(status)
	return m, err
}
