package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// User is a teacher account.
type User struct {
	ID           uuid.UUID `json:"id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	Name         string    `json:"name"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// MembershipStatus is the entitlement state of a teacher.
type MembershipStatus string

const (
	MembershipActive   MembershipStatus = "active"
	MembershipInactive MembershipStatus = "inactive"
	MembershipExpired  MembershipStatus = "expired"
)

// Membership records whether a teacher may use paid generation features.
type Membership struct {
	UserID    uuid.UUID        `json:"user_id"`
	Email     string           `json:"email"`
	Status    MembershipStatus `json:"status"`
	Plan      string           `json:"plan,omitempty"`
	ExpiresAt *time.Time       `json:"expires_at,omitempty"`
	UpdatedAt time.Time        `json:"updated_at"`
}

// Active reports whether m grants access at now.
func (m Membership) Active(now time.Time) bool {
	if m.Status != MembershipActive {
		return false
	}
	return m.ExpiresAt == nil || now.Before(*m.ExpiresAt)
}

// GenerationLog is the persisted diagnostic record of one generation request.
type GenerationLog struct {
	ID             uuid.UUID       `json:"id"`
	UserID         *uuid.UUID      `json:"user_id,omitempty"`
	Kind           string          `json:"kind"`
	Model          string          `json:"model"`
	Fingerprint    string          `json:"fingerprint"`
	Duplicate      bool            `json:"duplicate"`
	NoveltyRetries int             `json:"novelty_retries"`
	Attempts       json.RawMessage `json:"attempts"`
	Outcome        string          `json:"outcome"`
	DurationMS     int64           `json:"duration_ms"`
	CreatedAt      time.Time       `json:"created_at"`
}

// TelemetryEvent is an analytics event emitted by the service.
type TelemetryEvent struct {
	Event     string         `json:"event"`
	Metadata  map[string]any `json:"metadata"`
	CreatedAt time.Time      `json:"created_at"`
}

