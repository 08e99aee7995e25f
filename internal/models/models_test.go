package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestMembership_Active(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	past := now.Add(-time.Hour)
	future := now.Add(time.Hour)

	assert.True(t, Membership{Status: MembershipActive}.Active(now))
	assert.True(t, Membership{Status: MembershipActive, ExpiresAt: &future}.Active(now))
	assert.False(t, Membership{Status: MembershipActive, ExpiresAt: &past}.Active(now))
	assert.False(t, Membership{Status: MembershipInactive}.Active(now))
	assert.False(t, Membership{Status: MembershipExpired, ExpiresAt: &future}.Active(now))
}
