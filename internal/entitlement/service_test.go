package entitlement

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/mualim/api/internal/models"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRow struct {
	m   *models.Membership
	err error
}

func (r fakeRow) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	if r.m == nil {
		return pgx.ErrNoRows
	}
	*dest[0].(*uuid.UUID) = r.m.UserID
	*dest[1].(*string) = r.m.Email
	*dest[2].(*string) = string(r.m.Status)
	*dest[3].(*string) = r.m.Plan
	*dest[4].(**time.Time) = r.m.ExpiresAt
	*dest[5].(*time.Time) = r.m.UpdatedAt
	return nil
}

// fakeDB answers the user-id lookup first, then the email lookup.
type fakeDB struct {
	rows  []fakeRow
	calls int
	execs []string
}

func (f *fakeDB) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	i := f.calls
	f.calls++
	if i < len(f.rows) {
		return f.rows[i]
	}
	return fakeRow{}
}

func (f *fakeDB) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	f.execs = append(f.execs, sql)
	return pgconn.NewCommandTag("INSERT 0 1"), nil
}

var fixedNow = time.Date(2026, 5, 10, 9, 0, 0, 0, time.UTC)

func newTestService(db *fakeDB) *Service {
	s := NewService(db, nil)
	s.now = func() time.Time { return fixedNow }
	return s
}

func TestStatus_ActiveByUserID(t *testing.T) {
	id := uuid.New()
	db := &fakeDB{rows: []fakeRow{{m: &models.Membership{UserID: id, Email: "t@school.sa", Status: models.MembershipActive}}}}

	st, err := newTestService(db).Status(context.Background(), id, "t@school.sa")
	require.NoError(t, err)
	assert.True(t, st.Active)
	assert.Empty(t, st.Reason)
	assert.Equal(t, 1, db.calls)
}

func TestStatus_FallsBackToEmail(t *testing.T) {
	future := fixedNow.Add(24 * time.Hour)
	db := &fakeDB{rows: []fakeRow{
		{},
		{m: &models.Membership{Email: "t@school.sa", Status: models.MembershipActive, ExpiresAt: &future}},
	}}

	st, err := newTestService(db).Status(context.Background(), uuid.New(), "T@school.sa")
	require.NoError(t, err)
	assert.True(t, st.Active)
	assert.Equal(t, 2, db.calls)
}

func TestStatus_Denied(t *testing.T) {
	past := fixedNow.Add(-time.Hour)
	tests := []struct {
		name   string
		rows   []fakeRow
		reason string
	}{
		{"none", nil, "no membership"},
		{"inactive", []fakeRow{{m: &models.Membership{Status: models.MembershipInactive}}}, "membership inactive"},
		{"lapsed", []fakeRow{{m: &models.Membership{Status: models.MembershipActive, ExpiresAt: &past}}}, "membership expired"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			st, err := newTestService(&fakeDB{rows: tt.rows}).Status(context.Background(), uuid.New(), "t@school.sa")
			require.NoError(t, err)
			assert.False(t, st.Active)
			assert.Equal(t, tt.reason, st.Reason)
		})
	}
}

func TestStatus_QueryError(t *testing.T) {
	db := &fakeDB{rows: []fakeRow{{err: errors.New("connection reset")}}}
	_, err := newTestService(db).Status(context.Background(), uuid.New(), "")
	assert.Error(t, err)
}

func TestEnsureAndSet(t *testing.T) {
	db := &fakeDB{}
	s := newTestService(db)
	require.NoError(t, s.Ensure(context.Background(), uuid.New(), "t@school.sa"))
	require.NoError(t, s.Set(context.Background(), models.Membership{UserID: uuid.New(), Status: models.MembershipActive}))
	assert.Len(t, db.execs, 2)
}

type countingStore struct {
	calls int
	st    Status
}

func (c *countingStore) Status(ctx context.Context, userID uuid.UUID, email string) (Status, error) {
	c.calls++
	return c.st, nil
}

func TestCachedStore_FallsThroughWhenRedisDown(t *testing.T) {
	rdb := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1", DialTimeout: 50 * time.Millisecond, MaxRetries: -1})
	defer rdb.Close()
	next := &countingStore{st: Status{Active: true}}

	c := NewCachedStore(next, rdb, time.Minute, nil)
	st, err := c.Status(context.Background(), uuid.New(), "")
	require.NoError(t, err)
	assert.True(t, st.Active)
	assert.Equal(t, 1, next.calls)
}

func TestCachedStore_Redis(t *testing.T) {
	url := os.Getenv("REDIS_URL")
	if url == "" {
		t.Skip("REDIS_URL not set")
	}
	opts, err := redis.ParseURL(url)
	require.NoError(t, err)
	rdb := redis.NewClient(opts)
	defer rdb.Close()

	next := &countingStore{st: Status{Active: true, Membership: models.Membership{Plan: "annual"}}}
	c := NewCachedStore(next, rdb, time.Minute, nil)
	id := uuid.New()
	defer c.Invalidate(context.Background(), id)

	for i := 0; i < 3; i++ {
		st, err := c.Status(context.Background(), id, "")
		require.NoError(t, err)
		assert.Equal(t, "annual", st.Membership.Plan)
	}
	assert.Equal(t, 1, next.calls)

	require.NoError(t, c.Invalidate(context.Background(), id))
	_, err = c.Status(context.Background(), id, "")
	require.NoError(t, err)
	assert.Equal(t, 2, next.calls)
}
