package entitlement

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const cacheKeyPrefix = "entitlement:"

// CachedStore fronts a Store with a short-TTL Redis cache. Cache failures fall
// through to the underlying store.
type CachedStore struct {
	next   Store
	rdb    redis.Cmdable
	ttl    time.Duration
	logger *zap.Logger
}

func NewCachedStore(next Store, rdb redis.Cmdable, ttl time.Duration, logger *zap.Logger) *CachedStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CachedStore{next: next, rdb: rdb, ttl: ttl, logger: logger}
}

func (c *CachedStore) Status(ctx context.Context, userID uuid.UUID, email string) (Status, error) {
	key := cacheKeyPrefix + userID.String()

	if raw, err := c.rdb.Get(ctx, key).Bytes(); err == nil {
		var st Status
		if err := json.Unmarshal(raw, &st); err == nil {
			return st, nil
		}
	} else if !errors.Is(err, redis.Nil) {
		c.logger.Warn("entitlement cache read failed", zap.Error(err))
	}

	st, err := c.next.Status(ctx, userID, email)
	if err != nil {
		return Status{}, err
	}

	if raw, err := json.Marshal(st); err == nil {
		if err := c.rdb.Set(ctx, key, raw, c.ttl).Err(); err != nil {
			c.logger.Warn("entitlement cache write failed", zap.Error(err))
		}
	}
	return st, nil
}

// Invalidate drops the cached decision for userID.
func (c *CachedStore) Invalidate(ctx context.Context, userID uuid.UUID) error {
	return c.rdb.Del(ctx, cacheKeyPrefix+userID.String()).Err()
}
