// Package session remembers the fingerprints already shown to a teacher so
// that repeated requests produce new content.
package session

import (
	"context"
	"sync"
	"time"

	"github.com/mualim/api/internal/generation"
	"github.com/redis/go-redis/v9"
)

// Store keeps a bounded, per-session history of result fingerprints.
type Store interface {
	Recent(ctx context.Context, sessionID string) ([]string, error)
	Remember(ctx context.Context, sessionID, fingerprint string) error
}

// MemoryStore holds one SeenSet per session in process memory. Sessions idle
// for longer than the TTL are dropped on the next Sweep.
type MemoryStore struct {
	mu       sync.Mutex
	sets     map[string]*entry
	capacity int
	ttl      time.Duration
	now      func() time.Time
}

type entry struct {
	seen     *generation.SeenSet
	lastSeen time.Time
}

func NewMemoryStore(capacity int, ttl time.Duration) *MemoryStore {
	return &MemoryStore{
		sets:     make(map[string]*entry),
		capacity: capacity,
		ttl:      ttl,
		now:      time.Now,
	}
}

func (s *MemoryStore) set(sessionID string) *generation.SeenSet {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.sets[sessionID]
	if !ok {
		e = &entry{seen: generation.NewSeenSet(s.capacity)}
		s.sets[sessionID] = e
	}
	e.lastSeen = s.now()
	return e.seen
}

func (s *MemoryStore) Recent(_ context.Context, sessionID string) ([]string, error) {
	return s.set(sessionID).Recent(), nil
}

func (s *MemoryStore) Remember(_ context.Context, sessionID, fingerprint string) error {
	s.set(sessionID).Add(fingerprint)
	return nil
}

// Sweep drops idle sessions and returns how many were removed.
func (s *MemoryStore) Sweep() int {
	if s.ttl <= 0 {
		return 0
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	cutoff := s.now().Add(-s.ttl)
	n := 0
	for id, e := range s.sets {
		if e.lastSeen.Before(cutoff) {
			delete(s.sets, id)
			n++
		}
	}
	return n
}

// RunSweeper sweeps every interval until ctx ends.
func (s *MemoryStore) RunSweeper(ctx context.Context, interval time.Duration) {
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			s.Sweep()
		}
	}
}

const keyPrefix = "seen:"

// RedisStore keeps each session's history as a capped Redis list, newest first.
type RedisStore struct {
	rdb      redis.Cmdable
	capacity int
	ttl      time.Duration
}

func NewRedisStore(rdb redis.Cmdable, capacity int, ttl time.Duration) *RedisStore {
	if capacity <= 0 {
		capacity = generation.DefaultSeenCapacity
	}
	return &RedisStore{rdb: rdb, capacity: capacity, ttl: ttl}
}

// Recent returns the session's fingerprints, oldest first.
func (s *RedisStore) Recent(ctx context.Context, sessionID string) ([]string, error) {
	items, err := s.rdb.LRange(ctx, keyPrefix+sessionID, 0, int64(s.capacity-1)).Result()
	if err != nil {
		return nil, err
	}
	for i, j := 0, len(items)-1; i < j; i, j = i+1, j-1 {
		items[i], items[j] = items[j], items[i]
	}
	return items, nil
}

func (s *RedisStore) Remember(ctx context.Context, sessionID, fingerprint string) error {
	key := keyPrefix + sessionID
	_, err := s.rdb.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.LRem(ctx, key, 0, fingerprint)
		p.LPush(ctx, key, fingerprint)
		p.LTrim(ctx, key, 0, int64(s.capacity-1))
		if s.ttl > 0 {
			p.Expire(ctx, key, s.ttl)
		}
		return nil
	})
	return err
}
