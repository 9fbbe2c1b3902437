package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/praxishq/agent-gateway/internal/store"
)

// RedisStore is the durable session backend. Sessions live under
// session:{id} with a sliding TTL enforced by Redis expiry; the per-user
// listing index lives under user_sessions:{userId} as a sorted set scored by
// UpdatedAt.
type RedisStore struct {
	redis *store.RedisClient
	ttl   time.Duration
}

func NewRedisStore(client *store.RedisClient, ttl time.Duration) *RedisStore {
	return &RedisStore{
		redis: client,
		ttl:   ttl,
	}
}

func sessionKey(id string) string {
	return fmt.Sprintf("session:%s", id)
}

func userSessionsKey(userID string) string {
	return fmt.Sprintf("user_sessions:%s", userID)
}

func (rs *RedisStore) Create(ctx context.Context, s *ChatSession) error {
	data, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}

	ok, err := rs.redis.SetNX(ctx, sessionKey(s.ID), data, rs.ttl)
	if err != nil {
		return fmt.Errorf("failed to store session: %w", err)
	}
	if !ok {
		return ErrSessionExists
	}

	if err := rs.indexSession(ctx, s); err != nil {
		return err
	}

	return nil
}

func (rs *RedisStore) Get(ctx context.Context, id string) (*ChatSession, error) {
	data, err := rs.redis.Get(ctx, sessionKey(id))
	if err != nil {
		if errors.Is(err, redis.Nil) {
			// Native expiry makes a vanished key indistinguishable from
			// an explicit delete; both are a logical not-found.
			return nil, ErrSessionNotFound
		}
		return nil, fmt.Errorf("failed to get session: %w", err)
	}

	var s ChatSession
	if err := json.Unmarshal([]byte(data), &s); err != nil {
		return nil, fmt.Errorf("failed to unmarshal session: %w", err)
	}

	// Sliding window: reading a session keeps it and its index entry alive.
	if _, err := rs.redis.Expire(ctx, sessionKey(id), rs.ttl); err != nil {
		log.Printf("[%s] Failed to refresh session TTL: %v", id, err)
	}
	if _, err := rs.redis.Expire(ctx, userSessionsKey(s.UserID), rs.ttl); err != nil {
		log.Printf("[%s] Failed to refresh user index TTL: %v", id, err)
	}

	return &s, nil
}

func (rs *RedisStore) Save(ctx context.Context, s *ChatSession) error {
	data, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}

	if err := rs.redis.Set(ctx, sessionKey(s.ID), data, rs.ttl); err != nil {
		return fmt.Errorf("failed to store session: %w", err)
	}

	return rs.indexSession(ctx, s)
}

func (rs *RedisStore) indexSession(ctx context.Context, s *ChatSession) error {
	member := redis.Z{
		Score:  float64(s.UpdatedAt.UnixMilli()),
		Member: s.ID,
	}
	if err := rs.redis.ZAddWithExpire(ctx, userSessionsKey(s.UserID), rs.ttl, member); err != nil {
		return fmt.Errorf("failed to index session for user %s: %w", s.UserID, err)
	}
	return nil
}

func (rs *RedisStore) ListByUser(ctx context.Context, userID string, limit int) ([]*ChatSession, error) {
	if limit <= 0 {
		return nil, nil
	}

	ids, err := rs.redis.ZRevRange(ctx, userSessionsKey(userID), 0, int64(limit)-1)
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions for user %s: %w", userID, err)
	}

	sessions := make([]*ChatSession, 0, len(ids))
	for _, id := range ids {
		s, err := rs.Get(ctx, id)
		if errors.Is(err, ErrSessionNotFound) {
			// Expired since indexing: drop the stale reference.
			if remErr := rs.redis.ZRem(ctx, userSessionsKey(userID), id); remErr != nil {
				log.Printf("[%s] Failed to prune expired session from index: %v", id, remErr)
			}
			continue
		}
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, s)
	}

	return sessions, nil
}

func (rs *RedisStore) Delete(ctx context.Context, id string) error {
	s, err := rs.Get(ctx, id)
	if errors.Is(err, ErrSessionNotFound) {
		return nil
	}
	if err != nil {
		return err
	}

	if err := rs.redis.Del(ctx, sessionKey(id)); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	if err := rs.redis.ZRem(ctx, userSessionsKey(s.UserID), id); err != nil {
		return fmt.Errorf("failed to remove session from index: %w", err)
	}

	return nil
}

func (rs *RedisStore) ExtendTTL(ctx context.Context, id string) error {
	ok, err := rs.redis.Expire(ctx, sessionKey(id), rs.ttl)
	if err != nil {
		return fmt.Errorf("failed to extend session TTL: %w", err)
	}
	if !ok {
		return ErrSessionNotFound
	}
	return nil
}

func (rs *RedisStore) Mode() string {
	return ModeDurable
}

func (rs *RedisStore) Close() error {
	return rs.redis.Close()
}
