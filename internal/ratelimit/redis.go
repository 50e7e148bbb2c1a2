package ratelimit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore persists limiter state in Redis so the ceiling holds across
// process restarts and multiple nodes. Entries expire a window past their
// last write.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisStore wraps an existing Redis client. The ttl should be at least
// the limiter's window; shorter values would forget failures early.
func NewRedisStore(client *redis.Client, ttl time.Duration) *RedisStore {
	if ttl <= 0 {
		ttl = 2 * DefaultWindow
	}
	return &RedisStore{client: client, ttl: ttl}
}

func redisKey(key string) string {
	return "ratelimit:payment:" + key
}

func (r *RedisStore) Get(ctx context.Context, key string) (State, bool, error) {
	raw, err := r.client.Get(ctx, redisKey(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return State{}, false, nil
	}
	if err != nil {
		return State{}, false, fmt.Errorf("ratelimit: loading state for %s: %w", key, err)
	}
	var s State
	if err := json.Unmarshal(raw, &s); err != nil {
		// Unreadable state is discarded rather than wedging the flow.
		return State{}, false, nil
	}
	return s, true, nil
}

func (r *RedisStore) Put(ctx context.Context, key string, s State) error {
	raw, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("ratelimit: encoding state: %w", err)
	}
	if err := r.client.Set(ctx, redisKey(key), raw, r.ttl).Err(); err != nil {
		return fmt.Errorf("ratelimit: saving state for %s: %w", key, err)
	}
	return nil
}

func (r *RedisStore) Delete(ctx context.Context, key string) error {
	if err := r.client.Del(ctx, redisKey(key)).Err(); err != nil {
		return fmt.Errorf("ratelimit: deleting state for %s: %w", key, err)
	}
	return nil
}
