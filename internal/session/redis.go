package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// defaultDraftTTL bounds how long an abandoned draft lingers in Redis. It
// is garbage collection only; the flow itself enforces no draft expiry.
const defaultDraftTTL = 30 * 24 * time.Hour

// RedisStore persists checkout drafts in Redis for multi-node deployments.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisStore connects to Redis at the given URL and verifies the
// connection before returning.
func NewRedisStore(redisURL string, ttl time.Duration) (*RedisStore, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("session: invalid redis URL: %w", err)
	}
	client := redis.NewClient(opt)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("session: failed to connect to redis: %w", err)
	}

	if ttl <= 0 {
		ttl = defaultDraftTTL
	}
	return &RedisStore{client: client, ttl: ttl}, nil
}

func (r *RedisStore) Save(ctx context.Context, storeID string, snap Snapshot) error {
	raw, err := snap.Encode()
	if err != nil {
		return fmt.Errorf("session: encoding snapshot: %w", err)
	}
	if err := r.client.Set(ctx, Key(storeID), raw, r.ttl).Err(); err != nil {
		return fmt.Errorf("session: saving draft for %s: %w", storeID, err)
	}
	return nil
}

func (r *RedisStore) Load(ctx context.Context, storeID string) (Snapshot, error) {
	raw, err := r.client.Get(ctx, Key(storeID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return Snapshot{}, ErrNotFound
	}
	if err != nil {
		return Snapshot{}, fmt.Errorf("session: loading draft for %s: %w", storeID, err)
	}
	return decode(raw)
}

func (r *RedisStore) Delete(ctx context.Context, storeID string) error {
	if err := r.client.Del(ctx, Key(storeID)).Err(); err != nil {
		return fmt.Errorf("session: deleting draft for %s: %w", storeID, err)
	}
	return nil
}

// Client exposes the underlying Redis client so other stores can share
// the connection.
func (r *RedisStore) Client() *redis.Client {
	return r.client
}

// Close releases the Redis connection.
func (r *RedisStore) Close() error {
	return r.client.Close()
}
