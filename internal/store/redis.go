package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/BTreeMap/TaxPro/internal/models"
	"github.com/redis/go-redis/v9"
)

// RedisConfig is decoded from the environment with envconfig.
type RedisConfig struct {
	URL          string        `envconfig:"REDIS_URL"`
	ReadTimeout  time.Duration `envconfig:"REDIS_READ_TIMEOUT" default:"3s"`
	WriteTimeout time.Duration `envconfig:"REDIS_WRITE_TIMEOUT" default:"3s"`
	DialTimeout  time.Duration `envconfig:"REDIS_DIAL_TIMEOUT" default:"5s"`
}

// NewRedisClient parses the URL, applies timeouts and pings the server.
func (c RedisConfig) NewRedisClient(ctx context.Context) (*redis.Client, error) {
	if c.URL == "" {
		return nil, fmt.Errorf("redis URL not set")
	}
	opts, err := redis.ParseURL(c.URL)
	if err != nil {
		return nil, fmt.Errorf("parse redis URL: %w", err)
	}
	if c.ReadTimeout > 0 {
		opts.ReadTimeout = c.ReadTimeout
	}
	if c.WriteTimeout > 0 {
		opts.WriteTimeout = c.WriteTimeout
	}
	if c.DialTimeout > 0 {
		opts.DialTimeout = c.DialTimeout
	}

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return client, nil
}

// RedisSessionStore keeps session state in Redis. Every save refreshes the TTL,
// so idle sessions expire on their own.
type RedisSessionStore struct {
	rdb redis.Cmdable
	ttl time.Duration
}

func NewRedisSessionStore(rdb redis.Cmdable, ttl time.Duration) *RedisSessionStore {
	return &RedisSessionStore{rdb: rdb, ttl: ttl}
}

func (r *RedisSessionStore) sessionKey(id string) string {
	return fmt.Sprintf("taxpro:session:%s", id)
}

func (r *RedisSessionStore) SaveSession(ctx context.Context, state models.SessionState) error {
	b, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("encode session %s: %w", state.SessionID, err)
	}
	key := r.sessionKey(state.SessionID)
	if err := r.rdb.Set(ctx, key, b, r.ttl).Err(); err != nil {
		slog.Error("RedisSessionStore.SaveSession: set failed", "error", err, "key", key)
		return fmt.Errorf("redis set %s: %w", key, err)
	}
	return nil
}

func (r *RedisSessionStore) LoadSession(ctx context.Context, id string) (*models.SessionState, error) {
	key := r.sessionKey(id)
	b, err := r.rdb.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		slog.Error("RedisSessionStore.LoadSession: get failed", "error", err, "key", key)
		return nil, fmt.Errorf("redis get %s: %w", key, err)
	}
	return decodeSession(id, b)
}

func (r *RedisSessionStore) DeleteSession(ctx context.Context, id string) error {
	key := r.sessionKey(id)
	if err := r.rdb.Del(ctx, key).Err(); err != nil {
		slog.Error("RedisSessionStore.DeleteSession: del failed", "error", err, "key", key)
		return fmt.Errorf("redis del %s: %w", key, err)
	}
	return nil
}

var _ SessionStore = (*RedisSessionStore)(nil)
