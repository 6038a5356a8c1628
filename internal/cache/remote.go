package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/rawblock/pixel-archives/internal/apperr"
	"github.com/rawblock/pixel-archives/internal/config"
)

// RemoteStore is the coordination tier: snapshots, locks, cooldowns, session
// blacklists and rate buckets all live here. Services depend on this
// interface; Redis provides the production implementation.
type RemoteStore interface {
	// GetJSON unmarshals the value at key into dst, reporting whether the
	// key existed.
	GetJSON(ctx context.Context, key string, dst any) (bool, error)
	// SetJSON marshals value and stores it with the given TTL.
	SetJSON(ctx context.Context, key string, value any, ttl time.Duration) error
	// SetNX stores a placeholder value only if key is absent. Used for
	// advisory locks where the holder identity does not matter.
	SetNX(ctx context.Context, key string, ttl time.Duration) (bool, error)
	// SetNXValue stores value only if key is absent. Used for locks whose
	// value identifies the holder.
	SetNXValue(ctx context.Context, key, value string, ttl time.Duration) (bool, error)
	// GetString returns the raw string at key, reporting existence.
	GetString(ctx context.Context, key string) (string, bool, error)
	Delete(ctx context.Context, key string) error
}

// RedisCache implements RemoteStore over a pooled go-redis client.
type RedisCache struct {
	client *redis.Client
}

// ConnectRedis builds the pooled client and verifies the connection with a
// PING before handing it out.
func ConnectRedis(ctx context.Context, cfg *config.CacheConfig) (*RedisCache, error) {
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("invalid cache URL: %w", err)
	}
	opts.PoolSize = cfg.PoolSize
	opts.DialTimeout = time.Duration(cfg.ConnectTimeoutSecs) * time.Second
	opts.PoolTimeout = time.Duration(cfg.ConnectTimeoutSecs) * time.Second

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("cache ping failed: %w", err)
	}
	return &RedisCache{client: client}, nil
}

func (r *RedisCache) Close() error {
	return r.client.Close()
}

func (r *RedisCache) GetJSON(ctx context.Context, key string, dst any) (bool, error) {
	raw, err := r.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, apperr.CacheErr(err)
	}
	if err := json.Unmarshal([]byte(raw), dst); err != nil {
		return false, apperr.Serialization(err)
	}
	return true, nil
}

func (r *RedisCache) SetJSON(ctx context.Context, key string, value any, ttl time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return apperr.Serialization(err)
	}
	if err := r.client.Set(ctx, key, raw, ttl).Err(); err != nil {
		return apperr.CacheErr(err)
	}
	return nil
}

func (r *RedisCache) SetNX(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	ok, err := r.client.SetNX(ctx, key, "true", ttl).Result()
	if err != nil {
		return false, apperr.CacheErr(err)
	}
	return ok, nil
}

func (r *RedisCache) SetNXValue(ctx context.Context, key, value string, ttl time.Duration) (bool, error) {
	ok, err := r.client.SetNX(ctx, key, value, ttl).Result()
	if err != nil {
		return false, apperr.CacheErr(err)
	}
	return ok, nil
}

func (r *RedisCache) GetString(ctx context.Context, key string) (string, bool, error) {
	raw, err := r.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, apperr.CacheErr(err)
	}
	return raw, true, nil
}

func (r *RedisCache) Delete(ctx context.Context, key string) error {
	if err := r.client.Del(ctx, key).Err(); err != nil {
		return apperr.CacheErr(err)
	}
	return nil
}
