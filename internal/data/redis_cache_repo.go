package data

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/target/simqueue/internal/core"
)

// RedisCacheRepo implements core.CacheRepository using Redis. Keys are namespaced with an optional prefix.
type RedisCacheRepo struct {
	client redis.UniversalClient
	prefix string
}

// NewRedisCacheRepo creates a new RedisCacheRepo with the given Redis client.
func NewRedisCacheRepo(client redis.UniversalClient, prefix string) *RedisCacheRepo {
	return &RedisCacheRepo{client: client, prefix: prefix}
}

func (r *RedisCacheRepo) key(key string) (string, error) {
	if key == "" {
		return "", errors.New("key cannot be empty")
	}
	return r.prefix + key, nil
}

// Set stores a value with the given TTL. A zero TTL never expires.
func (r *RedisCacheRepo) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	k, err := r.key(key)
	if err != nil {
		return err
	}
	if err := r.client.Set(ctx, k, value, ttl).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

// Get retrieves a value by key. A missing key yields (nil, nil).
func (r *RedisCacheRepo) Get(ctx context.Context, key string) ([]byte, error) {
	k, err := r.key(key)
	if err != nil {
		return nil, err
	}
	result, err := r.client.Get(ctx, k).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("redis get: %w", err)
	}
	return result, nil
}

// Delete removes a key. It reports whether the key existed.
func (r *RedisCacheRepo) Delete(ctx context.Context, key string) (bool, error) {
	k, err := r.key(key)
	if err != nil {
		return false, err
	}
	n, err := r.client.Del(ctx, k).Result()
	if err != nil {
		return false, fmt.Errorf("redis del: %w", err)
	}
	return n > 0, nil
}

// SetIfNotExists atomically sets a key only if it doesn't already exist.
func (r *RedisCacheRepo) SetIfNotExists(
	ctx context.Context,
	key string,
	value []byte,
	ttl time.Duration,
) (bool, error) {
	k, err := r.key(key)
	if err != nil {
		return false, err
	}
	if ttl <= 0 {
		ttl = time.Second
	}

	// SETNX followed by EXPIRE is not atomic; SET with NX and a TTL is.
	status, err := r.client.SetArgs(ctx, k, value, redis.SetArgs{Mode: "NX", TTL: ttl}).Result()
	if err != nil {
		// NX miss comes back as a nil reply.
		if errors.Is(err, redis.Nil) {
			return false, nil
		}
		return false, fmt.Errorf("redis SET NX: %w", err)
	}
	return status == "OK", nil
}

// Health pings Redis.
func (r *RedisCacheRepo) Health(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

var _ core.CacheRepository = (*RedisCacheRepo)(nil)
