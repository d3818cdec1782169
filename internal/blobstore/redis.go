package blobstore

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// Redis is a low-latency blob store backend for deployments that want
// a cache tier distinct from the commit store's Postgres instance.
// Selected via the blobCache="redis" config string.
type Redis struct {
	client *redis.Client
}

// NewRedis dials a Redis server at addr. Dialing is lazy; the first
// real round-trip happens on the first Put/Get/Has/Remove call.
func NewRedis(addr string) *Redis {
	return &Redis{client: redis.NewClient(&redis.Options{Addr: addr})}
}

func (r *Redis) Put(ctx context.Context, key string, data []byte) error {
	if err := r.client.Set(ctx, key, data, 0).Err(); err != nil {
		return fmt.Errorf("blobstore: redis put %s: %w", key, err)
	}
	return nil
}

func (r *Redis) Get(ctx context.Context, key string) ([]byte, error) {
	data, err := r.client.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("blobstore: redis get %s: %w", key, err)
	}
	return data, nil
}

func (r *Redis) Has(ctx context.Context, key string) (bool, error) {
	n, err := r.client.Exists(ctx, key).Result()
	if err != nil {
		return false, fmt.Errorf("blobstore: redis has %s: %w", key, err)
	}
	return n > 0, nil
}

func (r *Redis) Remove(ctx context.Context, key string) error {
	if err := r.client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("blobstore: redis remove %s: %w", key, err)
	}
	return nil
}
