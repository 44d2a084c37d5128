package cache

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/redis/go-redis/v9"
)

// Redis is a Repository backed by a Redis server. Expiry uses Redis's own
// TTL handling, so entries disappear without a client-side sweep.
type Redis struct {
	client *redis.Client
	prefix string
}

// NewRedis connects to the Redis instance described by redisURL
// (redis://host:port/db) and verifies the connection before returning.
func NewRedis(redisURL, prefix string) (*Redis, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("connect to redis: %w", err)
	}

	return &Redis{client: client, prefix: prefix}, nil
}

// NewRedisWithClient wraps an existing client. Used by tests with miniredis.
func NewRedisWithClient(client *redis.Client, prefix string) *Redis {
	return &Redis{client: client, prefix: prefix}
}

func (r *Redis) key(key string) string {
	return r.prefix + key
}

// Get returns the value for key if Redis still holds it.
func (r *Redis) Get(ctx context.Context, key string) ([]byte, bool) {
	value, err := r.client.Get(ctx, r.key(key)).Bytes()
	if err == redis.Nil {
		return nil, false
	}
	if err != nil {
		// A cache read error is indistinguishable from a miss for callers;
		// they re-fetch from the API either way.
		log.Printf("cache: redis get %s: %v", key, err)
		return nil, false
	}
	return value, true
}

// Set stores value under key with the given TTL.
func (r *Redis) Set(ctx context.Context, key string, value []byte, ttl time.Duration) {
	if err := r.client.Set(ctx, r.key(key), value, ttl).Err(); err != nil {
		log.Printf("cache: redis set %s: %v", key, err)
	}
}

// Delete removes key.
func (r *Redis) Delete(ctx context.Context, key string) {
	if err := r.client.Del(ctx, r.key(key)).Err(); err != nil {
		log.Printf("cache: redis del %s: %v", key, err)
	}
}

// Flush removes every key under this repository's prefix.
func (r *Redis) Flush(ctx context.Context) {
	iter := r.client.Scan(ctx, 0, r.prefix+"*", 0).Iterator()
	for iter.Next(ctx) {
		if err := r.client.Del(ctx, iter.Val()).Err(); err != nil {
			log.Printf("cache: redis flush %s: %v", iter.Val(), err)
		}
	}
	if err := iter.Err(); err != nil {
		log.Printf("cache: redis flush scan: %v", err)
	}
}

// Close releases the underlying connection pool.
func (r *Redis) Close() error {
	return r.client.Close()
}

var _ Repository = (*Redis)(nil)
