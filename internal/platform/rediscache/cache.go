// Package rediscache stores finished transcripts in Redis so that repeated
// uploads of the same audio skip the engine.
package rediscache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/phrazzld/audio2srt/internal/config"
	"github.com/phrazzld/audio2srt/internal/domain"
	"github.com/phrazzld/audio2srt/internal/transcribe"
	"github.com/redis/go-redis/v9"
)

// DefaultPrefix namespaces every key written by the cache.
const DefaultPrefix = "audio2srt:transcript:"

// Cache implements transcribe.Cache with JSON values and a fixed TTL.
type Cache struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

var _ transcribe.Cache = (*Cache)(nil)

// New connects to Redis and verifies the connection with a PING.
func New(ctx context.Context, cfg config.RedisConfig) (*Cache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return NewWithClient(client, time.Duration(cfg.TTLMinutes)*time.Minute), nil
}

// NewWithClient wraps an existing client. A zero ttl stores entries without expiry.
func NewWithClient(client *redis.Client, ttl time.Duration) *Cache {
	return &Cache{
		client: client,
		prefix: DefaultPrefix,
		ttl:    ttl,
	}
}

// Get implements transcribe.Cache.
func (c *Cache) Get(ctx context.Context, key string) (*domain.Transcript, error) {
	data, err := c.client.Get(ctx, c.prefix+key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, fmt.Errorf("%w: %s", transcribe.ErrCacheMiss, key)
		}
		return nil, err
	}

	var tr domain.Transcript
	if err := json.Unmarshal(data, &tr); err != nil {
		return nil, fmt.Errorf("failed to decode cached transcript: %w", err)
	}
	if tr.Segments == nil {
		tr.Segments = []domain.Segment{}
	}
	return &tr, nil
}

// Set implements transcribe.Cache.
func (c *Cache) Set(ctx context.Context, key string, tr *domain.Transcript) error {
	if tr == nil {
		return errors.New("transcript cannot be nil")
	}
	data, err := json.Marshal(tr)
	if err != nil {
		return fmt.Errorf("failed to encode transcript: %w", err)
	}
	return c.client.Set(ctx, c.prefix+key, data, c.ttl).Err()
}

// Delete removes one entry.
func (c *Cache) Delete(ctx context.Context, key string) error {
	return c.client.Del(ctx, c.prefix+key).Err()
}

// Ping reports whether Redis is reachable.
func (c *Cache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

// Close closes the Redis connection.
func (c *Cache) Close() error {
	return c.client.Close()
}
