// Package rediscache provides a Redis-backed status cache so admin reads do
// not replay aggregate logs.
package rediscache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/louisbranch/orderflow/internal/domain/entity"
	"github.com/louisbranch/orderflow/internal/storage"
)

const keyPrefix = "orderflow:status:"

// Cache stores derived aggregate statuses in Redis.
type Cache struct {
	client *redis.Client
	ttl    time.Duration
}

// Options configures the Redis connection.
type Options struct {
	Addr     string
	Password string
	DB       int
	// TTL bounds staleness; zero keeps entries until overwritten.
	TTL time.Duration
}

// New connects a Redis client and verifies it responds.
func New(ctx context.Context, opts Options) (*Cache, error) {
	if strings.TrimSpace(opts.Addr) == "" {
		return nil, fmt.Errorf("redis addr is required")
	}
	client := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return &Cache{client: client, ttl: opts.TTL}, nil
}

// Close releases the Redis client.
func (c *Cache) Close() error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Close()
}

type cachedStatus struct {
	Status     string    `json:"status"`
	ComputedAt time.Time `json:"computed_at"`
}

// SetStatus implements storage.StatusCache.
func (c *Cache) SetStatus(ctx context.Context, entry storage.StatusEntry) error {
	if c == nil || c.client == nil {
		return fmt.Errorf("status cache is not configured")
	}
	if err := entry.Ref.Validate(); err != nil {
		return err
	}

	payload, err := json.Marshal(cachedStatus{Status: entry.Status, ComputedAt: entry.ComputedAt.UTC()})
	if err != nil {
		return fmt.Errorf("marshal status for %s: %w", entry.Ref, err)
	}
	if err := c.client.Set(ctx, keyPrefix+entry.Ref.String(), payload, c.ttl).Err(); err != nil {
		return fmt.Errorf("cache status for %s: %w", entry.Ref, err)
	}
	return nil
}

// GetStatus implements storage.StatusCache.
func (c *Cache) GetStatus(ctx context.Context, ref entity.Ref) (storage.StatusEntry, error) {
	if c == nil || c.client == nil {
		return storage.StatusEntry{}, fmt.Errorf("status cache is not configured")
	}
	if err := ref.Validate(); err != nil {
		return storage.StatusEntry{}, err
	}

	payload, err := c.client.Get(ctx, keyPrefix+ref.String()).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return storage.StatusEntry{}, storage.ErrNotFound
		}
		return storage.StatusEntry{}, fmt.Errorf("read status for %s: %w", ref, err)
	}
	var cached cachedStatus
	if err := json.Unmarshal(payload, &cached); err != nil {
		return storage.StatusEntry{}, fmt.Errorf("unmarshal status for %s: %w", ref, err)
	}
	return storage.StatusEntry{Ref: ref, Status: cached.Status, ComputedAt: cached.ComputedAt}, nil
}
