package translate

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/joseph-ayodele/docextract/internal/entity"
)

// Cache stores finished annotations keyed by text.
type Cache interface {
	Get(ctx context.Context, key string) (entity.TranslatableField, bool, error)
	Set(ctx context.Context, key string, f entity.TranslatableField) error
}

// Key derives the cache key of text.
func Key(text string) string {
	sum := sha256.Sum256([]byte(text))
	return "annotate:" + hex.EncodeToString(sum[:])
}

// MemoryCache is an in-process Cache.
type MemoryCache struct {
	mu sync.RWMutex
	m  map[string]entity.TranslatableField
}

func NewMemoryCache() *MemoryCache {
	return &MemoryCache{m: make(map[string]entity.TranslatableField)}
}

func (c *MemoryCache) Get(_ context.Context, key string) (entity.TranslatableField, bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	f, ok := c.m[key]
	return f, ok, nil
}

func (c *MemoryCache) Set(_ context.Context, key string, f entity.TranslatableField) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.m[key] = f
	return nil
}

// Len returns the number of cached annotations.
func (c *MemoryCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.m)
}

// RedisCache keeps annotations in Redis with a TTL.
type RedisCache struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// NewRedisCache connects to url (redis://...) and verifies connectivity.
func NewRedisCache(ctx context.Context, url, prefix string, ttl time.Duration) (*RedisCache, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}
	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}
	return &RedisCache{client: client, prefix: prefix, ttl: ttl}, nil
}

func (c *RedisCache) Get(ctx context.Context, key string) (entity.TranslatableField, bool, error) {
	b, err := c.client.Get(ctx, c.prefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return entity.TranslatableField{}, false, nil
	}
	if err != nil {
		return entity.TranslatableField{}, false, fmt.Errorf("redis get: %w", err)
	}
	var f entity.TranslatableField
	if err := json.Unmarshal(b, &f); err != nil {
		return entity.TranslatableField{}, false, fmt.Errorf("decode cached annotation: %w", err)
	}
	return f, true, nil
}

func (c *RedisCache) Set(ctx context.Context, key string, f entity.TranslatableField) error {
	b, err := json.Marshal(f)
	if err != nil {
		return err
	}
	if err := c.client.Set(ctx, c.prefix+key, b, c.ttl).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

func (c *RedisCache) Close() error {
	return c.client.Close()
}
