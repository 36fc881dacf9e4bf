// Package cache stores JSON documents in Redis. The Redis token store
// builds on it to keep the bearer token as a single entry whose TTL
// follows the token's own expiry.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// ErrCacheMiss is returned by Get when no usable document exists at a key.
var ErrCacheMiss = errors.New("cache miss")

// Cache reads and writes JSON documents on a Redis client.
type Cache struct {
	client *redis.Client
}

// NewCache creates a cache on an already connected client.
//
// Example:
//
//	redisDB, _ := database.NewRedisDB(&cfg.Redis)
//	c := cache.NewCache(redisDB.Client())
func NewCache(client *redis.Client) *Cache {
	return &Cache{client: client}
}

// Get decodes the document stored at key into target.
//
// A missing key and a document that no longer decodes both return
// ErrCacheMiss; the undecodable document is removed so the next Get is a
// clean miss.
//
// Example:
//
//	var entry storage.TokenEntry
//	if err := c.Get(ctx, cache.TokenKey(""), &entry); errors.Is(err, cache.ErrCacheMiss) {
//	    // nothing persisted
//	}
func (c *Cache) Get(ctx context.Context, key string, target interface{}) error {
	raw, err := c.client.Get(ctx, key).Bytes()
	switch {
	case errors.Is(err, redis.Nil):
		return ErrCacheMiss
	case err != nil:
		return fmt.Errorf("failed to read %s: %w", key, err)
	}

	if err := json.Unmarshal(raw, target); err != nil {
		log.Warn().Err(err).Str("key", key).Msg("Dropping undecodable cache entry")
		if delErr := c.client.Del(ctx, key).Err(); delErr != nil {
			log.Warn().Err(delErr).Str("key", key).Msg("Failed to drop cache entry")
		}
		return ErrCacheMiss
	}
	return nil
}

// Set writes value at key. A ttl of zero or less stores it without expiry.
func (c *Cache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", key, err)
	}
	if ttl < 0 {
		ttl = 0
	}

	if err := c.client.Set(ctx, key, raw, ttl).Err(); err != nil {
		return fmt.Errorf("failed to write %s: %w", key, err)
	}

	log.Debug().Str("key", key).Dur("ttl", ttl).Msg("Stored cache entry")
	return nil
}

// Delete removes key. Removing a missing key is not an error.
func (c *Cache) Delete(ctx context.Context, key string) error {
	if err := c.client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("failed to delete %s: %w", key, err)
	}
	return nil
}

// Ping reports whether Redis answers.
func (c *Cache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}
