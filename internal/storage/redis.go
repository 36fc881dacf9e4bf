package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/ronerog/furia-app/pkg/cache"
)

// TokenEntry is the JSON document stored in Redis.
type TokenEntry struct {
	Token   string    `json:"token"`
	SavedAt time.Time `json:"saved_at"`
}

// ExpiryFunc returns a token's expiry, used to set the Redis TTL.
type ExpiryFunc func(token string) (time.Time, error)

// RedisTokenStore keeps the token under cache.TokenKey(profile).
type RedisTokenStore struct {
	cache  *cache.Cache
	key    string
	expiry ExpiryFunc
}

// NewRedisTokenStore creates a Redis-backed store.
//
// Parameters:
//   - c: JSON cache over the Redis connection
//   - profile: optional key scope, "" for the default key
//   - expiry: optional; when set, entries expire with the token
//
// Example:
//
//	store := storage.NewRedisTokenStore(cache.NewCache(redisDB.Client()), "", inspector.ExpiresAt)
func NewRedisTokenStore(c *cache.Cache, profile string, expiry ExpiryFunc) *RedisTokenStore {
	return &RedisTokenStore{
		cache:  c,
		key:    cache.TokenKey(profile),
		expiry: expiry,
	}
}

// Load reads the persisted token.
func (s *RedisTokenStore) Load(ctx context.Context) (string, error) {
	var entry TokenEntry
	if err := s.cache.Get(ctx, s.key, &entry); err != nil {
		if errors.Is(err, cache.ErrCacheMiss) {
			return "", ErrTokenNotFound
		}
		return "", fmt.Errorf("failed to load token: %w", err)
	}
	if entry.Token == "" {
		return "", ErrTokenNotFound
	}
	return entry.Token, nil
}

// Save overwrites the persisted token. When an expiry func was supplied
// and the token carries an exp claim in the future, the key TTL matches it.
func (s *RedisTokenStore) Save(ctx context.Context, token string) error {
	var ttl time.Duration
	if s.expiry != nil {
		if exp, err := s.expiry(token); err == nil {
			if ttl = time.Until(exp); ttl <= 0 {
				log.Warn().Str("key", s.key).Msg("Refusing to persist an already expired token")
				return s.Delete(ctx)
			}
		}
	}

	entry := TokenEntry{Token: token, SavedAt: time.Now().UTC()}
	if err := s.cache.Set(ctx, s.key, entry, ttl); err != nil {
		return fmt.Errorf("failed to save token: %w", err)
	}
	return nil
}

// Delete removes the persisted token.
func (s *RedisTokenStore) Delete(ctx context.Context) error {
	if err := s.cache.Delete(ctx, s.key); err != nil {
		return fmt.Errorf("failed to delete token: %w", err)
	}
	return nil
}

// Ping checks the Redis connection.
func (s *RedisTokenStore) Ping(ctx context.Context) error {
	return s.cache.Ping(ctx)
}
