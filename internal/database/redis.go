// Package database owns the client's only network store connection: the
// optional Redis instance backing the token store.
package database

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/ronerog/furia-app/pkg/config"
	"github.com/ronerog/furia-app/pkg/utils"
)

// connectBudget bounds the whole connect-with-retry sequence at startup.
const connectBudget = 10 * time.Second

// RedisDB holds the Redis connection used by the redis token store.
type RedisDB struct {
	client *redis.Client
}

// NewRedisDB dials Redis and waits until it answers PING.
//
// The token store is read once at startup and written on login and
// logout, so the pool is small and timeouts are short; a Redis that is
// still booting is retried with utils.StoreRetryConfig for up to 10 seconds.
//
// Parameters:
//   - cfg: Redis host, port, password, database and pool size
//
// Example:
//
//	redisDB, err := database.NewRedisDB(&cfg.Redis)
//	if err != nil {
//	    log.Fatal().Err(err).Msg("Failed to connect to Redis")
//	}
//	defer redisDB.Close()
//	store := storage.NewRedisTokenStore(cache.NewCache(redisDB.Client()), "", inspector.ExpiresAt)
func NewRedisDB(cfg *config.RedisConfig) (*RedisDB, error) {
	addr := cfg.Address()
	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		DialTimeout:  2 * time.Second,
		ReadTimeout:  time.Second,
		WriteTimeout: time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), connectBudget)
	defer cancel()

	retry := utils.StoreRetryConfig()
	retry.OnRetry = func(attempt int, err error, delay time.Duration) {
		log.Warn().
			Err(err).
			Str("addr", addr).
			Int("attempt", attempt).
			Dur("retry_in", delay).
			Msg("Redis not answering yet")
	}

	err := utils.Retry(ctx, retry, func() error {
		return client.Ping(ctx).Err()
	})
	if err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis at %s: %w", addr, err)
	}

	log.Info().Str("addr", addr).Int("db", cfg.DB).Msg("Connected to Redis token store")
	return &RedisDB{client: client}, nil
}

// Client returns the underlying client for pkg/cache.
func (r *RedisDB) Client() *redis.Client {
	return r.client
}

// Close releases the connection pool.
func (r *RedisDB) Close() error {
	return r.client.Close()
}
