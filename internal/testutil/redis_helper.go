package testutil

import (
	"testing"

	"github.com/alicebob/miniredis/v2"

	"github.com/ronerog/furia-app/internal/database"
	"github.com/ronerog/furia-app/pkg/cache"
	"github.com/ronerog/furia-app/pkg/config"
)

// RedisFixture is an in-process Redis (miniredis) with a RedisDB dialed
// through the production connect path.
type RedisFixture struct {
	Server *miniredis.Miniredis
	DB     *database.RedisDB
}

// NewRedisFixture starts miniredis and connects to it. Both are closed on
// test cleanup.
func NewRedisFixture(t *testing.T) *RedisFixture {
	t.Helper()

	mr := miniredis.RunT(t)
	db, err := database.NewRedisDB(&config.RedisConfig{
		Host:     mr.Host(),
		Port:     mr.Port(),
		PoolSize: 2,
	})
	if err != nil {
		t.Fatalf("Failed to connect to miniredis: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	return &RedisFixture{Server: mr, DB: db}
}

// Cache returns a JSON cache on the fixture connection.
func (f *RedisFixture) Cache() *cache.Cache {
	return cache.NewCache(f.DB.Client())
}

// Outage stops the server so later calls fail as if Redis went away.
func (f *RedisFixture) Outage() {
	f.Server.Close()
}
