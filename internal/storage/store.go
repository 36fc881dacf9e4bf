// Package storage persists the single bearer token across restarts.
//
// Two backends are provided: a file in the user config directory and a
// Redis entry (for kiosk setups that share one store). Both hold exactly
// one token under a fixed name; Save overwrites, Delete is idempotent.
package storage

import (
	"context"
	"errors"
)

// ErrTokenNotFound is returned by Load when no token is persisted.
var ErrTokenNotFound = errors.New("token not found")

// TokenStore is the durable client storage used by the session manager.
type TokenStore interface {
	Load(ctx context.Context) (string, error)
	Save(ctx context.Context, token string) error
	Delete(ctx context.Context) error
	Ping(ctx context.Context) error
}
