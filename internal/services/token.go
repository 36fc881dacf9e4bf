// Package services holds small stateless helpers shared by the session
// manager and the bridge: bearer token inspection and client device
// description.
package services

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrNoExpiry is returned when a token carries no exp claim.
var ErrNoExpiry = errors.New("token has no expiry claim")

// Claims represents the subset of the backend's token claims the client
// reads. The token is opaque to the client apart from these fields.
type Claims struct {
	UserID               string `json:"id,omitempty"` // Present on tokens issued by the fan hub backend
	jwt.RegisteredClaims        // Standard JWT claims (exp, iat, sub)
}

// TokenInspector decodes bearer tokens without verifying their signature.
// The client has no signing key; it only needs the embedded expiry to
// decide, before any network call, whether a persisted token is usable.
type TokenInspector struct {
	parser *jwt.Parser
	now    func() time.Time
}

// NewTokenInspector creates a new inspector using the wall clock.
//
// Example:
//
//	inspector := services.NewTokenInspector()
//	if inspector.Expired(token) {
//	    store.Delete(ctx)
//	}
func NewTokenInspector() *TokenInspector {
	return &TokenInspector{
		parser: jwt.NewParser(),
		now:    time.Now,
	}
}

// WithClock returns a copy of the inspector that reads time from now.
func (i *TokenInspector) WithClock(now func() time.Time) *TokenInspector {
	return &TokenInspector{parser: i.parser, now: now}
}

// Decode parses the token claims without signature verification.
//
// Parameters:
//   - token: the raw bearer token
//
// Returns the parsed claims, or an error if the token is not a well formed JWT.
func (i *TokenInspector) Decode(token string) (*Claims, error) {
	claims := &Claims{}
	if _, _, err := i.parser.ParseUnverified(token, claims); err != nil {
		return nil, fmt.Errorf("failed to decode token: %w", err)
	}
	return claims, nil
}

// ExpiresAt returns the token's exp claim.
// Returns ErrNoExpiry if the claim is absent; a token without an expiry is
// treated as unusable by callers.
func (i *TokenInspector) ExpiresAt(token string) (time.Time, error) {
	claims, err := i.Decode(token)
	if err != nil {
		return time.Time{}, err
	}
	if claims.ExpiresAt == nil {
		return time.Time{}, ErrNoExpiry
	}
	return claims.ExpiresAt.Time, nil
}

// Expired reports whether the token is undecodable, lacks an expiry, or
// has an expiry at or before the current time.
func (i *TokenInspector) Expired(token string) bool {
	exp, err := i.ExpiresAt(token)
	if err != nil {
		return true
	}
	return !exp.After(i.now())
}

// Now returns the inspector's current time.
func (i *TokenInspector) Now() time.Time {
	return i.now()
}
