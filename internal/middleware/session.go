// Package middleware provides HTTP middleware for the local bridge API.
//
// Middleware in this package:
//   - Session gating for routes that need a signed-in fan
//   - Structured request/response logging with correlation IDs
//   - Prometheus metrics collection
//   - Loopback-only access for the bridge listener
//
// All middleware is designed to be composable with Chi router.
package middleware

import (
	"context"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/ronerog/furia-app/internal/models"
	"github.com/ronerog/furia-app/pkg/utils"
)

// contextKey is a custom type for context keys to avoid collisions.
type contextKey string

// UserKey is the context key for the signed-in user, set by RequireSession.
const UserKey contextKey = "user"

// SessionReader is the read side of the session manager.
type SessionReader interface {
	IsAuthenticated() bool
	User() *models.User
}

// RequireSession rejects requests with 401 unless a usable session exists,
// and adds a copy of the user record to the request context.
//
// Usage:
//
//	r.Group(func(r chi.Router) {
//	    r.Use(middleware.RequireSession(manager))
//	    r.Get("/api/v1/points", pointsHandler.Balance)
//	})
//
// Accessing the user in handlers:
//
//	user, ok := middleware.GetUser(r.Context())
func RequireSession(sessions SessionReader) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user := sessions.User()
			if !sessions.IsAuthenticated() || user == nil {
				log.Debug().
					Str("request_id", utils.GetRequestID(r.Context())).
					Str("path", r.URL.Path).
					Msg("Rejected request without session")
				utils.RespondWithError(w, r, http.StatusUnauthorized, "not_authenticated", "Sign in required")
				return
			}

			ctx := context.WithValue(r.Context(), UserKey, user)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// GetUser extracts the signed-in user from the request context.
// Returns false when the route is not behind RequireSession.
func GetUser(ctx context.Context) (*models.User, bool) {
	user, ok := ctx.Value(UserKey).(*models.User)
	return user, ok && user != nil
}
