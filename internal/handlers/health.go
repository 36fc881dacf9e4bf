// Package handlers provides the HTTP handlers of the local bridge API.
// Handlers translate between JSON requests from the view layer and the
// fan hub core, handling request parsing, validation, and response
// formatting.
//
// This package includes handlers for:
//   - Health checks and readiness probes
//   - Session lifecycle (login, register, logout, refresh, profile)
//   - Points, activities, and reward redemption
//   - Live chat history and sending
//   - Read-only content (matches, live streams)
package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/ronerog/furia-app/internal/session"
	"github.com/ronerog/furia-app/internal/storage"
	"github.com/ronerog/furia-app/pkg/utils"
)

// StateReader reports the current session state.
type StateReader interface {
	State() session.State
}

// HealthHandler handles health check endpoints for the bridge.
// Provides a simple liveness check and a readiness check that verifies the
// token store is reachable and reports whether the session has resolved.
type HealthHandler struct {
	store    storage.TokenStore // Token store checked by Ready
	sessions StateReader        // Session state reported by Ready
}

// NewHealthHandler creates a new health handler.
//
// Parameters:
//   - store: token store pinged by the readiness check
//   - sessions: session state source
//
// Example:
//
//	healthHandler := handlers.NewHealthHandler(tokenStore, application.Session)
//	r.Get("/health", healthHandler.Health)
//	r.Get("/ready", healthHandler.Ready)
func NewHealthHandler(store storage.TokenStore, sessions StateReader) *HealthHandler {
	return &HealthHandler{
		store:    store,
		sessions: sessions,
	}
}

// HealthResponse represents the health check response structure.
//
// JSON example:
//
//	{
//	  "status": "ok",
//	  "timestamp": "2024-01-20T14:30:00Z",
//	  "session": "authenticated",
//	  "services": {
//	    "token_store": "healthy"
//	  }
//	}
type HealthResponse struct {
	Status    string            `json:"status"`             // Overall status: "ok", "starting" or "degraded"
	Timestamp time.Time         `json:"timestamp"`          // Current time
	Session   string            `json:"session,omitempty"`  // Session state (readiness only)
	Services  map[string]string `json:"services,omitempty"` // Individual service health (readiness only)
}

// Health returns a simple liveness check. It never touches dependencies.
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	response := HealthResponse{
		Status:    "ok",
		Timestamp: time.Now(),
	}

	utils.RespondWithJSON(w, r, http.StatusOK, response)
}

// Ready checks whether the bridge can serve the view layer.
//
// Response status:
//   - "ok": token store healthy and session resolved (200 OK)
//   - "starting": session restore still in progress (503 Service Unavailable)
//   - "degraded": token store unreachable (503 Service Unavailable)
//
// The store check has a 5-second timeout.
func (h *HealthHandler) Ready(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	services := make(map[string]string)
	state := h.sessions.State()

	response := HealthResponse{
		Status:    "ok",
		Timestamp: time.Now(),
		Session:   state.String(),
		Services:  services,
	}
	statusCode := http.StatusOK

	if err := h.store.Ping(ctx); err != nil {
		log.Error().Err(err).Msg("Token store health check failed")
		services["token_store"] = "unhealthy"
		response.Status = "degraded"
		statusCode = http.StatusServiceUnavailable
	} else {
		services["token_store"] = "healthy"
		if state == session.StateUnknown {
			response.Status = "starting"
			statusCode = http.StatusServiceUnavailable
		}
	}

	utils.RespondWithJSON(w, r, statusCode, response)
}
