package handlers

import (
	"context"
	"net/http"
	"strings"

	"github.com/ronerog/furia-app/internal/models"
	"github.com/ronerog/furia-app/internal/session"
	"github.com/ronerog/furia-app/pkg/utils"
)

// SessionService defines the session operations exposed over the bridge.
type SessionService interface {
	State() session.State
	User() *models.User
	Login(ctx context.Context, email, password string) (*models.User, error)
	Register(ctx context.Context, reg *models.Registration) (*models.User, error)
	Logout()
	Refresh(ctx context.Context) (*models.User, error)
	UpdateProfile(ctx context.Context, patch *models.ProfileUpdate) (*models.User, error)
}

// SessionHandler handles the session lifecycle endpoints.
type SessionHandler struct {
	sessions SessionService
}

// NewSessionHandler creates a session handler backed by the session manager.
//
// Example:
//
//	sessionHandler := handlers.NewSessionHandler(application.Session)
//	r.Post("/api/v1/session/login", sessionHandler.Login)
func NewSessionHandler(sessions SessionService) *SessionHandler {
	return &SessionHandler{sessions: sessions}
}

// SessionResponse is the body returned by every session endpoint.
//
// JSON example:
//
//	{
//	  "state": "authenticated",
//	  "user": {"id": "6610...", "username": "furioso", "points": 150}
//	}
type SessionResponse struct {
	State session.State `json:"state"`
	User  *models.User  `json:"user,omitempty"`
}

// LoginRequest is the body of POST /api/v1/session/login.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Get returns the current session state and user.
func (h *SessionHandler) Get(w http.ResponseWriter, r *http.Request) {
	utils.RespondWithJSON(w, r, http.StatusOK, h.snapshot())
}

// Login signs in with email and password.
//
// Example request:
//
//	POST /api/v1/session/login
//	{"email": "fan@furia.gg", "password": "..."}
//
// Responses:
//   - 200: session started, body is SessionResponse
//   - 400: missing email or password
//   - 401: invalid_credentials
//   - 502: backend unreachable
func (h *SessionHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := utils.DecodeJSON(r, &req); err != nil {
		utils.RespondWithError(w, r, http.StatusBadRequest, "invalid_request", "Invalid request body")
		return
	}
	req.Email = strings.TrimSpace(req.Email)
	if req.Email == "" || req.Password == "" {
		utils.RespondWithError(w, r, http.StatusBadRequest, "invalid_request", "Email and password are required")
		return
	}

	user, err := h.sessions.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		respondWithAPIError(w, r, err)
		return
	}

	utils.RespondWithJSON(w, r, http.StatusOK, SessionResponse{State: session.StateAuthenticated, User: user})
}

// Register creates an account and signs in with it.
//
// Responses:
//   - 201: account created and session started
//   - 400: missing username, email, or password
//   - other statuses as returned by the backend
func (h *SessionHandler) Register(w http.ResponseWriter, r *http.Request) {
	var reg models.Registration
	if err := utils.DecodeJSON(r, &reg); err != nil {
		utils.RespondWithError(w, r, http.StatusBadRequest, "invalid_request", "Invalid request body")
		return
	}
	reg.Username = strings.TrimSpace(reg.Username)
	reg.Email = strings.TrimSpace(reg.Email)
	if reg.Username == "" || reg.Email == "" || reg.Password == "" {
		utils.RespondWithError(w, r, http.StatusBadRequest, "invalid_request", "Username, email and password are required")
		return
	}

	user, err := h.sessions.Register(r.Context(), &reg)
	if err != nil {
		respondWithAPIError(w, r, err)
		return
	}

	utils.RespondWithJSON(w, r, http.StatusCreated, SessionResponse{State: session.StateAuthenticated, User: user})
}

// Logout ends the session. Always succeeds.
func (h *SessionHandler) Logout(w http.ResponseWriter, r *http.Request) {
	h.sessions.Logout()
	utils.RespondWithJSON(w, r, http.StatusOK, h.snapshot())
}

// Refresh re-fetches the user record from the backend.
// Requires an authenticated session.
func (h *SessionHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	user, err := h.sessions.Refresh(r.Context())
	if err != nil {
		respondWithAPIError(w, r, err)
		return
	}

	utils.RespondWithJSON(w, r, http.StatusOK, SessionResponse{State: session.StateAuthenticated, User: user})
}

// UpdateProfile saves profile changes. Omitted fields are left unchanged.
// Requires an authenticated session.
func (h *SessionHandler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	var patch models.ProfileUpdate
	if err := utils.DecodeJSON(r, &patch); err != nil {
		utils.RespondWithError(w, r, http.StatusBadRequest, "invalid_request", "Invalid request body")
		return
	}
	if patch.Username != nil && strings.TrimSpace(*patch.Username) == "" {
		utils.RespondWithError(w, r, http.StatusBadRequest, "invalid_request", "Username cannot be empty")
		return
	}

	user, err := h.sessions.UpdateProfile(r.Context(), &patch)
	if err != nil {
		respondWithAPIError(w, r, err)
		return
	}

	utils.RespondWithJSON(w, r, http.StatusOK, SessionResponse{State: session.StateAuthenticated, User: user})
}

func (h *SessionHandler) snapshot() SessionResponse {
	return SessionResponse{
		State: h.sessions.State(),
		User:  h.sessions.User(),
	}
}
