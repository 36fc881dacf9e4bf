package handlers

import (
	"errors"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/ronerog/furia-app/internal/api"
	"github.com/ronerog/furia-app/internal/session"
	"github.com/ronerog/furia-app/pkg/utils"
)

// respondWithAPIError maps a core or backend error to a bridge response.
//
// Mapping:
//   - api.ErrInvalidCredentials: 401 invalid_credentials
//   - session.ErrNotAuthenticated: 401 not_authenticated
//   - api.ErrUnauthorized: 401 session_expired (the session has already ended)
//   - *api.APIError with a status: that status, server message passed through
//   - api.ErrRejected on a 2xx body: 400
//   - anything else: 502 upstream_error
func respondWithAPIError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, api.ErrInvalidCredentials):
		utils.RespondWithError(w, r, http.StatusUnauthorized, "invalid_credentials", "Incorrect email or password")
		return
	case errors.Is(err, session.ErrNotAuthenticated):
		utils.RespondWithError(w, r, http.StatusUnauthorized, "not_authenticated", "Sign in required")
		return
	case errors.Is(err, api.ErrUnauthorized):
		utils.RespondWithError(w, r, http.StatusUnauthorized, "session_expired", "Session expired, sign in again")
		return
	}

	status := api.StatusCode(err)
	if status < 400 && errors.Is(err, api.ErrRejected) {
		// {success:false} with a 2xx status
		status = http.StatusBadRequest
	}
	if status >= 400 {
		utils.RespondWithError(w, r, status, errorCode(status), api.Message(err))
		return
	}

	log.Warn().
		Err(err).
		Str("request_id", utils.GetRequestID(r.Context())).
		Str("path", r.URL.Path).
		Msg("Upstream call failed")
	utils.RespondWithError(w, r, http.StatusBadGateway, "upstream_error", "Backend unavailable")
}

func errorCode(status int) string {
	switch status {
	case http.StatusBadRequest:
		return "bad_request"
	case http.StatusNotFound:
		return "not_found"
	case http.StatusConflict:
		return "conflict"
	case http.StatusUnprocessableEntity:
		return "unprocessable"
	}
	if status >= 500 {
		return "upstream_error"
	}
	return "request_failed"
}
