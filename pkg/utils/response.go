package utils

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/rs/zerolog/log"
)

// contextKey is a custom type for context keys to avoid collisions
type contextKey string

// requestIDKey is the context key for request ID
const requestIDKey contextKey = "request_id"

// maxBodyBytes caps bridge request bodies.
const maxBodyBytes = 1 << 20

// GetRequestID retrieves the request ID from the context.
// Returns an empty string if the context is nil or no request ID is present.
//
// The API client reads it to forward the bridge request ID to the backend
// as X-Request-ID, so one ID follows a view action end to end.
func GetRequestID(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if requestID, ok := ctx.Value(requestIDKey).(string); ok {
		return requestID
	}
	return ""
}

// WithRequestID adds a request ID to the context.
//
// Example:
//
//	ctx := utils.WithRequestID(r.Context(), uuid.New().String())
//	r = r.WithContext(ctx)
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey, requestID)
}

// ErrorResponse represents the bridge error body.
type ErrorResponse struct {
	Error     string `json:"error"`                // Machine readable code (e.g. "invalid_credentials")
	Message   string `json:"message,omitempty"`    // Human readable message for display
	RequestID string `json:"request_id,omitempty"` // Request ID for log correlation
}

// RespondWithError sends a JSON error response with automatic request ID extraction.
//
// Example:
//
//	if errors.Is(err, api.ErrInvalidCredentials) {
//	    utils.RespondWithError(w, r, http.StatusUnauthorized, "invalid_credentials", "Incorrect email or password")
//	    return
//	}
func RespondWithError(w http.ResponseWriter, r *http.Request, statusCode int, code, message string) {
	requestID := GetRequestID(r.Context())
	if code == "" {
		code = http.StatusText(statusCode)
	}

	respond(w, statusCode, ErrorResponse{
		Error:     code,
		Message:   message,
		RequestID: requestID,
	}, requestID)
}

// RespondWithJSON sends a JSON response with the given status code and data.
//
// Example:
//
//	utils.RespondWithJSON(w, r, http.StatusOK, map[string]int{"points": 150})
func RespondWithJSON(w http.ResponseWriter, r *http.Request, statusCode int, data interface{}) {
	respond(w, statusCode, data, GetRequestID(r.Context()))
}

// RespondWithMessage sends a simple message response with the given status code.
func RespondWithMessage(w http.ResponseWriter, r *http.Request, statusCode int, message string) {
	requestID := GetRequestID(r.Context())
	response := map[string]string{
		"message": message,
	}
	if requestID != "" {
		response["request_id"] = requestID
	}

	respond(w, statusCode, response, requestID)
}

// DecodeJSON reads a JSON request body into dst, rejecting unknown fields
// and bodies larger than 1 MiB.
func DecodeJSON(r *http.Request, dst interface{}) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("invalid request body: %w", err)
	}
	return nil
}

func respond(w http.ResponseWriter, statusCode int, data interface{}, requestID string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Error().
			Err(err).
			Str("request_id", requestID).
			Msg("Failed to encode JSON response")
	}
}
