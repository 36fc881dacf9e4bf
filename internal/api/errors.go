package api

import (
	"errors"
	"fmt"
	"net/http"
)

// Error classes returned by the client. Callers classify with errors.Is;
// *APIError carries the status and server message on top of the class.
var (
	// ErrInvalidCredentials is returned by Login when the server rejects
	// the email/password pair, either with HTTP 401 or success:false.
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrRejected is returned when the server answers a mutating call
	// with an explicit failure flag.
	ErrRejected = errors.New("request rejected")

	// ErrUnauthorized is returned on HTTP 401 from an authenticated call.
	// The registered unauthorized handler has already run when it is seen.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrMalformedResponse is returned when a success response lacks the
	// fields the operation depends on or cannot be decoded.
	ErrMalformedResponse = errors.New("malformed response")

	// ErrNetwork wraps transport failures (DNS, refused, timeout).
	ErrNetwork = errors.New("network error")

	// ErrNoToken is returned when an authenticated call is made without a
	// bearer token available.
	ErrNoToken = errors.New("no bearer token")
)

// APIError describes a non-2xx (or explicitly failed) backend response.
type APIError struct {
	Status  int    // HTTP status code
	Message string // Server provided message, if any
	Err     error  // Class sentinel, nil for plain status errors
}

func (e *APIError) Error() string {
	msg := e.Message
	if msg == "" {
		msg = http.StatusText(e.Status)
	}
	if e.Err != nil {
		return fmt.Sprintf("%v: %s (status %d)", e.Err, msg, e.Status)
	}
	return fmt.Sprintf("api error: %s (status %d)", msg, e.Status)
}

func (e *APIError) Unwrap() error {
	return e.Err
}

// StatusCode extracts the HTTP status carried by err, or 0.
func StatusCode(err error) int {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Status
	}
	return 0
}

// Message extracts the server message carried by err, or "".
func Message(err error) string {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Message
	}
	return ""
}
