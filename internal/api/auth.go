package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/ronerog/furia-app/internal/models"
)

// authResponse is the login/register body. Success is optional: the
// backend only sets it on explicit failures.
type authResponse struct {
	Success *bool        `json:"success"`
	Message string       `json:"message"`
	Token   string       `json:"token"`
	User    *models.User `json:"user"`
}

// Login authenticates with email and password.
//
// The response is accepted only when it carries a non-empty token and a
// user record. Failures are classified:
//   - HTTP 401 or success:false: ErrInvalidCredentials (wrapped in *APIError)
//   - missing token or user: ErrMalformedResponse
//   - transport failure: ErrNetwork
//
// Example:
//
//	payload, err := client.Login(ctx, "a@b.com", "pw")
//	if errors.Is(err, api.ErrInvalidCredentials) {
//	    // show "incorrect email or password"
//	}
func (c *Client) Login(ctx context.Context, email, password string) (*models.AuthPayload, error) {
	body := map[string]string{"email": email, "password": password}
	return c.authenticate(ctx, "/auth/login", body, ErrInvalidCredentials)
}

// Register creates an account with the full profile payload. The success
// contract matches Login; an explicit failure flag maps to ErrRejected.
func (c *Client) Register(ctx context.Context, reg *models.Registration) (*models.AuthPayload, error) {
	if reg == nil {
		return nil, fmt.Errorf("registration payload is required")
	}
	return c.authenticate(ctx, "/auth/register", reg, ErrRejected)
}

func (c *Client) authenticate(ctx context.Context, path string, body interface{}, failure error) (*models.AuthPayload, error) {
	var resp authResponse
	err := c.do(ctx, request{
		method: http.MethodPost,
		route:  path,
		path:   path,
		body:   body,
		out:    &resp,
	})
	if err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) && apiErr.Err == nil && apiErr.Status == http.StatusUnauthorized {
			apiErr.Err = failure
		}
		return nil, err
	}

	if resp.Success != nil && !*resp.Success {
		return nil, &APIError{Status: http.StatusOK, Message: resp.Message, Err: failure}
	}
	if resp.Token == "" || resp.User == nil {
		return nil, fmt.Errorf("%w: auth response missing token or user", ErrMalformedResponse)
	}

	return &models.AuthPayload{Token: resp.Token, User: resp.User}, nil
}

// Me fetches the identity record for token. An explicit token is used so
// restore can validate a persisted token before it becomes the session's.
// HTTP 401 returns ErrUnauthorized without running the unauthorized
// handler, since no session exists yet.
func (c *Client) Me(ctx context.Context, token string) (*models.User, error) {
	var raw json.RawMessage
	err := c.do(ctx, request{
		method: http.MethodGet,
		route:  "/auth/me",
		path:   "/auth/me",
		out:    &raw,
		token:  token,
	})
	if err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) && apiErr.Status == http.StatusUnauthorized {
			apiErr.Err = ErrUnauthorized
		}
		return nil, err
	}
	return decodeUser(raw)
}

// CurrentUser fetches the identity record with the session token.
func (c *Client) CurrentUser(ctx context.Context) (*models.User, error) {
	var raw json.RawMessage
	if err := c.do(ctx, request{
		method: http.MethodGet,
		route:  "/auth/me",
		path:   "/auth/me",
		out:    &raw,
		authed: true,
	}); err != nil {
		return nil, err
	}
	return decodeUser(raw)
}

// UpdateUser applies a profile patch and returns the full updated record.
func (c *Client) UpdateUser(ctx context.Context, userID string, patch *models.ProfileUpdate) (*models.User, error) {
	var raw json.RawMessage
	if err := c.do(ctx, request{
		method: http.MethodPut,
		route:  "/users/{id}",
		path:   userPath(userID, ""),
		body:   patch,
		out:    &raw,
		authed: true,
	}); err != nil {
		return nil, err
	}
	return decodeUser(raw)
}

// decodeUser accepts both a bare user object and {"user": {...}}.
func decodeUser(raw json.RawMessage) (*models.User, error) {
	var wrapped struct {
		User *models.User `json:"user"`
	}
	if err := json.Unmarshal(raw, &wrapped); err == nil && wrapped.User != nil && wrapped.User.ID != "" {
		return wrapped.User, nil
	}

	var user models.User
	if err := json.Unmarshal(raw, &user); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	if user.ID == "" {
		return nil, fmt.Errorf("%w: user record missing id", ErrMalformedResponse)
	}
	return &user, nil
}
