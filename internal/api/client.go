// Package api is the REST client for the fan hub backend.
//
// Every call carries the bearer token from the registered TokenSource and
// an X-Request-ID header. A 401 on an authenticated call is reported to the
// unauthorized handler (the session manager) before ErrUnauthorized is
// returned, so a stale session ends no matter which component noticed it.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/ronerog/furia-app/internal/metrics"
	"github.com/ronerog/furia-app/pkg/utils"
)

// maxResponseBytes caps decoded response bodies.
const maxResponseBytes = 4 << 20

// TokenSource provides the current bearer token, "" when signed out.
type TokenSource interface {
	Token() string
}

// TokenSourceFunc adapts a function to TokenSource.
type TokenSourceFunc func() string

// Token returns f().
func (f TokenSourceFunc) Token() string { return f() }

// Client talks to the backend REST API.
type Client struct {
	baseURL    string
	httpClient *http.Client

	mu             sync.RWMutex
	tokens         TokenSource
	onUnauthorized func(token string)
}

// NewClient creates a client for baseURL (e.g. "http://localhost:5000/api").
//
// Parameters:
//   - baseURL: API root without trailing slash
//   - timeout: per-request timeout (10s by default in config)
//
// Example:
//
//	client := api.NewClient(cfg.API.BaseURL, cfg.API.Timeout)
//	client.SetTokenSource(sessionManager)
//	client.OnUnauthorized(sessionManager.HandleUnauthorized)
func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// SetTokenSource registers where bearer tokens come from.
func (c *Client) SetTokenSource(ts TokenSource) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.tokens = ts
}

// OnUnauthorized registers the handler run on a 401 from an authenticated
// call. The handler receives the token that was rejected so a late 401 from
// a previous session can be told apart from one for the current session.
func (c *Client) OnUnauthorized(fn func(token string)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onUnauthorized = fn
}

// request describes one backend call.
type request struct {
	method string
	route  string // templated path used as the metrics label
	path   string // concrete path
	query  url.Values
	body   interface{}
	out    interface{}
	token  string // explicit token; overrides the token source
	authed bool   // send the bearer token and treat 401 as session expiry
}

// do executes req and decodes a 2xx body into req.out.
func (c *Client) do(ctx context.Context, req request) error {
	if ctx == nil {
		ctx = context.Background()
	}

	token := req.token
	if req.authed && token == "" {
		c.mu.RLock()
		ts := c.tokens
		c.mu.RUnlock()
		if ts != nil {
			token = ts.Token()
		}
		if token == "" {
			return ErrNoToken
		}
	}

	endpoint := c.baseURL + req.path
	if len(req.query) > 0 {
		endpoint += "?" + req.query.Encode()
	}

	var body io.Reader
	if req.body != nil {
		data, err := json.Marshal(req.body)
		if err != nil {
			return fmt.Errorf("failed to encode request body: %w", err)
		}
		body = bytes.NewReader(data)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.method, endpoint, body)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}

	requestID := utils.GetRequestID(ctx)
	if requestID == "" {
		requestID = uuid.NewString()
	}
	httpReq.Header.Set("X-Request-ID", requestID)
	httpReq.Header.Set("Accept", "application/json")
	if req.body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		httpReq.Header.Set("Authorization", "Bearer "+token)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		metrics.RecordAPIRequest(req.method, req.route, 0, time.Since(start))
		log.Debug().
			Err(err).
			Str("request_id", requestID).
			Str("method", req.method).
			Str("route", req.route).
			Msg("Backend request failed")
		if ctxErr := ctx.Err(); ctxErr != nil {
			return fmt.Errorf("%w: %w", ErrNetwork, ctxErr)
		}
		return fmt.Errorf("%w: %v", ErrNetwork, err)
	}
	defer resp.Body.Close()

	metrics.RecordAPIRequest(req.method, req.route, resp.StatusCode, time.Since(start))

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return fmt.Errorf("%w: failed to read response: %v", ErrNetwork, err)
	}

	log.Debug().
		Str("request_id", requestID).
		Str("method", req.method).
		Str("route", req.route).
		Int("status", resp.StatusCode).
		Dur("duration", time.Since(start)).
		Msg("Backend request completed")

	if resp.StatusCode == http.StatusUnauthorized && req.authed {
		c.mu.RLock()
		handler := c.onUnauthorized
		c.mu.RUnlock()
		if handler != nil {
			handler(token)
		}
		return &APIError{Status: resp.StatusCode, Message: serverMessage(data), Err: ErrUnauthorized}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &APIError{Status: resp.StatusCode, Message: serverMessage(data)}
	}

	if req.out == nil {
		return nil
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return fmt.Errorf("%w: empty body", ErrMalformedResponse)
	}
	if err := json.Unmarshal(data, req.out); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	return nil
}

// serverMessage pulls a human readable message from an error body.
func serverMessage(data []byte) string {
	var body struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if err := json.Unmarshal(data, &body); err != nil {
		return ""
	}
	if body.Message != "" {
		return body.Message
	}
	return body.Error
}

// IsUnauthorized reports whether err is a session-ending 401.
func IsUnauthorized(err error) bool {
	return errors.Is(err, ErrUnauthorized)
}

func userPath(userID, suffix string) string {
	return "/users/" + url.PathEscape(userID) + suffix
}
