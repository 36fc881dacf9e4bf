// Package realtime is the WebSocket pub/sub transport behind the chat
// channel. Frames are JSON envelopes:
//
//	{"type": "new_message", "data": {...}}
//
// A connection keeps itself alive: dropped reads and failed dials are
// retried with exponential backoff until Close is called or the server
// rejects the token.
package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/ronerog/furia-app/internal/chat"
	"github.com/ronerog/furia-app/internal/metrics"
	"github.com/ronerog/furia-app/pkg/utils"
)

const (
	writeWait       = 10 * time.Second
	handshakeWait   = 10 * time.Second
	maxMessageBytes = 64 << 10
)

var (
	// ErrNotConnected is returned by Emit while the socket is down.
	ErrNotConnected = errors.New("realtime connection not established")

	// ErrRejected is reported when the server refuses the handshake token.
	ErrRejected = errors.New("realtime handshake rejected")

	errTransient = errors.New("transient connection failure")
)

// Envelope is one frame on the wire.
type Envelope struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// Transport dials authenticated WebSocket connections.
type Transport struct {
	url    string
	dialer *websocket.Dialer
	retry  utils.RetryConfig
}

// NewTransport creates a transport for socketURL (e.g. ws://localhost:5000/ws).
//
// Parameters:
//   - socketURL: ws:// or wss:// endpoint
//   - maxDelay: upper bound for the reconnect backoff
func NewTransport(socketURL string, maxDelay time.Duration) *Transport {
	return &Transport{
		url: socketURL,
		dialer: &websocket.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: handshakeWait,
		},
		retry: withTransient(utils.ReconnectRetryConfig(maxDelay)),
	}
}

// withTransient retries only dial failures that are not a rejection of
// the token.
func withTransient(cfg utils.RetryConfig) utils.RetryConfig {
	cfg.RetryableErrors = []error{errTransient}
	cfg.OnRetry = func(attempt int, err error, delay time.Duration) {
		log.Debug().
			Err(err).
			Int("attempt", attempt).
			Dur("delay", delay).
			Msg("Realtime reconnect scheduled")
	}
	return cfg
}

// Connect starts a connection authenticated by token and returns
// immediately; the first dial happens in the background. Events are
// delivered to h on the connection's read goroutine.
func (t *Transport) Connect(ctx context.Context, token string, h chat.Handler) (chat.Conn, error) {
	endpoint, err := url.Parse(t.url)
	if err != nil {
		return nil, fmt.Errorf("invalid socket url: %w", err)
	}
	q := endpoint.Query()
	q.Set("token", token)
	endpoint.RawQuery = q.Encode()

	header := http.Header{}
	header.Set("Authorization", "Bearer "+token)

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	c := &Conn{
		transport: t,
		endpoint:  endpoint.String(),
		header:    header,
		handler:   h,
		ctx:       runCtx,
		cancel:    cancel,
		done:      make(chan struct{}),
	}
	go c.run()
	return c, nil
}

// Conn is a self-reconnecting WebSocket connection.
type Conn struct {
	transport *Transport
	endpoint  string
	header    http.Header
	handler   chat.Handler

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}

	mu sync.Mutex // guards ws and serializes writes
	ws *websocket.Conn
}

// Connected reports whether the socket is currently up.
func (c *Conn) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ws != nil
}

// Emit sends one event.
func (c *Conn) Emit(event string, payload interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to encode %s payload: %w", event, err)
	}
	frame, err := json.Marshal(Envelope{Type: event, Data: data})
	if err != nil {
		return fmt.Errorf("failed to encode envelope: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.ws == nil {
		return ErrNotConnected
	}
	_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
	if err := c.ws.WriteMessage(websocket.TextMessage, frame); err != nil {
		return fmt.Errorf("failed to write %s: %w", event, err)
	}
	return nil
}

// Close stops reconnecting and closes the socket. It waits for the read
// goroutine so no event is delivered after Close returns.
func (c *Conn) Close() error {
	c.cancel()

	c.mu.Lock()
	ws := c.ws
	c.ws = nil
	if ws != nil {
		_ = ws.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
	}
	c.mu.Unlock()

	var err error
	if ws != nil {
		err = ws.Close()
	}
	<-c.done
	return err
}

// run owns the connection lifecycle: dial, read until the socket drops,
// then dial again.
func (c *Conn) run() {
	defer close(c.done)

	for {
		ws, err := utils.RetryWithResult(c.ctx, c.transport.retry, c.dial)
		if err != nil {
			if c.ctx.Err() == nil {
				log.Warn().Err(err).Msg("Realtime connection abandoned")
			}
			return
		}

		c.mu.Lock()
		if c.ctx.Err() != nil {
			c.mu.Unlock()
			_ = ws.Close()
			return
		}
		c.ws = ws
		c.mu.Unlock()

		metrics.IncrementRealtimeConnections("connected")
		log.Info().Msg("Realtime connected")

		err = c.read(ws)

		c.mu.Lock()
		if c.ws == ws {
			c.ws = nil
		}
		c.mu.Unlock()
		_ = ws.Close()

		if c.ctx.Err() != nil {
			log.Debug().Msg("Realtime disconnected by client")
			return
		}
		metrics.IncrementRealtimeConnections("dropped")
		log.Warn().Err(err).Msg("Realtime disconnected, reconnecting")
	}
}

func (c *Conn) dial() (*websocket.Conn, error) {
	ws, resp, err := c.transport.dialer.DialContext(c.ctx, c.endpoint, c.header)
	if err == nil {
		ws.SetReadLimit(maxMessageBytes)
		return ws, nil
	}

	metrics.IncrementRealtimeConnections("error")
	if resp != nil && (resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden) {
		log.Warn().Int("status", resp.StatusCode).Msg("Realtime connect_error: token rejected")
		return nil, fmt.Errorf("%w: status %d", ErrRejected, resp.StatusCode)
	}
	return nil, fmt.Errorf("%w: %v", errTransient, err)
}

// read dispatches frames until the socket fails.
func (c *Conn) read(ws *websocket.Conn) error {
	for {
		_, data, err := ws.ReadMessage()
		if err != nil {
			return err
		}

		var env Envelope
		if err := json.Unmarshal(data, &env); err != nil || env.Type == "" {
			log.Debug().Msg("Dropped malformed realtime frame")
			continue
		}
		if c.ctx.Err() != nil {
			return c.ctx.Err()
		}
		c.handler.HandleEvent(env.Type, env.Data)
	}
}
