// Package chat keeps the live chat state for the authenticated session:
// the message buffer, the online-user gauge and the outgoing send path.
//
// The channel never appends a sent message locally. A fan sees their own
// message when the server broadcasts it back, so the buffer order always
// matches the server's order.
package chat

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/ronerog/furia-app/internal/metrics"
	"github.com/ronerog/furia-app/internal/models"
)

// Server and client event names.
const (
	EventRecentMessages = "recent_messages"
	EventNewMessage     = "new_message"
	EventUserCount      = "user_count"
	EventSendMessage    = "send_message"
)

// Handler receives events from one transport connection.
type Handler interface {
	HandleEvent(event string, data json.RawMessage)
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(event string, data json.RawMessage)

// HandleEvent calls f(event, data).
func (f HandlerFunc) HandleEvent(event string, data json.RawMessage) { f(event, data) }

// Conn is one authenticated pub/sub connection.
type Conn interface {
	Emit(event string, payload interface{}) error
	Close() error
}

// Transport opens connections. Reconnection after drops is the
// transport's job; the channel only opens and closes.
type Transport interface {
	Connect(ctx context.Context, token string, h Handler) (Conn, error)
}

// Update is passed to subscribers after the buffer or gauge changes.
type Update struct {
	Event       string
	Message     *models.ChatMessage // set for new_message
	Messages    int                 // buffer length after the event
	OnlineUsers int
}

// Channel is the chat state for at most one open connection.
type Channel struct {
	transport Transport
	allowed   func() bool

	mu          sync.RWMutex
	generation  uint64
	conn        Conn
	messages    []models.ChatMessage
	onlineUsers int
	subscribers []func(Update)
}

// NewChannel creates a closed channel.
//
// Parameters:
//   - transport: the pub/sub transport (realtime.Transport in production)
//   - allowed: reports whether sending is currently permitted; typically the
//     session manager's IsAuthenticated. nil always allows.
func NewChannel(transport Transport, allowed func() bool) *Channel {
	if allowed == nil {
		allowed = func() bool { return true }
	}
	return &Channel{transport: transport, allowed: allowed}
}

// Subscribe registers fn for buffer and gauge updates. fn runs on the
// transport's goroutine and must not block.
func (c *Channel) Subscribe(fn func(Update)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.subscribers = append(c.subscribers, fn)
}

// Open closes any previous connection, clears the buffer and gauge, and
// connects with token. Connection failures are logged and returned; the
// channel stays closed.
func (c *Channel) Open(ctx context.Context, token string) error {
	c.mu.Lock()
	previous := c.conn
	c.conn = nil
	c.generation++
	gen := c.generation
	c.messages = nil
	c.onlineUsers = 0
	c.mu.Unlock()

	if previous != nil {
		if err := previous.Close(); err != nil {
			log.Debug().Err(err).Msg("Failed to close previous chat connection")
		}
	}
	metrics.SetChatOnlineUsers(0)

	conn, err := c.transport.Connect(ctx, token, HandlerFunc(func(event string, data json.RawMessage) {
		c.handle(gen, event, data)
	}))
	if err != nil {
		log.Warn().Err(err).Msg("Failed to open chat channel")
		return fmt.Errorf("failed to open chat channel: %w", err)
	}

	c.mu.Lock()
	if c.generation != gen {
		// Closed or reopened while connecting.
		c.mu.Unlock()
		_ = conn.Close()
		return nil
	}
	c.conn = conn
	c.mu.Unlock()

	log.Info().Msg("Chat channel opened")
	return nil
}

// Close disconnects and drops the buffer. Safe when nothing is open.
func (c *Channel) Close() {
	c.mu.Lock()
	conn := c.conn
	c.conn = nil
	c.generation++
	c.messages = nil
	c.onlineUsers = 0
	c.mu.Unlock()

	metrics.SetChatOnlineUsers(0)
	if conn == nil {
		return
	}
	if err := conn.Close(); err != nil {
		log.Debug().Err(err).Msg("Failed to close chat connection")
	}
	log.Info().Msg("Chat channel closed")
}

// Send emits text to the server. It is a no-op when no connection is open,
// sending is not allowed, or text is blank.
func (c *Channel) Send(text string) error {
	if strings.TrimSpace(text) == "" {
		return nil
	}

	c.mu.RLock()
	conn := c.conn
	c.mu.RUnlock()
	if conn == nil || !c.allowed() {
		return nil
	}

	if err := conn.Emit(EventSendMessage, models.OutgoingMessage{Text: text}); err != nil {
		log.Warn().Err(err).Msg("Failed to send chat message")
		return fmt.Errorf("failed to send chat message: %w", err)
	}
	metrics.IncrementChatEvents(EventSendMessage)
	return nil
}

// IsOpen reports whether a connection is held.
func (c *Channel) IsOpen() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.conn != nil
}

// Connected reports whether the held connection is currently up. A
// transport that does not report link state counts as up while open.
func (c *Channel) Connected() bool {
	c.mu.RLock()
	conn := c.conn
	c.mu.RUnlock()

	if conn == nil {
		return false
	}
	if link, ok := conn.(interface{ Connected() bool }); ok {
		return link.Connected()
	}
	return true
}

// Messages returns a copy of the buffer, oldest first.
func (c *Channel) Messages() []models.ChatMessage {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]models.ChatMessage(nil), c.messages...)
}

// OnlineUsers returns the last reported online-user count.
func (c *Channel) OnlineUsers() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.onlineUsers
}

// handle applies an event from the connection opened as generation gen.
func (c *Channel) handle(gen uint64, event string, data json.RawMessage) {
	var update Update

	c.mu.Lock()
	if c.generation != gen {
		c.mu.Unlock()
		return
	}

	switch event {
	case EventRecentMessages:
		var history []models.ChatMessage
		if err := json.Unmarshal(data, &history); err != nil {
			c.mu.Unlock()
			log.Warn().Err(err).Msg("Dropped malformed chat history")
			return
		}
		c.messages = history

	case EventNewMessage:
		var msg models.ChatMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			c.mu.Unlock()
			log.Warn().Err(err).Msg("Dropped malformed chat message")
			return
		}
		c.messages = append(c.messages, msg)
		update.Message = &msg

	case EventUserCount:
		var count int
		if err := json.Unmarshal(data, &count); err != nil {
			c.mu.Unlock()
			log.Warn().Err(err).Msg("Dropped malformed user count")
			return
		}
		c.onlineUsers = count

	default:
		c.mu.Unlock()
		log.Debug().Str("event", event).Msg("Ignored chat event")
		return
	}

	update.Event = event
	update.Messages = len(c.messages)
	update.OnlineUsers = c.onlineUsers
	subscribers := append([]func(Update){}, c.subscribers...)
	c.mu.Unlock()

	metrics.IncrementChatEvents(event)
	if event == EventUserCount {
		metrics.SetChatOnlineUsers(update.OnlineUsers)
	}
	for _, fn := range subscribers {
		fn(update)
	}
}
