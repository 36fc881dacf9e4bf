package testutil

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/ronerog/furia-app/internal/models"
)

// frame mirrors the realtime wire envelope.
type frame struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

type socketClient struct {
	ws       *websocket.Conn
	username string
	writeMu  sync.Mutex
}

func (c *socketClient) send(event string, v interface{}) {
	data, _ := json.Marshal(v)
	out, _ := json.Marshal(frame{Type: event, Data: data})

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	_ = c.ws.SetWriteDeadline(time.Now().Add(time.Second))
	_ = c.ws.WriteMessage(websocket.TextMessage, out)
}

// SocketServer is a fake chat server. On connect it sends the history
// snapshot and the online count; send_message frames are broadcast back
// to every client as new_message.
type SocketServer struct {
	Server *httptest.Server

	upgrader websocket.Upgrader
	mu       sync.Mutex
	tokens   map[string]string // token -> username; empty map accepts any token
	history  []models.ChatMessage
	clients  map[*socketClient]struct{}
	connects int
	received []string
}

// NewSocketServer starts a fake chat server seeded with history. The
// server is closed on test cleanup.
func NewSocketServer(t *testing.T, history []models.ChatMessage) *SocketServer {
	t.Helper()

	s := &SocketServer{
		upgrader: websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }},
		tokens:   make(map[string]string),
		history:  history,
		clients:  make(map[*socketClient]struct{}),
	}
	s.Server = httptest.NewServer(http.HandlerFunc(s.serve))
	t.Cleanup(func() {
		s.Drop()
		s.Server.Close()
	})
	return s
}

// URL returns the ws:// endpoint.
func (s *SocketServer) URL() string {
	return "ws" + strings.TrimPrefix(s.Server.URL, "http") + "/ws"
}

// Allow registers token for username. Once any token is registered,
// unknown tokens get 401.
func (s *SocketServer) Allow(token, username string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tokens[token] = username
}

// Connects returns how many handshakes succeeded.
func (s *SocketServer) Connects() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.connects
}

// Clients returns the number of open connections.
func (s *SocketServer) Clients() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.clients)
}

// Received returns the texts of every send_message frame so far.
func (s *SocketServer) Received() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.received...)
}

// Broadcast sends an event to every connected client.
func (s *SocketServer) Broadcast(event string, v interface{}) {
	for _, c := range s.snapshot() {
		c.send(event, v)
	}
}

// Drop closes every client connection from the server side.
func (s *SocketServer) Drop() {
	for _, c := range s.snapshot() {
		_ = c.ws.Close()
	}
}

func (s *SocketServer) snapshot() []*socketClient {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*socketClient, 0, len(s.clients))
	for c := range s.clients {
		out = append(out, c)
	}
	return out
}

func (s *SocketServer) serve(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" {
		token = strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
	}

	s.mu.Lock()
	username, known := s.tokens[token]
	open := len(s.tokens) == 0
	s.mu.Unlock()
	if !known && !open {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	if username == "" {
		username = "fan"
	}

	ws, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	client := &socketClient{ws: ws, username: username}

	s.mu.Lock()
	s.clients[client] = struct{}{}
	s.connects++
	history := append([]models.ChatMessage{}, s.history...)
	count := len(s.clients)
	s.mu.Unlock()

	client.send("recent_messages", history)
	s.Broadcast("user_count", count)

	defer func() {
		s.mu.Lock()
		delete(s.clients, client)
		remaining := len(s.clients)
		s.mu.Unlock()
		_ = ws.Close()
		s.Broadcast("user_count", remaining)
	}()

	for {
		_, data, err := ws.ReadMessage()
		if err != nil {
			return
		}
		var in frame
		if err := json.Unmarshal(data, &in); err != nil || in.Type != "send_message" {
			continue
		}
		var body models.OutgoingMessage
		if err := json.Unmarshal(in.Data, &body); err != nil {
			continue
		}

		msg := models.ChatMessage{
			ID:        uuid.NewString(),
			Text:      body.Text,
			Username:  client.username,
			Timestamp: time.Now().UTC(),
		}
		s.mu.Lock()
		s.received = append(s.received, body.Text)
		s.history = append(s.history, msg)
		s.mu.Unlock()
		s.Broadcast("new_message", msg)
	}
}
