package handlers

import (
	"net/http"
	"strings"

	"github.com/ronerog/furia-app/internal/models"
	"github.com/ronerog/furia-app/pkg/utils"
)

// maxMessageLength caps a single chat message.
const maxMessageLength = 500

// ChatService defines the chat channel operations exposed over the bridge.
type ChatService interface {
	IsOpen() bool
	Connected() bool
	Messages() []models.ChatMessage
	OnlineUsers() int
	Send(text string) error
}

// ChatHandler handles the live chat endpoints.
type ChatHandler struct {
	chat ChatService
}

// NewChatHandler creates a chat handler backed by the chat channel.
func NewChatHandler(chat ChatService) *ChatHandler {
	return &ChatHandler{chat: chat}
}

// ChatResponse is the body of GET /api/v1/chat/messages.
type ChatResponse struct {
	Open        bool                 `json:"open"`
	Connected   bool                 `json:"connected"`
	OnlineUsers int                  `json:"onlineUsers"`
	Messages    []models.ChatMessage `json:"messages"`
}

// SendRequest is the body of POST /api/v1/chat/messages.
type SendRequest struct {
	Text string `json:"text"`
}

// Messages returns the chat buffer in arrival order.
func (h *ChatHandler) Messages(w http.ResponseWriter, r *http.Request) {
	messages := h.chat.Messages()
	if messages == nil {
		messages = []models.ChatMessage{}
	}
	utils.RespondWithJSON(w, r, http.StatusOK, ChatResponse{
		Open:        h.chat.IsOpen(),
		Connected:   h.chat.Connected(),
		OnlineUsers: h.chat.OnlineUsers(),
		Messages:    messages,
	})
}

// Send emits a message on the open connection.
//
// The message is not in the buffer yet when this returns; it appears once
// the server broadcasts it back, hence 202 Accepted.
//
// Responses:
//   - 202: message handed to the connection (or blank and ignored)
//   - 400: message too long
//   - 409: chat_closed, no connection is open
//   - 502: the connection failed to send
func (h *ChatHandler) Send(w http.ResponseWriter, r *http.Request) {
	var req SendRequest
	if err := utils.DecodeJSON(r, &req); err != nil {
		utils.RespondWithError(w, r, http.StatusBadRequest, "invalid_request", "Invalid request body")
		return
	}
	if len([]rune(strings.TrimSpace(req.Text))) > maxMessageLength {
		utils.RespondWithError(w, r, http.StatusBadRequest, "message_too_long", "Message is too long")
		return
	}
	if !h.chat.IsOpen() {
		utils.RespondWithError(w, r, http.StatusConflict, "chat_closed", "Chat is not connected")
		return
	}

	if err := h.chat.Send(req.Text); err != nil {
		utils.RespondWithError(w, r, http.StatusBadGateway, "send_failed", "Failed to send message")
		return
	}
	utils.RespondWithMessage(w, r, http.StatusAccepted, "Message sent")
}
