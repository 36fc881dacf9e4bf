package models

import "time"

// ChatMessage is a single message of the live chat. ID and UserID are
// optional depending on the transport; ordering is always arrival order.
type ChatMessage struct {
	ID        string    `json:"id,omitempty"`
	Text      string    `json:"text"`
	UserID    string    `json:"userId,omitempty"`
	Username  string    `json:"username"`
	Timestamp time.Time `json:"timestamp"`
}

// OutgoingMessage is the body of a send_message event.
type OutgoingMessage struct {
	Text string `json:"text"`
}
