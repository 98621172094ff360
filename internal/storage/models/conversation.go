package models

import "time"

// Conversation is a chat thread between participants.
type Conversation struct {
	ID            string    `json:"id"`
	CreatedAt     time.Time `json:"createdAt"`
	LastMessageAt time.Time `json:"lastMessageAt"`
	Users         []User    `json:"users,omitempty"`
}

// Message is a single chat message. Image and voice are opaque media URLs.
type Message struct {
	ID             string    `json:"id"`
	ConversationID string    `json:"conversationId"`
	SenderID       string    `json:"senderId"`
	Body           *string   `json:"body,omitempty"`
	Image          *string   `json:"image,omitempty"`
	Voice          *string   `json:"voice,omitempty"`
	CreatedAt      time.Time `json:"createdAt"`
	Sender         *User     `json:"sender,omitempty"`
}
