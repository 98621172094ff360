package realtime

import (
	"encoding/json"
	"time"
)

// MessageType identifies the kind of websocket frame.
type MessageType string

const (
	// Server -> Client
	TypeEvent MessageType = "event"

	// Client -> Server commands
	TypeSubscribe   MessageType = "subscribe"
	TypeUnsubscribe MessageType = "unsubscribe"
	TypePing        MessageType = "ping"

	// Server -> Client responses
	TypeSubscribeAck   MessageType = "subscribe.ack"
	TypeUnsubscribeAck MessageType = "unsubscribe.ack"
	TypePong           MessageType = "pong"
	TypeError          MessageType = "error"
)

// Event names delivered on channels.
const (
	EventNotificationNew    = "notification:new"
	EventNotificationRemove = "notification:remove"
	EventConversationUpdate = "conversation:update"
	EventMessagesNew        = "messages:new"
)

// Frame is the envelope of every server-to-client websocket message.
type Frame struct {
	Type      MessageType `json:"type"`
	Channel   string      `json:"channel,omitempty"`
	Event     string      `json:"event,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
	Payload   any         `json:"payload,omitempty"`
}

// NewEventFrame creates an event frame stamped with the current time.
func NewEventFrame(channel, event string, payload any) Frame {
	return Frame{
		Type:      TypeEvent,
		Channel:   channel,
		Event:     event,
		Timestamp: time.Now().UTC(),
		Payload:   payload,
	}
}

// NewReply creates a command response frame.
func NewReply(msgType MessageType, channel string, payload any) Frame {
	return Frame{
		Type:      msgType,
		Channel:   channel,
		Timestamp: time.Now().UTC(),
		Payload:   payload,
	}
}

// JSON serializes the frame.
func (f Frame) JSON() ([]byte, error) {
	return json.Marshal(f)
}

// Command is a client-to-server websocket message.
type Command struct {
	Type    MessageType `json:"type"`
	Channel string      `json:"channel,omitempty"`
}

// ErrorPayload is the payload of error replies.
type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// UserNotificationsChannel is the per-user notification channel.
func UserNotificationsChannel(email string) string {
	return "user-" + email + "-notifications"
}

// ConversationUpdatesChannel is the per-user conversation list channel.
func ConversationUpdatesChannel(email string) string {
	return email
}

// ConversationChannel is the per-conversation message channel.
func ConversationChannel(conversationID string) string {
	return conversationID
}
