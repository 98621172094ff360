package realtime

import (
	"context"
	"log/slog"
	"time"

	"github.com/rental-marketplace/backend/internal/storage/models"
)

// Notifier sends typed marketplace events through a Publisher. Every method
// is fire-and-forget: failures are logged and swallowed, and clients recover
// missed events by polling.
type Notifier struct {
	pub Publisher
	log *slog.Logger
}

// NewNotifier creates a notifier over pub. A nil pub disables delivery.
func NewNotifier(pub Publisher, log *slog.Logger) *Notifier {
	return &Notifier{pub: pub, log: log}
}

// ConversationUpdatePayload is the payload of conversation:update events.
type ConversationUpdatePayload struct {
	ID            string           `json:"id"`
	LastMessageAt time.Time        `json:"lastMessageAt"`
	Messages      []models.Message `json:"messages"`
}

// NotificationCreated pushes notification:new to the recipient's channel.
func (n *Notifier) NotificationCreated(ctx context.Context, recipientEmail string, notification *models.Notification) {
	n.publish(ctx, UserNotificationsChannel(recipientEmail), EventNotificationNew, notification)
}

// NotificationRemoved pushes notification:remove with the removed ID.
func (n *Notifier) NotificationRemoved(ctx context.Context, recipientEmail, notificationID string) {
	n.publish(ctx, UserNotificationsChannel(recipientEmail), EventNotificationRemove, notificationID)
}

// MessageCreated pushes messages:new to the conversation channel.
func (n *Notifier) MessageCreated(ctx context.Context, message *models.Message) {
	n.publish(ctx, ConversationChannel(message.ConversationID), EventMessagesNew, message)
}

// ConversationUpdated pushes conversation:update to a participant's channel.
func (n *Notifier) ConversationUpdated(ctx context.Context, participantEmail string, update ConversationUpdatePayload) {
	n.publish(ctx, ConversationUpdatesChannel(participantEmail), EventConversationUpdate, update)
}

func (n *Notifier) publish(ctx context.Context, channel, event string, payload any) {
	if n == nil || n.pub == nil {
		return
	}
	if err := n.pub.Publish(ctx, channel, event, payload); err != nil {
		n.log.Warn("realtime delivery failed", "channel", channel, "event", event, "error", err)
	}
}
