// Package inbox serves the notification inbox. It is the polled source of
// truth; realtime pushes only tell clients to refresh sooner.
package inbox

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"

	"github.com/rental-marketplace/backend/internal/apperror"
	"github.com/rental-marketplace/backend/internal/realtime"
	"github.com/rental-marketplace/backend/internal/storage"
	"github.com/rental-marketplace/backend/internal/storage/models"
	"github.com/rental-marketplace/backend/internal/validation"
)

// Service manages a user's notifications.
type Service struct {
	notifications *storage.NotificationRepository
	users         *storage.UserRepository
	notifier      *realtime.Notifier
	validate      *validation.Validator
	log           *slog.Logger
}

// NewService creates a new inbox service.
func NewService(repos *storage.Repositories, notifier *realtime.Notifier, v *validation.Validator, log *slog.Logger) *Service {
	if v == nil {
		v = validation.New()
	}
	return &Service{
		notifications: repos.Notifications,
		users:         repos.Users,
		notifier:      notifier,
		validate:      v,
		log:           log,
	}
}

// List returns the user's notifications, newest first.
func (s *Service) List(ctx context.Context, userID string) ([]models.Notification, error) {
	list, err := s.notifications.ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if list == nil {
		list = []models.Notification{}
	}
	return list, nil
}

// UnseenCount returns the number of unread notifications.
func (s *Service) UnseenCount(ctx context.Context, userID string) (int, error) {
	return s.notifications.CountUnread(ctx, userID)
}

// MarkSeen marks every notification of the user as read.
func (s *Service) MarkSeen(ctx context.Context, userID string) (int64, error) {
	return s.notifications.MarkAllRead(ctx, userID)
}

// Delete removes one of the user's notifications and tells their other
// sessions to drop it.
func (s *Service) Delete(ctx context.Context, notificationID, userID string) error {
	n, err := s.notifications.GetByID(ctx, notificationID)
	if err != nil {
		return err
	}
	if n == nil {
		return apperror.NotFound("notification")
	}
	if n.UserID != userID {
		return apperror.Forbidden("notification belongs to another user")
	}

	if err := s.notifications.Delete(ctx, notificationID, userID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return apperror.NotFound("notification")
		}
		return err
	}

	if u, err := s.users.GetByID(ctx, userID); err == nil && u != nil {
		s.notifier.NotificationRemoved(ctx, u.Email, notificationID)
	}
	return nil
}

// SendInput is an admin-authored notification.
type SendInput struct {
	UserID  string `json:"userId" validate:"required"`
	Message string `json:"message" validate:"required,max=1000"`
	Type    string `json:"type" validate:"omitempty,oneof=info success error"`
}

// Send stores a notification for the recipient and pushes it.
func (s *Service) Send(ctx context.Context, in SendInput) (*models.Notification, error) {
	if err := s.validate.Struct(&in); err != nil {
		return nil, err
	}

	recipient, err := s.users.GetByID(ctx, in.UserID)
	if err != nil {
		return nil, err
	}
	if recipient == nil {
		return nil, apperror.NotFound("user")
	}

	n := &models.Notification{UserID: recipient.ID, Message: in.Message, Type: in.Type}
	if err := s.notifications.Create(ctx, n); err != nil {
		return nil, err
	}

	s.log.Info("notification sent", "notification_id", n.ID, "user_id", recipient.ID, "type", n.Type)
	s.notifier.NotificationCreated(ctx, recipient.Email, n)
	return n, nil
}
