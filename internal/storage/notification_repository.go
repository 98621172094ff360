package storage

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/rental-marketplace/backend/internal/clock"
	"github.com/rental-marketplace/backend/internal/storage/models"
)

// NotificationRepository provides data access for user notifications.
type NotificationRepository struct {
	BaseRepository
}

// NewNotificationRepository creates a new notification repository.
func NewNotificationRepository(db *DB, clk clock.Clock) *NotificationRepository {
	return &NotificationRepository{BaseRepository: NewBaseRepository(db, clk)}
}

// Create inserts a new unread notification.
func (r *NotificationRepository) Create(ctx context.Context, n *models.Notification) error {
	n.ID = GenerateID()
	n.CreatedAt = r.Now()
	n.IsRead = false
	if n.Type == "" {
		n.Type = models.NotificationInfo
	}

	_, err := r.Conn(ctx).ExecContext(ctx, `
		INSERT INTO notifications (id, user_id, message, type, is_read, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, n.ID, n.UserID, n.Message, n.Type, n.IsRead, n.CreatedAt)
	if err != nil {
		return fmt.Errorf("inserting notification: %w", err)
	}

	return nil
}

// GetByID retrieves a notification by ID, or nil if none exists.
func (r *NotificationRepository) GetByID(ctx context.Context, id string) (*models.Notification, error) {
	n := &models.Notification{}
	err := r.Conn(ctx).QueryRowContext(ctx, `
		SELECT id, user_id, message, type, is_read, created_at
		FROM notifications WHERE id = ?
	`, id).Scan(&n.ID, &n.UserID, &n.Message, &n.Type, &n.IsRead, &n.CreatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("querying notification: %w", err)
	}

	return n, nil
}

// ListByUser returns a user's notifications, newest first.
func (r *NotificationRepository) ListByUser(ctx context.Context, userID string) ([]models.Notification, error) {
	rows, err := r.Conn(ctx).QueryContext(ctx, `
		SELECT id, user_id, message, type, is_read, created_at
		FROM notifications WHERE user_id = ?
		ORDER BY created_at DESC, rowid DESC
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("querying notifications: %w", err)
	}
	defer rows.Close()

	var out []models.Notification
	for rows.Next() {
		var n models.Notification
		if err := rows.Scan(&n.ID, &n.UserID, &n.Message, &n.Type, &n.IsRead, &n.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning notification: %w", err)
		}
		out = append(out, n)
	}

	return out, rows.Err()
}

// CountUnread returns how many of a user's notifications are unread.
func (r *NotificationRepository) CountUnread(ctx context.Context, userID string) (int, error) {
	var count int
	err := r.Conn(ctx).QueryRowContext(ctx, `
		SELECT COUNT(*) FROM notifications WHERE user_id = ? AND is_read = 0
	`, userID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("counting notifications: %w", err)
	}
	return count, nil
}

// MarkAllRead flags every notification of a user as read.
func (r *NotificationRepository) MarkAllRead(ctx context.Context, userID string) (int64, error) {
	result, err := r.Conn(ctx).ExecContext(ctx, `
		UPDATE notifications SET is_read = 1 WHERE user_id = ? AND is_read = 0
	`, userID)
	if err != nil {
		return 0, fmt.Errorf("marking notifications read: %w", err)
	}
	return result.RowsAffected()
}

// Delete removes a notification owned by userID.
func (r *NotificationRepository) Delete(ctx context.Context, id, userID string) error {
	result, err := r.Conn(ctx).ExecContext(ctx, `
		DELETE FROM notifications WHERE id = ? AND user_id = ?
	`, id, userID)
	if err != nil {
		return fmt.Errorf("deleting notification: %w", err)
	}

	rows, _ := result.RowsAffected()
	if rows == 0 {
		return sql.ErrNoRows
	}

	return nil
}
