package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/rental-marketplace/backend/internal/clock"
	"github.com/rental-marketplace/backend/internal/storage/models"
)

// ConversationRepository provides data access for conversations and messages.
type ConversationRepository struct {
	BaseRepository
}

// NewConversationRepository creates a new conversation repository.
func NewConversationRepository(db *DB, clk clock.Clock) *ConversationRepository {
	return &ConversationRepository{BaseRepository: NewBaseRepository(db, clk)}
}

// Create inserts a conversation with the given participants.
func (r *ConversationRepository) Create(ctx context.Context, userIDs ...string) (*models.Conversation, error) {
	now := r.Now()
	c := &models.Conversation{ID: GenerateID(), CreatedAt: now, LastMessageAt: now}

	err := r.DB().Transaction(ctx, func(ctx context.Context) error {
		q := r.Conn(ctx)
		if _, err := q.ExecContext(ctx, `
			INSERT INTO conversations (id, created_at, last_message_at) VALUES (?, ?, ?)
		`, c.ID, c.CreatedAt, c.LastMessageAt); err != nil {
			return fmt.Errorf("inserting conversation: %w", err)
		}
		for _, id := range userIDs {
			if _, err := q.ExecContext(ctx, `
				INSERT INTO conversation_participants (conversation_id, user_id) VALUES (?, ?)
			`, c.ID, id); err != nil {
				return fmt.Errorf("inserting participant: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return c, nil
}

// FindDirect returns the two-party conversation between a and b, or nil.
func (r *ConversationRepository) FindDirect(ctx context.Context, a, b string) (*models.Conversation, error) {
	c := &models.Conversation{}
	err := r.Conn(ctx).QueryRowContext(ctx, `
		SELECT c.id, c.created_at, c.last_message_at
		FROM conversations c
		WHERE (SELECT COUNT(*) FROM conversation_participants p WHERE p.conversation_id = c.id) = 2
		  AND EXISTS (SELECT 1 FROM conversation_participants p WHERE p.conversation_id = c.id AND p.user_id = ?)
		  AND EXISTS (SELECT 1 FROM conversation_participants p WHERE p.conversation_id = c.id AND p.user_id = ?)
		LIMIT 1
	`, a, b).Scan(&c.ID, &c.CreatedAt, &c.LastMessageAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("querying direct conversation: %w", err)
	}

	return c, nil
}

// GetByID retrieves a conversation with its participants, or nil.
func (r *ConversationRepository) GetByID(ctx context.Context, id string) (*models.Conversation, error) {
	c := &models.Conversation{}
	err := r.Conn(ctx).QueryRowContext(ctx, `
		SELECT id, created_at, last_message_at FROM conversations WHERE id = ?
	`, id).Scan(&c.ID, &c.CreatedAt, &c.LastMessageAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("querying conversation: %w", err)
	}

	users, err := r.Participants(ctx, id)
	if err != nil {
		return nil, err
	}
	c.Users = users

	return c, nil
}

// ListByUser returns a user's conversations, most recently active first.
func (r *ConversationRepository) ListByUser(ctx context.Context, userID string) ([]models.Conversation, error) {
	rows, err := r.Conn(ctx).QueryContext(ctx, `
		SELECT c.id, c.created_at, c.last_message_at
		FROM conversations c
		JOIN conversation_participants p ON p.conversation_id = c.id
		WHERE p.user_id = ?
		ORDER BY c.last_message_at DESC
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("querying conversations: %w", err)
	}

	var convs []models.Conversation
	for rows.Next() {
		var c models.Conversation
		if err := rows.Scan(&c.ID, &c.CreatedAt, &c.LastMessageAt); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scanning conversation: %w", err)
		}
		convs = append(convs, c)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range convs {
		users, err := r.Participants(ctx, convs[i].ID)
		if err != nil {
			return nil, err
		}
		convs[i].Users = users
	}

	return convs, nil
}

// Participants returns the users in a conversation.
func (r *ConversationRepository) Participants(ctx context.Context, conversationID string) ([]models.User, error) {
	rows, err := r.Conn(ctx).QueryContext(ctx, `
		SELECT u.id, u.name, u.email, u.image, u.role, u.created_at
		FROM users u
		JOIN conversation_participants p ON p.user_id = u.id
		WHERE p.conversation_id = ?
		ORDER BY u.name
	`, conversationID)
	if err != nil {
		return nil, fmt.Errorf("querying participants: %w", err)
	}
	defer rows.Close()

	var users []models.User
	for rows.Next() {
		var u models.User
		if err := rows.Scan(&u.ID, &u.Name, &u.Email, &u.Image, &u.Role, &u.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning participant: %w", err)
		}
		users = append(users, u)
	}

	return users, rows.Err()
}

// IsParticipant reports whether userID belongs to the conversation.
func (r *ConversationRepository) IsParticipant(ctx context.Context, conversationID, userID string) (bool, error) {
	var exists int
	err := r.Conn(ctx).QueryRowContext(ctx, `
		SELECT 1 FROM conversation_participants WHERE conversation_id = ? AND user_id = ?
	`, conversationID, userID).Scan(&exists)

	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("querying participant: %w", err)
	}

	return true, nil
}

// AddMessage inserts a message and bumps the conversation's last_message_at.
func (r *ConversationRepository) AddMessage(ctx context.Context, m *models.Message) error {
	m.ID = GenerateID()
	m.CreatedAt = r.Now()

	return r.DB().Transaction(ctx, func(ctx context.Context) error {
		q := r.Conn(ctx)
		if _, err := q.ExecContext(ctx, `
			INSERT INTO messages (id, conversation_id, sender_id, body, image, voice, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?)
		`, m.ID, m.ConversationID, m.SenderID, m.Body, m.Image, m.Voice, m.CreatedAt); err != nil {
			return fmt.Errorf("inserting message: %w", err)
		}
		if err := r.touch(ctx, m.ConversationID, m.CreatedAt); err != nil {
			return err
		}
		return nil
	})
}

func (r *ConversationRepository) touch(ctx context.Context, id string, at time.Time) error {
	if _, err := r.Conn(ctx).ExecContext(ctx, `
		UPDATE conversations SET last_message_at = ? WHERE id = ?
	`, at, id); err != nil {
		return fmt.Errorf("updating conversation: %w", err)
	}
	return nil
}

// ListMessages returns a conversation's messages with senders, oldest first.
func (r *ConversationRepository) ListMessages(ctx context.Context, conversationID string) ([]models.Message, error) {
	rows, err := r.Conn(ctx).QueryContext(ctx, `
		SELECT m.id, m.conversation_id, m.sender_id, m.body, m.image, m.voice, m.created_at,
		       u.id, u.name, u.email, u.image, u.role, u.created_at
		FROM messages m
		JOIN users u ON u.id = m.sender_id
		WHERE m.conversation_id = ?
		ORDER BY m.created_at, m.rowid
	`, conversationID)
	if err != nil {
		return nil, fmt.Errorf("querying messages: %w", err)
	}
	defer rows.Close()

	var msgs []models.Message
	for rows.Next() {
		var m models.Message
		s := &models.User{}
		if err := rows.Scan(
			&m.ID, &m.ConversationID, &m.SenderID, &m.Body, &m.Image, &m.Voice, &m.CreatedAt,
			&s.ID, &s.Name, &s.Email, &s.Image, &s.Role, &s.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scanning message: %w", err)
		}
		m.Sender = s
		msgs = append(msgs, m)
	}

	return msgs, rows.Err()
}
