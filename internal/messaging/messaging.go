// Package messaging implements direct conversations between users and
// fans new messages out to participants.
package messaging

import (
	"context"
	"log/slog"
	"strings"

	"github.com/rental-marketplace/backend/internal/apperror"
	"github.com/rental-marketplace/backend/internal/realtime"
	"github.com/rental-marketplace/backend/internal/storage"
	"github.com/rental-marketplace/backend/internal/storage/models"
	"github.com/rental-marketplace/backend/internal/validation"
)

// Service manages conversations and messages.
type Service struct {
	db            *storage.DB
	conversations *storage.ConversationRepository
	users         *storage.UserRepository
	notifier      *realtime.Notifier
	validate      *validation.Validator
	log           *slog.Logger
}

// NewService creates a new messaging service.
func NewService(db *storage.DB, repos *storage.Repositories, notifier *realtime.Notifier, v *validation.Validator, log *slog.Logger) *Service {
	if v == nil {
		v = validation.New()
	}
	return &Service{
		db:            db,
		conversations: repos.Conversations,
		users:         repos.Users,
		notifier:      notifier,
		validate:      v,
		log:           log,
	}
}

// StartInput names the other party of a direct conversation.
type StartInput struct {
	UserID string `json:"userId" validate:"required"`
}

// GetOrCreate returns the direct conversation between userID and the other
// party, creating it on first contact.
func (s *Service) GetOrCreate(ctx context.Context, userID string, in StartInput) (*models.Conversation, error) {
	if err := s.validate.Struct(&in); err != nil {
		return nil, err
	}
	if in.UserID == userID {
		return nil, apperror.Validation("cannot start a conversation with yourself", map[string]any{"userId": in.UserID})
	}

	var conv *models.Conversation
	err := s.db.Transaction(ctx, func(ctx context.Context) error {
		other, err := s.users.GetByID(ctx, in.UserID)
		if err != nil {
			return err
		}
		if other == nil {
			return apperror.NotFound("user")
		}

		existing, err := s.conversations.FindDirect(ctx, userID, in.UserID)
		if err != nil {
			return err
		}
		if existing == nil {
			if existing, err = s.conversations.Create(ctx, userID, in.UserID); err != nil {
				return err
			}
			s.log.Info("conversation started", "conversation_id", existing.ID)
		}

		conv, err = s.conversations.GetByID(ctx, existing.ID)
		return err
	})
	if err != nil {
		return nil, err
	}

	return conv, nil
}

// List returns the user's conversations, most recently active first.
func (s *Service) List(ctx context.Context, userID string) ([]models.Conversation, error) {
	list, err := s.conversations.ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if list == nil {
		list = []models.Conversation{}
	}
	return list, nil
}

// Messages returns a conversation's messages. Only participants may read.
func (s *Service) Messages(ctx context.Context, conversationID, userID string) ([]models.Message, error) {
	if err := s.authorize(ctx, conversationID, userID); err != nil {
		return nil, err
	}

	msgs, err := s.conversations.ListMessages(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	if msgs == nil {
		msgs = []models.Message{}
	}
	return msgs, nil
}

// IsParticipant reports whether userID may follow a conversation's channel.
func (s *Service) IsParticipant(ctx context.Context, conversationID, userID string) (bool, error) {
	return s.conversations.IsParticipant(ctx, conversationID, userID)
}

// SendInput is a chat message. At least one of the fields must be set.
type SendInput struct {
	Body  *string `json:"body" validate:"omitempty,max=5000"`
	Image *string `json:"image" validate:"omitempty,url"`
	Voice *string `json:"voice" validate:"omitempty,url"`
}

// Send stores a message from senderID, then pushes messages:new to the
// conversation channel and conversation:update to every participant.
func (s *Service) Send(ctx context.Context, conversationID, senderID string, in SendInput) (*models.Message, error) {
	if err := s.validate.Struct(&in); err != nil {
		return nil, err
	}
	if blank(in.Body) && blank(in.Image) && blank(in.Voice) {
		return nil, apperror.Validation("message must have a body, image or voice note", nil)
	}
	if err := s.authorize(ctx, conversationID, senderID); err != nil {
		return nil, err
	}

	sender, err := s.users.GetByID(ctx, senderID)
	if err != nil {
		return nil, err
	}
	if sender == nil {
		return nil, apperror.NotFound("user")
	}

	msg := &models.Message{
		ConversationID: conversationID,
		SenderID:       senderID,
		Body:           in.Body,
		Image:          in.Image,
		Voice:          in.Voice,
	}
	if err := s.conversations.AddMessage(ctx, msg); err != nil {
		return nil, err
	}
	msg.Sender = sender

	s.notifier.MessageCreated(ctx, msg)

	participants, err := s.conversations.Participants(ctx, conversationID)
	if err != nil {
		s.log.Warn("conversation update not pushed", "conversation_id", conversationID, "error", err)
		return msg, nil
	}
	update := realtime.ConversationUpdatePayload{
		ID:            conversationID,
		LastMessageAt: msg.CreatedAt,
		Messages:      []models.Message{*msg},
	}
	for _, p := range participants {
		s.notifier.ConversationUpdated(ctx, p.Email, update)
	}

	return msg, nil
}

func (s *Service) authorize(ctx context.Context, conversationID, userID string) error {
	conv, err := s.conversations.GetByID(ctx, conversationID)
	if err != nil {
		return err
	}
	if conv == nil {
		return apperror.NotFound("conversation")
	}
	for _, u := range conv.Users {
		if u.ID == userID {
			return nil
		}
	}
	return apperror.Forbidden("not a participant of this conversation")
}

func blank(s *string) bool {
	return s == nil || strings.TrimSpace(*s) == ""
}
