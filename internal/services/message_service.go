package services

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/bartermarket/backend/internal/config"
	"github.com/bartermarket/backend/internal/metrics"
	"github.com/bartermarket/backend/internal/models"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const messagePreviewLength = 100

const (
	profileExistsSQL = `SELECT EXISTS(SELECT 1 FROM profiles WHERE id = $1)`

	insertMessageSQL = `
		INSERT INTO messages (id, sender_id, receiver_id, content, is_read, created_at)
		VALUES ($1, $2, $3, $4, FALSE, $5)`

	// unread_count of the excluded row is 0 for the sender side and 1 for the
	// receiver side.
	upsertConversationSQL = `
		INSERT INTO conversations (user_id, other_user_id, last_message, last_message_at, unread_count)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (user_id, other_user_id) DO UPDATE
		SET last_message = EXCLUDED.last_message,
			last_message_at = EXCLUDED.last_message_at,
			unread_count = conversations.unread_count + EXCLUDED.unread_count`

	selectConversationsSQL = `
		SELECT c.user_id, c.other_user_id, c.last_message, c.last_message_at, c.unread_count,
			p.id, p.username, p.display_name, p.avatar_url, p.location
		FROM conversations c
		JOIN profiles p ON p.id = c.other_user_id
		WHERE c.user_id = $1
		ORDER BY c.last_message_at DESC`

	selectMessagesSQL = `
		SELECT id, sender_id, receiver_id, content, is_read, created_at
		FROM messages
		WHERE (sender_id = $1 AND receiver_id = $2) OR (sender_id = $2 AND receiver_id = $1)
		ORDER BY created_at ASC, id ASC`

	markMessagesReadSQL = `UPDATE messages SET is_read = TRUE WHERE sender_id = $1 AND receiver_id = $2 AND is_read = FALSE`

	resetUnreadSQL = `UPDATE conversations SET unread_count = 0 WHERE user_id = $1 AND other_user_id = $2`
)

// MessageService relays direct messages and keeps one conversation row per
// direction of every pair in step with the message log.
type MessageService struct {
	db        *sql.DB
	config    *config.MarketConfig
	publisher Publisher
	notifier  Notifier
	log       *zap.Logger
}

func NewMessageService(db *sql.DB, cfg *config.MarketConfig, publisher Publisher, notifier Notifier, log *zap.Logger) *MessageService {
	return &MessageService{
		db:        db,
		config:    cfg,
		publisher: publisher,
		notifier:  notifier,
		log:       log,
	}
}

func (s *MessageService) Send(ctx context.Context, senderID, receiverID, content string) (*models.Message, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, fmt.Errorf("%w: content is empty", ErrInvalidMessage)
	}
	if utf8.RuneCountInString(content) > s.config.MaxMessageLength {
		return nil, fmt.Errorf("%w: content exceeds %d characters", ErrInvalidMessage, s.config.MaxMessageLength)
	}
	if senderID == receiverID {
		return nil, fmt.Errorf("%w: cannot message yourself", ErrInvalidMessage)
	}

	var exists bool
	if err := s.db.QueryRowContext(ctx, profileExistsSQL, receiverID).Scan(&exists); err != nil {
		return nil, fmt.Errorf("failed to look up receiver: %w", err)
	}
	if !exists {
		return nil, fmt.Errorf("%w: receiver %s", ErrNotFound, receiverID)
	}

	msg := &models.Message{
		ID:         uuid.NewString(),
		SenderID:   senderID,
		ReceiverID: receiverID,
		Content:    content,
		CreatedAt:  time.Now().UTC(),
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin send: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, insertMessageSQL, msg.ID, msg.SenderID, msg.ReceiverID, msg.Content, msg.CreatedAt); err != nil {
		return nil, fmt.Errorf("failed to store message: %w", err)
	}

	if _, err := tx.ExecContext(ctx, upsertConversationSQL, senderID, receiverID, content, msg.CreatedAt, 0); err != nil {
		return nil, fmt.Errorf("failed to update sender conversation: %w", err)
	}
	if _, err := tx.ExecContext(ctx, upsertConversationSQL, receiverID, senderID, content, msg.CreatedAt, 1); err != nil {
		return nil, fmt.Errorf("failed to update receiver conversation: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit send: %w", err)
	}
	metrics.MessagesSent.Inc()

	if s.publisher != nil {
		if err := s.publisher.Publish(ctx, receiverID, "new_message", msg); err != nil {
			s.log.Warn("[MESSAGE] realtime delivery failed", zap.String("message_id", msg.ID), zap.Error(err))
		}
	}

	if s.notifier != nil {
		_, err := s.notifier.Emit(ctx, models.NotificationInput{
			UserID:      receiverID,
			Type:        models.NotificationMessage,
			Title:       "New message",
			Message:     preview(content),
			RelatedID:   senderID,
			RelatedType: "conversation",
		})
		if err != nil {
			s.log.Warn("[MESSAGE] failed to emit notification", zap.String("message_id", msg.ID), zap.Error(err))
		}
	}

	return msg, nil
}

// ListConversations returns the inbox of userID, most recent activity first.
func (s *MessageService) ListConversations(ctx context.Context, userID string) ([]models.Conversation, error) {
	rows, err := s.db.QueryContext(ctx, selectConversationsSQL, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list conversations: %w", err)
	}
	defer rows.Close()

	conversations := []models.Conversation{}
	for rows.Next() {
		var c models.Conversation
		err := rows.Scan(&c.UserID, &c.OtherUserID, &c.LastMessage, &c.LastMessageAt, &c.UnreadCount,
			&c.OtherUser.ID, &c.OtherUser.Username, &c.OtherUser.DisplayName, &c.OtherUser.AvatarURL, &c.OtherUser.Location)
		if err != nil {
			return nil, err
		}
		conversations = append(conversations, c)
	}
	return conversations, rows.Err()
}

// ListMessages returns the history between two users, oldest first.
func (s *MessageService) ListMessages(ctx context.Context, userID, otherUserID string) ([]models.Message, error) {
	rows, err := s.db.QueryContext(ctx, selectMessagesSQL, userID, otherUserID)
	if err != nil {
		return nil, fmt.Errorf("failed to list messages: %w", err)
	}
	defer rows.Close()

	messages := []models.Message{}
	for rows.Next() {
		var m models.Message
		if err := rows.Scan(&m.ID, &m.SenderID, &m.ReceiverID, &m.Content, &m.IsRead, &m.CreatedAt); err != nil {
			return nil, err
		}
		messages = append(messages, m)
	}
	return messages, rows.Err()
}

// MarkConversationRead marks everything otherUserID sent to userID as read
// and clears the unread counter. It returns the number of messages marked.
func (s *MessageService) MarkConversationRead(ctx context.Context, userID, otherUserID string) (int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin mark read: %w", err)
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx, markMessagesReadSQL, otherUserID, userID)
	if err != nil {
		return 0, fmt.Errorf("failed to mark messages read: %w", err)
	}
	marked, err := result.RowsAffected()
	if err != nil {
		return 0, err
	}

	if _, err := tx.ExecContext(ctx, resetUnreadSQL, userID, otherUserID); err != nil {
		return 0, fmt.Errorf("failed to reset unread count: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit mark read: %w", err)
	}

	if marked > 0 && s.publisher != nil {
		if err := s.publisher.Publish(ctx, otherUserID, "messages_read", map[string]string{"by": userID}); err != nil {
			s.log.Warn("[MESSAGE] realtime read receipt failed", zap.Error(err))
		}
	}
	return marked, nil
}

func preview(content string) string {
	if utf8.RuneCountInString(content) <= messagePreviewLength {
		return content
	}
	return string([]rune(content)[:messagePreviewLength]) + "…"
}
