package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/bartermarket/backend/internal/metrics"
	"github.com/bartermarket/backend/internal/models"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	defaultNotificationLimit = 50
	maxNotificationLimit     = 200
)

const (
	selectPreferenceSQL = `SELECT enabled FROM notification_preferences WHERE user_id = $1 AND type = $2`

	insertNotificationSQL = `
		INSERT INTO notifications (id, user_id, type, title, message, related_id, related_type, is_read, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, FALSE, $8)`

	unreadCountSQL = `SELECT COUNT(*) FROM notifications WHERE user_id = $1 AND is_read = FALSE`

	selectNotificationOwnerSQL = `SELECT user_id FROM notifications WHERE id = $1`

	markNotificationReadSQL = `UPDATE notifications SET is_read = TRUE WHERE id = $1`

	markAllNotificationsReadSQL = `UPDATE notifications SET is_read = TRUE WHERE user_id = $1 AND is_read = FALSE`

	selectPreferencesSQL = `SELECT type, enabled FROM notification_preferences WHERE user_id = $1`

	upsertPreferenceSQL = `
		INSERT INTO notification_preferences (user_id, type, enabled)
		VALUES ($1, $2, $3)
		ON CONFLICT (user_id, type) DO UPDATE SET enabled = EXCLUDED.enabled`
)

// Publisher pushes live events to a user's open connections.
type Publisher interface {
	Publish(ctx context.Context, userID, event string, data any) error
}

type NotificationService struct {
	db        *sql.DB
	publisher Publisher
	log       *zap.Logger
}

func NewNotificationService(db *sql.DB, publisher Publisher, log *zap.Logger) *NotificationService {
	return &NotificationService{db: db, publisher: publisher, log: log}
}

// Emit stores a notification unless the user switched its type off, then
// pushes it to live connections. A nil notification with a nil error means
// the user opted out.
func (s *NotificationService) Emit(ctx context.Context, in models.NotificationInput) (*models.Notification, error) {
	if in.UserID == "" {
		return nil, validationf("notification recipient is required")
	}
	if !slices.Contains(models.NotificationTypes, in.Type) {
		return nil, validationf("unknown notification type %q", in.Type)
	}
	if strings.TrimSpace(in.Title) == "" {
		return nil, validationf("notification title is required")
	}

	enabled, err := s.enabled(ctx, in.UserID, in.Type)
	if err != nil {
		metrics.NotificationsEmitted.WithLabelValues(in.Type, "error").Inc()
		return nil, err
	}
	if !enabled {
		metrics.NotificationsEmitted.WithLabelValues(in.Type, "muted").Inc()
		return nil, nil
	}

	n := &models.Notification{
		ID:          uuid.NewString(),
		UserID:      in.UserID,
		Type:        in.Type,
		Title:       in.Title,
		Message:     in.Message,
		RelatedID:   in.RelatedID,
		RelatedType: in.RelatedType,
		CreatedAt:   time.Now().UTC(),
	}

	_, err = s.db.ExecContext(ctx, insertNotificationSQL,
		n.ID, n.UserID, n.Type, n.Title, n.Message, n.RelatedID, n.RelatedType, n.CreatedAt)
	if err != nil {
		metrics.NotificationsEmitted.WithLabelValues(in.Type, "error").Inc()
		return nil, fmt.Errorf("failed to store notification: %w", err)
	}
	metrics.NotificationsEmitted.WithLabelValues(in.Type, "ok").Inc()

	if s.publisher != nil {
		if err := s.publisher.Publish(ctx, n.UserID, "notification", n); err != nil {
			s.log.Warn("[NOTIFY] realtime delivery failed",
				zap.String("notification_id", n.ID),
				zap.Error(err))
		}
	}

	return n, nil
}

func (s *NotificationService) enabled(ctx context.Context, userID, notificationType string) (bool, error) {
	var enabled bool
	err := s.db.QueryRowContext(ctx, selectPreferenceSQL, userID, notificationType).Scan(&enabled)
	if errors.Is(err, sql.ErrNoRows) {
		return true, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to read notification preference: %w", err)
	}
	return enabled, nil
}

// List returns the newest notifications of userID.
func (s *NotificationService) List(ctx context.Context, userID string, unreadOnly bool, limit int) ([]models.Notification, error) {
	if limit < 1 {
		limit = defaultNotificationLimit
	}
	if limit > maxNotificationLimit {
		limit = maxNotificationLimit
	}

	query := `SELECT id, user_id, type, title, message, related_id, related_type, is_read, created_at
		FROM notifications WHERE user_id = $1`
	if unreadOnly {
		query += ` AND is_read = FALSE`
	}
	query += ` ORDER BY created_at DESC, id DESC LIMIT $2`

	rows, err := s.db.QueryContext(ctx, query, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list notifications: %w", err)
	}
	defer rows.Close()

	notifications := []models.Notification{}
	for rows.Next() {
		var n models.Notification
		if err := rows.Scan(&n.ID, &n.UserID, &n.Type, &n.Title, &n.Message, &n.RelatedID, &n.RelatedType, &n.IsRead, &n.CreatedAt); err != nil {
			return nil, err
		}
		notifications = append(notifications, n)
	}
	return notifications, rows.Err()
}

func (s *NotificationService) UnreadCount(ctx context.Context, userID string) (int64, error) {
	var count int64
	if err := s.db.QueryRowContext(ctx, unreadCountSQL, userID).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count notifications: %w", err)
	}
	return count, nil
}

// MarkRead marks one notification read. Only its recipient may do so.
func (s *NotificationService) MarkRead(ctx context.Context, id, userID string) error {
	var owner string
	err := s.db.QueryRowContext(ctx, selectNotificationOwnerSQL, id).Scan(&owner)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%w: notification %s", ErrNotFound, id)
	}
	if err != nil {
		return fmt.Errorf("failed to read notification: %w", err)
	}
	if owner != userID {
		return fmt.Errorf("%w: notification belongs to another user", ErrForbidden)
	}

	if _, err := s.db.ExecContext(ctx, markNotificationReadSQL, id); err != nil {
		return fmt.Errorf("failed to mark notification read: %w", err)
	}
	return nil
}

// MarkAllRead returns how many notifications changed.
func (s *NotificationService) MarkAllRead(ctx context.Context, userID string) (int64, error) {
	result, err := s.db.ExecContext(ctx, markAllNotificationsReadSQL, userID)
	if err != nil {
		return 0, fmt.Errorf("failed to mark notifications read: %w", err)
	}
	return result.RowsAffected()
}

// GetPreferences returns one entry per notification type; types without a
// stored row are enabled.
func (s *NotificationService) GetPreferences(ctx context.Context, userID string) ([]models.NotificationPreference, error) {
	rows, err := s.db.QueryContext(ctx, selectPreferencesSQL, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to read notification preferences: %w", err)
	}
	defer rows.Close()

	stored := map[string]bool{}
	for rows.Next() {
		var (
			notificationType string
			enabled          bool
		)
		if err := rows.Scan(&notificationType, &enabled); err != nil {
			return nil, err
		}
		stored[notificationType] = enabled
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	prefs := make([]models.NotificationPreference, 0, len(models.NotificationTypes))
	for _, t := range models.NotificationTypes {
		enabled, ok := stored[t]
		prefs = append(prefs, models.NotificationPreference{UserID: userID, Type: t, Enabled: !ok || enabled})
	}
	return prefs, nil
}

func (s *NotificationService) SetPreference(ctx context.Context, userID, notificationType string, enabled bool) (*models.NotificationPreference, error) {
	if !slices.Contains(models.NotificationTypes, notificationType) {
		return nil, validationf("unknown notification type %q", notificationType)
	}

	if _, err := s.db.ExecContext(ctx, upsertPreferenceSQL, userID, notificationType, enabled); err != nil {
		return nil, fmt.Errorf("failed to store notification preference: %w", err)
	}
	return &models.NotificationPreference{UserID: userID, Type: notificationType, Enabled: enabled}, nil
}
