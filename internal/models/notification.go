package models

import "time"

// Notification types
const (
	NotificationTradeOffer     = "trade_offer"
	NotificationTradeAccepted  = "trade_accepted"
	NotificationTradeRejected  = "trade_rejected"
	NotificationTradeCompleted = "trade_completed"
	NotificationTradeCancelled = "trade_cancelled"
	NotificationMessage        = "message"
	NotificationReview         = "review"
)

// NotificationTypes lists every type a user can toggle.
var NotificationTypes = []string{
	NotificationTradeOffer,
	NotificationTradeAccepted,
	NotificationTradeRejected,
	NotificationTradeCompleted,
	NotificationTradeCancelled,
	NotificationMessage,
	NotificationReview,
}

type Notification struct {
	ID          string    `json:"id" db:"id"`
	UserID      string    `json:"userId" db:"user_id"`
	Type        string    `json:"type" db:"type"`
	Title       string    `json:"title" db:"title"`
	Message     string    `json:"message" db:"message"`
	RelatedID   string    `json:"relatedId,omitempty" db:"related_id"`
	RelatedType string    `json:"relatedType,omitempty" db:"related_type"`
	IsRead      bool      `json:"isRead" db:"is_read"`
	CreatedAt   time.Time `json:"createdAt" db:"created_at"`
}

// NotificationPreference toggles one notification type for one user.
type NotificationPreference struct {
	UserID  string `json:"-" db:"user_id"`
	Type    string `json:"type" db:"type"`
	Enabled bool   `json:"enabled" db:"enabled"`
}

// NotificationInput is what a component asks the fan-out to deliver.
type NotificationInput struct {
	UserID      string
	Type        string
	Title       string
	Message     string
	RelatedID   string
	RelatedType string
}
