package models

import "time"

// Message is an immutable direct message.
type Message struct {
	ID         string    `json:"id" db:"id"`
	SenderID   string    `json:"senderId" db:"sender_id"`
	ReceiverID string    `json:"receiverId" db:"receiver_id"`
	Content    string    `json:"content" db:"content"`
	IsRead     bool      `json:"isRead" db:"is_read"`
	CreatedAt  time.Time `json:"createdAt" db:"created_at"`
}

// Conversation is the inbox row of UserID for the counterpart OtherUserID.
type Conversation struct {
	UserID        string        `json:"userId" db:"user_id"`
	OtherUserID   string        `json:"otherUserId" db:"other_user_id"`
	LastMessage   string        `json:"lastMessage" db:"last_message"`
	LastMessageAt time.Time     `json:"lastMessageAt" db:"last_message_at"`
	UnreadCount   int           `json:"unreadCount" db:"unread_count"`
	OtherUser     PublicProfile `json:"otherUser"`
}
