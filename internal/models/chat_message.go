package models

import "time"

// ChatMessage represents a persisted chat message.
// ID is assigned by the database and breaks ties between messages with the same SentAt.
type ChatMessage struct {
	ID uint `gorm:"primaryKey" json:"id"`

	// RoomID is the identifier of the chat room where the message was sent.
	RoomID string `gorm:"type:uuid;not null;index:idx_room_sent" json:"room_id"`
	// SenderID is the user who sent the message.
	SenderID string `gorm:"type:text;not null;index" json:"sender_id"`
	// Body is the text of the message.
	Body string `gorm:"type:text;not null" json:"body"`
	// SentAt is the send timestamp used for history ordering.
	SentAt time.Time `gorm:"not null;index:idx_room_sent" json:"sent_at"`
	// IsRead flips to true once, when the non-sender reads the message.
	IsRead bool `gorm:"not null;default:false" json:"is_read"`
}

// SentBy reports whether userID authored the message.
func (m *ChatMessage) SentBy(userID string) bool {
	return m.SenderID == userID
}
