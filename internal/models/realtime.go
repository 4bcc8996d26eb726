package models

import (
	"encoding/json"
	"time"
)

// Event types pushed to subscribers.
const (
	EventNewMessage  = "new_message"
	EventReadReceipt = "read_receipt"
	EventUnreadCount = "unread_count"
)

// ReadReceipt says that ReaderID has read MessageID. It is never persisted and
// compares by value.
type ReadReceipt struct {
	MessageID uint   `json:"message_id"`
	ReaderID  string `json:"reader_id"`
}

// UnreadCountInfo is the per-room, per-viewer badge. It is recomputed on demand.
type UnreadCountInfo struct {
	RoomID          string    `json:"room_id"`
	UnreadCount     int64     `json:"unread_count"`
	LatestMessage   string    `json:"latest_message"`
	LatestMessageAt time.Time `json:"latest_message_at"`
}

// Event is the payload published on a room or user channel.
type Event struct {
	Type        string           `json:"type"`
	RoomID      string           `json:"room_id,omitempty"`
	UserID      string           `json:"user_id,omitempty"`
	Message     *ChatMessage     `json:"message,omitempty"`
	Receipts    []ReadReceipt    `json:"receipts,omitempty"`
	UnreadCount *UnreadCountInfo `json:"unread_count,omitempty"`
}

// WebSocketMessage is the envelope for everything sent over the socket in either direction.
type WebSocketMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Inbound command payloads.
type CreateRoomPayload struct {
	CounterpartID string `json:"counterpart_id"`
	ClassID       string `json:"class_id"`
}

type RoomPayload struct {
	RoomID string `json:"room_id"`
}

type SendMessagePayload struct {
	RoomID string `json:"room_id"`
	Body   string `json:"body"`
}

type MarkReadPayload struct {
	MessageID uint `json:"message_id"`
}

// ErrorPayload is sent back when a command fails.
type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Command string `json:"command,omitempty"`
}
