package chathub

import "lessonchat/backend/internal/models"

// Client is the interface for any connection the hub pushes events to.
// It abstracts the underlying communication mechanism, allowing the hub to manage
// subscriptions uniformly.
type Client interface {
	// GetUserID returns the authenticated user behind the connection.
	GetUserID() string

	// GetSendChannel returns the channel the hub writes outbound frames to.
	// The hub never blocks on it; a full channel gets the client evicted.
	GetSendChannel() chan<- models.WebSocketMessage

	// Run starts the client's read and write pumps.
	Run()
	// Close shuts the connection down. It must be safe to call more than once.
	Close()
}
