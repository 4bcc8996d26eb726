package chathub_test

import (
	"lessonchat/backend/internal/models"
	"sync/atomic"
)

type MockClient struct {
	userID      string
	RecvChannel chan models.WebSocketMessage
	closed      atomic.Bool
}

func newMockClient(userID string, buffer int) *MockClient {
	return &MockClient{
		userID:      userID,
		RecvChannel: make(chan models.WebSocketMessage, buffer),
	}
}

func (c *MockClient) GetUserID() string {
	return c.userID
}

func (c *MockClient) GetSendChannel() chan<- models.WebSocketMessage {
	return c.RecvChannel
}

func (c *MockClient) Run() {
	// Not needed for testing
}

func (c *MockClient) Close() {
	c.closed.Store(true)
}

func (c *MockClient) IsClosed() bool {
	return c.closed.Load()
}
