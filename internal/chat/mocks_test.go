package chat_test

import (
	"context"
	"lessonchat/backend/internal/models"

	"github.com/stretchr/testify/mock"
)

type MockBroadcaster struct {
	mock.Mock
}

func NewMockBroadcaster() *MockBroadcaster {
	b := new(MockBroadcaster)
	b.On("BroadcastNewMessage", mock.Anything, mock.Anything, mock.Anything).Return().Maybe()
	b.On("SendReadReceipts", mock.Anything, mock.Anything, mock.Anything).Return().Maybe()
	b.On("SendUnreadCountInfo", mock.Anything, mock.Anything, mock.Anything).Return().Maybe()
	return b
}

func (m *MockBroadcaster) BroadcastNewMessage(ctx context.Context, roomID string, msg models.ChatMessage) {
	m.Called(ctx, roomID, msg)
}

func (m *MockBroadcaster) SendReadReceipts(ctx context.Context, roomID string, receipts []models.ReadReceipt) {
	m.Called(ctx, roomID, receipts)
}

func (m *MockBroadcaster) SendUnreadCountInfo(ctx context.Context, userID string, info models.UnreadCountInfo) {
	m.Called(ctx, userID, info)
}

// calls returns the recorded calls of one method.
func (m *MockBroadcaster) calls(method string) []mock.Call {
	var out []mock.Call
	for _, c := range m.Calls {
		if c.Method == method {
			out = append(out, c)
		}
	}
	return out
}

// receipts flattens every read receipt sent so far.
func (m *MockBroadcaster) receipts() []models.ReadReceipt {
	var out []models.ReadReceipt
	for _, c := range m.calls("SendReadReceipts") {
		out = append(out, c.Arguments.Get(2).([]models.ReadReceipt)...)
	}
	return out
}

// lastUnread returns the most recent unread-count event sent to userID.
func (m *MockBroadcaster) lastUnread(userID string) (models.UnreadCountInfo, bool) {
	calls := m.calls("SendUnreadCountInfo")
	for i := len(calls) - 1; i >= 0; i-- {
		if calls[i].Arguments.String(1) == userID {
			return calls[i].Arguments.Get(2).(models.UnreadCountInfo), true
		}
	}
	return models.UnreadCountInfo{}, false
}

func (m *MockBroadcaster) reset() {
	m.Calls = nil
}
