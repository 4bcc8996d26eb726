package chathub_test

import (
	"context"
	"lessonchat/backend/internal/chat"
	"lessonchat/backend/internal/models"

	"github.com/stretchr/testify/mock"
)

// MockChatService mocks the chat operations a socket drives.
type MockChatService struct {
	mock.Mock
}

func (m *MockChatService) CreateChatRoom(ctx context.Context, initiatorID, counterpartID string) (*chat.CreateRoomResult, error) {
	args := m.Called(ctx, initiatorID, counterpartID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*chat.CreateRoomResult), args.Error(1)
}

func (m *MockChatService) CreateChatRoomForClass(ctx context.Context, initiatorID, classID string) (*chat.CreateRoomResult, error) {
	args := m.Called(ctx, initiatorID, classID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*chat.CreateRoomResult), args.Error(1)
}

func (m *MockChatService) EnterChatRoom(ctx context.Context, userID, roomID string) (*chat.EnterResult, error) {
	args := m.Called(ctx, userID, roomID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*chat.EnterResult), args.Error(1)
}

func (m *MockChatService) GetChatRoomList(ctx context.Context, userID string) ([]chat.RoomListItem, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]chat.RoomListItem), args.Error(1)
}

func (m *MockChatService) CloseChatRoom(ctx context.Context, userID, roomID string) error {
	args := m.Called(ctx, userID, roomID)
	return args.Error(0)
}

func (m *MockChatService) LeaveChatRoom(ctx context.Context, userID, roomID string) (bool, error) {
	args := m.Called(ctx, userID, roomID)
	return args.Bool(0), args.Error(1)
}

func (m *MockChatService) SendMessage(ctx context.Context, senderEmail, roomID, body string) (*models.ChatMessage, error) {
	args := m.Called(ctx, senderEmail, roomID, body)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.ChatMessage), args.Error(1)
}

func (m *MockChatService) MarkMessageAsRead(ctx context.Context, readerEmail string, messageID uint) error {
	args := m.Called(ctx, readerEmail, messageID)
	return args.Error(0)
}

// MockPublisher records published payloads.
type MockPublisher struct {
	mock.Mock
}

func (m *MockPublisher) Publish(ctx context.Context, channel string, payload []byte) error {
	args := m.Called(ctx, channel, payload)
	return args.Error(0)
}

type MockSink struct {
	mock.Mock
}

func (m *MockSink) Name() string {
	return "mock"
}

func (m *MockSink) HandleEvent(ctx context.Context, channel string, ev models.Event) error {
	args := m.Called(ctx, channel, ev)
	return args.Error(0)
}
