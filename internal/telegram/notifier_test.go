package telegram_test

import (
	"context"
	"errors"
	"lessonchat/backend/internal/localization"
	"lessonchat/backend/internal/models"
	"lessonchat/backend/internal/storage/memstore"
	"lessonchat/backend/internal/telegram"
	"strings"
	"testing"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockSender struct {
	mock.Mock
}

func (m *MockSender) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	args := m.Called(c)
	return tgbotapi.Message{}, args.Error(0)
}

func unreadEvent(userID string, count int64, latest string) models.Event {
	return models.Event{
		Type:        models.EventUnreadCount,
		UserID:      userID,
		RoomID:      "room-1",
		UnreadCount: &models.UnreadCountInfo{RoomID: "room-1", UnreadCount: count, LatestMessage: latest},
	}
}

func newNotifier(t *testing.T, sender *MockSender) *telegram.Notifier {
	t.Helper()
	store := memstore.New()
	store.AddUser(models.User{ID: "linked", TelegramChatID: 42, Language: "uk"})
	store.AddUser(models.User{ID: "english", TelegramChatID: 43})
	store.AddUser(models.User{ID: "unlinked"})

	loc, err := localization.NewDefaultLocalizer()
	require.NoError(t, err)
	return telegram.NewNotifier(sender, store, loc, "https://lessons.example.com/chat/")
}

func TestNotifier_SendsOnFirstUnread(t *testing.T) {
	sender := new(MockSender)
	sender.On("Send", mock.AnythingOfType("tgbotapi.MessageConfig")).Return(nil)
	n := newNotifier(t, sender)

	err := n.HandleEvent(context.Background(), "chat:user:english", unreadEvent("english", 1, "hello there"))

	require.NoError(t, err)
	sender.AssertNumberOfCalls(t, "Send", 1)
	msg := sender.Calls[0].Arguments.Get(0).(tgbotapi.MessageConfig)
	assert.Equal(t, int64(43), msg.ChatID)
	assert.Contains(t, msg.Text, "hello there")
	assert.Contains(t, msg.Text, "https://lessons.example.com/chat/room-1")
}

func TestNotifier_UsesUserLanguage(t *testing.T) {
	sender := new(MockSender)
	sender.On("Send", mock.Anything).Return(nil)
	n := newNotifier(t, sender)

	require.NoError(t, n.HandleEvent(context.Background(), "chat:user:linked", unreadEvent("linked", 1, "привіт")))

	msg := sender.Calls[0].Arguments.Get(0).(tgbotapi.MessageConfig)
	assert.True(t, strings.HasPrefix(msg.Text, "У вас"))
}

func TestNotifier_Skips(t *testing.T) {
	tests := []struct {
		name string
		ev   models.Event
	}{
		{name: "not an unread event", ev: models.Event{Type: models.EventNewMessage, UserID: "linked"}},
		{name: "second unread message", ev: unreadEvent("linked", 2, "again")},
		{name: "badge cleared", ev: unreadEvent("linked", 0, "read")},
		{name: "no telegram chat linked", ev: unreadEvent("unlinked", 1, "hi")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sender := new(MockSender)
			n := newNotifier(t, sender)

			err := n.HandleEvent(context.Background(), "chat:user:x", tt.ev)

			assert.NoError(t, err)
			sender.AssertNotCalled(t, "Send", mock.Anything)
		})
	}
}

func TestNotifier_ReportsFailures(t *testing.T) {
	sender := new(MockSender)
	sender.On("Send", mock.Anything).Return(errors.New("telegram down"))
	n := newNotifier(t, sender)

	assert.Error(t, n.HandleEvent(context.Background(), "chat:user:english", unreadEvent("english", 1, "hi")))
	assert.Error(t, n.HandleEvent(context.Background(), "chat:user:ghost", unreadEvent("ghost", 1, "hi")))
}
