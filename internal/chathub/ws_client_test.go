package chathub_test

import (
	"context"
	"encoding/json"
	"lessonchat/backend/internal/apperr"
	"lessonchat/backend/internal/chat"
	"lessonchat/backend/internal/chathub"
	"lessonchat/backend/internal/models"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, svc *MockChatService) (*chathub.WebSocketClient, *chathub.ManagerService) {
	t.Helper()
	hub := startHub(t)
	c := chathub.NewWebSocketClient("u1", "u1@example.com", nil, hub, svc, nil)
	hub.Register(c)
	return c, hub
}

func command(t *testing.T, cmdType string, payload interface{}) []byte {
	t.Helper()
	msg := models.WebSocketMessage{Type: cmdType}
	if payload != nil {
		raw, err := json.Marshal(payload)
		require.NoError(t, err)
		msg.Payload = raw
	}
	data, err := json.Marshal(msg)
	require.NoError(t, err)
	return data
}

func nextReply(t *testing.T, c *chathub.WebSocketClient) models.WebSocketMessage {
	t.Helper()
	select {
	case msg := <-c.Send:
		return msg
	default:
		t.Fatal("no reply was sent")
		return models.WebSocketMessage{}
	}
}

func TestWebSocketClient_CommandReplies(t *testing.T) {
	tests := []struct {
		name      string
		cmdType   string
		payload   interface{}
		setup     func(svc *MockChatService)
		wantReply string
	}{
		{
			name:    "create room",
			cmdType: chathub.CommandCreateRoom,
			payload: models.CreateRoomPayload{CounterpartID: "u2"},
			setup: func(svc *MockChatService) {
				svc.On("CreateChatRoom", mock.Anything, "u1", "u2").Return(&chat.CreateRoomResult{RoomID: "r1"}, nil)
			},
			wantReply: chathub.ReplyRoomCreated,
		},
		{
			name:    "create room from class",
			cmdType: chathub.CommandCreateRoom,
			payload: models.CreateRoomPayload{ClassID: "c1"},
			setup: func(svc *MockChatService) {
				svc.On("CreateChatRoomForClass", mock.Anything, "u1", "c1").Return(&chat.CreateRoomResult{RoomID: "r1"}, nil)
			},
			wantReply: chathub.ReplyRoomCreated,
		},
		{
			name:    "list rooms",
			cmdType: chathub.CommandListRooms,
			setup: func(svc *MockChatService) {
				svc.On("GetChatRoomList", mock.Anything, "u1").Return([]chat.RoomListItem{{RoomID: "r1"}}, nil)
			},
			wantReply: chathub.ReplyRoomList,
		},
		{
			name:    "send message uses the email identity",
			cmdType: chathub.CommandSendMessage,
			payload: models.SendMessagePayload{RoomID: "r1", Body: "hi"},
			setup: func(svc *MockChatService) {
				svc.On("SendMessage", mock.Anything, "u1@example.com", "r1", "hi").Return(&models.ChatMessage{ID: 1}, nil)
			},
			wantReply: chathub.ReplyMessageSent,
		},
		{
			name:    "mark read",
			cmdType: chathub.CommandMarkRead,
			payload: models.MarkReadPayload{MessageID: 5},
			setup: func(svc *MockChatService) {
				svc.On("MarkMessageAsRead", mock.Anything, "u1@example.com", uint(5)).Return(nil)
			},
			wantReply: chathub.ReplyMessageRead,
		},
		{
			name:    "leave room",
			cmdType: chathub.CommandLeaveRoom,
			payload: models.RoomPayload{RoomID: "r1"},
			setup: func(svc *MockChatService) {
				svc.On("LeaveChatRoom", mock.Anything, "u1", "r1").Return(true, nil)
			},
			wantReply: chathub.ReplyRoomLeft,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := new(MockChatService)
			tt.setup(svc)
			c, _ := newTestClient(t, svc)

			c.HandleCommand(context.Background(), command(t, tt.cmdType, tt.payload))

			assert.Equal(t, tt.wantReply, nextReply(t, c).Type)
			svc.AssertExpectations(t)
		})
	}
}

func TestWebSocketClient_ErrorReplies(t *testing.T) {
	tests := []struct {
		name     string
		raw      []byte
		setup    func(svc *MockChatService)
		wantCode string
	}{
		{name: "malformed frame", raw: []byte("{"), wantCode: string(apperr.CodeInvalidRequest)},
		{name: "unknown command", raw: []byte(`{"type":"dance"}`), wantCode: string(apperr.CodeInvalidRequest)},
		{name: "missing payload", raw: []byte(`{"type":"enter_room"}`), wantCode: string(apperr.CodeInvalidRequest)},
		{
			name: "domain error keeps its code",
			raw:  []byte(`{"type":"enter_room","payload":{"room_id":"r9"}}`),
			setup: func(svc *MockChatService) {
				svc.On("EnterChatRoom", mock.Anything, "u1", "r9").Return(nil, apperr.ErrUserNotInRoom)
			},
			wantCode: string(apperr.CodeUserNotInRoom),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := new(MockChatService)
			if tt.setup != nil {
				tt.setup(svc)
			}
			c, _ := newTestClient(t, svc)

			c.HandleCommand(context.Background(), tt.raw)

			reply := nextReply(t, c)
			require.Equal(t, chathub.ReplyError, reply.Type)
			var payload models.ErrorPayload
			require.NoError(t, json.Unmarshal(reply.Payload, &payload))
			assert.Equal(t, tt.wantCode, payload.Code)
		})
	}
}

func TestWebSocketClient_EnterSubscribesToRoom(t *testing.T) {
	svc := new(MockChatService)
	svc.On("EnterChatRoom", mock.Anything, "u1", "r1").Return(&chat.EnterResult{RoomID: "r1"}, nil)
	svc.On("CloseChatRoom", mock.Anything, "u1", "r1").Return(nil)
	c, hub := newTestClient(t, svc)

	c.HandleCommand(context.Background(), command(t, chathub.CommandEnterRoom, models.RoomPayload{RoomID: "r1"}))
	assert.Equal(t, chathub.ReplyRoomEntered, nextReply(t, c).Type)

	hub.Deliver(chathub.RoomChannel("r1"), models.WebSocketMessage{Type: models.EventNewMessage})
	select {
	case msg := <-c.Send:
		assert.Equal(t, models.EventNewMessage, msg.Type)
	case <-time.After(time.Second):
		t.Fatal("room event was not delivered")
	}

	c.HandleCommand(context.Background(), command(t, chathub.CommandCloseRoom, models.RoomPayload{RoomID: "r1"}))
	assert.Equal(t, chathub.ReplyRoomClosed, nextReply(t, c).Type)
	svc.AssertCalled(t, "CloseChatRoom", mock.Anything, "u1", "r1")
}
