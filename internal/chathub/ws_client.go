package chathub

import (
	"context"
	"encoding/json"
	"lessonchat/backend/internal/apperr"
	"lessonchat/backend/internal/chat"
	"lessonchat/backend/internal/config"
	"lessonchat/backend/internal/models"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// Inbound command types.
const (
	CommandCreateRoom  = "create_room"
	CommandEnterRoom   = "enter_room"
	CommandListRooms   = "list_rooms"
	CommandCloseRoom   = "close_room"
	CommandLeaveRoom   = "leave_room"
	CommandSendMessage = "send_message"
	CommandMarkRead    = "mark_read"
)

// Reply types.
const (
	ReplyRoomCreated = "room_created"
	ReplyRoomEntered = "room_entered"
	ReplyRoomList    = "room_list"
	ReplyRoomClosed  = "room_closed"
	ReplyRoomLeft    = "room_left"
	ReplyMessageSent = "message_sent"
	ReplyMessageRead = "message_read"
	ReplyError       = "error"

	codeRateLimited = "RATE_LIMITED"
)

// ChatService is the part of chat.Service the socket drives.
type ChatService interface {
	CreateChatRoom(ctx context.Context, initiatorID, counterpartID string) (*chat.CreateRoomResult, error)
	CreateChatRoomForClass(ctx context.Context, initiatorID, classID string) (*chat.CreateRoomResult, error)
	EnterChatRoom(ctx context.Context, userID, roomID string) (*chat.EnterResult, error)
	GetChatRoomList(ctx context.Context, userID string) ([]chat.RoomListItem, error)
	CloseChatRoom(ctx context.Context, userID, roomID string) error
	LeaveChatRoom(ctx context.Context, userID, roomID string) (bool, error)
	SendMessage(ctx context.Context, senderEmail, roomID, body string) (*models.ChatMessage, error)
	MarkMessageAsRead(ctx context.Context, readerEmail string, messageID uint) error
}

// WebSocketClient implements Client for a browser connection. Commands are handled on the
// read pump goroutine, so rooms needs no locking.
type WebSocketClient struct {
	UserID string
	Email  string
	Conn   *websocket.Conn
	Hub    *ManagerService
	Chat   ChatService
	Send   chan models.WebSocketMessage

	limiter   *rate.Limiter
	rooms     map[string]bool
	done      chan struct{}
	closeOnce sync.Once
}

func NewWebSocketClient(userID, email string, conn *websocket.Conn, hub *ManagerService, svc ChatService, limiter *rate.Limiter) *WebSocketClient {
	return &WebSocketClient{
		UserID:  userID,
		Email:   email,
		Conn:    conn,
		Hub:     hub,
		Chat:    svc,
		Send:    make(chan models.WebSocketMessage, config.ClientSendSize),
		limiter: limiter,
		rooms:   make(map[string]bool),
		done:    make(chan struct{}),
	}
}

func (c *WebSocketClient) GetUserID() string                              { return c.UserID }
func (c *WebSocketClient) GetSendChannel() chan<- models.WebSocketMessage { return c.Send }

// Run starts the pumps.
func (c *WebSocketClient) Run() {
	go c.writePump()
	go c.readPump()
}

// Close stops the write pump, which closes the socket and in turn ends the read pump.
func (c *WebSocketClient) Close() {
	c.closeOnce.Do(func() { close(c.done) })
}

// HandleCommand decodes one inbound frame, runs it and answers on the send channel.
func (c *WebSocketClient) HandleCommand(ctx context.Context, raw []byte) {
	var in models.WebSocketMessage
	if err := json.Unmarshal(raw, &in); err != nil {
		c.sendError("", apperr.InvalidRequest("malformed frame"))
		return
	}

	replyType, payload, err := c.execute(ctx, in)
	if err != nil {
		if apperr.CodeOf(err) == apperr.CodePersistence {
			zap.S().Errorf("ERROR: Command %s from user %s failed: %v", in.Type, c.UserID, err)
		}
		c.sendError(in.Type, err)
		return
	}
	c.reply(replyType, payload)
}

func (c *WebSocketClient) execute(ctx context.Context, in models.WebSocketMessage) (string, interface{}, error) {
	switch in.Type {
	case CommandCreateRoom:
		var p models.CreateRoomPayload
		if err := decode(in.Payload, &p); err != nil {
			return "", nil, err
		}
		var (
			res *chat.CreateRoomResult
			err error
		)
		if p.ClassID != "" {
			res, err = c.Chat.CreateChatRoomForClass(ctx, c.UserID, p.ClassID)
		} else {
			res, err = c.Chat.CreateChatRoom(ctx, c.UserID, p.CounterpartID)
		}
		return ReplyRoomCreated, res, err

	case CommandEnterRoom:
		var p models.RoomPayload
		if err := decode(in.Payload, &p); err != nil {
			return "", nil, err
		}
		res, err := c.Chat.EnterChatRoom(ctx, c.UserID, p.RoomID)
		if err != nil {
			return "", nil, err
		}
		c.rooms[res.RoomID] = true
		c.Hub.Subscribe(c, RoomChannel(res.RoomID))
		return ReplyRoomEntered, res, nil

	case CommandListRooms:
		items, err := c.Chat.GetChatRoomList(ctx, c.UserID)
		return ReplyRoomList, items, err

	case CommandCloseRoom:
		var p models.RoomPayload
		if err := decode(in.Payload, &p); err != nil {
			return "", nil, err
		}
		c.forget(p.RoomID)
		if err := c.Chat.CloseChatRoom(ctx, c.UserID, p.RoomID); err != nil {
			return "", nil, err
		}
		return ReplyRoomClosed, p, nil

	case CommandLeaveRoom:
		var p models.RoomPayload
		if err := decode(in.Payload, &p); err != nil {
			return "", nil, err
		}
		c.forget(p.RoomID)
		deleted, err := c.Chat.LeaveChatRoom(ctx, c.UserID, p.RoomID)
		if err != nil {
			return "", nil, err
		}
		return ReplyRoomLeft, leaveReply{RoomID: p.RoomID, RoomDeleted: deleted}, nil

	case CommandSendMessage:
		var p models.SendMessagePayload
		if err := decode(in.Payload, &p); err != nil {
			return "", nil, err
		}
		msg, err := c.Chat.SendMessage(ctx, c.Email, p.RoomID, p.Body)
		return ReplyMessageSent, msg, err

	case CommandMarkRead:
		var p models.MarkReadPayload
		if err := decode(in.Payload, &p); err != nil {
			return "", nil, err
		}
		if err := c.Chat.MarkMessageAsRead(ctx, c.Email, p.MessageID); err != nil {
			return "", nil, err
		}
		return ReplyMessageRead, p, nil
	}

	return "", nil, apperr.InvalidRequest("unknown command " + in.Type)
}

type leaveReply struct {
	RoomID      string `json:"room_id"`
	RoomDeleted bool   `json:"room_deleted"`
}

func (c *WebSocketClient) forget(roomID string) {
	if c.rooms[roomID] {
		delete(c.rooms, roomID)
		c.Hub.Unsubscribe(c, RoomChannel(roomID))
	}
}

// closeEnteredRooms marks the user offline in every room this connection was viewing.
func (c *WebSocketClient) closeEnteredRooms() {
	if len(c.rooms) == 0 {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	for roomID := range c.rooms {
		if err := c.Chat.CloseChatRoom(ctx, c.UserID, roomID); err != nil {
			zap.S().Warnf("WARN: Could not close room %s for user %s on disconnect: %v", roomID, c.UserID, err)
		}
		delete(c.rooms, roomID)
	}
}

func decode(raw json.RawMessage, v interface{}) error {
	if len(raw) == 0 {
		return apperr.InvalidRequest("missing payload")
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return apperr.InvalidRequest("malformed payload")
	}
	return nil
}

func (c *WebSocketClient) sendError(command string, err error) {
	c.reply(ReplyError, models.ErrorPayload{
		Code:    string(apperr.CodeOf(err)),
		Message: apperr.PublicMessage(err),
		Command: command,
	})
}

// reply never blocks; a connection that cannot keep up loses replies the same way it
// loses events.
func (c *WebSocketClient) reply(replyType string, payload interface{}) {
	data, err := json.Marshal(payload)
	if err != nil {
		zap.S().Errorf("ERROR: Failed to encode %s reply for user %s: %v", replyType, c.UserID, err)
		return
	}
	select {
	case c.Send <- models.WebSocketMessage{Type: replyType, Payload: data}:
	case <-c.done:
	default:
		zap.S().Warnf("WARN: Send buffer full for user %s, dropping %s reply", c.UserID, replyType)
	}
}
