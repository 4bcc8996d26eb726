// Package chat implements the chat operations: room creation and listing, entering and
// closing a room, leaving it, sending messages and read receipts. Persistence goes through
// storage.Storage; realtime fan-out goes through a Broadcaster and only happens after the
// owning transaction committed.
package chat

import (
	"context"
	"lessonchat/backend/internal/apperr"
	"lessonchat/backend/internal/config"
	"lessonchat/backend/internal/metrics"
	"lessonchat/backend/internal/models"
	"lessonchat/backend/internal/storage"
	"strings"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"
)

// Broadcaster delivers realtime events. Implementations must not block the caller and
// never report delivery failures back.
type Broadcaster interface {
	BroadcastNewMessage(ctx context.Context, roomID string, msg models.ChatMessage)
	SendReadReceipts(ctx context.Context, roomID string, receipts []models.ReadReceipt)
	SendUnreadCountInfo(ctx context.Context, userID string, info models.UnreadCountInfo)
}

type Service struct {
	Storage      storage.Storage
	Broadcaster  Broadcaster
	DeepLinkBase string
}

func NewService(s storage.Storage, b Broadcaster, deepLinkBase string) *Service {
	return &Service{
		Storage:      s,
		Broadcaster:  b,
		DeepLinkBase: strings.TrimRight(deepLinkBase, "/"),
	}
}

type Participant struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
}

type CreateRoomResult struct {
	RoomID   string      `json:"room_id"`
	Created  bool        `json:"created"`
	DeepLink string      `json:"deep_link"`
	Partner  Participant `json:"partner"`
}

type EnterResult struct {
	RoomID   string               `json:"room_id"`
	Partner  Participant          `json:"partner"`
	Messages []models.ChatMessage `json:"messages"`
}

type RoomListItem struct {
	RoomID  string                 `json:"room_id"`
	Partner Participant            `json:"partner"`
	Unread  models.UnreadCountInfo `json:"unread"`
}

// CreateChatRoom returns the room between initiator and counterpart, creating it when the
// pair has none. Repeating the call, in either direction, yields the same room.
func (s *Service) CreateChatRoom(ctx context.Context, initiatorID, counterpartID string) (*CreateRoomResult, error) {
	counterpartID = strings.TrimSpace(counterpartID)
	if counterpartID == "" {
		return nil, apperr.InvalidRequest("counterpart is required")
	}
	if initiatorID == counterpartID {
		return nil, apperr.InvalidRequest("cannot open a chat with yourself")
	}

	partner, err := s.Storage.FindUserByID(ctx, counterpartID)
	if err != nil {
		return nil, err
	}

	room, created, err := s.Storage.FindOrCreateRoom(ctx, initiatorID, counterpartID)
	if err != nil {
		return nil, err
	}
	if created {
		metrics.RoomsCreated.Inc()
		zap.S().Infof("INFO: Room %s created between %s and %s", room.RoomID, initiatorID, counterpartID)
	}

	return &CreateRoomResult{
		RoomID:   room.RoomID,
		Created:  created,
		DeepLink: s.DeepLink(room.RoomID),
		Partner:  participantOf(partner),
	}, nil
}

// CreateChatRoomForClass opens a chat with the owner of a class.
func (s *Service) CreateChatRoomForClass(ctx context.Context, initiatorID, classID string) (*CreateRoomResult, error) {
	if strings.TrimSpace(classID) == "" {
		return nil, apperr.InvalidRequest("class is required")
	}
	ownerID, err := s.Storage.OwnerOfClass(ctx, classID)
	if err != nil {
		return nil, err
	}
	return s.CreateChatRoom(ctx, initiatorID, ownerID)
}

func (s *Service) DeepLink(roomID string) string {
	return s.DeepLinkBase + "/" + roomID
}

// EnterChatRoom opens a room for viewing: a left membership is restored, every unread
// message from the partner is marked read, the viewer becomes online and the full history
// is returned oldest first. One read receipt per newly read message is broadcast after commit.
func (s *Service) EnterChatRoom(ctx context.Context, userID, roomID string) (*EnterResult, error) {
	var (
		result   EnterResult
		receipts []models.ReadReceipt
		room     *models.ChatRoom
	)

	err := s.Storage.Transaction(ctx, func(tx storage.Storage) error {
		var err error
		room, err = tx.FindRoomByID(ctx, roomID)
		if err != nil {
			return err
		}
		membership := room.MembershipOf(userID)
		if !room.HasParticipant(userID) || membership == nil {
			return apperr.ErrUserNotInRoom
		}
		if membership.IsLeft() {
			if _, err := tx.RestoreMembershipIfDeleted(ctx, userID, room); err != nil {
				return err
			}
		}

		unread, err := tx.FindUnreadNotSentBy(ctx, room.RoomID, userID, time.Time{})
		if err != nil {
			return err
		}
		readIDs := make(map[uint]bool, len(unread))
		for i := range unread {
			if err := tx.MarkRead(ctx, &unread[i]); err != nil {
				return err
			}
			readIDs[unread[i].ID] = true
			receipts = append(receipts, models.ReadReceipt{MessageID: unread[i].ID, ReaderID: userID})
		}

		if err := tx.SetOnline(ctx, userID, room); err != nil {
			return err
		}

		history, err := tx.FindMessagesByRoomAsc(ctx, room.RoomID)
		if err != nil {
			return err
		}
		for i := range history {
			if readIDs[history[i].ID] {
				history[i].IsRead = true
			}
		}
		result.RoomID = room.RoomID
		result.Messages = history
		return nil
	})
	if err != nil {
		return nil, err
	}

	for _, receipt := range receipts {
		s.Broadcaster.SendReadReceipts(ctx, room.RoomID, []models.ReadReceipt{receipt})
	}
	result.Partner = s.participant(ctx, room.PartnerOf(userID))
	return &result, nil
}

// GetChatRoomList returns the caller's rooms, most recently active first, each with the
// caller's unread badge. Rooms the caller left are not listed.
func (s *Service) GetChatRoomList(ctx context.Context, userID string) ([]RoomListItem, error) {
	rooms, err := s.Storage.FindRoomsForUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	items := make([]RoomListItem, 0, len(rooms))
	for i := range rooms {
		room := &rooms[i]
		membership := room.MembershipOf(userID)
		if membership == nil || membership.IsLeft() {
			continue
		}
		info, err := s.unreadCountInfo(ctx, s.Storage, room, membership)
		if err != nil {
			return nil, err
		}
		items = append(items, RoomListItem{
			RoomID:  room.RoomID,
			Partner: s.participant(ctx, room.PartnerOf(userID)),
			Unread:  info,
		})
	}
	return items, nil
}

// CloseChatRoom marks the viewer offline in the room.
func (s *Service) CloseChatRoom(ctx context.Context, userID, roomID string) error {
	room, err := s.Storage.FindRoomByID(ctx, roomID)
	if err != nil {
		return err
	}
	if room.MembershipOf(userID) == nil {
		return apperr.ErrUserNotInRoom
	}
	return s.Storage.SetOffline(ctx, userID, room)
}

// LeaveChatRoom soft-deletes the caller's membership. When no active membership remains
// the room and its rows are deleted. It reports whether the room was deleted.
func (s *Service) LeaveChatRoom(ctx context.Context, userID, roomID string) (bool, error) {
	var deleted bool
	err := s.Storage.Transaction(ctx, func(tx storage.Storage) error {
		room, err := tx.FindRoomByID(ctx, roomID)
		if err != nil {
			return err
		}
		if room.MembershipOf(userID) == nil {
			return apperr.ErrUserNotInRoom
		}
		if err := tx.SetOffline(ctx, userID, room); err != nil {
			return err
		}
		if err := tx.SoftDeleteMembership(ctx, userID, room); err != nil {
			return err
		}
		if room.ActiveMemberships() == 0 {
			deleted = true
			return tx.DeleteRoom(ctx, room)
		}
		return nil
	})
	if err != nil {
		return false, err
	}
	if deleted {
		zap.S().Infof("INFO: Room %s deleted after its last member left", roomID)
	}
	return deleted, nil
}

// RemoveMember hard-deletes a membership row. The room goes with it once no membership row,
// active or left, remains.
func (s *Service) RemoveMember(ctx context.Context, roomID, userID string) (bool, error) {
	var deleted bool
	err := s.Storage.Transaction(ctx, func(tx storage.Storage) error {
		room, err := tx.FindRoomByID(ctx, roomID)
		if err != nil {
			return err
		}
		if _, err := tx.RemoveMembership(ctx, userID, room); err != nil {
			return err
		}
		if len(room.Memberships) == 0 {
			deleted = true
			return tx.DeleteRoom(ctx, room)
		}
		return nil
	})
	return deleted, err
}

// SendMessage persists a message from the user identified by senderEmail. Recipients that
// had left are restored first so the message counts towards their badge. After commit every
// member gets a fresh unread badge (zero for the sender and for online viewers) and the
// message is broadcast to the room.
func (s *Service) SendMessage(ctx context.Context, senderEmail, roomID, body string) (*models.ChatMessage, error) {
	if strings.TrimSpace(body) == "" {
		return nil, apperr.InvalidRequest("message body is empty")
	}
	if utf8.RuneCountInString(body) > config.MaxMessageLength {
		return nil, apperr.InvalidRequest("message body is too long")
	}

	sender, err := s.Storage.FindUserByEmail(ctx, senderEmail)
	if err != nil {
		return nil, err
	}

	var (
		msg  models.ChatMessage
		room *models.ChatRoom
	)
	err = s.Storage.Transaction(ctx, func(tx storage.Storage) error {
		var err error
		room, err = tx.FindRoomByID(ctx, roomID)
		if err != nil {
			return err
		}
		if !room.HasParticipant(sender.ID) || room.MembershipOf(sender.ID) == nil {
			return apperr.ErrUserNotInRoom
		}

		for _, m := range room.Memberships {
			if _, err := tx.RestoreMembershipIfDeleted(ctx, m.UserID, room); err != nil {
				return err
			}
		}

		msg = models.ChatMessage{RoomID: room.RoomID, SenderID: sender.ID, Body: body}
		if err := tx.SaveMessage(ctx, &msg); err != nil {
			return err
		}
		return tx.TouchRoom(ctx, room, msg.SentAt)
	})
	if err != nil {
		return nil, err
	}
	metrics.MessagesSent.Inc()

	for i := range room.Memberships {
		m := &room.Memberships[i]
		var info models.UnreadCountInfo
		if m.UserID == sender.ID {
			info = models.UnreadCountInfo{RoomID: room.RoomID, LatestMessage: msg.Body, LatestMessageAt: msg.SentAt}
		} else if info, err = s.unreadCountInfo(ctx, s.Storage, room, m); err != nil {
			zap.S().Errorf("ERROR: Failed to compute unread count for %s in room %s: %v", m.UserID, room.RoomID, err)
			continue
		}
		s.Broadcaster.SendUnreadCountInfo(ctx, m.UserID, info)
	}
	s.Broadcaster.BroadcastNewMessage(ctx, room.RoomID, msg)

	return &msg, nil
}

// MarkMessageAsRead flips the read flag of one message on behalf of the reader identified
// by readerEmail and broadcasts a single read receipt.
func (s *Service) MarkMessageAsRead(ctx context.Context, readerEmail string, messageID uint) error {
	reader, err := s.Storage.FindUserByEmail(ctx, readerEmail)
	if err != nil {
		return err
	}

	var roomID string
	err = s.Storage.Transaction(ctx, func(tx storage.Storage) error {
		msg, err := tx.FindMessageByID(ctx, messageID)
		if err != nil {
			return err
		}
		if msg.SentBy(reader.ID) {
			return apperr.ErrSenderCannotMarkOwnMessageRead
		}
		room, err := tx.FindRoomByID(ctx, msg.RoomID)
		if err != nil {
			return err
		}
		if !room.HasParticipant(reader.ID) || room.MembershipOf(reader.ID) == nil {
			return apperr.ErrUserNotInRoom
		}
		roomID = room.RoomID
		return tx.MarkRead(ctx, msg)
	})
	if err != nil {
		return err
	}

	s.Broadcaster.SendReadReceipts(ctx, roomID, []models.ReadReceipt{{MessageID: messageID, ReaderID: reader.ID}})
	return nil
}

// unreadCountInfo is zero for an online viewer; otherwise it counts the partner's unread
// messages since the membership was last restored.
func (s *Service) unreadCountInfo(ctx context.Context, st storage.Storage, room *models.ChatRoom, m *models.Membership) (models.UnreadCountInfo, error) {
	info := models.UnreadCountInfo{RoomID: room.RoomID}

	latest, err := st.FindLatestMessage(ctx, room.RoomID)
	if err != nil {
		return info, err
	}
	if latest != nil {
		info.LatestMessage = latest.Body
		info.LatestMessageAt = latest.SentAt
	}

	if m.IsOnline() {
		return info, nil
	}
	n, err := st.CountUnreadNotSentBy(ctx, room.RoomID, m.UserID, m.UnreadSince())
	if err != nil {
		return info, err
	}
	info.UnreadCount = n
	return info, nil
}

// participant resolves a display name. A user missing from the directory still shows up by id.
func (s *Service) participant(ctx context.Context, userID string) Participant {
	u, err := s.Storage.FindUserByID(ctx, userID)
	if err != nil {
		zap.S().Warnf("WARN: Could not resolve user %s: %v", userID, err)
		return Participant{ID: userID}
	}
	return participantOf(u)
}

func participantOf(u *models.User) Participant {
	return Participant{ID: u.ID, DisplayName: u.DisplayName}
}
