package storage

import (
	"context"
	"errors"
	"fmt"
	"lessonchat/backend/internal/apperr"
	"lessonchat/backend/internal/models"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

const historyOrderAsc = "sent_at ASC, id ASC"
const historyOrderDesc = "sent_at DESC, id DESC"

// SaveMessage persists a new message. SentAt is stamped when the caller left it empty.
func (s *Service) SaveMessage(ctx context.Context, msg *models.ChatMessage) error {
	if msg.SentAt.IsZero() {
		msg.SentAt = now()
	}
	if err := s.DB.WithContext(ctx).Create(msg).Error; err != nil {
		zap.S().Errorf("ERROR: Failed to save message for room %s: %v", msg.RoomID, err)
		return apperr.Persistence("save message", err)
	}
	return nil
}

func (s *Service) FindMessageByID(ctx context.Context, id uint) (*models.ChatMessage, error) {
	var msg models.ChatMessage
	err := s.DB.WithContext(ctx).First(&msg, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.New(apperr.CodeMessageNotFound, fmt.Sprintf("message not found: %d", id), nil)
	}
	if err != nil {
		return nil, apperr.Persistence("find message", err)
	}
	return &msg, nil
}

// FindMessagesByRoomAsc returns the room history oldest first.
func (s *Service) FindMessagesByRoomAsc(ctx context.Context, roomID string) ([]models.ChatMessage, error) {
	return s.findHistory(ctx, roomID, historyOrderAsc)
}

// FindMessagesByRoomDesc returns the room history newest first.
func (s *Service) FindMessagesByRoomDesc(ctx context.Context, roomID string) ([]models.ChatMessage, error) {
	return s.findHistory(ctx, roomID, historyOrderDesc)
}

func (s *Service) findHistory(ctx context.Context, roomID, order string) ([]models.ChatMessage, error) {
	var messages []models.ChatMessage
	err := s.DB.WithContext(ctx).
		Where("room_id = ?", roomID).
		Order(order).
		Find(&messages).Error
	if err != nil {
		return nil, apperr.Persistence("load history", err)
	}
	return messages, nil
}

// FindLatestMessage returns nil without error for an empty room.
func (s *Service) FindLatestMessage(ctx context.Context, roomID string) (*models.ChatMessage, error) {
	var messages []models.ChatMessage
	err := s.DB.WithContext(ctx).
		Where("room_id = ?", roomID).
		Order(historyOrderDesc).
		Limit(1).
		Find(&messages).Error
	if err != nil {
		return nil, apperr.Persistence("load latest message", err)
	}
	if len(messages) == 0 {
		return nil, nil
	}
	return &messages[0], nil
}

func (s *Service) unreadQuery(ctx context.Context, roomID, userID string, since time.Time) *gorm.DB {
	q := s.DB.WithContext(ctx).
		Model(&models.ChatMessage{}).
		Where("room_id = ? AND is_read = ? AND sender_id <> ?", roomID, false, userID)
	if !since.IsZero() {
		q = q.Where("sent_at >= ?", since)
	}
	return q
}

func (s *Service) FindUnreadNotSentBy(ctx context.Context, roomID, userID string, since time.Time) ([]models.ChatMessage, error) {
	var messages []models.ChatMessage
	if err := s.unreadQuery(ctx, roomID, userID, since).Order(historyOrderAsc).Find(&messages).Error; err != nil {
		return nil, apperr.Persistence("load unread messages", err)
	}
	return messages, nil
}

func (s *Service) CountUnreadNotSentBy(ctx context.Context, roomID, userID string, since time.Time) (int64, error) {
	var n int64
	if err := s.unreadQuery(ctx, roomID, userID, since).Count(&n).Error; err != nil {
		return 0, apperr.Persistence("count unread messages", err)
	}
	return n, nil
}

// MarkRead flips the read flag. Already-read messages are left alone.
func (s *Service) MarkRead(ctx context.Context, msg *models.ChatMessage) error {
	if msg.IsRead {
		return nil
	}
	err := s.DB.WithContext(ctx).
		Model(&models.ChatMessage{}).
		Where("id = ?", msg.ID).
		Update("is_read", true).Error
	if err != nil {
		return apperr.Persistence("mark message read", err)
	}
	msg.IsRead = true
	return nil
}
