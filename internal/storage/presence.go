package storage

import (
	"context"
	"lessonchat/backend/internal/apperr"
	"lessonchat/backend/internal/models"
)

func (s *Service) SetOnline(ctx context.Context, userID string, room *models.ChatRoom) error {
	return s.setPresence(ctx, userID, room, true)
}

func (s *Service) SetOffline(ctx context.Context, userID string, room *models.ChatRoom) error {
	return s.setPresence(ctx, userID, room, false)
}

// setPresence is a last-writer-wins update; a missing row is a no-op.
func (s *Service) setPresence(ctx context.Context, userID string, room *models.ChatRoom, online bool) error {
	err := s.DB.WithContext(ctx).
		Model(&models.Membership{}).
		Where("room_id = ? AND user_id = ?", room.RoomID, userID).
		Update("online", online).Error
	if err != nil {
		return apperr.Persistence("update presence", err)
	}
	if m := room.MembershipOf(userID); m != nil {
		m.Online = online
	}
	return nil
}
