package storage

import (
	"context"
	"errors"
	"lessonchat/backend/internal/apperr"
	"lessonchat/backend/internal/models"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// FindOrCreateRoom returns the room of the unordered pair {userA, userB}, creating it
// together with both memberships when absent. Two concurrent calls for the same pair
// race on the pair_key unique index; the loser reads the winner's room.
func (s *Service) FindOrCreateRoom(ctx context.Context, userA, userB string) (*models.ChatRoom, bool, error) {
	if userA == userB {
		return nil, false, apperr.InvalidRequest("cannot open a chat with yourself")
	}
	key := models.PairKey(userA, userB)

	room, err := s.findRoomByPair(ctx, key)
	if err == nil {
		return room, false, nil
	}
	if !errors.Is(err, apperr.ErrRoomNotFound) {
		return nil, false, err
	}

	room = &models.ChatRoom{
		InitiatorID:   userA,
		CounterpartID: userB,
		PairKey:       key,
		LastMessageAt: now(),
		Memberships: []models.Membership{
			{UserID: userA},
			{UserID: userB},
		},
	}
	// Nested transaction so a unique violation only rolls back to a savepoint.
	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.Create(room).Error
	})
	if err != nil {
		if isUniqueViolation(err) {
			zap.S().Infof("INFO: Room for pair %s was created concurrently, reusing it", key)
			existing, findErr := s.findRoomByPair(ctx, key)
			return existing, false, findErr
		}
		zap.S().Errorf("ERROR: Failed to create room for pair %s: %v", key, err)
		return nil, false, apperr.Persistence("create room", err)
	}
	return room, true, nil
}

func (s *Service) findRoomByPair(ctx context.Context, key string) (*models.ChatRoom, error) {
	var room models.ChatRoom
	err := s.roomQuery(ctx).Where("pair_key = ?", key).First(&room).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.RoomNotFound(key)
	}
	if err != nil {
		return nil, apperr.Persistence("find room", err)
	}
	return &room, nil
}

func (s *Service) roomQuery(ctx context.Context) *gorm.DB {
	return s.DB.WithContext(ctx).Preload("Memberships", func(db *gorm.DB) *gorm.DB {
		return db.Order("memberships.id ASC")
	})
}

// FindRoomByID loads the room with all its membership rows, left ones included.
func (s *Service) FindRoomByID(ctx context.Context, roomID string) (*models.ChatRoom, error) {
	if _, err := uuid.Parse(roomID); err != nil {
		return nil, apperr.RoomNotFound(roomID)
	}
	var room models.ChatRoom
	err := s.roomQuery(ctx).Where("room_id = ?", roomID).First(&room).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.RoomNotFound(roomID)
	}
	if err != nil {
		return nil, apperr.Persistence("find room", err)
	}
	return &room, nil
}

// FindRoomsForUser returns every room userID holds a membership row in, most recent
// activity first.
func (s *Service) FindRoomsForUser(ctx context.Context, userID string) ([]models.ChatRoom, error) {
	var rooms []models.ChatRoom
	err := s.roomQuery(ctx).
		Joins("JOIN memberships m ON m.room_id = chat_rooms.room_id").
		Where("m.user_id = ?", userID).
		Order("chat_rooms.last_message_at DESC").
		Find(&rooms).Error
	if err != nil {
		return nil, apperr.Persistence("list rooms", err)
	}
	return rooms, nil
}

// DeleteRoom removes the room and whatever membership rows remain.
func (s *Service) DeleteRoom(ctx context.Context, room *models.ChatRoom) error {
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("room_id = ?", room.RoomID).Delete(&models.Membership{}).Error; err != nil {
			return err
		}
		return tx.Where("room_id = ?", room.RoomID).Delete(&models.ChatRoom{}).Error
	})
	if err != nil {
		return apperr.Persistence("delete room", err)
	}
	room.Memberships = nil
	return nil
}

// TouchRoom bumps last_message_at so the room sorts first in room lists.
func (s *Service) TouchRoom(ctx context.Context, room *models.ChatRoom, at time.Time) error {
	err := s.DB.WithContext(ctx).
		Model(&models.ChatRoom{}).
		Where("room_id = ?", room.RoomID).
		Update("last_message_at", at).Error
	if err != nil {
		return apperr.Persistence("touch room", err)
	}
	room.LastMessageAt = at
	return nil
}

// RestoreMembershipIfDeleted clears the soft delete of userID's row. It reports whether a
// restoration happened; rows that were never left are untouched.
func (s *Service) RestoreMembershipIfDeleted(ctx context.Context, userID string, room *models.ChatRoom) (bool, error) {
	at := now()
	res := s.DB.WithContext(ctx).
		Model(&models.Membership{}).
		Where("room_id = ? AND user_id = ? AND left_at IS NOT NULL", room.RoomID, userID).
		Updates(map[string]interface{}{"left_at": nil, "restored_at": at})
	if res.Error != nil {
		return false, apperr.Persistence("restore membership", res.Error)
	}
	if res.RowsAffected == 0 {
		return false, nil
	}
	if m := room.MembershipOf(userID); m != nil {
		m.Apply(models.OnInboundMessage(m.State()), at)
	}
	return true, nil
}

// SoftDeleteMembership marks userID's row as left. The first leave timestamp wins.
func (s *Service) SoftDeleteMembership(ctx context.Context, userID string, room *models.ChatRoom) error {
	at := now()
	err := s.DB.WithContext(ctx).
		Model(&models.Membership{}).
		Where("room_id = ? AND user_id = ? AND left_at IS NULL", room.RoomID, userID).
		Updates(map[string]interface{}{"left_at": at, "online": false}).Error
	if err != nil {
		return apperr.Persistence("leave room", err)
	}
	if m := room.MembershipOf(userID); m != nil {
		m.Apply(models.OnLeave(m.State()), at)
	}
	return nil
}

// RemoveMembership hard-deletes userID's row and returns it.
func (s *Service) RemoveMembership(ctx context.Context, userID string, room *models.ChatRoom) (*models.Membership, error) {
	var m models.Membership
	err := s.DB.WithContext(ctx).
		Where("room_id = ? AND user_id = ?", room.RoomID, userID).
		First(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.ErrUserNotInRoom
	}
	if err != nil {
		return nil, apperr.Persistence("find membership", err)
	}
	if err := s.DB.WithContext(ctx).Delete(&m).Error; err != nil {
		return nil, apperr.Persistence("remove membership", err)
	}

	kept := room.Memberships[:0]
	for _, existing := range room.Memberships {
		if existing.UserID != userID {
			kept = append(kept, existing)
		}
	}
	room.Memberships = kept
	return &m, nil
}
