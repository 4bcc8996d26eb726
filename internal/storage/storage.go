package storage

import (
	"context"
	"lessonchat/backend/internal/apperr"
	"lessonchat/backend/internal/models"
	"time"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// MessageStore is the append-only record of chat messages.
type MessageStore interface {
	SaveMessage(ctx context.Context, msg *models.ChatMessage) error
	FindMessageByID(ctx context.Context, id uint) (*models.ChatMessage, error)
	FindMessagesByRoomAsc(ctx context.Context, roomID string) ([]models.ChatMessage, error)
	FindMessagesByRoomDesc(ctx context.Context, roomID string) ([]models.ChatMessage, error)
	FindLatestMessage(ctx context.Context, roomID string) (*models.ChatMessage, error)
	// FindUnreadNotSentBy returns unread messages of the room not authored by userID.
	// A non-zero since drops messages sent before it.
	FindUnreadNotSentBy(ctx context.Context, roomID, userID string, since time.Time) ([]models.ChatMessage, error)
	CountUnreadNotSentBy(ctx context.Context, roomID, userID string, since time.Time) (int64, error)
	MarkRead(ctx context.Context, msg *models.ChatMessage) error
}

// RoomDirectory creates and finds rooms and owns their membership rows.
type RoomDirectory interface {
	FindOrCreateRoom(ctx context.Context, userA, userB string) (room *models.ChatRoom, created bool, err error)
	FindRoomByID(ctx context.Context, roomID string) (*models.ChatRoom, error)
	FindRoomsForUser(ctx context.Context, userID string) ([]models.ChatRoom, error)
	DeleteRoom(ctx context.Context, room *models.ChatRoom) error
	TouchRoom(ctx context.Context, room *models.ChatRoom, at time.Time) error

	RestoreMembershipIfDeleted(ctx context.Context, userID string, room *models.ChatRoom) (bool, error)
	SoftDeleteMembership(ctx context.Context, userID string, room *models.ChatRoom) error
	RemoveMembership(ctx context.Context, userID string, room *models.ChatRoom) (*models.Membership, error)
}

// PresenceTracker flips the room-scoped online flag on a membership row.
type PresenceTracker interface {
	SetOnline(ctx context.Context, userID string, room *models.ChatRoom) error
	SetOffline(ctx context.Context, userID string, room *models.ChatRoom) error
}

// UserDirectory is the narrow view of the identity service.
type UserDirectory interface {
	FindUserByID(ctx context.Context, id string) (*models.User, error)
	FindUserByEmail(ctx context.Context, email string) (*models.User, error)
}

// ClassDirectory resolves who owns a class (chat started from a class page).
type ClassDirectory interface {
	OwnerOfClass(ctx context.Context, classID string) (string, error)
}

type Storage interface {
	MessageStore
	RoomDirectory
	PresenceTracker
	UserDirectory
	ClassDirectory

	// Transaction runs fn atomically. If fn returns an error nothing is persisted.
	Transaction(ctx context.Context, fn func(tx Storage) error) error
}

type Service struct {
	DB    *gorm.DB
	Redis *redis.Client
}

// NewStorageService Constructor
func NewStorageService(db *gorm.DB, rdb *redis.Client) *Service {
	return &Service{
		DB:    db,
		Redis: rdb,
	}
}

// Transaction runs fn inside a database transaction. Nested calls become savepoints.
func (s *Service) Transaction(ctx context.Context, fn func(tx Storage) error) error {
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&Service{DB: tx, Redis: s.Redis})
	})
	return apperr.Persistence("transaction", err)
}

// now is truncated to the precision PostgreSQL keeps, so values returned to callers
// compare equal to what a later read returns.
func now() time.Time {
	return time.Now().UTC().Truncate(time.Microsecond)
}
