package models

import (
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ChatRoom represents a 1-on-1 chat between two marketplace users.
// At most one room exists per unordered pair of participants; PairKey carries the
// unique constraint that enforces it.
type ChatRoom struct {
	// RoomID is the unique identifier for the chat room (UUID).
	RoomID string `gorm:"primaryKey;type:uuid" json:"room_id"`
	// InitiatorID is the user who requested the chat.
	InitiatorID string `gorm:"type:text;not null;index" json:"initiator_id"`
	// CounterpartID is the user the initiator wanted to talk to.
	CounterpartID string `gorm:"type:text;not null;index" json:"counterpart_id"`
	// PairKey is the sorted participant pair, see PairKey().
	PairKey string `gorm:"type:text;not null;uniqueIndex" json:"-"`
	// LastMessageAt is bumped on every persisted message and drives list ordering.
	LastMessageAt time.Time `gorm:"not null;index" json:"last_message_at"`
	CreatedAt     time.Time `json:"created_at"`

	Memberships []Membership `gorm:"foreignKey:RoomID;references:RoomID;constraint:OnDelete:CASCADE" json:"-"`
}

// BeforeCreate generates the room UUID and the pair key if they are not set yet.
func (r *ChatRoom) BeforeCreate(tx *gorm.DB) (err error) {
	if r.RoomID == "" {
		r.RoomID = uuid.New().String()
	}
	if r.PairKey == "" {
		r.PairKey = PairKey(r.InitiatorID, r.CounterpartID)
	}
	if r.LastMessageAt.IsZero() {
		r.LastMessageAt = time.Now()
	}
	return
}

// PairKey returns an order-independent key for two participants. The length prefix keeps
// ids that contain the separator from colliding: {"a:b","c"} and {"a","b:c"} differ.
func PairKey(userA, userB string) string {
	ids := []string{userA, userB}
	sort.Strings(ids)
	return strconv.Itoa(len(ids[0])) + ":" + strings.Join(ids, ":")
}

// HasParticipant reports whether userID is the initiator or the counterpart.
func (r *ChatRoom) HasParticipant(userID string) bool {
	return r.InitiatorID == userID || r.CounterpartID == userID
}

// PartnerOf returns the other participant of the room.
func (r *ChatRoom) PartnerOf(userID string) string {
	if r.InitiatorID == userID {
		return r.CounterpartID
	}
	return r.InitiatorID
}

// MembershipOf returns the membership row of userID, or nil.
func (r *ChatRoom) MembershipOf(userID string) *Membership {
	for i := range r.Memberships {
		if r.Memberships[i].UserID == userID {
			return &r.Memberships[i]
		}
	}
	return nil
}

// ActiveMemberships counts memberships that have not been left.
func (r *ChatRoom) ActiveMemberships() int {
	n := 0
	for _, m := range r.Memberships {
		if m.LeftAt == nil {
			n++
		}
	}
	return n
}
