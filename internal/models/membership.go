package models

import "time"

// Membership is a user's join record for a room. It carries the room-scoped
// presence flag and the soft-delete ("left") timestamp.
type Membership struct {
	ID     uint   `gorm:"primaryKey" json:"id"`
	RoomID string `gorm:"type:uuid;not null;uniqueIndex:idx_membership_room_user" json:"room_id"`
	UserID string `gorm:"type:text;not null;uniqueIndex:idx_membership_room_user;index" json:"user_id"`
	// Online is true only while the user is viewing the room.
	Online bool `gorm:"not null;default:false" json:"online"`
	// LeftAt is the soft-delete timestamp. nil means the membership is active.
	LeftAt *time.Time `gorm:"index" json:"left_at,omitempty"`
	// RestoredAt is stamped when a left membership is brought back by an inbound message.
	RestoredAt *time.Time `json:"restored_at,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
}

// IsOnline is a direct read of the presence flag.
func (m *Membership) IsOnline() bool {
	return m.Online
}

// IsLeft reports whether the membership is soft-deleted.
func (m *Membership) IsLeft() bool {
	return m.LeftAt != nil
}

// UnreadSince is the lower bound for unread accounting: messages sent before a
// restoration do not count towards the unread badge.
func (m *Membership) UnreadSince() time.Time {
	if m.RestoredAt == nil {
		return time.Time{}
	}
	return *m.RestoredAt
}

// State derives the lifecycle state from the stored flags.
func (m *Membership) State() MembershipState {
	switch {
	case m.LeftAt != nil:
		return StateLeft
	case m.Online:
		return StateActiveOnline
	default:
		return StateActiveOffline
	}
}

// Apply writes a target state back onto the row. Leaving keeps the row (soft delete);
// coming back from StateLeft stamps RestoredAt.
func (m *Membership) Apply(next MembershipState, at time.Time) {
	prev := m.State()
	switch next {
	case StateLeft:
		if m.LeftAt == nil {
			m.LeftAt = &at
		}
		m.Online = false
	case StateActiveOnline:
		m.LeftAt = nil
		m.Online = true
	case StateActiveOffline:
		m.LeftAt = nil
		m.Online = false
	}
	if prev == StateLeft && next != StateLeft {
		m.RestoredAt = &at
	}
}

// MembershipState is the lifecycle state of a Membership.
type MembershipState string

const (
	StateActiveOnline  MembershipState = "ACTIVE-ONLINE"
	StateActiveOffline MembershipState = "ACTIVE-OFFLINE"
	StateLeft          MembershipState = "LEFT"
)

func (s MembershipState) IsValid() bool {
	switch s {
	case StateActiveOnline, StateActiveOffline, StateLeft:
		return true
	}
	return false
}

// OnJoin is the transition for entering a room: any state becomes ACTIVE-ONLINE.
func OnJoin(MembershipState) MembershipState {
	return StateActiveOnline
}

// OnClose is the transition for navigating away from a room.
func OnClose(s MembershipState) MembershipState {
	if s == StateActiveOnline {
		return StateActiveOffline
	}
	return s
}

// OnLeave is the transition for an explicit exit.
func OnLeave(MembershipState) MembershipState {
	return StateLeft
}

// OnInboundMessage restores a left recipient before unread accounting runs.
func OnInboundMessage(s MembershipState) MembershipState {
	if s == StateLeft {
		return StateActiveOffline
	}
	return s
}
