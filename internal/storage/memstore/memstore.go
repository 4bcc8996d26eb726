// Package memstore is an in-memory storage.Storage for tests. The server always runs on
// PostgreSQL.
package memstore

import (
	"context"
	"fmt"
	"lessonchat/backend/internal/apperr"
	"lessonchat/backend/internal/models"
	"lessonchat/backend/internal/storage"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

type state struct {
	rooms    map[string]*models.ChatRoom
	messages []models.ChatMessage
	users    map[string]models.User
	classes  map[string]string

	nextMessageID    uint
	nextMembershipID uint
}

type db struct {
	mu  sync.Mutex
	now func() time.Time
	state
}

// Store implements storage.Storage. Every operation is serialized; a transaction holds
// the lock for its whole duration and is rolled back from a snapshot on error.
type Store struct {
	db   *db
	inTx bool
}

var _ storage.Storage = (*Store)(nil)

func New() *Store {
	return &Store{db: &db{
		now: time.Now,
		state: state{
			rooms:   make(map[string]*models.ChatRoom),
			users:   make(map[string]models.User),
			classes: make(map[string]string),
		},
	}}
}

// SetClock replaces the time source.
func (s *Store) SetClock(now func() time.Time) {
	unlock := s.lock()
	defer unlock()
	s.db.now = now
}

// AddUser seeds the user directory.
func (s *Store) AddUser(u models.User) {
	unlock := s.lock()
	defer unlock()
	s.db.users[u.ID] = u
}

// AddClass seeds the class directory.
func (s *Store) AddClass(classID, ownerID string) {
	unlock := s.lock()
	defer unlock()
	s.db.classes[classID] = ownerID
}

func (s *Store) lock() func() {
	if s.inTx {
		return func() {}
	}
	s.db.mu.Lock()
	return s.db.mu.Unlock
}

func (s *Store) Transaction(ctx context.Context, fn func(tx storage.Storage) error) error {
	if s.inTx {
		return fn(s)
	}
	s.db.mu.Lock()
	defer s.db.mu.Unlock()

	snapshot := s.db.state.clone()
	if err := fn(&Store{db: s.db, inTx: true}); err != nil {
		s.db.state = snapshot
		return err
	}
	return nil
}

func (st state) clone() state {
	c := state{
		rooms:            make(map[string]*models.ChatRoom, len(st.rooms)),
		messages:         append([]models.ChatMessage(nil), st.messages...),
		users:            make(map[string]models.User, len(st.users)),
		classes:          make(map[string]string, len(st.classes)),
		nextMessageID:    st.nextMessageID,
		nextMembershipID: st.nextMembershipID,
	}
	for id, r := range st.rooms {
		c.rooms[id] = copyRoom(r)
	}
	for id, u := range st.users {
		c.users[id] = u
	}
	for id, owner := range st.classes {
		c.classes[id] = owner
	}
	return c
}

func copyRoom(r *models.ChatRoom) *models.ChatRoom {
	c := *r
	c.Memberships = append([]models.Membership(nil), r.Memberships...)
	return &c
}

func (s *Store) stamp() time.Time {
	return s.db.now().UTC()
}

// Messages

func (s *Store) SaveMessage(ctx context.Context, msg *models.ChatMessage) error {
	unlock := s.lock()
	defer unlock()
	if _, ok := s.db.rooms[msg.RoomID]; !ok {
		return apperr.Persistence("save message", fmt.Errorf("room %s does not exist", msg.RoomID))
	}
	if msg.SentAt.IsZero() {
		msg.SentAt = s.stamp()
	}
	s.db.nextMessageID++
	msg.ID = s.db.nextMessageID
	s.db.messages = append(s.db.messages, *msg)
	return nil
}

func (s *Store) FindMessageByID(ctx context.Context, id uint) (*models.ChatMessage, error) {
	unlock := s.lock()
	defer unlock()
	if i := s.messageIndex(id); i >= 0 {
		msg := s.db.messages[i]
		return &msg, nil
	}
	return nil, apperr.New(apperr.CodeMessageNotFound, fmt.Sprintf("message not found: %d", id), nil)
}

func (s *Store) messageIndex(id uint) int {
	for i := range s.db.messages {
		if s.db.messages[i].ID == id {
			return i
		}
	}
	return -1
}

func (s *Store) FindMessagesByRoomAsc(ctx context.Context, roomID string) ([]models.ChatMessage, error) {
	unlock := s.lock()
	defer unlock()
	return s.filterMessages(func(m *models.ChatMessage) bool { return m.RoomID == roomID }), nil
}

func (s *Store) FindMessagesByRoomDesc(ctx context.Context, roomID string) ([]models.ChatMessage, error) {
	asc, _ := s.FindMessagesByRoomAsc(ctx, roomID)
	for i, j := 0, len(asc)-1; i < j; i, j = i+1, j-1 {
		asc[i], asc[j] = asc[j], asc[i]
	}
	return asc, nil
}

func (s *Store) FindLatestMessage(ctx context.Context, roomID string) (*models.ChatMessage, error) {
	desc, _ := s.FindMessagesByRoomDesc(ctx, roomID)
	if len(desc) == 0 {
		return nil, nil
	}
	return &desc[0], nil
}

func (s *Store) FindUnreadNotSentBy(ctx context.Context, roomID, userID string, since time.Time) ([]models.ChatMessage, error) {
	unlock := s.lock()
	defer unlock()
	return s.filterMessages(unreadFilter(roomID, userID, since)), nil
}

func (s *Store) CountUnreadNotSentBy(ctx context.Context, roomID, userID string, since time.Time) (int64, error) {
	unread, _ := s.FindUnreadNotSentBy(ctx, roomID, userID, since)
	return int64(len(unread)), nil
}

func unreadFilter(roomID, userID string, since time.Time) func(*models.ChatMessage) bool {
	return func(m *models.ChatMessage) bool {
		if m.RoomID != roomID || m.IsRead || m.SentBy(userID) {
			return false
		}
		return since.IsZero() || !m.SentAt.Before(since)
	}
}

// filterMessages returns matching messages ordered by (SentAt, ID).
func (s *Store) filterMessages(keep func(*models.ChatMessage) bool) []models.ChatMessage {
	var out []models.ChatMessage
	for i := range s.db.messages {
		if keep(&s.db.messages[i]) {
			out = append(out, s.db.messages[i])
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].SentAt.Equal(out[j].SentAt) {
			return out[i].SentAt.Before(out[j].SentAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func (s *Store) MarkRead(ctx context.Context, msg *models.ChatMessage) error {
	unlock := s.lock()
	defer unlock()
	i := s.messageIndex(msg.ID)
	if i < 0 {
		return apperr.New(apperr.CodeMessageNotFound, fmt.Sprintf("message not found: %d", msg.ID), nil)
	}
	s.db.messages[i].IsRead = true
	msg.IsRead = true
	return nil
}

// Rooms

func (s *Store) FindOrCreateRoom(ctx context.Context, userA, userB string) (*models.ChatRoom, bool, error) {
	if userA == userB {
		return nil, false, apperr.InvalidRequest("cannot open a chat with yourself")
	}
	unlock := s.lock()
	defer unlock()

	key := models.PairKey(userA, userB)
	for _, r := range s.db.rooms {
		if r.PairKey == key {
			return copyRoom(r), false, nil
		}
	}

	at := s.stamp()
	room := &models.ChatRoom{
		RoomID:        uuid.New().String(),
		InitiatorID:   userA,
		CounterpartID: userB,
		PairKey:       key,
		LastMessageAt: at,
		CreatedAt:     at,
	}
	for _, userID := range []string{userA, userB} {
		s.db.nextMembershipID++
		room.Memberships = append(room.Memberships, models.Membership{
			ID:        s.db.nextMembershipID,
			RoomID:    room.RoomID,
			UserID:    userID,
			CreatedAt: at,
		})
	}
	s.db.rooms[room.RoomID] = room
	return copyRoom(room), true, nil
}

func (s *Store) FindRoomByID(ctx context.Context, roomID string) (*models.ChatRoom, error) {
	unlock := s.lock()
	defer unlock()
	r, ok := s.db.rooms[roomID]
	if !ok {
		return nil, apperr.RoomNotFound(roomID)
	}
	return copyRoom(r), nil
}

func (s *Store) FindRoomsForUser(ctx context.Context, userID string) ([]models.ChatRoom, error) {
	unlock := s.lock()
	defer unlock()
	var rooms []models.ChatRoom
	for _, r := range s.db.rooms {
		if r.MembershipOf(userID) != nil {
			rooms = append(rooms, *copyRoom(r))
		}
	}
	sort.Slice(rooms, func(i, j int) bool {
		return rooms[i].LastMessageAt.After(rooms[j].LastMessageAt)
	})
	return rooms, nil
}

func (s *Store) DeleteRoom(ctx context.Context, room *models.ChatRoom) error {
	unlock := s.lock()
	defer unlock()
	delete(s.db.rooms, room.RoomID)
	room.Memberships = nil
	return nil
}

func (s *Store) TouchRoom(ctx context.Context, room *models.ChatRoom, at time.Time) error {
	unlock := s.lock()
	defer unlock()
	if r, ok := s.db.rooms[room.RoomID]; ok {
		r.LastMessageAt = at
	}
	room.LastMessageAt = at
	return nil
}

// withMembership runs fn against the stored row and mirrors the result into room.
func (s *Store) withMembership(userID string, room *models.ChatRoom, fn func(m *models.Membership) bool) bool {
	r, ok := s.db.rooms[room.RoomID]
	if !ok {
		return false
	}
	m := r.MembershipOf(userID)
	if m == nil || !fn(m) {
		return false
	}
	if local := room.MembershipOf(userID); local != nil {
		*local = *m
	}
	return true
}

func (s *Store) RestoreMembershipIfDeleted(ctx context.Context, userID string, room *models.ChatRoom) (bool, error) {
	unlock := s.lock()
	defer unlock()
	at := s.stamp()
	restored := s.withMembership(userID, room, func(m *models.Membership) bool {
		if !m.IsLeft() {
			return false
		}
		m.Apply(models.OnInboundMessage(m.State()), at)
		return true
	})
	return restored, nil
}

func (s *Store) SoftDeleteMembership(ctx context.Context, userID string, room *models.ChatRoom) error {
	unlock := s.lock()
	defer unlock()
	at := s.stamp()
	s.withMembership(userID, room, func(m *models.Membership) bool {
		m.Apply(models.OnLeave(m.State()), at)
		return true
	})
	return nil
}

func (s *Store) RemoveMembership(ctx context.Context, userID string, room *models.ChatRoom) (*models.Membership, error) {
	unlock := s.lock()
	defer unlock()
	r, ok := s.db.rooms[room.RoomID]
	if !ok {
		return nil, apperr.RoomNotFound(room.RoomID)
	}
	m := r.MembershipOf(userID)
	if m == nil {
		return nil, apperr.ErrUserNotInRoom
	}
	removed := *m
	r.Memberships = without(r.Memberships, userID)
	room.Memberships = without(room.Memberships, userID)
	return &removed, nil
}

func without(ms []models.Membership, userID string) []models.Membership {
	out := make([]models.Membership, 0, len(ms))
	for _, m := range ms {
		if m.UserID != userID {
			out = append(out, m)
		}
	}
	return out
}

// Presence

func (s *Store) SetOnline(ctx context.Context, userID string, room *models.ChatRoom) error {
	return s.setPresence(userID, room, true)
}

func (s *Store) SetOffline(ctx context.Context, userID string, room *models.ChatRoom) error {
	return s.setPresence(userID, room, false)
}

func (s *Store) setPresence(userID string, room *models.ChatRoom, online bool) error {
	unlock := s.lock()
	defer unlock()
	s.withMembership(userID, room, func(m *models.Membership) bool {
		m.Online = online
		return true
	})
	return nil
}

// Directories

func (s *Store) FindUserByID(ctx context.Context, id string) (*models.User, error) {
	unlock := s.lock()
	defer unlock()
	if u, ok := s.db.users[id]; ok {
		return &u, nil
	}
	return nil, apperr.UserNotFound(id)
}

func (s *Store) FindUserByEmail(ctx context.Context, email string) (*models.User, error) {
	unlock := s.lock()
	defer unlock()
	for _, u := range s.db.users {
		if u.Email == email {
			u := u
			return &u, nil
		}
	}
	return nil, apperr.UserNotFound(email)
}

func (s *Store) OwnerOfClass(ctx context.Context, classID string) (string, error) {
	unlock := s.lock()
	defer unlock()
	owner, ok := s.db.classes[classID]
	if !ok {
		return "", apperr.InvalidRequest("unknown class " + classID)
	}
	return owner, nil
}
