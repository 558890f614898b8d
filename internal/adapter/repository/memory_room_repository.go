package repository

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"marketchat/internal/domain/entity"
	"marketchat/internal/domain/repository"
	"marketchat/pkg/errors"
)

// memoryRoomRepository implements the room store contract in process: rooms
// and messages live in maps, timestamps are assigned monotonically the way a
// server would, and every write pushes a fresh snapshot to the affected live
// subscriptions. It backs the usecase tests and the local development backend.
type memoryRoomRepository struct {
	mu        sync.Mutex
	rooms     map[string]*entity.ChatRoom
	roomOrder []string
	messages  map[string][]*entity.Message
	roomSubs  map[int]*roomSubscription
	msgSubs   map[int]*messageSubscription
	nextSubID int
	lastStamp time.Time
}

type roomSubscription struct {
	userID string
	fn     repository.RoomSnapshotHandler
}

type messageSubscription struct {
	roomID string
	fn     repository.MessageSnapshotHandler
}

func NewMemoryRoomRepository() repository.RoomRepository {
	return &memoryRoomRepository{
		rooms:    make(map[string]*entity.ChatRoom),
		messages: make(map[string][]*entity.Message),
		roomSubs: make(map[int]*roomSubscription),
		msgSubs:  make(map[int]*messageSubscription),
	}
}

// serverNow hands out strictly increasing timestamps. Two writes landing in
// the same wall-clock instant still order deterministically.
func (r *memoryRoomRepository) serverNow() time.Time {
	now := time.Now()
	if !now.After(r.lastStamp) {
		now = r.lastStamp.Add(time.Microsecond)
	}
	r.lastStamp = now
	return now
}

func cloneRoom(room *entity.ChatRoom) *entity.ChatRoom {
	c := *room
	c.Participants = append([]string(nil), room.Participants...)
	c.ParticipantNames = make(map[string]string, len(room.ParticipantNames))
	for k, v := range room.ParticipantNames {
		c.ParticipantNames[k] = v
	}
	c.UnreadCount = make(map[string]int, len(room.UnreadCount))
	for k, v := range room.UnreadCount {
		c.UnreadCount[k] = v
	}
	return &c
}

func cloneMessage(m *entity.Message) *entity.Message {
	c := *m
	return &c
}

// roomsContainingLocked returns arrival-ordered copies of the rooms that
// contain userID. Callers must hold mu.
func (r *memoryRoomRepository) roomsContainingLocked(userID string) []*entity.ChatRoom {
	var rooms []*entity.ChatRoom
	for _, id := range r.roomOrder {
		room, ok := r.rooms[id]
		if !ok {
			continue
		}
		if room.HasParticipant(userID) {
			rooms = append(rooms, cloneRoom(room))
		}
	}
	return rooms
}

func (r *memoryRoomRepository) messagesLocked(roomID string) []*entity.Message {
	stored := r.messages[roomID]
	messages := make([]*entity.Message, 0, len(stored))
	for _, m := range stored {
		messages = append(messages, cloneMessage(m))
	}
	return messages
}

// notifyRoomSubs recomputes and delivers room snapshots for every subscriber
// that can see one of the changed rooms. Delivery happens outside the lock so
// a callback may call back into the store.
func (r *memoryRoomRepository) notifyRoomSubs(changed ...*entity.ChatRoom) {
	type delivery struct {
		fn    repository.RoomSnapshotHandler
		rooms []*entity.ChatRoom
	}

	r.mu.Lock()
	var deliveries []delivery
	for _, sub := range r.roomSubs {
		affected := false
		for _, room := range changed {
			if room.HasParticipant(sub.userID) {
				affected = true
				break
			}
		}
		if affected {
			deliveries = append(deliveries, delivery{fn: sub.fn, rooms: r.roomsContainingLocked(sub.userID)})
		}
	}
	r.mu.Unlock()

	for _, d := range deliveries {
		d.fn(d.rooms)
	}
}

func (r *memoryRoomRepository) notifyMessageSubs(roomID string) {
	type delivery struct {
		fn       repository.MessageSnapshotHandler
		messages []*entity.Message
	}

	r.mu.Lock()
	var deliveries []delivery
	for _, sub := range r.msgSubs {
		if sub.roomID == roomID {
			deliveries = append(deliveries, delivery{fn: sub.fn, messages: r.messagesLocked(roomID)})
		}
	}
	r.mu.Unlock()

	for _, d := range deliveries {
		d.fn(d.messages)
	}
}

func (r *memoryRoomRepository) FindRoomsContaining(ctx context.Context, userID string) ([]*entity.ChatRoom, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.roomsContainingLocked(userID), nil
}

func (r *memoryRoomRepository) CreateRoom(ctx context.Context, room *entity.ChatRoom) (*entity.ChatRoom, error) {
	r.mu.Lock()
	stored := cloneRoom(room)
	if stored.ID == "" {
		stored.ID = uuid.New().String()
	}
	now := r.serverNow()
	stored.CreatedAt = now
	stored.LastMessageTime = now
	r.rooms[stored.ID] = stored
	r.roomOrder = append(r.roomOrder, stored.ID)
	result := cloneRoom(stored)
	r.mu.Unlock()

	r.notifyRoomSubs(result)
	return result, nil
}

func (r *memoryRoomRepository) GetRoom(ctx context.Context, roomID string) (*entity.ChatRoom, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	room, ok := r.rooms[roomID]
	if !ok {
		return nil, errors.RoomNotFound(nil)
	}
	return cloneRoom(room), nil
}

func (r *memoryRoomRepository) DeleteRooms(ctx context.Context, ids []string) error {
	r.mu.Lock()
	var deleted []*entity.ChatRoom
	for _, id := range ids {
		room, ok := r.rooms[id]
		if !ok {
			continue // already gone, concurrent read-repair is a no-op
		}
		deleted = append(deleted, cloneRoom(room))
		delete(r.rooms, id)
		delete(r.messages, id)
	}
	r.mu.Unlock()

	if len(deleted) > 0 {
		r.notifyRoomSubs(deleted...)
	}
	return nil
}

func (r *memoryRoomRepository) UpdateRoomSummary(ctx context.Context, roomID string, patch repository.RoomSummaryPatch) error {
	r.mu.Lock()
	room, ok := r.rooms[roomID]
	if !ok {
		r.mu.Unlock()
		return errors.RoomNotFound(nil)
	}

	if patch.LastMessage != nil {
		room.LastMessage = *patch.LastMessage
	}
	if patch.StampMessageTime {
		room.LastMessageTime = r.serverNow()
	}
	for userID, delta := range patch.IncrementUnread {
		room.UnreadCount[userID] += delta
	}
	for _, userID := range patch.ResetUnread {
		room.UnreadCount[userID] = 0
	}
	changed := cloneRoom(room)
	r.mu.Unlock()

	r.notifyRoomSubs(changed)
	return nil
}

func (r *memoryRoomRepository) AppendMessage(ctx context.Context, roomID string, message *entity.Message) (*entity.Message, error) {
	r.mu.Lock()
	if _, ok := r.rooms[roomID]; !ok {
		r.mu.Unlock()
		return nil, errors.RoomNotFound(nil)
	}

	stored := cloneMessage(message)
	if stored.ID == "" {
		stored.ID = uuid.New().String()
	}
	stored.Timestamp = r.serverNow()
	r.messages[roomID] = append(r.messages[roomID], stored)
	result := cloneMessage(stored)
	r.mu.Unlock()

	r.notifyMessageSubs(roomID)
	return result, nil
}

func (r *memoryRoomRepository) ListMessages(ctx context.Context, roomID string) ([]*entity.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.messagesLocked(roomID), nil
}

func (r *memoryRoomRepository) BatchMarkRead(ctx context.Context, roomID string, messageIDs []string) error {
	if len(messageIDs) == 0 {
		return nil
	}

	ids := make(map[string]bool, len(messageIDs))
	for _, id := range messageIDs {
		ids[id] = true
	}

	r.mu.Lock()
	changed := false
	for _, m := range r.messages[roomID] {
		if ids[m.ID] && !m.Read {
			m.Read = true
			changed = true
		}
	}
	r.mu.Unlock()

	if changed {
		r.notifyMessageSubs(roomID)
	}
	return nil
}

func (r *memoryRoomRepository) SubscribeRooms(ctx context.Context, userID string, fn repository.RoomSnapshotHandler) repository.Unsubscribe {
	r.mu.Lock()
	id := r.nextSubID
	r.nextSubID++
	r.roomSubs[id] = &roomSubscription{userID: userID, fn: fn}
	initial := r.roomsContainingLocked(userID)
	r.mu.Unlock()

	fn(initial)

	var once sync.Once
	return func() {
		once.Do(func() {
			r.mu.Lock()
			delete(r.roomSubs, id)
			r.mu.Unlock()
		})
	}
}

func (r *memoryRoomRepository) SubscribeMessages(ctx context.Context, roomID string, fn repository.MessageSnapshotHandler) repository.Unsubscribe {
	r.mu.Lock()
	id := r.nextSubID
	r.nextSubID++
	r.msgSubs[id] = &messageSubscription{roomID: roomID, fn: fn}
	initial := r.messagesLocked(roomID)
	r.mu.Unlock()

	fn(initial)

	var once sync.Once
	return func() {
		once.Do(func() {
			r.mu.Lock()
			delete(r.msgSubs, id)
			r.mu.Unlock()
		})
	}
}
