package usecase

import (
	"context"
	"sort"

	"marketchat/internal/domain/entity"
	"marketchat/internal/domain/repository"
	"marketchat/pkg/errors"
	"marketchat/pkg/logger"
)

// SubscriptionHub exposes the live feeds consumed by UI code. Feeds never
// fail their consumer: a signed-out caller or a stream error yields an empty
// emission, and the only trace of the failure is a log line.
type SubscriptionHub struct {
	roomRepo repository.RoomRepository
	tracker  *ReadTracker
}

func NewSubscriptionHub(roomRepo repository.RoomRepository, tracker *ReadTracker) *SubscriptionHub {
	return &SubscriptionHub{
		roomRepo: roomRepo,
		tracker:  tracker,
	}
}

func noopUnsubscribe() {}

// RoomList is the one-shot counterpart of RoomListFeed, deduplicated and
// sorted the same way.
func (h *SubscriptionHub) RoomList(ctx context.Context, viewer entity.Identity) ([]*entity.ChatRoom, error) {
	if !viewer.SignedIn() {
		return nil, errors.NotSignedIn()
	}
	rooms, err := h.roomRepo.FindRoomsContaining(ctx, viewer.ID)
	if err != nil {
		return nil, err
	}
	return dedupeAndSortRooms(rooms), nil
}

// Messages is the one-shot counterpart of MessageFeed. Only participants may
// read a room's messages.
func (h *SubscriptionHub) Messages(ctx context.Context, viewer entity.Identity, roomID string) ([]*entity.Message, error) {
	if !viewer.SignedIn() {
		return nil, errors.NotSignedIn()
	}
	room, err := h.roomRepo.GetRoom(ctx, roomID)
	if err != nil {
		return nil, err
	}
	if !room.HasParticipant(viewer.ID) {
		return nil, errors.Forbidden("You are not a participant in this chat room", nil)
	}
	return h.roomRepo.ListMessages(ctx, roomID)
}

// RoomListFeed streams the viewer's room list, newest activity first. Rooms
// sharing a participant pair are collapsed to the first occurrence so a
// transient duplicate (a creation race not yet repaired) is never shown; the
// destructive cleanup itself only happens in RoomDirectory.
func (h *SubscriptionHub) RoomListFeed(ctx context.Context, viewer entity.Identity, fn func([]*entity.ChatRoom)) repository.Unsubscribe {
	if !viewer.SignedIn() {
		fn(nil)
		return noopUnsubscribe
	}

	return h.roomRepo.SubscribeRooms(ctx, viewer.ID, func(rooms []*entity.ChatRoom) {
		fn(dedupeAndSortRooms(rooms))
	})
}

func dedupeAndSortRooms(rooms []*entity.ChatRoom) []*entity.ChatRoom {
	seen := make(map[string]bool, len(rooms))
	result := make([]*entity.ChatRoom, 0, len(rooms))
	for _, room := range rooms {
		if len(room.Participants) != 2 {
			continue
		}
		key := room.PairKey()
		if seen[key] {
			continue
		}
		seen[key] = true
		result = append(result, room)
	}

	sort.SliceStable(result, func(i, j int) bool {
		ti, tj := result[i].LastMessageTime, result[j].LastMessageTime
		if ti.IsZero() {
			return false
		}
		if tj.IsZero() {
			return true
		}
		return ti.After(tj)
	})

	return result
}

// MessageFeed streams a room's full ordered message list on every change.
// It does not touch read state; use ActiveMessageFeed for the room the
// viewer actually has open.
func (h *SubscriptionHub) MessageFeed(ctx context.Context, roomID string, fn func([]*entity.Message)) repository.Unsubscribe {
	return h.roomRepo.SubscribeMessages(ctx, roomID, fn)
}

// ActiveMessageFeed is MessageFeed plus read tracking: each snapshot is
// handed to the consumer first, then any inbound unread messages in it are
// marked read on the viewer's behalf. A viewer who is not a participant of
// the room gets an empty emission and no subscription.
func (h *SubscriptionHub) ActiveMessageFeed(ctx context.Context, viewer entity.Identity, roomID string, fn func([]*entity.Message)) repository.Unsubscribe {
	if !viewer.SignedIn() {
		fn(nil)
		return noopUnsubscribe
	}

	room, err := h.roomRepo.GetRoom(ctx, roomID)
	if err == nil && !room.HasParticipant(viewer.ID) {
		err = errors.Forbidden("You are not a participant in this chat room", nil)
	}
	if err != nil {
		logger.FeedError("active-messages", roomID, err)
		fn(nil)
		return noopUnsubscribe
	}

	return h.roomRepo.SubscribeMessages(ctx, roomID, func(messages []*entity.Message) {
		fn(messages)
		if err := h.tracker.MarkDelivered(ctx, viewer, roomID, messages); err != nil {
			logger.FeedError("active-messages", roomID, err)
		}
	})
}

// UnreadTotalFeed re-sums the viewer's unread counters across all rooms on
// every snapshot. It deliberately skips pair deduplication: until a duplicate
// room is reconciled its counter still represents real unread messages, and
// transiently overcounting beats undercounting.
func (h *SubscriptionHub) UnreadTotalFeed(ctx context.Context, viewer entity.Identity, fn func(int)) repository.Unsubscribe {
	if !viewer.SignedIn() {
		fn(0)
		return noopUnsubscribe
	}

	return h.roomRepo.SubscribeRooms(ctx, viewer.ID, func(rooms []*entity.ChatRoom) {
		total := 0
		for _, room := range rooms {
			total += room.UnreadFor(viewer.ID)
		}
		fn(total)
	})
}
