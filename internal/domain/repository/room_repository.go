package repository

import (
	"context"

	"marketchat/internal/domain/entity"
)

// RoomSnapshotHandler receives the full current result set of a live room
// query. It is invoked once immediately after subscribing and again on every
// write affecting the query. On an underlying stream error it receives an
// empty slice; a feed never fails its consumer.
type RoomSnapshotHandler func(rooms []*entity.ChatRoom)

// MessageSnapshotHandler receives the full ordered message list of a room,
// ascending by timestamp.
type MessageSnapshotHandler func(messages []*entity.Message)

// Unsubscribe releases a live subscription. Implementations must make it
// idempotent; callers invoke every active disposer on teardown.
type Unsubscribe func()

// RoomSummaryPatch is a merge patch against a room document: only the named
// fields change. Unread counter changes are keyed per participant so that
// concurrent writers touching different keys never conflict; increments are
// applied server-side rather than read-modify-write.
type RoomSummaryPatch struct {
	LastMessage      *string
	StampMessageTime bool
	IncrementUnread  map[string]int
	ResetUnread      []string
}

// RoomRepository is the contract over the persistence substrate: document
// collections with generated ids, array-containment queries, live snapshot
// subscriptions, atomic multi-document batches, and server-assigned monotonic
// timestamps.
type RoomRepository interface {
	FindRoomsContaining(ctx context.Context, userID string) ([]*entity.ChatRoom, error)
	CreateRoom(ctx context.Context, room *entity.ChatRoom) (*entity.ChatRoom, error)
	GetRoom(ctx context.Context, roomID string) (*entity.ChatRoom, error)

	// DeleteRooms removes the given rooms as one atomic batch. Deleting an
	// already-deleted room is a no-op, which keeps concurrent read-repair
	// runs safe.
	DeleteRooms(ctx context.Context, ids []string) error

	UpdateRoomSummary(ctx context.Context, roomID string, patch RoomSummaryPatch) error

	AppendMessage(ctx context.Context, roomID string, message *entity.Message) (*entity.Message, error)

	// ListMessages returns the room's full message list, ascending by
	// timestamp.
	ListMessages(ctx context.Context, roomID string) ([]*entity.Message, error)

	// BatchMarkRead flips read=true on the given messages as one atomic batch.
	BatchMarkRead(ctx context.Context, roomID string, messageIDs []string) error

	SubscribeRooms(ctx context.Context, userID string, fn RoomSnapshotHandler) Unsubscribe
	SubscribeMessages(ctx context.Context, roomID string, fn MessageSnapshotHandler) Unsubscribe
}
