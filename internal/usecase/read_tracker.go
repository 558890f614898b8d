package usecase

import (
	"context"

	"marketchat/internal/domain/entity"
	"marketchat/internal/domain/repository"
	"marketchat/pkg/errors"
)

// ReadTracker flips inbound messages to read and zeroes the viewer's unread
// counter. Callers invoke it only while the room is the active view, so a
// message never counts as read just because a list preview fetched it.
type ReadTracker struct {
	roomRepo repository.RoomRepository
}

func NewReadTracker(roomRepo repository.RoomRepository) *ReadTracker {
	return &ReadTracker{
		roomRepo: roomRepo,
	}
}

// MarkDelivered processes one delivered message snapshot for a viewer. The
// mark-read batch and the counter reset are two separate writes; losing the
// gap between them only delays a counter reset, it never corrupts state.
func (t *ReadTracker) MarkDelivered(ctx context.Context, viewer entity.Identity, roomID string, snapshot []*entity.Message) error {
	if !viewer.SignedIn() {
		return errors.NotSignedIn()
	}

	room, err := t.roomRepo.GetRoom(ctx, roomID)
	if err != nil {
		return err
	}
	if !room.HasParticipant(viewer.ID) {
		return errors.Forbidden("You are not a participant in this chat room", nil)
	}

	var unreadIDs []string
	for _, m := range snapshot {
		if m.Sender != viewer.ID && !m.Read {
			unreadIDs = append(unreadIDs, m.ID)
		}
	}
	if len(unreadIDs) == 0 {
		return nil
	}

	if err := t.roomRepo.BatchMarkRead(ctx, roomID, unreadIDs); err != nil {
		return err
	}

	return t.roomRepo.UpdateRoomSummary(ctx, roomID, repository.RoomSummaryPatch{
		ResetUnread: []string{viewer.ID},
	})
}
