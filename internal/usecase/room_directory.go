package usecase

import (
	"context"
	"sort"

	"marketchat/internal/domain/entity"
	"marketchat/internal/domain/repository"
	"marketchat/pkg/errors"
	"marketchat/pkg/logger"
)

// RoomDirectory resolves the canonical room between two users. The store has
// no uniqueness constraint over the participant pair, so two concurrent
// creations can both land; the directory converges by read-repair: whichever
// caller next observes more than one candidate keeps the newest and deletes
// the rest. Cleanup is idempotent and safe to run from several callers at
// once, since deleting an already-deleted room is a no-op.
type RoomDirectory struct {
	roomRepo repository.RoomRepository
}

func NewRoomDirectory(roomRepo repository.RoomRepository) *RoomDirectory {
	return &RoomDirectory{
		roomRepo: roomRepo,
	}
}

type GetOrCreateRoomInput struct {
	OtherID     string
	OtherName   string
	ProductID   string
	ProductName string
}

func (d *RoomDirectory) GetOrCreateRoom(ctx context.Context, self entity.Identity, input GetOrCreateRoomInput) (*entity.ChatRoom, error) {
	if !self.SignedIn() {
		return nil, errors.NotSignedIn()
	}
	if self.ID == input.OtherID {
		return nil, errors.SelfChat()
	}

	rooms, err := d.roomRepo.FindRoomsContaining(ctx, self.ID)
	if err != nil {
		return nil, err
	}

	var candidates []*entity.ChatRoom
	for _, room := range rooms {
		if room.HasParticipant(input.OtherID) {
			candidates = append(candidates, room)
		}
	}

	switch len(candidates) {
	case 0:
		return d.createRoom(ctx, self, input)
	case 1:
		return candidates[0], nil
	default:
		return d.reconcile(ctx, candidates)
	}
}

func (d *RoomDirectory) createRoom(ctx context.Context, self entity.Identity, input GetOrCreateRoomInput) (*entity.ChatRoom, error) {
	room := &entity.ChatRoom{
		Participants: []string{self.ID, input.OtherID},
		ParticipantNames: map[string]string{
			self.ID:       self.DisplayNameOrDefault(),
			input.OtherID: input.OtherName,
		},
		LastMessage: "",
		UnreadCount: map[string]int{
			self.ID:       0,
			input.OtherID: 0,
		},
		ProductID:   input.ProductID,
		ProductName: input.ProductName,
	}

	return d.roomRepo.CreateRoom(ctx, room)
}

// reconcile keeps the candidate with the latest createdAt, breaking ties by
// smallest id so every concurrent reconciler picks the same survivor, and
// deletes the rest in one batch.
func (d *RoomDirectory) reconcile(ctx context.Context, candidates []*entity.ChatRoom) (*entity.ChatRoom, error) {
	sort.Slice(candidates, func(i, j int) bool {
		if !candidates[i].CreatedAt.Equal(candidates[j].CreatedAt) {
			return candidates[i].CreatedAt.After(candidates[j].CreatedAt)
		}
		return candidates[i].ID < candidates[j].ID
	})

	canonical := candidates[0]
	duplicateIDs := make([]string, 0, len(candidates)-1)
	for _, room := range candidates[1:] {
		duplicateIDs = append(duplicateIDs, room.ID)
	}

	logger.Warn("Found %d rooms for pair %s, keeping %s", len(candidates), canonical.PairKey(), canonical.ID)

	if err := d.roomRepo.DeleteRooms(ctx, duplicateIDs); err != nil {
		return nil, err
	}
	return canonical, nil
}
