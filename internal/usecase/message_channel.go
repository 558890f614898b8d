package usecase

import (
	"context"
	"strings"

	"marketchat/internal/domain/entity"
	"marketchat/internal/domain/repository"
	"marketchat/pkg/errors"
)

// MessageChannel appends messages and keeps the room summary in step: last
// message text and time, plus the recipient's unread counter. The counter
// bump is a server-side atomic increment applied to that one key, so two
// rapid sends never lose an update to each other.
type MessageChannel struct {
	roomRepo repository.RoomRepository
}

func NewMessageChannel(roomRepo repository.RoomRepository) *MessageChannel {
	return &MessageChannel{
		roomRepo: roomRepo,
	}
}

func (c *MessageChannel) Send(ctx context.Context, sender entity.Identity, roomID, text string) (*entity.Message, error) {
	if !sender.SignedIn() {
		return nil, errors.NotSignedIn()
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return nil, errors.EmptyMessage()
	}

	room, err := c.roomRepo.GetRoom(ctx, roomID)
	if err != nil {
		return nil, err
	}
	if !room.HasParticipant(sender.ID) {
		return nil, errors.Forbidden("You are not a participant in this chat room", nil)
	}

	message, err := c.roomRepo.AppendMessage(ctx, roomID, &entity.Message{
		Text:       text,
		Sender:     sender.ID,
		SenderName: sender.DisplayNameOrDefault(),
		Read:       false,
	})
	if err != nil {
		return nil, err
	}

	otherID := room.OtherParticipant(sender.ID)
	err = c.roomRepo.UpdateRoomSummary(ctx, roomID, repository.RoomSummaryPatch{
		LastMessage:      &text,
		StampMessageTime: true,
		IncrementUnread:  map[string]int{otherID: 1},
	})
	if err != nil {
		return nil, err
	}

	return message, nil
}
