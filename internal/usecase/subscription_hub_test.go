package usecase

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"marketchat/internal/adapter/repository"
	"marketchat/internal/domain/entity"
	domainrepo "marketchat/internal/domain/repository"
	"marketchat/pkg/errors"
)

type hubFixture struct {
	repo      domainrepo.RoomRepository
	directory *RoomDirectory
	channel   *MessageChannel
	tracker   *ReadTracker
	hub       *SubscriptionHub
}

func newHubFixture() *hubFixture {
	repo := repository.NewMemoryRoomRepository()
	tracker := NewReadTracker(repo)
	return &hubFixture{
		repo:      repo,
		directory: NewRoomDirectory(repo),
		channel:   NewMessageChannel(repo),
		tracker:   tracker,
		hub:       NewSubscriptionHub(repo, tracker),
	}
}

func TestRoomListFeedSortsByActivity(t *testing.T) {
	f := newHubFixture()
	ctx := context.Background()

	carol := entity.Identity{ID: "u3", DisplayName: "Carol"}
	withBob, err := f.directory.GetOrCreateRoom(ctx, alice, GetOrCreateRoomInput{OtherID: bob.ID, OtherName: "Bob"})
	require.NoError(t, err)
	withCarol, err := f.directory.GetOrCreateRoom(ctx, alice, GetOrCreateRoomInput{OtherID: carol.ID, OtherName: "Carol"})
	require.NoError(t, err)

	_, err = f.channel.Send(ctx, bob, withBob.ID, "older")
	require.NoError(t, err)
	_, err = f.channel.Send(ctx, carol, withCarol.ID, "newer")
	require.NoError(t, err)

	var last []*entity.ChatRoom
	stop := f.hub.RoomListFeed(ctx, alice, func(rooms []*entity.ChatRoom) {
		last = rooms
	})
	defer stop()

	require.Len(t, last, 2)
	assert.Equal(t, withCarol.ID, last[0].ID)
	assert.Equal(t, withBob.ID, last[1].ID)

	// New activity in the quiet room moves it to the front.
	_, err = f.channel.Send(ctx, bob, withBob.ID, "newest")
	require.NoError(t, err)
	require.Len(t, last, 2)
	assert.Equal(t, withBob.ID, last[0].ID)
}

func TestRoomListFeedRanksSilentRoomsLast(t *testing.T) {
	f := newHubFixture()
	ctx := context.Background()

	carol := entity.Identity{ID: "u3", DisplayName: "Carol"}
	silent, err := f.directory.GetOrCreateRoom(ctx, alice, GetOrCreateRoomInput{OtherID: carol.ID, OtherName: "Carol"})
	require.NoError(t, err)
	active, err := f.directory.GetOrCreateRoom(ctx, alice, GetOrCreateRoomInput{OtherID: bob.ID, OtherName: "Bob"})
	require.NoError(t, err)
	_, err = f.channel.Send(ctx, bob, active.ID, "hi")
	require.NoError(t, err)

	rooms, err := f.hub.RoomList(ctx, alice)
	require.NoError(t, err)
	require.Len(t, rooms, 2)
	assert.Equal(t, active.ID, rooms[0].ID)
	assert.Equal(t, silent.ID, rooms[1].ID)
}

func TestRoomListFeedCollapsesDuplicatePairs(t *testing.T) {
	f := newHubFixture()
	ctx := context.Background()

	// An unrepaired creation race: two stored rooms for the same pair.
	for i := 0; i < 2; i++ {
		_, err := f.repo.CreateRoom(ctx, &entity.ChatRoom{
			Participants:     []string{"u1", "u2"},
			ParticipantNames: map[string]string{"u1": "Alice", "u2": "Bob"},
			UnreadCount:      map[string]int{"u1": 0, "u2": 0},
		})
		require.NoError(t, err)
	}

	rooms, err := f.hub.RoomList(ctx, alice)
	require.NoError(t, err)
	assert.Len(t, rooms, 1)
}

func TestRoomListFeedDropsMalformedRooms(t *testing.T) {
	f := newHubFixture()
	ctx := context.Background()

	_, err := f.repo.CreateRoom(ctx, &entity.ChatRoom{
		Participants: []string{"u1"},
		UnreadCount:  map[string]int{"u1": 0},
	})
	require.NoError(t, err)

	rooms, err := f.hub.RoomList(ctx, alice)
	require.NoError(t, err)
	assert.Empty(t, rooms)
}

func TestRoomListFeedEmitsEmptyForSignedOutViewer(t *testing.T) {
	f := newHubFixture()

	emitted := false
	stop := f.hub.RoomListFeed(context.Background(), entity.Identity{}, func(rooms []*entity.ChatRoom) {
		emitted = true
		assert.Empty(t, rooms)
	})
	assert.True(t, emitted)
	stop()
	stop() // disposer stays safe when called twice
}

func TestMessageFeedStreamsEveryChange(t *testing.T) {
	f := newHubFixture()
	ctx := context.Background()

	room, err := f.directory.GetOrCreateRoom(ctx, alice, GetOrCreateRoomInput{OtherID: bob.ID, OtherName: "Bob"})
	require.NoError(t, err)

	var snapshots [][]*entity.Message
	stop := f.hub.MessageFeed(ctx, room.ID, func(messages []*entity.Message) {
		snapshots = append(snapshots, messages)
	})

	_, err = f.channel.Send(ctx, alice, room.ID, "first")
	require.NoError(t, err)
	_, err = f.channel.Send(ctx, bob, room.ID, "second")
	require.NoError(t, err)

	// Initial empty snapshot plus one per send.
	require.Len(t, snapshots, 3)
	assert.Empty(t, snapshots[0])
	require.Len(t, snapshots[2], 2)
	assert.Equal(t, "first", snapshots[2][0].Text)
	assert.Equal(t, "second", snapshots[2][1].Text)

	stop()
	_, err = f.channel.Send(ctx, alice, room.ID, "third")
	require.NoError(t, err)
	assert.Len(t, snapshots, 3)
}

func TestMessagesRejectsNonParticipant(t *testing.T) {
	f := newHubFixture()
	ctx := context.Background()

	room, err := f.directory.GetOrCreateRoom(ctx, alice, GetOrCreateRoomInput{OtherID: bob.ID, OtherName: "Bob"})
	require.NoError(t, err)
	_, err = f.channel.Send(ctx, bob, room.ID, "private")
	require.NoError(t, err)

	mallory := entity.Identity{ID: "u9", DisplayName: "Mallory"}
	_, err = f.hub.Messages(ctx, mallory, room.ID)
	assert.True(t, errors.Is(err, "FORBIDDEN"))

	_, err = f.hub.Messages(ctx, alice, "missing")
	assert.True(t, errors.Is(err, "ROOM_NOT_FOUND"))
}

func TestActiveMessageFeedRejectsNonParticipant(t *testing.T) {
	f := newHubFixture()
	ctx := context.Background()

	room, err := f.directory.GetOrCreateRoom(ctx, alice, GetOrCreateRoomInput{OtherID: bob.ID, OtherName: "Bob"})
	require.NoError(t, err)
	_, err = f.channel.Send(ctx, bob, room.ID, "private")
	require.NoError(t, err)

	mallory := entity.Identity{ID: "u9", DisplayName: "Mallory"}
	emitted := false
	stop := f.hub.ActiveMessageFeed(ctx, mallory, room.ID, func(messages []*entity.Message) {
		emitted = true
		assert.Empty(t, messages)
	})
	assert.True(t, emitted)
	stop()

	// The outsider neither saw the messages nor disturbed read state.
	messages, err := f.repo.ListMessages(ctx, room.ID)
	require.NoError(t, err)
	require.Len(t, messages, 1)
	assert.False(t, messages[0].Read)

	stored, err := f.repo.GetRoom(ctx, room.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, stored.UnreadFor(alice.ID))
}

func TestActiveMessageFeedMarksInboundRead(t *testing.T) {
	f := newHubFixture()
	ctx := context.Background()

	room, err := f.directory.GetOrCreateRoom(ctx, alice, GetOrCreateRoomInput{OtherID: bob.ID, OtherName: "Bob"})
	require.NoError(t, err)
	_, err = f.channel.Send(ctx, bob, room.ID, "unread until opened")
	require.NoError(t, err)

	stored, err := f.repo.GetRoom(ctx, room.ID)
	require.NoError(t, err)
	require.Equal(t, 1, stored.UnreadFor(alice.ID))

	var last []*entity.Message
	stop := f.hub.ActiveMessageFeed(ctx, alice, room.ID, func(messages []*entity.Message) {
		last = messages
	})
	defer stop()

	// Opening the room marked the backlog read and reset the counter.
	require.Len(t, last, 1)
	assert.True(t, last[0].Read)

	stored, err = f.repo.GetRoom(ctx, room.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, stored.UnreadFor(alice.ID))
}

func TestUnreadTotalFeedSumsAcrossRooms(t *testing.T) {
	f := newHubFixture()
	ctx := context.Background()

	carol := entity.Identity{ID: "u3", DisplayName: "Carol"}
	withBob, err := f.directory.GetOrCreateRoom(ctx, alice, GetOrCreateRoomInput{OtherID: bob.ID, OtherName: "Bob"})
	require.NoError(t, err)
	withCarol, err := f.directory.GetOrCreateRoom(ctx, alice, GetOrCreateRoomInput{OtherID: carol.ID, OtherName: "Carol"})
	require.NoError(t, err)

	var totals []int
	stop := f.hub.UnreadTotalFeed(ctx, alice, func(total int) {
		totals = append(totals, total)
	})
	defer stop()
	require.NotEmpty(t, totals)
	assert.Equal(t, 0, totals[len(totals)-1])

	_, err = f.channel.Send(ctx, bob, withBob.ID, "one")
	require.NoError(t, err)
	_, err = f.channel.Send(ctx, bob, withBob.ID, "two")
	require.NoError(t, err)
	_, err = f.channel.Send(ctx, carol, withCarol.ID, "three")
	require.NoError(t, err)
	assert.Equal(t, 3, totals[len(totals)-1])

	// Reading one room drops only that room's share.
	snapshot, err := f.repo.ListMessages(ctx, withBob.ID)
	require.NoError(t, err)
	require.NoError(t, f.tracker.MarkDelivered(ctx, alice, withBob.ID, snapshot))
	assert.Equal(t, 1, totals[len(totals)-1])
}

func TestUnreadTotalFeedEmitsZeroForSignedOutViewer(t *testing.T) {
	f := newHubFixture()

	var got = -1
	stop := f.hub.UnreadTotalFeed(context.Background(), entity.Identity{}, func(total int) {
		got = total
	})
	stop()
	assert.Equal(t, 0, got)
}

func TestFeedDisposersAreIdempotent(t *testing.T) {
	f := newHubFixture()
	ctx := context.Background()

	room, err := f.directory.GetOrCreateRoom(ctx, alice, GetOrCreateRoomInput{OtherID: bob.ID, OtherName: "Bob"})
	require.NoError(t, err)

	count := 0
	stop := f.hub.MessageFeed(ctx, room.ID, func([]*entity.Message) { count++ })
	require.Equal(t, 1, count)

	stop()
	stop()
	stop()

	_, err = f.channel.Send(ctx, alice, room.ID, "after stop")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}
