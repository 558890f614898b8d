package repository

import (
	"context"
	"sync"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/google/uuid"
	"google.golang.org/api/iterator"

	"marketchat/internal/domain/entity"
	"marketchat/internal/domain/repository"
	"marketchat/pkg/errors"
	"marketchat/pkg/logger"
)

const (
	roomsCollection    = "chats"
	messagesCollection = "messages"
)

// timeZero lets the serverTimestamp struct tags stamp create-time fields.
var timeZero time.Time

type firestoreRoomRepository struct {
	client *firestore.Client
}

func NewFirestoreRoomRepository(client *firestore.Client) repository.RoomRepository {
	return &firestoreRoomRepository{
		client: client,
	}
}

func (r *firestoreRoomRepository) FindRoomsContaining(ctx context.Context, userID string) ([]*entity.ChatRoom, error) {
	query := r.client.Collection(roomsCollection).Where("participants", "array-contains", userID)

	iter := query.Documents(ctx)
	var rooms []*entity.ChatRoom

	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, errors.FromStore(err, "Failed to query rooms")
		}

		var room entity.ChatRoom
		if err := doc.DataTo(&room); err != nil {
			logger.Warn("Skipping malformed room document %s: %v", doc.Ref.ID, err)
			continue
		}
		room.ID = doc.Ref.ID
		rooms = append(rooms, &room)
	}

	return rooms, nil
}

func (r *firestoreRoomRepository) CreateRoom(ctx context.Context, room *entity.ChatRoom) (*entity.ChatRoom, error) {
	if room.ID == "" {
		room.ID = uuid.New().String()
	}

	// Zero timestamps so the serverTimestamp tags stamp them on write.
	created := *room
	created.CreatedAt = timeZero
	created.LastMessageTime = timeZero

	docRef := r.client.Collection(roomsCollection).Doc(created.ID)
	if _, err := docRef.Set(ctx, &created); err != nil {
		return nil, errors.FromStore(err, "Failed to create room")
	}

	doc, err := docRef.Get(ctx)
	if err != nil {
		return nil, errors.FromStore(err, "Failed to read back created room")
	}

	var stored entity.ChatRoom
	if err := doc.DataTo(&stored); err != nil {
		return nil, errors.StoreUnknown("Failed to parse created room", err)
	}
	stored.ID = doc.Ref.ID
	return &stored, nil
}

func (r *firestoreRoomRepository) GetRoom(ctx context.Context, roomID string) (*entity.ChatRoom, error) {
	doc, err := r.client.Collection(roomsCollection).Doc(roomID).Get(ctx)
	if err != nil {
		if errors.IsStoreNotFound(err) {
			return nil, errors.RoomNotFound(err)
		}
		return nil, errors.FromStore(err, "Failed to get room")
	}

	var room entity.ChatRoom
	if err := doc.DataTo(&room); err != nil {
		return nil, errors.StoreUnknown("Failed to parse room data", err)
	}
	room.ID = doc.Ref.ID
	return &room, nil
}

func (r *firestoreRoomRepository) DeleteRooms(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}

	batch := r.client.Batch()
	for _, id := range ids {
		batch.Delete(r.client.Collection(roomsCollection).Doc(id))
	}

	if _, err := batch.Commit(ctx); err != nil {
		return errors.FromStore(err, "Failed to delete rooms")
	}
	return nil
}

func (r *firestoreRoomRepository) UpdateRoomSummary(ctx context.Context, roomID string, patch repository.RoomSummaryPatch) error {
	var updates []firestore.Update

	if patch.LastMessage != nil {
		updates = append(updates, firestore.Update{Path: "lastMessage", Value: *patch.LastMessage})
	}
	if patch.StampMessageTime {
		updates = append(updates, firestore.Update{Path: "lastMessageTime", Value: firestore.ServerTimestamp})
	}
	for userID, delta := range patch.IncrementUnread {
		updates = append(updates, firestore.Update{
			FieldPath: firestore.FieldPath{"unreadCount", userID},
			Value:     firestore.Increment(delta),
		})
	}
	for _, userID := range patch.ResetUnread {
		updates = append(updates, firestore.Update{
			FieldPath: firestore.FieldPath{"unreadCount", userID},
			Value:     0,
		})
	}

	if len(updates) == 0 {
		return nil
	}

	if _, err := r.client.Collection(roomsCollection).Doc(roomID).Update(ctx, updates); err != nil {
		if errors.IsStoreNotFound(err) {
			return errors.RoomNotFound(err)
		}
		return errors.FromStore(err, "Failed to update room summary")
	}
	return nil
}

func (r *firestoreRoomRepository) AppendMessage(ctx context.Context, roomID string, message *entity.Message) (*entity.Message, error) {
	if message.ID == "" {
		message.ID = uuid.New().String()
	}

	appended := *message
	appended.Timestamp = timeZero

	docRef := r.client.Collection(roomsCollection).Doc(roomID).Collection(messagesCollection).Doc(appended.ID)
	if _, err := docRef.Set(ctx, &appended); err != nil {
		return nil, errors.FromStore(err, "Failed to append message")
	}

	doc, err := docRef.Get(ctx)
	if err != nil {
		return nil, errors.FromStore(err, "Failed to read back appended message")
	}

	var stored entity.Message
	if err := doc.DataTo(&stored); err != nil {
		return nil, errors.StoreUnknown("Failed to parse appended message", err)
	}
	stored.ID = doc.Ref.ID
	return &stored, nil
}

func (r *firestoreRoomRepository) ListMessages(ctx context.Context, roomID string) ([]*entity.Message, error) {
	query := r.client.Collection(roomsCollection).Doc(roomID).Collection(messagesCollection).OrderBy("timestamp", firestore.Asc)

	iter := query.Documents(ctx)
	var messages []*entity.Message

	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, errors.FromStore(err, "Failed to list messages")
		}

		var message entity.Message
		if err := doc.DataTo(&message); err != nil {
			logger.Warn("Skipping malformed message document %s: %v", doc.Ref.ID, err)
			continue
		}
		message.ID = doc.Ref.ID
		messages = append(messages, &message)
	}

	return messages, nil
}

func (r *firestoreRoomRepository) BatchMarkRead(ctx context.Context, roomID string, messageIDs []string) error {
	if len(messageIDs) == 0 {
		return nil
	}

	messages := r.client.Collection(roomsCollection).Doc(roomID).Collection(messagesCollection)
	batch := r.client.Batch()
	for _, id := range messageIDs {
		batch.Update(messages.Doc(id), []firestore.Update{{Path: "read", Value: true}})
	}

	if _, err := batch.Commit(ctx); err != nil {
		return errors.FromStore(err, "Failed to mark messages read")
	}
	return nil
}

func (r *firestoreRoomRepository) SubscribeRooms(ctx context.Context, userID string, fn repository.RoomSnapshotHandler) repository.Unsubscribe {
	query := r.client.Collection(roomsCollection).Where("participants", "array-contains", userID)

	ctx, cancel := context.WithCancel(ctx)
	it := query.Snapshots(ctx)

	go func() {
		for {
			snap, err := it.Next()
			if err != nil {
				if ctx.Err() == nil {
					logger.FeedError("rooms", userID, err)
					fn(nil)
				}
				return
			}

			docs, err := snap.Documents.GetAll()
			if err != nil {
				logger.FeedError("rooms", userID, err)
				fn(nil)
				continue
			}

			var rooms []*entity.ChatRoom
			for _, doc := range docs {
				var room entity.ChatRoom
				if err := doc.DataTo(&room); err != nil {
					logger.Warn("Skipping malformed room document %s: %v", doc.Ref.ID, err)
					continue
				}
				room.ID = doc.Ref.ID
				rooms = append(rooms, &room)
			}
			fn(rooms)
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			cancel()
			it.Stop()
		})
	}
}

func (r *firestoreRoomRepository) SubscribeMessages(ctx context.Context, roomID string, fn repository.MessageSnapshotHandler) repository.Unsubscribe {
	query := r.client.Collection(roomsCollection).Doc(roomID).Collection(messagesCollection).OrderBy("timestamp", firestore.Asc)

	ctx, cancel := context.WithCancel(ctx)
	it := query.Snapshots(ctx)

	go func() {
		for {
			snap, err := it.Next()
			if err != nil {
				if ctx.Err() == nil {
					logger.FeedError("messages", roomID, err)
					fn(nil)
				}
				return
			}

			docs, err := snap.Documents.GetAll()
			if err != nil {
				logger.FeedError("messages", roomID, err)
				fn(nil)
				continue
			}

			var messages []*entity.Message
			for _, doc := range docs {
				var message entity.Message
				if err := doc.DataTo(&message); err != nil {
					logger.Warn("Skipping malformed message document %s: %v", doc.Ref.ID, err)
					continue
				}
				message.ID = doc.Ref.ID
				messages = append(messages, &message)
			}
			fn(messages)
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			cancel()
			it.Stop()
		})
	}
}
