package websocket

import (
	"context"
	"encoding/json"
	"sync"

	"marketchat/internal/domain/entity"
	"marketchat/internal/domain/repository"
	"marketchat/internal/usecase"
	"marketchat/pkg/logger"
)

// FeedBridge connects hub feeds to WebSocket clients: every snapshot a feed
// pushes is forwarded to the owning user as one JSON frame.
type FeedBridge struct {
	hub     *usecase.SubscriptionHub
	manager *Manager
}

func NewFeedBridge(hub *usecase.SubscriptionHub, manager *Manager) *FeedBridge {
	return &FeedBridge{
		hub:     hub,
		manager: manager,
	}
}

type roomListFrame struct {
	Type  string             `json:"type"`
	Rooms []*entity.ChatRoom `json:"rooms"`
}

type unreadTotalFrame struct {
	Type  string `json:"type"`
	Total int    `json:"total"`
}

type messagesFrame struct {
	Type     string            `json:"type"`
	RoomID   string            `json:"room_id"`
	Messages []*entity.Message `json:"messages"`
}

// FeedSession owns one viewer's live subscriptions: the room-list and
// unread-total feeds for the whole session, plus a message feed for whichever
// room is currently active. Close releases everything; it is safe to call
// more than once.
type FeedSession struct {
	bridge *FeedBridge
	ctx    context.Context
	viewer entity.Identity

	mu           sync.Mutex
	closed       bool
	roomList     repository.Unsubscribe
	unreadTotal  repository.Unsubscribe
	activeRoomID string
	activeStream repository.Unsubscribe
}

// Open starts a session for a connected viewer.
func (b *FeedBridge) Open(ctx context.Context, viewer entity.Identity) *FeedSession {
	s := &FeedSession{
		bridge: b,
		ctx:    ctx,
		viewer: viewer,
	}

	s.roomList = b.hub.RoomListFeed(ctx, viewer, func(rooms []*entity.ChatRoom) {
		s.forward(roomListFrame{Type: "room_list", Rooms: rooms})
	})
	s.unreadTotal = b.hub.UnreadTotalFeed(ctx, viewer, func(total int) {
		s.forward(unreadTotalFrame{Type: "unread_total", Total: total})
	})

	return s
}

func (s *FeedSession) forward(frame interface{}) {
	payload, err := json.Marshal(frame)
	if err != nil {
		logger.Error("Failed to marshal feed frame for %s: %v", s.viewer.ID, err)
		return
	}
	s.bridge.manager.SendToUser(s.viewer.ID, payload)
}

// SetActiveRoom switches the session's message feed to roomID. The active
// room is the one whose inbound messages get marked read on delivery, so
// callers must only set it for the room the viewer actually has open.
// An empty roomID detaches the message feed entirely.
func (s *FeedSession) SetActiveRoom(roomID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed || roomID == s.activeRoomID {
		return
	}

	if s.activeStream != nil {
		s.activeStream()
		s.activeStream = nil
	}
	s.activeRoomID = roomID
	if roomID == "" {
		return
	}

	s.activeStream = s.bridge.hub.ActiveMessageFeed(s.ctx, s.viewer, roomID, func(messages []*entity.Message) {
		s.forward(messagesFrame{Type: "messages", RoomID: roomID, Messages: messages})
	})
}

// Close disposes every live subscription held by the session.
func (s *FeedSession) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}
	s.closed = true

	if s.activeStream != nil {
		s.activeStream()
		s.activeStream = nil
	}
	s.roomList()
	s.unreadTotal()
}
