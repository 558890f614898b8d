package handler

import (
	"encoding/json"
	"net/http"

	gorilla "github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"marketchat/internal/infrastructure/firebase"
	"marketchat/internal/infrastructure/websocket"
	"marketchat/pkg/logger"
)

var upgrader = gorilla.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

type WebSocketHandler struct {
	manager    *websocket.Manager
	bridge     *websocket.FeedBridge
	authClient *firebase.AuthClient
}

func NewWebSocketHandler(manager *websocket.Manager, bridge *websocket.FeedBridge, authClient *firebase.AuthClient) *WebSocketHandler {
	return &WebSocketHandler{
		manager:    manager,
		bridge:     bridge,
		authClient: authClient,
	}
}

// clientCommand is the one inbound frame shape: the client announces which
// room it has open (empty to detach). Only this room's messages are streamed
// and auto-marked read.
type clientCommand struct {
	Type   string `json:"type"`
	RoomID string `json:"room_id"`
}

// Serve upgrades the connection and streams the caller's room-list,
// unread-total, and active-room message snapshots until the client hangs up.
func (h *WebSocketHandler) Serve(c echo.Context) error {
	token := c.QueryParam("token")
	if token == "" {
		return echo.NewHTTPError(http.StatusUnauthorized, "token query parameter is required")
	}

	identity, err := h.authClient.VerifyToken(c.Request().Context(), token)
	if err != nil {
		return echo.NewHTTPError(http.StatusUnauthorized, "Invalid or expired token")
	}

	conn, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		return err
	}

	client := &websocket.Client{
		UserID: identity.ID,
		Conn:   conn,
		Send:   make(chan []byte, 256),
	}
	h.manager.Register <- client

	session := h.bridge.Open(c.Request().Context(), identity)
	defer session.Close()

	go client.WritePump()
	client.ReadPump(h.manager, func(frame []byte) {
		var cmd clientCommand
		if err := json.Unmarshal(frame, &cmd); err != nil {
			logger.Warn("Ignoring malformed frame from %s: %v", identity.ID, err)
			return
		}
		if cmd.Type == "active_room" {
			session.SetActiveRoom(cmd.RoomID)
		}
	})

	return nil
}
