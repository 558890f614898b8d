package handler

import (
	"github.com/labstack/echo/v4"

	"marketchat/internal/adapter/api/middleware"
	"marketchat/internal/usecase"
	"marketchat/pkg/response"
)

type ChatHandler struct {
	directory *usecase.RoomDirectory
	channel   *usecase.MessageChannel
	tracker   *usecase.ReadTracker
	hub       *usecase.SubscriptionHub
}

func NewChatHandler(
	directory *usecase.RoomDirectory,
	channel *usecase.MessageChannel,
	tracker *usecase.ReadTracker,
	hub *usecase.SubscriptionHub,
) *ChatHandler {
	return &ChatHandler{
		directory: directory,
		channel:   channel,
		tracker:   tracker,
		hub:       hub,
	}
}

type getOrCreateRoomRequest struct {
	OtherID        string `json:"other_id" validate:"required"`
	OtherName      string `json:"other_name"`
	ProductID      string `json:"product_id"`
	ProductName    string `json:"product_name"`
	InitialMessage string `json:"initial_message"`
}

type sendMessageRequest struct {
	Text string `json:"text" validate:"required"`
}

// GetOrCreateRoom resolves the canonical room between the caller and another
// user, creating it on first contact, and optionally sends an opening
// message through it.
func (h *ChatHandler) GetOrCreateRoom(c echo.Context) error {
	var req getOrCreateRoomRequest
	if err := c.Bind(&req); err != nil {
		return response.Error(c, err)
	}
	if err := c.Validate(&req); err != nil {
		return response.Error(c, err)
	}

	self := middleware.CallerIdentity(c)

	room, err := h.directory.GetOrCreateRoom(c.Request().Context(), self, usecase.GetOrCreateRoomInput{
		OtherID:     req.OtherID,
		OtherName:   req.OtherName,
		ProductID:   req.ProductID,
		ProductName: req.ProductName,
	})
	if err != nil {
		return response.Error(c, err)
	}

	if req.InitialMessage != "" {
		if _, err := h.channel.Send(c.Request().Context(), self, room.ID, req.InitialMessage); err != nil {
			return response.Error(c, err)
		}
	}

	return response.Created(c, room)
}

// GetRooms returns the caller's room list, newest activity first, with
// transient duplicate rooms collapsed.
func (h *ChatHandler) GetRooms(c echo.Context) error {
	self := middleware.CallerIdentity(c)

	rooms, err := h.hub.RoomList(c.Request().Context(), self)
	if err != nil {
		return response.Error(c, err)
	}
	return response.Success(c, rooms)
}

// GetMessages returns a room's full message list, ascending by timestamp.
func (h *ChatHandler) GetMessages(c echo.Context) error {
	self := middleware.CallerIdentity(c)

	messages, err := h.hub.Messages(c.Request().Context(), self, c.Param("id"))
	if err != nil {
		return response.Error(c, err)
	}
	return response.Success(c, messages)
}

// SendMessage appends a message to a room.
func (h *ChatHandler) SendMessage(c echo.Context) error {
	var req sendMessageRequest
	if err := c.Bind(&req); err != nil {
		return response.Error(c, err)
	}
	if err := c.Validate(&req); err != nil {
		return response.Error(c, err)
	}

	self := middleware.CallerIdentity(c)

	message, err := h.channel.Send(c.Request().Context(), self, c.Param("id"), req.Text)
	if err != nil {
		return response.Error(c, err)
	}
	return response.Created(c, message)
}

// MarkRoomRead marks the room's inbound messages read and zeroes the
// caller's unread counter. Clients call this when the room is the active
// view and they are not holding a live feed.
func (h *ChatHandler) MarkRoomRead(c echo.Context) error {
	self := middleware.CallerIdentity(c)
	roomID := c.Param("id")

	messages, err := h.hub.Messages(c.Request().Context(), self, roomID)
	if err != nil {
		return response.Error(c, err)
	}

	if err := h.tracker.MarkDelivered(c.Request().Context(), self, roomID, messages); err != nil {
		return response.Error(c, err)
	}
	return response.Success(c, map[string]bool{"marked": true})
}
