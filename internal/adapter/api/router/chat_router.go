package router

import (
	"github.com/labstack/echo/v4"

	"marketchat/internal/adapter/api/handler"
	"marketchat/internal/adapter/api/middleware"
)

// SetupChatRouter wires the chat REST endpoints. All of them require an
// authenticated caller.
func SetupChatRouter(e *echo.Echo, chatHandler *handler.ChatHandler, authMiddleware *middleware.AuthMiddleware) {
	rooms := e.Group("/v1/rooms")
	rooms.Use(authMiddleware.Authenticate)

	rooms.POST("", chatHandler.GetOrCreateRoom)
	rooms.GET("", chatHandler.GetRooms)
	rooms.GET("/:id/messages", chatHandler.GetMessages)
	rooms.POST("/:id/messages", chatHandler.SendMessage)
	rooms.PUT("/:id/read", chatHandler.MarkRoomRead)
}

// SetupWebSocketRouter wires the live feed endpoint. Auth happens inside the
// handler via a token query parameter, since browser WebSocket clients
// cannot set an Authorization header.
func SetupWebSocketRouter(e *echo.Echo, wsHandler *handler.WebSocketHandler) {
	e.GET("/v1/ws", wsHandler.Serve)
}
