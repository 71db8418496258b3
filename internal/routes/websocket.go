package routes

import (
	"solarchat/internal/handlers"
	"solarchat/internal/middleware"
	"solarchat/internal/services"
	"solarchat/internal/websocket"

	"github.com/gin-gonic/gin"
)

// SetupWebSocketRoutes registers the live chat channel.
func SetupWebSocketRoutes(router *gin.Engine, hub *websocket.Hub, chatRouter *websocket.Router, sessions services.SessionStore) {
	wsHandler := handlers.NewWebSocketHandler(hub, chatRouter, sessions)

	ws := router.Group("/ws")
	{
		ws.GET("/chat", middleware.IdentityAuth(), wsHandler.HandleChatWebSocket)
	}
}
