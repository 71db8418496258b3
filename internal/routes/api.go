package routes

import (
	"solarchat/internal/handlers"
	"solarchat/internal/middleware"
	"solarchat/internal/services"
	"solarchat/internal/websocket"

	"github.com/gin-gonic/gin"
)

// SetupRoutes registers all HTTP and WebSocket routes.
func SetupRoutes(router *gin.Engine, hub *websocket.Hub, chatRouter *websocket.Router, sessions services.SessionStore, messages services.MessageStore) {
	router.Use(middleware.CORS())

	router.GET("/health", handlers.HealthCheck)

	chatHandler := handlers.NewChatHandler(sessions, messages, hub)

	api := router.Group("/api/v1", middleware.IdentityAuth())
	{
		chat := api.Group("/chat")
		{
			chat.GET("/history", chatHandler.GetHistory)
			chat.POST("/sessions/:id/close", chatHandler.CloseSession)

			staff := chat.Group("", middleware.RequireStaff())
			{
				staff.GET("/conversation/:userId", chatHandler.GetConversation)
				staff.GET("/sessions/active", chatHandler.GetActiveSessions)
			}

			admin := chat.Group("", middleware.RequireAdmin())
			{
				admin.GET("/stats", chatHandler.GetStats)
			}
		}
	}

	SetupWebSocketRoutes(router, hub, chatRouter, sessions)
}
