package handlers

import (
	"net/http"
	"strings"

	"solarchat/internal/config"
	"solarchat/internal/middleware"
	"solarchat/internal/services"
	"solarchat/internal/utils"
	"solarchat/internal/websocket"
	"solarchat/pkg/logger"

	"github.com/gin-gonic/gin"
	gorilla "github.com/gorilla/websocket"
)

// WebSocketHandler upgrades authenticated HTTP requests into live chat
// connections.
type WebSocketHandler struct {
	hub      *websocket.Hub
	router   *websocket.Router
	sessions services.SessionStore
	upgrader gorilla.Upgrader
}

// NewWebSocketHandler builds the upgrade handler around the hub, the
// chat router and the session store.
func NewWebSocketHandler(hub *websocket.Hub, router *websocket.Router, sessions services.SessionStore) *WebSocketHandler {
	cfg := config.Load()

	return &WebSocketHandler{
		hub:      hub,
		router:   router,
		sessions: sessions,
		upgrader: gorilla.Upgrader{
			ReadBufferSize:  cfg.WebSocket.ReadBufferSize,
			WriteBufferSize: cfg.WebSocket.WriteBufferSize,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				if origin == "" {
					return true
				}
				if strings.Contains(origin, "localhost") || strings.Contains(origin, "127.0.0.1") {
					return true
				}
				for _, allowed := range cfg.CORS.AllowedOrigins {
					if allowed == "*" || allowed == origin {
						return true
					}
				}
				return false
			},
		},
	}
}

// HandleChatWebSocket upgrades the connection and starts the client
// pumps. The identity claim comes from the auth middleware; the
// connection stays in the connecting state until the client sends its
// join event.
func (h *WebSocketHandler) HandleChatWebSocket(c *gin.Context) {
	identity, ok := middleware.GetIdentity(c)
	if !ok {
		utils.ErrorResponse(c, http.StatusUnauthorized, "Identity claim required")
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logger.WithError(err).Error("Failed to upgrade WebSocket connection")
		return
	}

	cfg := config.Load()
	client := websocket.NewClient(conn, h.hub, h.router, h.sessions, identity, cfg.Chat.JoinGracePeriod)

	logger.LogUserAction(identity.ID, "websocket_connected", map[string]interface{}{
		"connection_id": client.ID,
		"role":          identity.Role,
		"ip":            c.ClientIP(),
	})

	go client.WritePump()
	go client.ReadPump()
}
