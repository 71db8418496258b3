package handlers

import (
	"net/http"
	"strconv"

	"solarchat/internal/config"
	"solarchat/internal/middleware"
	"solarchat/internal/services"
	"solarchat/internal/utils"
	"solarchat/internal/websocket"

	"github.com/gin-gonic/gin"
)

// ChatHandler serves the pull-based query surface over the session and
// message stores: conversation history, active sessions, session close
// and chat statistics.
type ChatHandler struct {
	sessions services.SessionStore
	messages services.MessageStore
	hub      *websocket.Hub
}

// NewChatHandler wires the chat query handlers.
func NewChatHandler(sessions services.SessionStore, messages services.MessageStore, hub *websocket.Hub) *ChatHandler {
	return &ChatHandler{
		sessions: sessions,
		messages: messages,
		hub:      hub,
	}
}

// CloseSessionRequest is the session-close payload.
type CloseSessionRequest struct {
	Rating   *int   `json:"rating" validate:"omitempty,min=1,max=5"`
	Feedback string `json:"feedback" validate:"omitempty,max=2000"`
}

// GetConversation returns the thread between the calling mentor and one
// user. Fetching the thread marks the user's unread messages to this
// mentor as read.
func (h *ChatHandler) GetConversation(c *gin.Context) {
	identity, _ := middleware.GetIdentity(c)

	userID := c.Param("userId")
	if userID == "" {
		utils.ErrorResponse(c, http.StatusBadRequest, "userId is required")
		return
	}

	limit := h.limitParam(c)

	messages, err := h.messages.Conversation(c.Request.Context(), userID, identity.ID, limit)
	if err != nil {
		utils.ErrorResponse(c, http.StatusInternalServerError, "Failed to load conversation")
		return
	}

	utils.SuccessResponse(c, gin.H{
		"userId":   userID,
		"mentorId": identity.ID,
		"messages": messages,
	})
}

// GetHistory returns the calling user's own message history.
func (h *ChatHandler) GetHistory(c *gin.Context) {
	identity, _ := middleware.GetIdentity(c)

	messages, err := h.messages.HistoryForUser(c.Request.Context(), identity.ID, h.limitParam(c))
	if err != nil {
		utils.ErrorResponse(c, http.StatusInternalServerError, "Failed to load history")
		return
	}

	utils.SuccessResponse(c, gin.H{
		"userId":   identity.ID,
		"messages": messages,
	})
}

// GetActiveSessions lists sessions in waiting or active state, annotated
// with the user's live presence.
func (h *ChatHandler) GetActiveSessions(c *gin.Context) {
	sessions, err := h.sessions.ListActive(c.Request.Context())
	if err != nil {
		utils.ErrorResponse(c, http.StatusInternalServerError, "Failed to list sessions")
		return
	}

	type activeSession struct {
		Session interface{} `json:"session"`
		Online  bool        `json:"online"`
	}

	result := make([]activeSession, 0, len(sessions))
	for i := range sessions {
		result = append(result, activeSession{
			Session: sessions[i],
			Online:  h.hub.IsOnline(sessions[i].UserID),
		})
	}

	utils.SuccessResponse(c, gin.H{"sessions": result})
}

// CloseSession closes a session, optionally recording a rating and
// feedback. Closing is independent of the connection lifecycle: a user
// can end a support conversation and stay connected.
func (h *ChatHandler) CloseSession(c *gin.Context) {
	sessionID := c.Param("id")

	var req CloseSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil && err.Error() != "EOF" {
		utils.ErrorResponse(c, http.StatusBadRequest, "Invalid request body")
		return
	}
	if err := utils.ValidateStruct(req); err != nil {
		utils.ErrorResponse(c, http.StatusBadRequest, err.Error())
		return
	}

	session, err := h.sessions.Close(c.Request.Context(), sessionID, req.Rating, req.Feedback)
	if err != nil {
		if err.Error() == "session not found" {
			utils.ErrorResponse(c, http.StatusNotFound, "Session not found")
			return
		}
		utils.ErrorResponse(c, http.StatusInternalServerError, "Failed to close session")
		return
	}

	utils.SuccessResponseWithMessage(c, "Session closed", session)
}

// GetStats serves the chat statistics aggregation: session counts,
// average rating, unread backlog, and live presence counts.
func (h *ChatHandler) GetStats(c *gin.Context) {
	stats, err := h.sessions.Stats(c.Request.Context())
	if err != nil {
		utils.ErrorResponse(c, http.StatusInternalServerError, "Failed to aggregate stats")
		return
	}

	unread, err := h.messages.UnreadTotal(c.Request.Context())
	if err != nil {
		utils.ErrorResponse(c, http.StatusInternalServerError, "Failed to count unread messages")
		return
	}

	onlineUsers, onlineStaff := h.hub.Counts()

	utils.SuccessResponse(c, gin.H{
		"sessions":       stats,
		"unreadMessages": unread,
		"onlineUsers":    onlineUsers,
		"onlineMentors":  onlineStaff,
	})
}

// limitParam reads the optional ?limit= query parameter, falling back to
// the configured history page size.
func (h *ChatHandler) limitParam(c *gin.Context) int64 {
	cfg := config.Load()

	if raw := c.Query("limit"); raw != "" {
		if parsed, err := strconv.ParseInt(raw, 10, 64); err == nil && parsed > 0 {
			return parsed
		}
	}
	return cfg.Chat.HistoryPageSize
}
