package http

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"wellbeing-companion/internal/service"
)

// ChatHandler expone el SessionManager a la app.
type ChatHandler struct {
	logger  *zap.Logger
	manager *service.SessionManager
}

func NewChatHandler(logger *zap.Logger, manager *service.SessionManager) *ChatHandler {
	return &ChatHandler{logger: logger, manager: manager}
}

// GetSession maneja GET /chat/session.
func (h *ChatHandler) GetSession(c *gin.Context) {
	claims, ok := GetAuthClaims(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	view, err := h.manager.LoadSession(c.Request.Context(), claims.DeviceID)
	if err != nil {
		h.writeError(c, err, "could_not_load_session")
		return
	}
	c.JSON(http.StatusOK, view)
}

// PostMessage maneja POST /chat/messages.
func (h *ChatHandler) PostMessage(c *gin.Context) {
	claims, ok := GetAuthClaims(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	var req struct {
		SessionID string `json:"session_id"`
		Text      string `json:"text"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("invalid post message request", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	ctx := c.Request.Context()
	var (
		reply service.AnnotatedReply
		err   error
	)
	if sessionID := strings.TrimSpace(req.SessionID); sessionID != "" {
		if _, err = h.manager.SessionForDevice(ctx, claims.DeviceID, sessionID); err == nil {
			reply, err = h.manager.SendMessage(ctx, sessionID, req.Text)
		}
	} else {
		reply, err = h.manager.SendToDevice(ctx, claims.DeviceID, req.Text)
	}
	if err != nil {
		h.writeError(c, err, "could_not_save_message")
		return
	}
	c.JSON(http.StatusCreated, reply)
}

// EndSession maneja POST /chat/session/end.
func (h *ChatHandler) EndSession(c *gin.Context) {
	claims, ok := GetAuthClaims(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	var req struct {
		SessionID string `json:"session_id" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	session, err := h.manager.EndSession(c.Request.Context(), claims.DeviceID, req.SessionID)
	if err != nil {
		h.writeError(c, err, "could_not_end_session")
		return
	}
	c.JSON(http.StatusOK, gin.H{"session": session})
}

// writeError traduce errores del manager. storageCode es lo que ve la app cuando falla el store.
func (h *ChatHandler) writeError(c *gin.Context, err error, storageCode string) {
	switch {
	case errors.Is(err, service.ErrInvalidInput):
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_input", "detail": err.Error()})
	case errors.Is(err, service.ErrSessionNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "session_not_found"})
	case errors.Is(err, service.ErrTurnInProgress):
		c.JSON(http.StatusConflict, gin.H{"error": "turn_in_progress"})
	case errors.Is(err, service.ErrSessionEnded):
		c.JSON(http.StatusConflict, gin.H{"error": "session_ended"})
	case errors.Is(err, service.ErrTurnCanceled):
		c.JSON(http.StatusRequestTimeout, gin.H{"error": "turn_canceled"})
	case service.IsStorageError(err):
		h.logger.Error("chat storage failure", zap.Error(err))
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": storageCode})
	default:
		h.logger.Error("chat request failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error"})
	}
}
