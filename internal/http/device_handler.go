package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"wellbeing-companion/internal/service"
)

// DeviceHandler registra dispositivos y les entrega su token.
type DeviceHandler struct {
	logger *zap.Logger
	jwt    *service.JWTService
}

func NewDeviceHandler(logger *zap.Logger, jwt *service.JWTService) *DeviceHandler {
	return &DeviceHandler{logger: logger, jwt: jwt}
}

// RegisterDevice maneja POST /devices.
func (h *DeviceHandler) RegisterDevice(c *gin.Context) {
	token, err := h.jwt.RegisterDevice()
	if err != nil {
		h.logger.Error("register device failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not register device"})
		return
	}
	h.logger.Info("device registered", zap.String("device_id", token.DeviceID))
	c.JSON(http.StatusCreated, token)
}
