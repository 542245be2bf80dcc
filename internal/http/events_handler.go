package http

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"wellbeing-companion/internal/service"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
)

// EventsHandler transmite por WebSocket los eventos de turno y crisis del dispositivo.
type EventsHandler struct {
	logger   *zap.Logger
	bus      service.EventBus
	upgrader websocket.Upgrader
}

func NewEventsHandler(logger *zap.Logger, bus service.EventBus) *EventsHandler {
	return &EventsHandler{
		logger: logger,
		bus:    bus,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// La app móvil no manda Origin; la autenticación es el token.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// Stream maneja GET /chat/events.
func (h *EventsHandler) Stream(c *gin.Context) {
	claims, ok := GetAuthClaims(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	events, unsubscribe, err := h.bus.Subscribe(c.Request.Context(), claims.DeviceID)
	if err != nil {
		h.logger.Error("subscribe events failed", zap.String("device_id", claims.DeviceID), zap.Error(err))
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "events_unavailable"})
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		unsubscribe()
		h.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	done := make(chan struct{})
	defer func() {
		unsubscribe()
		_ = conn.Close()
		<-done
	}()

	// El cliente no manda nada útil; leemos para procesar pong y detectar el cierre.
	go func() {
		defer close(done)
		conn.SetReadLimit(512)
		_ = conn.SetReadDeadline(time.Now().Add(pongWait))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(pongWait))
		})
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	h.logger.Info("event stream opened", zap.String("device_id", claims.DeviceID))
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case ev, ok := <-events:
			if !ok {
				_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(writeWait))
				return
			}
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(ev); err != nil {
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
