package handlers

import (
	"log/slog"

	gorillaws "github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/welldanyogia/webrana-mailcore/internal/api/middleware"
	"github.com/welldanyogia/webrana-mailcore/internal/logger"
	"github.com/welldanyogia/webrana-mailcore/internal/websocket"
)

// WebSocketHandler upgrades /api/ws connections and registers them with the hub
type WebSocketHandler struct {
	hub      *websocket.Hub
	upgrader gorillaws.Upgrader
	logger   *slog.Logger
}

// NewWebSocketHandler creates a new WebSocketHandler
func NewWebSocketHandler(hub *websocket.Hub, upgrader gorillaws.Upgrader, l *slog.Logger) *WebSocketHandler {
	return &WebSocketHandler{hub: hub, upgrader: upgrader, logger: logger.OrDefault(l)}
}

// Handle handles GET /api/ws. The client is bound to the request scope and
// only receives events of mailboxes it subscribes to.
func (h *WebSocketHandler) Handle(c echo.Context) error {
	conn, err := h.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		// Upgrade has already written the HTTP error
		h.logger.Warn("websocket upgrade failed",
			slog.String("remote_ip", c.RealIP()),
			slog.String("error", err.Error()),
		)
		return nil
	}

	client := websocket.NewClient(h.hub, conn, middleware.ScopeFrom(c), h.logger)
	h.hub.Register(client)

	go client.WritePump()
	go client.ReadPump()
	return nil
}
