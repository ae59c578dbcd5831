package websocket

import (
	"net/http"

	"github.com/gorilla/websocket"
	"github.com/welldanyogia/webrana-mailcore/internal/logger"
)

// DefaultOrigin is allowed when no origins are configured
const DefaultOrigin = "http://localhost:3000"

// NewSecureUpgrader creates a WebSocket upgrader accepting the given origins.
// Rejected origins are written to audit when it is not nil.
func NewSecureUpgrader(origins []string, audit *logger.AuditLogger) websocket.Upgrader {
	allowed := make(map[string]bool, len(origins))
	for _, o := range origins {
		if o != "" {
			allowed[o] = true
		}
	}
	if len(allowed) == 0 {
		allowed[DefaultOrigin] = true
	}

	return websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")

			// Allow same-origin requests (empty Origin)
			if origin == "" || allowed[origin] {
				return true
			}

			if audit != nil {
				audit.InvalidOrigin(r.RemoteAddr, origin)
			}
			return false
		},
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
	}
}

// DefaultUpgrader returns an upgrader that allows all origins (for development)
func DefaultUpgrader() websocket.Upgrader {
	return websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool {
			return true
		},
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
	}
}
