package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"anon-dialog-server/internal/notify"
)

// WSHandler upgrades authenticated requests to a live notification stream.
type WSHandler struct {
	Hub      *notify.Hub
	Log      *zap.Logger
	upgrader websocket.Upgrader
}

// NewWSHandler creates a WSHandler that accepts handshakes from origin.
// An empty origin or "*" accepts any origin. Handshakes without an Origin
// header come from non-browser clients and are always accepted.
func NewWSHandler(hub *notify.Hub, origin string, log *zap.Logger) *WSHandler {
	return &WSHandler{
		Hub: hub,
		Log: log.Named("ws-http"),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				if origin == "" || origin == "*" {
					return true
				}
				got := r.Header.Get("Origin")
				return got == "" || got == origin
			},
		},
	}
}

// Stream handles GET /ws.
func (h *WSHandler) Stream(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// Upgrade already wrote the error response.
		h.Log.Debug("websocket upgrade failed", zap.Error(err))
		return
	}
	h.Hub.Serve(c.Request.Context(), conn, userID)
}
