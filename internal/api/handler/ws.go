package handler

import (
	"lessonchat/backend/internal/chathub"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// The token query parameter authenticates the upgrade, so origins are not restricted.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// ServeWebSocket upgrades an authenticated request and attaches the connection to the hub.
func (h *Handler) ServeWebSocket(c *gin.Context) {
	caller := identityFrom(c)

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// Upgrade already wrote the HTTP error.
		zap.S().Warnf("WARN: WebSocket upgrade failed for user %s: %v", caller.UserID, err)
		return
	}

	limiter := rate.NewLimiter(rate.Limit(h.WS.MessagesPerSecond), h.WS.Burst)
	client := chathub.NewWebSocketClient(caller.UserID, caller.Email, conn, h.Hub, h.Chat, limiter)

	h.Hub.Register(client)
	client.Run()
}
