package handler

import (
	"lessonchat/backend/internal/chathub"
	"lessonchat/backend/internal/config"
	"lessonchat/backend/internal/metrics"
	"net/http"

	"github.com/gin-gonic/gin"
)

// Handler holds what the HTTP and WebSocket surfaces need.
type Handler struct {
	Hub       *chathub.ManagerService
	Chat      chathub.ChatService
	JWTSecret []byte
	WS        config.WSConfig
}

func NewHandler(hub *chathub.ManagerService, svc chathub.ChatService, jwtSecret string, ws config.WSConfig) *Handler {
	return &Handler{
		Hub:       hub,
		Chat:      svc,
		JWTSecret: []byte(jwtSecret),
		WS:        ws,
	}
}

// RegisterRoutes mounts every route on r.
func (h *Handler) RegisterRoutes(r *gin.Engine) {
	r.GET("/healthz", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })
	r.GET("/metrics", gin.WrapH(metrics.Handler()))

	r.GET("/ws", h.RequireAuth(), h.ServeWebSocket)

	api := r.Group("/api/chat", h.RequireAuth())
	api.POST("/rooms", h.CreateRoom)
	api.GET("/rooms", h.ListRooms)
	api.POST("/rooms/:roomID/enter", h.EnterRoom)
	api.POST("/rooms/:roomID/close", h.CloseRoom)
	api.DELETE("/rooms/:roomID", h.LeaveRoom)
	api.POST("/rooms/:roomID/messages", h.SendMessage)
	api.POST("/messages/:messageID/read", h.MarkRead)
}
