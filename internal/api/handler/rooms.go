package handler

import (
	"lessonchat/backend/internal/apperr"
	"lessonchat/backend/internal/chat"
	"lessonchat/backend/internal/models"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// CreateRoom opens (or returns) the chat with a counterpart or with a class owner.
func (h *Handler) CreateRoom(c *gin.Context) {
	var req models.CreateRoomPayload
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, apperr.InvalidRequest("malformed body"))
		return
	}

	caller := identityFrom(c)
	var (
		res *chat.CreateRoomResult
		err error
	)
	if req.ClassID != "" {
		res, err = h.Chat.CreateChatRoomForClass(c.Request.Context(), caller.UserID, req.ClassID)
	} else {
		res, err = h.Chat.CreateChatRoom(c.Request.Context(), caller.UserID, req.CounterpartID)
	}
	if err != nil {
		abortWithError(c, err)
		return
	}

	status := http.StatusOK
	if res.Created {
		status = http.StatusCreated
	}
	c.JSON(status, res)
}

func (h *Handler) ListRooms(c *gin.Context) {
	items, err := h.Chat.GetChatRoomList(c.Request.Context(), identityFrom(c).UserID)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"rooms": items})
}

func (h *Handler) EnterRoom(c *gin.Context) {
	res, err := h.Chat.EnterChatRoom(c.Request.Context(), identityFrom(c).UserID, c.Param("roomID"))
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *Handler) CloseRoom(c *gin.Context) {
	if err := h.Chat.CloseChatRoom(c.Request.Context(), identityFrom(c).UserID, c.Param("roomID")); err != nil {
		abortWithError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) LeaveRoom(c *gin.Context) {
	roomID := c.Param("roomID")
	deleted, err := h.Chat.LeaveChatRoom(c.Request.Context(), identityFrom(c).UserID, roomID)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"room_id": roomID, "room_deleted": deleted})
}

type sendMessageRequest struct {
	Body string `json:"body"`
}

func (h *Handler) SendMessage(c *gin.Context) {
	var req sendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, apperr.InvalidRequest("malformed body"))
		return
	}

	msg, err := h.Chat.SendMessage(c.Request.Context(), identityFrom(c).Email, c.Param("roomID"), req.Body)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, msg)
}

func (h *Handler) MarkRead(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("messageID"), 10, 64)
	if err != nil {
		abortWithError(c, apperr.InvalidRequest("message id must be a number"))
		return
	}

	if err := h.Chat.MarkMessageAsRead(c.Request.Context(), identityFrom(c).Email, uint(id)); err != nil {
		zap.S().Debugf("mark read of %d rejected: %v", id, err)
		abortWithError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
