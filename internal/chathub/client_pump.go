package chathub

import (
	"context"
	"encoding/json"
	"lessonchat/backend/internal/config"
	"lessonchat/backend/internal/models"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// readPump reads frames from the socket and runs them as commands.
func (c *WebSocketClient) readPump() {
	ctx, cancel := context.WithCancel(context.Background())
	defer func() {
		cancel()
		c.closeEnteredRooms()
		c.Hub.Unregister(c)
		c.Conn.Close()
	}()

	c.Conn.SetReadLimit(config.MaxFrameSize)
	c.Conn.SetReadDeadline(time.Now().Add(config.PongWait))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(config.PongWait))
		return nil
	})

	for {
		_, message, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				zap.S().Warnf("WARN: Error reading from user %s: %v", c.UserID, err)
			}
			break
		}

		if c.limiter != nil && !c.limiter.Allow() {
			c.reply(ReplyError, models.ErrorPayload{
				Code:    codeRateLimited,
				Message: "too many messages, slow down",
			})
			continue
		}

		c.HandleCommand(ctx, message)
	}
}

// writePump writes frames from the send channel to the socket and keeps it alive with pings.
func (c *WebSocketClient) writePump() {
	ticker := time.NewTicker(config.PingPeriod)

	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case <-c.done:
			c.Conn.SetWriteDeadline(time.Now().Add(config.WriteWait))
			c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
			return

		case message := <-c.Send:
			data, err := json.Marshal(message)
			if err != nil {
				zap.S().Errorf("ERROR: Failed to encode frame for user %s: %v", c.UserID, err)
				continue
			}
			c.Conn.SetWriteDeadline(time.Now().Add(config.WriteWait))
			if err := c.Conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}

		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(config.WriteWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

