package chat

import (
	"context"
	"encoding/json"
	"time"

	"groupchat/internal/metrics"
	"groupchat/internal/types"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

const (
	writeWait       = 5 * time.Second
	warningInterval = 3 * time.Second
	rateLimitNotice = "⚠️ You are sending messages too fast."
)

// WritePump drains Send onto the socket, one frame per message, until Send is
// closed or a write fails.
func (c *Client) WritePump(log zerolog.Logger) {
	defer c.Conn.Close()

	for message := range c.Send {
		c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
			log.Debug().Err(err).Str("conn", c.ID).Msg("write failed")
			return
		}
	}

	c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
	c.Conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
}

// ReadPump dispatches inbound frames in arrival order. A socket that sends
// nothing for readTimeout is closed, joined or not. When the socket ends,
// presence is released before the connection is unregistered.
func (c *Client) ReadPump(ctx context.Context, coord *Coordinator, hub *Hub, readLimit int64, readTimeout time.Duration, log zerolog.Logger) {
	defer func() {
		coord.Disconnect(c.ID)
		hub.Unregister(c.ID)
		c.Conn.Close()
	}()

	c.Conn.SetReadLimit(readLimit)
	c.Conn.SetReadDeadline(time.Now().Add(readTimeout))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(readTimeout))
		return nil
	})

	for {
		_, data, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Warn().Err(err).Str("conn", c.ID).Msg("unexpected close")
			}
			return
		}
		c.Conn.SetReadDeadline(time.Now().Add(readTimeout))

		var env types.Envelope
		if err := json.Unmarshal(data, &env); err != nil {
			log.Debug().Err(err).Str("conn", c.ID).Msg("undecodable frame dropped")
			continue
		}

		if env.Event == types.EventChatMessage && c.Limiter != nil && !c.Limiter.Allow() {
			c.rateLimited(coord)
			continue
		}

		coord.Handle(ctx, c.Session(), env)
	}
}

func (c *Client) rateLimited(coord *Coordinator) {
	metrics.MessagesDropped.WithLabelValues("rate_limited").Inc()
	if time.Since(c.LastWarning) > warningInterval {
		coord.Warn(c.ID, rateLimitNotice)
		c.LastWarning = time.Now()
	}
}
