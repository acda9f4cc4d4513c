package chat

import (
	"sync"
	"time"

	"groupchat/internal/metrics"
	"groupchat/internal/middleware"
	"groupchat/internal/types"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

const sendBufferSize = 256

type Client struct {
	ID         string
	AuthUserID string
	Conn       *websocket.Conn
	Send       chan []byte
	Limiter    *middleware.RateLimiter
	// LastWarning is only touched by the read loop.
	LastWarning time.Time
	once        sync.Once
}

func NewClient(id string, conn *websocket.Conn, limiter *middleware.RateLimiter) *Client {
	return &Client{
		ID:      id,
		Conn:    conn,
		Send:    make(chan []byte, sendBufferSize),
		Limiter: limiter,
	}
}

func (c *Client) Session() Session {
	return Session{ConnID: c.ID, AuthUserID: c.AuthUserID}
}

// Hub tracks open connections and writes encoded frames into their send
// buffers. It holds no room state; callers pass the recipient set.
type Hub struct {
	mu      sync.RWMutex
	clients map[string]*Client
	log     zerolog.Logger
}

func NewHub(logger zerolog.Logger) *Hub {
	logger.Debug().Msg("initializing hub")
	return &Hub{
		clients: make(map[string]*Client),
		log:     logger,
	}
}

func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	h.clients[c.ID] = c
	n := len(h.clients)
	h.mu.Unlock()

	metrics.ConnectedClients.Inc()
	h.log.Info().Str("conn", c.ID).Int("active", n).Msg("client registered")
}

// Unregister drops the connection and closes its send buffer, which ends the
// write loop. Safe to call more than once.
func (h *Hub) Unregister(connID string) {
	h.mu.Lock()
	c, ok := h.clients[connID]
	if ok {
		delete(h.clients, connID)
		c.once.Do(func() { close(c.Send) })
	}
	n := len(h.clients)
	h.mu.Unlock()

	if ok {
		metrics.ConnectedClients.Dec()
		h.log.Info().Str("conn", connID).Int("active", n).Msg("client unregistered")
	}
}

func (h *Hub) Emit(connID string, event types.EventName, payload any) {
	h.EmitMany([]string{connID}, event, payload)
}

func (h *Hub) EmitMany(connIDs []string, event types.EventName, payload any) {
	if len(connIDs) == 0 {
		return
	}
	frame, err := types.NewOutbound(event, payload)
	if err != nil {
		h.log.Error().Err(err).Str("event", string(event)).Msg("encode outbound frame")
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, id := range connIDs {
		if c, ok := h.clients[id]; ok {
			h.deliver(c, frame)
		}
	}
}

func (h *Hub) BroadcastAll(event types.EventName, payload any) {
	frame, err := types.NewOutbound(event, payload)
	if err != nil {
		h.log.Error().Err(err).Str("event", string(event)).Msg("encode outbound frame")
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, c := range h.clients {
		h.deliver(c, frame)
	}
}

// deliver must be called with h.mu held. A full buffer means the peer is not
// reading; the connection is closed and its read loop cleans up.
func (h *Hub) deliver(c *Client, frame []byte) {
	select {
	case c.Send <- frame:
	default:
		metrics.SlowConsumerDrops.Inc()
		h.log.Warn().Str("conn", c.ID).Msg("send buffer full, evicting slow consumer")
		go h.Kick(c.ID)
	}
}

// Kick closes the underlying connection. The read loop sees the error and
// runs the normal disconnect path.
func (h *Hub) Kick(connID string) {
	h.mu.RLock()
	c, ok := h.clients[connID]
	h.mu.RUnlock()
	if !ok || c.Conn == nil {
		return
	}
	_ = c.Conn.Close()
}

func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *Hub) Shutdown() {
	h.mu.RLock()
	ids := make([]string, 0, len(h.clients))
	for id := range h.clients {
		ids = append(ids, id)
	}
	h.mu.RUnlock()

	h.log.Info().Int("clients", len(ids)).Msg("shutting down all client connections")
	for _, id := range ids {
		h.Kick(id)
	}
}
