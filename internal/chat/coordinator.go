package chat

import (
	"context"
	"strings"
	"time"

	"groupchat/internal/metrics"
	"groupchat/internal/models"
	"groupchat/internal/presence"
	"groupchat/internal/types"

	"github.com/rs/zerolog"
)

const DefaultMaxMessageBytes = 4096

// Broadcaster delivers server events to connections.
type Broadcaster interface {
	Emit(connID string, event types.EventName, payload any)
	EmitMany(connIDs []string, event types.EventName, payload any)
	BroadcastAll(event types.EventName, payload any)
	Kick(connID string)
}

type HistoryStore interface {
	Append(ctx context.Context, msg models.ChatMessage)
	Page(ctx context.Context, room string, endCursor int) models.HistoryPage
}

// Session identifies the connection an event arrived on.
type Session struct {
	ConnID string
	// AuthUserID is the user id proven by the connection's token, if any.
	AuthUserID string
}

// Coordinator applies client events to the presence registry and history
// store and fans the results out. Room membership is read from the registry
// at send time, so a broadcast reaches exactly the connections joined to the
// room at that moment.
type Coordinator struct {
	registry        *presence.Registry
	history         HistoryStore
	out             Broadcaster
	log             zerolog.Logger
	now             func() time.Time
	maxMessageBytes int
}

func NewCoordinator(registry *presence.Registry, history HistoryStore, out Broadcaster, logger zerolog.Logger) *Coordinator {
	return &Coordinator{
		registry:        registry,
		history:         history,
		out:             out,
		log:             logger,
		now:             time.Now,
		maxMessageBytes: DefaultMaxMessageBytes,
	}
}

func (c *Coordinator) SetMaxMessageBytes(n int) {
	if n > 0 {
		c.maxMessageBytes = n
	}
}

// Handle decodes one inbound envelope and runs the matching operation.
// Malformed frames are dropped.
func (c *Coordinator) Handle(ctx context.Context, s Session, env types.Envelope) {
	defer func() {
		if r := recover(); r != nil {
			c.log.Error().Interface("panic", r).Str("conn", s.ConnID).Str("event", string(env.Event)).Msg("event handler panicked, frame dropped")
		}
	}()

	switch env.Event {
	case types.EventUserJoin, types.EventChangeRoom:
		userID, err := env.StringArg(0)
		if err != nil {
			c.dropped(s, env, err)
			return
		}
		room, err := env.StringArg(1)
		if err != nil {
			c.dropped(s, env, err)
			return
		}
		if s.AuthUserID != "" && s.AuthUserID != userID {
			c.log.Debug().Str("conn", s.ConnID).Str("user", userID).Msg("join declined: user id does not match token")
			return
		}
		if env.Event == types.EventChangeRoom {
			c.ChangeRoom(ctx, s.ConnID, userID, room)
		} else {
			c.Join(ctx, s.ConnID, userID, room)
		}

	case types.EventChatMessage:
		text, err := env.StringArg(0)
		if err != nil {
			metrics.MessagesDropped.WithLabelValues("invalid").Inc()
			c.dropped(s, env, err)
			return
		}
		c.ChatMessage(ctx, s.ConnID, text)

	case types.EventMoreHistory:
		cursor, _, err := env.OptionalIntArg(0)
		if err != nil {
			c.dropped(s, env, err)
			return
		}
		c.MoreHistory(ctx, s.ConnID, cursor)

	case types.EventPong:
		c.Pong(s.ConnID)

	default:
		c.log.Debug().Str("conn", s.ConnID).Str("event", string(env.Event)).Msg("unknown event")
	}
}

func (c *Coordinator) dropped(s Session, env types.Envelope, err error) {
	c.log.Debug().Err(err).Str("conn", s.ConnID).Str("event", string(env.Event)).Msg("malformed frame dropped")
}

// Join puts the connection's user into room. An unknown user id, or an empty
// room, changes nothing and sends nothing.
func (c *Coordinator) Join(ctx context.Context, connID, userID, room string) bool {
	room = strings.TrimSpace(room)
	if room == "" {
		return false
	}

	res, ok := c.registry.Join(userID, room, connID)
	if !ok {
		c.log.Debug().Str("conn", connID).Str("user", userID).Msg("join declined: unknown user")
		return false
	}
	metrics.RoomJoins.Inc()

	for _, d := range res.Departures {
		if d.ConnID != connID {
			c.log.Info().Str("user", d.User.UserID).Str("old_conn", d.ConnID).Str("conn", connID).Msg("identity moved to a new connection")
			c.out.Kick(d.ConnID)
		}
		if d.Room != "" {
			c.announceLeave(d.User, d.Room, connID)
		}
	}

	if !res.Rejoined {
		joined := models.NewSystemMessage(res.User.Username+" has joined the chat", room, c.now())
		c.out.EmitMany(without(c.connsIn(room), connID), types.EventMessage, joined)
	}
	c.emitRoomUsers(room)
	c.out.Emit(connID, types.EventHistory, c.history.Page(ctx, room, 0))

	c.log.Info().Str("conn", connID).Str("user", res.User.UserID).Str("room", room).Msg("user joined room")
	return true
}

// ChangeRoom leaves the current room and joins newRoom as one registry step,
// so other clients never see the user in both rooms or in neither.
func (c *Coordinator) ChangeRoom(ctx context.Context, connID, userID, newRoom string) bool {
	return c.Join(ctx, connID, userID, newRoom)
}

func (c *Coordinator) ChatMessage(ctx context.Context, connID, text string) bool {
	user, ok := c.registry.ByConnection(connID)
	if !ok || user.Room == "" {
		metrics.MessagesDropped.WithLabelValues("unjoined").Inc()
		return false
	}
	if strings.TrimSpace(text) == "" || len(text) > c.maxMessageBytes {
		metrics.MessagesDropped.WithLabelValues("invalid").Inc()
		return false
	}

	msg := models.NewChatMessage(user.UserID, text, user.Room, c.now())
	c.out.EmitMany(c.connsIn(user.Room), types.EventMessage, msg)
	metrics.MessagesRelayed.Inc()

	c.history.Append(ctx, msg)
	return true
}

// MoreHistory replies to the requester only.
func (c *Coordinator) MoreHistory(ctx context.Context, connID string, endCursor int) {
	user, ok := c.registry.ByConnection(connID)
	if !ok || user.Room == "" {
		return
	}
	c.out.Emit(connID, types.EventHistory, c.history.Page(ctx, user.Room, endCursor))
}

func (c *Coordinator) Pong(connID string) {
	c.registry.Touch(connID)
}

// Disconnect releases the connection's presence and tells its room. Calling
// it again for the same connection does nothing.
func (c *Coordinator) Disconnect(connID string) bool {
	user, ok := c.registry.Leave(connID)
	if !ok {
		return false
	}
	if user.Room != "" {
		c.announceLeave(user, user.Room, connID)
	}
	c.log.Info().Str("conn", connID).Str("user", user.UserID).Str("room", user.Room).Msg("user disconnected")
	return true
}

// Evict force-disconnects a connection. Used by the liveness sweep.
func (c *Coordinator) Evict(connID string) {
	released := c.Disconnect(connID)
	c.out.Kick(connID)
	metrics.StaleEvictions.Inc()
	c.log.Info().Str("conn", connID).Bool("released", released).Msg("stale connection evicted")
}

func (c *Coordinator) PingAll() {
	c.out.BroadcastAll(types.EventPing, nil)
}

// Warn sends a system notice to one connection.
func (c *Coordinator) Warn(connID, text string) {
	room := ""
	if u, ok := c.registry.ByConnection(connID); ok {
		room = u.Room
	}
	c.out.Emit(connID, types.EventMessage, models.NewSystemMessage(text, room, c.now()))
}

// announceLeave tells room that user left. skip never receives the notice;
// it is the connection that now holds the identity, if any.
func (c *Coordinator) announceLeave(user models.User, room, skip string) {
	left := models.NewSystemMessage(user.Username+" has left the chat", room, c.now())
	c.out.EmitMany(without(c.connsIn(room), skip), types.EventMessage, left)
	c.emitRoomUsers(room)
}

func (c *Coordinator) emitRoomUsers(room string) {
	members := c.registry.MembersOf(room)
	c.out.EmitMany(socketIDs(members), types.EventRoomUsers, models.RoomUsers{Room: room, Users: members})
}

func (c *Coordinator) connsIn(room string) []string {
	return socketIDs(c.registry.MembersOf(room))
}

func socketIDs(users []models.User) []string {
	ids := make([]string, 0, len(users))
	for _, u := range users {
		if u.SocketID != "" {
			ids = append(ids, u.SocketID)
		}
	}
	return ids
}

func without(ids []string, drop string) []string {
	out := ids[:0]
	for _, id := range ids {
		if id != drop {
			out = append(out, id)
		}
	}
	return out
}
