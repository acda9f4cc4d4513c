package client

import (
	"context"
	"errors"
	"strings"

	"groupchat/internal/types"
)

var ErrNothingToLoad = errors.New("no older history to load")

// Chat drives one user's session: it sends room and message events and keeps
// State in step with what the server sends back.
type Chat struct {
	UserID  string
	manager *Manager
	state   *State
}

func NewChat(userID string, manager *Manager) *Chat {
	return &Chat{
		UserID:  userID,
		manager: manager,
		state:   NewState(userID),
	}
}

func (c *Chat) State() *State { return c.state }

// Join opens the session if needed and enters room. The first call sends
// userJoin; later calls send changeRoom.
func (c *Chat) Join(ctx context.Context, room string) (*Session, error) {
	room = strings.TrimSpace(room)
	if room == "" {
		return nil, errors.New("room name is empty")
	}

	s, err := c.manager.Create(ctx)
	if err != nil {
		return nil, err
	}

	event := types.EventChangeRoom
	if c.state.View().Room == "" {
		event = types.EventUserJoin
	}

	c.state.EnterRoom(room)
	if err := s.Emit(event, c.UserID, room); err != nil {
		return nil, err
	}
	return s, nil
}

func (c *Chat) Send(ctx context.Context, text string) error {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	s, err := c.manager.Create(ctx)
	if err != nil {
		return err
	}
	return s.Emit(types.EventChatMessage, text)
}

// LoadMore asks for the next older page unless one is already in flight.
func (c *Chat) LoadMore(ctx context.Context) error {
	cursor, ok := c.state.BeginFetch()
	if !ok {
		return ErrNothingToLoad
	}

	s, err := c.manager.Create(ctx)
	if err == nil {
		err = s.Emit(types.EventMoreHistory, cursor)
	}
	if err != nil {
		c.state.CancelFetch()
		return err
	}
	return nil
}

// Close tears the session down and forgets all room state.
func (c *Chat) Close() error {
	c.state.Reset()
	return c.manager.Teardown()
}
