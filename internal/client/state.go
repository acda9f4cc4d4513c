// Package client is the client-side half of a chat session: one websocket
// per process and a local mirror of the joined room.
package client

import (
	"encoding/json"
	"fmt"
	"sync"

	"groupchat/internal/models"
	"groupchat/internal/types"
)

// State mirrors the room the local user sits in. Messages are kept
// newest-first, the same order history pages arrive in.
type State struct {
	mu sync.Mutex

	localUserID string
	room        string
	messages    []models.ChatMessage
	roomUsers   []models.User

	endCursor  int
	pageLoaded bool
	fetching   bool

	unread               int
	viewOpen             bool
	scrolledToBottom     bool
	shouldScrollToBottom bool
	showAdminMessage     bool
	canLoadMore          bool
}

func NewState(localUserID string) *State {
	return &State{
		localUserID:      localUserID,
		canLoadMore:      true,
		scrolledToBottom: true,
	}
}

// View is a point-in-time copy of State.
type View struct {
	Room                 string
	Messages             []models.ChatMessage
	RoomUsers            []models.User
	EndCursor            int
	Unread               int
	CanLoadMore          bool
	ShouldScrollToBottom bool
	Fetching             bool
}

func (s *State) View() View {
	s.mu.Lock()
	defer s.mu.Unlock()

	return View{
		Room:                 s.room,
		Messages:             append([]models.ChatMessage(nil), s.messages...),
		RoomUsers:            append([]models.User(nil), s.roomUsers...),
		EndCursor:            s.endCursor,
		Unread:               s.unread,
		CanLoadMore:          s.canLoadMore,
		ShouldScrollToBottom: s.shouldScrollToBottom,
		Fetching:             s.fetching,
	}
}

// Apply decodes a server envelope and folds it into the state. Events the
// state does not track are ignored.
func (s *State) Apply(env types.Envelope) error {
	switch env.Event {
	case types.EventMessage:
		var m models.ChatMessage
		if err := json.Unmarshal(env.Data, &m); err != nil {
			return fmt.Errorf("decode message: %w", err)
		}
		s.OnMessage(m)
	case types.EventRoomUsers:
		var ru models.RoomUsers
		if err := json.Unmarshal(env.Data, &ru); err != nil {
			return fmt.Errorf("decode roomUsers: %w", err)
		}
		s.OnRoomUsers(ru)
	case types.EventHistory:
		var page models.HistoryPage
		if err := json.Unmarshal(env.Data, &page); err != nil {
			return fmt.Errorf("decode history: %w", err)
		}
		s.OnHistory(page)
	}
	return nil
}

func (s *State) OnMessage(m models.ChatMessage) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if m.Room != "" && m.Room != s.room {
		return
	}

	// Every stored message shifts the server's newest-first indexes by one.
	if !m.IsSystem() && s.pageLoaded {
		s.endCursor++
	}

	if m.SenderID == s.localUserID {
		s.messages = append([]models.ChatMessage{m}, s.messages...)
		s.shouldScrollToBottom = true
		s.unread = 0
		return
	}

	if m.IsSystem() && !s.showAdminMessage {
		return
	}

	s.messages = append([]models.ChatMessage{m}, s.messages...)
	if !(s.viewOpen && s.scrolledToBottom) {
		s.unread++
	}
}

func (s *State) OnRoomUsers(ru models.RoomUsers) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if ru.Room != s.room {
		return
	}
	s.roomUsers = ru.Users
}

// OnHistory appends an older page and clears the in-flight fetch.
func (s *State) OnHistory(page models.HistoryPage) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.fetching = false
	s.messages = append(s.messages, page.History...)
	s.endCursor = page.EndCursor
	s.pageLoaded = true
	s.canLoadMore = page.HasNext
}

// BeginFetch reserves the single history request slot. It reports false when
// a request is already in flight, nothing older remains, or no page has been
// received yet.
func (s *State) BeginFetch() (int, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.fetching || !s.canLoadMore || s.endCursor <= 0 {
		return 0, false
	}
	s.fetching = true
	return s.endCursor, true
}

// CancelFetch releases the slot when the request could not be sent.
func (s *State) CancelFetch() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fetching = false
}

// EnterRoom clears everything that belonged to the previous room.
func (s *State) EnterRoom(room string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.room = room
	s.messages = nil
	s.roomUsers = nil
	s.endCursor = 0
	s.pageLoaded = false
	s.fetching = false
	s.canLoadMore = true
	s.unread = 0
	s.shouldScrollToBottom = true
}

func (s *State) SetViewOpen(open bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.viewOpen = open
	s.clearIfVisible()
}

func (s *State) SetScrolledToBottom(bottom bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.scrolledToBottom = bottom
	if bottom {
		s.shouldScrollToBottom = false
	}
	s.clearIfVisible()
}

func (s *State) SetShowAdminMessage(show bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.showAdminMessage = show
}

func (s *State) clearIfVisible() {
	if s.viewOpen && s.scrolledToBottom {
		s.unread = 0
	}
}

// Reset returns the state to what NewState built.
func (s *State) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.room = ""
	s.messages = nil
	s.roomUsers = nil
	s.endCursor = 0
	s.pageLoaded = false
	s.fetching = false
	s.unread = 0
	s.viewOpen = false
	s.scrolledToBottom = true
	s.shouldScrollToBottom = false
	s.showAdminMessage = false
	s.canLoadMore = true
}
