package client

import (
	"encoding/json"
	"testing"
	"time"

	"groupchat/internal/models"
	"groupchat/internal/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var sentAt = time.Date(2024, 6, 14, 9, 30, 0, 0, time.Local)

func msg(sender, text string) models.ChatMessage {
	return models.NewChatMessage(sender, text, "Global", sentAt)
}

func joined(t *testing.T) *State {
	t.Helper()
	s := NewState("2")
	s.EnterRoom("Global")
	return s
}

func TestUnread_OtherUserWhileViewClosed(t *testing.T) {
	s := joined(t)

	s.OnMessage(msg("3", "one"))
	s.OnMessage(msg("3", "two"))
	assert.Equal(t, 2, s.View().Unread)

	s.OnMessage(msg("2", "mine"))
	v := s.View()
	assert.Zero(t, v.Unread, "own message resets the counter")
	assert.True(t, v.ShouldScrollToBottom)
}

func TestUnread_Policy(t *testing.T) {
	tests := []struct {
		name       string
		viewOpen   bool
		bottom     bool
		showAdmin  bool
		message    models.ChatMessage
		wantUnread int
		wantListed bool
	}{
		{"closed view", false, true, false, msg("3", "hi"), 1, true},
		{"open but scrolled up", true, false, false, msg("3", "hi"), 1, true},
		{"open at bottom", true, true, false, msg("3", "hi"), 0, true},
		{"system hidden", false, true, false, models.NewSystemMessage("Ryo has joined the chat", "Global", sentAt), 0, false},
		{"system shown", false, true, true, models.NewSystemMessage("Ryo has joined the chat", "Global", sentAt), 1, true},
		{"other room", false, true, false, models.NewChatMessage("3", "hi", "JP", sentAt), 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := joined(t)
			s.SetScrolledToBottom(tt.bottom)
			s.SetViewOpen(tt.viewOpen)
			s.SetShowAdminMessage(tt.showAdmin)

			s.OnMessage(tt.message)

			v := s.View()
			assert.Equal(t, tt.wantUnread, v.Unread)
			assert.Equal(t, tt.wantListed, len(v.Messages) == 1)
		})
	}
}

func TestUnread_ClearedWhenViewBecomesVisible(t *testing.T) {
	s := joined(t)
	s.SetScrolledToBottom(false)
	s.OnMessage(msg("3", "hi"))
	require.Equal(t, 1, s.View().Unread)

	s.SetViewOpen(true)
	assert.Equal(t, 1, s.View().Unread)
	s.SetScrolledToBottom(true)
	assert.Zero(t, s.View().Unread)
}

func TestHistory_FetchGuard(t *testing.T) {
	s := joined(t)

	_, ok := s.BeginFetch()
	assert.False(t, ok, "no page received yet")

	s.OnHistory(models.HistoryPage{History: []models.ChatMessage{msg("3", "b"), msg("3", "a")}, EndCursor: 19, HasNext: true})
	v := s.View()
	assert.Len(t, v.Messages, 2)
	assert.Equal(t, 19, v.EndCursor)

	cursor, ok := s.BeginFetch()
	require.True(t, ok)
	assert.Equal(t, 19, cursor)

	_, ok = s.BeginFetch()
	assert.False(t, ok, "only one request in flight")

	s.OnHistory(models.HistoryPage{History: []models.ChatMessage{msg("3", "older")}, EndCursor: 20, HasNext: false})
	v = s.View()
	assert.False(t, v.CanLoadMore)
	assert.False(t, v.Fetching)
	assert.Equal(t, "older", v.Messages[len(v.Messages)-1].Text)

	_, ok = s.BeginFetch()
	assert.False(t, ok, "nothing older remains")
}

func TestHistory_CancelFetchFreesSlot(t *testing.T) {
	s := joined(t)
	s.OnHistory(models.HistoryPage{History: []models.ChatMessage{msg("3", "a")}, EndCursor: 5, HasNext: true})

	_, ok := s.BeginFetch()
	require.True(t, ok)
	s.CancelFetch()

	_, ok = s.BeginFetch()
	assert.True(t, ok)
}

func TestLiveMessagesShiftCursor(t *testing.T) {
	s := joined(t)
	s.OnHistory(models.HistoryPage{History: []models.ChatMessage{msg("3", "a")}, EndCursor: 19, HasNext: true})

	s.OnMessage(msg("3", "live"))
	s.OnMessage(models.NewSystemMessage("Diana has left the chat", "Global", sentAt))

	assert.Equal(t, 20, s.View().EndCursor, "system notices are not stored and do not shift")
}

func TestEnterRoomResets(t *testing.T) {
	s := joined(t)
	s.OnHistory(models.HistoryPage{History: []models.ChatMessage{msg("3", "a")}, EndCursor: 3, HasNext: false})
	s.OnMessage(msg("3", "b"))
	s.OnRoomUsers(models.RoomUsers{Room: "Global", Users: []models.User{{UserID: "2"}}})

	s.EnterRoom("JP")

	v := s.View()
	assert.Equal(t, "JP", v.Room)
	assert.Empty(t, v.Messages)
	assert.Empty(t, v.RoomUsers)
	assert.Zero(t, v.Unread)
	assert.Zero(t, v.EndCursor)
	assert.True(t, v.CanLoadMore)
}

func TestOnRoomUsers_IgnoresOtherRooms(t *testing.T) {
	s := joined(t)
	s.OnRoomUsers(models.RoomUsers{Room: "JP", Users: []models.User{{UserID: "3"}}})
	assert.Empty(t, s.View().RoomUsers)

	s.OnRoomUsers(models.RoomUsers{Room: "Global", Users: []models.User{{UserID: "2"}, {UserID: "3"}}})
	assert.Len(t, s.View().RoomUsers, 2)
}

func TestApply(t *testing.T) {
	s := joined(t)

	frame, err := types.NewOutbound(types.EventMessage, msg("3", "hello"))
	require.NoError(t, err)
	var env types.Envelope
	require.NoError(t, json.Unmarshal(frame, &env))

	require.NoError(t, s.Apply(env))
	assert.Equal(t, "hello", s.View().Messages[0].Text)

	bad := types.Envelope{Event: types.EventHistory, Data: json.RawMessage(`"nope"`)}
	assert.Error(t, s.Apply(bad))

	assert.NoError(t, s.Apply(types.Envelope{Event: types.EventPing}))
}

func TestReset(t *testing.T) {
	s := joined(t)
	s.SetShowAdminMessage(true)
	s.OnMessage(msg("3", "x"))

	s.Reset()

	v := s.View()
	assert.Empty(t, v.Room)
	assert.Empty(t, v.Messages)
	assert.Zero(t, v.Unread)
	assert.True(t, v.CanLoadMore)
}
