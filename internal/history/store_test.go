package history

import (
	"context"
	"errors"
	"fmt"
	"math"
	"testing"
	"time"

	"groupchat/internal/models"
	"groupchat/internal/repository"

	"github.com/alicebob/miniredis/v2"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errUnavailable = errors.New("store unavailable")

type brokenList struct{}

func (brokenList) Push(context.Context, string, []byte) error { return errUnavailable }
func (brokenList) Range(context.Context, string, int64, int64) ([][]byte, error) {
	return nil, errUnavailable
}
func (brokenList) Len(context.Context, string) (int64, error) { return 0, errUnavailable }
func (brokenList) Close() error                                { return nil }

func newTestStore(t *testing.T, pageSize int) *Store {
	t.Helper()
	return NewStore(repository.NewMemoryList(), Options{PageSize: pageSize}, zerolog.Nop())
}

func send(t *testing.T, s *Store, room string, texts ...string) {
	t.Helper()
	now := time.Date(2024, 6, 14, 12, 0, 0, 0, time.Local)
	for _, text := range texts {
		s.Append(context.Background(), models.NewChatMessage("2", text, room, now))
	}
}

func texts(page models.HistoryPage) []string {
	out := make([]string, 0, len(page.History))
	for _, m := range page.History {
		out = append(out, m.Text)
	}
	return out
}

func TestStore_NewestFirst(t *testing.T) {
	s := newTestStore(t, 20)
	send(t, s, "Global", "A", "B")

	page := s.Page(context.Background(), "Global", 0)
	assert.Equal(t, []string{"B", "A"}, texts(page))
	assert.Equal(t, 1, page.EndCursor)
	assert.False(t, page.HasNext)
}

func TestStore_RoomsAreSeparate(t *testing.T) {
	s := newTestStore(t, 20)
	send(t, s, "Global", "g1")
	send(t, s, "JP", "j1", "j2")

	assert.Equal(t, []string{"g1"}, texts(s.Page(context.Background(), "Global", 0)))
	assert.Equal(t, []string{"j2", "j1"}, texts(s.Page(context.Background(), "JP", 0)))
}

func TestStore_Pagination(t *testing.T) {
	s := newTestStore(t, 20)
	for i := 0; i < 45; i++ {
		send(t, s, "Global", fmt.Sprintf("m%02d", i))
	}
	ctx := context.Background()

	tests := []struct {
		name      string
		cursor    int
		first     string
		last      string
		count     int
		endCursor int
		hasNext   bool
	}{
		{"newest page", 0, "m44", "m25", 20, 19, true},
		{"second page", 19, "m24", "m05", 20, 39, true},
		{"last page", 39, "m04", "m00", 5, 44, false},
		{"past the end", 44, "", "", 0, 44, false},
		{"far past the end", 1000, "", "", 0, 1000, false},
		{"largest cursor", math.MaxInt, "", "", 0, math.MaxInt, false},
		{"negative cursor", -3, "m44", "m25", 20, 19, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			page := s.Page(ctx, "Global", tt.cursor)
			require.Len(t, page.History, tt.count)
			if tt.count > 0 {
				assert.Equal(t, tt.first, page.History[0].Text)
				assert.Equal(t, tt.last, page.History[tt.count-1].Text)
			}
			assert.Equal(t, tt.endCursor, page.EndCursor)
			assert.Equal(t, tt.hasNext, page.HasNext)
		})
	}
}

func TestStore_PageIsIdempotent(t *testing.T) {
	s := newTestStore(t, 3)
	send(t, s, "Global", "a", "b", "c", "d", "e", "f", "g")
	ctx := context.Background()

	first := s.Page(ctx, "Global", 2)
	second := s.Page(ctx, "Global", 2)
	assert.Equal(t, first, second)
	assert.Equal(t, []string{"d", "c", "b"}, texts(first))
}

func TestStore_LargeCursorOnShortLog(t *testing.T) {
	s := newTestStore(t, 20)
	send(t, s, "Global", "A", "B", "C")
	ctx := context.Background()

	for _, cursor := range []int{2, 3, math.MaxInt - 1, math.MaxInt} {
		page := s.Page(ctx, "Global", cursor)
		assert.Empty(t, page.History, "cursor %d", cursor)
		assert.False(t, page.HasNext, "cursor %d", cursor)
		assert.Equal(t, cursor, page.EndCursor)
	}
}

func TestStore_EmptyRoom(t *testing.T) {
	s := newTestStore(t, 20)

	page := s.Page(context.Background(), "Nowhere", 0)
	assert.NotNil(t, page.History)
	assert.Empty(t, page.History)
	assert.Zero(t, page.EndCursor)
	assert.False(t, page.HasNext)
}

func TestStore_UnavailableDegrades(t *testing.T) {
	s := NewStore(brokenList{}, Options{}, zerolog.Nop())

	assert.NotPanics(t, func() {
		s.Append(context.Background(), models.NewChatMessage("2", "lost", "Global", time.Now()))
	})

	page := s.Page(context.Background(), "Global", 7)
	assert.Empty(t, page.History)
	assert.False(t, page.HasNext)
	assert.Equal(t, 7, page.EndCursor)
}

func TestStore_SkipsUndecodableEntries(t *testing.T) {
	list := repository.NewMemoryList()
	s := NewStore(list, Options{}, zerolog.Nop())
	ctx := context.Background()

	send(t, s, "Global", "ok-1")
	require.NoError(t, list.Push(ctx, "chatHistory:Global", []byte("{not json")))
	send(t, s, "Global", "ok-2")

	page := s.Page(ctx, "Global", 0)
	assert.Equal(t, []string{"ok-2", "ok-1"}, texts(page))
	assert.Equal(t, 2, page.EndCursor)
}

func TestStore_Redis(t *testing.T) {
	mr := miniredis.RunT(t)
	list, err := repository.NewRedisList("redis://" + mr.Addr())
	require.NoError(t, err)
	t.Cleanup(func() { _ = list.Close() })

	s := NewStore(list, Options{Prefix: "chatHistory", PageSize: 2, Timeout: time.Second}, zerolog.Nop())
	send(t, s, "Global", "A", "B", "C")

	stored, err := mr.List("chatHistory:Global")
	require.NoError(t, err)
	assert.Len(t, stored, 3)

	page := s.Page(context.Background(), "Global", 0)
	assert.Equal(t, []string{"C", "B"}, texts(page))
	assert.True(t, page.HasNext)

	page = s.Page(context.Background(), "Global", page.EndCursor)
	assert.Equal(t, []string{"A"}, texts(page))
	assert.False(t, page.HasNext)

	mr.Close()
	page = s.Page(context.Background(), "Global", 0)
	assert.Empty(t, page.History)
	assert.False(t, page.HasNext)
}
