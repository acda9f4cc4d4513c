package chat

import (
	"testing"

	"groupchat/internal/types"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func drain(c *Client) [][]byte {
	var out [][]byte
	for {
		select {
		case msg, ok := <-c.Send:
			if !ok {
				return out
			}
			out = append(out, msg)
		default:
			return out
		}
	}
}

func TestHub_EmitOnlyToRecipients(t *testing.T) {
	h := NewHub(zerolog.Nop())
	a := NewClient("a", nil, nil)
	b := NewClient("b", nil, nil)
	h.Register(a)
	h.Register(b)

	h.EmitMany([]string{"a", "ghost"}, types.EventMessage, map[string]string{"text": "hi"})

	got := drain(a)
	require.Len(t, got, 1)
	assert.JSONEq(t, `{"event":"message","data":{"text":"hi"}}`, string(got[0]))
	assert.Empty(t, drain(b))
}

func TestHub_BroadcastAll(t *testing.T) {
	h := NewHub(zerolog.Nop())
	a := NewClient("a", nil, nil)
	b := NewClient("b", nil, nil)
	h.Register(a)
	h.Register(b)

	h.BroadcastAll(types.EventPing, nil)

	for _, c := range []*Client{a, b} {
		got := drain(c)
		require.Len(t, got, 1)
		assert.JSONEq(t, `{"event":"ping"}`, string(got[0]))
	}
}

func TestHub_UnregisterTwice(t *testing.T) {
	h := NewHub(zerolog.Nop())
	a := NewClient("a", nil, nil)
	h.Register(a)
	assert.Equal(t, 1, h.ClientCount())

	assert.NotPanics(t, func() {
		h.Unregister("a")
		h.Unregister("a")
	})
	assert.Zero(t, h.ClientCount())

	_, ok := <-a.Send
	assert.False(t, ok, "send buffer is closed")

	assert.NotPanics(t, func() { h.Emit("a", types.EventPing, nil) })
}

func TestHub_FullBufferDoesNotBlock(t *testing.T) {
	h := NewHub(zerolog.Nop())
	a := NewClient("a", nil, nil)
	h.Register(a)

	for i := 0; i < sendBufferSize+10; i++ {
		h.Emit("a", types.EventPing, nil)
	}
	assert.Len(t, a.Send, sendBufferSize)
}
