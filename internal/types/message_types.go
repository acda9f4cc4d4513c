package types

import (
	"encoding/json"
	"fmt"
)

type EventName string

// Client -> server.
const (
	EventUserJoin    EventName = "userJoin"
	EventChatMessage EventName = "chatMessage"
	EventChangeRoom  EventName = "changeRoom"
	EventMoreHistory EventName = "moreHistory"
	EventPong        EventName = "pong"
)

// Server -> client.
const (
	EventMessage   EventName = "message"
	EventRoomUsers EventName = "roomUsers"
	EventHistory   EventName = "history"
	EventPing      EventName = "ping"
)

// Envelope is one websocket text frame. Inbound frames carry positional Args,
// outbound frames carry a single Data payload.
type Envelope struct {
	Event EventName         `json:"event"`
	Args  []json.RawMessage `json:"args,omitempty"`
	Data  json.RawMessage   `json:"data,omitempty"`
}

func NewOutbound(event EventName, payload any) ([]byte, error) {
	env := Envelope{Event: event}
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("marshal %s payload: %w", event, err)
		}
		env.Data = raw
	}
	return json.Marshal(env)
}

func NewInbound(event EventName, args ...any) ([]byte, error) {
	env := Envelope{Event: event}
	for _, a := range args {
		raw, err := json.Marshal(a)
		if err != nil {
			return nil, fmt.Errorf("marshal %s arg: %w", event, err)
		}
		env.Args = append(env.Args, raw)
	}
	return json.Marshal(env)
}

// StringArg decodes Args[i] as a string.
func (e Envelope) StringArg(i int) (string, error) {
	if i >= len(e.Args) {
		return "", fmt.Errorf("%s: missing arg %d", e.Event, i)
	}
	var s string
	if err := json.Unmarshal(e.Args[i], &s); err != nil {
		return "", fmt.Errorf("%s: arg %d: %w", e.Event, i, err)
	}
	return s, nil
}

// OptionalIntArg decodes Args[i] as an integer. A missing or null arg yields
// ok=false with no error.
func (e Envelope) OptionalIntArg(i int) (n int, ok bool, err error) {
	if i >= len(e.Args) || string(e.Args[i]) == "null" {
		return 0, false, nil
	}
	if err := json.Unmarshal(e.Args[i], &n); err != nil {
		return 0, false, fmt.Errorf("%s: arg %d: %w", e.Event, i, err)
	}
	return n, true, nil
}
