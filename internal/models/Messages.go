package models

import (
	"fmt"
	"time"

	"github.com/oklog/ulid/v2"
)

// SentTimeLayout renders DD/MM/YY hh:mm am|pm.
const SentTimeLayout = "02/01/06 03:04 pm"

type ChatMessage struct {
	ID       string `json:"id"`
	Room     string `json:"room"`
	SenderID string `json:"senderId"`
	Text     string `json:"text"`
	SentTime string `json:"sentTime"`
}

func NewChatMessage(senderID, text, room string, now time.Time) ChatMessage {
	return ChatMessage{
		ID:       ulid.Make().String(),
		Room:     room,
		SenderID: senderID,
		Text:     text,
		SentTime: FormatSentTime(now),
	}
}

func NewSystemMessage(text, room string, now time.Time) ChatMessage {
	return NewChatMessage(SystemUserID, text, room, now)
}

func (m ChatMessage) IsSystem() bool {
	return m.SenderID == SystemUserID
}

func FormatSentTime(t time.Time) string {
	return t.Local().Format(SentTimeLayout)
}

func ParseSentTime(s string) (time.Time, error) {
	t, err := time.ParseInLocation(SentTimeLayout, s, time.Local)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse sent time %q: %w", s, err)
	}
	return t, nil
}

// MinutesBetween returns current minus last in whole minutes.
func MinutesBetween(current, last string) (int, error) {
	c, err := ParseSentTime(current)
	if err != nil {
		return 0, err
	}
	l, err := ParseSentTime(last)
	if err != nil {
		return 0, err
	}
	return int(c.Sub(l) / time.Minute), nil
}
