package models

// HistoryPage is a newest-first window of a room's log. EndCursor is the
// newest-first index of the last (oldest) message in History.
type HistoryPage struct {
	History   []ChatMessage `json:"history"`
	EndCursor int           `json:"endCursor"`
	HasNext   bool          `json:"hasNext"`
}

func EmptyPage(cursor int) HistoryPage {
	if cursor < 0 {
		cursor = 0
	}
	return HistoryPage{History: []ChatMessage{}, EndCursor: cursor}
}

type RoomUsers struct {
	Room  string `json:"room"`
	Users []User `json:"users"`
}
