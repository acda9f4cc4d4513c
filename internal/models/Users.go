package models

import (
	"time"
)

// SystemUserID is the sender id stamped on join/leave notices. It is also the
// roster's Admin entry, so admin-authored messages and system notices are
// filtered together on the client.
const SystemUserID = "0"

type User struct {
	UserID      string    `json:"userId"`
	SocketID    string    `json:"-"`
	Username    string    `json:"username"`
	CountryCode string    `json:"countryCode"`
	Online      bool      `json:"online"`
	Room        string    `json:"room,omitempty"`
	Avatar      string    `json:"avatar"`
	LastActive  time.Time `json:"-"`
}

// DefaultRoster is the fixed set of identities known to the server.
func DefaultRoster() []User {
	return []User{
		{UserID: "0", Username: "Admin", CountryCode: "Global", Avatar: "#e74c3c"},
		{UserID: "1", Username: "Diana", CountryCode: "EN", Avatar: "#e74c3c"},
		{UserID: "2", Username: "Ryan", CountryCode: "EN", Avatar: "#8e44ad"},
		{UserID: "3", Username: "Ryo", CountryCode: "JP", Avatar: "#3498db"},
		{UserID: "4", Username: "Tianyi", CountryCode: "ES", Avatar: "#e67e22"},
		{UserID: "5", Username: "VJ", CountryCode: "ES", Avatar: "#2ecc71"},
	}
}
