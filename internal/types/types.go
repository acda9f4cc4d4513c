package types

import "groupchat/internal/models"

type LoginRequest struct {
	Username string `json:"username"`
}

type UserDTO struct {
	UserID      string `json:"userId"`
	Username    string `json:"username"`
	CountryCode string `json:"countryCode"`
	Avatar      string `json:"avatar"`
}

type AuthResponse struct {
	Token string  `json:"token"`
	User  UserDTO `json:"user"`
}

type HealthResponse struct {
	Status           string `json:"status"`
	ConnectedClients int    `json:"connected_clients"`
	HistoryBackend   string `json:"history_backend"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

func NewUserDTO(u models.User) UserDTO {
	return UserDTO{
		UserID:      u.UserID,
		Username:    u.Username,
		CountryCode: u.CountryCode,
		Avatar:      u.Avatar,
	}
}
