package api

import (
	"encoding/json"
	"net/http"
	"strings"

	"groupchat/internal/auth"
	"groupchat/internal/types"
)

const maxLoginBody = 1 << 10

// Login resolves a roster display name. When a signing key is configured the
// reply carries a token that /ws accepts; otherwise the token is empty.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var payload types.LoginRequest

	r.Body = http.MaxBytesReader(w, r.Body, maxLoginBody)
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		h.log.Debug().Err(err).Msg("login: decode error")
		h.Error(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	payload.Username = strings.TrimSpace(payload.Username)
	if payload.Username == "" {
		h.Error(w, http.StatusBadRequest, "Username is required")
		return
	}

	user, ok := h.registry.ByUsername(payload.Username)
	if !ok {
		h.log.Info().Str("username", payload.Username).Msg("login: unknown user")
		h.Error(w, http.StatusUnauthorized, "Unknown user")
		return
	}

	var token string
	if len(h.authKey) > 0 {
		var err error
		token, err = auth.GenerateToken(h.authKey, user.UserID)
		if err != nil {
			h.log.Error().Err(err).Str("user", user.UserID).Msg("login: token generation failed")
			h.Error(w, http.StatusInternalServerError, "Failed to create session")
			return
		}
	}

	h.log.Info().Str("user", user.UserID).Str("username", user.Username).Msg("login")
	h.JSON(w, http.StatusOK, types.AuthResponse{Token: token, User: types.NewUserDTO(user)})
}
