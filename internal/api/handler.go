package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"groupchat/internal/models"
	"groupchat/internal/presence"
	"groupchat/internal/types"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
)

type HistoryReader interface {
	Page(ctx context.Context, room string, endCursor int) models.HistoryPage
}

type ClientCounter interface {
	ClientCount() int
}

// Handler holds what the HTTP surfaces read from.
type Handler struct {
	registry *presence.Registry
	history  HistoryReader
	clients  ClientCounter
	backend  string
	authKey  []byte
	log      zerolog.Logger
}

func NewHandler(registry *presence.Registry, history HistoryReader, clients ClientCounter, backend string, authKey []byte, logger zerolog.Logger) *Handler {
	return &Handler{
		registry: registry,
		history:  history,
		clients:  clients,
		backend:  backend,
		authKey:  authKey,
		log:      logger,
	}
}

func (h *Handler) JSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.log.Debug().Err(err).Msg("write response")
	}
}

func (h *Handler) Error(w http.ResponseWriter, status int, message string) {
	h.JSON(w, status, types.ErrorResponse{Error: http.StatusText(status), Message: message})
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	h.JSON(w, http.StatusOK, types.HealthResponse{
		Status:           "ok",
		ConnectedClients: h.clients.ClientCount(),
		HistoryBackend:   h.backend,
	})
}

func (h *Handler) ListUsers(w http.ResponseWriter, r *http.Request) {
	h.JSON(w, http.StatusOK, h.registry.Snapshot())
}

func (h *Handler) RoomUsers(w http.ResponseWriter, r *http.Request) {
	room := chi.URLParam(r, "room")
	h.JSON(w, http.StatusOK, models.RoomUsers{Room: room, Users: h.registry.MembersOf(room)})
}

func (h *Handler) RoomHistory(w http.ResponseWriter, r *http.Request) {
	room := chi.URLParam(r, "room")

	cursor := 0
	if raw := r.URL.Query().Get("cursor"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			h.Error(w, http.StatusBadRequest, "cursor must be an integer")
			return
		}
		cursor = n
	}

	h.JSON(w, http.StatusOK, h.history.Page(r.Context(), room, cursor))
}
