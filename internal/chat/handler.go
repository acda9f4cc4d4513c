package chat

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"time"

	"groupchat/internal/middleware"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

const (
	DefaultReadLimit   = 8192
	DefaultReadTimeout = 30 * time.Second
)

type ServerOptions struct {
	// BaseContext outlives individual requests and is passed to every event
	// handler. Defaults to context.Background.
	BaseContext    context.Context
	ReadLimit      int64
	// ReadTimeout closes sockets that send no frame for this long.
	ReadTimeout    time.Duration
	AllowedOrigins []string
}

// Server upgrades HTTP requests to chat connections.
type Server struct {
	hub         *Hub
	coord       *Coordinator
	upgrader    websocket.Upgrader
	ctx         context.Context
	readLimit   int64
	readTimeout time.Duration
	log         zerolog.Logger
}

func NewServer(hub *Hub, coord *Coordinator, opts ServerOptions, logger zerolog.Logger) *Server {
	if opts.BaseContext == nil {
		opts.BaseContext = context.Background()
	}
	if opts.ReadLimit <= 0 {
		opts.ReadLimit = DefaultReadLimit
	}
	if opts.ReadTimeout <= 0 {
		opts.ReadTimeout = DefaultReadTimeout
	}
	return &Server{
		hub:   hub,
		coord: coord,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     originChecker(opts.AllowedOrigins),
		},
		ctx:         opts.BaseContext,
		readLimit:   opts.ReadLimit,
		readTimeout: opts.ReadTimeout,
		log:         logger,
	}
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn().Err(err).Str("remote", r.RemoteAddr).Msg("websocket upgrade failed")
		return
	}

	client := NewClient(uuid.NewString(), conn, middleware.NewRateLimiter(middleware.BurstLimit, middleware.RefillRate))
	client.AuthUserID = middleware.UserIDFrom(r.Context())
	s.hub.Register(client)

	go client.WritePump(s.log)
	go client.ReadPump(s.ctx, s.coord, s.hub, s.readLimit, s.readTimeout, s.log)
}

func originChecker(allowed []string) func(*http.Request) bool {
	for _, o := range allowed {
		if o == "*" {
			return func(*http.Request) bool { return true }
		}
	}
	if len(allowed) == 0 {
		return nil // gorilla's same-origin check
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		u, err := url.Parse(origin)
		if err != nil {
			return false
		}
		for _, o := range allowed {
			if strings.EqualFold(o, origin) || strings.EqualFold(o, u.Host) {
				return true
			}
		}
		return false
	}
}
