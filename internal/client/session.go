package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"groupchat/internal/types"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

const (
	writeWait    = 5 * time.Second
	eventsBuffer = 64
)

var ErrSessionClosed = errors.New("session closed")

// Session is one websocket to the chat server. Pings are answered inside the
// read loop; every other event is delivered on Events.
type Session struct {
	conn    *websocket.Conn
	writeMu sync.Mutex
	events  chan types.Envelope
	done    chan struct{}
	quit    chan struct{}
	once    sync.Once
	log     zerolog.Logger
}

func newSession(conn *websocket.Conn, logger zerolog.Logger) *Session {
	s := &Session{
		conn:   conn,
		events: make(chan types.Envelope, eventsBuffer),
		done:   make(chan struct{}),
		quit:   make(chan struct{}),
		log:    logger,
	}
	go s.readLoop()
	return s
}

func (s *Session) Events() <-chan types.Envelope { return s.events }

// Done is closed once the session has ended for any reason.
func (s *Session) Done() <-chan struct{} { return s.done }

func (s *Session) Emit(event types.EventName, args ...any) error {
	frame, err := types.NewInbound(event, args...)
	if err != nil {
		return err
	}

	select {
	case <-s.quit:
		return ErrSessionClosed
	default:
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	s.conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := s.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
		return fmt.Errorf("emit %s: %w", event, err)
	}
	return nil
}

func (s *Session) Close() error {
	var err error
	s.once.Do(func() {
		close(s.quit)
		s.writeMu.Lock()
		s.conn.SetWriteDeadline(time.Now().Add(writeWait))
		s.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		s.writeMu.Unlock()
		err = s.conn.Close()
	})
	return err
}

func (s *Session) readLoop() {
	defer func() {
		s.Close()
		close(s.done)
		close(s.events)
	}()

	for {
		_, data, err := s.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.log.Warn().Err(err).Msg("session closed unexpectedly")
			}
			return
		}

		var env types.Envelope
		if err := json.Unmarshal(data, &env); err != nil {
			s.log.Debug().Err(err).Msg("undecodable frame dropped")
			continue
		}

		if env.Event == types.EventPing {
			if err := s.Emit(types.EventPong); err != nil {
				s.log.Debug().Err(err).Msg("pong failed")
			}
			continue
		}

		select {
		case s.events <- env:
		case <-s.quit:
			return
		}
	}
}

// Manager owns the process's single session. Create is idempotent while the
// session is alive; Teardown closes it so the next Create dials fresh.
type Manager struct {
	mu      sync.Mutex
	url     string
	header  http.Header
	dialer  *websocket.Dialer
	session *Session
	log     zerolog.Logger
}

// NewManager builds a manager for serverURL (http or ws scheme). A non-empty
// token is sent as a bearer header on the upgrade request.
func NewManager(serverURL, token string, logger zerolog.Logger) (*Manager, error) {
	wsURL, err := websocketURL(serverURL)
	if err != nil {
		return nil, err
	}

	header := http.Header{}
	if token != "" {
		header.Set("Authorization", "Bearer "+token)
	}

	return &Manager{
		url:    wsURL,
		header: header,
		dialer: &websocket.Dialer{HandshakeTimeout: 10 * time.Second},
		log:    logger,
	}, nil
}

func (m *Manager) Create(ctx context.Context) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.session != nil {
		select {
		case <-m.session.Done():
			m.session = nil
		default:
			return m.session, nil
		}
	}

	conn, resp, err := m.dialer.DialContext(ctx, m.url, m.header)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("dial %s: %s: %w", m.url, resp.Status, err)
		}
		return nil, fmt.Errorf("dial %s: %w", m.url, err)
	}

	m.session = newSession(conn, m.log)
	m.log.Debug().Str("url", m.url).Msg("session opened")
	return m.session, nil
}

func (m *Manager) Teardown() error {
	m.mu.Lock()
	s := m.session
	m.session = nil
	m.mu.Unlock()

	if s == nil {
		return nil
	}
	return s.Close()
}

func websocketURL(serverURL string) (string, error) {
	u, err := url.Parse(serverURL)
	if err != nil {
		return "", fmt.Errorf("parse server url: %w", err)
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	case "ws", "wss":
	default:
		return "", fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	if u.Path == "" || u.Path == "/" {
		u.Path = "/ws"
	}
	return u.String(), nil
}
