package session

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"hardcore/internal/bootstrap/logging"
	"hardcore/internal/errs"
	"hardcore/internal/ports"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = pongWait * 9 / 10
	maxMessageSize = 4096
	sendBuffer     = 32
)

// Handler reacts to session lifecycle and inbound text lines.
type Handler interface {
	Joined(ctx context.Context, s *Session)
	Message(ctx context.Context, s *Session, line string)
	Left(ctx context.Context, s *Session)
}

// Session is one live participant connection.
type Session struct {
	ParticipantID uuid.UUID
	Name          string
	Permissions   []string

	conn      *websocket.Conn
	send      chan []byte
	closeOnce sync.Once
	done      chan struct{}
}

// Hub tracks live sessions on this host. It answers presence queries and
// delivers notifications to connected participants only.
type Hub struct {
	upgrader websocket.Upgrader

	mu       sync.RWMutex
	sessions map[uuid.UUID]*Session
	closed   bool
}

var (
	_ ports.Presence = (*Hub)(nil)
	_ ports.Notifier = (*Hub)(nil)
)

func NewHub() *Hub {
	return &Hub{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
		sessions: make(map[uuid.UUID]*Session),
	}
}

func (h *Hub) IsOnline(participantID uuid.UUID) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	_, ok := h.sessions[participantID]
	return ok
}

func (h *Hub) LookupOnline(name string) (uuid.UUID, bool) {
	name = strings.TrimSpace(name)
	h.mu.RLock()
	defer h.mu.RUnlock()
	for id, s := range h.sessions {
		if strings.EqualFold(s.Name, name) {
			return id, true
		}
	}
	return uuid.Nil, false
}

func (h *Hub) Online() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.sessions)
}

// Notify queues n for the participant's session. Offline participants are
// skipped silently; a session whose buffer is full is dropped.
func (h *Hub) Notify(ctx context.Context, n ports.Notification) error {
	h.mu.RLock()
	s, ok := h.sessions[n.ParticipantID]
	h.mu.RUnlock()
	if !ok {
		return nil
	}

	data, err := json.Marshal(n)
	if err != nil {
		return errs.Wrap(err, "encode notification")
	}
	if !s.enqueue(data) {
		logging.Warn(ctx, "session send buffer full, closing", slog.String("participant_id", s.ParticipantID.String()))
		s.close()
		return errors.New("session send buffer full")
	}
	return nil
}

// Accept upgrades the request and serves the session until the peer goes
// away. It blocks, so callers run it from the HTTP handler goroutine.
func (h *Hub) Accept(ctx context.Context, w http.ResponseWriter, r *http.Request, s *Session, handler Handler) error {
	if s == nil || s.ParticipantID == uuid.Nil {
		return errors.New("session participant is required")
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return errs.Wrap(err, "upgrade websocket")
	}
	s.conn = conn
	s.send = make(chan []byte, sendBuffer)
	s.done = make(chan struct{})

	if err := h.register(s); err != nil {
		_ = conn.Close()
		return err
	}

	logCtx := logging.WithParticipant(
		logging.WithAttrs(ctx, slog.String("component", "infrastructure.session")),
		s.ParticipantID.String(),
		"",
	)
	logging.Info(logCtx, "session opened", slog.String("name", s.Name))

	go s.writePump()

	handler.Joined(logCtx, s)
	s.readPump(logCtx, handler)

	h.unregister(s)
	s.close()
	handler.Left(logCtx, s)
	logging.Info(logCtx, "session closed")
	return nil
}

func (h *Hub) register(s *Session) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return errors.New("session hub closed")
	}
	if prev, ok := h.sessions[s.ParticipantID]; ok {
		prev.close()
	}
	h.sessions[s.ParticipantID] = s
	return nil
}

func (h *Hub) unregister(s *Session) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if current, ok := h.sessions[s.ParticipantID]; ok && current == s {
		delete(h.sessions, s.ParticipantID)
	}
}

// Close disconnects every session and refuses new ones.
func (h *Hub) Close() {
	h.mu.Lock()
	h.closed = true
	sessions := make([]*Session, 0, len(h.sessions))
	for _, s := range h.sessions {
		sessions = append(sessions, s)
	}
	h.mu.Unlock()

	for _, s := range sessions {
		s.close()
	}
}

// Reply sends a plain command reply to this session only.
func (s *Session) Reply(message string) {
	data, err := json.Marshal(ports.Notification{
		Kind:          ports.NotifyCommandReply,
		ParticipantID: s.ParticipantID,
		Message:       message,
	})
	if err != nil {
		return
	}
	s.enqueue(data)
}

func (s *Session) enqueue(data []byte) bool {
	select {
	case <-s.done:
		return true
	default:
	}
	select {
	case s.send <- data:
		return true
	default:
		return false
	}
}

func (s *Session) close() {
	s.closeOnce.Do(func() {
		close(s.done)
		if s.conn != nil {
			_ = s.conn.Close()
		}
	})
}

func (s *Session) readPump(ctx context.Context, handler Handler) {
	s.conn.SetReadLimit(maxMessageSize)
	_ = s.conn.SetReadDeadline(time.Now().Add(pongWait))
	s.conn.SetPongHandler(func(string) error {
		return s.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := s.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logging.Debug(ctx, "session read failed", slog.Any("err", errs.Loggable(err)))
			}
			return
		}
		line := strings.TrimSpace(string(data))
		if line == "" {
			continue
		}
		handler.Message(ctx, s, line)
	}
}

func (s *Session) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-s.done:
			return
		case data := <-s.send:
			_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				s.close()
				return
			}
		case <-ticker.C:
			_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				s.close()
				return
			}
		}
	}
}
