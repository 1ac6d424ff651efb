package httpapi

import (
	"context"
	"huddle/auth"
	"huddle/domain"
	"huddle/domain/event"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/samber/lo"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10
)

// createUpgrader accepts the configured origins; "*" accepts any.
func createUpgrader(allowedOrigins []string) websocket.Upgrader {
	allowedMap := make(map[string]bool)
	for _, origin := range allowedOrigins {
		allowedMap[origin] = true
	}

	return websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			return origin == "" || allowedMap["*"] || allowedMap[origin]
		},
	}
}

// HandleWebSocket handles GET /api/v1/ws?team=<id>...
// The connection observes the caller's inbox and the listed teams, and pushes the
// overview after every change of one of them. The client opens and closes
// conversations through the same connection.
func (h *Handler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	selfID, _ := auth.UserIDFromContext(r.Context())
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("WebSocket upgrade error", "error", err)
		return
	}
	defer conn.Close()

	teamIDs := lo.Compact(lo.Uniq(r.URL.Query()["team"]))
	observerID := "ws:" + uuid.NewString()
	scopes := append([]domain.Scope{domain.InboxScope(selfID)}, lo.Map(teamIDs, func(teamID string, _ int) domain.Scope {
		return domain.TeamScope(teamID)
	})...)

	sink := NewSink(h.config.ConnectionBufferSize)
	for _, scope := range scopes {
		h.service.Watch(observerID, scope, sink)
	}
	defer func() {
		for _, scope := range scopes {
			h.service.Unwatch(observerID, scope)
		}
	}()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()
	replies := make(chan any, 1)
	session := &session{handler: h, selfID: selfID, observerID: observerID + ":open"}
	readerDone := make(chan struct{})
	go func() {
		defer close(readerDone)
		session.readCommands(ctx, cancel, conn, replies)
	}()
	defer func() {
		// unblocks the reader, which releases the open conversation
		_ = conn.Close()
		<-readerDone
	}()

	h.log.Debug("WebSocket observer connected", "user", selfID, "observer", observerID, "teams", len(teamIDs))
	if !h.push(ctx, conn, selfID, teamIDs) {
		return
	}

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case reply := <-replies:
			if !write(conn, reply) {
				return
			}
		case <-sink.Events:
			drain(sink.Events)
			if !h.push(ctx, conn, selfID, teamIDs) {
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// push sends a fresh overview. A failed computation is reported to the client
// and keeps the connection open.
func (h *Handler) push(ctx context.Context, conn *websocket.Conn, selfID string, teamIDs []string) bool {
	overview, err := h.overview(ctx, selfID, teamIDs)
	if err != nil {
		if ctx.Err() != nil {
			return false
		}
		return write(conn, ErrorResponse{Error: err.Error()})
	}
	return write(conn, overview)
}

func write(conn *websocket.Conn, body any) bool {
	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	return conn.WriteJSON(body) == nil
}

// drain collapses a burst of events into a single push.
func drain(events <-chan event.DomainEvent) {
	for {
		select {
		case <-events:
		default:
			return
		}
	}
}

// session tracks the conversation a websocket client has open.
// It is only touched by the reading goroutine.
type session struct {
	handler    *Handler
	selfID     string
	observerID string
	opened     string
}

func (s *session) readCommands(ctx context.Context, cancel context.CancelFunc, conn *websocket.Conn, replies chan<- any) {
	defer cancel()
	defer s.closeOpened()
	conn.SetReadLimit(4096)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		var cmd ClientCommand
		if err := conn.ReadJSON(&cmd); err != nil {
			s.handler.log.Debug("WebSocket observer disconnected", "user", s.selfID, "error", err)
			return
		}
		if reply := s.apply(ctx, cmd); reply != nil {
			select {
			case replies <- reply:
			case <-ctx.Done():
				return
			}
		}
	}
}

// apply returns what must be written back, if anything. A successful open is
// visible through the next overview push.
func (s *session) apply(ctx context.Context, cmd ClientCommand) any {
	switch cmd.Action {
	case "open":
		s.closeOpened()
		_, err := s.handler.service.OpenConversation(ctx, domain.OpenConversationCommand{
			ObserverID:     s.observerID,
			SelfID:         s.selfID,
			CounterpartyID: cmd.CounterpartyID,
		})
		if err != nil {
			return ErrorResponse{Error: err.Error()}
		}
		s.opened = cmd.CounterpartyID
	case "close":
		s.closeOpened()
	default:
		return ErrorResponse{Error: "unknown action " + cmd.Action}
	}
	return nil
}

func (s *session) closeOpened() {
	if s.opened == "" {
		return
	}
	s.handler.service.CloseConversation(domain.CloseConversationCommand{
		ObserverID:     s.observerID,
		SelfID:         s.selfID,
		CounterpartyID: s.opened,
	})
	s.opened = ""
}
