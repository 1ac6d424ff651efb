package httpapi

import (
	"context"
	"encoding/json"
	goerrors "errors"
	"huddle/auth"
	"huddle/domain"
	"huddle/errors"
	"huddle/observability"
	"huddle/projection"
	"huddle/services"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/rs/cors"
)

type Config struct {
	Secret               []byte
	AllowedOrigins       []string
	ConnectionBufferSize int
	// RequestTimeout bounds REST calls; a first read of a cold scope waits for its baseline.
	RequestTimeout time.Duration
}

// Handler exposes the chat service over REST and a websocket observer.
type Handler struct {
	log        *slog.Logger
	service    services.IChatService
	monitoring *observability.MonitoringManager
	config     Config
	upgrader   websocket.Upgrader
}

func NewHandler(log *slog.Logger, service services.IChatService,
	monitoring *observability.MonitoringManager, config Config) *Handler {
	if config.ConnectionBufferSize <= 0 {
		config.ConnectionBufferSize = 16
	}
	if config.RequestTimeout <= 0 {
		config.RequestTimeout = 10 * time.Second
	}
	return &Handler{
		log:        log,
		service:    service,
		monitoring: monitoring,
		config:     config,
		upgrader:   createUpgrader(config.AllowedOrigins),
	}
}

// Router configures the routes. Everything except the stats endpoint needs a caller identity.
func (h *Handler) Router() *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/stats", h.GetStats).Methods(http.MethodGet)

	api := r.PathPrefix("/api/v1").Subrouter()
	api.Use(auth.Middleware(h.config.Secret))
	api.HandleFunc("/overview", h.GetOverview).Methods(http.MethodGet)
	api.HandleFunc("/conversations", h.GetConversations).Methods(http.MethodGet)
	api.HandleFunc("/conversations/{counterpartyID}/messages", h.GetThread).Methods(http.MethodGet)
	api.HandleFunc("/conversations/{counterpartyID}/read", h.MarkConversationRead).Methods(http.MethodPost)
	api.HandleFunc("/teams/{teamID}/conversations", h.GetTeamConversations).Methods(http.MethodGet)
	api.HandleFunc("/unread", h.GetUnreadTotal).Methods(http.MethodGet)
	api.HandleFunc("/messages", h.SendMessage).Methods(http.MethodPost)
	api.HandleFunc("/scopes/{scopeKey}/state", h.GetScopeState).Methods(http.MethodGet)
	api.HandleFunc("/ws", h.HandleWebSocket).Methods(http.MethodGet)
	return r
}

// Handler wraps the router with CORS.
func (h *Handler) Handler() http.Handler {
	c := cors.New(cors.Options{
		AllowedOrigins:   h.config.AllowedOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders:   []string{"Content-Type", "Authorization"},
		ExposedHeaders:   []string{"Content-Length"},
		MaxAge:           300,
		AllowCredentials: true,
	})
	return c.Handler(h.Router())
}

func (h *Handler) GetOverview(w http.ResponseWriter, r *http.Request) {
	selfID, ctx, cancel := h.caller(r)
	defer cancel()
	overview, err := h.overview(ctx, selfID, r.URL.Query()["team"])
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, overview)
}

func (h *Handler) GetConversations(w http.ResponseWriter, r *http.Request) {
	selfID, ctx, cancel := h.caller(r)
	defer cancel()
	conversations, err := h.service.GetConversations(ctx, selfID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toConversationDTOs(conversations))
}

func (h *Handler) GetTeamConversations(w http.ResponseWriter, r *http.Request) {
	selfID, ctx, cancel := h.caller(r)
	defer cancel()
	conversations, err := h.service.Conversations(ctx, domain.TeamScope(mux.Vars(r)["teamID"]), selfID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toConversationDTOs(conversations))
}

func (h *Handler) GetThread(w http.ResponseWriter, r *http.Request) {
	selfID, ctx, cancel := h.caller(r)
	defer cancel()
	counterpartyID := mux.Vars(r)["counterpartyID"]
	messages, err := h.service.Thread(ctx, domain.ScopeFor(selfID, counterpartyID), selfID, counterpartyID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toMessageDTOs(messages))
}

// MarkConversationRead opens and immediately closes the conversation for a
// stateless client. A websocket client opens through its connection instead.
func (h *Handler) MarkConversationRead(w http.ResponseWriter, r *http.Request) {
	selfID, ctx, cancel := h.caller(r)
	defer cancel()
	cmd := domain.OpenConversationCommand{
		ObserverID:     "rest:" + uuid.NewString(),
		SelfID:         selfID,
		CounterpartyID: mux.Vars(r)["counterpartyID"],
	}
	conversation, err := h.service.OpenConversation(ctx, cmd)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.service.CloseConversation(domain.CloseConversationCommand(cmd))
	writeJSON(w, http.StatusOK, toConversationDTO(conversation))
}

func (h *Handler) GetUnreadTotal(w http.ResponseWriter, r *http.Request) {
	selfID, ctx, cancel := h.caller(r)
	defer cancel()
	total, err := h.service.GetUnreadTotal(ctx, selfID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"unread_total": total})
}

func (h *Handler) SendMessage(w http.ResponseWriter, r *http.Request) {
	selfID, ctx, cancel := h.caller(r)
	defer cancel()
	var body SendMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}
	message, err := h.service.SendMessage(ctx, body.toCommand(selfID))
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toMessageDTO(message))
}

func (h *Handler) GetScopeState(w http.ResponseWriter, r *http.Request) {
	selfID, _ := auth.UserIDFromContext(r.Context())
	scope, ok := domain.ParseScope(mux.Vars(r)["scopeKey"])
	if !ok {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "invalid scope key"})
		return
	}
	if !auth.CanObserve(selfID, scope) {
		writeJSON(w, http.StatusForbidden, ErrorResponse{Error: "scope is not visible to the caller"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"scope": scope.Key(), "state": string(h.service.ScopeState(scope))})
}

func (h *Handler) GetStats(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.monitoring.GetLatest())
}

func (h *Handler) overview(ctx context.Context, selfID string, teamIDs []string) (OverviewDTO, error) {
	conversations, err := h.service.Overview(ctx, selfID, teamIDs)
	if err != nil {
		return OverviewDTO{}, err
	}
	return OverviewDTO{
		Conversations: toConversationDTOs(conversations),
		UnreadTotal:   projection.UnreadTotal(conversations),
		State:         string(h.service.ScopeState(domain.InboxScope(selfID))),
	}, nil
}

func (h *Handler) caller(r *http.Request) (string, context.Context, context.CancelFunc) {
	selfID, _ := auth.UserIDFromContext(r.Context())
	ctx, cancel := context.WithTimeout(r.Context(), h.config.RequestTimeout)
	return selfID, ctx, cancel
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	status := statusOf(err)
	if status >= http.StatusInternalServerError {
		h.log.Error("Request failed", "error", err)
	}
	writeJSON(w, status, ErrorResponse{Error: err.Error()})
}

func statusOf(err error) int {
	switch {
	case goerrors.Is(err, errors.ErrValidation):
		return http.StatusBadRequest
	case goerrors.Is(err, errors.ErrInvalidToken):
		return http.StatusUnauthorized
	case goerrors.Is(err, errors.ErrPersistence):
		return http.StatusBadGateway
	case goerrors.Is(err, errors.ErrScopeUnavailable), goerrors.Is(err, errors.ErrSubscription):
		return http.StatusServiceUnavailable
	case goerrors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
