//go:generate go run go.uber.org/mock/mockgen -source=chat_service.go -destination=../mocks/mock_chat_service.go -package=mocks
package services

import (
	"context"
	goerrors "errors"
	"huddle/contract"
	"huddle/domain"
	"huddle/errors"
	"huddle/projection"
	"log/slog"

	"github.com/google/uuid"
	"github.com/samber/lo"
)

// IChatService is what every presentation surface consumes.
// All reads go through the registry, so the page, the overlay and the badge
// derive their state from the same channel snapshot.
type IChatService interface {
	GetConversations(ctx context.Context, selfID string) ([]domain.Conversation, error)
	Conversations(ctx context.Context, scope domain.Scope, selfID string) ([]domain.Conversation, error)
	GetUnreadTotal(ctx context.Context, selfID string) (int, error)
	Overview(ctx context.Context, selfID string, teamIDs []string) ([]domain.Conversation, error)
	Thread(ctx context.Context, scope domain.Scope, selfID, counterpartyID string) ([]domain.Message, error)
	OpenConversation(ctx context.Context, cmd domain.OpenConversationCommand) (domain.Conversation, error)
	CloseConversation(cmd domain.CloseConversationCommand)
	Watch(observerID string, scope domain.Scope, sink contract.EventSink) contract.ScopeChannel
	Unwatch(observerID string, scope domain.Scope)
	SendMessage(ctx context.Context, cmd domain.SendMessageCommand) (domain.Message, error)
	ScopeState(scope domain.Scope) domain.ScopeState
}

type ChatService struct {
	log              *slog.Logger
	registry         contract.IRegistry
	store            contract.MessageStore
	profiles         contract.ProfileDirectory
	maxContentLength int
}

func NewChatService(log *slog.Logger, registry contract.IRegistry, store contract.MessageStore,
	profiles contract.ProfileDirectory, maxContentLength int) *ChatService {
	return &ChatService{
		log:              log,
		registry:         registry,
		store:            store,
		profiles:         profiles,
		maxContentLength: maxContentLength,
	}
}

// GetConversations lists the caller's private conversations, most recent first.
func (s *ChatService) GetConversations(ctx context.Context, selfID string) ([]domain.Conversation, error) {
	return s.Conversations(ctx, domain.InboxScope(selfID), selfID)
}

func (s *ChatService) Conversations(ctx context.Context, scope domain.Scope, selfID string) ([]domain.Conversation, error) {
	if selfID == "" {
		return nil, errors.ErrMissingIdentity
	}
	snap, err := s.snapshot(ctx, scope)
	if err != nil {
		return nil, err
	}
	return s.aggregate(ctx, snap.Messages, selfID), nil
}

// GetUnreadTotal is recomputed from a fresh aggregation on every call.
// Team messages carry no read state, so the inbox holds every unread message.
func (s *ChatService) GetUnreadTotal(ctx context.Context, selfID string) (int, error) {
	conversations, err := s.GetConversations(ctx, selfID)
	if err != nil {
		return 0, err
	}
	return projection.UnreadTotal(conversations), nil
}

// Overview merges the caller's inbox and team scopes into a single list, ordered
// like any aggregation. Team conversations never count as unread.
func (s *ChatService) Overview(ctx context.Context, selfID string, teamIDs []string) ([]domain.Conversation, error) {
	if selfID == "" {
		return nil, errors.ErrMissingIdentity
	}
	scopes := append([]domain.Scope{domain.InboxScope(selfID)}, lo.Map(lo.Compact(lo.Uniq(teamIDs)), func(teamID string, _ int) domain.Scope {
		return domain.TeamScope(teamID)
	})...)

	var messages []domain.Message
	for _, scope := range scopes {
		snap, err := s.snapshot(ctx, scope)
		if err != nil {
			return nil, err
		}
		messages = append(messages, snap.Messages...)
	}
	return s.aggregate(ctx, messages, selfID), nil
}

func (s *ChatService) Thread(ctx context.Context, scope domain.Scope, selfID, counterpartyID string) ([]domain.Message, error) {
	if selfID == "" {
		return nil, errors.ErrMissingIdentity
	}
	snap, err := s.snapshot(ctx, scope)
	if err != nil {
		return nil, err
	}
	return projection.Thread(snap.Messages, selfID, counterpartyID), nil
}

// OpenConversation registers the observer on the conversation's scope and, for a
// private conversation, marks its messages read in the store and in the live set.
// On a store failure the registration is rolled back.
func (s *ChatService) OpenConversation(ctx context.Context, cmd domain.OpenConversationCommand) (domain.Conversation, error) {
	switch {
	case cmd.ObserverID == "":
		return domain.Conversation{}, errors.ErrMissingObserver
	case cmd.SelfID == "":
		return domain.Conversation{}, errors.ErrMissingIdentity
	case cmd.CounterpartyID == "":
		return domain.Conversation{}, errors.ErrMissingScope
	}
	scope := domain.ScopeFor(cmd.SelfID, cmd.CounterpartyID)
	channel := s.registry.Subscribe(cmd.ObserverID, scope, nil)

	if scope.Kind != domain.ScopeTeam {
		if err := s.store.MarkRead(ctx, scope, cmd.CounterpartyID, cmd.SelfID); err != nil {
			s.registry.Unsubscribe(cmd.ObserverID, scope)
			return domain.Conversation{}, persistence(err)
		}
		if err := channel.MarkRead(ctx, cmd.CounterpartyID, cmd.SelfID); err != nil {
			s.log.Warn("Read mark not applied to live set", "scope", scope.Key(), "error", err)
		}
	}

	snap, err := s.read(ctx, channel)
	if err != nil {
		return domain.Conversation{}, err
	}
	conversations := s.aggregate(ctx, snap.Messages, cmd.SelfID)
	if conversation, ok := lo.Find(conversations, func(c domain.Conversation) bool {
		return c.CounterpartyID == cmd.CounterpartyID
	}); ok {
		return conversation, nil
	}
	return s.emptyConversation(ctx, scope, cmd.CounterpartyID), nil
}

func (s *ChatService) CloseConversation(cmd domain.CloseConversationCommand) {
	s.registry.Unsubscribe(cmd.ObserverID, domain.ScopeFor(cmd.SelfID, cmd.CounterpartyID))
}

// Watch keeps a scope live for a long-running observer such as a websocket.
func (s *ChatService) Watch(observerID string, scope domain.Scope, sink contract.EventSink) contract.ScopeChannel {
	return s.registry.Subscribe(observerID, scope, sink)
}

func (s *ChatService) Unwatch(observerID string, scope domain.Scope) {
	s.registry.Unsubscribe(observerID, scope)
}

// SendMessage validates and persists. It never touches a channel: the sender sees
// the message through the same feed as every other observer.
// A store failure is returned wrapped in errors.ErrPersistence, once, with the
// store's own error kept reachable through errors.Is. Nothing is retried.
func (s *ChatService) SendMessage(ctx context.Context, cmd domain.SendMessageCommand) (domain.Message, error) {
	content, err := validateSend(cmd, s.maxContentLength)
	if err != nil {
		return domain.Message{}, err
	}
	message, err := s.store.InsertMessage(ctx, domain.Draft{
		Scope:    cmd.Scope,
		SenderID: cmd.SenderID,
		Content:  content,
		Type:     cmd.Type,
		MediaURL: cmd.MediaURL,
		TeamID:   cmd.TeamID,
	})
	if err != nil {
		return domain.Message{}, persistence(err)
	}
	s.log.Debug("Message sent", "id", message.ID, "scope", cmd.Scope.Key())
	return message, nil
}

// ScopeState reports Idle for a scope nobody observes.
func (s *ChatService) ScopeState(scope domain.Scope) domain.ScopeState {
	if channel, ok := s.registry.Lookup(scope); ok {
		return channel.State()
	}
	return domain.StateIdle
}

// snapshot attaches a transient observer for the duration of the read.
// An observed scope keeps its channel; an unobserved one is subscribed, read and released.
func (s *ChatService) snapshot(ctx context.Context, scope domain.Scope) (domain.Snapshot, error) {
	if !scope.Valid() {
		return domain.Snapshot{}, errors.ErrMissingScope
	}
	observerID := "read:" + uuid.NewString()
	channel := s.registry.Subscribe(observerID, scope, nil)
	defer s.registry.Unsubscribe(observerID, scope)
	return s.read(ctx, channel)
}

// read waits for the first baseline. A degraded channel that once was active
// keeps serving its last snapshot.
func (s *ChatService) read(ctx context.Context, channel contract.ScopeChannel) (domain.Snapshot, error) {
	if err := channel.WaitReady(ctx); err != nil {
		return domain.Snapshot{}, err
	}
	return channel.Snapshot(), nil
}

func (s *ChatService) aggregate(ctx context.Context, messages []domain.Message, selfID string) []domain.Conversation {
	return projection.Aggregate(messages, selfID, s.lookupProfiles(ctx, projection.Counterparties(messages, selfID)))
}

// lookupProfiles degrades to bare ids when the directory fails.
func (s *ChatService) lookupProfiles(ctx context.Context, ids []string) projection.Profiles {
	if s.profiles == nil || len(ids) == 0 {
		return nil
	}
	profiles, err := s.profiles.Profiles(ctx, ids)
	if err != nil {
		s.log.Warn("Profile lookup failed, falling back to ids", "error", err)
		return nil
	}
	return profiles
}

func (s *ChatService) emptyConversation(ctx context.Context, scope domain.Scope, counterpartyID string) domain.Conversation {
	kind := domain.ScopePrivate
	if scope.Kind == domain.ScopeTeam {
		kind = domain.ScopeTeam
	}
	profile := s.lookupProfiles(ctx, []string{counterpartyID})[counterpartyID]
	displayName := profile.DisplayName
	if displayName == "" {
		displayName = counterpartyID
	}
	return domain.Conversation{
		CounterpartyID: counterpartyID,
		Kind:           kind,
		DisplayName:    displayName,
		AvatarURL:      profile.AvatarURL,
	}
}

// persistence keeps a single category wrap whether or not the store already wrapped.
func persistence(err error) error {
	if goerrors.Is(err, errors.ErrPersistence) {
		return err
	}
	return errors.Persistence(err)
}
