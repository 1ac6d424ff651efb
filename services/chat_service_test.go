package services

import (
	"context"
	"huddle/contract"
	"huddle/domain"
	"huddle/domain/event"
	"huddle/errors"
	"huddle/mocks"
	"huddle/repositories"
	"huddle/runtime"
	"huddle/runtime/workers"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func TestChatService_SendMessage_Rejects_Before_Store(t *testing.T) {
	log := logs.GetLoggerFromLevel(slog.LevelDebug)
	ctrl := gomock.NewController(t)
	store := mocks.NewMockMessageStore(ctrl)
	registry := mocks.NewMockIRegistry(ctrl)
	service := NewChatService(log, registry, store, nil, 20)

	// The store must never be reached by an invalid command
	store.EXPECT().InsertMessage(gomock.Any(), gomock.Any()).Times(0)

	pair := domain.PrivateScope("alice", "bob")
	tests := []struct {
		name string
		cmd  domain.SendMessageCommand
		want error
	}{
		{"blank content", domain.SendMessageCommand{Scope: pair, SenderID: "alice", Content: ""}, errors.ErrBlankContent},
		{"whitespace content", domain.SendMessageCommand{Scope: pair, SenderID: "alice", Content: " \t\n "}, errors.ErrBlankContent},
		{"content too long", domain.SendMessageCommand{Scope: pair, SenderID: "alice", Content: strings.Repeat("é", 21)}, errors.ErrContentTooLong},
		{"missing sender", domain.SendMessageCommand{Scope: pair, Content: "oi"}, errors.ErrMissingSender},
		{"missing team", domain.SendMessageCommand{Scope: domain.TeamScope(""), SenderID: "alice", Content: "oi"}, errors.ErrMissingScope},
		{"missing scope", domain.SendMessageCommand{SenderID: "alice", Content: "oi"}, errors.ErrMissingScope},
		{"sender outside pair", domain.SendMessageCommand{Scope: pair, SenderID: "carol", Content: "oi"}, errors.ErrSenderNotInScope},
		{"inbox is not a destination", domain.SendMessageCommand{Scope: domain.InboxScope("alice"), SenderID: "alice", Content: "oi"}, errors.ErrUnsupportedScope},
		{"unknown type", domain.SendMessageCommand{Scope: pair, SenderID: "alice", Content: "oi", Type: "poll"}, errors.ErrInvalidMessage},
		{"invalid media url", domain.SendMessageCommand{Scope: pair, SenderID: "alice", Content: "oi", MediaURL: "not a url"}, errors.ErrInvalidMessage},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := require.New(t)

			_, err := service.SendMessage(context.Background(), tt.cmd)

			req.ErrorIs(err, tt.want)
			req.ErrorIs(err, errors.ErrValidation)
		})
	}
}

func TestChatService_SendMessage_Returns_Canonical_Record(t *testing.T) {
	req := require.New(t)
	log := logs.GetLoggerFromLevel(slog.LevelDebug)
	ctrl := gomock.NewController(t)
	store := mocks.NewMockMessageStore(ctrl)
	service := NewChatService(log, mocks.NewMockIRegistry(ctrl), store, nil, 0)

	stored := domain.Message{
		ID:        "0192f",
		Kind:      domain.ScopeTeam,
		TeamID:    "falcons",
		SenderID:  "alice",
		Content:   "warm up at 6",
		Type:      domain.AnnouncementMessage,
		CreatedAt: time.Date(2025, 3, 1, 18, 0, 0, 0, time.UTC),
	}

	// Given the store accepts the trimmed draft
	store.EXPECT().
		InsertMessage(gomock.Any(), domain.Draft{
			Scope:    domain.TeamScope("falcons"),
			SenderID: "alice",
			Content:  "warm up at 6",
			Type:     domain.AnnouncementMessage,
		}).
		Return(stored, nil).
		Times(1)

	// When sending with surrounding blanks
	msg, err := service.SendMessage(context.Background(), domain.SendMessageCommand{
		Scope:    domain.TeamScope("falcons"),
		SenderID: "alice",
		Content:  "  warm up at 6 \n",
		Type:     domain.AnnouncementMessage,
	})

	// Then the store's record comes back untouched
	req.NoError(err)
	req.Equal(stored, msg)
}

func TestChatService_SendMessage_Propagates_Store_Failure(t *testing.T) {
	req := require.New(t)
	log := logs.GetLoggerFromLevel(slog.LevelDebug)
	ctrl := gomock.NewController(t)
	store := mocks.NewMockMessageStore(ctrl)
	registry := mocks.NewMockIRegistry(ctrl)
	service := NewChatService(log, registry, store, nil, 0)

	store.EXPECT().InsertMessage(gomock.Any(), gomock.Any()).Return(domain.Message{}, assert.AnError).Times(1)
	// No channel is touched on failure
	registry.EXPECT().Subscribe(gomock.Any(), gomock.Any(), gomock.Any()).Times(0)

	_, err := service.SendMessage(context.Background(), domain.SendMessageCommand{
		Scope: domain.PrivateScope("alice", "bob"), SenderID: "alice", Content: "oi",
	})

	req.ErrorIs(err, errors.ErrPersistence)
	req.ErrorIs(err, assert.AnError)
}

func TestChatService_SendMessage_Wraps_Store_Failure_Once(t *testing.T) {
	req := require.New(t)
	log := logs.GetLoggerFromLevel(slog.LevelDebug)
	ctrl := gomock.NewController(t)
	store := mocks.NewMockMessageStore(ctrl)
	service := NewChatService(log, mocks.NewMockIRegistry(ctrl), store, nil, 0)

	// Given a store that already reports a persistence error
	stored := errors.Persistence(assert.AnError)
	store.EXPECT().InsertMessage(gomock.Any(), gomock.Any()).Return(domain.Message{}, stored).Times(1)

	_, err := service.SendMessage(context.Background(), domain.SendMessageCommand{
		Scope: domain.TeamScope("falcons"), SenderID: "alice", TeamID: "falcons", Content: "oi",
	})

	// Then it is returned as is
	req.Equal(stored, err)
	req.ErrorIs(err, assert.AnError)
}

func TestChatService_OpenConversation_Rolls_Back_On_Store_Failure(t *testing.T) {
	req := require.New(t)
	log := logs.GetLoggerFromLevel(slog.LevelDebug)
	ctrl := gomock.NewController(t)
	store := mocks.NewMockMessageStore(ctrl)
	registry := mocks.NewMockIRegistry(ctrl)
	channel := mocks.NewMockScopeChannel(ctrl)
	service := NewChatService(log, registry, store, nil, 0)
	inbox := domain.InboxScope("bob")

	registry.EXPECT().Subscribe("page", inbox, nil).Return(channel).Times(1)
	store.EXPECT().MarkRead(gomock.Any(), inbox, "alice", "bob").Return(assert.AnError).Times(1)
	registry.EXPECT().Unsubscribe("page", inbox).Times(1)
	channel.EXPECT().MarkRead(gomock.Any(), gomock.Any(), gomock.Any()).Times(0)

	_, err := service.OpenConversation(context.Background(), domain.OpenConversationCommand{
		ObserverID: "page", SelfID: "bob", CounterpartyID: "alice",
	})

	req.ErrorIs(err, errors.ErrPersistence)
}

func TestChatService_OpenConversation_Requires_Identity(t *testing.T) {
	req := require.New(t)
	log := logs.GetLoggerFromLevel(slog.LevelDebug)
	ctrl := gomock.NewController(t)
	registry := mocks.NewMockIRegistry(ctrl)
	service := NewChatService(log, registry, mocks.NewMockMessageStore(ctrl), nil, 0)

	registry.EXPECT().Subscribe(gomock.Any(), gomock.Any(), gomock.Any()).Times(0)

	_, err := service.OpenConversation(context.Background(), domain.OpenConversationCommand{SelfID: "bob", CounterpartyID: "alice"})
	req.ErrorIs(err, errors.ErrMissingObserver)
	_, err = service.OpenConversation(context.Background(), domain.OpenConversationCommand{ObserverID: "page", CounterpartyID: "alice"})
	req.ErrorIs(err, errors.ErrMissingIdentity)
}

func TestChatService_ScopeState_Of_Unobserved_Scope_Is_Idle(t *testing.T) {
	req := require.New(t)
	log := logs.GetLoggerFromLevel(slog.LevelDebug)
	ctrl := gomock.NewController(t)
	registry := mocks.NewMockIRegistry(ctrl)
	service := NewChatService(log, registry, mocks.NewMockMessageStore(ctrl), nil, 0)

	registry.EXPECT().Lookup(domain.TeamScope("falcons")).Return(nil, false)

	req.Equal(domain.StateIdle, service.ScopeState(domain.TeamScope("falcons")))
}

// countingStore counts the change feeds opened on the wrapped store.
type countingStore struct {
	contract.MessageStore
	subscriptions atomic.Int32
}

func (c *countingStore) Subscribe(ctx context.Context, scope domain.Scope, onInsert func(domain.Message)) (contract.Subscription, error) {
	c.subscriptions.Add(1)
	return c.MessageStore.Subscribe(ctx, scope, onInsert)
}

type recordingSink struct {
	mu     sync.Mutex
	events []event.DomainEvent
}

func (r *recordingSink) Consume(_ context.Context, e event.DomainEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
	return nil
}

func (r *recordingSink) merged() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	count := 0
	for _, e := range r.events {
		if _, ok := e.(event.MessageMerged); ok {
			count++
		}
	}
	return count
}

type engine struct {
	service  *ChatService
	registry *runtime.Registry
	store    *countingStore
	profiles *repositories.ProfileRepository
}

func newEngine(t *testing.T) engine {
	t.Helper()
	log := logs.GetLoggerFromLevel(slog.LevelDebug)
	db, err := badger.Open(badger.DefaultOptions("").WithInMemory(true).WithLoggingLevel(badger.ERROR))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	store := &countingStore{MessageStore: repositories.NewMessageRepository(db, log)}
	profiles := repositories.NewProfileRepository(db)
	supervisor := workers.NewSupervisor(log, workers.RestartPolicy{
		BaseDelay: 10 * time.Millisecond, MaxDelay: 50 * time.Millisecond, MaxAttempts: 3,
	})
	registry := runtime.NewRegistry(log, supervisor, store, runtime.ChannelConfig{
		FetchTimeout: time.Second, SinkTimeout: 100 * time.Millisecond,
	})
	t.Cleanup(registry.Stop)

	return engine{
		service:  NewChatService(log, registry, store, profiles, 500),
		registry: registry,
		store:    store,
		profiles: profiles,
	}
}

func TestChatService_Empty_Inbox(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	e := newEngine(t)

	// Given nobody wrote anything
	conversations, err := e.service.GetConversations(ctx, "alice")
	req.NoError(err)
	total, err := e.service.GetUnreadTotal(ctx, "alice")
	req.NoError(err)

	// Then the list is empty and the badge is zero
	req.NotNil(conversations)
	req.Empty(conversations)
	req.Zero(total)

	// And the transient reads left no channel behind
	req.Zero(e.registry.ActiveScopes())
}

func TestChatService_Unread_Follows_Send_And_Open(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	e := newEngine(t)
	req.NoError(e.profiles.PutProfile(ctx, domain.Profile{ID: "alice", DisplayName: "Alice", AvatarURL: "https://cdn/alice.png"}))

	// Given bob has nothing unread
	total, err := e.service.GetUnreadTotal(ctx, "bob")
	req.NoError(err)
	req.Zero(total)

	// When alice sends "oi" to bob
	sent, err := e.service.SendMessage(ctx, domain.SendMessageCommand{
		Scope: domain.PrivateScope("alice", "bob"), SenderID: "alice", Content: "oi",
	})
	req.NoError(err)

	// Then bob's badge goes up by one while alice's stays at zero
	total, err = e.service.GetUnreadTotal(ctx, "bob")
	req.NoError(err)
	req.Equal(1, total)
	total, err = e.service.GetUnreadTotal(ctx, "alice")
	req.NoError(err)
	req.Zero(total)

	conversations, err := e.service.GetConversations(ctx, "bob")
	req.NoError(err)
	req.Len(conversations, 1)
	req.Equal("alice", conversations[0].CounterpartyID)
	req.Equal("Alice", conversations[0].DisplayName)
	req.Equal("https://cdn/alice.png", conversations[0].AvatarURL)
	req.Equal(sent.ID, conversations[0].LatestMessage.ID)

	// When bob opens the conversation
	opened, err := e.service.OpenConversation(ctx, domain.OpenConversationCommand{
		ObserverID: "page", SelfID: "bob", CounterpartyID: "alice",
	})
	req.NoError(err)
	req.Zero(opened.UnreadCount)

	// Then bob's badge is back to zero
	total, err = e.service.GetUnreadTotal(ctx, "bob")
	req.NoError(err)
	req.Zero(total)
	req.Equal(domain.StateActive, e.service.ScopeState(domain.InboxScope("bob")))

	// When bob closes it the channel is released
	e.service.CloseConversation(domain.CloseConversationCommand{ObserverID: "page", SelfID: "bob", CounterpartyID: "alice"})
	req.Zero(e.registry.Observers(domain.InboxScope("bob")))
}

func TestChatService_Two_Observers_Share_One_Subscription(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	e := newEngine(t)
	team := domain.TeamScope("falcons")
	page, overlay := &recordingSink{}, &recordingSink{}

	// Given the page and the overlay open the same team scope concurrently
	var wg sync.WaitGroup
	for id, sink := range map[string]*recordingSink{"page": page, "overlay": overlay} {
		wg.Add(1)
		go func() {
			defer wg.Done()
			e.service.Watch(id, team, sink)
		}()
	}
	wg.Wait()
	_, err := e.service.Conversations(ctx, team, "alice")
	req.NoError(err)

	// Then exactly one subscription exists
	req.Equal(int32(1), e.store.subscriptions.Load())
	req.Equal(2, e.registry.Observers(team))

	// When a message arrives
	sent, err := e.service.SendMessage(ctx, domain.SendMessageCommand{
		Scope: team, SenderID: "bob", Content: "pitch 3 tonight",
	})
	req.NoError(err)

	// Then both observers are notified and read the same conversation
	req.Eventually(func() bool {
		return page.merged() == 1 && overlay.merged() == 1
	}, 2*time.Second, 10*time.Millisecond)

	fromPage, err := e.service.Conversations(ctx, team, "alice")
	req.NoError(err)
	fromOverlay, err := e.service.Conversations(ctx, team, "carol")
	req.NoError(err)
	req.Len(fromPage, 1)
	req.Equal(domain.TeamCounterparty("falcons"), fromPage[0].CounterpartyID)
	req.Equal(sent, fromPage[0].LatestMessage)
	req.Equal(fromPage[0].LatestMessage, fromOverlay[0].LatestMessage)
	req.Equal(int32(1), e.store.subscriptions.Load())

	// When both leave, a new observer gets a fresh subscription
	e.service.Unwatch("page", team)
	e.service.Unwatch("overlay", team)
	req.Zero(e.registry.ActiveScopes())
	_, err = e.service.Conversations(ctx, team, "alice")
	req.NoError(err)
	req.Equal(int32(2), e.store.subscriptions.Load())
}

func TestChatService_Sender_Sees_Own_Message_Through_Feed(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	e := newEngine(t)
	inbox := domain.InboxScope("alice")
	sink := &recordingSink{}

	// Given alice watches her inbox
	e.service.Watch("overlay", inbox, sink)
	_, err := e.service.GetConversations(ctx, "alice")
	req.NoError(err)

	// When she writes to bob
	sent, err := e.service.SendMessage(ctx, domain.SendMessageCommand{
		Scope: domain.PrivateScope("alice", "bob"), SenderID: "alice", Content: "oi",
	})
	req.NoError(err)

	// Then the message reaches her channel through the feed
	req.Eventually(func() bool { return sink.merged() == 1 }, 2*time.Second, 10*time.Millisecond)
	thread, err := e.service.Thread(ctx, inbox, "alice", "bob")
	req.NoError(err)
	req.Equal([]domain.Message{sent}, thread)
}

func TestChatService_Overview_Merges_Inbox_And_Teams(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	e := newEngine(t)

	// Given a private message to bob, then a team announcement
	_, err := e.service.SendMessage(ctx, domain.SendMessageCommand{
		Scope: domain.PrivateScope("alice", "bob"), SenderID: "alice", Content: "oi",
	})
	req.NoError(err)
	announcement, err := e.service.SendMessage(ctx, domain.SendMessageCommand{
		Scope: domain.TeamScope("t1"), SenderID: "coach", Content: "training moved to 7pm",
		Type: domain.AnnouncementMessage,
	})
	req.NoError(err)

	// When bob asks for his overview with his team
	conversations, err := e.service.Overview(ctx, "bob", []string{"t1", "t1", ""})

	// Then the team conversation comes first and only the private one is unread
	req.NoError(err)
	req.Len(conversations, 2)
	req.Equal(domain.TeamCounterparty("t1"), conversations[0].CounterpartyID)
	req.Equal(announcement.ID, conversations[0].LatestMessage.ID)
	req.Zero(conversations[0].UnreadCount)
	req.Equal("alice", conversations[1].CounterpartyID)
	req.Equal(1, conversations[1].UnreadCount)
}
