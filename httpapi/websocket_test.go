package httpapi

import (
	"context"
	"huddle/contract"
	"huddle/domain"
	"huddle/domain/event"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func TestWebSocket_Pushes_Overview_On_Changes(t *testing.T) {
	req := require.New(t)
	h, service := newTestHandler(t)
	srv := httptest.NewServer(h.Handler())
	defer srv.Close()

	sinks := make(chan contract.EventSink, 2)
	released := make(chan domain.Scope, 2)
	opened := make(chan struct{})
	var unread atomic.Int32
	unread.Store(1)

	// Given bob watches his inbox and team t1
	service.EXPECT().Watch(gomock.Any(), gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ string, _ domain.Scope, sink contract.EventSink) contract.ScopeChannel {
			sinks <- sink
			return nil
		}).Times(2)
	service.EXPECT().Overview(gomock.Any(), "bob", []string{"t1"}).
		DoAndReturn(func(context.Context, string, []string) ([]domain.Conversation, error) {
			return []domain.Conversation{{CounterpartyID: "alice", Kind: domain.ScopePrivate, UnreadCount: int(unread.Load())}}, nil
		}).MinTimes(2)
	service.EXPECT().ScopeState(domain.InboxScope("bob")).Return(domain.StateActive).MinTimes(2)
	service.EXPECT().OpenConversation(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, cmd domain.OpenConversationCommand) (domain.Conversation, error) {
			req.Equal("alice", cmd.CounterpartyID)
			unread.Store(0)
			close(opened)
			return domain.Conversation{}, nil
		})
	service.EXPECT().CloseConversation(gomock.Any())
	service.EXPECT().Unwatch(gomock.Any(), gomock.Any()).
		Do(func(_ string, scope domain.Scope) { released <- scope }).Times(2)

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/v1/ws?team=t1&access_token=" + token(t, "bob")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	req.NoError(err)

	// Then the first overview arrives on connect
	var overview OverviewDTO
	req.NoError(conn.ReadJSON(&overview))
	req.Equal(1, overview.UnreadTotal)
	req.Equal("active", overview.State)

	// When bob opens the conversation and the channel reports the read mark
	req.NoError(conn.WriteJSON(ClientCommand{Action: "open", CounterpartyID: "alice"}))
	<-opened
	sink := <-sinks
	req.NoError(sink.Consume(context.Background(), event.MessagesRead{Scope: domain.InboxScope("bob"), Count: 1}))

	// Then a fresh overview is pushed
	req.NoError(conn.SetReadDeadline(time.Now().Add(2 * time.Second)))
	req.NoError(conn.ReadJSON(&overview))
	req.Zero(overview.UnreadTotal)

	// And closing the socket releases every watched scope
	req.NoError(conn.Close())
	for i := 0; i < 2; i++ {
		select {
		case <-released:
		case <-time.After(2 * time.Second):
			req.Fail("scope not released")
		}
	}
}

func TestWebSocket_Rejects_Unknown_Command(t *testing.T) {
	req := require.New(t)
	h, service := newTestHandler(t)
	srv := httptest.NewServer(h.Handler())
	defer srv.Close()
	released := make(chan struct{})

	service.EXPECT().Watch(gomock.Any(), domain.InboxScope("bob"), gomock.Any()).Return(nil)
	service.EXPECT().Overview(gomock.Any(), "bob", gomock.Len(0)).Return([]domain.Conversation{}, nil)
	service.EXPECT().ScopeState(gomock.Any()).Return(domain.StateActive)
	service.EXPECT().Unwatch(gomock.Any(), domain.InboxScope("bob")).Do(func(string, domain.Scope) { close(released) })

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/v1/ws?access_token=" + token(t, "bob")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	req.NoError(err)
	var overview OverviewDTO
	req.NoError(conn.ReadJSON(&overview))
	req.Empty(overview.Conversations)

	req.NoError(conn.WriteJSON(ClientCommand{Action: "dance"}))
	var reply ErrorResponse
	req.NoError(conn.ReadJSON(&reply))
	req.Contains(reply.Error, "unknown action")

	req.NoError(conn.Close())
	select {
	case <-released:
	case <-time.After(2 * time.Second):
		req.Fail("scope not released")
	}
}

func TestSink_Drops_When_Full(t *testing.T) {
	req := require.New(t)
	sink := NewSink(1)
	e := event.MessageMerged{Scope: domain.TeamScope("t1")}

	req.NoError(sink.Consume(context.Background(), e))
	req.NoError(sink.Consume(context.Background(), e))

	req.Len(sink.Events, 1)
	req.Equal(uint64(1), sink.Dropped())
}
