package di

import (
	"bytes"
	"context"
	"encoding/json"
	"huddle/auth"
	"huddle/httpapi"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"
)

type client struct {
	t      *testing.T
	server *httptest.Server
	token  string
}

func newClient(t *testing.T, server *httptest.Server, secret, userID string) client {
	token, err := auth.GenerateToken([]byte(secret), userID, nil, time.Hour)
	require.NoError(t, err)
	return client{t: t, server: server, token: token}
}

func (c client) do(method, path string, body any, out any) int {
	c.t.Helper()
	raw, err := json.Marshal(body)
	require.NoError(c.t, err)
	r, err := http.NewRequest(method, c.server.URL+path, bytes.NewReader(raw))
	require.NoError(c.t, err)
	r.Header.Set("Authorization", "Bearer "+c.token)
	res, err := http.DefaultClient.Do(r)
	require.NoError(c.t, err)
	defer res.Body.Close()
	if out != nil {
		require.NoError(c.t, json.NewDecoder(res.Body).Decode(out))
	}
	return res.StatusCode
}

func (c client) unread() int {
	var body map[string]int
	require.Equal(c.t, http.StatusOK, c.do(http.MethodGet, "/api/v1/unread", nil, &body))
	return body["unread_total"]
}

func Test_Scenario_Send_Badge_Open_Over_The_Wire(t *testing.T) {
	req := require.New(t)
	config := testConfig(t)
	app, cleanup, err := InitializeApp(context.Background(), config)
	req.NoError(err)
	t.Cleanup(cleanup)
	server := httptest.NewServer(app.Handler.Handler())
	t.Cleanup(server.Close)

	alice := newClient(t, server, config.JwtSecret, "alice")
	bob := newClient(t, server, config.JwtSecret, "bob")

	// Given bob is connected through a websocket
	conn, _, err := websocket.DefaultDialer.Dial(
		"ws"+strings.TrimPrefix(server.URL, "http")+"/api/v1/ws?access_token="+bob.token, nil)
	req.NoError(err)
	defer conn.Close()
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	var overview httpapi.OverviewDTO
	req.NoError(conn.ReadJSON(&overview))
	req.Empty(overview.Conversations)
	req.Equal("active", overview.State)

	// When alice sends bob a message
	var sent httpapi.MessageDTO
	status := alice.do(http.MethodPost, "/api/v1/messages", httpapi.SendMessageRequest{ReceiverID: "bob", Content: "  oi  "}, &sent)
	req.Equal(http.StatusCreated, status)
	req.Equal("oi", sent.Content)

	// Then bob's socket receives the new overview through the feed
	req.Eventually(func() bool {
		_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
		if err := conn.ReadJSON(&overview); err != nil {
			return false
		}
		return overview.UnreadTotal == 1
	}, 5*time.Second, time.Millisecond)
	req.Equal("alice", overview.Conversations[0].CounterpartyID)
	req.Equal(1, bob.unread())
	req.Zero(alice.unread())

	// When bob opens the conversation from the socket
	req.NoError(conn.WriteJSON(httpapi.ClientCommand{Action: "open", CounterpartyID: "alice"}))

	// Then the badge goes back to zero everywhere
	req.Eventually(func() bool {
		_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
		if err := conn.ReadJSON(&overview); err != nil {
			return false
		}
		return overview.UnreadTotal == 0
	}, 5*time.Second, time.Millisecond)
	req.Zero(bob.unread())

	// And a blank message is rejected before reaching the store
	req.Equal(http.StatusBadRequest,
		alice.do(http.MethodPost, "/api/v1/messages", httpapi.SendMessageRequest{ReceiverID: "bob", Content: "   "}, nil))
}
