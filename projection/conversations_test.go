package projection

import (
	"huddle/domain"
	"math/rand/v2"
	"testing"
	"time"

	"github.com/samber/lo"
	"github.com/stretchr/testify/require"
)

var base = time.Date(2025, 3, 1, 18, 0, 0, 0, time.UTC)

func private(id, from, to string, offset int, read bool) domain.Message {
	return domain.Message{
		ID: id, Kind: domain.ScopePrivate, SenderID: from, ReceiverID: to,
		Content: id, Type: domain.TextMessage, IsRead: read,
		CreatedAt: base.Add(time.Duration(offset) * time.Second),
	}
}

func team(id, teamID, from string, offset int) domain.Message {
	return domain.Message{
		ID: id, Kind: domain.ScopeTeam, TeamID: teamID, SenderID: from,
		Content: id, Type: domain.TextMessage,
		CreatedAt: base.Add(time.Duration(offset) * time.Second),
	}
}

func TestAggregate_Empty_Input(t *testing.T) {
	req := require.New(t)

	conversations := Aggregate(nil, "alice", nil)

	req.NotNil(conversations)
	req.Empty(conversations)
	req.Zero(UnreadTotal(conversations))
}

func TestAggregate_Groups_By_Counterparty(t *testing.T) {
	req := require.New(t)
	messages := []domain.Message{
		private("1", "bob", "alice", 1, false),
		private("2", "alice", "bob", 2, false),
		private("3", "bob", "alice", 3, false),
		private("4", "carol", "alice", 4, true),
		private("5", "carol", "dave", 5, false), // not involving alice
	}
	profiles := Profiles{"bob": {ID: "bob", DisplayName: "Bob", AvatarURL: "https://cdn/bob.png"}}

	conversations := Aggregate(messages, "alice", profiles)

	req.Len(conversations, 2)
	// carol spoke last
	req.Equal("carol", conversations[0].CounterpartyID)
	req.Equal("carol", conversations[0].DisplayName)
	req.Empty(conversations[0].AvatarURL)
	req.Zero(conversations[0].UnreadCount)

	req.Equal("bob", conversations[1].CounterpartyID)
	req.Equal("Bob", conversations[1].DisplayName)
	req.Equal("https://cdn/bob.png", conversations[1].AvatarURL)
	req.Equal("3", conversations[1].LatestMessage.ID)
	// alice's own message never counts
	req.Equal(2, conversations[1].UnreadCount)
	req.Equal(2, UnreadTotal(conversations))
}

func TestAggregate_Team_Chat_Is_One_Conversation_Without_Unread(t *testing.T) {
	req := require.New(t)
	messages := []domain.Message{
		team("1", "falcons", "bob", 1),
		team("2", "falcons", "carol", 2),
		team("3", "falcons", "alice", 3),
	}

	conversations := Aggregate(messages, "alice", Profiles{"team:falcons": {DisplayName: "Falcons"}})

	req.Len(conversations, 1)
	req.Equal(domain.TeamCounterparty("falcons"), conversations[0].CounterpartyID)
	req.Equal("Falcons", conversations[0].DisplayName)
	req.Equal(domain.ScopeTeam, conversations[0].Kind)
	req.Equal("3", conversations[0].LatestMessage.ID)
	req.Zero(conversations[0].UnreadCount)
}

func TestAggregate_Ties_Are_Broken_Deterministically(t *testing.T) {
	req := require.New(t)
	messages := []domain.Message{
		// same instant inside one conversation: the higher id wins
		private("a", "bob", "alice", 1, false),
		private("b", "bob", "alice", 1, false),
		// same instant across conversations: the higher latest id first
		private("c", "carol", "alice", 5, false),
		private("d", "dave", "alice", 5, false),
	}

	conversations := Aggregate(messages, "alice", nil)

	req.Equal([]string{"dave", "carol", "bob"}, lo.Map(conversations, func(c domain.Conversation, _ int) string {
		return c.CounterpartyID
	}))
	req.Equal("b", conversations[2].LatestMessage.ID)
}

func TestAggregate_Is_Independent_Of_Input_Order(t *testing.T) {
	req := require.New(t)
	messages := []domain.Message{
		private("1", "bob", "alice", 1, false),
		private("2", "alice", "bob", 2, true),
		private("3", "carol", "alice", 2, false),
		private("4", "dave", "alice", 3, true),
		private("5", "bob", "alice", 3, false),
		private("6", "erin", "alice", 3, false),
		private("7", "alice", "frank", 0, false),
	}
	expected := Aggregate(messages, "alice", nil)

	rng := rand.New(rand.NewPCG(1, 2))
	for range 50 {
		shuffled := append([]domain.Message(nil), messages...)
		rng.Shuffle(len(shuffled), func(i, j int) { shuffled[i], shuffled[j] = shuffled[j], shuffled[i] })

		req.Equal(expected, Aggregate(shuffled, "alice", nil))
	}
}

func TestAggregate_Latest_Follows_Sequential_Inserts(t *testing.T) {
	req := require.New(t)
	timeline := NewTimeline()

	for i := range 20 {
		msg := private(string(rune('a'+i)), "bob", "alice", i, false)
		timeline.Merge(msg)

		conversations := Aggregate(timeline.Messages(), "alice", nil)
		req.Len(conversations, 1)
		req.Equal(msg, conversations[0].LatestMessage)
	}
}

func TestAggregate_MarkRead_Never_Increases_Unread(t *testing.T) {
	req := require.New(t)
	timeline := NewTimeline(
		private("1", "bob", "alice", 1, false),
		private("2", "bob", "alice", 2, false),
		private("3", "alice", "bob", 3, false),
		private("4", "carol", "alice", 4, false),
	)
	before := Aggregate(timeline.Messages(), "alice", nil)

	timeline.MarkRead("bob", "alice")
	after := Aggregate(timeline.Messages(), "alice", nil)

	unread := func(conversations []domain.Conversation, id string) int {
		c, _ := lo.Find(conversations, func(c domain.Conversation) bool { return c.CounterpartyID == id })
		return c.UnreadCount
	}
	req.Equal(2, unread(before, "bob"))
	req.Zero(unread(after, "bob"))
	req.Equal(unread(before, "carol"), unread(after, "carol"))
	req.Equal(1, UnreadTotal(after))
}

func TestAggregate_Note_To_Self_Is_Never_Unread(t *testing.T) {
	req := require.New(t)
	// Given a note alice sent to herself and one message from bob
	messages := []domain.Message{
		private("1", "alice", "alice", 1, false),
		private("2", "bob", "alice", 2, false),
	}

	// When alice aggregates her inbox
	conversations := Aggregate(messages, "alice", nil)

	// Then only bob's message counts
	self, ok := lo.Find(conversations, func(c domain.Conversation) bool { return c.CounterpartyID == "alice" })
	req.True(ok)
	req.Zero(self.UnreadCount)
	req.Equal(1, UnreadTotal(conversations))
}

func TestThread_Filters_One_Counterparty(t *testing.T) {
	req := require.New(t)
	messages := []domain.Message{
		private("1", "bob", "alice", 1, false),
		private("2", "carol", "alice", 2, false),
		private("3", "alice", "bob", 3, false),
	}

	thread := Thread(messages, "alice", "bob")

	req.Equal([]domain.Message{messages[0], messages[2]}, thread)
	req.ElementsMatch([]string{"bob", "carol"}, Counterparties(messages, "alice"))
}
