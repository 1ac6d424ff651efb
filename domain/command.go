package domain

type SendMessageCommand struct {
	Scope    Scope
	SenderID string
	Content  string
	Type     MessageType
	MediaURL string
	TeamID   string
}

type OpenConversationCommand struct {
	ObserverID     string
	SelfID         string
	CounterpartyID string
}

type CloseConversationCommand struct {
	ObserverID     string
	SelfID         string
	CounterpartyID string
}

// ScopeFor resolves the scope observed for a conversation: the team scope for a
// team counterparty, the caller's inbox otherwise.
func ScopeFor(selfID, counterpartyID string) Scope {
	if teamID, ok := ParseTeamCounterparty(counterpartyID); ok {
		return TeamScope(teamID)
	}
	return InboxScope(selfID)
}
