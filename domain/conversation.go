package domain

// Conversation is a derived summary of the activity between the caller and one counterparty.
// It is recomputed from the message set and never persisted.
type Conversation struct {
	CounterpartyID string
	Kind           ScopeKind
	DisplayName    string
	AvatarURL      string
	LatestMessage  Message
	UnreadCount    int
}

// Profile carries what a surface displays for a counterparty, a user or a team.
type Profile struct {
	ID          string
	DisplayName string
	AvatarURL   string
}
