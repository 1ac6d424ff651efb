// Package domain contains core concepts of the chat system.
// This file defines Message records and the ordering rules shared by every observer.
// Messages are immutable once stored, except for the read flag of private messages.
package domain

import (
	"strings"
	"time"
)

type MessageType string

const (
	TextMessage         MessageType = "text"
	AnnouncementMessage MessageType = "announcement"
	ImageMessage        MessageType = "image"
	SystemMessage       MessageType = "system"
)

// MessageTypes lists every accepted tag, used by request validation.
var MessageTypes = []MessageType{TextMessage, AnnouncementMessage, ImageMessage, SystemMessage}

// Message represents a stored chat record, either team-scoped or private.
type Message struct {
	ID         string // assigned by the store
	Kind       ScopeKind
	TeamID     string // routing key for team messages, provenance only for private ones
	SenderID   string
	ReceiverID string // empty for team messages
	Content    string
	Type       MessageType
	MediaURL   string
	IsRead     bool
	CreatedAt  time.Time
}

// Before reports whether m sorts before other: CreatedAt first, then ID.
func (m Message) Before(other Message) bool {
	if !m.CreatedAt.Equal(other.CreatedAt) {
		return m.CreatedAt.Before(other.CreatedAt)
	}
	return m.ID < other.ID
}

// After is the strict inverse of Before for distinct messages.
func (m Message) After(other Message) bool {
	return other.Before(m)
}

// Involves reports whether userID takes part in the message.
// Team membership is handled outside the engine, so team messages always involve the caller.
func (m Message) Involves(userID string) bool {
	if m.Kind == ScopeTeam {
		return true
	}
	return m.SenderID == userID || m.ReceiverID == userID
}

// CounterpartyOf returns the conversation key of the message as seen by selfID.
func (m Message) CounterpartyOf(selfID string) string {
	if m.Kind == ScopeTeam {
		return TeamCounterparty(m.TeamID)
	}
	if m.SenderID == selfID {
		return m.ReceiverID
	}
	return m.SenderID
}

// UnreadFor is true only for private messages addressed to readerID and not yet read.
// A note sent to oneself is never unread.
func (m Message) UnreadFor(readerID string) bool {
	return m.Kind == ScopePrivate && !m.IsRead && m.ReceiverID == readerID && m.SenderID != readerID
}

const teamCounterpartyPrefix = "team:"

// TeamCounterparty is the synthetic counterparty of a team conversation.
func TeamCounterparty(teamID string) string {
	return teamCounterpartyPrefix + teamID
}

// ParseTeamCounterparty extracts the team id from a synthetic counterparty.
func ParseTeamCounterparty(counterpartyID string) (string, bool) {
	teamID, ok := strings.CutPrefix(counterpartyID, teamCounterpartyPrefix)
	if !ok || teamID == "" {
		return "", false
	}
	return teamID, true
}

// Draft is an outgoing message before the store assigns its identity.
type Draft struct {
	Scope    Scope
	SenderID string
	Content  string
	Type     MessageType
	MediaURL string
	TeamID   string // provenance of a private conversation, optional
}

// Materialize builds the canonical record once the store has chosen an id and a timestamp.
func (d Draft) Materialize(id string, at time.Time) Message {
	msg := Message{
		ID:        id,
		SenderID:  d.SenderID,
		Content:   d.Content,
		Type:      d.Type,
		MediaURL:  d.MediaURL,
		CreatedAt: at,
	}
	if msg.Type == "" {
		msg.Type = TextMessage
	}
	switch d.Scope.Kind {
	case ScopeTeam:
		msg.Kind = ScopeTeam
		msg.TeamID = d.Scope.TeamID
	default:
		msg.Kind = ScopePrivate
		msg.TeamID = d.TeamID
		msg.ReceiverID = d.Scope.Peer(d.SenderID)
	}
	return msg
}
