package domain

import (
	"fmt"
	"strings"
)

type ScopeKind int

const (
	ScopeTeam ScopeKind = iota + 1
	ScopePrivate
	ScopeInbox
)

func (k ScopeKind) String() string {
	switch k {
	case ScopeTeam:
		return "team"
	case ScopePrivate:
		return "private"
	case ScopeInbox:
		return "inbox"
	default:
		return "unknown"
	}
}

// Scope partitions messages.
// A team scope holds one team's chat, a private scope one pair of users,
// and an inbox scope every private message a user sent or received.
type Scope struct {
	Kind   ScopeKind
	TeamID string
	UserID string
	PeerID string
}

func TeamScope(teamID string) Scope {
	return Scope{Kind: ScopeTeam, TeamID: teamID}
}

// PrivateScope is unordered: PrivateScope(a, b) == PrivateScope(b, a).
func PrivateScope(a, b string) Scope {
	if b < a {
		a, b = b, a
	}
	return Scope{Kind: ScopePrivate, UserID: a, PeerID: b}
}

func InboxScope(userID string) Scope {
	return Scope{Kind: ScopeInbox, UserID: userID}
}

// Key identifies the scope in registries, stores and health reports.
func (s Scope) Key() string {
	switch s.Kind {
	case ScopeTeam:
		return fmt.Sprintf("team:%s", s.TeamID)
	case ScopePrivate:
		return fmt.Sprintf("pair:%s:%s", s.UserID, s.PeerID)
	case ScopeInbox:
		return fmt.Sprintf("inbox:%s", s.UserID)
	default:
		return "invalid"
	}
}

func (s Scope) String() string { return s.Key() }

// Valid reports whether the scope carries the identity its kind needs.
func (s Scope) Valid() bool {
	switch s.Kind {
	case ScopeTeam:
		return s.TeamID != ""
	case ScopePrivate:
		return s.UserID != "" && s.PeerID != ""
	case ScopeInbox:
		return s.UserID != ""
	default:
		return false
	}
}

// HasMember reports whether userID is one of the two users of a private scope.
func (s Scope) HasMember(userID string) bool {
	return s.Kind == ScopePrivate && (s.UserID == userID || s.PeerID == userID)
}

// Peer returns the other member of a private scope.
func (s Scope) Peer(userID string) string {
	if s.UserID == userID {
		return s.PeerID
	}
	return s.UserID
}

// Contains is the subscription filter shared by every store implementation.
func (s Scope) Contains(m Message) bool {
	switch s.Kind {
	case ScopeTeam:
		return m.Kind == ScopeTeam && m.TeamID == s.TeamID
	case ScopePrivate:
		return m.Kind == ScopePrivate &&
			PrivateScope(m.SenderID, m.ReceiverID) == s
	case ScopeInbox:
		return m.Kind == ScopePrivate &&
			(m.SenderID == s.UserID || m.ReceiverID == s.UserID)
	default:
		return false
	}
}

// ParseScope is the inverse of Key. User ids containing ':' cannot be told apart
// inside a pair key and are rejected.
func ParseScope(key string) (Scope, bool) {
	kind, rest, ok := strings.Cut(key, ":")
	if !ok || rest == "" {
		return Scope{}, false
	}
	var scope Scope
	switch kind {
	case "team":
		scope = TeamScope(rest)
	case "inbox":
		scope = InboxScope(rest)
	case "pair":
		a, b, ok := strings.Cut(rest, ":")
		if !ok || strings.Contains(b, ":") {
			return Scope{}, false
		}
		scope = PrivateScope(a, b)
	default:
		return Scope{}, false
	}
	return scope, scope.Valid()
}
