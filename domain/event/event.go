package event

import (
	"huddle/domain"
)

// DomainEvent is emitted by a scope channel after its state or message set changed.
type DomainEvent interface {
	ScopeKey() string
}

// MessageMerged is emitted once per message that entered a scope's set.
type MessageMerged struct {
	Scope   domain.Scope
	Message domain.Message
	Version uint64
}

func (e MessageMerged) ScopeKey() string { return e.Scope.Key() }

// MessagesRead is emitted when private messages of a scope flipped to read.
type MessagesRead struct {
	Scope          domain.Scope
	CounterpartyID string
	ReaderID       string
	Count          int
	Version        uint64
}

func (e MessagesRead) ScopeKey() string { return e.Scope.Key() }

// DuplicateIgnored records a push for an id already present.
// It never reaches users; it feeds telemetry only.
type DuplicateIgnored struct {
	Scope     domain.Scope
	MessageID string
}

func (e DuplicateIgnored) ScopeKey() string { return e.Scope.Key() }

// ScopeStateChanged is emitted on every channel state transition.
type ScopeStateChanged struct {
	Scope domain.Scope
	From  domain.ScopeState
	To    domain.ScopeState
	Err   error
}

func (e ScopeStateChanged) ScopeKey() string { return e.Scope.Key() }
