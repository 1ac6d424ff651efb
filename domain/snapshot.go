package domain

type ScopeState string

const (
	StateIdle        ScopeState = "idle"
	StateSubscribing ScopeState = "subscribing"
	StateActive      ScopeState = "active"
	StateError       ScopeState = "error"
	StateClosed      ScopeState = "closed"
	// StateUnavailable is reached once resubscription attempts are exhausted.
	// The last snapshot stays readable.
	StateUnavailable ScopeState = "unavailable"
)

// Snapshot is an immutable view of a scope's message set.
// Messages must never be modified by readers.
type Snapshot struct {
	Scope    Scope
	Messages []Message
	Version  uint64
	State    ScopeState
}
