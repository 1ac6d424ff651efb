//go:generate go run go.uber.org/mock/mockgen -source=contract.go -destination=../mocks/mock_contract.go -package=mocks
package contract

import (
	"context"
	"huddle/domain"
	"huddle/domain/event"
	"reflect"
)

// MessageStore is the authoritative persistence boundary.
// FetchMessages returns a scope's messages sorted by CreatedAt then ID.
// Subscribe delivers inserts matching scope.Contains until the subscription is closed
// or fails; a store may also deliver rows whose read flag changed.
type MessageStore interface {
	FetchMessages(ctx context.Context, scope domain.Scope) ([]domain.Message, error)
	InsertMessage(ctx context.Context, draft domain.Draft) (domain.Message, error)
	MarkRead(ctx context.Context, scope domain.Scope, counterpartyID, selfID string) error
	Subscribe(ctx context.Context, scope domain.Scope, onInsert func(domain.Message)) (Subscription, error)
}

type Subscription interface {
	Close() error
	// Done is closed once the feed stops delivering, after Close or on failure.
	Done() <-chan struct{}
	// Err is nil after a clean Close.
	Err() error
}

// ProfileDirectory resolves display names and avatars. Unknown ids are omitted.
type ProfileDirectory interface {
	Profiles(ctx context.Context, ids []string) (map[string]domain.Profile, error)
}

type EventSink interface {
	Consume(ctx context.Context, e event.DomainEvent) error
}

// ScopeChannel is the read side of a scope's live message set.
type ScopeChannel interface {
	Scope() domain.Scope
	State() domain.ScopeState
	Snapshot() domain.Snapshot
	// WaitReady blocks until the channel reached Active once, or gave up.
	WaitReady(ctx context.Context) error
	// MarkRead returns once the mark is applied to the live set, so the next
	// snapshot reflects it.
	MarkRead(ctx context.Context, counterpartyID, readerID string) error
}

type IRegistry interface {
	Subscribe(observerID string, scope domain.Scope, sink EventSink) ScopeChannel
	Unsubscribe(observerID string, scope domain.Scope)
	Lookup(scope domain.Scope) (ScopeChannel, bool)
}

type ISupervisor interface {
	Add(worker ...Worker) ISupervisor
	Run(ctx context.Context)
	Start(ctx context.Context, worker Worker) <-chan struct{}
	Stop()
}

type WorkerName string

// Worker doesn't protect itself
// Can be silly, focused
type Worker interface {
	Run(ctx context.Context) error
}

// ProgressReporter lets the supervisor clear a failure streak when a run got somewhere.
type ProgressReporter interface {
	MadeProgress() bool
}

// Degradable is told when the supervisor stops restarting it.
type Degradable interface {
	Degrade(err error)
}

// GetWorkerName uses reflection to retrieve the type name of the worker.
// This is used for logging and supervision purposes during worker initialization
// or lifecycle events, avoiding the need for manual naming in the Worker interface.
func GetWorkerName(w Worker) string {
	if w == nil {
		return "NilWorker"
	}
	t := reflect.TypeOf(w)
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	return t.Name()
}
