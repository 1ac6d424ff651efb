package repositories

import (
	"huddle/contract"
	"huddle/domain"
	"huddle/errors"
	"log/slog"
	"sync"

	"github.com/google/uuid"
)

// Broker is an in-process change feed for stores whose database has none.
// The store publishes each committed row; every subscription whose scope contains it is called.
type Broker struct {
	mu   sync.RWMutex
	log  *slog.Logger
	subs map[string]*brokerSubscription
}

func NewBroker(log *slog.Logger) *Broker {
	return &Broker{log: log, subs: make(map[string]*brokerSubscription)}
}

// Publish delivers synchronously, in the caller's commit order.
func (b *Broker) Publish(messages ...domain.Message) {
	b.mu.RLock()
	subs := make([]*brokerSubscription, 0, len(b.subs))
	for _, sub := range b.subs {
		subs = append(subs, sub)
	}
	b.mu.RUnlock()

	for _, message := range messages {
		for _, sub := range subs {
			if sub.scope.Contains(message) {
				sub.deliver(message)
			}
		}
	}
}

func (b *Broker) Subscribe(scope domain.Scope, onInsert func(domain.Message)) contract.Subscription {
	sub := &brokerSubscription{
		id:       uuid.NewString(),
		scope:    scope,
		onInsert: onInsert,
		done:     make(chan struct{}),
		broker:   b,
	}
	b.mu.Lock()
	b.subs[sub.id] = sub
	b.mu.Unlock()
	b.log.Debug("Broker subscription opened", "scope", scope.Key(), "id", sub.id)
	return sub
}

// Shutdown ends every subscription with ErrFeedClosed, as a dropped connection would.
func (b *Broker) Shutdown() {
	b.mu.Lock()
	subs := b.subs
	b.subs = make(map[string]*brokerSubscription)
	b.mu.Unlock()
	for _, sub := range subs {
		sub.stop(errors.ErrFeedClosed)
	}
}

func (b *Broker) remove(id string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.subs, id)
}

type brokerSubscription struct {
	id       string
	scope    domain.Scope
	onInsert func(domain.Message)
	broker   *Broker

	mu     sync.Mutex
	done   chan struct{}
	closed bool
	err    error
}

func (s *brokerSubscription) deliver(message domain.Message) {
	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()
	if !closed {
		s.onInsert(message)
	}
}

func (s *brokerSubscription) stop(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	s.err = err
	close(s.done)
}

func (s *brokerSubscription) Close() error {
	s.broker.remove(s.id)
	s.stop(nil)
	return nil
}

func (s *brokerSubscription) Done() <-chan struct{} { return s.done }

func (s *brokerSubscription) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}
