package repositories

import (
	"context"
	goerrors "errors"
	"huddle/errors"
	"sync"
)

// FeedSubscription is the handle of a change feed pumped by one goroutine.
// The goroutine calls Finish with its exit error; Close cancels it and waits.
type FeedSubscription struct {
	cancel context.CancelFunc
	done   chan struct{}

	mu     sync.Mutex
	closed bool
	err    error
}

func NewFeedSubscription(cancel context.CancelFunc) *FeedSubscription {
	return &FeedSubscription{cancel: cancel, done: make(chan struct{})}
}

// Finish must be called exactly once, when the pump returns.
// A feed that stops without being closed always reports an error.
func (s *FeedSubscription) Finish(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	defer close(s.done)
	if s.closed {
		return
	}
	if err == nil || goerrors.Is(err, context.Canceled) {
		err = errors.ErrFeedClosed
	}
	s.err = err
}

func (s *FeedSubscription) Close() error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	s.cancel()
	<-s.done
	return nil
}

func (s *FeedSubscription) Done() <-chan struct{} { return s.done }

func (s *FeedSubscription) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}
