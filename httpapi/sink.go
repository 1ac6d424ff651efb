package httpapi

import (
	"context"
	"huddle/contract"
	"huddle/domain/event"
	"sync/atomic"
)

var _ contract.EventSink = (*Sink)(nil)

// Sink buffers the events of the scopes a connection watches.
// The connection recomputes its payload from the latest snapshot on every event,
// so an event dropped while the buffer is full is covered by the ones still queued.
type Sink struct {
	Events  chan event.DomainEvent
	dropped atomic.Uint64
}

func NewSink(bufferSize int) *Sink {
	return &Sink{Events: make(chan event.DomainEvent, bufferSize)}
}

// Consume is called by the channel fanout and never blocks it.
func (s *Sink) Consume(ctx context.Context, e event.DomainEvent) error {
	select {
	case s.Events <- e:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	default:
		s.dropped.Add(1)
		return nil
	}
}

func (s *Sink) Dropped() uint64 { return s.dropped.Load() }
