// Package projection builds local timelines and conversation summaries from observed messages.
// Handles ordering, deduplication, and projections.
// Does not emit events or interact with UI directly.
package projection

import (
	"context"
	"huddle/domain"
	"huddle/domain/event"
	"sort"
)

type MergeResult int

const (
	// Added means the message was new.
	Added MergeResult = iota + 1
	// ReadUpdated means the id was known and its read flag moved from false to true.
	ReadUpdated
	// Duplicate means nothing changed.
	Duplicate
)

// Timeline holds an ordered, deduplicated message set.
// Every mutation builds a new backing slice, so a slice returned by Messages
// is never modified afterwards and can be handed out as a snapshot.
type Timeline struct {
	messages []domain.Message
	index    map[string]int
}

func NewTimeline(messages ...domain.Message) *Timeline {
	t := &Timeline{index: make(map[string]int)}
	for _, m := range messages {
		t.Merge(m)
	}
	return t
}

func (t *Timeline) Messages() []domain.Message { return t.messages }

func (t *Timeline) Len() int { return len(t.messages) }

// Merge is append-if-absent keyed by id.
// A new message older than the tail is inserted at its CreatedAt position; the
// relative order of already delivered messages never changes.
func (t *Timeline) Merge(msg domain.Message) MergeResult {
	if pos, ok := t.index[msg.ID]; ok {
		current := t.messages[pos]
		if msg.Kind == domain.ScopePrivate && msg.IsRead && !current.IsRead {
			t.replace(pos, func(m *domain.Message) { m.IsRead = true })
			return ReadUpdated
		}
		return Duplicate
	}

	n := len(t.messages)
	if n == 0 || !msg.Before(t.messages[n-1]) {
		next := make([]domain.Message, n, n+1)
		copy(next, t.messages)
		t.messages = append(next, msg)
		t.index[msg.ID] = n
		return Added
	}

	pos := sort.Search(n, func(i int) bool { return msg.Before(t.messages[i]) })
	next := make([]domain.Message, 0, n+1)
	next = append(next, t.messages[:pos]...)
	next = append(next, msg)
	next = append(next, t.messages[pos:]...)
	t.messages = next
	for i := pos; i < len(next); i++ {
		t.index[next[i].ID] = i
	}
	return Added
}

// Reconcile merges a refetched batch and returns how many entries changed.
func (t *Timeline) Reconcile(batch []domain.Message) int {
	changed := 0
	for _, m := range batch {
		if t.Merge(m) != Duplicate {
			changed++
		}
	}
	return changed
}

// MarkRead flags as read every private message sent by counterpartyID to readerID.
func (t *Timeline) MarkRead(counterpartyID, readerID string) int {
	var positions []int
	for i, m := range t.messages {
		if m.UnreadFor(readerID) && m.SenderID == counterpartyID {
			positions = append(positions, i)
		}
	}
	if len(positions) == 0 {
		return 0
	}
	next := make([]domain.Message, len(t.messages))
	copy(next, t.messages)
	for _, i := range positions {
		next[i].IsRead = true
	}
	t.messages = next
	return len(positions)
}

func (t *Timeline) replace(pos int, fn func(m *domain.Message)) {
	next := make([]domain.Message, len(t.messages))
	copy(next, t.messages)
	fn(&next[pos])
	t.messages = next
}

// Consume lets a Timeline mirror a scope channel as an event sink.
func (t *Timeline) Consume(_ context.Context, e event.DomainEvent) error {
	switch evt := e.(type) {
	case event.MessageMerged:
		t.Merge(evt.Message)
	case event.MessagesRead:
		t.MarkRead(evt.CounterpartyID, evt.ReaderID)
	}
	return nil
}
