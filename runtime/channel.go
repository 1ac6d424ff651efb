package runtime

import (
	"context"
	goerrors "errors"
	"fmt"
	"huddle/contract"
	"huddle/domain"
	"huddle/domain/event"
	"huddle/errors"
	"huddle/projection"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

// Ensure *Channel is both a supervised worker and the read side handed to observers.
var (
	_ contract.Worker           = (*Channel)(nil)
	_ contract.ScopeChannel     = (*Channel)(nil)
	_ contract.ProgressReporter = (*Channel)(nil)
	_ contract.Degradable       = (*Channel)(nil)
)

type ChannelConfig struct {
	FetchTimeout   time.Duration
	SinkTimeout    time.Duration
	FeedBufferSize int
}

type readMark struct {
	counterpartyID string
	readerID       string
	applied        chan struct{}
}

// Channel owns the live message set of one scope.
// Its Run loop is the only writer: feed pushes and read marks are applied in
// arrival order, and each change publishes a new immutable snapshot.
type Channel struct {
	scope  domain.Scope
	store  contract.MessageStore
	log    *slog.Logger
	config ChannelConfig
	after  <-chan struct{} // predecessor teardown for the same scope

	timeline *projection.Timeline // loop-owned
	snapshot atomic.Pointer[domain.Snapshot]
	version  uint64 // loop-owned

	reads chan readMark

	mu             sync.RWMutex
	state          domain.ScopeState
	sinks          map[string]contract.EventSink
	permanentSinks []contract.EventSink

	readyOnce    sync.Once
	ready        chan struct{}
	degradedOnce sync.Once
	degraded     chan struct{}
	closedOnce   sync.Once
	closed       chan struct{}
	progressed   atomic.Bool
}

func NewChannel(log *slog.Logger, scope domain.Scope, store contract.MessageStore,
	config ChannelConfig, after <-chan struct{}, permanentSinks ...contract.EventSink) *Channel {
	if config.FeedBufferSize <= 0 {
		config.FeedBufferSize = 64
	}
	c := &Channel{
		scope:          scope,
		store:          store,
		log:            log.With("scope", scope.Key()),
		config:         config,
		after:          after,
		timeline:       projection.NewTimeline(),
		reads:          make(chan readMark, config.FeedBufferSize),
		state:          domain.StateIdle,
		sinks:          make(map[string]contract.EventSink),
		permanentSinks: permanentSinks,
		ready:          make(chan struct{}),
		degraded:       make(chan struct{}),
		closed:         make(chan struct{}),
	}
	c.snapshot.Store(&domain.Snapshot{Scope: scope, Messages: nil, State: domain.StateIdle})
	return c
}

func (c *Channel) Scope() domain.Scope { return c.scope }

func (c *Channel) State() domain.ScopeState {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

// Snapshot is safe to call from any goroutine and never returns a partial merge.
func (c *Channel) Snapshot() domain.Snapshot {
	snap := *c.snapshot.Load()
	snap.State = c.State()
	return snap
}

func (c *Channel) WaitReady(ctx context.Context) error {
	select {
	case <-c.ready:
		return nil
	default:
	}
	select {
	case <-c.ready:
		return nil
	case <-c.degraded:
		return errors.ErrScopeUnavailable
	case <-ctx.Done():
		return fmt.Errorf("waiting for %s: %w", c.scope.Key(), ctx.Err())
	}
}

// MarkRead hands a read mark to the loop, where it is ordered with feed merges,
// and waits until it is applied. A mark sent before the channel is active is
// applied right after the baseline.
func (c *Channel) MarkRead(ctx context.Context, counterpartyID, readerID string) error {
	mark := readMark{counterpartyID: counterpartyID, readerID: readerID, applied: make(chan struct{})}
	select {
	case c.reads <- mark:
	case <-c.degraded:
		return errors.ErrScopeUnavailable
	case <-c.closed:
		return errors.ErrScopeUnavailable
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case <-mark.applied:
		return nil
	case <-c.degraded:
		return errors.ErrScopeUnavailable
	case <-c.closed:
		return errors.ErrScopeUnavailable
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *Channel) MadeProgress() bool {
	return c.progressed.Swap(false)
}

// Degrade is called by the supervisor once resubscription attempts are exhausted.
// The last snapshot remains readable.
func (c *Channel) Degrade(err error) {
	c.setState(domain.StateUnavailable, err)
	c.degradedOnce.Do(func() { close(c.degraded) })
}

// Run subscribes before fetching so that nothing inserted during the fetch is lost;
// pushes racing the fetch are resolved by the idempotent merge.
func (c *Channel) Run(ctx context.Context) error {
	if c.after != nil {
		select {
		case <-c.after:
		case <-ctx.Done():
			return nil
		}
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	c.setState(domain.StateSubscribing, nil)
	feed := make(chan domain.Message, c.config.FeedBufferSize)
	sub, err := c.store.Subscribe(runCtx, c.scope, func(m domain.Message) {
		select {
		case feed <- m:
		case <-runCtx.Done():
		}
	})
	if err != nil {
		return c.fail(ctx, errors.Subscription(err))
	}
	defer func() {
		// unblock a pending push before waiting for the feed to stop
		cancel()
		if err := sub.Close(); err != nil {
			c.log.Debug("Closing subscription failed", "error", err)
		}
	}()

	baseline, err := c.fetch(runCtx)
	if err != nil {
		return c.fail(ctx, err)
	}
	if changed := c.timeline.Reconcile(baseline); changed > 0 || c.version == 0 {
		c.publish()
	}

	c.setState(domain.StateActive, nil)
	c.progressed.Store(true)
	c.readyOnce.Do(func() { close(c.ready) })

	for {
		select {
		case <-ctx.Done():
			return nil
		case msg := <-feed:
			c.merge(msg)
		case mark := <-c.reads:
			c.applyRead(mark)
		case <-sub.Done():
			err := sub.Err()
			if err == nil {
				err = errors.ErrFeedClosed
			}
			return c.fail(ctx, errors.Subscription(err))
		}
	}
}

func (c *Channel) fetch(ctx context.Context) ([]domain.Message, error) {
	if c.config.FetchTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.config.FetchTimeout)
		defer cancel()
	}
	messages, err := c.store.FetchMessages(ctx, c.scope)
	if err != nil {
		if goerrors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w: %w", errors.ErrFetchTimeout, err)
		}
		return nil, errors.Subscription(err)
	}
	return messages, nil
}

func (c *Channel) fail(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		return nil
	}
	c.setState(domain.StateError, err)
	return err
}

func (c *Channel) merge(msg domain.Message) {
	if !c.scope.Contains(msg) {
		c.log.Debug("Ignoring message outside scope", "id", msg.ID)
		return
	}
	switch c.timeline.Merge(msg) {
	case projection.Duplicate:
		c.fanout(event.DuplicateIgnored{Scope: c.scope, MessageID: msg.ID})
	case projection.Added, projection.ReadUpdated:
		c.publish()
		c.fanout(event.MessageMerged{Scope: c.scope, Message: msg, Version: c.version})
	}
}

func (c *Channel) applyRead(mark readMark) {
	defer close(mark.applied)
	count := c.timeline.MarkRead(mark.counterpartyID, mark.readerID)
	if count == 0 {
		return
	}
	c.publish()
	c.fanout(event.MessagesRead{
		Scope:          c.scope,
		CounterpartyID: mark.counterpartyID,
		ReaderID:       mark.readerID,
		Count:          count,
		Version:        c.version,
	})
}

func (c *Channel) publish() {
	c.version++
	c.snapshot.Store(&domain.Snapshot{
		Scope:    c.scope,
		Messages: c.timeline.Messages(),
		Version:  c.version,
	})
}

// close marks the channel as torn down once its supervision ended.
func (c *Channel) close() {
	c.setState(domain.StateClosed, nil)
	c.closedOnce.Do(func() { close(c.closed) })
}

func (c *Channel) setState(to domain.ScopeState, err error) {
	c.mu.Lock()
	from := c.state
	if from == to || (from == domain.StateUnavailable && to == domain.StateError) {
		c.mu.Unlock()
		return
	}
	c.state = to
	c.mu.Unlock()

	if err != nil {
		c.log.Warn("Scope state changed", "from", from, "to", to, "error", err)
	} else {
		c.log.Debug("Scope state changed", "from", from, "to", to)
	}
	c.fanout(event.ScopeStateChanged{Scope: c.scope, From: from, To: to, Err: err})
}

func (c *Channel) addSink(observerID string, sink contract.EventSink) {
	if sink == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sinks[observerID] = sink
}

func (c *Channel) removeSink(observerID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.sinks, observerID)
}

// fanout delivers best effort. Sinks are expected not to block; a slow one is cut
// by the sink timeout and the event is lost for it only.
func (c *Channel) fanout(e event.DomainEvent) {
	c.mu.RLock()
	sinks := make([]contract.EventSink, 0, len(c.sinks)+len(c.permanentSinks))
	for _, sink := range c.sinks {
		sinks = append(sinks, sink)
	}
	sinks = append(sinks, c.permanentSinks...)
	c.mu.RUnlock()

	for _, sink := range sinks {
		ctx, cancel := c.sinkContext()
		if err := sink.Consume(ctx, e); err != nil {
			c.log.Debug("Sink failed to consume event", "error", err)
		}
		cancel()
	}
}

func (c *Channel) sinkContext() (context.Context, context.CancelFunc) {
	if c.config.SinkTimeout > 0 {
		return context.WithTimeout(context.Background(), c.config.SinkTimeout)
	}
	return context.WithCancel(context.Background())
}
