package runtime

import (
	"context"
	"huddle/contract"
	"huddle/domain"
	"log/slog"
	"sync"
)

type Set map[string]struct{}

var _ contract.IRegistry = (*Registry)(nil)

type entry struct {
	channel   *Channel
	observers Set
	cancel    context.CancelFunc
	done      <-chan struct{} // supervision of this channel ended
	after     <-chan struct{} // teardown of the predecessor
	teardown  chan struct{}   // closed once this channel and every predecessor are gone
}

// Registry shares one Channel per scope between every observer of that scope.
// The channel is created on first interest and torn down on last release;
// there is never more than one live subscription per scope.
type Registry struct {
	mu             sync.Mutex
	log            *slog.Logger
	ctx            context.Context
	cancel         context.CancelFunc
	supervisor     contract.ISupervisor
	store          contract.MessageStore
	config         ChannelConfig
	permanentSinks []contract.EventSink
	channels       map[string]*entry          // scope key -> live channel
	dying          map[string]<-chan struct{} // scope key -> teardown in progress
}

func NewRegistry(log *slog.Logger, supervisor contract.ISupervisor,
	store contract.MessageStore, config ChannelConfig) *Registry {
	ctx, cancel := context.WithCancel(context.Background())
	return &Registry{
		log:        log,
		ctx:        ctx,
		cancel:     cancel,
		supervisor: supervisor,
		store:      store,
		config:     config,
		channels:   make(map[string]*entry),
		dying:      make(map[string]<-chan struct{}),
	}
}

// Add registers sinks receiving the events of every channel created afterwards.
func (r *Registry) Add(sinks ...contract.EventSink) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.permanentSinks = append(r.permanentSinks, sinks...)
}

// Subscribe registers an observer's interest in a scope.
// The first observer creates and starts the channel; later ones attach to it.
// Subscribing twice with the same observer id is a no-op apart from the sink update.
func (r *Registry) Subscribe(observerID string, scope domain.Scope, sink contract.EventSink) contract.ScopeChannel {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := scope.Key()
	e, ok := r.channels[key]
	if !ok {
		ctx, cancel := context.WithCancel(r.ctx)
		after := r.dying[key]
		channel := NewChannel(r.log, scope, r.store, r.config, after, r.permanentSinks...)
		e = &entry{channel: channel, observers: make(Set), cancel: cancel, after: after, teardown: make(chan struct{})}
		r.channels[key] = e
		e.done = r.supervisor.Start(ctx, channel)
		r.log.Debug("Scope channel created", "scope", key)
	}
	e.observers[observerID] = struct{}{}
	e.channel.addSink(observerID, sink)
	return e.channel
}

// Unsubscribe removes an observer. The last one tears the channel down before
// returning, so a following Subscribe always starts a fresh channel.
func (r *Registry) Unsubscribe(observerID string, scope domain.Scope) {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := scope.Key()
	e, ok := r.channels[key]
	if !ok {
		return
	}
	delete(e.observers, observerID)
	e.channel.removeSink(observerID)
	if len(e.observers) > 0 {
		return
	}

	delete(r.channels, key)
	e.cancel()
	r.dying[key] = e.teardown
	go r.reap(key, e)
	r.log.Debug("Scope channel released", "scope", key)
}

// reap releases a channel. A channel cancelled before it subscribed ends at once,
// so its teardown also waits for the predecessor it was queued behind.
func (r *Registry) reap(key string, e *entry) {
	<-e.done
	if e.after != nil {
		<-e.after
	}
	e.channel.close()
	close(e.teardown)
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.dying[key] == e.teardown {
		delete(r.dying, key)
	}
}

func (r *Registry) Lookup(scope domain.Scope) (contract.ScopeChannel, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.channels[scope.Key()]
	if !ok {
		return nil, false
	}
	return e.channel, true
}

// Observers returns how many observers hold a scope.
func (r *Registry) Observers(scope domain.Scope) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := r.channels[scope.Key()]; ok {
		return len(e.observers)
	}
	return 0
}

// ActiveScopes returns the number of live channels.
func (r *Registry) ActiveScopes() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.channels)
}

// Stop cancels every channel and waits for their subscriptions to be closed.
func (r *Registry) Stop() {
	r.mu.Lock()
	r.cancel()
	var pending []<-chan struct{}
	for key, e := range r.channels {
		pending = append(pending, e.teardown)
		delete(r.channels, key)
		go r.reap(key, e)
	}
	for _, done := range r.dying {
		pending = append(pending, done)
	}
	r.mu.Unlock()

	for _, done := range pending {
		<-done
	}
}
