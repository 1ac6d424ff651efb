package observability

import (
	"context"
	"huddle/contract"
	"huddle/domain"
	"huddle/domain/event"
	"log/slog"
	"runtime"
	"sync"
	"sync/atomic"
	"time"
)

var _ contract.EventSink = (*MonitoringManager)(nil)

// RecentTransition is one scope state change kept for the stats endpoint.
type RecentTransition struct {
	Scope     string `json:"scope"`
	From      string `json:"from"`
	To        string `json:"to"`
	Error     string `json:"error,omitempty"`
	Timestamp string `json:"timestamp"`
}

// MonitoringStats aggregates the engine counters.
type MonitoringStats struct {
	MessagesMerged    uint64 `json:"messages_merged"`
	DuplicatesIgnored uint64 `json:"duplicates_ignored"`
	MessagesRead      uint64 `json:"messages_read"`
	ActiveScopes      int64  `json:"active_scopes"`
	Resubscriptions   uint64 `json:"resubscriptions"`
	DegradedScopes    uint64 `json:"degraded_scopes"`

	AllocMemMb        uint64             `json:"alloc_mem_mb"`
	NumGC             uint32             `json:"num_gc"`
	Goroutines        int                `json:"goroutines"`
	RecentTransitions []RecentTransition `json:"recent_transitions"`
}

const maxRecentTransitions = 20

// MonitoringManager is a permanent sink of every scope channel.
type MonitoringManager struct {
	log *slog.Logger

	merged          atomic.Uint64
	duplicates      atomic.Uint64
	read            atomic.Uint64
	activeScopes    atomic.Int64
	resubscriptions atomic.Uint64
	degraded        atomic.Uint64

	mu          sync.RWMutex
	transitions []RecentTransition
}

func NewMonitoringManager(log *slog.Logger) *MonitoringManager {
	return &MonitoringManager{
		log:         log,
		transitions: make([]RecentTransition, 0),
	}
}

func (mm *MonitoringManager) Consume(_ context.Context, e event.DomainEvent) error {
	switch evt := e.(type) {
	case event.MessageMerged:
		mm.merged.Add(1)
	case event.DuplicateIgnored:
		mm.duplicates.Add(1)
	case event.MessagesRead:
		mm.read.Add(uint64(evt.Count))
	case event.ScopeStateChanged:
		mm.recordTransition(evt)
	}
	return nil
}

func (mm *MonitoringManager) recordTransition(evt event.ScopeStateChanged) {
	switch {
	case evt.To == domain.StateActive:
		mm.activeScopes.Add(1)
	case evt.From == domain.StateActive:
		mm.activeScopes.Add(-1)
	}
	// a channel back to Subscribing after a failure is a restart by the supervisor
	if evt.To == domain.StateSubscribing && evt.From == domain.StateError {
		mm.resubscriptions.Add(1)
	}
	if evt.To == domain.StateUnavailable {
		mm.degraded.Add(1)
	}

	transition := RecentTransition{
		Scope:     evt.Scope.Key(),
		From:      string(evt.From),
		To:        string(evt.To),
		Timestamp: time.Now().Format("15:04:05"),
	}
	if evt.Err != nil {
		transition.Error = evt.Err.Error()
	}

	mm.mu.Lock()
	defer mm.mu.Unlock()
	mm.transitions = append([]RecentTransition{transition}, mm.transitions...)
	if len(mm.transitions) > maxRecentTransitions {
		mm.transitions = mm.transitions[:maxRecentTransitions]
	}
}

func (mm *MonitoringManager) GetLatest() MonitoringStats {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	mm.mu.RLock()
	transitions := append([]RecentTransition(nil), mm.transitions...)
	mm.mu.RUnlock()

	return MonitoringStats{
		MessagesMerged:    mm.merged.Load(),
		DuplicatesIgnored: mm.duplicates.Load(),
		MessagesRead:      mm.read.Load(),
		ActiveScopes:      mm.activeScopes.Load(),
		Resubscriptions:   mm.resubscriptions.Load(),
		DegradedScopes:    mm.degraded.Load(),
		AllocMemMb:        m.Alloc / 1024 / 1024,
		NumGC:             m.NumGC,
		Goroutines:        runtime.NumGoroutine(),
		RecentTransitions: transitions,
	}
}
