package stubs

import (
	"context"
	"sort"
	"sync"

	"bookledger/internal/audit"
)

// MockSink is an in-memory implementation of the audit.Sink interface for testing
// and for running without ClickHouse
type MockSink struct {
	mu     sync.RWMutex
	events []audit.Event
	closed bool
}

// NewMockSink creates a new mock sink
func NewMockSink() *MockSink {
	return &MockSink{
		events: make([]audit.Event, 0),
	}
}

// Initialize does nothing for the mock sink
func (m *MockSink) Initialize(ctx context.Context) error {
	return nil
}

// Write appends events in arrival order
func (m *MockSink) Write(ctx context.Context, events []audit.Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.events = append(m.events, events...)
	return nil
}

// Events returns every stored event in arrival order
func (m *MockSink) Events() []audit.Event {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]audit.Event, len(m.events))
	copy(out, m.events)
	return out
}

// LastEvents returns the last N events, newest first
func (m *MockSink) LastEvents(ctx context.Context, limit int) ([]audit.Event, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	sorted := make([]audit.Event, len(m.events))
	copy(sorted, m.events)
	// Stable so events sharing a timestamp keep arrival order before reversal
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].OccurredAt.Before(sorted[j].OccurredAt)
	})
	for i, j := 0, len(sorted)-1; i < j; i, j = i+1, j-1 {
		sorted[i], sorted[j] = sorted[j], sorted[i]
	}

	limit = max(0, min(limit, len(sorted)))
	return sorted[:limit], nil
}

// Close marks the sink closed
func (m *MockSink) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.closed = true
	return nil
}

// Closed reports whether Close was called
func (m *MockSink) Closed() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.closed
}
