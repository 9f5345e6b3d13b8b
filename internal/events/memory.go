package events

import (
	"context"
	"sync"
)

// MemoryPublisher records outcomes in memory. It is used in local
// development and tests where no broker is available.
type MemoryPublisher struct {
	mu       sync.Mutex
	outcomes []Outcome
	closed   bool
}

// NewMemoryPublisher constructs an empty in-memory publisher.
func NewMemoryPublisher() *MemoryPublisher {
	return &MemoryPublisher{}
}

// Publish appends the outcome to the in-memory log.
func (m *MemoryPublisher) Publish(ctx context.Context, outcome Outcome) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}
	m.outcomes = append(m.outcomes, outcome)
	return nil
}

// Outcomes returns a copy of everything published so far.
func (m *MemoryPublisher) Outcomes() []Outcome {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Outcome, len(m.outcomes))
	copy(out, m.outcomes)
	return out
}

// Close marks the publisher closed; further publishes fail.
func (m *MemoryPublisher) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}
