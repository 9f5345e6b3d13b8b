// Package events defines the outcome-event publisher interface. The
// abstraction keeps the extraction engine independent of a specific
// broker; downstream consumers (indexing, analytics) subscribe to the
// configured topic.
package events

import (
	"context"
	"errors"
	"time"
)

// ErrClosed is returned when publishing after Close.
var ErrClosed = errors.New("events: publisher closed")

// Event kinds.
const (
	KindScrape = "scrape"
	KindReader = "reader"
)

// Outcome describes one completed extraction request.
type Outcome struct {
	URL        string    `json:"url"`
	Kind       string    `json:"kind"`
	Status     string    `json:"status"`
	DurationMs int64     `json:"durationMs"`
	At         time.Time `json:"at"`
}

// Publisher sends outcome events to the configured destination.
type Publisher interface {
	// Publish sends one outcome. Implementations may deliver
	// asynchronously; a nil return means the event was accepted,
	// not that it was delivered.
	Publish(ctx context.Context, outcome Outcome) error

	// Close cleans up any client connections and resources.
	Close() error
}

// NoopPublisher discards all events. It is the default when no
// events provider is configured.
type NoopPublisher struct{}

// Publish for NoopPublisher does nothing and returns nil.
func (NoopPublisher) Publish(_ context.Context, _ Outcome) error { return nil }

// Close for NoopPublisher does nothing and returns nil.
func (NoopPublisher) Close() error { return nil }
