// Package archive defines the interface for storing rendered-page
// snapshots. Snapshots are written when reader-mode distillation
// fails, so the raw HTML is available for diagnosing extraction
// misses. The abstraction keeps the engine independent of a specific
// storage implementation (e.g., Google Cloud Storage or the local
// filesystem).
package archive

import (
	"context"
)

// Store abstracts the operation of saving a snapshot.
type Store interface {
	// Save uploads data to a specified object path/key in the
	// snapshot store.
	Save(ctx context.Context, objectName string, data []byte) error
}

// NoopStore discards all snapshots. It is the default when no
// archive provider is configured.
type NoopStore struct{}

// Save for NoopStore does nothing and always returns nil.
func (NoopStore) Save(_ context.Context, _ string, _ []byte) error {
	return nil
}
