// Package gcs implements the snapshot store on Google Cloud Storage.
package gcs

import (
	"context"
	"fmt"

	"cloud.google.com/go/storage"
	"go.uber.org/zap"
)

// Store uploads snapshots to a GCS bucket.
type Store struct {
	client     *storage.Client
	bucketName string
	logger     *zap.Logger
}

// New initializes a GCS client and verifies the bucket is reachable.
// Authentication is handled via Application Default Credentials.
func New(ctx context.Context, bucketName string, logger *zap.Logger) (*Store, error) {
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCS client: %w", err)
	}

	// Fail fast on startup if the bucket is missing or inaccessible.
	bkt := client.Bucket(bucketName)
	if _, err := bkt.Attrs(ctx); err != nil {
		if closeErr := client.Close(); closeErr != nil {
			logger.Warn("failed to close GCS client after bucket check failure", zap.Error(closeErr))
		}
		return nil, fmt.Errorf("failed to get GCS bucket %q attributes: %w", bucketName, err)
	}

	return &Store{
		client:     client,
		bucketName: bucketName,
		logger:     logger,
	}, nil
}

// Save uploads the given data to an object in the bucket.
func (s *Store) Save(ctx context.Context, objectName string, data []byte) error {
	wc := s.client.Bucket(s.bucketName).Object(objectName).NewWriter(ctx)
	wc.ContentType = "text/html; charset=utf-8"

	if _, err := wc.Write(data); err != nil {
		// Close anyway to release resources; the write error is primary.
		if closeErr := wc.Close(); closeErr != nil {
			s.logger.Warn("failed to close GCS writer after write failure", zap.Error(closeErr))
		}
		return fmt.Errorf("failed to write data to GCS object %s: %w", objectName, err)
	}

	// Close finalizes the upload and flushes buffered data.
	if err := wc.Close(); err != nil {
		return fmt.Errorf("failed to close GCS writer for object %s: %w", objectName, err)
	}

	return nil
}

// Close releases the underlying client connection.
func (s *Store) Close() error {
	return s.client.Close()
}
