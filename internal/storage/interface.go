package storage

import (
	"context"
	"io"
)

// MediaStorage defines the interface for recording and segment file storage.
// The encoder writes media files here; the analysis pipeline resolves URLs
// for the inference service through it.
type MediaStorage interface {
	// EnsureBucket creates the bucket if it doesn't exist
	EnsureBucket(ctx context.Context) error

	// Upload uploads a media object to storage
	Upload(ctx context.Context, key string, reader io.Reader, size int64, contentType string) error

	// Download downloads a media object from storage
	Download(ctx context.Context, key string) (io.ReadCloser, error)

	// GetURL returns the URL for accessing a media object
	GetURL(key string) string

	// Delete deletes a media object from storage
	Delete(ctx context.Context, key string) error

	// Exists checks if a media object exists
	Exists(ctx context.Context, key string) (bool, error)
}
