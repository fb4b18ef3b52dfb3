// Package storage archives the statement files behind finalized imports.
package storage

import (
	"context"
	"errors"
	"io"
	"time"

	"github.com/google/uuid"
)

// ErrFileNotFound is returned when no file exists for an ID.
var ErrFileNotFound = errors.New("file not found")

// FileInfo contains metadata about a stored file
type FileInfo struct {
	ID          uuid.UUID `json:"id"`
	BatchID     uuid.UUID `json:"batch_id"`
	Name        string    `json:"name"`
	Size        int64     `json:"size"`
	ContentType string    `json:"content_type"`
	Path        string    `json:"path"` // relative to the batch directory
	CreatedAt   time.Time `json:"created_at"`
}

// Storage stores source files grouped by import batch.
type Storage interface {
	// Upload stores a file and returns its metadata
	Upload(ctx context.Context, batchID uuid.UUID, filename string, r io.Reader) (*FileInfo, error)

	// Download retrieves a file by its ID
	Download(ctx context.Context, batchID, fileID uuid.UUID) (io.ReadCloser, *FileInfo, error)

	// Delete removes a file by its ID
	Delete(ctx context.Context, batchID, fileID uuid.UUID) error

	// List returns all files of a batch
	List(ctx context.Context, batchID uuid.UUID) ([]*FileInfo, error)

	GetInfo(ctx context.Context, batchID, fileID uuid.UUID) (*FileInfo, error)
}

// Config holds storage configuration
type Config struct {
	LocalPath string
}

// New creates the configured Storage implementation.
func New(cfg *Config) (Storage, error) {
	return NewLocalStorage(cfg.LocalPath)
}
