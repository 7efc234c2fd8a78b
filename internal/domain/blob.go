package domain

import (
	"context"
	"io"
	"time"
)

// BlobInfo describes one stored object.
type BlobInfo struct {
	Path         string
	Size         int64
	ContentType  string
	LastModified time.Time
}

// BlobWriter uploads objects to the archive bucket.
type BlobWriter interface {
	Put(ctx context.Context, path string, data io.Reader, contentType string) error
}

// BlobReader retrieves and enumerates archived objects.
type BlobReader interface {
	Get(ctx context.Context, path string) (io.ReadCloser, error)
	List(ctx context.Context, prefix string) ([]BlobInfo, error)
	Exists(ctx context.Context, path string) (bool, error)
}

// SettlementArchiver writes the durable record of settled pools to cold
// storage. Archives are additive; nothing is deleted from the primary store.
type SettlementArchiver interface {
	// ArchivePool uploads the settlement record for one resolved pool and
	// returns the object path.
	ArchivePool(ctx context.Context, chain string, poolID uint64) (string, error)

	// ArchiveResolved archives every resolved pool on a chain whose last
	// update is before the cutoff, returning the number archived.
	ArchiveResolved(ctx context.Context, chain string, before time.Time) (int64, error)
}
