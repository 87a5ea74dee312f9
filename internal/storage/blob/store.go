// Package blob is the quota-accounted byte store behind the document
// versions. It is a flat key/value store with generated keys: content is
// never interpreted, size and checksum bookkeeping belong to the caller.
package blob

import (
	"context"
	"io"
)

// PutResult carries the bookkeeping of a completed write.
type PutResult struct {
	Key  string
	Size int64
	MD5  string
}

// Store stores, retrieves and deletes opaque payloads by generated key.
// The store is not transactional: callers sequence their metadata writes
// around it (blob before referencing metadata, deletion after commit).
type Store interface {
	// Put streams r into the store under a fresh key, enforcing the
	// owner's quota. A write that would exceed the quota is rejected
	// before anything is made durable.
	Put(ctx context.Context, owner int64, r io.Reader, sizeHint int64) (*PutResult, error)

	// Open returns the payload stream for a key. The caller closes it.
	Open(ctx context.Context, key string) (io.ReadCloser, error)

	// Delete removes a payload. Deleting a non-existent key is not an
	// error.
	Delete(ctx context.Context, key string) error

	// SizeOf returns the stored payload size in bytes.
	SizeOf(ctx context.Context, key string) (int64, error)
}
