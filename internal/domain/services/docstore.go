package services

import (
	"context"
	"io"
	"time"

	"docstore/internal/domain/models"
)

// Session identifies the authenticated caller. Authentication itself happens
// in layers above this core; the store only ever sees the resolved user id.
type Session struct {
	UserID int64
}

// DocumentStore is the public contract of the versioned document store.
// Every mutating operation checks permissions before touching storage and
// fails fast with no side effects when denied.
type DocumentStore interface {
	// GetMetadata returns the document row, merged with the fields of the
	// requested version (models.CurrentVersion for the active one) and the
	// lock deadline if a write lock is held.
	GetMetadata(ctx context.Context, session Session, id int64, version int) (*models.DocumentMetadata, error)

	// GetContent streams the payload of the requested version. The caller
	// closes the reader.
	GetContent(ctx context.Context, session Session, id int64, version int) (io.ReadCloser, error)

	// Save creates the document when doc.ID is zero, otherwise updates it.
	// content may be nil for metadata-only edits. expectedSeq is the
	// sequence number the caller last saw; a mismatch fails with
	// ErrConflict and writes nothing. On success the returned metadata
	// carries the new sequence number and current version.
	Save(ctx context.Context, session Session, doc *models.DocumentMetadata, content io.Reader, expectedSeq int64) (*models.DocumentMetadata, error)

	// Lock places an exclusive write lock for the session user. timeout of
	// models.InfiniteTimeout never expires.
	Lock(ctx context.Context, session Session, id int64, timeout time.Duration) error

	// Unlock releases the lock. Allowed for the creator, the last
	// modifier, or the lock holder.
	Unlock(ctx context.Context, session Session, id int64) error

	// RemoveAll deletes every reachable document in a folder. Documents
	// modified after notAfter, write-locked by another owner, or not
	// deletable by the caller are skipped and returned as rejected ids.
	RemoveAll(ctx context.Context, session Session, folderID int64, notAfter int64) ([]int64, error)

	// Remove deletes the given documents with the same per-item rejection
	// rules as RemoveAll. Partial success is the normal outcome.
	Remove(ctx context.Context, session Session, ids []int64, notAfter int64) ([]int64, error)

	// RemoveVersions purges version rows and their blobs. It refuses the
	// whole input when the document is locked by another owner. Version 0
	// is never removable. Removing the active version promotes the highest
	// survivor. Returns the numbers that were not removed.
	RemoveVersions(ctx context.Context, session Session, id int64, numbers []int) ([]int, error)

	// ListDocuments returns the folder's documents, owner-scoped when the
	// caller may only read own objects.
	ListDocuments(ctx context.Context, session Session, folderID int64, opts models.ListOptions) ([]models.DocumentMetadata, error)

	// ListVersions returns the surviving versions of a document. Only the
	// sort part of opts applies; version rows are narrow.
	ListVersions(ctx context.Context, session Session, id int64, opts models.ListOptions) ([]models.Version, error)

	// Delta partitions the folder's documents into new, modified and
	// deleted relative to since. The sets are disjoint.
	Delta(ctx context.Context, session Session, folderID int64, since int64) (*models.Delta, error)

	// CountDocuments counts the documents visible to the caller.
	CountDocuments(ctx context.Context, session Session, folderID int64) (int, error)

	// IsFolderEmpty reports whether the folder holds no live documents.
	// The surrounding folder tree asks this before deleting a folder.
	IsFolderEmpty(ctx context.Context, session Session, folderID int64) (bool, error)

	// ContainsForeignObjects reports whether the folder holds live
	// documents the caller did not create.
	ContainsForeignObjects(ctx context.Context, session Session, folderID int64) (bool, error)
}

// LockManager is the cooperative write-lock surface, layered on top of (not
// replacing) the sequence-number check. Unlock releases whatever lock is on
// the document, whoever holds it; deciding who may do that is the facade's
// job, not the lock manager's.
type LockManager interface {
	Lock(ctx context.Context, documentID int64, timeout time.Duration, owner int64) error
	Unlock(ctx context.Context, documentID int64) error
	IsLocked(ctx context.Context, documentID int64) (bool, error)
	FindLocks(ctx context.Context, documentID int64) ([]models.Lock, error)
}
