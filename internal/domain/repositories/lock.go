package repositories

import (
	"context"
	"time"

	"docstore/internal/domain/models"
)

// LockRepository persists advisory write locks. Expiry is lazy: callers
// sweep expired rows before reading.
type LockRepository interface {
	// Insert stores a new lock row.
	Insert(ctx context.Context, lock *models.Lock) error

	// Delete removes the lock held by owner on the document. The bool
	// reports whether a row was actually removed.
	Delete(ctx context.Context, documentID, owner int64) (bool, error)

	// DeleteAllForDocument removes every lock on a document, used when the
	// document itself is deleted.
	DeleteAllForDocument(ctx context.Context, documentID int64) error

	// DeleteExpired removes locks whose deadline passed before now.
	DeleteExpired(ctx context.Context, now time.Time) error

	// FindByDocument returns the active locks on a document.
	FindByDocument(ctx context.Context, documentID int64) ([]models.Lock, error)
}
