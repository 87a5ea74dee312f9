package docstore

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"docstore/internal/domain"
	"docstore/internal/domain/models"
	"docstore/internal/domain/repositories"
	"docstore/internal/domain/services"
)

// lockManager implements advisory, timed, exclusive write locks on top of
// the lock table. Expiry is lazy: every entry point sweeps expired rows
// first, so no background sweeper is needed for correctness.
type lockManager struct {
	locks  repositories.LockRepository
	logger *slog.Logger
	now    func() time.Time
}

// NewLockManager creates a new lock manager
func NewLockManager(locks repositories.LockRepository, logger *slog.Logger) services.LockManager {
	return &lockManager{
		locks:  locks,
		logger: logger,
		now:    time.Now,
	}
}

// Lock places an exclusive write lock. A negative timeout
// (models.InfiniteTimeout) never expires. Re-locking a document the owner
// already holds refreshes the deadline.
func (m *lockManager) Lock(ctx context.Context, documentID int64, timeout time.Duration, owner int64) error {
	now := m.now()
	if err := m.locks.DeleteExpired(ctx, now); err != nil {
		return err
	}

	existing, err := m.locks.FindByDocument(ctx, documentID)
	if err != nil {
		return err
	}
	for _, l := range existing {
		if l.Owner != owner {
			return &domain.LockedError{DocumentID: documentID, Owner: l.Owner, Until: l.TimeoutAt}
		}
		// refresh: drop the holder's own lock and re-insert below
		if _, err := m.locks.Delete(ctx, documentID, owner); err != nil {
			return err
		}
	}

	lock := &models.Lock{
		DocumentID: documentID,
		Owner:      owner,
		Scope:      models.LockScopeExclusive,
		Type:       models.LockTypeWrite,
	}
	if timeout >= 0 {
		deadline := now.Add(timeout)
		lock.TimeoutAt = &deadline
	}

	return m.locks.Insert(ctx, lock)
}

// Unlock releases the document's lock regardless of who holds it; the
// facade has already decided the caller may do this. Releasing a lock that
// is not held is not an error, the point of unlock is the end state.
func (m *lockManager) Unlock(ctx context.Context, documentID int64) error {
	if err := m.locks.DeleteAllForDocument(ctx, documentID); err != nil {
		return fmt.Errorf("unlock document %d: %w", documentID, err)
	}
	return nil
}

// IsLocked reports whether any active lock exists on the document.
func (m *lockManager) IsLocked(ctx context.Context, documentID int64) (bool, error) {
	locks, err := m.FindLocks(ctx, documentID)
	if err != nil {
		return false, err
	}
	return len(locks) > 0, nil
}

// FindLocks returns the active locks on a document.
func (m *lockManager) FindLocks(ctx context.Context, documentID int64) ([]models.Lock, error) {
	if err := m.locks.DeleteExpired(ctx, m.now()); err != nil {
		return nil, err
	}
	return m.locks.FindByDocument(ctx, documentID)
}
