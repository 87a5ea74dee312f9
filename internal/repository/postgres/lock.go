package postgres

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"docstore/internal/domain"
	"docstore/internal/domain/models"
	"docstore/internal/domain/repositories"
)

// PostgresLockRepository implements the LockRepository interface
type PostgresLockRepository struct {
	pool   *pgxpool.Pool
	tables *TableNames
	logger *slog.Logger
}

// NewLockRepository creates a new lock repository
func NewLockRepository(config *RepositoryConfig) repositories.LockRepository {
	return &PostgresLockRepository{
		pool:   config.Pool,
		tables: config.Tables,
		logger: config.Logger,
	}
}

// Insert stores a new lock row. The primary key on document_id is what
// enforces "zero or one active write lock per document".
func (r *PostgresLockRepository) Insert(ctx context.Context, lock *models.Lock) error {
	query := fmt.Sprintf(`
		INSERT INTO %s (document_id, owner, scope, lock_type, timeout_at)
		VALUES ($1, $2, $3, $4, $5)
	`, r.tables.Locks)

	executor := GetExecutor(ctx, r.pool)
	_, err := executor.Exec(ctx, query,
		lock.DocumentID,
		lock.Owner,
		lock.Scope,
		lock.Type,
		lock.TimeoutAt,
	)

	if err != nil {
		if IsPgDuplicateError(err) {
			return fmt.Errorf("document %d already locked: %w", lock.DocumentID, domain.ErrLocked)
		}
		return fmt.Errorf("insert lock: %w", err)
	}

	return nil
}

// Delete removes the lock held by owner on the document
func (r *PostgresLockRepository) Delete(ctx context.Context, documentID, owner int64) (bool, error) {
	query := fmt.Sprintf(`
		DELETE FROM %s
		WHERE document_id = $1 AND owner = $2
	`, r.tables.Locks)

	executor := GetExecutor(ctx, r.pool)
	result, err := executor.Exec(ctx, query, documentID, owner)
	if err != nil {
		return false, fmt.Errorf("delete lock: %w", err)
	}

	return result.RowsAffected() > 0, nil
}

// DeleteAllForDocument removes every lock on a document
func (r *PostgresLockRepository) DeleteAllForDocument(ctx context.Context, documentID int64) error {
	query := fmt.Sprintf(`
		DELETE FROM %s
		WHERE document_id = $1
	`, r.tables.Locks)

	executor := GetExecutor(ctx, r.pool)
	if _, err := executor.Exec(ctx, query, documentID); err != nil {
		return fmt.Errorf("delete locks for document: %w", err)
	}

	return nil
}

// DeleteExpired removes locks whose deadline passed before now. Infinite
// locks store a NULL deadline and are never swept.
func (r *PostgresLockRepository) DeleteExpired(ctx context.Context, now time.Time) error {
	query := fmt.Sprintf(`
		DELETE FROM %s
		WHERE timeout_at IS NOT NULL AND timeout_at <= $1
	`, r.tables.Locks)

	executor := GetExecutor(ctx, r.pool)
	if _, err := executor.Exec(ctx, query, now); err != nil {
		return fmt.Errorf("delete expired locks: %w", err)
	}

	return nil
}

// FindByDocument returns the active locks on a document
func (r *PostgresLockRepository) FindByDocument(ctx context.Context, documentID int64) ([]models.Lock, error) {
	query := fmt.Sprintf(`
		SELECT document_id, owner, scope, lock_type, timeout_at
		FROM %s
		WHERE document_id = $1
	`, r.tables.Locks)

	executor := GetExecutor(ctx, r.pool)
	rows, err := executor.Query(ctx, query, documentID)
	if err != nil {
		return nil, fmt.Errorf("find locks: %w", err)
	}
	defer rows.Close()

	var locks []models.Lock
	for rows.Next() {
		var l models.Lock
		if err := rows.Scan(&l.DocumentID, &l.Owner, &l.Scope, &l.Type, &l.TimeoutAt); err != nil {
			return nil, fmt.Errorf("scan lock: %w", err)
		}
		locks = append(locks, l)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate locks: %w", err)
	}

	return locks, nil
}
