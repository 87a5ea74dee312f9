package postgres

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"
	"docstore/internal/domain/models"
	"docstore/internal/domain/repositories"
)

// PostgresTombstoneRepository implements the TombstoneRepository interface.
// Document and version tombstones live in a parallel pair of tables mirroring
// the live collections.
type PostgresTombstoneRepository struct {
	pool   *pgxpool.Pool
	tables *TableNames
	logger *slog.Logger
}

// NewTombstoneRepository creates a new tombstone repository
func NewTombstoneRepository(config *RepositoryConfig) repositories.TombstoneRepository {
	return &PostgresTombstoneRepository{
		pool:   config.Pool,
		tables: config.Tables,
		logger: config.Logger,
	}
}

// RecordDocument writes a whole-document tombstone
func (r *PostgresTombstoneRepository) RecordDocument(ctx context.Context, t *models.Tombstone) error {
	return r.record(ctx, r.tables.DocumentTombstones, t)
}

// RecordVersion writes a tombstone for a single purged version
func (r *PostgresTombstoneRepository) RecordVersion(ctx context.Context, t *models.Tombstone) error {
	return r.record(ctx, r.tables.VersionTombstones, t)
}

func (r *PostgresTombstoneRepository) record(ctx context.Context, table string, t *models.Tombstone) error {
	query := fmt.Sprintf(`
		INSERT INTO %s (document_id, version_number, folder_id, file_name,
			created_by, deleted_by, deleted_at, delete_seq)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, table)

	executor := GetExecutor(ctx, r.pool)
	_, err := executor.Exec(ctx, query,
		t.DocumentID,
		t.VersionNumber,
		t.FolderID,
		t.FileName,
		t.CreatedBy,
		t.DeletedBy,
		t.DeletedAt,
		t.DeleteSeq,
	)
	if err != nil {
		return fmt.Errorf("record tombstone: %w", err)
	}

	return nil
}

// ListDocumentsDeletedSince returns document tombstones in a folder whose
// deletion sequence exceeds since
func (r *PostgresTombstoneRepository) ListDocumentsDeletedSince(ctx context.Context, folderID, since, ownerID int64) ([]models.Tombstone, error) {
	where := "folder_id = $1 AND delete_seq > $2"
	args := []any{folderID, since}
	if ownerID > 0 {
		args = append(args, ownerID)
		where += fmt.Sprintf(" AND created_by = $%d", len(args))
	}

	query := fmt.Sprintf(`
		SELECT document_id, version_number, folder_id, file_name,
			created_by, deleted_by, deleted_at, delete_seq
		FROM %s
		WHERE %s
		ORDER BY delete_seq ASC
	`, r.tables.DocumentTombstones, where)

	executor := GetExecutor(ctx, r.pool)
	rows, err := executor.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list tombstones: %w", err)
	}
	defer rows.Close()

	var tombstones []models.Tombstone
	for rows.Next() {
		var t models.Tombstone
		err := rows.Scan(
			&t.DocumentID,
			&t.VersionNumber,
			&t.FolderID,
			&t.FileName,
			&t.CreatedBy,
			&t.DeletedBy,
			&t.DeletedAt,
			&t.DeleteSeq,
		)
		if err != nil {
			return nil, fmt.Errorf("scan tombstone: %w", err)
		}
		tombstones = append(tombstones, t)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate tombstones: %w", err)
	}

	return tombstones, nil
}
