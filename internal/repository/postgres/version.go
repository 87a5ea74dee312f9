package postgres

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"
	"docstore/internal/domain"
	"docstore/internal/domain/models"
	"docstore/internal/domain/repositories"
)

// PostgresVersionRepository implements the VersionRepository interface
type PostgresVersionRepository struct {
	pool   *pgxpool.Pool
	tables *TableNames
	logger *slog.Logger
}

// NewVersionRepository creates a new version repository
func NewVersionRepository(config *RepositoryConfig) repositories.VersionRepository {
	return &PostgresVersionRepository{
		pool:   config.Pool,
		tables: config.Tables,
		logger: config.Logger,
	}
}

const allVersionColumns = `document_id, version_number, title, description, url,
		file_name, file_size, file_md5, mime_type, blob_key,
		created_by, creation_date, last_modified`

func scanVersion(row interface{ Scan(...any) error }, v *models.Version) error {
	return row.Scan(
		&v.DocumentID,
		&v.Number,
		&v.Title,
		&v.Description,
		&v.URL,
		&v.FileName,
		&v.FileSize,
		&v.FileMD5,
		&v.MimeType,
		&v.BlobKey,
		&v.CreatedBy,
		&v.CreationDate,
		&v.LastModified,
	)
}

// Create inserts a new version row
func (r *PostgresVersionRepository) Create(ctx context.Context, v *models.Version) error {
	query := fmt.Sprintf(`
		INSERT INTO %s (document_id, version_number, title, description, url,
			file_name, file_size, file_md5, mime_type, blob_key,
			created_by, creation_date, last_modified)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`, r.tables.Versions)

	executor := GetExecutor(ctx, r.pool)
	_, err := executor.Exec(ctx, query,
		v.DocumentID,
		v.Number,
		v.Title,
		v.Description,
		v.URL,
		v.FileName,
		v.FileSize,
		v.FileMD5,
		v.MimeType,
		v.BlobKey,
		v.CreatedBy,
		v.CreationDate,
		v.LastModified,
	)

	if err != nil {
		if IsPgDuplicateError(err) {
			return fmt.Errorf("version %d of document %d already exists: %w",
				v.Number, v.DocumentID, domain.ErrConflict)
		}
		return fmt.Errorf("create version: %w", err)
	}

	return nil
}

// Get retrieves one version
func (r *PostgresVersionRepository) Get(ctx context.Context, documentID int64, number int) (*models.Version, error) {
	query := fmt.Sprintf(`
		SELECT %s
		FROM %s
		WHERE document_id = $1 AND version_number = $2
	`, allVersionColumns, r.tables.Versions)

	var v models.Version
	executor := GetExecutor(ctx, r.pool)
	err := scanVersion(executor.QueryRow(ctx, query, documentID, number), &v)

	if err != nil {
		if IsPgNoRowsError(err) {
			return nil, fmt.Errorf("version %d of document %d: %w", number, documentID, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("get version: %w", err)
	}

	return &v, nil
}

// Update rewrites the mutable columns of an existing version row
func (r *PostgresVersionRepository) Update(ctx context.Context, v *models.Version) error {
	query := fmt.Sprintf(`
		UPDATE %s
		SET title = $1, description = $2, url = $3, file_name = $4,
			last_modified = $5
		WHERE document_id = $6 AND version_number = $7
	`, r.tables.Versions)

	executor := GetExecutor(ctx, r.pool)
	result, err := executor.Exec(ctx, query,
		v.Title,
		v.Description,
		v.URL,
		v.FileName,
		v.LastModified,
		v.DocumentID,
		v.Number,
	)
	if err != nil {
		return fmt.Errorf("update version: %w", err)
	}

	if result.RowsAffected() == 0 {
		return fmt.Errorf("version %d of document %d: %w", v.Number, v.DocumentID, domain.ErrNotFound)
	}

	return nil
}

// Delete removes one version row
func (r *PostgresVersionRepository) Delete(ctx context.Context, documentID int64, number int) error {
	query := fmt.Sprintf(`
		DELETE FROM %s
		WHERE document_id = $1 AND version_number = $2
	`, r.tables.Versions)

	executor := GetExecutor(ctx, r.pool)
	result, err := executor.Exec(ctx, query, documentID, number)
	if err != nil {
		return fmt.Errorf("delete version: %w", err)
	}

	if result.RowsAffected() == 0 {
		return fmt.Errorf("version %d of document %d: %w", number, documentID, domain.ErrNotFound)
	}

	return nil
}

// DeleteAll removes every version of a document
func (r *PostgresVersionRepository) DeleteAll(ctx context.Context, documentID int64) error {
	query := fmt.Sprintf(`
		DELETE FROM %s
		WHERE document_id = $1
	`, r.tables.Versions)

	executor := GetExecutor(ctx, r.pool)
	if _, err := executor.Exec(ctx, query, documentID); err != nil {
		return fmt.Errorf("delete all versions: %w", err)
	}

	return nil
}

// ListByDocument returns all surviving versions ordered by number
func (r *PostgresVersionRepository) ListByDocument(ctx context.Context, documentID int64) ([]models.Version, error) {
	query := fmt.Sprintf(`
		SELECT %s
		FROM %s
		WHERE document_id = $1
		ORDER BY version_number ASC
	`, allVersionColumns, r.tables.Versions)

	executor := GetExecutor(ctx, r.pool)
	rows, err := executor.Query(ctx, query, documentID)
	if err != nil {
		return nil, fmt.Errorf("list versions: %w", err)
	}
	defer rows.Close()

	var versions []models.Version
	for rows.Next() {
		var v models.Version
		if err := scanVersion(rows, &v); err != nil {
			return nil, fmt.Errorf("scan version: %w", err)
		}
		versions = append(versions, v)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate versions: %w", err)
	}

	return versions, nil
}

// MaxNumber returns the highest surviving version number, or -1 when the
// document has no versions at all
func (r *PostgresVersionRepository) MaxNumber(ctx context.Context, documentID int64) (int, error) {
	query := fmt.Sprintf(`
		SELECT COALESCE(MAX(version_number), -1)
		FROM %s
		WHERE document_id = $1
	`, r.tables.Versions)

	var max int
	executor := GetExecutor(ctx, r.pool)
	if err := executor.QueryRow(ctx, query, documentID).Scan(&max); err != nil {
		return 0, fmt.Errorf("max version number: %w", err)
	}

	return max, nil
}
