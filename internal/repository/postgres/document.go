package postgres

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
	"docstore/internal/domain"
	"docstore/internal/domain/models"
	"docstore/internal/domain/repositories"
)

// PostgresDocumentRepository implements the DocumentRepository interface
type PostgresDocumentRepository struct {
	pool   *pgxpool.Pool
	tables *TableNames
	logger *slog.Logger
}

// NewDocumentRepository creates a new document repository
func NewDocumentRepository(config *RepositoryConfig) repositories.DocumentRepository {
	return &PostgresDocumentRepository{
		pool:   config.Pool,
		tables: config.Tables,
		logger: config.Logger,
	}
}

// documentColumns maps selectable fields to their column names. Columns not
// in this map never reach a query string.
var documentColumns = map[models.Field]string{
	models.FieldID:             "id",
	models.FieldFolderID:       "folder_id",
	models.FieldTitle:          "title",
	models.FieldFileName:       "file_name",
	models.FieldDescription:    "description",
	models.FieldURL:            "url",
	models.FieldCreatedBy:      "created_by",
	models.FieldModifiedBy:     "modified_by",
	models.FieldCreationDate:   "creation_date",
	models.FieldLastModified:   "last_modified",
	models.FieldSequenceNumber: "sequence_number",
	models.FieldCurrentVersion: "current_version",
}

// updatableFields are the document columns an update action may touch.
// sequence_number is excluded: every update sets it unconditionally.
var updatableFields = map[models.Field]bool{
	models.FieldFolderID:       true,
	models.FieldTitle:          true,
	models.FieldFileName:       true,
	models.FieldDescription:    true,
	models.FieldURL:            true,
	models.FieldModifiedBy:     true,
	models.FieldLastModified:   true,
	models.FieldCurrentVersion: true,
}

const allDocumentColumns = `id, folder_id, title, file_name, description, url,
		created_by, modified_by, creation_date, last_modified,
		sequence_number, creation_seq, current_version`

func scanDocument(row interface{ Scan(...any) error }, doc *models.DocumentMetadata) error {
	return row.Scan(
		&doc.ID,
		&doc.FolderID,
		&doc.Title,
		&doc.FileName,
		&doc.Description,
		&doc.URL,
		&doc.CreatedBy,
		&doc.ModifiedBy,
		&doc.CreationDate,
		&doc.LastModified,
		&doc.SequenceNumber,
		&doc.CreationSeq,
		&doc.CurrentVersion,
	)
}

// fieldValue returns the value of a document column by field name.
func fieldValue(doc *models.DocumentMetadata, f models.Field) any {
	switch f {
	case models.FieldFolderID:
		return doc.FolderID
	case models.FieldTitle:
		return doc.Title
	case models.FieldFileName:
		return doc.FileName
	case models.FieldDescription:
		return doc.Description
	case models.FieldURL:
		return doc.URL
	case models.FieldCreatedBy:
		return doc.CreatedBy
	case models.FieldModifiedBy:
		return doc.ModifiedBy
	case models.FieldCreationDate:
		return doc.CreationDate
	case models.FieldLastModified:
		return doc.LastModified
	case models.FieldCurrentVersion:
		return doc.CurrentVersion
	default:
		return nil
	}
}

// fieldDest returns the scan destination of a document column.
func fieldDest(doc *models.DocumentMetadata, f models.Field) any {
	switch f {
	case models.FieldID:
		return &doc.ID
	case models.FieldFolderID:
		return &doc.FolderID
	case models.FieldTitle:
		return &doc.Title
	case models.FieldFileName:
		return &doc.FileName
	case models.FieldDescription:
		return &doc.Description
	case models.FieldURL:
		return &doc.URL
	case models.FieldCreatedBy:
		return &doc.CreatedBy
	case models.FieldModifiedBy:
		return &doc.ModifiedBy
	case models.FieldCreationDate:
		return &doc.CreationDate
	case models.FieldLastModified:
		return &doc.LastModified
	case models.FieldSequenceNumber:
		return &doc.SequenceNumber
	case models.FieldCurrentVersion:
		return &doc.CurrentVersion
	default:
		return nil
	}
}

// Create inserts a new document row
func (r *PostgresDocumentRepository) Create(ctx context.Context, doc *models.DocumentMetadata) error {
	query := fmt.Sprintf(`
		INSERT INTO %s (id, folder_id, title, file_name, description, url,
			created_by, modified_by, creation_date, last_modified,
			sequence_number, creation_seq, current_version)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`, r.tables.Documents)

	executor := GetExecutor(ctx, r.pool)
	_, err := executor.Exec(ctx, query,
		doc.ID,
		doc.FolderID,
		doc.Title,
		doc.FileName,
		doc.Description,
		doc.URL,
		doc.CreatedBy,
		doc.ModifiedBy,
		doc.CreationDate,
		doc.LastModified,
		doc.SequenceNumber,
		doc.CreationSeq,
		doc.CurrentVersion,
	)

	if err != nil {
		if IsPgDuplicateError(err) {
			return fmt.Errorf("document %d already exists: %w", doc.ID, domain.ErrConflict)
		}
		return fmt.Errorf("create document: %w", err)
	}

	return nil
}

// GetByID retrieves a document row by ID
func (r *PostgresDocumentRepository) GetByID(ctx context.Context, id int64) (*models.DocumentMetadata, error) {
	query := fmt.Sprintf(`
		SELECT %s
		FROM %s
		WHERE id = $1
	`, allDocumentColumns, r.tables.Documents)

	var doc models.DocumentMetadata
	executor := GetExecutor(ctx, r.pool)
	err := scanDocument(executor.QueryRow(ctx, query, id), &doc)

	if err != nil {
		if IsPgNoRowsError(err) {
			return nil, fmt.Errorf("document %d: %w", id, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("get document: %w", err)
	}

	return &doc, nil
}

// Update writes the given columns, conditioned on the stored sequence
// number. The condition is what makes two racing writers resolve to exactly
// one winner: the loser's UPDATE matches zero rows.
func (r *PostgresDocumentRepository) Update(ctx context.Context, doc *models.DocumentMetadata, fields []models.Field, expectedSeq int64) error {
	setClauses := []string{"sequence_number = $1"}
	args := []any{doc.SequenceNumber}

	for _, f := range fields {
		if !updatableFields[f] {
			continue
		}
		args = append(args, fieldValue(doc, f))
		setClauses = append(setClauses, fmt.Sprintf("%s = $%d", documentColumns[f], len(args)))
	}

	args = append(args, doc.ID, expectedSeq)
	query := fmt.Sprintf(`
		UPDATE %s
		SET %s
		WHERE id = $%d AND sequence_number = $%d
	`, r.tables.Documents, strings.Join(setClauses, ", "), len(args)-1, len(args))

	executor := GetExecutor(ctx, r.pool)
	result, err := executor.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update document: %w", err)
	}

	if result.RowsAffected() == 0 {
		return r.conflictOrNotFound(ctx, doc.ID, expectedSeq)
	}

	return nil
}

// Delete removes a document row, conditioned on the stored sequence number
func (r *PostgresDocumentRepository) Delete(ctx context.Context, id int64, expectedSeq int64) error {
	query := fmt.Sprintf(`
		DELETE FROM %s
		WHERE id = $1 AND sequence_number = $2
	`, r.tables.Documents)

	executor := GetExecutor(ctx, r.pool)
	result, err := executor.Exec(ctx, query, id, expectedSeq)
	if err != nil {
		return fmt.Errorf("delete document: %w", err)
	}

	if result.RowsAffected() == 0 {
		return r.conflictOrNotFound(ctx, id, expectedSeq)
	}

	return nil
}

// conflictOrNotFound disambiguates a zero-row write: the row is either gone
// or has moved past the expected sequence number.
func (r *PostgresDocumentRepository) conflictOrNotFound(ctx context.Context, id, expectedSeq int64) error {
	query := fmt.Sprintf(`SELECT sequence_number FROM %s WHERE id = $1`, r.tables.Documents)

	var actual int64
	executor := GetExecutor(ctx, r.pool)
	err := executor.QueryRow(ctx, query, id).Scan(&actual)
	if err != nil {
		if IsPgNoRowsError(err) {
			return fmt.Errorf("document %d: %w", id, domain.ErrNotFound)
		}
		return fmt.Errorf("check document sequence: %w", err)
	}

	return &domain.ConflictError{
		DocumentID:       id,
		ExpectedSequence: expectedSeq,
		ActualSequence:   actual,
	}
}

// ListByFolder lists documents in a folder
func (r *PostgresDocumentRepository) ListByFolder(ctx context.Context, folderID int64, opts models.ListOptions) ([]models.DocumentMetadata, error) {
	selected := opts.Columns
	if len(selected) == 0 {
		selected = []models.Field{
			models.FieldID, models.FieldFolderID, models.FieldTitle,
			models.FieldFileName, models.FieldDescription, models.FieldURL,
			models.FieldCreatedBy, models.FieldModifiedBy,
			models.FieldCreationDate, models.FieldLastModified,
			models.FieldSequenceNumber, models.FieldCurrentVersion,
		}
	}

	cols := make([]string, 0, len(selected)+1)
	fields := make([]models.Field, 0, len(selected)+1)
	seen := map[models.Field]bool{}

	// id is always selected so callers can address the rows
	for _, f := range append([]models.Field{models.FieldID}, selected...) {
		col, ok := documentColumns[f]
		if !ok || seen[f] {
			continue
		}
		seen[f] = true
		cols = append(cols, col)
		fields = append(fields, f)
	}

	where := "folder_id = $1"
	args := []any{folderID}
	if opts.OwnerID > 0 {
		args = append(args, opts.OwnerID)
		where += fmt.Sprintf(" AND created_by = $%d", len(args))
	}

	orderBy := "id"
	if col, ok := documentColumns[opts.SortBy]; ok {
		orderBy = col
	}
	direction := "ASC"
	if opts.Order == models.Descending {
		direction = "DESC"
	}

	query := fmt.Sprintf(`
		SELECT %s
		FROM %s
		WHERE %s
		ORDER BY %s %s
	`, strings.Join(cols, ", "), r.tables.Documents, where, orderBy, direction)

	executor := GetExecutor(ctx, r.pool)
	rows, err := executor.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list documents in folder: %w", err)
	}
	defer rows.Close()

	var documents []models.DocumentMetadata
	for rows.Next() {
		var doc models.DocumentMetadata
		dests := make([]any, len(fields))
		for i, f := range fields {
			dests[i] = fieldDest(&doc, f)
		}
		if err := rows.Scan(dests...); err != nil {
			return nil, fmt.Errorf("scan document: %w", err)
		}
		documents = append(documents, doc)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate documents: %w", err)
	}

	return documents, nil
}

// CountByFolder counts live documents in a folder
func (r *PostgresDocumentRepository) CountByFolder(ctx context.Context, folderID, ownerID int64) (int, error) {
	where := "folder_id = $1"
	args := []any{folderID}
	if ownerID > 0 {
		args = append(args, ownerID)
		where += fmt.Sprintf(" AND created_by = $%d", len(args))
	}

	query := fmt.Sprintf(`SELECT COUNT(*) FROM %s WHERE %s`, r.tables.Documents, where)

	var count int
	executor := GetExecutor(ctx, r.pool)
	if err := executor.QueryRow(ctx, query, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("count documents: %w", err)
	}

	return count, nil
}

// FindByFileName returns the id of the live document holding fileName in
// the folder, or 0 when the name is free. Uniqueness is enforced here by a
// scoped query rather than a unique index because empty names are exempt.
func (r *PostgresDocumentRepository) FindByFileName(ctx context.Context, folderID int64, fileName string, excludeID int64) (int64, error) {
	if fileName == "" {
		return 0, nil
	}

	query := fmt.Sprintf(`
		SELECT id
		FROM %s
		WHERE folder_id = $1 AND file_name = $2 AND id <> $3
		LIMIT 1
	`, r.tables.Documents)

	var id int64
	executor := GetExecutor(ctx, r.pool)
	err := executor.QueryRow(ctx, query, folderID, fileName, excludeID).Scan(&id)
	if err != nil {
		if IsPgNoRowsError(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("find document by filename: %w", err)
	}

	return id, nil
}

// ListModifiedSince lists documents whose sequence number exceeds since
func (r *PostgresDocumentRepository) ListModifiedSince(ctx context.Context, folderID, since, ownerID int64) ([]models.DocumentMetadata, error) {
	where := "folder_id = $1 AND sequence_number > $2"
	args := []any{folderID, since}
	if ownerID > 0 {
		args = append(args, ownerID)
		where += fmt.Sprintf(" AND created_by = $%d", len(args))
	}

	query := fmt.Sprintf(`
		SELECT %s
		FROM %s
		WHERE %s
		ORDER BY sequence_number ASC
	`, allDocumentColumns, r.tables.Documents, where)

	executor := GetExecutor(ctx, r.pool)
	rows, err := executor.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list modified documents: %w", err)
	}
	defer rows.Close()

	var documents []models.DocumentMetadata
	for rows.Next() {
		var doc models.DocumentMetadata
		if err := scanDocument(rows, &doc); err != nil {
			return nil, fmt.Errorf("scan document: %w", err)
		}
		documents = append(documents, doc)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate documents: %w", err)
	}

	return documents, nil
}

// ContainsForeignObjects reports whether the folder holds live documents not
// created by userID. Tombstoned rows do not count: the row pair in the
// tombstone tables is invisible to this check.
func (r *PostgresDocumentRepository) ContainsForeignObjects(ctx context.Context, folderID, userID int64) (bool, error) {
	query := fmt.Sprintf(`
		SELECT EXISTS (
			SELECT 1 FROM %s WHERE folder_id = $1 AND created_by <> $2
		)
	`, r.tables.Documents)

	var exists bool
	executor := GetExecutor(ctx, r.pool)
	if err := executor.QueryRow(ctx, query, folderID, userID).Scan(&exists); err != nil {
		return false, fmt.Errorf("check foreign objects: %w", err)
	}

	return exists, nil
}

// IsFolderEmpty reports whether the folder holds no live documents
func (r *PostgresDocumentRepository) IsFolderEmpty(ctx context.Context, folderID int64) (bool, error) {
	query := fmt.Sprintf(`
		SELECT NOT EXISTS (
			SELECT 1 FROM %s WHERE folder_id = $1
		)
	`, r.tables.Documents)

	var empty bool
	executor := GetExecutor(ctx, r.pool)
	if err := executor.QueryRow(ctx, query, folderID).Scan(&empty); err != nil {
		return false, fmt.Errorf("check folder empty: %w", err)
	}

	return empty, nil
}
