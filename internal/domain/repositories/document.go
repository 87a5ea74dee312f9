package repositories

import (
	"context"

	"docstore/internal/domain/models"
)

// DocumentRepository defines data access for document rows. All write
// methods participate in a surrounding transaction when one is present in
// the context.
type DocumentRepository interface {
	// Create inserts a new document row. The caller has already assigned
	// the ID from the id generator.
	Create(ctx context.Context, doc *models.DocumentMetadata) error

	// GetByID retrieves a document row by ID.
	GetByID(ctx context.Context, id int64) (*models.DocumentMetadata, error)

	// Update writes the given columns of doc, conditioned on the stored
	// sequence number still being expectedSeq. It fails with ErrConflict
	// when the row has moved on, and with ErrNotFound when it is gone.
	// doc.SequenceNumber carries the new sequence value.
	Update(ctx context.Context, doc *models.DocumentMetadata, fields []models.Field, expectedSeq int64) error

	// Delete removes a document row, conditioned on the stored sequence
	// number. Versions are not touched; the caller cascades explicitly.
	Delete(ctx context.Context, id int64, expectedSeq int64) error

	// ListByFolder lists documents in a folder, honoring column selection,
	// sorting and owner scoping from opts.
	ListByFolder(ctx context.Context, folderID int64, opts models.ListOptions) ([]models.DocumentMetadata, error)

	// CountByFolder counts live documents in a folder. ownerID > 0 narrows
	// the count to that creator.
	CountByFolder(ctx context.Context, folderID, ownerID int64) (int, error)

	// FindByFileName returns the ID of the live document holding fileName
	// in the folder, or 0 when the name is free. excludeID skips the
	// document being saved so a rename onto its own name is not a clash.
	FindByFileName(ctx context.Context, folderID int64, fileName string, excludeID int64) (int64, error)

	// ListModifiedSince lists documents whose sequence number exceeds
	// since. ownerID > 0 narrows to that creator.
	ListModifiedSince(ctx context.Context, folderID, since, ownerID int64) ([]models.DocumentMetadata, error)

	// ContainsForeignObjects reports whether the folder holds any live
	// document not created by userID. Tombstoned rows are ignored.
	ContainsForeignObjects(ctx context.Context, folderID, userID int64) (bool, error)

	// IsFolderEmpty reports whether the folder holds no live documents.
	IsFolderEmpty(ctx context.Context, folderID int64) (bool, error)
}
