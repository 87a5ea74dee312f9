package repositories

import (
	"context"

	"docstore/internal/domain/models"
)

// TombstoneRepository records deleted documents and versions in a parallel
// pair of collections, feeding delta and audit queries.
type TombstoneRepository interface {
	// RecordDocument writes a whole-document tombstone.
	RecordDocument(ctx context.Context, t *models.Tombstone) error

	// RecordVersion writes a tombstone for a single purged version.
	RecordVersion(ctx context.Context, t *models.Tombstone) error

	// ListDocumentsDeletedSince returns document tombstones in a folder
	// whose deletion sequence exceeds since. ownerID > 0 narrows to
	// documents that user created.
	ListDocumentsDeletedSince(ctx context.Context, folderID, since, ownerID int64) ([]models.Tombstone, error)
}
