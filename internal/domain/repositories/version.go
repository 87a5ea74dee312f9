package repositories

import (
	"context"

	"docstore/internal/domain/models"
)

// VersionRepository defines data access for version history rows, keyed by
// (documentID, versionNumber).
type VersionRepository interface {
	// Create inserts a new version row.
	Create(ctx context.Context, v *models.Version) error

	// Get retrieves one version.
	Get(ctx context.Context, documentID int64, number int) (*models.Version, error)

	// Update rewrites the mutable columns of an existing version row
	// (title, description, url, file name, timestamps).
	Update(ctx context.Context, v *models.Version) error

	// Delete removes one version row.
	Delete(ctx context.Context, documentID int64, number int) error

	// DeleteAll removes every version of a document.
	DeleteAll(ctx context.Context, documentID int64) error

	// ListByDocument returns all surviving versions ordered by number.
	ListByDocument(ctx context.Context, documentID int64) ([]models.Version, error)

	// MaxNumber returns the highest surviving version number, or -1 when
	// the document has no versions at all.
	MaxNumber(ctx context.Context, documentID int64) (int, error)
}
