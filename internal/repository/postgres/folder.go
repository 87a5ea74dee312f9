package postgres

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"
	"docstore/internal/domain/models"
	"docstore/internal/domain/services"
)

// allUsersID is the user_id of a folder's everyone-entry. A per-user row
// overrides it completely.
const allUsersID = 0

// PostgresFolderResolver resolves effective folder rights from the
// folder_permissions table.
type PostgresFolderResolver struct {
	pool   *pgxpool.Pool
	tables *TableNames
	logger *slog.Logger
}

// NewFolderResolver creates a new folder rights resolver
func NewFolderResolver(config *RepositoryConfig) services.FolderResolver {
	return &PostgresFolderResolver{
		pool:   config.Pool,
		tables: config.Tables,
		logger: config.Logger,
	}
}

// EffectiveRights returns the caller's rights on a folder: the per-user row
// when present, the everyone-row otherwise. A folder with no permission rows
// at all is open, so a fresh install works without provisioning.
func (r *PostgresFolderResolver) EffectiveRights(ctx context.Context, folderID, userID int64) (models.RightsSet, error) {
	query := fmt.Sprintf(`
		SELECT user_id, visible, read_all, read_own, write_all, write_own,
		       delete_all, delete_own, can_create, folder_admin
		FROM %s
		WHERE folder_id = $1 AND user_id IN ($2, $3)
		ORDER BY user_id DESC
		LIMIT 1
	`, r.tables.FolderPermissions)

	executor := GetExecutor(ctx, r.pool)

	var entryUser int64
	var rights models.RightsSet
	err := executor.QueryRow(ctx, query, folderID, userID, allUsersID).Scan(
		&entryUser,
		&rights.Visible,
		&rights.ReadAll,
		&rights.ReadOwn,
		&rights.WriteAll,
		&rights.WriteOwn,
		&rights.DeleteAll,
		&rights.DeleteOwn,
		&rights.CanCreate,
		&rights.FolderAdmin,
	)
	if IsPgNoRowsError(err) {
		return openRights(), nil
	}
	if err != nil {
		return models.RightsSet{}, fmt.Errorf("resolve rights for folder %d: %w", folderID, err)
	}

	return rights, nil
}

func openRights() models.RightsSet {
	return models.RightsSet{
		Visible:   true,
		ReadAll:   true,
		WriteAll:  true,
		DeleteAll: true,
		CanCreate: true,
	}
}
