package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Migrate creates the store's tables when they do not exist yet. Filename
// uniqueness is deliberately NOT a unique index: empty names are exempt from
// the invariant, so the write path enforces it with a scoped query instead.
func Migrate(ctx context.Context, pool *pgxpool.Pool, tables *TableNames) error {
	statements := []string{
		fmt.Sprintf(`
			CREATE TABLE IF NOT EXISTS %s (
				id BIGINT PRIMARY KEY,
				folder_id BIGINT NOT NULL,
				title TEXT NOT NULL DEFAULT '',
				file_name TEXT NOT NULL DEFAULT '',
				description TEXT NOT NULL DEFAULT '',
				url TEXT NOT NULL DEFAULT '',
				created_by BIGINT NOT NULL,
				modified_by BIGINT NOT NULL,
				creation_date TIMESTAMPTZ NOT NULL,
				last_modified TIMESTAMPTZ NOT NULL,
				sequence_number BIGINT NOT NULL,
				creation_seq BIGINT NOT NULL,
				current_version INT NOT NULL DEFAULT 0
			)
		`, tables.Documents),
		fmt.Sprintf(`
			CREATE INDEX IF NOT EXISTS %s_folder_idx ON %s (folder_id, sequence_number)
		`, tables.Documents, tables.Documents),
		fmt.Sprintf(`
			CREATE TABLE IF NOT EXISTS %s (
				document_id BIGINT NOT NULL,
				version_number INT NOT NULL,
				title TEXT NOT NULL DEFAULT '',
				description TEXT NOT NULL DEFAULT '',
				url TEXT NOT NULL DEFAULT '',
				file_name TEXT NOT NULL DEFAULT '',
				file_size BIGINT NOT NULL DEFAULT 0,
				file_md5 TEXT NOT NULL DEFAULT '',
				mime_type TEXT NOT NULL DEFAULT '',
				blob_key TEXT NOT NULL DEFAULT '',
				created_by BIGINT NOT NULL,
				creation_date TIMESTAMPTZ NOT NULL,
				last_modified TIMESTAMPTZ NOT NULL,
				PRIMARY KEY (document_id, version_number)
			)
		`, tables.Versions),
		fmt.Sprintf(`
			CREATE TABLE IF NOT EXISTS %s (
				document_id BIGINT NOT NULL,
				version_number INT NOT NULL DEFAULT -1,
				folder_id BIGINT NOT NULL,
				file_name TEXT NOT NULL DEFAULT '',
				created_by BIGINT NOT NULL,
				deleted_by BIGINT NOT NULL,
				deleted_at TIMESTAMPTZ NOT NULL,
				delete_seq BIGINT NOT NULL
			)
		`, tables.DocumentTombstones),
		fmt.Sprintf(`
			CREATE INDEX IF NOT EXISTS %s_folder_idx ON %s (folder_id, delete_seq)
		`, tables.DocumentTombstones, tables.DocumentTombstones),
		fmt.Sprintf(`
			CREATE TABLE IF NOT EXISTS %s (
				document_id BIGINT NOT NULL,
				version_number INT NOT NULL,
				folder_id BIGINT NOT NULL,
				file_name TEXT NOT NULL DEFAULT '',
				created_by BIGINT NOT NULL,
				deleted_by BIGINT NOT NULL,
				deleted_at TIMESTAMPTZ NOT NULL,
				delete_seq BIGINT NOT NULL
			)
		`, tables.VersionTombstones),
		fmt.Sprintf(`
			CREATE TABLE IF NOT EXISTS %s (
				document_id BIGINT PRIMARY KEY,
				owner BIGINT NOT NULL,
				scope TEXT NOT NULL,
				lock_type TEXT NOT NULL,
				timeout_at TIMESTAMPTZ
			)
		`, tables.Locks),
		fmt.Sprintf(`
			CREATE TABLE IF NOT EXISTS %s (
				domain TEXT PRIMARY KEY,
				next_id BIGINT NOT NULL
			)
		`, tables.Sequences),
		fmt.Sprintf(`
			CREATE TABLE IF NOT EXISTS %s (
				folder_id BIGINT NOT NULL,
				user_id BIGINT NOT NULL,
				visible BOOLEAN NOT NULL DEFAULT TRUE,
				read_all BOOLEAN NOT NULL DEFAULT FALSE,
				read_own BOOLEAN NOT NULL DEFAULT FALSE,
				write_all BOOLEAN NOT NULL DEFAULT FALSE,
				write_own BOOLEAN NOT NULL DEFAULT FALSE,
				delete_all BOOLEAN NOT NULL DEFAULT FALSE,
				delete_own BOOLEAN NOT NULL DEFAULT FALSE,
				can_create BOOLEAN NOT NULL DEFAULT FALSE,
				folder_admin BOOLEAN NOT NULL DEFAULT FALSE,
				PRIMARY KEY (folder_id, user_id)
			)
		`, tables.FolderPermissions),
	}

	for _, stmt := range statements {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("migrate schema: %w", err)
		}
	}

	return nil
}
