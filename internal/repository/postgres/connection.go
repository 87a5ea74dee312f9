package postgres

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"
	"docstore/internal/domain/repositories"
)

// RepositoryConfig holds configuration for repository implementations
type RepositoryConfig struct {
	Pool   *pgxpool.Pool
	Tables *TableNames
	Logger *slog.Logger
}

// TableNames holds dynamically prefixed table names
type TableNames struct {
	Documents          string
	Versions           string
	DocumentTombstones string
	VersionTombstones  string
	Locks              string
	Sequences          string
	FolderPermissions  string
}

// NewTableNames creates table names with the given prefix
func NewTableNames(prefix string) *TableNames {
	return &TableNames{
		Documents:          fmt.Sprintf("%sdocuments", prefix),
		Versions:           fmt.Sprintf("%sversions", prefix),
		DocumentTombstones: fmt.Sprintf("%sdocument_tombstones", prefix),
		VersionTombstones:  fmt.Sprintf("%sversion_tombstones", prefix),
		Locks:              fmt.Sprintf("%slocks", prefix),
		Sequences:          fmt.Sprintf("%ssequence_ids", prefix),
		FolderPermissions:  fmt.Sprintf("%sfolder_permissions", prefix),
	}
}

// CreateConnectionPool creates a new pgx connection pool.
//
// Our use of fmt.Sprintf for dynamic table prefixes (dev_, test_, prod_) is
// safe with prepared statements because the SQL string is interpolated
// before being sent to the database; each environment gets its own prepared
// statements.
func CreateConnectionPool(ctx context.Context, databaseURL string) (*pgxpool.Pool, error) {
	config, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse connection string: %w", err)
	}

	config.MaxConns = 25
	config.MinConns = 5

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return pool, nil
}

// GetExecutor returns the appropriate query executor for the context.
// If a transaction is present in the context, it returns the transaction.
// Otherwise, it returns the provided pool. This enables repositories to
// automatically participate in transactions when they exist.
func GetExecutor(ctx context.Context, pool *pgxpool.Pool) repositories.DBTX {
	if tx := repositories.GetTx(ctx); tx != nil {
		return tx
	}
	return pool
}
