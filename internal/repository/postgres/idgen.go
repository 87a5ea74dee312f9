package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"docstore/internal/domain/repositories"
)

// PostgresIDGenerator hands out identifiers from a per-domain counter table.
// It always runs against the pool, never the caller's transaction: an id
// stays burned even when the surrounding save rolls back, so concurrent
// creators never contend on the same counter row longer than this statement.
type PostgresIDGenerator struct {
	pool   *pgxpool.Pool
	tables *TableNames
}

// NewIDGenerator creates a new id generator
func NewIDGenerator(config *RepositoryConfig) repositories.IDGenerator {
	return &PostgresIDGenerator{
		pool:   config.Pool,
		tables: config.Tables,
	}
}

// NextID allocates the next identifier in the given domain.
func (g *PostgresIDGenerator) NextID(ctx context.Context, domain string) (int64, error) {
	query := fmt.Sprintf(`
		INSERT INTO %s (domain, next_id)
		VALUES ($1, 1)
		ON CONFLICT (domain) DO UPDATE SET next_id = %s.next_id + 1
		RETURNING next_id
	`, g.tables.Sequences, g.tables.Sequences)

	var id int64
	if err := g.pool.QueryRow(ctx, query, domain).Scan(&id); err != nil {
		return 0, fmt.Errorf("next id for domain %s: %w", domain, err)
	}

	return id, nil
}
