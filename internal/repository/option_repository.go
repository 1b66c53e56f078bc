package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"course-authoring/internal/domain"
)

// PostgresOptionRepository implements OptionRepository using PostgreSQL.
type PostgresOptionRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresOptionRepository creates a new PostgresOptionRepository.
func NewPostgresOptionRepository(pool *pgxpool.Pool) *PostgresOptionRepository {
	return &PostgresOptionRepository{pool: pool}
}

// ListOptions returns the options of kind in display order.
func (r *PostgresOptionRepository) ListOptions(ctx context.Context, kind domain.OptionKind) ([]domain.Option, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT value, label FROM course_options WHERE kind = $1 ORDER BY position, value
	`, string(kind))
	if err != nil {
		return nil, fmt.Errorf("query options: %w", err)
	}
	defer rows.Close()

	out := []domain.Option{}
	for rows.Next() {
		var o domain.Option
		if err := rows.Scan(&o.Value, &o.Label); err != nil {
			return nil, fmt.Errorf("scan option: %w", err)
		}
		out = append(out, o)
	}
	return out, rows.Err()
}
