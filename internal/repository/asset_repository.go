package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"course-authoring/internal/domain"
)

// PostgresAssetRepository implements AssetRepository using PostgreSQL.
type PostgresAssetRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresAssetRepository creates a new PostgresAssetRepository.
func NewPostgresAssetRepository(pool *pgxpool.Pool) *PostgresAssetRepository {
	return &PostgresAssetRepository{pool: pool}
}

// CreateAsset stores an image. A missing course yields ErrNotFound.
func (r *PostgresAssetRepository) CreateAsset(ctx context.Context, a *domain.Asset) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO course_assets (handle, course_id, mime_type, data, size_bytes, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, a.Handle, a.CourseID, a.MimeType, a.Data, len(a.Data), a.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23503" {
			return ErrNotFound
		}
		return fmt.Errorf("insert asset: %w", err)
	}
	return nil
}

// GetAsset retrieves an image by handle.
func (r *PostgresAssetRepository) GetAsset(ctx context.Context, handle string) (*domain.Asset, error) {
	var a domain.Asset
	err := r.pool.QueryRow(ctx, `
		SELECT handle, course_id, mime_type, data, created_at
		FROM course_assets
		WHERE handle = $1
	`, handle).Scan(&a.Handle, &a.CourseID, &a.MimeType, &a.Data, &a.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get asset: %w", err)
	}
	return &a, nil
}
