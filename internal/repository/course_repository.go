package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"course-authoring/internal/domain"
)

// PostgresCourseRepository implements CourseRepository using PostgreSQL.
type PostgresCourseRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresCourseRepository creates a new PostgresCourseRepository.
func NewPostgresCourseRepository(pool *pgxpool.Pool) *PostgresCourseRepository {
	return &PostgresCourseRepository{pool: pool}
}

const courseColumns = `id, title, description, category, level, estimated_duration,
	learning_objectives, prerequisites, tags, language, welcome_message, cover_image,
	certification_available, is_public, is_published, published_at, scheduled_publish_at,
	lesson_count, student_count, total_duration, created_by, created_at, updated_at, version`

// CreateCourse inserts a new course.
func (r *PostgresCourseRepository) CreateCourse(ctx context.Context, c *domain.Course) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO courses (`+courseColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17,
			$18, $19, $20, $21, $22, $23, $24)
	`, c.ID, c.Title, c.Description, c.Category, c.Level, c.EstimatedDuration,
		nonNil(c.LearningObjectives), c.Prerequisites, nonNil(c.Tags), c.Language, c.WelcomeMessage, c.CoverImage,
		c.CertificationAvailable, c.IsPublic, c.IsPublished, c.PublishedAt, c.ScheduledPublishAt,
		c.LessonCount, c.StudentCount, c.TotalDuration, c.CreatedBy, c.CreatedAt, c.UpdatedAt, c.Version)
	if err != nil {
		return fmt.Errorf("insert course: %w", err)
	}
	return nil
}

// GetCourse retrieves a course by ID.
func (r *PostgresCourseRepository) GetCourse(ctx context.Context, id string) (*domain.Course, error) {
	c, err := scanCourse(r.pool.QueryRow(ctx, `SELECT `+courseColumns+` FROM courses WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get course: %w", err)
	}
	return c, nil
}

// UpdateCourse applies an optimistic-concurrency update. The statistics
// and audit columns other than updated_at are never written.
func (r *PostgresCourseRepository) UpdateCourse(ctx context.Context, c *domain.Course, expectedVersion int64) error {
	err := r.pool.QueryRow(ctx, `
		UPDATE courses
		SET title = $3, description = $4, category = $5, level = $6, estimated_duration = $7,
			learning_objectives = $8, prerequisites = $9, tags = $10, language = $11,
			welcome_message = $12, cover_image = $13, certification_available = $14,
			is_public = $15, is_published = $16, published_at = $17, scheduled_publish_at = $18,
			updated_at = $19, version = version + 1
		WHERE id = $1 AND version = $2
		RETURNING version, updated_at
	`, c.ID, expectedVersion, c.Title, c.Description, c.Category, c.Level, c.EstimatedDuration,
		nonNil(c.LearningObjectives), c.Prerequisites, nonNil(c.Tags), c.Language,
		c.WelcomeMessage, c.CoverImage, c.CertificationAvailable,
		c.IsPublic, c.IsPublished, c.PublishedAt, c.ScheduledPublishAt, c.UpdatedAt,
	).Scan(&c.Version, &c.UpdatedAt)

	if errors.Is(err, pgx.ErrNoRows) {
		var exists bool
		if err := r.pool.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM courses WHERE id = $1)`, c.ID).Scan(&exists); err != nil {
			return fmt.Errorf("check course: %w", err)
		}
		if !exists {
			return ErrNotFound
		}
		return ErrVersionConflict
	}
	if err != nil {
		return fmt.Errorf("update course: %w", err)
	}
	return nil
}

// ListDueScheduled returns courses whose scheduled publish time has passed.
func (r *PostgresCourseRepository) ListDueScheduled(ctx context.Context, now time.Time, limit int) ([]domain.Course, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+courseColumns+`
		FROM courses
		WHERE scheduled_publish_at IS NOT NULL AND scheduled_publish_at <= $1 AND NOT is_published
		ORDER BY scheduled_publish_at
		LIMIT $2
	`, now, limit)
	if err != nil {
		return nil, fmt.Errorf("query due courses: %w", err)
	}
	defer rows.Close()

	var out []domain.Course
	for rows.Next() {
		c, err := scanCourse(rows)
		if err != nil {
			return nil, fmt.Errorf("scan course: %w", err)
		}
		out = append(out, *c)
	}
	return out, rows.Err()
}

// UpdateStats overwrites the statistics columns.
func (r *PostgresCourseRepository) UpdateStats(ctx context.Context, id string, stats domain.CourseStats) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE courses SET lesson_count = $2, student_count = $3, total_duration = $4 WHERE id = $1
	`, id, stats.LessonCount, stats.StudentCount, stats.TotalDuration)
	if err != nil {
		return fmt.Errorf("update course stats: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func scanCourse(row pgx.Row) (*domain.Course, error) {
	var c domain.Course
	err := row.Scan(&c.ID, &c.Title, &c.Description, &c.Category, &c.Level, &c.EstimatedDuration,
		&c.LearningObjectives, &c.Prerequisites, &c.Tags, &c.Language, &c.WelcomeMessage, &c.CoverImage,
		&c.CertificationAvailable, &c.IsPublic, &c.IsPublished, &c.PublishedAt, &c.ScheduledPublishAt,
		&c.LessonCount, &c.StudentCount, &c.TotalDuration, &c.CreatedBy, &c.CreatedAt, &c.UpdatedAt, &c.Version)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func nonNil(list []string) []string {
	if list == nil {
		return []string{}
	}
	return list
}
