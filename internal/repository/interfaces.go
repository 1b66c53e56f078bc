package repository

import (
	"context"
	"errors"
	"time"

	"course-authoring/internal/domain"
)

var (
	// ErrNotFound is returned by mutations on a missing record.
	ErrNotFound = errors.New("not found")
	// ErrVersionConflict is returned when the stored version differs from
	// the expected one.
	ErrVersionConflict = errors.New("version conflict")
)

// CourseRepository defines methods for course data access. Get methods
// return nil, nil when the record does not exist.
type CourseRepository interface {
	CreateCourse(ctx context.Context, c *domain.Course) error
	GetCourse(ctx context.Context, id string) (*domain.Course, error)
	// UpdateCourse writes every mutable column of c when the stored version
	// equals expectedVersion, then sets c.Version and c.UpdatedAt.
	UpdateCourse(ctx context.Context, c *domain.Course, expectedVersion int64) error
	// ListDueScheduled returns scheduled courses whose publish time is at or
	// before now, oldest first.
	ListDueScheduled(ctx context.Context, now time.Time, limit int) ([]domain.Course, error)
	// UpdateStats overwrites the collaborator-maintained statistics without
	// touching the version.
	UpdateStats(ctx context.Context, id string, stats domain.CourseStats) error
}

// AssetRepository defines methods for cover image storage.
type AssetRepository interface {
	CreateAsset(ctx context.Context, a *domain.Asset) error
	GetAsset(ctx context.Context, handle string) (*domain.Asset, error)
}

// OptionRepository defines methods for curated option sets.
type OptionRepository interface {
	ListOptions(ctx context.Context, kind domain.OptionKind) ([]domain.Option, error)
}
