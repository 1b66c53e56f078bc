package service

import (
	"context"
	"time"

	"course-authoring/internal/domain"
)

// CourseServiceInterface defines the course operations exposed over HTTP.
// Used for dependency injection and mocking in tests.
type CourseServiceInterface interface {
	// ListOptions returns a curated option set.
	ListOptions(ctx context.Context, kind domain.OptionKind) ([]domain.Option, error)
	// CreateCourse creates a draft course owned by userID.
	CreateCourse(ctx context.Context, userID string, payload domain.CoursePayload) (*domain.Course, error)
	GetCourse(ctx context.Context, id string) (*domain.Course, error)
	// UpdateCourse replaces the content of a course at the expected version.
	UpdateCourse(ctx context.Context, id string, payload domain.CoursePayload) (*domain.Course, error)
	Publish(ctx context.Context, id string, expectedVersion int64) (*domain.Course, error)
	Unpublish(ctx context.Context, id string, expectedVersion int64) (*domain.Course, error)
	Schedule(ctx context.Context, id string, at time.Time, expectedVersion int64) (*domain.Course, error)
	CancelSchedule(ctx context.Context, id string, expectedVersion int64) (*domain.Course, error)
	SetVisibility(ctx context.Context, id string, isPublic bool, expectedVersion int64) (*domain.Course, error)
	// UpdateStats records collaborator-maintained counters.
	UpdateStats(ctx context.Context, id string, stats domain.CourseStats) (*domain.Course, error)
	// UploadImage stores a cover image and returns its handle.
	UploadImage(ctx context.Context, courseID string, data []byte) (string, error)
	GetAsset(ctx context.Context, handle string) (*domain.Asset, error)
}
