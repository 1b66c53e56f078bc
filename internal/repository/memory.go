package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"course-authoring/internal/domain"
)

// MemoryCourseRepository implements CourseRepository in process memory.
type MemoryCourseRepository struct {
	mu      sync.RWMutex
	courses map[string]*domain.Course
}

func NewMemoryCourseRepository() *MemoryCourseRepository {
	return &MemoryCourseRepository{courses: make(map[string]*domain.Course)}
}

func (r *MemoryCourseRepository) CreateCourse(ctx context.Context, c *domain.Course) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.courses[c.ID] = c.Clone()
	return nil
}

func (r *MemoryCourseRepository) GetCourse(ctx context.Context, id string) (*domain.Course, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.courses[id].Clone(), nil
}

func (r *MemoryCourseRepository) UpdateCourse(ctx context.Context, c *domain.Course, expectedVersion int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored, ok := r.courses[c.ID]
	if !ok {
		return ErrNotFound
	}
	if stored.Version != expectedVersion {
		return ErrVersionConflict
	}
	next := c.Clone()
	next.LessonCount, next.StudentCount, next.TotalDuration = stored.LessonCount, stored.StudentCount, stored.TotalDuration
	next.CreatedBy, next.CreatedAt = stored.CreatedBy, stored.CreatedAt
	next.Version = stored.Version + 1
	r.courses[c.ID] = next

	c.Version = next.Version
	c.UpdatedAt = next.UpdatedAt
	return nil
}

func (r *MemoryCourseRepository) ListDueScheduled(ctx context.Context, now time.Time, limit int) ([]domain.Course, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []domain.Course
	for _, c := range r.courses {
		if c.ScheduledPublishAt != nil && !c.IsPublished && !c.ScheduledPublishAt.After(now) {
			out = append(out, *c.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].ScheduledPublishAt.Before(*out[j].ScheduledPublishAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *MemoryCourseRepository) UpdateStats(ctx context.Context, id string, stats domain.CourseStats) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.courses[id]
	if !ok {
		return ErrNotFound
	}
	c.LessonCount, c.StudentCount, c.TotalDuration = stats.LessonCount, stats.StudentCount, stats.TotalDuration
	return nil
}

// MemoryAssetRepository implements AssetRepository in process memory.
type MemoryAssetRepository struct {
	courses CourseRepository

	mu     sync.RWMutex
	assets map[string]*domain.Asset
}

// NewMemoryAssetRepository stores assets for courses found in courses.
func NewMemoryAssetRepository(courses CourseRepository) *MemoryAssetRepository {
	return &MemoryAssetRepository{courses: courses, assets: make(map[string]*domain.Asset)}
}

func (r *MemoryAssetRepository) CreateAsset(ctx context.Context, a *domain.Asset) error {
	c, err := r.courses.GetCourse(ctx, a.CourseID)
	if err != nil {
		return err
	}
	if c == nil {
		return ErrNotFound
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *a
	cp.Data = append([]byte(nil), a.Data...)
	r.assets[a.Handle] = &cp
	return nil
}

func (r *MemoryAssetRepository) GetAsset(ctx context.Context, handle string) (*domain.Asset, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.assets[handle]
	if !ok {
		return nil, nil
	}
	cp := *a
	return &cp, nil
}

// MemoryOptionRepository serves a fixed catalog.
type MemoryOptionRepository struct {
	catalog domain.Catalog
}

func NewMemoryOptionRepository(catalog domain.Catalog) *MemoryOptionRepository {
	return &MemoryOptionRepository{catalog: catalog}
}

func (r *MemoryOptionRepository) ListOptions(ctx context.Context, kind domain.OptionKind) ([]domain.Option, error) {
	return append([]domain.Option{}, r.catalog[kind]...), nil
}

// DefaultCatalog mirrors the options seeded by the migrations.
func DefaultCatalog() domain.Catalog {
	return domain.Catalog{
		domain.OptionCategories: {
			{Value: "programming", Label: "Programming"},
			{Value: "data-science", Label: "Data Science"},
			{Value: "design", Label: "Design"},
			{Value: "business", Label: "Business"},
			{Value: "languages", Label: "Languages"},
		},
		domain.OptionLevels: {
			{Value: "beginner", Label: "Beginner"},
			{Value: "intermediate", Label: "Intermediate"},
			{Value: "advanced", Label: "Advanced"},
		},
		domain.OptionDurations: {
			{Value: "lt-1h", Label: "Less than 1 hour"},
			{Value: "1-3h", Label: "1 to 3 hours"},
			{Value: "3-6h", Label: "3 to 6 hours"},
			{Value: "6-10h", Label: "6 to 10 hours"},
			{Value: "gt-10h", Label: "More than 10 hours"},
		},
		domain.OptionTags: {
			{Value: "go", Label: "Go"},
			{Value: "web", Label: "Web"},
			{Value: "databases", Label: "Databases"},
			{Value: "testing", Label: "Testing"},
		},
		domain.OptionLanguages: {
			{Value: "en", Label: "English"},
			{Value: "es", Label: "Spanish"},
			{Value: "fr", Label: "French"},
			{Value: "de", Label: "German"},
			{Value: "pt-BR", Label: "Portuguese (Brazil)"},
		},
	}
}

var (
	_ CourseRepository = (*PostgresCourseRepository)(nil)
	_ CourseRepository = (*MemoryCourseRepository)(nil)
	_ AssetRepository  = (*PostgresAssetRepository)(nil)
	_ AssetRepository  = (*MemoryAssetRepository)(nil)
	_ OptionRepository = (*PostgresOptionRepository)(nil)
	_ OptionRepository = (*MemoryOptionRepository)(nil)
)
