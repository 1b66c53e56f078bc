package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"course-authoring/internal/asset"
	"course-authoring/internal/domain"
	"course-authoring/internal/logger"
	"course-authoring/internal/metrics"
	"course-authoring/internal/publication"
	"course-authoring/internal/push"
	"course-authoring/internal/repository"
	"course-authoring/internal/validator"
)

// CourseService implements course persistence and the publication state
// machine on the server.
type CourseService struct {
	courseRepo repository.CourseRepository
	assetRepo  repository.AssetRepository
	optionRepo repository.OptionRepository
	validator  *validator.Validator
	publisher  push.Publisher

	maxImageBytes int
	now           func() time.Time
}

// CourseServiceConfig holds optional CourseService settings.
type CourseServiceConfig struct {
	MaxImageBytes int
	Now           func() time.Time
}

// NewCourseService creates a new CourseService. publisher may be nil.
func NewCourseService(
	courseRepo repository.CourseRepository,
	assetRepo repository.AssetRepository,
	optionRepo repository.OptionRepository,
	v *validator.Validator,
	publisher push.Publisher,
	cfg CourseServiceConfig,
) *CourseService {
	if cfg.MaxImageBytes <= 0 {
		cfg.MaxImageBytes = domain.MaxCoverImageBytes
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if v == nil {
		v = validator.NewValidator()
	}
	return &CourseService{
		courseRepo:    courseRepo,
		assetRepo:     assetRepo,
		optionRepo:    optionRepo,
		validator:     v,
		publisher:     publisher,
		maxImageBytes: cfg.MaxImageBytes,
		now:           cfg.Now,
	}
}

func (s *CourseService) ListOptions(ctx context.Context, kind domain.OptionKind) ([]domain.Option, error) {
	if !kind.Valid() {
		return nil, domain.NewAPIError(domain.CodeNotFound, "unknown option set %q", kind)
	}
	opts, err := s.optionRepo.ListOptions(ctx, kind)
	if err != nil {
		return nil, fmt.Errorf("list options: %w", err)
	}
	return opts, nil
}

func (s *CourseService) catalog(ctx context.Context) (domain.Catalog, error) {
	cat := domain.Catalog{}
	for _, kind := range domain.OptionKinds {
		opts, err := s.optionRepo.ListOptions(ctx, kind)
		if err != nil {
			return nil, fmt.Errorf("load %s options: %w", kind, err)
		}
		cat[kind] = opts
	}
	return cat, nil
}

// checkContent normalizes content and applies the persist-time rules.
func (s *CourseService) checkContent(ctx context.Context, content *domain.Content) error {
	content.Normalize()
	cat, err := s.catalog(ctx)
	if err != nil {
		return err
	}
	if errs := s.validator.ValidatePersist(content, cat); len(errs) > 0 {
		return &domain.APIError{
			Code:    domain.CodeValidation,
			Message: "course content is invalid",
			Details: &domain.ErrorDetails{Fields: errs},
		}
	}
	return nil
}

func (s *CourseService) CreateCourse(ctx context.Context, userID string, payload domain.CoursePayload) (*domain.Course, error) {
	content := payload.Content.Clone()
	if err := s.checkContent(ctx, &content); err != nil {
		metrics.ObserveMutation("create", string(domain.ErrorCode(err)))
		return nil, err
	}

	now := s.now().UTC()
	c := &domain.Course{
		ID:        uuid.New().String(),
		Content:   content,
		CreatedBy: userID,
		CreatedAt: now,
		UpdatedAt: now,
		Version:   1,
	}
	if err := s.courseRepo.CreateCourse(ctx, c); err != nil {
		metrics.ObserveMutation("create", "error")
		return nil, fmt.Errorf("create course: %w", err)
	}

	logger.Info("Course created",
		slog.String("course_id", c.ID),
		slog.String("created_by", userID))
	metrics.ObserveMutation("create", "ok")
	s.notify(ctx, c)
	return c, nil
}

func (s *CourseService) GetCourse(ctx context.Context, id string) (*domain.Course, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, notFound(id)
	}
	c, err := s.courseRepo.GetCourse(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get course: %w", err)
	}
	if c == nil {
		return nil, notFound(id)
	}
	return c, nil
}

func (s *CourseService) UpdateCourse(ctx context.Context, id string, payload domain.CoursePayload) (*domain.Course, error) {
	if payload.ExpectedVersion == nil {
		return nil, &domain.APIError{
			Code:    domain.CodeValidation,
			Message: "expected_version is required",
			Details: &domain.ErrorDetails{Fields: map[string]domain.Code{"expected_version": domain.CodeFieldRequired}},
		}
	}
	content := payload.Content.Clone()
	if err := s.checkContent(ctx, &content); err != nil {
		metrics.ObserveMutation("update", string(domain.ErrorCode(err)))
		return nil, err
	}

	return s.mutate(ctx, "update", id, *payload.ExpectedVersion, func(c *domain.Course) (bool, error) {
		c.Content = content
		return true, nil
	})
}

// mutate loads a course, checks the version, applies fn and stores the
// result. fn returns false when nothing changed, in which case the
// stored record is returned without a version bump.
func (s *CourseService) mutate(ctx context.Context, op, id string, expected int64, fn func(c *domain.Course) (bool, error)) (c *domain.Course, err error) {
	defer func() {
		result := "ok"
		if err != nil {
			result = string(domain.ErrorCode(err))
			if result == "" {
				result = "error"
			}
		}
		metrics.ObserveMutation(op, result)
	}()

	c, err = s.GetCourse(ctx, id)
	if err != nil {
		return nil, err
	}

	changed, err := fn(c)
	if err != nil {
		return nil, err
	}
	if !changed {
		return c, nil
	}
	if c.Version != expected {
		return nil, conflict(c.Version)
	}

	c.UpdatedAt = s.now().UTC()
	if err := s.courseRepo.UpdateCourse(ctx, c, expected); err != nil {
		switch {
		case errors.Is(err, repository.ErrVersionConflict):
			current, gerr := s.courseRepo.GetCourse(ctx, id)
			if gerr != nil || current == nil {
				return nil, conflict(0)
			}
			return nil, conflict(current.Version)
		case errors.Is(err, repository.ErrNotFound):
			return nil, notFound(id)
		}
		return nil, fmt.Errorf("update course: %w", err)
	}

	logger.Info("Course updated",
		slog.String("course_id", c.ID),
		slog.String("operation", op),
		slog.Int64("version", c.Version),
		slog.String("state", string(c.State())))
	s.notify(ctx, c)
	return c, nil
}

// transition resolves op against the current state. It reports false when
// the course is already in the target state.
func transition(c *domain.Course, op domain.PublicationOp) (bool, error) {
	from := c.State()
	_, noop, ok := domain.Transition(from, op)
	if !ok {
		return false, domain.NewAPIError(domain.CodeInvalidTransition, "cannot %s a %s course", op, from)
	}
	return !noop, nil
}

// gate checks the publish preconditions on the stored record.
func (s *CourseService) gate(ctx context.Context, c *domain.Course, at *time.Time) error {
	cat, err := s.catalog(ctx)
	if err != nil {
		return err
	}
	gerr := publication.Gate(s.validator, publication.GateInput{
		Content:     c.Content,
		Catalog:     cat,
		LessonCount: c.LessonCount,
		ScheduleAt:  at,
		Now:         s.now(),
	})
	if gerr == nil {
		return nil
	}
	details := &domain.ErrorDetails{Reasons: gerr.Reasons}
	if len(gerr.Fields) > 0 {
		details.Fields = gerr.Fields
	}
	return &domain.APIError{
		Code:    domain.CodePublishGateFailed,
		Message: gerr.Error(),
		Details: details,
	}
}

func (s *CourseService) Publish(ctx context.Context, id string, expectedVersion int64) (*domain.Course, error) {
	return s.mutate(ctx, string(domain.OpPublish), id, expectedVersion, func(c *domain.Course) (bool, error) {
		if changed, err := transition(c, domain.OpPublish); !changed || err != nil {
			return false, err
		}
		if err := s.gate(ctx, c, nil); err != nil {
			return false, err
		}
		now := s.now().UTC()
		c.IsPublished = true
		c.PublishedAt = &now
		c.ScheduledPublishAt = nil
		return true, nil
	})
}

func (s *CourseService) Unpublish(ctx context.Context, id string, expectedVersion int64) (*domain.Course, error) {
	return s.mutate(ctx, string(domain.OpUnpublish), id, expectedVersion, func(c *domain.Course) (bool, error) {
		if changed, err := transition(c, domain.OpUnpublish); !changed || err != nil {
			return false, err
		}
		// published_at is kept for audit.
		c.IsPublished = false
		return true, nil
	})
}

func (s *CourseService) Schedule(ctx context.Context, id string, at time.Time, expectedVersion int64) (*domain.Course, error) {
	return s.mutate(ctx, string(domain.OpSchedule), id, expectedVersion, func(c *domain.Course) (bool, error) {
		if _, err := transition(c, domain.OpSchedule); err != nil {
			return false, err
		}
		at := at.UTC()
		if c.ScheduledPublishAt != nil && c.ScheduledPublishAt.Equal(at) {
			return false, nil
		}
		if err := s.gate(ctx, c, &at); err != nil {
			return false, err
		}
		c.ScheduledPublishAt = &at
		return true, nil
	})
}

func (s *CourseService) CancelSchedule(ctx context.Context, id string, expectedVersion int64) (*domain.Course, error) {
	return s.mutate(ctx, string(domain.OpCancelSchedule), id, expectedVersion, func(c *domain.Course) (bool, error) {
		if changed, err := transition(c, domain.OpCancelSchedule); !changed || err != nil {
			return false, err
		}
		c.ScheduledPublishAt = nil
		return true, nil
	})
}

func (s *CourseService) SetVisibility(ctx context.Context, id string, isPublic bool, expectedVersion int64) (*domain.Course, error) {
	return s.mutate(ctx, string(domain.OpSetVisibility), id, expectedVersion, func(c *domain.Course) (bool, error) {
		if c.IsPublic == isPublic {
			return false, nil
		}
		c.IsPublic = isPublic
		return true, nil
	})
}

// FireScheduled publishes a due scheduled course, re-checking the gate.
// A failing gate clears the schedule instead.
func (s *CourseService) FireScheduled(ctx context.Context, c *domain.Course) (*domain.Course, error) {
	if c.State() != domain.StateScheduled || c.ScheduledPublishAt == nil {
		return c, nil
	}
	due := *c.ScheduledPublishAt
	log := logger.WithCourseID(c.ID)

	next := c.Clone()
	gateErr := s.gate(ctx, next, nil)
	now := s.now().UTC()
	if gateErr != nil {
		var apiErr *domain.APIError
		if !errors.As(gateErr, &apiErr) {
			return nil, gateErr
		}
		next.ScheduledPublishAt = nil
		log.Warn("Scheduled publish blocked by gate, clearing schedule",
			slog.Any("reasons", apiErr.Details.Reasons))
	} else {
		next.IsPublished = true
		next.PublishedAt = &now
		next.ScheduledPublishAt = nil
	}
	next.UpdatedAt = now

	if err := s.courseRepo.UpdateCourse(ctx, next, c.Version); err != nil {
		if errors.Is(err, repository.ErrVersionConflict) {
			// Edited since it was listed; the next tick sees the new record.
			metrics.ObserveScheduledPublish("conflict", 0)
			return nil, err
		}
		metrics.ObserveScheduledPublish("error", 0)
		return nil, fmt.Errorf("fire scheduled course: %w", err)
	}

	if gateErr != nil {
		metrics.ObserveScheduledPublish("gate_failed", 0)
	} else {
		metrics.ObserveScheduledPublish("published", now.Sub(due))
		log.Info("Scheduled course published",
			slog.Int64("version", next.Version),
			slog.Duration("lag", now.Sub(due)))
	}
	s.notify(ctx, next)
	return next, nil
}

func (s *CourseService) UpdateStats(ctx context.Context, id string, stats domain.CourseStats) (*domain.Course, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, notFound(id)
	}
	if err := s.courseRepo.UpdateStats(ctx, id, stats); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, notFound(id)
		}
		return nil, fmt.Errorf("update stats: %w", err)
	}
	return s.GetCourse(ctx, id)
}

func (s *CourseService) UploadImage(ctx context.Context, courseID string, data []byte) (string, error) {
	if _, err := s.GetCourse(ctx, courseID); err != nil {
		return "", err
	}
	if len(data) > s.maxImageBytes {
		return "", &domain.APIError{
			Code:    domain.CodeValidation,
			Message: fmt.Sprintf("image exceeds %d bytes", s.maxImageBytes),
			Details: &domain.ErrorDetails{Fields: map[string]domain.Code{domain.FieldCoverImage: domain.CodeAssetTooLarge}},
		}
	}
	mime, ok := asset.Sniff(data)
	if !ok {
		return "", &domain.APIError{
			Code:    domain.CodeValidation,
			Message: fmt.Sprintf("%s is not an accepted image type", mime),
			Details: &domain.ErrorDetails{Fields: map[string]domain.Code{domain.FieldCoverImage: domain.CodeAssetBadType}},
		}
	}

	a := &domain.Asset{
		Handle:    uuid.New().String(),
		CourseID:  courseID,
		MimeType:  mime,
		Data:      data,
		CreatedAt: s.now().UTC(),
	}
	if err := s.assetRepo.CreateAsset(ctx, a); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return "", notFound(courseID)
		}
		return "", fmt.Errorf("store image: %w", err)
	}
	metrics.AssetUploadBytes.Observe(float64(len(data)))
	logger.Info("Cover image stored",
		slog.String("course_id", courseID),
		slog.String("handle", a.Handle),
		slog.String("mime_type", mime),
		slog.Int("bytes", len(data)))
	return a.Handle, nil
}

func (s *CourseService) GetAsset(ctx context.Context, handle string) (*domain.Asset, error) {
	if _, err := uuid.Parse(handle); err != nil {
		return nil, domain.NewAPIError(domain.CodeNotFound, "asset %q not found", handle)
	}
	a, err := s.assetRepo.GetAsset(ctx, handle)
	if err != nil {
		return nil, fmt.Errorf("get asset: %w", err)
	}
	if a == nil {
		return nil, domain.NewAPIError(domain.CodeNotFound, "asset %q not found", handle)
	}
	return a, nil
}

func (s *CourseService) notify(ctx context.Context, c *domain.Course) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.Publish(ctx, domain.NewCourseUpdated(c)); err != nil {
		logger.Warn("Failed to publish course update",
			slog.String("course_id", c.ID),
			slog.String("error", err.Error()))
	}
}

func notFound(id string) error {
	return domain.NewAPIError(domain.CodeNotFound, "course %q not found", id)
}

func conflict(current int64) error {
	return &domain.APIError{
		Code:    domain.CodeConflict,
		Message: "course was modified by another request",
		Details: &domain.ErrorDetails{CurrentVersion: current},
	}
}

var _ CourseServiceInterface = (*CourseService)(nil)
