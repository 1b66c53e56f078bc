package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"gopkg.in/tomb.v2"

	"course-authoring/internal/domain"
	"course-authoring/internal/logger"
	"course-authoring/internal/repository"
)

const (
	// DefaultSchedulerInterval is how often due courses are polled.
	DefaultSchedulerInterval = 15 * time.Second
	// DefaultSchedulerBatchSize caps the courses fired per poll.
	DefaultSchedulerBatchSize = 50
)

// ScheduledFirer transitions a due scheduled course.
type ScheduledFirer interface {
	FireScheduled(ctx context.Context, c *domain.Course) (*domain.Course, error)
}

// Scheduler publishes scheduled courses once their time has come.
type Scheduler struct {
	t tomb.Tomb

	repo      repository.CourseRepository
	firer     ScheduledFirer
	interval  time.Duration
	batchSize int
	now       func() time.Time
}

// SchedulerConfig holds optional Scheduler settings.
type SchedulerConfig struct {
	Interval  time.Duration
	BatchSize int
	Now       func() time.Time
}

// NewScheduler creates a Scheduler. Call Start to begin polling.
func NewScheduler(repo repository.CourseRepository, firer ScheduledFirer, cfg SchedulerConfig) *Scheduler {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultSchedulerInterval
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultSchedulerBatchSize
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Scheduler{
		repo:      repo,
		firer:     firer,
		interval:  cfg.Interval,
		batchSize: cfg.BatchSize,
		now:       cfg.Now,
	}
}

// Start launches the polling loop.
func (s *Scheduler) Start() {
	s.t.Go(s.loop)
}

// Stop halts the loop and waits for an in-progress poll to finish.
func (s *Scheduler) Stop() error {
	s.t.Kill(nil)
	return s.t.Wait()
}

func (s *Scheduler) loop() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		<-s.t.Dying()
		cancel()
	}()

	logger.Info("Scheduler started",
		slog.Duration("interval", s.interval),
		slog.Int("batch_size", s.batchSize))

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.t.Dying():
			logger.Info("Scheduler stopped")
			return nil
		case <-ticker.C:
			if _, err := s.RunOnce(ctx); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("Scheduler poll failed", slog.String("error", err.Error()))
			}
		}
	}
}

// RunOnce fires every course due now and returns how many were handled.
func (s *Scheduler) RunOnce(ctx context.Context) (int, error) {
	due, err := s.repo.ListDueScheduled(ctx, s.now(), s.batchSize)
	if err != nil {
		return 0, fmt.Errorf("list due courses: %w", err)
	}

	fired := 0
	for i := range due {
		if err := ctx.Err(); err != nil {
			return fired, err
		}
		if _, err := s.firer.FireScheduled(ctx, &due[i]); err != nil {
			if errors.Is(err, repository.ErrVersionConflict) {
				continue
			}
			logger.Error("Failed to fire scheduled course",
				slog.String("course_id", due[i].ID),
				slog.String("error", err.Error()))
			continue
		}
		fired++
	}
	return fired, nil
}
