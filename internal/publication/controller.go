package publication

import (
	"context"
	"log/slog"
	"time"

	"course-authoring/internal/clock"
	"course-authoring/internal/domain"
	"course-authoring/internal/editor"
	"course-authoring/internal/logger"
	"course-authoring/internal/validator"
)

// Syncer is the part of the sync coordinator the controller drives.
type Syncer interface {
	WaitQuiet(ctx context.Context) error
	Save(ctx context.Context) error
	Refresh(ctx context.Context) error
	Publish(ctx context.Context) (*domain.Course, error)
	Unpublish(ctx context.Context) (*domain.Course, error)
	Schedule(ctx context.Context, at time.Time) (*domain.Course, error)
	CancelSchedule(ctx context.Context) (*domain.Course, error)
	SetVisibility(ctx context.Context, isPublic bool) (*domain.Course, error)
}

// Options configures a Controller.
type Options struct {
	Validator *validator.Validator
	Catalog   editor.CatalogSource
	Clock     clock.Clock
	MinLead   time.Duration
}

// Controller applies publication transitions to the course open in a form.
type Controller struct {
	fm   *editor.FormModel
	sc   Syncer
	opts Options
}

func NewController(fm *editor.FormModel, sc Syncer, opts Options) *Controller {
	if opts.Validator == nil {
		opts.Validator = validator.NewValidator()
	}
	if opts.Clock == nil {
		opts.Clock = clock.System{}
	}
	if opts.MinLead <= 0 {
		opts.MinLead = DefaultMinLead
	}
	return &Controller{fm: fm, sc: sc, opts: opts}
}

// State returns the publication state of the last known server record.
func (pc *Controller) State() domain.PublicationState {
	return pc.fm.Course().State()
}

// Publish makes the course live now.
func (pc *Controller) Publish(ctx context.Context) (*domain.Course, error) {
	return pc.gated(ctx, domain.OpPublish, nil, pc.sc.Publish)
}

// Schedule arms a timed publication at at.
func (pc *Controller) Schedule(ctx context.Context, at time.Time) (*domain.Course, error) {
	return pc.gated(ctx, domain.OpSchedule, &at, func(ctx context.Context) (*domain.Course, error) {
		return pc.sc.Schedule(ctx, at)
	})
}

// Unpublish returns a published course to draft.
func (pc *Controller) Unpublish(ctx context.Context) (*domain.Course, error) {
	return pc.plain(ctx, domain.OpUnpublish, pc.sc.Unpublish)
}

// CancelSchedule returns a scheduled course to draft.
func (pc *Controller) CancelSchedule(ctx context.Context) (*domain.Course, error) {
	return pc.plain(ctx, domain.OpCancelSchedule, pc.sc.CancelSchedule)
}

// SetVisibility toggles is_public. It never publishes by itself.
func (pc *Controller) SetVisibility(ctx context.Context, isPublic bool) (*domain.Course, error) {
	return pc.plain(ctx, domain.OpSetVisibility, func(ctx context.Context) (*domain.Course, error) {
		return pc.sc.SetVisibility(ctx, isPublic)
	})
}

// check resolves the transition from the current state. It returns the
// current record when the course is already in the target state.
func (pc *Controller) check(op domain.PublicationOp) (*domain.Course, bool, error) {
	current := pc.fm.Course()
	from := current.State()
	_, noop, ok := domain.Transition(from, op)
	if !ok {
		return nil, false, &TransitionError{From: from, Op: op}
	}
	if noop {
		return current, true, nil
	}
	return nil, false, nil
}

func (pc *Controller) plain(ctx context.Context, op domain.PublicationOp, fn func(context.Context) (*domain.Course, error)) (*domain.Course, error) {
	if current, done, err := pc.check(op); done || err != nil {
		return current, err
	}
	return fn(ctx)
}

// gated checks the publish gate locally, flushes pending edits and then
// issues the transition.
func (pc *Controller) gated(ctx context.Context, op domain.PublicationOp, at *time.Time, fn func(context.Context) (*domain.Course, error)) (*domain.Course, error) {
	if current, done, err := pc.check(op); done || err != nil {
		return current, err
	}
	if err := pc.refreshStats(ctx); err != nil {
		return nil, err
	}

	in := GateInput{
		Content:    pc.fm.Content(),
		ScheduleAt: at,
		Now:        pc.opts.Clock.Now(),
		MinLead:    pc.opts.MinLead,
	}
	if pc.opts.Catalog != nil {
		in.Catalog = pc.opts.Catalog.Catalog()
	}
	if course := pc.fm.Course(); course != nil {
		in.LessonCount = course.LessonCount
	}
	if gerr := Gate(pc.opts.Validator, in); gerr != nil {
		logger.Info("Publish gate failed",
			slog.String("course_id", pc.fm.CourseID()),
			slog.String("operation", string(op)),
			slog.Any("reasons", gerr.Reasons))
		return nil, gerr
	}

	if err := pc.flush(ctx); err != nil {
		return nil, err
	}
	return fn(ctx)
}

// refreshStats re-reads a saved course that looks lesson-less. Lesson
// counts change on the server without a version bump or push event, so the
// cached record may be behind.
func (pc *Controller) refreshStats(ctx context.Context) error {
	course := pc.fm.Course()
	if course == nil || course.ID == "" || course.LessonCount > 0 {
		return nil
	}
	if err := pc.sc.WaitQuiet(ctx); err != nil {
		return err
	}
	return pc.sc.Refresh(ctx)
}

// flush waits for in-flight saves and persists anything still local,
// including an inline cover image.
func (pc *Controller) flush(ctx context.Context) error {
	if err := pc.sc.WaitQuiet(ctx); err != nil {
		return err
	}
	if !pc.fm.Dirty() && !domain.IsDataURL(pc.fm.Content().CoverImage) {
		return nil
	}
	return pc.sc.Save(ctx)
}
