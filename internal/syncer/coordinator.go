package syncer

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"course-authoring/internal/domain"
	"course-authoring/internal/editor"
	"course-authoring/internal/logger"
	"course-authoring/internal/metrics"
)

// Mode distinguishes user-triggered saves from timer-driven ones.
type Mode int

const (
	ModeManual Mode = iota
	ModeAutosave
)

func (m Mode) String() string {
	if m == ModeAutosave {
		return "autosave"
	}
	return "manual"
}

// AssetResolver uploads an inline cover image and returns its handle.
type AssetResolver interface {
	Resolve(ctx context.Context, courseID, cover string) (string, error)
}

// Resolver merges local edits into a newer server record after a version conflict.
type Resolver func(ticket editor.SaveTicket, server *domain.Course) domain.Content

// LocalChangesWin keeps the server value for every field the user did not
// edit since the last save and the local value for every field they did.
func LocalChangesWin(ticket editor.SaveTicket, server *domain.Course) domain.Content {
	merged := server.Content.Clone()
	for _, f := range ticket.Changed {
		merged.CopyField(f, &ticket.Payload)
	}
	return merged
}

// maxConflicts is the number of consecutive version conflicts a save
// absorbs before giving up.
const maxConflicts = 2

// Coordinator serializes saves of one form and applies their results.
type Coordinator struct {
	api     API
	fm      *editor.FormModel
	assets  AssetResolver
	resolve Resolver

	mu       sync.Mutex
	gen      uint64
	cancel   context.CancelFunc
	creating bool
	active   int
	quiet    chan struct{}
	cache    map[string]*domain.Course
}

// Option customizes a Coordinator.
type Option func(*Coordinator)

// WithAssetResolver enables cover uploads on manual save.
func WithAssetResolver(a AssetResolver) Option {
	return func(c *Coordinator) { c.assets = a }
}

// WithResolver replaces the conflict merge policy.
func WithResolver(r Resolver) Option {
	return func(c *Coordinator) { c.resolve = r }
}

// NewCoordinator binds api to fm and installs itself as fm's autosave target.
func NewCoordinator(api API, fm *editor.FormModel, opts ...Option) *Coordinator {
	quiet := make(chan struct{})
	close(quiet)
	c := &Coordinator{
		api:     api,
		fm:      fm,
		resolve: LocalChangesWin,
		quiet:   quiet,
		cache:   make(map[string]*domain.Course),
	}
	for _, opt := range opts {
		opt(c)
	}
	fm.SetSaver(c)
	return c
}

// Open hydrates the form for courseID, or for a new course when empty.
func (c *Coordinator) Open(ctx context.Context, courseID string) error {
	if courseID == "" {
		c.fm.Open(nil)
		return nil
	}
	course, err := c.Hydrate(ctx, courseID)
	if err != nil {
		return err
	}
	c.fm.Open(course)
	return nil
}

// Hydrate returns the server record, served from cache until invalidated.
func (c *Coordinator) Hydrate(ctx context.Context, id string) (*domain.Course, error) {
	c.mu.Lock()
	cached, ok := c.cache[id]
	c.mu.Unlock()
	if ok {
		return cached.Clone(), nil
	}
	course, err := c.api.GetCourse(ctx, id)
	if err != nil {
		return nil, err
	}
	c.remember(course)
	return course.Clone(), nil
}

// Invalidate drops the cached record for id.
func (c *Coordinator) Invalidate(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.cache, id)
}

func (c *Coordinator) remember(course *domain.Course) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if prev, ok := c.cache[course.ID]; ok && prev.Version > course.Version {
		return
	}
	c.cache[course.ID] = course.Clone()
}

// HandlePush reacts to a course_updated notification. Local edits are
// never overwritten; the form only learns that a newer version exists.
func (c *Coordinator) HandlePush(evt domain.PushEvent) {
	if evt.Type != domain.EventCourseUpdated {
		return
	}
	c.mu.Lock()
	if cached, ok := c.cache[evt.CourseID]; ok && cached.Version < evt.Version {
		delete(c.cache, evt.CourseID)
	}
	c.mu.Unlock()
	if evt.CourseID == c.fm.CourseID() {
		c.fm.NoteRemoteVersion(evt.Version)
	}
}

// Save persists the form immediately, superseding any save in flight.
func (c *Coordinator) Save(ctx context.Context) error {
	token := c.fm.BeginSave()
	err := c.save(ctx, ModeManual)
	c.fm.EndSave(token, err)
	return err
}

// Autosave is invoked by the form's debounce timer.
func (c *Coordinator) Autosave(ctx context.Context) error {
	return c.save(ctx, ModeAutosave)
}

func (c *Coordinator) save(ctx context.Context, mode Mode) (err error) {
	ctx, gen, done, err := c.begin(ctx)
	if err != nil {
		return err
	}
	defer done()
	defer func() {
		result := "ok"
		switch {
		case errors.Is(err, context.Canceled):
			result = "superseded"
		case err != nil:
			var se *Error
			if errors.As(err, &se) {
				result = string(se.Kind)
			} else {
				result = "error"
			}
		}
		metrics.ClientSavesTotal.WithLabelValues(mode.String(), result).Inc()
	}()

	withhold := mode == ModeAutosave || c.assets == nil
	if !withhold {
		if err := c.resolveCover(ctx, gen); err != nil {
			return err
		}
	}

	ticket, err := c.fm.PrepareSave(withhold)
	if err != nil {
		return err
	}
	return c.persist(ctx, gen, ticket)
}

// resolveCover uploads an inline cover. A course that does not exist yet is
// created first so the upload has an id to attach to.
func (c *Coordinator) resolveCover(ctx context.Context, gen uint64) error {
	cover := c.fm.Content().CoverImage
	if !domain.IsDataURL(cover) {
		return nil
	}
	if c.fm.CourseID() == "" {
		ticket, err := c.fm.PrepareSave(true)
		if err != nil {
			return err
		}
		if err := c.persist(ctx, gen, ticket); err != nil {
			return err
		}
	}
	handle, err := c.assets.Resolve(ctx, c.fm.CourseID(), cover)
	if err != nil {
		return err
	}
	if c.superseded(gen) {
		return ErrSuperseded
	}
	c.fm.ReplaceCover(cover, handle)
	return nil
}

func (c *Coordinator) persist(ctx context.Context, gen uint64, ticket editor.SaveTicket) error {
	log := logger.WithCourseID(ticket.CourseID)
	for conflicts := 0; ; {
		var saved *domain.Course
		var err error
		if ticket.CourseID == "" {
			c.setCreating(true)
			saved, err = c.api.CreateCourse(ctx, ticket.Payload)
			// A created course is always recorded so a superseding save
			// updates it instead of creating a duplicate.
			if err == nil {
				c.fm.CommitSave(ticket, saved)
				c.remember(saved)
			}
			c.setCreating(false)
			if c.superseded(gen) {
				return ErrSuperseded
			}
			return err
		}

		saved, err = c.api.UpdateCourse(ctx, ticket.CourseID, ticket.Payload, ticket.ExpectedVersion)
		if c.superseded(gen) {
			return ErrSuperseded
		}
		if err == nil {
			c.fm.CommitSave(ticket, saved)
			c.remember(saved)
			return nil
		}
		if !IsKind(err, domain.CodeVersionConflict) {
			return err
		}

		conflicts++
		if conflicts >= maxConflicts {
			log.Warn("Save conflict persisted, pausing autosave",
				slog.Int64("expected_version", ticket.ExpectedVersion))
			c.fm.PauseAutosave()
			return err
		}

		c.Invalidate(ticket.CourseID)
		server, ferr := c.api.GetCourse(ctx, ticket.CourseID)
		if ferr != nil {
			return ferr
		}
		c.remember(server)
		if c.superseded(gen) {
			return ErrSuperseded
		}
		log.Info("Resolving save conflict",
			slog.Int64("expected_version", ticket.ExpectedVersion),
			slog.Int64("server_version", server.Version),
			slog.Any("local_fields", ticket.Changed))

		next, ok := c.fm.ApplyMerge(ticket, server, c.resolve(ticket, server))
		if !ok {
			return ErrSuperseded
		}
		ticket = next
	}
}

// begin registers a new save, cancelling the previous one. A create in
// flight is waited for rather than cancelled.
func (c *Coordinator) begin(ctx context.Context) (context.Context, uint64, func(), error) {
	for {
		c.mu.Lock()
		if !c.creating {
			break
		}
		quiet := c.quiet
		c.mu.Unlock()
		select {
		case <-quiet:
		case <-ctx.Done():
			return nil, 0, nil, ctx.Err()
		}
	}
	defer c.mu.Unlock()

	if c.cancel != nil {
		c.cancel()
	}
	c.gen++
	gen := c.gen
	ctx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	if c.active == 0 {
		c.quiet = make(chan struct{})
	}
	c.active++

	done := func() {
		cancel()
		c.mu.Lock()
		defer c.mu.Unlock()
		c.active--
		if c.active == 0 {
			close(c.quiet)
		}
	}
	return ctx, gen, done, nil
}

func (c *Coordinator) superseded(gen uint64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return gen != c.gen
}

func (c *Coordinator) setCreating(v bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.creating = v
}

// WaitQuiet blocks until no save is in flight.
func (c *Coordinator) WaitQuiet(ctx context.Context) error {
	c.mu.Lock()
	quiet := c.quiet
	c.mu.Unlock()
	select {
	case <-quiet:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Busy reports whether a save is in flight.
func (c *Coordinator) Busy() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.active > 0
}

// Discard drops local changes and reloads the server record.
func (c *Coordinator) Discard(ctx context.Context) error {
	c.supersedeAll()
	id := c.fm.CourseID()
	if id == "" {
		c.fm.Discard(nil)
		return nil
	}
	c.Invalidate(id)
	fresh, err := c.Hydrate(ctx, id)
	if err != nil {
		return err
	}
	c.fm.Discard(fresh)
	return nil
}

// Refresh pulls the latest server record into the form, keeping local edits.
func (c *Coordinator) Refresh(ctx context.Context) error {
	id := c.fm.CourseID()
	if id == "" {
		return nil
	}
	c.Invalidate(id)
	fresh, err := c.Hydrate(ctx, id)
	if err != nil {
		return err
	}
	c.fm.ApplyServerRecord(fresh)
	return nil
}

// ResolveConflict ends a paused conflict. keepLocal rebases the local edits
// on the latest server record and saves; otherwise local edits are dropped.
func (c *Coordinator) ResolveConflict(ctx context.Context, keepLocal bool) error {
	if !keepLocal {
		return c.Discard(ctx)
	}
	if err := c.Refresh(ctx); err != nil {
		return err
	}
	c.fm.ResumeAutosave()
	return c.Save(ctx)
}

func (c *Coordinator) supersedeAll() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cancel != nil {
		c.cancel()
	}
	c.gen++
}

type mutation func(ctx context.Context, id string, expectedVersion int64) (*domain.Course, error)

// mutate runs a publication operation against the saved course once no
// save is in flight. A stale version is refreshed and retried once.
func (c *Coordinator) mutate(ctx context.Context, op domain.PublicationOp, fn mutation) (*domain.Course, error) {
	id := c.fm.CourseID()
	if id == "" {
		return nil, ErrNotSaved
	}
	if err := c.WaitQuiet(ctx); err != nil {
		return nil, err
	}
	log := logger.WithCourseID(id)

	course, err := fn(ctx, id, c.fm.ServerVersion())
	if IsKind(err, domain.CodeVersionConflict) {
		log.Info("Publication request raced another write, retrying", slog.String("operation", string(op)))
		if rerr := c.Refresh(ctx); rerr != nil {
			return nil, rerr
		}
		course, err = fn(ctx, id, c.fm.ServerVersion())
	}
	if err != nil {
		return nil, err
	}
	c.remember(course)
	c.fm.ApplyServerRecord(course)
	log.Info("Publication state changed",
		slog.String("operation", string(op)),
		slog.String("state", string(course.State())),
		slog.Int64("version", course.Version))
	return course, nil
}

func (c *Coordinator) Publish(ctx context.Context) (*domain.Course, error) {
	return c.mutate(ctx, domain.OpPublish, c.api.Publish)
}

func (c *Coordinator) Unpublish(ctx context.Context) (*domain.Course, error) {
	return c.mutate(ctx, domain.OpUnpublish, c.api.Unpublish)
}

func (c *Coordinator) Schedule(ctx context.Context, at time.Time) (*domain.Course, error) {
	return c.mutate(ctx, domain.OpSchedule, func(ctx context.Context, id string, v int64) (*domain.Course, error) {
		return c.api.Schedule(ctx, id, at, v)
	})
}

func (c *Coordinator) CancelSchedule(ctx context.Context) (*domain.Course, error) {
	return c.mutate(ctx, domain.OpCancelSchedule, c.api.CancelSchedule)
}

func (c *Coordinator) SetVisibility(ctx context.Context, isPublic bool) (*domain.Course, error) {
	return c.mutate(ctx, domain.OpSetVisibility, func(ctx context.Context, id string, v int64) (*domain.Course, error) {
		return c.api.SetVisibility(ctx, id, isPublic, v)
	})
}
