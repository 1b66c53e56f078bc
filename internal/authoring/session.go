// Package authoring assembles the editing components for one user working
// on one course: form model, sync coordinator, asset ingestor, publication
// controller, local drafts and curated options.
package authoring

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"time"

	"course-authoring/internal/asset"
	"course-authoring/internal/catalog"
	"course-authoring/internal/clock"
	"course-authoring/internal/domain"
	"course-authoring/internal/draft"
	"course-authoring/internal/editor"
	"course-authoring/internal/logger"
	"course-authoring/internal/publication"
	"course-authoring/internal/syncer"
	"course-authoring/internal/validator"
)

// Backend is the persistence API as used by a session.
type Backend interface {
	syncer.API
	asset.Uploader
	catalog.Fetcher
}

// EventSource streams push events for a course.
type EventSource interface {
	Watch(ctx context.Context, courseID string, fn func(domain.PushEvent)) error
}

// Options configures a Session.
type Options struct {
	UserID        string
	Drafts        *draft.Store
	Clock         clock.Clock
	AutosaveDelay time.Duration
	MaxImageBytes int
	// MinLead is how far ahead a schedule must be.
	MinLead time.Duration
}

// Session is one user's editing session.
type Session struct {
	Form        *editor.FormModel
	Sync        *syncer.Coordinator
	Assets      *asset.Ingestor
	Publication *publication.Controller
	Catalog     *catalog.Cache

	mu          sync.Mutex
	stopWatch   context.CancelFunc
	watchDone   chan struct{}
	watchCourse string
}

// New builds a session against backend. Drafts default to process memory.
func New(backend Backend, opts Options) *Session {
	if opts.Clock == nil {
		opts.Clock = clock.System{}
	}
	if opts.Drafts == nil {
		opts.Drafts = draft.NewStore(draft.NewMemoryBackend())
	}
	v := validator.NewValidator()
	options := catalog.New(backend)

	fm := editor.New(editor.Options{
		UserID:        opts.UserID,
		Validator:     v,
		Catalog:       options,
		Drafts:        opts.Drafts,
		Clock:         opts.Clock,
		AutosaveDelay: opts.AutosaveDelay,
	})
	ingestor := asset.New(backend, opts.MaxImageBytes)
	sc := syncer.NewCoordinator(backend, fm, syncer.WithAssetResolver(ingestor))
	pc := publication.NewController(fm, sc, publication.Options{
		Validator: v,
		Catalog:   options,
		Clock:     opts.Clock,
		MinLead:   opts.MinLead,
	})

	return &Session{
		Form:        fm,
		Sync:        sc,
		Assets:      ingestor,
		Publication: pc,
		Catalog:     options,
	}
}

// Open loads the curated options and hydrates the form for courseID, or a
// blank form when courseID is empty. Option sets that fail to load are
// logged and left unchecked.
func (s *Session) Open(ctx context.Context, courseID string) error {
	if err := s.Catalog.Load(ctx); err != nil {
		logger.Warn("Editing with partial option sets", slog.String("error", err.Error()))
	}
	return s.Sync.Open(ctx, courseID)
}

// Follow consumes push events for the open course from src in the
// background. It replaces any previous subscription.
func (s *Session) Follow(src EventSource) error {
	id := s.Form.CourseID()
	if id == "" {
		return syncer.ErrNotSaved
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopLocked()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	s.stopWatch, s.watchDone, s.watchCourse = cancel, done, id

	go func() {
		defer close(done)
		err := src.Watch(ctx, id, s.Sync.HandlePush)
		if err != nil && !errors.Is(err, context.Canceled) {
			logger.Warn("Course event stream ended",
				slog.String("course_id", id),
				slog.String("error", err.Error()))
		}
	}()
	return nil
}

// Following returns the course whose events are being consumed, or "".
func (s *Session) Following() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.watchCourse
}

func (s *Session) stopLocked() {
	if s.stopWatch == nil {
		return
	}
	s.stopWatch()
	<-s.watchDone
	s.stopWatch, s.watchDone, s.watchCourse = nil, nil, ""
}

// SelectCover reads an image into the form as an inline preview. Nothing
// is uploaded until the next manual save.
func (s *Session) SelectCover(r io.Reader) error {
	return s.Assets.Select(s.Form, r)
}

// RemoveCover clears the cover image.
func (s *Session) RemoveCover() error {
	return s.Assets.Remove(s.Form)
}

// Save issues a manual save, uploading an inline cover first.
func (s *Session) Save(ctx context.Context) error {
	return s.Sync.Save(ctx)
}

// Close stops event consumption and the autosave timer. It reports whether
// unsaved changes were left in the local draft.
func (s *Session) Close() bool {
	s.mu.Lock()
	s.stopLocked()
	s.mu.Unlock()
	return s.Form.Close()
}
