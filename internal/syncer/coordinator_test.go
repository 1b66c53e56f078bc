package syncer_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"course-authoring/internal/clock"
	"course-authoring/internal/domain"
	"course-authoring/internal/draft"
	"course-authoring/internal/editor"
	"course-authoring/internal/syncer"
)

var epoch = time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC)

// fakeAPI is an in-memory persistence API with version checks.
type fakeAPI struct {
	mu      sync.Mutex
	courses map[string]*domain.Course
	nextID  int

	creates  int
	updates  []domain.Content
	conflict int // number of upcoming updates to reject

	// block, when set, holds UpdateCourse until it is closed or ctx ends.
	block chan struct{}
}

func newFakeAPI() *fakeAPI {
	return &fakeAPI{courses: map[string]*domain.Course{}}
}

func (f *fakeAPI) seed(c *domain.Course) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.courses[c.ID] = c.Clone()
}

func (f *fakeAPI) get(id string) *domain.Course {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.courses[id].Clone()
}

func (f *fakeAPI) GetCourse(ctx context.Context, id string) (*domain.Course, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.courses[id]
	if !ok {
		return nil, &syncer.Error{Kind: domain.CodeNotFound}
	}
	return c.Clone(), nil
}

func (f *fakeAPI) CreateCourse(ctx context.Context, content domain.Content) (*domain.Course, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	f.creates++
	c := &domain.Course{
		ID:        fmt.Sprintf("c%d", f.nextID),
		Content:   content.Clone(),
		CreatedAt: epoch,
		UpdatedAt: epoch,
		Version:   1,
	}
	f.courses[c.ID] = c
	return c.Clone(), nil
}

func (f *fakeAPI) UpdateCourse(ctx context.Context, id string, content domain.Content, expected int64) (*domain.Course, error) {
	f.mu.Lock()
	block := f.block
	f.mu.Unlock()
	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.courses[id]
	if !ok {
		return nil, &syncer.Error{Kind: domain.CodeNotFound}
	}
	if f.conflict > 0 || c.Version != expected {
		if f.conflict > 0 {
			f.conflict--
		}
		return nil, &syncer.Error{Kind: domain.CodeVersionConflict, Status: 409}
	}
	f.updates = append(f.updates, content.Clone())
	c.Content = content.Clone()
	c.Version++
	c.UpdatedAt = c.UpdatedAt.Add(time.Minute)
	return c.Clone(), nil
}

func (f *fakeAPI) transition(id string, expected int64, apply func(c *domain.Course)) (*domain.Course, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.courses[id]
	if !ok {
		return nil, &syncer.Error{Kind: domain.CodeNotFound}
	}
	if c.Version != expected {
		return nil, &syncer.Error{Kind: domain.CodeVersionConflict, Status: 409}
	}
	apply(c)
	c.Version++
	return c.Clone(), nil
}

func (f *fakeAPI) Publish(ctx context.Context, id string, v int64) (*domain.Course, error) {
	return f.transition(id, v, func(c *domain.Course) {
		now := epoch
		c.IsPublished, c.PublishedAt, c.ScheduledPublishAt = true, &now, nil
	})
}

func (f *fakeAPI) Unpublish(ctx context.Context, id string, v int64) (*domain.Course, error) {
	return f.transition(id, v, func(c *domain.Course) { c.IsPublished = false })
}

func (f *fakeAPI) Schedule(ctx context.Context, id string, at time.Time, v int64) (*domain.Course, error) {
	return f.transition(id, v, func(c *domain.Course) { c.ScheduledPublishAt = &at })
}

func (f *fakeAPI) CancelSchedule(ctx context.Context, id string, v int64) (*domain.Course, error) {
	return f.transition(id, v, func(c *domain.Course) { c.ScheduledPublishAt = nil })
}

func (f *fakeAPI) SetVisibility(ctx context.Context, id string, isPublic bool, v int64) (*domain.Course, error) {
	return f.transition(id, v, func(c *domain.Course) { c.IsPublic = isPublic })
}

type assetFunc func(ctx context.Context, courseID, cover string) (string, error)

func (f assetFunc) Resolve(ctx context.Context, courseID, cover string) (string, error) {
	return f(ctx, courseID, cover)
}

type fixture struct {
	api   *fakeAPI
	fm    *editor.FormModel
	clock *clock.Fake
	sc    *syncer.Coordinator
}

func newFixture(t *testing.T, opts ...syncer.Option) *fixture {
	t.Helper()
	c := clock.NewFake(epoch)
	fm := editor.New(editor.Options{
		UserID:        "u1",
		Drafts:        draft.NewStore(draft.NewMemoryBackend()),
		Clock:         c,
		AutosaveDelay: 30 * time.Second,
	})
	api := newFakeAPI()
	return &fixture{api: api, fm: fm, clock: c, sc: syncer.NewCoordinator(api, fm, opts...)}
}

func existingCourse() *domain.Course {
	return &domain.Course{
		ID: "c9",
		Content: domain.Content{
			Title:       "Intro to Go",
			Description: "Original description",
			Tags:        []string{"go"},
		},
		LessonCount: 1,
		UpdatedAt:   epoch.Add(-time.Hour),
		Version:     3,
	}
}

func TestCoordinator_SaveCreatesThenUpdates(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.sc.Open(ctx, ""))

	require.NoError(t, f.fm.SetField(domain.FieldTitle, "Go 101"))
	require.NoError(t, f.sc.Save(ctx))

	id := f.fm.CourseID()
	require.NotEmpty(t, id)
	assert.False(t, f.fm.Dirty())
	assert.Equal(t, int64(1), f.fm.ServerVersion())

	require.NoError(t, f.fm.SetField(domain.FieldDescription, "Learn Go"))
	require.NoError(t, f.sc.Save(ctx))

	assert.Equal(t, 1, f.api.creates)
	stored := f.api.get(id)
	assert.Equal(t, "Go 101", stored.Title)
	assert.Equal(t, "Learn Go", stored.Description)
	assert.Equal(t, int64(2), f.fm.ServerVersion())
	_, v := f.fm.LastSaved()
	assert.Equal(t, int64(2), v)
}

func TestCoordinator_AutosaveFiresAfterDebounce(t *testing.T) {
	f := newFixture(t)
	f.api.seed(existingCourse())
	require.NoError(t, f.sc.Open(context.Background(), "c9"))

	require.NoError(t, f.fm.SetField(domain.FieldTitle, "Go in Practice"))
	f.clock.Advance(29 * time.Second)
	assert.Empty(t, f.api.updates)

	f.clock.Advance(time.Second)
	require.Len(t, f.api.updates, 1)
	assert.Equal(t, "Go in Practice", f.api.updates[0].Title)
	assert.False(t, f.fm.Dirty())
	assert.Equal(t, editor.AutosaveIdle, f.fm.AutosaveState())
}

func TestCoordinator_ConflictMergesLocalChanges(t *testing.T) {
	f := newFixture(t)
	f.api.seed(existingCourse())
	ctx := context.Background()
	require.NoError(t, f.sc.Open(ctx, "c9"))

	// Another author edits the description in the meantime.
	remote := existingCourse()
	remote.Description = "Edited elsewhere"
	remote.Version = 4
	f.api.seed(remote)

	require.NoError(t, f.fm.SetField(domain.FieldTitle, "Local title"))
	require.NoError(t, f.sc.Save(ctx))

	stored := f.api.get("c9")
	assert.Equal(t, "Local title", stored.Title)
	assert.Equal(t, "Edited elsewhere", stored.Description)
	assert.Equal(t, int64(5), stored.Version)

	assert.Equal(t, "Edited elsewhere", f.fm.Content().Description)
	assert.False(t, f.fm.Dirty())
	assert.False(t, f.fm.Conflicted())
}

func TestCoordinator_RepeatedConflictPausesAutosave(t *testing.T) {
	f := newFixture(t)
	f.api.seed(existingCourse())
	ctx := context.Background()
	require.NoError(t, f.sc.Open(ctx, "c9"))

	f.api.conflict = 5
	require.NoError(t, f.fm.SetField(domain.FieldTitle, "Local title"))

	err := f.sc.Save(ctx)
	assert.True(t, syncer.IsKind(err, domain.CodeVersionConflict))
	assert.True(t, f.fm.Conflicted())
	assert.True(t, f.fm.Dirty())
	assert.Equal(t, 0, f.clock.Pending())

	f.api.conflict = 0
	require.NoError(t, f.sc.ResolveConflict(ctx, true))
	assert.False(t, f.fm.Conflicted())
	assert.Equal(t, "Local title", f.api.get("c9").Title)
}

func TestCoordinator_ResolveConflictDiscard(t *testing.T) {
	f := newFixture(t)
	f.api.seed(existingCourse())
	ctx := context.Background()
	require.NoError(t, f.sc.Open(ctx, "c9"))

	f.api.conflict = 5
	require.NoError(t, f.fm.SetField(domain.FieldTitle, "Local title"))
	require.Error(t, f.sc.Save(ctx))

	require.NoError(t, f.sc.ResolveConflict(ctx, false))
	assert.False(t, f.fm.Dirty())
	assert.Equal(t, "Intro to Go", f.fm.Content().Title)
}

func TestCoordinator_NewerSaveSupersedesInFlight(t *testing.T) {
	f := newFixture(t)
	f.api.seed(existingCourse())
	ctx := context.Background()
	require.NoError(t, f.sc.Open(ctx, "c9"))

	f.api.block = make(chan struct{})
	require.NoError(t, f.fm.SetField(domain.FieldTitle, "First"))

	first := make(chan error, 1)
	go func() { first <- f.sc.Save(ctx) }()
	require.Eventually(t, f.sc.Busy, time.Second, time.Millisecond)

	require.NoError(t, f.fm.SetField(domain.FieldTitle, "Second"))
	f.api.mu.Lock()
	f.api.block = nil
	f.api.mu.Unlock()
	require.NoError(t, f.sc.Save(ctx))

	err := <-first
	assert.ErrorIs(t, err, syncer.ErrSuperseded)
	assert.ErrorIs(t, err, context.Canceled)

	require.Len(t, f.api.updates, 1)
	assert.Equal(t, "Second", f.api.updates[0].Title)
	assert.Equal(t, "Second", f.fm.Content().Title)
	assert.False(t, f.fm.Dirty())
}

func TestCoordinator_AutosaveWithholdsInlineCover(t *testing.T) {
	f := newFixture(t)
	f.api.seed(existingCourse())
	require.NoError(t, f.sc.Open(context.Background(), "c9"))

	inline := domain.EncodeDataURL("image/png", []byte("png"))
	require.NoError(t, f.fm.SetField(domain.FieldCoverImage, inline))
	require.NoError(t, f.fm.SetField(domain.FieldTitle, "With cover"))
	f.clock.Advance(30 * time.Second)

	require.Len(t, f.api.updates, 1)
	assert.Equal(t, "With cover", f.api.updates[0].Title)
	assert.Empty(t, f.api.updates[0].CoverImage)
	assert.True(t, f.fm.Dirty())
	assert.Equal(t, []string{domain.FieldCoverImage}, f.fm.ChangedFields())
}

func TestCoordinator_ManualSaveUploadsCover(t *testing.T) {
	var uploadedFor string
	assets := assetFunc(func(ctx context.Context, courseID, cover string) (string, error) {
		uploadedFor = courseID
		return "0f8fad5b-d9cb-469f-a165-70867728950e", nil
	})
	f := newFixture(t, syncer.WithAssetResolver(assets))
	ctx := context.Background()
	require.NoError(t, f.sc.Open(ctx, ""))

	require.NoError(t, f.fm.SetField(domain.FieldTitle, "Covered"))
	require.NoError(t, f.fm.SetField(domain.FieldCoverImage, domain.EncodeDataURL("image/png", []byte("png"))))
	require.NoError(t, f.sc.Save(ctx))

	id := f.fm.CourseID()
	assert.Equal(t, id, uploadedFor)
	assert.Equal(t, 1, f.api.creates)
	stored := f.api.get(id)
	assert.Equal(t, "0f8fad5b-d9cb-469f-a165-70867728950e", stored.CoverImage)
	assert.Equal(t, "Covered", stored.Title)
	assert.False(t, f.fm.Dirty())
}

func TestCoordinator_CoverUploadFailureKeepsForm(t *testing.T) {
	uploadErr := &syncer.Error{Kind: domain.CodeAssetUploadFailed}
	assets := assetFunc(func(ctx context.Context, courseID, cover string) (string, error) {
		return "", uploadErr
	})
	f := newFixture(t, syncer.WithAssetResolver(assets))
	f.api.seed(existingCourse())
	ctx := context.Background()
	require.NoError(t, f.sc.Open(ctx, "c9"))

	inline := domain.EncodeDataURL("image/png", []byte("png"))
	require.NoError(t, f.fm.SetField(domain.FieldCoverImage, inline))

	err := f.sc.Save(ctx)
	assert.True(t, syncer.IsKind(err, domain.CodeAssetUploadFailed))
	assert.Equal(t, inline, f.fm.Content().CoverImage)
	assert.True(t, f.fm.Dirty())
	assert.Empty(t, f.api.updates)
}

func TestCoordinator_HandlePushFlagsRemoteChanges(t *testing.T) {
	f := newFixture(t)
	f.api.seed(existingCourse())
	ctx := context.Background()
	require.NoError(t, f.sc.Open(ctx, "c9"))
	require.NoError(t, f.fm.SetField(domain.FieldTitle, "Local"))

	remote := existingCourse()
	remote.Description = "Remote"
	remote.Version = 4
	f.api.seed(remote)

	f.sc.HandlePush(domain.PushEvent{Type: domain.EventCourseUpdated, CourseID: "c9", Version: 4})
	assert.True(t, f.fm.RemoteChangesAvailable())
	assert.Equal(t, "Original description", f.fm.Content().Description)

	require.NoError(t, f.sc.Refresh(ctx))
	assert.False(t, f.fm.RemoteChangesAvailable())
	assert.Equal(t, "Remote", f.fm.Content().Description)
	assert.Equal(t, "Local", f.fm.Content().Title)
}

func TestCoordinator_HydrateUsesCache(t *testing.T) {
	f := newFixture(t)
	f.api.seed(existingCourse())
	ctx := context.Background()

	first, err := f.sc.Hydrate(ctx, "c9")
	require.NoError(t, err)

	changed := existingCourse()
	changed.Title = "Changed"
	changed.Version = 4
	f.api.seed(changed)

	cached, err := f.sc.Hydrate(ctx, "c9")
	require.NoError(t, err)
	assert.Equal(t, first.Title, cached.Title)

	f.sc.HandlePush(domain.NewCourseUpdated(changed))
	fresh, err := f.sc.Hydrate(ctx, "c9")
	require.NoError(t, err)
	assert.Equal(t, "Changed", fresh.Title)
}

func TestCoordinator_PublicationMutations(t *testing.T) {
	f := newFixture(t)
	f.api.seed(existingCourse())
	ctx := context.Background()
	require.NoError(t, f.sc.Open(ctx, "c9"))

	course, err := f.sc.Publish(ctx)
	require.NoError(t, err)
	assert.Equal(t, domain.StatePublished, course.State())
	assert.Equal(t, int64(4), f.fm.ServerVersion())

	course, err = f.sc.SetVisibility(ctx, true)
	require.NoError(t, err)
	assert.True(t, course.VisibleToStudents())

	course, err = f.sc.Unpublish(ctx)
	require.NoError(t, err)
	assert.Equal(t, domain.StateDraft, course.State())
	assert.True(t, course.IsPublic)
	assert.False(t, f.fm.Dirty())
}

func TestCoordinator_MutationRetriesStaleVersion(t *testing.T) {
	f := newFixture(t)
	f.api.seed(existingCourse())
	ctx := context.Background()
	require.NoError(t, f.sc.Open(ctx, "c9"))

	bumped := existingCourse()
	bumped.Version = 6
	f.api.seed(bumped)

	at := epoch.Add(48 * time.Hour)
	course, err := f.sc.Schedule(ctx, at)
	require.NoError(t, err)
	assert.Equal(t, domain.StateScheduled, course.State())
	assert.Equal(t, int64(7), course.Version)

	course, err = f.sc.CancelSchedule(ctx)
	require.NoError(t, err)
	assert.Equal(t, domain.StateDraft, course.State())
}

func TestCoordinator_MutationRequiresSavedCourse(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.sc.Open(context.Background(), ""))

	_, err := f.sc.Publish(context.Background())
	assert.True(t, errors.Is(err, syncer.ErrNotSaved))
}

func TestCoordinator_WaitQuiet(t *testing.T) {
	f := newFixture(t)
	f.api.seed(existingCourse())
	ctx := context.Background()
	require.NoError(t, f.sc.Open(ctx, "c9"))
	require.NoError(t, f.sc.WaitQuiet(ctx))

	f.api.block = make(chan struct{})
	require.NoError(t, f.fm.SetField(domain.FieldTitle, "Slow"))
	go func() { _ = f.sc.Save(ctx) }()
	require.Eventually(t, f.sc.Busy, time.Second, time.Millisecond)

	short, cancel := context.WithTimeout(ctx, 10*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, f.sc.WaitQuiet(short), context.DeadlineExceeded)

	close(f.api.block)
	require.NoError(t, f.sc.WaitQuiet(ctx))
	assert.Equal(t, "Slow", f.api.get("c9").Title)
}

func TestLocalChangesWin(t *testing.T) {
	server := existingCourse()
	server.Description = "server"
	ticket := editor.SaveTicket{
		Payload: domain.Content{Title: "local", Description: "stale"},
		Changed: []string{domain.FieldTitle},
	}

	merged := syncer.LocalChangesWin(ticket, server)
	assert.Equal(t, "local", merged.Title)
	assert.Equal(t, "server", merged.Description)
	assert.Equal(t, []string{"go"}, merged.Tags)
}
