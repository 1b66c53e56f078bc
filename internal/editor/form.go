// Package editor holds the in-memory state of a course being edited: field
// values, step navigation, validation feedback and the autosave timer.
package editor

import (
	"context"
	"encoding/json"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"course-authoring/internal/clock"
	"course-authoring/internal/domain"
	"course-authoring/internal/draft"
	"course-authoring/internal/logger"
	"course-authoring/internal/validator"
)

// Steps is the number of form steps.
const Steps = 3

const (
	// DefaultAutosaveDelay is the debounce between the last edit and an autosave.
	DefaultAutosaveDelay = 30 * time.Second
	// DefaultMaxAutosaveBackoff caps the re-arm delay after failed autosaves.
	DefaultMaxAutosaveBackoff = 5 * time.Minute
)

// CatalogSource provides the curated option sets currently loaded.
type CatalogSource interface {
	Catalog() domain.Catalog
}

// Saver performs an autosave when the debounce timer fires.
type Saver interface {
	Autosave(ctx context.Context) error
}

// Options configures a FormModel.
type Options struct {
	UserID             string
	Validator          *validator.Validator
	Catalog            CatalogSource
	Drafts             *draft.Store
	Clock              clock.Clock
	AutosaveDelay      time.Duration
	MaxAutosaveBackoff time.Duration
	DraftSkew          time.Duration
}

// FormModel is safe for concurrent use.
type FormModel struct {
	mu   sync.Mutex
	opts Options

	courseID string
	course   *domain.Course
	content  domain.Content
	baseline domain.Content
	step     int

	dirty   bool
	touched map[string]bool
	changed map[string]uint64
	editSeq uint64
	errors  validator.Errors

	lastSavedAt      time.Time
	lastSavedVersion int64
	serverVersion    int64
	remoteVersion    int64
	conflicted       bool

	draftExtra map[string]json.RawMessage

	session uint64
	closed  bool
	ctx     context.Context
	cancel  context.CancelFunc

	saver    Saver
	state    AutosaveState
	timer    clock.Timer
	timerSeq uint64
	inflight int
	failures int
}

// New creates an empty form for a new course.
func New(opts Options) *FormModel {
	if opts.Validator == nil {
		opts.Validator = validator.NewValidator()
	}
	if opts.Clock == nil {
		opts.Clock = clock.System{}
	}
	if opts.AutosaveDelay <= 0 {
		opts.AutosaveDelay = DefaultAutosaveDelay
	}
	if opts.MaxAutosaveBackoff <= 0 {
		opts.MaxAutosaveBackoff = DefaultMaxAutosaveBackoff
	}
	if opts.DraftSkew <= 0 {
		opts.DraftSkew = draft.DefaultSkew
	}
	fm := &FormModel{opts: opts}
	fm.resetLocked(nil)
	return fm
}

// SetSaver installs the autosave target.
func (fm *FormModel) SetSaver(s Saver) {
	fm.mu.Lock()
	defer fm.mu.Unlock()
	fm.saver = s
}

// Open hydrates the form from the server record, or starts a new course
// when course is nil. A local draft newer than the record takes precedence
// and leaves the form dirty.
func (fm *FormModel) Open(course *domain.Course) {
	fm.mu.Lock()
	defer fm.mu.Unlock()

	fm.resetLocked(course)

	snap, ok := fm.readDraftLocked()
	if !ok {
		snap = nil
	}
	switch draft.Merge(course, snap, fm.opts.DraftSkew) {
	case draft.SourceDraft:
		fm.content = snap.Content.Clone()
		fm.step = clampStep(snap.Step)
		fm.draftExtra = snap.Extra
		for _, f := range domain.ContentFields {
			if !domain.FieldEqual(f, &fm.content, &fm.baseline) {
				fm.editSeq++
				fm.changed[f] = fm.editSeq
			}
		}
		fm.dirty = len(fm.changed) > 0
		logger.Info("Restored local draft",
			slog.String("course_id", fm.courseID),
			slog.Int("changed_fields", len(fm.changed)))
		if fm.dirty {
			fm.scheduleAutosaveLocked()
		}
	case draft.SourceServer:
		if snap != nil {
			fm.clearDraftLocked()
		}
	}
}

// Discard drops unsaved changes and the local draft, rehydrating from fresh.
func (fm *FormModel) Discard(fresh *domain.Course) {
	fm.mu.Lock()
	defer fm.mu.Unlock()

	fm.clearDraftLocked()
	fm.resetLocked(fresh)
}

// Close stops the autosave timer and abandons in-flight saves. The local
// draft is kept. It reports whether unsaved changes existed.
func (fm *FormModel) Close() bool {
	fm.mu.Lock()
	defer fm.mu.Unlock()

	fm.stopTimerLocked()
	fm.cancel()
	fm.closed = true
	fm.session++
	fm.state = AutosaveIdle
	return fm.dirty
}

func (fm *FormModel) resetLocked(course *domain.Course) {
	fm.stopTimerLocked()
	if fm.cancel != nil {
		fm.cancel()
	}
	fm.ctx, fm.cancel = context.WithCancel(context.Background())
	fm.session++
	fm.closed = false
	fm.state = AutosaveIdle
	fm.inflight = 0
	fm.failures = 0

	fm.course = course.Clone()
	fm.courseID = ""
	fm.content = domain.Content{}
	fm.lastSavedAt = time.Time{}
	fm.lastSavedVersion = 0
	fm.serverVersion = 0
	fm.remoteVersion = 0
	if course != nil {
		fm.courseID = course.ID
		fm.content = course.Content.Clone()
		fm.lastSavedAt = course.UpdatedAt
		fm.lastSavedVersion = course.Version
		fm.serverVersion = course.Version
	}
	fm.baseline = fm.content.Clone()
	fm.step = 1
	fm.dirty = false
	fm.conflicted = false
	fm.touched = make(map[string]bool)
	fm.changed = make(map[string]uint64)
	fm.errors = validator.Errors{}
	fm.draftExtra = nil
}

// SetField assigns a content field. Title and description are truncated to
// their maximum lengths. Validation problems are recorded in Errors and do
// not produce an error return.
func (fm *FormModel) SetField(name string, value any) error {
	fm.mu.Lock()
	defer fm.mu.Unlock()

	if fm.closed {
		return ErrClosed
	}
	if !domain.IsContentField(name) {
		return ErrUnknownField
	}

	next := fm.content.Clone()
	switch name {
	case domain.FieldTitle, domain.FieldDescription, domain.FieldCategory, domain.FieldLevel,
		domain.FieldEstimatedDuration, domain.FieldPrerequisites, domain.FieldLanguage,
		domain.FieldWelcomeMessage, domain.FieldCoverImage:
		s, ok := value.(string)
		if !ok {
			return ErrFieldType
		}
		switch name {
		case domain.FieldTitle:
			s = truncateRunes(s, domain.TitleMaxLength)
		case domain.FieldDescription:
			s = truncateRunes(s, domain.DescriptionMaxLength)
		}
		setString(&next, name, s)
	case domain.FieldLearningObjectives, domain.FieldTags:
		list, ok := value.([]string)
		if !ok {
			return ErrFieldType
		}
		list = append([]string(nil), list...)
		if name == domain.FieldTags {
			next.Tags = uniqueTags(list)
		} else {
			next.LearningObjectives = list
		}
	case domain.FieldCertificationAvailable, domain.FieldIsPublic:
		b, ok := value.(bool)
		if !ok {
			return ErrFieldType
		}
		if name == domain.FieldIsPublic {
			next.IsPublic = b
		} else {
			next.CertificationAvailable = b
		}
	}

	fm.applyLocked(name, &next)
	return nil
}

// AddObjective appends a learning objective. Blank entries are allowed
// while editing and dropped when saving.
func (fm *FormModel) AddObjective(text string) error {
	fm.mu.Lock()
	defer fm.mu.Unlock()

	if fm.closed {
		return ErrClosed
	}
	next := fm.content.Clone()
	next.LearningObjectives = append(next.LearningObjectives, text)
	fm.applyLocked(domain.FieldLearningObjectives, &next)
	return nil
}

// UpdateObjective replaces the objective at index.
func (fm *FormModel) UpdateObjective(index int, text string) error {
	fm.mu.Lock()
	defer fm.mu.Unlock()

	if fm.closed {
		return ErrClosed
	}
	if index < 0 || index >= len(fm.content.LearningObjectives) {
		return ErrIndex
	}
	next := fm.content.Clone()
	next.LearningObjectives[index] = text
	fm.applyLocked(domain.FieldLearningObjectives, &next)
	return nil
}

// RemoveObjective deletes the objective at index.
func (fm *FormModel) RemoveObjective(index int) error {
	fm.mu.Lock()
	defer fm.mu.Unlock()

	if fm.closed {
		return ErrClosed
	}
	if index < 0 || index >= len(fm.content.LearningObjectives) {
		return ErrIndex
	}
	next := fm.content.Clone()
	next.LearningObjectives = append(next.LearningObjectives[:index], next.LearningObjectives[index+1:]...)
	fm.applyLocked(domain.FieldLearningObjectives, &next)
	return nil
}

// AddTag adds value to the tag set. Blank and duplicate values are ignored.
func (fm *FormModel) AddTag(value string) error {
	fm.mu.Lock()
	defer fm.mu.Unlock()

	if fm.closed {
		return ErrClosed
	}
	value = strings.TrimSpace(value)
	if value == "" || containsString(fm.content.Tags, value) {
		return nil
	}
	next := fm.content.Clone()
	next.Tags = append(next.Tags, value)
	fm.applyLocked(domain.FieldTags, &next)
	return nil
}

// RemoveTag removes value from the tag set.
func (fm *FormModel) RemoveTag(value string) error {
	fm.mu.Lock()
	defer fm.mu.Unlock()

	if fm.closed {
		return ErrClosed
	}
	value = strings.TrimSpace(value)
	if !containsString(fm.content.Tags, value) {
		return nil
	}
	next := fm.content.Clone()
	kept := next.Tags[:0]
	for _, t := range next.Tags {
		if t != value {
			kept = append(kept, t)
		}
	}
	next.Tags = kept
	fm.applyLocked(domain.FieldTags, &next)
	return nil
}

// SetStep moves to step n. Moving forward requires every step being left
// behind to validate; on failure the step is unchanged, the blocking errors
// are recorded and returned as a *StepError. Moving back is always allowed.
func (fm *FormModel) SetStep(n int) error {
	fm.mu.Lock()
	defer fm.mu.Unlock()

	if fm.closed {
		return ErrClosed
	}
	if n < 1 || n > Steps {
		return ErrInvalidStep
	}
	for s := fm.step; s < n; s++ {
		errs := fm.opts.Validator.Validate(&fm.content, fm.catalogLocked(), validator.StepScope(s))
		if len(errs) > 0 {
			for field, code := range errs {
				fm.errors[field] = code
				fm.touched[field] = true
			}
			return &StepError{Step: s, Errors: errs}
		}
	}
	fm.step = n
	fm.writeDraftLocked()
	return nil
}

// applyLocked commits a single-field change computed into next.
func (fm *FormModel) applyLocked(name string, next *domain.Content) {
	fm.touched[name] = true
	if domain.FieldEqual(name, next, &fm.content) {
		return
	}
	fm.content.CopyField(name, next)
	fm.editSeq++
	if domain.FieldEqual(name, &fm.content, &fm.baseline) {
		delete(fm.changed, name)
	} else {
		fm.changed[name] = fm.editSeq
	}
	fm.dirty = len(fm.changed) > 0
	fm.revalidateLocked(name)
	fm.syncDraftLocked()
	fm.scheduleAutosaveLocked()
}

func (fm *FormModel) revalidateLocked(name string) {
	errs := fm.opts.Validator.Validate(&fm.content, fm.catalogLocked(), validator.FieldScope(name))
	if code, ok := errs[name]; ok {
		fm.errors[name] = code
	} else {
		delete(fm.errors, name)
	}
}

func (fm *FormModel) catalogLocked() domain.Catalog {
	if fm.opts.Catalog == nil {
		return domain.Catalog{}
	}
	return fm.opts.Catalog.Catalog()
}

// ApplyServerRecord adopts a newer server record without discarding local
// edits: fields not changed locally take the server value.
func (fm *FormModel) ApplyServerRecord(course *domain.Course) {
	fm.mu.Lock()
	defer fm.mu.Unlock()

	if fm.closed || course == nil || (fm.courseID != "" && course.ID != fm.courseID) {
		return
	}
	if course.Version < fm.serverVersion {
		return
	}
	fm.course = course.Clone()
	fm.courseID = course.ID
	fm.serverVersion = course.Version
	fm.baseline = course.Content.Clone()
	for _, f := range domain.ContentFields {
		if _, local := fm.changed[f]; !local {
			fm.content.CopyField(f, &course.Content)
		} else if domain.FieldEqual(f, &fm.content, &fm.baseline) {
			delete(fm.changed, f)
		}
	}
	fm.dirty = len(fm.changed) > 0
	if fm.remoteVersion <= course.Version {
		fm.remoteVersion = 0
	}
	fm.syncDraftLocked()
}

// NoteRemoteVersion records that the server holds version v, typically
// from a push notification. Local state is not modified.
func (fm *FormModel) NoteRemoteVersion(v int64) {
	fm.mu.Lock()
	defer fm.mu.Unlock()

	if v > fm.serverVersion && v > fm.remoteVersion {
		fm.remoteVersion = v
	}
}

func (fm *FormModel) readDraftLocked() (*draft.Snapshot, bool) {
	if fm.opts.Drafts == nil {
		return nil, false
	}
	return fm.opts.Drafts.Read(draft.Key(fm.courseID, fm.opts.UserID))
}

func (fm *FormModel) writeDraftLocked() {
	if fm.opts.Drafts == nil || !fm.dirty {
		return
	}
	fm.opts.Drafts.Write(draft.Key(fm.courseID, fm.opts.UserID), &draft.Snapshot{
		Step:           fm.step,
		Content:        fm.content.Clone(),
		SavedLocallyAt: fm.opts.Clock.Now().UTC(),
		Extra:          fm.draftExtra,
	})
}

// syncDraftLocked keeps the stored draft in step with the form: a form
// with no unsaved changes leaves no draft behind.
func (fm *FormModel) syncDraftLocked() {
	if fm.dirty {
		fm.writeDraftLocked()
	} else {
		fm.clearDraftLocked()
	}
}

func (fm *FormModel) clearDraftLocked() {
	if fm.opts.Drafts == nil {
		return
	}
	fm.opts.Drafts.Clear(draft.Key(fm.courseID, fm.opts.UserID))
}

// CourseID returns the server id, or "" before the first save.
func (fm *FormModel) CourseID() string {
	fm.mu.Lock()
	defer fm.mu.Unlock()
	return fm.courseID
}

// Content returns a copy of the current field values.
func (fm *FormModel) Content() domain.Content {
	fm.mu.Lock()
	defer fm.mu.Unlock()
	return fm.content.Clone()
}

// Course returns a copy of the last server record seen, or nil.
func (fm *FormModel) Course() *domain.Course {
	fm.mu.Lock()
	defer fm.mu.Unlock()
	return fm.course.Clone()
}

// Step returns the current step.
func (fm *FormModel) Step() int {
	fm.mu.Lock()
	defer fm.mu.Unlock()
	return fm.step
}

// Dirty reports unsaved changes.
func (fm *FormModel) Dirty() bool {
	fm.mu.Lock()
	defer fm.mu.Unlock()
	return fm.dirty
}

// Touched reports whether the user has interacted with field.
func (fm *FormModel) Touched(field string) bool {
	fm.mu.Lock()
	defer fm.mu.Unlock()
	return fm.touched[field]
}

// ChangedFields lists fields that differ from the last saved record.
func (fm *FormModel) ChangedFields() []string {
	fm.mu.Lock()
	defer fm.mu.Unlock()
	return sortedKeys(fm.changed)
}

// Errors returns a copy of the current field errors.
func (fm *FormModel) Errors() validator.Errors {
	fm.mu.Lock()
	defer fm.mu.Unlock()
	out := make(validator.Errors, len(fm.errors))
	for k, v := range fm.errors {
		out[k] = v
	}
	return out
}

// Warnings returns non-blocking advisories for the current content.
func (fm *FormModel) Warnings() validator.Errors {
	fm.mu.Lock()
	defer fm.mu.Unlock()
	return fm.opts.Validator.Warnings(&fm.content)
}

// LastSaved returns the time and version of the last successful save.
func (fm *FormModel) LastSaved() (time.Time, int64) {
	fm.mu.Lock()
	defer fm.mu.Unlock()
	return fm.lastSavedAt, fm.lastSavedVersion
}

// ServerVersion is the version to present as expected_version.
func (fm *FormModel) ServerVersion() int64 {
	fm.mu.Lock()
	defer fm.mu.Unlock()
	return fm.serverVersion
}

// RemoteChangesAvailable reports that the server holds a newer version
// than the one this form is based on.
func (fm *FormModel) RemoteChangesAvailable() bool {
	fm.mu.Lock()
	defer fm.mu.Unlock()
	return fm.remoteVersion > fm.serverVersion
}

// Conflicted reports an unresolved save conflict.
func (fm *FormModel) Conflicted() bool {
	fm.mu.Lock()
	defer fm.mu.Unlock()
	return fm.conflicted
}

// Closed reports whether Close has been called since the last Open.
func (fm *FormModel) Closed() bool {
	fm.mu.Lock()
	defer fm.mu.Unlock()
	return fm.closed
}

func clampStep(n int) int {
	if n < 1 {
		return 1
	}
	if n > Steps {
		return Steps
	}
	return n
}

func truncateRunes(s string, max int) string {
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	return string([]rune(s)[:max])
}

func setString(c *domain.Content, name, v string) {
	switch name {
	case domain.FieldTitle:
		c.Title = v
	case domain.FieldDescription:
		c.Description = v
	case domain.FieldCategory:
		c.Category = v
	case domain.FieldLevel:
		c.Level = v
	case domain.FieldEstimatedDuration:
		c.EstimatedDuration = v
	case domain.FieldPrerequisites:
		c.Prerequisites = v
	case domain.FieldLanguage:
		c.Language = v
	case domain.FieldWelcomeMessage:
		c.WelcomeMessage = v
	case domain.FieldCoverImage:
		c.CoverImage = v
	}
}

func uniqueTags(list []string) []string {
	out := make([]string, 0, len(list))
	for _, t := range list {
		t = strings.TrimSpace(t)
		if t != "" && !containsString(out, t) {
			out = append(out, t)
		}
	}
	return out
}

func containsString(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}

func sortedKeys[V any](m map[string]V) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
