package editor

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"course-authoring/internal/domain"
	"course-authoring/internal/draft"
	"course-authoring/internal/logger"
	"course-authoring/internal/metrics"
)

// AutosaveState is the debounce state machine position.
type AutosaveState int

const (
	AutosaveIdle AutosaveState = iota
	AutosaveArmed
	AutosaveFiring
)

func (s AutosaveState) String() string {
	switch s {
	case AutosaveArmed:
		return "armed"
	case AutosaveFiring:
		return "firing"
	default:
		return "idle"
	}
}

// AutosaveState returns the current state.
func (fm *FormModel) AutosaveState() AutosaveState {
	fm.mu.Lock()
	defer fm.mu.Unlock()
	return fm.state
}

// scheduleAutosaveLocked restarts the debounce after an edit. While a save
// is firing the edit is picked up when it settles.
func (fm *FormModel) scheduleAutosaveLocked() {
	if fm.closed || fm.conflicted || fm.saver == nil || fm.state == AutosaveFiring {
		return
	}
	fm.armLocked(fm.opts.AutosaveDelay)
}

func (fm *FormModel) armLocked(d time.Duration) {
	fm.stopTimerLocked()
	seq := fm.timerSeq
	fm.timer = fm.opts.Clock.AfterFunc(d, func() { fm.fire(seq) })
	fm.state = AutosaveArmed
}

func (fm *FormModel) stopTimerLocked() {
	fm.timerSeq++
	if fm.timer != nil {
		fm.timer.Stop()
		fm.timer = nil
	}
}

func (fm *FormModel) fire(seq uint64) {
	fm.mu.Lock()
	if seq != fm.timerSeq || fm.state != AutosaveArmed || fm.closed || fm.saver == nil {
		fm.mu.Unlock()
		return
	}
	fm.timer = nil
	fm.state = AutosaveFiring
	fm.inflight++
	saver, ctx, session := fm.saver, fm.ctx, fm.session
	fm.mu.Unlock()

	metrics.AutosaveFires.Inc()
	err := saver.Autosave(ctx)

	fm.mu.Lock()
	defer fm.mu.Unlock()
	if session != fm.session {
		return
	}
	fm.inflight--
	switch {
	case err == nil:
		fm.failures = 0
	case errors.Is(err, context.Canceled):
	default:
		fm.failures++
		logger.Warn("Autosave failed",
			slog.String("course_id", fm.courseID),
			slog.Int("consecutive_failures", fm.failures),
			slog.String("error", err.Error()))
	}
	fm.settleLocked()
}

// settleLocked leaves the firing state once no save is in flight.
func (fm *FormModel) settleLocked() {
	if fm.inflight > 0 {
		fm.state = AutosaveFiring
		return
	}
	if !fm.dirty || fm.closed || fm.conflicted || fm.saver == nil {
		fm.state = AutosaveIdle
		return
	}
	fm.armLocked(fm.retryDelayLocked())
}

func (fm *FormModel) retryDelayLocked() time.Duration {
	d := fm.opts.AutosaveDelay
	for i := 0; i < fm.failures; i++ {
		d *= 2
		if d >= fm.opts.MaxAutosaveBackoff {
			return fm.opts.MaxAutosaveBackoff
		}
	}
	return d
}

// BeginSave cancels a pending autosave and marks a save in flight. The
// returned token must be passed to EndSave.
func (fm *FormModel) BeginSave() uint64 {
	fm.mu.Lock()
	defer fm.mu.Unlock()

	fm.stopTimerLocked()
	fm.inflight++
	fm.state = AutosaveFiring
	return fm.session
}

// EndSave completes a save started with BeginSave.
func (fm *FormModel) EndSave(token uint64, err error) {
	fm.mu.Lock()
	defer fm.mu.Unlock()

	if token != fm.session {
		return
	}
	if fm.inflight > 0 {
		fm.inflight--
	}
	if err == nil {
		fm.failures = 0
	}
	fm.settleLocked()
}

// PauseAutosave stops autosaving until ResumeAutosave, marking the form
// as conflicted.
func (fm *FormModel) PauseAutosave() {
	fm.mu.Lock()
	defer fm.mu.Unlock()

	fm.conflicted = true
	fm.stopTimerLocked()
	if fm.inflight == 0 {
		fm.state = AutosaveIdle
	}
}

// ResumeAutosave clears the conflicted flag and re-arms when dirty.
func (fm *FormModel) ResumeAutosave() {
	fm.mu.Lock()
	defer fm.mu.Unlock()

	fm.conflicted = false
	if fm.dirty {
		fm.scheduleAutosaveLocked()
	}
}

// SaveTicket captures the form at the moment a save is issued.
type SaveTicket struct {
	session  uint64
	seq      uint64
	withheld map[string]bool

	CourseID        string
	ExpectedVersion int64
	// Payload is the normalized content to send.
	Payload domain.Content
	// Changed lists fields edited since the last save.
	Changed []string
}

// PrepareSave snapshots the content for a save. With withholdInline set, a
// cover image that is still an inline data URL is replaced by the last saved
// value and stays dirty.
func (fm *FormModel) PrepareSave(withholdInline bool) (SaveTicket, error) {
	fm.mu.Lock()
	defer fm.mu.Unlock()

	if fm.closed {
		return SaveTicket{}, ErrClosed
	}
	return fm.prepareLocked(withholdInline), nil
}

func (fm *FormModel) prepareLocked(withholdInline bool) SaveTicket {
	payload := fm.content.Clone()
	payload.Normalize()
	withheld := map[string]bool{}
	if domain.IsDataURL(payload.CoverImage) && withholdInline {
		payload.CoverImage = fm.baseline.CoverImage
		withheld[domain.FieldCoverImage] = true
	}
	return SaveTicket{
		session:         fm.session,
		seq:             fm.editSeq,
		withheld:        withheld,
		CourseID:        fm.courseID,
		ExpectedVersion: fm.serverVersion,
		Payload:         payload,
		Changed:         sortedKeys(fm.changed),
	}
}

// CommitSave records a successful save. Fields edited after the ticket was
// taken stay dirty. It returns false when the ticket belongs to a form
// session that has since been reopened, discarded or closed.
func (fm *FormModel) CommitSave(t SaveTicket, saved *domain.Course) bool {
	fm.mu.Lock()
	defer fm.mu.Unlock()

	if t.session != fm.session || saved == nil {
		return false
	}

	if fm.courseID == "" && saved.ID != "" {
		fm.clearDraftLocked()
		fm.courseID = saved.ID
	}
	fm.course = saved.Clone()
	fm.lastSavedAt = saved.UpdatedAt
	if fm.lastSavedAt.IsZero() {
		fm.lastSavedAt = fm.opts.Clock.Now()
	}
	fm.lastSavedVersion = saved.Version
	fm.serverVersion = saved.Version
	if fm.remoteVersion <= saved.Version {
		fm.remoteVersion = 0
	}
	fm.baseline = saved.Content.Clone()
	fm.conflicted = false

	for _, f := range domain.ContentFields {
		seq, local := fm.changed[f]
		switch {
		case local && (seq > t.seq || t.withheld[f]):
			if domain.FieldEqual(f, &fm.content, &fm.baseline) {
				delete(fm.changed, f)
			}
		default:
			fm.content.CopyField(f, &saved.Content)
			delete(fm.changed, f)
		}
	}
	fm.dirty = len(fm.changed) > 0
	for f := range fm.errors {
		fm.revalidateLocked(f)
	}
	fm.syncDraftLocked()
	return true
}

// ApplyMerge installs a conflict resolution: the server record becomes the
// new base and merged becomes the content, except for fields edited after
// the ticket was taken. It returns a fresh ticket for the retry.
func (fm *FormModel) ApplyMerge(t SaveTicket, server *domain.Course, merged domain.Content) (SaveTicket, bool) {
	fm.mu.Lock()
	defer fm.mu.Unlock()

	if t.session != fm.session || server == nil {
		return SaveTicket{}, false
	}
	fm.course = server.Clone()
	fm.serverVersion = server.Version
	fm.baseline = server.Content.Clone()
	for _, f := range domain.ContentFields {
		if seq, local := fm.changed[f]; local && (seq > t.seq || t.withheld[f]) {
			continue
		}
		fm.content.CopyField(f, &merged)
		if domain.FieldEqual(f, &fm.content, &fm.baseline) {
			delete(fm.changed, f)
		} else if _, ok := fm.changed[f]; !ok {
			fm.changed[f] = t.seq
		}
	}
	fm.dirty = len(fm.changed) > 0
	fm.syncDraftLocked()
	return fm.prepareLocked(len(t.withheld) > 0), true
}

// ReplaceCover swaps an inline cover for its uploaded handle, provided the
// user has not picked a different image meanwhile.
func (fm *FormModel) ReplaceCover(dataURL, handle string) bool {
	fm.mu.Lock()
	defer fm.mu.Unlock()

	if fm.closed || fm.content.CoverImage != dataURL {
		return false
	}
	next := fm.content.Clone()
	next.CoverImage = handle
	fm.applyLocked(domain.FieldCoverImage, &next)
	return true
}

// DraftKey returns the local draft key for this form.
func (fm *FormModel) DraftKey() string {
	fm.mu.Lock()
	defer fm.mu.Unlock()
	return draft.Key(fm.courseID, fm.opts.UserID)
}
