package draft

import (
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"course-authoring/internal/domain"
	"course-authoring/internal/logger"
)

const (
	keyPrefix = "course-editor-draft-"
	newCourse = "new"

	// DefaultSkew is how much newer a draft must be than the server copy to win.
	DefaultSkew = 2 * time.Second
)

// Key returns the storage key for a user's draft of a course. An empty
// courseID addresses the draft of a course that has not been created yet.
func Key(courseID, userID string) string {
	if courseID == "" {
		courseID = newCourse
	}
	return keyPrefix + courseID + "-" + userID
}

// Store reads and writes snapshots. Every operation is best effort:
// backend failures are logged and never returned to the caller.
type Store struct {
	backend Backend
}

// NewStore wraps backend.
func NewStore(backend Backend) *Store {
	return &Store{backend: backend}
}

// Write persists snap under key.
func (s *Store) Write(key string, snap *Snapshot) {
	raw, err := json.Marshal(snap)
	if err != nil {
		logger.Warn("Failed to encode draft", slog.String("key", key), slog.String("error", err.Error()))
		return
	}
	if err := s.backend.Put(key, raw); err != nil {
		logger.Warn("Failed to write draft", slog.String("key", key), slog.String("error", err.Error()))
	}
}

// Read returns the snapshot stored under key. A corrupt entry reads as absent.
func (s *Store) Read(key string) (*Snapshot, bool) {
	raw, err := s.backend.Get(key)
	if errors.Is(err, ErrNotFound) {
		return nil, false
	}
	if err != nil {
		logger.Warn("Failed to read draft", slog.String("key", key), slog.String("error", err.Error()))
		return nil, false
	}
	var snap Snapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		logger.Warn("Discarding unreadable draft", slog.String("key", key), slog.String("error", err.Error()))
		return nil, false
	}
	return &snap, true
}

// Clear removes the snapshot under key.
func (s *Store) Clear(key string) {
	if err := s.backend.Delete(key); err != nil {
		logger.Warn("Failed to clear draft", slog.String("key", key), slog.String("error", err.Error()))
	}
}

// Close releases the backend.
func (s *Store) Close() error {
	return s.backend.Close()
}

// Source identifies which copy hydrates the form.
type Source int

const (
	SourceNone Source = iota
	SourceServer
	SourceDraft
)

// Merge decides between the server record and a local draft. The draft
// wins when there is no server copy, or when it was saved more than skew
// after the server's last update.
func Merge(server *domain.Course, snap *Snapshot, skew time.Duration) Source {
	switch {
	case server == nil && snap == nil:
		return SourceNone
	case snap == nil:
		return SourceServer
	case server == nil:
		return SourceDraft
	case snap.SavedLocallyAt.Sub(server.UpdatedAt) > skew:
		return SourceDraft
	default:
		return SourceServer
	}
}
