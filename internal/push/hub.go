// Package push delivers course_updated notifications to interested
// editors, in process and across server instances over NATS.
package push

import (
	"context"
	"log/slog"
	"sync"

	"course-authoring/internal/domain"
	"course-authoring/internal/logger"
)

// Publisher announces a course change.
type Publisher interface {
	Publish(ctx context.Context, evt domain.PushEvent) error
}

// DefaultBuffer is the per-subscription channel capacity.
const DefaultBuffer = 16

// Hub fans events out to subscribers of a course. Delivery never blocks
// the publisher; a subscriber whose buffer is full misses the event.
type Hub struct {
	buffer int

	mu   sync.RWMutex
	subs map[string]map[*Subscription]struct{}
}

// Subscription receives events for one course until closed.
type Subscription struct {
	C <-chan domain.PushEvent

	hub      *Hub
	courseID string
	ch       chan domain.PushEvent
	once     sync.Once
}

func NewHub(buffer int) *Hub {
	if buffer <= 0 {
		buffer = DefaultBuffer
	}
	return &Hub{buffer: buffer, subs: make(map[string]map[*Subscription]struct{})}
}

// Subscribe registers for events about courseID.
func (h *Hub) Subscribe(courseID string) *Subscription {
	ch := make(chan domain.PushEvent, h.buffer)
	s := &Subscription{C: ch, hub: h, courseID: courseID, ch: ch}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.subs[courseID] == nil {
		h.subs[courseID] = make(map[*Subscription]struct{})
	}
	h.subs[courseID][s] = struct{}{}
	return s
}

// Close unregisters the subscription and closes C.
func (s *Subscription) Close() {
	s.once.Do(func() {
		h := s.hub
		h.mu.Lock()
		defer h.mu.Unlock()
		delete(h.subs[s.courseID], s)
		if len(h.subs[s.courseID]) == 0 {
			delete(h.subs, s.courseID)
		}
		close(s.ch)
	})
}

// Publish delivers evt to current subscribers of its course.
func (h *Hub) Publish(ctx context.Context, evt domain.PushEvent) error {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for s := range h.subs[evt.CourseID] {
		select {
		case s.ch <- evt:
		default:
			logger.Warn("Dropping push event for slow subscriber",
				slog.String("course_id", evt.CourseID),
				slog.Int64("version", evt.Version))
		}
	}
	return nil
}

// Subscribers returns the number of live subscriptions for courseID.
func (h *Hub) Subscribers(courseID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs[courseID])
}
