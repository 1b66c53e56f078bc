package domain

// EventCourseUpdated is the only push event type.
const EventCourseUpdated = "course_updated"

// PushEvent notifies subscribers that a course record changed.
type PushEvent struct {
	Type     string `json:"type"`
	CourseID string `json:"course_id"`
	Version  int64  `json:"version"`
}

// NewCourseUpdated builds a course_updated event.
func NewCourseUpdated(c *Course) PushEvent {
	return PushEvent{Type: EventCourseUpdated, CourseID: c.ID, Version: c.Version}
}
