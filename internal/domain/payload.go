package domain

import "time"

// CoursePayload is the request body for create and update.
type CoursePayload struct {
	Content
	ExpectedVersion *int64 `json:"expected_version,omitempty"`
}

// CourseEnvelope is the response body for course reads and mutations.
type CourseEnvelope struct {
	Course  *Course `json:"course"`
	Version int64   `json:"version"`
}

// VersionRequest carries only the optimistic concurrency token.
type VersionRequest struct {
	ExpectedVersion int64 `json:"expected_version"`
}

// ScheduleRequest asks for a course to be published at a future time.
type ScheduleRequest struct {
	At              time.Time `json:"at"`
	ExpectedVersion int64     `json:"expected_version"`
}

// VisibilityRequest toggles is_public.
type VisibilityRequest struct {
	IsPublic        bool  `json:"is_public"`
	ExpectedVersion int64 `json:"expected_version"`
}

// ImageHandle is the server reference returned for an uploaded image.
type ImageHandle struct {
	Handle string `json:"handle"`
}

// Asset is a stored binary object.
type Asset struct {
	Handle    string
	CourseID  string
	MimeType  string
	Data      []byte
	CreatedAt time.Time
}

// CourseStats are the counters maintained by the lesson and enrollment
// subsystems.
type CourseStats struct {
	LessonCount   int `json:"lesson_count" binding:"min=0"`
	StudentCount  int `json:"student_count" binding:"min=0"`
	TotalDuration int `json:"total_duration" binding:"min=0"`
}
