package domain

import "time"

// Field limits shared by the editor, the validation engine and the server.
const (
	TitleMinLength       = 3
	TitleMaxLength       = 60
	DescriptionMaxLength = 2000
	DescriptionSoftMin   = 50
	MaxTagLength         = 40
	MaxCoverImageBytes   = 5 << 20
)

// Field names as they appear on the wire and in validation error maps.
const (
	FieldTitle                  = "title"
	FieldDescription            = "description"
	FieldCategory               = "category"
	FieldLevel                  = "level"
	FieldEstimatedDuration      = "estimated_duration"
	FieldLearningObjectives     = "learning_objectives"
	FieldPrerequisites          = "prerequisites"
	FieldTags                   = "tags"
	FieldLanguage               = "language"
	FieldWelcomeMessage         = "welcome_message"
	FieldCoverImage             = "cover_image"
	FieldCertificationAvailable = "certification_available"
	FieldIsPublic               = "is_public"
)

// ContentFields lists every user-editable field in form order.
var ContentFields = []string{
	FieldTitle,
	FieldDescription,
	FieldCoverImage,
	FieldCategory,
	FieldLevel,
	FieldEstimatedDuration,
	FieldLearningObjectives,
	FieldPrerequisites,
	FieldTags,
	FieldLanguage,
	FieldWelcomeMessage,
	FieldCertificationAvailable,
	FieldIsPublic,
}

// Content holds the user-editable attributes of a course.
type Content struct {
	Title                  string   `json:"title"`
	Description            string   `json:"description"`
	Category               string   `json:"category"`
	Level                  string   `json:"level"`
	EstimatedDuration      string   `json:"estimated_duration"`
	LearningObjectives     []string `json:"learning_objectives"`
	Prerequisites          string   `json:"prerequisites"`
	Tags                   []string `json:"tags"`
	Language               string   `json:"language"`
	WelcomeMessage         string   `json:"welcome_message"`
	CoverImage             string   `json:"cover_image"`
	CertificationAvailable bool     `json:"certification_available"`
	IsPublic               bool     `json:"is_public"`
}

// Clone returns a deep copy of the content.
func (c Content) Clone() Content {
	out := c
	if c.LearningObjectives != nil {
		out.LearningObjectives = append([]string(nil), c.LearningObjectives...)
	}
	if c.Tags != nil {
		out.Tags = append([]string(nil), c.Tags...)
	}
	return out
}

// Course is the persisted course record.
type Course struct {
	ID string `json:"id"`
	Content

	IsPublished        bool       `json:"is_published"`
	PublishedAt        *time.Time `json:"published_at,omitempty"`
	ScheduledPublishAt *time.Time `json:"scheduled_publish_at,omitempty"`

	LessonCount   int `json:"lesson_count"`
	StudentCount  int `json:"student_count"`
	TotalDuration int `json:"total_duration"`

	CreatedBy string    `json:"created_by"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	Version   int64     `json:"version"`
}

// Clone returns a deep copy of the course.
func (c *Course) Clone() *Course {
	if c == nil {
		return nil
	}
	out := *c
	out.Content = c.Content.Clone()
	if c.PublishedAt != nil {
		t := *c.PublishedAt
		out.PublishedAt = &t
	}
	if c.ScheduledPublishAt != nil {
		t := *c.ScheduledPublishAt
		out.ScheduledPublishAt = &t
	}
	return &out
}

// State derives the publication state from the record.
func (c *Course) State() PublicationState {
	switch {
	case c == nil:
		return StateDraft
	case c.IsPublished:
		return StatePublished
	case c.ScheduledPublishAt != nil:
		return StateScheduled
	default:
		return StateDraft
	}
}

// VisibleToStudents reports whether the course is listed for enrollment.
func (c *Course) VisibleToStudents() bool {
	return c != nil && c.IsPublished && c.IsPublic
}
