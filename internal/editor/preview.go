package editor

import (
	"strings"

	"course-authoring/internal/domain"
	"course-authoring/internal/validator"
)

// Preview is the read-only projection shown next to the form.
type Preview struct {
	Title                  string
	Description            string
	CoverImage             string
	Category               string
	Level                  string
	EstimatedDuration      string
	Language               string
	LearningObjectives     []string
	Prerequisites          string
	Tags                   []string
	WelcomeMessage         string
	CertificationAvailable bool
	IsPublic               bool
	LessonCount            int
	StudentCount           int
	State                  domain.PublicationState
	Warnings               validator.Errors
}

// PreviewProjection renders the current content with curated labels in
// place of raw values.
func (fm *FormModel) PreviewProjection() Preview {
	fm.mu.Lock()
	defer fm.mu.Unlock()

	cat := fm.catalogLocked()
	c := fm.content.Clone()
	c.Normalize()
	p := Preview{
		Title:                  c.Title,
		Description:            strings.TrimSpace(c.Description),
		CoverImage:             c.CoverImage,
		Category:               cat.Label(domain.OptionCategories, c.Category),
		Level:                  cat.Label(domain.OptionLevels, c.Level),
		EstimatedDuration:      cat.Label(domain.OptionDurations, c.EstimatedDuration),
		Language:               cat.Label(domain.OptionLanguages, c.Language),
		LearningObjectives:     c.LearningObjectives,
		Prerequisites:          c.Prerequisites,
		Tags:                   c.Tags,
		WelcomeMessage:         c.WelcomeMessage,
		CertificationAvailable: c.CertificationAvailable,
		IsPublic:               c.IsPublic,
		State:                  fm.course.State(),
		Warnings:               fm.opts.Validator.Warnings(&fm.content),
	}
	if fm.course != nil {
		p.LessonCount = fm.course.LessonCount
		p.StudentCount = fm.course.StudentCount
	}
	return p
}
