package domain

import (
	"reflect"
	"strings"
)

// FieldValue returns the value of the named content field, or nil for an
// unknown name.
func (c *Content) FieldValue(name string) any {
	switch name {
	case FieldTitle:
		return c.Title
	case FieldDescription:
		return c.Description
	case FieldCategory:
		return c.Category
	case FieldLevel:
		return c.Level
	case FieldEstimatedDuration:
		return c.EstimatedDuration
	case FieldLearningObjectives:
		return append([]string(nil), c.LearningObjectives...)
	case FieldPrerequisites:
		return c.Prerequisites
	case FieldTags:
		return append([]string(nil), c.Tags...)
	case FieldLanguage:
		return c.Language
	case FieldWelcomeMessage:
		return c.WelcomeMessage
	case FieldCoverImage:
		return c.CoverImage
	case FieldCertificationAvailable:
		return c.CertificationAvailable
	case FieldIsPublic:
		return c.IsPublic
	}
	return nil
}

// CopyField copies the named field from src into c.
func (c *Content) CopyField(name string, src *Content) {
	switch name {
	case FieldTitle:
		c.Title = src.Title
	case FieldDescription:
		c.Description = src.Description
	case FieldCategory:
		c.Category = src.Category
	case FieldLevel:
		c.Level = src.Level
	case FieldEstimatedDuration:
		c.EstimatedDuration = src.EstimatedDuration
	case FieldLearningObjectives:
		c.LearningObjectives = append([]string(nil), src.LearningObjectives...)
	case FieldPrerequisites:
		c.Prerequisites = src.Prerequisites
	case FieldTags:
		c.Tags = append([]string(nil), src.Tags...)
	case FieldLanguage:
		c.Language = src.Language
	case FieldWelcomeMessage:
		c.WelcomeMessage = src.WelcomeMessage
	case FieldCoverImage:
		c.CoverImage = src.CoverImage
	case FieldCertificationAvailable:
		c.CertificationAvailable = src.CertificationAvailable
	case FieldIsPublic:
		c.IsPublic = src.IsPublic
	}
}

// FieldEqual reports whether the named field holds the same value in a and b.
// Nil and empty lists compare equal.
func FieldEqual(name string, a, b *Content) bool {
	av, bv := a.FieldValue(name), b.FieldValue(name)
	if as, ok := av.([]string); ok {
		bs, _ := bv.([]string)
		if len(as) == 0 && len(bs) == 0 {
			return true
		}
	}
	return reflect.DeepEqual(av, bv)
}

// IsContentField reports whether name is a user-editable field.
func IsContentField(name string) bool {
	for _, f := range ContentFields {
		if f == name {
			return true
		}
	}
	return false
}

// Normalize trims surrounding whitespace from the title and list entries,
// drops empty objectives and tags, and removes duplicate tags.
func (c *Content) Normalize() {
	c.Title = strings.TrimSpace(c.Title)
	c.LearningObjectives = compact(c.LearningObjectives, false)
	c.Tags = compact(c.Tags, true)
}

func compact(values []string, unique bool) []string {
	out := make([]string, 0, len(values))
	seen := make(map[string]struct{}, len(values))
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		if unique {
			if _, ok := seen[v]; ok {
				continue
			}
			seen[v] = struct{}{}
		}
		out = append(out, v)
	}
	return out
}
