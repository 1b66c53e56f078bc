package validator

import (
	"strings"
	"unicode/utf8"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"

	"course-authoring/internal/domain"
)

// Errors maps field names to error codes. An empty map means valid.
type Errors map[string]domain.Code

// Codes returns the distinct codes present in e.
func (e Errors) Codes() []domain.Code {
	seen := make(map[domain.Code]struct{}, len(e))
	var out []domain.Code
	for _, c := range e {
		if _, ok := seen[c]; ok {
			continue
		}
		seen[c] = struct{}{}
		out = append(out, c)
	}
	return out
}

type scopeKind int

const (
	scopeAll scopeKind = iota
	scopeStep
	scopeField
)

// Scope selects the fields a validation pass covers.
type Scope struct {
	kind  scopeKind
	step  int
	field string
}

var (
	// AllScope covers every field.
	AllScope = Scope{kind: scopeAll}
	// PublishScope covers every field; gate-only rules live in the publication package.
	PublishScope = Scope{kind: scopeAll}
)

// StepScope covers the fields shown on form step n.
func StepScope(n int) Scope { return Scope{kind: scopeStep, step: n} }

// FieldScope covers a single field.
func FieldScope(name string) Scope { return Scope{kind: scopeField, field: name} }

// StepFields lists the fields shown on each form step.
var StepFields = map[int][]string{
	1: {domain.FieldTitle, domain.FieldDescription, domain.FieldCoverImage},
	2: {domain.FieldCategory, domain.FieldLevel, domain.FieldEstimatedDuration, domain.FieldLearningObjectives, domain.FieldPrerequisites},
	3: {domain.FieldTags, domain.FieldLanguage, domain.FieldWelcomeMessage, domain.FieldCertificationAvailable, domain.FieldIsPublic},
}

// StepOf returns the form step that shows field, or 0.
func StepOf(field string) int {
	for step, fields := range StepFields {
		for _, f := range fields {
			if f == field {
				return step
			}
		}
	}
	return 0
}

func (s Scope) includes(field string) bool {
	switch s.kind {
	case scopeStep:
		return StepOf(field) == s.step
	case scopeField:
		return s.field == field
	default:
		return true
	}
}

// Validator evaluates course content against the form rules.
type Validator struct {
	maxTagLength int
}

// NewValidator creates a new Validator instance.
func NewValidator() *Validator {
	return &Validator{maxTagLength: domain.MaxTagLength}
}

// Validate returns the per-field errors of content for the given scope.
// A curated kind missing from catalog is not membership-checked.
func (v *Validator) Validate(content *domain.Content, catalog domain.Catalog, scope Scope) Errors {
	c := &domain.Content{}
	if content != nil {
		*c = content.Clone()
	}

	rules := map[string]*validation.FieldRules{
		domain.FieldTitle: validation.Field(&c.Title,
			validation.By(requiredRule),
			validation.By(runeLengthRule(domain.TitleMinLength, domain.TitleMaxLength)),
		),
		domain.FieldDescription: validation.Field(&c.Description,
			validation.By(requiredRule),
			validation.By(runeLengthRule(0, domain.DescriptionMaxLength)),
		),
		domain.FieldCoverImage: validation.Field(&c.CoverImage,
			validation.By(coverImageRule),
		),
		domain.FieldCategory: validation.Field(&c.Category,
			validation.By(requiredRule),
			curatedRule(catalog, domain.OptionCategories),
		),
		domain.FieldLevel: validation.Field(&c.Level,
			validation.By(requiredRule),
			curatedRule(catalog, domain.OptionLevels),
		),
		domain.FieldEstimatedDuration: validation.Field(&c.EstimatedDuration,
			curatedRule(catalog, domain.OptionDurations),
		),
		domain.FieldLearningObjectives: validation.Field(&c.LearningObjectives,
			validation.By(objectivesRule),
		),
		domain.FieldTags: validation.Field(&c.Tags,
			validation.By(tagsRule(v.maxTagLength, true)),
		),
		domain.FieldLanguage: validation.Field(&c.Language,
			validation.By(requiredRule),
			curatedRule(catalog, domain.OptionLanguages),
		),
	}

	var selected []*validation.FieldRules
	for _, field := range domain.ContentFields {
		if r, ok := rules[field]; ok && scope.includes(field) {
			selected = append(selected, r)
		}
	}
	if len(selected) == 0 {
		return Errors{}
	}

	return convert(validation.ValidateStruct(c, selected...))
}

// Warnings returns non-blocking advisories for content.
func (v *Validator) Warnings(content *domain.Content) Errors {
	out := Errors{}
	if content == nil {
		return out
	}
	desc := strings.TrimSpace(content.Description)
	if desc != "" && utf8.RuneCountInString(desc) < domain.DescriptionSoftMin {
		out[domain.FieldDescription] = domain.CodeDescriptionShort
	}
	return out
}

// ValidatePersist checks the rules every stored record must satisfy,
// independent of form step. content is expected to be normalized.
func (v *Validator) ValidatePersist(content *domain.Content, catalog domain.Catalog) Errors {
	c := content.Clone()
	return convert(validation.ValidateStruct(&c,
		validation.Field(&c.Title,
			validation.By(requiredRule),
			validation.By(runeLengthRule(1, domain.TitleMaxLength)),
		),
		validation.Field(&c.Description,
			validation.By(runeLengthRule(0, domain.DescriptionMaxLength)),
		),
		validation.Field(&c.CoverImage,
			validation.By(handleRule),
			is.UUID.ErrorObject(validation.NewError(string(domain.CodeFieldBadFormat), "cover image must be an uploaded handle")),
		),
		validation.Field(&c.Category, curatedRule(catalog, domain.OptionCategories)),
		validation.Field(&c.Level, curatedRule(catalog, domain.OptionLevels)),
		validation.Field(&c.EstimatedDuration, curatedRule(catalog, domain.OptionDurations)),
		validation.Field(&c.Language, curatedRule(catalog, domain.OptionLanguages)),
		validation.Field(&c.LearningObjectives, validation.By(noBlankEntriesRule)),
		validation.Field(&c.Tags,
			validation.By(noBlankEntriesRule),
			validation.By(tagsRule(v.maxTagLength, false)),
		),
	))
}

func convert(err error) Errors {
	out := Errors{}
	if err == nil {
		return out
	}
	errs, ok := err.(validation.Errors)
	if !ok {
		return out
	}
	for field, fieldErr := range errs {
		if e, ok := fieldErr.(validation.Error); ok {
			out[field] = domain.Code(e.Code())
			continue
		}
		out[field] = domain.CodeFieldBadFormat
	}
	return out
}

func codeError(code domain.Code, message string) validation.Error {
	return validation.NewError(string(code), message)
}

func requiredRule(value interface{}) error {
	s, _ := value.(string)
	if strings.TrimSpace(s) == "" {
		return codeError(domain.CodeFieldRequired, "cannot be blank")
	}
	return nil
}

// runeLengthRule measures the trimmed value in runes.
func runeLengthRule(min, max int) validation.RuleFunc {
	return func(value interface{}) error {
		s, _ := value.(string)
		n := utf8.RuneCountInString(strings.TrimSpace(s))
		if n == 0 {
			return nil
		}
		if n < min {
			return codeError(domain.CodeFieldTooShort, "is too short")
		}
		if n > max {
			return codeError(domain.CodeFieldTooLong, "is too long")
		}
		return nil
	}
}

func curatedRule(catalog domain.Catalog, kind domain.OptionKind) validation.Rule {
	if !catalog.Loaded(kind) {
		return validation.Skip
	}
	values := catalog.Values(kind)
	elements := make([]interface{}, len(values))
	for i, v := range values {
		elements[i] = v
	}
	return validation.In(elements...).ErrorObject(codeError(domain.CodeFieldOutOfSet, "must be one of the curated values"))
}

func coverImageRule(value interface{}) error {
	s, _ := value.(string)
	if s == "" || !domain.IsDataURL(s) {
		return nil
	}
	mime, size, err := domain.DataURLMeta(s)
	if err != nil {
		return codeError(domain.CodeFieldBadFormat, "is not a valid image")
	}
	if !domain.IsAllowedImageType(mime) {
		return codeError(domain.CodeAssetBadType, "must be a JPEG, PNG or WebP image")
	}
	if size > domain.MaxCoverImageBytes {
		return codeError(domain.CodeAssetTooLarge, "must be at most 5 MB")
	}
	return nil
}

func handleRule(value interface{}) error {
	s, _ := value.(string)
	if domain.IsDataURL(s) {
		return codeError(domain.CodeFieldBadFormat, "inline images must be uploaded first")
	}
	return nil
}

func objectivesRule(value interface{}) error {
	list, _ := value.([]string)
	for _, o := range list {
		if strings.TrimSpace(o) != "" {
			return nil
		}
	}
	return codeError(domain.CodeObjectiveEmpty, "at least one learning objective is required")
}

func tagsRule(maxLength int, requireOne bool) validation.RuleFunc {
	return func(value interface{}) error {
		list, _ := value.([]string)
		count := 0
		for _, tag := range list {
			tag = strings.TrimSpace(tag)
			if tag == "" {
				continue
			}
			count++
			if utf8.RuneCountInString(tag) > maxLength {
				return codeError(domain.CodeFieldTooLong, "tag is too long")
			}
		}
		if requireOne && count == 0 {
			return codeError(domain.CodeTagsEmpty, "at least one tag is required")
		}
		return nil
	}
}

func noBlankEntriesRule(value interface{}) error {
	list, _ := value.([]string)
	for _, s := range list {
		if strings.TrimSpace(s) == "" {
			return codeError(domain.CodeFieldBadFormat, "entries cannot be blank")
		}
	}
	return nil
}
