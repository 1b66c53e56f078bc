// Package publication enforces the publish gate and drives the course
// publication state machine.
package publication

import (
	"fmt"
	"strings"
	"time"

	"course-authoring/internal/domain"
	"course-authoring/internal/validator"
)

// DefaultMinLead is how far in the future a schedule must be when the
// client requests it.
const DefaultMinLead = 60 * time.Second

// GateInput is everything the publish gate looks at.
type GateInput struct {
	Content     domain.Content
	Catalog     domain.Catalog
	LessonCount int
	// ScheduleAt is set when checking a schedule request.
	ScheduleAt *time.Time
	Now        time.Time
	// MinLead is added to Now when checking ScheduleAt.
	MinLead time.Duration
}

// GateError lists why a course cannot be published.
type GateError struct {
	Reasons []domain.Code
	Fields  validator.Errors
}

func (e *GateError) Error() string {
	parts := make([]string, len(e.Reasons))
	for i, r := range e.Reasons {
		parts[i] = string(r)
	}
	return fmt.Sprintf("publish gate failed: %s", strings.Join(parts, ", "))
}

// Has reports whether reason is among the gate failures.
func (e *GateError) Has(reason domain.Code) bool {
	for _, r := range e.Reasons {
		if r == reason {
			return true
		}
	}
	return false
}

// Gate checks the publish preconditions. It returns nil when they hold.
func Gate(v *validator.Validator, in GateInput) *GateError {
	if v == nil {
		v = validator.NewValidator()
	}
	content := in.Content
	fields := v.Validate(&content, in.Catalog, validator.PublishScope)

	var reasons []domain.Code
	if len(fields) > 0 {
		reasons = append(reasons, domain.CodeGateMissingFields)
	}
	if in.LessonCount < 1 {
		reasons = append(reasons, domain.CodeGateNoLessons)
	}
	if in.ScheduleAt != nil && !in.ScheduleAt.After(in.Now.Add(in.MinLead)) {
		reasons = append(reasons, domain.CodeScheduleInPast)
	}
	if len(reasons) == 0 {
		return nil
	}
	return &GateError{Reasons: reasons, Fields: fields}
}

// TransitionError is returned for an operation the current state does not allow.
type TransitionError struct {
	From domain.PublicationState
	Op   domain.PublicationOp
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("%s: cannot %s a %s course", domain.CodeInvalidTransition, e.Op, e.From)
}
