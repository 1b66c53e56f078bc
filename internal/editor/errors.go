package editor

import (
	"errors"
	"fmt"

	"course-authoring/internal/validator"
)

var (
	// ErrClosed is returned for edits after Close.
	ErrClosed = errors.New("editor closed")
	// ErrUnknownField is returned by SetField for a name outside the content fields.
	ErrUnknownField = errors.New("unknown field")
	// ErrFieldType is returned by SetField when the value has the wrong type.
	ErrFieldType = errors.New("wrong value type for field")
	// ErrInvalidStep is returned for a step outside 1..3.
	ErrInvalidStep = errors.New("invalid step")
	// ErrIndex is returned for an objective index out of range.
	ErrIndex = errors.New("index out of range")
)

// StepError reports the blocking errors that prevented advancing past Step.
type StepError struct {
	Step   int
	Errors validator.Errors
}

func (e *StepError) Error() string {
	return fmt.Sprintf("step %d has %d invalid field(s)", e.Step, len(e.Errors))
}
