package domain

import (
	"errors"
	"fmt"
)

// Code is a stable, machine-readable error identifier.
type Code string

// Validation codes.
const (
	CodeFieldRequired    Code = "FIELD_REQUIRED"
	CodeFieldTooShort    Code = "FIELD_TOO_SHORT"
	CodeFieldTooLong     Code = "FIELD_TOO_LONG"
	CodeFieldBadFormat   Code = "FIELD_BAD_FORMAT"
	CodeFieldOutOfSet    Code = "FIELD_OUT_OF_SET"
	CodeObjectiveEmpty   Code = "OBJECTIVE_EMPTY"
	CodeTagsEmpty        Code = "TAGS_EMPTY"
	CodeDescriptionShort Code = "DESCRIPTION_SHORT"
)

// Asset codes.
const (
	CodeAssetTooLarge     Code = "ASSET_TOO_LARGE"
	CodeAssetBadType      Code = "ASSET_BAD_TYPE"
	CodeAssetUploadFailed Code = "ASSET_UPLOAD_FAILED"
)

// Sync codes.
const (
	CodeNetwork           Code = "NETWORK"
	CodeServerUnavailable Code = "SERVER_UNAVAILABLE"
	CodeVersionConflict   Code = "VERSION_CONFLICT"
	CodePermissionDenied  Code = "PERMISSION_DENIED"
	CodeNotFound          Code = "NOT_FOUND"
)

// Publication codes.
const (
	CodeGateMissingFields Code = "GATE_MISSING_FIELDS"
	CodeGateNoLessons     Code = "GATE_NO_LESSONS"
	CodeScheduleInPast    Code = "SCHEDULE_IN_PAST"
	CodeInvalidTransition Code = "INVALID_TRANSITION"
)

// Persistence API codes.
const (
	CodeValidation        Code = "VALIDATION"
	CodeConflict          Code = "CONFLICT"
	CodePublishGateFailed Code = "PUBLISH_GATE_FAILED"
	CodeUnauthorized      Code = "UNAUTHORIZED"
	CodeRateLimited       Code = "RATE_LIMITED"
	CodeUnavailable       Code = "UNAVAILABLE"
)

// ErrorDetails carries structured context for an APIError.
type ErrorDetails struct {
	Fields         map[string]Code `json:"fields,omitempty"`
	Reasons        []Code          `json:"reasons,omitempty"`
	CurrentVersion int64           `json:"current_version,omitempty"`
}

// APIError is the error body returned by the persistence API.
type APIError struct {
	Code    Code          `json:"code"`
	Message string        `json:"message"`
	Details *ErrorDetails `json:"details,omitempty"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// NewAPIError creates an APIError without details.
func NewAPIError(code Code, format string, args ...any) *APIError {
	return &APIError{Code: code, Message: fmt.Sprintf(format, args...)}
}

// ErrorCode extracts the Code of an APIError anywhere in err's chain.
func ErrorCode(err error) Code {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Code
	}
	return ""
}
