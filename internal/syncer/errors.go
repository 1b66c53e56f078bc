package syncer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"course-authoring/internal/domain"
	"course-authoring/internal/httpx"
)

// ErrSuperseded is returned by a save whose result was discarded because a
// newer save was issued. It matches context.Canceled.
var ErrSuperseded = fmt.Errorf("save superseded: %w", context.Canceled)

// ErrNotSaved is returned by publication operations on a course that has
// never been saved.
var ErrNotSaved = &Error{Kind: domain.CodeNotFound, Message: "course has not been saved yet"}

// Error is a classified persistence failure.
type Error struct {
	Kind    domain.Code
	Status  int
	Message string
	Details *domain.ErrorDetails
	Err     error
}

func (e *Error) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s: %s", e.Kind, e.Message)
	}
	return string(e.Kind)
}

func (e *Error) Unwrap() error { return e.Err }

// Recoverable reports whether the user can retry the same action later.
func (e *Error) Recoverable() bool {
	switch e.Kind {
	case domain.CodeNetwork, domain.CodeServerUnavailable, domain.CodeVersionConflict,
		domain.CodeAssetUploadFailed, domain.CodeRateLimited:
		return true
	}
	return false
}

// Reasons returns the publish gate reasons carried by the error.
func (e *Error) Reasons() []domain.Code {
	if e.Details == nil {
		return nil
	}
	return e.Details.Reasons
}

// IsKind reports whether err is an *Error of the given kind.
func IsKind(err error, kind domain.Code) bool {
	var e *Error
	return errors.As(err, &e) && e.Kind == kind
}

// classify maps transport and HTTP failures onto sync error kinds.
func classify(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}

	var netErr *httpx.NetworkError
	if errors.As(err, &netErr) {
		return &Error{Kind: domain.CodeNetwork, Message: netErr.Error(), Err: err}
	}

	var httpErr *httpx.HTTPError
	if !errors.As(err, &httpErr) {
		return &Error{Kind: domain.CodeNetwork, Message: err.Error(), Err: err}
	}

	var body domain.APIError
	_ = json.Unmarshal(httpErr.Body, &body)
	out := &Error{Status: httpErr.StatusCode, Message: body.Message, Details: body.Details, Err: err}

	switch {
	case httpErr.StatusCode == http.StatusConflict:
		out.Kind = domain.CodeVersionConflict
	case httpErr.StatusCode == http.StatusUnauthorized || httpErr.StatusCode == http.StatusForbidden:
		out.Kind = domain.CodePermissionDenied
	case httpErr.StatusCode == http.StatusNotFound:
		out.Kind = domain.CodeNotFound
	case httpErr.StatusCode == http.StatusTooManyRequests:
		out.Kind = domain.CodeRateLimited
	case httpErr.StatusCode >= 500:
		out.Kind = domain.CodeServerUnavailable
	case body.Code != "":
		out.Kind = body.Code
	default:
		out.Kind = domain.CodeValidation
	}
	if out.Message == "" {
		out.Message = http.StatusText(httpErr.StatusCode)
	}
	return out
}
