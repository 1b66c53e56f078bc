// Package syncer moves course edits between the form model and the
// persistence API.
package syncer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"course-authoring/internal/domain"
	"course-authoring/internal/httpx"
	"course-authoring/internal/metrics"
)

// UserHeader identifies the acting user to the persistence API.
const UserHeader = "X-User-ID"

// API is the persistence API as seen by the coordinator.
type API interface {
	GetCourse(ctx context.Context, id string) (*domain.Course, error)
	CreateCourse(ctx context.Context, content domain.Content) (*domain.Course, error)
	UpdateCourse(ctx context.Context, id string, content domain.Content, expectedVersion int64) (*domain.Course, error)
	Publish(ctx context.Context, id string, expectedVersion int64) (*domain.Course, error)
	Unpublish(ctx context.Context, id string, expectedVersion int64) (*domain.Course, error)
	Schedule(ctx context.Context, id string, at time.Time, expectedVersion int64) (*domain.Course, error)
	CancelSchedule(ctx context.Context, id string, expectedVersion int64) (*domain.Course, error)
	SetVisibility(ctx context.Context, id string, isPublic bool, expectedVersion int64) (*domain.Course, error)
}

// Client speaks the persistence API over HTTP.
type Client struct {
	baseURL    string
	userID     string
	httpClient *http.Client
	retry      httpx.RetryConfig
}

// ClientOption customizes a Client.
type ClientOption func(*Client)

// WithHTTPClient replaces the default http.Client.
func WithHTTPClient(c *http.Client) ClientOption {
	return func(cl *Client) { cl.httpClient = c }
}

// WithRetryConfig replaces the default retry policy.
func WithRetryConfig(cfg httpx.RetryConfig) ClientOption {
	return func(cl *Client) { cl.retry = cfg }
}

// NewClient creates a client for the API rooted at baseURL (e.g. http://host/api/v1).
func NewClient(baseURL, userID string, opts ...ClientOption) *Client {
	c := &Client{
		baseURL:    baseURL,
		userID:     userID,
		httpClient: &http.Client{Timeout: 15 * time.Second},
		retry:      httpx.DefaultRetryConfig(),
	}
	for _, opt := range opts {
		opt(c)
	}
	onRetry := c.retry.OnRetry
	c.retry.OnRetry = func(attempt int, err error) {
		metrics.ClientRetriesTotal.Inc()
		if onRetry != nil {
			onRetry(attempt, err)
		}
	}
	return c
}

func (c *Client) GetCourse(ctx context.Context, id string) (*domain.Course, error) {
	return c.course(ctx, http.MethodGet, "/courses/"+url.PathEscape(id), nil)
}

func (c *Client) CreateCourse(ctx context.Context, content domain.Content) (*domain.Course, error) {
	return c.course(ctx, http.MethodPost, "/courses", domain.CoursePayload{Content: content})
}

func (c *Client) UpdateCourse(ctx context.Context, id string, content domain.Content, expectedVersion int64) (*domain.Course, error) {
	return c.course(ctx, http.MethodPut, "/courses/"+url.PathEscape(id),
		domain.CoursePayload{Content: content, ExpectedVersion: &expectedVersion})
}

func (c *Client) Publish(ctx context.Context, id string, expectedVersion int64) (*domain.Course, error) {
	return c.course(ctx, http.MethodPost, "/courses/"+url.PathEscape(id)+"/publish",
		domain.VersionRequest{ExpectedVersion: expectedVersion})
}

func (c *Client) Unpublish(ctx context.Context, id string, expectedVersion int64) (*domain.Course, error) {
	return c.course(ctx, http.MethodPost, "/courses/"+url.PathEscape(id)+"/unpublish",
		domain.VersionRequest{ExpectedVersion: expectedVersion})
}

func (c *Client) Schedule(ctx context.Context, id string, at time.Time, expectedVersion int64) (*domain.Course, error) {
	return c.course(ctx, http.MethodPost, "/courses/"+url.PathEscape(id)+"/schedule",
		domain.ScheduleRequest{At: at.UTC(), ExpectedVersion: expectedVersion})
}

func (c *Client) CancelSchedule(ctx context.Context, id string, expectedVersion int64) (*domain.Course, error) {
	return c.course(ctx, http.MethodPost, "/courses/"+url.PathEscape(id)+"/schedule/cancel",
		domain.VersionRequest{ExpectedVersion: expectedVersion})
}

func (c *Client) SetVisibility(ctx context.Context, id string, isPublic bool, expectedVersion int64) (*domain.Course, error) {
	return c.course(ctx, http.MethodPost, "/courses/"+url.PathEscape(id)+"/visibility",
		domain.VisibilityRequest{IsPublic: isPublic, ExpectedVersion: expectedVersion})
}

// UploadImage stores a cover image and returns its handle.
func (c *Client) UploadImage(ctx context.Context, courseID, mimeType string, data []byte) (string, error) {
	var out domain.ImageHandle
	err := c.do(ctx, http.MethodPost, "/courses/"+url.PathEscape(courseID)+"/image", mimeType, data, &out)
	if err != nil {
		return "", err
	}
	return out.Handle, nil
}

// Options fetches a curated option set.
func (c *Client) Options(ctx context.Context, kind domain.OptionKind) ([]domain.Option, error) {
	var out struct {
		Options []domain.Option `json:"options"`
	}
	if err := c.do(ctx, http.MethodGet, "/options/"+url.PathEscape(string(kind)), "", nil, &out); err != nil {
		return nil, err
	}
	return out.Options, nil
}

func (c *Client) course(ctx context.Context, method, path string, in any) (*domain.Course, error) {
	var body []byte
	if in != nil {
		var err error
		if body, err = json.Marshal(in); err != nil {
			return nil, fmt.Errorf("encode request: %w", err)
		}
	}
	var env domain.CourseEnvelope
	if err := c.do(ctx, method, path, "application/json", body, &env); err != nil {
		return nil, err
	}
	if env.Course == nil {
		return nil, &Error{Kind: domain.CodeServerUnavailable, Message: "response carried no course"}
	}
	env.Course.Version = env.Version
	return env.Course, nil
}

func (c *Client) do(ctx context.Context, method, path, contentType string, body []byte, out any) error {
	build := func(ctx context.Context) (*http.Request, error) {
		var r io.Reader
		if body != nil {
			r = bytes.NewReader(body)
		}
		req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, r)
		if err != nil {
			return nil, err
		}
		if body != nil && contentType != "" {
			req.Header.Set("Content-Type", contentType)
		}
		req.Header.Set("Accept", "application/json")
		req.Header.Set(UserHeader, c.userID)
		return req, nil
	}

	_, respBody, err := httpx.DoWithRetry(ctx, c.httpClient, build, c.retry)
	if err != nil {
		return classify(err)
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return &Error{Kind: domain.CodeServerUnavailable, Message: "malformed response", Err: err}
	}
	return nil
}
