package handler

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"course-authoring/internal/domain"
	"course-authoring/internal/infrastructure/database"
	"course-authoring/internal/middleware"
	"course-authoring/internal/mocks"
	"course-authoring/internal/push"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func sampleCourse(version int64) *domain.Course {
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	return &domain.Course{
		ID:        uuid.New().String(),
		Content:   domain.Content{Title: "Intro to Go", Category: "programming"},
		CreatedBy: "user-1",
		CreatedAt: now,
		UpdatedAt: now,
		Version:   version,
	}
}

func doJSON(router http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(middleware.UserIDHeader, "user-1")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) domain.APIError {
	t.Helper()
	var body domain.APIError
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body
}

func TestCourseHandler_CreateCourse(t *testing.T) {
	t.Run("creates a course for the acting user", func(t *testing.T) {
		svc := mocks.NewMockCourseServiceInterface(t)
		created := sampleCourse(1)
		svc.EXPECT().
			CreateCourse(mock.Anything, "user-1", mock.MatchedBy(func(p domain.CoursePayload) bool {
				return p.Title == "Intro to Go"
			})).
			Return(created, nil)

		router := NewRouter(NewCourseHandler(svc, nil, 0), nil)
		w := doJSON(router, http.MethodPost, "/api/v1/courses", map[string]any{"title": "Intro to Go"})

		require.Equal(t, http.StatusCreated, w.Code)
		var env domain.CourseEnvelope
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
		assert.Equal(t, created.ID, env.Course.ID)
		assert.Equal(t, int64(1), env.Version)
	})

	t.Run("requires the user header", func(t *testing.T) {
		svc := mocks.NewMockCourseServiceInterface(t)
		router := NewRouter(NewCourseHandler(svc, nil, 0), nil)

		req := httptest.NewRequest(http.MethodPost, "/api/v1/courses", strings.NewReader(`{}`))
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.Equal(t, domain.CodeUnauthorized, decodeError(t, w).Code)
	})

	t.Run("malformed body is a bad request", func(t *testing.T) {
		svc := mocks.NewMockCourseServiceInterface(t)
		router := NewRouter(NewCourseHandler(svc, nil, 0), nil)

		req := httptest.NewRequest(http.MethodPost, "/api/v1/courses", strings.NewReader(`{"title":`))
		req.Header.Set(middleware.UserIDHeader, "user-1")
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, domain.CodeValidation, decodeError(t, w).Code)
	})

	t.Run("validation failure is unprocessable", func(t *testing.T) {
		svc := mocks.NewMockCourseServiceInterface(t)
		svc.EXPECT().CreateCourse(mock.Anything, mock.Anything, mock.Anything).Return(nil, &domain.APIError{
			Code:    domain.CodeValidation,
			Message: "course content is invalid",
			Details: &domain.ErrorDetails{Fields: map[string]domain.Code{"title": domain.CodeFieldRequired}},
		})
		router := NewRouter(NewCourseHandler(svc, nil, 0), nil)

		w := doJSON(router, http.MethodPost, "/api/v1/courses", map[string]any{})

		require.Equal(t, http.StatusUnprocessableEntity, w.Code)
		body := decodeError(t, w)
		assert.Equal(t, domain.CodeFieldRequired, body.Details.Fields["title"])
	})
}

func TestCourseHandler_ErrorStatuses(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		code   domain.Code
	}{
		{"not found", domain.NewAPIError(domain.CodeNotFound, "missing"), http.StatusNotFound, domain.CodeNotFound},
		{"conflict", &domain.APIError{Code: domain.CodeConflict, Details: &domain.ErrorDetails{CurrentVersion: 7}}, http.StatusConflict, domain.CodeConflict},
		{"gate", &domain.APIError{Code: domain.CodePublishGateFailed, Details: &domain.ErrorDetails{Reasons: []domain.Code{domain.CodeGateNoLessons}}}, http.StatusUnprocessableEntity, domain.CodePublishGateFailed},
		{"transition", domain.NewAPIError(domain.CodeInvalidTransition, "nope"), http.StatusUnprocessableEntity, domain.CodeInvalidTransition},
		{"internal", errors.New("connection refused"), http.StatusInternalServerError, domain.CodeUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := mocks.NewMockCourseServiceInterface(t)
			svc.EXPECT().Publish(mock.Anything, "c1", int64(3)).Return(nil, tt.err)
			router := NewRouter(NewCourseHandler(svc, nil, 0), nil)

			w := doJSON(router, http.MethodPost, "/api/v1/courses/c1/publish", map[string]any{"expected_version": 3})

			assert.Equal(t, tt.status, w.Code)
			body := decodeError(t, w)
			assert.Equal(t, tt.code, body.Code)
			if tt.code == domain.CodeConflict {
				assert.Equal(t, int64(7), body.Details.CurrentVersion)
			}
		})
	}
}

func TestCourseHandler_UpdateCourse(t *testing.T) {
	svc := mocks.NewMockCourseServiceInterface(t)
	updated := sampleCourse(3)
	svc.EXPECT().
		UpdateCourse(mock.Anything, updated.ID, mock.MatchedBy(func(p domain.CoursePayload) bool {
			return p.ExpectedVersion != nil && *p.ExpectedVersion == 2 && len(p.Tags) == 2
		})).
		Return(updated, nil)
	router := NewRouter(NewCourseHandler(svc, nil, 0), nil)

	w := doJSON(router, http.MethodPut, "/api/v1/courses/"+updated.ID, map[string]any{
		"title":            "Intro to Go",
		"tags":             []string{"go", "web"},
		"expected_version": 2,
	})

	require.Equal(t, http.StatusOK, w.Code)
	var env domain.CourseEnvelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	assert.Equal(t, int64(3), env.Version)
}

func TestCourseHandler_PublicationRoutes(t *testing.T) {
	at := time.Date(2026, 4, 1, 12, 0, 0, 0, time.UTC)

	t.Run("schedule", func(t *testing.T) {
		svc := mocks.NewMockCourseServiceInterface(t)
		svc.EXPECT().
			Schedule(mock.Anything, "c1", mock.MatchedBy(func(got time.Time) bool { return got.Equal(at) }), int64(2)).
			Return(sampleCourse(3), nil)
		router := NewRouter(NewCourseHandler(svc, nil, 0), nil)

		w := doJSON(router, http.MethodPost, "/api/v1/courses/c1/schedule",
			map[string]any{"at": at.Format(time.RFC3339), "expected_version": 2})
		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("schedule requires a time", func(t *testing.T) {
		svc := mocks.NewMockCourseServiceInterface(t)
		router := NewRouter(NewCourseHandler(svc, nil, 0), nil)

		w := doJSON(router, http.MethodPost, "/api/v1/courses/c1/schedule", map[string]any{"expected_version": 2})
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("cancel, unpublish and visibility", func(t *testing.T) {
		svc := mocks.NewMockCourseServiceInterface(t)
		svc.EXPECT().CancelSchedule(mock.Anything, "c1", int64(3)).Return(sampleCourse(4), nil)
		svc.EXPECT().Unpublish(mock.Anything, "c1", int64(4)).Return(sampleCourse(5), nil)
		svc.EXPECT().SetVisibility(mock.Anything, "c1", false, int64(5)).Return(sampleCourse(6), nil)
		router := NewRouter(NewCourseHandler(svc, nil, 0), nil)

		assert.Equal(t, http.StatusOK, doJSON(router, http.MethodPost, "/api/v1/courses/c1/schedule/cancel",
			map[string]any{"expected_version": 3}).Code)
		assert.Equal(t, http.StatusOK, doJSON(router, http.MethodPost, "/api/v1/courses/c1/unpublish",
			map[string]any{"expected_version": 4}).Code)
		assert.Equal(t, http.StatusOK, doJSON(router, http.MethodPost, "/api/v1/courses/c1/visibility",
			map[string]any{"is_public": false, "expected_version": 5}).Code)
	})

	t.Run("missing expected_version is rejected", func(t *testing.T) {
		svc := mocks.NewMockCourseServiceInterface(t)
		router := NewRouter(NewCourseHandler(svc, nil, 0), nil)

		w := doJSON(router, http.MethodPost, "/api/v1/courses/c1/publish", map[string]any{})
		assert.Equal(t, http.StatusBadRequest, w.Code)

		w = doJSON(router, http.MethodPost, "/api/v1/courses/c1/visibility", map[string]any{"expected_version": 1})
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestCourseHandler_UpdateStats(t *testing.T) {
	svc := mocks.NewMockCourseServiceInterface(t)
	svc.EXPECT().UpdateStats(mock.Anything, "c1", domain.CourseStats{LessonCount: 5}).Return(sampleCourse(1), nil)
	router := NewRouter(NewCourseHandler(svc, nil, 0), nil)

	w := doJSON(router, http.MethodPut, "/api/v1/courses/c1/stats", map[string]any{"lesson_count": 5})
	assert.Equal(t, http.StatusOK, w.Code)

	w = doJSON(router, http.MethodPut, "/api/v1/courses/c1/stats", map[string]any{"lesson_count": -1})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCourseHandler_Images(t *testing.T) {
	png := []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")

	t.Run("upload returns a handle", func(t *testing.T) {
		svc := mocks.NewMockCourseServiceInterface(t)
		svc.EXPECT().UploadImage(mock.Anything, "c1", png).Return("h-1", nil)
		router := NewRouter(NewCourseHandler(svc, nil, 0), nil)

		req := httptest.NewRequest(http.MethodPost, "/api/v1/courses/c1/image", bytes.NewReader(png))
		req.Header.Set("Content-Type", "image/png")
		req.Header.Set(middleware.UserIDHeader, "user-1")
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		require.Equal(t, http.StatusCreated, w.Code)
		var out domain.ImageHandle
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
		assert.Equal(t, "h-1", out.Handle)
	})

	t.Run("oversized body is truncated before the service sees it", func(t *testing.T) {
		svc := mocks.NewMockCourseServiceInterface(t)
		svc.EXPECT().
			UploadImage(mock.Anything, "c1", mock.MatchedBy(func(b []byte) bool { return len(b) == 9 })).
			Return("", &domain.APIError{Code: domain.CodeValidation})
		router := NewRouter(NewCourseHandler(svc, nil, 8), nil)

		req := httptest.NewRequest(http.MethodPost, "/api/v1/courses/c1/image", bytes.NewReader(make([]byte, 64)))
		req.Header.Set(middleware.UserIDHeader, "user-1")
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	})

	t.Run("asset is served without the user header", func(t *testing.T) {
		svc := mocks.NewMockCourseServiceInterface(t)
		svc.EXPECT().GetAsset(mock.Anything, "h-1").Return(&domain.Asset{Handle: "h-1", MimeType: "image/png", Data: png}, nil)
		router := NewRouter(NewCourseHandler(svc, nil, 0), nil)

		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/assets/h-1", nil))

		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "image/png", w.Header().Get("Content-Type"))
		assert.Equal(t, png, w.Body.Bytes())
	})
}

func TestCourseHandler_ListOptions(t *testing.T) {
	svc := mocks.NewMockCourseServiceInterface(t)
	svc.EXPECT().ListOptions(mock.Anything, domain.OptionLevels).
		Return([]domain.Option{{Value: "beginner", Label: "Beginner"}}, nil)
	router := NewRouter(NewCourseHandler(svc, nil, 0), nil)

	w := doJSON(router, http.MethodGet, "/api/v1/options/levels", nil)

	require.Equal(t, http.StatusOK, w.Code)
	var out OptionsResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	assert.Equal(t, domain.OptionLevels, out.Kind)
	assert.Equal(t, "beginner", out.Options[0].Value)
}

func TestCourseHandler_Events(t *testing.T) {
	svc := mocks.NewMockCourseServiceInterface(t)
	svc.EXPECT().GetCourse(mock.Anything, "c1").Return(sampleCourse(1), nil)
	hub := push.NewHub(4)
	srv := httptest.NewServer(NewRouter(NewCourseHandler(svc, hub, 0), nil))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/api/v1/courses/c1/events", nil)
	require.NoError(t, err)
	req.Header.Set(middleware.UserIDHeader, "user-1")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	require.Eventually(t, func() bool { return hub.Subscribers("c1") == 1 }, 2*time.Second, 10*time.Millisecond)
	require.NoError(t, hub.Publish(ctx, domain.PushEvent{Type: domain.EventCourseUpdated, CourseID: "c1", Version: 2}))

	scanner := bufio.NewScanner(resp.Body)
	var lines []string
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
		if strings.HasPrefix(scanner.Text(), "data:") {
			break
		}
	}
	assert.Contains(t, lines, "event:course_updated")
	assert.Contains(t, lines[len(lines)-1], `"version":2`)

	cancel()
	require.Eventually(t, func() bool { return hub.Subscribers("c1") == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestHealthHandler(t *testing.T) {
	svc := mocks.NewMockCourseServiceInterface(t)
	router := NewRouter(NewCourseHandler(svc, nil, 0), NewHealthHandler(database.NopPinger{}, "memory", "test"))

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))

	require.Equal(t, http.StatusOK, w.Code)
	var out HealthResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	assert.Equal(t, "healthy", out.Status)
	assert.Equal(t, "healthy", out.Services["memory"])
}

type failingPinger struct{}

func (failingPinger) Ping(context.Context) error { return errors.New("down") }

func TestHealthHandler_Unhealthy(t *testing.T) {
	h := NewHealthHandler(database.NopPinger{}, "postgres", "test").With("nats", failingPinger{})
	router := gin.New()
	router.GET("/ready", h.Ready)
	router.GET("/health", h.Health)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ready", nil))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusServiceUnavailable, w.Code)
	var out HealthResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	assert.Equal(t, map[string]string{"postgres": "healthy", "nats": "unhealthy"}, out.Services)
}
