package syncer_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"course-authoring/internal/domain"
	"course-authoring/internal/httpx"
	"course-authoring/internal/syncer"
)

func noSleep(ctx context.Context, d time.Duration) error { return ctx.Err() }

func newTestClient(t *testing.T, h http.HandlerFunc) *syncer.Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return syncer.NewClient(srv.URL+"/api/v1", "u1",
		syncer.WithHTTPClient(srv.Client()),
		syncer.WithRetryConfig(httpx.RetryConfig{MaxAttempts: 3, Sleep: noSleep}))
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func TestClient_UpdateCourse(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPut, r.Method)
		assert.Equal(t, "/api/v1/courses/c1", r.URL.Path)
		assert.Equal(t, "u1", r.Header.Get(syncer.UserHeader))

		var body domain.CoursePayload
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		require.NotNil(t, body.ExpectedVersion)
		assert.Equal(t, int64(4), *body.ExpectedVersion)
		assert.Equal(t, "Go 101", body.Title)

		writeJSON(w, http.StatusOK, domain.CourseEnvelope{
			Course:  &domain.Course{ID: "c1", Content: body.Content},
			Version: 5,
		})
	})

	course, err := client.UpdateCourse(context.Background(), "c1", domain.Content{Title: "Go 101"}, 4)
	require.NoError(t, err)
	assert.Equal(t, "c1", course.ID)
	assert.Equal(t, int64(5), course.Version)
}

func TestClient_ErrorClassification(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    any
		kind    domain.Code
		reasons []domain.Code
	}{
		{
			name:   "version conflict",
			status: http.StatusConflict,
			body:   domain.APIError{Code: domain.CodeConflict, Message: "stale", Details: &domain.ErrorDetails{CurrentVersion: 7}},
			kind:   domain.CodeVersionConflict,
		},
		{
			name:   "unauthorized",
			status: http.StatusUnauthorized,
			body:   domain.APIError{Code: domain.CodeUnauthorized},
			kind:   domain.CodePermissionDenied,
		},
		{
			name:   "not found",
			status: http.StatusNotFound,
			body:   domain.APIError{Code: domain.CodeNotFound},
			kind:   domain.CodeNotFound,
		},
		{
			name:   "gate failed",
			status: http.StatusUnprocessableEntity,
			body: domain.APIError{
				Code:    domain.CodePublishGateFailed,
				Details: &domain.ErrorDetails{Reasons: []domain.Code{domain.CodeGateNoLessons}},
			},
			kind:    domain.CodePublishGateFailed,
			reasons: []domain.Code{domain.CodeGateNoLessons},
		},
		{
			name:   "unparseable body",
			status: http.StatusBadRequest,
			body:   "oops",
			kind:   domain.CodeValidation,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				writeJSON(w, tt.status, tt.body)
			})

			_, err := client.Publish(context.Background(), "c1", 1)
			require.Error(t, err)

			var se *syncer.Error
			require.ErrorAs(t, err, &se)
			assert.Equal(t, tt.kind, se.Kind)
			assert.Equal(t, tt.status, se.Status)
			assert.Equal(t, tt.reasons, se.Reasons())
		})
	}
}

func TestClient_RetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		writeJSON(w, http.StatusOK, domain.CourseEnvelope{Course: &domain.Course{ID: "c1"}, Version: 2})
	})

	course, err := client.GetCourse(context.Background(), "c1")
	require.NoError(t, err)
	assert.Equal(t, int64(2), course.Version)
	assert.Equal(t, int32(3), calls.Load())
}

func TestClient_ServerUnavailableAfterRetries(t *testing.T) {
	var calls atomic.Int32
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	})

	_, err := client.GetCourse(context.Background(), "c1")
	assert.True(t, syncer.IsKind(err, domain.CodeServerUnavailable))
	assert.Equal(t, int32(3), calls.Load())

	var se *syncer.Error
	require.ErrorAs(t, err, &se)
	assert.True(t, se.Recoverable())
}

func TestClient_NetworkError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	client := syncer.NewClient(url, "u1", syncer.WithRetryConfig(httpx.RetryConfig{MaxAttempts: 2, Sleep: noSleep}))
	_, err := client.GetCourse(context.Background(), "c1")
	assert.True(t, syncer.IsKind(err, domain.CodeNetwork))
}

func TestClient_UploadImage(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/courses/c1/image", r.URL.Path)
		assert.Equal(t, "image/png", r.Header.Get("Content-Type"))
		data, _ := io.ReadAll(r.Body)
		assert.Equal(t, []byte{1, 2, 3}, data)
		writeJSON(w, http.StatusCreated, domain.ImageHandle{Handle: "h-1"})
	})

	handle, err := client.UploadImage(context.Background(), "c1", "image/png", []byte{1, 2, 3})
	require.NoError(t, err)
	assert.Equal(t, "h-1", handle)
}

func TestClient_Options(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/options/levels", r.URL.Path)
		writeJSON(w, http.StatusOK, map[string]any{
			"options": []domain.Option{{Value: "beginner", Label: "Beginner"}},
		})
	})

	opts, err := client.Options(context.Background(), domain.OptionLevels)
	require.NoError(t, err)
	require.Len(t, opts, 1)
	assert.Equal(t, "beginner", opts[0].Value)
}

func TestClient_Schedule(t *testing.T) {
	at := time.Date(2030, 1, 1, 12, 0, 0, 0, time.UTC)
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/courses/c1/schedule", r.URL.Path)
		var req domain.ScheduleRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.True(t, at.Equal(req.At))
		assert.Equal(t, int64(3), req.ExpectedVersion)
		writeJSON(w, http.StatusOK, domain.CourseEnvelope{
			Course:  &domain.Course{ID: "c1", ScheduledPublishAt: &req.At},
			Version: 4,
		})
	})

	course, err := client.Schedule(context.Background(), "c1", at, 3)
	require.NoError(t, err)
	assert.Equal(t, domain.StateScheduled, course.State())
}
