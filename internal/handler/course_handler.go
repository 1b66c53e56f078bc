package handler

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"course-authoring/internal/domain"
	"course-authoring/internal/middleware"
	"course-authoring/internal/push"
	"course-authoring/internal/service"
)

// EventSource hands out push subscriptions for a course.
type EventSource interface {
	Subscribe(courseID string) *push.Subscription
}

// CourseHandler handles course-related HTTP requests.
type CourseHandler struct {
	courseService service.CourseServiceInterface
	events        EventSource
	maxImageBytes int
	keepAlive     time.Duration
}

// NewCourseHandler creates a new CourseHandler. events may be nil, which
// disables the event stream.
func NewCourseHandler(courseService service.CourseServiceInterface, events EventSource, maxImageBytes int) *CourseHandler {
	if maxImageBytes <= 0 {
		maxImageBytes = domain.MaxCoverImageBytes
	}
	return &CourseHandler{
		courseService: courseService,
		events:        events,
		maxImageBytes: maxImageBytes,
		keepAlive:     25 * time.Second,
	}
}

// versionRequest is the body of publish, unpublish and cancel.
type versionRequest struct {
	ExpectedVersion *int64 `json:"expected_version" binding:"required,min=1"`
}

type scheduleRequest struct {
	At              *time.Time `json:"at" binding:"required"`
	ExpectedVersion *int64     `json:"expected_version" binding:"required,min=1"`
}

type visibilityRequest struct {
	IsPublic        *bool  `json:"is_public" binding:"required"`
	ExpectedVersion *int64 `json:"expected_version" binding:"required,min=1"`
}

// OptionsResponse lists a curated option set.
type OptionsResponse struct {
	Kind    domain.OptionKind `json:"kind"`
	Options []domain.Option   `json:"options"`
}

func envelope(c *domain.Course) domain.CourseEnvelope {
	return domain.CourseEnvelope{Course: c, Version: c.Version}
}

// ListOptions handles GET /api/v1/options/:kind
func (h *CourseHandler) ListOptions(c *gin.Context) {
	kind := domain.OptionKind(c.Param("kind"))
	opts, err := h.courseService.ListOptions(c.Request.Context(), kind)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, OptionsResponse{Kind: kind, Options: opts})
}

// CreateCourse handles POST /api/v1/courses
func (h *CourseHandler) CreateCourse(c *gin.Context) {
	var payload domain.CoursePayload
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxJSONBodyBytes)
	if err := c.ShouldBindJSON(&payload); err != nil {
		writeBindError(c, err)
		return
	}

	course, err := h.courseService.CreateCourse(c.Request.Context(), middleware.GetUserID(c), payload)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, envelope(course))
}

// GetCourse handles GET /api/v1/courses/:id
func (h *CourseHandler) GetCourse(c *gin.Context) {
	course, err := h.courseService.GetCourse(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, envelope(course))
}

// UpdateCourse handles PUT /api/v1/courses/:id
func (h *CourseHandler) UpdateCourse(c *gin.Context) {
	var payload domain.CoursePayload
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxJSONBodyBytes)
	if err := c.ShouldBindJSON(&payload); err != nil {
		writeBindError(c, err)
		return
	}

	course, err := h.courseService.UpdateCourse(c.Request.Context(), c.Param("id"), payload)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, envelope(course))
}

// UploadImage handles POST /api/v1/courses/:id/image. The body is the raw
// image; its type is sniffed, not taken from Content-Type.
func (h *CourseHandler) UploadImage(c *gin.Context) {
	data, err := io.ReadAll(io.LimitReader(c.Request.Body, int64(h.maxImageBytes)+1))
	if err != nil {
		writeBindError(c, err)
		return
	}
	if len(data) == 0 {
		c.JSON(http.StatusBadRequest, &domain.APIError{
			Code:    domain.CodeValidation,
			Message: "image body is empty",
			Details: &domain.ErrorDetails{Fields: map[string]domain.Code{domain.FieldCoverImage: domain.CodeFieldRequired}},
		})
		return
	}

	handle, err := h.courseService.UploadImage(c.Request.Context(), c.Param("id"), data)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, domain.ImageHandle{Handle: handle})
}

// Publish handles POST /api/v1/courses/:id/publish
func (h *CourseHandler) Publish(c *gin.Context) {
	h.versioned(c, h.courseService.Publish)
}

// Unpublish handles POST /api/v1/courses/:id/unpublish
func (h *CourseHandler) Unpublish(c *gin.Context) {
	h.versioned(c, h.courseService.Unpublish)
}

// CancelSchedule handles POST /api/v1/courses/:id/schedule/cancel
func (h *CourseHandler) CancelSchedule(c *gin.Context) {
	h.versioned(c, h.courseService.CancelSchedule)
}

func (h *CourseHandler) versioned(c *gin.Context, op func(ctx context.Context, id string, expectedVersion int64) (*domain.Course, error)) {
	var req versionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeBindError(c, err)
		return
	}
	course, err := op(c.Request.Context(), c.Param("id"), *req.ExpectedVersion)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, envelope(course))
}

// Schedule handles POST /api/v1/courses/:id/schedule
func (h *CourseHandler) Schedule(c *gin.Context) {
	var req scheduleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeBindError(c, err)
		return
	}
	course, err := h.courseService.Schedule(c.Request.Context(), c.Param("id"), *req.At, *req.ExpectedVersion)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, envelope(course))
}

// SetVisibility handles POST /api/v1/courses/:id/visibility
func (h *CourseHandler) SetVisibility(c *gin.Context) {
	var req visibilityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeBindError(c, err)
		return
	}
	course, err := h.courseService.SetVisibility(c.Request.Context(), c.Param("id"), *req.IsPublic, *req.ExpectedVersion)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, envelope(course))
}

// UpdateStats handles PUT /api/v1/courses/:id/stats, called by the lesson
// and enrollment subsystems.
func (h *CourseHandler) UpdateStats(c *gin.Context) {
	var stats domain.CourseStats
	if err := c.ShouldBindJSON(&stats); err != nil {
		writeBindError(c, err)
		return
	}
	course, err := h.courseService.UpdateStats(c.Request.Context(), c.Param("id"), stats)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, envelope(course))
}

// GetAsset handles GET /api/v1/assets/:handle
func (h *CourseHandler) GetAsset(c *gin.Context) {
	a, err := h.courseService.GetAsset(c.Request.Context(), c.Param("handle"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.Header("Cache-Control", assetCacheControl)
	c.Data(http.StatusOK, a.MimeType, a.Data)
}

// Events handles GET /api/v1/courses/:id/events, streaming course_updated
// notifications as server-sent events until the client disconnects.
func (h *CourseHandler) Events(c *gin.Context) {
	if h.events == nil {
		c.JSON(http.StatusNotFound, domain.NewAPIError(domain.CodeNotFound, "event stream is disabled"))
		return
	}
	id := c.Param("id")
	if _, err := h.courseService.GetCourse(c.Request.Context(), id); err != nil {
		writeError(c, err)
		return
	}

	sub := h.events.Subscribe(id)
	defer sub.Close()

	log := middleware.Logger(c).With(slog.String("course_id", id))
	log.Debug("Event stream opened")

	keepAlive := time.NewTicker(h.keepAlive)
	defer keepAlive.Stop()

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("X-Accel-Buffering", "no")
	c.Status(http.StatusOK)
	c.Writer.Flush()

	c.Stream(func(w io.Writer) bool {
		select {
		case evt, ok := <-sub.C:
			if !ok {
				return false
			}
			c.SSEvent(evt.Type, evt)
			return true
		case <-keepAlive.C:
			c.SSEvent("keepalive", time.Now().UTC().Format(TimeFormat))
			return true
		case <-c.Request.Context().Done():
			log.Debug("Event stream closed")
			return false
		}
	})
}
