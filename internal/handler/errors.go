package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"course-authoring/internal/domain"
	"course-authoring/internal/middleware"
)

// statusFor maps API error codes to HTTP statuses.
var statusFor = map[domain.Code]int{
	domain.CodeValidation:        http.StatusUnprocessableEntity,
	domain.CodeConflict:          http.StatusConflict,
	domain.CodePublishGateFailed: http.StatusUnprocessableEntity,
	domain.CodeInvalidTransition: http.StatusUnprocessableEntity,
	domain.CodeNotFound:          http.StatusNotFound,
	domain.CodeUnauthorized:      http.StatusUnauthorized,
	domain.CodeRateLimited:       http.StatusTooManyRequests,
	domain.CodeUnavailable:       http.StatusServiceUnavailable,
}

// writeError renders err as an APIError body. Errors without a code are
// logged and reported as UNAVAILABLE.
func writeError(c *gin.Context, err error) {
	var apiErr *domain.APIError
	if errors.As(err, &apiErr) {
		status, ok := statusFor[apiErr.Code]
		if !ok {
			status = http.StatusBadRequest
		}
		c.JSON(status, apiErr)
		return
	}

	middleware.Logger(c).Error("Request failed",
		slog.String("path", c.FullPath()),
		slog.String("error", err.Error()))
	c.JSON(http.StatusInternalServerError,
		domain.NewAPIError(domain.CodeUnavailable, "internal error"))
}

// writeBindError reports a malformed request body.
func writeBindError(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, domain.NewAPIError(domain.CodeValidation, "invalid request body: %v", err))
}
