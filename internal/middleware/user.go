package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"course-authoring/internal/domain"
)

const (
	// UserIDHeader identifies the acting user.
	UserIDHeader = "X-User-ID"
	// UserIDKey is the context key for the acting user.
	UserIDKey = "user_id"
)

// RequireUser rejects requests that do not identify the acting user.
// Authentication itself happens upstream; the header is trusted.
func RequireUser() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := c.GetHeader(UserIDHeader)
		if userID == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized,
				domain.NewAPIError(domain.CodeUnauthorized, "%s header is required", UserIDHeader))
			return
		}
		c.Set(UserIDKey, userID)
		c.Next()
	}
}

// GetUserID retrieves the acting user from the gin context.
func GetUserID(c *gin.Context) string {
	return c.GetString(UserIDKey)
}
