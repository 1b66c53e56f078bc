package handler

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"course-authoring/internal/middleware"
)

// NewRouter wires the HTTP API. health may be nil.
func NewRouter(courses *CourseHandler, health *HealthHandler) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestID())
	router.Use(middleware.Metrics())
	router.Use(middleware.AccessLog())

	if health != nil {
		router.GET("/health", health.Health)
		router.GET("/ready", health.Ready)
		router.GET("/live", health.Live)
	}
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := router.Group("/api/v1")
	{
		// Cover images are referenced from student-facing pages.
		v1.GET("/assets/:handle", courses.GetAsset)

		authed := v1.Group("", middleware.RequireUser())
		authed.GET("/options/:kind", courses.ListOptions)

		c := authed.Group("/courses")
		{
			c.POST("", courses.CreateCourse)
			c.GET("/:id", courses.GetCourse)
			c.PUT("/:id", courses.UpdateCourse)
			c.POST("/:id/image", courses.UploadImage)
			c.POST("/:id/publish", courses.Publish)
			c.POST("/:id/unpublish", courses.Unpublish)
			c.POST("/:id/schedule", courses.Schedule)
			c.POST("/:id/schedule/cancel", courses.CancelSchedule)
			c.POST("/:id/visibility", courses.SetVisibility)
			c.PUT("/:id/stats", courses.UpdateStats)
			c.GET("/:id/events", courses.Events)
		}
	}

	return router
}
