package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"course-authoring/internal/infrastructure/database"
)

const healthCheckTimeout = 2 * time.Second

type dependency struct {
	name  string
	check database.Pinger
}

// HealthHandler reports the health of the course store and, when wired,
// the push channel.
type HealthHandler struct {
	deps    []dependency
	version string
}

// NewHealthHandler creates a HealthHandler. storage names the backend in
// the health report.
func NewHealthHandler(store database.Pinger, storage, version string) *HealthHandler {
	return &HealthHandler{
		deps:    []dependency{{name: storage, check: store}},
		version: version,
	}
}

// With adds another dependency to the readiness checks.
func (h *HealthHandler) With(name string, check database.Pinger) *HealthHandler {
	h.deps = append(h.deps, dependency{name: name, check: check})
	return h
}

// HealthResponse represents the response for health check endpoints.
type HealthResponse struct {
	Status   string            `json:"status"`
	Version  string            `json:"version,omitempty"`
	Services map[string]string `json:"services,omitempty"`
}

func (h *HealthHandler) probe(ctx context.Context) (map[string]string, bool) {
	ctx, cancel := context.WithTimeout(ctx, healthCheckTimeout)
	defer cancel()

	services := make(map[string]string, len(h.deps))
	ok := true
	for _, d := range h.deps {
		if err := database.HealthCheck(ctx, d.check); err != nil {
			services[d.name] = "unhealthy"
			ok = false
			continue
		}
		services[d.name] = "healthy"
	}
	return services, ok
}

// Health handles GET /health
func (h *HealthHandler) Health(c *gin.Context) {
	services, ok := h.probe(c.Request.Context())
	if !ok {
		c.JSON(http.StatusServiceUnavailable, HealthResponse{Status: "unhealthy", Version: h.version, Services: services})
		return
	}
	c.JSON(http.StatusOK, HealthResponse{Status: "healthy", Version: h.version, Services: services})
}

// Ready handles GET /ready
func (h *HealthHandler) Ready(c *gin.Context) {
	if _, ok := h.probe(c.Request.Context()); !ok {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "not ready"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ready"})
}

// Live handles GET /live
func (h *HealthHandler) Live(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "alive"})
}
