// Package handler provides HTTP request handlers for the application.
package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// Pinger checks a backing store.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthReporter reports the state of a long-lived connection.
type HealthReporter interface {
	IsHealthy() bool
}

// HealthHandler handles health check endpoints. Both dependencies are optional; a nil
// dependency is reported as disabled.
type HealthHandler struct {
	cache     Pinger
	publisher HealthReporter
}

// NewHealthHandler creates a new HealthHandler instance.
func NewHealthHandler(cache Pinger, publisher HealthReporter) *HealthHandler {
	return &HealthHandler{
		cache:     cache,
		publisher: publisher,
	}
}

// LivenessProbe checks if the application is running.
func (h *HealthHandler) LivenessProbe(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "UP",
		"time":   time.Now(),
	})
}

// ReadinessProbe checks if the application is ready to serve traffic.
func (h *HealthHandler) ReadinessProbe(c *gin.Context) {
	ctx := c.Request.Context()

	cacheStatus := "disabled"
	if h.cache != nil {
		if err := h.cache.Ping(ctx); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status": "DOWN",
				"cache":  "unhealthy",
				"error":  err.Error(),
				"time":   time.Now(),
			})
			return
		}
		cacheStatus = "healthy"
	}

	rabbitStatus := "disabled"
	if h.publisher != nil {
		if !h.publisher.IsHealthy() {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status":   "DOWN",
				"rabbitmq": "unhealthy",
				"time":     time.Now(),
			})
			return
		}
		rabbitStatus = "healthy"
	}

	c.JSON(http.StatusOK, gin.H{
		"status":   "UP",
		"cache":    cacheStatus,
		"rabbitmq": rabbitStatus,
		"time":     time.Now(),
	})
}
