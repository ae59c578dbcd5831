package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"gorm.io/gorm"
)

// pingTimeout bounds every dependency check
const pingTimeout = 2 * time.Second

// Check is an extra named dependency probe reported by Health
type Check struct {
	Name  string
	Probe func(ctx context.Context) error
}

// HealthHandler handles health check HTTP requests
type HealthHandler struct {
	db     *gorm.DB
	checks []Check
}

// NewHealthHandler creates a new HealthHandler
func NewHealthHandler(db *gorm.DB, checks ...Check) *HealthHandler {
	return &HealthHandler{db: db, checks: checks}
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status   string            `json:"status"`
	Services map[string]string `json:"services"`
}

func (h *HealthHandler) pingDB(ctx context.Context) error {
	sqlDB, err := h.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// Health handles GET /health
func (h *HealthHandler) Health(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), pingTimeout)
	defer cancel()

	services := make(map[string]string, len(h.checks)+1)
	status := "healthy"

	probe := func(name string, fn func(context.Context) error) {
		if err := fn(ctx); err != nil {
			services[name] = "unhealthy"
			status = "unhealthy"
			return
		}
		services[name] = "healthy"
	}

	probe("database", h.pingDB)
	for _, check := range h.checks {
		probe(check.Name, check.Probe)
	}

	statusCode := http.StatusOK
	if status == "unhealthy" {
		statusCode = http.StatusServiceUnavailable
	}

	return c.JSON(statusCode, HealthResponse{
		Status:   status,
		Services: services,
	})
}

// Ready handles GET /ready. Only the database gates readiness.
func (h *HealthHandler) Ready(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), pingTimeout)
	defer cancel()

	sqlDB, err := h.db.DB()
	if err != nil {
		return c.JSON(http.StatusServiceUnavailable, map[string]string{
			"status": "not ready",
			"reason": "database connection failed",
		})
	}

	if err := sqlDB.PingContext(ctx); err != nil {
		return c.JSON(http.StatusServiceUnavailable, map[string]string{
			"status": "not ready",
			"reason": "database ping failed",
		})
	}

	return c.JSON(http.StatusOK, map[string]string{
		"status": "ready",
	})
}
