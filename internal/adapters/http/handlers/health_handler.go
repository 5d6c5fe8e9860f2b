package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/payflow/payflow/internal/infrastructure/persistence/postgres"
)

// HealthHandler serves liveness, readiness and diagnostics.
type HealthHandler struct {
	pool    *pgxpool.Pool // nil when running without a database (tests)
	version string
	started time.Time
}

// NewHealthHandler creates the health handler.
func NewHealthHandler(pool *pgxpool.Pool, version string) *HealthHandler {
	return &HealthHandler{pool: pool, version: version, started: time.Now()}
}

// RegisterRoutes mounts the probe endpoints on the engine root.
func (h *HealthHandler) RegisterRoutes(r *gin.Engine) {
	r.GET("/health", h.Health)
	r.GET("/live", h.Live)
	r.GET("/ready", h.Ready)
	r.GET("/health/detailed", h.Detailed)
}

// Health is the basic probe.
func (h *HealthHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "version": h.version})
}

// Live reports process liveness only.
func (h *HealthHandler) Live(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "alive"})
}

// Ready pings the database; a failure returns 503 so the load balancer
// drains this instance.
func (h *HealthHandler) Ready(c *gin.Context) {
	if h.pool != nil {
		if err := postgres.HealthCheck(c.Request.Context(), h.pool); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "not ready", "database": "unreachable"})
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"status": "ready"})
}

// Detailed adds uptime and connection pool statistics.
func (h *HealthHandler) Detailed(c *gin.Context) {
	resp := gin.H{
		"status":         "ok",
		"version":        h.version,
		"uptime_seconds": int64(time.Since(h.started).Seconds()),
	}

	if h.pool != nil {
		dbStatus := "ok"
		if err := postgres.HealthCheck(c.Request.Context(), h.pool); err != nil {
			dbStatus = "unreachable"
			resp["status"] = "degraded"
		}
		stat := h.pool.Stat()
		resp["database"] = gin.H{
			"status":            dbStatus,
			"total_conns":       stat.TotalConns(),
			"idle_conns":        stat.IdleConns(),
			"acquired_conns":    stat.AcquiredConns(),
			"max_conns":         stat.MaxConns(),
			"acquire_count":     stat.AcquireCount(),
			"canceled_acquires": stat.CanceledAcquireCount(),
		}
	}

	status := http.StatusOK
	if resp["status"] == "degraded" {
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, resp)
}
