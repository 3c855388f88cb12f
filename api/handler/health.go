package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/inf-mc/NoteBot-sub001/models"
	"github.com/inf-mc/NoteBot-sub001/monitor"
	"github.com/inf-mc/NoteBot-sub001/pool"
)

// Health returns a handler for GET /api/v1/health. It stays outside auth
// so monitoring probes always work.
func Health(pm *pool.Manager, mon *monitor.Monitor, startTime time.Time) gin.HandlerFunc {
	return func(c *gin.Context) {
		status := pm.Status()
		report := mon.Report()

		health := "healthy"
		if report.MemoryWarn || (status.Pages.Max > 0 && status.Pages.InUse > int(float64(status.Pages.Max)*0.8)) {
			health = "degraded"
		}

		c.JSON(http.StatusOK, models.HealthResponse{
			Status:  health,
			Uptime:  time.Since(startTime).Round(time.Second).String(),
			Pool:    status,
			Report:  report,
			Version: "0.1.0",
		})
	}
}

// Status returns a handler for GET /api/v1/status: the raw pool snapshot.
func Status(pm *pool.Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, pm.Status())
	}
}
