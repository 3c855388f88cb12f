package api

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/inf-mc/NoteBot-sub001/api/handler"
	"github.com/inf-mc/NoteBot-sub001/api/middleware"
	"github.com/inf-mc/NoteBot-sub001/config"
	"github.com/inf-mc/NoteBot-sub001/events"
	"github.com/inf-mc/NoteBot-sub001/executor"
	"github.com/inf-mc/NoteBot-sub001/monitor"
	"github.com/inf-mc/NoteBot-sub001/ops"
	"github.com/inf-mc/NoteBot-sub001/pool"
)

// NewRouter creates a configured Gin engine with all routes and middleware.
//
// Middleware chain:
//
//	Global:  Recovery → Logger
//	API:     Auth (if enabled) → RateLimit
//
// Health and status are intentionally outside auth so monitoring probes
// always work.
func NewRouter(pm *pool.Manager, ex *executor.Executor, mon *monitor.Monitor, bus *events.Bus, cfg *config.Config, startTime time.Time) *gin.Engine {
	gin.SetMode(cfg.Server.Mode)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(gin.Logger())

	policy := ops.NewDomainPolicy(cfg.Security)

	v1 := r.Group("/api/v1")

	v1.GET("/health", handler.Health(pm, mon, startTime))
	v1.GET("/status", handler.Status(pm))

	protected := v1.Group("")
	if cfg.Auth.Enabled {
		protected.Use(middleware.Auth(cfg.Auth.APIKeys))
	}
	protected.Use(middleware.RateLimit(cfg.RateLimit, bus))

	protected.POST("/scrape", handler.Scrape(ex, policy, cfg.Security.BlockedResourceTypes))
	protected.POST("/screenshot", handler.Screenshot(ex, policy))
	protected.POST("/pdf", handler.PDF(ex, policy))

	return r
}
