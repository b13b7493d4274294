package router

import (
	"os"
	"runtime"
	"time"

	"github.com/gin-gonic/gin"
)

// setupHealthRoutes registers health check endpoints.
func (r *Router) setupHealthRoutes() {
	healthHandler := func(c *gin.Context) {
		dbStatus := "ok"
		if err := r.Container.DB.Exec("SELECT 1").Error; err != nil {
			dbStatus = err.Error()
			r.Logger.Error("Database health check failed", "error", err)
		}

		feedStatus := "ok"
		if err := r.Container.Redis.Ping(c.Request.Context()); err != nil {
			// In-process feed keeps working without redis.
			feedStatus = "degraded: " + err.Error()
		}

		rooms, clients := r.Hub.Counts()

		var memStats runtime.MemStats
		runtime.ReadMemStats(&memStats)

		c.JSON(200, gin.H{
			"status":    "ok",
			"version":   os.Getenv("APP_VERSION"),
			"timestamp": time.Now().Format(time.RFC3339),
			"components": gin.H{
				"database":    dbStatus,
				"change_feed": feedStatus,
				"websocket": gin.H{
					"status":  "ok",
					"rooms":   rooms,
					"clients": clients,
				},
			},
			"memory": gin.H{
				"alloc_mb":  memStats.Alloc / 1024 / 1024,
				"sys_mb":    memStats.Sys / 1024 / 1024,
				"gc_cycles": memStats.NumGC,
			},
		})
	}

	r.Engine.GET("/health", healthHandler)
	r.Engine.GET("/api/health", healthHandler)
}
