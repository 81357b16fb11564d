// Package ops exposes the worker's liveness and drain counters over a
// small HTTP surface.
package ops

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"docmirror/internal/mirror"
)

// Router builds the ops endpoints. stats returns the cumulative drain
// totals since the worker started.
func Router(stats func() mirror.Stats) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	r.GET("/stats", func(c *gin.Context) {
		s := stats()
		c.JSON(http.StatusOK, gin.H{
			"processed":  s.Processed,
			"completed":  s.Completed,
			"abandoned":  s.Abandoned,
			"skipped":    s.Skipped,
			"durationMs": s.Duration.Milliseconds(),
		})
	})

	return r
}
