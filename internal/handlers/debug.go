package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"messaging-service/internal/models"
	"messaging-service/internal/telemetry"
)

// RoomLister reports the live room registry, used by the debug surface only.
type RoomLister interface {
	RoomSizes() map[models.RoomID]int
}

// RegisterDebugRoutes wires endpoints that exist only outside production:
// a probe for the audit pipeline and a dump of the live room registry.
func RegisterDebugRoutes(router *gin.Engine, emitter *telemetry.AuditEmitter, hub RoomLister, enabled bool) {
	if !enabled {
		return
	}

	router.GET("/debug/audit-test", func(c *gin.Context) {
		if emitter == nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "audit emitter not configured"})
			return
		}
		emitter.Emit(c.Request.Context(), "INFO", "audit test", requestIDFromContext(c), userIDFromContext(c))
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	router.GET("/debug/rooms", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"rooms": hub.RoomSizes()})
	})
}
