package worker

import (
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
)

// TriggerExpireHandler enqueues an immediate expiry sweep outside the cron
// schedule (the staff/testing path, like the manual points grant). Responds
// 503 when no worker client is configured (REDIS_URL unset).
func TriggerExpireHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := EnqueueExpirePoints(); err != nil {
			log.Printf("Failed to enqueue expiry sweep: %v", err)
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "expiry sweep unavailable"})
			return
		}
		c.JSON(http.StatusAccepted, gin.H{"success": true})
	}
}
