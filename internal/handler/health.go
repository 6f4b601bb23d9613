package handler

import (
	"context"
	"net/http"
	"time"

	"cobranzas/internal/infra"
	"cobranzas/internal/worker"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// Health returns a JSON health check response.
// Checks DB and Redis connectivity, reports the store circuit breaker and the
// dead letter queues; never exposes credentials or internals.
func Health(db *gorm.DB, rdb *redis.Client, storeCB *infra.CircuitBreaker) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
		defer cancel()

		dbStatus := "connected"
		sqlDB, err := db.DB()
		if err != nil || sqlDB.PingContext(ctx) != nil {
			dbStatus = "error"
		}

		redisStatus := "connected"
		var dlq map[string]int64
		if rdb.Ping(ctx).Err() != nil {
			redisStatus = "error"
		} else {
			dlq = worker.DLQLengths(ctx, rdb)
		}

		cbState := "disabled"
		if storeCB != nil {
			cbState = storeCB.State().String()
		}

		status := http.StatusOK
		if dbStatus != "connected" || redisStatus != "connected" {
			status = http.StatusServiceUnavailable
		}

		c.JSON(status, gin.H{
			"ok":       status == http.StatusOK,
			"db":       dbStatus,
			"redis":    redisStatus,
			"store_cb": cbState,
			"dlq":      dlq,
		})
	}
}
