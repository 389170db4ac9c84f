package handlers

import (
	"context"
	"net/http"
	"time"

	"skybook/database"
	"skybook/utils"

	"github.com/gin-gonic/gin"
)

// HealthHandler reports liveness of the two backing stores.
func HealthHandler(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	status := http.StatusOK
	mongo := "up"
	if err := database.MongoClient.Ping(ctx, nil); err != nil {
		mongo = "down"
		status = http.StatusServiceUnavailable
	}
	redis := "up"
	if err := utils.GetCacheClient().Ping(ctx).Err(); err != nil {
		redis = "down"
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, gin.H{"mongo": mongo, "redis": redis})
}
