package handlers

import (
	"time"

	"solarchat/internal/config"
	"solarchat/internal/utils"
	"solarchat/pkg/database"

	"github.com/gin-gonic/gin"
)

// HealthCheck reports service liveness and database connectivity.
func HealthCheck(c *gin.Context) {
	cfg := config.Load()

	utils.SuccessResponse(c, gin.H{
		"status":    "alive",
		"app":       cfg.App.Name,
		"version":   cfg.App.Version,
		"database":  database.HealthCheck(),
		"timestamp": time.Now(),
	})
}
