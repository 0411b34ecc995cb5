package routes

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"ward-admin-server/internal/config"
	"ward-admin-server/internal/handlers"
	"ward-admin-server/internal/middleware"
	"ward-admin-server/internal/models"
)

// SetupRoutes configures the application routes.
func SetupRoutes(router *gin.Engine, db *gorm.DB, cfg *config.Config, sync handlers.EMRSyncService, gatherer prometheus.Gatherer, logger *zap.Logger) {
	emrSyncHandler := handlers.NewEMRSyncHandler(sync, logger)

	// Authenticated routes
	private := router.Group("/api/v1")
	private.Use(middleware.AuthMiddleware(cfg))
	{
		emrSyncRoutes := private.Group("/emr-sync")
		emrSyncRoutes.Use(middleware.RoleAuthMiddleware(models.RoleAdmin, models.RoleDoctor, models.RoleNurse))
		{
			emrSyncRoutes.POST("/import", emrSyncHandler.Import)
			emrSyncRoutes.GET("/status", emrSyncHandler.Status)
		}
	}

	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))

	// Simple health check endpoint
	router.GET("/health", func(c *gin.Context) {
		sqlDB, err := db.DB()
		if err == nil {
			err = sqlDB.PingContext(c.Request.Context())
		}
		if err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "DOWN"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "UP"})
	})
}
