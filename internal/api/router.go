package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/renewly/renewly/internal/api/cron"
	"github.com/renewly/renewly/internal/config"
	"github.com/renewly/renewly/internal/logger"
	"github.com/renewly/renewly/internal/rest/middleware"
)

// NewRouter builds the HTTP surface: a health endpoint plus the cron
// endpoints the scheduler hits. The billing flows themselves have no public
// API.
func NewRouter(cfg *config.Configuration, log *logger.Logger, billing *cron.BillingCronHandler) *gin.Engine {
	router := gin.New()

	router.Use(gin.Recovery())
	router.Use(middleware.SentryMiddleware(cfg))
	router.Use(middleware.LoggingMiddleware(log))
	router.Use(middleware.ErrorHandler())

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	cronGroup := router.Group("/cron/billing")
	{
		cronGroup.POST("/sweep", billing.SweepOverdueSubscriptions)
		cronGroup.POST("/dispatch", billing.DispatchDueJobs)
		cronGroup.POST("/charge", billing.ProcessSubscriptionCharge)
		cronGroup.POST("/preorder-charge", billing.AttemptPreorderCharge)
		cronGroup.POST("/reconcile", billing.ReconcileAbandonedAuth)
	}

	return router
}
