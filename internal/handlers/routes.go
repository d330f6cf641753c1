package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"performance-service/internal/middleware"
)

func RegisterRoutes(r *gin.Engine, results *ResultHandler, analytics *AnalyticsHandler) {
	r.GET("/health", func(c *gin.Context) {
		c.String(http.StatusOK, "Performance Service is healthy")
	})

	public := r.Group("/public/performance")
	{
		public.GET("/leaderboard", analytics.GetLeaderboard)
	}

	protected := r.Group("/protected/performance", middleware.RequireUser())
	{
		protected.POST("/results", results.SubmitResult)
		protected.GET("/results/history", results.GetHistory)
		protected.GET("/me", results.GetPerformance)
		protected.POST("/reconcile", results.Reconcile)
		protected.GET("/analytics", analytics.GetAnalytics)
	}
}
