package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"performance-service/internal/middleware"
	"performance-service/internal/models"
	"performance-service/internal/service"
)

type AnalyticsReader interface {
	Analytics(ctx context.Context, userID string, windowDays int) (*models.Analytics, error)
	Leaderboard(ctx context.Context, topic string, windowDays int) ([]models.LeaderboardEntry, error)
}

type AnalyticsHandler struct {
	Service AnalyticsReader
}

func NewAnalyticsHandler(s AnalyticsReader) *AnalyticsHandler {
	return &AnalyticsHandler{Service: s}
}

func (h *AnalyticsHandler) GetAnalytics(c *gin.Context) {
	days, err := intQuery(c, "timeframe", service.DefaultAnalyticsWindow)
	if err != nil {
		respondError(c, err)
		return
	}
	analytics, err := h.Service.Analytics(c.Request.Context(), middleware.UserID(c), days)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, analytics)
}

func (h *AnalyticsHandler) GetLeaderboard(c *gin.Context) {
	days, err := intQuery(c, "timeframe", service.DefaultLeaderboardWindow)
	if err != nil {
		respondError(c, err)
		return
	}
	entries, err := h.Service.Leaderboard(c.Request.Context(), c.Query("topic"), days)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"leaderboard": entries})
}
