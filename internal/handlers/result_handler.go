package handlers

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"performance-service/internal/apperr"
	"performance-service/internal/middleware"
	"performance-service/internal/models"
	"performance-service/internal/service"
)

type ResultProcessor interface {
	Submit(ctx context.Context, userID string, sub models.Submission) (*service.SubmitOutcome, error)
	Reconcile(ctx context.Context, userID string) (int, error)
	Performance(ctx context.Context, userID string) (*models.StudentRecord, error)
	History(ctx context.Context, userID string, q service.HistoryQuery) (*service.HistoryPage, error)
}

type ResultHandler struct {
	Service ResultProcessor
}

func NewResultHandler(s ResultProcessor) *ResultHandler {
	return &ResultHandler{Service: s}
}

// SubmitResult answers 201 when metrics were updated and 202 when the result
// is stored but the metrics update is still pending.
func (h *ResultHandler) SubmitResult(c *gin.Context) {
	var sub models.Submission
	if err := c.ShouldBindJSON(&sub); err != nil {
		respondError(c, apperr.Validation("INVALID_SUBMISSION", "invalid request body: %v", err))
		return
	}

	out, err := h.Service.Submit(c.Request.Context(), middleware.UserID(c), sub)
	if err != nil {
		respondError(c, err)
		return
	}

	status := http.StatusCreated
	if out.Status == service.StatusPending {
		status = http.StatusAccepted
	}
	c.JSON(status, out)
}

func (h *ResultHandler) GetHistory(c *gin.Context) {
	page, err := intQuery(c, "page", 1)
	if err != nil {
		respondError(c, err)
		return
	}
	limit, err := intQuery(c, "limit", 10)
	if err != nil {
		respondError(c, err)
		return
	}

	history, err := h.Service.History(c.Request.Context(), middleware.UserID(c), service.HistoryQuery{
		Page:  page,
		Limit: limit,
		Topic: c.Query("topic"),
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, history)
}

func (h *ResultHandler) GetPerformance(c *gin.Context) {
	student, err := h.Service.Performance(c.Request.Context(), middleware.UserID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"performanceMetrics": student.PerformanceMetrics,
		"achievements":       student.Achievements,
	})
}

func (h *ResultHandler) Reconcile(c *gin.Context) {
	applied, err := h.Service.Reconcile(c.Request.Context(), middleware.UserID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"applied": applied})
}

func intQuery(c *gin.Context, key string, def int) (int, error) {
	raw := c.Query(key)
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, apperr.Validation("INVALID_QUERY", "%s must be an integer", key)
	}
	return v, nil
}
