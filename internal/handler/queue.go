package handler

import (
	"net/http"
	"strconv"

	"moderation-service/internal/models"
	"moderation-service/internal/repository"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type QueueHandler interface {
	ListQueue(c *gin.Context)
}

type queueHandler struct {
	queueRepo repository.QueueRepository
	logger    *zap.Logger
}

func NewQueueHandler(queueRepo repository.QueueRepository, logger *zap.Logger) QueueHandler {
	return &queueHandler{queueRepo: queueRepo, logger: logger}
}

// ListQueue handles GET /api/moderation/queue
// Query parameters:
// - status: filter by aggregate status (optional)
// - risk_min, risk_max: inclusive risk score range (optional)
// - search: free-text search over chapter title and author (optional)
// - page, per_page: pagination
func (h *queueHandler) ListQueue(c *gin.Context) {
	var params repository.QueueParams

	if raw := c.Query("status"); raw != "" {
		status := models.Status(raw)
		if !status.Valid() {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid status. Valid values: AI_PENDING, AI_WARN, AI_BLOCK, AI_PASSED"})
			return
		}
		params.Status = &status
	}

	intQuery := func(name string) (*int, bool) {
		raw := c.Query(name)
		if raw == "" {
			return nil, true
		}
		v, err := strconv.Atoi(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid " + name})
			return nil, false
		}
		return &v, true
	}

	riskMin, ok := intQuery("risk_min")
	if !ok {
		return
	}
	riskMax, ok := intQuery("risk_max")
	if !ok {
		return
	}
	params.RiskMin = riskMin
	params.RiskMax = riskMax

	params.Search = c.Query("search")
	params.Page, _ = strconv.Atoi(c.DefaultQuery("page", "1"))
	params.PerPage, _ = strconv.Atoi(c.DefaultQuery("per_page", "25"))

	page, err := h.queueRepo.List(c.Request.Context(), params)
	if err != nil {
		h.logger.Error("Failed to list moderation queue", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve moderation queue"})
		return
	}

	c.JSON(http.StatusOK, page)
}
