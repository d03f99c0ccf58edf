package handler

import (
	"errors"
	"net/http"

	"moderation-service/internal/engine"
	"moderation-service/internal/models"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type ModerationHandler interface {
	Submit(c *gin.Context)
	Decide(c *gin.Context)
	Recheck(c *gin.Context)
	Invalidate(c *gin.Context)
	GetRecord(c *gin.Context)
	ListDecisions(c *gin.Context)
}

type moderationHandler struct {
	engine *engine.Engine
	logger *zap.Logger
}

func NewModerationHandler(eng *engine.Engine, logger *zap.Logger) ModerationHandler {
	return &moderationHandler{engine: eng, logger: logger}
}

// respondError maps the core's error taxonomy onto HTTP statuses.
func respondError(c *gin.Context, logger *zap.Logger, err error) {
	switch {
	case errors.Is(err, models.ErrValidation):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, models.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, models.ErrConcurrency):
		c.JSON(http.StatusConflict, gin.H{"error": "Record was modified concurrently, please re-fetch and retry"})
	case errors.Is(err, models.ErrStaleContent):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, models.ErrPolicyUnavailable):
		// Retryable: the policy store is down, not the request wrong.
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Policy snapshot unavailable, please retry"})
	default:
		logger.Error("Unhandled moderation error", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
	}
}

// SubmitRequest is a chapter submission or content-changed event.
type SubmitRequest struct {
	ChapterID string `json:"chapter_id" binding:"required"`
	Title     string `json:"title"`
	Author    string `json:"author"`
	Content   string `json:"content" binding:"required"`
}

// Submit handles POST /api/moderation/submit
func (h *moderationHandler) Submit(c *gin.Context) {
	var req SubmitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	rec, err := h.engine.Submit(c.Request.Context(), engine.SubmitInput{
		ChapterID: req.ChapterID,
		Title:     req.Title,
		Author:    req.Author,
		Content:   req.Content,
	})
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"record": rec})
}

// DecideRequest is a moderator decision.
type DecideRequest struct {
	Action string `json:"action" binding:"required"`
	Note   string `json:"note"`
	Force  bool   `json:"force"`
}

// Decide handles POST /api/moderation/:chapterId/decide
func (h *moderationHandler) Decide(c *gin.Context) {
	var req DecideRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	moderator := c.GetString("username")

	rec, err := h.engine.Decide(c.Request.Context(), engine.DecideInput{
		ChapterID: c.Param("chapterId"),
		Action:    req.Action,
		Note:      req.Note,
		Moderator: moderator,
		Force:     req.Force,
	})
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"record": rec})
}

// Recheck handles POST /api/moderation/:chapterId/recheck
func (h *moderationHandler) Recheck(c *gin.Context) {
	rec, err := h.engine.Recheck(c.Request.Context(), c.Param("chapterId"))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"record": rec})
}

// InvalidateRequest marks a record stale without re-analysis.
type InvalidateRequest struct {
	ContentHash string `json:"content_hash" binding:"required"`
}

// Invalidate handles POST /api/moderation/:chapterId/invalidate
func (h *moderationHandler) Invalidate(c *gin.Context) {
	var req InvalidateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	rec, err := h.engine.Invalidate(c.Request.Context(), c.Param("chapterId"), req.ContentHash)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"record": rec})
}

// GetRecord handles GET /api/moderation/:chapterId
func (h *moderationHandler) GetRecord(c *gin.Context) {
	rec, err := h.engine.GetRecord(c.Request.Context(), c.Param("chapterId"))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"record": rec})
}

// ListDecisions handles GET /api/moderation/:chapterId/decisions
func (h *moderationHandler) ListDecisions(c *gin.Context) {
	decisions, err := h.engine.ListDecisions(c.Request.Context(), c.Param("chapterId"))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	if decisions == nil {
		decisions = []*models.Decision{}
	}

	c.JSON(http.StatusOK, gin.H{"decisions": decisions})
}
