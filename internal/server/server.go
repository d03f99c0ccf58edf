package server

import (
	"net/http"

	"moderation-service/internal/config"
	"moderation-service/internal/engine"
	"moderation-service/internal/handler"
	"moderation-service/internal/middleware"
	"moderation-service/internal/repository"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type Server struct {
	router *gin.Engine
	logger *zap.Logger
}

// NewServer builds the HTTP surface over the decision engine and the
// queue read model.
func NewServer(eng *engine.Engine, queueRepo repository.QueueRepository, cfg *config.Config, logger *zap.Logger) *Server {
	if !cfg.Server.Dev {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.Default()

	// CORS for the moderation console
	router.Use(func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	})

	s := &Server{
		router: router,
		logger: logger,
	}

	moderationHandler := handler.NewModerationHandler(eng, logger)
	queueHandler := handler.NewQueueHandler(queueRepo, logger)

	// Ping route for health check
	router.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "pong"})
	})

	// Submission and invalidation are called by the authoring platform
	// over the internal network.
	api := router.Group("/api/moderation")
	api.POST("/submit", moderationHandler.Submit)
	api.POST("/:chapterId/invalidate", moderationHandler.Invalidate)

	// Moderator-facing routes require an authenticated moderator.
	authRequired := router.Group("/api/moderation")
	authRequired.Use(middleware.AuthMiddleware([]byte(cfg.Auth.JWTSecret), logger))
	{
		authRequired.GET("/queue", queueHandler.ListQueue)
		authRequired.GET("/:chapterId", moderationHandler.GetRecord)
		authRequired.GET("/:chapterId/decisions", moderationHandler.ListDecisions)
		authRequired.POST("/:chapterId/decide", moderationHandler.Decide)
		authRequired.POST("/:chapterId/recheck", moderationHandler.Recheck)
	}

	return s
}

// Handler exposes the router for the HTTP server.
func (s *Server) Handler() http.Handler {
	return s.router
}
