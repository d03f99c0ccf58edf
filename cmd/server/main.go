package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"moderation-service/internal/config"
	"moderation-service/internal/engine"
	"moderation-service/internal/gemini"
	"moderation-service/internal/llm"
	"moderation-service/internal/platform_client"
	"moderation-service/internal/repository"
	"moderation-service/internal/server"
	"moderation-service/internal/telegram_bot"

	"go.uber.org/zap"
)

func main() {
	// Load configuration
	cfgPath := "configs/config.yml"
	if v := os.Getenv("CONFIG_PATH"); v != "" {
		cfgPath = v
	}
	cfg, err := config.LoadConfig(cfgPath)
	if err != nil {
		panic(fmt.Sprintf("failed to load config: %v", err))
	}

	// Initialize logger
	var logger *zap.Logger
	if cfg.Server.Dev {
		logger, err = zap.NewDevelopment()
	} else {
		logger, err = zap.NewProduction()
	}
	if err != nil {
		panic(err)
	}
	defer func() {
		_ = logger.Sync()
	}()

	logger.Info("Starting Moderation Service...")

	// Database connection and migrations
	db, err := repository.NewPostgresDB(cfg.Database.URL, logger)
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer db.Close()

	repository.MigrateDB(db, logger)

	// Initialize repositories
	moderationRepo := repository.NewModerationRepository(db, logger)
	decisionRepo := repository.NewDecisionRepository(db, logger)
	policyRepo := repository.NewPolicyRepository(db, logger)
	queueRepo := repository.NewQueueRepository(db, logger)

	// Initialize classification provider (multi-provider with rate
	// limiting, single Gemini fallback)
	var provider llm.Provider

	if len(cfg.Providers) > 0 {
		multiClient, err := llm.NewMultiProviderClient(cfg.Providers, cfg.MaxFailuresBeforeSwitch, logger)
		if err != nil {
			logger.Warn("Failed to initialize multi-provider client, falling back to single provider", zap.Error(err))
		} else {
			provider = multiClient
			defer multiClient.Close()
			logger.Info("Multi-provider client initialized", zap.Int("provider_count", len(cfg.Providers)))
		}
	}

	if provider == nil {
		if cfg.Gemini.APIKey == "" {
			logger.Fatal("No classification provider configured. Set providers or gemini.api_key in the config")
		}

		geminiClient, err := gemini.NewClient(gemini.Config{
			APIKey:    cfg.Gemini.APIKey,
			ModelName: cfg.Gemini.ModelName,
		}, logger)
		if err != nil {
			logger.Fatal("Failed to initialize Gemini client", zap.Error(err))
		}
		defer geminiClient.Close()

		provider = llm.NewRateLimitedProvider(geminiClient, 8, logger)
		logger.Info("Single provider client initialized with rate limiting")
	}

	invoker := llm.NewInvoker(provider, logger,
		llm.WithMaxAttempts(cfg.Analysis.MaxAttempts),
		llm.WithMaxConcurrent(cfg.Analysis.MaxConcurrent))

	// Platform client for chapter fetches and decision effects
	platformClient := platform_client.NewClient(
		cfg.Platform.URL,
		time.Duration(cfg.Platform.TimeoutSeconds)*time.Second,
		logger)

	// Optional Telegram alerts for blocked chapters
	var observer engine.Observer
	if cfg.Alerts.Enabled {
		bot, err := telegram_bot.NewBot(cfg.Alerts.BotToken, cfg.Alerts.ChatID, logger)
		if err != nil {
			logger.Warn("Failed to initialize Telegram bot, continuing without alerts", zap.Error(err))
		} else {
			observer = bot
		}
	}

	eng := engine.New(engine.Params{
		Store:           moderationRepo,
		Decisions:       decisionRepo,
		Policies:        policyRepo,
		Analyzer:        invoker,
		Effects:         platformClient,
		Chapters:        platformClient,
		Observer:        observer,
		Logger:          logger,
		PolicyCategory:  cfg.Analysis.PolicyCategory,
		AnalysisTimeout: time.Duration(cfg.Analysis.TimeoutSeconds) * time.Second,
	})

	srv := server.NewServer(eng, queueRepo, cfg, logger)

	httpServer := &http.Server{
		Addr:    ":" + cfg.Server.Port,
		Handler: srv.Handler(),
	}

	go func() {
		logger.Info("Server starting", zap.String("port", cfg.Server.Port))
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	// Wait for interrupt signal
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()
	<-ctx.Done()

	logger.Info("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Fatal("Server forced to shutdown", zap.Error(err))
	}

	logger.Info("Server exited")
}
