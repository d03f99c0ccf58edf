package llm

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"moderation-service/internal/config"
	"moderation-service/internal/gemini"
	"moderation-service/internal/models"
	"moderation-service/internal/openrouter"

	"go.uber.org/zap"
)

// ProviderType represents the type of classification provider
type ProviderType string

const (
	ProviderGemini     ProviderType = "gemini"
	ProviderOpenRouter ProviderType = "openrouter"
)

// Provider interface for any classification capability
type Provider interface {
	Classify(ctx context.Context, req models.AnalysisRequest) (*models.AnalysisResponse, error)
	Close() error
	ModelInfo() map[string]interface{}
}

// RateLimiter implements token bucket rate limiting
type RateLimiter struct {
	mu              sync.Mutex
	tokens          int
	maxTokens       int
	refillRate      time.Duration
	lastRefill      time.Time
	minuteResetTime time.Time
}

// NewRateLimiter creates a new rate limiter
func NewRateLimiter(requestsPerMinute int) *RateLimiter {
	return &RateLimiter{
		tokens:          requestsPerMinute,
		maxTokens:       requestsPerMinute,
		refillRate:      time.Minute / time.Duration(requestsPerMinute),
		lastRefill:      time.Now(),
		minuteResetTime: time.Now().Add(time.Minute),
	}
}

// Wait blocks until a token is available
func (rl *RateLimiter) Wait(ctx context.Context) error {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	// Reset counter every minute
	now := time.Now()
	if now.After(rl.minuteResetTime) {
		rl.minuteResetTime = now.Add(time.Minute)
		rl.tokens = rl.maxTokens
		rl.lastRefill = now
	}

	// Refill tokens based on time passed
	elapsed := now.Sub(rl.lastRefill)
	tokensToAdd := int(elapsed / rl.refillRate)
	if tokensToAdd > 0 {
		rl.tokens += tokensToAdd
		if rl.tokens > rl.maxTokens {
			rl.tokens = rl.maxTokens
		}
		rl.lastRefill = now
	}

	// If no tokens available, wait
	if rl.tokens <= 0 {
		waitTime := rl.refillRate
		rl.mu.Unlock()

		select {
		case <-time.After(waitTime):
			rl.mu.Lock()
			rl.tokens = 1
			rl.lastRefill = time.Now()
		case <-ctx.Done():
			rl.mu.Lock()
			return ctx.Err()
		}
	}

	// Consume a token
	rl.tokens--

	return nil
}

// RateLimitedProvider wraps a provider with rate limiting
type RateLimitedProvider struct {
	provider Provider
	limiter  *RateLimiter
	logger   *zap.Logger
}

// NewRateLimitedProvider wraps a provider with rate limiting
func NewRateLimitedProvider(provider Provider, requestsPerMinute int, logger *zap.Logger) *RateLimitedProvider {
	return &RateLimitedProvider{
		provider: provider,
		limiter:  NewRateLimiter(requestsPerMinute),
		logger:   logger,
	}
}

func (p *RateLimitedProvider) Classify(ctx context.Context, req models.AnalysisRequest) (*models.AnalysisResponse, error) {
	if err := p.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit wait cancelled: %w", err)
	}
	return p.provider.Classify(ctx, req)
}

func (p *RateLimitedProvider) Close() error {
	return p.provider.Close()
}

func (p *RateLimitedProvider) ModelInfo() map[string]interface{} {
	return p.provider.ModelInfo()
}

// MultiProviderClient manages multiple providers with fallback
type MultiProviderClient struct {
	providers    []*RateLimitedProvider
	currentIndex int
	mu           sync.RWMutex
	logger       *zap.Logger
	failureCount map[int]int
	maxFailures  int
}

// NewMultiProviderClient creates a new multi-provider client
func NewMultiProviderClient(cfgs []config.ProviderConfig, maxFailures int, logger *zap.Logger) (*MultiProviderClient, error) {
	if len(cfgs) == 0 {
		return nil, fmt.Errorf("at least one provider is required")
	}

	if maxFailures == 0 {
		maxFailures = 3
	}

	providers := make([]*RateLimitedProvider, 0, len(cfgs))

	for i, providerCfg := range cfgs {
		var provider Provider
		var err error

		switch ProviderType(providerCfg.Type) {
		case ProviderGemini:
			provider, err = gemini.NewClient(gemini.Config{
				APIKey:    providerCfg.APIKey,
				ModelName: providerCfg.ModelName,
			}, logger)
		case ProviderOpenRouter:
			provider, err = openrouter.NewClient(openrouter.Config{
				APIKey:    providerCfg.APIKey,
				ModelName: providerCfg.ModelName,
			}, logger)
		default:
			logger.Warn("Unknown provider type, skipping",
				zap.String("type", providerCfg.Type),
				zap.Int("index", i))
			continue
		}

		if err != nil {
			logger.Error("Failed to create provider",
				zap.String("type", providerCfg.Type),
				zap.Int("index", i),
				zap.Error(err))
			continue
		}

		rateLimit := providerCfg.RequestsPerMinute
		if rateLimit == 0 {
			rateLimit = 8 // Conservative default for free tier
		}

		providers = append(providers, NewRateLimitedProvider(provider, rateLimit, logger))

		logger.Info("Provider initialized",
			zap.String("type", providerCfg.Type),
			zap.String("model", providerCfg.ModelName),
			zap.Int("rate_limit", rateLimit),
			zap.Int("index", i))
	}

	if len(providers) == 0 {
		return nil, fmt.Errorf("no providers could be initialized")
	}

	return &MultiProviderClient{
		providers:    providers,
		currentIndex: 0,
		logger:       logger,
		failureCount: make(map[int]int),
		maxFailures:  maxFailures,
	}, nil
}

func (c *MultiProviderClient) getCurrentProvider() (*RateLimitedProvider, int) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.providers[c.currentIndex], c.currentIndex
}

func (c *MultiProviderClient) switchToNextProvider() {
	c.mu.Lock()
	defer c.mu.Unlock()

	oldIndex := c.currentIndex
	c.currentIndex = (c.currentIndex + 1) % len(c.providers)

	c.logger.Info("Switching provider",
		zap.Int("from_index", oldIndex),
		zap.Int("to_index", c.currentIndex))
}

// recordFailure returns true once the provider hit its failure ceiling.
func (c *MultiProviderClient) recordFailure(providerIndex int) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.failureCount[providerIndex]++

	if c.failureCount[providerIndex] >= c.maxFailures {
		c.logger.Warn("Provider reached max failures",
			zap.Int("provider_index", providerIndex),
			zap.Int("failures", c.failureCount[providerIndex]))
		return true
	}

	return false
}

func (c *MultiProviderClient) resetFailureCount(providerIndex int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.failureCount[providerIndex] = 0
}

// Classify tries the current provider, falling back to the next on failure
func (c *MultiProviderClient) Classify(ctx context.Context, req models.AnalysisRequest) (*models.AnalysisResponse, error) {
	var lastErr error

	for attempts := 0; attempts < len(c.providers); attempts++ {
		provider, providerIndex := c.getCurrentProvider()

		result, err := provider.Classify(ctx, req)
		if err == nil {
			c.resetFailureCount(providerIndex)
			return result, nil
		}
		lastErr = err

		c.logger.Error("Provider failed",
			zap.Int("provider_index", providerIndex),
			zap.String("chapter_id", req.ChapterID),
			zap.Error(err))

		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		shouldSwitch := c.recordFailure(providerIndex)
		if shouldSwitch || isRateLimitError(err) {
			c.switchToNextProvider()
		}
	}

	return nil, fmt.Errorf("all providers failed: %w", lastErr)
}

// isRateLimitError checks if error is a rate limit error
func isRateLimitError(err error) bool {
	if err == nil {
		return false
	}
	errStr := err.Error()
	return strings.Contains(errStr, "429") ||
		strings.Contains(errStr, "quota") ||
		strings.Contains(errStr, "rate limit")
}

// Close closes all providers
func (c *MultiProviderClient) Close() error {
	var lastErr error
	for i, provider := range c.providers {
		if err := provider.Close(); err != nil {
			c.logger.Error("Failed to close provider",
				zap.Int("index", i),
				zap.Error(err))
			lastErr = err
		}
	}
	return lastErr
}

// ModelInfo returns information about the current provider
func (c *MultiProviderClient) ModelInfo() map[string]interface{} {
	provider, index := c.getCurrentProvider()
	info := provider.ModelInfo()
	info["provider_index"] = index
	info["total_providers"] = len(c.providers)
	return info
}
