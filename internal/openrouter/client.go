package openrouter

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"moderation-service/internal/gemini"
	"moderation-service/internal/models"

	"go.uber.org/zap"
)

// Client represents an OpenRouter API client.
type Client struct {
	apiKey     string
	baseURL    string
	modelName  string
	httpClient *http.Client
	logger     *zap.Logger
}

// Config holds configuration for OpenRouter client.
type Config struct {
	APIKey    string
	ModelName string // e.g., "meta-llama/llama-3.2-3b-instruct:free"
}

// openRouterRequest represents the request structure for OpenRouter API.
type openRouterRequest struct {
	Model       string              `json:"model"`
	Messages    []openRouterMessage `json:"messages"`
	Temperature float64             `json:"temperature,omitempty"`
	MaxTokens   int                 `json:"max_tokens,omitempty"`
}

type openRouterMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// openRouterResponse represents the response structure from OpenRouter API.
type openRouterResponse struct {
	ID      string `json:"id"`
	Choices []struct {
		Message struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
		Code    string `json:"code"`
	} `json:"error,omitempty"`
}

// NewClient creates a new OpenRouter client.
func NewClient(cfg Config, logger *zap.Logger) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("openrouter API key is required")
	}

	if cfg.ModelName == "" {
		cfg.ModelName = "meta-llama/llama-3.2-3b-instruct:free"
	}

	client := &Client{
		apiKey:     cfg.APIKey,
		baseURL:    "https://openrouter.ai/api/v1",
		modelName:  cfg.ModelName,
		httpClient: &http.Client{Timeout: 60 * time.Second},
		logger:     logger,
	}

	logger.Info("OpenRouter client initialized", zap.String("model", cfg.ModelName))

	return client, nil
}

// Classify sends a chapter and policy snapshot to OpenRouter.
func (c *Client) Classify(ctx context.Context, req models.AnalysisRequest) (*models.AnalysisResponse, error) {
	// Same prompt as the Gemini provider
	prompt := gemini.BuildPrompt(req)

	reqBody := openRouterRequest{
		Model: c.modelName,
		Messages: []openRouterMessage{
			{
				Role:    "system",
				Content: gemini.SystemInstruction,
			},
			{
				Role:    "user",
				Content: prompt,
			},
		},
		Temperature: 0.2,
		MaxTokens:   2048,
	}

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+"/chat/completions", bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		c.logger.Error("OpenRouter API error", zap.Error(err), zap.String("chapter_id", req.ChapterID))
		return nil, fmt.Errorf("openrouter API request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		c.logger.Error("OpenRouter API error",
			zap.Int("status", resp.StatusCode),
			zap.String("body", string(body)))
		return nil, fmt.Errorf("openrouter API returned status %d: %s", resp.StatusCode, string(body))
	}

	var apiResp openRouterResponse
	if err := json.Unmarshal(body, &apiResp); err != nil {
		return nil, fmt.Errorf("failed to unmarshal response: %w", err)
	}

	if apiResp.Error != nil {
		return nil, fmt.Errorf("openrouter API error: %s", apiResp.Error.Message)
	}

	if len(apiResp.Choices) == 0 {
		return nil, fmt.Errorf("no choices in openrouter response")
	}

	responseText := apiResp.Choices[0].Message.Content

	// Parse JSON - strip markdown code blocks if present
	cleanJSON := strings.TrimSpace(responseText)
	cleanJSON = strings.TrimPrefix(cleanJSON, "```json")
	cleanJSON = strings.TrimPrefix(cleanJSON, "```")
	cleanJSON = strings.TrimSuffix(cleanJSON, "```")
	cleanJSON = strings.TrimSpace(cleanJSON)

	var result models.AnalysisResponse
	if err := json.Unmarshal([]byte(cleanJSON), &result); err != nil {
		c.logger.Error("Failed to parse JSON response",
			zap.Error(err),
			zap.String("cleaned_response", cleanJSON),
			zap.String("chapter_id", req.ChapterID))
		return nil, fmt.Errorf("failed to parse openrouter response: %w", err)
	}

	if len(result.Findings) == 0 {
		return nil, fmt.Errorf("openrouter response contained no findings")
	}

	c.logger.Debug("Chapter classified with OpenRouter",
		zap.String("chapter_id", req.ChapterID),
		zap.String("status", result.Status),
		zap.Int("findings", len(result.Findings)))

	return &result, nil
}

// Close closes the client and releases resources.
func (c *Client) Close() error {
	c.httpClient.CloseIdleConnections()
	return nil
}

// ModelInfo returns information about the model being used.
func (c *Client) ModelInfo() map[string]interface{} {
	return map[string]interface{}{
		"provider": "openrouter",
		"model":    c.modelName,
		"base_url": c.baseURL,
	}
}
