package gemini

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"moderation-service/internal/models"

	"github.com/google/generative-ai-go/genai"
	"go.uber.org/zap"
	"google.golang.org/api/option"
)

// Client wraps the Gemini API client
type Client struct {
	client    *genai.Client
	model     *genai.GenerativeModel
	logger    *zap.Logger
	modelName string
}

// Config for Gemini client
type Config struct {
	APIKey    string
	ModelName string // Default: "gemini-2.0-flash-exp"
}

// NewClient creates a new Gemini client
func NewClient(cfg Config, logger *zap.Logger) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("gemini API key is required")
	}

	if cfg.ModelName == "" {
		cfg.ModelName = "gemini-2.0-flash-exp"
	}

	ctx := context.Background()
	client, err := genai.NewClient(ctx, option.WithAPIKey(cfg.APIKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini client: %w", err)
	}

	model := client.GenerativeModel(cfg.ModelName)

	model.SystemInstruction = &genai.Content{
		Parts: []genai.Part{genai.Text(SystemInstruction)},
	}

	// Structured output only
	model.ResponseMIMEType = "application/json"

	model.GenerationConfig = genai.GenerationConfig{
		Temperature:     genai.Ptr[float32](0.2), // Lower for consistent classification
		TopP:            genai.Ptr[float32](0.9),
		TopK:            genai.Ptr[int32](40),
		MaxOutputTokens: genai.Ptr[int32](2048),
	}

	logger.Info("Gemini client initialized", zap.String("model", cfg.ModelName))

	return &Client{
		client:    client,
		model:     model,
		logger:    logger,
		modelName: cfg.ModelName,
	}, nil
}

// Close closes the Gemini client
func (c *Client) Close() error {
	return c.client.Close()
}

// Classify evaluates one chapter against the policy snapshot. The
// response is parsed but not yet validated; coercion is the invoker's job.
func (c *Client) Classify(ctx context.Context, req models.AnalysisRequest) (*models.AnalysisResponse, error) {
	prompt := BuildPrompt(req)

	resp, err := c.model.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		c.logger.Error("Gemini API error", zap.Error(err), zap.String("chapter_id", req.ChapterID))
		return nil, fmt.Errorf("gemini API error: %w", err)
	}

	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil || len(resp.Candidates[0].Content.Parts) == 0 {
		return nil, fmt.Errorf("empty response from gemini")
	}

	textPart, ok := resp.Candidates[0].Content.Parts[0].(genai.Text)
	if !ok {
		return nil, fmt.Errorf("unexpected response type from gemini")
	}

	// Parse JSON - strip markdown code blocks if present
	cleanJSON := strings.TrimSpace(string(textPart))
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
		return nil, fmt.Errorf("failed to parse gemini response: %w", err)
	}

	if len(result.Findings) == 0 {
		return nil, fmt.Errorf("gemini response contained no findings")
	}

	c.logger.Debug("Chapter classified",
		zap.String("chapter_id", req.ChapterID),
		zap.String("status", result.Status),
		zap.Int("findings", len(result.Findings)))

	return &result, nil
}

// ModelInfo returns model information
func (c *Client) ModelInfo() map[string]interface{} {
	return map[string]interface{}{
		"provider": "gemini",
		"model":    c.modelName,
	}
}
