// Package platform_client talks to the publishing platform: it fetches
// current chapter content and delivers the publish / author-notice
// effects that close out a moderator decision.
package platform_client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"moderation-service/internal/models"

	"go.uber.org/zap"
)

// Client for interacting with the publishing platform service.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *zap.Logger
}

// NewClient creates a new platform API client.
func NewClient(baseURL string, timeout time.Duration, logger *zap.Logger) *Client {
	if timeout == 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		logger: logger,
	}
}

type chapterResponse struct {
	Chapter struct {
		ID      string `json:"id"`
		Title   string `json:"title"`
		Author  string `json:"author"`
		Content string `json:"content"`
	} `json:"chapter"`
}

// FetchChapter fetches the current title, author and content of a chapter.
func (c *Client) FetchChapter(ctx context.Context, chapterID string) (string, string, string, error) {
	endpoint := fmt.Sprintf("%s/internal/chapters/%s", c.baseURL, url.PathEscape(chapterID))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return "", "", "", fmt.Errorf("failed to create chapter request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Error("Failed to fetch chapter from platform", zap.String("chapter_id", chapterID), zap.Error(err))
		return "", "", "", fmt.Errorf("failed to fetch chapter: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return "", "", "", fmt.Errorf("%w: chapter %s not found on platform", models.ErrNotFound, chapterID)
	}
	if resp.StatusCode != http.StatusOK {
		c.logger.Error("Platform returned non-OK status for chapter fetch",
			zap.String("chapter_id", chapterID), zap.Int("status", resp.StatusCode))
		return "", "", "", fmt.Errorf("platform returned status %d", resp.StatusCode)
	}

	var response chapterResponse
	if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
		return "", "", "", fmt.Errorf("failed to decode chapter response: %w", err)
	}

	return response.Chapter.Title, response.Chapter.Author, response.Chapter.Content, nil
}

// PublishChapter tells the platform an approved chapter may go live.
func (c *Client) PublishChapter(ctx context.Context, chapterID string) error {
	endpoint := fmt.Sprintf("%s/internal/chapters/%s/publish", c.baseURL, url.PathEscape(chapterID))
	if err := c.post(ctx, endpoint, nil); err != nil {
		return fmt.Errorf("failed to publish chapter %s: %w", chapterID, err)
	}
	c.logger.Info("Publish effect delivered", zap.String("chapter_id", chapterID))
	return nil
}

// NotifyAuthor sends the author a rejection or change-request notice.
func (c *Client) NotifyAuthor(ctx context.Context, chapterID string, action models.DecisionAction, note string) error {
	endpoint := fmt.Sprintf("%s/internal/chapters/%s/author-notice", c.baseURL, url.PathEscape(chapterID))
	body := map[string]string{
		"action": string(action),
		"note":   note,
	}
	if err := c.post(ctx, endpoint, body); err != nil {
		return fmt.Errorf("failed to notify author for chapter %s: %w", chapterID, err)
	}
	c.logger.Info("Author notice delivered",
		zap.String("chapter_id", chapterID),
		zap.String("action", string(action)))
	return nil
}

func (c *Client) post(ctx context.Context, endpoint string, body interface{}) error {
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request body: %w", err)
		}
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to make request to platform: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("platform returned status %d", resp.StatusCode)
	}
	return nil
}
