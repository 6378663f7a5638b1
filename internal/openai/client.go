// Package openai wraps the chat completions endpoint for JSON-mode calls.
// It targets any OpenAI-compatible base URL.
package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/kingabzpro/ECom-Intel/internal/review"
)

const maxBodyBytes = 4 << 20

// Client calls the chat completions API.
type Client struct {
	baseURL string
	apiKey  string
	model   string
	http    *http.Client
	logger  *zap.Logger
}

// New builds a Client. baseURL should include the version prefix, e.g.
// https://api.openai.com/v1.
func New(baseURL, apiKey, model string, timeout time.Duration, logger *zap.Logger) *Client {
	return &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		model:   model,
		http:    &http.Client{Timeout: timeout},
		logger:  logger,
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model          string         `json:"model"`
	Messages       []chatMessage  `json:"messages"`
	Temperature    float64        `json:"temperature"`
	ResponseFormat responseFormat `json:"response_format"`
}

type responseFormat struct {
	Type string `json:"type"`
}

type chatChoice struct {
	Message chatMessage `json:"message"`
}

type apiError struct {
	Message string `json:"message"`
	Type    string `json:"type"`
}

type chatResponse struct {
	Choices []chatChoice `json:"choices"`
	Error   *apiError    `json:"error"`
}

// ChatJSON sends a system+user prompt pair in JSON mode and returns the raw
// JSON object the model produced. Callers own schema validation.
func (c *Client) ChatJSON(ctx context.Context, system, user string) (json.RawMessage, error) {
	body := chatRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "system", Content: system},
			{Role: "user", Content: user},
		},
		Temperature:    0.2,
		ResponseFormat: responseFormat{Type: "json_object"},
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return nil, review.E(review.KindAnalysis, "encode chat request", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(payload))
	if err != nil {
		return nil, review.E(review.KindAnalysis, "new chat request", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	started := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, review.E(review.KindAnalysis, "call chat completions", err)
	}
	defer func() {
		if cerr := resp.Body.Close(); cerr != nil {
			c.logger.Debug("Failed to close chat response body", zap.Error(cerr))
		}
	}()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, review.E(review.KindAnalysis, "read chat response", err)
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, review.E(review.KindConfig, "llm provider rejected the API key", nil)
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, review.E(review.KindRateLimit, "llm provider rate limit hit", nil)
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return nil, review.E(review.KindAnalysis, fmt.Sprintf("chat completions returned status %d", resp.StatusCode), nil)
	}

	var parsed chatResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, review.E(review.KindAnalysis, "decode chat response", err)
	}
	if parsed.Error != nil {
		return nil, review.E(review.KindAnalysis, fmt.Sprintf("chat completions failed: %s", parsed.Error.Message), nil)
	}
	if len(parsed.Choices) == 0 {
		return nil, review.E(review.KindAnalysis, "chat completions returned no choices", nil)
	}

	content := parsed.Choices[0].Message.Content
	if !json.Valid([]byte(content)) {
		return nil, review.E(review.KindAnalysis, "model emitted invalid JSON", nil)
	}

	c.logger.Debug("chat completion finished",
		zap.String("model", c.model),
		zap.Duration("elapsed", time.Since(started)),
		zap.Int("content_bytes", len(content)))
	return json.RawMessage(content), nil
}
