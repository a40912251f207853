// Package llm wraps the chat-completions capability used to phrase grounded
// answers. The transport is a black box to callers: every call yields a
// Result, and a pure classifier decides whether that result counts as an
// answer at all.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"flashbot-backend/internal/model"
)

// Chat is the capability consumed by the answer assembler.
type Chat interface {
	Complete(ctx context.Context, system, user string) Result
}

// Result is the outcome of one model call. Exactly one of Text or Err is
// meaningful; an empty Text with a nil Err is a valid (empty) reply.
type Result struct {
	Text string
	Err  error
}

// IsNonAnswer classifies a result: transport failure, an empty reply, or a
// reply containing any refusal phrase all count as "no answer". Pure function,
// so the fallback decision is testable without a live model.
func IsNonAnswer(res Result, refusalPhrases []string) bool {
	if res.Err != nil {
		return true
	}
	text := strings.TrimSpace(res.Text)
	if text == "" {
		return true
	}
	lower := strings.ToLower(text)
	for _, phrase := range refusalPhrases {
		if phrase != "" && strings.Contains(lower, strings.ToLower(phrase)) {
			return true
		}
	}
	return false
}

// Config configures the DeepSeek client.
type Config struct {
	APIKey      string
	Model       string
	BaseURL     string
	Temperature float64
	Timeout     time.Duration
}

// Client calls the DeepSeek chat-completions API.
type Client struct {
	apiKey      string
	model       string
	baseURL     string
	temperature float64
	httpClient  *http.Client
}

// NewClient creates a DeepSeek chat client.
func NewClient(cfg Config) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("missing DeepSeek API key")
	}
	if cfg.Model == "" {
		cfg.Model = "deepseek-chat"
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.deepseek.com"
	}
	if cfg.Temperature == 0 {
		cfg.Temperature = 0.2
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 40 * time.Second
	}
	return &Client{
		apiKey:      cfg.APIKey,
		model:       cfg.Model,
		baseURL:     strings.TrimRight(cfg.BaseURL, "/"),
		temperature: cfg.Temperature,
		httpClient:  &http.Client{Timeout: cfg.Timeout},
	}, nil
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	Stream      bool          `json:"stream"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// Complete sends one system+user exchange and returns the model's reply.
// All failure modes land in Result.Err; callers never see a panic or a
// partial body.
func (c *Client) Complete(ctx context.Context, system, user string) Result {
	payload := chatRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "system", Content: system},
			{Role: "user", Content: user},
		},
		Temperature: c.temperature,
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return Result{Err: fmt.Errorf("failed to encode chat request: %w", err)}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return Result{Err: fmt.Errorf("failed to create chat request: %w", err)}
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Result{Err: fmt.Errorf("%w: %v", model.ErrModelUnavailable, err)}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return Result{Err: fmt.Errorf("failed to read chat response: %w", err)}
	}

	if resp.StatusCode != http.StatusOK {
		log.Printf("[DeepSeekClient] Unexpected status %d", resp.StatusCode)
		return Result{Err: fmt.Errorf("%w: status %d", model.ErrModelUnavailable, resp.StatusCode)}
	}

	var parsed chatResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return Result{Err: fmt.Errorf("failed to decode chat response: %w", err)}
	}
	if len(parsed.Choices) == 0 {
		return Result{Err: fmt.Errorf("chat response had no choices")}
	}

	return Result{Text: strings.TrimSpace(parsed.Choices[0].Message.Content)}
}

// Ensure Client implements Chat
var _ Chat = (*Client)(nil)
