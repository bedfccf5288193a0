package summarize

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/tkuroda/mail-digest/internal/retry"
)

const systemPrompt = "You summarize emails. Summarize each email clearly and concisely."

// Client sends rendered prompts to an OpenAI-style chat-completions
// endpoint and returns the raw generated text.
type Client struct {
	baseURL     string
	apiKey      string
	model       string
	temperature float64
	maxTokens   int
	retryCfg    retry.Config
	client      *http.Client
}

func NewClient(baseURL, apiKey, model string, temperature float64, maxTokens int, timeout time.Duration, retryCfg retry.Config) *Client {
	return &Client{
		baseURL:     baseURL,
		apiKey:      apiKey,
		model:       model,
		temperature: temperature,
		maxTokens:   maxTokens,
		retryCfg:    retryCfg,
		client:      &http.Client{Timeout: timeout},
	}
}

// Chat-completions request/response types

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []chatChoice `json:"choices"`
	Error   *chatError   `json:"error,omitempty"`
}

type chatChoice struct {
	Message chatMessage `json:"message"`
}

type chatError struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// Generate sends one prompt and returns the generated text. With a
// non-zero retry budget configured, transient transport failures are
// retried with backoff; the default budget of zero makes a single
// attempt, leaving batch failure handling to the caller.
func (c *Client) Generate(ctx context.Context, prompt string) (string, error) {
	if c.retryCfg.MaxRetries <= 0 {
		return c.callAPI(ctx, prompt)
	}

	var out string
	err := retry.WithBackoff(ctx, c.retryCfg, func(ctx context.Context) error {
		var callErr error
		out, callErr = c.callAPI(ctx, prompt)
		return callErr
	})
	return out, err
}

func (c *Client) callAPI(ctx context.Context, prompt string) (string, error) {
	reqBody := chatRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: prompt},
		},
		Temperature: c.temperature,
		MaxTokens:   c.maxTokens,
	}

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("summarize: failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL, bytes.NewReader(jsonData))
	if err != nil {
		return "", fmt.Errorf("summarize: failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("summarize: request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("summarize: failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("summarize: unexpected status %d: %s", resp.StatusCode, truncateRunes(string(respBody), 200))
	}

	var apiResp chatResponse
	if err := json.Unmarshal(respBody, &apiResp); err != nil {
		return "", fmt.Errorf("summarize: failed to parse response: %w", err)
	}

	if apiResp.Error != nil {
		return "", fmt.Errorf("summarize: API error: %s - %s", apiResp.Error.Type, apiResp.Error.Message)
	}

	if len(apiResp.Choices) == 0 {
		return "", fmt.Errorf("summarize: empty response")
	}

	return apiResp.Choices[0].Message.Content, nil
}
