package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
)

const CompatName = "openai-compat"

// CompatConfig holds configuration for the OpenAI-compatible HTTP client.
type CompatConfig struct {
	APIKey       string
	BaseURL      string // e.g. "https://openrouter.ai/api/v1"
	DefaultModel string
	Timeout      time.Duration // per-request timeout (default: 120s)
	RPM          int           // requests per minute (default: 60)
	MaxRetries   int           // attempts beyond the first are retries (default: 3)
	RetryDelay   time.Duration // base delay, doubled per attempt (default: 1s)
}

// CompatClient implements ChatClient against any backend speaking the
// chat-completions wire shape.
type CompatClient struct {
	apiKey       string
	baseURL      string
	defaultModel string
	client       *http.Client
	limiter      *RateLimiter

	maxRetries int
	retryDelay time.Duration
}

// NewCompatClient creates a new OpenAI-compatible client.
func NewCompatClient(cfg CompatConfig) *CompatClient {
	if cfg.Timeout == 0 {
		cfg.Timeout = 120 * time.Second
	}
	if cfg.RPM == 0 {
		cfg.RPM = 60
	}
	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = 3
	}
	if cfg.RetryDelay == 0 {
		cfg.RetryDelay = time.Second
	}

	return &CompatClient{
		apiKey:       cfg.APIKey,
		baseURL:      cfg.BaseURL,
		defaultModel: cfg.DefaultModel,
		client: &http.Client{
			Timeout: cfg.Timeout,
		},
		limiter:    NewRateLimiter(cfg.RPM),
		maxRetries: cfg.MaxRetries,
		retryDelay: cfg.RetryDelay,
	}
}

// Name returns the client identifier.
func (c *CompatClient) Name() string {
	return CompatName
}

// Chat sends a chat completion request.
func (c *CompatClient) Chat(ctx context.Context, req *ChatRequest) (*ChatResult, error) {
	start := time.Now()

	requestID := req.RequestID
	if requestID == "" {
		requestID = uuid.New().String()
	}

	model := req.Model
	if model == "" {
		model = c.defaultModel
	}

	if req.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, req.Timeout)
		defer cancel()
	}

	wireReq := chatWireRequest{
		Model:       model,
		Messages:    req.Messages,
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
	}

	result := &ChatResult{
		RequestID: requestID,
		Provider:  CompatName,
	}

	wireResp, attempts, err := c.doRequest(ctx, "/chat/completions", &wireReq)
	result.Attempts = attempts
	if err != nil {
		result.ErrorType = "http_error"
		result.ErrorMessage = err.Error()
		result.ExecutionTime = time.Since(start)
		return result, err
	}

	if len(wireResp.Choices) == 0 {
		result.ErrorType = "empty_response"
		result.ErrorMessage = "no choices in response"
		result.ExecutionTime = time.Since(start)
		return result, fmt.Errorf("no choices in response")
	}

	result.Success = true
	result.Content = wireResp.Choices[0].Message.Content
	result.ModelUsed = wireResp.Model
	result.PromptTokens = wireResp.Usage.PromptTokens
	result.CompletionTokens = wireResp.Usage.CompletionTokens
	result.TotalTokens = wireResp.Usage.TotalTokens
	result.ExecutionTime = time.Since(start)

	return result, nil
}

// doRequest posts the request with retry on transport errors, 429, and 5xx.
// It returns the parsed response and the number of attempts made.
func (c *CompatClient) doRequest(ctx context.Context, path string, body *chatWireRequest) (*chatWireResponse, int, error) {
	bodyBytes, err := json.Marshal(body)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to marshal request: %w", err)
	}

	var lastErr error
	attempts := 0
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			if lastErr != nil {
				return nil, attempts, fmt.Errorf("%w (last error: %v)", err, lastErr)
			}
			return nil, attempts, err
		}

		if err := c.limiter.Wait(ctx); err != nil {
			return nil, attempts, err
		}
		attempts++

		req, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+path, bytes.NewReader(bodyBytes))
		if err != nil {
			return nil, attempts, fmt.Errorf("failed to create request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")
		if c.apiKey != "" {
			req.Header.Set("Authorization", "Bearer "+c.apiKey)
		}

		resp, err := c.client.Do(req)
		if err != nil {
			lastErr = fmt.Errorf("request failed: %w", err)
			c.sleep(ctx, attempt)
			continue
		}

		respBody, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			lastErr = fmt.Errorf("failed to read response: %w", err)
			c.sleep(ctx, attempt)
			continue
		}

		if shouldRetryStatus(resp.StatusCode) {
			if resp.StatusCode == http.StatusTooManyRequests {
				c.limiter.Record429()
			}
			lastErr = fmt.Errorf("backend error (status %d): %s", resp.StatusCode, string(respBody))
			c.sleep(ctx, attempt)
			continue
		}

		if resp.StatusCode != http.StatusOK {
			return nil, attempts, fmt.Errorf("backend error (status %d): %s", resp.StatusCode, string(respBody))
		}

		var wireResp chatWireResponse
		if err := json.Unmarshal(respBody, &wireResp); err != nil {
			return nil, attempts, fmt.Errorf("failed to unmarshal response: %w", err)
		}
		return &wireResp, attempts, nil
	}

	return nil, attempts, fmt.Errorf("max retries (%d) exceeded: %w", c.maxRetries, lastErr)
}

// shouldRetryStatus returns true for status codes worth retrying.
func shouldRetryStatus(statusCode int) bool {
	return statusCode == http.StatusTooManyRequests || statusCode >= 500
}

// sleep waits with exponential backoff and jitter, respecting cancellation.
func (c *CompatClient) sleep(ctx context.Context, attempt int) {
	baseDelay := c.retryDelay * time.Duration(1<<attempt)
	if baseDelay > 10*time.Second {
		baseDelay = 10 * time.Second
	}

	// Jitter: -20% to +30%
	jitter := time.Duration(float64(baseDelay) * (0.8 + 0.5*float64(time.Now().UnixNano()%1000)/1000))

	select {
	case <-ctx.Done():
	case <-time.After(jitter):
	}
}

// Wire types (spec'd chat-completions shape).

type chatWireRequest struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	Temperature float64   `json:"temperature,omitempty"`
	MaxTokens   int       `json:"max_tokens,omitempty"`
}

type chatWireResponse struct {
	ID      string `json:"id"`
	Model   string `json:"model"`
	Choices []struct {
		Message struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage"`
}

// Verify interface
var _ ChatClient = (*CompatClient)(nil)
