package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"strings"
	"time"
)

const (
	defaultBaseURL = "https://openrouter.ai/api/v1"
	defaultTimeout = 60 * time.Second

	// maxRetries counts retries after the first attempt. Backoff before
	// retry n is initialBackoff * 2^(n-1): 1s, 2s, 4s.
	maxRetries     = 3
	initialBackoff = time.Second
)

// Client is a chat-completion client for the OpenRouter API. A single Client
// is shared by every call site so concurrent requests reuse the pooled
// transport instead of opening new connections.
type Client struct {
	apiKey     string
	baseURL    string
	model      string
	httpClient *http.Client
	backoff    time.Duration
	referer    string
	title      string
}

// NewClient creates an OpenRouter client for the given API key and model.
func NewClient(apiKey, model string) *Client {
	return &Client{
		apiKey:  apiKey,
		baseURL: defaultBaseURL,
		model:   model,
		httpClient: &http.Client{
			Timeout: defaultTimeout,
		},
		backoff: initialBackoff,
		referer: "https://github.com/arshiii08/windbot",
		title:   "windbot",
	}
}

// NewClientWithBaseURL creates a client pointing at a custom base URL (for testing).
func NewClientWithBaseURL(apiKey, model, baseURL string) *Client {
	c := NewClient(apiKey, model)
	c.baseURL = strings.TrimRight(baseURL, "/")
	return c
}

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model    string    `json:"model"`
	Messages []message `json:"messages"`
}

type chatResponse struct {
	Choices []struct {
		Message message `json:"message"`
	} `json:"choices"`
}

// Complete sends one chat completion carrying a system instruction and a
// single user message, and returns the assistant's reply text. Transient
// upstream failures (HTTP 429 and 5xx) are retried up to maxRetries times
// with exponential backoff; client-side 4xx errors are terminal on the first
// attempt. Once the retry budget is exhausted the last failure is returned
// as an *UpstreamError.
func (c *Client) Complete(ctx context.Context, system, user string) (string, error) {
	body, err := json.Marshal(chatRequest{
		Model: c.model,
		Messages: []message{
			{Role: "system", Content: system},
			{Role: "user", Content: user},
		},
	})
	if err != nil {
		return "", fmt.Errorf("marshaling request: %w", err)
	}

	var lastErr *UpstreamError
	attempts := 0
	for attempt := 0; attempt <= maxRetries; attempt++ {
		attempts++
		reply, err := c.doComplete(ctx, body)
		if err == nil {
			return reply, nil
		}

		ue, ok := err.(*UpstreamError)
		if !ok {
			return "", err
		}
		ue.Attempts = attempts
		if !ue.retryable {
			return "", ue
		}

		lastErr = ue
		if attempt < maxRetries {
			backoff := time.Duration(float64(c.backoff) * math.Pow(2, float64(attempt)))
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(backoff):
			}
		}
	}

	return "", lastErr
}

func (c *Client) doComplete(ctx context.Context, body []byte) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}
	c.setHeaders(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", &UpstreamError{Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", &UpstreamError{
			Status:    resp.StatusCode,
			Err:       fmt.Errorf("unexpected status %d: %s", resp.StatusCode, string(respBody)),
			retryable: isTransient(resp.StatusCode),
		}
	}

	var cr chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&cr); err != nil {
		return "", fmt.Errorf("decoding completion: %w", err)
	}
	if len(cr.Choices) == 0 {
		return "", fmt.Errorf("completion carried no choices")
	}
	return cr.Choices[0].Message.Content, nil
}

// isTransient reports whether a status code belongs to the retried class:
// rate limiting and server-side failures.
func isTransient(status int) bool {
	return status == http.StatusTooManyRequests || status >= 500
}

func (c *Client) setHeaders(req *http.Request) {
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("HTTP-Referer", c.referer)
	req.Header.Set("X-Title", c.title)
}
