// Package slm provides the HTTP client for the small language model that
// backs code generation and planning. The endpoint is a plain JSON
// text-generation service; response shape varies between deployments, so the
// parser probes a list of known result fields rather than binding a schema.
package slm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"hdlforge/internal/logging"
)

// NoResult is returned when the model produced nothing usable. Callers treat
// it as a failed generation rather than an error so the session can continue.
const NoResult = "No result from model"

// resultFields is the probe order for extracting the completion from a
// response payload. First present non-empty string wins.
var resultFields = []string{"generated_text", "text", "response", "output", "result"}

// RetryPolicy controls the retry loop around each request.
type RetryPolicy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	Multiplier  float64
}

// DefaultRetryPolicy matches the pacing the inference backend tolerates:
// up to 10 attempts with geometric backoff starting at 1.5s.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: 10,
		BaseDelay:   1500 * time.Millisecond,
		Multiplier:  2.0,
	}
}

func (p RetryPolicy) delay(attempt int) time.Duration {
	d := float64(p.BaseDelay)
	for i := 0; i < attempt; i++ {
		d *= p.Multiplier
	}
	return time.Duration(d)
}

// Config holds client construction parameters.
type Config struct {
	Endpoint    string
	APIKey      string
	Model       string
	MaxTokens   int
	Temperature float64
	Timeout     time.Duration
	Retry       RetryPolicy
}

// Client talks to the generation endpoint. It implements types.LLMClient.
type Client struct {
	endpoint    string
	apiKey      string
	model       string
	maxTokens   int
	temperature float64
	httpClient  *http.Client
	retry       RetryPolicy
	log         *logging.Logger
}

// NewClient creates a client from config, filling unset fields with defaults.
func NewClient(cfg Config) *Client {
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 2048
	}
	if cfg.Temperature <= 0 {
		cfg.Temperature = 0.7
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 2 * time.Minute
	}
	if cfg.Retry.MaxAttempts <= 0 {
		cfg.Retry = DefaultRetryPolicy()
	}
	return &Client{
		endpoint:    cfg.Endpoint,
		apiKey:      cfg.APIKey,
		model:       cfg.Model,
		maxTokens:   cfg.MaxTokens,
		temperature: cfg.Temperature,
		httpClient:  &http.Client{Timeout: cfg.Timeout},
		retry:       cfg.Retry,
		log:         logging.Get(logging.CategoryAPI),
	}
}

type generateRequest struct {
	Model       string  `json:"model,omitempty"`
	Prompt      string  `json:"prompt"`
	Temperature float64 `json:"temperature"`
	MaxTokens   int     `json:"max_tokens"`
}

// Complete sends a prompt using the client's default temperature.
func (c *Client) Complete(ctx context.Context, prompt string) (string, error) {
	return c.CompleteWithTemperature(ctx, prompt, c.temperature)
}

// CompleteWithTemperature sends a prompt at an explicit sampling temperature.
// Transport and server failures are retried; when everything fails the client
// returns the NoResult sentinel rather than an error, so generation failures
// degrade into a retryable agent step instead of aborting the session.
func (c *Client) CompleteWithTemperature(ctx context.Context, prompt string, temperature float64) (string, error) {
	body, err := json.Marshal(generateRequest{
		Model:       c.model,
		Prompt:      prompt,
		Temperature: temperature,
		MaxTokens:   c.maxTokens,
	})
	if err != nil {
		return NoResult, nil
	}

	var lastErr error
	for attempt := 0; attempt < c.retry.MaxAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-time.After(c.retry.delay(attempt - 1)):
			case <-ctx.Done():
				return "", ctx.Err()
			}
		}

		result, retryable, err := c.doRequest(ctx, body)
		if err == nil {
			return result, nil
		}
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return "", err
		}
		lastErr = err
		c.log.Warn("request attempt %d/%d failed: %v", attempt+1, c.retry.MaxAttempts, err)
		if !retryable {
			break
		}
	}

	c.log.Error("all attempts failed: %v", lastErr)
	return NoResult, nil
}

// doRequest performs one round trip. The second return reports whether the
// failure is worth retrying: timeouts, 408, 429 and 5xx are; everything else
// is a hard failure.
func (c *Client) doRequest(ctx context.Context, body []byte) (string, bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return "", false, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		var netErr net.Error
		if errors.As(err, &netErr) && netErr.Timeout() {
			return "", true, fmt.Errorf("request timeout: %w", err)
		}
		return "", true, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", true, fmt.Errorf("read response: %w", err)
	}

	switch {
	case resp.StatusCode == http.StatusOK:
		return ParseResult(payload), false, nil
	case resp.StatusCode == http.StatusTooManyRequests,
		resp.StatusCode == http.StatusRequestTimeout,
		resp.StatusCode >= 500:
		return "", true, fmt.Errorf("server returned %d: %s", resp.StatusCode, truncate(payload, 200))
	default:
		return "", false, fmt.Errorf("server returned %d: %s", resp.StatusCode, truncate(payload, 200))
	}
}

// ParseResult extracts the completion text from a response payload. Known
// result fields are probed in order on the top-level object, or on the first
// element when the payload is an array. An unrecognized payload is returned
// serialized so downstream extraction still has something to work with.
func ParseResult(payload []byte) string {
	var obj map[string]any
	if err := json.Unmarshal(payload, &obj); err == nil {
		if s := probeFields(obj); s != "" {
			return s
		}
		return string(payload)
	}

	var arr []map[string]any
	if err := json.Unmarshal(payload, &arr); err == nil && len(arr) > 0 {
		if s := probeFields(arr[0]); s != "" {
			return s
		}
	}

	return strings.TrimSpace(string(payload))
}

func probeFields(obj map[string]any) string {
	for _, field := range resultFields {
		if v, ok := obj[field]; ok {
			if s, ok := v.(string); ok && strings.TrimSpace(s) != "" {
				return s
			}
		}
	}
	return ""
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
