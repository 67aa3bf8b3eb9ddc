// Package llm provides a provider-agnostic text-generation client with
// bounded timeouts and retry on transient failures. The concrete wire
// formats live in llm/providers and register themselves via init().
package llm

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/google/uuid"
)

// maxResponseSize limits the backend response body to prevent memory exhaustion.
const maxResponseSize = 10 * 1024 * 1024 // 10MB

// DefaultTimeout bounds a single backend request when none is configured.
const DefaultTimeout = 60 * time.Second

// Endpoint identifies the backend a Client talks to.
type Endpoint struct {
	// Provider is the registered provider name (huggingface, ollama, openai).
	Provider string

	// URL overrides the provider's default base URL.
	URL string

	// Model is the model identifier sent to the provider.
	Model string

	// APIKey is sent as a bearer token when non-empty.
	APIKey string
}

// Request defines a single generation request.
type Request struct {
	// Prompt is the user prompt.
	Prompt string

	// System is an optional system instruction. Providers without a
	// system slot ignore it.
	System string

	// Temperature controls randomness. nil uses endpoint default, 0 is deterministic.
	Temperature *float64

	// MaxTokens limits response length. 0 uses endpoint default.
	MaxTokens int
}

// Response contains the generation result.
type Response struct {
	// RequestID uniquely identifies this call in logs.
	RequestID string

	// Content is the generated text.
	Content string

	// Model is the model reported by the backend, if any.
	Model string

	// FinishReason indicates why generation stopped, if reported.
	FinishReason string

	// Attempts is the number of HTTP attempts made.
	Attempts int
}

// Client sends generation requests to one configured endpoint.
type Client struct {
	endpoint    Endpoint
	provider    Provider
	httpClient  *http.Client
	retryConfig RetryConfig
	logger      *slog.Logger

	// defaults applied when a Request leaves them unset
	maxTokens   int
	temperature *float64
	system      string
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(c *http.Client) ClientOption {
	return func(client *Client) {
		client.httpClient = c
	}
}

// WithTimeout bounds each HTTP attempt.
func WithTimeout(d time.Duration) ClientOption {
	return func(client *Client) {
		if d > 0 {
			client.httpClient.Timeout = d
		}
	}
}

// WithRetryConfig sets the retry configuration.
func WithRetryConfig(cfg RetryConfig) ClientOption {
	return func(client *Client) {
		client.retryConfig = cfg
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) ClientOption {
	return func(client *Client) {
		if logger != nil {
			client.logger = logger
		}
	}
}

// WithMaxTokens sets the default response length limit.
func WithMaxTokens(n int) ClientOption {
	return func(client *Client) {
		client.maxTokens = n
	}
}

// WithTemperature sets the default sampling temperature.
func WithTemperature(t *float64) ClientOption {
	return func(client *Client) {
		client.temperature = t
	}
}

// WithSystemPrompt sets the default system instruction.
func WithSystemPrompt(s string) ClientOption {
	return func(client *Client) {
		client.system = s
	}
}

// NewClient creates a client for the given endpoint. The provider must be
// registered; an empty APIKey falls back to the provider's environment variable.
func NewClient(ep Endpoint, opts ...ClientOption) (*Client, error) {
	provider := GetProvider(ep.Provider)
	if provider == nil {
		return nil, fmt.Errorf("unknown provider %q (available: %v)", ep.Provider, ListProviders())
	}
	if ep.APIKey == "" && provider.APIKeyEnv() != "" {
		ep.APIKey = os.Getenv(provider.APIKeyEnv())
	}

	c := &Client{
		endpoint:    ep,
		provider:    provider,
		retryConfig: DefaultRetryConfig(),
		httpClient: &http.Client{
			Timeout: DefaultTimeout,
		},
		logger: slog.Default(),
	}

	for _, opt := range opts {
		opt(c)
	}
	if c.retryConfig.MaxAttempts < 1 {
		c.retryConfig.MaxAttempts = 1
	}

	return c, nil
}

// Endpoint returns the endpoint the client was built for.
func (c *Client) Endpoint() Endpoint {
	return c.endpoint
}

// Generate sends prompt with the client's defaults and returns the generated text.
func (c *Client) Generate(ctx context.Context, prompt string) (string, error) {
	resp, err := c.Complete(ctx, Request{Prompt: prompt})
	if err != nil {
		return "", err
	}
	return resp.Content, nil
}

// Complete sends a request, retrying transient failures with backoff.
func (c *Client) Complete(ctx context.Context, req Request) (*Response, error) {
	if req.Prompt == "" {
		return nil, NewFatalError(errors.New("prompt is required"))
	}
	if req.MaxTokens == 0 {
		req.MaxTokens = c.maxTokens
	}
	if req.Temperature == nil {
		req.Temperature = c.temperature
	}
	if req.System == "" {
		req.System = c.system
	}

	requestID := uuid.New().String()
	startedAt := time.Now()

	var lastErr error
	for attempt := 1; attempt <= c.retryConfig.MaxAttempts; attempt++ {
		resp, err := c.doRequest(ctx, req)
		if err == nil {
			resp.RequestID = requestID
			resp.Attempts = attempt
			c.logger.Debug("Backend request completed",
				"request_id", requestID,
				"provider", c.endpoint.Provider,
				"model", c.endpoint.Model,
				"attempts", attempt,
				"duration", time.Since(startedAt))
			return resp, nil
		}

		lastErr = err

		// Don't retry fatal errors
		if IsFatal(err) {
			return nil, err
		}

		if attempt < c.retryConfig.MaxAttempts {
			backoff := c.retryConfig.Backoff(attempt)
			c.logger.Debug("Request failed, retrying",
				"request_id", requestID,
				"attempt", attempt,
				"max_attempts", c.retryConfig.MaxAttempts,
				"backoff", backoff,
				"error", err)

			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(backoff):
			}
		}
	}

	return nil, fmt.Errorf("all %d attempts failed: %w", c.retryConfig.MaxAttempts, lastErr)
}

// doRequest executes a single HTTP request to the endpoint.
func (c *Client) doRequest(ctx context.Context, req Request) (*Response, error) {
	url := c.provider.BuildURL(c.endpoint.URL, c.endpoint.Model)

	body, err := c.provider.BuildRequestBody(c.endpoint.Model, req)
	if err != nil {
		return nil, NewFatalError(fmt.Errorf("build request body: %w", err))
	}

	c.logger.Debug("Sending backend request",
		"provider", c.endpoint.Provider,
		"model", c.endpoint.Model,
		"url", url)

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, NewFatalError(fmt.Errorf("create HTTP request: %w", err))
	}

	httpReq.Header.Set("Content-Type", "application/json")
	c.provider.SetHeaders(httpReq, c.endpoint.APIKey)

	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		if ctx.Err() != nil {
			return nil, NewFatalError(ctx.Err())
		}
		// Network errors and client timeouts are transient
		return nil, NewTransientError(fmt.Errorf("HTTP request failed: %w", err))
	}
	defer httpResp.Body.Close()

	// Read response body with size limit to prevent memory exhaustion
	respBody, err := io.ReadAll(io.LimitReader(httpResp.Body, maxResponseSize))
	if err != nil {
		return nil, NewTransientError(fmt.Errorf("read response body: %w", err))
	}

	if httpResp.StatusCode != http.StatusOK {
		return nil, classifyHTTPError(httpResp.StatusCode, respBody)
	}

	resp, err := c.provider.ParseResponse(respBody)
	if err != nil {
		return nil, NewFatalError(err)
	}
	return resp, nil
}
