// Package openrouter is a client for OpenAI-compatible chat completion
// endpoints: OpenRouter by default, or OpenAI itself with a different base URL.
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

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/teranos/finkg/ai/tracker"
	"github.com/teranos/finkg/db"
	"github.com/teranos/finkg/errors"
	"github.com/teranos/finkg/internal/httpclient"
	"github.com/teranos/finkg/internal/retry"
	"github.com/teranos/finkg/logger"
)

const (
	// DefaultModel matches openrouter.model in am/defaults.go
	DefaultModel = "openai/gpt-4o-mini"

	// DefaultBaseURL is the OpenRouter API root
	DefaultBaseURL = "https://openrouter.ai/api/v1"

	// ProviderName is recorded in usage rows unless Config.Provider overrides it
	ProviderName = "openrouter"
)

// Client talks to a /chat/completions endpoint
type Client struct {
	baseURL    string
	httpClient *httpclient.SaferClient
	config     Config
	limiter    *rate.Limiter
	tracker    *tracker.UsageTracker
	logger     *zap.SugaredLogger
}

// Config holds chat client configuration
type Config struct {
	APIKey            string
	BaseURL           string // empty = DefaultBaseURL
	Provider          string // label for logs and usage rows; empty = ProviderName
	Model             string
	Temperature       *float64 // nil = 0
	MaxTokens         *int     // nil = 1000
	Timeout           time.Duration
	Retry             retry.Config
	RequestsPerMinute int // 0 = unpaced
	Logger            *zap.SugaredLogger
	Tracker           *tracker.UsageTracker
	Title             string // X-Title header, shown on the OpenRouter dashboard
}

// NewClient creates a chat client, filling defaults for unset fields
func NewClient(config Config) *Client {
	if config.Model == "" {
		config.Model = DefaultModel
	}
	if config.BaseURL == "" {
		config.BaseURL = DefaultBaseURL
	}
	if config.Provider == "" {
		config.Provider = ProviderName
	}
	if config.Temperature == nil {
		t := 0.0
		config.Temperature = &t
	}
	if config.MaxTokens == nil {
		n := 1000
		config.MaxTokens = &n
	}
	if config.Timeout <= 0 {
		config.Timeout = 60 * time.Second
	}
	if config.Retry.MaxAttempts == 0 {
		config.Retry = retry.DefaultConfig()
	}
	if config.Title == "" {
		config.Title = "finkg"
	}

	var limiter *rate.Limiter
	if config.RequestsPerMinute > 0 {
		limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(config.RequestsPerMinute)), 1)
	}

	baseURL := strings.TrimRight(config.BaseURL, "/")
	return &Client{
		baseURL:    baseURL,
		httpClient: httpclient.ForEndpoint(baseURL, config.Timeout),
		config:     config,
		limiter:    limiter,
		tracker:    config.Tracker,
		logger:     logger.OrNop(config.Logger).Named(config.Provider),
	}
}

// ChatRequest is a provider-neutral chat call. Messages go out as the system
// prompt, then each Context entry as its own system message, then the user
// prompt.
type ChatRequest struct {
	SystemPrompt string
	Context      []string
	UserPrompt   string
	JSONMode     bool     // ask for a JSON object reply where the provider supports it
	Temperature  *float64 // Override default temperature
	MaxTokens    *int     // Override default max tokens
	Model        *string  // Override default model
}

// ChatResponse is the reply text plus token accounting
type ChatResponse struct {
	Content  string
	Model    string
	Usage    Usage
	Attempts int
}

// Message represents a message in a chat completion
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ResponseFormat selects structured output
type ResponseFormat struct {
	Type string `json:"type"`
}

// ChatCompletionRequest is the wire request
type ChatCompletionRequest struct {
	Model          string          `json:"model"`
	Messages       []Message       `json:"messages"`
	Temperature    float64         `json:"temperature"`
	MaxTokens      int             `json:"max_tokens,omitempty"`
	ResponseFormat *ResponseFormat `json:"response_format,omitempty"`
}

// ChatCompletionResponse is the wire response
type ChatCompletionResponse struct {
	ID      string   `json:"id"`
	Object  string   `json:"object"`
	Created int64    `json:"created"`
	Model   string   `json:"model"`
	Choices []Choice `json:"choices"`
	Usage   Usage    `json:"usage"`
}

// Choice represents a completion choice
type Choice struct {
	Index        int     `json:"index"`
	Message      Message `json:"message"`
	FinishReason string  `json:"finish_reason"`
}

// Usage represents token usage information
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// StatusError is a non-200 reply
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	body := e.Body
	if len(body) > 300 {
		body = body[:300] + "..."
	}
	return fmt.Sprintf("API request failed with status %d: %s", e.StatusCode, strings.TrimSpace(body))
}

// Retryable reports whether the status is worth another attempt
func (e *StatusError) Retryable() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= 500
}

// BuildMessages lays out the role-tagged message list for req
func BuildMessages(req ChatRequest) []Message {
	messages := make([]Message, 0, len(req.Context)+2)
	if req.SystemPrompt != "" {
		messages = append(messages, Message{Role: "system", Content: req.SystemPrompt})
	}
	for _, c := range req.Context {
		if c != "" {
			messages = append(messages, Message{Role: "system", Content: c})
		}
	}
	return append(messages, Message{Role: "user", Content: req.UserPrompt})
}

// CreateChatCompletion performs a single request with no retry
func (c *Client) CreateChatCompletion(ctx context.Context, req ChatCompletionRequest) (*ChatCompletionResponse, error) {
	reqBody, err := json.Marshal(req)
	if err != nil {
		return nil, errors.Wrap(err, "failed to marshal request")
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(reqBody))
	if err != nil {
		return nil, errors.Wrap(err, "failed to create request")
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.config.APIKey)
	httpReq.Header.Set("X-Title", c.config.Title)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, errors.Wrap(err, "failed to send request")
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read response")
	}

	if resp.StatusCode != http.StatusOK {
		return nil, errors.WithStack(&StatusError{StatusCode: resp.StatusCode, Body: string(respBody)})
	}

	var chatResp ChatCompletionResponse
	if err := json.Unmarshal(respBody, &chatResp); err != nil {
		return nil, retry.NonRetryable(errors.Wrap(err, "failed to unmarshal response"))
	}
	return &chatResp, nil
}

// Chat sends req with pacing and bounded retry. Network failures, 429 and 5xx
// are retried; anything else fails on the first attempt.
func (c *Client) Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	if c.config.APIKey == "" {
		return nil, errors.WithHintf(errors.Wrapf(errors.ErrMissingCredential, "%s API key not configured", c.config.Provider),
			"set the %s api_key in finkg.toml or the environment", c.config.Provider)
	}

	temperature := *c.config.Temperature
	if req.Temperature != nil {
		temperature = *req.Temperature
	}
	maxTokens := *c.config.MaxTokens
	if req.MaxTokens != nil {
		maxTokens = *req.MaxTokens
	}
	model := c.config.Model
	if req.Model != nil {
		model = *req.Model
	}

	wire := ChatCompletionRequest{
		Model:       model,
		Messages:    BuildMessages(req),
		Temperature: temperature,
		MaxTokens:   maxTokens,
	}
	if req.JSONMode {
		wire.ResponseFormat = &ResponseFormat{Type: "json_object"}
	}

	log := logger.FromContext(ctx, c.logger)
	log.Debugw("Chat request",
		logger.FieldModel, model,
		"temperature", temperature,
		"max_tokens", maxTokens,
		"messages", len(wire.Messages),
		"json_mode", req.JSONMode,
	)

	policy := c.config.Retry
	policy.OnRetry = func(attempt int, wait time.Duration, err error) {
		log.Warnw("Chat attempt failed, retrying",
			logger.FieldAttempt, attempt,
			"max_attempts", policy.MaxAttempts,
			"wait", wait,
			logger.FieldError, err,
		)
	}

	started := time.Now()
	attempts := 0
	resp, err := retry.DoWithResult(ctx, policy, func(attempt int) (*ChatCompletionResponse, error) {
		attempts = attempt
		if c.limiter != nil {
			if err := c.limiter.Wait(ctx); err != nil {
				return nil, retry.NonRetryable(errors.Wrap(err, "rate limiter"))
			}
		}
		r, err := c.CreateChatCompletion(ctx, wire)
		if err != nil {
			return nil, classify(err)
		}
		if len(r.Choices) == 0 {
			return nil, retry.NonRetryable(errors.New("no response choices"))
		}
		return r, nil
	})

	call := tracker.Call{
		Provider:    c.config.Provider,
		Model:       model,
		Temperature: &temperature,
		MaxTokens:   &maxTokens,
		JSONMode:    req.JSONMode,
		Started:     started,
		Attempts:    attempts,
		InputLength: inputLength(wire.Messages),
		Err:         err,
	}

	if err != nil {
		c.record(ctx, call)
		if errors.Is(err, retry.ErrExhausted) {
			err = errors.Mark(err, errors.ErrServiceUnavailable)
		}
		return nil, errors.Wrapf(err, "%s chat completion", c.config.Provider)
	}

	content := strings.TrimSpace(resp.Choices[0].Message.Content)
	call.PromptTokens = resp.Usage.PromptTokens
	call.CompletionTokens = resp.Usage.CompletionTokens
	call.Cost = tracker.CalculateCost(model, resp.Usage.PromptTokens, resp.Usage.CompletionTokens)
	call.OutputLength = len(content)
	c.record(ctx, call)

	log.Debugw("Chat response",
		"content_length", len(content),
		logger.FieldTokens, resp.Usage.TotalTokens,
		logger.FieldAttempt, attempts,
		logger.FieldDurationMS, time.Since(started).Milliseconds(),
	)

	return &ChatResponse{
		Content:  content,
		Model:    model,
		Usage:    resp.Usage,
		Attempts: attempts,
	}, nil
}

func (c *Client) record(ctx context.Context, call tracker.Call) {
	if err := c.tracker.Record(ctx, call); err != nil {
		if db.IsDatabaseClosed(err) {
			// the CLI closes the ledger on exit; a late call is not worth a warning
			c.logger.Debugw("Usage ledger closed, call not tracked", logger.FieldModel, call.Model)
			return
		}
		c.logger.Warnw("Failed to track usage", logger.FieldError, err, logger.FieldModel, call.Model)
	}
}

// classify marks errors that another attempt cannot fix
func classify(err error) error {
	if retry.IsNonRetryable(err) {
		return err
	}
	var statusErr *StatusError
	if errors.As(err, &statusErr) && !statusErr.Retryable() {
		return retry.NonRetryable(err)
	}
	if errors.Is(err, httpclient.ErrBlocked) {
		return retry.NonRetryable(err)
	}
	return err
}

func inputLength(messages []Message) int {
	n := 0
	for _, m := range messages {
		n += len(m.Content)
	}
	return n
}

// IsConfigured returns true if the client has an API key
func (c *Client) IsConfigured() bool {
	return c.config.APIKey != ""
}

// Model returns the default model
func (c *Client) Model() string {
	return c.config.Model
}

// Provider returns the provider label
func (c *Client) Provider() string {
	return c.config.Provider
}
