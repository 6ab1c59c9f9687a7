// Package anthropic adapts the Anthropic Messages API to the shared chat
// request shape.
package anthropic

import (
	"context"
	"net"
	"strings"
	"time"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"go.uber.org/zap"

	"github.com/teranos/finkg/ai/openrouter"
	"github.com/teranos/finkg/ai/tracker"
	"github.com/teranos/finkg/db"
	"github.com/teranos/finkg/errors"
	"github.com/teranos/finkg/internal/httpclient"
	"github.com/teranos/finkg/internal/retry"
	"github.com/teranos/finkg/logger"
)

const (
	// DefaultModel matches anthropic.model in am/defaults.go
	DefaultModel = "claude-3-5-haiku-latest"

	// DefaultBaseURL is the Anthropic API root
	DefaultBaseURL = "https://api.anthropic.com/"

	// ProviderName is recorded in usage rows
	ProviderName = "anthropic"

	// jsonInstruction stands in for response_format, which the Messages API lacks
	jsonInstruction = "Respond with a single JSON object and nothing else."
)

// Client represents an Anthropic API client
type Client struct {
	client  sdk.Client
	config  Config
	tracker *tracker.UsageTracker
	logger  *zap.SugaredLogger
}

// Config holds Anthropic client configuration
type Config struct {
	APIKey      string
	BaseURL     string // empty = DefaultBaseURL
	Model       string
	Temperature float64
	MaxTokens   int // 0 = 1000
	Timeout     time.Duration
	Retry       retry.Config
	Logger      *zap.SugaredLogger
	Tracker     *tracker.UsageTracker
}

// NewClient creates a new Anthropic API client. The SDK's own retries are
// disabled so Config.Retry is the only policy.
func NewClient(config Config) *Client {
	if config.Model == "" {
		config.Model = DefaultModel
	}
	if config.BaseURL == "" {
		config.BaseURL = DefaultBaseURL
	}
	if config.MaxTokens <= 0 {
		config.MaxTokens = 1000
	}
	if config.Timeout <= 0 {
		config.Timeout = 60 * time.Second
	}
	if config.Retry.MaxAttempts == 0 {
		config.Retry = retry.DefaultConfig()
	}

	hc := httpclient.ForEndpoint(config.BaseURL, config.Timeout)
	client := sdk.NewClient(
		option.WithAPIKey(config.APIKey),
		option.WithBaseURL(config.BaseURL),
		option.WithHTTPClient(hc.Client),
		option.WithMaxRetries(0),
	)

	return &Client{
		client:  client,
		config:  config,
		tracker: config.Tracker,
		logger:  logger.OrNop(config.Logger).Named(ProviderName),
	}
}

// resolve applies per-request overrides to the configured defaults
func (c *Client) resolve(req openrouter.ChatRequest) (model string, temperature float64, maxTokens int) {
	model, temperature, maxTokens = c.config.Model, c.config.Temperature, c.config.MaxTokens
	if req.Model != nil {
		model = *req.Model
	}
	if req.Temperature != nil {
		temperature = *req.Temperature
	}
	if req.MaxTokens != nil {
		maxTokens = *req.MaxTokens
	}
	return model, temperature, maxTokens
}

// buildParams maps the shared request onto Messages params. System prompt and
// context blocks become system text blocks in order.
func (c *Client) buildParams(req openrouter.ChatRequest) sdk.MessageNewParams {
	model, temperature, maxTokens := c.resolve(req)

	var system []sdk.TextBlockParam
	if req.SystemPrompt != "" {
		system = append(system, sdk.TextBlockParam{Text: req.SystemPrompt})
	}
	for _, block := range req.Context {
		if block != "" {
			system = append(system, sdk.TextBlockParam{Text: block})
		}
	}
	if req.JSONMode {
		system = append(system, sdk.TextBlockParam{Text: jsonInstruction})
	}

	return sdk.MessageNewParams{
		Model:       sdk.Model(model),
		MaxTokens:   int64(maxTokens),
		System:      system,
		Temperature: sdk.Float(temperature),
		Messages: []sdk.MessageParam{
			sdk.NewUserMessage(sdk.NewTextBlock(req.UserPrompt)),
		},
	}
}

// Chat sends req with bounded retry: 429, 5xx and network timeouts are retried
func (c *Client) Chat(ctx context.Context, req openrouter.ChatRequest) (*openrouter.ChatResponse, error) {
	if c.config.APIKey == "" {
		return nil, errors.WithHint(errors.Wrap(errors.ErrMissingCredential, "anthropic API key not configured"),
			"set ANTHROPIC_API_KEY or anthropic.api_key")
	}

	params := c.buildParams(req)
	model, temperature, maxTokens := c.resolve(req)
	log := logger.FromContext(ctx, c.logger)
	log.Debugw("Chat request", logger.FieldModel, model, "system_blocks", len(params.System))

	policy := c.config.Retry
	policy.OnRetry = func(attempt int, wait time.Duration, err error) {
		log.Warnw("Chat attempt failed, retrying",
			logger.FieldAttempt, attempt, "wait", wait, logger.FieldError, err)
	}

	started := time.Now()
	attempts := 0
	msg, err := retry.DoWithResult(ctx, policy, func(attempt int) (*sdk.Message, error) {
		attempts = attempt
		m, err := c.client.Messages.New(ctx, params)
		if err != nil {
			if !isRetryable(err) {
				return nil, retry.NonRetryable(err)
			}
			return nil, err
		}
		return m, nil
	})

	call := tracker.Call{
		Provider:    ProviderName,
		Model:       model,
		Temperature: &temperature,
		MaxTokens:   &maxTokens,
		JSONMode:    req.JSONMode,
		Started:     started,
		Attempts:    attempts,
		InputLength: len(req.SystemPrompt) + len(req.UserPrompt) + len(strings.Join(req.Context, "")),
	}

	if err == nil {
		var text string
		text, err = textContent(msg)
		if err == nil {
			call.PromptTokens = int(msg.Usage.InputTokens)
			call.CompletionTokens = int(msg.Usage.OutputTokens)
			call.Cost = tracker.CalculateCost(model, call.PromptTokens, call.CompletionTokens)
			call.OutputLength = len(text)
			c.record(ctx, call)

			return &openrouter.ChatResponse{
				Content: strings.TrimSpace(text),
				Model:   model,
				Usage: openrouter.Usage{
					PromptTokens:     call.PromptTokens,
					CompletionTokens: call.CompletionTokens,
					TotalTokens:      call.PromptTokens + call.CompletionTokens,
				},
				Attempts: attempts,
			}, nil
		}
	}

	call.Err = err
	c.record(ctx, call)
	if errors.Is(err, retry.ErrExhausted) {
		err = errors.Mark(err, errors.ErrServiceUnavailable)
	}
	return nil, errors.Wrap(err, "anthropic chat completion")
}

func textContent(msg *sdk.Message) (string, error) {
	var parts []string
	for _, block := range msg.Content {
		if block.Type == "text" {
			parts = append(parts, block.Text)
		}
	}
	if len(parts) == 0 {
		return "", errors.Newf("no text content in response (%d blocks)", len(msg.Content))
	}
	return strings.Join(parts, ""), nil
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

// isRetryable accepts 429, 5xx and transport failures. Cancellation of the
// caller's ctx is handled by retry.Do.
func isRetryable(err error) bool {
	if err == nil {
		return false
	}

	var apiErr *sdk.Error
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode == 429 || apiErr.StatusCode >= 500
	}

	var netErr net.Error
	return errors.As(err, &netErr)
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
	return ProviderName
}
