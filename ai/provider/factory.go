// Package provider selects and builds the chat client named by configuration.
package provider

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/teranos/finkg/ai/anthropic"
	"github.com/teranos/finkg/ai/openrouter"
	"github.com/teranos/finkg/ai/tracker"
	"github.com/teranos/finkg/am"
	"github.com/teranos/finkg/errors"
	"github.com/teranos/finkg/internal/retry"
)

// AIClient interface for all LLM providers
type AIClient interface {
	Chat(ctx context.Context, req openrouter.ChatRequest) (*openrouter.ChatResponse, error)
}

// DescribedClient is an AIClient that can name itself for logs and traces
type DescribedClient interface {
	AIClient
	Provider() string
	Model() string
}

type options struct {
	logger  *zap.SugaredLogger
	tracker *tracker.UsageTracker
}

// Option configures New
type Option func(*options)

// WithLogger sets the client logger
func WithLogger(l *zap.SugaredLogger) Option {
	return func(o *options) {
		o.logger = l
	}
}

// WithTracker records every call in the usage table
func WithTracker(t *tracker.UsageTracker) Option {
	return func(o *options) {
		o.tracker = t
	}
}

// autoOrder is the preference when reasoning.provider is auto
var autoOrder = []string{am.ProviderOpenRouter, am.ProviderOpenAI, am.ProviderAnthropic}

// ParseProvider normalizes a provider name
func ParseProvider(s string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "auto":
		return am.ProviderAuto, nil
	case "openrouter", "or":
		return am.ProviderOpenRouter, nil
	case "openai", "gpt":
		return am.ProviderOpenAI, nil
	case "anthropic", "claude":
		return am.ProviderAnthropic, nil
	default:
		return "", errors.NewInvalidRequestError("unknown provider %q (valid: auto, openrouter, openai, anthropic)", s)
	}
}

// Available lists the providers that have an API key, in auto order
func Available(cfg *am.Config) []string {
	var out []string
	for _, p := range autoOrder {
		if apiKey(cfg, p) != "" {
			out = append(out, p)
		}
	}
	return out
}

// Resolve picks the concrete provider. An explicit provider without a key, or
// auto with no key at all, fails with ErrMissingCredential.
func Resolve(cfg *am.Config) (string, error) {
	p, err := ParseProvider(cfg.Reasoning.Provider)
	if err != nil {
		return "", err
	}

	if p == am.ProviderAuto {
		if avail := Available(cfg); len(avail) > 0 {
			return avail[0], nil
		}
		return "", errors.WithHint(
			errors.Wrap(errors.ErrMissingCredential, "no reasoning provider has an API key"),
			"set OPENROUTER_API_KEY, OPENAI_API_KEY or ANTHROPIC_API_KEY",
		)
	}

	if apiKey(cfg, p) == "" {
		return "", errors.WithHint(
			errors.Wrapf(errors.ErrMissingCredential, "%s API key not configured", p),
			"set "+am.CredentialEnvVar(p),
		)
	}
	return p, nil
}

// New builds the chat client for cfg. It fails fast when credentials are
// missing so no workflow starts without a usable model.
func New(cfg *am.Config, opts ...Option) (DescribedClient, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	p, err := Resolve(cfg)
	if err != nil {
		return nil, err
	}

	policy := RetryConfig(cfg)
	timeout := time.Duration(cfg.Reasoning.TimeoutSeconds) * time.Second

	switch p {
	case am.ProviderAnthropic:
		return anthropic.NewClient(anthropic.Config{
			APIKey:      cfg.Anthropic.APIKey,
			Model:       cfg.Anthropic.Model,
			Temperature: cfg.Anthropic.Temperature,
			MaxTokens:   cfg.Anthropic.MaxTokens,
			Timeout:     timeout,
			Retry:       policy,
			Logger:      o.logger,
			Tracker:     o.tracker,
		}), nil

	case am.ProviderOpenAI:
		return openrouter.NewClient(openrouter.Config{
			APIKey:            cfg.OpenAI.APIKey,
			BaseURL:           cfg.OpenAI.BaseURL,
			Provider:          am.ProviderOpenAI,
			Model:             cfg.OpenAI.Model,
			Temperature:       &cfg.OpenRouter.Temperature,
			MaxTokens:         positive(cfg.OpenRouter.MaxTokens),
			Timeout:           timeout,
			Retry:             policy,
			RequestsPerMinute: cfg.Reasoning.RequestsPerMinute,
			Logger:            o.logger,
			Tracker:           o.tracker,
		}), nil

	default:
		return openrouter.NewClient(openrouter.Config{
			APIKey:            cfg.OpenRouter.APIKey,
			BaseURL:           cfg.OpenRouter.BaseURL,
			Provider:          am.ProviderOpenRouter,
			Model:             cfg.OpenRouter.Model,
			Temperature:       &cfg.OpenRouter.Temperature,
			MaxTokens:         positive(cfg.OpenRouter.MaxTokens),
			Timeout:           timeout,
			Retry:             policy,
			RequestsPerMinute: cfg.Reasoning.RequestsPerMinute,
			Logger:            o.logger,
			Tracker:           o.tracker,
		}), nil
	}
}

// RetryConfig derives the shared retry budget: linear waits of
// attempt x retry_delay_ms.
func RetryConfig(cfg *am.Config) retry.Config {
	attempts := cfg.Reasoning.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}
	return retry.Config{
		MaxAttempts: attempts,
		Delay:       time.Duration(cfg.Reasoning.RetryDelayMS) * time.Millisecond,
		Backoff:     retry.Linear,
	}
}

func apiKey(cfg *am.Config, p string) string {
	switch p {
	case am.ProviderOpenRouter:
		return cfg.OpenRouter.APIKey
	case am.ProviderOpenAI:
		return cfg.OpenAI.APIKey
	case am.ProviderAnthropic:
		return cfg.Anthropic.APIKey
	}
	return ""
}

func positive(n int) *int {
	if n <= 0 {
		return nil
	}
	return &n
}

var (
	_ DescribedClient = (*openrouter.Client)(nil)
	_ DescribedClient = (*anthropic.Client)(nil)
)
