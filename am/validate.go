package am

import "github.com/teranos/finkg/errors"

// Validate checks that the configuration is valid.
// Credentials are not checked here; the provider factory fails fast on those.
func (c *Config) Validate() error {
	switch c.Reasoning.Provider {
	case ProviderAuto, ProviderOpenRouter, ProviderOpenAI, ProviderAnthropic:
	default:
		return errors.NewInvalidRequestError("reasoning.provider must be one of auto, openrouter, openai, anthropic, got %q", c.Reasoning.Provider)
	}

	// Retry budget: at least one attempt, delays non-negative
	if c.Reasoning.MaxAttempts < 1 {
		return errors.Newf("reasoning.max_attempts must be >= 1, got %d", c.Reasoning.MaxAttempts)
	}
	if c.Reasoning.RetryDelayMS < 0 {
		return errors.Newf("reasoning.retry_delay_ms must be >= 0, got %d", c.Reasoning.RetryDelayMS)
	}

	// Pacing: 0 = unpaced, negative = invalid
	if c.Reasoning.RequestsPerMinute < 0 {
		return errors.Newf("reasoning.requests_per_minute must be >= 0, got %d", c.Reasoning.RequestsPerMinute)
	}
	if c.Reasoning.TimeoutSeconds <= 0 {
		return errors.Newf("reasoning.timeout_seconds must be > 0, got %d", c.Reasoning.TimeoutSeconds)
	}

	if c.OpenRouter.Temperature < 0 || c.OpenRouter.Temperature > 2 {
		return errors.Newf("openrouter.temperature must be within [0, 2], got %f", c.OpenRouter.Temperature)
	}
	if c.OpenRouter.MaxTokens <= 0 {
		return errors.Newf("openrouter.max_tokens must be > 0, got %d", c.OpenRouter.MaxTokens)
	}
	if c.Anthropic.Temperature < 0 || c.Anthropic.Temperature > 1 {
		return errors.Newf("anthropic.temperature must be within [0, 1], got %f", c.Anthropic.Temperature)
	}
	if c.Anthropic.MaxTokens <= 0 {
		return errors.Newf("anthropic.max_tokens must be > 0, got %d", c.Anthropic.MaxTokens)
	}

	if len([]rune(c.Ingest.Delimiter)) != 1 {
		return errors.Newf("ingest.delimiter must be a single character, got %q", c.Ingest.Delimiter)
	}
	if c.Ingest.WatchDebounceMS < 0 {
		return errors.Newf("ingest.watch_debounce_ms must be >= 0, got %d", c.Ingest.WatchDebounceMS)
	}

	if c.Database.TrackUsage && c.Database.Path == "" {
		return errors.New("database.path cannot be empty when database.track_usage is enabled")
	}

	return nil
}
