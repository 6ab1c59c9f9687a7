// Package am holds finkg configuration: graph, ingestion, reasoning providers,
// trace log, usage database and logging.
package am

// Config represents the core finkg configuration
type Config struct {
	Graph      GraphConfig      `mapstructure:"graph" json:"graph" yaml:"graph" toml:"graph"`
	Ingest     IngestConfig     `mapstructure:"ingest" json:"ingest" yaml:"ingest" toml:"ingest"`
	Reasoning  ReasoningConfig  `mapstructure:"reasoning" json:"reasoning" yaml:"reasoning" toml:"reasoning"`
	OpenRouter OpenRouterConfig `mapstructure:"openrouter" json:"openrouter" yaml:"openrouter" toml:"openrouter"`
	OpenAI     OpenAIConfig     `mapstructure:"openai" json:"openai" yaml:"openai" toml:"openai"`
	Anthropic  AnthropicConfig  `mapstructure:"anthropic" json:"anthropic" yaml:"anthropic" toml:"anthropic"`
	Trace      TraceConfig      `mapstructure:"trace" json:"trace" yaml:"trace" toml:"trace"`
	Database   DatabaseConfig   `mapstructure:"database" json:"database" yaml:"database" toml:"database"`
	Log        LogConfig        `mapstructure:"log" json:"log" yaml:"log" toml:"log"`
}

// GraphConfig configures the entity store
type GraphConfig struct {
	BaseIRI  string `mapstructure:"base_iri" json:"base_iri" yaml:"base_iri" toml:"base_iri"`
	DumpPath string `mapstructure:"dump_path" json:"dump_path" yaml:"dump_path" toml:"dump_path"` // N-Triples file to load instead of seeding
}

// IngestConfig configures bulk ingestion of delimited files
type IngestConfig struct {
	DataDir         string `mapstructure:"data_dir" json:"data_dir" yaml:"data_dir" toml:"data_dir"`
	Delimiter       string `mapstructure:"delimiter" json:"delimiter" yaml:"delimiter" toml:"delimiter"`
	WatchDebounceMS int    `mapstructure:"watch_debounce_ms" json:"watch_debounce_ms" yaml:"watch_debounce_ms" toml:"watch_debounce_ms"`
}

// ReasoningConfig configures provider selection and the retry budget shared by all providers
type ReasoningConfig struct {
	Provider          string `mapstructure:"provider" json:"provider" yaml:"provider" toml:"provider"` // auto, openrouter, openai, anthropic
	SystemPrompt      string `mapstructure:"system_prompt" json:"system_prompt" yaml:"system_prompt" toml:"system_prompt"`
	MaxAttempts       int    `mapstructure:"max_attempts" json:"max_attempts" yaml:"max_attempts" toml:"max_attempts"`
	RetryDelayMS      int    `mapstructure:"retry_delay_ms" json:"retry_delay_ms" yaml:"retry_delay_ms" toml:"retry_delay_ms"`
	RequestsPerMinute int    `mapstructure:"requests_per_minute" json:"requests_per_minute" yaml:"requests_per_minute" toml:"requests_per_minute"` // 0 = unpaced
	TimeoutSeconds    int    `mapstructure:"timeout_seconds" json:"timeout_seconds" yaml:"timeout_seconds" toml:"timeout_seconds"`
}

// OpenRouterConfig configures the OpenRouter chat-completions endpoint
type OpenRouterConfig struct {
	APIKey      string  `mapstructure:"api_key" json:"api_key" yaml:"api_key" toml:"api_key"`
	BaseURL     string  `mapstructure:"base_url" json:"base_url" yaml:"base_url" toml:"base_url"`
	Model       string  `mapstructure:"model" json:"model" yaml:"model" toml:"model"`
	Temperature float64 `mapstructure:"temperature" json:"temperature" yaml:"temperature" toml:"temperature"`
	MaxTokens   int     `mapstructure:"max_tokens" json:"max_tokens" yaml:"max_tokens" toml:"max_tokens"`
}

// OpenAIConfig configures direct use of the OpenAI chat-completions endpoint.
// Temperature and max tokens are shared with the openrouter section.
type OpenAIConfig struct {
	APIKey  string `mapstructure:"api_key" json:"api_key" yaml:"api_key" toml:"api_key"`
	BaseURL string `mapstructure:"base_url" json:"base_url" yaml:"base_url" toml:"base_url"`
	Model   string `mapstructure:"model" json:"model" yaml:"model" toml:"model"`
}

// AnthropicConfig configures the Anthropic Messages API
type AnthropicConfig struct {
	APIKey      string  `mapstructure:"api_key" json:"api_key" yaml:"api_key" toml:"api_key"`
	Model       string  `mapstructure:"model" json:"model" yaml:"model" toml:"model"`
	Temperature float64 `mapstructure:"temperature" json:"temperature" yaml:"temperature" toml:"temperature"`
	MaxTokens   int     `mapstructure:"max_tokens" json:"max_tokens" yaml:"max_tokens" toml:"max_tokens"`
}

// TraceConfig configures the JSONL trace log. An empty path disables tracing.
type TraceConfig struct {
	Path string `mapstructure:"path" json:"path" yaml:"path" toml:"path"`
}

// DatabaseConfig configures the SQLite usage ledger
type DatabaseConfig struct {
	Path       string `mapstructure:"path" json:"path" yaml:"path" toml:"path"`
	TrackUsage bool   `mapstructure:"track_usage" json:"track_usage" yaml:"track_usage" toml:"track_usage"`
}

// LogConfig configures the global logger
type LogConfig struct {
	JSON bool   `mapstructure:"json" json:"json" yaml:"json" toml:"json"`
	File string `mapstructure:"file" json:"file" yaml:"file" toml:"file"`
}

// Provider names accepted in reasoning.provider
const (
	ProviderAuto       = "auto"
	ProviderOpenRouter = "openrouter"
	ProviderOpenAI     = "openai"
	ProviderAnthropic  = "anthropic"
)

// DefaultDirPermissions is used when creating ~/.finkg
const DefaultDirPermissions = 0o755

// Redacted returns a copy with API keys masked, for display
func (c Config) Redacted() Config {
	c.OpenRouter.APIKey = redact(c.OpenRouter.APIKey)
	c.OpenAI.APIKey = redact(c.OpenAI.APIKey)
	c.Anthropic.APIKey = redact(c.Anthropic.APIKey)
	return c
}

func redact(key string) string {
	if key == "" {
		return ""
	}
	if len(key) <= 8 {
		return "****"
	}
	return key[:4] + "****" + key[len(key)-4:]
}
