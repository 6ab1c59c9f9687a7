package am

import (
	"github.com/spf13/viper"
)

// DefaultSystemPrompt frames every model call
const DefaultSystemPrompt = "You are a financial reasoning assistant. You answer strictly based on " +
	"provided facts or instructions. If information is missing, state that it is not available."

// SetDefaults configures default values for all configuration options
func SetDefaults(v *viper.Viper) {
	// Graph defaults
	v.SetDefault("graph.base_iri", "http://example.org/finance/")
	v.SetDefault("graph.dump_path", "")

	// Ingestion defaults
	v.SetDefault("ingest.data_dir", "")
	v.SetDefault("ingest.delimiter", ",")
	v.SetDefault("ingest.watch_debounce_ms", 500)

	// Reasoning defaults
	v.SetDefault("reasoning.provider", ProviderAuto)
	v.SetDefault("reasoning.system_prompt", DefaultSystemPrompt)
	v.SetDefault("reasoning.max_attempts", 3)
	v.SetDefault("reasoning.retry_delay_ms", 1500) // attempt N waits N x delay
	v.SetDefault("reasoning.requests_per_minute", 0)
	v.SetDefault("reasoning.timeout_seconds", 60)

	// OpenRouter defaults
	v.SetDefault("openrouter.base_url", "https://openrouter.ai/api/v1")
	v.SetDefault("openrouter.model", "openai/gpt-4o-mini")
	v.SetDefault("openrouter.temperature", 0.0)
	v.SetDefault("openrouter.max_tokens", 1000)

	// OpenAI defaults
	v.SetDefault("openai.base_url", "https://api.openai.com/v1")
	v.SetDefault("openai.model", "gpt-4o-mini")

	// Anthropic defaults
	v.SetDefault("anthropic.model", "claude-3-5-haiku-latest")
	v.SetDefault("anthropic.temperature", 0.0)
	v.SetDefault("anthropic.max_tokens", 1000)

	// Trace defaults
	v.SetDefault("trace.path", "")

	// Database defaults
	v.SetDefault("database.path", "finkg.db")
	v.SetDefault("database.track_usage", false)

	// Log defaults
	v.SetDefault("log.json", false)
	v.SetDefault("log.file", "")
}

// BindSensitiveEnvVars explicitly binds credentials to environment variables.
// The FINKG_ names win; the vendor names are honoured so existing shells just work.
func BindSensitiveEnvVars(v *viper.Viper) {
	v.BindEnv("openrouter.api_key", "FINKG_OPENROUTER_API_KEY", "OPENROUTER_API_KEY")
	v.BindEnv("openai.api_key", "FINKG_OPENAI_API_KEY", "OPENAI_API_KEY")
	v.BindEnv("anthropic.api_key", "FINKG_ANTHROPIC_API_KEY", "ANTHROPIC_API_KEY")

	v.BindEnv("database.path", "FINKG_DATABASE_PATH")
	v.BindEnv("trace.path", "FINKG_TRACE_PATH")
}

// CredentialEnvVar names the variable a user should set for provider
func CredentialEnvVar(provider string) string {
	switch provider {
	case ProviderOpenAI:
		return "OPENAI_API_KEY"
	case ProviderAnthropic:
		return "ANTHROPIC_API_KEY"
	default:
		return "OPENROUTER_API_KEY"
	}
}
