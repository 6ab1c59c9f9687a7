package am

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func defaultConfig(t *testing.T) *Config {
	t.Helper()
	v := viper.New()
	SetDefaults(v)
	cfg, err := LoadWithViper(v)
	require.NoError(t, err)
	return cfg
}

func TestLoad_Defaults(t *testing.T) {
	cfg := defaultConfig(t)

	assert.Equal(t, "http://example.org/finance/", cfg.Graph.BaseIRI)
	assert.Equal(t, ",", cfg.Ingest.Delimiter)
	assert.Equal(t, ProviderAuto, cfg.Reasoning.Provider)
	assert.Equal(t, 3, cfg.Reasoning.MaxAttempts)
	assert.Equal(t, 1500, cfg.Reasoning.RetryDelayMS)
	assert.Equal(t, DefaultSystemPrompt, cfg.Reasoning.SystemPrompt)
	assert.Equal(t, "openai/gpt-4o-mini", cfg.OpenRouter.Model)
	assert.Equal(t, 0.0, cfg.OpenRouter.Temperature)
	assert.Equal(t, "finkg.db", cfg.Database.Path)
	assert.False(t, cfg.Database.TrackUsage)
	assert.Empty(t, cfg.Trace.Path)

	require.NoError(t, cfg.Validate())
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:    "unknown provider",
			mutate:  func(c *Config) { c.Reasoning.Provider = "gemini" },
			wantErr: "reasoning.provider",
		},
		{
			name:    "zero attempts",
			mutate:  func(c *Config) { c.Reasoning.MaxAttempts = 0 },
			wantErr: "reasoning.max_attempts",
		},
		{
			name:    "negative pacing",
			mutate:  func(c *Config) { c.Reasoning.RequestsPerMinute = -1 },
			wantErr: "reasoning.requests_per_minute",
		},
		{
			name:    "multi-character delimiter",
			mutate:  func(c *Config) { c.Ingest.Delimiter = ";;" },
			wantErr: "ingest.delimiter",
		},
		{
			name:    "tracking without database path",
			mutate:  func(c *Config) { c.Database.TrackUsage = true; c.Database.Path = "" },
			wantErr: "database.path",
		},
		{
			name:   "tab delimiter is valid",
			mutate: func(c *Config) { c.Ingest.Delimiter = "\t" },
		},
		{
			name:   "zero retry delay is valid",
			mutate: func(c *Config) { c.Reasoning.RetryDelayMS = 0 },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := defaultConfig(t)
			tt.mutate(cfg)

			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()

	t.Run("toml", func(t *testing.T) {
		path := filepath.Join(dir, "finkg.toml")
		content := `
[reasoning]
provider = "anthropic"
max_attempts = 5

[trace]
path = "trace.jsonl"
`
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

		cfg, err := LoadFromFile(path)
		require.NoError(t, err)
		assert.Equal(t, ProviderAnthropic, cfg.Reasoning.Provider)
		assert.Equal(t, 5, cfg.Reasoning.MaxAttempts)
		assert.Equal(t, "trace.jsonl", cfg.Trace.Path)
		// untouched keys keep defaults
		assert.Equal(t, 1500, cfg.Reasoning.RetryDelayMS)
	})

	t.Run("yaml", func(t *testing.T) {
		path := filepath.Join(dir, "finkg.yaml")
		content := "ingest:\n  data_dir: ./data\n  delimiter: \";\"\n"
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

		cfg, err := LoadFromFile(path)
		require.NoError(t, err)
		assert.Equal(t, "./data", cfg.Ingest.DataDir)
		assert.Equal(t, ";", cfg.Ingest.Delimiter)
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := LoadFromFile(filepath.Join(dir, "nope.toml"))
		assert.Error(t, err)
	})
}

func TestBindSensitiveEnvVars(t *testing.T) {
	t.Setenv("OPENROUTER_API_KEY", "sk-or-vendor")
	t.Setenv("ANTHROPIC_API_KEY", "sk-ant-vendor")
	t.Setenv("FINKG_ANTHROPIC_API_KEY", "sk-ant-finkg")

	v := viper.New()
	BindSensitiveEnvVars(v)
	SetDefaults(v)
	cfg, err := LoadWithViper(v)
	require.NoError(t, err)

	assert.Equal(t, "sk-or-vendor", cfg.OpenRouter.APIKey)
	assert.Equal(t, "sk-ant-finkg", cfg.Anthropic.APIKey, "FINKG_ name is bound first")
}

func TestRedacted(t *testing.T) {
	cfg := defaultConfig(t)
	cfg.OpenRouter.APIKey = "sk-or-v1-abcdefghijkl"
	cfg.Anthropic.APIKey = "short"

	red := cfg.Redacted()
	assert.Equal(t, "sk-o****ijkl", red.OpenRouter.APIKey)
	assert.Equal(t, "****", red.Anthropic.APIKey)
	assert.Empty(t, red.OpenAI.APIKey)
	assert.Equal(t, "sk-or-v1-abcdefghijkl", cfg.OpenRouter.APIKey, "original untouched")
}

func TestCredentialEnvVar(t *testing.T) {
	assert.Equal(t, "OPENROUTER_API_KEY", CredentialEnvVar(ProviderOpenRouter))
	assert.Equal(t, "OPENROUTER_API_KEY", CredentialEnvVar(ProviderAuto))
	assert.Equal(t, "OPENAI_API_KEY", CredentialEnvVar(ProviderOpenAI))
	assert.Equal(t, "ANTHROPIC_API_KEY", CredentialEnvVar(ProviderAnthropic))
}
