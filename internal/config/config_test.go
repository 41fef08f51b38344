// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/paper-analyzer/internal/secrets"
	"github.com/pdiddy/paper-analyzer/pkg/types"
)

// isolate clears environment variables that would leak into Load and
// returns options pointing at empty temporary locations.
func isolate(t *testing.T) Options {
	t.Helper()
	for _, k := range []string{
		"OPENAI_API_KEY", "ANTHROPIC_API_KEY",
		"PAPER_ANALYZER_GATEWAY_API_KEY", "PAPER_ANALYZER_GATEWAY_PROVIDER",
		"PAPER_ANALYZER_GATEWAY_MODEL", "PAPER_ANALYZER_SOURCE_CATEGORIES",
		"PAPER_ANALYZER_PIPELINE_CONCURRENCY", "PAPER_ANALYZER_LOGGING_LEVEL",
	} {
		t.Setenv(k, "")
	}
	dir := t.TempDir()
	return Options{
		EnvFile:    filepath.Join(dir, "missing.env"),
		SecretsDir: filepath.Join(dir, "secrets"),
		Logger:     zerolog.Nop(),
	}
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestLoadDefaults(t *testing.T) {
	opts := isolate(t)

	cfg, err := Load(nil, opts)
	require.NoError(t, err)

	assert.Equal(t, types.SourceArxiv, cfg.Source.Backend)
	assert.Equal(t, []string{"cs.AI"}, cfg.Source.Categories)
	assert.Equal(t, 60*time.Second, cfg.Source.Timeout)
	assert.Equal(t, DefaultUserAgent, cfg.Source.UserAgent)
	assert.Equal(t, 5, cfg.Source.MaxRetries)

	assert.Equal(t, types.ProviderOpenAI, cfg.Gateway.Provider)
	assert.Equal(t, "gpt-4-turbo-preview", cfg.Gateway.Model)
	assert.Equal(t, 0.2, cfg.Gateway.Temperature)
	assert.Equal(t, 2048, cfg.Gateway.MaxTokens)
	assert.Equal(t, 120*time.Second, cfg.Gateway.Timeout)
	assert.Empty(t, cfg.Gateway.APIKey)

	assert.Len(t, cfg.Analysis.InterestedFields, 5)
	assert.Equal(t, "data/papers.db", cfg.Store.Path)
	assert.Equal(t, types.PipelineConfig{Concurrency: 4, LookbackDays: 7, MaxPapers: 10}, cfg.Pipeline)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, "paper_analyzer", cfg.Metrics.Namespace)
	assert.Equal(t, types.FullTextConfig{
		RawDir:      "papers/raw",
		MarkdownDir: "papers/markdown",
		Image:       "markitdown:latest",
	}, cfg.FullText)

	err = RequireAPIKey(cfg)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalid)
	assert.Contains(t, err.Error(), "OPENAI_API_KEY")
}

func TestLoadConfigFile(t *testing.T) {
	opts := isolate(t)
	opts.ConfigFile = filepath.Join(t.TempDir(), "paper-analyzer.yaml")
	writeFile(t, opts.ConfigFile, `
source:
  backend: file
  papers_dir: testdata/papers
  categories: [cs.LG, cs.CL]
gateway:
  provider: anthropic
  model: claude-sonnet
  timeout: 30s
  rate_limit: 0.5
analysis:
  interested_fields: [Robotics, Speech]
pipeline:
  concurrency: 2
  skip_existing: true
logging:
  level: debug
  format: json
`)

	cfg, err := Load(nil, opts)
	require.NoError(t, err)

	assert.Equal(t, types.SourceFile, cfg.Source.Backend)
	assert.Equal(t, "testdata/papers", cfg.Source.PapersDir)
	assert.Equal(t, []string{"cs.LG", "cs.CL"}, cfg.Source.Categories)
	assert.Equal(t, types.ProviderAnthropic, cfg.Gateway.Provider)
	assert.Equal(t, "claude-sonnet", cfg.Gateway.Model)
	assert.Equal(t, 30*time.Second, cfg.Gateway.Timeout)
	assert.Equal(t, 0.5, cfg.Gateway.RateLimit)
	assert.Equal(t, []string{"Robotics", "Speech"}, cfg.Analysis.InterestedFields)
	assert.Equal(t, 2, cfg.Pipeline.Concurrency)
	assert.True(t, cfg.Pipeline.SkipExisting)
	assert.Equal(t, 7, cfg.Pipeline.LookbackDays)
	assert.Equal(t, "json", cfg.Logging.Format)
}

func TestLoadMissingExplicitFile(t *testing.T) {
	opts := isolate(t)
	opts.ConfigFile = filepath.Join(t.TempDir(), "absent.yaml")

	_, err := Load(nil, opts)
	assert.Error(t, err)
}

func TestLoadEnvironmentOverrides(t *testing.T) {
	opts := isolate(t)
	t.Setenv("PAPER_ANALYZER_GATEWAY_MODEL", "gpt-4o")
	t.Setenv("PAPER_ANALYZER_PIPELINE_CONCURRENCY", "8")
	t.Setenv("PAPER_ANALYZER_SOURCE_CATEGORIES", "cs.AI,cs.RO")

	cfg, err := Load(nil, opts)
	require.NoError(t, err)
	assert.Equal(t, "gpt-4o", cfg.Gateway.Model)
	assert.Equal(t, 8, cfg.Pipeline.Concurrency)
	assert.Equal(t, []string{"cs.AI", "cs.RO"}, cfg.Source.Categories)
}

func TestLoadFlagBindings(t *testing.T) {
	opts := isolate(t)
	v := viper.New()
	v.Set("pipeline.max_papers", 25)

	cfg, err := Load(v, opts)
	require.NoError(t, err)
	assert.Equal(t, 25, cfg.Pipeline.MaxPapers)
}

func TestLoadAPIKeySources(t *testing.T) {
	t.Run("provider environment variable", func(t *testing.T) {
		opts := isolate(t)
		t.Setenv("OPENAI_API_KEY", "sk-env")

		cfg, err := Load(nil, opts)
		require.NoError(t, err)
		assert.Equal(t, "sk-env", cfg.Gateway.APIKey)
		assert.NoError(t, RequireAPIKey(cfg))
	})

	t.Run("prefixed variable wins", func(t *testing.T) {
		opts := isolate(t)
		t.Setenv("OPENAI_API_KEY", "sk-env")
		t.Setenv("PAPER_ANALYZER_GATEWAY_API_KEY", "sk-prefixed")

		cfg, err := Load(nil, opts)
		require.NoError(t, err)
		assert.Equal(t, "sk-prefixed", cfg.Gateway.APIKey)
	})

	t.Run("secrets directory", func(t *testing.T) {
		opts := isolate(t)
		t.Setenv("PAPER_ANALYZER_GATEWAY_PROVIDER", "anthropic")
		writeFile(t, filepath.Join(opts.SecretsDir, secrets.KeyAnthropic), "sk-ant-file\n")

		cfg, err := Load(nil, opts)
		require.NoError(t, err)
		assert.Equal(t, "sk-ant-file", cfg.Gateway.APIKey)
	})

	t.Run("dotenv file", func(t *testing.T) {
		opts := isolate(t)
		os.Unsetenv("OPENAI_API_KEY")
		t.Cleanup(func() { os.Unsetenv("OPENAI_API_KEY") })
		opts.EnvFile = filepath.Join(t.TempDir(), ".env")
		writeFile(t, opts.EnvFile, "OPENAI_API_KEY=sk-dotenv\n")

		cfg, err := Load(nil, opts)
		require.NoError(t, err)
		assert.Equal(t, "sk-dotenv", cfg.Gateway.APIKey)
	})
}

func TestValidate(t *testing.T) {
	valid := func() *types.Config {
		v := viper.New()
		SetDefaults(v)
		var cfg types.Config
		require.NoError(t, v.Unmarshal(&cfg))
		return &cfg
	}
	require.NoError(t, Validate(valid()))

	tests := []struct {
		name   string
		mutate func(*types.Config)
		want   string
	}{
		{"unknown backend", func(c *types.Config) { c.Source.Backend = "ftp" }, "source.backend"},
		{"no categories", func(c *types.Config) { c.Source.Categories = nil }, "source.categories"},
		{"file without dir", func(c *types.Config) { c.Source.Backend = types.SourceFile; c.Source.PapersDir = "" }, "papers_dir"},
		{"unknown provider", func(c *types.Config) { c.Gateway.Provider = "local" }, "gateway.provider"},
		{"temperature", func(c *types.Config) { c.Gateway.Temperature = 3 }, "temperature"},
		{"timeout", func(c *types.Config) { c.Gateway.Timeout = 0 }, "gateway.timeout"},
		{"no fields", func(c *types.Config) { c.Analysis.InterestedFields = []string{} }, "interested_fields"},
		{"no store", func(c *types.Config) { c.Store.Path = "" }, "store.path"},
		{"concurrency", func(c *types.Config) { c.Pipeline.Concurrency = 0 }, "concurrency"},
		{"negative lookback", func(c *types.Config) { c.Pipeline.LookbackDays = -1 }, "lookback_days"},
		{"log level", func(c *types.Config) { c.Logging.Level = "loud" }, "logging.level"},
		{"full text without dirs", func(c *types.Config) { c.FullText.Enabled = true; c.FullText.RawDir = "" }, "full_text.raw_dir"},
		{"full text runtime", func(c *types.Config) { c.FullText.Enabled = true; c.FullText.Runtime = "lxc" }, "full_text.runtime"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := Validate(cfg)
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrInvalid)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestLoadRejectsInvalid(t *testing.T) {
	opts := isolate(t)
	t.Setenv("PAPER_ANALYZER_LOGGING_LEVEL", "loud")

	_, err := Load(nil, opts)
	assert.ErrorIs(t, err, ErrInvalid)
}
