// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package config loads the paper-analyzer configuration from defaults, an
// optional YAML file, a .env file, PAPER_ANALYZER_* environment variables,
// and the .secrets/ directory, in increasing order of precedence for
// everything except API keys.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/spf13/viper"

	"github.com/pdiddy/paper-analyzer/internal/container"
	"github.com/pdiddy/paper-analyzer/internal/fulltext"
	"github.com/pdiddy/paper-analyzer/internal/observability"
	"github.com/pdiddy/paper-analyzer/internal/secrets"
	"github.com/pdiddy/paper-analyzer/internal/stage"
	"github.com/pdiddy/paper-analyzer/internal/store"
	"github.com/pdiddy/paper-analyzer/pkg/types"
)

const (
	// EnvPrefix prefixes every configuration environment variable, with
	// dots replaced by underscores (PAPER_ANALYZER_GATEWAY_MODEL).
	EnvPrefix = "PAPER_ANALYZER"

	// ConfigName is the config file base name searched for in . and
	// ~/.config/paper-analyzer/.
	ConfigName = "paper-analyzer"

	// DefaultUserAgent identifies the client to paper sources.
	DefaultUserAgent = "paper-analyzer/0.1"
)

// ErrInvalid is wrapped by every validation failure.
var ErrInvalid = errors.New("invalid configuration")

// Options control where Load looks.
type Options struct {
	// ConfigFile is an explicit config file path. Unlike the default search
	// locations, a missing explicit file is an error.
	ConfigFile string

	// EnvFile is loaded into the process environment when present
	// (default ".env"). Variables already set are not overridden.
	EnvFile string

	// SecretsDir holds API key files (default ".secrets").
	SecretsDir string

	Logger zerolog.Logger
}

// Load reads the configuration into a fresh types.Config. v may carry flag
// bindings; nil uses a new Viper instance.
func Load(v *viper.Viper, opts Options) (*types.Config, error) {
	if v == nil {
		v = viper.New()
	}

	envFile := opts.EnvFile
	if envFile == "" {
		envFile = ".env"
	}
	if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("loading %s: %w", envFile, err)
	}

	SetDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if opts.ConfigFile != "" {
		v.SetConfigFile(opts.ConfigFile)
	} else {
		v.SetConfigName(ConfigName)
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".config", ConfigName))
		}
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	} else {
		opts.Logger.Debug().Str("file", v.ConfigFileUsed()).Msg("using config file")
	}

	var cfg types.Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}

	secretsDir := opts.SecretsDir
	if secretsDir == "" {
		secretsDir = secrets.DefaultDir
	}
	if err := resolveAPIKey(&cfg.Gateway, secretsDir, opts.Logger); err != nil {
		return nil, err
	}

	if err := Validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// SetDefaults registers every key with its default so environment variables
// bind even when no config file mentions the key.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("source.backend", string(types.SourceArxiv))
	v.SetDefault("source.categories", []string{"cs.AI"})
	v.SetDefault("source.papers_dir", "papers")
	v.SetDefault("source.markdown_dir", "")
	v.SetDefault("source.timeout", "60s")
	v.SetDefault("source.user_agent", DefaultUserAgent)
	v.SetDefault("source.rate_limit", 0.0)
	v.SetDefault("source.max_retries", 5)

	v.SetDefault("full_text.enabled", false)
	v.SetDefault("full_text.raw_dir", "papers/raw")
	v.SetDefault("full_text.markdown_dir", "papers/markdown")
	v.SetDefault("full_text.runtime", "")
	v.SetDefault("full_text.image", fulltext.DefaultImage)

	v.SetDefault("gateway.provider", string(types.ProviderOpenAI))
	v.SetDefault("gateway.model", "gpt-4-turbo-preview")
	v.SetDefault("gateway.api_key", "")
	v.SetDefault("gateway.base_url", "")
	v.SetDefault("gateway.temperature", 0.2)
	v.SetDefault("gateway.max_tokens", 2048)
	v.SetDefault("gateway.timeout", "120s")
	v.SetDefault("gateway.rate_limit", 0.0)
	v.SetDefault("gateway.burst", 1)

	v.SetDefault("analysis.interested_fields", stage.DefaultInterestedFields)

	v.SetDefault("store.path", store.DefaultPath)

	v.SetDefault("pipeline.concurrency", 4)
	v.SetDefault("pipeline.lookback_days", 7)
	v.SetDefault("pipeline.max_papers", 10)
	v.SetDefault("pipeline.skip_existing", false)

	def := observability.DefaultLoggingConfig()
	v.SetDefault("logging.level", def.Level)
	v.SetDefault("logging.format", def.Format)
	v.SetDefault("logging.output", def.Output)

	v.SetDefault("metrics.namespace", observability.DefaultNamespace)
	v.SetDefault("metrics.addr", "")
}

// providerEnv lists the conventional key variables for each provider.
var providerEnv = map[types.Provider]string{
	types.ProviderOpenAI:    "OPENAI_API_KEY",
	types.ProviderAnthropic: "ANTHROPIC_API_KEY",
}

// resolveAPIKey fills an empty gateway key from the provider's conventional
// environment variable, then from the secrets directory.
func resolveAPIKey(cfg *types.AIConfig, secretsDir string, logger zerolog.Logger) error {
	if cfg.APIKey != "" {
		return nil
	}
	if name := providerEnv[cfg.Provider]; name != "" {
		if key := os.Getenv(name); key != "" {
			cfg.APIKey = key
			return nil
		}
	}
	s, err := secrets.Load(secretsDir, logger)
	if err != nil {
		return err
	}
	cfg.APIKey = s.APIKey(cfg.Provider)
	return nil
}

var validLogLevels = map[string]bool{
	"trace": true, "debug": true, "info": true, "warn": true,
	"error": true, "fatal": true, "panic": true, "disabled": true,
}

// Validate checks cfg. The API key is checked separately by RequireAPIKey
// because read-only commands do not need one.
func Validate(cfg *types.Config) error {
	switch cfg.Source.Backend {
	case types.SourceArxiv:
		if len(cfg.Source.Categories) == 0 {
			return fmt.Errorf("%w: source.categories must not be empty", ErrInvalid)
		}
	case types.SourceFile:
		if cfg.Source.PapersDir == "" {
			return fmt.Errorf("%w: source.papers_dir is required for the file backend", ErrInvalid)
		}
	default:
		return fmt.Errorf("%w: unknown source.backend %q", ErrInvalid, cfg.Source.Backend)
	}
	if cfg.Source.RateLimit < 0 {
		return fmt.Errorf("%w: source.rate_limit must not be negative", ErrInvalid)
	}

	if ft := cfg.FullText; ft.Enabled {
		if ft.RawDir == "" || ft.MarkdownDir == "" {
			return fmt.Errorf("%w: full_text.raw_dir and full_text.markdown_dir are required when full_text is enabled", ErrInvalid)
		}
		switch ft.Runtime {
		case "", container.Docker, container.Podman:
		default:
			return fmt.Errorf("%w: unknown full_text.runtime %q", ErrInvalid, ft.Runtime)
		}
	}

	switch cfg.Gateway.Provider {
	case types.ProviderOpenAI, types.ProviderAnthropic:
	default:
		return fmt.Errorf("%w: unknown gateway.provider %q", ErrInvalid, cfg.Gateway.Provider)
	}
	if cfg.Gateway.Temperature < 0 || cfg.Gateway.Temperature > 2 {
		return fmt.Errorf("%w: gateway.temperature must be between 0 and 2", ErrInvalid)
	}
	if cfg.Gateway.Timeout <= 0 {
		return fmt.Errorf("%w: gateway.timeout must be positive", ErrInvalid)
	}
	if cfg.Gateway.RateLimit < 0 {
		return fmt.Errorf("%w: gateway.rate_limit must not be negative", ErrInvalid)
	}

	if len(cfg.Analysis.InterestedFields) == 0 {
		return fmt.Errorf("%w: analysis.interested_fields must not be empty", ErrInvalid)
	}
	if cfg.Store.Path == "" {
		return fmt.Errorf("%w: store.path is required", ErrInvalid)
	}
	if cfg.Pipeline.Concurrency <= 0 {
		return fmt.Errorf("%w: pipeline.concurrency must be positive", ErrInvalid)
	}
	if cfg.Pipeline.LookbackDays < 0 || cfg.Pipeline.MaxPapers < 0 {
		return fmt.Errorf("%w: pipeline.lookback_days and pipeline.max_papers must not be negative", ErrInvalid)
	}
	if !validLogLevels[strings.ToLower(cfg.Logging.Level)] {
		return fmt.Errorf("%w: invalid logging.level %q", ErrInvalid, cfg.Logging.Level)
	}
	return nil
}

// RequireAPIKey reports a missing gateway key.
func RequireAPIKey(cfg *types.Config) error {
	if cfg.Gateway.APIKey != "" {
		return nil
	}
	return fmt.Errorf("%w: no API key for provider %s: set %s, %s_GATEWAY_API_KEY, or %s/%s",
		ErrInvalid, cfg.Gateway.Provider, providerEnv[cfg.Gateway.Provider], EnvPrefix,
		secrets.DefaultDir, secretFile(cfg.Gateway.Provider))
}

func secretFile(p types.Provider) string {
	if p == types.ProviderAnthropic {
		return secrets.KeyAnthropic
	}
	return secrets.KeyOpenAI
}
