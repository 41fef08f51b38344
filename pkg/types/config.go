// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import "time"

// HTTPConfig holds shared HTTP settings used by components that make network requests.
type HTTPConfig struct {
	// Timeout is the HTTP request timeout.
	Timeout time.Duration `json:"timeout" yaml:"timeout" mapstructure:"timeout"`

	// UserAgent is the User-Agent header sent with HTTP requests
	// (e.g. "paper-analyzer/0.1").
	UserAgent string `json:"user_agent" yaml:"user_agent" mapstructure:"user_agent"`
}

// SourceBackend identifies where candidate papers come from.
type SourceBackend string

const (
	SourceArxiv SourceBackend = "arxiv"
	SourceFile  SourceBackend = "file"
)

// SourceConfig holds settings for the paper source.
type SourceConfig struct {
	HTTPConfig `yaml:",inline" mapstructure:",squash"`

	// Backend selects the paper source: arxiv or file.
	Backend SourceBackend `json:"backend" yaml:"backend" mapstructure:"backend"`

	// Categories are the arXiv categories to query (default ["cs.AI"]).
	Categories []string `json:"categories" yaml:"categories" mapstructure:"categories"`

	// PapersDir holds <id>.yaml paper records for the file backend.
	PapersDir string `json:"papers_dir" yaml:"papers_dir" mapstructure:"papers_dir"`

	// MarkdownDir optionally holds <id>.md full-text files attached to fetched papers.
	MarkdownDir string `json:"markdown_dir,omitempty" yaml:"markdown_dir,omitempty" mapstructure:"markdown_dir"`

	// RateLimit is the sustained request rate against the source API per second.
	RateLimit float64 `json:"rate_limit" yaml:"rate_limit" mapstructure:"rate_limit"`

	// MaxRetries bounds retries on HTTP 429 responses (default 5).
	MaxRetries int `json:"max_retries" yaml:"max_retries" mapstructure:"max_retries"`
}

// FullTextConfig holds settings for recovering paper bodies from PDFs.
type FullTextConfig struct {
	// Enabled downloads and converts the PDF of papers that arrive without
	// full text. A paper whose text cannot be recovered is analyzed from its
	// abstract.
	Enabled bool `json:"enabled" yaml:"enabled" mapstructure:"enabled"`

	// RawDir caches downloaded PDFs (default "papers/raw").
	RawDir string `json:"raw_dir" yaml:"raw_dir" mapstructure:"raw_dir"`

	// MarkdownDir caches converted text (default "papers/markdown").
	MarkdownDir string `json:"markdown_dir" yaml:"markdown_dir" mapstructure:"markdown_dir"`

	// Runtime selects docker or podman; empty picks whichever is available.
	Runtime string `json:"runtime,omitempty" yaml:"runtime,omitempty" mapstructure:"runtime"`

	// Image is the markitdown container image (default "markitdown:latest").
	Image string `json:"image" yaml:"image" mapstructure:"image"`
}

// Provider names a text-generation API.
type Provider string

const (
	ProviderOpenAI    Provider = "openai"
	ProviderAnthropic Provider = "anthropic"
)

// AIConfig holds settings for the text-generation gateway.
type AIConfig struct {
	// Provider selects the API: openai or anthropic.
	Provider Provider `json:"provider" yaml:"provider" mapstructure:"provider"`

	// Model is the AI model identifier (e.g. "gpt-4-turbo-preview").
	Model string `json:"model" yaml:"model" mapstructure:"model"`

	// APIKey is the authentication key for the AI API.
	APIKey string `json:"api_key,omitempty" yaml:"api_key,omitempty" mapstructure:"api_key"`

	// BaseURL overrides the provider endpoint (OpenAI-compatible servers, tests).
	BaseURL string `json:"base_url,omitempty" yaml:"base_url,omitempty" mapstructure:"base_url"`

	// Temperature is the sampling temperature sent with every request.
	Temperature float64 `json:"temperature" yaml:"temperature" mapstructure:"temperature"`

	// MaxTokens caps the reply length.
	MaxTokens int `json:"max_tokens" yaml:"max_tokens" mapstructure:"max_tokens"`

	// Timeout bounds a single completion call. A timeout fails the stage.
	Timeout time.Duration `json:"timeout" yaml:"timeout" mapstructure:"timeout"`

	// RateLimit is the sustained completion rate per second (0 disables throttling).
	RateLimit float64 `json:"rate_limit" yaml:"rate_limit" mapstructure:"rate_limit"`

	// Burst is the token bucket size for RateLimit.
	Burst int `json:"burst" yaml:"burst" mapstructure:"burst"`
}

// AnalysisConfig holds settings shared by the stage agents.
type AnalysisConfig struct {
	// InterestedFields are the research areas the classifier chooses from.
	InterestedFields []string `json:"interested_fields" yaml:"interested_fields" mapstructure:"interested_fields"`
}

// StoreConfig holds settings for the result store.
type StoreConfig struct {
	// Path is the SQLite database file (default "data/papers.db").
	Path string `json:"path" yaml:"path" mapstructure:"path"`
}

// PipelineConfig holds batch settings for the orchestrator.
type PipelineConfig struct {
	// Concurrency bounds how many papers are analyzed at once (default 4).
	Concurrency int `json:"concurrency" yaml:"concurrency" mapstructure:"concurrency"`

	// LookbackDays is the default fetch window in days (default 7).
	LookbackDays int `json:"lookback_days" yaml:"lookback_days" mapstructure:"lookback_days"`

	// MaxPapers caps papers fetched per run (default 10).
	MaxPapers int `json:"max_papers" yaml:"max_papers" mapstructure:"max_papers"`

	// SkipExisting skips papers that already have a stored analysis.
	SkipExisting bool `json:"skip_existing" yaml:"skip_existing" mapstructure:"skip_existing"`
}

// LoggingConfig holds logger settings.
type LoggingConfig struct {
	// Level is the minimum log level (trace, debug, info, warn, error).
	Level string `json:"level" yaml:"level" mapstructure:"level"`

	// Format is json or console.
	Format string `json:"format" yaml:"format" mapstructure:"format"`

	// Output is stdout or stderr.
	Output string `json:"output" yaml:"output" mapstructure:"output"`
}

// MetricsConfig holds Prometheus settings.
type MetricsConfig struct {
	// Namespace prefixes every metric name.
	Namespace string `json:"namespace" yaml:"namespace" mapstructure:"namespace"`

	// Addr serves /metrics during a run when non-empty (e.g. ":9091").
	Addr string `json:"addr,omitempty" yaml:"addr,omitempty" mapstructure:"addr"`
}

// Config groups all component configurations.
type Config struct {
	Source   SourceConfig   `json:"source" yaml:"source" mapstructure:"source"`
	FullText FullTextConfig `json:"full_text" yaml:"full_text" mapstructure:"full_text"`
	Gateway  AIConfig       `json:"gateway" yaml:"gateway" mapstructure:"gateway"`
	Analysis AnalysisConfig `json:"analysis" yaml:"analysis" mapstructure:"analysis"`
	Store    StoreConfig    `json:"store" yaml:"store" mapstructure:"store"`
	Pipeline PipelineConfig `json:"pipeline" yaml:"pipeline" mapstructure:"pipeline"`
	Logging  LoggingConfig  `json:"logging" yaml:"logging" mapstructure:"logging"`
	Metrics  MetricsConfig  `json:"metrics" yaml:"metrics" mapstructure:"metrics"`
}
