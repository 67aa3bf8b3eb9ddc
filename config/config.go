// Package config provides configuration loading and management for uiaudit.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/c360studio/uiaudit/extract"
	"github.com/c360studio/uiaudit/llm"
	"github.com/c360studio/uiaudit/report"
	"github.com/c360studio/uiaudit/source"
)

// Config represents the complete uiaudit configuration
type Config struct {
	// Input is the HTML page, a glob pattern of pages, or a page URL to audit
	Input string `yaml:"input"`
	// Output is the report file, or the report directory when Input matches several pages
	Output string `yaml:"output"`
	// Format is the report format: html, markdown or json
	Format string `yaml:"format"`
	// Template overrides the built-in HTML dashboard template
	Template string `yaml:"template"`
	// Policy is the policy file; empty uses the built-in sample policy
	Policy string `yaml:"policy"`
	// Concurrency bounds in-flight backend requests (1 = sequential)
	Concurrency int `yaml:"concurrency"`

	Extract extract.Options `yaml:"extract"`
	Backend BackendConfig   `yaml:"backend"`
	Retry   llm.RetryConfig `yaml:"retry"`
	Fetch   FetchConfig     `yaml:"fetch"`
	NATS    NATSConfig      `yaml:"nats"`
	Metrics MetricsConfig   `yaml:"metrics"`
	Watch   WatchConfig     `yaml:"watch"`
}

// BackendConfig configures the text-generation backend
type BackendConfig struct {
	// Provider is huggingface, ollama or openai
	Provider string `yaml:"provider"`
	// URL overrides the provider's default base URL
	URL string `yaml:"url"`
	// Model is the model identifier; empty uses the provider's default
	Model string `yaml:"model"`
	// APIKeyEnv names the environment variable holding the API key
	APIKeyEnv string `yaml:"api_key_env"`
	// MaxTokens limits the reply length
	MaxTokens int `yaml:"max_tokens"`
	// Temperature controls randomness; unset leaves the backend default
	Temperature *float64 `yaml:"temperature"`
	// Timeout bounds a single backend request
	Timeout time.Duration `yaml:"timeout"`
}

// FetchConfig configures how URL inputs are downloaded
type FetchConfig struct {
	// Timeout bounds one page download, redirects included
	Timeout time.Duration `yaml:"timeout"`
	// MaxBytes limits the page size
	MaxBytes int64 `yaml:"max_bytes"`
	// UserAgent is sent with every request
	UserAgent string `yaml:"user_agent"`
	// AllowPrivate permits plain HTTP and private network addresses
	AllowPrivate bool `yaml:"allow_private"`
}

// NATSConfig configures optional verdict publication
type NATSConfig struct {
	// URL is the NATS server URL (empty = publishing disabled)
	URL string `yaml:"url"`
	// Subject is the subject prefix for published events
	Subject string `yaml:"subject"`
}

// MetricsConfig configures metrics export
type MetricsConfig struct {
	// Textfile is a path for Prometheus text exposition output (empty = disabled)
	Textfile string `yaml:"textfile"`
}

// WatchConfig configures watch mode
type WatchConfig struct {
	// Debounce is how long to collect changes before re-running
	Debounce time.Duration `yaml:"debounce"`
}

// defaultModels are used when backend.model is empty.
var defaultModels = map[string]string{
	"huggingface": "facebook/blenderbot-400M-distill",
	"ollama":      "llama3.2",
	"openai":      "gpt-3.5-turbo",
}

// Fetcher returns a page fetcher configured from the fetch section.
func (c *Config) Fetcher() *source.Fetcher {
	return source.NewFetcher(
		source.WithFetchTimeout(c.Fetch.Timeout),
		source.WithMaxPageSize(c.Fetch.MaxBytes),
		source.WithUserAgent(c.Fetch.UserAgent),
		source.WithPrivateTargets(c.Fetch.AllowPrivate),
	)
}

// DefaultConfig returns a Config with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Input:       "input_ui.html",
		Output:      "compliance_report.html",
		Format:      string(report.FormatHTML),
		Concurrency: 1,
		Extract:     extract.DefaultOptions(),
		Backend: BackendConfig{
			Provider:  "ollama",
			MaxTokens: 512,
			Timeout:   llm.DefaultTimeout,
		},
		Retry: llm.DefaultRetryConfig(),
		Fetch: FetchConfig{
			Timeout:   source.DefaultFetchTimeout,
			MaxBytes:  source.DefaultMaxPageSize,
			UserAgent: source.DefaultUserAgent,
		},
		NATS: NATSConfig{
			Subject: "uiaudit.verdicts",
		},
		Watch: WatchConfig{
			Debounce: 500 * time.Millisecond,
		},
	}
}

// Validate checks that the configuration is valid
func (c *Config) Validate() error {
	if c.Input == "" {
		return fmt.Errorf("input is required")
	}
	if c.Output == "" {
		return fmt.Errorf("output is required")
	}
	if _, err := report.ParseFormat(c.Format); err != nil {
		return err
	}
	if c.Concurrency < 1 {
		return fmt.Errorf("concurrency must be at least 1")
	}
	if len(c.Extract.Tags) == 0 {
		return fmt.Errorf("extract.tags must not be empty")
	}
	if c.Backend.Provider == "" {
		return fmt.Errorf("backend.provider is required")
	}
	if c.Backend.MaxTokens < 0 {
		return fmt.Errorf("backend.max_tokens must not be negative")
	}
	if t := c.Backend.Temperature; t != nil && (*t < 0 || *t > 2) {
		return fmt.Errorf("backend.temperature must be between 0 and 2")
	}
	if c.Backend.Timeout <= 0 {
		return fmt.Errorf("backend.timeout must be positive")
	}
	if c.Retry.MaxAttempts < 1 {
		return fmt.Errorf("retry.max_attempts must be at least 1")
	}
	if c.Fetch.Timeout <= 0 {
		return fmt.Errorf("fetch.timeout must be positive")
	}
	if c.Fetch.MaxBytes <= 0 {
		return fmt.Errorf("fetch.max_bytes must be positive")
	}
	return nil
}

// ResolvedModel returns the configured model, or the provider's default.
func (b BackendConfig) ResolvedModel() string {
	if b.Model != "" {
		return b.Model
	}
	return defaultModels[b.Provider]
}

// LoadFromFile loads configuration from a YAML file
func LoadFromFile(path string) (*Config, error) {
	config := DefaultConfig()
	if err := config.ApplyFile(path); err != nil {
		return nil, err
	}
	return config, nil
}

// ApplyFile overlays the keys present in a YAML file onto c.
func (c *Config) ApplyFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}

	return nil
}

// SaveToFile saves configuration to a YAML file
func (c *Config) SaveToFile(path string) error {
	// Ensure parent directory exists
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Merge merges another config into this one (other takes precedence for non-zero values)
func (c *Config) Merge(other *Config) {
	if other == nil {
		return
	}

	if other.Input != "" {
		c.Input = other.Input
	}
	if other.Output != "" {
		c.Output = other.Output
	}
	if other.Format != "" {
		c.Format = other.Format
	}
	if other.Template != "" {
		c.Template = other.Template
	}
	if other.Policy != "" {
		c.Policy = other.Policy
	}
	if other.Concurrency != 0 {
		c.Concurrency = other.Concurrency
	}

	// Extract
	if len(other.Extract.Tags) > 0 {
		c.Extract.Tags = other.Extract.Tags
	}
	if other.Extract.LineNumbers {
		c.Extract.LineNumbers = true
	}
	if other.Extract.ParentTag {
		c.Extract.ParentTag = true
	}

	// Backend
	if other.Backend.Provider != "" {
		c.Backend.Provider = other.Backend.Provider
	}
	if other.Backend.URL != "" {
		c.Backend.URL = other.Backend.URL
	}
	if other.Backend.Model != "" {
		c.Backend.Model = other.Backend.Model
	}
	if other.Backend.APIKeyEnv != "" {
		c.Backend.APIKeyEnv = other.Backend.APIKeyEnv
	}
	if other.Backend.MaxTokens != 0 {
		c.Backend.MaxTokens = other.Backend.MaxTokens
	}
	if other.Backend.Temperature != nil {
		c.Backend.Temperature = other.Backend.Temperature
	}
	if other.Backend.Timeout != 0 {
		c.Backend.Timeout = other.Backend.Timeout
	}

	// Retry
	if other.Retry.MaxAttempts != 0 {
		c.Retry.MaxAttempts = other.Retry.MaxAttempts
	}
	if other.Retry.BackoffBase != 0 {
		c.Retry.BackoffBase = other.Retry.BackoffBase
	}
	if other.Retry.BackoffMultiplier != 0 {
		c.Retry.BackoffMultiplier = other.Retry.BackoffMultiplier
	}
	if other.Retry.MaxBackoff != 0 {
		c.Retry.MaxBackoff = other.Retry.MaxBackoff
	}

	// Fetch
	if other.Fetch.Timeout != 0 {
		c.Fetch.Timeout = other.Fetch.Timeout
	}
	if other.Fetch.MaxBytes != 0 {
		c.Fetch.MaxBytes = other.Fetch.MaxBytes
	}
	if other.Fetch.UserAgent != "" {
		c.Fetch.UserAgent = other.Fetch.UserAgent
	}
	if other.Fetch.AllowPrivate {
		c.Fetch.AllowPrivate = true
	}

	// NATS
	if other.NATS.URL != "" {
		c.NATS.URL = other.NATS.URL
	}
	if other.NATS.Subject != "" {
		c.NATS.Subject = other.NATS.Subject
	}

	if other.Metrics.Textfile != "" {
		c.Metrics.Textfile = other.Metrics.Textfile
	}
	if other.Watch.Debounce != 0 {
		c.Watch.Debounce = other.Watch.Debounce
	}
}
