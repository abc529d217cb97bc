// Package config loads docsum settings from defaults, an optional YAML file
// and the environment.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/dgallion1/docsum/internal/checkpoint"
	"github.com/dgallion1/docsum/internal/chunker"
	"github.com/dgallion1/docsum/internal/completion"
	"github.com/dgallion1/docsum/internal/pipeline"
)

type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Log        LogConfig        `mapstructure:"log"`
	LLM        LLMConfig        `mapstructure:"llm"`
	Chunking   ChunkingConfig   `mapstructure:"chunking"`
	Checkpoint CheckpointConfig `mapstructure:"checkpoint"`
	Pathstore  PathstoreConfig  `mapstructure:"pathstore"`
	Runner     RunnerConfig     `mapstructure:"runner"`
}

type ServerConfig struct {
	Port           int    `mapstructure:"port" validate:"gt=0,lt=65536"`
	APIKey         string `mapstructure:"api_key"`
	MaxUploadBytes int64  `mapstructure:"max_upload_bytes" validate:"gt=0"`
}

type LogConfig struct {
	Level  string `mapstructure:"level" validate:"oneof=debug info warn error"`
	Format string `mapstructure:"format" validate:"omitempty,oneof=json text"`
}

type LLMConfig struct {
	Provider        string        `mapstructure:"provider" validate:"oneof=anthropic openai gemini echo"`
	Model           string        `mapstructure:"model"`
	AnthropicAPIKey string        `mapstructure:"anthropic_api_key"`
	OpenAIAPIKey    string        `mapstructure:"openai_api_key"`
	OpenAIBaseURL   string        `mapstructure:"openai_base_url" validate:"omitempty,url"`
	GeminiAPIKey    string        `mapstructure:"gemini_api_key"`
	MaxTokens       int           `mapstructure:"max_tokens" validate:"gt=0"`
	Temperature     float64       `mapstructure:"temperature" validate:"gte=0,lte=2"`
	Timeout         time.Duration `mapstructure:"timeout" validate:"gte=0"`
	MaxRetries      int           `mapstructure:"max_retries" validate:"gte=0,lte=10"`
	RetryBaseDelay  time.Duration `mapstructure:"retry_base_delay" validate:"gte=0"`
	RetryMaxDelay   time.Duration `mapstructure:"retry_max_delay" validate:"gte=0"`
	StatsWindow     time.Duration `mapstructure:"stats_window" validate:"gte=0"`
}

type ChunkingConfig struct {
	Size    int  `mapstructure:"size" validate:"gt=0"`
	Overlap int  `mapstructure:"overlap" validate:"gte=0"`
	Reduce  bool `mapstructure:"reduce"`
}

type CheckpointConfig struct {
	Backend string `mapstructure:"backend" validate:"oneof=file sqlite postgres pathstore memory"`
	Dir     string `mapstructure:"dir"`
	DSN     string `mapstructure:"dsn"`
}

type PathstoreConfig struct {
	URL    string `mapstructure:"url" validate:"omitempty,url"`
	APIKey string `mapstructure:"api_key"`
	Prefix string `mapstructure:"prefix"`
}

type RunnerConfig struct {
	Workers   int           `mapstructure:"workers" validate:"gt=0"`
	QueueSize int           `mapstructure:"queue_size" validate:"gt=0"`
	JobTTL    time.Duration `mapstructure:"job_ttl" validate:"gt=0"`
}

// defaultModels is used when llm.model is not set.
var defaultModels = map[string]string{
	completion.ProviderAnthropic: "claude-sonnet-4-5-20250929",
	completion.ProviderOpenAI:    "gpt-4o-mini",
	completion.ProviderGemini:    "gemini-2.0-flash",
	completion.ProviderEcho:      "echo",
}

// DefaultModel returns the model used for provider when none is configured.
func DefaultModel(provider string) string {
	return defaultModels[provider]
}

// Validate checks rules that span fields.
func (c *Config) Validate() error {
	if err := c.ChunkConfig().Validate(); err != nil {
		return err
	}
	switch c.Checkpoint.Backend {
	case checkpoint.BackendFile:
		if c.Checkpoint.Dir == "" {
			return errors.New("checkpoint.dir is required for the file backend")
		}
	case checkpoint.BackendSQLite, checkpoint.BackendPostgres:
		if c.Checkpoint.DSN == "" {
			return fmt.Errorf("checkpoint.dsn is required for the %s backend", c.Checkpoint.Backend)
		}
	case checkpoint.BackendPathstore:
		if c.Pathstore.URL == "" {
			return errors.New("pathstore.url is required for the pathstore backend")
		}
	}
	return nil
}

// ValidateProvider checks that the selected provider can be called.
func (c *Config) ValidateProvider() error {
	if c.LLM.Provider != completion.ProviderEcho && c.APIKey() == "" {
		return fmt.Errorf("llm.%s_api_key is required for provider %q", c.LLM.Provider, c.LLM.Provider)
	}
	return nil
}

// ValidateServer adds the rules that only apply to the HTTP server.
func (c *Config) ValidateServer() error {
	if err := c.ValidateProvider(); err != nil {
		return err
	}
	if c.Server.APIKey == "" {
		return errors.New("server.api_key is required")
	}
	return nil
}

// APIKey returns the key for the selected provider.
func (c *Config) APIKey() string {
	switch c.LLM.Provider {
	case completion.ProviderAnthropic:
		return c.LLM.AnthropicAPIKey
	case completion.ProviderOpenAI:
		return c.LLM.OpenAIAPIKey
	case completion.ProviderGemini:
		return c.LLM.GeminiAPIKey
	}
	return ""
}

func (c *Config) ProviderConfig() completion.ProviderConfig {
	return completion.ProviderConfig{
		Provider:    c.LLM.Provider,
		APIKey:      c.APIKey(),
		BaseURL:     c.LLM.OpenAIBaseURL,
		Model:       c.LLM.Model,
		MaxTokens:   c.LLM.MaxTokens,
		Temperature: c.LLM.Temperature,
		Timeout:     c.LLM.Timeout,
	}
}

func (c *Config) RetryPolicy() completion.RetryPolicy {
	return completion.RetryPolicy{
		MaxRetries: c.LLM.MaxRetries,
		BaseDelay:  c.LLM.RetryBaseDelay,
		MaxDelay:   c.LLM.RetryMaxDelay,
	}
}

func (c *Config) ChunkConfig() chunker.Config {
	return chunker.Config{ChunkSize: c.Chunking.Size, ChunkOverlap: c.Chunking.Overlap}
}

func (c *Config) CheckpointOptions(log *slog.Logger) checkpoint.Options {
	return checkpoint.Options{
		Backend:         c.Checkpoint.Backend,
		Dir:             c.Checkpoint.Dir,
		DSN:             c.Checkpoint.DSN,
		PathstoreURL:    c.Pathstore.URL,
		PathstoreAPIKey: c.Pathstore.APIKey,
		PathstorePrefix: c.Pathstore.Prefix,
		Logger:          log,
	}
}

func (c *Config) RunnerConfig() pipeline.RunnerConfig {
	return pipeline.RunnerConfig{
		Workers:   c.Runner.Workers,
		QueueSize: c.Runner.QueueSize,
		JobTTL:    c.Runner.JobTTL,
	}
}

// SlogLevel maps log.level onto slog.
func (c *Config) SlogLevel() slog.Level {
	switch strings.ToLower(c.Log.Level) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}
	return slog.LevelInfo
}
