package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// EnvConfigFile names the variable holding an optional YAML config path.
const EnvConfigFile = "DOCSUM_CONFIG"

// Load reads the file named by DOCSUM_CONFIG, if any, then the environment.
func Load() (*Config, error) {
	return LoadFile(os.Getenv(EnvConfigFile))
}

// LoadFile reads configuration from path (optional) and the environment.
// Provider credentials are not required here; see ValidateProvider.
// Environment variables use the DOCSUM_ prefix with dots replaced by
// underscores, e.g. DOCSUM_LLM_PROVIDER. Provider keys also honor their
// conventional names such as ANTHROPIC_API_KEY.
func LoadFile(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if path != "" {
		v.SetConfigType("yaml")
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config file %s: %w", path, err)
		}
	}

	v.SetEnvPrefix("DOCSUM")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	bindEnvs := []struct {
		key  string
		envs []string
	}{
		{"llm.anthropic_api_key", []string{"DOCSUM_LLM_ANTHROPIC_API_KEY", "ANTHROPIC_API_KEY"}},
		{"llm.openai_api_key", []string{"DOCSUM_LLM_OPENAI_API_KEY", "OPENAI_API_KEY"}},
		{"llm.gemini_api_key", []string{"DOCSUM_LLM_GEMINI_API_KEY", "GEMINI_API_KEY"}},
		{"server.port", []string{"DOCSUM_SERVER_PORT", "PORT"}},
		{"pathstore.api_key", []string{"DOCSUM_PATHSTORE_API_KEY", "PATHSTORE_API_KEY"}},
	}
	for _, b := range bindEnvs {
		if err := v.BindEnv(append([]string{b.key}, b.envs...)...); err != nil {
			return nil, fmt.Errorf("bind env %s: %w", b.key, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if cfg.LLM.Model == "" {
		cfg.LLM.Model = DefaultModel(cfg.LLM.Provider)
	}

	if err := validator.New().Struct(&cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8090)
	v.SetDefault("server.api_key", "")
	v.SetDefault("server.max_upload_bytes", 50<<20)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "")

	v.SetDefault("llm.provider", "anthropic")
	v.SetDefault("llm.model", "")
	v.SetDefault("llm.anthropic_api_key", "")
	v.SetDefault("llm.openai_api_key", "")
	v.SetDefault("llm.openai_base_url", "")
	v.SetDefault("llm.gemini_api_key", "")
	v.SetDefault("llm.max_tokens", 1024)
	v.SetDefault("llm.temperature", 0.2)
	v.SetDefault("llm.timeout", "120s")
	v.SetDefault("llm.max_retries", 3)
	v.SetDefault("llm.retry_base_delay", "1s")
	v.SetDefault("llm.retry_max_delay", "30s")
	v.SetDefault("llm.stats_window", "1h")

	v.SetDefault("chunking.size", 6000)
	v.SetDefault("chunking.overlap", 0)
	v.SetDefault("chunking.reduce", false)

	v.SetDefault("checkpoint.backend", "file")
	v.SetDefault("checkpoint.dir", defaultCheckpointDir())
	v.SetDefault("checkpoint.dsn", "")

	v.SetDefault("pathstore.url", "")
	v.SetDefault("pathstore.api_key", "")
	v.SetDefault("pathstore.prefix", "checkpoints")

	v.SetDefault("runner.workers", 2)
	v.SetDefault("runner.queue_size", 100)
	v.SetDefault("runner.job_ttl", "1h")
}

// defaultCheckpointDir is under the user cache dir, falling back to the
// working directory.
func defaultCheckpointDir() string {
	if dir, err := os.UserCacheDir(); err == nil {
		return filepath.Join(dir, "docsum", "checkpoints")
	}
	return ".docsum/checkpoints"
}
