package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// EnvPrefix is the prefix of every environment variable read by Load.
const EnvPrefix = "ANALYZER"

// Load configuration from environment variables and optionally config files.
// Environment variables take precedence over values from config files.
// Returns a populated Config struct or an error if loading/validation fails.
func Load() (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	// Nested keys map to env vars with underscores, e.g. server.port -> ANALYZER_SERVER_PORT.
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

// setDefaults registers a default for every key. AutomaticEnv only overrides
// keys viper already knows about, so secrets get empty defaults too.
func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.log_level", "info")
	v.SetDefault("server.max_content_size", 100000)
	v.SetDefault("server.shutdown_timeout", 15*time.Second)

	v.SetDefault("queue.backend", "redis")
	v.SetDefault("queue.redis_url", "redis://localhost:6379/0")
	v.SetDefault("queue.database_url", "")
	v.SetDefault("queue.job_ttl", 24*time.Hour)
	v.SetDefault("queue.dequeue_timeout", 30*time.Second)
	v.SetDefault("queue.max_retries", 2)
	v.SetDefault("queue.stuck_job_age", 2*time.Hour)
	v.SetDefault("queue.stuck_check_interval", 5*time.Minute)
	v.SetDefault("queue.sync_counter_ttl", 5*time.Minute)

	v.SetDefault("llm.provider", "gemini")
	v.SetDefault("llm.gemini_api_key", "")
	v.SetDefault("llm.openai_api_key", "")
	v.SetDefault("llm.default_model", "gemini-2.0-flash")
	v.SetDefault("llm.quality_model", "gemini-2.0-flash-lite")
	v.SetDefault("llm.naming_model", "gemini-2.0-flash-lite")
	v.SetDefault("llm.max_attempts", 3)
	v.SetDefault("llm.backoff_base", 4*time.Second)
	v.SetDefault("llm.backoff_max", 30*time.Second)
	v.SetDefault("llm.chunk_timeout", 3*time.Minute)
	v.SetDefault("llm.quality_timeout", 15*time.Second)
	v.SetDefault("llm.naming_timeout", 30*time.Second)
	v.SetDefault("llm.reconcile_timeout", 60*time.Second)
	v.SetDefault("llm.inter_chunk_delay", 2*time.Second)
	v.SetDefault("llm.max_output_tokens", 8192)

	v.SetDefault("chunking.engine_token_budget", 190000)
	v.SetDefault("chunking.single_chunk_threshold", 150000)
	v.SetDefault("chunking.safety_margin", 2000)
	v.SetDefault("chunking.default_prompt_overhead", 1000)
	v.SetDefault("chunking.min_chunk_tokens", 1000)

	v.SetDefault("fast_path.enabled", true)
	v.SetDefault("fast_path.max_chars", 20000)
	v.SetDefault("fast_path.timeout", 30*time.Second)

	v.SetDefault("webhook.timeout", 30*time.Second)
	v.SetDefault("webhook.max_attempts", 3)
	v.SetDefault("webhook.base_backoff", 2*time.Second)

	v.SetDefault("files.max_file_size", 30*1024*1024)
	v.SetDefault("files.max_files", 10)
	v.SetDefault("files.download_timeout", 60*time.Second)
	v.SetDefault("files.allowed_hosts", []string{"codahosted.io", "coda.imgix.net"})

	v.SetDefault("worker.count", 1)
}
