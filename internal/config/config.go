package config

import "time"

// Config holds all application configuration.
// It organizes settings into logical groups for better maintainability.
type Config struct {
	Server   ServerConfig   `mapstructure:"server" validate:"required"`
	Queue    QueueConfig    `mapstructure:"queue" validate:"required"`
	LLM      LLMConfig      `mapstructure:"llm" validate:"required"`
	Chunking ChunkingConfig `mapstructure:"chunking" validate:"required"`
	FastPath FastPathConfig `mapstructure:"fast_path"`
	Webhook  WebhookConfig  `mapstructure:"webhook" validate:"required"`
	Files    FilesConfig    `mapstructure:"files" validate:"required"`
	Worker   WorkerConfig   `mapstructure:"worker" validate:"required"`
}

// ServerConfig contains all server-related configuration settings.
type ServerConfig struct {
	Port            int           `mapstructure:"port" validate:"required,gt=0,lt=65536"`
	LogLevel        string        `mapstructure:"log_level" validate:"required,oneof=debug info warn error"`
	MaxContentSize  int           `mapstructure:"max_content_size" validate:"required,gt=0"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" validate:"required,gt=0"`
}

// QueueConfig selects the queue store backend and tunes job lifecycle timing.
type QueueConfig struct {
	Backend            string        `mapstructure:"backend" validate:"required,oneof=redis postgres"`
	RedisURL           string        `mapstructure:"redis_url" validate:"required_if=Backend redis"`
	DatabaseURL        string        `mapstructure:"database_url" validate:"required_if=Backend postgres"`
	JobTTL             time.Duration `mapstructure:"job_ttl" validate:"required,gt=0"`
	DequeueTimeout     time.Duration `mapstructure:"dequeue_timeout" validate:"required,gte=1s"`
	MaxRetries         int           `mapstructure:"max_retries" validate:"gte=0"`
	StuckJobAge        time.Duration `mapstructure:"stuck_job_age" validate:"required,gt=0"`
	StuckCheckInterval time.Duration `mapstructure:"stuck_check_interval" validate:"required,gt=0"`
	SyncCounterTTL     time.Duration `mapstructure:"sync_counter_ttl" validate:"required,gt=0"`
}

// LLMConfig contains all LLM integration related settings.
type LLMConfig struct {
	Provider         string        `mapstructure:"provider" validate:"required,oneof=gemini openai"`
	GeminiAPIKey     string        `mapstructure:"gemini_api_key" validate:"required_if=Provider gemini"`
	OpenAIAPIKey     string        `mapstructure:"openai_api_key" validate:"required_if=Provider openai"`
	DefaultModel     string        `mapstructure:"default_model" validate:"required"`
	QualityModel     string        `mapstructure:"quality_model" validate:"required"`
	NamingModel      string        `mapstructure:"naming_model" validate:"required"`
	MaxAttempts      int           `mapstructure:"max_attempts" validate:"required,gt=0"`
	BackoffBase      time.Duration `mapstructure:"backoff_base" validate:"required,gt=0"`
	BackoffMax       time.Duration `mapstructure:"backoff_max" validate:"required,gtefield=BackoffBase"`
	ChunkTimeout     time.Duration `mapstructure:"chunk_timeout" validate:"required,gt=0"`
	QualityTimeout   time.Duration `mapstructure:"quality_timeout" validate:"required,gt=0"`
	NamingTimeout    time.Duration `mapstructure:"naming_timeout" validate:"required,gt=0"`
	ReconcileTimeout time.Duration `mapstructure:"reconcile_timeout" validate:"required,gt=0"`
	InterChunkDelay  time.Duration `mapstructure:"inter_chunk_delay" validate:"gte=0"`
	MaxOutputTokens  int           `mapstructure:"max_output_tokens" validate:"required,gt=0,lte=8192"`
}

// ChunkingConfig sizes the fragments content is split into.
type ChunkingConfig struct {
	EngineTokenBudget     int `mapstructure:"engine_token_budget" validate:"required,gt=0"`
	SingleChunkThreshold  int `mapstructure:"single_chunk_threshold" validate:"required,gt=0,ltefield=EngineTokenBudget"`
	SafetyMargin          int `mapstructure:"safety_margin" validate:"gte=0"`
	DefaultPromptOverhead int `mapstructure:"default_prompt_overhead" validate:"gte=0"`
	MinChunkTokens        int `mapstructure:"min_chunk_tokens" validate:"required,gt=0"`
}

// FastPathConfig controls inline fulfillment of small requests.
type FastPathConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	MaxChars int           `mapstructure:"max_chars" validate:"gte=0"`
	Timeout  time.Duration `mapstructure:"timeout" validate:"gte=0"`
}

// WebhookConfig controls outbound completion notifications.
type WebhookConfig struct {
	Timeout     time.Duration `mapstructure:"timeout" validate:"required,gt=0"`
	MaxAttempts int           `mapstructure:"max_attempts" validate:"required,gt=0"`
	BaseBackoff time.Duration `mapstructure:"base_backoff" validate:"gte=0"`
}

// FilesConfig limits file downloads for file-bearing requests.
type FilesConfig struct {
	MaxFileSize     int64         `mapstructure:"max_file_size" validate:"required,gt=0"`
	MaxFiles        int           `mapstructure:"max_files" validate:"required,gt=0"`
	DownloadTimeout time.Duration `mapstructure:"download_timeout" validate:"required,gt=0"`
	AllowedHosts    []string      `mapstructure:"allowed_hosts" validate:"required,min=1"`
}

// WorkerConfig sizes the worker process.
type WorkerConfig struct {
	Count int `mapstructure:"count" validate:"required,gt=0,lte=64"`
}
