package config

import (
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Store     StoreConfig     `yaml:"store" mapstructure:"store"`
	Log       LogConfig       `yaml:"log" mapstructure:"log"`
	Anthropic AnthropicConfig `yaml:"anthropic" mapstructure:"anthropic"`
	Pipeline  PipelineConfig  `yaml:"pipeline" mapstructure:"pipeline"`
	Scorer    ScorerConfig    `yaml:"scorer" mapstructure:"scorer"`
	Fetch     FetchConfig     `yaml:"fetch" mapstructure:"fetch"`
	Retry     RetryConfig     `yaml:"retry" mapstructure:"retry"`
	Circuit   CircuitConfig   `yaml:"circuit" mapstructure:"circuit"`
	DLQ       DLQConfig       `yaml:"dlq" mapstructure:"dlq"`
	Kafka     KafkaConfig     `yaml:"kafka" mapstructure:"kafka"`
	Server    ServerConfig    `yaml:"server" mapstructure:"server"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	MaxConns    int32  `yaml:"max_conns" mapstructure:"max_conns"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// AnthropicConfig holds Anthropic API settings for the AI extractor.
type AnthropicConfig struct {
	Key         string  `yaml:"key" mapstructure:"key"`
	BaseURL     string  `yaml:"base_url" mapstructure:"base_url"`
	Model       string  `yaml:"model" mapstructure:"model"`
	MaxTokens   int64   `yaml:"max_tokens" mapstructure:"max_tokens"`
	TimeoutSecs int     `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	TextWindow  int     `yaml:"text_window" mapstructure:"text_window"`
	Temperature float64 `yaml:"temperature" mapstructure:"temperature"`
}

// PipelineConfig configures extraction, resolution and fan-out.
type PipelineConfig struct {
	Workers             int     `yaml:"workers" mapstructure:"workers"`
	AIEnabled           bool    `yaml:"ai_enabled" mapstructure:"ai_enabled"`
	SimilarityThreshold float64 `yaml:"similarity_threshold" mapstructure:"similarity_threshold"`
	CandidatePrefixLen  int     `yaml:"candidate_prefix_len" mapstructure:"candidate_prefix_len"`
	LexiconPath         string  `yaml:"lexicon_path" mapstructure:"lexicon_path"`
}

// ScorerConfig holds the confidence weights and tier bands.
type ScorerConfig struct {
	SourceCountWeight  float64 `yaml:"source_count_weight" mapstructure:"source_count_weight"`
	CompletenessWeight float64 `yaml:"completeness_weight" mapstructure:"completeness_weight"`
	ReliabilityWeight  float64 `yaml:"reliability_weight" mapstructure:"reliability_weight"`
	RecencyWeight      float64 `yaml:"recency_weight" mapstructure:"recency_weight"`

	SourceSaturation int     `yaml:"source_saturation" mapstructure:"source_saturation"`
	RecencySignal    float64 `yaml:"recency_signal" mapstructure:"recency_signal"`

	OfficialScore     float64 `yaml:"official_score" mapstructure:"official_score"`
	CorroboratedScore float64 `yaml:"corroborated_score" mapstructure:"corroborated_score"`
	SingleSourceScore float64 `yaml:"single_source_score" mapstructure:"single_source_score"`
}

// FetchConfig configures the outbound HTTP fetcher and its sources.
type FetchConfig struct {
	UserAgent   string         `yaml:"user_agent" mapstructure:"user_agent"`
	TimeoutSecs int            `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	RatePerSec  float64        `yaml:"rate_per_sec" mapstructure:"rate_per_sec"`
	Burst       int            `yaml:"burst" mapstructure:"burst"`
	Concurrency int            `yaml:"concurrency" mapstructure:"concurrency"`
	Sources     []SourceConfig `yaml:"sources" mapstructure:"sources"`
}

// SourceConfig describes one configured page or feed.
type SourceConfig struct {
	Name       string `yaml:"name" mapstructure:"name"`
	Kind       string `yaml:"kind" mapstructure:"kind"` // "page" or "rss"
	URL        string `yaml:"url" mapstructure:"url"`
	SourceType string `yaml:"source_type" mapstructure:"source_type"`
	Selector   string `yaml:"selector" mapstructure:"selector"`
	Official   bool   `yaml:"official" mapstructure:"official"`
}

// RetryConfig configures exponential backoff for outbound calls.
type RetryConfig struct {
	MaxAttempts      int `yaml:"max_attempts" mapstructure:"max_attempts"`
	InitialBackoffMs int `yaml:"initial_backoff_ms" mapstructure:"initial_backoff_ms"`
	MaxBackoffMs     int `yaml:"max_backoff_ms" mapstructure:"max_backoff_ms"`
}

// CircuitConfig configures the circuit breaker around the model API.
type CircuitConfig struct {
	FailureThreshold int `yaml:"failure_threshold" mapstructure:"failure_threshold"`
	ResetTimeoutSecs int `yaml:"reset_timeout_secs" mapstructure:"reset_timeout_secs"`
}

// DLQConfig configures the dead letter queue for items that errored.
type DLQConfig struct {
	Enabled    bool `yaml:"enabled" mapstructure:"enabled"`
	MaxRetries int  `yaml:"max_retries" mapstructure:"max_retries"`
}

// KafkaConfig configures accepted-project event publishing.
type KafkaConfig struct {
	Brokers []string `yaml:"brokers" mapstructure:"brokers"`
	Topic   string   `yaml:"topic" mapstructure:"topic"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Port        int      `yaml:"port" mapstructure:"port"`
	CORSOrigins []string `yaml:"cors_origins" mapstructure:"cors_origins"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("REGISTRY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "registry.db")
	v.SetDefault("store.max_conns", 10)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("anthropic.key", "")
	v.SetDefault("anthropic.base_url", "")
	v.SetDefault("anthropic.model", "claude-haiku-4-5-20251001")
	v.SetDefault("anthropic.max_tokens", 1000)
	v.SetDefault("anthropic.timeout_secs", 30)
	v.SetDefault("anthropic.text_window", 3000)
	v.SetDefault("anthropic.temperature", 0.3)
	v.SetDefault("pipeline.workers", 1)
	v.SetDefault("pipeline.ai_enabled", false)
	v.SetDefault("pipeline.similarity_threshold", 0.85)
	v.SetDefault("pipeline.candidate_prefix_len", 20)
	v.SetDefault("scorer.source_count_weight", 0.3)
	v.SetDefault("scorer.completeness_weight", 0.3)
	v.SetDefault("scorer.reliability_weight", 0.2)
	v.SetDefault("scorer.recency_weight", 0.2)
	v.SetDefault("scorer.source_saturation", 5)
	v.SetDefault("scorer.recency_signal", 0.8)
	v.SetDefault("scorer.official_score", 0.92)
	v.SetDefault("scorer.corroborated_score", 0.78)
	v.SetDefault("scorer.single_source_score", 0.62)
	v.SetDefault("fetch.user_agent", "Mozilla/5.0 (compatible; project-registry/1.0)")
	v.SetDefault("fetch.timeout_secs", 30)
	v.SetDefault("fetch.rate_per_sec", 1.0)
	v.SetDefault("fetch.burst", 2)
	v.SetDefault("fetch.concurrency", 5)
	v.SetDefault("retry.max_attempts", 3)
	v.SetDefault("retry.initial_backoff_ms", 500)
	v.SetDefault("retry.max_backoff_ms", 30000)
	v.SetDefault("circuit.failure_threshold", 5)
	v.SetDefault("circuit.reset_timeout_secs", 30)
	v.SetDefault("dlq.enabled", true)
	v.SetDefault("dlq.max_retries", 3)
	v.SetDefault("kafka.topic", "registry.projects")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.cors_origins", []string{"*"})

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// Validate checks the settings required by the given command mode:
// "run", "serve" or "migrate".
func (c *Config) Validate(mode string) error {
	var errs []string

	if c.Store.DatabaseURL == "" {
		errs = append(errs, "store.database_url is required")
	}
	switch c.Store.Driver {
	case "sqlite", "postgres":
	default:
		errs = append(errs, fmt.Sprintf("store.driver must be sqlite or postgres, got %q", c.Store.Driver))
	}

	switch mode {
	case "migrate":
	case "run", "serve":
		if c.Pipeline.Workers < 1 || c.Pipeline.Workers > 50 {
			errs = append(errs, "pipeline.workers must be between 1 and 50")
		}
		if c.Pipeline.SimilarityThreshold <= 0 || c.Pipeline.SimilarityThreshold > 1 {
			errs = append(errs, "pipeline.similarity_threshold must be in (0, 1]")
		}
		if c.Pipeline.AIEnabled && c.Anthropic.Key == "" {
			errs = append(errs, "anthropic.key is required when pipeline.ai_enabled is set")
		}
		if c.Scorer.SourceCountWeight < 0 || c.Scorer.CompletenessWeight < 0 ||
			c.Scorer.ReliabilityWeight < 0 || c.Scorer.RecencyWeight < 0 {
			errs = append(errs, "scorer weights must be >= 0")
		}
		if mode == "serve" && c.Server.Port <= 0 {
			errs = append(errs, "server.port must be > 0")
		}
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	if len(errs) > 0 {
		return eris.Errorf("config: validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
