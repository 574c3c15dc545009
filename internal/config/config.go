// Package config loads and validates rewriter configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Auth      AuthConfig      `mapstructure:"auth"`
	LLM       LLMConfig       `mapstructure:"llm"`
	Rewrite   RewriteConfig   `mapstructure:"rewrite"`
	Allocator AllocatorConfig `mapstructure:"allocator"`
	DB        DBConfig        `mapstructure:"db"`
	Storage   StorageConfig   `mapstructure:"storage"`
	Archive   ArchiveConfig   `mapstructure:"archive"`
	PubSub    PubSubConfig    `mapstructure:"pubsub"`
	Logging   LoggingConfig   `mapstructure:"logging"`
}

// ServerConfig controls HTTP server behavior.
type ServerConfig struct {
	Port int `mapstructure:"port"`
}

// AuthConfig defines API authentication toggles.
type AuthConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	APIKey  string `mapstructure:"api_key"`
}

// LLMConfig configures the generative endpoint and its retry behavior.
type LLMConfig struct {
	Endpoint          string  `mapstructure:"endpoint"`
	APIKey            string  `mapstructure:"api_key"`
	Model             string  `mapstructure:"model"`
	Temperature       float64 `mapstructure:"temperature"`
	MaxTokens         int     `mapstructure:"max_tokens"`
	TopP              float64 `mapstructure:"top_p"`
	TimeoutSeconds    int     `mapstructure:"timeout_seconds"`
	MaxRetries        int     `mapstructure:"max_retries"`
	RetryDelaySeconds int     `mapstructure:"retry_delay_seconds"`
}

// RewriteConfig governs the worker pool and acceptance gate.
type RewriteConfig struct {
	MinScore            int    `mapstructure:"min_score"`
	TickSeconds         int    `mapstructure:"tick_seconds"`
	BurstSize           int    `mapstructure:"burst_size"`
	OffpeakStart        string `mapstructure:"offpeak_start"`
	OffpeakEnd          string `mapstructure:"offpeak_end"`
	StuckTimeoutMinutes int    `mapstructure:"stuck_timeout_minutes"`
	FeedBatch           int    `mapstructure:"feed_batch"`
}

// AllocatorConfig governs the domain quota allocation cycle.
type AllocatorConfig struct {
	CycleSeconds int     `mapstructure:"cycle_seconds"`
	BatchSize    int     `mapstructure:"batch_size"`
	TieEpsilon   float64 `mapstructure:"tie_epsilon"`
}

// DBConfig controls access to the relational database.
type DBConfig struct {
	DSN string `mapstructure:"dsn"`
}

// StorageConfig selects the persistence backend.
type StorageConfig struct {
	Provider string `mapstructure:"provider"`
}

// ArchiveConfig selects the source snapshot archive backend.
type ArchiveConfig struct {
	Provider  string `mapstructure:"provider"`
	GCSBucket string `mapstructure:"gcs_bucket"`
	Prefix    string `mapstructure:"prefix"`
}

// PubSubConfig holds metadata for publish-subscribe notifications.
type PubSubConfig struct {
	ProjectID string `mapstructure:"project_id"`
	TopicName string `mapstructure:"topic_name"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("REWRITER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8081)
	v.SetDefault("llm.temperature", 0.7)
	v.SetDefault("llm.max_tokens", 4096)
	v.SetDefault("llm.top_p", 1.0)
	v.SetDefault("llm.timeout_seconds", 600)
	v.SetDefault("llm.max_retries", 5)
	v.SetDefault("llm.retry_delay_seconds", 5)
	v.SetDefault("rewrite.min_score", 30)
	v.SetDefault("rewrite.tick_seconds", 30)
	v.SetDefault("rewrite.burst_size", 6)
	v.SetDefault("rewrite.offpeak_start", "00:30")
	v.SetDefault("rewrite.offpeak_end", "08:30")
	v.SetDefault("rewrite.stuck_timeout_minutes", 45)
	v.SetDefault("rewrite.feed_batch", 24)
	v.SetDefault("allocator.cycle_seconds", 300)
	v.SetDefault("allocator.batch_size", 200)
	v.SetDefault("allocator.tie_epsilon", 0.1)
	v.SetDefault("storage.provider", "memory")
	v.SetDefault("archive.provider", "noop")
	v.SetDefault("archive.prefix", "sources")
	v.SetDefault("logging.development", true)
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be > 0")
	}
	if c.LLM.TimeoutSeconds <= 0 {
		return fmt.Errorf("llm.timeout_seconds must be > 0")
	}
	if c.LLM.MaxRetries < 0 {
		return fmt.Errorf("llm.max_retries must be >= 0")
	}
	if c.Rewrite.MinScore < 0 || c.Rewrite.MinScore > 100 {
		return fmt.Errorf("rewrite.min_score must be between 0 and 100")
	}
	if c.Rewrite.BurstSize <= 0 {
		return fmt.Errorf("rewrite.burst_size must be > 0")
	}
	if c.Allocator.TieEpsilon < 0 || c.Allocator.TieEpsilon > 1 {
		return fmt.Errorf("allocator.tie_epsilon must be between 0 and 1")
	}
	if c.Storage.Provider != "memory" && c.Storage.Provider != "postgres" {
		return fmt.Errorf("unknown storage provider: %s", c.Storage.Provider)
	}
	if c.Storage.Provider == "postgres" && c.DB.DSN == "" {
		return fmt.Errorf("db.dsn must be set when storage.provider is postgres")
	}
	if c.Archive.Provider != "noop" && c.Archive.Provider != "gcs" {
		return fmt.Errorf("unknown archive provider: %s", c.Archive.Provider)
	}
	if c.Archive.Provider == "gcs" && c.Archive.GCSBucket == "" {
		return fmt.Errorf("archive.gcs_bucket must be set when archive.provider is gcs")
	}
	if c.Auth.Enabled && c.Auth.APIKey == "" {
		return fmt.Errorf("auth.api_key must be set when auth is enabled")
	}
	return nil
}

// LLMTimeout converts the call timeout config to a duration.
func (c Config) LLMTimeout() time.Duration {
	return time.Duration(c.LLM.TimeoutSeconds) * time.Second
}

// RetryDelay converts the retry delay config to a duration.
func (c Config) RetryDelay() time.Duration {
	return time.Duration(c.LLM.RetryDelaySeconds) * time.Second
}

// TickInterval converts the scheduler tick config to a duration.
func (c Config) TickInterval() time.Duration {
	return time.Duration(c.Rewrite.TickSeconds) * time.Second
}

// StuckTimeout converts the watchdog config to a duration.
func (c Config) StuckTimeout() time.Duration {
	return time.Duration(c.Rewrite.StuckTimeoutMinutes) * time.Minute
}

// CycleInterval converts the allocation cycle config to a duration.
func (c Config) CycleInterval() time.Duration {
	return time.Duration(c.Allocator.CycleSeconds) * time.Second
}
