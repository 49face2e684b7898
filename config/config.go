package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the application
type Config struct {
	Server    ServerConfig
	ShopFeed  ShopFeedConfig
	Validator ValidatorConfig
	Judge     JudgeConfig
	Cache     CacheConfig
	RateLimit RateLimitConfig
}

// ServerConfig holds server-related configuration
type ServerConfig struct {
	Port           string   `mapstructure:"port"`
	Environment    string   `mapstructure:"environment"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// ShopFeedConfig holds shopping feed API configuration
type ShopFeedConfig struct {
	APIKey   string `mapstructure:"api_key"`
	BaseURL  string `mapstructure:"base_url"`
	MockMode bool   `mapstructure:"mock_mode"`
}

// ValidatorConfig holds link validator tunables. Everything the pipeline
// does on the wire is bounded by values here, never hardcoded.
type ValidatorConfig struct {
	FetchTimeout     time.Duration `mapstructure:"fetch_timeout"`
	MaxBodyBytes     int64         `mapstructure:"max_body_bytes"`
	TTLValid         time.Duration `mapstructure:"ttl_valid"`
	TTLInvalid       time.Duration `mapstructure:"ttl_invalid"`
	TTLUnknown       time.Duration `mapstructure:"ttl_unknown"`
	BackoffThreshold int           `mapstructure:"backoff_threshold"`
	BackoffCooldown  time.Duration `mapstructure:"backoff_cooldown"`
	EnableVision     bool          `mapstructure:"enable_vision"`
	EnableTextJudge  bool          `mapstructure:"enable_text_judge"`
}

// JudgeConfig holds the external yes/no judge configuration
type JudgeConfig struct {
	APIKey      string        `mapstructure:"api_key"`
	BaseURL     string        `mapstructure:"base_url"`
	TextModel   string        `mapstructure:"text_model"`
	VisionModel string        `mapstructure:"vision_model"`
	Timeout     time.Duration `mapstructure:"timeout"`
}

// CacheConfig holds cache-related configuration
type CacheConfig struct {
	Type     string `mapstructure:"type"` // "memory" or "redis"
	RedisURL string `mapstructure:"redis_url"`
}

// RateLimitConfig holds rate limiting configuration
type RateLimitConfig struct {
	PerIP    int     `mapstructure:"per_ip"`
	Outbound float64 `mapstructure:"outbound"` // validator fetches per second
}

// Load loads configuration from environment variables and config files
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("/etc/cartcompass/")

	v.SetEnvPrefix("CARTCOMPASS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	// Config file is optional; env vars and defaults cover everything
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	if err := validate(&config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.environment", "development")
	v.SetDefault("server.allowed_origins", []string{"http://localhost:3000"})

	v.SetDefault("shopfeed.api_key", "")
	v.SetDefault("shopfeed.base_url", "https://serpapi.com")
	v.SetDefault("shopfeed.mock_mode", false)

	v.SetDefault("validator.fetch_timeout", "8s")
	v.SetDefault("validator.max_body_bytes", 50000)
	v.SetDefault("validator.ttl_valid", "6h")
	v.SetDefault("validator.ttl_invalid", "1h")
	v.SetDefault("validator.ttl_unknown", "15m")
	v.SetDefault("validator.backoff_threshold", 3)
	v.SetDefault("validator.backoff_cooldown", "1h")
	v.SetDefault("validator.enable_vision", false)
	v.SetDefault("validator.enable_text_judge", false)

	v.SetDefault("judge.api_key", "")
	v.SetDefault("judge.base_url", "https://api.openai.com/v1")
	v.SetDefault("judge.text_model", "gpt-4o-mini")
	v.SetDefault("judge.vision_model", "gpt-4o")
	v.SetDefault("judge.timeout", "20s")

	v.SetDefault("cache.type", "memory")
	v.SetDefault("cache.redis_url", "")

	v.SetDefault("ratelimit.per_ip", 100)
	v.SetDefault("ratelimit.outbound", 2.0)
}

// validate validates the configuration
func validate(config *Config) error {
	if config.Cache.Type != "memory" && config.Cache.Type != "redis" {
		return fmt.Errorf("cache type must be 'memory' or 'redis', got: %s", config.Cache.Type)
	}

	if config.Cache.Type == "redis" && config.Cache.RedisURL == "" {
		return fmt.Errorf("Redis URL is required when cache type is 'redis'")
	}

	if !config.ShopFeed.MockMode && config.ShopFeed.APIKey == "" {
		return fmt.Errorf("shop feed API key is required outside mock mode (set CARTCOMPASS_SHOPFEED_API_KEY or shopfeed.mock_mode)")
	}

	if (config.Validator.EnableVision || config.Validator.EnableTextJudge) && config.Judge.APIKey == "" {
		return fmt.Errorf("judge API key is required when a judge stage is enabled")
	}

	if config.Validator.MaxBodyBytes <= 0 {
		return fmt.Errorf("validator max_body_bytes must be positive")
	}

	return nil
}
