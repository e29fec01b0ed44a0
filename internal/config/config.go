package config

import "time"

// Bus backends.
const (
	BusMemory = "memory"
	BusRedis  = "redis"
)

// Language resolution policies.
const (
	LanguagePerEvent = "per_event"
	LanguageCached   = "cached"
)

// Config holds server configuration values.
type Config struct {
	Addr              string        `mapstructure:"addr" yaml:"addr"`
	ReadHeaderTimeout time.Duration `mapstructure:"read_header_timeout" yaml:"read_header_timeout"`
	ShutdownTimeout   time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout"`
	LogLevel          string        `mapstructure:"log_level" yaml:"log_level"`

	DatabasePath string        `mapstructure:"database_path" yaml:"database_path"`
	JWTSecret    string        `mapstructure:"jwt_secret" yaml:"jwt_secret"`
	JWTIssuer    string        `mapstructure:"jwt_issuer" yaml:"jwt_issuer"`
	JWTAudience  string        `mapstructure:"jwt_audience" yaml:"jwt_audience"`
	JWTTTL       time.Duration `mapstructure:"jwt_ttl" yaml:"jwt_ttl"`

	AllowedOrigins       []string      `mapstructure:"allowed_origins" yaml:"allowed_origins"`
	MaxMessageBytes      int64         `mapstructure:"max_message_bytes" yaml:"max_message_bytes"`
	WriteTimeout         time.Duration `mapstructure:"write_timeout" yaml:"write_timeout"`
	SessionSendBuffer    int           `mapstructure:"session_send_buffer" yaml:"session_send_buffer"`
	MaxMessagesPerMinute int           `mapstructure:"max_messages_per_minute" yaml:"max_messages_per_minute"`

	DefaultLanguage  string        `mapstructure:"default_language" yaml:"default_language"`
	LanguagePolicy   string        `mapstructure:"language_policy" yaml:"language_policy"`
	LanguageCacheTTL time.Duration `mapstructure:"language_cache_ttl" yaml:"language_cache_ttl"`

	BusBackend         string `mapstructure:"bus_backend" yaml:"bus_backend"`
	RedisURL           string `mapstructure:"redis_url" yaml:"redis_url"`
	RedisChannelPrefix string `mapstructure:"redis_channel_prefix" yaml:"redis_channel_prefix"`

	TranslatorURL             string        `mapstructure:"translator_url" yaml:"translator_url"`
	TranslatorAPIKey          string        `mapstructure:"translator_api_key" yaml:"translator_api_key"`
	TranslatorTimeout         time.Duration `mapstructure:"translator_timeout" yaml:"translator_timeout"`
	TranslatorMaxConcurrent   int           `mapstructure:"translator_max_concurrent" yaml:"translator_max_concurrent"`
	TranslatorRatePerSecond   float64       `mapstructure:"translator_rate_per_second" yaml:"translator_rate_per_second"`
	TranslatorBurst           int           `mapstructure:"translator_burst" yaml:"translator_burst"`
	TranslatorBreakerFailures uint32        `mapstructure:"translator_breaker_failures" yaml:"translator_breaker_failures"`
	TranslatorBreakerCooldown time.Duration `mapstructure:"translator_breaker_cooldown" yaml:"translator_breaker_cooldown"`
}

// Default returns configuration with reasonable starter defaults.
func Default() Config {
	return Config{
		Addr:              ":8080",
		ReadHeaderTimeout: 5 * time.Second,
		ShutdownTimeout:   5 * time.Second,
		LogLevel:          "info",

		DatabasePath: "babelchat.db",
		JWTSecret:    "change-me",
		JWTIssuer:    "babelchat",
		JWTAudience:  "babelchat",
		JWTTTL:       24 * time.Hour,

		AllowedOrigins:       []string{"*"},
		MaxMessageBytes:      64 << 10,
		WriteTimeout:         10 * time.Second,
		SessionSendBuffer:    64,
		MaxMessagesPerMinute: 0,

		DefaultLanguage:  "es",
		LanguagePolicy:   LanguagePerEvent,
		LanguageCacheTTL: time.Minute,

		BusBackend:         BusMemory,
		RedisURL:           "redis://localhost:6379/0",
		RedisChannelPrefix: "babelchat:",

		TranslatorURL:             "http://localhost:5000",
		TranslatorTimeout:         10 * time.Second,
		TranslatorMaxConcurrent:   16,
		TranslatorRatePerSecond:   20,
		TranslatorBurst:           40,
		TranslatorBreakerFailures: 5,
		TranslatorBreakerCooldown: 30 * time.Second,
	}
}

// UpdateFrom overwrites non-zero values from other config into receiver.
func (c *Config) UpdateFrom(other Config) {
	if other.Addr != "" {
		c.Addr = other.Addr
	}
	if other.ReadHeaderTimeout != 0 {
		c.ReadHeaderTimeout = other.ReadHeaderTimeout
	}
	if other.ShutdownTimeout != 0 {
		c.ShutdownTimeout = other.ShutdownTimeout
	}
	if other.LogLevel != "" {
		c.LogLevel = other.LogLevel
	}
	if other.BusBackend != "" {
		c.BusBackend = other.BusBackend
	}
	if other.DatabasePath != "" {
		c.DatabasePath = other.DatabasePath
	}
}
