package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/vovakirdan/babelchat-server/internal/translate"
)

const (
	envConfigDefaultPath = "BABELCHAT_CONFIG_DEFAULT_PATH"
	defaultConfigName    = "config.yaml"
)

// Load builds configuration from defaults, optional config file, env vars, and returns the resolved path.
// Precedence: defaults < config file < env vars < caller overrides.
func Load(logger *zerolog.Logger, explicitPath string) (Config, string, error) {
	cfg := Default()

	v := viper.New()
	v.SetConfigType("yaml")
	setDefaults(v, cfg)

	v.SetEnvPrefix("BABELCHAT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	configPath := resolveConfigPath(explicitPath)
	v.SetConfigFile(configPath)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) || errors.Is(err, os.ErrNotExist) {
			if writeErr := writeDefaultConfig(configPath, cfg); writeErr != nil && logger != nil {
				logger.Warn().Err(writeErr).Str("path", configPath).Msg("failed to write default config")
			} else if logger != nil {
				logger.Info().Str("path", configPath).Msg("created default config")
			}
			// try reading again in case it was just written
			if readErr := v.ReadInConfig(); readErr != nil && logger != nil {
				logger.Warn().Err(readErr).Str("path", configPath).Msg("failed to read config after writing default")
			}
		} else {
			return cfg, configPath, fmt.Errorf("read config: %w", err)
		}
	}

	if err := v.Unmarshal(&cfg); err != nil {
		return cfg, configPath, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return cfg, configPath, err
	}

	return cfg, configPath, nil
}

// Validate rejects combinations the server cannot start with.
func (c Config) Validate() error {
	switch c.BusBackend {
	case BusMemory:
	case BusRedis:
		if c.RedisURL == "" {
			return errors.New("config: redis_url is required for the redis bus")
		}
	default:
		return fmt.Errorf("config: unknown bus_backend %q", c.BusBackend)
	}
	switch c.LanguagePolicy {
	case LanguagePerEvent, LanguageCached:
	default:
		return fmt.Errorf("config: unknown language_policy %q", c.LanguagePolicy)
	}
	if c.DefaultLanguage == "" {
		return errors.New("config: default_language must not be empty")
	}
	if !translate.IsSupported(c.DefaultLanguage) {
		return fmt.Errorf("config: unsupported default_language %q", c.DefaultLanguage)
	}
	if c.JWTSecret == "" {
		return errors.New("config: jwt_secret must not be empty")
	}
	return nil
}

// setDefaults registers every key so AutomaticEnv can override it.
func setDefaults(v *viper.Viper, cfg Config) {
	v.SetDefault("addr", cfg.Addr)
	v.SetDefault("read_header_timeout", cfg.ReadHeaderTimeout)
	v.SetDefault("shutdown_timeout", cfg.ShutdownTimeout)
	v.SetDefault("log_level", cfg.LogLevel)
	v.SetDefault("database_path", cfg.DatabasePath)
	v.SetDefault("jwt_secret", cfg.JWTSecret)
	v.SetDefault("jwt_issuer", cfg.JWTIssuer)
	v.SetDefault("jwt_audience", cfg.JWTAudience)
	v.SetDefault("jwt_ttl", cfg.JWTTTL)
	v.SetDefault("allowed_origins", cfg.AllowedOrigins)
	v.SetDefault("max_message_bytes", cfg.MaxMessageBytes)
	v.SetDefault("write_timeout", cfg.WriteTimeout)
	v.SetDefault("session_send_buffer", cfg.SessionSendBuffer)
	v.SetDefault("max_messages_per_minute", cfg.MaxMessagesPerMinute)
	v.SetDefault("default_language", cfg.DefaultLanguage)
	v.SetDefault("language_policy", cfg.LanguagePolicy)
	v.SetDefault("language_cache_ttl", cfg.LanguageCacheTTL)
	v.SetDefault("bus_backend", cfg.BusBackend)
	v.SetDefault("redis_url", cfg.RedisURL)
	v.SetDefault("redis_channel_prefix", cfg.RedisChannelPrefix)
	v.SetDefault("translator_url", cfg.TranslatorURL)
	v.SetDefault("translator_api_key", cfg.TranslatorAPIKey)
	v.SetDefault("translator_timeout", cfg.TranslatorTimeout)
	v.SetDefault("translator_max_concurrent", cfg.TranslatorMaxConcurrent)
	v.SetDefault("translator_rate_per_second", cfg.TranslatorRatePerSecond)
	v.SetDefault("translator_burst", cfg.TranslatorBurst)
	v.SetDefault("translator_breaker_failures", cfg.TranslatorBreakerFailures)
	v.SetDefault("translator_breaker_cooldown", cfg.TranslatorBreakerCooldown)
}

func resolveConfigPath(explicitPath string) string {
	if explicitPath != "" {
		return explicitPath
	}

	if base := os.Getenv(envConfigDefaultPath); base != "" {
		if err := os.MkdirAll(base, 0o755); err == nil {
			return filepath.Join(base, defaultConfigName)
		}
	}

	cwd, err := os.Getwd()
	if err != nil {
		return defaultConfigName
	}
	return filepath.Join(cwd, defaultConfigName)
}

func writeDefaultConfig(path string, cfg Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}
