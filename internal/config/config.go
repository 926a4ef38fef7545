package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/deepgram/aiproxy/internal/logger"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

const (
	defaultConfigName = "aiproxy"
	redacted          = "[REDACTED]"
)

type Config struct {
	Endpoint  EndpointConfig  `mapstructure:"endpoint" yaml:"endpoint"`
	Gateway   GatewayConfig   `mapstructure:"gateway" yaml:"gateway"`
	RateLimit RateLimitConfig `mapstructure:"ratelimit" yaml:"ratelimit"`
	Redis     RedisConfig     `mapstructure:"redis" yaml:"redis"`
	Log       LogConfig       `mapstructure:"log" yaml:"log"`
}

// EndpointConfig points at the inference endpoint. Persona is forwarded as is.
type EndpointConfig struct {
	URL     string `mapstructure:"url" yaml:"url" validate:"required,url"`
	Persona string `mapstructure:"persona" yaml:"persona"`
}

// GatewayConfig configures the relay gateway. TrustForwardedFor keys rate
// limits on X-Forwarded-For and must only be set behind a trusted proxy.
type GatewayConfig struct {
	Addr              string        `mapstructure:"addr" yaml:"addr" validate:"required"`
	AllowedOrigins    []string      `mapstructure:"allowed_origins" yaml:"allowed_origins"`
	ShutdownTimeout   time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout" validate:"gte=0"`
	TrustForwardedFor bool          `mapstructure:"trust_forwarded_for" yaml:"trust_forwarded_for"`
}

type RateLimitConfig struct {
	Enabled bool          `mapstructure:"enabled" yaml:"enabled"`
	MaxHits int           `mapstructure:"max_hits" yaml:"max_hits" validate:"gte=1"`
	Window  time.Duration `mapstructure:"window" yaml:"window" validate:"gt=0"`
}

// RedisConfig is optional. URL is a host:port address; an empty URL keeps the
// rate limiter in memory.
type RedisConfig struct {
	URL      string `mapstructure:"url" yaml:"url" validate:"omitempty,hostname_port"`
	Password string `mapstructure:"password" yaml:"password"`
}

type LogConfig struct {
	Level  string `mapstructure:"level" yaml:"level" validate:"omitempty,oneof=trace debug info warn warning error"`
	Pretty bool   `mapstructure:"pretty" yaml:"pretty"`
}

// envVarConfig maps one config key onto an environment variable.
type envVarConfig struct {
	key      string
	envVar   string
	isSecret bool
}

var envVars = []envVarConfig{
	{key: "endpoint.url", envVar: "AIPROXY_ENDPOINT_URL"},
	{key: "endpoint.persona", envVar: "AIPROXY_PERSONA"},
	{key: "gateway.addr", envVar: "GATEWAY_ADDR"},
	{key: "gateway.trust_forwarded_for", envVar: "GATEWAY_TRUST_FORWARDED_FOR"},
	{key: "ratelimit.enabled", envVar: "RATELIMIT_ENABLED"},
	{key: "ratelimit.max_hits", envVar: "RATELIMIT_RELAY"},
	{key: "redis.url", envVar: "REDIS_URL"},
	{key: "redis.password", envVar: "REDIS_PASSWORD", isSecret: true},
	{key: "log.level", envVar: "LOG_LEVEL"},
	{key: "log.pretty", envVar: "LOG_PRETTY"},
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("endpoint.persona", "")
	v.SetDefault("gateway.addr", ":8080")
	v.SetDefault("gateway.allowed_origins", []string{})
	v.SetDefault("gateway.shutdown_timeout", 10*time.Second)
	v.SetDefault("gateway.trust_forwarded_for", false)
	v.SetDefault("ratelimit.enabled", false)
	v.SetDefault("ratelimit.max_hits", 120)
	v.SetDefault("ratelimit.window", time.Minute)
	v.SetDefault("redis.url", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.pretty", false)
}

// Load merges defaults, an optional YAML config file and the environment, in
// that order of precedence from lowest to highest. An empty path looks for
// aiproxy.yaml in the working directory and tolerates its absence; an
// explicit path has to exist. A .env file in the working directory is loaded
// into the environment first when present.
func Load(path string) (*Config, error) {
	log := logger.For(logger.CONFIG)

	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Warn().Err(err).Msg("Failed to load .env file")
	}

	v := viper.New()
	setDefaults(v)

	for _, env := range envVars {
		if err := v.BindEnv(env.key, env.envVar); err != nil {
			return nil, fmt.Errorf("error binding %s: %w", env.envVar, err)
		}
	}

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("error reading config file %s: %w", path, err)
		}
		log.Info().Str("file", path).Msg("Config file loaded")
	} else {
		v.SetConfigName(defaultConfigName)
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("error reading config file: %w", err)
			}
			log.Debug().Msg("No config file found, using defaults and environment")
		} else {
			log.Info().Str("file", v.ConfigFileUsed()).Msg("Config file loaded")
		}
	}

	for _, env := range envVars {
		if _, ok := os.LookupEnv(env.envVar); ok {
			event := log.Debug().Str("key", env.key).Str("env", env.envVar)
			if !env.isSecret {
				event = event.Str("value", os.Getenv(env.envVar))
			}
			event.Msg("Config value taken from environment")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}
	cfg.Log.Level = strings.ToLower(strings.TrimSpace(cfg.Log.Level))

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks the struct tags of the whole configuration.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("config validation error: %w", err)
	}
	return nil
}

// RedisEnabled reports whether a Redis address is configured.
func (c *Config) RedisEnabled() bool {
	return c.Redis.URL != ""
}

// YAML renders the configuration with secrets replaced by a marker.
func (c *Config) YAML() ([]byte, error) {
	out := *c
	out.Gateway.AllowedOrigins = append([]string(nil), c.Gateway.AllowedOrigins...)
	if out.Redis.Password != "" {
		out.Redis.Password = redacted
	}

	data, err := yaml.Marshal(out)
	if err != nil {
		return nil, fmt.Errorf("error converting to YAML: %w", err)
	}
	return data, nil
}
