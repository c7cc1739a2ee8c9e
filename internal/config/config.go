package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// MinSecretKeyLength is the shortest signing key the gateway accepts.
const MinSecretKeyLength = 32

const redacted = "[REDACTED]"

type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Gateway   GatewayConfig   `mapstructure:"gateway"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Auth      AuthConfig      `mapstructure:"auth"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
	Logging   LoggingConfig   `mapstructure:"logging"`
}

type ServerConfig struct {
	Port    int           `mapstructure:"port"`
	Timeout time.Duration `mapstructure:"timeout"`
}

type GatewayConfig struct {
	SecretKey          string        `mapstructure:"secret_key"`
	ProductID          string        `mapstructure:"product_id"`
	ProxyURL           string        `mapstructure:"proxy_url"`
	AfterPurchaseURL   string        `mapstructure:"after_purchase_url"`
	PublicURL          string        `mapstructure:"public_url"`
	TokenExpiryMinutes int           `mapstructure:"token_expiry_minutes"`
	MaxBodyBytes       int64         `mapstructure:"max_body_bytes"`
	DispatchTimeout    time.Duration `mapstructure:"dispatch_timeout"`
}

type RedisConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// Addr returns host:port for the redis client.
func (c RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

type AuthConfig struct {
	MasterToken string `mapstructure:"master_token"`
	JWTSecret   string `mapstructure:"jwt_secret"`
}

type RateLimitConfig struct {
	BucketSize    int `mapstructure:"bucket_size"`
	RefillRate    int `mapstructure:"refill_rate"`
	WindowSeconds int `mapstructure:"window_seconds"`
}

type LoggingConfig struct {
	Level      string `mapstructure:"level"`
	FilePath   string `mapstructure:"file_path"`
	MaxSize    int    `mapstructure:"max_size"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAge     int    `mapstructure:"max_age"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.timeout", "30s")
	v.SetDefault("gateway.secret_key", "")
	v.SetDefault("gateway.product_id", "")
	v.SetDefault("gateway.proxy_url", "")
	v.SetDefault("gateway.after_purchase_url", "")
	v.SetDefault("gateway.public_url", "")
	v.SetDefault("gateway.token_expiry_minutes", 60)
	v.SetDefault("gateway.max_body_bytes", 1<<20)
	v.SetDefault("gateway.dispatch_timeout", "25s")
	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("auth.master_token", "")
	v.SetDefault("auth.jwt_secret", "")
	v.SetDefault("rate_limit.bucket_size", 100)
	v.SetDefault("rate_limit.refill_rate", 10)
	v.SetDefault("rate_limit.window_seconds", 1)
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.file_path", "logs/paygate.log")
	v.SetDefault("logging.max_size", 100)
	v.SetDefault("logging.max_backups", 3)
	v.SetDefault("logging.max_age", 28)
}

// Load reads config.yaml from the working directory or ./config.
func Load() (*Config, error) {
	return LoadWithPath("")
}

// LoadWithPath reads the given YAML file, falling back to the default search
// paths when path is empty. A missing file leaves defaults in place. Environment variables prefixed PAYGATE_ override
// file values, e.g. PAYGATE_GATEWAY_SECRET_KEY.
func LoadWithPath(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("paygate")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !(path != "" && errors.Is(err, fs.ErrNotExist)) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	config := &Config{}
	if err := v.Unmarshal(config); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}
	return config, nil
}

// Validate checks the settings the gateway cannot start without.
func (c *Config) Validate() error {
	if len(c.Gateway.SecretKey) < MinSecretKeyLength {
		return fmt.Errorf("gateway.secret_key must be at least %d characters", MinSecretKeyLength)
	}
	if c.Gateway.TokenExpiryMinutes < 0 {
		return errors.New("gateway.token_expiry_minutes must not be negative")
	}
	if c.Gateway.MaxBodyBytes <= 0 {
		return errors.New("gateway.max_body_bytes must be positive")
	}
	for key, raw := range map[string]string{
		"gateway.proxy_url":          c.Gateway.ProxyURL,
		"gateway.public_url":         c.Gateway.PublicURL,
		"gateway.after_purchase_url": c.Gateway.AfterPurchaseURL,
	} {
		if raw == "" {
			continue
		}
		u, err := url.Parse(raw)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return fmt.Errorf("%s must be an absolute url", key)
		}
	}
	if c.Server.Port <= 0 {
		return errors.New("server.port must be positive")
	}
	return nil
}

// Redacted returns a copy safe to log.
func (c Config) Redacted() Config {
	if c.Gateway.SecretKey != "" {
		c.Gateway.SecretKey = redacted
	}
	if c.Auth.MasterToken != "" {
		c.Auth.MasterToken = redacted
	}
	if c.Auth.JWTSecret != "" {
		c.Auth.JWTSecret = redacted
	}
	if c.Redis.Password != "" {
		c.Redis.Password = redacted
	}
	return c
}
