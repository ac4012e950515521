package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/jwalitptl/ed-intake/pkg/security"
)

type Config struct {
	API       APIConfig       `mapstructure:"api"`
	Session   SessionConfig   `mapstructure:"session"`
	Admission AdmissionConfig `mapstructure:"admission"`
	Log       LogConfig       `mapstructure:"log"`
	Metrics   MetricsConfig   `mapstructure:"metrics"`
	Events    EventsConfig    `mapstructure:"events"`
}

type APIConfig struct {
	BaseURL string        `mapstructure:"base_url"`
	Timeout time.Duration `mapstructure:"timeout"`
}

type SessionConfig struct {
	// Backend is one of file, redis or memory.
	Backend   string `mapstructure:"backend"`
	File      string `mapstructure:"file"`
	RedisURL  string `mapstructure:"redis_url"`
	Namespace string `mapstructure:"namespace"`
	// EncryptionKey is a hex AES key sealing the session file. Empty leaves
	// the file in plain JSON.
	EncryptionKey string `mapstructure:"encryption_key"`
}

type AdmissionConfig struct {
	MinIdentityLength int           `mapstructure:"min_identity_length"`
	ProviderCacheTTL  time.Duration `mapstructure:"provider_cache_ttl"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type MetricsConfig struct {
	Addr string `mapstructure:"addr"`
}

// EventsConfig points queue --watch at the backend's event channel. An
// empty RedisURL leaves watch on its ticker alone.
type EventsConfig struct {
	RedisURL string `mapstructure:"redis_url"`
	Channel  string `mapstructure:"channel"`
}

const (
	SessionBackendFile   = "file"
	SessionBackendRedis  = "redis"
	SessionBackendMemory = "memory"
)

func setDefaults(v *viper.Viper) {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}

	v.SetDefault("api.base_url", "http://localhost:8080/api")
	v.SetDefault("api.timeout", 15*time.Second)
	v.SetDefault("session.backend", SessionBackendFile)
	v.SetDefault("session.file", filepath.Join(home, ".ed-intake", "session.json"))
	v.SetDefault("session.redis_url", "redis://localhost:6379/0")
	v.SetDefault("session.namespace", "ed-intake")
	v.SetDefault("session.encryption_key", "")
	v.SetDefault("admission.min_identity_length", 7)
	v.SetDefault("admission.provider_cache_ttl", time.Duration(0))
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")
	v.SetDefault("metrics.addr", "")
	v.SetDefault("events.redis_url", "")
	v.SetDefault("events.channel", "ed-intake:cola")
}

// Load reads config.yaml from the usual locations (or path, when set) and
// applies ED_* environment overrides, e.g. ED_API_BASE_URL.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".ed-intake"))
		}
	}

	v.SetEnvPrefix("ED")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	u, err := url.Parse(c.API.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("api.base_url %q is not an absolute URL", c.API.BaseURL)
	}
	if c.API.Timeout <= 0 {
		return fmt.Errorf("api.timeout must be positive")
	}
	switch c.Session.Backend {
	case SessionBackendFile:
		if c.Session.File == "" {
			return fmt.Errorf("session.file is required for the file backend")
		}
		if c.Session.EncryptionKey != "" {
			if _, err := security.ParseKey(c.Session.EncryptionKey); err != nil {
				return fmt.Errorf("session.encryption_key: %w", err)
			}
		}
	case SessionBackendRedis:
		if c.Session.RedisURL == "" {
			return fmt.Errorf("session.redis_url is required for the redis backend")
		}
	case SessionBackendMemory:
	default:
		return fmt.Errorf("unknown session.backend %q", c.Session.Backend)
	}
	if c.Events.RedisURL != "" && c.Events.Channel == "" {
		return fmt.Errorf("events.channel is required when events.redis_url is set")
	}
	if c.Admission.MinIdentityLength < 1 {
		return fmt.Errorf("admission.min_identity_length must be at least 1")
	}
	return nil
}
