package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

const (
	StoreMemory   = "memory"
	StorePostgres = "postgres"
)

// Config is read from SANDBOX_* environment variables, e.g. SANDBOX_ADDR.
type Config struct {
	Addr            string        `envconfig:"ADDR" default:":8080"`
	ShutdownTimeout time.Duration `envconfig:"SHUTDOWN_TIMEOUT" default:"5s"`
	ReadTimeout     time.Duration `envconfig:"READ_TIMEOUT" default:"15s"`
	WriteTimeout    time.Duration `envconfig:"WRITE_TIMEOUT" default:"15s"`

	JWTSecret string        `envconfig:"JWT_SECRET" default:"sandbox-insecure-secret"`
	TokenTTL  time.Duration `envconfig:"TOKEN_TTL" default:"8h"`

	Store       string        `envconfig:"STORE" default:"memory"`
	DatabaseURL string        `envconfig:"DATABASE_URL"`
	MaxOpenConn int           `envconfig:"DB_MAX_OPEN_CONNS" default:"10"`
	MaxIdleConn int           `envconfig:"DB_MAX_IDLE_CONNS" default:"5"`
	ConnMaxLife time.Duration `envconfig:"DB_CONN_MAX_LIFETIME" default:"30m"`

	// RedisURL enables queue event publishing. Empty disables it.
	RedisURL string `envconfig:"REDIS_URL"`

	RateLimit  float64 `envconfig:"RATE_LIMIT" default:"50"`
	RateBurst  int     `envconfig:"RATE_BURST" default:"100"`
	BcryptCost int     `envconfig:"BCRYPT_COST" default:"10"`

	// SeedPassword is given to the seeded nurse and physician. Empty skips
	// seeding accounts.
	SeedPassword string `envconfig:"SEED_PASSWORD" default:"guardia123"`

	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`
	LogJSON  bool   `envconfig:"LOG_JSON" default:"false"`
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("sandbox", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process environment: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	switch c.Store {
	case StoreMemory:
	case StorePostgres:
		if c.DatabaseURL == "" {
			return fmt.Errorf("SANDBOX_DATABASE_URL is required for the postgres store")
		}
	default:
		return fmt.Errorf("unknown SANDBOX_STORE %q", c.Store)
	}
	if c.JWTSecret == "" {
		return fmt.Errorf("SANDBOX_JWT_SECRET must not be empty")
	}
	if c.TokenTTL <= 0 {
		return fmt.Errorf("SANDBOX_TOKEN_TTL must be positive")
	}
	return nil
}
