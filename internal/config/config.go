package config

import (
	"fmt"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Config holds application configuration
type Config struct {
	ServerPort      string        `envconfig:"PORT" default:"8080"`
	DatabaseType    string        `envconfig:"DB_TYPE" default:"sqlite"`
	DatabasePath    string        `envconfig:"DB_PATH" default:"./riddlehunt.db"`
	DatabaseURL     string        `envconfig:"DATABASE_URL"`
	LogLevel        string        `envconfig:"LOG_LEVEL" default:"info"`
	LogFormat       string        `envconfig:"LOG_FORMAT" default:"json"`
	JWTSecret       string        `envconfig:"JWT_SECRET"`
	RequestTimeout  time.Duration `envconfig:"REQUEST_TIMEOUT" default:"10s"`
	ShutdownTimeout time.Duration `envconfig:"SHUTDOWN_TIMEOUT" default:"15s"`

	// Code submissions allowed per user per window; 0 disables the limit
	ValidateRateLimit  int           `envconfig:"VALIDATE_RATE_LIMIT" default:"30"`
	ValidateRateWindow time.Duration `envconfig:"VALIDATE_RATE_WINDOW" default:"1m"`
}

// Load reads configuration from the environment, after loading an optional .env file
func Load() (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if c.ValidateRateLimit < 0 {
		return fmt.Errorf("VALIDATE_RATE_LIMIT must not be negative, got %d", c.ValidateRateLimit)
	}
	if c.ValidateRateLimit > 0 && c.ValidateRateWindow <= 0 {
		return fmt.Errorf("VALIDATE_RATE_WINDOW must be positive when VALIDATE_RATE_LIMIT is set, got %s", c.ValidateRateWindow)
	}
	return nil
}
