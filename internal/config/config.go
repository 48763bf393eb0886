package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

const defaultJWTSecret = "your-super-secret-key-change-in-production"

// Config holds runtime configuration read from the environment.
type Config struct {
	AppEnv string `envconfig:"APP_ENV" default:"development"`
	Port   string `envconfig:"PORT" default:"3000"`

	DatabaseURL       string        `envconfig:"DATABASE_URL"`
	DBHost            string        `envconfig:"DB_HOST" default:"localhost"`
	DBUser            string        `envconfig:"DB_USER" default:"postgres"`
	DBPassword        string        `envconfig:"DB_PASSWORD"`
	DBName            string        `envconfig:"DB_NAME" default:"stock_ledger"`
	DBPort            string        `envconfig:"DB_PORT" default:"5432"`
	DBTimeZone        string        `envconfig:"DB_TIMEZONE" default:"Asia/Jakarta"`
	DBMaxIdleConns    int           `envconfig:"DB_MAX_IDLE_CONNS" default:"10"`
	DBMaxOpenConns    int           `envconfig:"DB_MAX_OPEN_CONNS" default:"100"`
	DBConnMaxLifetime time.Duration `envconfig:"DB_CONN_MAX_LIFETIME" default:"1h"`
	DBSlowThreshold   time.Duration `envconfig:"DB_SLOW_THRESHOLD" default:"1s"`
	AutoMigrate       bool          `envconfig:"AUTO_MIGRATE" default:"true"`

	JWTSecret string        `envconfig:"JWT_SECRET" default:"your-super-secret-key-change-in-production"`
	JWTTTL    time.Duration `envconfig:"JWT_TTL" default:"24h"`

	// Empty disables the Idempotency-Key store.
	RedisAddr      string        `envconfig:"REDIS_ADDR"`
	RedisPassword  string        `envconfig:"REDIS_PASSWORD"`
	IdempotencyTTL time.Duration `envconfig:"IDEMPOTENCY_TTL" default:"24h"`

	LogLevel  string `envconfig:"LOG_LEVEL" default:"info"`
	LogFormat string `envconfig:"LOG_FORMAT" default:"console"`

	AdminEmail    string `envconfig:"ADMIN_EMAIL" default:"admin@example.com"`
	AdminPassword string `envconfig:"ADMIN_PASSWORD" default:"admin123"`
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}
	if cfg.IsProduction() && (cfg.JWTSecret == "" || cfg.JWTSecret == defaultJWTSecret) {
		return nil, errors.New("JWT_SECRET must be set in production")
	}
	if cfg.JWTTTL <= 0 {
		return nil, errors.New("JWT_TTL must be positive")
	}
	return &cfg, nil
}

// IsProduction returns true when the application runs in production.
func (c *Config) IsProduction() bool {
	return c != nil && c.AppEnv == "production"
}

// DSN returns DATABASE_URL or a DSN assembled from the DB_* parts.
func (c *Config) DSN() string {
	if c.DatabaseURL != "" {
		return c.DatabaseURL
	}
	return fmt.Sprintf(
		"host=%s user=%s password=%s dbname=%s port=%s sslmode=disable TimeZone=%s",
		c.DBHost, c.DBUser, c.DBPassword, c.DBName, c.DBPort, c.DBTimeZone,
	)
}
