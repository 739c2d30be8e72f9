// internal/config/config.go
package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/sirupsen/logrus"
)

// Store backends selectable through TABLE_STORE.
const (
	StoreMemory   = "memory"
	StorePostgres = "postgres"
)

// Config is the process configuration, read from the environment.
type Config struct {
	Port     string `env:"PORT" envDefault:"8080"`
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`
	Env      string `env:"TABLETOP_ENV" envDefault:"development"`
	// AllowedOrigins only applies in production; elsewhere any origin may call.
	AllowedOrigins []string `env:"ALLOWED_ORIGINS" envSeparator:","`

	TableStore string `env:"TABLE_STORE" envDefault:"memory"`
	Postgres   Postgres
	Redis      Redis

	Automa Automa

	TableUpdateRetries int `env:"TABLE_UPDATE_RETRIES" envDefault:"30"`
	MaxActiveTables    int `env:"MAX_ACTIVE_TABLES" envDefault:"50"`
}

type Postgres struct {
	User     string `env:"POSTGRES_USER"`
	Password string `env:"POSTGRES_PASSWORD"`
	Host     string `env:"PG_HOST" envDefault:"localhost"`
	Port     string `env:"PG_PORT" envDefault:"5432"`
	Database string `env:"PG_DATABASE" envDefault:"tabletop"`
}

// DSN returns the connection string for pgxpool.
func (p Postgres) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s", p.User, p.Password, p.Host, p.Port, p.Database)
}

// Redis is disabled when Addr is empty.
type Redis struct {
	Addr string `env:"REDIS_ADDR"`
	DB   int    `env:"REDIS_DB" envDefault:"0"`
	// EventPrefix namespaces the pub/sub channels of table events.
	EventPrefix string `env:"REDIS_EVENT_PREFIX" envDefault:"tabletop:events:"`
}

func (r Redis) Enabled() bool {
	return r.Addr != ""
}

type Automa struct {
	// Delay is the thinking time before a computer player moves.
	Delay time.Duration `env:"AUTOMA_DELAY" envDefault:"2s"`
	Poll  time.Duration `env:"AUTOMA_POLL" envDefault:"500ms"`
	Queue string        `env:"AUTOMA_QUEUE" envDefault:"tabletop:automa"`
	// Embedded runs computer turns inside the API server. With Redis it can
	// be turned off in favour of dedicated cmd/automa workers.
	Embedded bool `env:"AUTOMA_EMBEDDED" envDefault:"true"`
}

// Origins returns the CORS origin patterns for the HTTP surface.
func (c Config) Origins() []string {
	if c.Env == "production" {
		return c.AllowedOrigins
	}
	return []string{"https://*", "http://*"}
}

// ParseEnv loads configuration from environment variables.
func ParseEnv() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	switch c.TableStore {
	case StoreMemory, StorePostgres:
	default:
		return fmt.Errorf("TABLE_STORE must be %q or %q, got %q", StoreMemory, StorePostgres, c.TableStore)
	}
	if c.TableUpdateRetries < 1 {
		return fmt.Errorf("TABLE_UPDATE_RETRIES must be positive, got %d", c.TableUpdateRetries)
	}
	if c.MaxActiveTables < 1 {
		return fmt.Errorf("MAX_ACTIVE_TABLES must be positive, got %d", c.MaxActiveTables)
	}
	if !c.Automa.Embedded && !c.Redis.Enabled() {
		return fmt.Errorf("AUTOMA_EMBEDDED=false needs REDIS_ADDR for cmd/automa workers")
	}
	if _, err := logrus.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("LOG_LEVEL: %w", err)
	}
	return nil
}

// Logger returns a JSON logger at the configured level.
func (c Config) Logger() *logrus.Logger {
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})
	if level, err := logrus.ParseLevel(c.LogLevel); err == nil {
		logger.SetLevel(level)
	}
	return logger
}
