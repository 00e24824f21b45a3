package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"

	"github.com/Moeed-ul-Hassan/pair-drop/internal/util"
)

const (
	StoreDriverPostgres = "postgres"
	StoreDriverMemory   = "memory"
)

var (
	logFormats = []string{"console", "json"}
	logLevels  = []string{"debug", "info", "warn", "error"}
)

type Config struct {
	AppEnv                string   `env:"APP_ENV" envDefault:"development"`
	Port                  int      `env:"PORT" envDefault:"8080"`
	StoreDriver           string   `env:"STORE_DRIVER" envDefault:"postgres"`
	DatabaseURL           string   `env:"DATABASE_URL"`
	RedisURL              string   `env:"REDIS_URL"`
	LogLevel              string   `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat             string   `env:"LOG_FORMAT" envDefault:"console"`
	SessionTTLHours       int      `env:"SESSION_TTL_HOURS" envDefault:"24"`
	CodeMaxAttempts       int      `env:"CODE_MAX_ATTEMPTS" envDefault:"10"`
	CreateRateLimitPerMin int      `env:"CREATE_RATE_LIMIT_PER_MIN" envDefault:"20"`
	APIRateLimitPerMin    int      `env:"API_RATE_LIMIT_PER_MIN" envDefault:"300"`
	AllowedOrigins        []string `env:"ALLOWED_ORIGINS" envDefault:"*" envSeparator:","`
	OTELEndpoint          string   `env:"OTEL_EXPORTER_OTLP_ENDPOINT"`
	SweepEnabled          bool     `env:"SWEEP_ENABLED" envDefault:"false"`
	SweepGraceHours       int      `env:"SWEEP_GRACE_HOURS" envDefault:"24"`
	AutoMigrate           bool     `env:"AUTO_MIGRATE" envDefault:"true"`
}

func (c *Config) SessionTTL() time.Duration {
	return time.Duration(c.SessionTTLHours) * time.Hour
}

// SweepGrace is how long an expired session is kept before the sweeper deletes it.
func (c *Config) SweepGrace() time.Duration {
	return time.Duration(c.SweepGraceHours) * time.Hour
}

func (c *Config) Addr() string {
	return fmt.Sprintf(":%d", c.Port)
}

func (c *Config) IsProduction() bool {
	return c.AppEnv == "production"
}

func (c *Config) UsesPostgres() bool {
	return c.StoreDriver == StoreDriverPostgres
}

func (c *Config) Validate(isProduction bool) error {
	switch c.StoreDriver {
	case StoreDriverPostgres:
		if c.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL is required when STORE_DRIVER=%s", StoreDriverPostgres)
		}
	case StoreDriverMemory:
		if isProduction {
			log.Warn().Msg("STORE_DRIVER=memory in production: sessions are lost on restart")
		}
	default:
		return fmt.Errorf("STORE_DRIVER must be %q or %q, got %q", StoreDriverPostgres, StoreDriverMemory, c.StoreDriver)
	}

	if c.SessionTTLHours <= 0 {
		return fmt.Errorf("SESSION_TTL_HOURS must be positive")
	}
	if c.CodeMaxAttempts <= 0 {
		return fmt.Errorf("CODE_MAX_ATTEMPTS must be positive")
	}
	if c.CreateRateLimitPerMin <= 0 || c.APIRateLimitPerMin <= 0 {
		return fmt.Errorf("rate limits must be positive")
	}
	if c.SweepGraceHours < 0 {
		return fmt.Errorf("SWEEP_GRACE_HOURS must not be negative")
	}
	if !util.IsValidEnum(c.LogFormat, logFormats) {
		return fmt.Errorf("LOG_FORMAT must be one of %s", strings.Join(logFormats, ", "))
	}
	if !util.IsValidEnum(c.LogLevel, logLevels) {
		return fmt.Errorf("LOG_LEVEL must be one of %s", strings.Join(logLevels, ", "))
	}

	if isProduction {
		if c.RedisURL == "" {
			log.Warn().Msg("REDIS_URL is empty in production: session creation rate limit is per instance")
		} else if strings.HasPrefix(c.RedisURL, "redis://") {
			log.Warn().Msg("REDIS_URL uses redis:// (not TLS) in production: consider using rediss://")
		}
		for _, origin := range c.AllowedOrigins {
			if origin == "*" {
				log.Warn().Msg("ALLOWED_ORIGINS is * in production")
				break
			}
		}
	}

	return nil
}

// Load reads an optional .env file and then the process environment.
// Variables already set in the environment win over the file.
func Load() (*Config, error) {
	if err := godotenv.Load(); err == nil {
		log.Debug().Msg("loaded .env file")
	}

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return &cfg, nil
}
