package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// boop zone radius; an alert radius under it would never alert
const minAlertRadius = 10.0

const (
	DriverMemory   = "memory"
	DriverPostgres = "postgres"
	DriverMongo    = "mongo"
	DriverRedis    = "redis"
)

type Config struct {
	Port               string
	StoreDriver        string
	DatabaseURL        string
	MongoURI           string
	MongoDatabase      string
	PresenceDriver     string
	RedisURL           string
	PresenceTTL        time.Duration
	JWTSecret          string
	JWTExpiry          time.Duration
	AllowAnonymousJoin bool
	AlertRadius        float64
	RealertInterval    time.Duration
	IdempotencyWindow  time.Duration
	CORSOrigins        string
	LogLevel           string
}

// New returns a viper instance reading the environment with every default set
func New() *viper.Viper {
	v := viper.New()
	v.AutomaticEnv()

	v.SetDefault("PORT", "8080")
	v.SetDefault("STORE_DRIVER", DriverMemory)
	v.SetDefault("DATABASE_URL", "")
	v.SetDefault("MONGO_URI", "")
	v.SetDefault("MONGO_DATABASE", "boop")
	v.SetDefault("PRESENCE_DRIVER", DriverMemory)
	v.SetDefault("REDIS_URL", "")
	v.SetDefault("PRESENCE_TTL", "60s")
	v.SetDefault("JWT_SECRET", "")
	v.SetDefault("JWT_EXPIRY", "24h")
	v.SetDefault("ALLOW_ANONYMOUS_JOIN", false)
	v.SetDefault("ALERT_RADIUS_METERS", 100.0)
	v.SetDefault("REALERT_INTERVAL", "30s")
	v.SetDefault("IDEMPOTENCY_WINDOW", "5s")
	v.SetDefault("CORS_ORIGINS", "*")
	v.SetDefault("LOG_LEVEL", "info")
	return v
}

// Load reads .env if present, then the environment
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		slog.Debug("no .env file found")
	}
	return FromViper(New())
}

// FromViper builds and validates a Config from v
func FromViper(v *viper.Viper) (*Config, error) {
	cfg := &Config{
		Port:               v.GetString("PORT"),
		StoreDriver:        strings.ToLower(v.GetString("STORE_DRIVER")),
		DatabaseURL:        v.GetString("DATABASE_URL"),
		MongoURI:           v.GetString("MONGO_URI"),
		MongoDatabase:      v.GetString("MONGO_DATABASE"),
		PresenceDriver:     strings.ToLower(v.GetString("PRESENCE_DRIVER")),
		RedisURL:           v.GetString("REDIS_URL"),
		PresenceTTL:        v.GetDuration("PRESENCE_TTL"),
		JWTSecret:          v.GetString("JWT_SECRET"),
		JWTExpiry:          v.GetDuration("JWT_EXPIRY"),
		AllowAnonymousJoin: v.GetBool("ALLOW_ANONYMOUS_JOIN"),
		AlertRadius:        v.GetFloat64("ALERT_RADIUS_METERS"),
		RealertInterval:    v.GetDuration("REALERT_INTERVAL"),
		IdempotencyWindow:  v.GetDuration("IDEMPOTENCY_WINDOW"),
		CORSOrigins:        v.GetString("CORS_ORIGINS"),
		LogLevel:           strings.ToLower(v.GetString("LOG_LEVEL")),
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	switch c.StoreDriver {
	case DriverMemory:
	case DriverPostgres:
		if c.DatabaseURL == "" {
			return errors.New("DATABASE_URL is required when STORE_DRIVER=postgres")
		}
	case DriverMongo:
		if c.MongoURI == "" {
			return errors.New("MONGO_URI is required when STORE_DRIVER=mongo")
		}
		if c.MongoDatabase == "" {
			return errors.New("MONGO_DATABASE is required when STORE_DRIVER=mongo")
		}
	default:
		return fmt.Errorf("unknown STORE_DRIVER %q", c.StoreDriver)
	}

	switch c.PresenceDriver {
	case DriverMemory:
	case DriverRedis:
		if c.RedisURL == "" {
			return errors.New("REDIS_URL is required when PRESENCE_DRIVER=redis")
		}
	default:
		return fmt.Errorf("unknown PRESENCE_DRIVER %q", c.PresenceDriver)
	}

	if c.JWTSecret == "" {
		return errors.New("JWT_SECRET is required")
	}
	if c.JWTExpiry <= 0 {
		return errors.New("JWT_EXPIRY must be positive")
	}
	if c.PresenceTTL < 0 {
		return errors.New("PRESENCE_TTL must not be negative")
	}
	if c.AlertRadius <= 0 {
		return errors.New("ALERT_RADIUS_METERS must be positive")
	}
	if c.AlertRadius < minAlertRadius {
		return fmt.Errorf("ALERT_RADIUS_METERS must be at least %v", minAlertRadius)
	}
	if c.RealertInterval < 0 || c.IdempotencyWindow < 0 {
		return errors.New("REALERT_INTERVAL and IDEMPOTENCY_WINDOW must not be negative")
	}
	return nil
}

// SlogLevel maps LOG_LEVEL to a slog level, defaulting to info
func (c *Config) SlogLevel() slog.Level {
	switch c.LogLevel {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
