package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

const (
	EnvPrefix = "STOREFRONT"

	AppEnvDev  = "development"
	AppEnvProd = "production"

	EnvAppEnv   = "STOREFRONT_APP_ENV"
	EnvAppPort  = "STOREFRONT_APP_PORT"
	EnvRedisURL = "STOREFRONT_REDIS_URL"
	EnvCartURL  = "STOREFRONT_CART_SERVICE_URL"
	EnvPayURL   = "STOREFRONT_PAYMENT_SERVICE_URL"
)

type Config struct {
	App            AppConfig
	Redis          RedisConfig
	Journal        JournalConfig
	CartService    CartServiceConfig
	PaymentService PaymentServiceConfig
	Poller         PollerConfig
	Redirect       RedirectConfig
	Session        SessionConfig
	JWT            JWTConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"STOREFRONT_APP_ENV" required:"true"`
	Port         string `envconfig:"STOREFRONT_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"STOREFRONT_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"STOREFRONT_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type RedisConfig struct {
	URL          string        `envconfig:"STOREFRONT_REDIS_URL" required:"true"`
	Address      string        `envconfig:"STOREFRONT_REDIS_ADDR"`
	Password     string        `envconfig:"STOREFRONT_REDIS_PASSWORD"`
	DB           int           `envconfig:"STOREFRONT_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"STOREFRONT_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"STOREFRONT_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"STOREFRONT_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"STOREFRONT_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"STOREFRONT_REDIS_WRITE_TIMEOUT" default:"5s"`
}

// JournalConfig drives the transaction journal database.
type JournalConfig struct {
	Driver          string        `envconfig:"STOREFRONT_JOURNAL_DRIVER" default:"sqlite"`
	DSN             string        `envconfig:"STOREFRONT_JOURNAL_DSN" default:"storefront.db"`
	AutoMigrate     bool          `envconfig:"STOREFRONT_JOURNAL_AUTO_MIGRATE" default:"true"`
	MaxOpenConns    int           `envconfig:"STOREFRONT_JOURNAL_MAX_OPEN_CONNS" default:"10"`
	MaxIdleConns    int           `envconfig:"STOREFRONT_JOURNAL_MAX_IDLE_CONNS" default:"5"`
	ConnMaxLifetime time.Duration `envconfig:"STOREFRONT_JOURNAL_CONN_MAX_LIFETIME" default:"1h"`
}

type CartServiceConfig struct {
	BaseURL string        `envconfig:"STOREFRONT_CART_SERVICE_URL" required:"true"`
	Timeout time.Duration `envconfig:"STOREFRONT_CART_SERVICE_TIMEOUT" default:"10s"`
}

type PaymentServiceConfig struct {
	BaseURL string        `envconfig:"STOREFRONT_PAYMENT_SERVICE_URL" required:"true"`
	Timeout time.Duration `envconfig:"STOREFRONT_PAYMENT_SERVICE_TIMEOUT" default:"10s"`
}

// PollerConfig bounds the payment confirmation loop.
type PollerConfig struct {
	Interval time.Duration `envconfig:"STOREFRONT_POLL_INTERVAL" default:"3s"`
	Budget   time.Duration `envconfig:"STOREFRONT_POLL_BUDGET" default:"600s"`
}

// RedirectConfig tunes the duplicate-navigation guard.
type RedirectConfig struct {
	Cooldown time.Duration `envconfig:"STOREFRONT_REDIRECT_COOLDOWN" default:"30s"`
}

// SessionConfig bounds the in-memory session hub. Bundles idle past the TTL
// are evicted and rebuilt on the session's next request.
type SessionConfig struct {
	IdleTTL       time.Duration `envconfig:"STOREFRONT_SESSION_IDLE_TTL" default:"1h"`
	SweepInterval time.Duration `envconfig:"STOREFRONT_SESSION_SWEEP_INTERVAL" default:"5m"`
}

type JWTConfig struct {
	Secret string `envconfig:"STOREFRONT_JWT_SECRET" required:"true"`
	Issuer string `envconfig:"STOREFRONT_JWT_ISSUER" default:"storefront"`
}
