package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

const (
	EnvPrefix = "CMERCH"

	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	EnvAppEnv     = "CMERCH_APP_ENV"
	EnvPort       = "CMERCH_APP_PORT"
	EnvLogLevel   = "CMERCH_LOG_LEVEL"
	EnvLogFormat  = "CMERCH_LOG_FORMAT"
	EnvDBDSN      = "CMERCH_DB_DSN"
	EnvDBHost     = "CMERCH_DB_HOST"
	EnvDBUser     = "CMERCH_DB_USER"
	EnvDBName     = "CMERCH_DB_NAME"
	EnvRedisURL   = "CMERCH_REDIS_URL"
	EnvRedisAddr  = "CMERCH_REDIS_ADDR"
	EnvNotesLimit = "CMERCH_CHECKOUT_NOTES_MAX_LEN"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}

type Config struct {
	App          AppConfig
	DB           DBConfig
	Redis        RedisConfig
	Checkout     CheckoutConfig
	Outbox       OutboxConfig
	Cron         CronConfig
	FeatureFlags FeatureFlagsConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	if cfg.Redis.URL == "" && cfg.Redis.Address == "" {
		return nil, fmt.Errorf("either %s or %s is required", EnvRedisURL, EnvRedisAddr)
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"CMERCH_APP_ENV" required:"true"`
	Port         string `envconfig:"CMERCH_APP_PORT" default:"8080"`
	LogLevel     string `envconfig:"CMERCH_LOG_LEVEL" default:"info"`
	LogFormat    string `envconfig:"CMERCH_LOG_FORMAT" default:"json"`
	LogWarnStack bool   `envconfig:"CMERCH_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type DBConfig struct {
	DSN string `envconfig:"CMERCH_DB_DSN"`

	LegacyHost     string `envconfig:"CMERCH_DB_HOST"`
	LegacyPort     int    `envconfig:"CMERCH_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"CMERCH_DB_USER"`
	LegacyPassword string `envconfig:"CMERCH_DB_PASSWORD"`
	LegacyName     string `envconfig:"CMERCH_DB_NAME"`
	LegacySSLMode  string `envconfig:"CMERCH_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"CMERCH_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"CMERCH_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"CMERCH_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"CMERCH_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"CMERCH_REDIS_URL"`
	Address      string        `envconfig:"CMERCH_REDIS_ADDR"`
	Password     string        `envconfig:"CMERCH_REDIS_PASSWORD"`
	DB           int           `envconfig:"CMERCH_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"CMERCH_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"CMERCH_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"CMERCH_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"CMERCH_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"CMERCH_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type CheckoutConfig struct {
	NotesMaxLen     int           `envconfig:"CMERCH_CHECKOUT_NOTES_MAX_LEN" default:"500"`
	IdempotencyTTL  time.Duration `envconfig:"CMERCH_CHECKOUT_IDEMPOTENCY_TTL" default:"168h"`
	RateLimit       int64         `envconfig:"CMERCH_CHECKOUT_RATE_LIMIT" default:"10"`
	RateLimitWindow time.Duration `envconfig:"CMERCH_CHECKOUT_RATE_LIMIT_WINDOW" default:"1m"`
}

type OutboxConfig struct {
	StreamPrefix   string `envconfig:"CMERCH_OUTBOX_STREAM_PREFIX" default:"cmerch"`
	StreamMaxLen   int64  `envconfig:"CMERCH_OUTBOX_STREAM_MAXLEN" default:"100000"`
	BatchSize      int    `envconfig:"CMERCH_OUTBOX_BATCH_SIZE" default:"50"`
	PollIntervalMS int    `envconfig:"CMERCH_OUTBOX_POLL_INTERVAL_MS" default:"500"`
	MaxAttempts    int    `envconfig:"CMERCH_OUTBOX_MAX_ATTEMPTS" default:"10"`
}

type CronConfig struct {
	Interval            time.Duration `envconfig:"CMERCH_CRON_INTERVAL" default:"1h"`
	UnpaidOrderTTL      time.Duration `envconfig:"CMERCH_CRON_UNPAID_ORDER_TTL" default:"72h"`
	ExpiryBatchSize     int           `envconfig:"CMERCH_CRON_EXPIRY_BATCH_SIZE" default:"100"`
	OutboxRetentionDays int           `envconfig:"CMERCH_CRON_OUTBOX_RETENTION_DAYS" default:"30"`
}

type FeatureFlagsConfig struct {
	AutoMigrate bool `envconfig:"CMERCH_AUTO_MIGRATE" default:"false"`
}

func (db *DBConfig) ensureDSN() error {
	if db.DSN != "" {
		return nil
	}

	missing := []string{}
	legacyValues := map[string]string{
		EnvDBHost: db.LegacyHost,
		EnvDBUser: db.LegacyUser,
		EnvDBName: db.LegacyName,
	}
	for _, env := range legacyDBEnvVars {
		if legacyValues[env] == "" {
			missing = append(missing, env)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("either %s or %s are required", EnvDBDSN, strings.Join(missing, ", "))
	}

	userInfo := url.User(db.LegacyUser)
	if db.LegacyPassword != "" {
		userInfo = url.UserPassword(db.LegacyUser, db.LegacyPassword)
	}

	u := &url.URL{
		Scheme: "postgres",
		User:   userInfo,
		Host:   fmt.Sprintf("%s:%d", db.LegacyHost, db.LegacyPort),
		Path:   db.LegacyName,
	}
	if db.LegacySSLMode != "" {
		q := u.Query()
		q.Set("sslmode", db.LegacySSLMode)
		u.RawQuery = q.Encode()
	}

	db.DSN = u.String()
	return nil
}
