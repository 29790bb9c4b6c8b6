package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	App          AppConfig
	DB           DBConfig
	Redis        RedisConfig
	JWT          JWTConfig
	Ledger       LedgerConfig
	RateLimit    RateLimitConfig
	FeatureFlags FeatureFlagsConfig
	PubSub       PubSubConfig
	Outbox       OutboxConfig
	GCP          GCPConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"WAREFLOW_APP_ENV" required:"true"`
	Port         string `envconfig:"WAREFLOW_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"WAREFLOW_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"WAREFLOW_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type DBConfig struct {
	DSN    string `envconfig:"WAREFLOW_DB_DSN"`
	Driver string `envconfig:"WAREFLOW_DB_DRIVER" default:"postgres"`

	Host     string `envconfig:"WAREFLOW_DB_HOST"`
	Port     int    `envconfig:"WAREFLOW_DB_PORT" default:"5432"`
	User     string `envconfig:"WAREFLOW_DB_USER"`
	Password string `envconfig:"WAREFLOW_DB_PASSWORD"`
	Name     string `envconfig:"WAREFLOW_DB_NAME"`
	SSLMode  string `envconfig:"WAREFLOW_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"WAREFLOW_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"WAREFLOW_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"WAREFLOW_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"WAREFLOW_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"WAREFLOW_REDIS_URL" required:"true"`
	Address      string        `envconfig:"WAREFLOW_REDIS_ADDR"`
	Password     string        `envconfig:"WAREFLOW_REDIS_PASSWORD"`
	DB           int           `envconfig:"WAREFLOW_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"WAREFLOW_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"WAREFLOW_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"WAREFLOW_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"WAREFLOW_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"WAREFLOW_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret            string `envconfig:"WAREFLOW_JWT_SECRET" required:"true"`
	Issuer            string `envconfig:"WAREFLOW_JWT_ISSUER" required:"true"`
	ExpirationMinutes int    `envconfig:"WAREFLOW_JWT_EXPIRATION_MINUTES" required:"true"`
}

// AccessTokenTTL returns the access token TTL configured in minutes.
func (j JWTConfig) AccessTokenTTL() time.Duration {
	if j.ExpirationMinutes <= 0 {
		return 0
	}
	return time.Duration(j.ExpirationMinutes) * time.Minute
}

// LedgerConfig tunes the stock ledger's optimistic concurrency behaviour.
type LedgerConfig struct {
	MaxRetries      int           `envconfig:"WAREFLOW_LEDGER_MAX_RETRIES" default:"3"`
	RetryBackoffMin time.Duration `envconfig:"WAREFLOW_LEDGER_RETRY_BACKOFF_MIN" default:"5ms"`
	RetryBackoffMax time.Duration `envconfig:"WAREFLOW_LEDGER_RETRY_BACKOFF_MAX" default:"25ms"`
}

// RateLimitConfig throttles the mutation surface of the API.
type RateLimitConfig struct {
	Window    time.Duration `envconfig:"WAREFLOW_RATE_LIMIT_WINDOW" default:"1m"`
	IPLimit   int           `envconfig:"WAREFLOW_RATE_LIMIT_IP_LIMIT" default:"300"`
	UserLimit int           `envconfig:"WAREFLOW_RATE_LIMIT_USER_LIMIT" default:"120"`
}

type FeatureFlagsConfig struct {
	UseSQLite   bool `envconfig:"WAREFLOW_USE_SQLITE" default:"false"`
	AutoMigrate bool `envconfig:"WAREFLOW_AUTO_MIGRATE" default:"false"`
}

type PubSubConfig struct {
	DomainEventsTopic        string `envconfig:"WAREFLOW_PUBSUB_DOMAIN_EVENTS_TOPIC" required:"true"`
	DomainEventsSubscription string `envconfig:"WAREFLOW_PUBSUB_DOMAIN_EVENTS_SUBSCRIPTION"`
}

type OutboxConfig struct {
	BatchSize      int `envconfig:"WAREFLOW_OUTBOX_PUBLISH_BATCH_SIZE" default:"50"`
	PollIntervalMS int `envconfig:"WAREFLOW_OUTBOX_PUBLISH_POLL_MS" default:"500"`
	MaxAttempts    int `envconfig:"WAREFLOW_OUTBOX_MAX_ATTEMPTS" default:"10"`
}

type GCPConfig struct {
	ProjectID       string `envconfig:"WAREFLOW_GCP_PROJECT_ID"`
	CredentialsJSON string `envconfig:"WAREFLOW_GCP_CREDENTIALS_JSON"`
}

func (db *DBConfig) ensureDSN() error {
	if db.DSN != "" {
		return nil
	}

	missing := []string{}
	values := map[string]string{
		EnvDBHost: db.Host,
		EnvDBUser: db.User,
		EnvDBName: db.Name,
	}
	for _, env := range fallbackDBEnvVars {
		if values[env] == "" {
			missing = append(missing, env)
		}
	}

	if len(missing) > 0 {
		return fmt.Errorf("either %s or %s are required", EnvDBDSN, strings.Join(missing, ", "))
	}

	userInfo := url.User(db.User)
	if db.Password != "" {
		userInfo = url.UserPassword(db.User, db.Password)
	}

	u := &url.URL{
		Scheme: "postgres",
		User:   userInfo,
		Host:   fmt.Sprintf("%s:%d", db.Host, db.Port),
		Path:   db.Name,
	}

	if db.SSLMode != "" {
		q := u.Query()
		q.Set("sslmode", db.SSLMode)
		u.RawQuery = q.Encode()
	}

	db.DSN = u.String()
	return nil
}
