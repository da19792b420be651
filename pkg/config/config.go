package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

const (
	EnvPrefix = "astha"

	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	EnvDBDSN  = "ASTHA_DB_DSN"
	EnvDBHost = "ASTHA_DB_HOST"
	EnvDBUser = "ASTHA_DB_USER"
	EnvDBName = "ASTHA_DB_NAME"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}

type Config struct {
	App          AppConfig
	DB           DBConfig
	Redis        RedisConfig
	RateLimit    RateLimitConfig
	Checkout     CheckoutConfig
	FeatureFlags FeatureFlagsConfig
	GCP          GCPConfig
	GCS          GCSConfig
	PubSub       PubSubConfig
	BigQuery     BigQueryConfig
	Sendgrid     SendgridConfig
	Outbox       OutboxConfig
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
	Env          string `envconfig:"ASTHA_APP_ENV" required:"true"`
	Port         string `envconfig:"ASTHA_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"ASTHA_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"ASTHA_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type DBConfig struct {
	DSN    string `envconfig:"ASTHA_DB_DSN"`
	Driver string `envconfig:"ASTHA_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"ASTHA_DB_HOST"`
	LegacyPort     int    `envconfig:"ASTHA_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"ASTHA_DB_USER"`
	LegacyPassword string `envconfig:"ASTHA_DB_PASSWORD"`
	LegacyName     string `envconfig:"ASTHA_DB_NAME"`
	LegacySSLMode  string `envconfig:"ASTHA_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"ASTHA_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"ASTHA_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"ASTHA_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"ASTHA_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"ASTHA_REDIS_URL" required:"true"`
	Address      string        `envconfig:"ASTHA_REDIS_ADDR"`
	Password     string        `envconfig:"ASTHA_REDIS_PASSWORD"`
	DB           int           `envconfig:"ASTHA_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"ASTHA_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"ASTHA_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"ASTHA_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"ASTHA_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"ASTHA_REDIS_WRITE_TIMEOUT" default:"5s"`
}

// RateLimitConfig guards the public pricing-preview endpoint. The commit
// path is not rate limited here; it is protected by validation and the
// store's transactional semantics.
type RateLimitConfig struct {
	PreviewWindow  time.Duration `envconfig:"ASTHA_RATE_LIMIT_PREVIEW_WINDOW" default:"1m"`
	PreviewIPLimit int           `envconfig:"ASTHA_RATE_LIMIT_PREVIEW_IP_LIMIT" default:"30"`
}

type CheckoutConfig struct {
	// MaxConflictRetries bounds optimistic retries of the commit
	// transaction on serialization failures before surfacing CONFLICT.
	MaxConflictRetries int           `envconfig:"ASTHA_CHECKOUT_MAX_CONFLICT_RETRIES" default:"3"`
	RetryBackoff       time.Duration `envconfig:"ASTHA_CHECKOUT_RETRY_BACKOFF" default:"25ms"`
	// MaxQtyPerItem is the hard per-line ceiling applied before pricing.
	MaxQtyPerItem int `envconfig:"ASTHA_CHECKOUT_MAX_QTY_PER_ITEM" default:"450"`
}

type FeatureFlagsConfig struct {
	UseSQLite   bool `envconfig:"ASTHA_USE_SQLITE" default:"false"`
	AutoMigrate bool `envconfig:"ASTHA_AUTO_MIGRATE" default:"false"`
}

type GCPConfig struct {
	ProjectID              string `envconfig:"ASTHA_GCP_PROJECT_ID" required:"true"`
	CredentialsJSON        string `envconfig:"ASTHA_GCP_CREDENTIALS_JSON"`
	ApplicationCredentials string `envconfig:"ASTHA_GOOGLE_APPLICATION_CREDENTIALS"`
}

// GCSConfig configures the failover order sink bucket.
type GCSConfig struct {
	BucketName     string `envconfig:"ASTHA_GCS_BUCKET_NAME" required:"true"`
	FailoverPrefix string `envconfig:"ASTHA_GCS_FAILOVER_PREFIX" default:"failover"`
}

type PubSubConfig struct {
	OrdersTopic              string `envconfig:"ASTHA_PUBSUB_ORDERS_TOPIC" required:"true"`
	NotificationSubscription string `envconfig:"ASTHA_PUBSUB_NOTIFICATION_SUBSCRIPTION" required:"true"`
	EmailSubscription        string `envconfig:"ASTHA_PUBSUB_EMAIL_SUBSCRIPTION" required:"true"`
	CacheFlushSubscription   string `envconfig:"ASTHA_PUBSUB_CACHE_FLUSH_SUBSCRIPTION" required:"true"`
	AnalyticsSubscription    string `envconfig:"ASTHA_PUBSUB_ANALYTICS_SUBSCRIPTION" required:"true"`
}

type BigQueryConfig struct {
	Dataset     string `envconfig:"ASTHA_BIGQUERY_DATASET" default:"storefront"`
	OrdersTable string `envconfig:"ASTHA_BIGQUERY_ORDERS_TABLE" default:"order_events"`
}

type SendgridConfig struct {
	APIKey      string `envconfig:"ASTHA_SENDGRID_API_KEY"`
	DefaultFrom string `envconfig:"ASTHA_SENDGRID_FROM_EMAIL"`
}

type OutboxConfig struct {
	BatchSize      int           `envconfig:"ASTHA_OUTBOX_PUBLISH_BATCH_SIZE" default:"50"`
	PollIntervalMS int           `envconfig:"ASTHA_OUTBOX_PUBLISH_POLL_MS" default:"500"`
	MaxAttempts    int           `envconfig:"ASTHA_OUTBOX_MAX_ATTEMPTS" default:"10"`
	IdempotencyTTL time.Duration `envconfig:"ASTHA_OUTBOX_IDEMPOTENCY_TTL" default:"24h"`
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
