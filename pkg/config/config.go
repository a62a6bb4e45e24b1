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
	Service      ServiceConfig
	DB           DBConfig
	Redis        RedisConfig
	JWT          JWTConfig
	FeatureFlags FeatureFlagsConfig
	Eventing     EventingConfig
	GCP          GCPConfig
	PubSub       PubSubConfig
	Gateway      GatewayConfig
	Orders       OrdersConfig
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
	Env          string `envconfig:"VASTRAHUB_APP_ENV" required:"true"`
	Port         string `envconfig:"VASTRAHUB_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"VASTRAHUB_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"VASTRAHUB_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type ServiceConfig struct {
	Kind string `envconfig:"VASTRAHUB_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN    string `envconfig:"VASTRAHUB_DB_DSN"`
	Driver string `envconfig:"VASTRAHUB_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"VASTRAHUB_DB_HOST"`
	LegacyPort     int    `envconfig:"VASTRAHUB_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"VASTRAHUB_DB_USER"`
	LegacyPassword string `envconfig:"VASTRAHUB_DB_PASSWORD"`
	LegacyName     string `envconfig:"VASTRAHUB_DB_NAME"`
	LegacySSLMode  string `envconfig:"VASTRAHUB_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"VASTRAHUB_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"VASTRAHUB_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"VASTRAHUB_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"VASTRAHUB_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"VASTRAHUB_REDIS_URL" required:"true"`
	Address      string        `envconfig:"VASTRAHUB_REDIS_ADDR"`
	Password     string        `envconfig:"VASTRAHUB_REDIS_PASSWORD"`
	DB           int           `envconfig:"VASTRAHUB_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"VASTRAHUB_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"VASTRAHUB_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"VASTRAHUB_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"VASTRAHUB_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"VASTRAHUB_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret                 string `envconfig:"VASTRAHUB_JWT_SECRET" required:"true"`
	Issuer                 string `envconfig:"VASTRAHUB_JWT_ISSUER" required:"true"`
	ExpirationMinutes      int    `envconfig:"VASTRAHUB_JWT_EXPIRATION_MINUTES" required:"true"`
	RefreshTokenTTLMinutes int    `envconfig:"VASTRAHUB_REFRESH_TOKEN_TTL_MINUTES" default:"43200"`
}

// RefreshTokenTTL returns the refresh token TTL configured in minutes.
func (j JWTConfig) RefreshTokenTTL() time.Duration {
	if j.RefreshTokenTTLMinutes <= 0 {
		return 0
	}
	return time.Duration(j.RefreshTokenTTLMinutes) * time.Minute
}

type FeatureFlagsConfig struct {
	UseSQLite   bool `envconfig:"VASTRAHUB_USE_SQLITE" default:"false"`
	AutoMigrate bool `envconfig:"VASTRAHUB_AUTO_MIGRATE" default:"false"`
}

type EventingConfig struct {
	OutboxIdempotencyTTL time.Duration `envconfig:"VASTRAHUB_EVENTING_IDEMPOTENCY_TTL" default:"720h"`
}

type GCPConfig struct {
	ProjectID              string `envconfig:"VASTRAHUB_GCP_PROJECT_ID" required:"true"`
	CredentialsJSON        string `envconfig:"VASTRAHUB_GCP_CREDENTIALS_JSON"`
	ApplicationCredentials string `envconfig:"VASTRAHUB_GOOGLE_APPLICATION_CREDENTIALS"`
}

type PubSubConfig struct {
	OrdersTopic              string `envconfig:"VASTRAHUB_PUBSUB_ORDERS_TOPIC" required:"true"`
	OrdersSubscription       string `envconfig:"VASTRAHUB_PUBSUB_ORDERS_SUBSCRIPTION" required:"true"`
	NotificationSubscription string `envconfig:"VASTRAHUB_PUBSUB_NOTIFICATION_SUBSCRIPTION" default:"vh-notification-dispatch"`
}

// GatewayConfig carries the credentials for the hosted payment gateway.
// KeyID is embedded in checkout responses so the storefront can open the
// gateway widget; Secret signs and verifies callback payloads.
type GatewayConfig struct {
	KeyID          string        `envconfig:"VASTRAHUB_GATEWAY_KEY_ID"`
	Secret         string        `envconfig:"VASTRAHUB_GATEWAY_SECRET"`
	BaseURL        string        `envconfig:"VASTRAHUB_GATEWAY_BASE_URL" default:"https://api.razorpay.com/v1"`
	RequestTimeout time.Duration `envconfig:"VASTRAHUB_GATEWAY_TIMEOUT" default:"10s"`
}

type OrdersConfig struct {
	ReturnWindow     time.Duration `envconfig:"VASTRAHUB_ORDERS_RETURN_WINDOW" default:"168h"`
	PaymentTTL       time.Duration `envconfig:"VASTRAHUB_ORDERS_PAYMENT_TTL" default:"30m"`
	DeliveryFeePaise int64         `envconfig:"VASTRAHUB_ORDERS_DELIVERY_FEE_PAISE" default:"4900"`
	FreeDeliveryOver int64         `envconfig:"VASTRAHUB_ORDERS_FREE_DELIVERY_OVER_PAISE" default:"99900"`
	MaxReturnPhotos  int           `envconfig:"VASTRAHUB_ORDERS_MAX_RETURN_PHOTOS" default:"5"`
}

type OutboxConfig struct {
	BatchSize      int `envconfig:"VASTRAHUB_OUTBOX_PUBLISH_BATCH_SIZE" default:"50"`
	PollIntervalMS int `envconfig:"VASTRAHUB_OUTBOX_PUBLISH_POLL_MS" default:"500"`
	MaxAttempts    int `envconfig:"VASTRAHUB_OUTBOX_MAX_ATTEMPTS" default:"10"`
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
