package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

const (
	EnvPrefix = "BOLTBRIDGE"

	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	EnvDBDSN  = "BOLTBRIDGE_DB_DSN"
	EnvDBHost = "BOLTBRIDGE_DB_HOST"
	EnvDBUser = "BOLTBRIDGE_DB_USER"
	EnvDBName = "BOLTBRIDGE_DB_NAME"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}

type Config struct {
	App          AppConfig
	Service      ServiceConfig
	DB           DBConfig
	Redis        RedisConfig
	JWT          JWTConfig
	FeatureFlags FeatureFlagsConfig
	Bolt         BoltConfig
	Checkout     CheckoutConfig
	Webhook      WebhookConfig
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
	Env          string `envconfig:"BOLTBRIDGE_APP_ENV" required:"true"`
	Port         string `envconfig:"BOLTBRIDGE_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"BOLTBRIDGE_LOG_LEVEL" default:"info"`
	LogFormat    string `envconfig:"BOLTBRIDGE_LOG_FORMAT" default:"json"`
	LogWarnStack bool   `envconfig:"BOLTBRIDGE_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type ServiceConfig struct {
	Kind string `envconfig:"BOLTBRIDGE_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN    string `envconfig:"BOLTBRIDGE_DB_DSN"`
	Driver string `envconfig:"BOLTBRIDGE_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"BOLTBRIDGE_DB_HOST"`
	LegacyPort     int    `envconfig:"BOLTBRIDGE_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"BOLTBRIDGE_DB_USER"`
	LegacyPassword string `envconfig:"BOLTBRIDGE_DB_PASSWORD"`
	LegacyName     string `envconfig:"BOLTBRIDGE_DB_NAME"`
	LegacySSLMode  string `envconfig:"BOLTBRIDGE_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"BOLTBRIDGE_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"BOLTBRIDGE_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"BOLTBRIDGE_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"BOLTBRIDGE_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"BOLTBRIDGE_REDIS_URL" required:"true"`
	Address      string        `envconfig:"BOLTBRIDGE_REDIS_ADDR"`
	Password     string        `envconfig:"BOLTBRIDGE_REDIS_PASSWORD"`
	DB           int           `envconfig:"BOLTBRIDGE_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"BOLTBRIDGE_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"BOLTBRIDGE_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"BOLTBRIDGE_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"BOLTBRIDGE_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"BOLTBRIDGE_REDIS_WRITE_TIMEOUT" default:"5s"`
}

// JWTConfig signs the short-lived checkout session token handed to the
// browser, which carries the cart id the save call must prove it owns.
type JWTConfig struct {
	Secret            string `envconfig:"BOLTBRIDGE_JWT_SECRET" required:"true"`
	Issuer            string `envconfig:"BOLTBRIDGE_JWT_ISSUER" required:"true"`
	ExpirationMinutes int    `envconfig:"BOLTBRIDGE_JWT_EXPIRATION_MINUTES" default:"60"`
}

// Expiration returns the checkout session token lifetime.
func (j JWTConfig) Expiration() time.Duration {
	if j.ExpirationMinutes <= 0 {
		return time.Hour
	}
	return time.Duration(j.ExpirationMinutes) * time.Minute
}

type FeatureFlagsConfig struct {
	UseSQLite   bool `envconfig:"BOLTBRIDGE_USE_SQLITE" default:"false"`
	AutoMigrate bool `envconfig:"BOLTBRIDGE_AUTO_MIGRATE" default:"false"`
}

// BoltConfig configures the payment processor client.
type BoltConfig struct {
	APIKey        string        `envconfig:"BOLTBRIDGE_BOLT_API_KEY" required:"true"`
	SigningSecret string        `envconfig:"BOLTBRIDGE_BOLT_SIGNING_SECRET"`
	Env           string        `envconfig:"BOLTBRIDGE_BOLT_ENV" default:"sandbox"`
	AutoCapture   bool          `envconfig:"BOLTBRIDGE_BOLT_AUTO_CAPTURE" default:"false"`
	Timeout       time.Duration `envconfig:"BOLTBRIDGE_BOLT_TIMEOUT" default:"20s"`
	MaxRetries    int           `envconfig:"BOLTBRIDGE_BOLT_MAX_RETRIES" default:"3"`
}

// Environment returns the normalized processor environment (sandbox/production).
func (b BoltConfig) Environment() string {
	env := strings.TrimSpace(strings.ToLower(b.Env))
	if env == "" {
		return "sandbox"
	}
	return env
}

// CheckoutConfig holds the availability gates consumed as read-only inputs.
type CheckoutConfig struct {
	MinOrderTotalCents int           `envconfig:"BOLTBRIDGE_CHECKOUT_MIN_TOTAL_CENTS" default:"0"`
	MaxOrderTotalCents int           `envconfig:"BOLTBRIDGE_CHECKOUT_MAX_TOTAL_CENTS" default:"0"`
	AllowedCountries   []string      `envconfig:"BOLTBRIDGE_CHECKOUT_ALLOWED_COUNTRIES"`
	TokenCacheTTL      time.Duration `envconfig:"BOLTBRIDGE_CHECKOUT_TOKEN_CACHE_TTL" default:"1h"`
	SnapshotTTL        time.Duration `envconfig:"BOLTBRIDGE_CHECKOUT_SNAPSHOT_TTL" default:"72h"`
}

// CountryAllowed reports whether the allow-list admits the country code.
// An empty list admits every country.
func (c CheckoutConfig) CountryAllowed(code string) bool {
	if len(c.AllowedCountries) == 0 {
		return true
	}
	for _, allowed := range c.AllowedCountries {
		if strings.EqualFold(strings.TrimSpace(allowed), strings.TrimSpace(code)) {
			return true
		}
	}
	return false
}

type WebhookConfig struct {
	IdempotencyTTL time.Duration `envconfig:"BOLTBRIDGE_WEBHOOK_IDEMPOTENCY_TTL" default:"24h"`
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
