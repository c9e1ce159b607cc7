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
	MercadoPago  MercadoPagoConfig
	Sweep        SweepConfig
	Reminder     ReminderConfig
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
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"PACKRESCUE_APP_ENV" required:"true"`
	Port         string `envconfig:"PACKRESCUE_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"PACKRESCUE_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"PACKRESCUE_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type ServiceConfig struct {
	Kind string `envconfig:"PACKRESCUE_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN    string `envconfig:"PACKRESCUE_DB_DSN"`
	Driver string `envconfig:"PACKRESCUE_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"PACKRESCUE_DB_HOST"`
	LegacyPort     int    `envconfig:"PACKRESCUE_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"PACKRESCUE_DB_USER"`
	LegacyPassword string `envconfig:"PACKRESCUE_DB_PASSWORD"`
	LegacyName     string `envconfig:"PACKRESCUE_DB_NAME"`
	LegacySSLMode  string `envconfig:"PACKRESCUE_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"PACKRESCUE_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"PACKRESCUE_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"PACKRESCUE_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"PACKRESCUE_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"PACKRESCUE_REDIS_URL" required:"true"`
	Address      string        `envconfig:"PACKRESCUE_REDIS_ADDR"`
	Password     string        `envconfig:"PACKRESCUE_REDIS_PASSWORD"`
	DB           int           `envconfig:"PACKRESCUE_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"PACKRESCUE_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"PACKRESCUE_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"PACKRESCUE_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"PACKRESCUE_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"PACKRESCUE_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret            string `envconfig:"PACKRESCUE_JWT_SECRET" required:"true"`
	Issuer            string `envconfig:"PACKRESCUE_JWT_ISSUER" required:"true"`
	ExpirationMinutes int    `envconfig:"PACKRESCUE_JWT_EXPIRATION_MINUTES" required:"true"`
}

// Expiration returns the access token lifetime.
func (j JWTConfig) Expiration() time.Duration {
	if j.ExpirationMinutes <= 0 {
		return 0
	}
	return time.Duration(j.ExpirationMinutes) * time.Minute
}

type MercadoPagoConfig struct {
	AccessToken   string `envconfig:"PACKRESCUE_MP_ACCESS_TOKEN"`
	WebhookSecret string `envconfig:"PACKRESCUE_MP_WEBHOOK_SECRET"`
	BaseURL       string `envconfig:"PACKRESCUE_MP_BASE_URL" default:"https://api.mercadopago.com"`
	SuccessURL    string `envconfig:"PACKRESCUE_MP_SUCCESS_URL"`
	FailureURL    string `envconfig:"PACKRESCUE_MP_FAILURE_URL"`
	NotifyURL     string `envconfig:"PACKRESCUE_MP_NOTIFY_URL"`
}

type SweepConfig struct {
	Interval  time.Duration `envconfig:"PACKRESCUE_SWEEP_INTERVAL" default:"1m"`
	LockTTL   time.Duration `envconfig:"PACKRESCUE_SWEEP_LOCK_TTL" default:"50s"`
	BatchSize int           `envconfig:"PACKRESCUE_SWEEP_BATCH_SIZE" default:"500"`
}

type ReminderConfig struct {
	Interval  time.Duration `envconfig:"PACKRESCUE_REMINDER_INTERVAL" default:"5m"`
	LeadTime  time.Duration `envconfig:"PACKRESCUE_REMINDER_LEAD_TIME" default:"30m"`
	BatchSize int           `envconfig:"PACKRESCUE_REMINDER_BATCH_SIZE" default:"200"`
}

type FeatureFlagsConfig struct {
	AutoMigrate     bool `envconfig:"PACKRESCUE_AUTO_MIGRATE" default:"false"`
	MockPayments    bool `envconfig:"PACKRESCUE_FEATURE_MOCK_PAYMENTS" default:"false"`
	PickupReminders bool `envconfig:"PACKRESCUE_FEATURE_PICKUP_REMINDERS" default:"true"`
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
