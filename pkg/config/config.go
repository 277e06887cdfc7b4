package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// EnvPrefix namespaces every floorstaff environment variable.
const EnvPrefix = "TABLEWISE"

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	EnvDBDSN  = "TABLEWISE_DB_DSN"
	EnvDBHost = "TABLEWISE_DB_HOST"
	EnvDBUser = "TABLEWISE_DB_USER"
	EnvDBName = "TABLEWISE_DB_NAME"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}

type Config struct {
	App          AppConfig
	Service      ServiceConfig
	DB           DBConfig
	Redis        RedisConfig
	JWT          JWTConfig
	FeatureFlags FeatureFlagsConfig
	Realtime     RealtimeConfig
	Sweep        SweepConfig
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
	Env          string `envconfig:"TABLEWISE_APP_ENV" required:"true"`
	Port         string `envconfig:"TABLEWISE_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"TABLEWISE_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"TABLEWISE_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type ServiceConfig struct {
	Kind string `envconfig:"TABLEWISE_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN    string `envconfig:"TABLEWISE_DB_DSN"`
	Driver string `envconfig:"TABLEWISE_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"TABLEWISE_DB_HOST"`
	LegacyPort     int    `envconfig:"TABLEWISE_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"TABLEWISE_DB_USER"`
	LegacyPassword string `envconfig:"TABLEWISE_DB_PASSWORD"`
	LegacyName     string `envconfig:"TABLEWISE_DB_NAME"`
	LegacySSLMode  string `envconfig:"TABLEWISE_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"TABLEWISE_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"TABLEWISE_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"TABLEWISE_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"TABLEWISE_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"TABLEWISE_REDIS_URL" required:"true"`
	Address      string        `envconfig:"TABLEWISE_REDIS_ADDR"`
	Password     string        `envconfig:"TABLEWISE_REDIS_PASSWORD"`
	DB           int           `envconfig:"TABLEWISE_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"TABLEWISE_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"TABLEWISE_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"TABLEWISE_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"TABLEWISE_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"TABLEWISE_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret            string `envconfig:"TABLEWISE_JWT_SECRET" required:"true"`
	Issuer            string `envconfig:"TABLEWISE_JWT_ISSUER" required:"true"`
	ExpirationMinutes int    `envconfig:"TABLEWISE_JWT_EXPIRATION_MINUTES" required:"true"`
	SessionTTLMinutes int    `envconfig:"TABLEWISE_SESSION_TTL_MINUTES" default:"720"`
}

// SessionTTL returns the staff session TTL configured in minutes.
func (j JWTConfig) SessionTTL() time.Duration {
	if j.SessionTTLMinutes <= 0 {
		return 0
	}
	return time.Duration(j.SessionTTLMinutes) * time.Minute
}

type FeatureFlagsConfig struct {
	AutoMigrate bool `envconfig:"TABLEWISE_AUTO_MIGRATE" default:"false"`
}

type RealtimeConfig struct {
	StaffChannel    string        `envconfig:"TABLEWISE_REALTIME_STAFF_CHANNEL" default:"floorstaff:events:staff"`
	WriteTimeout    time.Duration `envconfig:"TABLEWISE_REALTIME_WRITE_TIMEOUT" default:"10s"`
	PongTimeout     time.Duration `envconfig:"TABLEWISE_REALTIME_PONG_TIMEOUT" default:"60s"`
	SendBufferSize  int           `envconfig:"TABLEWISE_REALTIME_SEND_BUFFER" default:"256"`
	ReadLimitBytes  int64         `envconfig:"TABLEWISE_REALTIME_READ_LIMIT" default:"512"`
	AllowAllOrigins bool          `envconfig:"TABLEWISE_REALTIME_ALLOW_ALL_ORIGINS" default:"false"`
}

type SweepConfig struct {
	Interval     time.Duration `envconfig:"TABLEWISE_SWEEP_INTERVAL" default:"1m"`
	ClaimTimeout time.Duration `envconfig:"TABLEWISE_SWEEP_CLAIM_TIMEOUT" default:"15m"`
	BatchSize    int           `envconfig:"TABLEWISE_SWEEP_BATCH_SIZE" default:"100"`
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
