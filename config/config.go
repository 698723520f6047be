// Package config loads the front end configuration from the environment
// (and an optional .env file).
package config

import (
	"fmt"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	goerrors "github.com/goliatone/go-errors"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const envPrefix = "AUTH"

const (
	ProviderCognito = "cognito"
	ProviderLocal   = "local"

	BackendMemory = "memory"
	BackendRedis  = "redis"
	BackendSQLite = "sqlite"
)

type Config struct {
	App      AppSettings      `mapstructure:"app"`
	Provider ProviderSettings `mapstructure:"provider"`
	Cognito  CognitoSettings  `mapstructure:"cognito"`
	Local    LocalSettings    `mapstructure:"local"`
	Session  SessionSettings  `mapstructure:"session"`
	Redis    RedisSettings    `mapstructure:"redis"`
	Metrics  MetricsSettings  `mapstructure:"metrics"`
}

type AppSettings struct {
	Name     string `mapstructure:"name"`
	Env      string `mapstructure:"env"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	LogLevel string `mapstructure:"log_level"`
	Debug    bool   `mapstructure:"debug"`
}

// Addr returns host:port for the HTTP listener.
func (a AppSettings) Addr() string {
	return fmt.Sprintf("%s:%d", a.Host, a.Port)
}

type ProviderSettings struct {
	Kind string `mapstructure:"kind"`
}

// CognitoSettings configures the Cognito user pool client. The static
// credentials are optional; without them the default AWS chain is used.
type CognitoSettings struct {
	UserPoolID      string        `mapstructure:"user_pool_id"`
	ClientID        string        `mapstructure:"client_id"`
	ClientSecret    string        `mapstructure:"client_secret"`
	Region          string        `mapstructure:"region"`
	AccessKeyID     string        `mapstructure:"access_key_id"`
	SecretAccessKey string        `mapstructure:"secret_access_key"`
	SessionToken    string        `mapstructure:"session_token"`
	Endpoint        string        `mapstructure:"endpoint"`
	Timeout         time.Duration `mapstructure:"timeout"`
}

// LocalSettings configures the self-hosted provider used in development.
type LocalSettings struct {
	DSN        string        `mapstructure:"dsn"`
	JWTSecret  string        `mapstructure:"jwt_secret"`
	Issuer     string        `mapstructure:"issuer"`
	TokenTTL   time.Duration `mapstructure:"token_ttl"`
	CodeTTL    time.Duration `mapstructure:"code_ttl"`
	BcryptCost int           `mapstructure:"bcrypt_cost"`
}

type SessionSettings struct {
	Backend      string        `mapstructure:"backend"`
	CookieName   string        `mapstructure:"cookie_name"`
	CookieSecure bool          `mapstructure:"cookie_secure"`
	TTL          time.Duration `mapstructure:"ttl"`
	DSN          string        `mapstructure:"dsn"`
	CSRFKey      string        `mapstructure:"csrf_key"`
}

type RedisSettings struct {
	Addr       string `mapstructure:"addr"`
	Password   string `mapstructure:"password"`
	DB         int    `mapstructure:"db"`
	KeyPrefix  string `mapstructure:"key_prefix"`
	TLSEnabled bool   `mapstructure:"tls_enabled"`
}

type MetricsSettings struct {
	Enabled   bool   `mapstructure:"enabled"`
	Addr      string `mapstructure:"addr"`
	Namespace string `mapstructure:"namespace"`
}

// legacyEnv maps keys to the variable names used by earlier deployments.
var legacyEnv = map[string][]string{
	"cognito.user_pool_id":      {"USER_POOL_ID"},
	"cognito.client_id":         {"USER_POOL_CLIENT_ID"},
	"cognito.client_secret":     {"USER_POOL_CLIENT_SECRET"},
	"cognito.region":            {"USER_POOL_REGION_NAME", "AWS_REGION"},
	"cognito.access_key_id":     {"AWS_ACCESS_KEY_ID"},
	"cognito.secret_access_key": {"AWS_SECRET_ACCESS_KEY"},
	"cognito.session_token":     {"AWS_SESSION_TOKEN"},
}

var keys = []string{
	"app.name",
	"app.env",
	"app.host",
	"app.port",
	"app.log_level",
	"app.debug",
	"provider.kind",
	"cognito.user_pool_id",
	"cognito.client_id",
	"cognito.client_secret",
	"cognito.region",
	"cognito.access_key_id",
	"cognito.secret_access_key",
	"cognito.session_token",
	"cognito.endpoint",
	"cognito.timeout",
	"local.dsn",
	"local.jwt_secret",
	"local.issuer",
	"local.token_ttl",
	"local.code_ttl",
	"local.bcrypt_cost",
	"session.backend",
	"session.cookie_name",
	"session.cookie_secure",
	"session.ttl",
	"session.dsn",
	"session.csrf_key",
	"redis.addr",
	"redis.password",
	"redis.db",
	"redis.key_prefix",
	"redis.tls_enabled",
	"metrics.enabled",
	"metrics.addr",
	"metrics.namespace",
}

// Load reads envFiles (".env" when none is given, ignoring a missing file)
// and then the environment. Variables use the AUTH_ prefix, e.g.
// AUTH_SESSION_BACKEND.
func Load(envFiles ...string) (*Config, error) {
	if len(envFiles) == 0 {
		_ = godotenv.Load()
	} else if err := godotenv.Load(envFiles...); err != nil {
		return nil, fmt.Errorf("load env files: %w", err)
	}

	v := viper.New()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.SetEnvPrefix(envPrefix)

	setDefaults(v)

	if err := bindEnvs(v, keys); err != nil {
		return nil, err
	}

	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "authweb")
	v.SetDefault("app.env", "development")
	v.SetDefault("app.host", "0.0.0.0")
	v.SetDefault("app.port", 8501)
	v.SetDefault("app.log_level", "info")
	v.SetDefault("app.debug", false)

	v.SetDefault("provider.kind", ProviderCognito)

	v.SetDefault("cognito.region", "us-east-1")
	v.SetDefault("cognito.timeout", "10s")

	v.SetDefault("local.dsn", "file:local_users.db?cache=shared")
	v.SetDefault("local.issuer", "authweb")
	v.SetDefault("local.token_ttl", "1h")
	v.SetDefault("local.code_ttl", "24h")
	v.SetDefault("local.bcrypt_cost", 12)

	v.SetDefault("session.backend", BackendMemory)
	v.SetDefault("session.cookie_name", "authweb_session")
	v.SetDefault("session.cookie_secure", false)
	v.SetDefault("session.ttl", "12h")
	v.SetDefault("session.dsn", "file:sessions.db?cache=shared")

	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.key_prefix", "authweb:session")
	v.SetDefault("redis.tls_enabled", false)

	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.addr", ":9090")
	v.SetDefault("metrics.namespace", "authweb")
}

func bindEnvs(v *viper.Viper, keys []string) error {
	for _, key := range keys {
		envKey := strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
		names := append([]string{envPrefix + "_" + envKey}, legacyEnv[key]...)
		if err := v.BindEnv(append([]string{key}, names...)...); err != nil {
			return fmt.Errorf("bind env for %s: %w", key, err)
		}
	}
	return nil
}

// Validate checks the settings needed by the selected provider and backend.
func (c *Config) Validate() error {
	err := validation.Errors{
		"app": validation.ValidateStruct(&c.App,
			validation.Field(&c.App.Port, validation.Required, validation.Min(1), validation.Max(65535)),
		),
		"provider": validation.ValidateStruct(&c.Provider,
			validation.Field(&c.Provider.Kind, validation.Required, validation.In(ProviderCognito, ProviderLocal)),
		),
		"session": validation.ValidateStruct(&c.Session,
			validation.Field(&c.Session.Backend, validation.Required, validation.In(BackendMemory, BackendRedis, BackendSQLite)),
			validation.Field(&c.Session.CookieName, validation.Required),
			validation.Field(&c.Session.TTL, validation.Required),
			validation.Field(&c.Session.CSRFKey, validation.Length(32, 0)),
		),
	}

	switch c.Provider.Kind {
	case ProviderCognito:
		err["cognito"] = validation.ValidateStruct(&c.Cognito,
			validation.Field(&c.Cognito.UserPoolID, validation.Required),
			validation.Field(&c.Cognito.ClientID, validation.Required),
			validation.Field(&c.Cognito.Region, validation.Required),
		)
	case ProviderLocal:
		err["local"] = validation.ValidateStruct(&c.Local,
			validation.Field(&c.Local.DSN, validation.Required),
			validation.Field(&c.Local.JWTSecret, validation.Required, validation.Length(16, 0)),
			validation.Field(&c.Local.BcryptCost, validation.Min(4), validation.Max(31)),
		)
	}

	if c.Session.Backend == BackendRedis {
		err["redis"] = validation.ValidateStruct(&c.Redis,
			validation.Field(&c.Redis.Addr, validation.Required),
		)
	}

	if c.Metrics.Enabled {
		err["metrics"] = validation.ValidateStruct(&c.Metrics,
			validation.Field(&c.Metrics.Addr, validation.Required),
		)
	}

	if verr := err.Filter(); verr != nil {
		return goerrors.Wrap(verr, goerrors.CategoryValidation, "invalid configuration")
	}
	return nil
}
