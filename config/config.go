package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Redis    RedisConfig    `mapstructure:"redis"`
	JWT      JWTConfig      `mapstructure:"jwt"`
	Gateway  GatewayConfig  `mapstructure:"gateway"`
	Log      LogConfig      `mapstructure:"log"`
}

type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
	Mode string `mapstructure:"mode"` // debug, release, test
}

type DatabaseConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	DBName          string        `mapstructure:"dbname"`
	SSLMode         string        `mapstructure:"sslmode"`
	MaxConns        int32         `mapstructure:"max_conns"`
	MinConns        int32         `mapstructure:"min_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

// DSN returns the PostgreSQL connection string.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.DBName, d.SSLMode,
	)
}

type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// Addr returns the Redis address string.
func (r RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

type JWTConfig struct {
	Secret string        `mapstructure:"secret"`
	Expiry time.Duration `mapstructure:"expiry"`
	Issuer string        `mapstructure:"issuer"`
}

// GatewayConfig holds the payment-gateway specific knobs.
type GatewayConfig struct {
	// FrontendURL is the base URL of the hosted checkout page, used when
	// rendering checkout links and QR codes.
	FrontendURL string `mapstructure:"frontend_url"`
	// WebhookSigningSecret signs outbound webhooks for merchants that
	// have no per-merchant secret.
	WebhookSigningSecret  string        `mapstructure:"webhook_signing_secret"`
	AuthorizerSuccessRate float64       `mapstructure:"authorizer_success_rate"`
	AuthorizerSeed        int64         `mapstructure:"authorizer_seed"` // 0 = time-seeded
	DispatcherWorkers     int           `mapstructure:"dispatcher_workers"`
	DispatcherPoll        time.Duration `mapstructure:"dispatcher_poll"`
	WebhookMaxAttempts    int           `mapstructure:"webhook_max_attempts"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`  // debug, info, warn, error
	Pretty bool   `mapstructure:"pretty"` // human-readable output (dev only)
}

// Load reads configuration from file and environment variables.
// Environment variables override file values. Prefix: PF_ (PayFlow).
// Nested keys use underscore: PF_DATABASE_HOST, PF_JWT_SECRET, etc.
func Load(path string) (*Config, error) {
	v := viper.New()

	// Defaults
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.mode", "debug")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.password", "postgres")
	v.SetDefault("database.dbname", "payflow")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_conns", 20)
	v.SetDefault("database.min_conns", 5)
	v.SetDefault("database.conn_max_lifetime", "30m")
	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("jwt.secret", "")
	v.SetDefault("jwt.expiry", "24h")
	v.SetDefault("jwt.issuer", "payflow-gateway")
	v.SetDefault("gateway.frontend_url", "http://localhost:3000")
	v.SetDefault("gateway.webhook_signing_secret", "")
	v.SetDefault("gateway.authorizer_success_rate", 0.9)
	v.SetDefault("gateway.authorizer_seed", 0)
	v.SetDefault("gateway.dispatcher_workers", 4)
	v.SetDefault("gateway.dispatcher_poll", "2s")
	v.SetDefault("gateway.webhook_max_attempts", 8)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.pretty", false)

	// File config
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}

	// Environment variables: PF_DATABASE_HOST -> database.host
	v.SetEnvPrefix("PF")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Read config file (not required, env vars can suffice)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate enforces the settings the server cannot start without.
func (c *Config) Validate() error {
	if len(c.JWT.Secret) < 32 {
		return fmt.Errorf("jwt.secret must be at least 32 bytes, got %d", len(c.JWT.Secret))
	}
	if c.Gateway.AuthorizerSuccessRate < 0 || c.Gateway.AuthorizerSuccessRate > 1 {
		return fmt.Errorf("gateway.authorizer_success_rate must be in [0, 1], got %v", c.Gateway.AuthorizerSuccessRate)
	}
	if c.Gateway.DispatcherWorkers < 1 {
		return fmt.Errorf("gateway.dispatcher_workers must be positive, got %d", c.Gateway.DispatcherWorkers)
	}
	return nil
}
