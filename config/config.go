package config

import (
	"fmt"
	"strings"
	"time"

	"affiliate-ledger/internal/core/domain"

	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig             `mapstructure:"server"`
	Database  DatabaseConfig           `mapstructure:"database"`
	Redis     RedisConfig              `mapstructure:"redis"`
	JWT       JWTConfig                `mapstructure:"jwt"`
	AES       AESConfig                `mapstructure:"aes"`
	Wallet    WalletConfig             `mapstructure:"wallet"`
	Fees      map[string]FeeRuleConfig `mapstructure:"fees"`
	Webhook   WebhookConfig            `mapstructure:"webhook"`
	Gateway   GatewayConfig            `mapstructure:"gateway"`
	RateLimit RateLimitConfig          `mapstructure:"ratelimit"`
	Log       LogConfig                `mapstructure:"log"`
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

type AESConfig struct {
	Key string `mapstructure:"key"` // 32-byte hex-encoded key for AES-256
}

type WalletConfig struct {
	Currency string `mapstructure:"currency"`
}

// FeeRuleConfig describes one fee kind. Rates are decimal strings so YAML and
// env values never pass through a float.
type FeeRuleConfig struct {
	Method string          `mapstructure:"method"` // percentage, fixed, tiered
	Rate   string          `mapstructure:"rate"`
	Amount int64           `mapstructure:"amount"`
	Tiers  []FeeTierConfig `mapstructure:"tiers"`
}

type FeeTierConfig struct {
	Min  int64  `mapstructure:"min"`
	Max  *int64 `mapstructure:"max"`
	Rate string `mapstructure:"rate"`
}

type WebhookConfig struct {
	QueueSize int           `mapstructure:"queue_size"`
	Timeout   time.Duration `mapstructure:"timeout"`
}

type GatewayConfig struct {
	StripeSecretKey string `mapstructure:"stripe_secret_key"`
}

type RateLimitConfig struct {
	Requests int64         `mapstructure:"requests"`
	Window   time.Duration `mapstructure:"window"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`  // debug, info, warn, error
	Pretty bool   `mapstructure:"pretty"` // human-readable output (dev only)
}

// FeeSchedule converts the raw fee rules into the calculator's schedule.
func (c *Config) FeeSchedule() (map[domain.FeeType]domain.FeeConfig, error) {
	schedule := make(map[domain.FeeType]domain.FeeConfig, len(c.Fees))
	for name, rule := range c.Fees {
		cfg := domain.FeeConfig{
			Method: domain.FeeMethod(rule.Method),
			Amount: rule.Amount,
		}
		if rule.Rate != "" {
			rate, err := decimal.NewFromString(rule.Rate)
			if err != nil {
				return nil, fmt.Errorf("fee %q: parsing rate %q: %w", name, rule.Rate, err)
			}
			cfg.Rate = rate
		}
		for _, tier := range rule.Tiers {
			rate, err := decimal.NewFromString(tier.Rate)
			if err != nil {
				return nil, fmt.Errorf("fee %q: parsing tier rate %q: %w", name, tier.Rate, err)
			}
			cfg.Tiers = append(cfg.Tiers, domain.FeeTier{Min: tier.Min, Max: tier.Max, Rate: rate})
		}
		schedule[domain.FeeType(name)] = cfg
	}
	return schedule, nil
}

// Load reads configuration from file and environment variables.
// Environment variables override file values. Prefix: LEDGER_.
// Nested keys use underscore: LEDGER_DATABASE_HOST, LEDGER_JWT_SECRET, etc.
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
	v.SetDefault("database.dbname", "affiliate_ledger")
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
	v.SetDefault("jwt.issuer", "affiliate-ledger")
	v.SetDefault("aes.key", "")
	v.SetDefault("wallet.currency", "USD")
	v.SetDefault("fees.network.method", "percentage")
	v.SetDefault("fees.network.rate", "10")
	v.SetDefault("fees.payout.method", "percentage")
	v.SetDefault("fees.payout.rate", "1")
	v.SetDefault("webhook.queue_size", 256)
	v.SetDefault("webhook.timeout", "10s")
	v.SetDefault("gateway.stripe_secret_key", "")
	v.SetDefault("ratelimit.requests", 60)
	v.SetDefault("ratelimit.window", "1m")
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

	// Environment variables: LEDGER_DATABASE_HOST -> database.host
	v.SetEnvPrefix("LEDGER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Config file is optional, env vars can suffice
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	return &cfg, nil
}
