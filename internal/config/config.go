// Package config loads runtime settings from the environment (optionally
// seeded from a .env file) into a typed struct.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

type Config struct {
	AppEnv string
	Port   string

	DB       DBConfig
	Redis    RedisConfig
	Kafka    KafkaConfig
	Auth     AuthConfig
	Leave    LeaveConfig
	Limiter  RateLimitConfig
	Outbox   OutboxConfig
	CORSList []string
}

type DBConfig struct {
	Host       string
	User       string
	Password   string
	Name       string
	Port       string
	SSLMode    string
	MaxRetries int
}

type RedisConfig struct {
	Addr string
}

type KafkaConfig struct {
	Broker        string
	ConsumerGroup string
}

type AuthConfig struct {
	JWTSecret string
}

type LeaveConfig struct {
	// RequireProvisionedBalance rejects submissions and approvals for which no
	// balance row exists instead of creating one with zero entitlement.
	RequireProvisionedBalance bool
	DefaultEntitlements       map[string]decimal.Decimal
	BalanceCacheTTL           time.Duration
}

// RateLimitConfig holds the per-address limit applied to every route and the
// per-user limit applied to authenticated leave routes.
type RateLimitConfig struct {
	RequestsPerSecond     float64
	Burst                 int
	UserRequestsPerSecond float64
	UserBurst             int
}

type OutboxConfig struct {
	PollInterval time.Duration
	BatchSize    int
}

func (c Config) IsProduction() bool {
	return c.AppEnv == "production"
}

// Load reads .env (when present) and the process environment.
func Load() (Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	setDefaults(v)

	return fromViper(v)
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("APP_ENV", "development")
	v.SetDefault("PORT", "3000")
	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", "5432")
	v.SetDefault("DB_SSLMODE", "disable")
	v.SetDefault("DB_MAX_RETRIES", 5)
	v.SetDefault("REDIS_ADDR", "localhost:6379")
	v.SetDefault("KAFKA_CONSUMER_GROUP", "shift-leave-balance-provisioner")
	v.SetDefault("RATE_LIMIT_RPS", 10)
	v.SetDefault("RATE_LIMIT_BURST", 20)
	v.SetDefault("RATE_LIMIT_USER_RPS", 5)
	v.SetDefault("RATE_LIMIT_USER_BURST", 10)
	v.SetDefault("LEAVE_REQUIRE_PROVISIONED_BALANCE", true)
	v.SetDefault("LEAVE_DEFAULT_ENTITLEMENTS", "vacation=20,sick=10,personal=3,bereavement=3,jury_duty=5,other=0")
	v.SetDefault("BALANCE_CACHE_TTL", "5m")
	v.SetDefault("OUTBOX_POLL_INTERVAL", "3s")
	v.SetDefault("OUTBOX_BATCH_SIZE", 50)
	v.SetDefault("CORS_ALLOWED_ORIGINS", "*")
}

func fromViper(v *viper.Viper) (Config, error) {
	entitlements, err := ParseEntitlements(v.GetString("LEAVE_DEFAULT_ENTITLEMENTS"))
	if err != nil {
		return Config{}, err
	}

	cfg := Config{
		AppEnv: v.GetString("APP_ENV"),
		Port:   v.GetString("PORT"),
		DB: DBConfig{
			Host:       v.GetString("DB_HOST"),
			User:       v.GetString("DB_USER"),
			Password:   v.GetString("DB_PASSWORD"),
			Name:       v.GetString("DB_NAME"),
			Port:       v.GetString("DB_PORT"),
			SSLMode:    v.GetString("DB_SSLMODE"),
			MaxRetries: v.GetInt("DB_MAX_RETRIES"),
		},
		Redis: RedisConfig{Addr: v.GetString("REDIS_ADDR")},
		Kafka: KafkaConfig{
			Broker:        v.GetString("KAFKA_BROKER"),
			ConsumerGroup: v.GetString("KAFKA_CONSUMER_GROUP"),
		},
		Auth: AuthConfig{JWTSecret: v.GetString("JWT_SECRET")},
		Leave: LeaveConfig{
			RequireProvisionedBalance: v.GetBool("LEAVE_REQUIRE_PROVISIONED_BALANCE"),
			DefaultEntitlements:       entitlements,
			BalanceCacheTTL:           v.GetDuration("BALANCE_CACHE_TTL"),
		},
		Limiter: RateLimitConfig{
			RequestsPerSecond:     v.GetFloat64("RATE_LIMIT_RPS"),
			Burst:                 v.GetInt("RATE_LIMIT_BURST"),
			UserRequestsPerSecond: v.GetFloat64("RATE_LIMIT_USER_RPS"),
			UserBurst:             v.GetInt("RATE_LIMIT_USER_BURST"),
		},
		Outbox: OutboxConfig{
			PollInterval: v.GetDuration("OUTBOX_POLL_INTERVAL"),
			BatchSize:    v.GetInt("OUTBOX_BATCH_SIZE"),
		},
		CORSList: splitList(v.GetString("CORS_ALLOWED_ORIGINS")),
	}

	return cfg, nil
}

// ParseEntitlements parses "vacation=20,sick=10.5" into a map keyed by leave type.
func ParseEntitlements(raw string) (map[string]decimal.Decimal, error) {
	out := make(map[string]decimal.Decimal)
	for _, part := range splitList(raw) {
		key, value, ok := strings.Cut(part, "=")
		if !ok {
			return nil, fmt.Errorf("invalid entitlement %q, expected type=days", part)
		}
		days, err := decimal.NewFromString(strings.TrimSpace(value))
		if err != nil {
			return nil, fmt.Errorf("invalid entitlement days for %q: %w", key, err)
		}
		if days.IsNegative() {
			return nil, fmt.Errorf("entitlement for %q must not be negative", key)
		}
		out[strings.TrimSpace(key)] = days
	}
	return out, nil
}

func splitList(raw string) []string {
	var out []string
	for _, p := range strings.Split(raw, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
