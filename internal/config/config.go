// Package config loads and validates app config from env and an optional .env file using Viper.
package config

import (
	"errors"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// DefaultJWTSecret is the placeholder HS256 secret used when JWT_SECRET_KEY is unset.
// Load refuses it when APP_ENV=production.
const DefaultJWTSecret = "netra-dev-secret-change-me"

// Config holds application configuration loaded from the environment.
type Config struct {
	// HTTPAddr is the address the HTTP server listens on (e.g. :8080).
	HTTPAddr string `mapstructure:"HTTP_ADDR"`
	// DatabaseURL is the Postgres DSN; empty until DB is wired.
	DatabaseURL string `mapstructure:"DATABASE_URL"`
	// RedisAddr is the Redis host:port used for rate limiting and the quality gate cache. Empty disables Redis-backed features.
	RedisAddr string `mapstructure:"REDIS_ADDR"`
	// RedisPassword is the optional Redis AUTH password.
	RedisPassword string `mapstructure:"REDIS_PASSWORD"`
	// NATSURL is the NATS server URL for the agent event bus (e.g. nats://localhost:4222). Empty disables the bus.
	NATSURL string `mapstructure:"NATS_URL"`
	// ClickHouseAddr is the ClickHouse native host:port for analytics (e.g. localhost:9000). Empty disables analytics writes.
	ClickHouseAddr string `mapstructure:"CLICKHOUSE_ADDR"`
	// ClickHouseDatabase is the ClickHouse database for analytics tables (default netra_analytics).
	ClickHouseDatabase string `mapstructure:"CLICKHOUSE_DATABASE"`
	// JWTSecretKey is the HS256 signing secret. Defaults to a placeholder; must be overridden in production.
	JWTSecretKey string `mapstructure:"JWT_SECRET_KEY"`
	// JWTIssuer is the iss claim (e.g. "netra-auth").
	JWTIssuer string `mapstructure:"JWT_ISSUER"`
	// JWTAudience is the aud claim (e.g. "netra-api").
	JWTAudience string `mapstructure:"JWT_AUDIENCE"`
	// JWTAccessTTL is the access token lifetime (e.g. "30m").
	JWTAccessTTL string `mapstructure:"JWT_ACCESS_TTL"`
	// JWTRefreshTTL is the refresh token lifetime (e.g. "168h").
	JWTRefreshTTL string `mapstructure:"JWT_REFRESH_TTL"`
	// Argon2Memory is the Argon2id memory parameter in KiB; default 65536 (64 MiB).
	Argon2Memory uint32 `mapstructure:"ARGON2_MEMORY_KIB"`
	// Argon2Iterations is the Argon2id time parameter; default 3.
	Argon2Iterations uint32 `mapstructure:"ARGON2_ITERATIONS"`
	// Argon2Parallelism is the Argon2id parallelism parameter; default 2.
	Argon2Parallelism uint8 `mapstructure:"ARGON2_PARALLELISM"`
	// LoginRateLimit is the max login attempts per LoginRateWindow per email+IP before 429.
	LoginRateLimit int `mapstructure:"LOGIN_RATE_LIMIT"`
	// LoginRateWindow is the rate limit window (e.g. "1m").
	LoginRateWindow string `mapstructure:"LOGIN_RATE_WINDOW"`
	// Env is the application environment (development, testing, staging, production).
	// dev_login is only served when Env is development or testing.
	Env string `mapstructure:"APP_ENV"`
	// OTLPEndpoint is the OTLP gRPC collector endpoint (e.g. http://localhost:4317). Empty disables export.
	OTLPEndpoint string `mapstructure:"OTEL_EXPORTER_OTLP_ENDPOINT"`
	// OTLPInsecure forces plaintext OTLP even for https endpoints (standard OTEL_EXPORTER_OTLP_INSECURE behavior).
	OTLPInsecure bool `mapstructure:"OTEL_EXPORTER_OTLP_INSECURE"`

	// Usage pipeline (optional). When Kafka brokers are set, the server emits usage events to Kafka.
	// UsageKafkaBrokers is a comma-separated list of Kafka broker addresses (e.g. "localhost:9092").
	UsageKafkaBrokers string `mapstructure:"KAFKA_BROKERS"`
	// UsageKafkaTopic is the Kafka topic for usage events (default netra-usage).
	UsageKafkaTopic string `mapstructure:"USAGE_KAFKA_TOPIC"`

	// Worker-only: KafkaGroupID is the consumer group ID for the analytics worker.
	KafkaGroupID string `mapstructure:"KAFKA_GROUP_ID"`
	// Worker-only: LokiURL is an optional Loki push endpoint mirrored by the analytics worker.
	LokiURL string `mapstructure:"LOKI_URL"`
}

// Load reads .env (if present), then builds and validates Config from the environment via Viper.
// Missing .env is ignored (e.g. in CI). Env vars override .env. Returns an error if required fields are invalid.
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigFile(".env")
	v.SetConfigType("env")
	_ = v.ReadInConfig() // ignore ErrConfigFileNotFound

	v.AutomaticEnv()

	v.SetDefault("HTTP_ADDR", ":8080")
	v.SetDefault("DATABASE_URL", "")
	v.SetDefault("REDIS_ADDR", "")
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("NATS_URL", "")
	v.SetDefault("CLICKHOUSE_ADDR", "")
	v.SetDefault("CLICKHOUSE_DATABASE", "netra_analytics")
	v.SetDefault("JWT_SECRET_KEY", DefaultJWTSecret)
	v.SetDefault("JWT_ISSUER", "netra-auth")
	v.SetDefault("JWT_AUDIENCE", "netra-api")
	v.SetDefault("JWT_ACCESS_TTL", "30m")
	v.SetDefault("JWT_REFRESH_TTL", "168h") // 7d
	v.SetDefault("ARGON2_MEMORY_KIB", 64*1024)
	v.SetDefault("ARGON2_ITERATIONS", 3)
	v.SetDefault("ARGON2_PARALLELISM", 2)
	v.SetDefault("LOGIN_RATE_LIMIT", 10)
	v.SetDefault("LOGIN_RATE_WINDOW", "1m")
	v.SetDefault("APP_ENV", "development")
	v.SetDefault("OTEL_EXPORTER_OTLP_ENDPOINT", "")
	v.SetDefault("OTEL_EXPORTER_OTLP_INSECURE", false)
	v.SetDefault("KAFKA_BROKERS", "")
	v.SetDefault("USAGE_KAFKA_TOPIC", "netra-usage")
	v.SetDefault("KAFKA_GROUP_ID", "netra-analytics-worker")
	v.SetDefault("LOKI_URL", "")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if cfg.HTTPAddr == "" {
		return nil, errors.New("config: HTTP_ADDR must be set")
	}
	if cfg.JWTSecretKey == "" {
		return nil, errors.New("config: JWT_SECRET_KEY must not be empty")
	}
	if cfg.Env == "production" && cfg.JWTSecretKey == DefaultJWTSecret {
		return nil, errors.New("config: JWT_SECRET_KEY must be overridden when APP_ENV=production")
	}
	if cfg.LoginRateLimit < 0 {
		return nil, errors.New("config: LOGIN_RATE_LIMIT must not be negative")
	}
	if cfg.Argon2Memory < 8*1024 {
		return nil, errors.New("config: ARGON2_MEMORY_KIB must be at least 8192")
	}
	if cfg.Argon2Iterations == 0 {
		return nil, errors.New("config: ARGON2_ITERATIONS must be at least 1")
	}
	if cfg.Argon2Parallelism == 0 {
		return nil, errors.New("config: ARGON2_PARALLELISM must be at least 1")
	}

	return &cfg, nil
}

// DevLoginEnabled reports whether POST /auth/dev_login is served (APP_ENV development or testing).
func (c *Config) DevLoginEnabled() bool {
	return c.Env == "development" || c.Env == "testing"
}

// AccessTTL parses JWTAccessTTL as a time.Duration. Returns 30m if unset or invalid.
func (c *Config) AccessTTL() time.Duration {
	d, err := time.ParseDuration(c.JWTAccessTTL)
	if err != nil || d <= 0 {
		return 30 * time.Minute
	}
	return d
}

// RefreshTTL parses JWTRefreshTTL as a time.Duration. Returns 168h if unset or invalid.
func (c *Config) RefreshTTL() time.Duration {
	d, err := time.ParseDuration(c.JWTRefreshTTL)
	if err != nil || d <= 0 {
		return 168 * time.Hour
	}
	return d
}

// RateWindow parses LoginRateWindow as a time.Duration. Returns 1m if unset or invalid.
func (c *Config) RateWindow() time.Duration {
	d, err := time.ParseDuration(c.LoginRateWindow)
	if err != nil || d <= 0 {
		return time.Minute
	}
	return d
}

// UsageKafkaBrokersList returns Kafka broker addresses from the comma-separated config.
// Used to decide if the usage pipeline is enabled (non-empty list) and to create the producer.
func (c *Config) UsageKafkaBrokersList() []string {
	if c == nil || c.UsageKafkaBrokers == "" {
		return nil
	}
	parts := strings.Split(c.UsageKafkaBrokers, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if s := strings.TrimSpace(p); s != "" {
			out = append(out, s)
		}
	}
	return out
}
