// Package config loads and validates app config from env and an optional .env file using Viper.
package config

import (
	"errors"
	"strings"
	"time"

	"github.com/spf13/viper"

	classdomain "presensi-praktikum/internal/class/domain"
)

// Config holds application configuration loaded from the environment.
type Config struct {
	// HTTPAddr is the address the HTTP server listens on (e.g. :8080).
	HTTPAddr string `mapstructure:"HTTP_ADDR"`
	// DatabaseURL is the Postgres DSN; empty until DB is wired.
	DatabaseURL string `mapstructure:"DATABASE_URL"`
	// JWTPublicKey is the PEM-encoded public key (RSA or ECDSA) or path to file,
	// used to verify access tokens issued by the upstream identity provider.
	JWTPublicKey string `mapstructure:"JWT_PUBLIC_KEY"`
	// JWTIssuer is the expected iss claim (e.g. "presensi-auth").
	JWTIssuer string `mapstructure:"JWT_ISSUER"`
	// JWTAudience is the expected aud claim (e.g. "presensi-api").
	JWTAudience string `mapstructure:"JWT_AUDIENCE"`
	// AuthDisabled skips token verification and trusts the X-User-ID header.
	// For local development only; must not be true when Env is production.
	AuthDisabled bool `mapstructure:"AUTH_DISABLED"`
	// Env is the application environment (e.g. "development", "production").
	Env string `mapstructure:"APP_ENV"`

	// RateLimitMax is the number of check-in attempts per identity per window.
	RateLimitMax int `mapstructure:"RATE_LIMIT_MAX"`
	// RateLimitWindow is the rolling window for the limiter (e.g. "60s").
	RateLimitWindow string `mapstructure:"RATE_LIMIT_WINDOW"`

	// GraceMinutes is the on-time grace window after activation, used when a
	// class has no config of its own.
	GraceMinutes int `mapstructure:"GRACE_MINUTES"`
	// DefaultRadiusM is the geofence radius in meters used when activation
	// does not specify one.
	DefaultRadiusM float64 `mapstructure:"DEFAULT_RADIUS_M"`
	// DefaultDurationMin is the admission window length in minutes used when
	// activation does not specify one.
	DefaultDurationMin int `mapstructure:"DEFAULT_DURATION_MIN"`
	// MinAttendancePct is the eligibility threshold used when a class has no
	// config of its own (e.g. 75).
	MinAttendancePct int `mapstructure:"MIN_ATTENDANCE_PCT"`
	// TotalSessionsPlanned is the per-class planned meeting count fallback.
	TotalSessionsPlanned int `mapstructure:"TOTAL_SESSIONS_PLANNED"`

	// Live feed (optional). When Kafka brokers are set, successful check-ins
	// are published for the dashboard live feed.
	// FeedKafkaBrokers is a comma-separated list of broker addresses (e.g. "localhost:9092").
	FeedKafkaBrokers string `mapstructure:"KAFKA_BROKERS"`
	// FeedKafkaTopic is the Kafka topic for check-in events (default presensi-feed).
	FeedKafkaTopic string `mapstructure:"FEED_KAFKA_TOPIC"`
	// KafkaGroupID is the consumer group ID for the feed worker.
	KafkaGroupID string `mapstructure:"KAFKA_GROUP_ID"`
	// LokiURL is the Loki base URL the feed worker pushes to (e.g. http://localhost:3100).
	LokiURL string `mapstructure:"LOKI_URL"`

	// OTLPEndpoint is the OTLP gRPC endpoint for traces/metrics/logs; empty
	// disables export (no-op providers).
	OTLPEndpoint string `mapstructure:"OTLP_ENDPOINT"`
	// OTLPInsecure forces plaintext export even for https endpoints.
	OTLPInsecure bool `mapstructure:"OTLP_INSECURE"`
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
	v.SetDefault("JWT_ISSUER", "presensi-auth")
	v.SetDefault("JWT_AUDIENCE", "presensi-api")
	v.SetDefault("AUTH_DISABLED", false)
	v.SetDefault("APP_ENV", "")
	v.SetDefault("RATE_LIMIT_MAX", 3)
	v.SetDefault("RATE_LIMIT_WINDOW", "60s")
	v.SetDefault("GRACE_MINUTES", 10)
	v.SetDefault("DEFAULT_RADIUS_M", 100)
	v.SetDefault("DEFAULT_DURATION_MIN", 30)
	v.SetDefault("MIN_ATTENDANCE_PCT", 75)
	v.SetDefault("TOTAL_SESSIONS_PLANNED", 14)
	v.SetDefault("KAFKA_BROKERS", "")
	v.SetDefault("FEED_KAFKA_TOPIC", "presensi-feed")
	v.SetDefault("KAFKA_GROUP_ID", "presensi-feed-worker")
	v.SetDefault("LOKI_URL", "")
	v.SetDefault("OTLP_ENDPOINT", "")
	v.SetDefault("OTLP_INSECURE", false)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if cfg.HTTPAddr == "" {
		return nil, errors.New("config: HTTP_ADDR must be set")
	}

	if cfg.AuthDisabled && cfg.Env == "production" {
		return nil, errors.New("config: AUTH_DISABLED must not be true when APP_ENV=production")
	}

	if cfg.RateLimitMax <= 0 {
		return nil, errors.New("config: RATE_LIMIT_MAX must be positive")
	}
	if cfg.GraceMinutes < 0 {
		return nil, errors.New("config: GRACE_MINUTES must not be negative")
	}
	if cfg.DefaultRadiusM <= 0 {
		return nil, errors.New("config: DEFAULT_RADIUS_M must be positive")
	}
	if cfg.DefaultDurationMin <= 0 {
		return nil, errors.New("config: DEFAULT_DURATION_MIN must be positive")
	}
	if cfg.MinAttendancePct < 0 || cfg.MinAttendancePct > 100 {
		return nil, errors.New("config: MIN_ATTENDANCE_PCT must be between 0 and 100")
	}

	return &cfg, nil
}

// ClassDefaults builds the fallback class config from the environment-derived
// settings. Classes with no stored config of their own get these values.
func (c *Config) ClassDefaults() *classdomain.Config {
	return &classdomain.Config{
		TotalSessionsPlanned: c.TotalSessionsPlanned,
		MinAttendancePct:     c.MinAttendancePct,
		GraceMinutes:         c.GraceMinutes,
		DefaultRadiusM:       c.DefaultRadiusM,
		DefaultDurationMin:   c.DefaultDurationMin,
	}
}

// RateLimitWindowDuration parses RateLimitWindow as a time.Duration. Returns 60s if unset or invalid.
func (c *Config) RateLimitWindowDuration() time.Duration {
	d, err := time.ParseDuration(c.RateLimitWindow)
	if err != nil || d <= 0 {
		return 60 * time.Second
	}
	return d
}

// FeedKafkaBrokersList returns Kafka broker addresses from the comma-separated config.
// Used to decide if the live feed is enabled (non-empty list) and to create the producer.
func (c *Config) FeedKafkaBrokersList() []string {
	if c == nil || c.FeedKafkaBrokers == "" {
		return nil
	}
	parts := strings.Split(c.FeedKafkaBrokers, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if s := strings.TrimSpace(p); s != "" {
			out = append(out, s)
		}
	}
	return out
}
