package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type AppConfig struct {
	App       AppSettings       `mapstructure:"app"`
	Postgres  PostgresSettings  `mapstructure:"postgres"`
	Redis     RedisSettings     `mapstructure:"redis"`
	Kafka     KafkaSettings     `mapstructure:"kafka"`
	Policy    PolicySettings    `mapstructure:"policy"`
	ApiKeys   ApiKeySettings    `mapstructure:"api_keys"`
	RateLimit RateLimitSettings `mapstructure:"rate_limit"`
	Session   SessionSettings   `mapstructure:"session"`
	Argon2    Argon2Settings    `mapstructure:"argon2"`
	Telemetry TelemetrySettings `mapstructure:"telemetry"`
}

type AppSettings struct {
	Name string `mapstructure:"name"`
	Env  string `mapstructure:"env"`
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
}

type PostgresSettings struct {
	Host              string        `mapstructure:"host"`
	Port              int           `mapstructure:"port"`
	User              string        `mapstructure:"user"`
	Password          string        `mapstructure:"password"`
	Database          string        `mapstructure:"database"`
	SSLMode           string        `mapstructure:"ssl_mode"`
	MaxConns          int32         `mapstructure:"max_conns"`
	MinConns          int32         `mapstructure:"min_conns"`
	MaxConnLifetime   time.Duration `mapstructure:"max_conn_lifetime"`
	MaxConnIdleTime   time.Duration `mapstructure:"max_conn_idle_time"`
	HealthCheckPeriod time.Duration `mapstructure:"health_check_period"`
}

// RedisSettings configures the Redis connection used by the shared
// failed-attempt window.
type RedisSettings struct {
	Host       string `mapstructure:"host"`
	Port       int    `mapstructure:"port"`
	DB         int    `mapstructure:"db"`
	Password   string `mapstructure:"password"`
	TLSEnabled bool   `mapstructure:"tls_enabled"`
}

// KafkaSettings configures the audit event producer.
type KafkaSettings struct {
	Brokers     []string `mapstructure:"brokers"`
	TopicPrefix string   `mapstructure:"topic_prefix"`
	Async       bool     `mapstructure:"async"`
}

// PolicySettings selects the active password policy tier and expiration rule.
type PolicySettings struct {
	Tier                 string `mapstructure:"tier"`
	ExpirationDays       int    `mapstructure:"expiration_days"`
	HistoryLimit         int    `mapstructure:"history_limit"`
	MinStrengthScore     int    `mapstructure:"min_strength_score"`
	ChangePasswordTarget string `mapstructure:"change_password_target"`
}

// ApiKeySettings configures the sentinel discriminator and the last-used
// throttle window.
type ApiKeySettings struct {
	Sentinel         string        `mapstructure:"sentinel"`
	ThrottleWindow   time.Duration `mapstructure:"throttle_window"`
	ThrottleCapacity int           `mapstructure:"throttle_capacity"`
	UpdateTimeout    time.Duration `mapstructure:"update_timeout"`
}

// RateLimitSettings configures login attempt limiting.
type RateLimitSettings struct {
	WindowDuration   time.Duration `mapstructure:"window_duration"`
	LoginMaxAttempts int           `mapstructure:"login_max_attempts"`
	PauseThreshold   time.Duration `mapstructure:"pause_threshold"`
}

// SessionSettings configures the HTTP-layer access token issuer.
type SessionSettings struct {
	Secret string        `mapstructure:"secret"`
	TTL    time.Duration `mapstructure:"ttl"`
	Issuer string        `mapstructure:"issuer"`
}

// Argon2Settings configures Argon2id password hashing parameters.
type Argon2Settings struct {
	Memory      uint32 `mapstructure:"memory"`
	Iterations  uint32 `mapstructure:"iterations"`
	Parallelism uint8  `mapstructure:"parallelism"`
	SaltLength  uint32 `mapstructure:"salt_length"`
	KeyLength   uint32 `mapstructure:"key_length"`
}

type TelemetrySettings struct {
	MetricsPort int    `mapstructure:"metrics_port"`
	ServiceName string `mapstructure:"service_name"`
}

func Load() (*AppConfig, error) {
	v := viper.New()

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.SetEnvPrefix("AUTHN")

	setDefaults(v)

	if err := bindEnvs(v, []string{
		"app.name",
		"app.env",
		"app.host",
		"app.port",
		"postgres.host",
		"postgres.port",
		"postgres.user",
		"postgres.password",
		"postgres.database",
		"postgres.ssl_mode",
		"postgres.max_conns",
		"postgres.min_conns",
		"postgres.max_conn_lifetime",
		"postgres.max_conn_idle_time",
		"postgres.health_check_period",
		"redis.host",
		"redis.port",
		"redis.db",
		"redis.password",
		"redis.tls_enabled",
		"kafka.brokers",
		"kafka.topic_prefix",
		"kafka.async",
		"policy.tier",
		"policy.expiration_days",
		"policy.history_limit",
		"policy.min_strength_score",
		"policy.change_password_target",
		"api_keys.sentinel",
		"api_keys.throttle_window",
		"api_keys.throttle_capacity",
		"api_keys.update_timeout",
		"rate_limit.window_duration",
		"rate_limit.login_max_attempts",
		"rate_limit.pause_threshold",
		"session.secret",
		"session.ttl",
		"session.issuer",
		"argon2.memory",
		"argon2.iterations",
		"argon2.parallelism",
		"argon2.salt_length",
		"argon2.key_length",
		"telemetry.metrics_port",
		"telemetry.service_name",
	}); err != nil {
		return nil, err
	}

	v.AutomaticEnv()

	var cfg AppConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "authn-service")
	v.SetDefault("app.env", "development")
	v.SetDefault("app.host", "0.0.0.0")
	v.SetDefault("app.port", 8080)

	v.SetDefault("postgres.host", "localhost")
	v.SetDefault("postgres.port", 5432)
	v.SetDefault("postgres.user", "authn")
	v.SetDefault("postgres.password", "authn_password")
	v.SetDefault("postgres.database", "authn")
	v.SetDefault("postgres.ssl_mode", "disable")
	v.SetDefault("postgres.max_conns", 10)
	v.SetDefault("postgres.min_conns", 2)
	v.SetDefault("postgres.max_conn_lifetime", "60m")
	v.SetDefault("postgres.max_conn_idle_time", "15m")
	v.SetDefault("postgres.health_check_period", "30s")

	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.tls_enabled", false)

	v.SetDefault("kafka.brokers", []string{"localhost:9092"})
	v.SetDefault("kafka.topic_prefix", "authn")
	v.SetDefault("kafka.async", true)

	v.SetDefault("policy.tier", "strong")
	v.SetDefault("policy.expiration_days", 0)
	v.SetDefault("policy.history_limit", 10)
	v.SetDefault("policy.min_strength_score", 0)
	v.SetDefault("policy.change_password_target", "/login/changePassword")

	v.SetDefault("api_keys.sentinel", "apikey")
	v.SetDefault("api_keys.throttle_window", "1m")
	v.SetDefault("api_keys.throttle_capacity", 1000)
	v.SetDefault("api_keys.update_timeout", "5s")

	v.SetDefault("rate_limit.window_duration", "1m")
	v.SetDefault("rate_limit.login_max_attempts", 20)
	v.SetDefault("rate_limit.pause_threshold", "15s")

	v.SetDefault("session.secret", "")
	v.SetDefault("session.ttl", "15m")
	v.SetDefault("session.issuer", "authn-service")

	v.SetDefault("argon2.memory", 65536) // 64 MB
	v.SetDefault("argon2.iterations", 3)
	v.SetDefault("argon2.parallelism", 4)
	v.SetDefault("argon2.salt_length", 16)
	v.SetDefault("argon2.key_length", 32)

	v.SetDefault("telemetry.metrics_port", 9090)
	v.SetDefault("telemetry.service_name", "authn-service")
}

func bindEnvs(v *viper.Viper, keys []string) error {
	for _, key := range keys {
		envKey := strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
		if err := v.BindEnv(key, "AUTHN_"+envKey, envKey); err != nil {
			return fmt.Errorf("bind env for %s: %w", key, err)
		}
	}
	return nil
}
