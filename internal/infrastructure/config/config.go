package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server        ServerConfig        `mapstructure:"server"`
	Redis         RedisConfig         `mapstructure:"redis"`
	Billing       BillingConfig       `mapstructure:"billing"`
	Worker        WorkerConfig        `mapstructure:"worker"`
	Observability ObservabilityConfig `mapstructure:"observability"`
	Auth          AuthConfig          `mapstructure:"auth"`
	InstanceID    string              `mapstructure:"instance_id"`
}

type ServerConfig struct {
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	RequestTimeout  time.Duration `mapstructure:"request_timeout"`
	RateLimit       int           `mapstructure:"rate_limit"`
	CORS            CORSConfig    `mapstructure:"cors"`
}

type CORSConfig struct {
	AllowedOrigins   []string `mapstructure:"allowed_origins"`
	AllowCredentials bool     `mapstructure:"allow_credentials"`
}

// AuthConfig protects the /api/v1 routes. An empty secret disables auth.
type AuthConfig struct {
	JWTSecret string `mapstructure:"jwt_secret"`
}

type RedisConfig struct {
	Host              string        `mapstructure:"host"`
	Port              int           `mapstructure:"port"`
	DB                int           `mapstructure:"db"`
	Password          string        `mapstructure:"password"`
	ConnectRetries    int           `mapstructure:"connect_retries"`
	ConnectRetryDelay time.Duration `mapstructure:"connect_retry_delay"`
}

type BillingConfig struct {
	WebhookBodyLimit int64                `mapstructure:"webhook_body_limit"`
	WebhookTolerance time.Duration        `mapstructure:"webhook_tolerance"`
	CircuitBreaker   CircuitBreakerConfig `mapstructure:"circuit_breaker"`
	Apps             []AppConfig          `mapstructure:"apps"`
}

type CircuitBreakerConfig struct {
	MinRequests  uint32        `mapstructure:"min_requests"`
	FailureRatio float64       `mapstructure:"failure_ratio"`
	Interval     time.Duration `mapstructure:"interval"`
	Timeout      time.Duration `mapstructure:"timeout"`
}

// AppConfig describes one application sharing the adapter. String values
// may reference environment variables as ${NAME}.
type AppConfig struct {
	Name                 string `mapstructure:"name"`
	Provider             string `mapstructure:"provider"`
	AppVersion           string `mapstructure:"app_version"`
	Currency             string `mapstructure:"currency"`
	APIKey               string `mapstructure:"api_key"`
	WebhookSigningSecret string `mapstructure:"webhook_signing_secret"`
	RequiredAPIVersion   string `mapstructure:"required_api_version"`
	FulfillmentURL       string `mapstructure:"fulfillment_url"`
	SuccessURL           string `mapstructure:"success_url"`
	CancelURL            string `mapstructure:"cancel_url"`
}

type WorkerConfig struct {
	BatchSize      int64         `mapstructure:"batch_size"`
	BlockDuration  time.Duration `mapstructure:"block_duration"`
	ClaimInterval  time.Duration `mapstructure:"claim_interval"`
	ClaimMinIdle   time.Duration `mapstructure:"claim_min_idle"`
	ConsumerGroup  string        `mapstructure:"consumer_group"`
	MaxAttempts    uint          `mapstructure:"max_attempts"`
	RetryDelay     time.Duration `mapstructure:"retry_delay"`
	DeliverTimeout time.Duration `mapstructure:"deliver_timeout"`
	LockTTL        time.Duration `mapstructure:"lock_ttl"`
}

type ObservabilityConfig struct {
	LogLevel       string `mapstructure:"log_level"`
	JaegerEndpoint string `mapstructure:"jaeger_endpoint"`
	EnableMetrics  bool   `mapstructure:"enable_metrics"`
	EnableTracing  bool   `mapstructure:"enable_tracing"`
}

func Load() (*Config, error) {
	v := viper.New()

	// Set defaults
	setDefaults(v)

	// Read from environment variables
	v.SetEnvPrefix("BILLING")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Read from config file if exists
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("/etc/billingbridge")

	// Config file is optional
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	cfg.expandEnv()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}

func (c *Config) expandEnv() {
	for i := range c.Billing.Apps {
		a := &c.Billing.Apps[i]
		a.APIKey = os.ExpandEnv(a.APIKey)
		a.WebhookSigningSecret = os.ExpandEnv(a.WebhookSigningSecret)
		a.FulfillmentURL = os.ExpandEnv(a.FulfillmentURL)
	}
}

// Validate checks process-level settings. Per-app billing settings are
// checked when each adapter is constructed.
func (c *Config) Validate() error {
	var errs []error

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port must be between 1 and 65535, got %d", c.Server.Port))
	}
	if c.Server.ReadTimeout <= 0 {
		errs = append(errs, fmt.Errorf("server.read_timeout must be positive"))
	}
	if c.Server.WriteTimeout <= 0 {
		errs = append(errs, fmt.Errorf("server.write_timeout must be positive"))
	}
	if c.Redis.Port <= 0 {
		errs = append(errs, fmt.Errorf("redis.port must be positive"))
	}
	if c.Worker.BatchSize <= 0 {
		errs = append(errs, fmt.Errorf("worker.batch_size must be positive"))
	}
	if c.Billing.WebhookBodyLimit <= 0 {
		errs = append(errs, fmt.Errorf("billing.webhook_body_limit must be positive"))
	}
	if len(c.Billing.Apps) == 0 {
		errs = append(errs, fmt.Errorf("billing.apps must contain at least one app"))
	}

	seen := make(map[string]bool, len(c.Billing.Apps))
	for i, app := range c.Billing.Apps {
		if app.Name == "" {
			errs = append(errs, fmt.Errorf("billing.apps[%d].name is required", i))
			continue
		}
		if seen[app.Name] {
			errs = append(errs, fmt.Errorf("billing.apps[%d].name %q is duplicated", i, app.Name))
		}
		seen[app.Name] = true
	}

	// Production environment checks
	env := os.Getenv("ENV")
	if env == "production" || env == "prod" {
		if c.Auth.JWTSecret == "" {
			errs = append(errs, fmt.Errorf("auth.jwt_secret required in production"))
		}
	}

	// JWT secret length validation
	if c.Auth.JWTSecret != "" && len(c.Auth.JWTSecret) < 32 {
		errs = append(errs, fmt.Errorf("auth.jwt_secret must be at least 32 characters"))
	}

	return errors.Join(errs...)
}

// App returns the named app config.
func (c *BillingConfig) App(name string) (AppConfig, bool) {
	for _, a := range c.Apps {
		if a.Name == name {
			return a, true
		}
	}
	return AppConfig{}, false
}

func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", "15s")
	v.SetDefault("server.write_timeout", "15s")
	v.SetDefault("server.idle_timeout", "120s")
	v.SetDefault("server.shutdown_timeout", "30s")
	v.SetDefault("server.request_timeout", "30s")
	v.SetDefault("server.rate_limit", 100)
	v.SetDefault("server.cors.allowed_origins", []string{"*"})
	v.SetDefault("server.cors.allow_credentials", false)

	// Redis defaults
	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.connect_retries", 5)
	v.SetDefault("redis.connect_retry_delay", "1s")

	// Billing defaults
	v.SetDefault("billing.webhook_body_limit", 1<<16)
	v.SetDefault("billing.webhook_tolerance", "5m")
	v.SetDefault("billing.circuit_breaker.min_requests", 10)
	v.SetDefault("billing.circuit_breaker.failure_ratio", 0.6)
	v.SetDefault("billing.circuit_breaker.interval", "60s")
	v.SetDefault("billing.circuit_breaker.timeout", "30s")

	// Worker defaults
	v.SetDefault("worker.batch_size", 10)
	v.SetDefault("worker.block_duration", "1s")
	v.SetDefault("worker.claim_interval", "30s")
	v.SetDefault("worker.claim_min_idle", "1m")
	v.SetDefault("worker.consumer_group", "fulfillment-relays")
	v.SetDefault("worker.max_attempts", 5)
	v.SetDefault("worker.retry_delay", "500ms")
	v.SetDefault("worker.deliver_timeout", "10s")
	v.SetDefault("worker.lock_ttl", "2m")

	// Observability defaults
	v.SetDefault("observability.log_level", "info")
	v.SetDefault("observability.jaeger_endpoint", "http://localhost:14268/api/traces")
	v.SetDefault("observability.enable_metrics", true)
	v.SetDefault("observability.enable_tracing", true)

	// Instance ID
	v.SetDefault("instance_id", "billingbridge-1")
}

func (c *RedisConfig) RedisAddr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}
