package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Env             string
	HTTPPort        string
	MarketplaceURL  string
	RequestTimeout  time.Duration
	ShutdownTimeout time.Duration

	// HealthCheckBeforeCheckout pings the marketplace before a checkout starts.
	HealthCheckBeforeCheckout bool

	RedisAddr      string
	RedisPassword  string
	RedisDB        int
	SessionTTL     time.Duration
	IdempotencyTTL time.Duration
	// ProductCacheTTL bounds how stale a product served during an outage can be.
	ProductCacheTTL time.Duration

	DB DBConfig

	KafkaBrokers   []string
	StatsTopic     string
	StatsGroupID   string
	PaymentDelay   time.Duration
	MaxRequestBody int64
}

type DBConfig struct {
	Host              string
	Port              int
	User              string
	Password          string
	Name              string
	MigrationsDirPath string
}

func (c DBConfig) Enabled() bool {
	return c.Host != ""
}

// Load reads the configuration from the environment. A .env file in the
// working directory is applied first when present.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	cfg := &Config{
		Env:                       getEnv("APP_ENV", "development"),
		HTTPPort:                  getEnv("HTTP_PORT", "8080"),
		MarketplaceURL:            strings.TrimRight(getEnv("MARKETPLACE_URL", "http://localhost:8000/api"), "/"),
		RequestTimeout:            getDuration("REQUEST_TIMEOUT", 10*time.Second),
		ShutdownTimeout:           getDuration("SHUTDOWN_TIMEOUT", 10*time.Second),
		HealthCheckBeforeCheckout: getBool("CHECKOUT_HEALTH_CHECK", true),
		RedisAddr:                 getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword:             getEnv("REDIS_PASSWORD", ""),
		RedisDB:                   getInt("REDIS_DB", 0),
		SessionTTL:                getDuration("SESSION_TTL", 24*time.Hour),
		IdempotencyTTL:            getDuration("IDEMPOTENCY_TTL", 24*time.Hour),
		ProductCacheTTL:           getDuration("PRODUCT_CACHE_TTL", 24*time.Hour),
		DB: DBConfig{
			Host:              getEnv("DB_HOST", ""),
			Port:              getInt("DB_PORT", 5432),
			User:              getEnv("DB_USER", "postgres"),
			Password:          getEnv("DB_PASSWORD", ""),
			Name:              getEnv("DB_NAME", "storefront"),
			MigrationsDirPath: getEnv("DB_MIGRATIONS_DIR", "./internal/repository/migrations"),
		},
		KafkaBrokers:   splitList(getEnv("KAFKA_BROKERS", "")),
		StatsTopic:     getEnv("KAFKA_STATS_TOPIC", "seller-stats-refresh"),
		StatsGroupID:   getEnv("KAFKA_STATS_GROUP", "storefront-stats"),
		PaymentDelay:   getDuration("PAYMENT_DELAY", 2*time.Second),
		MaxRequestBody: 1 << 20, // 1MB
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	if c.MarketplaceURL == "" {
		return errors.New("MARKETPLACE_URL is required")
	}
	if c.RequestTimeout <= 0 {
		return errors.New("REQUEST_TIMEOUT must be positive")
	}
	if c.RedisAddr == "" {
		return errors.New("REDIS_ADDR is required")
	}
	if c.PaymentDelay < 0 {
		return errors.New("PAYMENT_DELAY must not be negative")
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getInt(key string, defaultValue int) int {
	v, err := strconv.Atoi(getEnv(key, ""))
	if err != nil {
		return defaultValue
	}
	return v
}

func getBool(key string, defaultValue bool) bool {
	v, err := strconv.ParseBool(getEnv(key, ""))
	if err != nil {
		return defaultValue
	}
	return v
}

func getDuration(key string, defaultValue time.Duration) time.Duration {
	v, err := time.ParseDuration(getEnv(key, ""))
	if err != nil {
		return defaultValue
	}
	return v
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
