package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	AppEnv   string
	HTTPPort string
	GRPCPort string

	StoreBackend string // mongo | memory
	MongoURI     string
	MongoDBName  string

	CatalogBackend string // mongo | sqlite
	SQLitePath     string

	CacheEnabled  bool
	RedisAddr     string
	RedisPassword string

	KafkaBrokers []string
	KafkaTopic   string
	KafkaGroupID string

	RequestTimeout      time.Duration
	ShutdownTimeout     time.Duration
	HealthCheckInterval time.Duration
	MaxRequestBodySize  int64
	RateLimitRPS        float64
	RateLimitBurst      int
}

// Load reads an optional .env file and then the process environment.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		AppEnv:         getEnv("APP_ENV", "development"),
		HTTPPort:       getEnv("HTTP_PORT", "8080"),
		GRPCPort:       getEnv("GRPC_PORT", "50052"),
		StoreBackend:   getEnv("STORE_BACKEND", "mongo"),
		MongoURI:       getEnv("MONGO_URI", "mongodb://localhost:27017"),
		MongoDBName:    getEnv("MONGO_DB_NAME", "storefront"),
		CatalogBackend: getEnv("CATALOG_BACKEND", "mongo"),
		SQLitePath:     getEnv("SQLITE_PATH", "./products.db"),
		RedisAddr:      getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword:  getEnv("REDIS_PASSWORD", ""),
		KafkaBrokers:   splitList(getEnv("KAFKA_BROKERS", "")),
		KafkaTopic:     getEnv("KAFKA_TOPIC", "order-events"),
		KafkaGroupID:   getEnv("KAFKA_GROUP_ID", "cart-service"),
	}

	var err error
	if cfg.CacheEnabled, err = getBool("CACHE_ENABLED", true); err != nil {
		return nil, err
	}
	if cfg.RequestTimeout, err = getDuration("REQUEST_TIMEOUT", 30*time.Second); err != nil {
		return nil, err
	}
	if cfg.ShutdownTimeout, err = getDuration("SHUTDOWN_TIMEOUT", 10*time.Second); err != nil {
		return nil, err
	}
	if cfg.HealthCheckInterval, err = getDuration("HEALTH_CHECK_INTERVAL", 15*time.Second); err != nil {
		return nil, err
	}
	if cfg.MaxRequestBodySize, err = getInt64("MAX_REQUEST_BODY_SIZE", 1<<20); err != nil {
		return nil, err
	}
	if cfg.RateLimitRPS, err = getFloat("RATE_LIMIT_RPS", 20); err != nil {
		return nil, err
	}
	burst, err := getInt64("RATE_LIMIT_BURST", 40)
	if err != nil {
		return nil, err
	}
	cfg.RateLimitBurst = int(burst)

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	switch c.StoreBackend {
	case "mongo", "memory":
	default:
		return fmt.Errorf("STORE_BACKEND must be mongo or memory, got %q", c.StoreBackend)
	}
	switch c.CatalogBackend {
	case "mongo", "sqlite":
	default:
		return fmt.Errorf("CATALOG_BACKEND must be mongo or sqlite, got %q", c.CatalogBackend)
	}
	if c.RateLimitRPS <= 0 || c.RateLimitBurst <= 0 {
		return fmt.Errorf("rate limit must be positive")
	}
	return nil
}

// NeedsMongo reports whether any backend talks to MongoDB.
func (c *Config) NeedsMongo() bool {
	return c.StoreBackend == "mongo" || c.CatalogBackend == "mongo"
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getBool(key string, defaultValue bool) (bool, error) {
	v := os.Getenv(key)
	if v == "" {
		return defaultValue, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("invalid %s: %w", key, err)
	}
	return b, nil
}

func getDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return defaultValue, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}

func getInt64(key string, defaultValue int64) (int64, error) {
	v := os.Getenv(key)
	if v == "" {
		return defaultValue, nil
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return n, nil
}

func getFloat(key string, defaultValue float64) (float64, error) {
	v := os.Getenv(key)
	if v == "" {
		return defaultValue, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return f, nil
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
