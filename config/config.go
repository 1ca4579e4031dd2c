package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"

	"github.com/vibast-solutions/ms-go-locks/app/lock"
)

type Config struct {
	LockDir            string
	LockTimeout        time.Duration
	LockCheckInterval  time.Duration
	LockFailWhenLocked bool

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	MySQLDSN string

	HTTPHost string
	HTTPPort string
	GRPCHost string
	GRPCPort string

	// LockHealthInterval is how often serve refreshes the gRPC lock health.
	LockHealthInterval time.Duration

	LogLevel string
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		LockDir:       getEnv("LOCK_DIR", os.TempDir()),
		RedisAddr:     getEnv("REDIS_ADDR", lock.DefaultRedisAddr),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		MySQLDSN:      getEnv("MYSQL_DSN", ""),
		HTTPHost:      getEnv("HTTP_HOST", "0.0.0.0"),
		HTTPPort:      getEnv("HTTP_PORT", "8080"),
		GRPCHost:      getEnv("GRPC_HOST", "0.0.0.0"),
		GRPCPort:      getEnv("GRPC_PORT", "9090"),
		LogLevel:      getEnv("LOG_LEVEL", "info"),
	}

	var err error
	if cfg.LockTimeout, err = getDuration("LOCK_TIMEOUT", lock.DefaultTimeout); err != nil {
		return nil, err
	}
	if cfg.LockCheckInterval, err = getDuration("LOCK_CHECK_INTERVAL", lock.DefaultCheckInterval); err != nil {
		return nil, err
	}
	if cfg.LockHealthInterval, err = getDuration("LOCK_HEALTH_INTERVAL", 5*time.Second); err != nil {
		return nil, err
	}
	if cfg.LockHealthInterval <= 0 {
		return nil, fmt.Errorf("invalid LOCK_HEALTH_INTERVAL: must be positive")
	}
	if cfg.LockFailWhenLocked, err = getBool("LOCK_FAIL_WHEN_LOCKED", false); err != nil {
		return nil, err
	}
	if cfg.RedisDB, err = getInt("REDIS_DB", 0); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LockOptions returns the retry settings shared by every backend.
func (c *Config) LockOptions() []lock.Option {
	return []lock.Option{
		lock.WithTimeout(c.LockTimeout),
		lock.WithCheckInterval(c.LockCheckInterval),
		lock.WithFailWhenLocked(c.LockFailWhenLocked),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}

func getInt(key string, defaultValue int) (int, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return n, nil
}

func getBool(key string, defaultValue bool) (bool, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	b, err := strconv.ParseBool(value)
	if err != nil {
		return false, fmt.Errorf("invalid %s: %w", key, err)
	}
	return b, nil
}
