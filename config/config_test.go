package config

import (
	"os"
	"testing"
	"time"

	"github.com/vibast-solutions/ms-go-locks/app/lock"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"LOCK_DIR", "LOCK_TIMEOUT", "LOCK_CHECK_INTERVAL", "LOCK_FAIL_WHEN_LOCKED",
		"REDIS_ADDR", "REDIS_PASSWORD", "REDIS_DB", "MYSQL_DSN",
		"HTTP_HOST", "HTTP_PORT", "GRPC_HOST", "GRPC_PORT", "LOCK_HEALTH_INTERVAL", "LOG_LEVEL",
	} {
		t.Setenv(key, "")
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.LockDir != os.TempDir() {
		t.Fatalf("expected lock dir %q, got %q", os.TempDir(), cfg.LockDir)
	}
	if cfg.LockTimeout != lock.DefaultTimeout || cfg.LockCheckInterval != lock.DefaultCheckInterval {
		t.Fatalf("unexpected retry defaults: %s / %s", cfg.LockTimeout, cfg.LockCheckInterval)
	}
	if cfg.LockFailWhenLocked {
		t.Fatal("fail-when-locked should default to false")
	}
	if cfg.RedisAddr != lock.DefaultRedisAddr || cfg.RedisDB != 0 {
		t.Fatalf("unexpected redis defaults: %s/%d", cfg.RedisAddr, cfg.RedisDB)
	}
	if cfg.HTTPPort != "8080" || cfg.GRPCHost != "0.0.0.0" || cfg.GRPCPort != "9090" || cfg.LogLevel != "info" {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
	if cfg.LockHealthInterval != 5*time.Second {
		t.Fatalf("unexpected health interval: %s", cfg.LockHealthInterval)
	}
}

func TestLoadOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("LOCK_DIR", "/var/lock/app")
	t.Setenv("LOCK_TIMEOUT", "-1s")
	t.Setenv("LOCK_CHECK_INTERVAL", "50ms")
	t.Setenv("LOCK_FAIL_WHEN_LOCKED", "true")
	t.Setenv("REDIS_DB", "3")
	t.Setenv("GRPC_PORT", "9191")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.LockDir != "/var/lock/app" || cfg.LockTimeout != -time.Second || cfg.LockCheckInterval != 50*time.Millisecond {
		t.Fatalf("unexpected lock settings: %+v", cfg)
	}
	if !cfg.LockFailWhenLocked || cfg.RedisDB != 3 || cfg.GRPCPort != "9191" {
		t.Fatalf("unexpected overrides: %+v", cfg)
	}
	if len(cfg.LockOptions()) != 3 {
		t.Fatalf("expected 3 lock options, got %d", len(cfg.LockOptions()))
	}
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	tests := []struct {
		key   string
		value string
	}{
		{"LOCK_TIMEOUT", "soon"},
		{"LOCK_CHECK_INTERVAL", "10"},
		{"LOCK_FAIL_WHEN_LOCKED", "maybe"},
		{"REDIS_DB", "zero"},
		{"LOCK_HEALTH_INTERVAL", "0s"},
		{"LOCK_HEALTH_INTERVAL", "often"},
	}
	for _, tc := range tests {
		t.Run(tc.key+"="+tc.value, func(t *testing.T) {
			clearEnv(t)
			t.Setenv(tc.key, tc.value)
			if _, err := Load(); err == nil {
				t.Fatalf("expected error for %s=%q", tc.key, tc.value)
			}
		})
	}
}
