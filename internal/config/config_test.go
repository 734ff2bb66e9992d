package config

import (
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("JWT_SECRET", "test-secret")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Scheduler.Interval != 5*time.Minute {
		t.Errorf("expected 5m scheduler interval, got %v", cfg.Scheduler.Interval)
	}
	if cfg.Scheduler.Lookahead != 72*time.Hour {
		t.Errorf("expected 72h lookahead, got %v", cfg.Scheduler.Lookahead)
	}
	if cfg.Weather.CacheTTL != 10*time.Minute {
		t.Errorf("expected 10m cache TTL, got %v", cfg.Weather.CacheTTL)
	}
	if cfg.Weather.CacheSweep != 30*time.Minute {
		t.Errorf("expected 30m cache sweep, got %v", cfg.Weather.CacheSweep)
	}
	if len(cfg.Kafka.Brokers) != 0 {
		t.Errorf("expected no kafka brokers, got %v", cfg.Kafka.Brokers)
	}
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("JWT_SECRET", "test-secret")
	t.Setenv("SERVER_PORT", "9999")
	t.Setenv("SCHEDULER_INTERVAL", "10m")
	t.Setenv("KAFKA_BROKERS", "k1:9092, k2:9092,")
	t.Setenv("SCHEDULER_ENABLED", "false")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Server.Port != 9999 {
		t.Errorf("expected port 9999, got %d", cfg.Server.Port)
	}
	if cfg.Scheduler.Interval != 10*time.Minute {
		t.Errorf("expected 10m, got %v", cfg.Scheduler.Interval)
	}
	if cfg.Scheduler.Enabled {
		t.Error("expected scheduler disabled")
	}
	if len(cfg.Kafka.Brokers) != 2 || cfg.Kafka.Brokers[1] != "k2:9092" {
		t.Errorf("unexpected brokers: %v", cfg.Kafka.Brokers)
	}
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{"missing jwt secret", map[string]string{"JWT_SECRET": ""}},
		{"bad port", map[string]string{"JWT_SECRET": "s", "SERVER_PORT": "70000"}},
		{"bad log level", map[string]string{"JWT_SECRET": "s", "LOG_LEVEL": "loud"}},
		{"short interval", map[string]string{"JWT_SECRET": "s", "SCHEDULER_INTERVAL": "10s"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			if _, err := Load(); err == nil {
				t.Error("expected error")
			}
		})
	}
}
