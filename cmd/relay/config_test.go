package main

import (
	"testing"
	"time"
)

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("LOG_DEBUG", "")
	t.Setenv("SESSION_MAX_DURATION", "")
	t.Setenv("REQUIRED_TIER", "")
	cfg := loadConfig()
	if cfg.logDebug {
		t.Fatalf("debug logging should be off by default")
	}
	if cfg.maxDuration != 300*time.Second || cfg.requiredTier != "pro" {
		t.Fatalf("cfg=%+v", cfg)
	}
}

func TestLoadConfigOverrides(t *testing.T) {
	t.Setenv("LOG_DEBUG", "true")
	t.Setenv("SESSION_MAX_DURATION", "90s")
	t.Setenv("MAX_CONCURRENT_SESSIONS", "7")
	cfg := loadConfig()
	if !cfg.logDebug {
		t.Fatalf("LOG_DEBUG=true not applied")
	}
	if cfg.maxDuration != 90*time.Second || cfg.maxConcurrent != 7 {
		t.Fatalf("cfg=%+v", cfg)
	}
}
