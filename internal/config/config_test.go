package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg := Load()

	if cfg.Port != "8080" {
		t.Errorf("expected default port 8080, got %s", cfg.Port)
	}
	if cfg.ReferencePrefix != "APT" {
		t.Errorf("expected default reference prefix APT, got %s", cfg.ReferencePrefix)
	}
	if cfg.ReferenceMaxAttempts != 5 {
		t.Errorf("expected 5 reference attempts, got %d", cfg.ReferenceMaxAttempts)
	}
	if cfg.StartGraceWindow != 15*time.Minute {
		t.Errorf("expected 15m grace window, got %s", cfg.StartGraceWindow)
	}
	if cfg.DefaultCurrency != "USD" {
		t.Errorf("expected USD, got %s", cfg.DefaultCurrency)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("START_GRACE_WINDOW", "30m")
	t.Setenv("REFERENCE_MAX_ATTEMPTS", "3")
	t.Setenv("DEFAULT_CURRENCY", "eur")
	t.Setenv("REDIS_TLS", "true")
	t.Setenv("RATE_LIMIT_PER_SECOND", "2.5")

	cfg := Load()

	if cfg.Port != "9090" {
		t.Errorf("expected port 9090, got %s", cfg.Port)
	}
	if cfg.StartGraceWindow != 30*time.Minute {
		t.Errorf("expected 30m grace window, got %s", cfg.StartGraceWindow)
	}
	if cfg.ReferenceMaxAttempts != 3 {
		t.Errorf("expected 3 attempts, got %d", cfg.ReferenceMaxAttempts)
	}
	if cfg.DefaultCurrency != "EUR" {
		t.Errorf("expected currency upper-cased, got %s", cfg.DefaultCurrency)
	}
	if !cfg.RedisTLS {
		t.Error("expected redis TLS enabled")
	}
	if cfg.RateLimitPerSecond != 2.5 {
		t.Errorf("expected 2.5 rps, got %f", cfg.RateLimitPerSecond)
	}
}

func TestInvalidValuesFallBack(t *testing.T) {
	t.Setenv("REFERENCE_MAX_ATTEMPTS", "not-a-number")
	t.Setenv("START_GRACE_WINDOW", "soon")

	cfg := Load()

	if cfg.ReferenceMaxAttempts != 5 {
		t.Errorf("expected fallback to 5, got %d", cfg.ReferenceMaxAttempts)
	}
	if cfg.StartGraceWindow != 15*time.Minute {
		t.Errorf("expected fallback to 15m, got %s", cfg.StartGraceWindow)
	}
}
