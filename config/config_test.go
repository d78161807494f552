package config

import (
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	cfg := Load()
	def := Default()

	if cfg.RateLimit != def.RateLimit {
		t.Errorf("rate limit settings = %+v, want defaults %+v", cfg.RateLimit, def.RateLimit)
	}
	if cfg.Resilience != def.Resilience {
		t.Errorf("resilience settings = %+v, want defaults %+v", cfg.Resilience, def.Resilience)
	}
	if cfg.Logging.Level != "info" || cfg.Logging.Format != "json" {
		t.Errorf("logging = %+v, want info/json", cfg.Logging)
	}
}

func TestLoad_EnvironmentOverrides(t *testing.T) {
	t.Setenv(EnvRateLimitLimit, "250")
	t.Setenv(EnvRateLimitWindowMS, "30000")
	t.Setenv(EnvRateLimitEnabled, "false")
	t.Setenv(EnvFailureThreshold, "10")
	t.Setenv(EnvResetTimeoutMS, "5000")
	t.Setenv(EnvMaxAttempts, "5")
	t.Setenv(EnvBackoffMultiplier, "3")
	t.Setenv(EnvLogLevel, "debug")

	cfg := Load()

	if cfg.RateLimit.Limit != 250 {
		t.Errorf("limit = %d, want 250", cfg.RateLimit.Limit)
	}
	if cfg.RateLimit.Window != 30*time.Second {
		t.Errorf("window = %s, want 30s", cfg.RateLimit.Window)
	}
	if cfg.RateLimit.Enabled {
		t.Error("expected rate limiting disabled")
	}
	if cfg.Resilience.FailureThreshold != 10 {
		t.Errorf("failure threshold = %d, want 10", cfg.Resilience.FailureThreshold)
	}
	if cfg.Resilience.ResetTimeout != 5*time.Second {
		t.Errorf("reset timeout = %s, want 5s", cfg.Resilience.ResetTimeout)
	}
	if cfg.Resilience.MaxAttempts != 5 {
		t.Errorf("max attempts = %d, want 5", cfg.Resilience.MaxAttempts)
	}
	if cfg.Resilience.Multiplier != 3 {
		t.Errorf("multiplier = %f, want 3", cfg.Resilience.Multiplier)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("log level = %s, want debug", cfg.Logging.Level)
	}
}

func TestLoad_OutOfRangeFallsBackToDefault(t *testing.T) {
	t.Setenv(EnvRateLimitLimit, "0")            // below min=1
	t.Setenv(EnvRateLimitWindowMS, "10")        // below min=1s
	t.Setenv(EnvMaxAttempts, "100")             // above max=20
	t.Setenv(EnvBackoffMultiplier, "0.5")       // below min=1
	t.Setenv(EnvMonitoringPeriodMS, "99999999") // above max=1h

	cfg := Load()
	def := Default()

	if cfg.RateLimit.Limit != def.RateLimit.Limit {
		t.Errorf("limit = %d, want default %d", cfg.RateLimit.Limit, def.RateLimit.Limit)
	}
	if cfg.RateLimit.Window != def.RateLimit.Window {
		t.Errorf("window = %s, want default %s", cfg.RateLimit.Window, def.RateLimit.Window)
	}
	if cfg.Resilience.MaxAttempts != def.Resilience.MaxAttempts {
		t.Errorf("max attempts = %d, want default %d", cfg.Resilience.MaxAttempts, def.Resilience.MaxAttempts)
	}
	if cfg.Resilience.Multiplier != def.Resilience.Multiplier {
		t.Errorf("multiplier = %f, want default %f", cfg.Resilience.Multiplier, def.Resilience.Multiplier)
	}
	if cfg.Resilience.MonitoringPeriod != def.Resilience.MonitoringPeriod {
		t.Errorf("monitoring period = %s, want default %s", cfg.Resilience.MonitoringPeriod, def.Resilience.MonitoringPeriod)
	}
}

func TestLoad_MalformedValuesFallBack(t *testing.T) {
	t.Setenv(EnvRateLimitLimit, "not-a-number")
	t.Setenv(EnvResetTimeoutMS, "soon")

	cfg := Load()
	def := Default()

	// Unparseable values read as zero, which is out of range.
	if cfg.RateLimit.Limit != def.RateLimit.Limit {
		t.Errorf("limit = %d, want default %d", cfg.RateLimit.Limit, def.RateLimit.Limit)
	}
	if cfg.Resilience.ResetTimeout != def.Resilience.ResetTimeout {
		t.Errorf("reset timeout = %s, want default %s", cfg.Resilience.ResetTimeout, def.Resilience.ResetTimeout)
	}
}

func TestLoad_InvalidLogLevelFallsBack(t *testing.T) {
	t.Setenv(EnvLogLevel, "extremely-verbose")

	cfg := Load()

	if cfg.Logging.Level != "info" {
		t.Errorf("log level = %s, want the info fallback", cfg.Logging.Level)
	}
}

func TestDefault_PassesValidation(t *testing.T) {
	if err := validate.Struct(Default()); err != nil {
		t.Errorf("defaults must satisfy their own validation tags: %v", err)
	}
}
