// Package config loads the resilience and admission-control tunables from
// the environment once at startup. Every value has a documented default and
// a validated range; out-of-range or missing values fall back to the
// default instead of failing startup.
package config

import (
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/ideaforge/forgekit/logger"
)

// RateLimitSettings holds admission-control tunables.
type RateLimitSettings struct {
	// Enabled controls whether inbound rate limiting is active.
	Enabled bool `mapstructure:"enabled"`
	// Limit is the number of requests allowed per window per identifier.
	Limit int `mapstructure:"limit" validate:"min=1,max=100000"`
	// Window is the sliding window length.
	Window time.Duration `mapstructure:"window" validate:"min=1s,max=1h"`
	// MaxIdentifiers caps the tracked identifier count.
	MaxIdentifiers int `mapstructure:"max_identifiers" validate:"min=100,max=1000000"`
	// MaxTimestampsPerIdentifier caps retained timestamps per identifier.
	MaxTimestampsPerIdentifier int `mapstructure:"max_timestamps" validate:"min=10,max=100000"`
	// SweepInterval is how often idle identifiers are dropped.
	SweepInterval time.Duration `mapstructure:"sweep_interval" validate:"min=1s,max=1h"`
}

// ResilienceSettings holds the default settings outbound clients start from.
type ResilienceSettings struct {
	// FailureThreshold opens a circuit after this many failures in the window.
	FailureThreshold int `mapstructure:"failure_threshold" validate:"min=1,max=1000"`
	// ResetTimeout is how long an open circuit rejects calls.
	ResetTimeout time.Duration `mapstructure:"reset_timeout" validate:"min=100ms,max=10m"`
	// MonitoringPeriod is the failure-counting window.
	MonitoringPeriod time.Duration `mapstructure:"monitoring_period" validate:"min=1s,max=1h"`
	// MaxAttempts is the retry budget including the first attempt.
	MaxAttempts int `mapstructure:"max_attempts" validate:"min=1,max=20"`
	// BaseDelay is the initial backoff delay and jitter bound.
	BaseDelay time.Duration `mapstructure:"base_delay" validate:"min=1ms,max=1m"`
	// MaxDelay caps the backoff delay.
	MaxDelay time.Duration `mapstructure:"max_delay" validate:"min=1ms,max=10m"`
	// Multiplier is the exponential backoff factor.
	Multiplier float64 `mapstructure:"multiplier" validate:"min=1,max=10"`
	// Timeout bounds a single attempt.
	Timeout time.Duration `mapstructure:"timeout" validate:"min=10ms,max=10m"`
}

// Config is the top-level configuration loaded once at startup.
type Config struct {
	Logging    logger.Config      `mapstructure:"logging"`
	RateLimit  RateLimitSettings  `mapstructure:"rate_limit"`
	Resilience ResilienceSettings `mapstructure:"resilience"`
}

// Default returns the documented defaults.
func Default() *Config {
	return &Config{
		Logging: logger.Config{Level: "info", Format: logger.FormatJSON, Output: "stdout"},
		RateLimit: RateLimitSettings{
			Enabled:                    true,
			Limit:                      100,
			Window:                     time.Minute,
			MaxIdentifiers:             10000,
			MaxTimestampsPerIdentifier: 1000,
			SweepInterval:              5 * time.Minute,
		},
		Resilience: ResilienceSettings{
			FailureThreshold: 5,
			ResetTimeout:     30 * time.Second,
			MonitoringPeriod: time.Minute,
			MaxAttempts:      3,
			BaseDelay:        200 * time.Millisecond,
			MaxDelay:         10 * time.Second,
			Multiplier:       2.0,
			Timeout:          30 * time.Second,
		},
	}
}

// Environment variable names. Durations are expressed in milliseconds.
const (
	EnvRateLimitEnabled        = "RATE_LIMIT_ENABLED"
	EnvRateLimitLimit          = "RATE_LIMIT_LIMIT"
	EnvRateLimitWindowMS       = "RATE_LIMIT_WINDOW_MS"
	EnvRateLimitMaxIdentifiers = "RATE_LIMIT_MAX_IDENTIFIERS"
	EnvRateLimitMaxTimestamps  = "RATE_LIMIT_MAX_TIMESTAMPS"
	EnvRateLimitSweepMS        = "RATE_LIMIT_SWEEP_INTERVAL_MS"

	EnvFailureThreshold   = "RESILIENCE_FAILURE_THRESHOLD"
	EnvResetTimeoutMS     = "RESILIENCE_RESET_TIMEOUT_MS"
	EnvMonitoringPeriodMS = "RESILIENCE_MONITORING_PERIOD_MS"
	EnvMaxAttempts        = "RESILIENCE_MAX_ATTEMPTS"
	EnvBaseDelayMS        = "RESILIENCE_BASE_DELAY_MS"
	EnvMaxDelayMS         = "RESILIENCE_MAX_DELAY_MS"
	EnvBackoffMultiplier  = "RESILIENCE_BACKOFF_MULTIPLIER"
	EnvTimeoutMS          = "RESILIENCE_TIMEOUT_MS"

	EnvLogLevel  = "LOG_LEVEL"
	EnvLogFormat = "LOG_FORMAT"
)

var validate = validator.New()

// Load reads configuration from the environment (and a .env file when one
// is present). Values outside their documented range fall back to the
// default for that field; Load never fails because of a bad tunable.
func Load() *Config {
	// Best effort: a missing .env file is the normal production case.
	_ = godotenv.Load()

	v := viper.New()
	v.AutomaticEnv()

	def := Default()
	cfg := &Config{
		Logging: logger.Config{
			Level:  stringOr(v, EnvLogLevel, def.Logging.Level),
			Format: stringOr(v, EnvLogFormat, def.Logging.Format),
			Output: def.Logging.Output,
		},
		RateLimit: RateLimitSettings{
			Enabled:                    boolOr(v, EnvRateLimitEnabled, def.RateLimit.Enabled),
			Limit:                      intInRange(v, EnvRateLimitLimit, def.RateLimit.Limit, 1, 100000),
			Window:                     millisInRange(v, EnvRateLimitWindowMS, def.RateLimit.Window, time.Second, time.Hour),
			MaxIdentifiers:             intInRange(v, EnvRateLimitMaxIdentifiers, def.RateLimit.MaxIdentifiers, 100, 1000000),
			MaxTimestampsPerIdentifier: intInRange(v, EnvRateLimitMaxTimestamps, def.RateLimit.MaxTimestampsPerIdentifier, 10, 100000),
			SweepInterval:              millisInRange(v, EnvRateLimitSweepMS, def.RateLimit.SweepInterval, time.Second, time.Hour),
		},
		Resilience: ResilienceSettings{
			FailureThreshold: intInRange(v, EnvFailureThreshold, def.Resilience.FailureThreshold, 1, 1000),
			ResetTimeout:     millisInRange(v, EnvResetTimeoutMS, def.Resilience.ResetTimeout, 100*time.Millisecond, 10*time.Minute),
			MonitoringPeriod: millisInRange(v, EnvMonitoringPeriodMS, def.Resilience.MonitoringPeriod, time.Second, time.Hour),
			MaxAttempts:      intInRange(v, EnvMaxAttempts, def.Resilience.MaxAttempts, 1, 20),
			BaseDelay:        millisInRange(v, EnvBaseDelayMS, def.Resilience.BaseDelay, time.Millisecond, time.Minute),
			MaxDelay:         millisInRange(v, EnvMaxDelayMS, def.Resilience.MaxDelay, time.Millisecond, 10*time.Minute),
			Multiplier:       floatInRange(v, EnvBackoffMultiplier, def.Resilience.Multiplier, 1, 10),
			Timeout:          millisInRange(v, EnvTimeoutMS, def.Resilience.Timeout, 10*time.Millisecond, 10*time.Minute),
		},
	}

	if err := cfg.Logging.Validate(); err != nil {
		logger.Warn("invalid logging configuration, using defaults", logger.Fields("error", err.Error()))
		cfg.Logging = def.Logging
	}
	// Range fallbacks above guarantee this passes; a failure here is a
	// programming error worth surfacing loudly in logs.
	if err := validate.Struct(cfg); err != nil {
		logger.Error("configuration failed validation after range fallback", logger.Fields("error", err.Error()))
		return def
	}

	return cfg
}

// --- range helpers: out-of-range values fall back to the default ---

func stringOr(v *viper.Viper, key, def string) string {
	if !v.IsSet(key) {
		return def
	}
	if s := v.GetString(key); s != "" {
		return s
	}
	return def
}

func boolOr(v *viper.Viper, key string, def bool) bool {
	if !v.IsSet(key) {
		return def
	}
	return v.GetBool(key)
}

func intInRange(v *viper.Viper, key string, def, min, max int) int {
	if !v.IsSet(key) {
		return def
	}
	value := v.GetInt(key)
	if value < min || value > max {
		logger.Warn("configuration value out of range, using default", logger.Fields(
			"key", key, "value", value, "default", def,
		))
		return def
	}
	return value
}

func millisInRange(v *viper.Viper, key string, def time.Duration, min, max time.Duration) time.Duration {
	if !v.IsSet(key) {
		return def
	}
	value := time.Duration(v.GetInt64(key)) * time.Millisecond
	if value < min || value > max {
		logger.Warn("configuration value out of range, using default", logger.Fields(
			"key", key, "value_ms", value.Milliseconds(), "default_ms", def.Milliseconds(),
		))
		return def
	}
	return value
}

func floatInRange(v *viper.Viper, key string, def, min, max float64) float64 {
	if !v.IsSet(key) {
		return def
	}
	value := v.GetFloat64(key)
	if value < min || value > max {
		logger.Warn("configuration value out of range, using default", logger.Fields(
			"key", key, "value", value, "default", def,
		))
		return def
	}
	return value
}
