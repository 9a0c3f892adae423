// Package config loads PULSAR SENTINEL's environment-driven configuration.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds every environment-driven setting recognized by the core.
type Config struct {
	PQCSecurityLevel   int // 768 or 1024
	KeyRotationDays    int
	KeyGracePeriodDays int
	RateLimitDefault   int
	StrikeThreshold    int
	HeirInactivityDays int
	AnchorNetwork      string // "mainnet", "testnet", "none"
	BatchMax           int
	BatchMaxAge        time.Duration
	SessionLifetime    time.Duration
	NonceLifetime      time.Duration

	DataDir    string
	SigningKey []byte // HMAC key for session tokens
}

// ErrConfigInvalid is returned when required configuration is missing or malformed.
var ErrConfigInvalid = fmt.Errorf("config: invalid configuration")

// Load reads configuration from the environment, applying spec-mandated
// defaults, and fails startup outright on malformed values.
func Load() (*Config, error) {
	c := &Config{
		PQCSecurityLevel:   envInt("PQC_SECURITY_LEVEL", 768),
		KeyRotationDays:    envInt("KEY_ROTATION_DAYS", 90),
		KeyGracePeriodDays: envInt("KEY_GRACE_PERIOD_DAYS", 30),
		RateLimitDefault:   envInt("RATE_LIMIT_DEFAULT", 5),
		StrikeThreshold:    envInt("STRIKE_THRESHOLD", 3),
		HeirInactivityDays: envInt("HEIR_INACTIVITY_DAYS", 90),
		AnchorNetwork:      envStr("ANCHOR_NETWORK", "none"),
		BatchMax:           envInt("BATCH_MAX", 50),
		BatchMaxAge:        time.Duration(envInt("BATCH_MAX_AGE_SEC", 30)) * time.Second,
		SessionLifetime:    time.Duration(envInt("SESSION_LIFETIME_SEC", 86400)) * time.Second,
		NonceLifetime:      time.Duration(envInt("NONCE_LIFETIME_SEC", 300)) * time.Second,
		DataDir:            envStr("PULSAR_DATA_DIR", "data"),
	}

	for _, key := range []string{"PQC_SECURITY_LEVEL", "KEY_ROTATION_DAYS", "KEY_GRACE_PERIOD_DAYS",
		"RATE_LIMIT_DEFAULT", "STRIKE_THRESHOLD", "HEIR_INACTIVITY_DAYS", "BATCH_MAX",
		"BATCH_MAX_AGE_SEC", "SESSION_LIFETIME_SEC", "NONCE_LIFETIME_SEC"} {
		if v := os.Getenv(key); v != "" {
			if _, err := strconv.Atoi(v); err != nil {
				return nil, fmt.Errorf("%w: %s must be an integer, got %q", ErrConfigInvalid, key, v)
			}
		}
	}
	if c.PQCSecurityLevel != 768 && c.PQCSecurityLevel != 1024 {
		return nil, fmt.Errorf("%w: PQC_SECURITY_LEVEL must be 768 or 1024, got %d", ErrConfigInvalid, c.PQCSecurityLevel)
	}
	switch c.AnchorNetwork {
	case "mainnet", "testnet", "none":
	default:
		return nil, fmt.Errorf("%w: ANCHOR_NETWORK must be mainnet, testnet, or none, got %q", ErrConfigInvalid, c.AnchorNetwork)
	}

	secret := os.Getenv("PULSAR_SESSION_SECRET")
	if secret == "" {
		return nil, fmt.Errorf("%w: PULSAR_SESSION_SECRET environment variable is required", ErrConfigInvalid)
	}
	c.SigningKey = []byte(secret)

	return c, nil
}

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}
