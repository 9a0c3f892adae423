package config

import (
	"errors"
	"testing"
	"time"
)

func TestLoad_AppliesDefaults(t *testing.T) {
	t.Setenv("PULSAR_SESSION_SECRET", "test-secret")

	c, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if c.PQCSecurityLevel != 768 {
		t.Errorf("PQCSecurityLevel = %d, want 768", c.PQCSecurityLevel)
	}
	if c.AnchorNetwork != "none" {
		t.Errorf("AnchorNetwork = %q, want none", c.AnchorNetwork)
	}
	if c.BatchMaxAge != 30*time.Second {
		t.Errorf("BatchMaxAge = %v, want 30s", c.BatchMaxAge)
	}
	if c.DataDir != "data" {
		t.Errorf("DataDir = %q, want data", c.DataDir)
	}
}

func TestLoad_MissingSessionSecretFails(t *testing.T) {
	_, err := Load()
	if !errors.Is(err, ErrConfigInvalid) {
		t.Fatalf("expected ErrConfigInvalid, got %v", err)
	}
}

func TestLoad_RejectsInvalidPQCLevel(t *testing.T) {
	t.Setenv("PULSAR_SESSION_SECRET", "test-secret")
	t.Setenv("PQC_SECURITY_LEVEL", "512")

	_, err := Load()
	if !errors.Is(err, ErrConfigInvalid) {
		t.Fatalf("expected ErrConfigInvalid, got %v", err)
	}
}

func TestLoad_RejectsInvalidAnchorNetwork(t *testing.T) {
	t.Setenv("PULSAR_SESSION_SECRET", "test-secret")
	t.Setenv("ANCHOR_NETWORK", "bitcoin")

	_, err := Load()
	if !errors.Is(err, ErrConfigInvalid) {
		t.Fatalf("expected ErrConfigInvalid, got %v", err)
	}
}

func TestLoad_HonorsOverrides(t *testing.T) {
	t.Setenv("PULSAR_SESSION_SECRET", "test-secret")
	t.Setenv("PQC_SECURITY_LEVEL", "1024")
	t.Setenv("ANCHOR_NETWORK", "testnet")
	t.Setenv("BATCH_MAX", "10")

	c, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if c.PQCSecurityLevel != 1024 {
		t.Errorf("PQCSecurityLevel = %d, want 1024", c.PQCSecurityLevel)
	}
	if c.AnchorNetwork != "testnet" {
		t.Errorf("AnchorNetwork = %q, want testnet", c.AnchorNetwork)
	}
	if c.BatchMax != 10 {
		t.Errorf("BatchMax = %d, want 10", c.BatchMax)
	}
}
