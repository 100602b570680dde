package config

import (
	"strings"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Ledger.LookbackDays != 180 {
		t.Errorf("LookbackDays = %d, want 180", cfg.Ledger.LookbackDays)
	}
	if cfg.Ledger.StaleDays != 14 {
		t.Errorf("StaleDays = %d, want 14", cfg.Ledger.StaleDays)
	}
	if cfg.Ingest.ListenAddr != ":8080" {
		t.Errorf("ListenAddr = %q, want :8080", cfg.Ingest.ListenAddr)
	}
	if cfg.Ingest.ReconcileInterval != 0 {
		t.Errorf("ReconcileInterval = %v, want 0", cfg.Ingest.ReconcileInterval)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("LOOKBACK_DAYS", "30")
	t.Setenv("STALE_THRESHOLD_DAYS", "7")
	t.Setenv("RECONCILE_INTERVAL", "15m")
	t.Setenv("LEDGER_API_TOKEN", "tok")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Ledger.LookbackDays != 30 {
		t.Errorf("LookbackDays = %d, want 30", cfg.Ledger.LookbackDays)
	}
	if cfg.Ledger.StaleDays != 7 {
		t.Errorf("StaleDays = %d, want 7", cfg.Ledger.StaleDays)
	}
	if cfg.Ingest.ReconcileInterval != 15*time.Minute {
		t.Errorf("ReconcileInterval = %v, want 15m", cfg.Ingest.ReconcileInterval)
	}
	if cfg.Ledger.APIToken != "tok" {
		t.Errorf("APIToken = %q, want tok", cfg.Ledger.APIToken)
	}
}

func TestLoadInvalidInt(t *testing.T) {
	t.Setenv("LOOKBACK_DAYS", "not-a-number")
	if _, err := Load(); err == nil {
		t.Error("Load() should reject a non-numeric LOOKBACK_DAYS")
	}
}

func TestValidate(t *testing.T) {
	cfg := &Config{}
	cfg.Ledger.APIToken = "tok"

	if err := cfg.Validate("LEDGER_API_TOKEN"); err != nil {
		t.Errorf("Validate() with token set error = %v", err)
	}

	err := cfg.Validate("LEDGER_API_TOKEN", "INGEST_TOKEN", "DATABASE_PATH")
	if err == nil {
		t.Fatal("Validate() should report missing keys")
	}
	if !strings.Contains(err.Error(), "INGEST_TOKEN") || !strings.Contains(err.Error(), "DATABASE_PATH") {
		t.Errorf("error should name the missing keys, got %v", err)
	}
}
