package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultAppConfig_PassesValidation(t *testing.T) {
	cfg := DefaultAppConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("expected defaults to validate, got %v", err)
	}
}

func TestLoad_MissingFileFallsBackToDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("expected no error for missing config file, got %v", err)
	}
	if cfg.Pipeline.TickIntervalSec != 0.1 {
		t.Fatalf("expected default tick interval, got %f", cfg.Pipeline.TickIntervalSec)
	}
}

func TestLoad_YAMLOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	yamlContent := "data_root: /tmp/custom\nrisk:\n  risk_pct: 0.02\n"
	if err := os.WriteFile(path, []byte(yamlContent), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if cfg.DataRoot != "/tmp/custom" {
		t.Fatalf("expected overridden data_root, got %s", cfg.DataRoot)
	}
	if cfg.Risk.RiskPct != 0.02 {
		t.Fatalf("expected overridden risk_pct, got %f", cfg.Risk.RiskPct)
	}
}

func TestLoad_EnvOverrideTakesPrecedence(t *testing.T) {
	t.Setenv("ICT_DATA_ROOT", "/tmp/env-root")
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if cfg.DataRoot != "/tmp/env-root" {
		t.Fatalf("expected env override, got %s", cfg.DataRoot)
	}
}

func TestValidate_RejectsEmptySymbols(t *testing.T) {
	cfg := DefaultAppConfig()
	cfg.Pipeline.Symbols = nil
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected validation error for empty symbols")
	}
}

func TestValidate_RejectsPostgresEnabledWithoutDSN(t *testing.T) {
	cfg := DefaultAppConfig()
	cfg.Postgres.Enabled = true
	cfg.Postgres.DSN = ""
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected validation error for enabled postgres without dsn")
	}
}
