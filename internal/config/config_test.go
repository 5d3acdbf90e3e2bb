package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

var envKeys = []string{
	"NEU_DIR", "BIDS_ROOT", "RAW_MEG_DIR", "CTF_DIR", "MEG_KEY", "SUBJECT_KEY",
	"EMPTYROOM_URL", "MEG2BIDS_DB", "EMPTYROOM_MONTH_WINDOW",
	"EMPTYROOM_SEARCH_LAST_LISTING", "CATALOG_CACHE_TTL", "EMPTYROOM_MAX_RETRIES", "LOG_LEVEL",
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range envKeys {
		t.Setenv(k, "")
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.BIDSRoot != filepath.Join(DefaultNEUDir, "Data") {
		t.Errorf("BIDSRoot = %q", cfg.BIDSRoot)
	}
	if cfg.MEGKey != filepath.Join(DefaultNEUDir, "Scripts_and_Parameters", "meg_key") {
		t.Errorf("MEGKey = %q", cfg.MEGKey)
	}
	if cfg.EmptyRoomURL != DefaultEmptyRoomURL {
		t.Errorf("EmptyRoomURL = %q", cfg.EmptyRoomURL)
	}
	if cfg.Policy.MonthWindow != 1 || !cfg.Policy.SearchLastListing {
		t.Errorf("Policy = %+v, want window 1 with last listing", cfg.Policy)
	}
	if cfg.CacheTTL != DefaultCacheTTL || cfg.LogLevel != DefaultLogLevel {
		t.Errorf("CacheTTL = %v, LogLevel = %q", cfg.CacheTTL, cfg.LogLevel)
	}
}

func TestLoadOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("NEU_DIR", "/share")
	t.Setenv("CTF_DIR", "/elsewhere/ctf")
	t.Setenv("EMPTYROOM_MONTH_WINDOW", "3")
	t.Setenv("EMPTYROOM_SEARCH_LAST_LISTING", "false")
	t.Setenv("CATALOG_CACHE_TTL", "30m")
	t.Setenv("EMPTYROOM_MAX_RETRIES", "0")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.BIDSRoot != filepath.Join("/share", "Data") {
		t.Errorf("BIDSRoot = %q", cfg.BIDSRoot)
	}
	if cfg.CTFDir != "/elsewhere/ctf" {
		t.Errorf("CTFDir = %q", cfg.CTFDir)
	}
	if cfg.Policy.MonthWindow != 3 || cfg.Policy.SearchLastListing {
		t.Errorf("Policy = %+v", cfg.Policy)
	}
	if cfg.CacheTTL != 30*time.Minute {
		t.Errorf("CacheTTL = %v", cfg.CacheTTL)
	}
	if cfg.MaxRetries != 0 {
		t.Errorf("MaxRetries = %d", cfg.MaxRetries)
	}
}

func TestLoadInvalid(t *testing.T) {
	tests := []struct {
		key, value string
	}{
		{"EMPTYROOM_MONTH_WINDOW", "-1"},
		{"EMPTYROOM_MONTH_WINDOW", "one"},
		{"EMPTYROOM_SEARCH_LAST_LISTING", "maybe"},
		{"CATALOG_CACHE_TTL", "6"},
		{"EMPTYROOM_MAX_RETRIES", "x"},
	}
	for _, tt := range tests {
		t.Run(tt.key+"="+tt.value, func(t *testing.T) {
			clearEnv(t)
			t.Setenv(tt.key, tt.value)
			if _, err := Load(); err == nil {
				t.Errorf("Load() accepted %s=%s", tt.key, tt.value)
			}
		})
	}
}

func TestLoadEnv(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "test.env")
	if err := os.WriteFile(path, []byte("BIDS_ROOT=/from/env/file\n"), 0644); err != nil {
		t.Fatal(err)
	}
	// godotenv does not override variables that are already set
	os.Unsetenv("BIDS_ROOT")

	if err := LoadEnv(path); err != nil {
		t.Fatalf("LoadEnv() error = %v", err)
	}
	cfg, err := Load()
	if err != nil {
		t.Fatal(err)
	}
	if cfg.BIDSRoot != "/from/env/file" {
		t.Errorf("BIDSRoot = %q", cfg.BIDSRoot)
	}

	if err := LoadEnv(filepath.Join(t.TempDir(), "missing.env")); err == nil {
		t.Error("LoadEnv(missing) returned no error")
	}
}
