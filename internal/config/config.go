// Package config resolves share locations and tuning knobs from the
// environment, optionally seeded from a .env file.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"

	"github.com/neu-lab/meg2bids/internal/calibration"
)

const (
	DefaultNEUDir        = "/Volumes/shares/NEU"
	DefaultEmptyRoomURL  = "https://kurage.nimh.nih.gov/EmptyRoom/"
	DefaultCacheTTL      = 6 * time.Hour
	DefaultLogLevel      = "info"
	defaultDBName        = "meg2bids.db"
	defaultMaxRetries    = 3
	defaultListingWindow = 1
)

// Config holds every path and setting the commands need
type Config struct {
	NEUDir       string
	BIDSRoot     string
	RawMEGDir    string
	CTFDir       string
	MEGKey       string
	SubjectKey   string
	EmptyRoomURL string
	DBPath       string
	Policy       calibration.Policy
	CacheTTL     time.Duration
	MaxRetries   int
	LogLevel     string
}

// LoadEnv reads a .env file into the process environment. A missing default
// .env is not an error; an explicitly named one is.
func LoadEnv(path string) error {
	if path == "" {
		_ = godotenv.Load()
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("failed to load env file %s: %w", path, err)
	}
	return nil
}

// Load builds a Config from the environment
func Load() (*Config, error) {
	neu := getenv("NEU_DIR", DefaultNEUDir)

	cfg := &Config{
		NEUDir:       neu,
		BIDSRoot:     getenv("BIDS_ROOT", filepath.Join(neu, "Data")),
		RawMEGDir:    getenv("RAW_MEG_DIR", filepath.Join(neu, "Raw_Data", "MEG", "Patients")),
		CTFDir:       getenv("CTF_DIR", filepath.Join(neu, "Projects", "CTF_MEG")),
		MEGKey:       getenv("MEG_KEY", filepath.Join(neu, "Scripts_and_Parameters", "meg_key")),
		SubjectKey:   getenv("SUBJECT_KEY", filepath.Join(neu, "Scripts_and_Parameters", "14N0061_key")),
		EmptyRoomURL: getenv("EMPTYROOM_URL", DefaultEmptyRoomURL),
		DBPath:       getenv("MEG2BIDS_DB", defaultDBPath()),
		Policy:       calibration.DefaultPolicy(),
		CacheTTL:     DefaultCacheTTL,
		MaxRetries:   defaultMaxRetries,
		LogLevel:     getenv("LOG_LEVEL", DefaultLogLevel),
	}

	if v := os.Getenv("EMPTYROOM_MONTH_WINDOW"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return nil, fmt.Errorf("invalid EMPTYROOM_MONTH_WINDOW %q: want a non-negative integer", v)
		}
		cfg.Policy.MonthWindow = n
	}
	if v := os.Getenv("EMPTYROOM_SEARCH_LAST_LISTING"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return nil, fmt.Errorf("invalid EMPTYROOM_SEARCH_LAST_LISTING %q: %w", v, err)
		}
		cfg.Policy.SearchLastListing = b
	}
	if v := os.Getenv("CATALOG_CACHE_TTL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return nil, fmt.Errorf("invalid CATALOG_CACHE_TTL %q: %w", v, err)
		}
		cfg.CacheTTL = d
	}
	if v := os.Getenv("EMPTYROOM_MAX_RETRIES"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return nil, fmt.Errorf("invalid EMPTYROOM_MAX_RETRIES %q: want a non-negative integer", v)
		}
		cfg.MaxRetries = n
	}

	return cfg, nil
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// defaultDBPath keeps the cache next to the user's other tool state
func defaultDBPath() string {
	dir, err := os.UserCacheDir()
	if err != nil {
		return defaultDBName
	}
	return filepath.Join(dir, "meg2bids", defaultDBName)
}
