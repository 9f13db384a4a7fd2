// Package config loads application configuration from environment variables
// (and an optional .env file). Nothing here talks to the network or the
// database; it only resolves values and defaults.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/aristath/portfolio/internal/utils"
	"github.com/joho/godotenv"
)

// Config holds every tunable named in spec §4 and §6.
type Config struct {
	DataDir  string // base directory for the market/ledger/cache sqlite files
	LogLevel string
	Port     int // optional read-only HTTP query API

	FinnhubAPIKey    string
	TwelveDataAPIKey string
	Watchlist        []string

	// Strategy-selection thresholds (§4.3).
	StockIncrementalThresholdDays int
	FinancialRefreshDays          int
	InterSymbolDelay              time.Duration
	RequestTimeout                time.Duration

	// Downloader retry envelope (§4.2).
	MaxRetries int
	BaseDelay  time.Duration

	// Analytics defaults (§4.7).
	DropAlertDays             int
	DropAlertThresholdPct     float64
	DropAlert7dThresholdPct   float64

	// Optional S3-compatible backup target (internal/backup).
	Backup BackupConfig
}

// BackupConfig configures periodic sqlite-snapshot uploads. Enabled turns
// the backup job on; Validate rejects Enabled with an empty Bucket.
type BackupConfig struct {
	Enabled       bool
	Bucket        string
	Endpoint      string
	AccessKey     string
	SecretKey     string
	RetentionDays int
}

// Load reads configuration from the environment. dataDirOverride, when
// provided and non-empty, takes precedence over PORTFOLIO_DATA_DIR (mirrors
// the CLI-flag-beats-env-var priority used throughout the stack).
func Load(dataDirOverride ...string) (*Config, error) {
	_ = godotenv.Load()

	var dataDir string
	if len(dataDirOverride) > 0 && dataDirOverride[0] != "" {
		dataDir = dataDirOverride[0]
	} else {
		dataDir = getEnv("PORTFOLIO_DATA_DIR", "")
		if dataDir == "" {
			dataDir = "./data"
		}
	}

	absDataDir, err := filepath.Abs(dataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve data directory path: %w", err)
	}
	if err := os.MkdirAll(absDataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	cfg := &Config{
		DataDir:  absDataDir,
		LogLevel: getEnv("LOG_LEVEL", "info"),
		Port:     getEnvAsInt("PORT", 8080),

		FinnhubAPIKey:    firstNonEmpty(getEnv("FINNHUB_API_KEY", ""), getEnv("FINNHUB_TOKEN", "")),
		TwelveDataAPIKey: getEnv("TWELVE_DATA_API_KEY", ""),
		Watchlist:        utils.ParseCSV(getEnv("WATCHLIST", "")),

		StockIncrementalThresholdDays: getEnvAsInt("STOCK_INCREMENTAL_THRESHOLD_DAYS", 100),
		FinancialRefreshDays:          getEnvAsInt("FINANCIAL_REFRESH_DAYS", 90),
		InterSymbolDelay:              time.Duration(getEnvAsInt("INTER_SYMBOL_DELAY_SECONDS", 2)) * time.Second,
		RequestTimeout:                time.Duration(getEnvAsInt("REQUEST_TIMEOUT_SECONDS", 30)) * time.Second,

		MaxRetries: getEnvAsInt("DOWNLOADER_MAX_RETRIES", 3),
		BaseDelay:  time.Duration(getEnvAsInt("DOWNLOADER_BASE_DELAY_SECONDS", 30)) * time.Second,

		DropAlertDays:           getEnvAsInt("DROP_ALERT_DAYS", 1),
		DropAlertThresholdPct:   getEnvAsFloat("DROP_ALERT_THRESHOLD_PCT", 15.0),
		DropAlert7dThresholdPct: getEnvAsFloat("DROP_ALERT_7D_THRESHOLD_PCT", 20.0),

		Backup: BackupConfig{
			Enabled:       getEnvAsBool("BACKUP_ENABLED", false),
			Bucket:        getEnv("BACKUP_S3_BUCKET", ""),
			Endpoint:      getEnv("BACKUP_S3_ENDPOINT", ""),
			AccessKey:     getEnv("BACKUP_S3_ACCESS_KEY", ""),
			SecretKey:     getEnv("BACKUP_S3_SECRET_KEY", ""),
			RetentionDays: getEnvAsInt("BACKUP_RETENTION_DAYS", 30),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks invariants that would otherwise surface as confusing
// failures deep inside the ingestion pipeline.
func (c *Config) Validate() error {
	if c.StockIncrementalThresholdDays <= 0 {
		return fmt.Errorf("STOCK_INCREMENTAL_THRESHOLD_DAYS must be positive")
	}
	if c.FinancialRefreshDays <= 0 {
		return fmt.Errorf("FINANCIAL_REFRESH_DAYS must be positive")
	}
	if c.Backup.Enabled && c.Backup.Bucket == "" {
		return fmt.Errorf("BACKUP_S3_BUCKET is required when BACKUP_ENABLED=true")
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
