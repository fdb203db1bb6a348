package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	AppEnv string

	DBPath             string
	CatalogPrimaryPath string
	CatalogBackupPath  string
	OutputDir          string

	ERPBaseURL         string
	ERPAPIKey          string
	ERPAuthHeader      string
	ERPRateLimitRPS    int
	ERPTimeoutMs       int
	ERPMaxRetries      int
	ERPPageSize        int
	ERPBatchDelayMs    int
	ERPStoreID         int
	ERPPlaceholderKeys []string

	DefaultCategory         string
	DefaultBrand            string
	SourceTag               string
	ImageDenylist           []string
	MaxShrinkRatio          float64
	IntegrityDriftThreshold int

	SyncStaleAfterMin   int
	AutoSyncEnabled     bool
	AutoSyncIntervalMin int
	HistoryLimit        int
	PollIntervalSec     int
	AutoExportXLSX      bool

	HTTPAddr  string
	LogLevel  string
	LogFormat string
	LogOutput string
}

func Load() (Config, error) {
	_ = godotenv.Load()

	cwd, err := os.Getwd()
	if err != nil {
		return Config{}, err
	}

	cfg := Config{
		AppEnv: getEnv("APP_ENV", "development"),

		DBPath:             getEnv("DB_PATH", filepath.Join(cwd, "data", "sync.db")),
		CatalogPrimaryPath: getEnv("CATALOG_PRIMARY_PATH", filepath.Join(cwd, "data", "products.json")),
		CatalogBackupPath:  getEnv("CATALOG_BACKUP_PATH", filepath.Join(cwd, "data", "products2.json")),
		OutputDir:          getEnv("OUTPUT_DIR", filepath.Join(cwd, "out")),

		ERPBaseURL:         getEnv("ERP_BASE_URL", ""),
		ERPAPIKey:          getEnv("ERP_API_KEY", ""),
		ERPAuthHeader:      getEnv("ERP_AUTH_HEADER", "x-api-key"),
		ERPRateLimitRPS:    getEnvInt("ERP_RATE_LIMIT_RPS", 5),
		ERPTimeoutMs:       getEnvInt("ERP_TIMEOUT_MS", 30000),
		ERPMaxRetries:      getEnvInt("ERP_MAX_RETRIES", 5),
		ERPPageSize:        getEnvInt("ERP_PAGE_SIZE", 300),
		ERPBatchDelayMs:    getEnvInt("ERP_BATCH_DELAY_MS", 100),
		ERPStoreID:         getEnvInt("ERP_STORE_ID", 0),
		ERPPlaceholderKeys: getEnvList("ERP_PLACEHOLDER_TOKENS", []string{"undefined", "null"}),

		DefaultCategory:         getEnv("CATALOG_DEFAULT_CATEGORY", "GERAL"),
		DefaultBrand:            getEnv("CATALOG_DEFAULT_BRAND", "Sem marca"),
		SourceTag:               getEnv("CATALOG_SOURCE_TAG", "erp-sync"),
		ImageDenylist:           getEnvList("IMAGE_DENYLIST", []string{"images.unsplash.com", "placeholder"}),
		MaxShrinkRatio:          getEnvFloat("CATALOG_MAX_SHRINK_RATIO", 0.5),
		IntegrityDriftThreshold: getEnvInt("INTEGRITY_DRIFT_THRESHOLD", 10),

		SyncStaleAfterMin:   getEnvInt("SYNC_STALE_AFTER_MIN", 10),
		AutoSyncEnabled:     getEnvBool("AUTO_SYNC_ENABLED", true),
		AutoSyncIntervalMin: getEnvInt("AUTO_SYNC_INTERVAL_MIN", 60),
		HistoryLimit:        getEnvInt("HISTORY_LIMIT", 50),
		PollIntervalSec:     getEnvInt("SYNC_POLL_INTERVAL_SEC", 60),
		AutoExportXLSX:      getEnvBool("SYNC_AUTO_EXPORT_XLSX", false),

		HTTPAddr:  getEnv("HTTP_ADDR", ":8080"),
		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "json"),
		LogOutput: getEnv("LOG_OUTPUT", "stdout"),
	}

	if cfg.ERPPageSize <= 0 {
		cfg.ERPPageSize = 300
	}
	if cfg.ERPPageSize > MaxPageSize {
		cfg.ERPPageSize = MaxPageSize
	}

	return cfg, nil
}

// MaxPageSize is the largest page the ERP accepts.
const MaxPageSize = 500

func (c Config) Require(name, value string) error {
	if strings.TrimSpace(value) == "" {
		return fmt.Errorf("missing required env var: %s", name)
	}
	return nil
}

// RequireERP checks the settings needed by commands that call the ERP.
func (c Config) RequireERP() error {
	if err := c.Require("ERP_BASE_URL", c.ERPBaseURL); err != nil {
		return err
	}
	return c.Require("ERP_API_KEY", c.ERPAPIKey)
}

func (c Config) ERPTimeout() time.Duration {
	return time.Duration(c.ERPTimeoutMs) * time.Millisecond
}

func (c Config) ERPBatchDelay() time.Duration {
	return time.Duration(c.ERPBatchDelayMs) * time.Millisecond
}

func (c Config) SyncStaleAfter() time.Duration {
	return time.Duration(c.SyncStaleAfterMin) * time.Minute
}

func (c Config) AutoSyncInterval() time.Duration {
	return time.Duration(c.AutoSyncIntervalMin) * time.Minute
}

func (c Config) PollInterval() time.Duration {
	if c.PollIntervalSec <= 0 {
		return time.Minute
	}
	return time.Duration(c.PollIntervalSec) * time.Second
}

func (c Config) IsProduction() bool {
	return strings.EqualFold(c.AppEnv, "production")
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	value := getEnv(key, "")
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvFloat(key string, fallback float64) float64 {
	value := getEnv(key, "")
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvBool(key string, fallback bool) bool {
	value := strings.ToLower(strings.TrimSpace(getEnv(key, "")))
	if value == "" {
		return fallback
	}
	if value == "1" || value == "true" || value == "yes" || value == "on" {
		return true
	}
	if value == "0" || value == "false" || value == "no" || value == "off" {
		return false
	}
	return fallback
}

// getEnvList splits a comma separated value, dropping blank entries.
func getEnvList(key string, fallback []string) []string {
	value := getEnv(key, "")
	if strings.TrimSpace(value) == "" {
		return fallback
	}
	out := []string{}
	for _, part := range strings.Split(value, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return fallback
	}
	return out
}
