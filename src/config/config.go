package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type AppConfig struct {
	LogLevel  string
	LogFormat string

	TradesIndexPath     string
	AnalyticsOutputPath string
	SummariesDir        string
	AccountConfigPath   string
	AuditDBPath         string
	ReportCachePath     string

	StoreLockTimeout   time.Duration
	MaxImportSizeBytes int64
	SkippedRowLogBurst int
}

var Cfg *AppConfig

func LoadConfig() {
	errEnv := godotenv.Load()
	if errEnv != nil && !os.IsNotExist(errEnv) {
		log.Println("Info: error loading .env file, relying on OS environment variables and defaults:", errEnv)
	}

	maxImportSizeBytesStr := getEnv("MAX_IMPORT_SIZE_BYTES", "10485760")
	maxImportSizeBytes, err := strconv.ParseInt(maxImportSizeBytesStr, 10, 64)
	if err != nil || maxImportSizeBytes <= 0 {
		log.Printf("WARNING: Invalid MAX_IMPORT_SIZE_BYTES format '%s'. Using default 10MB.", maxImportSizeBytesStr)
		maxImportSizeBytes = 10 * 1024 * 1024
	}

	Cfg = &AppConfig{
		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "json"),

		TradesIndexPath:     getEnv("TRADES_INDEX_PATH", "index.directory/trades-index.json"),
		AnalyticsOutputPath: getEnv("ANALYTICS_OUTPUT_PATH", "index.directory/assets/charts/analytics-data.json"),
		SummariesDir:        getEnv("SUMMARIES_DIR", "summaries"),
		AccountConfigPath:   getEnv("ACCOUNT_CONFIG_PATH", "index.directory/account-config.json"),
		AuditDBPath:         getEnv("AUDIT_DB_PATH", "index.directory/import-audit.db"),
		ReportCachePath:     getEnv("REPORT_CACHE_PATH", "index.directory/.analytics-cache.json"),

		StoreLockTimeout:   getEnvAsDuration("STORE_LOCK_TIMEOUT", 10*time.Second),
		MaxImportSizeBytes: maxImportSizeBytes,
		SkippedRowLogBurst: getEnvAsInt("SKIPPED_ROW_LOG_BURST", 20),
	}
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists && value != "" {
		return value
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return fallback
	}
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	log.Printf("Invalid integer value for %s ('%s'), using default: %d", key, valueStr, fallback)
	return fallback
}

func getEnvAsDuration(key string, fallback time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return fallback
	}
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	log.Printf("Invalid duration value for %s ('%s'), using default: %s", key, valueStr, fallback.String())
	return fallback
}
