package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds runtime configuration loaded from environment variables.
type Config struct {
	DatabaseURL            string
	JWTSecret              string
	JWTIssuer              string
	AccessTTLSeconds       int64
	Port                   string
	CorsOrigins            []string
	RedisURL               string
	ReportTTLSeconds       int64
	UploadDir              string
	MaxUploadBytes         int64
	ImportErrorDetailLimit int
	TempPasswordLength     int
	LogDir                 string
	LogRetentionDays       int
}

func Load() Config {
	cfg := LoadBatch()
	cfg.JWTSecret = mustEnv("JWT_SECRET")
	return cfg
}

// LoadBatch reads everything the import pipeline needs without the HTTP
// token settings. The command line tool uses it.
func LoadBatch() Config {
	return Config{
		DatabaseURL:            mustEnv("DATABASE_URL"),
		JWTIssuer:              envOr("JWT_ISSUER", "cargamasiva"),
		AccessTTLSeconds:       int64(envOrInt("ACCESS_TTL_SECONDS", 14400)),
		Port:                   envOr("PORT", "8080"),
		CorsOrigins:            parseCSV(envOr("CORS_ORIGINS", "")),
		RedisURL:               envOr("REDIS_URL", ""),
		ReportTTLSeconds:       int64(envOrInt("REPORT_TTL_SECONDS", 3600)),
		UploadDir:              envOr("UPLOAD_DIR", "storage/uploads"),
		MaxUploadBytes:         int64(envOrInt("MAX_UPLOAD_BYTES", 10<<20)),
		ImportErrorDetailLimit: envOrInt("IMPORT_ERROR_DETAIL_LIMIT", 50),
		TempPasswordLength:     envOrInt("IMPORT_TEMP_PASSWORD_LENGTH", 8),
		LogDir:                 envOr("LOG_DIR", "storage/logs"),
		LogRetentionDays:       clamp(envOrInt("LOG_RETENTION_DAYS", 7), 1, 7),
	}
}

func (c Config) AccessTTL() time.Duration {
	return time.Duration(c.AccessTTLSeconds) * time.Second
}

func (c Config) ReportTTL() time.Duration {
	return time.Duration(c.ReportTTLSeconds) * time.Second
}

func mustEnv(key string) string {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		panic("missing env var: " + key)
	}
	return value
}

func envOr(key, fallback string) string {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	return value
}

func envOrInt(key string, fallback int) int {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil || parsed <= 0 {
		return fallback
	}
	return parsed
}

func clamp(value, lo, hi int) int {
	if value < lo {
		return lo
	}
	if value > hi {
		return hi
	}
	return value
}

func parseCSV(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	items := make([]string, 0, len(parts))
	for _, part := range parts {
		value := strings.TrimSpace(part)
		if value != "" {
			items = append(items, value)
		}
	}
	return items
}
