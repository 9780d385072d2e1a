package config

import (
	"os"
	"strconv"
	"time"
)

// Config holds all application configuration.
// Values are loaded from environment variables with sensible defaults.
type Config struct {
	// Server
	Port     int
	LogLevel string

	// HTTP client
	HTTPTimeout time.Duration

	// Resilience
	MaxConcurrency int

	// Cache
	CacheTTL time.Duration

	// Observability
	OTLPEndpoint string

	// Database
	DatabaseURL      string
	DBConnectRetries int
	DBConnectBackoff time.Duration

	// Wise
	WiseEnvironment     string // sandbox or live
	WiseAPIToken        string
	WiseProfileID       int64 // 0 = discover the single business profile
	WisePrivateKeyPath  string
	WiseWebhookKeyPath  string
	LogRejectedPayloads bool

	// Admin
	AdminJWTSecret  string
	AdminAPIKeyHash string // bcrypt hash of the operator API key
	AdminTokenTTL   time.Duration

	// Alerting
	TelegramBotToken string
	TelegramChatID   int64
}

// Load reads configuration from environment variables with defaults.
func Load() *Config {
	return &Config{
		Port:     getEnvInt("PORT", 8080),
		LogLevel: getEnv("LOG_LEVEL", "info"),

		HTTPTimeout: getEnvDuration("HTTP_TIMEOUT", 30*time.Second),

		MaxConcurrency: getEnvInt("MAX_CONCURRENCY", 8),

		CacheTTL: getEnvDuration("CACHE_TTL", 15*time.Minute),

		OTLPEndpoint: getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", ""),

		DatabaseURL:      getEnv("DATABASE_URL", ""),
		DBConnectRetries: getEnvInt("DB_CONNECT_RETRIES", 5),
		DBConnectBackoff: getEnvDuration("DB_CONNECT_BACKOFF", 500*time.Millisecond),

		WiseEnvironment:     getEnv("TRANSFERWISE_ENVIRONMENT", ""),
		WiseAPIToken:        getEnv("TRANSFERWISE_API_TOKEN", ""),
		WiseProfileID:       getEnvInt64("TRANSFERWISE_PROFILE_ID", 0),
		WisePrivateKeyPath:  getEnv("TRANSFERWISE_PRIVATE_KEY", ""),
		WiseWebhookKeyPath:  getEnv("TRANSFERWISE_WEBHOOK_PUBLIC_KEY", ""),
		LogRejectedPayloads: getEnv("WISE_LOG_REJECTED_PAYLOADS", "false") == "true",

		AdminJWTSecret:  getEnv("ADMIN_JWT_SECRET", ""),
		AdminAPIKeyHash: getEnv("ADMIN_API_KEY_HASH", ""),
		AdminTokenTTL:   getEnvDuration("ADMIN_TOKEN_TTL", 30*time.Minute),

		TelegramBotToken: getEnv("TELEGRAM_BOT_TOKEN", ""),
		TelegramChatID:   getEnvInt64("TELEGRAM_CHAT_ID", 0),
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvInt64(key string, fallback int64) int64 {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.ParseInt(v, 10, 64); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
