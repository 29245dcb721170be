package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

// Defaults for the sync engine. Each one can be overridden through the environment.
const (
	DefaultSyncLookbackDays   = 5
	DefaultTokenRefreshMargin = 300 * time.Second
	DefaultFetchMaxResults    = 50
	DefaultClassifierBodyCap  = 2000
	DefaultSchedulerInterval  = 15 * time.Minute
	DefaultSyncConcurrency    = 4
)

type Config struct {
	Port        string `validate:"required,numeric"`
	Environment string `validate:"oneof=development staging production test"`
	LogLevel    string

	// Database
	DatabaseURL    string
	DatabaseDriver string `validate:"oneof=pgx postgres"`
	RunMigrations  bool
	MongoDBURL     string
	MongoDBName    string
	RedisURL       string

	// Auth
	JWTSecret  string
	CronSecret string

	// Token encryption at rest
	EncryptionKey string

	// OpenAI
	OpenAIAPIKey   string
	LLMModel       string
	LLMMaxTokens   int `validate:"gte=0"`
	LLMTemperature float64
	LLMTimeoutSec  int `validate:"gte=0"`

	// OAuth - Google
	GoogleClientID     string
	GoogleClientSecret string
	GoogleTokenURL     string
	GoogleRevokeURL    string
	GmailEndpoint      string

	// Sync
	SyncLookbackDays   int           `validate:"gt=0"`
	TokenRefreshMargin time.Duration `validate:"gte=0"`
	FetchMaxResults    int           `validate:"gt=0,lte=500"`
	ClassifierBodyCap  int           `validate:"gt=0"`
	ProviderTimeoutSec int           `validate:"gt=0"`
	SyncConcurrency    int           `validate:"gt=0"`

	// Scheduler
	SchedulerEnabled  bool
	SchedulerInterval time.Duration `validate:"gt=0"`

	// CORS
	AllowedOrigins []string
}

func Load() (*Config, error) {
	cfg := &Config{
		Port:        getEnv("PORT", "8080"),
		Environment: getEnv("ENV", "development"),
		LogLevel:    getEnv("LOG_LEVEL", "info"),

		// Database
		DatabaseURL:    getEnv("DATABASE_URL", ""),
		DatabaseDriver: getEnv("DB_DRIVER", "pgx"),
		RunMigrations:  getEnvBool("DB_RUN_MIGRATIONS", true),
		MongoDBURL:     getEnv("MONGODB_URL", ""),
		MongoDBName:    getEnv("MONGODB_DATABASE", "tracker"),
		RedisURL:       getEnv("REDIS_URL", ""),

		// Auth
		JWTSecret:  getEnv("JWT_SECRET", ""),
		CronSecret: getEnv("CRON_SECRET", ""),

		EncryptionKey: getEnv("ENCRYPTION_KEY", ""),

		// OpenAI
		OpenAIAPIKey:   getEnv("OPENAI_API_KEY", ""),
		LLMModel:       getEnv("LLM_MODEL", "gpt-4o-mini"),
		LLMMaxTokens:   getEnvInt("LLM_MAX_TOKENS", 800),
		LLMTemperature: getEnvFloat("LLM_TEMPERATURE", 0.1),
		LLMTimeoutSec:  getEnvInt("LLM_TIMEOUT_SEC", 30),

		// OAuth - Google
		GoogleClientID:     getEnv("GOOGLE_CLIENT_ID", ""),
		GoogleClientSecret: getEnv("GOOGLE_CLIENT_SECRET", ""),
		GoogleTokenURL:     getEnv("GOOGLE_TOKEN_URL", ""),
		GoogleRevokeURL:    getEnv("GOOGLE_REVOKE_URL", "https://oauth2.googleapis.com/revoke"),
		GmailEndpoint:      getEnv("GMAIL_ENDPOINT", ""),

		// Sync
		SyncLookbackDays:   getEnvInt("SYNC_LOOKBACK_DAYS", DefaultSyncLookbackDays),
		TokenRefreshMargin: time.Duration(getEnvInt("TOKEN_REFRESH_MARGIN_SEC", int(DefaultTokenRefreshMargin/time.Second))) * time.Second,
		FetchMaxResults:    getEnvInt("SYNC_MAX_RESULTS", DefaultFetchMaxResults),
		ClassifierBodyCap:  getEnvInt("CLASSIFIER_BODY_CAP", DefaultClassifierBodyCap),
		ProviderTimeoutSec: getEnvInt("PROVIDER_TIMEOUT_SEC", 30),
		SyncConcurrency:    getEnvInt("SYNC_CONCURRENCY", DefaultSyncConcurrency),

		// Scheduler
		SchedulerEnabled:  getEnvBool("SCHEDULER_ENABLED", true),
		SchedulerInterval: time.Duration(getEnvInt("SCHEDULER_INTERVAL_SEC", int(DefaultSchedulerInterval/time.Second))) * time.Second,

		// CORS
		AllowedOrigins: getEnvSlice("ALLOWED_ORIGINS", []string{"http://localhost:3000", "http://localhost:5173"}),
	}

	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func getEnvSlice(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		parts := strings.Split(value, ",")
		for i := range parts {
			parts[i] = strings.TrimSpace(parts[i])
		}
		return parts
	}
	return defaultValue
}

// IsDevelopment returns true if running in development mode
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

// IsProduction returns true if running in production mode
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

// HasGoogleOAuth reports whether the client credentials needed for token refresh are set.
func (c *Config) HasGoogleOAuth() bool {
	return c.GoogleClientID != "" && c.GoogleClientSecret != ""
}

// SyncLookback returns the default sync window for integrations that never synced.
func (c *Config) SyncLookback() time.Duration {
	return time.Duration(c.SyncLookbackDays) * 24 * time.Hour
}
