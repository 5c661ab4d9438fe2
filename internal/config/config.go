package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Configuration validation errors.
var (
	ErrMissingDatabaseURL = errors.New("DATABASE_URL is required")
	ErrMissingProviderURL = errors.New("PROVIDER_BASE_URL is required")
	ErrInvalidCooldown    = errors.New("INGEST_COOLDOWN must be non-negative")
	ErrInvalidDelay       = errors.New("CATEGORY_DELAY must be non-negative")
	ErrInvalidMaxHops     = errors.New("REDIRECT_MAX_HOPS must be at least 1")
	ErrInvalidRetryCount  = errors.New("PROVIDER_RETRY_COUNT must be non-negative")
	ErrIncompleteR2       = errors.New("R2_ENDPOINT, R2_ACCESS_KEY and R2_SECRET_ACCESS_KEY must be set together")
)

// Config holds all configuration for the application
type Config struct {
	// Server configuration
	Port            string        `json:"port"`
	Env             string        `json:"env"`
	ShutdownTimeout time.Duration `json:"shutdown_timeout"`
	HTTPTimeout     time.Duration `json:"http_timeout"`

	// Database
	DatabaseURL string `json:"database_url"`
	DBMaxConns  int    `json:"db_max_conns"`

	// Redis configuration
	RedisURL    string        `json:"redis_url"`
	RedisPrefix string        `json:"redis_prefix"`
	CacheTTL    time.Duration `json:"cache_ttl"`
	LockTTL     time.Duration `json:"lock_ttl"`

	// News provider
	ProviderBaseURL    string        `json:"provider_base_url"`
	ProviderAPIKey     string        `json:"provider_api_key"`
	ProviderAPIHost    string        `json:"provider_api_host"`
	ProviderLangRegion string        `json:"provider_language_region"`
	ProviderTimeout    time.Duration `json:"provider_timeout"`
	ProviderRetryCount int           `json:"provider_retry_count"`
	RedirectMaxHops    int           `json:"redirect_max_hops"`
	RedirectTimeout    time.Duration `json:"redirect_timeout"`

	// Ingestion
	IngestCooldown time.Duration `json:"ingest_cooldown"`
	CategoryDelay  time.Duration `json:"category_delay"`
	IngestInterval time.Duration `json:"ingest_interval"`

	// CloudFlare R2 Configuration
	R2Endpoint  string `json:"r2_endpoint"`
	R2AccessKey string `json:"r2_access_key"`
	R2SecretKey string `json:"r2_secret_key"`
	R2Bucket    string `json:"r2_bucket"`
	R2AccountID string `json:"r2_account_id"`

	// RSS feed
	FeedTitle       string `json:"feed_title"`
	FeedLink        string `json:"feed_link"`
	FeedDescription string `json:"feed_description"`

	// Logging
	LogLevel string `json:"log_level"`
	LogFile  string `json:"log_file"`

	// Security
	AdminAPIKey string `json:"admin_api_key"`
}

// Load loads configuration from environment variables and validates it
func Load() (*Config, error) {
	// Load .env file if it exists
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Printf("Warning: Error loading .env file: %v", err)
	}

	cfg := &Config{
		Port:            getEnv("PORT", "8080"),
		Env:             getEnv("APP_ENV", "development"),
		ShutdownTimeout: getEnvAsDuration("SHUTDOWN_TIMEOUT", 10*time.Second),
		HTTPTimeout:     getEnvAsDuration("HTTP_TIMEOUT", 5*time.Minute),

		DatabaseURL: getEnv("DATABASE_URL", ""),
		DBMaxConns:  getEnvAsInt("DB_MAX_CONNS", 10),

		RedisURL:    getEnv("REDIS_URL", ""),
		RedisPrefix: getEnv("REDIS_PREFIX", "newswire:"),
		CacheTTL:    getEnvAsDuration("CACHE_TTL", 720*time.Hour), // 30 days
		LockTTL:     getEnvAsDuration("LOCK_TTL", 30*time.Minute),

		ProviderBaseURL:    getEnv("PROVIDER_BASE_URL", ""),
		ProviderAPIKey:     getEnv("PROVIDER_API_KEY", ""),
		ProviderAPIHost:    getEnv("PROVIDER_API_HOST", ""),
		ProviderLangRegion: getEnv("PROVIDER_LANGUAGE_REGION", "en-US"),
		ProviderTimeout:    getEnvAsDuration("PROVIDER_TIMEOUT", 30*time.Second),
		ProviderRetryCount: getEnvAsInt("PROVIDER_RETRY_COUNT", 3),
		RedirectMaxHops:    getEnvAsInt("REDIRECT_MAX_HOPS", 5),
		RedirectTimeout:    getEnvAsDuration("REDIRECT_TIMEOUT", 10*time.Second),

		IngestCooldown: getEnvAsDuration("INGEST_COOLDOWN", 240*time.Hour), // 10 days
		CategoryDelay:  getEnvAsDuration("CATEGORY_DELAY", time.Second),
		IngestInterval: getEnvAsDuration("INGEST_INTERVAL", 0),

		R2Endpoint:  getEnv("R2_ENDPOINT", ""),
		R2AccessKey: getEnv("R2_ACCESS_KEY", ""),
		R2SecretKey: getEnv("R2_SECRET_ACCESS_KEY", ""),
		R2Bucket:    getEnv("R2_BUCKET", "newswire"),
		R2AccountID: getEnv("CLOUDFLARE_ACCOUNT_ID", ""),

		FeedTitle:       getEnv("FEED_TITLE", "newswire"),
		FeedLink:        getEnv("FEED_LINK", "http://localhost:8080"),
		FeedDescription: getEnv("FEED_DESCRIPTION", "Latest headlines"),

		LogLevel: getEnv("LOG_LEVEL", "info"),
		LogFile:  getEnv("LOG_FILE", ""),

		AdminAPIKey: getEnv("ADMIN_API_KEY", ""),
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.DatabaseURL == "" {
		return ErrMissingDatabaseURL
	}
	if c.ProviderBaseURL == "" {
		return ErrMissingProviderURL
	}
	if c.IngestCooldown < 0 {
		return ErrInvalidCooldown
	}
	if c.CategoryDelay < 0 {
		return ErrInvalidDelay
	}
	if c.RedirectMaxHops < 1 {
		return ErrInvalidMaxHops
	}
	if c.ProviderRetryCount < 0 {
		return ErrInvalidRetryCount
	}

	r2 := []string{c.R2Endpoint, c.R2AccessKey, c.R2SecretKey}
	set := 0
	for _, v := range r2 {
		if v != "" {
			set++
		}
	}
	if set != 0 && set != len(r2) {
		return ErrIncompleteR2
	}

	return nil
}

// ArchiveEnabled reports whether raw provider payloads go to R2.
func (c *Config) ArchiveEnabled() bool {
	return c.R2Endpoint != "" && c.R2AccessKey != "" && c.R2SecretKey != ""
}

// InMemory reports whether DATABASE_URL selects the in-process store.
func (c *Config) InMemory() bool {
	return c.DatabaseURL == "memory"
}

// LogOutput maps LOG_FILE to a logger output target.
func (c *Config) LogOutput() string {
	if strings.TrimSpace(c.LogFile) == "" {
		return "stdout"
	}
	return c.LogFile
}

// Helper functions for environment variable handling
func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getEnvAsInt(name string, defaultVal int) int {
	valueStr := getEnv(name, "")
	if valueStr == "" {
		return defaultVal
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		log.Printf("Invalid %s value: %v, using default: %d", name, err, defaultVal)
		return defaultVal
	}
	return value
}

func getEnvAsDuration(name string, defaultVal time.Duration) time.Duration {
	valueStr := getEnv(name, "")
	if valueStr == "" {
		return defaultVal
	}
	value, err := time.ParseDuration(valueStr)
	if err != nil {
		log.Printf("Invalid %s value: %v, using default: %v", name, err, defaultVal)
		return defaultVal
	}
	return value
}
