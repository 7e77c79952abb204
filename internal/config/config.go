package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Store backend names accepted by STORE_BACKEND.
const (
	BackendMemory   = "memory"
	BackendRedis    = "redis"
	BackendPostgres = "postgres"
)

// Config holds all application configuration loaded from environment variables.
// It is the single source of truth for runtime parameters.
type Config struct {
	Port string
	Env  string

	HTTP     HTTPConfig
	Store    StoreConfig
	DB       DatabaseConfig
	Redis    RedisConfig
	Commerce CommerceConfig
	Worker   WorkerConfig
	Asset    AssetConfig
}

// HTTPConfig contains settings of the storefront API surface.
type HTTPConfig struct {
	AllowedOrigins []string
	WriteLimit     int
	WriteWindow    time.Duration
}

// StoreConfig selects the persistence backend and its degradation policy.
type StoreConfig struct {
	Backend        string
	KeyPrefix      string
	MaxBytes       int
	RetainRecent   int
	FallbackRecent int
	MemoryQuota    int
}

// DatabaseConfig contains PostgreSQL connection parameters.
type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	Name     string
	SSLMode  string
}

// RedisConfig contains Redis connection parameters.
type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
}

// CommerceConfig contains checkout and library settings.
type CommerceConfig struct {
	PaymentDelay    time.Duration
	MaxDownloads    int
	DownloadBaseURL string
	SeedCatalog     bool
}

// WorkerConfig contains interval configuration for background workers.
type WorkerConfig struct {
	FlushInterval time.Duration
}

// AssetConfig describes where uploaded product files are kept. An empty
// Bucket keeps small files inline as data URLs.
type AssetConfig struct {
	Bucket         string
	Region         string
	Endpoint       string
	MaxInlineBytes int
}

// Load reads configuration from environment variables. If a .env file exists
// in the working directory, it will be loaded first.
func Load() (*Config, error) {
	// Missing .env is fine; real environment variables still apply.
	_ = godotenv.Load()

	cfg := &Config{}

	// Server
	cfg.Port = getEnv("PORT", "8080")
	cfg.Env = getEnv("ENV", "development")

	// HTTP
	cfg.HTTP = HTTPConfig{
		AllowedOrigins: splitList(getEnv("CORS_ALLOWED_ORIGINS", "")),
		WriteLimit:     getEnvInt("WRITE_RATE_LIMIT", 30),
	}

	// Store
	cfg.Store = StoreConfig{
		Backend:        strings.ToLower(getEnv("STORE_BACKEND", BackendMemory)),
		KeyPrefix:      getEnv("STORE_KEY_PREFIX", "digistore-"),
		MaxBytes:       getEnvInt("STORE_MAX_BYTES", 4*1024*1024),
		RetainRecent:   getEnvInt("STORE_RETAIN_RECENT", 50),
		FallbackRecent: getEnvInt("STORE_FALLBACK_RECENT", 10),
		MemoryQuota:    getEnvInt("STORE_MEMORY_QUOTA", 5*1024*1024),
	}

	// Database
	cfg.DB = DatabaseConfig{
		Host:     getEnv("DB_HOST", ""),
		Port:     getEnv("DB_PORT", "5432"),
		User:     getEnv("DB_USER", ""),
		Password: getEnv("DB_PASSWORD", ""),
		Name:     getEnv("DB_NAME", ""),
		SSLMode:  getEnv("DB_SSLMODE", "disable"),
	}

	// Redis
	cfg.Redis = RedisConfig{
		Host:     getEnv("REDIS_HOST", "redis"),
		Port:     getEnv("REDIS_PORT", "6379"),
		Password: getEnv("REDIS_PASSWORD", ""),
		DB:       getEnvInt("REDIS_DB", 0),
	}

	// Commerce
	cfg.Commerce = CommerceConfig{
		MaxDownloads:    getEnvInt("MAX_DOWNLOADS", 10),
		DownloadBaseURL: strings.TrimRight(getEnv("DOWNLOAD_BASE_URL", "https://downloads.digistore.com"), "/"),
		SeedCatalog:     getEnvBool("CATALOG_SEED", true),
	}

	// Assets
	cfg.Asset = AssetConfig{
		Bucket:         getEnv("ASSET_BUCKET", ""),
		Region:         getEnv("ASSET_REGION", "us-east-1"),
		Endpoint:       getEnv("ASSET_ENDPOINT", ""),
		MaxInlineBytes: getEnvInt("ASSET_MAX_INLINE_BYTES", 256*1024),
	}

	// Durations
	var err error
	if cfg.Commerce.PaymentDelay, err = parseDurationEnv("PAYMENT_DELAY", "3s"); err != nil {
		return nil, fmt.Errorf("invalid PAYMENT_DELAY: %w", err)
	}
	if cfg.HTTP.WriteWindow, err = parseDurationEnv("WRITE_RATE_WINDOW", "1m"); err != nil {
		return nil, fmt.Errorf("invalid WRITE_RATE_WINDOW: %w", err)
	}
	if cfg.Worker.FlushInterval, err = parseDurationEnv("FLUSH_INTERVAL", "30s"); err != nil {
		return nil, fmt.Errorf("invalid FLUSH_INTERVAL: %w", err)
	}

	switch cfg.Store.Backend {
	case BackendMemory, BackendRedis:
	case BackendPostgres:
		if cfg.DB.Host == "" || cfg.DB.User == "" || cfg.DB.Name == "" {
			return nil, errors.New("database configuration incomplete: ensure DB_HOST, DB_USER, and DB_NAME are set")
		}
	default:
		return nil, fmt.Errorf("unknown STORE_BACKEND %q: use memory, redis or postgres", cfg.Store.Backend)
	}

	if cfg.Commerce.MaxDownloads <= 0 {
		return nil, errors.New("MAX_DOWNLOADS must be positive")
	}
	if cfg.Store.FallbackRecent > cfg.Store.RetainRecent {
		return nil, errors.New("STORE_FALLBACK_RECENT must not exceed STORE_RETAIN_RECENT")
	}

	return cfg, nil
}

// getEnv returns the value of an environment variable or a default if empty.
func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// getEnvInt returns the value of an environment variable as an integer or a default if empty/invalid.
func getEnvInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return i
}

func getEnvBool(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

// parseDurationEnv reads an environment variable and parses it as time.Duration.
// If the variable is empty, it falls back to the provided default value.
func parseDurationEnv(key, def string) (time.Duration, error) {
	raw := getEnv(key, def)
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, err
	}
	if d < 0 {
		return 0, fmt.Errorf("duration must be >= 0")
	}
	return d, nil
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
