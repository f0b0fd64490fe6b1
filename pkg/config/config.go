package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all process configuration for aodgrid
// ⭐ SSOT: 모든 환경변수는 여기서만 읽음
//
// Credentials live in this struct and are passed explicitly to the clients
// that need them; nothing here writes back to the process environment.
type Config struct {
	// Server
	Port string
	Env  string // development, staging, production

	// Database (optional: run history falls back to memory)
	Database DatabaseConfig

	// Redis
	Redis RedisConfig

	// Data sources
	Earthdata EarthdataConfig
	LAADS     LAADSConfig
	AWS       AWSConfig

	// Logging
	LogLevel  string
	LogFormat string

	// Monitoring
	Metrics MetricsConfig

	// Local scratch space for downloaded granules
	WorkDir string
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
	Enabled  bool
}

// DatabaseConfig holds PostgreSQL configuration
type DatabaseConfig struct {
	URL string

	// Connection Pool
	MaxConns        int
	MinConns        int
	MaxConnLifetime time.Duration
	MaxConnIdleTime time.Duration
}

// Enabled reports whether a database is configured
func (d DatabaseConfig) Enabled() bool {
	return d.URL != ""
}

// EarthdataConfig holds NASA Earthdata Login credentials
type EarthdataConfig struct {
	Username string
	Password string
	Token    string // bearer token, used for HTTPS downloads when set
	// S3CredentialsURL hands out short-lived keys for the prod-lads bucket
	S3CredentialsURL string
}

// HasLogin reports whether username/password are both set
func (e EarthdataConfig) HasLogin() bool {
	return e.Username != "" && e.Password != ""
}

// LAADSConfig holds LAADS DAAC archive configuration
type LAADSConfig struct {
	BaseURL    string // archive root, collection appended
	Collection string // 5200 = VIIRS SNPP/NOAA-20 aerosol collection
	Bucket     string
	FetchMode  string // s3 or https
	RatePerSec float64
	Timeout    time.Duration
	ListingTTL time.Duration
}

// AWSConfig holds AWS SDK configuration
type AWSConfig struct {
	Region string
}

// MetricsConfig holds CloudWatch publishing configuration
type MetricsConfig struct {
	Enabled   bool
	Namespace string
}

// Load reads configuration from environment variables
// ⭐ SSOT: 이 함수만 os.Getenv()를 호출함
func Load() (*Config, error) {
	// Try multiple paths for .env file
	loadEnvFile()

	cfg := &Config{
		// Server
		Port: getEnv("PORT", "8089"),
		Env:  getEnv("ENV", "development"),

		// Database
		Database: DatabaseConfig{
			URL:             getEnv("DATABASE_URL", ""),
			MaxConns:        getEnvAsInt("DB_MAX_CONNS", 10),
			MinConns:        getEnvAsInt("DB_MIN_CONNS", 1),
			MaxConnLifetime: getEnvAsDuration("DB_MAX_CONN_LIFETIME", "1h"),
			MaxConnIdleTime: getEnvAsDuration("DB_MAX_CONN_IDLE_TIME", "30m"),
		},

		// Redis
		Redis: RedisConfig{
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnv("REDIS_PORT", "6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
			Enabled:  getEnvAsBool("REDIS_ENABLED", false),
		},

		Earthdata: EarthdataConfig{
			Username:         getEnv("EARTHDATA_USERNAME", ""),
			Password:         getEnv("EARTHDATA_PASSWORD", ""),
			Token:            getEnv("EARTHDATA_TOKEN", ""),
			S3CredentialsURL: getEnv("EARTHDATA_S3_CREDENTIALS_URL", "https://data.laadsdaac.earthdatacloud.nasa.gov/s3credentials"),
		},

		LAADS: LAADSConfig{
			BaseURL:    getEnv("LAADS_BASE_URL", "https://ladsweb.modaps.eosdis.nasa.gov/archive/allData"),
			Collection: getEnv("LAADS_COLLECTION", "5200"),
			Bucket:     getEnv("LAADS_BUCKET", "prod-lads"),
			FetchMode:  getEnv("LAADS_FETCH_MODE", "s3"),
			RatePerSec: getEnvAsFloat("LAADS_RATE_PER_SEC", 5),
			Timeout:    getEnvAsDuration("LAADS_TIMEOUT", "2m"),
			ListingTTL: getEnvAsDuration("LAADS_LISTING_TTL", "6h"),
		},

		AWS: AWSConfig{
			Region: getEnv("AWS_REGION", "us-west-2"),
		},

		// Logging
		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "json"),

		// Monitoring
		Metrics: MetricsConfig{
			Enabled:   getEnvAsBool("METRICS_ENABLED", false),
			Namespace: getEnv("METRICS_NAMESPACE", "AODGrid"),
		},

		WorkDir: getEnv("WORK_DIR", filepath.Join(os.TempDir(), "aodgrid")),
	}

	// Validate configuration
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// validate checks if configuration values are consistent
func (c *Config) validate() error {
	// Validate environment
	if c.Env != "development" && c.Env != "staging" && c.Env != "production" {
		return fmt.Errorf("ENV must be one of: development, staging, production")
	}

	if c.LAADS.FetchMode != "s3" && c.LAADS.FetchMode != "https" {
		return fmt.Errorf("LAADS_FETCH_MODE must be one of: s3, https")
	}

	if c.LAADS.RatePerSec <= 0 {
		return fmt.Errorf("LAADS_RATE_PER_SEC must be positive")
	}

	// S3 직접 접근은 Earthdata 로그인 필요 (임시 키 발급)
	if c.LAADS.FetchMode == "s3" && c.Env == "production" && !c.Earthdata.HasLogin() {
		return fmt.Errorf("EARTHDATA_USERNAME and EARTHDATA_PASSWORD are required for s3 fetch mode")
	}

	return nil
}

// Helper functions (private, only used within this file)

// loadEnvFile tries to load .env from multiple locations
func loadEnvFile() {
	// Try paths in order of priority
	paths := []string{
		".env", // Current directory
	}

	// Also try relative to executable
	if exe, err := os.Executable(); err == nil {
		exeDir := filepath.Dir(exe)
		paths = append(paths,
			filepath.Join(exeDir, ".env"),
			filepath.Join(exeDir, "..", ".env"),
		)
	}

	for _, path := range paths {
		if _, err := os.Stat(path); err == nil {
			_ = godotenv.Load(path)
			return
		}
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}

	return value
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return defaultValue
	}

	return value
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}

	return value
}

func getEnvAsDuration(key string, defaultValue string) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		valueStr = defaultValue
	}

	duration, err := time.ParseDuration(valueStr)
	if err != nil {
		// Fallback to default
		duration, _ = time.ParseDuration(defaultValue)
	}

	return duration
}
