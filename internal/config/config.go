package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Storage backends for course data.
const (
	StoragePostgres = "postgres"
	StorageMemory   = "memory"
)

// Config holds all configuration for the server.
type Config struct {
	// Server configuration
	ServerPort  string
	ReadTimeout time.Duration
	IdleTimeout time.Duration

	// Storage selects postgres or memory.
	Storage string

	// Database configuration
	DBHost              string
	DBPort              int
	DBUser              string
	DBPassword          string
	DBName              string
	DBSSLMode           string
	DBMaxConns          int32
	DBMinConns          int32
	DBMaxConnLifetime   time.Duration
	DBMaxConnIdleTime   time.Duration
	DBHealthCheckPeriod time.Duration
	DBTraceQueries      bool

	// Migrations
	MigrationsPath string
	MigrateOnStart bool

	// Push channel; empty disables the NATS bridge.
	NATSURL string

	// Scheduled publication
	SchedulerInterval  time.Duration
	SchedulerBatchSize int

	// Cover image uploads
	MaxImageBytes int

	// Logging configuration
	LogLevel string
}

// ClientConfig holds configuration for the authoring client.
type ClientConfig struct {
	APIURL        string
	UserID        string
	DraftPath     string
	AutosaveDelay time.Duration
	HTTPTimeout   time.Duration
	MaxAttempts   int
	// NATSURL, when set, lets watch follow the NATS channel instead of SSE.
	NATSURL  string
	LogLevel string
}

// Load loads server configuration from environment variables, after
// applying an optional .env file.
func Load() (*Config, error) {
	if err := loadDotEnv(); err != nil {
		return nil, err
	}

	cfg := &Config{
		ServerPort:          getEnv("SERVER_PORT", "8080"),
		ReadTimeout:         getEnvDuration("HTTP_READ_TIMEOUT", 30*time.Second),
		IdleTimeout:         getEnvDuration("HTTP_IDLE_TIMEOUT", 120*time.Second),
		Storage:             strings.ToLower(getEnv("STORAGE", StoragePostgres)),
		DBHost:              getEnv("DB_HOST", "localhost"),
		DBPort:              getEnvInt("DB_PORT", 5432),
		DBUser:              getEnv("DB_USER", "postgres"),
		DBPassword:          getEnv("DB_PASSWORD", "postgres"),
		DBName:              getEnv("DB_NAME", "course_authoring"),
		DBSSLMode:           getEnv("DB_SSL_MODE", "disable"),
		DBMaxConns:          int32(getEnvInt("DB_MAX_CONNS", 25)),
		DBMinConns:          int32(getEnvInt("DB_MIN_CONNS", 5)),
		DBMaxConnLifetime:   getEnvDuration("DB_MAX_CONN_LIFETIME", time.Hour),
		DBMaxConnIdleTime:   getEnvDuration("DB_MAX_CONN_IDLE_TIME", 30*time.Minute),
		DBHealthCheckPeriod: getEnvDuration("DB_HEALTH_CHECK_PERIOD", time.Minute),
		DBTraceQueries:      getEnvBool("DB_TRACE_QUERIES", false),
		MigrationsPath:      getEnv("MIGRATIONS_PATH", "./migrations"),
		MigrateOnStart:      getEnvBool("MIGRATE_ON_START", false),
		NATSURL:             getEnv("NATS_URL", ""),
		SchedulerInterval:   getEnvDuration("SCHEDULER_INTERVAL", 15*time.Second),
		SchedulerBatchSize:  getEnvInt("SCHEDULER_BATCH_SIZE", 50),
		MaxImageBytes:       getEnvInt("MAX_IMAGE_BYTES", 5<<20),
		LogLevel:            getEnv("LOG_LEVEL", "info"),
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// LoadClient loads authoring client configuration.
func LoadClient() (*ClientConfig, error) {
	if err := loadDotEnv(); err != nil {
		return nil, err
	}

	cfg := &ClientConfig{
		APIURL:        strings.TrimRight(getEnv("COURSE_API_URL", "http://localhost:8080/api/v1"), "/"),
		UserID:        getEnv("COURSE_USER_ID", ""),
		DraftPath:     getEnv("DRAFT_PATH", "./course-drafts.db"),
		AutosaveDelay: getEnvDuration("AUTOSAVE_DELAY", 30*time.Second),
		HTTPTimeout:   getEnvDuration("HTTP_TIMEOUT", 15*time.Second),
		MaxAttempts:   getEnvInt("HTTP_MAX_ATTEMPTS", 3),
		NATSURL:       getEnv("NATS_URL", ""),
		LogLevel:      getEnv("LOG_LEVEL", "warn"),
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// validate validates the configuration.
func (c *Config) validate() error {
	if c.ServerPort == "" {
		return fmt.Errorf("SERVER_PORT is required")
	}
	if c.Storage != StoragePostgres && c.Storage != StorageMemory {
		return fmt.Errorf("STORAGE must be %q or %q", StoragePostgres, StorageMemory)
	}
	if c.Storage == StoragePostgres {
		if c.DBHost == "" {
			return fmt.Errorf("DB_HOST is required")
		}
		if c.DBUser == "" {
			return fmt.Errorf("DB_USER is required")
		}
		if c.DBName == "" {
			return fmt.Errorf("DB_NAME is required")
		}
	}
	if c.SchedulerInterval <= 0 {
		return fmt.Errorf("SCHEDULER_INTERVAL must be positive")
	}
	if c.SchedulerBatchSize < 1 {
		return fmt.Errorf("SCHEDULER_BATCH_SIZE must be at least 1")
	}
	if c.MaxImageBytes < 1 {
		return fmt.Errorf("MAX_IMAGE_BYTES must be at least 1")
	}
	return nil
}

func (c *ClientConfig) validate() error {
	if c.APIURL == "" {
		return fmt.Errorf("COURSE_API_URL is required")
	}
	if c.UserID == "" {
		return fmt.Errorf("COURSE_USER_ID is required")
	}
	if c.AutosaveDelay <= 0 {
		return fmt.Errorf("AUTOSAVE_DELAY must be positive")
	}
	if c.MaxAttempts < 1 {
		return fmt.Errorf("HTTP_MAX_ATTEMPTS must be at least 1")
	}
	return nil
}

// loadDotEnv applies ENV_FILE (default .env) when it exists. Variables
// already set in the environment win.
func loadDotEnv() error {
	path := getEnv("ENV_FILE", ".env")
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("stat %s: %w", path, err)
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}

// getEnv gets an environment variable with a default value.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt gets an environment variable as int with a default value.
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// getEnvBool gets an environment variable as bool with a default value.
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

// getEnvDuration gets an environment variable as duration with a default value.
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
