package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config represents the complete application configuration. It is built once
// at process start and passed down explicitly; business logic never reads the
// environment directly.
type Config struct {
	Server      ServerConfig
	Database    DatabaseConfig
	Storage     StorageConfig
	Webhook     WebhookConfig
	Telemetry   TelemetryConfig
	Tracker     TrackerConfig
	Scheduler   SchedulerConfig
	Log         LogConfig
	Environment string
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host            string
	Port            int
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
}

// DatabaseConfig holds PostgreSQL database configuration.
// When ConnectionString (from DATABASE_URL) is set, it takes precedence over individual fields.
type DatabaseConfig struct {
	ConnectionString string // From DATABASE_URL when set
	Host             string
	Port             int
	User             string
	Password         string
	Database         string
	SSLMode          string
	MaxOpenConns     int
	MaxIdleConns     int
	ConnMaxLifetime  time.Duration
}

// StorageConfig holds the persistence contract shared by the state store and
// the audit log: table names, retention horizon, retry budget, and per-call
// timeout.
type StorageConfig struct {
	StateTable       string
	AuditTable       string
	RetentionHorizon time.Duration
	RetryBudget      int
	RetryBaseDelay   time.Duration
	OperationTimeout time.Duration
	ReapInterval     time.Duration
}

// WebhookConfig holds inbound event surface configuration.
type WebhookConfig struct {
	// SigningSecret enables HS256 verification of inbound webhook tokens.
	// Empty disables verification (development mode).
	SigningSecret string
	// DefaultTenant is the sentinel tenant used for GET requests that carry
	// no tenantId query parameter.
	DefaultTenant string
}

// TelemetryConfig holds the external error collector configuration.
type TelemetryConfig struct {
	Endpoint    string // empty disables reporting
	Timeout     time.Duration
	BufferSize  int
	WorkerCount int
}

// TrackerConfig holds the downstream issue tracker API configuration.
type TrackerConfig struct {
	BaseURL    string // empty disables tracker writes
	Token      string
	Timeout    time.Duration
	MaxRetries int
}

// SchedulerConfig holds in-process scheduled trigger configuration.
type SchedulerConfig struct {
	Enabled  bool
	Interval time.Duration
	Tenants  []string // tenants to fire scheduled checks for
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level  string
	Format string // json or console
}

// DefaultRetentionHorizon is the fixed retention for persisted state and
// audit entries: 7 years.
const DefaultRetentionHorizon = 7 * 365 * 24 * time.Hour

// New creates a new Config instance by loading environment variables
func New() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load(".env")

	cfg := &Config{
		Environment: getEnv("ENVIRONMENT", "development"),
		Server: ServerConfig{
			Host:            getEnv("SERVER_HOST", "0.0.0.0"),
			Port:            getEnvAsInt("SERVER_PORT", 8080),
			ReadTimeout:     getEnvAsDuration("SERVER_READ_TIMEOUT", 30*time.Second),
			WriteTimeout:    getEnvAsDuration("SERVER_WRITE_TIMEOUT", 30*time.Second),
			ShutdownTimeout: getEnvAsDuration("SERVER_SHUTDOWN_TIMEOUT", 10*time.Second),
		},
		Database: loadDatabaseConfig(),
		Storage: StorageConfig{
			StateTable:       getEnv("STATE_TABLE", "agent_states"),
			AuditTable:       getEnv("AUDIT_TABLE", "audit_entries"),
			RetentionHorizon: getEnvAsDuration("RETENTION_HORIZON", DefaultRetentionHorizon),
			RetryBudget:      getEnvAsInt("STORAGE_RETRY_BUDGET", 3),
			RetryBaseDelay:   getEnvAsDuration("STORAGE_RETRY_BASE_DELAY", 100*time.Millisecond),
			OperationTimeout: getEnvAsDuration("STORAGE_OPERATION_TIMEOUT", 5*time.Second),
			ReapInterval:     getEnvAsDuration("STORAGE_REAP_INTERVAL", time.Hour),
		},
		Webhook: WebhookConfig{
			SigningSecret: getEnv("WEBHOOK_SIGNING_SECRET", ""),
			DefaultTenant: getEnv("DEFAULT_TENANT", "demo-tenant"),
		},
		Telemetry: TelemetryConfig{
			Endpoint:    getEnv("TELEMETRY_ENDPOINT", ""),
			Timeout:     getEnvAsDuration("TELEMETRY_TIMEOUT", 5*time.Second),
			BufferSize:  getEnvAsInt("TELEMETRY_BUFFER_SIZE", 1000),
			WorkerCount: getEnvAsInt("TELEMETRY_WORKER_COUNT", 2),
		},
		Tracker: TrackerConfig{
			BaseURL:    getEnv("TRACKER_BASE_URL", ""),
			Token:      getEnv("TRACKER_TOKEN", ""),
			Timeout:    getEnvAsDuration("TRACKER_TIMEOUT", 10*time.Second),
			MaxRetries: getEnvAsInt("TRACKER_MAX_RETRIES", 3),
		},
		Scheduler: SchedulerConfig{
			Enabled:  getEnvAsBool("SCHEDULER_ENABLED", false),
			Interval: getEnvAsDuration("SCHEDULER_INTERVAL", time.Hour),
			Tenants:  getEnvAsSlice("SCHEDULER_TENANTS"),
		},
		Log: LogConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// Validate checks if all required configuration fields are set
func (c *Config) Validate() error {
	if c.Database.ConnectionString == "" && c.Database.Host == "" {
		return fmt.Errorf("database configuration required: set DATABASE_URL or DB_HOST")
	}
	if c.Database.ConnectionString == "" {
		if c.Database.User == "" {
			return fmt.Errorf("database user is required")
		}
		if c.Database.Database == "" {
			return fmt.Errorf("database name is required")
		}
	}

	if c.Storage.RetentionHorizon <= 0 {
		return fmt.Errorf("retention horizon must be positive")
	}
	if c.Storage.RetryBudget < 1 {
		return fmt.Errorf("storage retry budget must be at least 1")
	}
	if c.Storage.OperationTimeout <= 0 {
		return fmt.Errorf("storage operation timeout must be positive")
	}

	if c.Webhook.DefaultTenant == "" {
		return fmt.Errorf("default tenant sentinel is required")
	}

	if c.Scheduler.Enabled && len(c.Scheduler.Tenants) == 0 {
		return fmt.Errorf("scheduler enabled but no tenants configured")
	}

	if c.Log.Level == "" {
		return fmt.Errorf("log level is required")
	}

	return nil
}

// IsProduction returns true if running in production environment
func (c *Config) IsProduction() bool {
	return c.Environment == "production" || c.Environment == "prod"
}

// IsDevelopment returns true if running in development environment
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development" || c.Environment == "dev"
}

// DSN returns the PostgreSQL connection string.
// Uses ConnectionString (from DATABASE_URL) when set; otherwise builds from individual fields.
func (c *DatabaseConfig) DSN() string {
	if c.ConnectionString != "" {
		return c.ConnectionString
	}
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}

// LogString returns a safe string for logging (no password). Parses ConnectionString when set.
func (c *DatabaseConfig) LogString() string {
	if c.ConnectionString != "" {
		u, err := url.Parse(c.ConnectionString)
		if err == nil {
			host := u.Hostname()
			port := u.Port()
			if port == "" {
				port = "5432"
			}
			db := strings.TrimPrefix(u.Path, "/")
			return fmt.Sprintf("host=%s port=%s database=%s", host, port, db)
		}
		return "host=<from DATABASE_URL>"
	}
	return fmt.Sprintf("host=%s port=%d database=%s", c.Host, c.Port, c.Database)
}

// loadDatabaseConfig loads database config from DATABASE_URL or DB_* env vars
func loadDatabaseConfig() DatabaseConfig {
	dbURL := getEnv("DATABASE_URL", "")
	if dbURL != "" {
		return DatabaseConfig{
			ConnectionString: dbURL,
			MaxOpenConns:     getEnvAsInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns:     getEnvAsInt("DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime:  getEnvAsDuration("DB_CONN_MAX_LIFETIME", 5*time.Minute),
		}
	}
	return DatabaseConfig{
		Host:            getEnv("DB_HOST", "localhost"),
		Port:            getEnvAsInt("DB_PORT", 5432),
		User:            getEnv("DB_USER", "dev"),
		Password:        getEnv("DB_PASSWORD", ""),
		Database:        getEnv("DB_NAME", "orchestrator"),
		SSLMode:         getEnv("DB_SSLMODE", "disable"),
		MaxOpenConns:    getEnvAsInt("DB_MAX_OPEN_CONNS", 25),
		MaxIdleConns:    getEnvAsInt("DB_MAX_IDLE_CONNS", 5),
		ConnMaxLifetime: getEnvAsDuration("DB_CONN_MAX_LIFETIME", 5*time.Minute),
	}
}

// Address returns the HTTP server address
func (c *ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// Helper functions

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

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := time.ParseDuration(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsSlice(key string) []string {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return nil
	}
	parts := strings.Split(valueStr, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
