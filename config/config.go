package config

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config represents the complete application configuration
type Config struct {
	Server        ServerConfig
	Database      DatabaseConfig
	Auth          AuthConfig
	Storage       StorageConfig
	VectorStore   VectorStoreConfig
	Redis         RedisConfig
	LLM           LLMConfig
	HubSpot       HubSpotConfig
	Fleet         FleetConfig
	Jobs          JobsConfig
	Integrations  IntegrationsConfig
	Observability ObservabilityConfig
	Environment   string
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host            string
	Port            int
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
	AllowedOrigins  []string
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

// AuthConfig holds session token and run token settings
type AuthConfig struct {
	JWTSecret   string
	Issuer      string
	Audience    string
	RunTokenTTL time.Duration
}

// StorageConfig holds S3-compatible object storage configuration
type StorageConfig struct {
	Endpoint        string
	Region          string
	Bucket          string
	AccessKeyID     string
	SecretAccessKey string
	UseSSL          bool
	PresignTTL      time.Duration
	MaxUploadBytes  int64
}

// VectorStoreConfig holds Qdrant configuration
type VectorStoreConfig struct {
	Host       string
	Port       int
	APIKey     string
	UseTLS     bool
	Collection string
	Dimensions uint64
}

// RedisConfig holds Redis configuration. An empty Addr disables Redis.
type RedisConfig struct {
	Addr                string
	Password            string
	DB                  int
	RevalidationChannel string
}

// LLMConfig holds the OpenAI-compatible provider configuration
type LLMConfig struct {
	APIKey         string
	BaseURL        string
	ChatModel      string
	EmbeddingModel string
	Timeout        time.Duration
	MaxRetries     int
}

// HubSpotConfig holds HubSpot CRM configuration
type HubSpotConfig struct {
	AccessToken string
	BaseURL     string
	Timeout     time.Duration
}

// FleetConfig holds Fleet MDM configuration
type FleetConfig struct {
	URL          string
	APIToken     string
	EnrollSecret string
	Timeout      time.Duration
}

// JobsConfig holds background job runner configuration
type JobsConfig struct {
	Backend          string // memory or redis
	Concurrency      map[string]int
	MaxAttempts      int
	RetryBaseDelay   time.Duration
	ShutdownTimeout  time.Duration
	QueueBufferSize  int
	BatchWaitTimeout time.Duration
}

// IntegrationsConfig holds the provider catalog override
type IntegrationsConfig struct {
	CatalogPath string
}

// ObservabilityConfig holds logging configuration
type ObservabilityConfig struct {
	LogLevel  string
	LogFormat string // json or text
}

// New creates a new Config instance by loading environment variables
func New(ctx context.Context) (*Config, error) {
	_ = godotenv.Load(".env")

	cfg := &Config{
		Environment: getEnv("ENVIRONMENT", "development"),
		Server: ServerConfig{
			Host:            getEnv("SERVER_HOST", "0.0.0.0"),
			Port:            getPort(),
			ReadTimeout:     getEnvAsDuration("SERVER_READ_TIMEOUT", 30*time.Second),
			WriteTimeout:    getEnvAsDuration("SERVER_WRITE_TIMEOUT", 30*time.Second),
			ShutdownTimeout: getEnvAsDuration("SERVER_SHUTDOWN_TIMEOUT", 10*time.Second),
			AllowedOrigins:  getEnvAsList("CORS_ALLOWED_ORIGINS", []string{"http://localhost:*", "https://*"}),
		},
		Database: loadDatabaseConfig(),
		Auth: AuthConfig{
			JWTSecret:   getEnv("AUTH_JWT_SECRET", ""),
			Issuer:      getEnv("AUTH_ISSUER", "comp"),
			Audience:    getEnv("AUTH_AUDIENCE", "comp-api"),
			RunTokenTTL: getEnvAsDuration("AUTH_RUN_TOKEN_TTL", time.Hour),
		},
		Storage: StorageConfig{
			Endpoint:        getEnv("S3_ENDPOINT", "s3.amazonaws.com"),
			Region:          getEnv("S3_REGION", "us-east-1"),
			Bucket:          getEnv("S3_BUCKET", ""),
			AccessKeyID:     getEnv("S3_ACCESS_KEY_ID", ""),
			SecretAccessKey: getEnv("S3_SECRET_ACCESS_KEY", ""),
			UseSSL:          getEnvAsBool("S3_USE_SSL", true),
			PresignTTL:      getEnvAsDuration("S3_PRESIGN_TTL", 15*time.Minute),
			MaxUploadBytes:  int64(getEnvAsInt("KNOWLEDGE_BASE_MAX_UPLOAD_BYTES", 10<<20)),
		},
		VectorStore: VectorStoreConfig{
			Host:       getEnv("QDRANT_HOST", ""),
			Port:       getEnvAsInt("QDRANT_PORT", 6334),
			APIKey:     getEnv("QDRANT_API_KEY", ""),
			UseTLS:     getEnvAsBool("QDRANT_USE_TLS", false),
			Collection: getEnv("QDRANT_COLLECTION", "knowledge_base"),
			Dimensions: uint64(getEnvAsInt("QDRANT_DIMENSIONS", 1536)),
		},
		Redis: RedisConfig{
			Addr:                getEnv("REDIS_ADDR", ""),
			Password:            getEnv("REDIS_PASSWORD", ""),
			DB:                  getEnvAsInt("REDIS_DB", 0),
			RevalidationChannel: getEnv("REDIS_REVALIDATION_CHANNEL", "revalidate"),
		},
		LLM: LLMConfig{
			APIKey:         getEnv("OPENAI_API_KEY", ""),
			BaseURL:        getEnv("OPENAI_BASE_URL", "https://api.openai.com/v1"),
			ChatModel:      getEnv("OPENAI_CHAT_MODEL", "gpt-4o-mini"),
			EmbeddingModel: getEnv("OPENAI_EMBEDDING_MODEL", "text-embedding-3-small"),
			Timeout:        getEnvAsDuration("OPENAI_TIMEOUT", 60*time.Second),
			MaxRetries:     getEnvAsInt("OPENAI_MAX_RETRIES", 3),
		},
		HubSpot: HubSpotConfig{
			AccessToken: getEnv("HUBSPOT_ACCESS_TOKEN", ""),
			BaseURL:     getEnv("HUBSPOT_BASE_URL", "https://api.hubapi.com"),
			Timeout:     getEnvAsDuration("HUBSPOT_TIMEOUT", 15*time.Second),
		},
		Fleet: FleetConfig{
			URL:          getEnv("FLEET_URL", ""),
			APIToken:     getEnv("FLEET_API_TOKEN", ""),
			EnrollSecret: getEnv("FLEET_ENROLL_SECRET", ""),
			Timeout:      getEnvAsDuration("FLEET_TIMEOUT", 15*time.Second),
		},
		Jobs: JobsConfig{
			Backend: getEnv("JOBS_BACKEND", "memory"),
			Concurrency: map[string]int{
				"onboarding":     getEnvAsInt("JOBS_ONBOARDING_CONCURRENCY", 2),
				"mitigations":    getEnvAsInt("JOBS_MITIGATIONS_CONCURRENCY", 8),
				"policies":       getEnvAsInt("JOBS_POLICIES_CONCURRENCY", 4),
				"knowledge-base": getEnvAsInt("JOBS_KNOWLEDGE_BASE_CONCURRENCY", 2),
				"crm":            getEnvAsInt("JOBS_CRM_CONCURRENCY", 1),
			},
			MaxAttempts:      getEnvAsInt("JOBS_MAX_ATTEMPTS", 3),
			RetryBaseDelay:   getEnvAsDuration("JOBS_RETRY_BASE_DELAY", time.Second),
			ShutdownTimeout:  getEnvAsDuration("JOBS_SHUTDOWN_TIMEOUT", 30*time.Second),
			QueueBufferSize:  getEnvAsInt("JOBS_QUEUE_BUFFER_SIZE", 1000),
			BatchWaitTimeout: getEnvAsDuration("JOBS_BATCH_WAIT_TIMEOUT", 30*time.Minute),
		},
		Integrations: IntegrationsConfig{
			CatalogPath: getEnv("INTEGRATIONS_CATALOG_PATH", ""),
		},
		Observability: ObservabilityConfig{
			LogLevel:  getEnv("LOG_LEVEL", "info"),
			LogFormat: getEnv("LOG_FORMAT", "json"),
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

	switch c.Jobs.Backend {
	case "memory":
	case "redis":
		if c.Redis.Addr == "" {
			return fmt.Errorf("redis address is required when JOBS_BACKEND=redis")
		}
	default:
		return fmt.Errorf("unknown jobs backend %q", c.Jobs.Backend)
	}
	if c.Jobs.MaxAttempts < 1 {
		return fmt.Errorf("jobs max attempts must be at least 1")
	}

	if c.IsProduction() {
		if len(c.Auth.JWTSecret) < 32 {
			return fmt.Errorf("auth JWT secret of at least 32 bytes is required in production")
		}
		if c.Storage.Bucket == "" {
			return fmt.Errorf("storage bucket is required in production")
		}
	}

	if c.Observability.LogLevel == "" {
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

// URL returns the connection string in URL form, as required by golang-migrate.
func (c *DatabaseConfig) URL() string {
	if c.ConnectionString != "" {
		return c.ConnectionString
	}
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(c.User, c.Password),
		Host:     fmt.Sprintf("%s:%d", c.Host, c.Port),
		Path:     "/" + c.Database,
		RawQuery: "sslmode=" + c.SSLMode,
	}
	return u.String()
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
		User:            getEnv("DB_USER", "comp"),
		Password:        getEnv("DB_PASSWORD", "comp"),
		Database:        getEnv("DB_NAME", "comp"),
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

// getPort returns the server port from PORT or SERVER_PORT env vars (default: 3333)
func getPort() int {
	for _, key := range []string{"PORT", "SERVER_PORT"} {
		if value := os.Getenv(key); value != "" {
			if p, err := strconv.Atoi(value); err == nil {
				return p
			}
		}
	}
	return 3333
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

// getEnvAsList splits a comma separated value, dropping empty items
func getEnvAsList(key string, defaultValue []string) []string {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(valueStr, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}
