package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration.
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Logger   LoggerConfig
	Auth     AuthConfig
	Paystack PaystackConfig
	Shipping ShippingConfig
	S3       S3Config
	Redis    RedisConfig
	Kafka    KafkaConfig
}

// ServerConfig holds server-related configuration.
type ServerConfig struct {
	Host                string
	Port                int
	AllowedOrigin       string
	WriteTimeoutSeconds int
}

// WriteTimeout bounds how long a handler may take to write its response.
func (c ServerConfig) WriteTimeout() time.Duration {
	return time.Duration(c.WriteTimeoutSeconds) * time.Second
}

// DatabaseConfig holds database-related configuration.
type DatabaseConfig struct {
	Host            string
	Port            int
	User            string
	Password        string
	Database        string
	MaxConnections  int
	MinConnections  int
	MaxConnLifetime int // seconds
	MigrationsPath  string
}

// LoggerConfig holds logger-related configuration.
type LoggerConfig struct {
	Level  string
	Format string // "json" or "console"
}

// AuthConfig holds the bearer token settings.
type AuthConfig struct {
	JWTSecret string
	Issuer    string
}

// PaystackConfig holds payment gateway settings. SecretKey never leaves the
// backend; PublicKey is served to clients.
type PaystackConfig struct {
	SecretKey             string
	PublicKey             string
	BaseURL               string
	Currency              string
	TimeoutSeconds        int
	VerifyMaxAttempts     int
	VerifyDeadlineSeconds int
	CallbackURL           string
}

// Timeout returns the per-request gateway timeout.
func (c PaystackConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// VerifyDeadline caps a whole verification, retries included.
func (c PaystackConfig) VerifyDeadline() time.Duration {
	return time.Duration(c.VerifyDeadlineSeconds) * time.Second
}

// ShippingConfig points at an optional rate table.
type ShippingConfig struct {
	RatesFile string
}

// S3Config holds AWS S3 configuration for the shipping rate table.
type S3Config struct {
	Enabled bool
	Bucket  string
	Region  string
	Prefix  string // Path prefix within bucket (e.g., "shipping/")
}

// RedisConfig configures the webhook delivery store. An empty Addr
// disables it.
type RedisConfig struct {
	Addr               string
	Password           string
	DB                 int
	DeliveryTTLSeconds int
}

// DeliveryTTL returns how long a processed webhook delivery is remembered.
func (c RedisConfig) DeliveryTTL() time.Duration {
	return time.Duration(c.DeliveryTTLSeconds) * time.Second
}

// KafkaConfig configures order event publishing. No brokers disables it.
type KafkaConfig struct {
	Brokers    []string
	OrderTopic string
}

// Load loads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Host:                getEnv("SERVER_HOST", "0.0.0.0"),
			Port:                getEnvAsInt("SERVER_PORT", 8080),
			AllowedOrigin:       getEnv("CORS_ALLOWED_ORIGIN", "*"),
			WriteTimeoutSeconds: getEnvAsInt("SERVER_WRITE_TIMEOUT_SECONDS", 30),
		},
		Database: databaseFromEnv(),
		Logger:   loggerFromEnv(),
		Auth: AuthConfig{
			JWTSecret: getEnv("JWT_SECRET", ""),
			Issuer:    getEnv("JWT_ISSUER", "bwitty"),
		},
		Paystack: PaystackConfig{
			SecretKey:             getEnv("PAYSTACK_SECRET_KEY", ""),
			PublicKey:             getEnv("PAYSTACK_PUBLIC_KEY", ""),
			BaseURL:               getEnv("PAYSTACK_BASE_URL", "https://api.paystack.co"),
			Currency:              getEnv("PAYSTACK_CURRENCY", "NGN"),
			TimeoutSeconds:        getEnvAsInt("PAYSTACK_TIMEOUT_SECONDS", 10),
			VerifyMaxAttempts:     getEnvAsInt("PAYSTACK_VERIFY_MAX_ATTEMPTS", 3),
			VerifyDeadlineSeconds: getEnvAsInt("PAYSTACK_VERIFY_DEADLINE_SECONDS", 20),
			CallbackURL:           getEnv("PAYSTACK_CALLBACK_URL", ""),
		},
		Shipping: ShippingConfig{
			RatesFile: getEnv("SHIPPING_RATES_FILE", ""),
		},
		S3: S3Config{
			Enabled: getEnvAsBool("S3_ENABLED", false),
			Bucket:  getEnv("S3_BUCKET", ""),
			Region:  getEnv("S3_REGION", "us-east-1"),
			Prefix:  getEnv("S3_PREFIX", "shipping/"),
		},
		Redis: RedisConfig{
			Addr:               getEnv("REDIS_ADDR", ""),
			Password:           getEnv("REDIS_PASSWORD", ""),
			DB:                 getEnvAsInt("REDIS_DB", 0),
			DeliveryTTLSeconds: getEnvAsInt("WEBHOOK_DELIVERY_TTL_SECONDS", 86400),
		},
		Kafka: KafkaConfig{
			Brokers:    getEnvAsList("KAFKA_BROKERS"),
			OrderTopic: getEnv("KAFKA_ORDER_TOPIC", "orders.events"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// LoadDatabase reads only the database and logger settings. Tools such as
// the migration CLI use it so they do not need API secrets.
func LoadDatabase() (DatabaseConfig, LoggerConfig) {
	return databaseFromEnv(), loggerFromEnv()
}

func databaseFromEnv() DatabaseConfig {
	return DatabaseConfig{
		Host:            getEnv("DB_HOST", "localhost"),
		Port:            getEnvAsInt("DB_PORT", 5432),
		User:            getEnv("DB_USER", "postgres"),
		Password:        getEnv("DB_PASSWORD", ""),
		Database:        getEnv("DB_NAME", "bwitty"),
		MaxConnections:  getEnvAsInt("DB_MAX_CONNECTIONS", 25),
		MinConnections:  getEnvAsInt("DB_MIN_CONNECTIONS", 5),
		MaxConnLifetime: getEnvAsInt("DB_MAX_CONN_LIFETIME", 300),
		MigrationsPath:  getEnv("MIGRATIONS_PATH", "migrations"),
	}
}

func loggerFromEnv() LoggerConfig {
	return LoggerConfig{
		Level:  getEnv("LOG_LEVEL", "info"),
		Format: getEnv("LOG_FORMAT", "json"),
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}

	if c.Server.WriteTimeoutSeconds < 1 {
		return fmt.Errorf("server write timeout must be at least 1 second")
	}

	if c.Database.Host == "" {
		return fmt.Errorf("database host is required")
	}

	if c.Database.Port < 1 || c.Database.Port > 65535 {
		return fmt.Errorf("invalid database port: %d", c.Database.Port)
	}

	if c.Database.User == "" {
		return fmt.Errorf("database user is required")
	}

	if c.Database.Database == "" {
		return fmt.Errorf("database name is required")
	}

	if c.Database.MaxConnections < 1 {
		return fmt.Errorf("database max connections must be at least 1")
	}

	if c.Database.MinConnections < 1 {
		return fmt.Errorf("database min connections must be at least 1")
	}

	if c.Database.MinConnections > c.Database.MaxConnections {
		return fmt.Errorf("database min connections cannot exceed max connections")
	}

	if c.Auth.JWTSecret == "" {
		return fmt.Errorf("JWT secret is required")
	}

	if c.Paystack.SecretKey == "" {
		return fmt.Errorf("paystack secret key is required")
	}

	if c.Paystack.TimeoutSeconds < 1 {
		return fmt.Errorf("paystack timeout must be at least 1 second")
	}

	if c.Paystack.VerifyMaxAttempts < 1 || c.Paystack.VerifyMaxAttempts > 10 {
		return fmt.Errorf("paystack verify max attempts must be between 1 and 10")
	}

	// Verification runs inside checkout and reconcile requests, so it has to
	// give up before the server stops writing the response.
	if c.Paystack.VerifyDeadlineSeconds < 1 || c.Paystack.VerifyDeadlineSeconds >= c.Server.WriteTimeoutSeconds {
		return fmt.Errorf("paystack verify deadline must be at least 1 second and below the server write timeout")
	}

	validLogLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}

	if !validLogLevels[c.Logger.Level] {
		return fmt.Errorf("invalid log level: %s (must be debug, info, warn, or error)", c.Logger.Level)
	}

	if c.Logger.Format != "json" && c.Logger.Format != "console" {
		return fmt.Errorf("invalid log format: %s (must be json or console)", c.Logger.Format)
	}

	if c.S3.Enabled {
		if c.S3.Bucket == "" {
			return fmt.Errorf("S3 bucket is required when S3 is enabled")
		}
		if c.S3.Region == "" {
			return fmt.Errorf("S3 region is required when S3 is enabled")
		}
	}

	if c.Redis.Addr != "" && c.Redis.DeliveryTTLSeconds < 1 {
		return fmt.Errorf("webhook delivery TTL must be at least 1 second")
	}

	if len(c.Kafka.Brokers) > 0 && c.Kafka.OrderTopic == "" {
		return fmt.Errorf("kafka order topic is required when brokers are set")
	}

	return nil
}

// ConnectionString returns the PostgreSQL connection string.
func (c *DatabaseConfig) ConnectionString() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=disable",
		c.User,
		c.Password,
		c.Host,
		c.Port,
		c.Database,
	)
}

// Address returns the server address.
func (c *ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// getEnv retrieves an environment variable or returns a default value.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt retrieves an environment variable as an integer or returns a default value.
func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// getEnvAsBool retrieves an environment variable as a boolean or returns a default value.
func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

// getEnvAsList splits a comma separated variable, dropping empty items.
func getEnvAsList(key string) []string {
	var out []string
	for _, item := range strings.Split(os.Getenv(key), ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
