package config

import (
	"fmt"
	"os"
	"strings"
	"time"
)

type Config struct {
	// Database
	DBDriver    string
	DBHost      string
	DBPort      string
	DBUser      string
	DBPassword  string
	DBName      string
	DBSSLMode   string
	DBPath      string
	DatabaseURL string

	// Redis
	RedisURL string

	// JWT
	JWTSecret string

	// Server
	Port        string
	Environment string
	LogLevel    string
	LogFormat   string

	// CORS
	CORSOrigins []string

	// Rate Limiting
	RateLimitRequests int
	RateLimitWindow   int
	RateLimitBurst    int

	// Features
	EnableCache   bool
	EnableMetrics bool

	// Payment gateway
	PaystackSecretKey     string
	PaystackWebhookSecret string
	PaystackBaseURL       string
	PaystackCallbackURL   string
	PaystackCurrency      string
	PaymentGatewayTimeout time.Duration

	// Reconciliation
	ReconcileEnabled   bool
	ReconcileSchedule  string
	ReconcileTimeout   time.Duration
	ReconcileBatchSize int

	// Background jobs
	SchedulerWorkers   int
	SchedulerQueueSize int
}

func New() *Config {
	c := &Config{
		// Database
		DBDriver:   strings.ToLower(getEnv("DB_DRIVER", "postgres")),
		DBHost:     getEnv("DB_HOST", "localhost"),
		DBPort:     getEnv("DB_PORT", "5432"),
		DBUser:     getEnv("DB_USER", "courseuser"),
		DBPassword: getEnv("DB_PASSWORD", "coursepassword"),
		DBName:     getEnv("DB_NAME", "coursedb"),
		DBSSLMode:  getEnv("DB_SSLMODE", "disable"),
		DBPath:     getEnv("DB_PATH", "./data/courses.db"),

		// Redis
		RedisURL: getEnv("REDIS_URL", "localhost:6379"),

		// JWT
		JWTSecret: getEnv("JWT_SECRET", "your-super-secret-jwt-key-change-this-in-production"),

		// Server
		Port:        getEnv("PORT", "8080"),
		Environment: getEnv("ENVIRONMENT", "development"),
		LogLevel:    getEnv("LOG_LEVEL", "debug"),
		LogFormat:   getEnv("LOG_FORMAT", "text"),

		// CORS
		CORSOrigins: splitList(getEnv("CORS_ORIGINS", "http://localhost:3000,http://localhost:8080")),

		// Rate Limiting
		RateLimitRequests: getEnvAsInt("RATE_LIMIT_REQUESTS", 100),
		RateLimitWindow:   getEnvAsInt("RATE_LIMIT_WINDOW", 60),
		RateLimitBurst:    getEnvAsInt("RATE_LIMIT_BURST", 20),

		// Features
		EnableCache:   getEnvAsBool("ENABLE_CACHE", false),
		EnableMetrics: getEnvAsBool("ENABLE_METRICS", true),

		// Payment gateway
		PaystackSecretKey:     strings.TrimSpace(getEnv("PAYSTACK_SECRET_KEY", "")),
		PaystackBaseURL:       strings.TrimRight(getEnv("PAYSTACK_BASE_URL", "https://api.paystack.co"), "/"),
		PaystackCallbackURL:   getEnv("PAYSTACK_CALLBACK_URL", ""),
		PaystackCurrency:      strings.ToUpper(getEnv("PAYSTACK_CURRENCY", "NGN")),
		PaymentGatewayTimeout: getEnvAsDuration("PAYMENT_GATEWAY_TIMEOUT", 15*time.Second),

		// Reconciliation
		ReconcileEnabled:   getEnvAsBool("RECONCILE_ENABLED", true),
		ReconcileSchedule:  getEnv("RECONCILE_SCHEDULE", "@every 15m"),
		ReconcileTimeout:   getEnvAsDuration("RECONCILE_TIMEOUT", 10*time.Minute),
		ReconcileBatchSize: getEnvAsInt("RECONCILE_BATCH_SIZE", 100),

		// Background jobs
		SchedulerWorkers:   getEnvAsInt("SCHEDULER_WORKERS", 2),
		SchedulerQueueSize: getEnvAsInt("SCHEDULER_QUEUE_SIZE", 32),
	}

	// The webhook is signed with the secret key unless a dedicated secret is set.
	c.PaystackWebhookSecret = strings.TrimSpace(getEnv("PAYSTACK_WEBHOOK_SECRET", c.PaystackSecretKey))

	if c.ReconcileBatchSize <= 0 {
		c.ReconcileBatchSize = 100
	}

	// Build DSN
	c.DatabaseURL = getEnv("DATABASE_URL", fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s?sslmode=%s",
		c.DBUser, c.DBPassword, c.DBHost, c.DBPort, c.DBName, c.DBSSLMode,
	))

	return c
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	var value int
	_, err := fmt.Sscanf(valueStr, "%d", &value)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	return valueStr == "true" || valueStr == "1"
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	value, err := time.ParseDuration(valueStr)
	if err != nil || value <= 0 {
		return defaultValue
	}
	return value
}

func splitList(value string) []string {
	parts := strings.Split(value, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}

func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

// PaymentsEnabled reports whether a gateway secret is configured.
func (c *Config) PaymentsEnabled() bool {
	return c != nil && c.PaystackSecretKey != ""
}

func (c *Config) UsesSQLite() bool {
	return c != nil && c.DBDriver == "sqlite"
}
