package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds application configuration
type Config struct {
	Port          string
	Env           string
	LogLevel      string
	PublicBaseURL string

	DatabaseURL   string
	RedisAddr     string
	RedisPassword string
	RedisTLS      bool

	// Scheduling
	DefaultDailyCapacity int
	OfferWindow          time.Duration
	OfferSweepInterval   time.Duration
	PromoteToApproved    bool

	// Payments
	PaymentGatewayURL      string
	PaymentGatewayKey      string
	PaymentGatewayTimeout  time.Duration
	DefaultConsultationFee int64

	// Staff auth
	StaffJWTSecret string

	// Rate limiting on public booking endpoints
	BookingRateLimit  int
	BookingRateWindow time.Duration

	// Outbox delivery
	OutboxBatchSize    int
	OutboxPollInterval time.Duration

	// SendGrid Email Configuration
	SendGridAPIKey    string
	SendGridFromEmail string
	SendGridFromName  string

	CORSAllowedOrigins []string
}

// Load reads configuration from environment variables
func Load() *Config {
	return &Config{
		Port:          getEnv("PORT", "8080"),
		Env:           getEnv("ENV", "development"),
		LogLevel:      getEnv("LOG_LEVEL", "info"),
		PublicBaseURL: getEnv("PUBLIC_BASE_URL", ""),

		DatabaseURL:   getEnv("DATABASE_URL", ""),
		RedisAddr:     getEnv("REDIS_ADDR", "redis:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisTLS:      getEnvAsBool("REDIS_TLS", false),

		DefaultDailyCapacity: getEnvAsInt("DEFAULT_DAILY_CAPACITY", 12),
		OfferWindow:          getEnvAsDuration("OFFER_WINDOW", 2*time.Hour),
		OfferSweepInterval:   getEnvAsDuration("OFFER_SWEEP_INTERVAL", time.Minute),
		PromoteToApproved:    getEnvAsBool("PROMOTE_TO_APPROVED", false),

		PaymentGatewayURL:      getEnv("PAYMENT_GATEWAY_URL", ""),
		PaymentGatewayKey:      getEnv("PAYMENT_GATEWAY_KEY", ""),
		PaymentGatewayTimeout:  getEnvAsDuration("PAYMENT_GATEWAY_TIMEOUT", 10*time.Second),
		DefaultConsultationFee: int64(getEnvAsInt("DEFAULT_CONSULTATION_FEE_CENTS", 15000)),

		StaffJWTSecret: getEnv("STAFF_JWT_SECRET", ""),

		BookingRateLimit:  getEnvAsInt("BOOKING_RATE_LIMIT", 30),
		BookingRateWindow: getEnvAsDuration("BOOKING_RATE_WINDOW", time.Minute),

		OutboxBatchSize:    getEnvAsInt("OUTBOX_BATCH_SIZE", 25),
		OutboxPollInterval: getEnvAsDuration("OUTBOX_POLL_INTERVAL", 2*time.Second),

		SendGridAPIKey:    getEnv("SENDGRID_API_KEY", ""),
		SendGridFromEmail: getEnv("SENDGRID_FROM_EMAIL", ""),
		SendGridFromName:  getEnv("SENDGRID_FROM_NAME", "CareFlow Scheduling"),

		CORSAllowedOrigins: getEnvAsList("CORS_ALLOWED_ORIGINS"),
	}
}

// getEnvAsList splits a comma-separated environment variable.
func getEnvAsList(key string) []string {
	raw := getEnv(key, "")
	if raw == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt retrieves an environment variable as an integer or returns a default value
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

// getEnvAsBool retrieves an environment variable as a boolean or returns a default value
func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	return defaultValue
}
