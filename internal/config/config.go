// Package config loads application configuration from environment variables.
package config

import (
	"os"
	"time"

	"github.com/sirupsen/logrus"
)

// Config holds the runtime configuration of the booking server.  Each field
// corresponds to an environment variable.
type Config struct {
	Env       string // application environment (dev, test, prod)
	Port      string // HTTP port to listen on
	LogLevel  string
	LogFormat string // "text" or "json"

	DBUser string
	DBPass string // optional
	DBHost string
	DBPort string
	DBName string
	// Migrate creates the tables on start when true.
	Migrate bool

	// Identity: IdentityURL selects the remote verifier, otherwise tokens
	// are verified locally with JWTSecret.
	IdentityURL string
	JWTSecret   string

	// EventServiceURL, when set, makes the seat ledger a remote collaborator
	// instead of the local MySQL table.
	EventServiceURL string
	// InternalAPIKey guards the service-to-service routes.  Empty disables the check.
	InternalAPIKey string

	RabbitMQURL       string
	NotificationQueue string
	NotifyTimeout     time.Duration

	// PromotionSweepInterval is the period of the waitlist sweeper; 0 disables it.
	PromotionSweepInterval time.Duration
	// ReleaseRetries bounds the attempts of a compensating seat release.
	ReleaseRetries  int
	HTTPTimeout     time.Duration
	ShutdownTimeout time.Duration
}

// Load reads configuration values from environment variables.  Required
// variables are enforced by must() and a missing value stops the process.
func Load() Config {
	cfg := Config{
		Env:       envStr("APP_ENV", "dev"),
		Port:      must("APP_PORT"),
		LogLevel:  envStr("LOG_LEVEL", "info"),
		LogFormat: envStr("LOG_FORMAT", "text"),

		DBUser:  must("DB_USER"),
		DBPass:  os.Getenv("DB_PASS"),
		DBHost:  must("DB_HOST"),
		DBPort:  must("DB_PORT"),
		DBName:  must("DB_NAME"),
		Migrate: envBool("DB_MIGRATE", true),

		IdentityURL: os.Getenv("IDENTITY_URL"),
		JWTSecret:   os.Getenv("JWT_SECRET"),

		EventServiceURL: os.Getenv("EVENT_SERVICE_URL"),
		InternalAPIKey:  os.Getenv("INTERNAL_API_KEY"),

		RabbitMQURL:       os.Getenv("RABBITMQ_URL"),
		NotificationQueue: envStr("NOTIFICATION_QUEUE", "booking.notifications"),
		NotifyTimeout:     envDur("NOTIFY_TIMEOUT", 5*time.Second),

		PromotionSweepInterval: envDur("PROMOTION_SWEEP_INTERVAL", time.Minute),
		ReleaseRetries:         envInt("SEAT_RELEASE_RETRIES", 5),
		HTTPTimeout:            envDur("HTTP_CLIENT_TIMEOUT", 5*time.Second),
		ShutdownTimeout:        envDur("SHUTDOWN_TIMEOUT", 15*time.Second),
	}
	if cfg.IdentityURL == "" && cfg.JWTSecret == "" {
		logrus.Fatal("either IDENTITY_URL or JWT_SECRET must be set")
	}
	if cfg.ReleaseRetries < 1 {
		cfg.ReleaseRetries = 1
	}
	return cfg
}

// must retrieves a required environment variable and exits when it is
// unset or empty.
func must(key string) string {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		logrus.Fatalf("missing required env var: %s", key)
	}
	return v
}
