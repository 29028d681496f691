// Package config loads the deposit release service configuration from
// environment variables.
package config

import (
	"os"
	"time"

	"github.com/rs/zerolog/log"
)

// Config holds all runtime configuration values.  Each field corresponds to
// an environment variable.
type Config struct {
	Env    string // APP_ENV (dev, test, prod)
	Port   string // APP_PORT
	DBUser string // DB_USER
	DBPass string // DB_PASS (empty allowed)
	DBHost string // DB_HOST
	DBPort string // DB_PORT
	DBName string // DB_NAME

	// Job trigger credentials.  At least one must be set or every trigger
	// call is rejected.
	CronSecret       string // CRON_SECRET, compared in constant time
	CronSecretBcrypt string // CRON_SECRET_BCRYPT, bcrypt hash of the secret
	AdminJWTSecret   string // ADMIN_JWT_SECRET, HS256 key for admin tokens

	StripeSecretKey string        // STRIPE_SECRET_KEY
	StripeBaseURL   string        // STRIPE_API_BASE (tests and mocks)
	GatewayTimeout  time.Duration // GATEWAY_TIMEOUT

	BatchSize      int           // RELEASE_BATCH_SIZE
	LockTTL        time.Duration // RELEASE_LOCK_TTL
	RunJournalPath string        // RUN_JOURNAL_PATH

	SchedulerEnabled  bool          // SCHEDULER_ENABLED
	SchedulerInterval time.Duration // SCHEDULER_INTERVAL

	AMQPURL               string // RABBITMQ_URL or AMQP_URL
	NotifyQueueBuffer     int    // NOTIFY_QUEUE_BUFFER
	NotifyPublishAttempts int    // NOTIFY_PUBLISH_ATTEMPTS
}

// Load reads configuration values from environment variables.  Required
// variables are enforced by must() and a missing one stops the process.
func Load() Config {
	return Config{
		Env:    envStr("APP_ENV", "dev"),
		Port:   must("APP_PORT"),
		DBUser: must("DB_USER"),
		DBPass: os.Getenv("DB_PASS"),
		DBHost: must("DB_HOST"),
		DBPort: must("DB_PORT"),
		DBName: must("DB_NAME"),

		CronSecret:       os.Getenv("CRON_SECRET"),
		CronSecretBcrypt: os.Getenv("CRON_SECRET_BCRYPT"),
		AdminJWTSecret:   os.Getenv("ADMIN_JWT_SECRET"),

		StripeSecretKey: os.Getenv("STRIPE_SECRET_KEY"),
		StripeBaseURL:   os.Getenv("STRIPE_API_BASE"),
		GatewayTimeout:  envDur("GATEWAY_TIMEOUT", 20*time.Second),

		BatchSize:      envInt("RELEASE_BATCH_SIZE", 50),
		LockTTL:        envDur("RELEASE_LOCK_TTL", 2*time.Minute),
		RunJournalPath: envStr("RUN_JOURNAL_PATH", "data/release-runs.db"),

		SchedulerEnabled:  envBool("SCHEDULER_ENABLED", false),
		SchedulerInterval: envDur("SCHEDULER_INTERVAL", time.Hour),

		AMQPURL:               amqpURL(),
		NotifyQueueBuffer:     envInt("NOTIFY_QUEUE_BUFFER", 256),
		NotifyPublishAttempts: envInt("NOTIFY_PUBLISH_ATTEMPTS", 3),
	}
}

func amqpURL() string {
	if v := os.Getenv("RABBITMQ_URL"); v != "" {
		return v
	}
	return os.Getenv("AMQP_URL")
}

// must retrieves the value of a required environment variable.  If the
// variable is unset or empty, the process exits.
func must(key string) string {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		log.Fatal().Str("key", key).Msg("missing required env var")
	}
	return v
}
