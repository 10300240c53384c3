package main

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	aws_pkg "github.com/yashrajoria/bulk-settlement/pkg/aws"
	"github.com/yashrajoria/bulk-settlement/services/settlement-service/database"
)

// Config holds all configuration for the settlement service.
type Config struct {
	Port     string
	Env      string
	Postgres database.PostgresConfig
	RedisURL string

	EnrichmentBaseURL    string
	EnrichmentAPIKey     string
	EnrichmentRatePerSec float64

	KafkaBrokers      []string
	RunEventsTopic    string
	SNSTopicARN       string
	ReconBucket       string
	BulkRunQueueURL   string
	QueueVisibility   time.Duration
	QueuedRunTimeout  time.Duration
	AllowedOrigins    []string
	AccountLeaseTTL   time.Duration
	CompensationLimit time.Duration
}

// LoadConfig reads configuration from environment variables with optional
// Secrets Manager override.
func LoadConfig() (*Config, error) {
	// Missing .env is normal outside development.
	_ = godotenv.Load()

	cfg := &Config{
		Port: getEnv("PORT", "8095"),
		Env:  getEnv("APP_ENV", "development"),
		Postgres: database.PostgresConfig{
			User:     os.Getenv("POSTGRES_USER"),
			Password: os.Getenv("POSTGRES_PASSWORD"),
			DBName:   os.Getenv("POSTGRES_DB"),
			Host:     getEnv("POSTGRES_HOST", "localhost"),
			Port:     getEnv("POSTGRES_PORT", "5432"),
			SSLMode:  getEnv("POSTGRES_SSLMODE", "disable"),
			TimeZone: getEnv("POSTGRES_TIMEZONE", "UTC"),
		},
		RedisURL:             getEnv("REDIS_URL", "redis://localhost:6379/0"),
		EnrichmentBaseURL:    os.Getenv("ENRICHMENT_BASE_URL"),
		EnrichmentAPIKey:     os.Getenv("ENRICHMENT_API_KEY"),
		EnrichmentRatePerSec: getEnvFloat("ENRICHMENT_RATE_PER_SEC", 5),
		KafkaBrokers:         splitList(os.Getenv("KAFKA_BROKERS")),
		RunEventsTopic:       getEnv("BULK_RUN_EVENTS_TOPIC", "bulk-run-events"),
		SNSTopicARN:          os.Getenv("SETTLEMENT_SNS_TOPIC_ARN"),
		ReconBucket:          os.Getenv("RECONCILIATION_BUCKET"),
		BulkRunQueueURL:      os.Getenv("BULK_RUN_QUEUE_URL"),
		QueueVisibility:      getEnvDuration("SQS_VISIBILITY_TIMEOUT", 60*time.Second),
		QueuedRunTimeout:     getEnvDuration("BULK_RUN_QUEUE_TIMEOUT", 45*time.Second),
		AllowedOrigins:       splitList(getEnv("CORS_ALLOWED_ORIGINS", "http://localhost:3000")),
		AccountLeaseTTL:      getEnvDuration("ACCOUNT_LEASE_TTL", 2*time.Minute),
		CompensationLimit:    getEnvDuration("COMPENSATION_TIMEOUT", 30*time.Second),
	}

	// Override credentials from Secrets Manager when running on AWS
	if os.Getenv("AWS_USE_SECRETS") == "true" {
		if err := applySecrets(context.Background(), cfg); err != nil {
			return nil, err
		}
	}

	// A queued run must end before its message becomes visible to another replica.
	if cfg.QueuedRunTimeout >= cfg.QueueVisibility {
		return nil, fmt.Errorf("BULK_RUN_QUEUE_TIMEOUT (%s) must be shorter than SQS_VISIBILITY_TIMEOUT (%s)", cfg.QueuedRunTimeout, cfg.QueueVisibility)
	}

	if cfg.Postgres.User == "" || cfg.Postgres.Password == "" || cfg.Postgres.DBName == "" {
		return nil, fmt.Errorf("database config incomplete")
	}
	return cfg, nil
}

// applySecrets overrides database credentials and the enrichment API key
// with values from Secrets Manager. A missing API key secret is not an error.
func applySecrets(ctx context.Context, cfg *Config) error {
	awsCfg, err := aws_pkg.LoadAWSConfig(ctx)
	if err != nil {
		return fmt.Errorf("load aws config for secrets: %w", err)
	}
	sm := aws_pkg.NewSecretsClient(awsCfg)

	_, err = sm.ApplyOverrides(ctx, "settlement/DB_CREDENTIALS", map[string]*string{
		"POSTGRES_USER":     &cfg.Postgres.User,
		"POSTGRES_PASSWORD": &cfg.Postgres.Password,
		"POSTGRES_DB":       &cfg.Postgres.DBName,
		"POSTGRES_HOST":     &cfg.Postgres.Host,
		"POSTGRES_PORT":     &cfg.Postgres.Port,
	})
	if err != nil {
		return fmt.Errorf("database credentials: %w", err)
	}
	if key, err := sm.GetSecret(ctx, "settlement/ENRICHMENT_API_KEY"); err == nil && key != "" {
		cfg.EnrichmentAPIKey = key
	}
	return nil
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if v, err := strconv.ParseFloat(os.Getenv(key), 64); err == nil {
		return v
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if d, err := time.ParseDuration(os.Getenv(key)); err == nil && d > 0 {
		return d
	}
	return fallback
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
