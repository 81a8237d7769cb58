package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds every runtime parameter of the application.
type Config struct {
	DatabaseURL   string
	MigrationsDir string
	JWTSecretKey  string
	ServerPort    int

	SweepInterval   time.Duration
	CompletionGrace time.Duration

	ProfileServiceURL string

	R2AccountID       string
	R2AccessKeyID     string
	R2SecretAccessKey string
	R2BucketName      string
	R2PublicBaseURL   string
}

// Load reads configuration from environment variables, optionally
// picking up a local .env file first.
func Load() (*Config, error) {
	_ = godotenv.Load()

	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		return nil, fmt.Errorf("DATABASE_URL environment variable is not set")
	}

	jwtKey := os.Getenv("JWT_SECRET_KEY")
	if jwtKey == "" {
		return nil, fmt.Errorf("JWT_SECRET_KEY environment variable is not set")
	}

	port, err := intEnv("SERVER_PORT", 8080)
	if err != nil {
		return nil, err
	}
	if port <= 0 || port > 65535 {
		return nil, fmt.Errorf("SERVER_PORT must be between 1 and 65535, got %d", port)
	}

	sweepSeconds, err := intEnv("SWEEP_INTERVAL_SECONDS", 120)
	if err != nil {
		return nil, err
	}
	graceHours, err := intEnv("COMPLETION_GRACE_HOURS", 24)
	if err != nil {
		return nil, err
	}

	return &Config{
		DatabaseURL:       dbURL,
		MigrationsDir:     envOrDefault("MIGRATIONS_DIR", "migrations"),
		JWTSecretKey:      jwtKey,
		ServerPort:        port,
		SweepInterval:     time.Duration(sweepSeconds) * time.Second,
		CompletionGrace:   time.Duration(graceHours) * time.Hour,
		ProfileServiceURL: os.Getenv("PROFILE_SERVICE_URL"),
		R2AccountID:       os.Getenv("R2_ACCOUNT_ID"),
		R2AccessKeyID:     os.Getenv("R2_ACCESS_KEY_ID"),
		R2SecretAccessKey: os.Getenv("R2_SECRET_ACCESS_KEY"),
		R2BucketName:      os.Getenv("R2_BUCKET_NAME"),
		R2PublicBaseURL:   os.Getenv("R2_PUBLIC_BASE_URL"),
	}, nil
}

func envOrDefault(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func intEnv(key string, fallback int) (int, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback, nil
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s environment variable: %w", key, err)
	}
	return value, nil
}
