// Package config provides configuration management for the application.
package config

import (
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Config holds all configuration values for the application.
type Config struct {
	// Rules
	RulesDir      string
	RulesS3Bucket string
	RulesS3Prefix string

	// AWS
	AWSRegion string

	// Database
	DBHost     string
	DBPort     int
	DBName     string
	DBUser     string
	DBPassword string

	// SES
	SESSenderEmail  string
	EscalationEmail string

	// Sessions
	SessionTimeoutMinutes int
	SessionCleanupMinutes int

	// Application
	Stage    string
	LogLevel string
}

// Load loads configuration from environment variables.
func Load() (*Config, error) {
	// Load .env file if it exists (for local development)
	_ = godotenv.Load()

	cfg := &Config{
		// Rules
		RulesDir:      getEnv("RULES_DIR", "rules"),
		RulesS3Bucket: getEnv("RULES_S3_BUCKET", ""),
		RulesS3Prefix: getEnv("RULES_S3_PREFIX", "rules/"),

		// AWS
		AWSRegion: getEnv("AWS_REGION", "us-east-1"),

		// Database
		DBHost:     getEnv("DB_HOST", getEnv("HEALTH_DB_HOST", "localhost")),
		DBPort:     getEnvInt("DB_PORT", getEnvInt("HEALTH_DB_PORT", 5432)),
		DBName:     getEnv("DB_NAME", getEnv("HEALTH_DB_NAME", "health_eligibility")),
		DBUser:     getEnv("DB_USER", getEnv("HEALTH_DB_USER", "postgres")),
		DBPassword: getEnv("DB_PASSWORD", getEnv("HEALTH_DB_PASSWORD", "")),

		// SES
		SESSenderEmail:  getEnv("SES_SENDER_EMAIL", ""),
		EscalationEmail: getEnv("ESCALATION_EMAIL", ""),

		// Sessions
		SessionTimeoutMinutes: getEnvInt("SESSION_TIMEOUT_MINUTES", 30),
		SessionCleanupMinutes: getEnvInt("SESSION_CLEANUP_MINUTES", 5),

		// Application
		Stage:    getEnv("STAGE", "dev"),
		LogLevel: getEnv("LOG_LEVEL", "info"),
	}

	return cfg, nil
}

// DatabaseURL returns the PostgreSQL connection string.
func (c *Config) DatabaseURL() string {
	sslMode := "require" // Use SSL for RDS
	if c.DBHost == "localhost" || c.DBHost == "127.0.0.1" {
		sslMode = "disable" // Disable SSL for local development
	}
	return "postgres://" + c.DBUser + ":" + c.DBPassword + "@" + c.DBHost + ":" + strconv.Itoa(c.DBPort) + "/" + c.DBName + "?sslmode=" + sslMode
}

// getEnv retrieves an environment variable or returns a default value.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt retrieves an environment variable as int or returns a default value.
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}
