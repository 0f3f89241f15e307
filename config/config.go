package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	// Server configuration
	Port        string
	Environment string
	CORSOrigins []string

	// Database configuration
	DatabaseURL string

	// Redis configuration (backplane is disabled when RedisURL is empty)
	RedisURL string
	RedisDB  int

	// JWT configuration
	JWTSecret string
	JWTExpiry time.Duration

	// Presence configuration
	SweepInterval  time.Duration
	OfflineTimeout time.Duration

	// Bootstrap admin, created only when the users table is empty
	AdminUsername string
	AdminEmail    string
	AdminPassword string
}

// requiredVars are reported by Validate when unset.
var requiredVars = []string{"PORT", "JWT_SECRET"}

func LoadConfig() *Config {
	// Load .env file if it exists
	_ = godotenv.Load()

	return &Config{
		Port:        getEnv("PORT", "3001"),
		Environment: getEnv("ENVIRONMENT", "development"),
		CORSOrigins: getEnvAsList("CORS_ORIGINS", []string{"*"}),

		DatabaseURL: getEnv("DATABASE_URL", "data/thinwatcher.db"),

		RedisURL: getEnv("REDIS_URL", ""),
		RedisDB:  getEnvAsInt("REDIS_DB", 0),

		JWTSecret: getEnv("JWT_SECRET", "your_jwt_secret_key"),
		JWTExpiry: getEnvAsDuration("JWT_EXPIRY", time.Hour),

		SweepInterval:  getEnvAsDuration("SWEEP_INTERVAL", 10*time.Second),
		OfflineTimeout: getEnvAsDuration("OFFLINE_TIMEOUT", 20*time.Second),

		AdminUsername: getEnv("ADMIN_USERNAME", ""),
		AdminEmail:    getEnv("ADMIN_EMAIL", ""),
		AdminPassword: getEnv("ADMIN_PASSWORD", ""),
	}
}

// Validate returns the names of required variables that are missing from
// the environment. In production a missing variable is an error.
func (c *Config) Validate() ([]string, error) {
	var missing []string
	for _, key := range requiredVars {
		if os.Getenv(key) == "" {
			missing = append(missing, key)
		}
	}

	if c.SweepInterval <= 0 {
		return missing, fmt.Errorf("SWEEP_INTERVAL must be positive, got %s", c.SweepInterval)
	}
	if c.OfflineTimeout <= 0 {
		return missing, fmt.Errorf("OFFLINE_TIMEOUT must be positive, got %s", c.OfflineTimeout)
	}

	if len(missing) > 0 && c.IsProduction() {
		return missing, fmt.Errorf("missing required environment variables: %s", strings.Join(missing, ", "))
	}
	return missing, nil
}

func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return defaultValue
	}
	return n
}

// getEnvAsDuration accepts Go durations ("15s") or a plain number of seconds.
func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	if d, err := time.ParseDuration(value); err == nil {
		return d
	}
	if secs, err := strconv.Atoi(value); err == nil {
		return time.Duration(secs) * time.Second
	}
	return defaultValue
}

func getEnvAsList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}
