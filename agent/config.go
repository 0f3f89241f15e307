package main

import (
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	ServerURL         string
	ClientID          string
	HeartbeatInterval time.Duration
	RequestTimeout    time.Duration
}

func LoadConfig() *Config {
	// Load .env file if it exists
	_ = godotenv.Load()

	clientID := getEnv("CLIENT_ID", "")
	if clientID == "" {
		if hostname, err := os.Hostname(); err == nil {
			clientID = strings.ToUpper(hostname)
		}
	}

	return &Config{
		ServerURL:         strings.TrimRight(getEnv("SERVER_URL", "http://localhost:3001"), "/"),
		ClientID:          clientID,
		HeartbeatInterval: getEnvAsDuration("HEARTBEAT_INTERVAL", 5*time.Second),
		RequestTimeout:    getEnvAsDuration("REQUEST_TIMEOUT", 5*time.Second),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil && d > 0 {
			return d
		}
	}
	return defaultValue
}
