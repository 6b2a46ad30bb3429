package config

import (
	"os"
	"path/filepath"
	"time"
)

// Config holds application configuration
type Config struct {
	DataDir          string
	StoreBackend     string // "file" or "sqlite"
	StorePath        string
	LogFile          string
	ReminderInterval time.Duration
	NotifyDelay      time.Duration
	SESFromEmail     string
	SESFromName      string
	AWSRegion        string
	Debug            bool
}

// Load reads configuration from environment variables with sensible defaults
func Load() *Config {
	dataDir := getEnv("DATA_DIR", ".")
	backend := getEnv("STORE_BACKEND", "file")

	defaultStore := filepath.Join(dataDir, "foxfamily_db.json")
	if backend == "sqlite" {
		defaultStore = filepath.Join(dataDir, "foxfamily.db")
	}

	return &Config{
		DataDir:          dataDir,
		StoreBackend:     backend,
		StorePath:        getEnv("STORE_PATH", defaultStore),
		LogFile:          getEnv("LOG_FILE", filepath.Join(dataDir, "foxfamily.log")),
		ReminderInterval: getDuration("REMINDER_INTERVAL", 60*time.Second),
		NotifyDelay:      getDuration("NOTIFY_DELAY", 100*time.Millisecond),
		SESFromEmail:     getEnv("SES_FROM_EMAIL", ""),
		SESFromName:      getEnv("SES_FROM_NAME", "FoxFamily"),
		AWSRegion:        getEnv("AWS_REGION", "us-east-1"),
		Debug:            getEnv("DEBUG", "") != "",
	}
}

// getEnv reads an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getDuration reads a duration-valued environment variable (e.g. "45s")
func getDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
