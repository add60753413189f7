package config

import (
	"log"
	"os"
	"strconv"
	"time"
)

// getEnv returns the value of an environment variable or a default value if not set.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt returns the value of an environment variable as an integer,
// or a default value if not set. A value that fails to parse falls back
// to the default with a startup warning.
func getEnvInt(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	intVal, err := strconv.Atoi(value)
	if err != nil {
		log.Printf("config: invalid integer %q for %s, using default %d", value, key, defaultValue)
		return defaultValue
	}

	return intVal
}

// getEnvDuration returns the value of an environment variable as a
// time.Duration, or a default value if not set. Accepts formats like
// "300ms", "1.5h", "2h45m". A value that fails to parse falls back to
// the default with a startup warning.
func getEnvDuration(key string, defaultValue string) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		duration, _ := time.ParseDuration(defaultValue)
		return duration
	}

	duration, err := time.ParseDuration(value)
	if err != nil {
		log.Printf("config: invalid duration %q for %s, using default %s", value, key, defaultValue)
		duration, _ = time.ParseDuration(defaultValue)
		return duration
	}

	return duration
}
