// Package common provides shared utilities for KI7MT grid lab applications.
package common

import (
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds common configuration for all applications.
type Config struct {
	ClickHouseHost     string
	ClickHouseDatabase string
	ClickHouseUser     string
	ClickHousePassword string
	DataDir            string
	HubsFile           string
	LogLevel           string
	Timezone           string
	GridStatusAPIKey   string
	RequestDelay       time.Duration
	HTTPTimeout        time.Duration
}

// DefaultConfig returns configuration with sensible defaults.
// A .env file in the working directory is loaded first when present;
// variables already set in the environment win.
func DefaultConfig() *Config {
	_ = godotenv.Load()

	return &Config{
		ClickHouseHost:     getEnv("CLICKHOUSE_HOST", "127.0.0.1:9000"),
		ClickHouseDatabase: getEnv("CLICKHOUSE_DATABASE", "ercot"),
		ClickHouseUser:     getEnv("CLICKHOUSE_USER", "default"),
		ClickHousePassword: getEnv("CLICKHOUSE_PASSWORD", ""),
		DataDir:            getEnv("GRIDLAB_DATA_DIR", "public/data"),
		HubsFile:           getEnv("GRIDLAB_HUBS_FILE", ""),
		LogLevel:           getEnv("LOG_LEVEL", "info"),
		Timezone:           getEnv("GRIDLAB_TIMEZONE", "America/Chicago"),
		GridStatusAPIKey:   getEnv("GRIDSTATUS_API_KEY", ""),
		RequestDelay:       getEnvDuration("GRIDLAB_REQUEST_DELAY", time.Second),
		HTTPTimeout:        getEnvDuration("GRIDLAB_HTTP_TIMEOUT", 120*time.Second),
	}
}

// PricesDir returns the settlement price data directory path.
func (c *Config) PricesDir() string {
	return filepath.Join(c.DataDir, "prices")
}

// ProfilesDir returns the capacity-factor profile directory path.
func (c *Config) ProfilesDir() string {
	return filepath.Join(c.DataDir, "profiles")
}

// WeatherDir returns the raw weather table directory path.
func (c *Config) WeatherDir() string {
	return filepath.Join(c.DataDir, "weather")
}

// Location resolves the configured market timezone, falling back to UTC.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	if d, err := time.ParseDuration(value); err == nil {
		return d
	}
	// Bare numbers are seconds.
	if n, err := strconv.ParseFloat(value, 64); err == nil {
		return time.Duration(n * float64(time.Second))
	}
	return defaultValue
}
