package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all configuration for the incident reporting service
type Config struct {
	// Server configuration
	Port           string
	AllowedOrigins []string
	StaticDir      string
	ExportDir      string
	CacheName      string
	RateLimit      int

	// Report presentation
	AppName    string
	Timezone   string
	DateLayout string

	// Photo ingestion
	MaxPhotos         int
	MaxImageDimension int
	JPEGQuality       int

	// Location acquisition
	LocationTimeout time.Duration
	LocationMaxAge  time.Duration

	// Durable store configuration
	StoreDriver     string
	SQLitePath      string
	DBHost          string
	DBPort          string
	DBUser          string
	DBPassword      string
	DBName          string
	StoreQuotaBytes int

	// SendGrid configuration, used for sharing reports with attachments
	SendGridAPIKey    string
	SendGridFromName  string
	SendGridFromEmail string

	// SSO configuration
	SSOJWTSecret string

	// Logging
	LogLevel string
}

// Load loads configuration from environment variables
func Load() *Config {
	return &Config{
		Port:           getEnv("PORT", "8080"),
		AllowedOrigins: getListEnv("ALLOWED_ORIGINS", []string{"*"}),
		StaticDir:      getEnv("STATIC_DIR", "web"),
		ExportDir:      getEnv("EXPORT_DIR", "exports"),
		CacheName:      getEnv("CACHE_NAME", "houtveilig-v2"),
		RateLimit:      getIntEnv("RATE_LIMIT_PER_MINUTE", 60),

		AppName:    getEnv("APP_NAME", "HoutVeilig"),
		Timezone:   getEnv("TIMEZONE", "Europe/Amsterdam"),
		DateLayout: getEnv("DATE_LAYOUT", "02-01-2006 15:04"),

		MaxPhotos:         getIntEnv("MAX_PHOTOS", 5),
		MaxImageDimension: getIntEnv("MAX_IMAGE_DIMENSION", 1200),
		JPEGQuality:       getIntEnv("JPEG_QUALITY", 75),

		LocationTimeout: getDurationEnv("LOCATION_TIMEOUT", 15*time.Second),
		LocationMaxAge:  getDurationEnv("LOCATION_MAX_AGE", 60*time.Second),

		StoreDriver:     getEnv("STORE_DRIVER", "sqlite"),
		SQLitePath:      getEnv("SQLITE_PATH", "houtveilig.db"),
		DBHost:          getEnv("DB_HOST", "localhost"),
		DBPort:          getEnv("DB_PORT", "3306"),
		DBUser:          getEnv("DB_USER", "server"),
		DBPassword:      getEnv("DB_PASSWORD", "secret"),
		DBName:          getEnv("DB_NAME", "houtveilig"),
		StoreQuotaBytes: getIntEnv("STORE_QUOTA_BYTES", 5*1024*1024),

		SendGridAPIKey:    getEnv("SENDGRID_API_KEY", ""),
		SendGridFromName:  getEnv("SENDGRID_FROM_NAME", "HoutVeilig"),
		SendGridFromEmail: getEnv("SENDGRID_FROM_EMAIL", "meldingen@houtveilig.nl"),

		SSOJWTSecret: getEnv("SSO_JWT_SECRET", ""),

		LogLevel: getEnv("LOG_LEVEL", "info"),
	}
}

// Validate checks the limits that the capture pipeline relies on.
func (c *Config) Validate() error {
	if c.MaxPhotos <= 0 {
		return fmt.Errorf("MAX_PHOTOS must be positive, got %d", c.MaxPhotos)
	}
	if c.MaxImageDimension <= 0 {
		return fmt.Errorf("MAX_IMAGE_DIMENSION must be positive, got %d", c.MaxImageDimension)
	}
	if c.JPEGQuality < 1 || c.JPEGQuality > 100 {
		return fmt.Errorf("JPEG_QUALITY must be within 1..100, got %d", c.JPEGQuality)
	}
	if c.LocationTimeout <= 0 {
		return fmt.Errorf("LOCATION_TIMEOUT must be positive, got %v", c.LocationTimeout)
	}
	switch c.StoreDriver {
	case "sqlite", "mysql":
	default:
		return fmt.Errorf("unsupported STORE_DRIVER %q", c.StoreDriver)
	}
	return nil
}

// Location returns the configured timezone, UTC if it cannot be loaded.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// getEnv gets an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getIntEnv gets an integer environment variable or returns a default value
func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// getDurationEnv gets a duration environment variable or returns a default value
func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

func getListEnv(key string, defaultValue []string) []string {
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
