package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port              string
	DBUrl             string
	JWTSecret         string
	CarrierURL        string
	CarrierAPIKey     string
	CarrierFromNumber string
	AppEnv            string

	DBMaxConns int32
	DBMinConns int32

	// Polling intervals for the badge refresh loops. Unread counts move
	// faster than client/referral counts, so they refresh more often.
	UnreadPollInterval   time.Duration
	ActivityPollInterval time.Duration
}

func LoadConfig() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found")
	}

	jwtSecret, exists := os.LookupEnv("JWT_SECRET")
	if !exists || jwtSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET is required")
	}

	return &Config{
		Port:                 getEnv("PORT", "8080"),
		DBUrl:                getEnv("DB_URL", ""),
		JWTSecret:            jwtSecret,
		CarrierURL:           getEnv("SMS_CARRIER_URL", ""),
		CarrierAPIKey:        getEnv("SMS_CARRIER_API_KEY", ""),
		CarrierFromNumber:    getEnv("SMS_CARRIER_FROM_NUMBER", ""),
		AppEnv:               normalizeEnv(getEnv("APP_ENV", "production")),
		DBMaxConns:           getEnvInt32("DB_MAX_CONNS", 10),
		DBMinConns:           getEnvInt32("DB_MIN_CONNS", 2),
		UnreadPollInterval:   getEnvDuration("UNREAD_POLL_INTERVAL_SECONDS", 30*time.Second),
		ActivityPollInterval: getEnvDuration("ACTIVITY_POLL_INTERVAL_SECONDS", 300*time.Second),
	}, nil
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvInt32(key string, fallback int32) int32 {
	value, exists := os.LookupEnv(key)
	if !exists || value == "" {
		return fallback
	}

	parsed, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil || parsed <= 0 {
		return fallback
	}
	return int32(parsed)
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	value, exists := os.LookupEnv(key)
	if !exists || value == "" {
		return fallback
	}

	seconds, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil || seconds <= 0 {
		return fallback
	}
	return time.Duration(seconds) * time.Second
}

func normalizeEnv(value string) string {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "dev", "develop", "development", "local":
		return "development"
	case "prod", "production":
		return "production"
	case "stage", "staging":
		return "staging"
	case "test", "testing":
		return "test"
	default:
		return strings.ToLower(strings.TrimSpace(value))
	}
}

func (c *Config) CarrierConfigured() bool {
	return c != nil && c.CarrierURL != "" && c.CarrierAPIKey != ""
}
