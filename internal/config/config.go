package config

import (
	"log"
	"os"
	"strconv"
)

// Config holds application configuration loaded from environment variables
type Config struct {
	DatabaseURL string
	Port        string
	Env         string

	SessionSecret      string
	GoogleClientID     string
	GoogleClientSecret string
	GoogleCallbackURL  string

	GeminiAPIKey   string
	GeminiBaseURL  string
	GeminiStubMode bool

	// Redis is optional. When unset, chat rate limiting and the point
	// expiry sweep are disabled; everything else works without it.
	RedisURL string

	LogLevel  string
	LogFormat string

	ChatRateLimit  int // assistant calls per session per window
	ChatRateWindow int // window length in seconds

	PointsExpiryDays     int
	PointsExpirySchedule string // cron spec for the expiry sweep
}

// Load reads configuration from environment variables
func Load() *Config {
	cfg := &Config{
		DatabaseURL:          os.Getenv("DATABASE_URL"),
		Port:                 getEnvWithDefault("PORT", "8080"),
		Env:                  getEnvWithDefault("ENV", "development"),
		SessionSecret:        os.Getenv("SESSION_SECRET"),
		GoogleClientID:       os.Getenv("GOOGLE_CLIENT_ID"),
		GoogleClientSecret:   os.Getenv("GOOGLE_CLIENT_SECRET"),
		GoogleCallbackURL:    os.Getenv("GOOGLE_CALLBACK_URL"),
		GeminiAPIKey:         os.Getenv("GEMINI_API_KEY"),
		GeminiBaseURL:        os.Getenv("GEMINI_BASE_URL"),
		GeminiStubMode:       getEnvBool("GEMINI_STUB_MODE", false),
		RedisURL:             os.Getenv("REDIS_URL"),
		LogLevel:             getEnvWithDefault("LOG_LEVEL", "info"),
		LogFormat:            getEnvWithDefault("LOG_FORMAT", "text"),
		ChatRateLimit:        getEnvInt("CHAT_RATE_LIMIT", 20),
		ChatRateWindow:       getEnvInt("CHAT_RATE_WINDOW_SECONDS", 60),
		PointsExpiryDays:     getEnvInt("POINTS_EXPIRY_DAYS", 365),
		PointsExpirySchedule: getEnvWithDefault("POINTS_EXPIRY_SCHEDULE", "0 4 * * *"),
	}

	// Warn if using default session secret (insecure for production)
	if cfg.SessionSecret == "" {
		cfg.SessionSecret = "dev-secret-change-in-production-use-openssl-rand-hex-32"
		log.Println("WARNING: Using default SESSION_SECRET. Generate a secure secret with: openssl rand -hex 32")
	}

	if cfg.GeminiAPIKey == "" && !cfg.GeminiStubMode {
		log.Println("WARNING: GEMINI_API_KEY not set. The chat assistant will fail until it is configured (or set GEMINI_STUB_MODE=true).")
	}

	return cfg
}

func getEnvWithDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		log.Printf("WARNING: invalid value %q for %s, using default %d", value, key, defaultValue)
		return defaultValue
	}
	return n
}

func getEnvBool(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	b, err := strconv.ParseBool(value)
	if err != nil {
		log.Printf("WARNING: invalid value %q for %s, using default %t", value, key, defaultValue)
		return defaultValue
	}
	return b
}
