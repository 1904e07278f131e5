package config

import (
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

type Config struct {
	// Environment
	Environment string

	// Database
	DatabaseURL string

	// Redis
	RedisURL string

	// Server
	Port        string
	FrontendURL string

	// Match settings
	FeePercentage     int    // percent of the pooled stake retained on completion
	CountdownSeconds  int    // delay between accept and playable
	StaleMatchMinutes int    // WAITING matches older than this are swept
	SweepIntervalSecs int    // sweeper tick
	MinStake          int    // platform-wide floor, games may raise it
	MaxStake          int    // platform-wide ceiling
	TiePolicy         string // "refund" or "void"

	// Security
	JWTSecret             string
	TokenTTLHours         int
	LoginRateLimitSeconds int
}

func Load() *Config {
	// Load .env file if it exists
	godotenv.Load()

	return &Config{
		// Environment
		Environment: getEnv("APP_ENV", "development"),

		// Database
		DatabaseURL: getEnv("DATABASE_URL", "postgres://localhost:5432/play2cash?sslmode=disable"),

		// Redis
		RedisURL: getEnv("REDIS_URL", "redis://localhost:6379/0"),

		// Server
		Port:        getEnv("APP_PORT", "8080"),
		FrontendURL: getEnv("FRONTEND_URL", "http://localhost:5173"),

		// Match settings
		FeePercentage:     getEnvInt("FEE_PERCENTAGE", 5),
		CountdownSeconds:  getEnvInt("COUNTDOWN_SECONDS", 10),
		StaleMatchMinutes: getEnvInt("STALE_MATCH_MINUTES", 10),
		SweepIntervalSecs: getEnvInt("SWEEP_INTERVAL_SECONDS", 60),
		MinStake:          getEnvInt("MIN_STAKE", 1),
		MaxStake:          getEnvInt("MAX_STAKE", 1000),
		TiePolicy:         getEnv("TIE_POLICY", "refund"),

		// Security
		JWTSecret:             getEnv("JWT_SECRET", "change-me-in-production"),
		TokenTTLHours:         getEnvInt("TOKEN_TTL_HOURS", 24),
		LoginRateLimitSeconds: getEnvInt("LOGIN_RATE_LIMIT_SECONDS", 2),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}
