package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

const (
	ProviderOpenRouter = "openrouter"
	ProviderGemini     = "gemini"
)

type Config struct {
	// Server
	Port     string
	Env      string
	LogLevel string
	LogJSON  bool

	// Database
	DatabaseURL string

	// Redis
	RedisURL string

	// JWT
	JWTSecret string

	// Upstream completion API. The API keys are optional on purpose: a missing
	// key is reported per request by the relay, not at start-up.
	UpstreamProvider       string
	OpenRouterAPIKey       string
	OpenRouterBaseURL      string
	OpenRouterReferer      string
	OpenRouterTitle        string
	GeminiAPIKey           string
	DefaultModel           string
	UpstreamTimeoutSeconds int
	RelayRequireAuth       bool

	// Frontend
	FrontendURL string
}

func Load() *Config {
	// Load .env file if it exists
	godotenv.Load()

	provider := strings.ToLower(getEnvOrDefault("UPSTREAM_PROVIDER", ProviderOpenRouter))

	cfg := &Config{
		Port:                   getEnvOrDefault("PORT", "8080"),
		Env:                    getEnvOrDefault("ENV", "development"),
		LogLevel:               getEnvOrDefault("LOG_LEVEL", "info"),
		LogJSON:                getEnvAsBoolOrDefault("LOG_JSON", false),
		DatabaseURL:            mustGetEnv("DATABASE_URL"),
		RedisURL:               mustGetEnv("REDIS_URL"),
		JWTSecret:              mustGetEnv("JWT_SECRET"),
		UpstreamProvider:       provider,
		OpenRouterAPIKey:       os.Getenv("OPENROUTER_API_KEY"),
		OpenRouterBaseURL:      getEnvOrDefault("OPENROUTER_BASE_URL", "https://openrouter.ai/api/v1"),
		OpenRouterReferer:      getEnvOrDefault("OPENROUTER_REFERER", "http://localhost:5173"),
		OpenRouterTitle:        getEnvOrDefault("OPENROUTER_TITLE", "Chatbot"),
		GeminiAPIKey:           os.Getenv("GEMINI_API_KEY"),
		DefaultModel:           getEnvOrDefault("DEFAULT_MODEL", defaultModelFor(provider)),
		UpstreamTimeoutSeconds: getEnvAsIntOrDefault("UPSTREAM_TIMEOUT_SECONDS", 60),
		RelayRequireAuth:       getEnvAsBoolOrDefault("RELAY_REQUIRE_AUTH", true),
		FrontendURL:            getEnvOrDefault("FRONTEND_URL", "http://localhost:5173"),
	}

	return cfg
}

func defaultModelFor(provider string) string {
	if provider == ProviderGemini {
		return "gemini-2.0-flash"
	}
	return "openrouter/auto"
}

func mustGetEnv(key string) string {
	val := os.Getenv(key)
	if val == "" {
		panic(fmt.Sprintf("required environment variable %s is not set", key))
	}
	return val
}

func getEnvOrDefault(key, defaultVal string) string {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	return val
}

func getEnvAsIntOrDefault(key string, defaultVal int) int {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return defaultVal
	}
	return n
}

func getEnvAsBoolOrDefault(key string, defaultVal bool) bool {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	b, err := strconv.ParseBool(val)
	if err != nil {
		return defaultVal
	}
	return b
}
