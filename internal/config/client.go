package config

import (
	"os"

	"github.com/joho/godotenv"
)

// ClientConfig configures the terminal chat view. Either Token is set, or
// JWTSecret and UserID are set and a development token is minted locally.
type ClientConfig struct {
	APIURL         string
	Token          string
	JWTSecret      string
	UserID         string
	LogLevel       string
	TimeoutSeconds int
}

func LoadClient() *ClientConfig {
	godotenv.Load()

	return &ClientConfig{
		APIURL:         getEnvOrDefault("CHAT_API_URL", "http://localhost:8080"),
		Token:          os.Getenv("CHAT_TOKEN"),
		JWTSecret:      os.Getenv("JWT_SECRET"),
		UserID:         os.Getenv("CHAT_USER_ID"),
		LogLevel:       getEnvOrDefault("LOG_LEVEL", "warn"),
		TimeoutSeconds: getEnvAsIntOrDefault("CHAT_TIMEOUT_SECONDS", 90),
	}
}
