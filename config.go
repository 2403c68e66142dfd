package chatpants

import (
	"log/slog"
	"os"

	"github.com/joho/godotenv"
)

// DefaultModel is the generation model the experiment ran on.
const DefaultModel = "gpt-4-turbo"

type Config struct {
	OpenAIAPIKey  string
	OpenAIBaseURL string
	Model         string
}

// LoadConfig reads configuration from a .env file when present, falling back
// to process environment variables.
func LoadConfig() *Config {
	if err := godotenv.Load(); err != nil {
		slog.Info("No .env file found, falling back to environment variables")
	}

	return &Config{
		OpenAIAPIKey:  getEnv("OPENAI_API_KEY", ""),
		OpenAIBaseURL: getEnv("OPENAI_BASE_URL", ""),
		Model:         getEnv("CHATPANTS_MODEL", DefaultModel),
	}
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}
