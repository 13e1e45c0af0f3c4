package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	// Backend selection and per-backend settings. Selection is read once at
	// startup.
	Backend          string // groq, ollama, lmstudio, anthropic
	GroqAPIKey       string
	GroqModel        string
	OllamaBaseURL    string
	OllamaModel      string
	LMStudioURL      string
	LMStudioModel    string
	AnthropicKey     string
	AnthropicModel   string
	Temperature      float64
	GroqTimeout      time.Duration
	OllamaTimeout    time.Duration
	LMStudioTimeout  time.Duration
	AnthropicTimeout time.Duration

	// Engine behavior.
	UseTools         bool
	MaxToolCalls     int
	RejectDuplicates bool

	// Database.
	DBDriver string // sqlite, postgres
	DBDSN    string
	DBName   string

	// Schema cache refresh schedule (cron expression, empty disables).
	SchemaRefreshCron string

	// Logging.
	LogLevel  string
	LogFormat string // text, json
}

func Load() *Config {
	_ = godotenv.Load() // ignore error if no .env

	return &Config{
		Backend:        envOr("LLM_BACKEND", "groq"),
		GroqAPIKey:     os.Getenv("GROQ_API_KEY"),
		GroqModel:      envOr("GROQ_MODEL", "llama-3.3-70b-versatile"),
		OllamaBaseURL:  envOr("OLLAMA_URL", "http://localhost:11434"),
		OllamaModel:    envOr("OLLAMA_MODEL", "llama3.1"),
		LMStudioURL:    envOr("LMSTUDIO_URL", "http://localhost:1234/v1"),
		LMStudioModel:  os.Getenv("LMSTUDIO_MODEL"),
		AnthropicKey:   os.Getenv("ANTHROPIC_API_KEY"),
		AnthropicModel: os.Getenv("ANTHROPIC_MODEL"),
		Temperature:    envFloat("LLM_TEMPERATURE", 0.1),

		GroqTimeout:      envSeconds("GROQ_TIMEOUT_SECONDS", 180),
		OllamaTimeout:    envSeconds("OLLAMA_TIMEOUT_SECONDS", 300),
		LMStudioTimeout:  envSeconds("LMSTUDIO_TIMEOUT_SECONDS", 300),
		AnthropicTimeout: envSeconds("ANTHROPIC_TIMEOUT_SECONDS", 60),

		UseTools:         envBool("USE_LLM_TOOLS", true),
		MaxToolCalls:     envInt("MAX_TOOL_CALLS", 8),
		RejectDuplicates: envBool("REJECT_DUPLICATE_TOOL_CALLS", false),

		DBDriver: envOr("DB_DRIVER", "sqlite"),
		DBDSN:    envOr("DB_DSN", "./data.db"),
		DBName:   os.Getenv("DB_NAME"),

		SchemaRefreshCron: envOr("SCHEMA_REFRESH_CRON", "@every 1h"),

		LogLevel:  envOr("LOG_LEVEL", "info"),
		LogFormat: envOr("LOG_FORMAT", "text"),
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func envSeconds(key string, fallback int) time.Duration {
	return time.Duration(envInt(key, fallback)) * time.Second
}
