package config

import (
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

type Config struct {
	App      AppConfig
	Database DatabaseConfig
	Keys     APIKeys
	Ai       AIConfig
	Insight  InsightConfig
}

type AppConfig struct {
	Port               string
	Environment        string
	LogFilePath        string
	CorsAllowedOrigins string
	NatsURL            string
	RedisURL           string
	JwtSecret          string
	OtelEnabled        bool
	OtelEndpoint       string
}

type DatabaseConfig struct {
	Connection      string
	MaxIdleConns    int
	MaxOpenConns    int
	ConnMaxLifetime int // minutes
}

type APIKeys struct {
	OpenAI string
}

type AIConfig struct {
	LLMProvider      string // "openai" or "ollama"
	LLMBaseURL       string // OpenAI-compatible endpoint override
	OllamaBaseURL    string
	ClassifierModel  string
	GeneratorModel   string
	SynthesizerModel string
	RequestTimeout   int // seconds
}

type InsightConfig struct {
	SchemaKeywords      []string
	SampleRows          int
	SchemaCacheTTL      int // seconds, 0 disables the cache
	QueryTimeout        int // seconds
	EventTopic          string
	SuggestionWordDelay int // milliseconds between streamed suggestion words
}

// DefaultSchemaKeywords is the allow-list used when INSIGHT_SCHEMA_KEYWORDS is unset.
var DefaultSchemaKeywords = []string{
	"campaign",
	"marketing",
	"customer",
	"user",
	"order",
	"product",
	"sale",
	"lead",
	"conversion",
	"analytics",
	"engagement",
	"subscription",
	"revenue",
	"visitor",
	"traffic",
}

func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("Note: .env file not found, usage system environment")
	}

	return &Config{
		App: AppConfig{
			Port:               getEnv("APP_PORT", "3000"),
			Environment:        getEnv("GO_ENV", "development"),
			LogFilePath:        getEnv("LOG_FILE_PATH", "logs/app.log"),
			CorsAllowedOrigins: getEnv("CORS_ALLOWED_ORIGINS", "http://localhost:5173"),
			NatsURL:            getEnv("NATS_URL", "nats://localhost:4222"),
			RedisURL:           getEnv("REDIS_URL", "redis://localhost:6379"),
			JwtSecret:          getEnv("JWT_SECRET", ""),
			OtelEnabled:        getEnv("OTEL_ENABLED", "false") == "true",
			OtelEndpoint:       getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4318"),
		},
		Database: DatabaseConfig{
			Connection:      getEnv("DB_CONNECTION_STRING", ""),
			MaxIdleConns:    getEnvAsInt("DB_MAX_IDLE_CONNS", 10),
			MaxOpenConns:    getEnvAsInt("DB_MAX_OPEN_CONNS", 100),
			ConnMaxLifetime: getEnvAsInt("DB_CONN_MAX_LIFETIME_MINUTES", 60),
		},
		Keys: APIKeys{
			OpenAI: getEnv("OPENAI_API_KEY", ""),
		},
		Ai: AIConfig{
			LLMProvider:      getEnv("LLM_PROVIDER", "openai"),
			LLMBaseURL:       getEnv("LLM_BASE_URL", ""),
			OllamaBaseURL:    getEnv("OLLAMA_BASE_URL", "http://localhost:11434"),
			ClassifierModel:  getEnv("CLASSIFIER_MODEL", "gpt-4o-mini"),
			GeneratorModel:   getEnv("GENERATOR_MODEL", "gpt-4o"),
			SynthesizerModel: getEnv("SYNTHESIZER_MODEL", "gpt-4o-mini"),
			RequestTimeout:   getEnvAsInt("LLM_REQUEST_TIMEOUT_SECONDS", 120),
		},
		Insight: InsightConfig{
			SchemaKeywords:      getEnvAsList("INSIGHT_SCHEMA_KEYWORDS", DefaultSchemaKeywords),
			SampleRows:          getEnvAsInt("INSIGHT_SAMPLE_ROWS", 2),
			SchemaCacheTTL:      getEnvAsInt("INSIGHT_SCHEMA_CACHE_TTL_SECONDS", 0),
			QueryTimeout:        getEnvAsInt("INSIGHT_QUERY_TIMEOUT_SECONDS", 30),
			EventTopic:          getEnv("INSIGHT_EVENT_TOPIC", "insight.query.completed"),
			SuggestionWordDelay: getEnvAsInt("INSIGHT_SUGGESTION_WORD_DELAY_MS", 50),
		},
	}
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	strValue := getEnv(key, "")
	if value, err := strconv.Atoi(strValue); err == nil {
		return value
	}
	return fallback
}

// getEnvAsList splits a comma separated value, dropping blanks.
func getEnvAsList(key string, fallback []string) []string {
	raw := getEnv(key, "")
	if strings.TrimSpace(raw) == "" {
		return fallback
	}

	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.ToLower(strings.TrimSpace(part)); p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return fallback
	}
	return out
}
