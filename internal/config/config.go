package config

import (
	"fmt"
	"os"
	"strconv"
)

// Config holds all application configuration loaded from environment variables.
// It is immutable after Load() returns.
type Config struct {
	Port                      int
	Environment               string
	DatabaseURL               string
	DatabaseMaxConns          int
	GCPProject                string
	VertexAILocation          string
	VertexAIModel             string
	EmbeddingModel            string
	EmbeddingDimensions       int
	FrontendURL               string
	ConfidenceThreshold       float64
	SelfRAGMaxIter            int
	RedisAddr                 string
	RedisPassword             string
	RedisDB                   int
	IdleSessionTimeoutMinutes int
	BYOLLMAPIKey              string
	BYOLLMBaseURL             string
	BYOLLMModel               string
}

// Load reads configuration from environment variables.
// Required variables (DATABASE_URL, GOOGLE_CLOUD_PROJECT) cause an error if missing.
// Optional variables use sensible defaults.
func Load() (*Config, error) {
	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		return nil, fmt.Errorf("config.Load: DATABASE_URL is required")
	}

	gcpProject := os.Getenv("GOOGLE_CLOUD_PROJECT")
	if gcpProject == "" {
		return nil, fmt.Errorf("config.Load: GOOGLE_CLOUD_PROJECT is required")
	}

	cfg := &Config{
		Port:                      envInt("PORT", 8080),
		Environment:               envStr("ENVIRONMENT", "development"),
		DatabaseURL:               dbURL,
		DatabaseMaxConns:          envInt("DATABASE_MAX_CONNS", 25),
		GCPProject:                gcpProject,
		VertexAILocation:          envStr("VERTEX_AI_LOCATION", "global"),
		VertexAIModel:             envStr("VERTEX_AI_MODEL", "gemini-3-pro-preview"),
		EmbeddingModel:            envStr("VERTEX_AI_EMBEDDING_MODEL", "text-embedding-004"),
		EmbeddingDimensions:       envInt("EMBEDDING_DIMENSIONS", 768),
		FrontendURL:               envStr("FRONTEND_URL", "http://localhost:3000"),
		ConfidenceThreshold:       envFloat("CONFIDENCE_THRESHOLD", 0.85),
		SelfRAGMaxIter:            envInt("SELF_RAG_MAX_ITERATIONS", 3),
		RedisAddr:                 envStr("REDIS_ADDR", "localhost:6379"),
		RedisPassword:             envStr("REDIS_PASSWORD", ""),
		RedisDB:                   envInt("REDIS_DB", 0),
		IdleSessionTimeoutMinutes: envInt("IDLE_SESSION_TIMEOUT_MINUTES", 30),
		BYOLLMAPIKey:              envStr("BYOLLM_API_KEY", ""),
		BYOLLMBaseURL:             envStr("BYOLLM_BASE_URL", ""),
		BYOLLMModel:               envStr("BYOLLM_MODEL", ""),
	}

	return cfg, nil
}

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func envFloat(key string, fallback float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return fallback
	}
	return f
}
