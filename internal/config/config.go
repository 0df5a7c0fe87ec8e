package config

import (
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Config centralizes runtime settings for the API and workers.
type Config struct {
	Port string

	AuthToken string

	DatabaseURL string

	OpenAIAPIKey              string
	OpenAIBaseURL             string
	OpenAITimeoutMS           int
	OpenAIMaxRetries          int
	OpenAIModelVisionPrimary  string
	OpenAIModelVisionFallback string
	OpenAIModelTextPrimary    string
	OpenAIModelTextFallback   string

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	StreamAdConcept string
	StreamSalesPage string
	StreamAdRecipe  string
	StreamDLQ       string
	StreamGroup     string
	StreamConsumer  string

	TaskTTLSeconds int

	StreamGraceMS       int
	StreamPollMS        int
	StreamTimeoutSecond int

	AnalysisMaxAttempts int

	RateLimitRPS   float64
	RateLimitBurst int

	CORSOrigins []string

	WorkerEnabled bool
}

// LoadDotEnv reads .env-style files before Load. Existing process
// environment variables keep precedence. Missing files are not an error.
func LoadDotEnv(paths ...string) error {
	var existing []string
	for _, path := range paths {
		if path == "" {
			continue
		}
		if _, err := os.Stat(path); err == nil {
			existing = append(existing, path)
		}
	}
	if len(existing) == 0 {
		return nil
	}
	return godotenv.Load(existing...)
}

func Load() Config {
	return Config{
		Port: getEnv("PORT", "8080"),

		AuthToken: getEnv("API_AUTH_TOKEN", ""),

		DatabaseURL: getEnv("DATABASE_URL", ""),

		OpenAIAPIKey:              getEnv("OPENAI_API_KEY", ""),
		OpenAIBaseURL:             getEnv("OPENAI_BASE_URL", "https://api.openai.com/v1"),
		OpenAITimeoutMS:           getEnvInt("OPENAI_TIMEOUT_MS", 60000),
		OpenAIMaxRetries:          getEnvInt("OPENAI_MAX_RETRIES", 2),
		OpenAIModelVisionPrimary:  getEnv("OPENAI_MODEL_VISION_PRIMARY", "gpt-4o"),
		OpenAIModelVisionFallback: getEnv("OPENAI_MODEL_VISION_FALLBACK", "gpt-4o-mini"),
		OpenAIModelTextPrimary:    getEnv("OPENAI_MODEL_TEXT_PRIMARY", "gpt-4o"),
		OpenAIModelTextFallback:   getEnv("OPENAI_MODEL_TEXT_FALLBACK", "gpt-4o-mini"),

		RedisAddr:     getEnv("REDIS_ADDR", ""),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvInt("REDIS_DB", 0),

		StreamAdConcept: getEnv("STREAM_AD_CONCEPT", "ad-concept"),
		StreamSalesPage: getEnv("STREAM_SALES_PAGE", "sales-page"),
		StreamAdRecipe:  getEnv("STREAM_AD_RECIPE", "ad-recipe"),
		StreamDLQ:       getEnv("STREAM_DLQ", "ad-tasks-dlq"),
		StreamGroup:     getEnv("STREAM_GROUP", "ad_workers"),
		StreamConsumer:  getEnv("STREAM_CONSUMER", "worker-1"),

		TaskTTLSeconds: getEnvInt("TASK_TTL_SECONDS", 3600),

		StreamGraceMS:       getEnvInt("STATUS_STREAM_GRACE_MS", 500),
		StreamPollMS:        getEnvInt("STATUS_STREAM_POLL_MS", 500),
		StreamTimeoutSecond: getEnvInt("STATUS_STREAM_TIMEOUT_SECONDS", 60),

		AnalysisMaxAttempts: getEnvInt("ANALYSIS_MAX_ATTEMPTS", 5),

		RateLimitRPS:   getEnvFloat("RATE_LIMIT_RPS", 20),
		RateLimitBurst: getEnvInt("RATE_LIMIT_BURST", 40),

		CORSOrigins: getEnvList("CORS_ORIGINS", nil),

		WorkerEnabled: getEnvBool("WORKER_ENABLED", true),
	}
}

func getEnv(key, fallback string) string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	return value
}

func getEnvInt(key string, fallback int) int {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvFloat(key string, fallback float64) float64 {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvBool(key string, fallback bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvList(key string, fallback []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	var items []string
	for _, item := range strings.Split(value, ",") {
		item = strings.TrimSpace(item)
		if item != "" {
			items = append(items, item)
		}
	}
	if len(items) == 0 {
		return fallback
	}
	return items
}
