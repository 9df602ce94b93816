package config

import (
	"fmt"
	"os"
	"strconv"
)

type Config struct {
	Port               string
	ChatPlaneURL       string
	PostgresURL        string
	TemporalAddress    string
	TemporalTaskQueue  string
	ExaAPIKey          string
	ExaBaseURL         string
	ExaRequestsPerSec  float64
	ExaBurst           int
	WebsetPollMillis   int
	WebsetPollAttempts int
	ResearchPollMillis int
	ResearchAttempts   int
}

func Load() Config {
	postgresURL := getEnv("POSTGRES_URL", "")
	if postgresURL == "" {
		postgresURL = buildPostgresURL()
	}
	port := getEnv("CHAT_PLANE_PORT", "8080")
	return Config{
		Port:               port,
		ChatPlaneURL:       getEnv("CHAT_PLANE_URL", "http://localhost:"+port),
		PostgresURL:        postgresURL,
		TemporalAddress:    getEnv("TEMPORAL_ADDRESS", "localhost:7233"),
		TemporalTaskQueue:  getEnv("TEMPORAL_TASK_QUEUE", "chat-plane-tasks"),
		ExaAPIKey:          getEnv("EXA_API_KEY", ""),
		ExaBaseURL:         getEnv("EXA_BASE_URL", ""),
		ExaRequestsPerSec:  getEnvFloat("EXA_REQUESTS_PER_SECOND", 5),
		ExaBurst:           getEnvInt("EXA_BURST", 5),
		WebsetPollMillis:   getEnvInt("WEBSET_POLL_INTERVAL_MS", 2000),
		WebsetPollAttempts: getEnvInt("WEBSET_POLL_ATTEMPTS", 150),
		ResearchPollMillis: getEnvInt("RESEARCH_POLL_INTERVAL_MS", 5000),
		ResearchAttempts:   getEnvInt("RESEARCH_POLL_ATTEMPTS", 60),
	}
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if value := os.Getenv(key); value != "" {
		parsed, err := strconv.Atoi(value)
		if err == nil {
			return parsed
		}
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if value := os.Getenv(key); value != "" {
		parsed, err := strconv.ParseFloat(value, 64)
		if err == nil {
			return parsed
		}
	}
	return fallback
}

func buildPostgresURL() string {
	user := getEnv("POSTGRES_USER", "chatplane")
	password := getEnv("POSTGRES_PASSWORD", "chatplane")
	host := getEnv("POSTGRES_HOST", "localhost")
	port := getEnv("POSTGRES_PORT", "5432")
	database := getEnv("POSTGRES_DB", "chatplane")
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=disable", user, password, host, port, database)
}
