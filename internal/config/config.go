package config

import (
	"os"

	"github.com/joho/godotenv"
)

type Config struct {
	Port        string
	DatabaseURL string
	RedisURL    string
	Environment string

	// Backend base URLs. Empty values disable the feature they back.
	QuestionAPIURL   string
	AssignmentAPIURL string
	BookmarkAPIURL   string
	MetricsAPIURL    string
	GraderAPIURL     string
	ExplainAPIURL    string

	Events EventConfig
}

func LoadConfig() (*Config, error) {
	// A missing .env file is fine; the environment wins either way.
	_ = godotenv.Load()

	return &Config{
		Port:        getEnv("PORT", "8080"),
		DatabaseURL: getEnv("DATABASE_URL", ""),
		RedisURL:    getEnv("REDIS_URL", "redis://localhost:6379"),
		Environment: getEnv("ENVIRONMENT", "development"),

		QuestionAPIURL:   getEnv("QUESTION_API_URL", "http://localhost:8081"),
		AssignmentAPIURL: getEnv("ASSIGNMENT_API_URL", ""),
		BookmarkAPIURL:   getEnv("BOOKMARK_API_URL", ""),
		MetricsAPIURL:    getEnv("METRICS_API_URL", ""),
		GraderAPIURL:     getEnv("GRADER_API_URL", ""),
		ExplainAPIURL:    getEnv("EXPLAIN_API_URL", ""),

		Events: EventConfig{
			Enabled:      getEnv("EVENTS_ENABLED", "true") == "true",
			Publisher:    getEnv("EVENTS_PUBLISHER", "kafka"),
			KafkaBrokers: getEnv("KAFKA_BROKERS", "localhost:9092"),
			SessionTopic: getEnv("SESSION_TOPIC", "session_events"),
		},
	}, nil
}

func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}
