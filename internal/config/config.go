package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Env                string
	HTTPAddr           string
	DatabaseURL        string
	DBMigrate          bool
	JWTSecret          string
	RabbitMQURL        string
	RabbitMQWorkerMode string
	RabbitMQMaxRetries int
	RabbitMQRetryDelay time.Duration
	CorsAllowedOrigins []string
	LogLevel           string

	ChatBackendURL         string
	ChatBackendTimeout     time.Duration
	ChatLevelsFile         string
	ChatUnknownLevelPolicy string
	ChatSessionTTL         time.Duration
}

func Load() Config {
	cfg := Config{
		Env:                getEnv("APP_ENV", "development"),
		HTTPAddr:           getEnv("HTTP_ADDR", ":8086"),
		DatabaseURL:        getEnv("DATABASE_URL", ""),
		DBMigrate:          getEnvBool("DB_MIGRATE", false),
		JWTSecret:          getEnv("JWT_SECRET", ""),
		RabbitMQURL:        getEnv("RABBITMQ_URL", ""),
		RabbitMQWorkerMode: getEnv("RABBITMQ_WORKER_MODE", "daemon"),
		RabbitMQMaxRetries: int(getEnvInt64("RABBITMQ_MAX_RETRIES", 5)),
		RabbitMQRetryDelay: getEnvDuration("RABBITMQ_RETRY_DELAY", 5*time.Second),
		CorsAllowedOrigins: splitCSV(getEnv("CORS_ALLOWED_ORIGINS", "")),
		LogLevel:           getEnv("LOG_LEVEL", ""),

		ChatBackendURL:         getEnvFirst([]string{"CHAT_BACKEND_URL", "CHATBOT_URL"}, ""),
		ChatBackendTimeout:     getEnvDuration("CHAT_BACKEND_TIMEOUT", 8*time.Second),
		ChatLevelsFile:         getEnv("CHAT_LEVELS_FILE", ""),
		ChatUnknownLevelPolicy: getEnv("CHAT_UNKNOWN_LEVEL_POLICY", "fail_open"),
		ChatSessionTTL:         getEnvDuration("CHAT_SESSION_TTL", 24*time.Hour),
	}

	if cfg.RabbitMQMaxRetries < 0 {
		cfg.RabbitMQMaxRetries = 0
	}
	if cfg.ChatSessionTTL <= 0 {
		cfg.ChatSessionTTL = 24 * time.Hour
	}

	return cfg
}

func (c Config) IsProduction() bool {
	return c.Env == "production"
}

func getEnv(key, fallback string) string {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	return value
}

func getEnvFirst(keys []string, fallback string) string {
	for _, k := range keys {
		value := strings.TrimSpace(os.Getenv(k))
		if value != "" {
			return value
		}
	}
	return fallback
}

func getEnvInt64(key string, fallback int64) int64 {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvBool(key string, fallback bool) bool {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return fallback
	}
	return d
}

func splitCSV(value string) []string {
	if strings.TrimSpace(value) == "" {
		return nil
	}
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
