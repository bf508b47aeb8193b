package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds application configuration
type Config struct {
	Port     string
	Env      string
	LogLevel string

	// Engine thresholds
	AIFallbackThreshold   float64
	AutoApproveThreshold  int
	AutoApproveConfidence float64
	LearningQueueBuffer   int
	PromotionInterval     time.Duration

	// Business facts interpolated into response templates
	StudioName  string
	StudioPhone string
	StudioEmail string

	// Storage
	DatabaseURL       string
	SessionsTable     string
	ConfigTable       string
	RedisAddr         string
	RedisPassword     string
	RedisTLS          bool
	HistoryTTL        time.Duration

	// AWS / LLM
	AWSRegion           string
	AWSAccessKeyID      string
	AWSSecretAccessKey  string
	AWSEndpointOverride string
	LearningQueueURL    string
	BedrockModelID      string
	GeminiAPIKey        string
	GeminiModelID       string
	LLMTimeout          time.Duration
	LLMRequestsPerMin   int

	AdminJWTSecret string

	// Public HTTP surface
	CORSAllowedOrigins []string
	RateLimitPerSecond float64
	RateLimitBurst     int
}

// Load reads configuration from environment variables
func Load() *Config {
	return &Config{
		Port:     getEnv("PORT", "8080"),
		Env:      getEnv("ENV", "development"),
		LogLevel: getEnv("LOG_LEVEL", "info"),

		AIFallbackThreshold:   getEnvAsFloat("AI_FALLBACK_THRESHOLD", 0.7),
		AutoApproveThreshold:  getEnvAsInt("LEARNING_AUTO_APPROVE_THRESHOLD", 20),
		AutoApproveConfidence: getEnvAsFloat("LEARNING_AUTO_APPROVE_CONFIDENCE", 0.9),
		LearningQueueBuffer:   getEnvAsInt("LEARNING_QUEUE_BUFFER", 256),
		PromotionInterval:     getEnvAsDuration("LEARNING_PROMOTION_INTERVAL", 30*time.Minute),

		StudioName:  getEnv("STUDIO_NAME", "Smriti Studio"),
		StudioPhone: getEnv("STUDIO_PHONE", "+91 98250 12345"),
		StudioEmail: getEnv("STUDIO_EMAIL", "hello@smritistudio.in"),

		DatabaseURL:   getEnv("DATABASE_URL", ""),
		SessionsTable: getEnv("SESSIONS_TABLE", "chat-sessions"),
		ConfigTable:   getEnv("CONFIG_TABLE", "chat-config"),
		RedisAddr:     getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisTLS:      getEnvAsBool("REDIS_TLS", false),
		HistoryTTL:    getEnvAsDuration("HISTORY_TTL", 24*time.Hour),

		AWSRegion:           getEnv("AWS_REGION", "ap-south-1"),
		AWSAccessKeyID:      getEnv("AWS_ACCESS_KEY_ID", ""),
		AWSSecretAccessKey:  getEnv("AWS_SECRET_ACCESS_KEY", ""),
		AWSEndpointOverride: getEnv("AWS_ENDPOINT_OVERRIDE", ""),
		LearningQueueURL:    getEnv("LEARNING_QUEUE_URL", ""),
		BedrockModelID:      getEnv("BEDROCK_MODEL_ID", "anthropic.claude-3-haiku-20240307-v1:0"),
		GeminiAPIKey:        getEnv("GEMINI_API_KEY", ""),
		GeminiModelID:       getEnv("GEMINI_MODEL_ID", "gemini-2.5-flash"),
		LLMTimeout:          getEnvAsDuration("LLM_TIMEOUT", 15*time.Second),
		LLMRequestsPerMin:   getEnvAsInt("LLM_REQUESTS_PER_MIN", 60),

		AdminJWTSecret: getEnv("ADMIN_JWT_SECRET", ""),

		CORSAllowedOrigins: getEnvAsList("CORS_ALLOWED_ORIGINS", []string{"http://localhost:3000"}),
		RateLimitPerSecond: getEnvAsFloat("RATE_LIMIT_PER_SECOND", 2),
		RateLimitBurst:     getEnvAsInt("RATE_LIMIT_BURST", 10),
	}
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt retrieves an environment variable as an integer or returns a default value
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

// getEnvAsFloat retrieves an environment variable as a float or returns a default value
func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseFloat(valueStr, 64); err == nil {
		return value
	}
	return defaultValue
}

// getEnvAsBool retrieves an environment variable as a boolean or returns a default value
func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}

// getEnvAsList splits a comma-separated environment variable into a slice
func getEnvAsList(key string, defaultValue []string) []string {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	parts := strings.Split(valueStr, ",")
	values := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			values = append(values, trimmed)
		}
	}
	if len(values) == 0 {
		return defaultValue
	}
	return values
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	return defaultValue
}
