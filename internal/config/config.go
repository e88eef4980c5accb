package config

import (
	"crypto/rand"
	"encoding/hex"
	"os"
	"strconv"
)

type Config struct {
	ServerAddr  string
	DBHost      string
	DBPort      string
	DBUser      string
	DBPassword  string
	DBName      string
	JWTSecret   string
	RedisURL    string
	WorkerCount int

	// Groq API configuration
	GroqAPIKey         string
	GroqAPIBase        string
	TranscriptionModel string
	ChatModel          string

	// MinIO/S3 configuration
	MinioEndpoint  string
	MinioAccessKey string
	MinioSecretKey string
	MinioBucket    string
	MinioUseSSL    bool
	S3Region       string
	S3UsePathStyle bool
}

func Load() *Config {
	workerCount, _ := strconv.Atoi(getEnvOrDefault("WORKER_COUNT", "3"))
	if workerCount <= 0 {
		workerCount = 3
	}

	minioUseSSL, _ := strconv.ParseBool(getEnvOrDefault("MINIO_USE_SSL", "false"))
	s3UsePathStyle, _ := strconv.ParseBool(getEnvOrDefault("S3_USE_PATH_STYLE", "true"))

	return &Config{
		ServerAddr:         getEnvOrDefault("SERVER_ADDR", ":8080"),
		DBHost:             getEnvOrDefault("DB_HOST", "localhost"),
		DBPort:             getEnvOrDefault("DB_PORT", "5432"),
		DBUser:             getEnvOrDefault("DB_USER", "lecturehub"),
		DBPassword:         getEnvOrDefault("DB_PASSWORD", "lecturehub_dev_password"),
		DBName:             getEnvOrDefault("DB_NAME", "lecturehub"),
		JWTSecret:          getEnvOrDefault("JWT_SECRET", generateDefaultSecret()),
		RedisURL:           getEnvOrDefault("REDIS_URL", "redis://localhost:6379"),
		WorkerCount:        workerCount,
		GroqAPIKey:         getEnvOrDefault("GROQ_API_KEY", ""),
		GroqAPIBase:        getEnvOrDefault("GROQ_API_BASE", "https://api.groq.com/openai/v1"),
		TranscriptionModel: getEnvOrDefault("TRANSCRIPTION_MODEL", "whisper-large-v3-turbo"),
		ChatModel:          getEnvOrDefault("CHAT_MODEL", "llama-3.3-70b-versatile"),
		MinioEndpoint:      getEnvOrDefault("MINIO_ENDPOINT", "localhost:9000"),
		MinioAccessKey:     getEnvOrDefault("MINIO_ACCESS_KEY", "minioadmin"),
		MinioSecretKey:     getEnvOrDefault("MINIO_SECRET_KEY", "minioadmin"),
		MinioBucket:        getEnvOrDefault("MINIO_BUCKET", "lecture-media"),
		MinioUseSSL:        minioUseSSL,
		S3Region:           getEnvOrDefault("S3_REGION", "us-east-1"),
		S3UsePathStyle:     s3UsePathStyle,
	}
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func generateDefaultSecret() string {
	bytes := make([]byte, 32)
	if _, err := rand.Read(bytes); err != nil {
		return "dev-secret-change-in-production"
	}
	return hex.EncodeToString(bytes)
}
