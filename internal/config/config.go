package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	Database DatabaseConfig
	Server   ServerConfig
	App      AppConfig
	Redis    RedisConfig
	Storage  StorageConfig
	VoiceAI  VoiceAIConfig
	Log      LogConfig
}

// DatabaseConfig holds database connection settings
type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
}

// ServerConfig holds server settings
type ServerConfig struct {
	Port            string
	AllowedOrigins  string
	RateLimitPerSec float64
	RateLimitBurst  int
}

// AppConfig holds application-specific settings
type AppConfig struct {
	JWTSecret     string
	IPHashSalt    string
	AdminUsername string
}

// RedisConfig holds leaderboard cache settings
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// StorageConfig holds S3-compatible object storage settings
type StorageConfig struct {
	Endpoint        string
	Region          string
	Bucket          string
	AccessKeyID     string
	SecretAccessKey string
	MaxUploadBytes  int64
}

// VoiceAIConfig holds transcription and parsing API settings
type VoiceAIConfig struct {
	APIKey             string
	BaseURL            string
	TranscriptionModel string
	ParsingModel       string
}

// LogConfig holds structured logging settings
type LogConfig struct {
	Level      string
	File       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	// Try to load .env file (ignore error if it doesn't exist)
	_ = godotenv.Load()

	config := &Config{
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnv("DB_PORT", "5432"),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", ""),
			DBName:   getEnv("DB_NAME", "taskquest"),
		},
		Server: ServerConfig{
			Port:            getEnv("SERVER_PORT", "8080"),
			AllowedOrigins:  getEnv("ALLOWED_ORIGINS", "http://localhost:3000"),
			RateLimitPerSec: getEnvFloat("RATE_LIMIT_PER_SEC", 20),
			RateLimitBurst:  getEnvInt("RATE_LIMIT_BURST", 40),
		},
		App: AppConfig{
			JWTSecret:     getEnv("JWT_SECRET", ""),
			IPHashSalt:    getEnv("IP_HASH_SALT", ""),
			AdminUsername: getEnv("ADMIN_USERNAME", "admin"),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", ""),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvInt("REDIS_DB", 0),
		},
		Storage: StorageConfig{
			Endpoint:        getEnv("S3_ENDPOINT", ""),
			Region:          getEnv("S3_REGION", "auto"),
			Bucket:          getEnv("S3_BUCKET", "taskquest-proofs"),
			AccessKeyID:     getEnv("S3_ACCESS_KEY_ID", ""),
			SecretAccessKey: getEnv("S3_SECRET_ACCESS_KEY", ""),
			MaxUploadBytes:  int64(getEnvInt("S3_MAX_UPLOAD_MB", 25)) * 1024 * 1024,
		},
		VoiceAI: VoiceAIConfig{
			APIKey:             getEnv("VOICEAI_API_KEY", ""),
			BaseURL:            getEnv("VOICEAI_BASE_URL", "https://api.openai.com/v1"),
			TranscriptionModel: getEnv("VOICEAI_TRANSCRIPTION_MODEL", "whisper-1"),
			ParsingModel:       getEnv("VOICEAI_PARSING_MODEL", "gpt-4o-mini"),
		},
		Log: LogConfig{
			Level:      getEnv("LOG_LEVEL", "info"),
			File:       getEnv("LOG_FILE", ""),
			MaxSizeMB:  getEnvInt("LOG_MAX_SIZE_MB", 100),
			MaxBackups: getEnvInt("LOG_MAX_BACKUPS", 3),
			MaxAgeDays: getEnvInt("LOG_MAX_AGE_DAYS", 28),
		},
	}

	// Validate required fields
	if config.App.JWTSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET is required")
	}

	return config, nil
}

// GetDSN returns the PostgreSQL connection string
func (c *Config) GetDSN() string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=disable",
		c.Database.Host,
		c.Database.Port,
		c.Database.User,
		c.Database.Password,
		c.Database.DBName,
	)
}

// getEnv gets an environment variable with a fallback default value
func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getEnvInt(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return defaultValue
	}
	return n
}

func getEnvFloat(key string, defaultValue float64) float64 {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	f, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return defaultValue
	}
	return f
}
