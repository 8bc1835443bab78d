package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"dreamstream/internal/gamification"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
)

// Config holds all configuration for the application
type Config struct {
	Database  DatabaseConfig
	Redis     RedisConfig
	Server    ServerConfig
	Level     LevelConfig
	Worker    WorkerConfig
	Challenge ChallengeConfig
	LogLevel  zerolog.Level
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	URL      string
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	DB       int
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Port int
}

// LevelConfig holds the level curve parameters
type LevelConfig struct {
	Base     int64
	Exponent float64
}

// WorkerConfig sizes the point-event worker pool
type WorkerConfig struct {
	Count     int
	QueueSize int
}

// ChallengeConfig controls the challenge scheduler
type ChallengeConfig struct {
	Tick time.Duration
}

// Load loads configuration from environment variables
func Load(logger zerolog.Logger) (*Config, error) {
	// Load .env file from the parent directory first, then the current one
	if err := godotenv.Load("../.env"); err != nil {
		if err := godotenv.Load(); err != nil {
			logger.Debug().Msg(".env file not found, using environment variables or defaults")
		}
	}

	cfg := &Config{
		Database: DatabaseConfig{
			URL:      getEnv("DATABASE_URL", ""),
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnvAsInt("DB_PORT", 5432),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", ""),
			DBName:   getEnv("DB_NAME", "dreamstream"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		Redis: RedisConfig{
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnvAsInt("REDIS_PORT", 6379),
			Username: getEnv("REDIS_USERNAME", ""),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
		},
		Server: ServerConfig{
			Port: getEnvAsInt("BACKEND_PORT", 8000),
		},
		Level: LevelConfig{
			Base:     int64(getEnvAsInt("LEVEL_BASE", int(gamification.DefaultCurve.Base))),
			Exponent: getEnvAsFloat("LEVEL_EXPONENT", gamification.DefaultCurve.Exponent),
		},
		Worker: WorkerConfig{
			Count:     getEnvAsInt("WORKER_COUNT", 8),
			QueueSize: getEnvAsInt("WORKER_QUEUE_SIZE", 1000),
		},
		Challenge: ChallengeConfig{
			Tick: getEnvAsDuration("CHALLENGE_TICK", 30*time.Second),
		},
	}

	level, err := zerolog.ParseLevel(getEnv("LOG_LEVEL", "info"))
	if err != nil {
		return nil, fmt.Errorf("invalid LOG_LEVEL: %w", err)
	}
	cfg.LogLevel = level

	if _, err := cfg.Curve(); err != nil {
		return nil, err
	}
	if cfg.Challenge.Tick <= 0 {
		return nil, fmt.Errorf("CHALLENGE_TICK must be positive, got %s", cfg.Challenge.Tick)
	}

	logger.Info().
		Int("server_port", cfg.Server.Port).
		Str("redis_addr", cfg.GetRedisAddr()).
		Int64("level_base", cfg.Level.Base).
		Float64("level_exponent", cfg.Level.Exponent).
		Int("workers", cfg.Worker.Count).
		Int("queue_size", cfg.Worker.QueueSize).
		Dur("challenge_tick", cfg.Challenge.Tick).
		Stringer("log_level", cfg.LogLevel).
		Msg("configuration loaded")

	return cfg, nil
}

// Curve returns the configured level curve after validating it
func (c *Config) Curve() (gamification.Curve, error) {
	curve := gamification.Curve{Base: c.Level.Base, Exponent: c.Level.Exponent}
	if err := curve.Validate(); err != nil {
		return gamification.Curve{}, fmt.Errorf("invalid level curve: %w", err)
	}
	return curve, nil
}

// GetDSN returns the PostgreSQL DSN
func (c *Config) GetDSN() string {
	if c.Database.URL != "" {
		return c.Database.URL
	}
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Database.Host,
		c.Database.Port,
		c.Database.User,
		c.Database.Password,
		c.Database.DBName,
		c.Database.SSLMode,
	)
}

// GetRedisAddr returns the Redis address
func (c *Config) GetRedisAddr() string {
	return fmt.Sprintf("%s:%d", c.Redis.Host, c.Redis.Port)
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
	valueStr := os.Getenv(key)
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := os.Getenv(key)
	if value, err := strconv.ParseFloat(valueStr, 64); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := os.Getenv(key)
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	return defaultValue
}
