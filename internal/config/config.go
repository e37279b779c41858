package config

import (
	"bufio"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	// HTTP Configuration
	HTTPAddr       string
	MaxUploadBytes int64

	// Database Configuration
	DatabaseURL string

	// Model Configuration
	ModelPath         string
	ModelMetadataPath string
	ONNXLibraryPath   string
	PredictTimeout    time.Duration

	// Auth Configuration
	APITokens      []string
	FeedbackTokens []string
	JWTSecret      string

	// Feedback image storage
	FeedbackDir    string
	BlobBackend    string
	MinioEndpoint  string
	MinioAccessKey string
	MinioSecretKey string
	MinioBucket    string
	MinioUseSSL    bool

	// NATS Configuration
	NatsURL           string
	EventPrefix       string
	HeartbeatInterval time.Duration

	LogLevel string
	Version  string
}

func Load(envFile string) (*Config, error) {
	if envFile != "" {
		if err := loadDotEnv(envFile); err != nil {
			slog.Warn("Could not load env file", "file", envFile, "error", err)
		} else {
			slog.Info("Environment loaded", "file", envFile)
		}
	}

	cfg := &Config{
		HTTPAddr:          getEnv("HTTP_ADDR", ":8000"),
		MaxUploadBytes:    int64(getEnvInt("MAX_UPLOAD_BYTES", 10<<20)),
		DatabaseURL:       getEnv("DATABASE_URL", "sqlite://data/catdog.sqlite"),
		ModelPath:         getEnv("MODEL_PATH", "data/models/cats_dogs.onnx"),
		ModelMetadataPath: getEnv("MODEL_METADATA_PATH", "data/models/cats_dogs.json"),
		ONNXLibraryPath:   getEnv("ONNX_LIBRARY_PATH", ""),
		PredictTimeout:    getEnvDuration("PREDICT_TIMEOUT", "10s"),
		APITokens:         getEnvList("API_TOKENS"),
		FeedbackTokens:    getEnvList("FEEDBACK_TOKENS"),
		JWTSecret:         getEnv("AUTH_JWT_SECRET", ""),
		FeedbackDir:       getEnv("FEEDBACK_DIR", "data/images"),
		BlobBackend:       getEnv("BLOB_BACKEND", "fs"),
		MinioEndpoint:     getEnv("MINIO_ENDPOINT", "localhost:9000"),
		MinioAccessKey:    getEnv("MINIO_ACCESS_KEY", ""),
		MinioSecretKey:    getEnv("MINIO_SECRET_KEY", ""),
		MinioBucket:       getEnv("MINIO_BUCKET", "feedback-images"),
		MinioUseSSL:       getEnvBool("MINIO_USE_SSL", false),
		NatsURL:           getEnv("NATS_URL", ""),
		EventPrefix:       getEnv("EVENT_SUBJECT_PREFIX", "catdog.events"),
		HeartbeatInterval: getEnvDuration("HEARTBEAT_INTERVAL", "30s"),
		LogLevel:          getEnv("LOG_LEVEL", "info"),
		Version:           getEnv("APP_VERSION", "1.0.0"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks settings that would otherwise fail late, at first request.
func (c *Config) Validate() error {
	switch c.BlobBackend {
	case "fs", "minio":
	default:
		return fmt.Errorf("unsupported BLOB_BACKEND %q", c.BlobBackend)
	}

	if !strings.HasPrefix(c.DatabaseURL, "sqlite://") &&
		!strings.HasPrefix(c.DatabaseURL, "postgres://") &&
		!strings.HasPrefix(c.DatabaseURL, "postgresql://") {
		return fmt.Errorf("unsupported DATABASE_URL scheme: %q", c.DatabaseURL)
	}

	if len(c.FeedbackTokens) == 0 && c.JWTSecret == "" {
		return fmt.Errorf("no feedback credentials configured: set FEEDBACK_TOKENS or AUTH_JWT_SECRET")
	}

	if c.BlobBackend == "minio" && (c.MinioAccessKey == "" || c.MinioSecretKey == "") {
		return fmt.Errorf("minio backend requires MINIO_ACCESS_KEY and MINIO_SECRET_KEY")
	}

	if c.PredictTimeout <= 0 {
		return fmt.Errorf("PREDICT_TIMEOUT must be positive")
	}
	return nil
}

// SlogLevel maps LOG_LEVEL to a slog level, defaulting to info.
func (c *Config) SlogLevel() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func loadDotEnv(filename string) error {
	file, err := os.Open(filename)
	if err != nil {
		return err
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		parts := strings.SplitN(line, "=", 2)
		if len(parts) == 2 {
			key := strings.TrimSpace(parts[0])
			value := strings.Trim(strings.TrimSpace(parts[1]), `"'`)
			// Real environment wins over the file.
			if _, exists := os.LookupEnv(key); !exists {
				os.Setenv(key, value)
			}
		}
	}
	return scanner.Err()
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return defaultVal
}

func getEnvBool(key string, defaultVal bool) bool {
	if val := os.Getenv(key); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			return b
		}
	}
	return defaultVal
}

func getEnvDuration(key, defaultVal string) time.Duration {
	val := getEnv(key, defaultVal)
	if d, err := time.ParseDuration(val); err == nil {
		return d
	}
	d, _ := time.ParseDuration(defaultVal)
	return d
}

// getEnvList splits a comma-separated variable, dropping empty entries.
func getEnvList(key string) []string {
	var out []string
	for _, part := range strings.Split(os.Getenv(key), ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
