package infra

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Upload backends for the training archive.
const (
	UploadBackendFal  = "fal"
	UploadBackendS3   = "s3"
	UploadBackendFile = "file"
)

// Config represents application configuration loaded from environment variables.
type Config struct {
	AppEnv string
	Port   string

	FalKey          string
	FalQueueBaseURL string
	FalSyncBaseURL  string
	FalRestBaseURL  string
	TrainingModel   string
	GenerationModel string

	TrainSteps        int
	TrainLearningRate float64
	TrainMinImages    int
	TrainMaxImages    int
	MaxImageSizeBytes int64

	DatabaseURL string

	UploadBackend  string
	StoragePath    string
	StorageBaseURL string
	MinioEndpoint  string
	MinioAccessKey string
	MinioSecretKey string
	MinioBucket    string
	MinioUseSSL    bool

	GeoIPDBPath string

	PollInterval     time.Duration
	PollErrorBackoff time.Duration

	HTTPReadTimeout  time.Duration
	HTTPWriteTimeout time.Duration
	HTTPIdleTimeout  time.Duration
	RateLimitPerMin  int
}

// LoadConfig loads configuration from environment variables and applies defaults where needed.
func LoadConfig() (*Config, error) {
	cfg := &Config{
		AppEnv: getEnv("APP_ENV", "development"),
		Port:   getEnv("PORT", "4000"),

		FalKey:          os.Getenv("FAL_KEY"),
		FalQueueBaseURL: getEnv("FAL_QUEUE_BASE_URL", "https://queue.fal.run"),
		FalSyncBaseURL:  getEnv("FAL_SYNC_BASE_URL", "https://fal.run"),
		FalRestBaseURL:  getEnv("FAL_REST_BASE_URL", "https://rest.alpha.fal.ai"),
		TrainingModel:   getEnv("TRAINING_MODEL", "fal-ai/flux-2-trainer"),
		GenerationModel: getEnv("GENERATION_MODEL", "fal-ai/flux-lora"),

		TrainSteps:        getEnvInt("TRAIN_STEPS", 1000),
		TrainLearningRate: getEnvFloat("TRAIN_LEARNING_RATE", 0.00005),
		TrainMinImages:    getEnvInt("TRAIN_MIN_IMAGES", 20),
		TrainMaxImages:    getEnvInt("TRAIN_MAX_IMAGES", 100),
		MaxImageSizeBytes: int64(getEnvInt("MAX_IMAGE_SIZE_MB", 10)) * 1024 * 1024,

		DatabaseURL: os.Getenv("DATABASE_URL"),

		UploadBackend:  strings.ToLower(getEnv("UPLOAD_BACKEND", UploadBackendFal)),
		StoragePath:    getEnv("STORAGE_PATH", "./storage"),
		StorageBaseURL: getEnv("STORAGE_BASE_URL", "http://localhost:4000/static"),
		MinioEndpoint:  os.Getenv("MINIO_ENDPOINT"),
		MinioAccessKey: os.Getenv("MINIO_ACCESS_KEY"),
		MinioSecretKey: os.Getenv("MINIO_SECRET_KEY"),
		MinioBucket:    getEnv("MINIO_BUCKET", "neongen-training"),
		MinioUseSSL:    getEnvBool("MINIO_USE_SSL", false),

		GeoIPDBPath: os.Getenv("GEOIP_DB_PATH"),

		PollInterval:     time.Second * time.Duration(getEnvInt("POLL_INTERVAL_SECONDS", 5)),
		PollErrorBackoff: time.Second * time.Duration(getEnvInt("POLL_ERROR_BACKOFF_SECONDS", 15)),

		HTTPReadTimeout:  time.Second * time.Duration(getEnvInt("HTTP_READ_TIMEOUT_SECONDS", 120)),
		HTTPWriteTimeout: time.Second * time.Duration(getEnvInt("HTTP_WRITE_TIMEOUT_SECONDS", 120)),
		HTTPIdleTimeout:  time.Second * time.Duration(getEnvInt("HTTP_IDLE_TIMEOUT_SECONDS", 60)),
		RateLimitPerMin:  getEnvInt("RATE_LIMIT_PER_MINUTE", 60),
	}

	switch cfg.UploadBackend {
	case UploadBackendFal, UploadBackendFile:
	case UploadBackendS3:
		if cfg.MinioEndpoint == "" || cfg.MinioAccessKey == "" || cfg.MinioSecretKey == "" {
			return nil, fmt.Errorf("UPLOAD_BACKEND=s3 requires MINIO_ENDPOINT, MINIO_ACCESS_KEY and MINIO_SECRET_KEY")
		}
	default:
		return nil, fmt.Errorf("unsupported UPLOAD_BACKEND %q", cfg.UploadBackend)
	}

	if cfg.TrainMinImages <= 0 || cfg.TrainMaxImages < cfg.TrainMinImages {
		return nil, fmt.Errorf("invalid training image bounds: min=%d max=%d", cfg.TrainMinImages, cfg.TrainMaxImages)
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}
