package infra

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	StorageDriverLocal = "local"
	StorageDriverS3    = "s3"
)

// Config represents application configuration loaded from environment variables.
type Config struct {
	AppEnv      string
	Port        string
	DatabaseURL string

	XAIAPIKey         string
	XAIBaseURL        string
	XAIChatModel      string
	XAIPromptModel    string
	XAIImageModel     string
	XAIVideoModel     string
	XAIProxyURL       string
	XAIRequestTimeout time.Duration

	StorageDriver  string
	StoragePath    string
	StorageBaseURL string
	S3             S3Config

	PipelineStepTimeout     time.Duration
	PipelinePollInterval    time.Duration
	PipelinePollMaxAttempts int
	PipelinePollMargin      time.Duration

	HTTPReadTimeout    time.Duration
	HTTPWriteTimeout   time.Duration
	HTTPIdleTimeout    time.Duration
	CORSAllowedOrigins []string
	RateLimitPerMin    int
}

// S3Config holds the bucket settings used when StorageDriver is "s3".
type S3Config struct {
	Bucket          string
	Region          string
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
	PublicURL       string
	Prefix          string
}

// LoadConfig loads configuration from environment variables and applies defaults where needed.
// A missing XAI_API_KEY is not an error here; requests fail individually until it is set.
func LoadConfig() (*Config, error) {
	port := getEnv("PORT", "8080")
	cfg := &Config{
		AppEnv:      getEnv("APP_ENV", "development"),
		Port:        port,
		DatabaseURL: os.Getenv("DATABASE_URL"),

		XAIAPIKey:         strings.TrimSpace(os.Getenv("XAI_API_KEY")),
		XAIBaseURL:        getEnv("XAI_BASE_URL", "https://api.x.ai/v1"),
		XAIChatModel:      getEnv("XAI_CHAT_MODEL", "grok-4-1-fast"),
		XAIPromptModel:    getEnv("XAI_PROMPT_MODEL", "grok-4-1-fast-reasoning"),
		XAIImageModel:     getEnv("XAI_IMAGE_MODEL", "grok-imagine-image"),
		XAIVideoModel:     getEnv("XAI_VIDEO_MODEL", "grok-imagine-video"),
		XAIProxyURL:       os.Getenv("XAI_PROXY_URL"),
		XAIRequestTimeout: time.Second * time.Duration(getEnvInt("XAI_REQUEST_TIMEOUT_SECONDS", 120)),

		StorageDriver:  strings.ToLower(getEnv("STORAGE_DRIVER", StorageDriverLocal)),
		StoragePath:    getEnv("STORAGE_PATH", "./data"),
		StorageBaseURL: strings.TrimRight(getEnv("STORAGE_BASE_URL", "http://localhost:"+port), "/"),
		S3: S3Config{
			Bucket:          os.Getenv("S3_BUCKET"),
			Region:          getEnv("S3_REGION", "auto"),
			Endpoint:        os.Getenv("S3_ENDPOINT"),
			AccessKeyID:     os.Getenv("S3_ACCESS_KEY_ID"),
			SecretAccessKey: os.Getenv("S3_SECRET_ACCESS_KEY"),
			PublicURL:       os.Getenv("S3_PUBLIC_URL"),
			Prefix:          os.Getenv("S3_PREFIX"),
		},

		PipelineStepTimeout:     time.Second * time.Duration(getEnvInt("PIPELINE_STEP_TIMEOUT_SECONDS", 120)),
		PipelinePollInterval:    time.Millisecond * time.Duration(getEnvInt("PIPELINE_POLL_INTERVAL_MS", 5000)),
		PipelinePollMaxAttempts: getEnvInt("PIPELINE_POLL_MAX_ATTEMPTS", 180),
		PipelinePollMargin:      time.Second * time.Duration(getEnvInt("PIPELINE_POLL_MARGIN_SECONDS", 30)),

		HTTPReadTimeout:    time.Second * time.Duration(getEnvInt("HTTP_READ_TIMEOUT_SECONDS", 15)),
		HTTPWriteTimeout:   time.Second * time.Duration(getEnvInt("HTTP_WRITE_TIMEOUT_SECONDS", 30)),
		HTTPIdleTimeout:    time.Second * time.Duration(getEnvInt("HTTP_IDLE_TIMEOUT_SECONDS", 60)),
		CORSAllowedOrigins: getEnvList("CORS_ALLOWED_ORIGINS", []string{"*"}),
		RateLimitPerMin:    getEnvInt("RATE_LIMIT_PER_MINUTE", 10),
	}

	switch cfg.StorageDriver {
	case StorageDriverLocal:
	case StorageDriverS3:
		if strings.TrimSpace(cfg.S3.Bucket) == "" {
			return nil, fmt.Errorf("S3_BUCKET is required when STORAGE_DRIVER=s3")
		}
	default:
		return nil, fmt.Errorf("unknown STORAGE_DRIVER %q", cfg.StorageDriver)
	}

	if cfg.PipelinePollMaxAttempts <= 0 {
		return nil, fmt.Errorf("PIPELINE_POLL_MAX_ATTEMPTS must be positive")
	}

	return cfg, nil
}

// HasXAIKey reports whether the key came from the environment.
func (c *Config) HasXAIKey() bool {
	return c != nil && c.XAIAPIKey != ""
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

func getEnvList(key string, fallback []string) []string {
	raw, ok := os.LookupEnv(key)
	if !ok || strings.TrimSpace(raw) == "" {
		return fallback
	}
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return fallback
	}
	return out
}
