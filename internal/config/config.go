package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds runtime configuration values.
type Config struct {
	Port        string
	DatabaseURL string

	Gemini GeminiConfig
	Render RenderConfig
	Guide  GuideConfig
	Media  MediaConfig
}

// GeminiConfig configures the design analysis model.
type GeminiConfig struct {
	APIKey      string
	Model       string
	Temperature float64
	Timeout     time.Duration
}

// RenderConfig selects and configures the concept image backend.
type RenderConfig struct {
	// Provider is one of "hf", "gemini" or "imagen".
	Provider string
	HFToken  string
	HFModel  string
	Timeout  time.Duration

	GeminiModel string

	ImagenProject            string
	ImagenLocation           string
	ImagenModel              string
	ImagenAPIKey             string
	ImagenServiceAccount     string
	ImagenServiceAccountJSON string
}

// GuideConfig selects the chat model used for assembly guide expansion.
type GuideConfig struct {
	// Provider is "gemini" or "openai".
	Provider     string
	OpenAIAPIKey string
	OpenAIModel  string
}

// MediaConfig describes S3/media related configuration for concept export.
type MediaConfig struct {
	Bucket         string
	Region         string
	Endpoint       string
	PublicURL      string
	KeyPrefix      string
	ForcePathStyle bool
	LocalDir       string
}

// FromEnv loads configuration from environment variables and applies defaults.
func FromEnv() Config {
	cfg := Config{
		Port:        getenv("APP_PORT", "8080"),
		DatabaseURL: os.Getenv("DATABASE_URL"),
		Gemini: GeminiConfig{
			APIKey:      os.Getenv("GEMINI_API_KEY"),
			Model:       getenv("GEMINI_MODEL", "gemini-2.0-flash"),
			Temperature: getenvFloat("GEMINI_TEMPERATURE", 0.7),
			Timeout:     getenvDuration("GEMINI_TIMEOUT", 90*time.Second),
		},
		Render: RenderConfig{
			Provider:                 strings.ToLower(getenv("RENDER_PROVIDER", "hf")),
			HFToken:                  os.Getenv("HF_TOKEN"),
			HFModel:                  getenv("HF_MODEL", "stabilityai/stable-diffusion-xl-base-1.0"),
			Timeout:                  getenvDuration("RENDER_TIMEOUT", 120*time.Second),
			GeminiModel:              getenv("GEMINI_IMAGE_MODEL", "gemini-2.5-flash-image"),
			ImagenProject:            os.Getenv("IMAGEN_PROJECT_ID"),
			ImagenLocation:           getenv("IMAGEN_LOCATION", "us-central1"),
			ImagenModel:              getenv("IMAGEN_MODEL", "imagegeneration@006"),
			ImagenAPIKey:             os.Getenv("IMAGEN_API_KEY"),
			ImagenServiceAccount:     os.Getenv("IMAGEN_SERVICE_ACCOUNT"),
			ImagenServiceAccountJSON: os.Getenv("IMAGEN_SERVICE_ACCOUNT_JSON"),
		},
		Guide: GuideConfig{
			Provider:     strings.ToLower(getenv("GUIDE_PROVIDER", "gemini")),
			OpenAIAPIKey: os.Getenv("OPENAI_API_KEY"),
			OpenAIModel:  getenv("OPENAI_MODEL", "gpt-4o-mini"),
		},
		Media: MediaConfig{
			Bucket:         os.Getenv("S3_BUCKET"),
			Region:         os.Getenv("S3_REGION"),
			Endpoint:       os.Getenv("S3_ENDPOINT"),
			PublicURL:      os.Getenv("S3_PUBLIC_URL"),
			KeyPrefix:      strings.Trim(os.Getenv("S3_KEY_PREFIX"), "/"),
			ForcePathStyle: getenvBool("S3_FORCE_PATH_STYLE", false),
			LocalDir:       os.Getenv("MEDIA_LOCAL_DIR"),
		},
	}

	if cfg.Port == "" {
		log.Fatal("APP_PORT cannot be empty")
	}

	return cfg
}

func getenv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}

	return fallback
}

func getenvBool(key string, fallback bool) bool {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}

	parsed, err := strconv.ParseBool(val)
	if err != nil {
		return fallback
	}

	return parsed
}

func getenvFloat(key string, fallback float64) float64 {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}

	parsed, err := strconv.ParseFloat(val, 64)
	if err != nil {
		return fallback
	}

	return parsed
}

func getenvDuration(key string, fallback time.Duration) time.Duration {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}

	parsed, err := time.ParseDuration(val)
	if err != nil {
		return fallback
	}

	return parsed
}
