package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/bobarin/topicreel/internal/media"
	"github.com/joho/godotenv"
)

type Config struct {
	// Server
	APIPort            string
	WorkerEnabled      bool
	BackendAPIKey      string // API key for authenticating requests (empty = no auth, dev mode)
	CorsAllowedOrigins string // Comma-separated allowed origins (empty = *, dev mode)

	// Database
	DatabaseURL string

	// Redis
	RedisURL string

	// Publishing: "supabase", "s3" or "none"
	StorageBackend string

	// Supabase
	SupabaseURL           string
	SupabaseServiceKey    string
	SupabaseStorageBucket string

	// S3
	S3Bucket string
	S3Region string
	S3Prefix string

	// Script generation: "gemini" or "openai"
	ScriptProvider string
	GeminiKey      string
	GeminiModel    string
	OpenAIKey      string

	// TTS: "elevenlabs" or "cartesia"
	TTSProvider       string
	ElevenLabsKey     string
	ElevenLabsVoiceID string
	CartesiaKey       string
	CartesiaURL       string
	CartesiaVoiceID   string

	// Stock media
	PexelsKey string

	// Working storage
	CacheDir          string
	OutputPath        string
	SessionTimeout    time.Duration
	ReaperSchedule    string
	ThumbnailFontPath string

	// Render
	RenderFPS     int
	RenderPreset  string
	RenderThreads int

	// Worker
	MaxConcurrentJobs int
}

// Load reads configuration from the environment (and .env if present) and
// validates what every entry point needs to run the pipeline.
func Load() (*Config, error) {
	// Load .env file if it exists (ignore error in production)
	_ = godotenv.Load()

	cfg := &Config{
		APIPort:               getEnv("API_PORT", "8080"),
		WorkerEnabled:         getEnvBool("WORKER_ENABLED", true),
		BackendAPIKey:         getEnv("BACKEND_API_KEY", ""),
		CorsAllowedOrigins:    getEnv("CORS_ALLOWED_ORIGINS", ""),
		DatabaseURL:           getEnv("DATABASE_URL", ""),
		RedisURL:              getEnv("REDIS_URL", "redis://localhost:6379"),
		StorageBackend:        strings.ToLower(getEnv("STORAGE_BACKEND", "supabase")),
		SupabaseURL:           getEnv("SUPABASE_URL", ""),
		SupabaseServiceKey:    getEnv("SUPABASE_SERVICE_KEY", ""),
		SupabaseStorageBucket: getEnv("SUPABASE_STORAGE_BUCKET", "topicreel-videos"),
		S3Bucket:              getEnv("S3_BUCKET", ""),
		S3Region:              getEnv("S3_REGION", "us-east-1"),
		S3Prefix:              getEnv("S3_PREFIX", "runs"),
		ScriptProvider:        strings.ToLower(getEnv("SCRIPT_PROVIDER", "gemini")),
		GeminiKey:             getEnv("GEMINI_API_KEY", ""),
		GeminiModel:           getEnv("GEMINI_MODEL", "gemini-2.5-flash"),
		OpenAIKey:             getEnv("OPENAI_API_KEY", ""),
		TTSProvider:           strings.ToLower(getEnv("TTS_PROVIDER", "")),
		ElevenLabsKey:         getEnv("ELEVENLABS_API_KEY", ""),
		ElevenLabsVoiceID:     getEnv("ELEVENLABS_VOICE_ID", ""),
		CartesiaKey:           getEnv("CARTESIA_API_KEY", ""),
		CartesiaURL:           getEnv("CARTESIA_API_URL", "https://api.cartesia.ai"),
		CartesiaVoiceID:       getEnv("CARTESIA_VOICE_ID", ""),
		PexelsKey:             getEnv("PEXELS_API_KEY", ""),
		CacheDir:              getEnv("CACHE_DIR", ".cache"),
		OutputPath:            getEnv("OUTPUT_PATH", "final_video.mp4"),
		SessionTimeout:        time.Duration(getEnvInt("SESSION_TIMEOUT_MINUTES", 30)) * time.Minute,
		ReaperSchedule:        getEnv("REAPER_SCHEDULE", "*/10 * * * *"),
		ThumbnailFontPath:     getEnv("THUMBNAIL_FONT_PATH", ""),
		RenderFPS:             getEnvInt("RENDER_FPS", 24),
		RenderPreset:          getEnv("RENDER_PRESET", "ultrafast"),
		RenderThreads:         getEnvInt("RENDER_THREADS", 4),
		MaxConcurrentJobs:     getEnvInt("MAX_CONCURRENT_JOBS", 2),
	}

	// Prefer ElevenLabs when no provider is named
	if cfg.TTSProvider == "" {
		cfg.TTSProvider = "elevenlabs"
		if cfg.ElevenLabsKey == "" && cfg.CartesiaKey != "" {
			cfg.TTSProvider = "cartesia"
		}
	}

	if err := cfg.validatePipeline(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validatePipeline() error {
	switch c.ScriptProvider {
	case "gemini":
		if c.GeminiKey == "" {
			return fmt.Errorf("GEMINI_API_KEY is required when SCRIPT_PROVIDER=gemini")
		}
	case "openai":
		if c.OpenAIKey == "" {
			return fmt.Errorf("OPENAI_API_KEY is required when SCRIPT_PROVIDER=openai")
		}
	default:
		return fmt.Errorf("unknown SCRIPT_PROVIDER %q (want gemini or openai)", c.ScriptProvider)
	}

	switch c.TTSProvider {
	case "elevenlabs":
		if c.ElevenLabsKey == "" {
			return fmt.Errorf("ELEVENLABS_API_KEY is required when TTS_PROVIDER=elevenlabs")
		}
	case "cartesia":
		if c.CartesiaKey == "" {
			return fmt.Errorf("CARTESIA_API_KEY is required when TTS_PROVIDER=cartesia")
		}
	default:
		return fmt.Errorf("unknown TTS_PROVIDER %q (want elevenlabs or cartesia)", c.TTSProvider)
	}

	if c.PexelsKey == "" {
		return fmt.Errorf("PEXELS_API_KEY is required")
	}

	if c.SessionTimeout <= 0 {
		return fmt.Errorf("SESSION_TIMEOUT_MINUTES must be positive")
	}

	if err := c.RenderSettings().Validate(); err != nil {
		return fmt.Errorf("invalid render settings: %w", err)
	}
	return nil
}

// ValidateService checks the extra settings the API server and worker need.
func (c *Config) ValidateService() error {
	if c.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}

	switch c.StorageBackend {
	case "supabase":
		if c.SupabaseURL == "" || c.SupabaseServiceKey == "" {
			return fmt.Errorf("SUPABASE_URL and SUPABASE_SERVICE_KEY are required when STORAGE_BACKEND=supabase")
		}
	case "s3":
		if c.S3Bucket == "" {
			return fmt.Errorf("S3_BUCKET is required when STORAGE_BACKEND=s3")
		}
	case "none":
	default:
		return fmt.Errorf("unknown STORAGE_BACKEND %q (want supabase, s3 or none)", c.StorageBackend)
	}

	if c.MaxConcurrentJobs < 1 {
		return fmt.Errorf("MAX_CONCURRENT_JOBS must be at least 1")
	}
	return nil
}

// RenderSettings returns the assembly settings with the configurable
// encoder knobs applied. Frame size and still timing are fixed.
func (c *Config) RenderSettings() media.Settings {
	s := media.DefaultSettings()
	s.FPS = c.RenderFPS
	s.Preset = c.RenderPreset
	s.Threads = c.RenderThreads
	return s
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		b, err := strconv.ParseBool(value)
		if err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		i, err := strconv.Atoi(value)
		if err == nil {
			return i
		}
	}
	return defaultValue
}
