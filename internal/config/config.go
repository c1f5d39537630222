package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/MimeLyc/reelforge/pkg/icron"
	"github.com/MimeLyc/reelforge/pkg/log"
	"github.com/joho/godotenv"
)

// Config holds all application configuration.
// Values come from environment variables (optionally seeded from a .env
// file) with defaults suitable for local development.
//
// Environment Variables:
// Server:
// - HTTP_ADDR: listen address (default: :3000)
// - APP_VERSION: reported by /health (default: 0.3.0)
// - SETTINGS_FILE: runtime settings JSON (default: ./data/settings.json)
//
// Storage:
// - OUTPUT_DIR: final videos and captions (default: ./output)
// - ASSETS_DIR: per-job intermediates (default: ./assets)
// - STORAGE_BASE_URL: public base URL for outputs (default: http://localhost:3000)
//
// Story:
// - STORY_PROVIDER: template | openai | gemini (default: template)
// - DEFAULT_NICHE: profile used when a request names none (default: horror)
// - NICHE_PROFILES_FILE: optional YAML file with extra profiles
// - MAX_SCENES (default: 6), MAX_VIDEO_DURATION_SECONDS (default: 70)
// - MIN_STORY_WORD_COUNT (default: 140), MAX_STORY_WORD_COUNT (default: 185)
//
// Render:
// - RENDER_WIDTH/RENDER_HEIGHT/RENDER_FPS (default: 1080/1920/30)
// - RENDER_CRF (default: 20), RENDER_PRESET (default: medium)
// - RENDER_INCLUDE_CAPTIONS, RENDER_INCLUDE_MUSIC, RENDER_DARK_GRADE,
//   RENDER_VIGNETTE, RENDER_GLITCH_TRANSITIONS (default: true)
// - RENDER_MUSIC_VOLUME (default: 0.18), NARRATION_VOLUME (default: 1.0)
// - FFMPEG_PATH, FFPROBE_PATH (default: ffmpeg, ffprobe)
//
// Providers:
// - LLM_API_KEY, LLM_API_URL, LLM_MODEL, LLM_MAX_TOKENS, LLM_TEMPERATURE, LLM_TIMEOUT
// - GEMINI_API_KEY, GEMINI_MODEL
// - OPENAI_API_KEY, OPENAI_BASE_URL, OPENAI_TTS_MODEL, OPENAI_IMAGE_MODEL, OPENAI_IMAGE_QUALITY
// - TTS_PROVIDER: mock | openai (default: mock), TTS_VOICE_ID (default: onyx)
// - IMAGE_PROVIDER: mock | openai | pollinations (default: mock), POLLINATIONS_URL
//
// Job archive:
// - JOB_STORE: none | sqlite | postgres (default: none)
// - JOB_DB_PATH (default: ./data/jobs.db), JOB_DATABASE_URL
//
// Janitor:
// - JANITOR_CRON (default: 0 * * * *; empty disables)
// - JANITOR_RETENTION_HOURS (default: 24)
//
// Logging:
// - LOG_LEVEL (default: info), LOG_FILE (optional)
type Config struct {
	Server  ServerConfig  `json:"server"`
	Storage StorageConfig `json:"storage"`
	Story   StoryConfig   `json:"story"`
	Render  RenderConfig  `json:"render"`

	LLM    LLMConfig    `json:"llm"`
	Gemini GeminiConfig `json:"gemini"`
	OpenAI OpenAIConfig `json:"openai"`
	TTS    TTSConfig    `json:"tts"`
	Image  ImageConfig  `json:"image"`

	Store   StoreConfig   `json:"store"`
	Janitor JanitorConfig `json:"janitor"`
	Log     LogConfig     `json:"log"`
}

type ServerConfig struct {
	Addr         string `json:"addr"`
	Version      string `json:"version"`
	SettingsFile string `json:"settings_file"`
}

type StorageConfig struct {
	OutputDir string `json:"output_dir"`
	AssetsDir string `json:"assets_dir"`
	BaseURL   string `json:"base_url"`
}

type StoryConfig struct {
	Provider           string `json:"provider"`
	DefaultNiche       string `json:"default_niche"`
	NicheProfilesFile  string `json:"niche_profiles_file"`
	MaxScenes          int    `json:"max_scenes"`
	MaxDurationSeconds int    `json:"max_duration_seconds"`
	MinWords           int    `json:"min_words"`
	MaxWords           int    `json:"max_words"`
}

// RenderConfig holds encoder defaults. Per-job overrides are merged on top.
type RenderConfig struct {
	Width             int     `json:"width"`
	Height            int     `json:"height"`
	FPS               int     `json:"fps"`
	CRF               int     `json:"crf"`
	Preset            string  `json:"preset"`
	IncludeCaptions   bool    `json:"include_captions"`
	IncludeMusic      bool    `json:"include_music"`
	DarkGrade         bool    `json:"dark_grade"`
	Vignette          bool    `json:"vignette"`
	GlitchTransitions bool    `json:"glitch_transitions"`
	MusicVolume       float64 `json:"music_volume"`
	NarrationVolume   float64 `json:"narration_volume"`
	FFmpegPath        string  `json:"ffmpeg_path"`
	FFprobePath       string  `json:"ffprobe_path"`
}

// LLMConfig configures the OpenAI-compatible chat endpoint used for stories.
type LLMConfig struct {
	APIKey      string  `json:"-"`
	APIURL      string  `json:"api_url"`
	Model       string  `json:"model"`
	MaxTokens   int     `json:"max_tokens"`
	Temperature float64 `json:"temperature"`
	Timeout     int     `json:"timeout"`
	SiteURL     string  `json:"site_url"`
	AppName     string  `json:"app_name"`
}

type GeminiConfig struct {
	APIKey string `json:"-"`
	Model  string `json:"model"`
}

type OpenAIConfig struct {
	APIKey       string `json:"-"`
	BaseURL      string `json:"base_url"`
	TTSModel     string `json:"tts_model"`
	ImageModel   string `json:"image_model"`
	ImageQuality string `json:"image_quality"`
}

type TTSConfig struct {
	Provider string `json:"provider"`
	VoiceID  string `json:"voice_id"`
}

type ImageConfig struct {
	Provider        string `json:"provider"`
	PollinationsURL string `json:"pollinations_url"`
}

type StoreConfig struct {
	Driver      string `json:"driver"`
	SQLitePath  string `json:"sqlite_path"`
	DatabaseURL string `json:"-"`
}

type JanitorConfig struct {
	CronExpr       string `json:"cron_expr"`
	RetentionHours int    `json:"retention_hours"`
}

type LogConfig struct {
	Level string `json:"level"`
	File  string `json:"file"`
}

// Option is a function type for configuring Config
type Option func(*Config)

// WithStorageDirs overrides the output and assets directories.
func WithStorageDirs(outputDir, assetsDir string) Option {
	return func(c *Config) {
		if outputDir != "" {
			c.Storage.OutputDir = outputDir
		}
		if assetsDir != "" {
			c.Storage.AssetsDir = assetsDir
		}
	}
}

// WithDefaultNiche overrides DEFAULT_NICHE.
func WithDefaultNiche(id string) Option {
	return func(c *Config) {
		if strings.TrimSpace(id) != "" {
			c.Story.DefaultNiche = id
		}
	}
}

// NewFromEnv creates a new Config instance with values from environment variables and options
func NewFromEnv(opts ...Option) (*Config, error) {
	loadDotEnv(getEnvString("ENV_FILE", ".env"))

	config := &Config{
		Server: ServerConfig{
			Addr:         getEnvString("HTTP_ADDR", ":3000"),
			Version:      getEnvString("APP_VERSION", "0.3.0"),
			SettingsFile: getEnvString("SETTINGS_FILE", DefaultRuntimeSettingsFile),
		},
		Storage: StorageConfig{
			OutputDir: getEnvString("OUTPUT_DIR", "./output"),
			AssetsDir: getEnvString("ASSETS_DIR", "./assets"),
			BaseURL:   getEnvString("STORAGE_BASE_URL", "http://localhost:3000"),
		},
		Story: StoryConfig{
			Provider:           strings.ToLower(getEnvString("STORY_PROVIDER", "template")),
			DefaultNiche:       getEnvString("DEFAULT_NICHE", "horror"),
			NicheProfilesFile:  getEnvString("NICHE_PROFILES_FILE", ""),
			MaxScenes:          getEnvInt("MAX_SCENES", 6),
			MaxDurationSeconds: getEnvInt("MAX_VIDEO_DURATION_SECONDS", 70),
			MinWords:           getEnvInt("MIN_STORY_WORD_COUNT", 140),
			MaxWords:           getEnvInt("MAX_STORY_WORD_COUNT", 185),
		},
		Render: RenderConfig{
			Width:             getEnvInt("RENDER_WIDTH", 1080),
			Height:            getEnvInt("RENDER_HEIGHT", 1920),
			FPS:               getEnvInt("RENDER_FPS", 30),
			CRF:               getEnvInt("RENDER_CRF", 20),
			Preset:            getEnvString("RENDER_PRESET", "medium"),
			IncludeCaptions:   getEnvBool("RENDER_INCLUDE_CAPTIONS", true),
			IncludeMusic:      getEnvBool("RENDER_INCLUDE_MUSIC", true),
			DarkGrade:         getEnvBool("RENDER_DARK_GRADE", true),
			Vignette:          getEnvBool("RENDER_VIGNETTE", true),
			GlitchTransitions: getEnvBool("RENDER_GLITCH_TRANSITIONS", true),
			MusicVolume:       getEnvFloat("RENDER_MUSIC_VOLUME", 0.18),
			NarrationVolume:   getEnvFloat("NARRATION_VOLUME", 1.0),
			FFmpegPath:        getEnvString("FFMPEG_PATH", "ffmpeg"),
			FFprobePath:       getEnvString("FFPROBE_PATH", "ffprobe"),
		},
		LLM: LLMConfig{
			APIKey:      getEnvString("LLM_API_KEY", ""),
			APIURL:      getEnvString("LLM_API_URL", "https://openrouter.ai/api/v1"),
			Model:       getEnvString("LLM_MODEL", "openai/gpt-4o-mini"),
			MaxTokens:   getEnvInt("LLM_MAX_TOKENS", 2000),
			Temperature: getEnvFloat("LLM_TEMPERATURE", 0.8),
			Timeout:     getEnvInt("LLM_TIMEOUT", 60),
			SiteURL:     getEnvString("LLM_SITE_URL", ""),
			AppName:     getEnvString("LLM_APP_NAME", "reelforge"),
		},
		Gemini: GeminiConfig{
			APIKey: getEnvString("GEMINI_API_KEY", ""),
			Model:  getEnvString("GEMINI_MODEL", "gemini-1.5-flash"),
		},
		OpenAI: OpenAIConfig{
			APIKey:       getEnvString("OPENAI_API_KEY", ""),
			BaseURL:      getEnvString("OPENAI_BASE_URL", ""),
			TTSModel:     getEnvString("OPENAI_TTS_MODEL", "tts-1"),
			ImageModel:   getEnvString("OPENAI_IMAGE_MODEL", "dall-e-3"),
			ImageQuality: getEnvString("OPENAI_IMAGE_QUALITY", "standard"),
		},
		TTS: TTSConfig{
			Provider: strings.ToLower(getEnvString("TTS_PROVIDER", "mock")),
			VoiceID:  getEnvString("TTS_VOICE_ID", "onyx"),
		},
		Image: ImageConfig{
			Provider:        strings.ToLower(getEnvString("IMAGE_PROVIDER", "mock")),
			PollinationsURL: getEnvString("POLLINATIONS_URL", "https://image.pollinations.ai/prompt"),
		},
		Store: StoreConfig{
			Driver:      strings.ToLower(getEnvString("JOB_STORE", "none")),
			SQLitePath:  getEnvString("JOB_DB_PATH", filepath.Join("data", "jobs.db")),
			DatabaseURL: getEnvString("JOB_DATABASE_URL", ""),
		},
		Janitor: JanitorConfig{
			CronExpr:       getEnvStringAllowEmpty("JANITOR_CRON", "0 * * * *"),
			RetentionHours: getEnvInt("JANITOR_RETENTION_HOURS", 24),
		},
		Log: LogConfig{
			Level: getEnvString("LOG_LEVEL", "info"),
			File:  getEnvString("LOG_FILE", ""),
		},
	}

	// Apply custom options
	for _, opt := range opts {
		opt(config)
	}

	if err := config.validate(); err != nil {
		return nil, err
	}

	log.Info("Config: addr=%s story=%s tts=%s image=%s store=%s niche=%s",
		config.Server.Addr, config.Story.Provider, config.TTS.Provider,
		config.Image.Provider, config.Store.Driver, config.Story.DefaultNiche)

	return config, nil
}

// validate checks if all required configuration is properly set
func (c *Config) validate() error {
	switch c.Story.Provider {
	case "template":
	case "openai":
		if c.LLM.APIKey == "" {
			return fmt.Errorf("LLM_API_KEY is required for STORY_PROVIDER=openai")
		}
	case "gemini":
		if c.Gemini.APIKey == "" {
			return fmt.Errorf("GEMINI_API_KEY is required for STORY_PROVIDER=gemini")
		}
	default:
		return fmt.Errorf("unsupported STORY_PROVIDER %q", c.Story.Provider)
	}

	switch c.TTS.Provider {
	case "mock":
	case "openai":
		if c.OpenAI.APIKey == "" {
			return fmt.Errorf("OPENAI_API_KEY is required for TTS_PROVIDER=openai")
		}
	default:
		return fmt.Errorf("unsupported TTS_PROVIDER %q", c.TTS.Provider)
	}

	switch c.Image.Provider {
	case "mock", "pollinations":
	case "openai":
		if c.OpenAI.APIKey == "" {
			return fmt.Errorf("OPENAI_API_KEY is required for IMAGE_PROVIDER=openai")
		}
	default:
		return fmt.Errorf("unsupported IMAGE_PROVIDER %q", c.Image.Provider)
	}

	switch c.Store.Driver {
	case "none", "":
	case "sqlite":
		if strings.TrimSpace(c.Store.SQLitePath) == "" {
			return fmt.Errorf("JOB_DB_PATH is required for JOB_STORE=sqlite")
		}
	case "postgres":
		if strings.TrimSpace(c.Store.DatabaseURL) == "" {
			return fmt.Errorf("JOB_DATABASE_URL is required for JOB_STORE=postgres")
		}
	default:
		return fmt.Errorf("unsupported JOB_STORE %q", c.Store.Driver)
	}

	if c.Story.MaxScenes < 3 || c.Story.MaxScenes > 6 {
		return fmt.Errorf("MAX_SCENES must be between 3 and 6, got %d", c.Story.MaxScenes)
	}
	if c.Story.MaxDurationSeconds < 45 {
		return fmt.Errorf("MAX_VIDEO_DURATION_SECONDS must be at least 45, got %d", c.Story.MaxDurationSeconds)
	}
	if c.Story.MinWords <= 0 || c.Story.MinWords > c.Story.MaxWords {
		return fmt.Errorf("story word band [%d, %d] is invalid", c.Story.MinWords, c.Story.MaxWords)
	}
	if strings.TrimSpace(c.Story.DefaultNiche) == "" {
		return fmt.Errorf("DEFAULT_NICHE is required")
	}

	if c.Render.Width <= 0 || c.Render.Height <= 0 || c.Render.FPS <= 0 {
		return fmt.Errorf("render size and fps must be positive")
	}
	if c.Render.CRF < 0 || c.Render.CRF > 51 {
		return fmt.Errorf("RENDER_CRF must be between 0 and 51")
	}
	if c.Render.MusicVolume < 0 || c.Render.MusicVolume > 1 {
		return fmt.Errorf("RENDER_MUSIC_VOLUME must be between 0 and 1")
	}
	if c.Render.NarrationVolume <= 0 || c.Render.NarrationVolume > 2 {
		return fmt.Errorf("NARRATION_VOLUME must be in (0, 2]")
	}

	if c.Janitor.CronExpr != "" {
		if err := icron.Validate(c.Janitor.CronExpr); err != nil {
			return fmt.Errorf("invalid JANITOR_CRON: %w", err)
		}
	}
	if c.Janitor.RetentionHours <= 0 {
		return fmt.Errorf("JANITOR_RETENTION_HOURS must be positive")
	}
	return nil
}

func loadDotEnv(path string) {
	if path == "" {
		return
	}
	if _, err := os.Stat(path); err != nil {
		return
	}
	if err := godotenv.Load(path); err != nil {
		log.Warn("Failed to load %s: %v", path, err)
		return
	}
	log.Info("Loaded environment from %s", path)
}

// getEnvString gets a string value from environment variables with default
func getEnvString(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvStringAllowEmpty treats an explicitly empty variable as a value.
func getEnvStringAllowEmpty(key, defaultValue string) string {
	if value, ok := os.LookupEnv(key); ok {
		return strings.TrimSpace(value)
	}
	return defaultValue
}

// getEnvInt gets an integer value from environment variables with default
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// getEnvFloat gets a float value from environment variables with default
func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}
