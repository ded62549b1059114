// Package config loads the video-notes configuration from an optional YAML
// file, a local .env file and the process environment.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"slices"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Default values for optional configuration fields.
const (
	DefaultOutputDir          = "output"
	DefaultFFmpegPath         = "ffmpeg"
	DefaultFFprobePath        = "ffprobe"
	DefaultMP3Quality         = 2
	DefaultTranscribeBackend  = BackendWhisperCpp
	DefaultWhisperModel       = "base"
	DefaultWhisperBinary      = "whisper-cli"
	DefaultWhisperModelsDir   = "models"
	DefaultNotesProvider      = ProviderOpenAI
	DefaultOpenAINotesModel   = "gpt-4o"
	DefaultGeminiNotesModel   = "gemini-2.5-flash"
	DefaultNotesMaxTokens     = 8192
	DefaultLogLevel           = "info"
	DefaultLogMaxSizeMB       = 50
	DefaultLogMaxBackups      = 5
	DefaultLogMaxAgeDays      = 30
	DefaultStableIntervalMs   = 1000
	DefaultStableChecks       = 3
	DefaultStoragePrefix      = "video-notes"
)

// Transcription backends.
const (
	BackendWhisperCpp = "whisper-cpp"
	BackendOpenAI     = "openai"
)

// Notes providers.
const (
	ProviderOpenAI = "openai"
	ProviderGemini = "gemini"
)

// Compute devices. An empty device means auto-detect.
const (
	DeviceAuto        = "auto"
	DeviceAccelerated = "accelerated"
	DeviceCPU         = "cpu"
)

// WhisperModels lists the accepted speech model sizes.
var WhisperModels = []string{"tiny", "base", "small", "medium", "large"}

// DefaultVideoExtensions are matched case-sensitively against file names.
var DefaultVideoExtensions = []string{".mp4"}

// Config is the complete application configuration.
type Config struct {
	OutputDir     string              `yaml:"output_dir"`
	Discovery     DiscoveryConfig     `yaml:"discovery"`
	FFmpeg        FFmpegConfig        `yaml:"ffmpeg"`
	Transcription TranscriptionConfig `yaml:"transcription"`
	Notes         NotesConfig         `yaml:"notes"`
	Logging       LoggingConfig       `yaml:"logging"`
	Storage       StorageConfig       `yaml:"storage"`
	Watch         WatchConfig         `yaml:"watch"`
}

type DiscoveryConfig struct {
	Extensions []string `yaml:"extensions"`
}

type FFmpegConfig struct {
	Path      string `yaml:"path"`
	ProbePath string `yaml:"probe_path"`
	// Quality is the libmp3lame VBR quality (0 best, 9 worst).
	Quality int `yaml:"quality"`
}

type TranscriptionConfig struct {
	Backend    string `yaml:"backend"`
	Model      string `yaml:"model"`
	Device     string `yaml:"device"`
	BinaryPath string `yaml:"binary_path"`
	ModelsDir  string `yaml:"models_dir"`
	Threads    int    `yaml:"threads"`
	BaseURL    string `yaml:"base_url"`
	APIKey     string `yaml:"api_key"`
}

type NotesConfig struct {
	Provider    string  `yaml:"provider"`
	Model       string  `yaml:"model"`
	MaxTokens   int     `yaml:"max_tokens"`
	Temperature float32 `yaml:"temperature"`
	BaseURL     string  `yaml:"base_url"`
	APIKey      string  `yaml:"api_key"`
}

type LoggingConfig struct {
	Level      string `yaml:"level"`
	File       string `yaml:"file"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
	Compress   bool   `yaml:"compress"`
}

// StorageConfig enables publishing of output artifacts to an S3-compatible
// bucket. Publishing is off while Endpoint is empty.
type StorageConfig struct {
	Endpoint  string `yaml:"endpoint"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
	Bucket    string `yaml:"bucket"`
	Region    string `yaml:"region"`
	Prefix    string `yaml:"prefix"`
	UseSSL    bool   `yaml:"use_ssl"`
}

type WatchConfig struct {
	StableIntervalMs int `yaml:"stable_interval_ms"`
	StableChecks     int `yaml:"stable_checks"`
}

// Validation errors
var (
	ErrUnknownWhisperModel = errors.New("unknown whisper model")
	ErrUnknownDevice       = errors.New("unknown device")
	ErrUnknownBackend      = errors.New("unknown transcription backend")
	ErrUnknownProvider     = errors.New("unknown notes provider")
	ErrNoExtensions        = errors.New("discovery.extensions must not be empty")
	ErrBucketRequired      = errors.New("storage.bucket is required when storage.endpoint is set")
)

// Load reads the .env file from the working directory (if any), then the YAML
// file at path (skipped when path is empty), fills secrets from the
// environment and applies defaults. Call Validate after applying CLI overrides.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	var cfg Config
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	cfg.applyEnv()
	cfg.ApplyDefaults()
	return &cfg, nil
}

// applyEnv fills credentials that the file left empty.
func (c *Config) applyEnv() {
	if c.Notes.APIKey == "" {
		switch c.Notes.Provider {
		case ProviderGemini:
			c.Notes.APIKey = os.Getenv("GEMINI_API_KEY")
		default:
			c.Notes.APIKey = os.Getenv("OPENAI_API_KEY")
		}
	}
	if c.Transcription.APIKey == "" {
		c.Transcription.APIKey = os.Getenv("OPENAI_API_KEY")
	}
	if c.Storage.AccessKey == "" {
		c.Storage.AccessKey = os.Getenv("MINIO_ACCESS_KEY")
	}
	if c.Storage.SecretKey == "" {
		c.Storage.SecretKey = os.Getenv("MINIO_SECRET_KEY")
	}
}

// ApplyDefaults sets default values for optional fields that are empty or zero.
func (c *Config) ApplyDefaults() {
	if c.OutputDir == "" {
		c.OutputDir = DefaultOutputDir
	}
	if len(c.Discovery.Extensions) == 0 {
		c.Discovery.Extensions = DefaultVideoExtensions
	}
	if c.FFmpeg.Path == "" {
		c.FFmpeg.Path = DefaultFFmpegPath
	}
	if c.FFmpeg.ProbePath == "" {
		c.FFmpeg.ProbePath = DefaultFFprobePath
	}
	if c.FFmpeg.Quality == 0 {
		c.FFmpeg.Quality = DefaultMP3Quality
	}
	if c.Transcription.Backend == "" {
		c.Transcription.Backend = DefaultTranscribeBackend
	}
	if c.Transcription.Model == "" {
		c.Transcription.Model = DefaultWhisperModel
	}
	if c.Transcription.BinaryPath == "" {
		c.Transcription.BinaryPath = DefaultWhisperBinary
	}
	if c.Transcription.ModelsDir == "" {
		c.Transcription.ModelsDir = DefaultWhisperModelsDir
	}
	if c.Notes.Provider == "" {
		c.Notes.Provider = DefaultNotesProvider
	}
	if c.Notes.Model == "" {
		c.Notes.Model = c.DefaultNotesModel()
	}
	if c.Notes.MaxTokens == 0 {
		c.Notes.MaxTokens = DefaultNotesMaxTokens
	}
	if c.Logging.Level == "" {
		c.Logging.Level = DefaultLogLevel
	}
	if c.Logging.MaxSizeMB == 0 {
		c.Logging.MaxSizeMB = DefaultLogMaxSizeMB
	}
	if c.Logging.MaxBackups == 0 {
		c.Logging.MaxBackups = DefaultLogMaxBackups
	}
	if c.Logging.MaxAgeDays == 0 {
		c.Logging.MaxAgeDays = DefaultLogMaxAgeDays
	}
	if c.Storage.Prefix == "" {
		c.Storage.Prefix = DefaultStoragePrefix
	}
	if c.Watch.StableIntervalMs == 0 {
		c.Watch.StableIntervalMs = DefaultStableIntervalMs
	}
	if c.Watch.StableChecks == 0 {
		c.Watch.StableChecks = DefaultStableChecks
	}
}

// DefaultNotesModel returns the model used when none is configured for the
// selected provider.
func (c *Config) DefaultNotesModel() string {
	if c.Notes.Provider == ProviderGemini {
		return DefaultGeminiNotesModel
	}
	return DefaultOpenAINotesModel
}

// Validate checks enumerated fields and cross-field requirements.
// Credentials are not checked here: a missing key fails at first use.
func (c *Config) Validate() error {
	if !slices.Contains(WhisperModels, c.Transcription.Model) {
		return fmt.Errorf("%w: %q (want one of %v)", ErrUnknownWhisperModel, c.Transcription.Model, WhisperModels)
	}
	switch c.Transcription.Device {
	case "", DeviceAuto, DeviceAccelerated, DeviceCPU:
	default:
		return fmt.Errorf("%w: %q", ErrUnknownDevice, c.Transcription.Device)
	}
	switch c.Transcription.Backend {
	case BackendWhisperCpp, BackendOpenAI:
	default:
		return fmt.Errorf("%w: %q", ErrUnknownBackend, c.Transcription.Backend)
	}
	switch c.Notes.Provider {
	case ProviderOpenAI, ProviderGemini:
	default:
		return fmt.Errorf("%w: %q", ErrUnknownProvider, c.Notes.Provider)
	}
	if len(c.Discovery.Extensions) == 0 {
		return ErrNoExtensions
	}
	if c.Storage.Endpoint != "" && c.Storage.Bucket == "" {
		return ErrBucketRequired
	}
	return nil
}

// StorageEnabled reports whether artifacts should be published.
func (c *Config) StorageEnabled() bool {
	return c.Storage.Endpoint != ""
}
