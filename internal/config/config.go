package config

import (
	"fmt"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Config holds all configuration for the voice command daemon
type Config struct {
	// HTTP server for health, metrics and the control endpoint
	Port string `envconfig:"PORT" default:"8080"`

	// Audio capture configuration
	SampleRate  int    `envconfig:"SAMPLE_RATE" default:"16000"`      // Capture sample rate in Hz
	FrameMs     int    `envconfig:"FRAME_MS" default:"20"`            // Frame duration in milliseconds
	InputDevice string `envconfig:"INPUT_DEVICE" default:""`          // Device name substring; empty selects the default device
	FrameQueue  int    `envconfig:"FRAME_QUEUE_FRAMES" default:"256"` // Bounded frame queue capacity (drop-oldest on overflow)

	// Phrase segmentation configuration
	EnergyThresholdDB float64 `envconfig:"ENERGY_THRESHOLD_DB" default:"-45.0"` // Speech/silence cutoff in dBFS
	SilenceMs         int     `envconfig:"SILENCE_MS" default:"600"`            // Trailing silence that ends a phrase
	PhraseTimeoutMs   int     `envconfig:"PHRASE_TIMEOUT_MS" default:"3000"`    // Hard cap on a single phrase
	MinPhraseMs       int     `envconfig:"MIN_PHRASE_MS" default:"280"`         // Shorter phrases are discarded as noise
	WarmupSeconds     float64 `envconfig:"WARMUP_SECONDS" default:"1.0"`        // Mic warm-up before the first utterance

	// Transcription engine configuration
	STTBackend       string `envconfig:"STT_BACKEND" default:"whisper"` // whisper (local) or deepgram (cloud)
	WhisperModelPath string `envconfig:"WHISPER_MODEL_PATH" default:"models/ggml-small.bin"`
	STTLanguage      string `envconfig:"STT_LANGUAGE" default:"en"`
	CPUThreads       int    `envconfig:"CPU_THREADS" default:"4"` // Engine thread count hint (0 = NumCPU)
	NumWorkers       int    `envconfig:"NUM_WORKERS" default:"1"` // Engine parallelism hint
	DeepgramAPIKey   string `envconfig:"DEEPGRAM_API_KEY" default:""`
	DeepgramModel    string `envconfig:"DEEPGRAM_MODEL" default:"nova-2"`

	// Intent and whitelist files
	IntentsFile   string `envconfig:"INTENTS_FILE" default:"config/intents.json"`
	WhitelistFile string `envconfig:"WHITELIST_FILE" default:"whitelist.txt"`
	SafeMode      bool   `envconfig:"SAFE_MODE" default:"true"` // When false the whitelist gate is bypassed

	// Action execution
	ScreenshotsDir  string `envconfig:"SCREENSHOTS_DIR" default:"Screenshots"`
	TypeIntervalMs  int    `envconfig:"TYPE_INTERVAL_MS" default:"20"` // Keystroke pacing for the type action
	DispatchRetries int    `envconfig:"DISPATCH_RETRIES" default:"1"`  // Extra attempts for a failed action

	// Feedback
	TTSCommand   string `envconfig:"TTS_COMMAND" default:"espeak-ng"` // External synthesiser; empty disables spoken feedback
	ChimeFile    string `envconfig:"CHIME_FILE" default:""`           // Optional mp3 played when listening starts
	FeedbackMute bool   `envconfig:"FEEDBACK_MUTE" default:"false"`

	// Audit log
	AuditLogFile       string `envconfig:"AUDIT_LOG_FILE" default:"logs/jarvis_log.txt"`
	AuditRetentionDays int    `envconfig:"AUDIT_RETENTION_DAYS" default:"7"`

	// Resilience configuration
	STTBreakerMaxFailures  int `envconfig:"STT_BREAKER_MAX_FAILURES" default:"5"`   // Engine faults before opening circuit
	STTBreakerResetSeconds int `envconfig:"STT_BREAKER_RESET_SECONDS" default:"30"` // Seconds before attempting recovery

	// Observability configuration
	LogLevel       string `envconfig:"LOG_LEVEL" default:"info"`       // Log level: debug, info, warn, error
	LogPretty      bool   `envconfig:"LOG_PRETTY" default:"false"`     // Pretty print logs (for development)
	MetricsEnabled bool   `envconfig:"METRICS_ENABLED" default:"true"` // Enable Prometheus metrics
}

// Load reads configuration from environment variables
// It first attempts to load from .env file if it exists, then from environment
func Load() (*Config, error) {
	// Try to load .env file (ignore error if it doesn't exist)
	_ = godotenv.Load()

	return LoadFromEnv()
}

// LoadEnvFile loads configuration after reading the given env file.
// Unlike Load it fails when the file is named explicitly but missing.
func LoadEnvFile(path string) (*Config, error) {
	if path != "" {
		if err := godotenv.Load(path); err != nil {
			return nil, fmt.Errorf("failed to load env file %s: %w", path, err)
		}
	}
	return LoadFromEnv()
}

// LoadFromEnv loads configuration directly from environment variables
// without attempting to load .env file (useful for containerized deployments)
func LoadFromEnv() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks that the segmentation parameters are coherent.
// A malformed configuration is fatal at startup.
func (c *Config) Validate() error {
	if c.SampleRate <= 0 {
		return fmt.Errorf("SAMPLE_RATE must be positive, got %d", c.SampleRate)
	}
	if c.FrameMs <= 0 {
		return fmt.Errorf("FRAME_MS must be positive, got %d", c.FrameMs)
	}
	if c.MinPhraseMs > c.PhraseTimeoutMs {
		return fmt.Errorf("MIN_PHRASE_MS (%d) must not exceed PHRASE_TIMEOUT_MS (%d)", c.MinPhraseMs, c.PhraseTimeoutMs)
	}
	if c.SilenceMs < c.FrameMs {
		return fmt.Errorf("SILENCE_MS (%d) must be at least one frame (%d ms)", c.SilenceMs, c.FrameMs)
	}
	if c.STTBackend != "whisper" && c.STTBackend != "deepgram" {
		return fmt.Errorf("STT_BACKEND must be whisper or deepgram, got %q", c.STTBackend)
	}
	if c.STTBackend == "deepgram" && c.DeepgramAPIKey == "" {
		return fmt.Errorf("DEEPGRAM_API_KEY is required when STT_BACKEND=deepgram")
	}
	return nil
}

// FrameSamples returns the number of samples in one capture frame.
func (c *Config) FrameSamples() int {
	return c.SampleRate * c.FrameMs / 1000
}

// SilenceDuration returns the trailing-silence window as a duration.
func (c *Config) SilenceDuration() time.Duration {
	return time.Duration(c.SilenceMs) * time.Millisecond
}

// PhraseTimeout returns the hard phrase cap as a duration.
func (c *Config) PhraseTimeout() time.Duration {
	return time.Duration(c.PhraseTimeoutMs) * time.Millisecond
}

// MinPhrase returns the minimum valid phrase length as a duration.
func (c *Config) MinPhrase() time.Duration {
	return time.Duration(c.MinPhraseMs) * time.Millisecond
}
