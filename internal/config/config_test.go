package config

import (
	"os"
	"testing"
)

// clearEnv removes every variable this package reads so tests see defaults.
func clearEnv(t *testing.T) {
	t.Helper()
	keys := []string{
		"PORT", "SAMPLE_RATE", "FRAME_MS", "INPUT_DEVICE", "FRAME_QUEUE_FRAMES",
		"ENERGY_THRESHOLD_DB", "SILENCE_MS", "PHRASE_TIMEOUT_MS", "MIN_PHRASE_MS",
		"WARMUP_SECONDS", "STT_BACKEND", "WHISPER_MODEL_PATH", "STT_LANGUAGE",
		"CPU_THREADS", "NUM_WORKERS", "DEEPGRAM_API_KEY", "DEEPGRAM_MODEL",
		"INTENTS_FILE", "WHITELIST_FILE", "SAFE_MODE", "SCREENSHOTS_DIR",
		"TYPE_INTERVAL_MS", "DISPATCH_RETRIES", "TTS_COMMAND", "CHIME_FILE",
		"FEEDBACK_MUTE", "AUDIT_LOG_FILE", "AUDIT_RETENTION_DAYS",
		"STT_BREAKER_MAX_FAILURES", "STT_BREAKER_RESET_SECONDS",
		"LOG_LEVEL", "LOG_PRETTY", "METRICS_ENABLED",
	}
	for _, k := range keys {
		os.Unsetenv(k)
	}
}

func TestLoadFromEnv_Defaults(t *testing.T) {
	clearEnv(t)

	cfg, err := LoadFromEnv()
	if err != nil {
		t.Fatalf("LoadFromEnv failed: %v", err)
	}

	if cfg.Port != "8080" {
		t.Errorf("Expected default port 8080, got %s", cfg.Port)
	}
	if cfg.SampleRate != 16000 {
		t.Errorf("Expected default sample rate 16000, got %d", cfg.SampleRate)
	}
	if cfg.FrameMs != 20 {
		t.Errorf("Expected default frame duration 20ms, got %d", cfg.FrameMs)
	}
	if cfg.EnergyThresholdDB != -45.0 {
		t.Errorf("Expected default energy threshold -45.0 dB, got %f", cfg.EnergyThresholdDB)
	}
	if cfg.SilenceMs != 600 {
		t.Errorf("Expected default silence window 600ms, got %d", cfg.SilenceMs)
	}
	if cfg.PhraseTimeoutMs != 3000 {
		t.Errorf("Expected default phrase timeout 3000ms, got %d", cfg.PhraseTimeoutMs)
	}
	if cfg.MinPhraseMs != 280 {
		t.Errorf("Expected default min phrase 280ms, got %d", cfg.MinPhraseMs)
	}
	if cfg.STTBackend != "whisper" {
		t.Errorf("Expected default STT backend whisper, got %s", cfg.STTBackend)
	}
	if !cfg.SafeMode {
		t.Error("Expected safe mode enabled by default")
	}
	if cfg.AuditRetentionDays != 7 {
		t.Errorf("Expected default audit retention 7 days, got %d", cfg.AuditRetentionDays)
	}
}

func TestLoadFromEnv_Overrides(t *testing.T) {
	clearEnv(t)
	os.Setenv("FRAME_MS", "30")
	os.Setenv("ENERGY_THRESHOLD_DB", "-38.5")
	os.Setenv("MIN_PHRASE_MS", "500")
	os.Setenv("LOG_LEVEL", "debug")
	defer clearEnv(t)

	cfg, err := LoadFromEnv()
	if err != nil {
		t.Fatalf("LoadFromEnv failed: %v", err)
	}

	if cfg.FrameMs != 30 {
		t.Errorf("Expected frame duration 30ms, got %d", cfg.FrameMs)
	}
	if cfg.EnergyThresholdDB != -38.5 {
		t.Errorf("Expected energy threshold -38.5 dB, got %f", cfg.EnergyThresholdDB)
	}
	if cfg.MinPhraseMs != 500 {
		t.Errorf("Expected min phrase 500ms, got %d", cfg.MinPhraseMs)
	}
	if cfg.LogLevel != "debug" {
		t.Errorf("Expected log level debug, got %s", cfg.LogLevel)
	}
}

func TestValidate_Rejects(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero sample rate", func(c *Config) { c.SampleRate = 0 }},
		{"zero frame duration", func(c *Config) { c.FrameMs = 0 }},
		{"min phrase above timeout", func(c *Config) { c.MinPhraseMs = 5000; c.PhraseTimeoutMs = 3000 }},
		{"silence below one frame", func(c *Config) { c.SilenceMs = 5; c.FrameMs = 20 }},
		{"unknown stt backend", func(c *Config) { c.STTBackend = "sphinx" }},
		{"deepgram without api key", func(c *Config) { c.STTBackend = "deepgram"; c.DeepgramAPIKey = "" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			cfg, err := LoadFromEnv()
			if err != nil {
				t.Fatalf("LoadFromEnv failed: %v", err)
			}
			tt.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("Expected validation error, got nil")
			}
		})
	}
}

func TestFrameSamples(t *testing.T) {
	cfg := &Config{SampleRate: 16000, FrameMs: 20}
	if got := cfg.FrameSamples(); got != 320 {
		t.Errorf("Expected 320 samples per 20ms frame at 16kHz, got %d", got)
	}
}

func TestLoadEnvFile_Missing(t *testing.T) {
	clearEnv(t)
	if _, err := LoadEnvFile("does-not-exist.env"); err == nil {
		t.Error("Expected error for missing env file")
	}
}
