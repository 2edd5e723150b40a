package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
	"github.com/spf13/pflag"

	"github.com/TUF-SCAR/Jarvis-Local/internal/action"
	"github.com/TUF-SCAR/Jarvis-Local/internal/audio"
	"github.com/TUF-SCAR/Jarvis-Local/internal/audit"
	"github.com/TUF-SCAR/Jarvis-Local/internal/config"
	"github.com/TUF-SCAR/Jarvis-Local/internal/control"
	"github.com/TUF-SCAR/Jarvis-Local/internal/feedback"
	"github.com/TUF-SCAR/Jarvis-Local/internal/guard"
	"github.com/TUF-SCAR/Jarvis-Local/internal/intent"
	"github.com/TUF-SCAR/Jarvis-Local/internal/observability"
	"github.com/TUF-SCAR/Jarvis-Local/internal/pipeline"
	"github.com/TUF-SCAR/Jarvis-Local/internal/resilience"
	"github.com/TUF-SCAR/Jarvis-Local/internal/stt"
	"github.com/TUF-SCAR/Jarvis-Local/internal/vad"
)

func main() {
	envFile := pflag.String("env-file", "", "path to a .env file to load before reading the environment")
	logLevel := pflag.String("log-level", "", "override LOG_LEVEL (debug, info, warn, error)")
	sttBackend := pflag.String("stt", "", "override STT_BACKEND (whisper, deepgram)")
	pflag.Parse()

	var cfg *config.Config
	var err error
	if *envFile != "" {
		cfg, err = config.LoadEnvFile(*envFile)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	if *logLevel != "" {
		cfg.LogLevel = *logLevel
	}
	if *sttBackend != "" {
		cfg.STTBackend = *sttBackend
	}

	observability.InitLogger(cfg.LogLevel, cfg.LogPretty)
	log.Info().
		Str("stt_backend", cfg.STTBackend).
		Int("sample_rate", cfg.SampleRate).
		Int("frame_ms", cfg.FrameMs).
		Bool("safe_mode", cfg.SafeMode).
		Msg("Starting jarvisd")

	if err := run(cfg); err != nil {
		log.Fatal().Err(err).Msg("jarvisd exited with an error")
	}
	log.Info().Msg("jarvisd stopped")
}

func run(cfg *config.Config) error {
	auditLog, err := audit.NewLogger(cfg.AuditLogFile, cfg.AuditRetentionDays)
	if err != nil {
		return fmt.Errorf("audit log: %w", err)
	}
	if err := auditLog.Prune(); err != nil {
		log.Warn().Err(err).Msg("Audit log prune at startup failed")
	}

	intents, err := intent.NewStore(cfg.IntentsFile)
	if err != nil {
		return fmt.Errorf("intents: %w", err)
	}
	resolver := intent.NewResolver(intents)

	gate, err := guard.NewGuard(cfg.WhitelistFile, cfg.SafeMode)
	if err != nil {
		return fmt.Errorf("whitelist: %w", err)
	}

	transcriber, err := newTranscriber(cfg)
	if err != nil {
		return fmt.Errorf("stt: %w", err)
	}
	defer transcriber.Close()

	announcer := feedback.NewTTSAnnouncer(cfg.TTSCommand, cfg.FeedbackMute)
	chime, err := feedback.NewChime(cfg.ChimeFile)
	if err != nil {
		return fmt.Errorf("chime: %w", err)
	}

	dispatcher := action.NewExecutor(cfg.ScreenshotsDir, cfg.TypeIntervalMs, &resilience.RetryConfig{
		MaxAttempts:       1 + cfg.DispatchRetries,
		InitialBackoff:    100 * time.Millisecond,
		MaxBackoff:        2 * time.Second,
		BackoffMultiplier: 2.0,
		Jitter:            true,
	})

	queue := audio.NewFrameQueue(cfg.FrameQueue)
	capture := audio.NewCapture(cfg.SampleRate, cfg.FrameSamples(), cfg.InputDevice, queue)

	segmenter := vad.NewSegmenter(vad.Config{
		ThresholdDB:   cfg.EnergyThresholdDB,
		SilenceFrames: cfg.SilenceMs / cfg.FrameMs,
		TimeoutFrames: cfg.PhraseTimeoutMs / cfg.FrameMs,
		MinFrames:     cfg.MinPhraseMs / cfg.FrameMs,
	})

	loop := pipeline.New(pipeline.Config{
		Queue:      queue,
		Faults:     capture.Faults(),
		Segmenter:  segmenter,
		Transcribe: transcriber,
		Resolver:   resolver,
		Intents:    intents,
		Guard:      gate,
		Dispatcher: dispatcher,
		Announcer:  announcer,
		Chime:      chime,
		Audit:      auditLog,
		FrameMs:    cfg.FrameMs,
		Warmup:     time.Duration(cfg.WarmupSeconds * float64(time.Second)),
	})

	observability.RegisterHealthCheck("intents", func() error {
		if intents.Current().Len() == 0 {
			return fmt.Errorf("no intents loaded")
		}
		return nil
	})

	mux := http.NewServeMux()
	mux.HandleFunc("/health", observability.HealthHandler)
	mux.HandleFunc("/ready", observability.ReadinessHandler)
	if cfg.MetricsEnabled {
		mux.Handle("/metrics", promhttp.Handler())
	}
	mux.Handle("/control", control.NewHandler(intents, gate, queue))
	server := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: mux,
	}
	go func() {
		log.Info().Str("addr", server.Addr).Msg("HTTP listener started")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("HTTP listener failed")
		}
	}()

	if err := capture.Start(); err != nil {
		return fmt.Errorf("capture: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	loopDone := make(chan error, 1)
	go func() { loopDone <- loop.Run(ctx) }()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	var runErr error
	select {
	case sig := <-sigCh:
		log.Info().Str("signal", sig.String()).Msg("Shutting down")
		cancel()
		capture.Stop()
		runErr = <-loopDone
	case runErr = <-loopDone:
		// The loop ended on its own: the stop verb or a capture fault.
		capture.Stop()
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("HTTP shutdown failed")
	}
	return runErr
}

// newTranscriber builds the configured backend and wraps it with the
// circuit breaker.
func newTranscriber(cfg *config.Config) (stt.Transcriber, error) {
	var backend stt.Transcriber
	var err error
	switch cfg.STTBackend {
	case "whisper":
		backend, err = stt.NewWhisperTranscriber(cfg.WhisperModelPath, cfg.STTLanguage, cfg.CPUThreads, cfg.NumWorkers)
	case "deepgram":
		backend, err = stt.NewDeepgramTranscriber(cfg.DeepgramAPIKey, cfg.DeepgramModel, cfg.STTLanguage, cfg.SampleRate)
	default:
		return nil, fmt.Errorf("unknown STT backend %q", cfg.STTBackend)
	}
	if err != nil {
		return nil, err
	}

	breaker := resilience.NewCircuitBreaker("stt",
		cfg.STTBreakerMaxFailures,
		time.Duration(cfg.STTBreakerResetSeconds)*time.Second)
	return stt.NewBreakerTranscriber(backend, breaker), nil
}
