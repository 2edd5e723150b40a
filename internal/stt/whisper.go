package stt

import (
	"context"
	"fmt"
	"io"
	"runtime"
	"strings"
	"time"

	"github.com/ggerganov/whisper.cpp/bindings/go/pkg/whisper"
	"github.com/rs/zerolog/log"

	"github.com/TUF-SCAR/Jarvis-Local/internal/observability"
)

// WhisperTranscriber runs local inference through whisper.cpp. The model
// is loaded once; each phrase gets a fresh decoding context.
type WhisperTranscriber struct {
	model    whisper.Model
	language string
	threads  int

	// slots bounds concurrent decoding contexts. whisper.cpp contexts
	// are not safe for concurrent use, so each in-flight phrase needs
	// its own.
	slots chan struct{}
}

// NewWhisperTranscriber loads the model at modelPath. threads <= 0 uses
// all CPUs; workers <= 0 allows one phrase in flight.
func NewWhisperTranscriber(modelPath, language string, threads, workers int) (*WhisperTranscriber, error) {
	if modelPath == "" {
		return nil, fmt.Errorf("whisper model path is empty")
	}
	model, err := whisper.New(modelPath)
	if err != nil {
		return nil, fmt.Errorf("loading whisper model: %w", err)
	}
	if threads <= 0 {
		threads = runtime.NumCPU()
	}
	if workers <= 0 {
		workers = 1
	}
	if language == "" {
		language = "auto"
	}
	log.Info().
		Str("model", modelPath).
		Str("language", language).
		Int("threads", threads).
		Int("workers", workers).
		Msg("Whisper model loaded")
	return &WhisperTranscriber{
		model:    model,
		language: language,
		threads:  threads,
		slots:    make(chan struct{}, workers),
	}, nil
}

// Transcribe decodes one phrase of mono 16 kHz PCM.
func (w *WhisperTranscriber) Transcribe(ctx context.Context, samples []float32) (Transcript, error) {
	if len(samples) == 0 {
		return Transcript{}, ErrNoAudio
	}

	select {
	case w.slots <- struct{}{}:
	case <-ctx.Done():
		return Transcript{}, ctx.Err()
	}
	defer func() { <-w.slots }()

	start := time.Now()
	wctx, err := w.model.NewContext()
	if err != nil {
		observability.RecordSTT(time.Since(start), false)
		return Transcript{}, fmt.Errorf("creating whisper context: %w", err)
	}
	if err := wctx.SetLanguage(w.language); err != nil {
		observability.RecordSTT(time.Since(start), false)
		return Transcript{}, fmt.Errorf("setting language: %w", err)
	}
	wctx.SetThreads(uint(w.threads))

	if err := wctx.Process(samples, nil, nil, nil); err != nil {
		observability.RecordSTT(time.Since(start), false)
		return Transcript{}, fmt.Errorf("whisper inference: %w", err)
	}

	var parts []string
	for {
		select {
		case <-ctx.Done():
			observability.RecordSTT(time.Since(start), false)
			return Transcript{}, ctx.Err()
		default:
		}
		seg, err := wctx.NextSegment()
		if err == io.EOF {
			break
		}
		if err != nil {
			observability.RecordSTT(time.Since(start), false)
			return Transcript{}, fmt.Errorf("reading segment: %w", err)
		}
		parts = append(parts, seg.Text)
	}

	text := strings.TrimSpace(strings.Join(parts, " "))
	observability.RecordSTT(time.Since(start), true)
	log.Debug().
		Str("text", text).
		Dur("latency", time.Since(start)).
		Msg("Whisper transcription complete")
	return Transcript{Text: text}, nil
}

// Close releases the loaded model.
func (w *WhisperTranscriber) Close() error {
	if w.model == nil {
		return nil
	}
	return w.model.Close()
}
