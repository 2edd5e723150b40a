// Package stt turns captured phrase audio into text. Backends implement
// Transcriber; the pipeline treats an empty transcript and an engine
// error as distinct outcomes.
package stt

import (
	"context"
	"errors"
)

// Transcript is the result of transcribing one phrase.
type Transcript struct {
	// Text is the raw engine output before normalization.
	Text string
	// Confidence is the engine's confidence when reported, 0 otherwise.
	Confidence float64
}

// Transcriber converts one phrase of mono 16 kHz float32 PCM into text.
// Implementations are called serially, one phrase at a time.
type Transcriber interface {
	Transcribe(ctx context.Context, samples []float32) (Transcript, error)
	Close() error
}

// ErrNoAudio is returned when a phrase contains no samples.
var ErrNoAudio = errors.New("no audio samples provided")
