package stt

import (
	"context"

	"github.com/TUF-SCAR/Jarvis-Local/internal/observability"
	"github.com/TUF-SCAR/Jarvis-Local/internal/resilience"
)

// BreakerTranscriber protects a backend with a circuit breaker so a
// repeatedly failing engine fails fast instead of stalling every
// phrase.
type BreakerTranscriber struct {
	inner   Transcriber
	breaker *resilience.CircuitBreaker
}

// NewBreakerTranscriber wraps inner with the given breaker.
func NewBreakerTranscriber(inner Transcriber, breaker *resilience.CircuitBreaker) *BreakerTranscriber {
	return &BreakerTranscriber{inner: inner, breaker: breaker}
}

// Transcribe delegates to the backend under breaker protection.
func (b *BreakerTranscriber) Transcribe(ctx context.Context, samples []float32) (Transcript, error) {
	var result Transcript
	err := b.breaker.Call(func() error {
		var innerErr error
		result, innerErr = b.inner.Transcribe(ctx, samples)
		return innerErr
	})
	observability.UpdateCircuitBreakerState("stt", int(b.breaker.GetState()))
	if err != nil {
		observability.IncrementCircuitBreakerFailures("stt")
		return Transcript{}, err
	}
	return result, nil
}

// Close closes the backend.
func (b *BreakerTranscriber) Close() error {
	return b.inner.Close()
}
