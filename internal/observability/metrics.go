package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Utterance metrics
	utterancesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "jarvisd_utterances_total",
		Help: "Total number of utterances processed, by outcome",
	}, []string{"outcome"})

	phraseDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "jarvisd_phrase_duration_seconds",
		Help:    "Duration of captured phrases in seconds",
		Buckets: []float64{0.25, 0.5, 1.0, 1.5, 2.0, 3.0, 5.0, 10.0},
	})

	phrasesDiscarded = promauto.NewCounter(prometheus.CounterOpts{
		Name: "jarvisd_phrases_discarded_total",
		Help: "Phrases dropped as noise (shorter than the minimum phrase length)",
	})

	// Capture metrics
	framesCaptured = promauto.NewCounter(prometheus.CounterOpts{
		Name: "jarvisd_frames_captured_total",
		Help: "Total audio frames read from the input device",
	})

	framesDropped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "jarvisd_frames_dropped_total",
		Help: "Frames dropped because the frame queue overflowed",
	})

	// STT metrics
	sttRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "jarvisd_stt_requests_total",
		Help: "Total number of transcription requests",
	}, []string{"status"})

	sttLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "jarvisd_stt_latency_seconds",
		Help:    "Transcription latency in seconds",
		Buckets: []float64{0.1, 0.25, 0.5, 1.0, 2.0, 5.0, 10.0},
	})

	// Dispatch metrics
	dispatchLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "jarvisd_dispatch_latency_seconds",
		Help:    "Action execution latency in seconds",
		Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1.0, 2.0, 5.0},
	})

	whitelistDenials = promauto.NewCounter(prometheus.CounterOpts{
		Name: "jarvisd_whitelist_denials_total",
		Help: "Resolved targets rejected by the whitelist guard",
	})

	// Error metrics
	errorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "jarvisd_errors_total",
		Help: "Total number of errors",
	}, []string{"type", "component"})

	// Circuit breaker metrics
	circuitBreakerState = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "jarvisd_circuit_breaker_state",
		Help: "Circuit breaker state (0=closed, 1=open, 2=half-open)",
	}, []string{"service"})

	circuitBreakerFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "jarvisd_circuit_breaker_failures_total",
		Help: "Total circuit breaker failures",
	}, []string{"service"})
)

// RecordOutcome counts one completed pipeline pass with the given outcome.
func RecordOutcome(outcome string) {
	utterancesTotal.WithLabelValues(outcome).Inc()
}

// RecordPhrase records the duration of a delivered phrase.
func RecordPhrase(d time.Duration) {
	phraseDuration.Observe(d.Seconds())
}

// RecordPhraseDiscarded counts a sub-minimum phrase dropped as noise.
func RecordPhraseDiscarded() {
	phrasesDiscarded.Inc()
}

// RecordFramesCaptured counts frames read from the device.
func RecordFramesCaptured(n int) {
	framesCaptured.Add(float64(n))
}

// RecordFrameDropped counts a frame lost to queue overflow.
func RecordFrameDropped() {
	framesDropped.Inc()
}

// RecordSTT records one transcription request and its latency.
func RecordSTT(d time.Duration, success bool) {
	sttLatency.Observe(d.Seconds())
	status := "success"
	if !success {
		status = "error"
	}
	sttRequests.WithLabelValues(status).Inc()
}

// RecordDispatch records one action execution.
func RecordDispatch(d time.Duration) {
	dispatchLatency.Observe(d.Seconds())
}

// RecordWhitelistDenial counts a target blocked by the guard.
func RecordWhitelistDenial() {
	whitelistDenials.Inc()
}

// RecordError records an error
func RecordError(errorType, component string) {
	errorsTotal.WithLabelValues(errorType, component).Inc()
}

// UpdateCircuitBreakerState updates circuit breaker state metric
func UpdateCircuitBreakerState(service string, state int) {
	circuitBreakerState.WithLabelValues(service).Set(float64(state))
}

// IncrementCircuitBreakerFailures increments circuit breaker failure counter
func IncrementCircuitBreakerFailures(service string) {
	circuitBreakerFailures.WithLabelValues(service).Inc()
}
