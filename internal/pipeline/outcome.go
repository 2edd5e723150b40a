// Package pipeline runs the utterance loop: frames in, one command
// acted on at a time, feedback and an audit record out.
package pipeline

// Outcome classifies how one utterance ended. The values are written
// verbatim into the audit log.
type Outcome string

const (
	// OutcomeSuccess means the command resolved, passed the whitelist,
	// and executed.
	OutcomeSuccess Outcome = "SUCCESS"
	// OutcomeDenied means the whitelist rejected the resolved target.
	OutcomeDenied Outcome = "DENIED"
	// OutcomeNoMatch means the transcript resolved to nothing.
	OutcomeNoMatch Outcome = "NO_MATCH"
	// OutcomeEmptyTranscript means the engine returned no text.
	OutcomeEmptyTranscript Outcome = "EMPTY_TRANSCRIPT"
	// OutcomeEngineError means transcription itself failed.
	OutcomeEngineError Outcome = "ENGINE_ERROR"
	// OutcomeExecutionFailed means dispatch of an allowed target failed.
	OutcomeExecutionFailed Outcome = "EXECUTION_FAILED"
)

// metricLabel is the Prometheus label for this outcome.
func (o Outcome) metricLabel() string {
	switch o {
	case OutcomeSuccess:
		return "success"
	case OutcomeDenied:
		return "denied"
	case OutcomeNoMatch:
		return "no_match"
	case OutcomeEmptyTranscript:
		return "empty_transcript"
	case OutcomeEngineError:
		return "engine_error"
	case OutcomeExecutionFailed:
		return "execution_failed"
	}
	return "unknown"
}
