package pipeline

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/TUF-SCAR/Jarvis-Local/internal/action"
	"github.com/TUF-SCAR/Jarvis-Local/internal/audio"
	"github.com/TUF-SCAR/Jarvis-Local/internal/feedback"
	"github.com/TUF-SCAR/Jarvis-Local/internal/guard"
	"github.com/TUF-SCAR/Jarvis-Local/internal/intent"
	"github.com/TUF-SCAR/Jarvis-Local/internal/observability"
	"github.com/TUF-SCAR/Jarvis-Local/internal/stt"
	"github.com/TUF-SCAR/Jarvis-Local/internal/vad"
)

const helpText = "You can say: open followed by an app or site name, " +
	"type followed by text, say followed by a message, screenshot, " +
	"intents to list commands, help, or stop to exit."

// primeSamples is the dummy buffer for the engine warm-up call, 100ms
// of silence at 16 kHz.
const primeSamples = 1600

// TargetGuard gates resolved targets. Implemented by guard.Guard.
type TargetGuard interface {
	Check(t action.Target) guard.Decision
}

// Auditor records utterance outcomes. Implemented by audit.Logger.
type Auditor interface {
	Record(command, outcome, detail string)
}

// Chimer plays the capture cue. Implemented by feedback.Chime.
type Chimer interface {
	Play()
}

// Loop wires the stages together and processes one phrase at a time.
// Frames keep queueing while a phrase is in flight; the bounded queue
// drops the oldest audio if processing falls too far behind.
type Loop struct {
	queue      *audio.FrameQueue
	faults     <-chan error
	segmenter  *vad.Segmenter
	transcribe stt.Transcriber
	resolver   *intent.Resolver
	intents    *intent.Store
	guard      TargetGuard
	dispatcher action.Dispatcher
	announcer  feedback.Announcer
	chime      Chimer
	audit      Auditor

	frameMs      int
	warmupFrames int
}

// Config carries the loop's construction parameters.
type Config struct {
	Queue      *audio.FrameQueue
	Faults     <-chan error
	Segmenter  *vad.Segmenter
	Transcribe stt.Transcriber
	Resolver   *intent.Resolver
	Intents    *intent.Store
	Guard      TargetGuard
	Dispatcher action.Dispatcher
	Announcer  feedback.Announcer
	Chime      Chimer
	Audit      Auditor

	FrameMs int
	Warmup  time.Duration
}

// New creates the utterance loop.
func New(cfg Config) *Loop {
	warmupFrames := 0
	if cfg.FrameMs > 0 {
		warmupFrames = int(cfg.Warmup.Milliseconds()) / cfg.FrameMs
	}
	return &Loop{
		queue:        cfg.Queue,
		faults:       cfg.Faults,
		segmenter:    cfg.Segmenter,
		transcribe:   cfg.Transcribe,
		resolver:     cfg.Resolver,
		intents:      cfg.Intents,
		guard:        cfg.Guard,
		dispatcher:   cfg.Dispatcher,
		announcer:    cfg.Announcer,
		chime:        cfg.Chime,
		audit:        cfg.Audit,
		frameMs:      cfg.FrameMs,
		warmupFrames: warmupFrames,
	}
}

// Run consumes frames until the context is cancelled, the user says
// stop, or the capture source faults. A capture fault is the only
// error condition; everything else is handled per utterance and the
// loop re-arms.
func (l *Loop) Run(ctx context.Context) error {
	// One discarded engine call absorbs first-call latency, so the first
	// real phrase is not mis-timed.
	if _, err := l.transcribe.Transcribe(ctx, make([]float32, primeSamples)); err != nil {
		log.Warn().Err(err).Msg("Engine warm-up call failed")
	}

	if l.warmupFrames > 0 {
		log.Info().Int("frames", l.warmupFrames).Msg("Warming up, discarding initial audio")
	}
	discarded := 0

	for {
		select {
		case <-ctx.Done():
			return nil
		case err := <-l.faults:
			return fmt.Errorf("audio capture fault: %w", err)
		default:
		}

		frame, ok := l.queue.Pop()
		if !ok {
			// Queue closed: either a shutdown or a capture fault.
			select {
			case err := <-l.faults:
				return fmt.Errorf("audio capture fault: %w", err)
			default:
				return nil
			}
		}

		// Device startup transients would register as speech.
		if discarded < l.warmupFrames {
			discarded++
			continue
		}

		ev, phrase := l.segmenter.Feed(frame)
		switch ev {
		case vad.EventDiscarded:
			observability.RecordPhraseDiscarded()
			log.Debug().Msg("Burst below minimum phrase length discarded")
		case vad.EventPhrase:
			if l.chime != nil {
				l.chime.Play()
			}
			stop := l.handlePhrase(ctx, phrase)
			if stop {
				return nil
			}
		}
	}
}

// handlePhrase runs one captured phrase through transcription,
// resolution, gating, and dispatch. It returns true when the user asked
// the daemon to stop.
func (l *Loop) handlePhrase(ctx context.Context, phrase *vad.Phrase) bool {
	logger, utteranceID := observability.WithUtteranceID("")
	duration := audio.FrameDuration(phrase.Frames, l.frameMs)
	observability.RecordPhrase(duration)
	logger.Info().
		Dur("duration", duration).
		Float64("energy_db", audio.Frame{Samples: phrase.Samples}.EnergyDB()).
		Str("end", endReason(phrase.Reason)).
		Msg("Phrase captured")

	transcript, err := l.transcribe.Transcribe(ctx, phrase.Samples)
	if err != nil {
		logger.Error().Err(err).Msg("Transcription failed")
		l.finish(ctx, utteranceID, "(unintelligible)", OutcomeEngineError, err.Error(),
			"Sorry, I could not process that.")
		return false
	}

	raw := strings.TrimSpace(transcript.Text)
	if raw == "" {
		logger.Info().Msg("Empty transcript")
		l.finish(ctx, utteranceID, "(silence)", OutcomeEmptyTranscript, "",
			"I did not catch that.")
		return false
	}

	normalized := intent.Normalize(raw)
	logger.Info().Str("raw", raw).Str("normalized", normalized).Msg("Transcript")
	if normalized == "" {
		l.finish(ctx, utteranceID, raw, OutcomeEmptyTranscript, "only filler words",
			"I did not catch that.")
		return false
	}

	res, ok := l.resolver.Resolve(normalized)
	if !ok {
		logger.Info().Str("utterance", normalized).Msg("No matching intent")
		l.finish(ctx, utteranceID, normalized, OutcomeNoMatch, "",
			fmt.Sprintf("I don't know how to %s.", normalized))
		return false
	}
	logger.Info().
		Str("match", res.Match.String()).
		Str("kind", res.Target.Kind.String()).
		Str("label", res.Target.Label).
		Msg("Intent resolved")

	decision := l.guard.Check(res.Target)
	if !decision.Allowed {
		observability.RecordWhitelistDenial()
		logger.Warn().Str("reason", decision.Reason).Msg("Target denied by whitelist")
		l.finish(ctx, utteranceID, normalized, OutcomeDenied, decision.Reason,
			"That command is not allowed.")
		return false
	}

	return l.execute(ctx, utteranceID, normalized, res.Target)
}

// execute announces the action, runs it, and records the result. The
// announcement comes first so the user hears what is about to happen.
func (l *Loop) execute(ctx context.Context, utteranceID, command string, t action.Target) bool {
	switch t.Kind {
	case action.KindSay:
		l.finish(ctx, utteranceID, command, OutcomeSuccess, "spoke message", t.Value)
		return false
	case action.KindHelp:
		l.finish(ctx, utteranceID, command, OutcomeSuccess, "help shown", helpText)
		return false
	case action.KindListIntents:
		labels := l.intents.Current().Labels()
		msg := "No intents are configured."
		if len(labels) > 0 {
			msg = "Available commands: " + strings.Join(labels, ", ") + "."
		}
		l.finish(ctx, utteranceID, command, OutcomeSuccess, fmt.Sprintf("%d intents listed", len(labels)), msg)
		return false
	case action.KindStop:
		l.finish(ctx, utteranceID, command, OutcomeSuccess, "shutdown requested", "Goodbye.")
		return true
	}

	l.announce(ctx, announcement(t))
	detail, err := l.dispatcher.Dispatch(ctx, t)
	if err != nil {
		log.Error().Err(err).Str("utterance_id", utteranceID).Msg("Dispatch failed")
		l.finish(ctx, utteranceID, command, OutcomeExecutionFailed, err.Error(),
			"There was an error while executing the action.")
		return false
	}
	l.finish(ctx, utteranceID, command, OutcomeSuccess, detail, "")
	return false
}

// finish records metrics and the audit line, then speaks the message
// when there is one.
func (l *Loop) finish(ctx context.Context, utteranceID, command string, outcome Outcome, detail, message string) {
	observability.RecordOutcome(outcome.metricLabel())
	l.audit.Record(command, string(outcome), detail)
	log.Info().
		Str("utterance_id", utteranceID).
		Str("command", command).
		Str("outcome", string(outcome)).
		Msg("Utterance complete")
	l.announce(ctx, message)
}

func (l *Loop) announce(ctx context.Context, message string) {
	if message == "" || l.announcer == nil {
		return
	}
	if err := l.announcer.Announce(ctx, message); err != nil {
		log.Warn().Err(err).Msg("Announcement failed")
	}
}

// announcement phrases what a dispatchable target is about to do.
func announcement(t action.Target) string {
	switch t.Kind {
	case action.KindApp:
		name := t.Label
		if name == "" {
			name = t.Value
		}
		return fmt.Sprintf("Opening %s.", name)
	case action.KindURL:
		name := t.Label
		if name == "" {
			name = t.Value
		}
		return fmt.Sprintf("Opening %s.", name)
	case action.KindType:
		return "Typing."
	case action.KindScreenshot:
		return "Taking a screenshot."
	}
	return ""
}

func endReason(r vad.EndReason) string {
	if r == vad.EndTimeout {
		return "timeout"
	}
	return "silence"
}
