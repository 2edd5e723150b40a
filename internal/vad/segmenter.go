// Package vad segments a stream of audio frames into spoken phrases
// using an energy threshold. Frames at or above the threshold count as
// speech; a long enough run of quiet frames ends the phrase.
package vad

import (
	"github.com/TUF-SCAR/Jarvis-Local/internal/audio"
)

// Event describes what happened after feeding one frame.
type Event int

const (
	// EventNone means the segmenter is still idle or still capturing.
	EventNone Event = iota
	// EventPhrase means a phrase is complete and ready for transcription.
	EventPhrase
	// EventDiscarded means a burst shorter than the minimum phrase length
	// ended and was dropped as noise.
	EventDiscarded
)

// EndReason records how a delivered phrase was terminated.
type EndReason int

const (
	// EndSilence means the trailing silence window elapsed.
	EndSilence EndReason = iota
	// EndTimeout means the phrase hit the hard length cutoff.
	EndTimeout
)

// Phrase is a completed speech segment.
type Phrase struct {
	// Samples holds the phrase audio with trailing silence trimmed.
	Samples []float32
	// Frames is the number of frames in Samples.
	Frames int
	// Reason is how the phrase ended.
	Reason EndReason
}

type state int

const (
	stateIdle state = iota
	stateCapturing
)

// Config holds the segmentation parameters, all in frame counts except
// the threshold.
type Config struct {
	// ThresholdDB is the speech onset energy in dBFS.
	ThresholdDB float64
	// SilenceFrames is how many consecutive quiet frames end a phrase.
	SilenceFrames int
	// TimeoutFrames is the hard cap on phrase length.
	TimeoutFrames int
	// MinFrames is the shortest burst kept as a phrase.
	MinFrames int
}

// Segmenter is the phrase detection state machine. It is not safe for
// concurrent use; feed it from a single goroutine.
type Segmenter struct {
	cfg Config
	// thresholdAmp is cfg.ThresholdDB as a linear RMS amplitude, so each
	// frame costs one comparison instead of a log.
	thresholdAmp float64

	state      state
	buffer     []float32
	frameCount int
	silenceRun int
}

// NewSegmenter creates a segmenter with the given parameters.
func NewSegmenter(cfg Config) *Segmenter {
	return &Segmenter{
		cfg:          cfg,
		thresholdAmp: audio.DBToAmplitude(cfg.ThresholdDB),
	}
}

// Feed advances the state machine by one frame. When the returned event
// is EventPhrase the phrase is non-nil; otherwise it is nil.
//
// While idle, quiet frames are never buffered, so a phrase always starts
// on the frame that crossed the threshold. While capturing, every frame
// is buffered; the trailing silence run is cut off again when the phrase
// is delivered, so the audio ends where the silence began.
func (s *Segmenter) Feed(f audio.Frame) (Event, *Phrase) {
	loud := f.RMS() >= s.thresholdAmp

	switch s.state {
	case stateIdle:
		if !loud {
			return EventNone, nil
		}
		s.state = stateCapturing
		s.buffer = append(s.buffer[:0], f.Samples...)
		s.frameCount = 1
		s.silenceRun = 0
		if s.frameCount >= s.cfg.TimeoutFrames {
			return s.deliver(EndTimeout)
		}
		return EventNone, nil

	case stateCapturing:
		s.buffer = append(s.buffer, f.Samples...)
		s.frameCount++
		if loud {
			s.silenceRun = 0
		} else {
			s.silenceRun++
			if s.silenceRun >= s.cfg.SilenceFrames {
				return s.endOnSilence()
			}
		}
		if s.frameCount >= s.cfg.TimeoutFrames {
			return s.deliver(EndTimeout)
		}
		return EventNone, nil
	}
	return EventNone, nil
}

// endOnSilence finishes a phrase whose trailing silence window elapsed.
// The silence run is trimmed before the length check, so padding with
// silence cannot rescue a burst that is too short.
func (s *Segmenter) endOnSilence() (Event, *Phrase) {
	speechFrames := s.frameCount - s.silenceRun
	if speechFrames < s.cfg.MinFrames {
		s.reset()
		return EventDiscarded, nil
	}
	samplesPerFrame := len(s.buffer) / s.frameCount
	s.buffer = s.buffer[:speechFrames*samplesPerFrame]
	s.frameCount = speechFrames
	return s.deliver(EndSilence)
}

func (s *Segmenter) deliver(reason EndReason) (Event, *Phrase) {
	phrase := &Phrase{
		Samples: append([]float32(nil), s.buffer...),
		Frames:  s.frameCount,
		Reason:  reason,
	}
	s.reset()
	return EventPhrase, phrase
}

// Reset returns the segmenter to idle, dropping any partial capture.
func (s *Segmenter) Reset() {
	s.reset()
}

func (s *Segmenter) reset() {
	s.state = stateIdle
	s.buffer = s.buffer[:0]
	s.frameCount = 0
	s.silenceRun = 0
}

// Capturing reports whether a phrase is currently being buffered.
func (s *Segmenter) Capturing() bool {
	return s.state == stateCapturing
}
