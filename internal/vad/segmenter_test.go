package vad

import (
	"testing"

	"github.com/TUF-SCAR/Jarvis-Local/internal/audio"
)

const frameSamples = 320 // 20ms at 16kHz

func loudFrame() audio.Frame {
	samples := make([]float32, frameSamples)
	for i := range samples {
		samples[i] = 0.1 // -20 dBFS
	}
	return audio.Frame{Samples: samples}
}

func quietFrame() audio.Frame {
	return audio.Frame{Samples: make([]float32, frameSamples)}
}

func testConfig() Config {
	return Config{
		ThresholdDB:   -45.0,
		SilenceFrames: 30,  // 600ms
		TimeoutFrames: 150, // 3s
		MinFrames:     14,  // 280ms
	}
}

// feed pushes n copies of a frame and fails the test if a phrase or
// discard fires before the last one unless allowEvent is set.
func feedN(t *testing.T, s *Segmenter, f audio.Frame, n int) (Event, *Phrase) {
	t.Helper()
	var ev Event
	var ph *Phrase
	for i := 0; i < n; i++ {
		ev, ph = s.Feed(f)
		if ev != EventNone && i < n-1 {
			return ev, ph
		}
	}
	return ev, ph
}

func TestPhraseEndsOnSilence(t *testing.T) {
	s := NewSegmenter(testConfig())

	ev, _ := feedN(t, s, loudFrame(), 50)
	if ev != EventNone {
		t.Fatalf("unexpected event while speaking: %v", ev)
	}

	ev, ph := feedN(t, s, quietFrame(), 30)
	if ev != EventPhrase {
		t.Fatalf("event = %v, want EventPhrase", ev)
	}
	if ph.Reason != EndSilence {
		t.Errorf("Reason = %v, want EndSilence", ph.Reason)
	}
	// Trailing silence is trimmed, so only speech frames survive.
	if ph.Frames != 50 {
		t.Errorf("Frames = %d, want 50", ph.Frames)
	}
	if len(ph.Samples) != 50*frameSamples {
		t.Errorf("len(Samples) = %d, want %d", len(ph.Samples), 50*frameSamples)
	}
}

func TestLeadingSilenceNeverBuffered(t *testing.T) {
	s := NewSegmenter(testConfig())

	feedN(t, s, quietFrame(), 200)
	if s.Capturing() {
		t.Fatal("segmenter should stay idle over silence")
	}

	feedN(t, s, loudFrame(), 20)
	_, ph := feedN(t, s, quietFrame(), 30)
	if ph == nil {
		t.Fatal("expected a phrase")
	}
	if ph.Frames != 20 {
		t.Errorf("Frames = %d, want 20; leading silence must not be included", ph.Frames)
	}
}

func TestShortBurstDiscarded(t *testing.T) {
	s := NewSegmenter(testConfig())

	// 10 frames of speech is under the 14-frame minimum.
	feedN(t, s, loudFrame(), 10)
	ev, ph := feedN(t, s, quietFrame(), 30)
	if ev != EventDiscarded {
		t.Fatalf("event = %v, want EventDiscarded", ev)
	}
	if ph != nil {
		t.Error("discarded burst should not produce a phrase")
	}
	if s.Capturing() {
		t.Error("segmenter should be re-armed after a discard")
	}
}

func TestSilencePaddingCannotRescueShortBurst(t *testing.T) {
	s := NewSegmenter(testConfig())

	// 10 speech frames plus 20 silence frames totals 30, but the burst
	// itself is still under the minimum once silence is trimmed.
	feedN(t, s, loudFrame(), 10)
	feedN(t, s, quietFrame(), 20)
	ev, _ := feedN(t, s, quietFrame(), 10)
	if ev != EventDiscarded {
		t.Fatalf("event = %v, want EventDiscarded", ev)
	}
}

func TestPhraseTimeoutCutsOff(t *testing.T) {
	s := NewSegmenter(testConfig())

	ev, ph := feedN(t, s, loudFrame(), 150)
	if ev != EventPhrase {
		t.Fatalf("event = %v, want EventPhrase at the timeout", ev)
	}
	if ph.Reason != EndTimeout {
		t.Errorf("Reason = %v, want EndTimeout", ph.Reason)
	}
	if ph.Frames != 150 {
		t.Errorf("Frames = %d, want 150", ph.Frames)
	}
}

func TestInterruptedSilenceResetsTheRun(t *testing.T) {
	s := NewSegmenter(testConfig())

	feedN(t, s, loudFrame(), 20)
	// 29 quiet frames is one short of the window.
	feedN(t, s, quietFrame(), 29)
	// Speech resumes, so the run starts over.
	ev, _ := s.Feed(loudFrame())
	if ev != EventNone {
		t.Fatalf("speech should reset the silence run, got %v", ev)
	}
	ev, ph := feedN(t, s, quietFrame(), 30)
	if ev != EventPhrase {
		t.Fatalf("event = %v, want EventPhrase", ev)
	}
	// 20 speech + 29 quiet + 1 speech = 50 frames after trimming.
	if ph.Frames != 50 {
		t.Errorf("Frames = %d, want 50", ph.Frames)
	}
}

func TestSegmenterReArmsAfterPhrase(t *testing.T) {
	s := NewSegmenter(testConfig())

	feedN(t, s, loudFrame(), 20)
	feedN(t, s, quietFrame(), 30)

	// Second phrase goes through the full cycle again.
	feedN(t, s, loudFrame(), 25)
	ev, ph := feedN(t, s, quietFrame(), 30)
	if ev != EventPhrase {
		t.Fatalf("second phrase event = %v, want EventPhrase", ev)
	}
	if ph.Frames != 25 {
		t.Errorf("second phrase Frames = %d, want 25", ph.Frames)
	}
}

func TestReset(t *testing.T) {
	s := NewSegmenter(testConfig())
	feedN(t, s, loudFrame(), 20)
	s.Reset()
	if s.Capturing() {
		t.Error("Reset() should return the segmenter to idle")
	}
	// Audio captured before Reset must not leak into the next phrase.
	feedN(t, s, loudFrame(), 15)
	_, ph := feedN(t, s, quietFrame(), 30)
	if ph == nil || ph.Frames != 15 {
		t.Errorf("phrase after Reset() = %+v, want 15 frames", ph)
	}
}
