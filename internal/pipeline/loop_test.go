package pipeline

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/TUF-SCAR/Jarvis-Local/internal/action"
	"github.com/TUF-SCAR/Jarvis-Local/internal/audio"
	"github.com/TUF-SCAR/Jarvis-Local/internal/guard"
	"github.com/TUF-SCAR/Jarvis-Local/internal/intent"
	"github.com/TUF-SCAR/Jarvis-Local/internal/stt"
	"github.com/TUF-SCAR/Jarvis-Local/internal/vad"
)

const frameSamples = 320

// scriptedTranscriber returns queued results in order.
type scriptedTranscriber struct {
	mu           sync.Mutex
	results      []stt.Transcript
	errs         []error
	calls        int
	sampleCounts []int
}

func (s *scriptedTranscriber) Transcribe(ctx context.Context, samples []float32) (stt.Transcript, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.calls
	s.calls++
	s.sampleCounts = append(s.sampleCounts, len(samples))
	if i < len(s.errs) && s.errs[i] != nil {
		return stt.Transcript{}, s.errs[i]
	}
	if i < len(s.results) {
		return s.results[i], nil
	}
	return stt.Transcript{}, nil
}

func (s *scriptedTranscriber) Close() error { return nil }

type recordingDispatcher struct {
	mu      sync.Mutex
	targets []action.Target
	err     error
}

func (d *recordingDispatcher) Dispatch(ctx context.Context, t action.Target) (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.targets = append(d.targets, t)
	if d.err != nil {
		return "", d.err
	}
	return "done", nil
}

type recordingAnnouncer struct {
	mu       sync.Mutex
	messages []string
}

func (a *recordingAnnouncer) Announce(ctx context.Context, message string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.messages = append(a.messages, message)
	return nil
}

type auditLine struct {
	command, outcome, detail string
}

type recordingAuditor struct {
	mu    sync.Mutex
	lines []auditLine
}

func (a *recordingAuditor) Record(command, outcome, detail string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.lines = append(a.lines, auditLine{command, outcome, detail})
}

type countingChime struct {
	mu    sync.Mutex
	plays int
}

func (c *countingChime) Play() {
	c.mu.Lock()
	c.plays++
	c.mu.Unlock()
}

type harness struct {
	loop       *Loop
	queue      *audio.FrameQueue
	faults     chan error
	transcribe *scriptedTranscriber
	dispatcher *recordingDispatcher
	announcer  *recordingAnnouncer
	auditor    *recordingAuditor
	chime      *countingChime
}

func newHarness(t *testing.T, transcribe *scriptedTranscriber) *harness {
	t.Helper()
	dir := t.TempDir()

	// The loop issues one discarded priming call before any phrase, so
	// the scripted results stay aligned with the real phrases.
	transcribe.results = append([]stt.Transcript{{}}, transcribe.results...)
	transcribe.errs = append([]error{nil}, transcribe.errs...)

	intentsPath := filepath.Join(dir, "intents.json")
	intents := `{
		"youtube": "https://www.youtube.com",
		"notepad": "notepad.exe",
		"steam": "steam.exe"
	}`
	if err := os.WriteFile(intentsPath, []byte(intents), 0o644); err != nil {
		t.Fatal(err)
	}
	store, err := intent.NewStore(intentsPath)
	if err != nil {
		t.Fatal(err)
	}

	whitelistPath := filepath.Join(dir, "whitelist.txt")
	if err := os.WriteFile(whitelistPath, []byte("www.youtube.com\nnotepad.exe\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	g, err := guard.NewGuard(whitelistPath, true)
	if err != nil {
		t.Fatal(err)
	}

	h := &harness{
		queue:      audio.NewFrameQueue(1024),
		faults:     make(chan error, 1),
		transcribe: transcribe,
		dispatcher: &recordingDispatcher{},
		announcer:  &recordingAnnouncer{},
		auditor:    &recordingAuditor{},
		chime:      &countingChime{},
	}
	h.loop = New(Config{
		Queue:  h.queue,
		Faults: h.faults,
		Segmenter: vad.NewSegmenter(vad.Config{
			ThresholdDB:   -45.0,
			SilenceFrames: 30,
			TimeoutFrames: 150,
			MinFrames:     14,
		}),
		Transcribe: h.transcribe,
		Resolver:   intent.NewResolver(store),
		Intents:    store,
		Guard:      g,
		Dispatcher: h.dispatcher,
		Announcer:  h.announcer,
		Chime:      h.chime,
		Audit:      h.auditor,
		FrameMs:    20,
		Warmup:     0,
	})
	return h
}

func (h *harness) pushPhrase(speechFrames, silenceFrames int) {
	loud := make([]float32, frameSamples)
	for i := range loud {
		loud[i] = 0.1
	}
	for i := 0; i < speechFrames; i++ {
		h.queue.Push(audio.Frame{Samples: append([]float32(nil), loud...)})
	}
	for i := 0; i < silenceFrames; i++ {
		h.queue.Push(audio.Frame{Samples: make([]float32, frameSamples)})
	}
}

// run drives the loop until the queue drains and returns its error.
func (h *harness) run(t *testing.T) error {
	t.Helper()
	h.queue.Close()
	done := make(chan error, 1)
	go func() { done <- h.loop.Run(context.Background()) }()
	select {
	case err := <-done:
		return err
	case <-time.After(5 * time.Second):
		t.Fatal("loop did not finish")
		return nil
	}
}

func TestSpokenCommandExecutes(t *testing.T) {
	h := newHarness(t, &scriptedTranscriber{
		results: []stt.Transcript{{Text: "Open YouTube."}},
	})
	h.pushPhrase(20, 30)
	if err := h.run(t); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if len(h.dispatcher.targets) != 1 {
		t.Fatalf("dispatched %d targets, want 1", len(h.dispatcher.targets))
	}
	target := h.dispatcher.targets[0]
	if target.Kind != action.KindURL || target.Value != "https://www.youtube.com" {
		t.Errorf("target = %+v", target)
	}

	if h.chime.plays != 1 {
		t.Errorf("chime played %d times, want 1", h.chime.plays)
	}

	if len(h.auditor.lines) != 1 {
		t.Fatalf("audit lines = %d, want 1", len(h.auditor.lines))
	}
	line := h.auditor.lines[0]
	if line.command != "open youtube" || line.outcome != string(OutcomeSuccess) {
		t.Errorf("audit line = %+v", line)
	}

	// The announcement precedes the dispatch result in the transcript of
	// spoken messages.
	if len(h.announcer.messages) == 0 || h.announcer.messages[0] != "Opening youtube." {
		t.Errorf("announcements = %v", h.announcer.messages)
	}
}

func TestEnginePrimedBeforeFirstPhrase(t *testing.T) {
	h := newHarness(t, &scriptedTranscriber{
		results: []stt.Transcript{{Text: "open youtube"}},
	})
	h.pushPhrase(20, 30)
	if err := h.run(t); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if h.transcribe.calls != 2 {
		t.Fatalf("transcriber called %d times, want priming call plus phrase", h.transcribe.calls)
	}
	if h.transcribe.sampleCounts[0] != primeSamples {
		t.Errorf("first engine call got %d samples, want the %d sample priming buffer",
			h.transcribe.sampleCounts[0], primeSamples)
	}
	if h.transcribe.sampleCounts[1] != 20*frameSamples {
		t.Errorf("second engine call got %d samples, want the captured phrase", h.transcribe.sampleCounts[1])
	}
	// The priming result is discarded; the phrase still resolves and runs.
	if len(h.dispatcher.targets) != 1 {
		t.Errorf("dispatched %d targets, want 1", len(h.dispatcher.targets))
	}
	if len(h.auditor.lines) != 1 {
		t.Errorf("audit lines = %+v, priming must not be audited", h.auditor.lines)
	}
}

func TestWhitelistDenialBlocksDispatch(t *testing.T) {
	h := newHarness(t, &scriptedTranscriber{
		results: []stt.Transcript{{Text: "open steam"}},
	})
	h.pushPhrase(20, 30)
	if err := h.run(t); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if len(h.dispatcher.targets) != 0 {
		t.Error("denied target must never reach the dispatcher")
	}
	if len(h.auditor.lines) != 1 || h.auditor.lines[0].outcome != string(OutcomeDenied) {
		t.Errorf("audit lines = %+v", h.auditor.lines)
	}
	if h.auditor.lines[0].detail == "" {
		t.Error("denial must be audited with a reason")
	}
}

func TestUnknownCommandIsNoMatch(t *testing.T) {
	h := newHarness(t, &scriptedTranscriber{
		results: []stt.Transcript{{Text: "open flibbertigibbet zzz"}},
	})
	h.pushPhrase(20, 30)
	if err := h.run(t); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if len(h.dispatcher.targets) != 0 {
		t.Error("unresolved utterance must not dispatch")
	}
	if len(h.auditor.lines) != 1 || h.auditor.lines[0].outcome != string(OutcomeNoMatch) {
		t.Errorf("audit lines = %+v", h.auditor.lines)
	}
}

func TestEmptyTranscriptIsAudited(t *testing.T) {
	h := newHarness(t, &scriptedTranscriber{
		results: []stt.Transcript{{Text: "   "}},
	})
	h.pushPhrase(20, 30)
	if err := h.run(t); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if len(h.auditor.lines) != 1 || h.auditor.lines[0].outcome != string(OutcomeEmptyTranscript) {
		t.Errorf("audit lines = %+v", h.auditor.lines)
	}
	if len(h.dispatcher.targets) != 0 {
		t.Error("empty transcript must not dispatch")
	}
	if len(h.announcer.messages) != 1 || h.announcer.messages[0] != "I did not catch that." {
		t.Errorf("announcements = %v, want the user told nothing was heard", h.announcer.messages)
	}
}

func TestEngineErrorReArmsTheLoop(t *testing.T) {
	h := newHarness(t, &scriptedTranscriber{
		errs:    []error{errors.New("model crashed"), nil},
		results: []stt.Transcript{{}, {Text: "open youtube"}},
	})
	// Two phrases: the first fails transcription, the second succeeds.
	h.pushPhrase(20, 30)
	h.pushPhrase(20, 30)
	if err := h.run(t); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if len(h.auditor.lines) != 2 {
		t.Fatalf("audit lines = %d, want 2", len(h.auditor.lines))
	}
	if h.auditor.lines[0].outcome != string(OutcomeEngineError) {
		t.Errorf("first outcome = %q, want engine error", h.auditor.lines[0].outcome)
	}
	if h.auditor.lines[1].outcome != string(OutcomeSuccess) {
		t.Errorf("second outcome = %q, want success after re-arm", h.auditor.lines[1].outcome)
	}
	if len(h.dispatcher.targets) != 1 {
		t.Errorf("dispatched %d targets, want 1", len(h.dispatcher.targets))
	}
}

func TestExecutionFailureIsAudited(t *testing.T) {
	h := newHarness(t, &scriptedTranscriber{
		results: []stt.Transcript{{Text: "open youtube"}},
	})
	h.dispatcher.err = errors.New("no browser found")
	h.pushPhrase(20, 30)
	if err := h.run(t); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if len(h.auditor.lines) != 1 || h.auditor.lines[0].outcome != string(OutcomeExecutionFailed) {
		t.Errorf("audit lines = %+v", h.auditor.lines)
	}
}

func TestStopVerbEndsTheLoop(t *testing.T) {
	h := newHarness(t, &scriptedTranscriber{
		results: []stt.Transcript{{Text: "stop"}, {Text: "open youtube"}},
	})
	// The second phrase must never be processed.
	h.pushPhrase(20, 30)
	h.pushPhrase(20, 30)
	if err := h.run(t); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	// One priming call plus the stop phrase.
	if h.transcribe.calls != 2 {
		t.Errorf("transcriber called %d times, want 2 after stop", h.transcribe.calls)
	}
	if len(h.auditor.lines) != 1 || h.auditor.lines[0].outcome != string(OutcomeSuccess) {
		t.Errorf("audit lines = %+v", h.auditor.lines)
	}
}

func TestDiscardedBurstIsSilent(t *testing.T) {
	h := newHarness(t, &scriptedTranscriber{})
	// 5 frames is below the 14-frame minimum.
	h.pushPhrase(5, 30)
	if err := h.run(t); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if h.transcribe.calls != 1 {
		t.Error("discarded burst must not reach the engine beyond the priming call")
	}
	if len(h.auditor.lines) != 0 {
		t.Error("discarded burst must not be audited")
	}
	if len(h.announcer.messages) != 0 {
		t.Error("discarded burst must not be announced")
	}
}

func TestCaptureFaultIsFatal(t *testing.T) {
	h := newHarness(t, &scriptedTranscriber{})
	h.faults <- errors.New("device unplugged")
	h.queue.Close()

	done := make(chan error, 1)
	go func() { done <- h.loop.Run(context.Background()) }()
	select {
	case err := <-done:
		if err == nil {
			t.Fatal("capture fault must surface as an error")
		}
	case <-time.After(5 * time.Second):
		t.Fatal("loop did not finish")
	}
}

func TestWarmupDiscardsInitialAudio(t *testing.T) {
	h := newHarness(t, &scriptedTranscriber{})
	// Rebuild the loop with a one second warm-up (50 frames at 20ms).
	h.loop.warmupFrames = 50

	// 20 loud frames inside the warm-up window look like speech but must
	// be dropped, and the silence after them must not end any phrase.
	h.pushPhrase(20, 40)
	if err := h.run(t); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if h.transcribe.calls != 1 {
		t.Error("audio during warm-up must be discarded; only the priming call may run")
	}
}

func TestSayVerbSpeaksWithoutDispatch(t *testing.T) {
	h := newHarness(t, &scriptedTranscriber{
		results: []stt.Transcript{{Text: "say hello there"}},
	})
	h.pushPhrase(20, 30)
	if err := h.run(t); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if len(h.dispatcher.targets) != 0 {
		t.Error("say must not dispatch to the host")
	}
	found := false
	for _, m := range h.announcer.messages {
		if m == "hello there" {
			found = true
		}
	}
	if !found {
		t.Errorf("announcements = %v, want the spoken message", h.announcer.messages)
	}
}

func TestListIntentsAnnouncesLabels(t *testing.T) {
	h := newHarness(t, &scriptedTranscriber{
		results: []stt.Transcript{{Text: "list intents"}},
	})
	h.pushPhrase(20, 30)
	if err := h.run(t); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if len(h.auditor.lines) != 1 || h.auditor.lines[0].outcome != string(OutcomeSuccess) {
		t.Fatalf("audit lines = %+v", h.auditor.lines)
	}
	if len(h.announcer.messages) != 1 {
		t.Fatalf("announcements = %v", h.announcer.messages)
	}
}
