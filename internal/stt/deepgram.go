package stt

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	websocketv1api "github.com/deepgram/deepgram-go-sdk/v3/pkg/api/listen/v1/websocket"
	msginterfaces "github.com/deepgram/deepgram-go-sdk/v3/pkg/api/listen/v1/websocket/interfaces"
	interfaces "github.com/deepgram/deepgram-go-sdk/v3/pkg/client/interfaces"
	listenClient "github.com/deepgram/deepgram-go-sdk/v3/pkg/client/listen"
	"github.com/rs/zerolog/log"

	"github.com/TUF-SCAR/Jarvis-Local/internal/audio"
	"github.com/TUF-SCAR/Jarvis-Local/internal/observability"
)

// phraseCallbackHandler collects final transcription results for one
// phrase session. It embeds the default handler and overrides only the
// messages it cares about.
type phraseCallbackHandler struct {
	*websocketv1api.DefaultCallbackHandler

	mu     sync.Mutex
	finals []string
	conf   float64

	done    chan struct{}
	errOnce sync.Once
	err     error
}

func newPhraseCallbackHandler() *phraseCallbackHandler {
	return &phraseCallbackHandler{
		DefaultCallbackHandler: websocketv1api.NewDefaultCallbackHandler(),
		done:                   make(chan struct{}),
	}
}

// Message accumulates final results. Interim results are ignored since
// a phrase session is finalized before reading anything back.
func (h *phraseCallbackHandler) Message(msg *msginterfaces.MessageResponse) error {
	if msg == nil || len(msg.Channel.Alternatives) == 0 {
		return nil
	}
	if !msg.IsFinal {
		return nil
	}
	alt := msg.Channel.Alternatives[0]
	if alt.Transcript == "" {
		return nil
	}
	h.mu.Lock()
	h.finals = append(h.finals, alt.Transcript)
	if alt.Confidence > h.conf {
		h.conf = alt.Confidence
	}
	h.mu.Unlock()
	return nil
}

// Close marks the session complete once the server closes the stream.
func (h *phraseCallbackHandler) Close(cr *msginterfaces.CloseResponse) error {
	h.errOnce.Do(func() { close(h.done) })
	return nil
}

// Error terminates the session with the server's error.
func (h *phraseCallbackHandler) Error(er *msginterfaces.ErrorResponse) error {
	h.errOnce.Do(func() {
		h.err = fmt.Errorf("deepgram error: %s", er.ErrMsg)
		close(h.done)
	})
	return nil
}

func (h *phraseCallbackHandler) result() Transcript {
	h.mu.Lock()
	defer h.mu.Unlock()
	return Transcript{
		Text:       strings.TrimSpace(strings.Join(h.finals, " ")),
		Confidence: h.conf,
	}
}

// DeepgramTranscriber sends each phrase through a short-lived Deepgram
// streaming session. It needs network access, so it is the fallback
// backend rather than the default.
type DeepgramTranscriber struct {
	apiKey     string
	model      string
	language   string
	sampleRate int
	timeout    time.Duration
}

// NewDeepgramTranscriber creates a Deepgram-backed transcriber.
func NewDeepgramTranscriber(apiKey, model, language string, sampleRate int) (*DeepgramTranscriber, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("deepgram api key is empty")
	}
	if model == "" {
		model = "nova-2"
	}
	return &DeepgramTranscriber{
		apiKey:     apiKey,
		model:      model,
		language:   language,
		sampleRate: sampleRate,
		timeout:    15 * time.Second,
	}, nil
}

// Transcribe streams one phrase and waits for the session to finish.
func (d *DeepgramTranscriber) Transcribe(ctx context.Context, samples []float32) (Transcript, error) {
	if len(samples) == 0 {
		return Transcript{}, ErrNoAudio
	}

	start := time.Now()
	sessionCtx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	tOptions := &interfaces.LiveTranscriptionOptions{
		Model:      d.model,
		Language:   d.language,
		Punctuate:  true,
		Encoding:   "linear16",
		Channels:   1,
		SampleRate: d.sampleRate,
	}

	handler := newPhraseCallbackHandler()
	client, err := listenClient.NewWSUsingCallback(sessionCtx, d.apiKey, nil, tOptions, handler)
	if err != nil {
		observability.RecordSTT(time.Since(start), false)
		return Transcript{}, fmt.Errorf("creating deepgram session: %w", err)
	}

	pcm := audio.Int16ToBytes(audio.Float32ToInt16(samples))
	if _, err := client.Write(pcm); err != nil {
		client.Finish()
		observability.RecordSTT(time.Since(start), false)
		return Transcript{}, fmt.Errorf("sending audio to deepgram: %w", err)
	}
	client.Finish()

	select {
	case <-handler.done:
	case <-sessionCtx.Done():
		observability.RecordSTT(time.Since(start), false)
		return Transcript{}, fmt.Errorf("deepgram session timed out: %w", sessionCtx.Err())
	}
	if handler.err != nil {
		observability.RecordSTT(time.Since(start), false)
		return Transcript{}, handler.err
	}

	result := handler.result()
	observability.RecordSTT(time.Since(start), true)
	log.Debug().
		Str("text", result.Text).
		Float64("confidence", result.Confidence).
		Dur("latency", time.Since(start)).
		Msg("Deepgram transcription complete")
	return result, nil
}

// Close is a no-op; sessions are per phrase.
func (d *DeepgramTranscriber) Close() error {
	return nil
}
