package feedback

import (
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/faiface/beep"
	"github.com/faiface/beep/mp3"
	"github.com/faiface/beep/speaker"
	"github.com/rs/zerolog/log"
)

// Chime plays a short mp3 cue when a phrase has been captured, so the
// user knows the daemon heard them before transcription finishes.
type Chime struct {
	buffer *beep.Buffer
}

// speakerInit guards the global speaker, which must only be
// initialized once per process.
var speakerInit sync.Once

// NewChime loads the cue file. An empty path disables the chime; Play
// becomes a no-op.
func NewChime(path string) (*Chime, error) {
	if path == "" {
		return &Chime{}, nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening chime file: %w", err)
	}
	defer f.Close()

	streamer, format, err := mp3.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("decoding chime file: %w", err)
	}
	defer streamer.Close()

	buffer := beep.NewBuffer(format)
	buffer.Append(streamer)

	var initErr error
	speakerInit.Do(func() {
		initErr = speaker.Init(format.SampleRate, format.SampleRate.N(time.Second/10))
	})
	if initErr != nil {
		return nil, fmt.Errorf("initializing speaker: %w", initErr)
	}
	return &Chime{buffer: buffer}, nil
}

// Play starts the cue without blocking the pipeline.
func (c *Chime) Play() {
	if c.buffer == nil {
		return
	}
	streamer := c.buffer.Streamer(0, c.buffer.Len())
	speaker.Play(beep.Seq(streamer, beep.Callback(func() {
		log.Trace().Msg("Chime finished")
	})))
}
