package audio

import (
	"fmt"
	"strings"
	"sync"

	"github.com/gordonklaus/portaudio"
	"github.com/rs/zerolog/log"

	"github.com/TUF-SCAR/Jarvis-Local/internal/observability"
)

// Capture reads mono PCM from an input device and pushes fixed-size
// frames onto a FrameQueue. A device fault after Start is reported on
// Faults and terminates the stream.
type Capture struct {
	sampleRate   int
	frameSamples int
	deviceHint   string

	stream *portaudio.Stream
	queue  *FrameQueue
	faults chan error

	mu      sync.Mutex
	started bool
	stopped bool
}

// NewCapture prepares a capture source. deviceHint selects an input
// device by case-insensitive name substring; empty means the system
// default.
func NewCapture(sampleRate, frameSamples int, deviceHint string, queue *FrameQueue) *Capture {
	return &Capture{
		sampleRate:   sampleRate,
		frameSamples: frameSamples,
		deviceHint:   deviceHint,
		queue:        queue,
		faults:       make(chan error, 1),
	}
}

// Faults delivers at most one fatal device error.
func (c *Capture) Faults() <-chan error {
	return c.faults
}

// Start initializes the audio host and opens the input stream.
func (c *Capture) Start() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.started {
		return fmt.Errorf("capture already started")
	}

	if err := portaudio.Initialize(); err != nil {
		return fmt.Errorf("initializing audio host: %w", err)
	}

	dev, err := c.pickDevice()
	if err != nil {
		portaudio.Terminate()
		return err
	}

	buf := make([]float32, c.frameSamples)
	params := portaudio.LowLatencyParameters(dev, nil)
	params.Input.Channels = 1
	params.SampleRate = float64(c.sampleRate)
	params.FramesPerBuffer = c.frameSamples

	stream, err := portaudio.OpenStream(params, buf)
	if err != nil {
		portaudio.Terminate()
		return fmt.Errorf("opening input stream: %w", err)
	}
	if err := stream.Start(); err != nil {
		stream.Close()
		portaudio.Terminate()
		return fmt.Errorf("starting input stream: %w", err)
	}

	c.stream = stream
	c.started = true
	if dev != nil {
		log.Info().
			Str("device", dev.Name).
			Int("sample_rate", c.sampleRate).
			Int("frame_samples", c.frameSamples).
			Msg("Audio capture started")
	}

	go c.readLoop(buf)
	return nil
}

// pickDevice resolves deviceHint against the host's input devices.
func (c *Capture) pickDevice() (*portaudio.DeviceInfo, error) {
	if c.deviceHint == "" {
		dev, err := portaudio.DefaultInputDevice()
		if err != nil {
			return nil, fmt.Errorf("no default input device: %w", err)
		}
		return dev, nil
	}

	devices, err := portaudio.Devices()
	if err != nil {
		return nil, fmt.Errorf("listing audio devices: %w", err)
	}
	hint := strings.ToLower(c.deviceHint)
	for _, dev := range devices {
		if dev.MaxInputChannels < 1 {
			continue
		}
		if strings.Contains(strings.ToLower(dev.Name), hint) {
			return dev, nil
		}
	}
	return nil, fmt.Errorf("no input device matching %q", c.deviceHint)
}

// readLoop pulls frames from the device until Stop or a device fault.
func (c *Capture) readLoop(buf []float32) {
	for {
		c.mu.Lock()
		stopped := c.stopped
		c.mu.Unlock()
		if stopped {
			return
		}

		if err := c.stream.Read(); err != nil {
			c.mu.Lock()
			stopped = c.stopped
			c.mu.Unlock()
			if stopped {
				return
			}
			observability.RecordError("device_fault", "capture")
			select {
			case c.faults <- fmt.Errorf("reading input stream: %w", err):
			default:
			}
			// Unblock the consumer so the fault is noticed.
			c.queue.Close()
			return
		}

		frame := Frame{Samples: make([]float32, len(buf))}
		copy(frame.Samples, buf)
		before := c.queue.Dropped()
		c.queue.Push(frame)
		if c.queue.Dropped() > before {
			observability.RecordFrameDropped()
		}
		observability.RecordFramesCaptured(1)
	}
}

// Stop closes the stream and releases the audio host.
func (c *Capture) Stop() {
	c.mu.Lock()
	if !c.started || c.stopped {
		c.mu.Unlock()
		return
	}
	c.stopped = true
	stream := c.stream
	c.mu.Unlock()

	if stream != nil {
		stream.Stop()
		stream.Close()
	}
	portaudio.Terminate()
	c.queue.Close()
	log.Info().Msg("Audio capture stopped")
}
