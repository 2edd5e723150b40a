package audio

import (
	"math"
	"time"
)

// Frame is one fixed-size window of mono PCM samples, normalized to
// [-1.0, 1.0].
type Frame struct {
	Samples []float32
}

// RMS returns the root mean square amplitude of the frame.
func (f Frame) RMS() float64 {
	if len(f.Samples) == 0 {
		return 0
	}
	var sum float64
	for _, s := range f.Samples {
		sum += float64(s) * float64(s)
	}
	return math.Sqrt(sum / float64(len(f.Samples)))
}

// EnergyDB returns the frame energy in dBFS. A silent frame reports a
// floor of -120 dB rather than negative infinity.
func (f Frame) EnergyDB() float64 {
	rms := f.RMS()
	if rms <= 1e-6 {
		return -120.0
	}
	return 20 * math.Log10(rms)
}

// DBToAmplitude converts a dBFS threshold to a linear RMS amplitude.
func DBToAmplitude(db float64) float64 {
	return math.Pow(10, db/20)
}

// FrameDuration returns the wall-clock span of n frames of frameMs each.
func FrameDuration(n, frameMs int) time.Duration {
	return time.Duration(n*frameMs) * time.Millisecond
}
