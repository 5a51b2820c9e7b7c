// Package audio holds the PCM clip type passed between model backends and the
// HTTP layer, plus WAV coding, DSP and feature extraction over it.
package audio

import (
	"errors"
	"time"
)

// DefaultSampleRate is the output rate of the speech models behind the service.
const DefaultSampleRate = 24000

// ErrEmptyClip is returned by operations that need at least one sample.
var ErrEmptyClip = errors.New("audio clip is empty")

// Clip is mono float32 PCM in [-1, 1] at SampleRate Hz.
type Clip struct {
	Samples    []float32
	SampleRate int
}

// Duration returns the playback length of the clip.
func (c Clip) Duration() time.Duration {
	if c.SampleRate <= 0 {
		return 0
	}
	return time.Duration(int64(len(c.Samples)) * int64(time.Second) / int64(c.SampleRate))
}
