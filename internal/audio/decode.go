package audio

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/cwbudde/wav"
)

var (
	// ErrInvalidWAV is returned for input that is not a readable WAV file.
	ErrInvalidWAV = errors.New("invalid WAV file")
	// ErrFormatMismatch is returned when a WAV file cannot be represented as a Clip.
	ErrFormatMismatch = errors.New("WAV format mismatch")
)

// DecodeWAV decodes WAV bytes of any rate and channel count into a mono Clip.
// Multichannel input is downmixed by averaging channels.
func DecodeWAV(data []byte) (Clip, error) {
	if len(data) == 0 {
		return Clip{}, fmt.Errorf("%w: empty input", ErrInvalidWAV)
	}

	dec := wav.NewDecoder(bytes.NewReader(data))
	if !dec.IsValidFile() {
		return Clip{}, ErrInvalidWAV
	}

	rate := int(dec.SampleRate)
	if rate <= 0 {
		return Clip{}, fmt.Errorf("%w: sample rate %d", ErrFormatMismatch, rate)
	}
	channels := int(dec.NumChans)
	if channels < 1 {
		return Clip{}, fmt.Errorf("%w: channels %d", ErrFormatMismatch, channels)
	}

	buf, err := dec.FullPCMBuffer()
	if err != nil {
		return Clip{}, fmt.Errorf("reading PCM data: %w", err)
	}

	return Clip{Samples: downmix(buf.Data, channels), SampleRate: rate}, nil
}

func downmix(interleaved []float32, channels int) []float32 {
	if channels == 1 {
		return interleaved
	}
	frames := len(interleaved) / channels
	out := make([]float32, frames)
	for i := range frames {
		var sum float32
		for c := range channels {
			sum += interleaved[i*channels+c]
		}
		out[i] = sum / float32(channels)
	}
	return out
}
