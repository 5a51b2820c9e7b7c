package audio

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

// ErrRateChange is returned when a stream is handed a clip whose sample rate
// differs from the rate its header announced.
var ErrRateChange = errors.New("clip sample rate differs from stream rate")

// unknownLength marks the RIFF and data sizes of an open-ended stream.
const unknownLength = 0xFFFFFFFF

// Stream writes a sequence of clips as a single mono 16-bit WAV whose length
// is not known up front. The header is written with the first clip.
type Stream struct {
	w          io.Writer
	sampleRate int
	samples    int64
}

func NewStream(w io.Writer) *Stream {
	return &Stream{w: w}
}

// Started reports whether the header has been written.
func (s *Stream) Started() bool { return s.sampleRate != 0 }

func (s *Stream) SampleRate() int { return s.sampleRate }

// Samples is the number of samples written so far.
func (s *Stream) Samples() int64 { return s.samples }

// WriteClip appends c. The first clip fixes the stream's sample rate.
func (s *Stream) WriteClip(c Clip) error {
	if c.SampleRate <= 0 {
		return fmt.Errorf("invalid sample rate %d", c.SampleRate)
	}
	if !s.Started() {
		if err := writeStreamHeader(s.w, c.SampleRate); err != nil {
			return fmt.Errorf("write wav header: %w", err)
		}
		s.sampleRate = c.SampleRate
	} else if c.SampleRate != s.sampleRate {
		return fmt.Errorf("%w: %d != %d", ErrRateChange, c.SampleRate, s.sampleRate)
	}

	if _, err := s.w.Write(pcm16(c.Samples)); err != nil {
		return fmt.Errorf("write pcm: %w", err)
	}
	s.samples += int64(len(c.Samples))
	return nil
}

func writeStreamHeader(w io.Writer, sampleRate int) error {
	const blockAlign = OutputChannels * OutputBitDepth / 8

	var hdr [44]byte
	copy(hdr[0:4], "RIFF")
	binary.LittleEndian.PutUint32(hdr[4:8], unknownLength)
	copy(hdr[8:12], "WAVE")
	copy(hdr[12:16], "fmt ")
	binary.LittleEndian.PutUint32(hdr[16:20], 16)
	binary.LittleEndian.PutUint16(hdr[20:22], 1) // PCM
	binary.LittleEndian.PutUint16(hdr[22:24], OutputChannels)
	binary.LittleEndian.PutUint32(hdr[24:28], uint32(sampleRate))
	binary.LittleEndian.PutUint32(hdr[28:32], uint32(sampleRate*blockAlign))
	binary.LittleEndian.PutUint16(hdr[32:34], blockAlign)
	binary.LittleEndian.PutUint16(hdr[34:36], OutputBitDepth)
	copy(hdr[36:40], "data")
	binary.LittleEndian.PutUint32(hdr[40:44], unknownLength)

	_, err := w.Write(hdr[:])
	return err
}

func pcm16(samples []float32) []byte {
	buf := make([]byte, 2*len(samples))
	for i, s := range clamp(samples) {
		binary.LittleEndian.PutUint16(buf[2*i:], uint16(int16(s*32767)))
	}
	return buf
}
