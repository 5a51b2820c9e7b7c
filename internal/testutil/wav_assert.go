package testutil

import (
	"encoding/binary"
	"errors"
	"fmt"
	"testing"
)

// streamingSize marks a chunk whose length was unknown when written.
const streamingSize = 0xFFFFFFFF

// wavInfo is the subset of a WAV header the gateway cares about.
type wavInfo struct {
	format, channels, bits uint16
	rate                   uint32
	samples                int
}

func parseWAV(data []byte) (wavInfo, error) {
	var info wavInfo
	if len(data) < 12 || string(data[0:4]) != "RIFF" || string(data[8:12]) != "WAVE" {
		return info, errors.New("not a RIFF/WAVE file")
	}

	seenFmt := false
	for off := 12; off+8 <= len(data); {
		id := string(data[off : off+4])
		size := binary.LittleEndian.Uint32(data[off+4 : off+8])
		body := off + 8

		switch id {
		case "fmt ":
			if size < 16 || body+16 > len(data) {
				return info, errors.New("short fmt chunk")
			}
			info.format = binary.LittleEndian.Uint16(data[body:])
			info.channels = binary.LittleEndian.Uint16(data[body+2:])
			info.rate = binary.LittleEndian.Uint32(data[body+4:])
			info.bits = binary.LittleEndian.Uint16(data[body+14:])
			seenFmt = true
		case "data":
			if !seenFmt {
				return info, errors.New("data chunk before fmt chunk")
			}
			n := int(size)
			if size == streamingSize || body+n > len(data) {
				n = len(data) - body
			}
			info.samples = n / 2
			return info, nil
		}

		off = body + int(size) + int(size%2)
	}
	return info, errors.New("data chunk not found")
}

// AssertValidWAV checks that data is a non-empty mono 16-bit PCM WAV at
// sampleRate. Streaming headers are accepted.
func AssertValidWAV(tb testing.TB, data []byte, sampleRate int) {
	tb.Helper()

	info, err := parseWAV(data)
	if err != nil {
		tb.Fatalf("WAV: %v", err)
	}

	var problems []string
	check := func(ok bool, format string, args ...any) {
		if !ok {
			problems = append(problems, fmt.Sprintf(format, args...))
		}
	}
	check(info.format == 1, "format %d, want PCM", info.format)
	check(info.channels == 1, "%d channels, want mono", info.channels)
	check(info.bits == 16, "%d-bit, want 16-bit", info.bits)
	check(int(info.rate) == sampleRate, "rate %d, want %d", info.rate, sampleRate)
	check(info.samples > 0, "no samples")

	if len(problems) > 0 {
		tb.Fatalf("WAV: %v", problems)
	}
}

// AssertWAVDurationApprox checks that the WAV's duration lies in [minSec, maxSec].
func AssertWAVDurationApprox(tb testing.TB, data []byte, sampleRate int, minSec, maxSec float64) {
	tb.Helper()

	info, err := parseWAV(data)
	if err != nil {
		tb.Fatalf("WAV: %v", err)
	}

	d := float64(info.samples) / float64(sampleRate)
	if d < minSec || d > maxSec {
		tb.Fatalf("WAV duration %.3fs outside [%.3fs, %.3fs]", d, minSec, maxSec)
	}
}
