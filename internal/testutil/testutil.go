// Package testutil provides shared helpers for tests: skip helpers for
// optional external binaries, fake executables, WAV fixtures and a fake model
// server.
//
// Typical usage:
//
//	func TestMyIntegration(t *testing.T) {
//	    testutil.RequirePocketTTS(t)
//	    ...
//	}
package testutil

import (
	"math"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/example/voiceapi/internal/audio"
)

// RequirePocketTTS skips the test if the pocket-tts binary is not found in
// PATH or at the path given by the VOICEAPI_TTS_CLI_PATH environment variable.
func RequirePocketTTS(tb testing.TB) {
	tb.Helper()

	exe := os.Getenv("VOICEAPI_TTS_CLI_PATH")
	if exe == "" {
		exe = "pocket-tts"
	}

	_, err := exec.LookPath(exe)
	if err != nil {
		tb.Skipf("pocket-tts binary not available (%q not in PATH); set VOICEAPI_TTS_CLI_PATH to override", exe)
	}
}

// WriteScript writes an executable shell script with the given body and
// returns its path. Tests using it are skipped on Windows.
func WriteScript(tb testing.TB, name, body string) string {
	tb.Helper()

	if runtime.GOOS == "windows" {
		tb.Skip("shell scripts are not supported on windows")
	}

	path := filepath.Join(tb.TempDir(), name)
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"+body), 0o755); err != nil {
		tb.Fatalf("write script: %v", err)
	}
	return path
}

// ToneClip returns a 220 Hz sine of the given length at sampleRate.
func ToneClip(sampleRate, numSamples int) audio.Clip {
	samples := make([]float32, numSamples)
	for i := range samples {
		samples[i] = 0.3 * float32(math.Sin(2*math.Pi*220*float64(i)/float64(sampleRate)))
	}
	return audio.Clip{Samples: samples, SampleRate: sampleRate}
}

// ToneWAV encodes ToneClip as a 16-bit mono WAV file.
func ToneWAV(tb testing.TB, sampleRate, numSamples int) []byte {
	tb.Helper()

	data, err := encodeTone(sampleRate, numSamples)
	if err != nil {
		tb.Fatalf("encode tone: %v", err)
	}
	return data
}

// WriteToneWAV writes ToneWAV to a temp file and returns its path.
func WriteToneWAV(tb testing.TB, name string, sampleRate, numSamples int) string {
	tb.Helper()

	path := filepath.Join(tb.TempDir(), name)
	if err := os.WriteFile(path, ToneWAV(tb, sampleRate, numSamples), 0o644); err != nil {
		tb.Fatalf("write tone: %v", err)
	}
	return path
}

func encodeTone(sampleRate, numSamples int) ([]byte, error) {
	return audio.EncodeWAV(ToneClip(sampleRate, numSamples))
}
