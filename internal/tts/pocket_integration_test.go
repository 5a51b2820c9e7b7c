package tts

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/example/voiceapi/internal/testutil"
)

func TestPocketModel_RealBinary(t *testing.T) {
	testutil.RequirePocketTTS(t)
	if testing.Short() {
		t.Skip("skipping pocket-tts synthesis in short mode")
	}

	exe := os.Getenv("VOICEAPI_TTS_CLI_PATH")
	if exe == "" {
		exe = "pocket-tts"
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	m := NewPocketModel(PocketOptions{ExecutablePath: exe})
	if err := m.Load(ctx); err != nil {
		t.Fatalf("Load: %v", err)
	}

	clip, err := m.Generate(ctx, Request{Text: "Integration test."})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if clip.Duration() < 100*time.Millisecond {
		t.Errorf("suspiciously short clip: %v", clip.Duration())
	}
}
