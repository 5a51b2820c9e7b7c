// Package tts wraps the text-to-speech models the service forwards to.
package tts

import (
	"context"
	"fmt"
	"io"

	"github.com/example/voiceapi/internal/audio"
	"github.com/example/voiceapi/internal/config"
)

// Request carries the generation parameters forwarded to a model.
type Request struct {
	Text         string
	Exaggeration float64
	CFGWeight    float64
	Language     string
	// AudioPromptPath optionally points at a reference recording for voice cloning.
	AudioPromptPath string
}

// Model is a loaded or loadable TTS backend.
type Model interface {
	Name() string
	// Load prepares the backend and reports whether it is usable.
	Load(ctx context.Context) error
	Generate(ctx context.Context, req Request) (audio.Clip, error)
}

// NewFromConfig builds the configured backend. It returns nil for the "none"
// backend.
func NewFromConfig(cfg config.TTSConfig, logWriter io.Writer) (Model, error) {
	switch cfg.Backend {
	case config.BackendHTTP:
		return NewHTTPModel(cfg.URL, cfg.Timeout), nil
	case config.BackendCLI:
		return NewCLIModel(cfg.CLIPath, logWriter), nil
	case config.BackendPocketTTS:
		return NewPocketModel(PocketOptions{
			ExecutablePath: cfg.CLIPath,
			Voice:          cfg.Voice,
			Concurrency:    cfg.Concurrency,
			LogWriter:      logWriter,
		}), nil
	case config.BackendNone:
		return nil, nil
	default:
		return nil, fmt.Errorf("unsupported tts backend %q", cfg.Backend)
	}
}
