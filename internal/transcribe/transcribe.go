// Package transcribe wraps speech-to-text backends: a whisper.cpp server or
// the OpenAI transcription API.
package transcribe

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/example/voiceapi/internal/config"
)

// Segment is a timed span of the transcript.
type Segment struct {
	ID    int     `json:"id"`
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Text  string  `json:"text"`
}

// Result is a full transcript.
type Result struct {
	Text     string    `json:"text"`
	Language string    `json:"language"`
	Segments []Segment `json:"segments"`
}

// Model is a loaded or loadable transcription backend. An empty language
// asks the backend to detect it.
type Model interface {
	Name() string
	Load(ctx context.Context) error
	Transcribe(ctx context.Context, path, language string) (Result, error)
}

// NewFromConfig builds the configured backend. It returns nil for the "none"
// backend.
func NewFromConfig(cfg config.TranscribeConfig) (Model, error) {
	switch cfg.Backend {
	case config.BackendWhisper:
		return NewWhisperModel(cfg.URL, cfg.Timeout), nil
	case config.BackendOpenAI:
		return NewOpenAIModel(cfg.APIKey, cfg.Model,
			WithBaseURL(cfg.URL),
			WithTimeout(cfg.Timeout),
			WithMaxRetries(cfg.MaxRetries),
		), nil
	case config.BackendNone:
		return nil, nil
	default:
		return nil, fmt.Errorf("unsupported transcribe backend %q", cfg.Backend)
	}
}

// parseVerbose decodes a verbose_json transcript as returned by both
// whisper.cpp and the OpenAI API.
func parseVerbose(data []byte) (Result, error) {
	var res Result
	if err := json.Unmarshal(data, &res); err != nil {
		return Result{}, fmt.Errorf("decode transcript: %w", err)
	}
	res.Text = strings.TrimSpace(res.Text)
	if res.Segments == nil {
		res.Segments = []Segment{}
	}
	return res, nil
}
