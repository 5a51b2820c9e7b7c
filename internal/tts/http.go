package tts

import (
	"context"
	"fmt"
	"time"

	"github.com/example/voiceapi/internal/audio"
	"github.com/example/voiceapi/internal/modelclient"
)

// Model server endpoints.
const (
	apiGenerate = "/generate"
	apiHealth   = "/health"
)

// HTTPModel calls a TTS model server that answers POST /generate with WAV.
type HTTPModel struct {
	client *modelclient.HTTPClient
}

type generatePayload struct {
	Text            string  `json:"text"`
	Exaggeration    float64 `json:"exaggeration"`
	CFGWeight       float64 `json:"cfg_weight"`
	Language        string  `json:"language,omitempty"`
	AudioPromptPath string  `json:"audio_prompt_path,omitempty"`
}

func NewHTTPModel(baseURL string, timeout time.Duration) *HTTPModel {
	return &HTTPModel{client: modelclient.NewHTTPClient(baseURL, timeout)}
}

func (m *HTTPModel) Name() string { return "tts-http" }

func (m *HTTPModel) Load(ctx context.Context) error {
	return m.client.Ping(ctx, apiHealth)
}

func (m *HTTPModel) Generate(ctx context.Context, req Request) (audio.Clip, error) {
	data, err := m.client.PostJSON(ctx, apiGenerate, generatePayload{
		Text:            req.Text,
		Exaggeration:    req.Exaggeration,
		CFGWeight:       req.CFGWeight,
		Language:        req.Language,
		AudioPromptPath: req.AudioPromptPath,
	}, modelclient.ContentTypeWAV)
	if err != nil {
		return audio.Clip{}, fmt.Errorf("tts generate: %w", err)
	}

	clip, err := audio.DecodeWAV(data)
	if err != nil {
		return audio.Clip{}, modelclient.BadOutput("tts decode", err)
	}
	return clip, nil
}
