package transcribe

import (
	"context"
	"fmt"
	"time"

	"github.com/example/voiceapi/internal/modelclient"
)

// Form field names of the whisper.cpp server.
const (
	formFieldFile           = "file"
	formFieldLanguage       = "language"
	formFieldResponseFormat = "response_format"
)

// WhisperModel calls a whisper.cpp server's /inference endpoint.
type WhisperModel struct {
	client *modelclient.HTTPClient
}

func NewWhisperModel(baseURL string, timeout time.Duration) *WhisperModel {
	return &WhisperModel{client: modelclient.NewHTTPClient(baseURL, timeout)}
}

func (m *WhisperModel) Name() string { return "whisper" }

// Load requests the server root, which whisper.cpp serves once the model is in memory.
func (m *WhisperModel) Load(ctx context.Context) error {
	return m.client.Ping(ctx, "/")
}

func (m *WhisperModel) Transcribe(ctx context.Context, path, language string) (Result, error) {
	data, err := m.client.PostMultipart(ctx, "/inference",
		[]modelclient.FormFile{{Field: formFieldFile, Path: path}},
		map[string]string{
			formFieldResponseFormat: "verbose_json",
			formFieldLanguage:       language,
		})
	if err != nil {
		return Result{}, fmt.Errorf("whisper inference: %w", err)
	}
	return parseVerbose(data)
}
