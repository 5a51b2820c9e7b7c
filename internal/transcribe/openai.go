package transcribe

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"time"

	oai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// OpenAIModel transcribes through the OpenAI audio API or a compatible server.
type OpenAIModel struct {
	client  oai.Client
	apiKey  string
	baseURL string
	model   string
}

type openAIConfig struct {
	baseURL string
	timeout time.Duration
	retries *int
}

// OpenAIOption is a functional option for OpenAIModel.
type OpenAIOption func(*openAIConfig)

// WithBaseURL points the client at an OpenAI-compatible server.
func WithBaseURL(url string) OpenAIOption {
	return func(c *openAIConfig) {
		c.baseURL = url
	}
}

// WithTimeout sets a per-request HTTP timeout.
func WithTimeout(d time.Duration) OpenAIOption {
	return func(c *openAIConfig) {
		c.timeout = d
	}
}

// WithMaxRetries overrides the client's retry count.
func WithMaxRetries(n int) OpenAIOption {
	return func(c *openAIConfig) {
		c.retries = &n
	}
}

// NewOpenAIModel builds the client. An empty model selects whisper-1.
func NewOpenAIModel(apiKey, model string, opts ...OpenAIOption) *OpenAIModel {
	if model == "" {
		model = string(oai.AudioModelWhisper1)
	}

	cfg := &openAIConfig{}
	for _, o := range opts {
		o(cfg)
	}

	reqOpts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if cfg.baseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(cfg.baseURL))
	}
	if cfg.timeout > 0 {
		reqOpts = append(reqOpts, option.WithHTTPClient(&http.Client{Timeout: cfg.timeout}))
	}
	if cfg.retries != nil {
		reqOpts = append(reqOpts, option.WithMaxRetries(*cfg.retries))
	}

	return &OpenAIModel{
		client:  oai.NewClient(reqOpts...),
		apiKey:  apiKey,
		baseURL: cfg.baseURL,
		model:   model,
	}
}

func (m *OpenAIModel) Name() string { return "openai-transcribe" }

// Load checks the client is configured; the hosted API has no cheap health endpoint.
func (m *OpenAIModel) Load(context.Context) error {
	if m.apiKey == "" && m.baseURL == "" {
		return errors.New("openai transcription: api key is not configured")
	}
	return nil
}

func (m *OpenAIModel) Transcribe(ctx context.Context, path, language string) (Result, error) {
	f, err := os.Open(path)
	if err != nil {
		return Result{}, fmt.Errorf("open audio: %w", err)
	}
	defer f.Close()

	params := oai.AudioTranscriptionNewParams{
		File:           oai.File(f, filepath.Base(path), "audio/wav"),
		Model:          oai.AudioModel(m.model),
		ResponseFormat: oai.AudioResponseFormatVerboseJSON,
	}
	if language != "" {
		params.Language = oai.String(language)
	}

	resp, err := m.client.Audio.Transcriptions.New(ctx, params)
	if err != nil {
		return Result{}, fmt.Errorf("openai transcription: %w", err)
	}

	// Language and segments are only present in the raw verbose payload.
	res, err := parseVerbose([]byte(resp.RawJSON()))
	if err != nil {
		return Result{Text: resp.Text, Segments: []Segment{}}, nil
	}
	if res.Text == "" {
		res.Text = resp.Text
	}
	return res, nil
}
