// Package vc wraps the voice conversion models: re-voice a source recording
// with the timbre of a target recording.
package vc

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/example/voiceapi/internal/audio"
	"github.com/example/voiceapi/internal/config"
	"github.com/example/voiceapi/internal/modelclient"
)

// Model is a loaded or loadable voice conversion backend.
type Model interface {
	Name() string
	Load(ctx context.Context) error
	Convert(ctx context.Context, sourcePath, targetPath string) (audio.Clip, error)
}

// NewFromConfig builds the configured backend. It returns nil for the "none"
// backend.
func NewFromConfig(cfg config.VCConfig, logWriter io.Writer) (Model, error) {
	switch cfg.Backend {
	case config.BackendHTTP:
		return NewHTTPModel(cfg.URL, cfg.Timeout), nil
	case config.BackendCLI:
		return NewCLIModel(cfg.CLIPath, logWriter), nil
	case config.BackendNone:
		return nil, nil
	default:
		return nil, fmt.Errorf("unsupported vc backend %q", cfg.Backend)
	}
}

// HTTPModel posts both recordings to a model server's /convert endpoint.
type HTTPModel struct {
	client *modelclient.HTTPClient
}

func NewHTTPModel(baseURL string, timeout time.Duration) *HTTPModel {
	return &HTTPModel{client: modelclient.NewHTTPClient(baseURL, timeout)}
}

func (m *HTTPModel) Name() string { return "vc-http" }

func (m *HTTPModel) Load(ctx context.Context) error {
	return m.client.Ping(ctx, "/health")
}

func (m *HTTPModel) Convert(ctx context.Context, sourcePath, targetPath string) (audio.Clip, error) {
	data, err := m.client.PostMultipart(ctx, "/convert", []modelclient.FormFile{
		{Field: "audio", Path: sourcePath},
		{Field: "target_voice", Path: targetPath},
	}, nil)
	if err != nil {
		return audio.Clip{}, fmt.Errorf("vc convert: %w", err)
	}
	return decode(data)
}

// CLIModel runs a conversion executable that writes WAV to stdout.
type CLIModel struct {
	cli modelclient.CLI
}

func NewCLIModel(executablePath string, stderr io.Writer) *CLIModel {
	return &CLIModel{cli: modelclient.CLI{Path: executablePath, Stderr: stderr}}
}

func (m *CLIModel) Name() string { return "vc-cli" }

func (m *CLIModel) Load(context.Context) error {
	return m.cli.Check()
}

func (m *CLIModel) Convert(ctx context.Context, sourcePath, targetPath string) (audio.Clip, error) {
	data, err := m.cli.Run(ctx, []string{"--audio", sourcePath, "--target-voice", targetPath}, "")
	if err != nil {
		return audio.Clip{}, fmt.Errorf("vc convert: %w", err)
	}
	return decode(data)
}

func decode(data []byte) (audio.Clip, error) {
	clip, err := audio.DecodeWAV(data)
	if err != nil {
		return audio.Clip{}, modelclient.BadOutput("vc decode", err)
	}
	return clip, nil
}
