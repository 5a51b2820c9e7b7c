package tts

import (
	"context"
	"fmt"
	"io"

	pockettts "github.com/MeKo-Christian/go-call-pocket-tts"

	"github.com/example/voiceapi/internal/audio"
	"github.com/example/voiceapi/internal/modelclient"
)

// PocketOptions configures the pocket-tts backend.
type PocketOptions struct {
	ExecutablePath string
	Voice          string
	Concurrency    int
	LogWriter      io.Writer
}

// PocketModel synthesizes through the pocket-tts CLI. Pocket TTS has no
// exaggeration or CFG controls, so those request fields are not forwarded.
type PocketModel struct {
	opts   PocketOptions
	client *pockettts.Client
}

func NewPocketModel(opts PocketOptions) *PocketModel {
	return &PocketModel{
		opts: opts,
		client: pockettts.NewClient(pockettts.Options{
			Voice:          opts.Voice,
			Quiet:          true,
			ExecutablePath: opts.ExecutablePath,
			LogWriter:      opts.LogWriter,
			Concurrency:    opts.Concurrency,
		}),
	}
}

func (m *PocketModel) Name() string { return "tts-pockettts" }

func (m *PocketModel) Load(context.Context) error {
	return pockettts.Preflight(m.opts.ExecutablePath)
}

func (m *PocketModel) Generate(ctx context.Context, req Request) (audio.Clip, error) {
	res, err := m.client.Generate(ctx, req.Text)
	if err != nil {
		return audio.Clip{}, fmt.Errorf("pocket-tts generate: %w", err)
	}

	clip, err := audio.DecodeWAV(res.Data)
	if err != nil {
		return audio.Clip{}, modelclient.BadOutput("pocket-tts decode", err)
	}
	return clip, nil
}
