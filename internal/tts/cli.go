package tts

import (
	"context"
	"fmt"
	"io"
	"strconv"

	"github.com/example/voiceapi/internal/audio"
	"github.com/example/voiceapi/internal/modelclient"
)

// CLIModel runs a TTS executable that reads text on stdin and writes WAV to
// stdout.
type CLIModel struct {
	cli modelclient.CLI
}

func NewCLIModel(executablePath string, stderr io.Writer) *CLIModel {
	return &CLIModel{cli: modelclient.CLI{Path: executablePath, Stderr: stderr}}
}

func (m *CLIModel) Name() string { return "tts-cli" }

func (m *CLIModel) Load(context.Context) error {
	return m.cli.Check()
}

func (m *CLIModel) Generate(ctx context.Context, req Request) (audio.Clip, error) {
	data, err := m.cli.Run(ctx, cliArgs(req), req.Text)
	if err != nil {
		return audio.Clip{}, fmt.Errorf("tts generate: %w", err)
	}

	clip, err := audio.DecodeWAV(data)
	if err != nil {
		return audio.Clip{}, modelclient.BadOutput("tts decode", err)
	}
	return clip, nil
}

func cliArgs(req Request) []string {
	args := []string{
		"--exaggeration", strconv.FormatFloat(req.Exaggeration, 'f', -1, 64),
		"--cfg-weight", strconv.FormatFloat(req.CFGWeight, 'f', -1, 64),
	}
	if req.Language != "" {
		args = append(args, "--language", req.Language)
	}
	if req.AudioPromptPath != "" {
		args = append(args, "--audio-prompt", req.AudioPromptPath)
	}
	return args
}
