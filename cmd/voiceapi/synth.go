package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/example/voiceapi/internal/audio"
	"github.com/example/voiceapi/internal/config"
	"github.com/example/voiceapi/internal/voice"
	"github.com/spf13/cobra"
)

type synthOptions struct {
	Text         string
	Out          string
	Profile      string
	Exaggeration float64
	CFGWeight    float64
	Language     string
	AudioPrompt  string
	Enhance      bool
}

func newSynthCmd() *cobra.Command {
	opts := synthOptions{}

	cmd := &cobra.Command{
		Use:   "synth",
		Short: "Synthesize text to WAV with the configured TTS backend",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := requireConfig()
			if err != nil {
				return err
			}

			opts.Text, err = readSynthText(opts.Text, os.Stdin)
			if err != nil {
				return err
			}

			wav, err := runSynth(cmd.Context(), ttsOnly(cfg), opts)
			if err != nil {
				return err
			}

			return writeSynthOutput(opts.Out, wav, os.Stdout)
		},
	}

	defaults := voice.NewSynthesisRequest("")
	cmd.Flags().StringVar(&opts.Text, "text", "", "Text to synthesize (if empty, read from stdin)")
	cmd.Flags().StringVar(&opts.Out, "out", "out.wav", "Output WAV path ('-' for stdout)")
	cmd.Flags().StringVar(&opts.Profile, "profile", "", "Voice profile (overrides exaggeration and cfg weight)")
	cmd.Flags().Float64Var(&opts.Exaggeration, "exaggeration", defaults.Exaggeration, "Emotion exaggeration")
	cmd.Flags().Float64Var(&opts.CFGWeight, "cfg-weight", defaults.CFGWeight, "Classifier-free guidance weight")
	cmd.Flags().StringVar(&opts.Language, "language", defaults.Language, "Language code")
	cmd.Flags().StringVar(&opts.AudioPrompt, "audio-prompt", "", "Reference WAV whose voice the model should clone")
	cmd.Flags().BoolVar(&opts.Enhance, "enhance", false, "Apply DC removal, noise gate, normalization and fades")

	return cmd
}

// ttsOnly disables the conversion and transcription backends so one-shot
// commands do not check them.
func ttsOnly(cfg config.Config) config.Config {
	cfg.VC.Backend = config.BackendNone
	cfg.Transcribe.Backend = config.BackendNone
	return cfg
}

func runSynth(ctx context.Context, cfg config.Config, opts synthOptions) ([]byte, error) {
	a, err := buildApp(ctx, cfg, nil)
	if err != nil {
		return nil, err
	}
	defer func() { _ = a.Close() }()

	if err := a.svc.LoadModels(ctx); err != nil {
		return nil, err
	}

	prompt, err := audioPromptPath(opts.AudioPrompt)
	if err != nil {
		return nil, err
	}

	clip, err := a.svc.Generate(ctx, voice.SynthesisRequest{
		Text:            opts.Text,
		Exaggeration:    opts.Exaggeration,
		CFGWeight:       opts.CFGWeight,
		VoiceProfile:    opts.Profile,
		Language:        opts.Language,
		AudioPromptPath: prompt,
	})
	if err != nil {
		if errors.Is(err, voice.ErrModelNotLoaded) {
			return nil, fmt.Errorf("%w (run `voiceapi doctor` to check the backend)", err)
		}
		return nil, err
	}

	if opts.Enhance {
		clip = audio.Enhance(clip)
	}

	return audio.EncodeWAV(clip)
}

// audioPromptPath resolves the reference recording to an absolute path, since
// CLI and model server backends run with their own working directory.
func audioPromptPath(p string) (string, error) {
	if p == "" {
		return "", nil
	}
	abs, err := filepath.Abs(p)
	if err != nil {
		return "", err
	}
	if _, err := os.Stat(abs); err != nil {
		return "", fmt.Errorf("audio prompt: %w", err)
	}
	return abs, nil
}

func writeSynthOutput(outPath string, wavData []byte, stdout io.Writer) error {
	if outPath == "-" {
		if stdout == nil {
			return errors.New("stdout writer is nil")
		}
		_, err := stdout.Write(wavData)
		return err
	}
	return os.WriteFile(outPath, wavData, 0o644)
}

func readSynthText(text string, stdin io.Reader) (string, error) {
	if strings.TrimSpace(text) != "" {
		return text, nil
	}

	b, err := io.ReadAll(stdin)
	if err != nil {
		return "", fmt.Errorf("read stdin: %w", err)
	}
	input := strings.TrimSpace(string(b))
	if input == "" {
		return "", errors.New("either provide --text or pipe text on stdin")
	}
	return input, nil
}
