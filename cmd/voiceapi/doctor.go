package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/example/voiceapi/internal/config"
	"github.com/example/voiceapi/internal/doctor"
	"github.com/example/voiceapi/internal/voice"
	"github.com/nats-io/nats.go"
	"github.com/spf13/cobra"
)

// brokerCheckTimeout bounds the NATS connect and round trip; FlushWithContext
// refuses a context without a deadline.
const brokerCheckTimeout = 5 * time.Second

func newDoctorCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Check model backends, profile storage and directories",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := requireConfig()
			if err != nil {
				return err
			}

			_, _ = fmt.Fprintf(os.Stdout, "backends: tts=%s vc=%s transcribe=%s profiles=%s\n",
				cfg.TTS.Backend, cfg.VC.Backend, cfg.Transcribe.Backend, cfg.Profiles.Backend)

			dcfg, cleanup, err := doctorConfig(cfg)
			if err != nil {
				return err
			}
			defer cleanup()

			result := doctor.Run(cmd.Context(), dcfg, os.Stdout)
			if result.Failed() {
				for _, f := range result.Failures() {
					fmt.Fprintf(os.Stderr, "FAIL: %s\n", f)
				}

				return errors.New("doctor checks failed")
			}

			_, _ = fmt.Fprintln(os.Stdout, "doctor checks passed")

			return nil
		},
	}

	return cmd
}

func doctorConfig(cfg config.Config) (doctor.Config, func(), error) {
	m, err := buildModels(cfg)
	if err != nil {
		return doctor.Config{}, nil, err
	}

	dcfg := doctor.Config{
		Models: []doctor.ModelCheck{
			{Kind: voice.KindTTS},
			{Kind: voice.KindVC},
			{Kind: voice.KindWhisper},
		},
		WritableDirs: []string{cfg.Paths.TempDir},
		DatasetsDir:  cfg.Paths.DatasetsDir,
	}
	// Assigned individually so a nil backend stays a nil interface.
	if m.tts != nil {
		dcfg.Models[0].Model = m.tts
	}
	if m.vc != nil {
		dcfg.Models[1].Model = m.vc
	}
	if m.transcriber != nil {
		dcfg.Models[2].Model = m.transcriber
	}

	closeProfiles := func() error { return nil }
	dcfg.Profiles = func(ctx context.Context) (int, error) {
		store, closeFn, err := openProfileStore(ctx, cfg)
		if err != nil {
			return 0, err
		}
		closeProfiles = closeFn
		all, err := store.List(ctx)
		return len(all), err
	}

	if cfg.Jobs.NATSURL != "" {
		dcfg.Broker = func(ctx context.Context) error {
			nc, err := nats.Connect(cfg.Jobs.NATSURL,
				nats.Name("voiceapi-doctor"),
				nats.Timeout(brokerCheckTimeout),
			)
			if err != nil {
				return err
			}
			defer nc.Close()

			ctx, cancel := context.WithTimeout(ctx, brokerCheckTimeout)
			defer cancel()
			return nc.FlushWithContext(ctx)
		}
	}

	return dcfg, func() { _ = closeProfiles() }, nil
}
