package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"

	"github.com/example/voiceapi/internal/batch"
	"github.com/example/voiceapi/internal/config"
	"github.com/example/voiceapi/internal/objectstore"
	"github.com/nats-io/nats.go"
	"github.com/spf13/cobra"
)

func newWorkerCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "worker",
		Short: "Process batch jobs from NATS and store results in JetStream",
		RunE: func(_ *cobra.Command, _ []string) error {
			cfg, err := requireConfig()
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			return runWorker(ctx, cfg)
		},
	}

	return cmd
}

func runWorker(ctx context.Context, cfg config.Config) error {
	if cfg.Jobs.NATSURL == "" {
		return errors.New("worker requires --nats-url")
	}

	nc, err := nats.Connect(cfg.Jobs.NATSURL, nats.Name("voiceapi-worker"))
	if err != nil {
		return fmt.Errorf("connect to nats: %w", err)
	}
	defer nc.Close()

	js, err := nc.JetStream()
	if err != nil {
		return fmt.Errorf("jetstream context: %w", err)
	}
	store, err := objectstore.New(js, cfg.Jobs.Bucket)
	if err != nil {
		return err
	}

	a, err := buildApp(ctx, cfg, nil)
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	if err := a.svc.LoadModels(ctx); err != nil {
		return err
	}

	logger := slog.Default().With(slog.String("component", "worker"))
	report := batch.StatusPublisher(nc, cfg.Jobs.Subject, logger)
	runner := batch.NewRunner(a.svc, store, cfg.Paths.DatasetsDir, report, logger)

	logger.Info("worker started",
		slog.String("subject", cfg.Jobs.Subject),
		slog.String("bucket", store.Bucket()),
	)

	return batch.NewWorker(nc, cfg.Jobs.Subject, runner, logger).Run(ctx)
}
