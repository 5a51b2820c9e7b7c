package main

import (
	"context"
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"

	"github.com/example/voiceapi/internal/batch"
	"github.com/example/voiceapi/internal/config"
	"github.com/example/voiceapi/internal/metrics"
	"github.com/example/voiceapi/internal/objectstore"
	"github.com/example/voiceapi/internal/server"
	"github.com/example/voiceapi/internal/voice"
	"github.com/nats-io/nats.go"
	"github.com/spf13/cobra"
)

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the voice API HTTP server",
		RunE: func(_ *cobra.Command, _ []string) error {
			cfg, err := requireConfig()
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			return runServe(ctx, cfg)
		},
	}

	return cmd
}

func runServe(ctx context.Context, cfg config.Config) error {
	m := metrics.New()

	a, err := buildApp(ctx, cfg, m.ObserveInference)
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	if err := a.svc.LoadModels(ctx); err != nil {
		return err
	}
	recordModelGauges(m, a.svc.Health())

	jobs, err := buildBatch(cfg, a)
	if err != nil {
		return err
	}
	defer jobs.close()

	h := server.NewHandler(a.svc,
		server.WithMaxTextBytes(cfg.Server.MaxTextBytes),
		server.WithMaxUploadBytes(cfg.Server.MaxUploadBytes),
		server.WithRequestTimeout(cfg.Server.RequestTimeout),
		server.WithCORSOrigins(cfg.Server.CORSOrigins),
		server.WithTranscribeLanguage(cfg.Transcribe.Language),
		server.WithMetrics(m),
		server.WithBatch(jobs.dispatcher, jobs.registry),
		server.WithBatchOutputs(jobs.outputs),
	)

	return server.New(cfg.Server.ListenAddr, h).
		WithShutdownTimeout(cfg.Server.ShutdownTimeout).
		Start(ctx)
}

func recordModelGauges(m *metrics.Metrics, h voice.Health) {
	m.SetModelLoaded(voice.KindTTS, h.ModelsLoaded.TTS)
	m.SetModelLoaded(voice.KindVC, h.ModelsLoaded.VC)
	m.SetModelLoaded(voice.KindWhisper, h.ModelsLoaded.Whisper)
}

// batchBackend is the batch job plumbing for one serve process.
type batchBackend struct {
	dispatcher batch.Dispatcher
	registry   *batch.Registry
	outputs    batch.Source
	close      func()
}

// buildBatch runs batch jobs in-process unless a NATS URL is configured, in
// which case jobs go to `voiceapi worker` processes and their output is read
// back from the JetStream bucket the workers write to.
func buildBatch(cfg config.Config, a *app) (*batchBackend, error) {
	jobs := batch.NewRegistry()

	if cfg.Jobs.NATSURL == "" {
		runner := batch.NewRunner(a.svc, a.artifacts, cfg.Paths.DatasetsDir, jobs.Report, slog.Default())
		d := batch.NewLocalDispatcher(runner)
		return &batchBackend{
			dispatcher: d,
			registry:   jobs,
			outputs:    a.artifacts,
			close:      func() { _ = d.Close() },
		}, nil
	}

	nc, err := nats.Connect(cfg.Jobs.NATSURL, nats.Name("voiceapi"))
	if err != nil {
		return nil, fmt.Errorf("connect to nats: %w", err)
	}
	js, err := nc.JetStream()
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("jetstream context: %w", err)
	}
	store, err := objectstore.New(js, cfg.Jobs.Bucket)
	if err != nil {
		nc.Close()
		return nil, err
	}
	d, err := batch.NewNATSDispatcher(nc, cfg.Jobs.Subject, jobs, slog.Default())
	if err != nil {
		nc.Close()
		return nil, err
	}
	slog.Info("batch jobs dispatched over nats",
		slog.String("url", cfg.Jobs.NATSURL),
		slog.String("subject", cfg.Jobs.Subject),
		slog.String("bucket", store.Bucket()),
	)

	return &batchBackend{
		dispatcher: d,
		registry:   jobs,
		outputs:    store,
		close: func() {
			_ = d.Close()
			nc.Close()
		},
	}, nil
}
