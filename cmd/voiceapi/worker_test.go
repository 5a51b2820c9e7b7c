package main

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/nats-io/nats-server/v2/test"
	"github.com/stretchr/testify/require"

	"github.com/example/voiceapi/internal/batch"
	"github.com/example/voiceapi/internal/objectstore"
	"github.com/example/voiceapi/internal/server"
	"github.com/example/voiceapi/internal/testutil"
)

func TestRunWorker_RequiresNATS(t *testing.T) {
	fake := testutil.NewFakeModelServer(t)

	err := runWorker(context.Background(), testConfig(t, fake))
	require.ErrorContains(t, err, "--nats-url")
}

func TestRunWorker_ProcessesDispatchedJob(t *testing.T) {
	opts := test.DefaultTestOptions
	opts.Port = -1
	opts.JetStream = true
	opts.StoreDir = t.TempDir()
	srv := test.RunServer(&opts)
	defer srv.Shutdown()

	fake := testutil.NewFakeModelServer(t)
	cfg := testConfig(t, fake)
	cfg.Jobs.NATSURL = srv.ClientURL()
	cfg.Jobs.Subject = "voiceapi.batch.cmdtest"
	cfg.Jobs.Bucket = "voiceapi-cmdtest"

	ds := filepath.Join(cfg.Paths.DatasetsDir, "demo")
	require.NoError(t, os.MkdirAll(ds, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(ds, batch.MetadataFile), []byte("x|Worker line.\n"), 0o644))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- runWorker(ctx, cfg) }()

	a, err := buildApp(context.Background(), cfg, nil)
	require.NoError(t, err)
	defer func() { _ = a.Close() }()

	b, err := buildBatch(cfg, a)
	require.NoError(t, err)
	defer b.close()
	require.IsType(t, &batch.NATSDispatcher{}, b.dispatcher)
	require.IsType(t, &objectstore.Store{}, b.outputs)

	require.Eventually(t, func() bool { return srv.GlobalAccount().SubscriptionInterest(cfg.Jobs.Subject) },
		5*time.Second, 10*time.Millisecond, "worker never subscribed")

	job := batch.NewJob("demo", 1)
	b.registry.Report(job)
	require.NoError(t, b.dispatcher.Dispatch(context.Background(), job))

	require.Eventually(t, func() bool {
		got, err := b.registry.Get(job.ID)
		return err == nil && got.Status == batch.StatusDone
	}, 10*time.Second, 20*time.Millisecond, "job never completed")

	// The gateway serves the worker's output from the shared bucket.
	h := server.NewHandler(a.svc,
		server.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		server.WithBatch(b.dispatcher, b.registry),
		server.WithBatchOutputs(b.outputs),
	)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/batch-process/jobs/"+job.ID+"/outputs/x.wav", nil))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	testutil.AssertValidWAV(t, rec.Body.Bytes(), fake.SampleRate)

	cancel()
	require.NoError(t, <-done)
}
