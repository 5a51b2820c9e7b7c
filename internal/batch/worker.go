package batch

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/nats-io/nats.go"
)

// WorkerQueue is the queue group workers share so each job runs once.
const WorkerQueue = "voiceapi-workers"

// StatusPublisher returns a Reporter that publishes job state on
// subject+".status" for a NATSDispatcher to pick up.
func StatusPublisher(nc *nats.Conn, subject string, logger *slog.Logger) Reporter {
	if logger == nil {
		logger = slog.Default()
	}
	return func(job Job) {
		data, err := json.Marshal(job)
		if err != nil {
			logger.Error("failed to marshal job status", slog.String("error", err.Error()))
			return
		}
		if err := nc.Publish(subject+StatusSubjectSuffix, data); err != nil {
			logger.Error("failed to publish job status",
				slog.String("job_id", job.ID),
				slog.String("error", err.Error()),
			)
		}
	}
}

// Worker consumes jobs published by a NATSDispatcher.
type Worker struct {
	nc      *nats.Conn
	subject string
	runner  *Runner
	log     *slog.Logger
}

// NewWorker builds a worker. The runner should report through StatusPublisher.
func NewWorker(nc *nats.Conn, subject string, runner *Runner, logger *slog.Logger) *Worker {
	if logger == nil {
		logger = slog.Default()
	}
	return &Worker{nc: nc, subject: subject, runner: runner, log: logger}
}

// Run processes jobs until ctx is cancelled, then drains the subscription.
func (w *Worker) Run(ctx context.Context) error {
	sub, err := w.nc.QueueSubscribe(w.subject, WorkerQueue, func(msg *nats.Msg) {
		w.handleMessage(ctx, msg)
	})
	if err != nil {
		return fmt.Errorf("failed to subscribe to subject %s: %w", w.subject, err)
	}
	if err := w.nc.Flush(); err != nil {
		return fmt.Errorf("failed to flush subscription: %w", err)
	}
	w.log.InfoContext(ctx, "batch worker listening", slog.String("subject", w.subject))

	<-ctx.Done()

	if err := sub.Drain(); err != nil {
		return fmt.Errorf("failed to drain subscription: %w", err)
	}
	return nil
}

func (w *Worker) handleMessage(ctx context.Context, msg *nats.Msg) {
	var job Job
	if err := json.Unmarshal(msg.Data, &job); err != nil {
		w.log.ErrorContext(ctx, "invalid job message", slog.String("error", err.Error()))
		return
	}

	final := w.runner.Run(ctx, job)
	w.log.InfoContext(ctx, "batch job handled",
		slog.String("job_id", final.ID),
		slog.String("status", string(final.Status)),
	)
}
