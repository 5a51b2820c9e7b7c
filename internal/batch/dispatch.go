package batch

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/nats-io/nats.go"
)

// StatusSubjectSuffix is appended to the job subject for progress updates.
const StatusSubjectSuffix = ".status"

// Dispatcher starts jobs.
type Dispatcher interface {
	Dispatch(ctx context.Context, job Job) error
}

// LocalDispatcher runs jobs on goroutines inside the gateway. Jobs run on the
// dispatcher's context, not the submitting request's.
type LocalDispatcher struct {
	runner *Runner
	ctx    context.Context
	cancel context.CancelFunc

	mu     sync.Mutex
	closed bool
	wg     sync.WaitGroup
}

func NewLocalDispatcher(runner *Runner) *LocalDispatcher {
	ctx, cancel := context.WithCancel(context.Background())
	return &LocalDispatcher{runner: runner, ctx: ctx, cancel: cancel}
}

func (d *LocalDispatcher) Dispatch(_ context.Context, job Job) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return ErrDispatcherClosed
	}

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		d.runner.Run(d.ctx, job)
	}()
	return nil
}

// Close cancels running jobs, which end failed, and waits for them to report.
func (d *LocalDispatcher) Close() error {
	d.mu.Lock()
	d.closed = true
	d.mu.Unlock()

	d.cancel()
	d.wg.Wait()
	return nil
}

// NATSDispatcher publishes jobs to workers and folds their progress updates
// into a Registry.
type NATSDispatcher struct {
	nc      *nats.Conn
	subject string
	sub     *nats.Subscription
	log     *slog.Logger
}

// NewNATSDispatcher subscribes to worker progress on subject+".status".
func NewNATSDispatcher(nc *nats.Conn, subject string, reg *Registry, logger *slog.Logger) (*NATSDispatcher, error) {
	if logger == nil {
		logger = slog.Default()
	}
	d := &NATSDispatcher{nc: nc, subject: subject, log: logger}

	sub, err := nc.Subscribe(subject+StatusSubjectSuffix, func(msg *nats.Msg) {
		var job Job
		if err := json.Unmarshal(msg.Data, &job); err != nil {
			d.log.Warn("invalid job status message", slog.String("error", err.Error()))
			return
		}
		reg.Report(job)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to subscribe to %s: %w", subject+StatusSubjectSuffix, err)
	}
	d.sub = sub
	return d, nil
}

// Dispatch publishes the job for the next free worker.
func (d *NATSDispatcher) Dispatch(_ context.Context, job Job) error {
	data, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("failed to marshal job: %w", err)
	}
	if err := d.nc.Publish(d.subject, data); err != nil {
		return fmt.Errorf("failed to publish job %s: %w", job.ID, err)
	}
	return d.nc.Flush()
}

// Close stops listening for progress updates.
func (d *NATSDispatcher) Close() error {
	return d.sub.Drain()
}
