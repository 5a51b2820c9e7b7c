package batch

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/example/voiceapi/internal/audio"
	"github.com/example/voiceapi/internal/voice"
)

// DefaultProfile is the voice profile batch rows are synthesized with.
const DefaultProfile = "default"

// Generator produces speech for a single request.
type Generator interface {
	Generate(ctx context.Context, req voice.SynthesisRequest) (audio.Clip, error)
}

// Sink stores generated WAV files.
type Sink interface {
	Upload(ctx context.Context, key string, data []byte) error
}

// Source reads stored outputs back by the key a Sink received.
type Source interface {
	Download(ctx context.Context, key string) ([]byte, error)
}

// Reporter receives every job state change.
type Reporter func(Job)

// Runner executes batch jobs.
type Runner struct {
	gen         Generator
	sink        Sink
	datasetsDir string
	report      Reporter
	log         *slog.Logger
}

func NewRunner(gen Generator, sink Sink, datasetsDir string, report Reporter, logger *slog.Logger) *Runner {
	if report == nil {
		report = func(Job) {}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{gen: gen, sink: sink, datasetsDir: datasetsDir, report: report, log: logger}
}

// Run processes the job to completion and returns its final state. Rows that
// fail are counted and skipped; the job fails when the dataset cannot be read
// or is empty, the context ends, or no row succeeds.
func (r *Runner) Run(ctx context.Context, job Job) Job {
	update := func(fn func(*Job)) {
		fn(&job)
		job.UpdatedAt = time.Now().UTC()
		r.report(job.clone())
	}
	fail := func(err error) Job {
		update(func(j *Job) {
			j.Status = StatusFailed
			j.Error = err.Error()
		})
		r.log.ErrorContext(ctx, "batch job failed",
			slog.String("job_id", job.ID),
			slog.String("dataset", job.Dataset),
			slog.String("error", err.Error()),
		)
		return job.clone()
	}

	update(func(j *Job) { j.Status = StatusRunning })
	start := time.Now()

	rows, err := LoadDataset(r.datasetsDir, job.Dataset, job.MaxSamples)
	if err != nil {
		return fail(err)
	}
	if len(rows) == 0 {
		return fail(fmt.Errorf("%w: %s", ErrEmptyDataset, job.Dataset))
	}

	for _, row := range rows {
		if err := ctx.Err(); err != nil {
			return fail(err)
		}

		key, err := r.processRow(ctx, job.ID, row)
		if err != nil {
			r.log.WarnContext(ctx, "batch row failed",
				slog.String("job_id", job.ID),
				slog.String("row", row.ID),
				slog.String("error", err.Error()),
			)
			update(func(j *Job) { j.Failed++ })
			continue
		}
		update(func(j *Job) {
			j.Processed++
			j.Outputs = append(j.Outputs, key)
		})
	}

	if job.Processed == 0 {
		return fail(fmt.Errorf("all %d rows failed", len(rows)))
	}

	update(func(j *Job) { j.Status = StatusDone })
	r.log.InfoContext(ctx, "batch job complete",
		slog.String("job_id", job.ID),
		slog.String("dataset", job.Dataset),
		slog.Int("processed", job.Processed),
		slog.Int("failed", job.Failed),
		slog.Int64("duration_ms", time.Since(start).Milliseconds()),
	)
	return job.clone()
}

func (r *Runner) processRow(ctx context.Context, jobID string, row Row) (string, error) {
	req := voice.NewSynthesisRequest(row.Text)
	req.VoiceProfile = DefaultProfile

	clip, err := r.gen.Generate(ctx, req)
	if err != nil {
		return "", err
	}
	wav, err := audio.EncodeWAV(clip)
	if err != nil {
		return "", fmt.Errorf("encode wav: %w", err)
	}

	key := jobID + "/" + row.ID + ".wav"
	if err := r.sink.Upload(ctx, key, wav); err != nil {
		return "", err
	}
	return key, nil
}
