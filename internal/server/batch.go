package server

import (
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/example/voiceapi/internal/batch"
)

func (h *handler) handleBatchStart(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")

	maxSamples := batch.DefaultMaxSamples
	if raw := r.URL.Query().Get("max_samples"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "max_samples must be a positive integer")
			return
		}
		maxSamples = n
	}

	start := time.Now()
	job := batch.NewJob(name, maxSamples)
	h.opts.jobs.Report(job)
	if err := h.opts.dispatcher.Dispatch(r.Context(), job); err != nil {
		failed := job
		failed.Status = batch.StatusFailed
		failed.Error = err.Error()
		failed.UpdatedAt = time.Now().UTC()
		h.opts.jobs.Report(failed)
		h.fail(w, r, "batch dispatch", start, err)
		return
	}

	h.log.InfoContext(r.Context(), "batch job queued",
		slog.String("job_id", job.ID),
		slog.String("dataset", name),
		slog.Int("max_samples", maxSamples),
	)
	writeJSON(w, http.StatusAccepted, map[string]any{
		"message":     fmt.Sprintf("Started batch processing of %s", name),
		"job_id":      job.ID,
		"max_samples": maxSamples,
	})
}

func (h *handler) handleBatchJob(w http.ResponseWriter, r *http.Request) {
	job, err := h.opts.jobs.Get(r.PathValue("id"))
	if err != nil {
		h.fail(w, r, "batch status", time.Now(), err)
		return
	}
	writeJSON(w, http.StatusOK, job)
}

func (h *handler) handleBatchList(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.opts.jobs.List())
}

func (h *handler) handleBatchOutput(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	file := r.PathValue("file")
	key, err := h.opts.jobs.Output(r.PathValue("id"), file)
	if err != nil {
		h.fail(w, r, "batch output", start, err)
		return
	}
	data, err := h.opts.outputs.Download(r.Context(), key)
	if err != nil {
		h.fail(w, r, "batch output", start, err)
		return
	}
	writeWAV(w, file, data)
}
