package server_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/example/voiceapi/internal/batch"
	"github.com/example/voiceapi/internal/server"
	"github.com/example/voiceapi/internal/testutil"
)

type recordingDispatcher struct {
	jobs []batch.Job
	err  error
}

func (d *recordingDispatcher) Dispatch(_ context.Context, job batch.Job) error {
	d.jobs = append(d.jobs, job)
	return d.err
}

func TestBatch_StartAndStatus(t *testing.T) {
	reg := batch.NewRegistry()
	disp := &recordingDispatcher{}
	h := newTestHandler(&stubService{}, server.WithBatch(disp, reg))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/batch-process/datasets/ljspeech?max_samples=3", nil))

	if rec.Code != http.StatusAccepted {
		t.Fatalf("want 202, got %d: %s", rec.Code, rec.Body.String())
	}
	var body struct {
		Message    string `json:"message"`
		JobID      string `json:"job_id"`
		MaxSamples int    `json:"max_samples"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Message != "Started batch processing of ljspeech" || body.MaxSamples != 3 || body.JobID == "" {
		t.Errorf("body = %+v", body)
	}
	if len(disp.jobs) != 1 || disp.jobs[0].Dataset != "ljspeech" {
		t.Fatalf("dispatched = %+v", disp.jobs)
	}

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/batch-process/jobs/"+body.JobID, nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status: want 200, got %d", rec.Code)
	}
	var job batch.Job
	if err := json.NewDecoder(rec.Body).Decode(&job); err != nil {
		t.Fatalf("decode job: %v", err)
	}
	if job.Status != batch.StatusQueued {
		t.Errorf("job status = %s", job.Status)
	}

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/batch-process/jobs", nil))
	var jobs []batch.Job
	if err := json.NewDecoder(rec.Body).Decode(&jobs); err != nil || len(jobs) != 1 {
		t.Errorf("list = %v (%v)", jobs, err)
	}
}

func TestBatch_DefaultsAndErrors(t *testing.T) {
	reg := batch.NewRegistry()

	t.Run("default max_samples", func(t *testing.T) {
		disp := &recordingDispatcher{}
		h := newTestHandler(&stubService{}, server.WithBatch(disp, reg))
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/batch-process/datasets/vctk", nil))
		if rec.Code != http.StatusAccepted || disp.jobs[0].MaxSamples != batch.DefaultMaxSamples {
			t.Errorf("code=%d jobs=%+v", rec.Code, disp.jobs)
		}
	})

	t.Run("bad max_samples", func(t *testing.T) {
		h := newTestHandler(&stubService{}, server.WithBatch(&recordingDispatcher{}, reg))
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/batch-process/datasets/vctk?max_samples=-1", nil))
		if rec.Code != http.StatusBadRequest {
			t.Errorf("want 400, got %d", rec.Code)
		}
	})

	t.Run("dispatch failure", func(t *testing.T) {
		disp := &recordingDispatcher{err: errors.New("nats: connection closed")}
		h := newTestHandler(&stubService{}, server.WithBatch(disp, reg))
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/batch-process/datasets/vctk", nil))
		if rec.Code != http.StatusInternalServerError {
			t.Fatalf("want 500, got %d", rec.Code)
		}
		job, err := reg.Get(disp.jobs[0].ID)
		if err != nil || job.Status != batch.StatusFailed {
			t.Errorf("job = %+v (%v), want failed", job, err)
		}
	})

	t.Run("unknown job", func(t *testing.T) {
		h := newTestHandler(&stubService{}, server.WithBatch(&recordingDispatcher{}, reg))
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/batch-process/jobs/nope", nil))
		if rec.Code != http.StatusNotFound {
			t.Errorf("want 404, got %d", rec.Code)
		}
	})

	t.Run("disabled", func(t *testing.T) {
		h := newTestHandler(&stubService{})
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/batch-process/datasets/vctk", nil))
		if rec.Code != http.StatusNotFound {
			t.Errorf("want 404, got %d", rec.Code)
		}
	})
}

type mapSource map[string][]byte

func (m mapSource) Download(_ context.Context, key string) ([]byte, error) {
	data, ok := m[key]
	if !ok {
		return nil, errors.New("missing object")
	}
	return data, nil
}

func TestBatch_Outputs(t *testing.T) {
	reg := batch.NewRegistry()
	job := batch.NewJob("ljspeech", 2)
	job.Status = batch.StatusDone
	job.Outputs = []string{job.ID + "/LJ001-0001.wav"}
	reg.Report(job)

	wav := testutil.ToneWAV(t, 24000, 240)
	src := mapSource{job.ID + "/LJ001-0001.wav": wav}
	h := newTestHandler(&stubService{}, server.WithBatch(&recordingDispatcher{}, reg), server.WithBatchOutputs(src))

	get := func(path string) *httptest.ResponseRecorder {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		return rec
	}

	rec := get("/batch-process/jobs/" + job.ID + "/outputs/LJ001-0001.wav")
	if rec.Code != http.StatusOK {
		t.Fatalf("want 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if ct := rec.Header().Get("Content-Type"); ct != "audio/wav" {
		t.Errorf("Content-Type = %q", ct)
	}
	testutil.AssertValidWAV(t, rec.Body.Bytes(), 24000)

	if rec := get("/batch-process/jobs/" + job.ID + "/outputs/other.wav"); rec.Code != http.StatusNotFound {
		t.Errorf("unlisted file: want 404, got %d", rec.Code)
	}
	if rec := get("/batch-process/jobs/nope/outputs/LJ001-0001.wav"); rec.Code != http.StatusNotFound {
		t.Errorf("unknown job: want 404, got %d", rec.Code)
	}
}

func TestBatch_OutputsRouteNeedsSource(t *testing.T) {
	reg := batch.NewRegistry()
	h := newTestHandler(&stubService{}, server.WithBatch(&recordingDispatcher{}, reg))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/batch-process/jobs/x/outputs/a.wav", nil))
	if rec.Code != http.StatusNotFound {
		t.Errorf("want 404 without an output source, got %d", rec.Code)
	}
}
