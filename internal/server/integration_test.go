package server_test

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/example/voiceapi/internal/artifact"
	"github.com/example/voiceapi/internal/metrics"
	"github.com/example/voiceapi/internal/profile"
	"github.com/example/voiceapi/internal/server"
	"github.com/example/voiceapi/internal/testutil"
	"github.com/example/voiceapi/internal/transcribe"
	"github.com/example/voiceapi/internal/tts"
	"github.com/example/voiceapi/internal/vc"
	"github.com/example/voiceapi/internal/voice"
)

func newModelBackedService(t *testing.T, fake *testutil.FakeModelServer, m *metrics.Metrics) *voice.Service {
	t.Helper()

	root := t.TempDir()
	dir, err := artifact.Open(filepath.Join(root, "temp_audio"))
	if err != nil {
		t.Fatalf("artifact.Open: %v", err)
	}
	store, err := profile.OpenFile(filepath.Join(root, "voice_profiles.json"))
	if err != nil {
		t.Fatalf("profile.OpenFile: %v", err)
	}

	opts := voice.Options{
		TTS:         tts.NewHTTPModel(fake.URL, 5*time.Second),
		VC:          vc.NewHTTPModel(fake.URL, 5*time.Second),
		Transcriber: transcribe.NewWhisperModel(fake.URL, 5*time.Second),
		Profiles:    store,
		Artifacts:   dir,
		Logger:      quietLogger(),
	}
	if m != nil {
		opts.Observe = m.ObserveInference
	}
	svc, err := voice.New(opts)
	if err != nil {
		t.Fatalf("voice.New: %v", err)
	}
	if err := svc.LoadModels(context.Background()); err != nil {
		t.Fatalf("LoadModels: %v", err)
	}
	return svc
}

func TestIntegration_TTSWithProfileAgainstModelServer(t *testing.T) {
	fake := testutil.NewFakeModelServer(t)
	m := metrics.New()
	h := newTestHandler(newModelBackedService(t, fake, m), server.WithMetrics(m))

	rec := postJSON(h, "/tts/", `{"text":"Hello world","voice_profile":"excited","exaggeration":0.1}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("want 200, got %d: %s", rec.Code, rec.Body.String())
	}
	testutil.AssertValidWAV(t, rec.Body.Bytes(), fake.SampleRate)

	gen := fake.Generated()
	if len(gen) != 1 || gen[0].Exaggeration != 1.2 || gen[0].CFGWeight != 0.3 || gen[0].Text != "Hello world." {
		t.Errorf("model saw %+v", gen)
	}

	rec = postJSON(h, "/tts/", `{"text":"please FAIL"}`)
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("model failure: want 500, got %d", rec.Code)
	}
	if !strings.Contains(errorBody(t, rec)["detail"], "synthesis failed") {
		t.Error("model error detail should reach the client")
	}

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	body := rec.Body.String()
	for _, want := range []string{
		`voiceapi_inference_errors_total{model="tts-http",operation="synthesize"} 1`,
		`route="POST /tts/{$}"`,
	} {
		if !strings.Contains(body, want) {
			t.Errorf("metrics missing %q", want)
		}
	}
}

func TestIntegration_StreamAgainstModelServer(t *testing.T) {
	fake := testutil.NewFakeModelServer(t)
	h := newTestHandler(newModelBackedService(t, fake, nil))

	sentence := strings.Repeat("la ", 60) + "done."
	rec := postJSON(h, "/tts/stream/", `{"text":"`+sentence+` `+sentence+`"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("want 200, got %d: %s", rec.Code, rec.Body.String())
	}
	testutil.AssertValidWAV(t, rec.Body.Bytes(), fake.SampleRate)
	if n := len(fake.Generated()); n != 2 {
		t.Errorf("model calls = %d, want one per chunk", n)
	}
}

func TestIntegration_ModelNotLoaded(t *testing.T) {
	fake := testutil.NewFakeModelServer(t)
	fake.SetHealthy(false)
	h := newTestHandler(newModelBackedService(t, fake, nil))

	rec := postJSON(h, "/tts/", `{"text":"hi"}`)
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("want 503, got %d", rec.Code)
	}
	if detail := errorBody(t, rec)["detail"]; detail != "TTS model not loaded" {
		t.Errorf("detail = %q", detail)
	}

	rec = postMultipart(t, h, "/transcribe/", map[string]string{"audio_file": "x"}, nil)
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("transcribe: want 503, got %d", rec.Code)
	}
}

func TestStart_LifecycleHealthAndShutdown(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	addr := ln.Addr().String()
	ln.Close() // free it for the server

	fake := testutil.NewFakeModelServer(t)
	h := newTestHandler(newModelBackedService(t, fake, nil))
	s := server.New(addr, h).WithShutdownTimeout(2 * time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	errCh := make(chan error, 1)
	go func() { errCh <- s.Start(ctx) }()

	var health voice.Health
	for range 50 {
		health, err = server.FetchHealth(ctx, addr)
		if err == nil {
			break
		}
		time.Sleep(20 * time.Millisecond)
	}
	if err != nil {
		t.Fatalf("server never became ready: %v", err)
	}
	if health.Status != "healthy" || !health.AllModelsReady {
		t.Errorf("health = %+v", health)
	}

	resp, err := http.Get(fmt.Sprintf("http://%s/", addr))
	if err != nil {
		t.Fatalf("GET /: %v", err)
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	resp.Body.Close()

	cancel()
	select {
	case err := <-errCh:
		if err != nil {
			t.Fatalf("Start() returned error on shutdown: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Start() did not return within 5s of context cancel")
	}
}

func TestIntegration_UndecodableModelOutputIs500(t *testing.T) {
	model := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/generate" {
			w.Header().Set("Content-Type", "audio/wav")
			_, _ = io.WriteString(w, "not a RIFF file")
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(model.Close)

	root := t.TempDir()
	dir, err := artifact.Open(filepath.Join(root, "temp_audio"))
	if err != nil {
		t.Fatalf("artifact.Open: %v", err)
	}
	store, err := profile.OpenFile(filepath.Join(root, "voice_profiles.json"))
	if err != nil {
		t.Fatalf("profile.OpenFile: %v", err)
	}
	svc, err := voice.New(voice.Options{
		TTS:       tts.NewHTTPModel(model.URL, 5*time.Second),
		Profiles:  store,
		Artifacts: dir,
		Logger:    quietLogger(),
	})
	if err != nil {
		t.Fatalf("voice.New: %v", err)
	}
	if err := svc.LoadModels(context.Background()); err != nil {
		t.Fatalf("LoadModels: %v", err)
	}

	rec := postJSON(newTestHandler(svc), "/tts/", `{"text":"hello"}`)
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("want 500, got %d: %s", rec.Code, rec.Body.String())
	}
	if detail := errorBody(t, rec)["detail"]; !strings.Contains(detail, "model returned unusable audio") {
		t.Errorf("detail = %q", detail)
	}
}
