package transcribe

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/example/voiceapi/internal/config"
	"github.com/example/voiceapi/internal/testutil"
)

func TestWhisperModel_Transcribe(t *testing.T) {
	srv := testutil.NewFakeModelServer(t)
	m := NewWhisperModel(srv.URL, 5*time.Second)

	if err := m.Load(context.Background()); err != nil {
		t.Fatalf("Load: %v", err)
	}

	path := testutil.WriteToneWAV(t, "transcribe_note.wav", 16000, 1600)
	res, err := m.Transcribe(context.Background(), path, "en")
	if err != nil {
		t.Fatalf("Transcribe: %v", err)
	}

	if res.Text != "Hello world. How are you?" {
		t.Errorf("text = %q", res.Text)
	}
	if res.Language != "en" {
		t.Errorf("language = %q, want en", res.Language)
	}
	if len(res.Segments) != 2 || res.Segments[1].Start != 1.2 || res.Segments[1].End != 2.5 {
		t.Errorf("segments = %+v", res.Segments)
	}

	calls := srv.Transcribed()
	if len(calls) != 1 {
		t.Fatalf("server saw %d requests", len(calls))
	}
	if calls[0]["file"] != "transcribe_note.wav" || calls[0]["response_format"] != "verbose_json" {
		t.Errorf("form = %+v", calls[0])
	}
}

func TestWhisperModel_AutoLanguage(t *testing.T) {
	srv := testutil.NewFakeModelServer(t)
	path := testutil.WriteToneWAV(t, "a.wav", 16000, 160)

	res, err := NewWhisperModel(srv.URL, time.Second).Transcribe(context.Background(), path, "")
	if err != nil {
		t.Fatalf("Transcribe: %v", err)
	}
	if res.Language != "english" {
		t.Errorf("language = %q, want detected english", res.Language)
	}
	if _, sent := srv.Transcribed()[0]["language"]; sent {
		t.Error("empty language should not be sent")
	}
}

func TestOpenAIModel_Transcribe(t *testing.T) {
	var gotModel, gotFormat, gotLang, gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/audio/transcriptions" {
			http.NotFound(w, r)
			return
		}
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		gotModel = r.FormValue("model")
		gotFormat = r.FormValue("response_format")
		gotLang = r.FormValue("language")
		gotAuth = r.Header.Get("Authorization")

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"task":     "transcribe",
			"language": "german",
			"duration": 1.5,
			"text":     "Guten Tag.",
			"segments": []map[string]any{{"id": 0, "start": 0, "end": 1.5, "text": "Guten Tag."}},
		})
	}))
	t.Cleanup(srv.Close)

	m := NewOpenAIModel("sk-test", "", WithBaseURL(srv.URL+"/v1"), WithMaxRetries(0))
	if err := m.Load(context.Background()); err != nil {
		t.Fatalf("Load: %v", err)
	}

	path := testutil.WriteToneWAV(t, "clip.wav", 16000, 1600)
	res, err := m.Transcribe(context.Background(), path, "de")
	if err != nil {
		t.Fatalf("Transcribe: %v", err)
	}

	if res.Text != "Guten Tag." || res.Language != "german" || len(res.Segments) != 1 {
		t.Errorf("result = %+v", res)
	}
	if gotModel != "whisper-1" || gotFormat != "verbose_json" || gotLang != "de" {
		t.Errorf("form model=%q format=%q language=%q", gotModel, gotFormat, gotLang)
	}
	if gotAuth != "Bearer sk-test" {
		t.Errorf("Authorization = %q", gotAuth)
	}
}

func TestOpenAIModel_LoadWithoutKey(t *testing.T) {
	if err := NewOpenAIModel("", "").Load(context.Background()); err == nil {
		t.Fatal("expected Load to fail without api key or base url")
	}
}

func TestParseVerbose(t *testing.T) {
	res, err := parseVerbose([]byte(`{"text":"  hi  "}`))
	if err != nil {
		t.Fatalf("parseVerbose: %v", err)
	}
	if res.Text != "hi" {
		t.Errorf("text = %q", res.Text)
	}
	if res.Segments == nil {
		t.Error("segments should be an empty slice, not nil")
	}

	if _, err := parseVerbose([]byte("nope")); err == nil {
		t.Error("expected decode error")
	}
}

func TestNewFromConfig(t *testing.T) {
	m, err := NewFromConfig(config.TranscribeConfig{Backend: config.BackendOpenAI, APIKey: "k"})
	if err != nil || m.Name() != "openai-transcribe" {
		t.Errorf("openai backend = %v, %v", m, err)
	}

	m, err = NewFromConfig(config.TranscribeConfig{Backend: config.BackendNone})
	if err != nil || m != nil {
		t.Errorf("none backend = %v, %v", m, err)
	}

	if _, err := NewFromConfig(config.TranscribeConfig{Backend: config.BackendCLI}); err == nil {
		t.Error("expected error for unsupported backend")
	}
}

func TestNewFromConfig_MaxRetries(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, `{"error":{"message":"overloaded"}}`, http.StatusServiceUnavailable)
	}))
	t.Cleanup(srv.Close)

	m, err := NewFromConfig(config.TranscribeConfig{
		Backend:    config.BackendOpenAI,
		APIKey:     "k",
		URL:        srv.URL + "/v1",
		MaxRetries: 1,
	})
	if err != nil {
		t.Fatalf("NewFromConfig: %v", err)
	}

	path := testutil.WriteToneWAV(t, "clip.wav", 16000, 1600)
	if _, err := m.Transcribe(context.Background(), path, ""); err == nil {
		t.Fatal("expected error from failing server")
	}
	if got := calls.Load(); got != 2 {
		t.Errorf("server calls = %d, want 2 (one retry)", got)
	}
}
