package testutil

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
)

// FakeGenerateRequest is the JSON body the fake TTS endpoint records.
type FakeGenerateRequest struct {
	Text         string  `json:"text"`
	Exaggeration float64 `json:"exaggeration"`
	CFGWeight    float64 `json:"cfg_weight"`
	Language     string  `json:"language"`
	AudioPrompt  string  `json:"audio_prompt_path"`
}

// FakeModelServer emulates the model server API: TTS (/generate), voice
// conversion (/convert), whisper.cpp (/inference) and health checks.
//
// Generated audio is a tone of SamplesPerChar samples per input byte at
// SampleRate. Text containing "FAIL" makes /generate answer 500.
type FakeModelServer struct {
	*httptest.Server

	SampleRate     int
	SamplesPerChar int

	unhealthy atomic.Bool

	mu          sync.Mutex
	generated   []FakeGenerateRequest
	converted   []map[string]string
	transcribed []map[string]string
}

// NewFakeModelServer starts a fake model server closed at test cleanup.
func NewFakeModelServer(tb testing.TB) *FakeModelServer {
	tb.Helper()

	f := &FakeModelServer{SampleRate: 24000, SamplesPerChar: 48}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", f.handleHealth)
	mux.HandleFunc("GET /health", f.handleHealth)
	mux.HandleFunc("POST /generate", f.handleGenerate)
	mux.HandleFunc("POST /convert", f.handleConvert)
	mux.HandleFunc("POST /inference", f.handleInference)

	f.Server = httptest.NewServer(mux)
	tb.Cleanup(f.Close)

	return f
}

// SetHealthy toggles the health check answer.
func (f *FakeModelServer) SetHealthy(ok bool) { f.unhealthy.Store(!ok) }

// Generated returns the recorded TTS requests.
func (f *FakeModelServer) Generated() []FakeGenerateRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]FakeGenerateRequest(nil), f.generated...)
}

// Converted returns the multipart file names of each conversion request.
func (f *FakeModelServer) Converted() []map[string]string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]map[string]string(nil), f.converted...)
}

// Transcribed returns the form values of each inference request.
func (f *FakeModelServer) Transcribed() []map[string]string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]map[string]string(nil), f.transcribed...)
}

func (f *FakeModelServer) handleHealth(w http.ResponseWriter, _ *http.Request) {
	if f.unhealthy.Load() {
		http.Error(w, `{"detail":"loading"}`, http.StatusServiceUnavailable)
		return
	}
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}

func (f *FakeModelServer) handleGenerate(w http.ResponseWriter, r *http.Request) {
	var req FakeGenerateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeFakeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	f.mu.Lock()
	f.generated = append(f.generated, req)
	f.mu.Unlock()

	if strings.Contains(req.Text, "FAIL") {
		writeFakeError(w, http.StatusInternalServerError, "synthesis failed")
		return
	}

	f.writeTone(w, len(req.Text)*f.SamplesPerChar)
}

func (f *FakeModelServer) handleConvert(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		writeFakeError(w, http.StatusBadRequest, "invalid multipart")
		return
	}

	names := map[string]string{}
	for _, field := range []string{"audio", "target_voice"} {
		fh := r.MultipartForm.File[field]
		if len(fh) == 0 {
			writeFakeError(w, http.StatusBadRequest, "missing "+field)
			return
		}
		names[field] = fh[0].Filename
	}

	f.mu.Lock()
	f.converted = append(f.converted, names)
	f.mu.Unlock()

	f.writeTone(w, f.SampleRate/2)
}

func (f *FakeModelServer) handleInference(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		writeFakeError(w, http.StatusBadRequest, "invalid multipart")
		return
	}
	if len(r.MultipartForm.File["file"]) == 0 {
		writeFakeError(w, http.StatusBadRequest, "missing file")
		return
	}

	values := map[string]string{"file": r.MultipartForm.File["file"][0].Filename}
	for k, v := range r.MultipartForm.Value {
		values[k] = v[0]
	}

	f.mu.Lock()
	f.transcribed = append(f.transcribed, values)
	f.mu.Unlock()

	lang := values["language"]
	if lang == "" {
		lang = "english"
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"text":     " Hello world. How are you?",
		"language": lang,
		"segments": []map[string]any{
			{"id": 0, "start": 0.0, "end": 1.2, "text": " Hello world."},
			{"id": 1, "start": 1.2, "end": 2.5, "text": " How are you?"},
		},
	})
}

func (f *FakeModelServer) writeTone(w http.ResponseWriter, numSamples int) {
	data, err := encodeTone(f.SampleRate, max(numSamples, 1))
	if err != nil {
		writeFakeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	w.Header().Set("Content-Type", "audio/wav")
	_, _ = w.Write(data)
}

func writeFakeError(w http.ResponseWriter, status int, detail string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"detail": detail})
}
