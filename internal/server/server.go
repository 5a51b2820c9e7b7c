// Package server exposes the voice service over HTTP.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"runtime/debug"
	"strings"
	"time"

	"github.com/example/voiceapi/internal/audio"
	"github.com/example/voiceapi/internal/batch"
	"github.com/example/voiceapi/internal/metrics"
	"github.com/example/voiceapi/internal/profile"
	"github.com/example/voiceapi/internal/transcribe"
	"github.com/example/voiceapi/internal/voice"
)

// ParseLogLevel converts a case-insensitive level string to slog.Level.
// An empty string returns slog.LevelInfo. Unknown strings return an error.
func ParseLogLevel(s string) (slog.Level, error) {
	switch strings.ToLower(s) {
	case "", "info":
		return slog.LevelInfo, nil
	case "debug":
		return slog.LevelDebug, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("unknown log level %q (want debug|info|warn|error)", s)
	}
}

// VoiceService is the voice.Service surface the handler uses.
type VoiceService interface {
	Health() voice.Health
	Synthesize(ctx context.Context, req voice.SynthesisRequest) (voice.Artifact, error)
	SynthesizeStream(ctx context.Context, req voice.SynthesisRequest, emit func(audio.Clip) error) error
	Convert(ctx context.Context, src, target voice.Upload) (voice.Artifact, error)
	Transcribe(ctx context.Context, up voice.Upload, language string) (transcribe.Result, error)
	Enhance(ctx context.Context, up voice.Upload) (voice.Artifact, error)
	Analyze(ctx context.Context, up voice.Upload) (audio.Features, error)
	Profiles(ctx context.Context) (map[string]profile.Params, error)
	SaveProfile(ctx context.Context, name string, p profile.Params) error
	DeleteProfile(ctx context.Context, name string) error
}

var _ VoiceService = (*voice.Service)(nil)

// ---------------------------------------------------------------------------
// Functional options
// ---------------------------------------------------------------------------

type options struct {
	maxTextBytes   int
	maxUploadBytes int64
	requestTimeout time.Duration
	corsOrigins    []string
	language       string
	logger         *slog.Logger
	metrics        *metrics.Metrics
	dispatcher     batch.Dispatcher
	jobs           *batch.Registry
	outputs        batch.Source
}

func defaultOptions() options {
	return options{
		maxTextBytes:   4096,
		maxUploadBytes: 32 << 20,
		requestTimeout: 120 * time.Second,
		corsOrigins:    []string{"*"},
		logger:         slog.Default(),
	}
}

// Option configures the HTTP handler.
type Option func(*options)

// WithMaxTextBytes sets the maximum allowed text length in bytes for TTS.
func WithMaxTextBytes(n int) Option {
	return func(o *options) { o.maxTextBytes = n }
}

// WithMaxUploadBytes bounds multipart request bodies.
func WithMaxUploadBytes(n int64) Option {
	return func(o *options) { o.maxUploadBytes = n }
}

// WithRequestTimeout sets the per-request inference deadline.
func WithRequestTimeout(d time.Duration) Option {
	return func(o *options) { o.requestTimeout = d }
}

// WithCORSOrigins sets the comma-separated allowed origins; "*" allows any.
func WithCORSOrigins(origins string) Option {
	return func(o *options) { o.corsOrigins = splitOrigins(origins) }
}

// WithTranscribeLanguage sets the language used when a transcription request
// names none.
func WithTranscribeLanguage(lang string) Option {
	return func(o *options) { o.language = lang }
}

// WithLogger sets the slog.Logger used for request logging.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithMetrics records request metrics and serves GET /metrics.
func WithMetrics(m *metrics.Metrics) Option {
	return func(o *options) { o.metrics = m }
}

// WithBatch enables the batch-process routes.
func WithBatch(d batch.Dispatcher, jobs *batch.Registry) Option {
	return func(o *options) {
		o.dispatcher = d
		o.jobs = jobs
	}
}

// WithBatchOutputs serves finished batch files from src. It needs WithBatch.
func WithBatchOutputs(src batch.Source) Option {
	return func(o *options) { o.outputs = src }
}

// ---------------------------------------------------------------------------
// handler
// ---------------------------------------------------------------------------

type handler struct {
	svc  VoiceService
	opts options
	log  *slog.Logger
}

// NewHandler returns an http.Handler serving the voice API.
func NewHandler(svc VoiceService, optFns ...Option) http.Handler {
	opts := defaultOptions()
	for _, fn := range optFns {
		fn(&opts)
	}

	h := &handler{svc: svc, opts: opts, log: opts.logger}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", h.handleRoot)
	handle(mux, "GET /health", h.handleHealth)
	handle(mux, "POST /tts", h.handleTTS)
	handle(mux, "POST /tts/stream", h.handleTTSStream)
	handle(mux, "POST /voice-conversion", h.handleVoiceConversion)
	handle(mux, "POST /transcribe", h.handleTranscribe)
	handle(mux, "POST /enhance-audio", h.handleEnhance)
	handle(mux, "POST /analyze-voice", h.handleAnalyze)
	handle(mux, "GET /voice-profiles", h.handleListProfiles)
	handle(mux, "POST /voice-profiles", h.handleCreateProfile)
	mux.HandleFunc("DELETE /voice-profiles/{name}", h.handleDeleteProfile)

	if opts.dispatcher != nil && opts.jobs != nil {
		mux.HandleFunc("GET /batch-process/datasets/{name}", h.handleBatchStart)
		mux.HandleFunc("POST /batch-process/datasets/{name}", h.handleBatchStart)
		mux.HandleFunc("GET /batch-process/jobs", h.handleBatchList)
		mux.HandleFunc("GET /batch-process/jobs/{id}", h.handleBatchJob)
		if opts.outputs != nil {
			mux.HandleFunc("GET /batch-process/jobs/{id}/outputs/{file}", h.handleBatchOutput)
		}
	}

	var root http.Handler = mux
	if opts.metrics != nil {
		mux.Handle("GET /metrics", opts.metrics.Handler())
	}
	root = cors(opts.corsOrigins, root)
	if opts.metrics != nil {
		root = opts.metrics.Middleware(root)
	}
	return root
}

// handle registers pattern for both the bare and the trailing-slash path.
func handle(mux *http.ServeMux, pattern string, fn http.HandlerFunc) {
	mux.HandleFunc(pattern, fn)
	mux.HandleFunc(pattern+"/{$}", fn)
}

func buildVersion() string {
	if info, ok := debug.ReadBuildInfo(); ok && info.Main.Version != "" && info.Main.Version != "(devel)" {
		return info.Main.Version
	}
	return "dev"
}

func (h *handler) handleRoot(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"message": "Voice API",
		"version": buildVersion(),
		"endpoints": map[string]string{
			"tts":              "/tts/",
			"tts_stream":       "/tts/stream/",
			"voice_conversion": "/voice-conversion/",
			"transcribe":       "/transcribe/",
			"voice_profiles":   "/voice-profiles/",
			"enhance_audio":    "/enhance-audio/",
			"analyze_voice":    "/analyze-voice/",
			"batch_process":    "/batch-process/datasets/{name}",
			"health":           "/health/",
		},
	})
}

func (h *handler) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.svc.Health())
}

// inferenceContext applies the per-request timeout.
func (h *handler) inferenceContext(r *http.Request) (context.Context, context.CancelFunc) {
	return context.WithTimeout(r.Context(), h.opts.requestTimeout)
}

// statusFor maps service errors to HTTP status codes.
func statusFor(err error) int {
	var maxBytes *http.MaxBytesError
	switch {
	case errors.Is(err, voice.ErrModelNotLoaded),
		errors.Is(err, voice.ErrBusy),
		errors.Is(err, batch.ErrDispatcherClosed):
		return http.StatusServiceUnavailable
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.As(err, &maxBytes):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, profile.ErrNotFound),
		errors.Is(err, batch.ErrJobNotFound),
		errors.Is(err, batch.ErrDatasetNotFound),
		errors.Is(err, batch.ErrOutputNotFound):
		return http.StatusNotFound
	case isValidation(err):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// fail logs err and writes the mapped status.
func (h *handler) fail(w http.ResponseWriter, r *http.Request, op string, start time.Time, err error) {
	status := statusFor(err)
	attrs := []any{
		slog.String("op", op),
		slog.Int("status", status),
		slog.Int64("duration_ms", time.Since(start).Milliseconds()),
		slog.String("error", err.Error()),
	}
	if status >= http.StatusInternalServerError {
		h.log.ErrorContext(r.Context(), op+" failed", attrs...)
	} else {
		h.log.WarnContext(r.Context(), op+" rejected", attrs...)
	}

	msg := err.Error()
	if status == http.StatusGatewayTimeout {
		msg = op + " timed out"
	}
	writeError(w, status, msg)
}

// ---------------------------------------------------------------------------
// Server wires the handler into net/http.Server with graceful shutdown
// ---------------------------------------------------------------------------

// Server runs an http.Server until its context ends.
type Server struct {
	addr            string
	handler         http.Handler
	shutdownTimeout time.Duration
	log             *slog.Logger
}

func New(addr string, h http.Handler) *Server {
	return &Server{
		addr:            addr,
		handler:         h,
		shutdownTimeout: 30 * time.Second,
		log:             slog.Default(),
	}
}

// WithShutdownTimeout overrides the graceful-shutdown drain period.
func (s *Server) WithShutdownTimeout(d time.Duration) *Server {
	s.shutdownTimeout = d
	return s
}

// Start serves until ctx is cancelled, then drains in-flight requests.
func (s *Server) Start(ctx context.Context) error {
	httpServer := &http.Server{
		Addr:              s.addr,
		Handler:           s.handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- httpServer.ListenAndServe()
	}()
	s.log.InfoContext(ctx, "listening", slog.String("addr", s.addr))

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("http shutdown: %w", err)
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("http listen: %w", err)
	}
}

// FetchHealth checks GET /health/ on addr and returns the reported health.
func FetchHealth(ctx context.Context, addr string) (voice.Health, error) {
	base := addr
	if !strings.HasPrefix(base, "http://") && !strings.HasPrefix(base, "https://") {
		if strings.HasPrefix(base, ":") {
			base = "127.0.0.1" + base
		}
		base = "http://" + base
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, strings.TrimRight(base, "/")+"/health/", nil)
	if err != nil {
		return voice.Health{}, err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return voice.Health{}, err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return voice.Health{}, fmt.Errorf("unexpected health status: %s", resp.Status)
	}
	var health voice.Health
	if err := decodeJSON(resp.Body, &health); err != nil {
		return voice.Health{}, fmt.Errorf("decode health: %w", err)
	}
	return health, nil
}
