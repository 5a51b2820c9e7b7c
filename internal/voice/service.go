// Package voice is the service layer behind the HTTP API: it owns the model
// backends, resolves voice profiles and keeps request artifacts in the temp
// directory.
package voice

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/example/voiceapi/internal/artifact"
	"github.com/example/voiceapi/internal/audio"
	"github.com/example/voiceapi/internal/profile"
	"github.com/example/voiceapi/internal/text"
	"github.com/example/voiceapi/internal/transcribe"
	"github.com/example/voiceapi/internal/tts"
	"github.com/example/voiceapi/internal/vc"
)

// ErrModelNotLoaded is returned when an operation needs a model that is not
// configured or failed to load.
var ErrModelNotLoaded = errors.New("model not loaded")

// ErrBusy is returned when a caller gives up while waiting for an inference
// slot.
var ErrBusy = errors.New("no inference slot available")

// Model kinds as reported by Health.
const (
	KindTTS     = "tts"
	KindVC      = "vc"
	KindWhisper = "whisper"
)

// Fixed artifact names.
const (
	ConversionResultName = "voice_conversion_result.wav"
	EnhancedName         = "enhanced_audio.wav"
)

// InferenceObserver is told about every model call.
type InferenceObserver func(model, operation string, d time.Duration, err error)

// Options wires the service. Nil models are reported as not loaded.
type Options struct {
	TTS         tts.Model
	VC          vc.Model
	Transcriber transcribe.Model
	Profiles    profile.Store
	Artifacts   *artifact.Dir
	Logger      *slog.Logger
	Observe     InferenceObserver
	// Workers bounds concurrent model calls across HTTP requests and batch
	// jobs. 0 means unlimited.
	Workers int
}

// Service runs requests against the configured models.
type Service struct {
	tts         tts.Model
	vc          vc.Model
	transcriber transcribe.Model
	profiles    profile.Store
	artifacts   *artifact.Dir
	log         *slog.Logger
	observe     InferenceObserver
	slots       chan struct{}

	mu     sync.RWMutex
	loaded map[string]bool
}

func New(opts Options) (*Service, error) {
	if opts.Artifacts == nil {
		return nil, errors.New("voice: artifact directory is required")
	}
	if opts.Profiles == nil {
		return nil, errors.New("voice: profile store is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	observe := opts.Observe
	if observe == nil {
		observe = func(string, string, time.Duration, error) {}
	}

	var slots chan struct{}
	if opts.Workers > 0 {
		slots = make(chan struct{}, opts.Workers)
	}

	return &Service{
		tts:         opts.TTS,
		vc:          opts.VC,
		transcriber: opts.Transcriber,
		profiles:    opts.Profiles,
		artifacts:   opts.Artifacts,
		log:         logger,
		observe:     observe,
		slots:       slots,
		loaded:      make(map[string]bool, 3),
	}, nil
}

type loader interface {
	Name() string
	Load(ctx context.Context) error
}

// LoadModels loads every configured model concurrently. A model that fails to
// load is logged and stays unavailable; only cancellation is returned.
func (s *Service) LoadModels(ctx context.Context) error {
	models := map[string]loader{}
	if s.tts != nil {
		models[KindTTS] = s.tts
	}
	if s.vc != nil {
		models[KindVC] = s.vc
	}
	if s.transcriber != nil {
		models[KindWhisper] = s.transcriber
	}

	var g errgroup.Group
	for kind, m := range models {
		g.Go(func() error {
			start := time.Now()
			err := m.Load(ctx)
			s.setLoaded(kind, err == nil)
			if err != nil {
				s.log.WarnContext(ctx, "model not loaded",
					slog.String("kind", kind),
					slog.String("model", m.Name()),
					slog.String("error", err.Error()),
				)
				return nil
			}
			s.log.InfoContext(ctx, "model loaded",
				slog.String("kind", kind),
				slog.String("model", m.Name()),
				slog.Int64("duration_ms", time.Since(start).Milliseconds()),
			)
			return nil
		})
	}
	_ = g.Wait()

	return ctx.Err()
}

func (s *Service) setLoaded(kind string, ok bool) {
	s.mu.Lock()
	s.loaded[kind] = ok
	s.mu.Unlock()
}

func (s *Service) isLoaded(kind string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loaded[kind]
}

// ModelsLoaded reports availability per model kind.
type ModelsLoaded struct {
	TTS     bool `json:"tts"`
	VC      bool `json:"vc"`
	Whisper bool `json:"whisper"`
}

// Health is the body of the health endpoint.
type Health struct {
	Status         string       `json:"status"`
	ModelsLoaded   ModelsLoaded `json:"models_loaded"`
	AllModelsReady bool         `json:"all_models_ready"`
}

// Health reports which models are usable. The service is healthy when every
// configured model loaded and at least one model is configured.
func (s *Service) Health() Health {
	loaded := ModelsLoaded{
		TTS:     s.isLoaded(KindTTS),
		VC:      s.isLoaded(KindVC),
		Whisper: s.isLoaded(KindWhisper),
	}

	ready := s.tts != nil || s.vc != nil || s.transcriber != nil
	if s.tts != nil && !loaded.TTS {
		ready = false
	}
	if s.vc != nil && !loaded.VC {
		ready = false
	}
	if s.transcriber != nil && !loaded.Whisper {
		ready = false
	}

	status := "healthy"
	if !ready {
		status = "models_not_loaded"
	}
	return Health{Status: status, ModelsLoaded: loaded, AllModelsReady: ready}
}

// SynthesisRequest is a TTS request. A VoiceProfile naming a stored profile
// overrides Exaggeration and CFGWeight.
type SynthesisRequest struct {
	Text         string  `json:"text"`
	Exaggeration float64 `json:"exaggeration"`
	CFGWeight    float64 `json:"cfg_weight"`
	VoiceProfile string  `json:"voice_profile,omitempty"`
	Language     string  `json:"language"`
	// AudioPromptPath is a reference recording on the model host. It is set
	// by local commands only and never decoded from API requests.
	AudioPromptPath string `json:"-"`
}

// NewSynthesisRequest returns a request carrying the default parameters.
func NewSynthesisRequest(input string) SynthesisRequest {
	return SynthesisRequest{Text: input, Exaggeration: 0.5, CFGWeight: 0.5, Language: "en"}
}

// Artifact is an encoded result persisted in the temp directory.
type Artifact struct {
	Path     string
	WAV      []byte
	Duration time.Duration
}

// Upload is a client-supplied file.
type Upload struct {
	Filename string
	Body     io.Reader
}

func (s *Service) resolve(ctx context.Context, req SynthesisRequest) (tts.Request, error) {
	input, err := text.Normalize(req.Text)
	if err != nil {
		return tts.Request{}, err
	}

	out := tts.Request{
		Text:            text.PuncNorm(input),
		Exaggeration:    req.Exaggeration,
		CFGWeight:       req.CFGWeight,
		Language:        req.Language,
		AudioPromptPath: req.AudioPromptPath,
	}
	if req.VoiceProfile == "" {
		return out, nil
	}

	p, err := s.profiles.Get(ctx, req.VoiceProfile)
	switch {
	case errors.Is(err, profile.ErrNotFound):
		s.log.DebugContext(ctx, "unknown voice profile, using request parameters",
			slog.String("voice_profile", req.VoiceProfile))
	case err != nil:
		return tts.Request{}, fmt.Errorf("load voice profile: %w", err)
	default:
		out.Exaggeration = p.Exaggeration
		out.CFGWeight = p.CFGWeight
	}
	return out, nil
}

// Generate runs the TTS model and returns the raw clip without persisting it.
func (s *Service) Generate(ctx context.Context, req SynthesisRequest) (audio.Clip, error) {
	if s.tts == nil || !s.isLoaded(KindTTS) {
		return audio.Clip{}, fmt.Errorf("TTS %w", ErrModelNotLoaded)
	}
	r, err := s.resolve(ctx, req)
	if err != nil {
		return audio.Clip{}, err
	}
	return s.generate(ctx, r)
}

// acquire takes an inference slot, giving up when ctx ends.
func (s *Service) acquire(ctx context.Context) (release func(), err error) {
	if s.slots == nil {
		return func() {}, nil
	}
	select {
	case s.slots <- struct{}{}:
		return func() { <-s.slots }, nil
	case <-ctx.Done():
		return nil, fmt.Errorf("%w: %w", ErrBusy, ctx.Err())
	}
}

func (s *Service) generate(ctx context.Context, r tts.Request) (audio.Clip, error) {
	release, err := s.acquire(ctx)
	if err != nil {
		return audio.Clip{}, err
	}
	defer release()

	start := time.Now()
	clip, err := s.tts.Generate(ctx, r)
	s.observe(s.tts.Name(), "synthesize", time.Since(start), err)
	if err != nil {
		return audio.Clip{}, fmt.Errorf("generate speech: %w", err)
	}
	return clip, nil
}

// Synthesize generates speech and stores it as tts_<hash>.wav.
func (s *Service) Synthesize(ctx context.Context, req SynthesisRequest) (Artifact, error) {
	if s.tts == nil || !s.isLoaded(KindTTS) {
		return Artifact{}, fmt.Errorf("TTS %w", ErrModelNotLoaded)
	}
	r, err := s.resolve(ctx, req)
	if err != nil {
		return Artifact{}, err
	}

	clip, err := s.generate(ctx, r)
	if err != nil {
		return Artifact{}, err
	}

	name := artifact.HashName("tts",
		r.Text,
		strconv.FormatFloat(r.Exaggeration, 'g', -1, 64),
		strconv.FormatFloat(r.CFGWeight, 'g', -1, 64),
		r.Language,
	) + ".wav"
	return s.store(name, clip)
}

// SynthesizeStream generates the text sentence chunk by sentence chunk and
// hands each clip to emit as soon as it is ready. emit errors stop generation.
func (s *Service) SynthesizeStream(ctx context.Context, req SynthesisRequest, emit func(audio.Clip) error) error {
	if s.tts == nil || !s.isLoaded(KindTTS) {
		return fmt.Errorf("TTS %w", ErrModelNotLoaded)
	}
	r, err := s.resolve(ctx, req)
	if err != nil {
		return err
	}

	for i, chunk := range text.Chunk(r.Text, text.StreamChunkChars) {
		if err := ctx.Err(); err != nil {
			return err
		}
		part := r
		part.Text = chunk

		clip, err := s.generate(ctx, part)
		if err != nil {
			return fmt.Errorf("chunk %d: %w", i, err)
		}
		if err := emit(clip); err != nil {
			return err
		}
	}
	return nil
}

// Convert re-voices src with the timbre of target.
func (s *Service) Convert(ctx context.Context, src, target Upload) (Artifact, error) {
	if s.vc == nil || !s.isLoaded(KindVC) {
		return Artifact{}, fmt.Errorf("voice conversion %w", ErrModelNotLoaded)
	}

	srcPath, err := s.saveUpload("source_", src)
	if err != nil {
		return Artifact{}, err
	}
	targetPath, err := s.saveUpload("target_", target)
	if err != nil {
		return Artifact{}, err
	}

	release, err := s.acquire(ctx)
	if err != nil {
		return Artifact{}, err
	}
	defer release()

	start := time.Now()
	clip, err := s.vc.Convert(ctx, srcPath, targetPath)
	s.observe(s.vc.Name(), "convert", time.Since(start), err)
	if err != nil {
		return Artifact{}, fmt.Errorf("convert voice: %w", err)
	}
	return s.store(ConversionResultName, clip)
}

// Transcribe converts an uploaded recording to text. An empty language lets
// the backend detect it.
func (s *Service) Transcribe(ctx context.Context, up Upload, language string) (transcribe.Result, error) {
	if s.transcriber == nil || !s.isLoaded(KindWhisper) {
		return transcribe.Result{}, fmt.Errorf("whisper %w", ErrModelNotLoaded)
	}

	path, err := s.saveUpload("transcribe_", up)
	if err != nil {
		return transcribe.Result{}, err
	}

	release, err := s.acquire(ctx)
	if err != nil {
		return transcribe.Result{}, err
	}
	defer release()

	start := time.Now()
	res, err := s.transcriber.Transcribe(ctx, path, language)
	s.observe(s.transcriber.Name(), "transcribe", time.Since(start), err)
	if err != nil {
		return transcribe.Result{}, fmt.Errorf("transcribe: %w", err)
	}
	return res, nil
}

// Enhance cleans up an uploaded WAV recording.
func (s *Service) Enhance(_ context.Context, up Upload) (Artifact, error) {
	clip, err := s.readUpload("enhance_", up)
	if err != nil {
		return Artifact{}, err
	}
	return s.store(EnhancedName, audio.Enhance(clip))
}

// Analyze extracts voice features from an uploaded WAV recording.
func (s *Service) Analyze(_ context.Context, up Upload) (audio.Features, error) {
	clip, err := s.readUpload("analyze_", up)
	if err != nil {
		return audio.Features{}, err
	}
	return audio.Analyze(clip)
}

// Profiles lists the stored voice profiles.
func (s *Service) Profiles(ctx context.Context) (map[string]profile.Params, error) {
	return s.profiles.List(ctx)
}

// SaveProfile creates or replaces a profile.
func (s *Service) SaveProfile(ctx context.Context, name string, p profile.Params) error {
	if err := s.profiles.Put(ctx, name, p); err != nil {
		return err
	}
	s.log.InfoContext(ctx, "voice profile saved", slog.String("name", name))
	return nil
}

// DeleteProfile removes a profile; unknown names yield profile.ErrNotFound.
func (s *Service) DeleteProfile(ctx context.Context, name string) error {
	if err := s.profiles.Delete(ctx, name); err != nil {
		return err
	}
	s.log.InfoContext(ctx, "voice profile deleted", slog.String("name", name))
	return nil
}

func (s *Service) saveUpload(prefix string, up Upload) (string, error) {
	if up.Body == nil {
		return "", fmt.Errorf("%s upload is missing", prefix)
	}
	return s.artifacts.Save(prefix+artifact.UploadName(up.Filename), up.Body, 0)
}

func (s *Service) readUpload(prefix string, up Upload) (audio.Clip, error) {
	path, err := s.saveUpload(prefix, up)
	if err != nil {
		return audio.Clip{}, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return audio.Clip{}, err
	}
	return audio.DecodeWAV(data)
}

func (s *Service) store(name string, clip audio.Clip) (Artifact, error) {
	wav, err := audio.EncodeWAV(clip)
	if err != nil {
		return Artifact{}, fmt.Errorf("encode wav: %w", err)
	}
	path, err := s.artifacts.Write(name, wav)
	if err != nil {
		return Artifact{}, err
	}
	return Artifact{Path: path, WAV: wav, Duration: clip.Duration()}, nil
}
