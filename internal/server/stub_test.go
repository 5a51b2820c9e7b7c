package server_test

import (
	"context"
	"io"
	"sync"

	"github.com/example/voiceapi/internal/audio"
	"github.com/example/voiceapi/internal/profile"
	"github.com/example/voiceapi/internal/transcribe"
	"github.com/example/voiceapi/internal/voice"
)

// stubService implements server.VoiceService for tests.
type stubService struct {
	mu sync.Mutex

	health   voice.Health
	wav      []byte
	err      error
	chunks   []audio.Clip
	chunkErr error // returned after all chunks were emitted
	block    bool  // Synthesize waits for ctx cancellation

	result   transcribe.Result
	features audio.Features
	profiles map[string]profile.Params

	synthReqs []voice.SynthesisRequest
	uploads   []string
	language  string
}

func (s *stubService) Health() voice.Health { return s.health }

func (s *stubService) Synthesize(ctx context.Context, req voice.SynthesisRequest) (voice.Artifact, error) {
	s.mu.Lock()
	s.synthReqs = append(s.synthReqs, req)
	s.mu.Unlock()
	if s.block {
		<-ctx.Done()
		return voice.Artifact{}, ctx.Err()
	}
	if s.err != nil {
		return voice.Artifact{}, s.err
	}
	return voice.Artifact{WAV: s.wav}, nil
}

func (s *stubService) SynthesizeStream(_ context.Context, req voice.SynthesisRequest, emit func(audio.Clip) error) error {
	s.mu.Lock()
	s.synthReqs = append(s.synthReqs, req)
	s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	for _, c := range s.chunks {
		if err := emit(c); err != nil {
			return err
		}
	}
	return s.chunkErr
}

func (s *stubService) record(up voice.Upload) {
	data, _ := io.ReadAll(up.Body)
	s.mu.Lock()
	s.uploads = append(s.uploads, up.Filename+":"+string(data))
	s.mu.Unlock()
}

func (s *stubService) Convert(_ context.Context, src, target voice.Upload) (voice.Artifact, error) {
	s.record(src)
	s.record(target)
	if s.err != nil {
		return voice.Artifact{}, s.err
	}
	return voice.Artifact{WAV: s.wav}, nil
}

func (s *stubService) Transcribe(_ context.Context, up voice.Upload, language string) (transcribe.Result, error) {
	s.record(up)
	s.mu.Lock()
	s.language = language
	s.mu.Unlock()
	if s.err != nil {
		return transcribe.Result{}, s.err
	}
	return s.result, nil
}

func (s *stubService) Enhance(_ context.Context, up voice.Upload) (voice.Artifact, error) {
	s.record(up)
	if s.err != nil {
		return voice.Artifact{}, s.err
	}
	return voice.Artifact{WAV: s.wav}, nil
}

func (s *stubService) Analyze(_ context.Context, up voice.Upload) (audio.Features, error) {
	s.record(up)
	if s.err != nil {
		return audio.Features{}, s.err
	}
	return s.features, nil
}

func (s *stubService) Profiles(context.Context) (map[string]profile.Params, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := map[string]profile.Params{}
	for k, v := range s.profiles {
		out[k] = v
	}
	return out, nil
}

func (s *stubService) SaveProfile(_ context.Context, name string, p profile.Params) error {
	if err := profile.ValidateName(name); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.profiles == nil {
		s.profiles = map[string]profile.Params{}
	}
	s.profiles[name] = p
	return nil
}

func (s *stubService) DeleteProfile(_ context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.profiles[name]; !ok {
		return profile.ErrNotFound
	}
	delete(s.profiles, name)
	return nil
}
